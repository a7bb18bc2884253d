// README: Immutable, versioned view of plans, rules and promotions used by every calculation.
package snapshot

import (
	"context"
	"errors"
	"time"

	"velo/internal/modules/plan"
	"velo/internal/modules/promotion"
	"velo/internal/modules/rule"
	"velo/internal/types"
)

// ErrInvalidConfiguration marks stored configuration that breaks a pricing
// invariant and therefore cannot be priced against.
var ErrInvalidConfiguration = errors.New("invalid pricing configuration")

// Snapshot is never modified after it is built. Callers hold on to one
// snapshot for the whole of a calculation.
type Snapshot struct {
	Version    uint64
	LoadedAt   time.Time
	Plans      plan.Catalog
	Rules      []rule.Rule
	Promotions []promotion.Promotion

	// invalid holds the validation error of each plan that failed to load.
	invalid map[types.ID]error
	// problem joins the errors of rules and promotions that failed to load.
	// Rules apply to every plan, so any such error blocks all calculations.
	problem error
}

// PlanProblem returns the configuration error recorded for id, if any.
func (s *Snapshot) PlanProblem(id types.ID) error {
	return s.invalid[id]
}

// Problem returns the configuration error recorded for the rules and
// promotions of this snapshot, if any.
func (s *Snapshot) Problem() error {
	return s.problem
}

// Source is the configuration store a snapshot is built from. GetPlans
// returns inactive plans as well so callers can tell "inactive" from
// "unknown".
type Source interface {
	GetPlans(ctx context.Context) ([]plan.Plan, error)
	GetActiveRules(ctx context.Context) ([]rule.Rule, error)
	GetActivePromotions(ctx context.Context) ([]promotion.Promotion, error)
}

// PostgresSource reads the configuration tables through the module stores.
type PostgresSource struct {
	Plans      *plan.Store
	Rules      *rule.Store
	Promotions *promotion.Store
}

func (s PostgresSource) GetPlans(ctx context.Context) ([]plan.Plan, error) {
	return s.Plans.ListAll(ctx)
}

func (s PostgresSource) GetActiveRules(ctx context.Context) ([]rule.Rule, error) {
	return s.Rules.ListActive(ctx)
}

func (s PostgresSource) GetActivePromotions(ctx context.Context) ([]promotion.Promotion, error) {
	return s.Promotions.ListActive(ctx)
}
