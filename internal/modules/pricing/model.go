// README: Price result, requests and the error taxonomy of the pricing engine.
package pricing

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"velo/internal/modules/plan"
	"velo/internal/modules/promotion"
	"velo/internal/modules/snapshot"
	"velo/internal/types"
)

var (
	ErrPlanNotFound    = errors.New("plan not found")
	ErrPlanInactive    = errors.New("plan is inactive")
	ErrInvalidDuration = errors.New("end time must be after start time")

	// ErrInvalidConfiguration is raised when stored configuration breaks a
	// pricing invariant. It panics in development.
	ErrInvalidConfiguration = snapshot.ErrInvalidConfiguration
)

type QuoteRequest struct {
	PlanID types.ID
	Start  time.Time
	End    time.Time
}

// ChargeRequest prices a finished ride and consumes the promotion it gets.
type ChargeRequest struct {
	PlanID types.ID
	RideID string
	Start  time.Time
	End    time.Time
}

// Result is the full breakdown of one price. Every decimal is exact; Total is
// the only rounded figure.
type Result struct {
	PlanID          types.ID
	PlanVersion     int
	Tier            plan.Tier
	Units           int64
	BilledDuration  time.Duration
	Rate            decimal.Decimal // per-unit rate after overtime
	OverrideApplied bool
	Base            decimal.Decimal // Rate * Units
	RuleID          *types.ID
	RuleMultiplier  decimal.Decimal
	Subtotal        decimal.Decimal // Base * RuleMultiplier

	PlanDiscount      decimal.Decimal
	PromotionID       *types.ID
	PromotionDiscount decimal.Decimal
	Discount          decimal.Decimal // PlanDiscount + PromotionDiscount

	Total           types.Money
	SnapshotVersion uint64

	promotion *promotion.Promotion
}

// Breakdown lists the rounded components for display.
func (r Result) Breakdown() map[string]int64 {
	return map[string]int64{
		"base":               types.WholeUnits(r.Base),
		"subtotal":           types.WholeUnits(r.Subtotal),
		"plan_discount":      types.WholeUnits(r.PlanDiscount),
		"promotion_discount": types.WholeUnits(r.PromotionDiscount),
		"total":              r.Total.Amount,
	}
}
