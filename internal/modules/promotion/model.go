// README: Time-bounded, optionally usage-limited promotions tied to plans.
package promotion

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"velo/internal/types"
)

// Discount is the closed set of promotion discount kinds: Percentage and
// FixedAmount.
type Discount interface {
	// Off returns how much is taken off price, never more than price.
	Off(price decimal.Decimal) decimal.Decimal
	Kind() string
	Value() decimal.Decimal
	discount()
}

const (
	KindPercentage  = "percentage"
	KindFixedAmount = "fixed_amount"
)

type Percentage struct {
	Percent decimal.Decimal
}

func (p Percentage) Off(price decimal.Decimal) decimal.Decimal {
	return capAt(types.PercentOf(price, p.Percent), price)
}

func (Percentage) Kind() string { return KindPercentage }

func (p Percentage) Value() decimal.Decimal { return p.Percent }

func (Percentage) discount() {}

type FixedAmount struct {
	Amount decimal.Decimal
}

func (f FixedAmount) Off(price decimal.Decimal) decimal.Decimal {
	return capAt(f.Amount, price)
}

func (FixedAmount) Kind() string { return KindFixedAmount }

func (f FixedAmount) Value() decimal.Decimal { return f.Amount }

func (FixedAmount) discount() {}

func capAt(off, price decimal.Decimal) decimal.Decimal {
	if price.IsNegative() {
		return decimal.Zero
	}
	return decimal.Min(off, price)
}

func NewDiscount(kind string, value decimal.Decimal) (Discount, error) {
	switch kind {
	case KindPercentage:
		return Percentage{Percent: value}, nil
	case KindFixedAmount:
		return FixedAmount{Amount: value}, nil
	}
	return nil, fmt.Errorf("unknown discount type %q", kind)
}

type Promotion struct {
	ID         types.ID
	Name       string
	Discount   Discount
	StartDate  time.Time
	EndDate    time.Time
	UsageLimit *int64
	UsageCount int64
	IsActive   bool
	PlanIDs    map[types.ID]struct{}
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (p Promotion) AppliesTo(planID types.ID) bool {
	_, ok := p.PlanIDs[planID]
	return ok
}

func (p Promotion) Exhausted() bool {
	return p.UsageLimit != nil && p.UsageCount >= *p.UsageLimit
}

// Eligible reports whether the promotion may be offered on planID at now.
func (p Promotion) Eligible(planID types.ID, now time.Time) bool {
	return p.IsActive &&
		!now.Before(p.StartDate) && now.Before(p.EndDate) &&
		p.AppliesTo(planID) &&
		!p.Exhausted()
}

// PlanIDList returns the plan set as a slice, for storage and responses.
func (p Promotion) PlanIDList() []types.ID {
	out := make([]types.ID, 0, len(p.PlanIDs))
	for id := range p.PlanIDs {
		out = append(out, id)
	}
	return out
}

func PlanSet(ids ...types.ID) map[types.ID]struct{} {
	set := make(map[types.ID]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

func (p *Promotion) Validate() error {
	verr := &types.ValidationError{Entity: fmt.Sprintf("promotion %q", p.ID)}
	if p.Name == "" {
		verr.Add("name is required")
	}
	switch d := p.Discount.(type) {
	case Percentage:
		if !d.Percent.IsPositive() || !types.ValidPercent(d.Percent) {
			verr.Add("percentage discount must be greater than 0 and at most 100")
		}
	case FixedAmount:
		if !d.Amount.IsPositive() {
			verr.Add("fixed discount must be greater than 0")
		}
	case nil:
		verr.Add("discount type is required")
	default:
		verr.Add(fmt.Sprintf("unsupported discount type %T", d))
	}
	if !p.EndDate.After(p.StartDate) {
		verr.Add("end date must be after start date")
	}
	if p.UsageLimit != nil && *p.UsageLimit < 1 {
		verr.Add("usage limit must be at least 1")
	}
	if p.UsageCount < 0 {
		verr.Add("usage count must be non-negative")
	}
	if p.Exhausted() && p.UsageCount > *p.UsageLimit {
		verr.Add("usage count exceeds usage limit")
	}
	if len(p.PlanIDs) == 0 {
		verr.Add("at least one plan is required")
	}
	return verr.Err()
}
