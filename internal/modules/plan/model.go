// README: Pricing plan, rate tiers and the per-plan overtime override.
package plan

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"velo/internal/types"
)

type Tier int

const (
	TierHourly Tier = iota
	TierDaily
	TierWeekly
	TierMonthly
)

// Tiers lists every tier from the shortest to the longest basis.
var Tiers = [...]Tier{TierHourly, TierDaily, TierWeekly, TierMonthly}

const (
	Day   = 24 * time.Hour
	Week  = 7 * Day
	Month = 30 * Day
)

func (t Tier) Length() time.Duration {
	switch t {
	case TierHourly:
		return time.Hour
	case TierDaily:
		return Day
	case TierWeekly:
		return Week
	case TierMonthly:
		return Month
	}
	panic(fmt.Sprintf("plan: unknown tier %d", int(t)))
}

func (t Tier) String() string {
	switch t {
	case TierHourly:
		return "hourly"
	case TierDaily:
		return "daily"
	case TierWeekly:
		return "weekly"
	case TierMonthly:
		return "monthly"
	}
	return fmt.Sprintf("tier(%d)", int(t))
}

func ParseTier(s string) (Tier, error) {
	for _, t := range Tiers {
		if t.String() == s {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown tier %q", s)
}

// Rates holds the four non-negative tier prices of a plan.
type Rates struct {
	Hourly  decimal.Decimal
	Daily   decimal.Decimal
	Weekly  decimal.Decimal
	Monthly decimal.Decimal
}

func (r Rates) For(t Tier) decimal.Decimal {
	switch t {
	case TierHourly:
		return r.Hourly
	case TierDaily:
		return r.Daily
	case TierWeekly:
		return r.Weekly
	case TierMonthly:
		return r.Monthly
	}
	panic(fmt.Sprintf("plan: unknown tier %d", int(t)))
}

type Plan struct {
	ID           types.ID
	Name         string
	Version      int
	Rates        Rates
	MinimumHours int
	Discount     decimal.Decimal
	IsActive     bool
	Conditions   []string
	Override     *Override
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// OvertimeRule is the closed set of overtime pricing behaviours:
// FixedPrice and PercentageReduction.
type OvertimeRule interface {
	// Apply returns the rate charged instead of the tier rate.
	Apply(rate decimal.Decimal) decimal.Decimal
	Kind() string
	Value() decimal.Decimal
	overtimeRule()
}

type FixedPrice struct {
	Price decimal.Decimal
}

func (f FixedPrice) Apply(decimal.Decimal) decimal.Decimal { return f.Price }

func (FixedPrice) Kind() string { return KindFixedPrice }

func (f FixedPrice) Value() decimal.Decimal { return f.Price }

func (FixedPrice) overtimeRule() {}

type PercentageReduction struct {
	Percent decimal.Decimal
}

func (p PercentageReduction) Apply(rate decimal.Decimal) decimal.Decimal {
	return types.ReduceByPercent(rate, p.Percent)
}

func (PercentageReduction) Kind() string { return KindPercentageReduction }

func (p PercentageReduction) Value() decimal.Decimal { return p.Percent }

func (PercentageReduction) overtimeRule() {}

const (
	KindFixedPrice          = "fixed_price"
	KindPercentageReduction = "percentage_reduction"
)

// NewOvertimeRule maps the stored tag onto the closed variant.
func NewOvertimeRule(kind string, value decimal.Decimal) (OvertimeRule, error) {
	switch kind {
	case KindFixedPrice:
		return FixedPrice{Price: value}, nil
	case KindPercentageReduction:
		return PercentageReduction{Percent: value}, nil
	}
	return nil, fmt.Errorf("unknown overtime type %q", kind)
}

// Override belongs to exactly one plan. A tier whose window is unset has no
// overtime concept.
type Override struct {
	Rule    OvertimeRule
	Windows [len(Tiers)]types.OptionalWindow
}

func (o *Override) Window(t Tier) types.OptionalWindow {
	return o.Windows[t]
}
