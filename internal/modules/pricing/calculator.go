package pricing

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"velo/internal/modules/plan"
	"velo/internal/modules/promotion"
	"velo/internal/modules/rule"
	"velo/internal/types"
)

// Calculator turns a plan, the active rules and the candidate promotions into
// a price. It holds no state and never mutates its inputs, so the same inputs
// always give the same Result.
type Calculator struct {
	// Location is where hours and weekdays are read; nil means each
	// timestamp's own location.
	Location *time.Location
	Currency string
}

// Calculate prices the interval [start, end) on p. Overtime, rules and
// promotion eligibility are all evaluated at start.
func (c Calculator) Calculate(p plan.Plan, rules []rule.Rule, start, end time.Time, candidates []promotion.Promotion) (Result, error) {
	if !end.After(start) {
		return Result{}, ErrInvalidDuration
	}
	if err := p.Validate(); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrInvalidConfiguration, err)
	}
	if !p.IsActive {
		return Result{}, ErrPlanInactive
	}

	res := Result{
		PlanID:         p.ID,
		PlanVersion:    p.Version,
		BilledDuration: BilledDuration(p, end.Sub(start)),
	}
	res.Tier = SelectTier(res.BilledDuration)
	res.Units = Units(res.BilledDuration, res.Tier)

	res.Rate = p.Rates.For(res.Tier)
	if plan.IsOvertime(p, res.Tier, start, c.Location) {
		res.Rate = p.Override.Rule.Apply(res.Rate)
		res.OverrideApplied = true
	}
	res.Base = res.Rate.Mul(decimal.NewFromInt(res.Units))

	res.RuleMultiplier = decimal.NewFromInt(1)
	if r, ok := rule.SelectRule(rules, start, c.Location); ok {
		if err := r.Validate(); err != nil {
			return Result{}, fmt.Errorf("%w: %v", ErrInvalidConfiguration, err)
		}
		id := r.ID
		res.RuleID = &id
		res.RuleMultiplier = r.Multiplier
	}
	res.Subtotal = res.Base.Mul(res.RuleMultiplier)

	res.PlanDiscount = types.PercentOf(res.Subtotal, p.Discount)
	afterPlan := res.Subtotal.Sub(res.PlanDiscount)

	res.PromotionDiscount = decimal.Zero
	// Eligibility is read at ride start, not at charge time, so a quote and
	// the later charge of the same ride agree.
	if best, off, ok := promotion.SelectBestPromotion(candidates, p.ID, start, afterPlan); ok {
		id := best.ID
		res.PromotionID = &id
		res.PromotionDiscount = off
		res.promotion = &best
	}
	res.Discount = res.PlanDiscount.Add(res.PromotionDiscount)

	res.Total = types.Money{
		Amount:   types.WholeUnits(res.Subtotal.Sub(res.Discount)),
		Currency: c.Currency,
	}
	return res, nil
}

// BilledDuration is the ride duration raised to the plan's minimum.
func BilledDuration(p plan.Plan, d time.Duration) time.Duration {
	if floor := time.Duration(p.MinimumHours) * time.Hour; d < floor {
		return floor
	}
	return d
}

// SelectTier picks the longest tier the billed duration fills at least once.
func SelectTier(billed time.Duration) plan.Tier {
	switch {
	case billed >= plan.Month:
		return plan.TierMonthly
	case billed >= plan.Week:
		return plan.TierWeekly
	case billed >= plan.Day:
		return plan.TierDaily
	default:
		return plan.TierHourly
	}
}

// Units is the number of tier periods charged, partial periods rounded up.
func Units(billed time.Duration, tier plan.Tier) int64 {
	length := tier.Length()
	n := int64(billed / length)
	if billed%length != 0 {
		n++
	}
	return n
}
