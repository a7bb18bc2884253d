// README: Dynamic time-of-day / day-of-week price multipliers, independent of plans.
package rule

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"velo/internal/types"
)

type Rule struct {
	ID         types.ID
	Name       string
	DayOfWeek  *time.Weekday
	Window     types.OptionalWindow
	Multiplier decimal.Decimal
	IsActive   bool
	Priority   int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Specificity ranks how narrowly a rule is scoped; larger is more specific.
type Specificity int

const (
	AllDay Specificity = iota
	WindowOnly
	DayOnly
	DayAndWindow
)

func (r Rule) Specificity() Specificity {
	switch {
	case r.DayOfWeek != nil && r.Window.IsSet():
		return DayAndWindow
	case r.DayOfWeek != nil:
		return DayOnly
	case r.Window.IsSet():
		return WindowOnly
	default:
		return AllDay
	}
}

// Matches reports whether the rule applies at ts. ts must already be in the
// pricing location.
func (r Rule) Matches(ts time.Time) bool {
	if !r.IsActive {
		return false
	}
	if r.DayOfWeek != nil && *r.DayOfWeek != ts.Weekday() {
		return false
	}
	if w, ok := r.Window.Get(); ok && !w.Contains(ts.Hour()) {
		return false
	}
	return true
}

func (r *Rule) Validate() error {
	verr := &types.ValidationError{Entity: fmt.Sprintf("rule %q", r.ID)}
	if r.Name == "" {
		verr.Add("name is required")
	}
	if r.DayOfWeek != nil && (*r.DayOfWeek < time.Sunday || *r.DayOfWeek > time.Saturday) {
		verr.Add("day of week must be between 0 and 6")
	}
	if w, ok := r.Window.Get(); ok && !w.Valid() {
		verr.Add(fmt.Sprintf("window %s out of range", w))
	}
	if !r.Multiplier.IsPositive() {
		verr.Add("multiplier must be greater than 0")
	}
	return verr.Err()
}
