package plan

import "time"

// IsOvertime reports whether ts falls outside the plan's normal window for
// tier. Plans without an override, and tiers without a window, never go into
// overtime. The hour is read in loc (ts's own location when loc is nil).
func IsOvertime(p Plan, tier Tier, ts time.Time, loc *time.Location) bool {
	if p.Override == nil {
		return false
	}
	w, ok := p.Override.Window(tier).Get()
	if !ok {
		return false
	}
	if loc != nil {
		ts = ts.In(loc)
	}
	return !w.Contains(ts.Hour())
}
