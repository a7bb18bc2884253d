package rule

import "time"

// SelectRule picks the single multiplier rule in effect at ts, evaluated in
// loc. Highest priority wins; ties go to the more specific rule and then to
// the smallest id. ok is false when nothing matches, meaning a multiplier of 1.
func SelectRule(rules []Rule, ts time.Time, loc *time.Location) (best Rule, ok bool) {
	if loc != nil {
		ts = ts.In(loc)
	}
	for _, r := range rules {
		if !r.Matches(ts) {
			continue
		}
		if !ok || outranks(r, best) {
			best, ok = r, true
		}
	}
	return best, ok
}

func outranks(a, b Rule) bool {
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	if sa, sb := a.Specificity(), b.Specificity(); sa != sb {
		return sa > sb
	}
	return a.ID < b.ID
}
