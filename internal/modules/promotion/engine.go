package promotion

import (
	"time"

	"github.com/shopspring/decimal"

	"velo/internal/types"
)

// SelectBestPromotion returns the eligible promotion leaving the lowest price
// for planID at now, given the pre-promotion price. Ties go to the smallest id.
// A promotion that takes nothing off is never selected, so no usage is spent
// on it.
func SelectBestPromotion(promos []Promotion, planID types.ID, now time.Time, price decimal.Decimal) (best Promotion, off decimal.Decimal, ok bool) {
	for _, p := range promos {
		if !p.Eligible(planID, now) {
			continue
		}
		d := p.Discount.Off(price)
		if !d.IsPositive() {
			continue
		}
		if !ok || d.GreaterThan(off) || (d.Equal(off) && p.ID < best.ID) {
			best, off, ok = p, d, true
		}
	}
	return best, off, ok
}

// Without drops the promotions whose ids are in skip.
func Without(promos []Promotion, skip map[types.ID]struct{}) []Promotion {
	if len(skip) == 0 {
		return promos
	}
	out := make([]Promotion, 0, len(promos))
	for _, p := range promos {
		if _, drop := skip[p.ID]; !drop {
			out = append(out, p)
		}
	}
	return out
}
