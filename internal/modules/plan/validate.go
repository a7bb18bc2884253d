package plan

import (
	"fmt"

	"velo/internal/types"
)

// Validate rejects values the engine treats as impossible. It runs on every
// write and again when a snapshot is built.
func (p *Plan) Validate() error {
	verr := &types.ValidationError{Entity: fmt.Sprintf("plan %q", p.ID)}
	if p.Name == "" {
		verr.Add("name is required")
	}
	for _, t := range Tiers {
		if p.Rates.For(t).IsNegative() {
			verr.Add(t.String() + " rate must be non-negative")
		}
	}
	if p.MinimumHours < 1 {
		verr.Add("minimum hours must be at least 1")
	}
	if !types.ValidPercent(p.Discount) {
		verr.Add("discount must be between 0 and 100")
	}
	if p.Override != nil {
		p.Override.validate(verr)
	}
	return verr.Err()
}

func (o *Override) validate(verr *types.ValidationError) {
	switch r := o.Rule.(type) {
	case FixedPrice:
		if r.Price.IsNegative() {
			verr.Add("override fixed price must be non-negative")
		}
	case PercentageReduction:
		if !types.ValidPercent(r.Percent) {
			verr.Add("override percentage must be between 0 and 100")
		}
	case nil:
		verr.Add("override type is required")
	default:
		verr.Add(fmt.Sprintf("unsupported override type %T", r))
	}
	for _, t := range Tiers {
		if w, ok := o.Window(t).Get(); ok && !w.Valid() {
			verr.Add(fmt.Sprintf("override %s window %s out of range", t, w))
		}
	}
}
