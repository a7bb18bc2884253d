// README: Promotion selection and eligibility tests.
package promotion

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"velo/internal/types"
)

var (
	now    = time.Date(2024, 6, 14, 19, 0, 0, 0, time.UTC)
	planID = types.ID("plan_city")
)

func limit(n int64) *int64 { return &n }

func promo(id string, d Discount) Promotion {
	return Promotion{
		ID:        types.ID(id),
		Name:      id,
		Discount:  d,
		StartDate: now.Add(-24 * time.Hour),
		EndDate:   now.Add(24 * time.Hour),
		IsActive:  true,
		PlanIDs:   PlanSet(planID),
	}
}

func pct(v int64) Discount   { return Percentage{Percent: decimal.NewFromInt(v)} }
func fixed(v int64) Discount { return FixedAmount{Amount: decimal.NewFromInt(v)} }

func TestSelectBestPromotionPrefersLowestFinalPrice(t *testing.T) {
	a := promo("promo_a", pct(20))
	b := promo("promo_b", fixed(300))

	best, off, ok := SelectBestPromotion([]Promotion{a, b}, planID, now, decimal.NewFromInt(1000))
	if !ok {
		t.Fatal("expected a promotion")
	}
	if best.ID != "promo_b" {
		t.Fatalf("expected promo_b, got %s", best.ID)
	}
	if !off.Equal(decimal.NewFromInt(300)) {
		t.Fatalf("expected 300 off, got %s", off)
	}
}

func TestSelectBestPromotionSkipsExhausted(t *testing.T) {
	spent := promo("promo_spent", pct(50))
	spent.UsageLimit = limit(5)
	spent.UsageCount = 5
	small := promo("promo_small", fixed(10))

	best, _, ok := SelectBestPromotion([]Promotion{spent, small}, planID, now, decimal.NewFromInt(1000))
	if !ok || best.ID != "promo_small" {
		t.Fatalf("expected promo_small, got %v (ok=%v)", best.ID, ok)
	}

	if _, _, ok := SelectBestPromotion([]Promotion{spent}, planID, now, decimal.NewFromInt(1000)); ok {
		t.Fatal("exhausted promotion must not be selected")
	}
}

func TestSelectBestPromotionTieBreaksOnID(t *testing.T) {
	// both take 200 off a price of 1000
	z := promo("promo_z", pct(20))
	a := promo("promo_a", fixed(200))

	for _, order := range [][]Promotion{{z, a}, {a, z}} {
		best, _, ok := SelectBestPromotion(order, planID, now, decimal.NewFromInt(1000))
		if !ok || best.ID != "promo_a" {
			t.Fatalf("expected promo_a, got %s", best.ID)
		}
	}
}

func TestSelectBestPromotionNeedsSomethingToTakeOff(t *testing.T) {
	once := promo("promo_once", fixed(300))
	once.UsageLimit = limit(1)

	if _, _, ok := SelectBestPromotion([]Promotion{once, promo("promo_pct", pct(20))}, planID, now, decimal.Zero); ok {
		t.Fatal("no promotion should be selected on a zero price")
	}
}

func TestSelectBestPromotionCapsAtPrice(t *testing.T) {
	// 500 off and 900 off both zero a 400 price; the smaller id wins.
	big := promo("promo_big", fixed(900))
	mid := promo("promo_mid", fixed(500))

	best, off, ok := SelectBestPromotion([]Promotion{big, mid}, planID, now, decimal.NewFromInt(400))
	if !ok || best.ID != "promo_big" {
		t.Fatalf("expected promo_big, got %s", best.ID)
	}
	if !off.Equal(decimal.NewFromInt(400)) {
		t.Fatalf("expected off capped at 400, got %s", off)
	}
}

func TestEligible(t *testing.T) {
	base := promo("promo", pct(10))

	tests := []struct {
		name   string
		mutate func(p *Promotion)
		plan   types.ID
		at     time.Time
		want   bool
	}{
		{name: "eligible", plan: planID, at: now, want: true},
		{name: "inactive", mutate: func(p *Promotion) { p.IsActive = false }, plan: planID, at: now},
		{name: "other plan", plan: "plan_other", at: now},
		{name: "at start", mutate: func(p *Promotion) { p.StartDate = now }, plan: planID, at: now, want: true},
		{name: "at end", mutate: func(p *Promotion) { p.EndDate = now }, plan: planID, at: now},
		{name: "before start", plan: planID, at: now.Add(-48 * time.Hour)},
		{name: "below limit", mutate: func(p *Promotion) { p.UsageLimit, p.UsageCount = limit(5), 4 }, plan: planID, at: now, want: true},
		{name: "at limit", mutate: func(p *Promotion) { p.UsageLimit, p.UsageCount = limit(5), 5 }, plan: planID, at: now},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := base
			p.PlanIDs = PlanSet(planID)
			if tt.mutate != nil {
				tt.mutate(&p)
			}
			if got := p.Eligible(tt.plan, tt.at); got != tt.want {
				t.Fatalf("Eligible = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWithout(t *testing.T) {
	a, b := promo("a", pct(10)), promo("b", pct(20))
	got := Without([]Promotion{a, b}, map[types.ID]struct{}{"b": {}})
	if len(got) != 1 || got[0].ID != "a" {
		t.Fatalf("unexpected result: %v", got)
	}
}

func TestPromotionValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(p *Promotion)
		wantErr bool
	}{
		{name: "valid"},
		{name: "missing name", mutate: func(p *Promotion) { p.Name = "" }, wantErr: true},
		{name: "percentage over 100", mutate: func(p *Promotion) { p.Discount = pct(120) }, wantErr: true},
		{name: "zero fixed", mutate: func(p *Promotion) { p.Discount = fixed(0) }, wantErr: true},
		{name: "no discount", mutate: func(p *Promotion) { p.Discount = nil }, wantErr: true},
		{name: "end before start", mutate: func(p *Promotion) { p.EndDate = p.StartDate.Add(-time.Hour) }, wantErr: true},
		{name: "zero limit", mutate: func(p *Promotion) { p.UsageLimit = limit(0) }, wantErr: true},
		{name: "count above limit", mutate: func(p *Promotion) { p.UsageLimit, p.UsageCount = limit(2), 3 }, wantErr: true},
		{name: "no plans", mutate: func(p *Promotion) { p.PlanIDs = nil }, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := promo("promo", pct(10))
			if tt.mutate != nil {
				tt.mutate(&p)
			}
			err := p.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
