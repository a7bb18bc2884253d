// README: Snapshot manager and file source tests.
package snapshot

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"velo/internal/logger"
	"velo/internal/modules/plan"
	"velo/internal/modules/promotion"
	"velo/internal/modules/rule"
	"velo/internal/types"
)

type fakeSource struct {
	loads atomic.Int32
	delay time.Duration
	err    error
	plans  []plan.Plan
	rules  []rule.Rule
	promos []promotion.Promotion
}

func (f *fakeSource) GetPlans(ctx context.Context) ([]plan.Plan, error) {
	f.loads.Add(1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.plans, nil
}

func (f *fakeSource) GetActiveRules(context.Context) ([]rule.Rule, error) {
	return f.rules, nil
}

func (f *fakeSource) GetActivePromotions(context.Context) ([]promotion.Promotion, error) {
	return f.promos, nil
}

func validPlan(id string) plan.Plan {
	return plan.Plan{
		ID:           types.ID(id),
		Name:         id,
		Version:      1,
		Rates:        plan.Rates{Hourly: decimal.NewFromInt(500), Daily: decimal.NewFromInt(3000), Weekly: decimal.NewFromInt(15000), Monthly: decimal.NewFromInt(50000)},
		MinimumHours: 1,
		IsActive:     true,
	}
}

func TestCurrentLoadsOnce(t *testing.T) {
	src := &fakeSource{delay: 20 * time.Millisecond, plans: []plan.Plan{validPlan("p1")}}
	m := NewManager(src, logger.NewNop())

	const readers = 16
	var wg sync.WaitGroup
	versions := make(chan uint64, readers)
	for i := 0; i < readers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, err := m.Current(context.Background())
			if err != nil {
				t.Errorf("Current: %v", err)
				return
			}
			versions <- s.Version
		}()
	}
	wg.Wait()
	close(versions)

	if got := src.loads.Load(); got != 1 {
		t.Fatalf("expected 1 load, got %d", got)
	}
	for v := range versions {
		if v != 1 {
			t.Fatalf("expected version 1, got %d", v)
		}
	}
}

func TestInvalidateForcesReload(t *testing.T) {
	src := &fakeSource{plans: []plan.Plan{validPlan("p1")}}
	m := NewManager(src, logger.NewNop())
	ctx := context.Background()

	first, err := m.Current(ctx)
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	if again, _ := m.Current(ctx); again != first {
		t.Fatal("expected the cached snapshot")
	}

	src.plans = append(src.plans, validPlan("p2"))
	m.Invalidate()

	second, err := m.Current(ctx)
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	if second.Version <= first.Version {
		t.Fatalf("expected a newer version, got %d after %d", second.Version, first.Version)
	}
	if second.Plans.Len() != 2 || first.Plans.Len() != 1 {
		t.Fatalf("old snapshot must be unchanged; got %d and %d plans", first.Plans.Len(), second.Plans.Len())
	}
}

func TestReloadFailureKeepsPrevious(t *testing.T) {
	src := &fakeSource{plans: []plan.Plan{validPlan("p1")}}
	m := NewManager(src, logger.NewNop())
	ctx := context.Background()

	first, err := m.Current(ctx)
	if err != nil {
		t.Fatalf("Current: %v", err)
	}

	boom := errors.New("db down")
	src.err = boom
	if _, err := m.Reload(ctx); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped source error, got %v", err)
	}
	if cur, _ := m.Current(ctx); cur != first {
		t.Fatal("failed reload must keep the previous snapshot")
	}
}

func TestInvalidPlanIsRecorded(t *testing.T) {
	bad := validPlan("p_bad")
	bad.MinimumHours = 0
	src := &fakeSource{plans: []plan.Plan{validPlan("p1"), bad}}
	m := NewManager(src, logger.NewNop())

	s, err := m.Current(context.Background())
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	if err := s.PlanProblem("p_bad"); !errors.Is(err, ErrInvalidConfiguration) {
		t.Fatalf("expected ErrInvalidConfiguration, got %v", err)
	}
	if err := s.PlanProblem("p1"); err != nil {
		t.Fatalf("unexpected problem for valid plan: %v", err)
	}
}

func TestInvalidRulesAndPromotionsAreRecorded(t *testing.T) {
	good := rule.Rule{ID: "r_ok", Name: "Surge", Multiplier: decimal.RequireFromString("1.5"), IsActive: true}
	zero := rule.Rule{ID: "r_zero", Name: "Broken", Multiplier: decimal.Zero, IsActive: true}
	nameless := promotion.Promotion{
		ID:        "promo_nameless",
		Discount:  promotion.FixedAmount{Amount: decimal.NewFromInt(100)},
		StartDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC),
		IsActive:  true,
		PlanIDs:   promotion.PlanSet("p1"),
	}

	tests := []struct {
		name   string
		rules  []rule.Rule
		promos []promotion.Promotion
		bad    bool
	}{
		{name: "valid", rules: []rule.Rule{good}},
		{name: "zero multiplier", rules: []rule.Rule{good, zero}, bad: true},
		{name: "invalid promotion", rules: []rule.Rule{good}, promos: []promotion.Promotion{nameless}, bad: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := &fakeSource{plans: []plan.Plan{validPlan("p1")}, rules: tt.rules, promos: tt.promos}
			s, err := NewManager(src, logger.NewNop()).Current(context.Background())
			if err != nil {
				t.Fatalf("Current: %v", err)
			}
			err = s.Problem()
			if tt.bad && !errors.Is(err, ErrInvalidConfiguration) {
				t.Fatalf("expected ErrInvalidConfiguration, got %v", err)
			}
			if !tt.bad && err != nil {
				t.Fatalf("unexpected problem: %v", err)
			}
		})
	}
}

type countingBroadcaster struct{ n int }

func (b *countingBroadcaster) Broadcast(context.Context) error {
	b.n++
	return nil
}

func TestInvalidateAllBroadcasts(t *testing.T) {
	m := NewManager(&fakeSource{}, logger.NewNop())
	if err := m.InvalidateAll(context.Background()); err != nil {
		t.Fatalf("InvalidateAll without broadcaster: %v", err)
	}

	b := &countingBroadcaster{}
	m.SetBroadcaster(b)
	if err := m.InvalidateAll(context.Background()); err != nil {
		t.Fatalf("InvalidateAll: %v", err)
	}
	if b.n != 1 {
		t.Fatalf("expected 1 broadcast, got %d", b.n)
	}
}

func TestRunRefresherReloads(t *testing.T) {
	src := &fakeSource{plans: []plan.Plan{validPlan("p1")}}
	m := NewManager(src, logger.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.RunRefresher(ctx, 5*time.Millisecond)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for src.loads.Load() < 2 {
		select {
		case <-deadline:
			t.Fatal("refresher did not reload")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	<-done
}

func TestFileSource(t *testing.T) {
	m := NewManager(FileSource{Path: "testdata/pricing.yaml"}, logger.NewNop())

	s, err := m.Current(context.Background())
	if err != nil {
		t.Fatalf("Current: %v", err)
	}

	city, ok := s.Plans.Get("plan_city")
	if !ok {
		t.Fatal("plan_city missing")
	}
	if city.Override == nil {
		t.Fatal("expected an override on plan_city")
	}
	if _, ok := city.Override.Rule.(plan.FixedPrice); !ok {
		t.Fatalf("expected FixedPrice, got %T", city.Override.Rule)
	}
	if w, ok := city.Override.Window(plan.TierHourly).Get(); !ok || w != (types.HourWindow{Start: 8, End: 20}) {
		t.Fatalf("unexpected hourly window %v (set=%v)", w, ok)
	}
	if city.Override.Window(plan.TierDaily).IsSet() {
		t.Fatal("daily window must be unset")
	}

	if retired, ok := s.Plans.Get("plan_retired"); !ok || retired.IsActive {
		t.Fatal("inactive plans must be kept in the catalog")
	}
	if err := s.PlanProblem("plan_broken"); !errors.Is(err, ErrInvalidConfiguration) {
		t.Fatalf("expected plan_broken to be flagged, got %v", err)
	}

	if len(s.Rules) != 2 {
		t.Fatalf("expected 2 active rules, got %d", len(s.Rules))
	}
	if len(s.Promotions) != 2 {
		t.Fatalf("expected 2 promotions, got %d", len(s.Promotions))
	}
	for _, p := range s.Promotions {
		if p.ID == "promo_b" && (p.UsageLimit == nil || *p.UsageLimit != 100 || p.UsageCount != 4) {
			t.Fatalf("unexpected usage on promo_b: %+v", p)
		}
	}
}

func TestFileSourceMissingFile(t *testing.T) {
	_, err := FileSource{Path: "testdata/missing.yaml"}.GetPlans(context.Background())
	if err == nil {
		t.Fatal("expected an error for a missing file")
	}
}
