// README: Usage counter tests (run with -race).
package promotion

import (
	"context"
	"sync"
	"testing"

	"velo/internal/testutil"
	"velo/internal/types"
)

// consumeConcurrently fires attempts TryConsume calls at once and returns how
// many succeeded.
func consumeConcurrently(t *testing.T, c Counter, p Promotion, attempts int) int {
	t.Helper()
	ctx := context.Background()

	var wg sync.WaitGroup
	results := make(chan bool, attempts)
	errs := make(chan error, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := c.TryConsume(ctx, p)
			if err != nil {
				errs <- err
				return
			}
			results <- ok
		}()
	}

	wg.Wait()
	close(results)
	close(errs)

	for err := range errs {
		t.Fatalf("unexpected error: %v", err)
	}
	success := 0
	for ok := range results {
		if ok {
			success++
		}
	}
	return success
}

func TestMemoryCounterSingleUse(t *testing.T) {
	p := promo("promo_once", pct(10))
	p.UsageLimit = limit(1)

	c := NewMemoryCounter()
	if got := consumeConcurrently(t, c, p, 32); got != 1 {
		t.Fatalf("expected exactly 1 success, got %d", got)
	}
	if n, _ := c.Count(p.ID); n != 1 {
		t.Fatalf("expected count 1, got %d", n)
	}
}

func TestMemoryCounterSeedsFromUsageCount(t *testing.T) {
	p := promo("promo_seeded", pct(10))
	p.UsageLimit, p.UsageCount = limit(5), 3

	c := NewMemoryCounter()
	if got := consumeConcurrently(t, c, p, 10); got != 2 {
		t.Fatalf("expected 2 successes, got %d", got)
	}
}

func TestMemoryCounterUnlimited(t *testing.T) {
	p := promo("promo_unlimited", pct(10))

	c := NewMemoryCounter()
	if got := consumeConcurrently(t, c, p, 20); got != 20 {
		t.Fatalf("expected 20 successes, got %d", got)
	}
	if _, ok := c.Count("never_used"); ok {
		t.Fatal("unused promotion must not have a counter")
	}
}

func TestRedisCounterSingleUse(t *testing.T) {
	rdb := testutil.Redis(t)
	c := NewRedisCounter(rdb)

	p := promo("promo_redis", pct(10))
	p.UsageLimit = limit(1)

	if got := consumeConcurrently(t, c, p, 16); got != 1 {
		t.Fatalf("expected exactly 1 success, got %d", got)
	}
	n, ok, err := c.Usage(context.Background(), p.ID)
	if err != nil || !ok || n != 1 {
		t.Fatalf("expected usage 1, got %d (ok=%v, err=%v)", n, ok, err)
	}
}

func TestRedisCounterRespectsSeed(t *testing.T) {
	rdb := testutil.Redis(t)
	c := NewRedisCounter(rdb)

	p := promo("promo_redis_seed", pct(10))
	p.UsageLimit, p.UsageCount = limit(5), 5

	ok, err := c.TryConsume(context.Background(), p)
	if err != nil {
		t.Fatalf("TryConsume: %v", err)
	}
	if ok {
		t.Fatal("exhausted promotion must not be consumed")
	}
}

func TestPostgresCounterSingleUse(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()

	if _, err := db.Exec(ctx, `
		INSERT INTO pricing_plans (id, name, hourly_rate, daily_rate, weekly_rate, monthly_rate)
		VALUES ($1, 'City', 500, 3000, 15000, 50000)`, string(planID)); err != nil {
		t.Fatalf("seed plan: %v", err)
	}

	store := NewStore(db)
	p := promo("", pct(10))
	p.UsageLimit = limit(1)
	if err := store.Create(ctx, &p); err != nil {
		t.Fatalf("create promotion: %v", err)
	}

	c := NewPostgresCounter(db)
	if got := consumeConcurrently(t, c, p, 16); got != 1 {
		t.Fatalf("expected exactly 1 success, got %d", got)
	}

	stored, err := store.Get(ctx, p.ID)
	if err != nil {
		t.Fatalf("get promotion: %v", err)
	}
	if stored.UsageCount != 1 {
		t.Fatalf("expected usage_count 1, got %d", stored.UsageCount)
	}

	active, err := store.ListActive(ctx)
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	for _, a := range active {
		if a.ID == p.ID {
			t.Fatal("exhausted promotion must not be listed as active")
		}
	}
}

func TestStoreRoundTrip(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()

	if _, err := db.Exec(ctx, `
		INSERT INTO pricing_plans (id, name, hourly_rate, daily_rate, weekly_rate, monthly_rate)
		VALUES ($1, 'City', 500, 3000, 15000, 50000)`, string(planID)); err != nil {
		t.Fatalf("seed plan: %v", err)
	}

	store := NewStore(db)
	p := promo("promo_roundtrip", fixed(300))
	if err := store.Create(ctx, &p); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := store.Get(ctx, p.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Discount.Kind() != KindFixedAmount || !got.Discount.Value().Equal(fixed(300).Value()) {
		t.Fatalf("unexpected discount: %s %s", got.Discount.Kind(), got.Discount.Value())
	}
	if !got.AppliesTo(planID) {
		t.Fatal("expected plan link to be stored")
	}

	got.Discount = pct(15)
	if err := store.Update(ctx, got); err != nil {
		t.Fatalf("update: %v", err)
	}
	if _, err := store.Get(ctx, types.ID("missing")); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
