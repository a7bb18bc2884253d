package plan

import (
	"context"
	"errors"
	"testing"

	"velo/internal/testutil"
	"velo/internal/types"
)

func TestStoreRoundTrip(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	store := NewStore(db)

	p := basePlan()
	p.Override = &Override{Rule: PercentageReduction{Percent: dec("20")}}
	p.Override.Windows[TierHourly] = types.SomeWindow(22, 6)
	if err := store.Create(ctx, &p); err != nil {
		t.Fatalf("create: %v", err)
	}
	if p.Version != 1 {
		t.Fatalf("expected version 1, got %d", p.Version)
	}

	got, err := store.Get(ctx, p.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Override == nil || got.Override.Rule.Kind() != KindPercentageReduction {
		t.Fatalf("override not stored: %+v", got.Override)
	}
	if w, ok := got.Override.Window(TierHourly).Get(); !ok || w.Start != 22 || w.End != 6 {
		t.Fatalf("unexpected hourly window: %+v", got.Override.Window(TierHourly))
	}
	if got.Override.Window(TierDaily).IsSet() {
		t.Fatal("daily window should stay unset")
	}

	got.Name = "City v2"
	if err := store.Update(ctx, got); err != nil {
		t.Fatalf("update: %v", err)
	}
	stale := p
	stale.Name = "stale"
	if err := store.Update(ctx, &stale); !errors.Is(err, ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict, got %v", err)
	}

	if err := store.SetActive(ctx, p.ID, false); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	all, err := store.ListAll(ctx)
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 1 || all[0].IsActive {
		t.Fatalf("deactivated plan should still be listed as inactive: %+v", all)
	}
	active, err := store.ListActive(ctx)
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if len(active) != 0 {
		t.Fatalf("expected no active plans, got %d", len(active))
	}

	if err := store.SetActive(ctx, "missing", true); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
