package rule

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"velo/internal/types"
)

func weekday(d time.Weekday) *time.Weekday { return &d }

func mult(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// 2026-03-06 is a Friday.
func friday(hour int) time.Time {
	return time.Date(2026, 3, 6, hour, 0, 0, 0, time.UTC)
}

func TestSelectRule_FridayEvening(t *testing.T) {
	rules := []Rule{{
		ID:         "friday-evening",
		DayOfWeek:  weekday(time.Friday),
		Window:     types.SomeWindow(18, 23),
		Multiplier: mult("1.5"),
		IsActive:   true,
		Priority:   10,
	}}

	got, ok := SelectRule(rules, friday(19), time.UTC)
	if !ok || got.ID != "friday-evening" {
		t.Fatalf("expected friday-evening, got %v %v", got.ID, ok)
	}
	if _, ok := SelectRule(rules, friday(23), time.UTC); ok {
		t.Error("23:00 is outside [18,23)")
	}
	if _, ok := SelectRule(rules, friday(19).AddDate(0, 0, 1), time.UTC); ok {
		t.Error("saturday should not match")
	}
}

func TestSelectRule_MidnightWrap(t *testing.T) {
	rules := []Rule{{ID: "night", Window: types.SomeWindow(22, 2), Multiplier: mult("1.2"), IsActive: true}}
	for _, h := range []int{22, 23, 0, 1} {
		if _, ok := SelectRule(rules, friday(h), time.UTC); !ok {
			t.Errorf("hour %d should match [22,2)", h)
		}
	}
	for _, h := range []int{2, 5, 12, 21} {
		if _, ok := SelectRule(rules, friday(h), time.UTC); ok {
			t.Errorf("hour %d should not match [22,2)", h)
		}
	}
}

func TestSelectRule_TieBreaks(t *testing.T) {
	allDay := Rule{ID: "a-all", Multiplier: mult("1.1"), IsActive: true, Priority: 5}
	windowOnly := Rule{ID: "b-window", Window: types.SomeWindow(18, 23), Multiplier: mult("1.2"), IsActive: true, Priority: 5}
	dayOnly := Rule{ID: "c-day", DayOfWeek: weekday(time.Friday), Multiplier: mult("1.3"), IsActive: true, Priority: 5}
	both := Rule{ID: "d-both", DayOfWeek: weekday(time.Friday), Window: types.SomeWindow(18, 23), Multiplier: mult("1.4"), IsActive: true, Priority: 5}

	tests := []struct {
		name  string
		rules []Rule
		want  types.ID
	}{
		{"day and window beats all", []Rule{allDay, windowOnly, dayOnly, both}, "d-both"},
		{"day beats window", []Rule{allDay, windowOnly, dayOnly}, "c-day"},
		{"window beats all-day", []Rule{allDay, windowOnly}, "b-window"},
		{"smallest id on full tie", []Rule{
			{ID: "z", Multiplier: mult("2"), IsActive: true, Priority: 5},
			{ID: "m", Multiplier: mult("3"), IsActive: true, Priority: 5},
		}, "m"},
		{"priority beats specificity", []Rule{both, {ID: "zz", Multiplier: mult("1.9"), IsActive: true, Priority: 6}}, "zz"},
		{"inactive ignored", []Rule{allDay, {ID: "off", Multiplier: mult("9"), Priority: 99}}, "a-all"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := SelectRule(tt.rules, friday(19), time.UTC)
			if !ok || got.ID != tt.want {
				t.Errorf("SelectRule() = %q, %v; want %q", got.ID, ok, tt.want)
			}
		})
	}
}

func TestSelectRule_OrderIndependent(t *testing.T) {
	rules := []Rule{
		{ID: "r3", Multiplier: mult("1"), IsActive: true, Priority: 1},
		{ID: "r1", Multiplier: mult("1"), IsActive: true, Priority: 1},
		{ID: "r2", Multiplier: mult("1"), IsActive: true, Priority: 1},
	}
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 20; i++ {
		rng.Shuffle(len(rules), func(a, b int) { rules[a], rules[b] = rules[b], rules[a] })
		if got, _ := SelectRule(rules, friday(10), time.UTC); got.ID != "r1" {
			t.Fatalf("iteration %d: got %s", i, got.ID)
		}
	}
}

// No lower-priority match is ever chosen over a higher-priority one.
func TestSelectRule_PriorityDominance(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for iter := 0; iter < 500; iter++ {
		rules := make([]Rule, 1+rng.Intn(12))
		for i := range rules {
			r := Rule{
				ID:         types.ID(fmt.Sprintf("r%02d", rng.Intn(100))),
				Multiplier: mult("1.5"),
				IsActive:   rng.Intn(4) != 0,
				Priority:   rng.Intn(5),
			}
			if rng.Intn(2) == 0 {
				r.DayOfWeek = weekday(time.Weekday(rng.Intn(7)))
			}
			if rng.Intn(2) == 0 {
				r.Window = types.SomeWindow(rng.Intn(24), rng.Intn(24))
			}
			rules[i] = r
		}
		ts := time.Date(2026, 3, 1+rng.Intn(7), rng.Intn(24), 0, 0, 0, time.UTC)

		got, ok := SelectRule(rules, ts, time.UTC)
		for _, r := range rules {
			if !r.Matches(ts) {
				continue
			}
			if !ok {
				t.Fatalf("iteration %d: rule %s matches but nothing selected", iter, r.ID)
			}
			if r.Priority > got.Priority {
				t.Fatalf("iteration %d: selected %s (priority %d) over %s (priority %d)",
					iter, got.ID, got.Priority, r.ID, r.Priority)
			}
		}
	}
}

func TestSelectRule_Location(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*3600)
	rules := []Rule{{ID: "morning", Window: types.SomeWindow(6, 9), Multiplier: mult("1.3"), IsActive: true}}
	// 12:00 UTC is 07:00 at UTC-5.
	if _, ok := SelectRule(rules, friday(12), loc); !ok {
		t.Error("expected match in local time")
	}
	if _, ok := SelectRule(rules, friday(12), time.UTC); ok {
		t.Error("unexpected match in UTC")
	}
}

func TestValidate(t *testing.T) {
	bad := []Rule{
		{ID: "zero", Name: "zero", Multiplier: decimal.Zero},
		{ID: "neg", Name: "neg", Multiplier: mult("-1")},
		{ID: "day", Name: "day", Multiplier: mult("1"), DayOfWeek: weekday(7)},
		{ID: "win", Name: "win", Multiplier: mult("1"), Window: types.SomeWindow(-1, 3)},
		{ID: "noname", Multiplier: mult("1")},
	}
	for _, r := range bad {
		if err := r.Validate(); err == nil {
			t.Errorf("rule %s: expected validation error", r.ID)
		}
	}
	ok := Rule{ID: "ok", Name: "ok", Multiplier: mult("0.8"), DayOfWeek: weekday(time.Sunday), Window: types.SomeWindow(22, 2)}
	if err := ok.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
