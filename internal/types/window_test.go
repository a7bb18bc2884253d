package types

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestHourWindowContains(t *testing.T) {
	tests := []struct {
		name string
		w    HourWindow
		hour int
		want bool
	}{
		{"inside plain", HourWindow{8, 20}, 8, true},
		{"end exclusive", HourWindow{8, 20}, 20, false},
		{"before plain", HourWindow{8, 20}, 7, false},
		{"wrap late", HourWindow{22, 2}, 22, true},
		{"wrap 23", HourWindow{22, 2}, 23, true},
		{"wrap midnight", HourWindow{22, 2}, 0, true},
		{"wrap 1", HourWindow{22, 2}, 1, true},
		{"wrap end exclusive", HourWindow{22, 2}, 2, false},
		{"wrap outside", HourWindow{22, 2}, 5, false},
		{"full day", HourWindow{0, 0}, 13, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.w.Contains(tt.hour); got != tt.want {
				t.Errorf("%s.Contains(%d) = %v, want %v", tt.w, tt.hour, got, tt.want)
			}
		})
	}
}

func TestOptionalWindow(t *testing.T) {
	if NoWindow().IsSet() {
		t.Fatal("NoWindow should be unset")
	}
	s, e := 3, 9
	w := WindowFromPtrs(&s, &e)
	got, ok := w.Get()
	if !ok || got.Start != 3 || got.End != 9 {
		t.Fatalf("unexpected window %v %v", got, ok)
	}
	if WindowFromPtrs(&s, nil).IsSet() {
		t.Fatal("half-specified window should be unset")
	}
	ps, pe := w.Ptrs()
	if ps == nil || pe == nil || *ps != 3 || *pe != 9 {
		t.Fatal("Ptrs should round-trip")
	}
}

func TestWholeUnits(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"97.75", 98},
		{"97.5", 98},
		{"97.49", 97},
		{"0.4", 0},
		{"-12.3", 0},
	}
	for _, tt := range tests {
		if got := WholeUnits(decimal.RequireFromString(tt.in)); got != tt.want {
			t.Errorf("WholeUnits(%s) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
