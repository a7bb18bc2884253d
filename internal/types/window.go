// README: Hour-of-day windows shared by dynamic rules and overtime overrides.
package types

import "fmt"

// HourWindow is the half-open hour range [Start, End). Start > End wraps past
// midnight; Start == End covers the whole day.
type HourWindow struct {
	Start int
	End   int
}

func (w HourWindow) Valid() bool {
	return w.Start >= 0 && w.Start <= 23 && w.End >= 0 && w.End <= 23
}

func (w HourWindow) Contains(hour int) bool {
	switch {
	case w.Start == w.End:
		return true
	case w.Start < w.End:
		return hour >= w.Start && hour < w.End
	default:
		return hour >= w.Start || hour < w.End
	}
}

func (w HourWindow) String() string {
	return fmt.Sprintf("[%02d,%02d)", w.Start, w.End)
}

// OptionalWindow is either no window or exactly one HourWindow.
type OptionalWindow struct {
	w   HourWindow
	set bool
}

func SomeWindow(start, end int) OptionalWindow {
	return OptionalWindow{w: HourWindow{Start: start, End: end}, set: true}
}

func NoWindow() OptionalWindow {
	return OptionalWindow{}
}

// WindowFromPtrs builds an OptionalWindow from nullable columns; both bounds
// must be present for the window to be set.
func WindowFromPtrs(start, end *int) OptionalWindow {
	if start == nil || end == nil {
		return NoWindow()
	}
	return SomeWindow(*start, *end)
}

func (o OptionalWindow) Get() (HourWindow, bool) {
	return o.w, o.set
}

func (o OptionalWindow) IsSet() bool {
	return o.set
}

// Ptrs is the inverse of WindowFromPtrs, used when writing nullable columns.
func (o OptionalWindow) Ptrs() (*int, *int) {
	if !o.set {
		return nil, nil
	}
	s, e := o.w.Start, o.w.End
	return &s, &e
}
