// README: Validation error that collects every problem of a configuration entity.
package types

import "strings"

// ValidationError collects every problem found in a configuration entity so
// the admin console can show them together.
type ValidationError struct {
	Entity   string
	Problems []string
}

func (e *ValidationError) Error() string {
	return e.Entity + ": " + strings.Join(e.Problems, "; ")
}

func (e *ValidationError) Add(problem string) {
	e.Problems = append(e.Problems, problem)
}

// Err returns nil when no problem was recorded.
func (e *ValidationError) Err() error {
	if len(e.Problems) == 0 {
		return nil
	}
	return e
}
