package core

import (
	"fmt"
)

// ValidateIssue validates an Issue before it is mapped.
//
// Validation rules:
//   - the issue must not be nil
//   - ID must be present
//
// NOT validated (passed through as the tracker sent them):
//   - dates, done ratio, privacy flag
//   - nested references
func ValidateIssue(issue *Issue) error {
	if issue == nil {
		return fmt.Errorf("%w: issue is nil", ErrMapping)
	}
	if issue.ID.IsZero() {
		return fmt.Errorf("%w: %w", ErrMapping, ErrMissingID)
	}
	return nil
}

// ValidateVector checks that a vector has the expected dimension.
func ValidateVector(vector []float32, dimension int) error {
	if len(vector) != dimension {
		return fmt.Errorf("vector has %d components, expected %d", len(vector), dimension)
	}
	return nil
}
