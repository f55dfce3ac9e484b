package source

import (
	"errors"
	"fmt"

	"github.com/poiesic/issueindex/core"
)

var (
	// ErrBaseURLRequired is returned when the client has no tracker URL.
	ErrBaseURLRequired = errors.New("source base URL is required")

	// ErrInvalidLimit is returned when a page size is not positive.
	ErrInvalidLimit = errors.New("limit must be greater than 0")

	// ErrInvalidOffset is returned when an offset is negative.
	ErrInvalidOffset = errors.New("offset must not be negative")
)

// RecordError is a single record of a page that could not be decoded. It
// matches core.ErrMapping so the pipeline skips the record and keeps going.
type RecordError struct {
	ID  core.ID
	Err error
}

func (e *RecordError) Error() string {
	if e.ID.IsZero() {
		return fmt.Sprintf("undecodable issue: %v", e.Err)
	}
	return fmt.Sprintf("undecodable issue %s: %v", e.ID, e.Err)
}

func (e *RecordError) Unwrap() []error {
	return []error{core.ErrMapping, core.ErrDecode, e.Err}
}
