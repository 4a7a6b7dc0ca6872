package domain

import (
	"errors"
	"fmt"
)

// ValidationError rejects malformed input at the boundary of an operation.
// Nothing is repaired; callers fix their input.
type ValidationError struct {
	Subject string
	Reason  string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Subject, e.Reason)
}

func Invalid(subject, format string, args ...any) error {
	return &ValidationError{Subject: subject, Reason: fmt.Sprintf(format, args...)}
}

var (
	// ErrCapacity means the season window cannot hold every round at the
	// requested cadence. No placements are produced.
	ErrCapacity = errors.New("season window too short for required rounds")

	// ErrStaleSnapshot means games changed after the snapshot a batch was
	// generated from. Re-run generation against fresh state.
	ErrStaleSnapshot = errors.New("schedule snapshot is stale")
)
