package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is a generic sentinel for missing resources.
	ErrNotFound = errors.New("not found")
	// ErrValidation is a generic sentinel for invalid input (unknown role, tier, etc).
	ErrValidation = errors.New("validation failed")
	// ErrConflict signals a duplicate or competing mutation (pending request exists,
	// metric still referenced).
	ErrConflict = errors.New("conflict")
	// ErrInvalidState signals a mutation against a terminal or incompatible state.
	ErrInvalidState = errors.New("invalid state")
	// ErrPersistence wraps backend write failures surfaced to the caller.
	ErrPersistence = errors.New("persistence failed")
	// ErrUnauthorized is a generic sentinel for auth failures.
	ErrUnauthorized = errors.New("unauthorized")
)

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool { return errors.Is(err, target) }

// Wrap marks err with a sentinel so callers can classify it via Is while
// keeping the original cause in the chain.
func Wrap(err, sentinel error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", sentinel, err)
}
