package services

import (
	"errors"
	"fmt"
)

var (
	// ErrAliasConflict means the alias is already held by another row.
	// Allocate absorbs it; Claim surfaces it for caller-supplied aliases.
	ErrAliasConflict = errors.New("alias already taken")
	// ErrAllocationExhausted means no free alias was found within the attempt or time budget.
	ErrAllocationExhausted = errors.New("alias allocation exhausted")
	// ErrRecordNotFound covers expired, deleted and unknown aliases alike.
	ErrRecordNotFound = errors.New("record not found")
	// ErrStoreUnavailable wraps infrastructure failures of the record store.
	ErrStoreUnavailable = errors.New("record store unavailable")
	// ErrForbidden means the actor may not modify the record.
	ErrForbidden = errors.New("forbidden")
)

// ValidationError reports malformed caller input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// IsValidation reports whether err is, or wraps, a *ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// Unavailable tags err as a store failure for op.
func Unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
}
