package types

import (
	"errors"
	"fmt"
)

// Common store and query errors.
var (
	// ErrNotFound indicates an unknown record or edge id.
	ErrNotFound = errors.New("not found")

	// ErrConflict indicates a concurrent-update version mismatch.
	ErrConflict = errors.New("concurrent update conflict")

	// ErrProviderUnavailable indicates a search backend is unreachable.
	ErrProviderUnavailable = errors.New("search provider unavailable")
)

// ValidationError reports a missing or invalid required field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

// Is allows errors.Is(err, &ValidationError{}) to match wrapped errors.
func (e *ValidationError) Is(target error) bool {
	_, ok := target.(*ValidationError)
	return ok
}

// NotFoundError reports an unknown record or edge id with enough detail for
// the caller to retry correctly.
type NotFoundError struct {
	Kind string // "record" or "relationship"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

func (e *NotFoundError) Is(target error) bool {
	if target == ErrNotFound {
		return true
	}
	_, ok := target.(*NotFoundError)
	return ok
}

// NewRecordNotFound creates a NotFoundError for a record id.
func NewRecordNotFound(id string) *NotFoundError {
	return &NotFoundError{Kind: "record", ID: id}
}

// ConflictError reports a lost compare-and-swap on a record mutation.
type ConflictError struct {
	ID string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("record %q was modified concurrently", e.ID)
}

func (e *ConflictError) Is(target error) bool {
	if target == ErrConflict {
		return true
	}
	_, ok := target.(*ConflictError)
	return ok
}

// ProviderUnavailableError wraps a failure from the lexical or semantic
// search backend. The hybrid merge recovers from one side being down; only
// both sides failing surfaces this to the caller.
type ProviderUnavailableError struct {
	Provider string // "lexical" or "semantic"
	Err      error
}

func (e *ProviderUnavailableError) Error() string {
	return fmt.Sprintf("%s provider unavailable: %v", e.Provider, e.Err)
}

func (e *ProviderUnavailableError) Unwrap() error { return e.Err }

func (e *ProviderUnavailableError) Is(target error) bool {
	if target == ErrProviderUnavailable {
		return true
	}
	_, ok := target.(*ProviderUnavailableError)
	return ok
}
