/*
errors.go - Centralized error taxonomy

PURPOSE:
  All error kinds in one place so the HTTP boundary can map them to
  response codes without inspecting messages.

ERROR CATEGORIES:
  1. NotFound        - Referenced user/question/answer does not exist
  2. Forbidden       - Actor lacks authorization for the transition
  3. InvalidArgument - Malformed vote action or out-of-range input
  4. IOError         - Persistence collaborator failure

PROPAGATION:
  Client-input errors (the first three) surface directly to the caller
  without retry. IOError is surfaced as-is; mutations run inside a store
  transaction so an IOError implies no partial effect.

USAGE:
  Domain packages wrap these sentinels with context:

    if errors.Is(err, gamify.ErrNotFound) { ... }
*/
package gamify

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNotFound is returned when a referenced record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrForbidden is returned when the actor may not perform the
	// requested transition (e.g. a non-author accepting an answer).
	ErrForbidden = errors.New("forbidden")

	// ErrInvalidArgument is returned for malformed client input.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrIO is returned when the persistence collaborator fails.
	ErrIO = errors.New("storage failure")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// NotFoundError identifies which record was missing.
type NotFoundError struct {
	Kind string // "user", "question", "answer"
	ID   string
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("%s %q not found", e.Kind, e.ID) }
func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// ForbiddenError explains which ownership check failed.
type ForbiddenError struct {
	Actor  UserID
	Action string
}

func (e *ForbiddenError) Error() string {
	return fmt.Sprintf("actor %q may not %s", e.Actor, e.Action)
}
func (e *ForbiddenError) Unwrap() error { return ErrForbidden }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound reports whether err indicates a missing record.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsForbidden reports whether err is an authorization failure.
func IsForbidden(err error) bool { return errors.Is(err, ErrForbidden) }

// IsInvalidArgument reports whether err is malformed client input.
func IsInvalidArgument(err error) bool { return errors.Is(err, ErrInvalidArgument) }

// IsClientError reports whether err is the client's fault (no retry).
func IsClientError(err error) bool {
	return IsNotFound(err) || IsForbidden(err) || IsInvalidArgument(err)
}
