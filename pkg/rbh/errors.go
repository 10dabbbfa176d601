package rbh

import (
	"errors"
	"fmt"

	"github.com/rbh-project/rbh/pkg/rbh/iterator"
)

// Error represents a domain error from backend and filter operations.
//
// These are classified errors (entry not found, malformed filter,
// transient backend condition, ...) as opposed to plain infrastructure
// errors. Front-ends translate error kinds to exit codes or protocol
// status values; the Message carries driver-supplied detail verbatim.
type Error struct {
	// Kind is the error category
	Kind ErrorKind

	// Message is a human-readable error description
	Message string

	// Backend names the backend that reported the error (if applicable)
	Backend string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Backend != "" {
		return e.Backend + ": " + e.Message
	}
	return e.Message
}

// ErrorKind represents the category of a backend error.
type ErrorKind int

const (
	// KindInvalidInput indicates a malformed URI, malformed filter, or
	// bad argument (e.g. a zero chunk size)
	KindInvalidInput ErrorKind = iota

	// KindNoSuchEntry indicates the queried entry is absent
	KindNoSuchEntry

	// KindNoMoreData indicates an exhausted iterator (distinct from failure)
	KindNoMoreData

	// KindOutOfMemory indicates an allocation or buffering failure
	KindOutOfMemory

	// KindRetryLater indicates a transient backend condition; the caller
	// may resubmit the exact same request
	KindRetryLater

	// KindBackendError indicates any other driver-reported failure,
	// accompanied by a captured message
	KindBackendError

	// KindBackendUnavailable indicates a missing or unloadable backend plugin
	KindBackendUnavailable
)

// ============================================================================
// Error Factory Functions
// ============================================================================

// NewInvalidInputError creates an Error for malformed arguments.
func NewInvalidInputError(format string, args ...any) *Error {
	return &Error{
		Kind:    KindInvalidInput,
		Message: fmt.Sprintf(format, args...),
	}
}

// NewNoSuchEntryError creates an Error for absent entries.
func NewNoSuchEntryError() *Error {
	return &Error{
		Kind:    KindNoSuchEntry,
		Message: "no such entry",
	}
}

// NewRetryLaterError creates an Error for transient backend conditions.
// The caller may resubmit the same request unchanged.
func NewRetryLaterError(backend, reason string) *Error {
	return &Error{
		Kind:    KindRetryLater,
		Message: "transient failure, retry later: " + reason,
		Backend: backend,
	}
}

// NewBackendError creates an Error wrapping a driver-reported failure.
// The driver message is captured verbatim.
func NewBackendError(backend string, cause error) *Error {
	return &Error{
		Kind:    KindBackendError,
		Message: cause.Error(),
		Backend: backend,
	}
}

// NewBackendUnavailableError creates an Error for a scheme with no usable
// backend implementation.
func NewBackendUnavailableError(scheme string, reason string) *Error {
	return &Error{
		Kind:    KindBackendUnavailable,
		Message: fmt.Sprintf("backend %q unavailable: %s", scheme, reason),
	}
}

// ============================================================================
// Error Predicates
// ============================================================================

// IsNoMoreData reports whether err signals iterator exhaustion.
//
// Exhaustion travels either as the iterator package's sentinel or as an
// Error with KindNoMoreData; both mean "no failure, nothing left".
func IsNoMoreData(err error) bool {
	if errors.Is(err, iterator.ErrNoMoreData) {
		return true
	}
	return hasKind(err, KindNoMoreData)
}

// IsNoSuchEntry reports whether err is an Error with KindNoSuchEntry.
func IsNoSuchEntry(err error) bool {
	return hasKind(err, KindNoSuchEntry)
}

// IsInvalidInput reports whether err is an Error with KindInvalidInput.
// Iterator combinator argument errors count as invalid input too.
func IsInvalidInput(err error) bool {
	if errors.Is(err, iterator.ErrInvalidArgument) {
		return true
	}
	return hasKind(err, KindInvalidInput)
}

// IsRetryLater reports whether err is an Error with KindRetryLater.
func IsRetryLater(err error) bool {
	return hasKind(err, KindRetryLater)
}

// IsBackendUnavailable reports whether err is an Error with KindBackendUnavailable.
func IsBackendUnavailable(err error) bool {
	return hasKind(err, KindBackendUnavailable)
}

func hasKind(err error, kind ErrorKind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
