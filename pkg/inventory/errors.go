package inventory

import (
	"errors"
	"fmt"
)

// Sentinel errors for inventory operations. TraversalError and
// PersistenceError both match their sentinel through errors.Is.
var (
	// ErrStoreUnavailable indicates the store failed before any page returned.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrStoreRequestFailed indicates a page fetch failed mid-traversal;
	// pages already received do not form a complete inventory.
	ErrStoreRequestFailed = errors.New("store request failed")

	// ErrPersistenceFailed indicates a complete snapshot could not be written.
	ErrPersistenceFailed = errors.New("persistence failed")
)

// TraversalError reports a failed page fetch.
type TraversalError struct {
	// Kind is ErrStoreUnavailable or ErrStoreRequestFailed.
	Kind error

	// Prefix is the traversal prefix.
	Prefix string

	// Page is the zero-based index of the page that failed.
	Page int

	// PagesCompleted is the number of pages received before the failure.
	PagesCompleted int

	// Err is the underlying store error.
	Err error
}

func newTraversalError(prefix string, pagesCompleted int, err error) *TraversalError {
	kind := ErrStoreRequestFailed
	if pagesCompleted == 0 {
		kind = ErrStoreUnavailable
	}
	return &TraversalError{
		Kind:           kind,
		Prefix:         prefix,
		Page:           pagesCompleted,
		PagesCompleted: pagesCompleted,
		Err:            err,
	}
}

// Error implements the error interface.
func (e *TraversalError) Error() string {
	return fmt.Sprintf("%v: prefix %q: page %d (%d pages completed): %v",
		e.Kind, e.Prefix, e.Page, e.PagesCompleted, e.Err)
}

// Unwrap exposes both the kind sentinel and the underlying store error.
func (e *TraversalError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

// PersistenceError reports a failed snapshot write after a complete
// traversal. The snapshot is still valid and the write can be retried
// without listing the store again.
type PersistenceError struct {
	// Sink describes the destination (directory, bucket URI).
	Sink string

	// Name is the snapshot name within the sink.
	Name string

	// Err is the underlying write error.
	Err error
}

// Error implements the error interface.
func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%v: %s/%s: %v", ErrPersistenceFailed, e.Sink, e.Name, e.Err)
}

// Unwrap exposes ErrPersistenceFailed and the underlying write error.
func (e *PersistenceError) Unwrap() []error {
	return []error{ErrPersistenceFailed, e.Err}
}

// IsStoreUnavailable reports whether err is a failure before the first page.
func IsStoreUnavailable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}

// IsStoreRequestFailed reports whether err is a mid-traversal failure.
func IsStoreRequestFailed(err error) bool {
	return errors.Is(err, ErrStoreRequestFailed)
}

// IsPersistenceFailed reports whether err is a snapshot write failure.
func IsPersistenceFailed(err error) bool {
	return errors.Is(err, ErrPersistenceFailed)
}
