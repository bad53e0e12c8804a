// Package inventory enumerates, partitions, filters, counts and snapshots the
// keys stored under a prefix of a paginated object store.
//
// Every traversal is driven by a Cursor, a lazy and finite sequence of pages
// obtained one List call at a time. Pages within a cursor are strictly
// sequential because each request depends on the previous continuation
// token; independent cursors share no state and may run concurrently.
package inventory

import (
	"fmt"
	"time"

	"github.com/3leaps/ledgerscan/pkg/provider"
)

// DefaultDelimiter separates key segments.
const DefaultDelimiter = "/"

// MaxKeysPerPage is the largest page size an S3-compatible store accepts.
const MaxKeysPerPage = 1000

// ObjectDescriptor is one object entry returned by the store.
type ObjectDescriptor = provider.ObjectSummary

// Page is the result of a single store List call.
//
// Pages are consumed and discarded; callers must not retain them across
// Next calls if they want bounded memory.
type Page struct {
	// Index is the zero-based position of this page in the traversal.
	Index int

	// Descriptors are the object entries in store order.
	Descriptors []ObjectDescriptor

	// CommonPrefixes are rolled-up child prefixes, each ending with the
	// delimiter. Empty for non-delimited traversals.
	CommonPrefixes []string

	// ContinuationToken resumes the traversal; empty on the final page.
	ContinuationToken string

	// IsTruncated reports whether the store has more pages.
	IsTruncated bool
}

// ListingRequest scopes one traversal.
type ListingRequest struct {
	// Prefix restricts keys to those starting with this value.
	Prefix string

	// Delimiter groups keys into common prefixes. Empty means a flat,
	// recursive traversal.
	Delimiter string

	// NameDelimiter splits keys into leaf names on flat traversals, where
	// Delimiter is empty. Empty means DefaultDelimiter.
	NameDelimiter string

	// MaxKeysPerPage bounds each page. Zero uses the store default.
	MaxKeysPerPage int

	// Window is the recency window for consumers that select recent
	// files. The cursor itself ignores it.
	Window time.Duration
}

// Validate checks the request bounds.
func (r ListingRequest) Validate() error {
	if r.MaxKeysPerPage < 0 || r.MaxKeysPerPage > MaxKeysPerPage {
		return fmt.Errorf("max keys per page must be between 0 and %d, got %d", MaxKeysPerPage, r.MaxKeysPerPage)
	}
	if r.Window < 0 {
		return fmt.Errorf("recency window must not be negative, got %s", r.Window)
	}
	return nil
}

func (r ListingRequest) listOptions(token string) provider.ListOptions {
	return provider.ListOptions{
		Prefix:            r.Prefix,
		Delimiter:         r.Delimiter,
		MaxKeys:           r.MaxKeysPerPage,
		ContinuationToken: token,
	}
}

// LeafDelimiter is the separator used to derive leaf names: Delimiter when
// grouping, otherwise NameDelimiter, otherwise DefaultDelimiter.
func (r ListingRequest) LeafDelimiter() string {
	switch {
	case r.Delimiter != "":
		return r.Delimiter
	case r.NameDelimiter != "":
		return r.NameDelimiter
	default:
		return DefaultDelimiter
	}
}
