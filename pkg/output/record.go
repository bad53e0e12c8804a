// Package output renders inventory results as JSONL records or tables.
//
// Each JSONL line is a typed envelope whose Data payload depends on the
// record type. Lines are self-contained and can be parsed independently.
package output

import (
	"encoding/json"
	"errors"
	"time"
)

// Record type constants follow the pattern ledgerscan.<type>.v<version>.
const (
	// TypeFile identifies a leaf file in a listing or recency view.
	TypeFile = "ledgerscan.file.v1"

	// TypePrefix identifies a subdirectory in a one-level listing.
	TypePrefix = "ledgerscan.prefix.v1"

	// TypeError identifies error records.
	TypeError = "ledgerscan.error.v1"

	// TypeSummary identifies final summary records.
	TypeSummary = "ledgerscan.summary.v1"

	// TypeSnapshot identifies a persisted snapshot.
	TypeSnapshot = "ledgerscan.snapshot.v1"

	// TypeCount identifies a per-prefix count.
	TypeCount = "ledgerscan.count.v1"

	// TypeReconcile identifies a reconciliation result.
	TypeReconcile = "ledgerscan.reconcile.v1"
)

// Record is the envelope for all JSONL output.
type Record struct {
	// Type identifies the record type (e.g., "ledgerscan.file.v1").
	Type string `json:"type"`

	// TS is the timestamp when the record was created.
	TS time.Time `json:"ts"`

	// JobID correlates every record emitted by one command run.
	JobID string `json:"job_id"`

	// Provider identifies the storage provider (e.g., "s3", "file").
	Provider string `json:"provider"`

	// Data contains the type-specific payload as raw JSON.
	Data json.RawMessage `json:"data"`
}

// FileRecord is the data payload for a leaf file.
type FileRecord struct {
	Key          string    `json:"key"`
	Name         string    `json:"name"`
	Size         int64     `json:"size"`
	ETag         string    `json:"etag,omitempty"`
	LastModified time.Time `json:"last_modified"`

	// Age is set for recency views: time between LastModified and the
	// evaluation instant.
	Age string `json:"age,omitempty"`
}

// PrefixRecord is the data payload for a subdirectory.
type PrefixRecord struct {
	// Parent is the listed prefix.
	Parent string `json:"parent"`

	// Name is the child name without the trailing delimiter.
	Name string `json:"name"`
}

// ErrorRecord is the data payload for errors.
//
// Errors are emitted as records so multi-prefix commands can report a
// failed prefix and continue with the rest.
type ErrorRecord struct {
	// Code is a machine-readable error code.
	Code string `json:"code"`

	// Message is a human-readable error description.
	Message string `json:"message"`

	// Prefix is the prefix being traversed when the error occurred.
	Prefix string `json:"prefix,omitempty"`

	// PagesCompleted is how far the traversal got before failing.
	PagesCompleted int `json:"pages_completed,omitempty"`

	// Details contains additional error context.
	Details any `json:"details,omitempty"`
}

// Error codes for ErrorRecord.
const (
	ErrCodeAccessDenied       = "ACCESS_DENIED"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeThrottled          = "THROTTLED"
	ErrCodeStoreUnavailable   = "STORE_UNAVAILABLE"
	ErrCodeStoreRequestFailed = "STORE_REQUEST_FAILED"
	ErrCodePersistenceFailed  = "PERSISTENCE_FAILED"
	ErrCodeInternal           = "INTERNAL"
)

// SummaryRecord is the data payload for final summaries.
type SummaryRecord struct {
	// Command is the subcommand that produced the run (ls, recent, ...).
	Command string `json:"command"`

	Files          int64 `json:"files"`
	Subdirectories int64 `json:"subdirectories,omitempty"`
	Pages          int   `json:"pages"`
	Errors         int64 `json:"errors"`

	// Duration is the total run duration.
	Duration time.Duration `json:"duration_ns"`

	// DurationHuman is a human-readable duration string.
	DurationHuman string `json:"duration"`

	Prefixes []string `json:"prefixes,omitempty"`
}

// SnapshotRecord is the data payload for a persisted snapshot.
type SnapshotRecord struct {
	Prefix     string    `json:"prefix"`
	Sink       string    `json:"sink"`
	Name       string    `json:"name"`
	Names      int       `json:"names"`
	Bytes      int       `json:"bytes"`
	Pages      int       `json:"pages"`
	CapturedAt time.Time `json:"captured_at"`
}

// CountRecord is the data payload for one counted prefix.
type CountRecord struct {
	Prefix string `json:"prefix"`
	Count  int64  `json:"count"`
	Pages  int    `json:"pages"`
}

// ReconcileRecord is the data payload for a reconciliation result.
type ReconcileRecord struct {
	Matched          int      `json:"matched"`
	MissingFromStore []string `json:"missing_from_store"`
	UntrackedInStore []string `json:"untracked_in_store"`
}

// Writer errors.
var (
	// ErrWriterClosed is returned when writing to a closed writer.
	ErrWriterClosed = errors.New("writer is closed")
)

// WriteError wraps errors that occur during write operations.
type WriteError struct {
	Op  string // Operation that failed (e.g., "marshal_data", "write")
	Err error  // Underlying error
}

func (e *WriteError) Error() string {
	return "output: " + e.Op + ": " + e.Err.Error()
}

func (e *WriteError) Unwrap() error {
	return e.Err
}
