// Package manifest loads and validates ledgerscan job manifests.
//
// A job manifest is a YAML or JSON file that names one store, the prefixes
// to inventory, where to persist snapshots, and how to reconcile them with
// an external ID list. Manifests are validated against an embedded JSON
// Schema that rejects unknown properties.
//
// Example manifest (YAML):
//
//	version: "1.0"
//	connection:
//	  provider: s3
//	  bucket: acme-ledger-docs
//	  region: eu-west-1
//	prefixes:
//	  - clients/acme/inbox/
//	  - clients/acme/archive/
//	recent:
//	  window: 24h
//	snapshot:
//	  destination: s3://acme-ledger-snapshots/daily/
//	reconcile:
//	  ids: ./acme-ids.txt
//	  trim_extension: true
//	  includes: ["*.pdf"]
package manifest

import (
	"fmt"
	"time"

	"github.com/3leaps/ledgerscan/pkg/match"
)

// Manifest is a validated job manifest.
type Manifest struct {
	// Schema is an optional JSON Schema reference for editor support.
	Schema string `json:"$schema,omitempty" yaml:"$schema,omitempty"`

	// Version is the manifest schema version. Must be "1.0".
	Version string `json:"version" yaml:"version"`

	Connection ConnectionConfig `json:"connection" yaml:"connection"`

	// Prefixes are the store prefixes to inventory. At least one.
	Prefixes []string `json:"prefixes" yaml:"prefixes"`

	// Delimiter separates key segments. Default: "/".
	Delimiter string `json:"delimiter,omitempty" yaml:"delimiter,omitempty"`

	Listing   ListingConfig   `json:"listing,omitempty" yaml:"listing,omitempty"`
	Recent    RecentConfig    `json:"recent,omitempty" yaml:"recent,omitempty"`
	Snapshot  SnapshotConfig  `json:"snapshot,omitempty" yaml:"snapshot,omitempty"`
	Reconcile ReconcileConfig `json:"reconcile,omitempty" yaml:"reconcile,omitempty"`
}

// ConnectionConfig configures the store connection.
type ConnectionConfig struct {
	// Provider is "s3" or "file".
	Provider string `json:"provider" yaml:"provider"`

	// Bucket is the bucket name, or the root directory for the file
	// provider.
	Bucket string `json:"bucket" yaml:"bucket"`

	Region         string `json:"region,omitempty" yaml:"region,omitempty"`
	Endpoint       string `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
	Profile        string `json:"profile,omitempty" yaml:"profile,omitempty"`
	ForcePathStyle bool   `json:"force_path_style,omitempty" yaml:"force_path_style,omitempty"`
}

// ListingConfig tunes pagination.
type ListingConfig struct {
	// MaxKeys per page. Range: 1-1000. Default: 1000.
	MaxKeys int `json:"max_keys,omitempty" yaml:"max_keys,omitempty"`

	// Concurrency bounds parallel prefix traversals. Range: 1-32. Default: 4.
	Concurrency int `json:"concurrency,omitempty" yaml:"concurrency,omitempty"`

	// RateLimit caps List calls per second per prefix. 0 is unlimited.
	RateLimit float64 `json:"rate_limit,omitempty" yaml:"rate_limit,omitempty"`
}

// RecentConfig configures the recency view.
type RecentConfig struct {
	// Window is a Go duration string ("1h", "24h"). Default: "24h".
	Window string `json:"window,omitempty" yaml:"window,omitempty"`
}

// SnapshotConfig configures snapshot persistence.
type SnapshotConfig struct {
	// Destination is a local directory or an s3://bucket/prefix/ URI.
	// Default: "snapshots".
	Destination string `json:"destination,omitempty" yaml:"destination,omitempty"`

	// Name overrides the per-prefix snapshot file name. Only valid with a
	// single prefix.
	Name string `json:"name,omitempty" yaml:"name,omitempty"`
}

// ReconcileConfig configures comparison against an external ID list.
// Reconciliation is skipped when IDs is empty.
type ReconcileConfig struct {
	// IDs is a path to a file with one recorded ID per line.
	IDs string `json:"ids,omitempty" yaml:"ids,omitempty"`

	// TrimExtension compares names without their final extension.
	TrimExtension bool `json:"trim_extension,omitempty" yaml:"trim_extension,omitempty"`

	// FoldCase compares case-insensitively.
	FoldCase bool `json:"fold_case,omitempty" yaml:"fold_case,omitempty"`

	// Includes and Excludes are leaf-name globs restricting which stored
	// names take part.
	Includes []string `json:"includes,omitempty" yaml:"includes,omitempty"`
	Excludes []string `json:"excludes,omitempty" yaml:"excludes,omitempty"`

	// Filters bound size and modification time.
	Filters *match.FilterConfig `json:"filters,omitempty" yaml:"filters,omitempty"`
}

// Enabled reports whether reconciliation is configured.
func (r ReconcileConfig) Enabled() bool {
	return r.IDs != ""
}

// Default values for optional configuration fields.
const (
	DefaultVersion      = "1.0"
	DefaultDelimiter    = "/"
	DefaultMaxKeys      = 1000
	DefaultConcurrency  = 4
	DefaultRecentWindow = "24h"
	DefaultDestination  = "snapshots"
)

// ApplyDefaults fills in default values for optional fields.
func (m *Manifest) ApplyDefaults() {
	if m.Delimiter == "" {
		m.Delimiter = DefaultDelimiter
	}
	if m.Listing.MaxKeys == 0 {
		m.Listing.MaxKeys = DefaultMaxKeys
	}
	if m.Listing.Concurrency == 0 {
		m.Listing.Concurrency = DefaultConcurrency
	}
	// RateLimit 0 means unlimited.
	if m.Recent.Window == "" {
		m.Recent.Window = DefaultRecentWindow
	}
	if m.Snapshot.Destination == "" {
		m.Snapshot.Destination = DefaultDestination
	}
}

// Duration returns the parsed recency window.
func (r RecentConfig) Duration() (time.Duration, error) {
	w := r.Window
	if w == "" {
		w = DefaultRecentWindow
	}
	d, err := time.ParseDuration(w)
	if err != nil {
		return 0, fmt.Errorf("recent window %q: %w", w, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("recent window %q must be positive", w)
	}
	return d, nil
}
