package cmd

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/3leaps/ledgerscan/pkg/match"
)

// URI parsing errors
var (
	// ErrInvalidURI indicates the URI could not be parsed.
	ErrInvalidURI = errors.New("invalid URI")

	// ErrUnsupportedProvider indicates the URI scheme is not supported.
	ErrUnsupportedProvider = errors.New("unsupported provider")

	// ErrMissingBucket indicates the URI is missing a bucket name.
	ErrMissingBucket = errors.New("missing bucket name")
)

// ObjectURI is a parsed store location.
//
// Example URIs:
//   - s3://bucket/clients/acme/inbox/
//   - s3://bucket/clients/acme/inbox/INV-*.pdf
//   - file:///srv/ledger
//   - file:///srv/ledger/*.pdf
type ObjectURI struct {
	// Provider is "s3" or "file".
	Provider string

	// Bucket is the S3 bucket, or the root directory for file URIs.
	Bucket string

	// Key is the listing prefix. Always empty for file URIs, whose root is
	// the directory itself.
	Key string

	// Pattern is a leaf-name glob applied to listed files, if any.
	Pattern string
}

// String returns the URI in canonical form.
func (u *ObjectURI) String() string {
	if u.Provider == "file" {
		if u.Pattern != "" {
			return "file://" + filepath.ToSlash(filepath.Join(u.Bucket, u.Pattern))
		}
		return "file://" + filepath.ToSlash(u.Bucket)
	}
	return fmt.Sprintf("%s://%s/%s%s", u.Provider, u.Bucket, u.Key, u.Pattern)
}

// IsPattern reports whether the URI carries a leaf glob.
func (u *ObjectURI) IsPattern() bool {
	return u.Pattern != ""
}

// SameStore reports whether u and other address the same bucket or root.
func (u *ObjectURI) SameStore(other *ObjectURI) bool {
	return u.Provider == other.Provider && u.Bucket == other.Bucket
}

// ParseURI parses a store URI into its components.
//
// Supported formats:
//   - s3://bucket
//   - s3://bucket/prefix/
//   - s3://bucket/prefix/*.pdf
//   - file:///absolute/dir
//   - file://relative/dir/*.pdf
//
// Glob characters may only appear in the last path segment; escaped
// metacharacters (\*) are taken literally.
func ParseURI(uri string) (*ObjectURI, error) {
	if uri == "" {
		return nil, fmt.Errorf("%w: empty URI", ErrInvalidURI)
	}

	// Parse manually: url.Parse treats the ? glob as a query delimiter.
	schemeEnd := strings.Index(uri, "://")
	if schemeEnd == -1 {
		return nil, fmt.Errorf("%w: missing scheme (expected s3://... or file://...)", ErrInvalidURI)
	}

	scheme := strings.ToLower(uri[:schemeEnd])
	remainder := uri[schemeEnd+3:]

	switch scheme {
	case "s3":
		return parseS3(uri, remainder)
	case "file":
		return parseFile(uri, remainder)
	}
	return nil, fmt.Errorf("%w: %s (supported: s3, file)", ErrUnsupportedProvider, scheme)
}

func parseS3(uri, remainder string) (*ObjectURI, error) {
	if remainder == "" {
		return nil, fmt.Errorf("%w: in %s", ErrMissingBucket, uri)
	}

	bucket, key, _ := strings.Cut(remainder, "/")
	if bucket == "" {
		return nil, fmt.Errorf("%w: in %s", ErrMissingBucket, uri)
	}
	if _, err := url.Parse("s3://" + bucket + "/"); err != nil || strings.ContainsAny(bucket, "*?[{") {
		return nil, fmt.Errorf("%w: invalid bucket name %q", ErrInvalidURI, bucket)
	}

	prefix, pattern := match.SplitGlob(key)
	if strings.Contains(pattern, "/") {
		return nil, fmt.Errorf("%w: glob %q must be in the last path segment", ErrInvalidURI, pattern)
	}
	return &ObjectURI{Provider: "s3", Bucket: bucket, Key: prefix, Pattern: pattern}, nil
}

func parseFile(uri, remainder string) (*ObjectURI, error) {
	if remainder == "" {
		return nil, fmt.Errorf("%w: empty path in %s", ErrInvalidURI, uri)
	}

	dir, pattern := match.SplitGlob(remainder)
	if strings.Contains(pattern, "/") {
		return nil, fmt.Errorf("%w: glob %q must be in the last path segment", ErrInvalidURI, pattern)
	}
	if dir == "" {
		dir = "."
	}
	return &ObjectURI{Provider: "file", Bucket: filepath.Clean(filepath.FromSlash(dir)), Pattern: pattern}, nil
}
