// Package sink persists whole-file content with overwrite semantics.
//
// A Sink never appends: each WriteFile fully replaces any prior content at
// the name, and readers never observe a partially written file.
package sink

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/3leaps/ledgerscan/pkg/provider"
)

// Sink writes named content to durable storage.
type Sink interface {
	// WriteFile replaces the content stored under name with data.
	WriteFile(ctx context.Context, name string, data []byte) error

	// String describes the destination for logs and errors.
	String() string
}

// ErrInvalidName is returned for empty names or names escaping the sink root.
var ErrInvalidName = errors.New("invalid sink name")

// FileSink writes files under a local directory.
type FileSink struct {
	Dir string
}

var _ Sink = (*FileSink)(nil)

// NewFileSink returns a FileSink rooted at dir.
func NewFileSink(dir string) *FileSink {
	return &FileSink{Dir: filepath.Clean(dir)}
}

// WriteFile writes data to a temp file in the target directory and renames
// it over name.
func (s *FileSink) WriteFile(ctx context.Context, name string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	clean, err := cleanName(name)
	if err != nil {
		return err
	}

	full := filepath.Join(s.Dir, filepath.FromSlash(clean))
	dir := filepath.Dir(full)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create sink directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".ledgerscan-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpName, full); err != nil {
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}

func (s *FileSink) String() string {
	return s.Dir
}

// ObjectSink writes objects through a provider that supports PutObject.
//
// The destination must differ from the store being inventoried.
type ObjectSink struct {
	putter provider.ObjectPutter
	prefix string
	label  string
}

var _ Sink = (*ObjectSink)(nil)

// NewObjectSink returns a sink writing keys prefix+name through putter.
// label describes the destination (e.g., "s3://ledgers/snapshots/").
func NewObjectSink(putter provider.ObjectPutter, prefix, label string) *ObjectSink {
	return &ObjectSink{putter: putter, prefix: prefix, label: label}
}

// WriteFile uploads data as a single object, replacing any existing one.
func (s *ObjectSink) WriteFile(ctx context.Context, name string, data []byte) error {
	clean, err := cleanName(name)
	if err != nil {
		return err
	}
	return s.putter.PutObject(ctx, s.prefix+clean, bytes.NewReader(data), int64(len(data)))
}

func (s *ObjectSink) String() string {
	if s.label != "" {
		return s.label
	}
	return s.prefix
}

func cleanName(name string) (string, error) {
	name = strings.TrimSpace(strings.ReplaceAll(name, "\\", "/"))
	if name == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidName)
	}
	clean := path.Clean("/" + name)
	clean = strings.TrimPrefix(clean, "/")
	if clean == "" || clean == "." {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if clean != strings.TrimPrefix(name, "/") {
		return "", fmt.Errorf("%w: %q is not a clean relative path", ErrInvalidName, name)
	}
	return clean, nil
}
