package inventory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/3leaps/ledgerscan/pkg/sink"
)

// Snapshot is the complete leaf-name set captured by one full traversal.
type Snapshot struct {
	// Names are leaf basenames in the order the store returned them.
	Names []string

	// SourcePrefix is the prefix that was traversed.
	SourcePrefix string

	// CapturedAt is when the traversal started.
	CapturedAt time.Time

	// Pages is the number of pages the traversal consumed.
	Pages int
}

// BuildSnapshot drains c and collects every leaf basename.
//
// If any page fetch fails the partial name set is discarded and the
// cursor's *TraversalError is returned; a snapshot is only ever produced
// from a complete traversal.
func BuildSnapshot(ctx context.Context, c *Cursor, capturedAt time.Time) (*Snapshot, error) {
	req := c.Request()
	delimiter := req.LeafDelimiter()

	var names []string
	for c.Next(ctx) {
		page := c.Page()
		for _, d := range page.Descriptors {
			if name := Basename(d.Key, req.Prefix, delimiter); name != "" {
				names = append(names, name)
			}
		}
	}
	if err := c.Err(); err != nil {
		return nil, err
	}
	if names == nil {
		names = []string{}
	}

	return &Snapshot{
		Names:        names,
		SourcePrefix: req.Prefix,
		CapturedAt:   capturedAt,
		Pages:        c.PagesCompleted(),
	}, nil
}

// Encode renders the snapshot as UTF-8 text, one name per line, each line
// newline-terminated. An empty snapshot encodes to zero bytes. The output
// depends only on Names, so unchanged stores encode identically.
func (s *Snapshot) Encode() []byte {
	var buf bytes.Buffer
	for _, n := range s.Names {
		buf.WriteString(n)
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

// Persist writes the encoded snapshot to dst under name, replacing any
// existing content. Failures are returned as *PersistenceError; the
// snapshot remains usable for a retry.
func (s *Snapshot) Persist(ctx context.Context, dst sink.Sink, name string) error {
	if err := dst.WriteFile(ctx, name, s.Encode()); err != nil {
		return &PersistenceError{Sink: dst.String(), Name: name, Err: err}
	}
	return nil
}

// SnapshotFileName derives a stable file name for a prefix snapshot. Each
// path segment is percent-escaped (including '_' and ':') and segments are
// joined with '_', so "clients/acme/inbox/" gives "clients_acme_inbox.txt"
// while "clients_acme/" gives "clients%5Facme.txt". Distinct prefixes never
// share a name. The bucket root is "root.txt".
func SnapshotFileName(prefix string) string {
	name := strings.TrimSuffix(prefix, "/")
	if name == "" {
		return "root.txt"
	}
	segments := strings.Split(name, "/")
	for i, seg := range segments {
		segments[i] = snapshotNameEscaper.Replace(url.PathEscape(seg))
	}
	name = strings.Join(segments, "_")
	if name == "root" {
		// Keep the literal "root/" prefix apart from the bucket root.
		name = "root%2F"
	}
	return name + ".txt"
}

// snapshotNameEscaper escapes the characters url.PathEscape keeps that are
// either the segment separator or unsafe in file names.
var snapshotNameEscaper = strings.NewReplacer("_", "%5F", ":", "%3A")

// DecodeSnapshot reads a snapshot file written by Encode and returns its
// names verbatim: every newline-terminated line is one name, with no
// trimming and no comment handling. A final line without a newline is kept.
func DecodeSnapshot(r io.Reader) ([]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	if len(data) == 0 {
		return []string{}, nil
	}
	text := strings.TrimSuffix(string(data), "\n")
	return strings.Split(text, "\n"), nil
}
