package output

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/3leaps/ledgerscan/pkg/match"
)

// TableWriter renders records as aligned columns for terminals.
//
// Rows are buffered by the tabwriter and aligned on Close, so Close must
// be called for anything to appear.
type TableWriter struct {
	tw     *tabwriter.Writer
	mu     sync.Mutex
	closed bool
	header bool
}

// NewTableWriter creates a table writer on w.
func NewTableWriter(w io.Writer) *TableWriter {
	return &TableWriter{tw: tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)}
}

func (t *TableWriter) WriteFile(ctx context.Context, f *FileRecord) error {
	return t.row(ctx, "file", f.Name, match.FormatSize(f.Size), f.LastModified.UTC().Format(time.RFC3339), f.Age)
}

func (t *TableWriter) WritePrefix(ctx context.Context, p *PrefixRecord) error {
	return t.row(ctx, "dir", p.Name+"/", "-", "-", "")
}

func (t *TableWriter) WriteError(ctx context.Context, e *ErrorRecord) error {
	return t.row(ctx, "error", e.Prefix, e.Code, fmt.Sprintf("pages=%d", e.PagesCompleted), e.Message)
}

func (t *TableWriter) WriteSummary(ctx context.Context, s *SummaryRecord) error {
	return t.row(ctx, "summary", s.Command, fmt.Sprintf("files=%d", s.Files), fmt.Sprintf("pages=%d", s.Pages), s.DurationHuman)
}

func (t *TableWriter) WriteSnapshot(ctx context.Context, s *SnapshotRecord) error {
	return t.row(ctx, "snapshot", s.Prefix, fmt.Sprintf("names=%d", s.Names), s.CapturedAt.UTC().Format(time.RFC3339), s.Sink+"/"+s.Name)
}

func (t *TableWriter) WriteCount(ctx context.Context, c *CountRecord) error {
	return t.row(ctx, "count", c.Prefix, fmt.Sprintf("%d", c.Count), fmt.Sprintf("pages=%d", c.Pages), "")
}

func (t *TableWriter) WriteReconcile(ctx context.Context, r *ReconcileRecord) error {
	if err := t.row(ctx, "matched", "", fmt.Sprintf("%d", r.Matched), "", ""); err != nil {
		return err
	}
	for _, id := range r.MissingFromStore {
		if err := t.row(ctx, "missing", id, "", "", ""); err != nil {
			return err
		}
	}
	for _, name := range r.UntrackedInStore {
		if err := t.row(ctx, "untracked", name, "", "", ""); err != nil {
			return err
		}
	}
	return nil
}

// Close flushes the aligned table.
func (t *TableWriter) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true
	if err := t.tw.Flush(); err != nil {
		return &WriteError{Op: "flush", Err: err}
	}
	return nil
}

func (t *TableWriter) row(ctx context.Context, cols ...string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return ErrWriterClosed
	}
	if !t.header {
		t.header = true
		if _, err := fmt.Fprintln(t.tw, "KIND\tNAME\tSIZE\tMODIFIED\tDETAIL"); err != nil {
			return &WriteError{Op: "write", Err: err}
		}
	}
	if _, err := fmt.Fprintln(t.tw, strings.Join(cols, "\t")); err != nil {
		return &WriteError{Op: "write", Err: err}
	}
	return nil
}

var _ Writer = (*TableWriter)(nil)
