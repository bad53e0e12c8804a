package output

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"
)

// Writer emits inventory records.
//
// Implementations must be safe for concurrent use. Each Write* method
// emits one complete record.
type Writer interface {
	WriteFile(ctx context.Context, f *FileRecord) error
	WritePrefix(ctx context.Context, p *PrefixRecord) error
	WriteError(ctx context.Context, err *ErrorRecord) error
	WriteSummary(ctx context.Context, sum *SummaryRecord) error
	WriteSnapshot(ctx context.Context, snap *SnapshotRecord) error
	WriteCount(ctx context.Context, c *CountRecord) error
	WriteReconcile(ctx context.Context, r *ReconcileRecord) error

	// Close flushes any buffered output. The underlying io.Writer is not
	// closed.
	Close() error
}

// JSONLWriter writes records as newline-delimited JSON to an io.Writer.
//
// Writes are serialized with a mutex so lines never interleave.
type JSONLWriter struct {
	w        io.Writer
	jobID    string
	provider string
	now      func() time.Time
	mu       sync.Mutex
	closed   bool
}

// NewJSONLWriter creates a JSONL writer stamping every record with jobID
// and provider.
func NewJSONLWriter(w io.Writer, jobID, provider string) *JSONLWriter {
	return &JSONLWriter{
		w:        w,
		jobID:    jobID,
		provider: provider,
		now:      time.Now,
	}
}

func (jw *JSONLWriter) WriteFile(ctx context.Context, f *FileRecord) error {
	return jw.writeRecord(ctx, TypeFile, f)
}

func (jw *JSONLWriter) WritePrefix(ctx context.Context, p *PrefixRecord) error {
	return jw.writeRecord(ctx, TypePrefix, p)
}

func (jw *JSONLWriter) WriteError(ctx context.Context, err *ErrorRecord) error {
	return jw.writeRecord(ctx, TypeError, err)
}

func (jw *JSONLWriter) WriteSummary(ctx context.Context, sum *SummaryRecord) error {
	return jw.writeRecord(ctx, TypeSummary, sum)
}

func (jw *JSONLWriter) WriteSnapshot(ctx context.Context, snap *SnapshotRecord) error {
	return jw.writeRecord(ctx, TypeSnapshot, snap)
}

func (jw *JSONLWriter) WriteCount(ctx context.Context, c *CountRecord) error {
	return jw.writeRecord(ctx, TypeCount, c)
}

func (jw *JSONLWriter) WriteReconcile(ctx context.Context, r *ReconcileRecord) error {
	return jw.writeRecord(ctx, TypeReconcile, r)
}

// Close marks the writer as closed.
func (jw *JSONLWriter) Close() error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	jw.closed = true
	return nil
}

// writeRecord marshals data and writes one complete record line while
// holding the mutex.
func (jw *JSONLWriter) writeRecord(ctx context.Context, recordType string, data any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	dataBytes, err := json.Marshal(data)
	if err != nil {
		return &WriteError{Op: "marshal_data", Err: err}
	}

	jw.mu.Lock()
	defer jw.mu.Unlock()

	if jw.closed {
		return ErrWriterClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	record := Record{
		Type:     recordType,
		TS:       jw.now().UTC(),
		JobID:    jw.jobID,
		Provider: jw.provider,
		Data:     dataBytes,
	}

	recordBytes, err := json.Marshal(record)
	if err != nil {
		return &WriteError{Op: "marshal_record", Err: err}
	}

	// io.Writer may return n < len(p) with a nil error; a truncated line
	// would corrupt the stream.
	recordBytes = append(recordBytes, '\n')
	if err := writeAll(jw.w, recordBytes); err != nil {
		return &WriteError{Op: "write", Err: err}
	}
	return nil
}

// writeAll writes all bytes to w, looping over short writes.
func writeAll(w io.Writer, p []byte) error {
	for len(p) > 0 {
		n, err := w.Write(p)
		if err != nil {
			return err
		}
		if n == 0 {
			return io.ErrShortWrite
		}
		p = p[n:]
	}
	return nil
}

var _ Writer = (*JSONLWriter)(nil)
