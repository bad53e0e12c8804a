package sink

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPutter struct {
	key  string
	body []byte
	size int64
	err  error
}

func (p *recordingPutter) PutObject(ctx context.Context, key string, body io.Reader, contentLength int64) error {
	if p.err != nil {
		return p.err
	}
	b, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	p.key, p.body, p.size = key, b, contentLength
	return nil
}

func TestFileSink_WriteFileOverwrites(t *testing.T) {
	dir := t.TempDir()
	s := NewFileSink(dir)
	ctx := context.Background()

	require.NoError(t, s.WriteFile(ctx, "inbox.txt", []byte("a.pdf\nb.pdf\nc.pdf\n")))
	require.NoError(t, s.WriteFile(ctx, "inbox.txt", []byte("a.pdf\n")))

	data, err := os.ReadFile(filepath.Join(dir, "inbox.txt"))
	require.NoError(t, err)
	assert.Equal(t, "a.pdf\n", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestFileSink_CreatesNestedDirectories(t *testing.T) {
	dir := t.TempDir()
	s := NewFileSink(dir)

	require.NoError(t, s.WriteFile(context.Background(), "2024/05/inbox.txt", []byte("x\n")))
	_, err := os.Stat(filepath.Join(dir, "2024", "05", "inbox.txt"))
	assert.NoError(t, err)
	assert.Equal(t, filepath.Clean(dir), s.String())
}

func TestFileSink_WriteFailureLeavesPriorContent(t *testing.T) {
	dir := t.TempDir()
	s := NewFileSink(dir)
	require.NoError(t, s.WriteFile(context.Background(), "inbox.txt", []byte("keep\n")))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := s.WriteFile(ctx, "inbox.txt", []byte("lost\n"))
	require.ErrorIs(t, err, context.Canceled)

	data, err := os.ReadFile(filepath.Join(dir, "inbox.txt"))
	require.NoError(t, err)
	assert.Equal(t, "keep\n", string(data))
}

func TestCleanName(t *testing.T) {
	tests := []struct {
		name    string
		want    string
		wantErr bool
	}{
		{"inbox.txt", "inbox.txt", false},
		{"/inbox.txt", "inbox.txt", false},
		{"a/b.txt", "a/b.txt", false},
		{"", "", true},
		{"   ", "", true},
		{"../escape.txt", "", true},
		{"a/../../b.txt", "", true},
		{".", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := cleanName(tt.name)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidName))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestObjectSink_WriteFile(t *testing.T) {
	p := &recordingPutter{}
	s := NewObjectSink(p, "snapshots/", "s3://ledgers/snapshots/")

	require.NoError(t, s.WriteFile(context.Background(), "inbox.txt", []byte("a.pdf\n")))
	assert.Equal(t, "snapshots/inbox.txt", p.key)
	assert.Equal(t, "a.pdf\n", string(p.body))
	assert.Equal(t, int64(6), p.size)
	assert.Equal(t, "s3://ledgers/snapshots/", s.String())
}

func TestObjectSink_PropagatesError(t *testing.T) {
	boom := errors.New("put failed")
	s := NewObjectSink(&recordingPutter{err: boom}, "", "")

	err := s.WriteFile(context.Background(), "inbox.txt", []byte("x\n"))
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, "", s.String())
}
