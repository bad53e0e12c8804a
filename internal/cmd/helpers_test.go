package cmd

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"

	"github.com/3leaps/ledgerscan/internal/config"
	"github.com/3leaps/ledgerscan/pkg/output"
	"github.com/3leaps/ledgerscan/pkg/provider"
)

// resetFlags restores every flag to its default so one test's flags do
// not leak into the next rootCmd execution.
func resetFlags() {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	rootCmd.PersistentFlags().VisitAll(reset)
	var walk func(c *cobra.Command)
	walk = func(c *cobra.Command) {
		c.Flags().VisitAll(reset)
		for _, sub := range c.Commands() {
			walk(sub)
		}
	}
	walk(rootCmd)
}

// executeCLI runs rootCmd with args in an isolated HOME and working
// directory and returns stdout.
func executeCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()

	resetFlags()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", "")
	t.Chdir(t.TempDir())
	t.Cleanup(func() { config.SetConfigFile("") })

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

// records decodes JSONL output.
func records(t *testing.T, out string) []output.Record {
	t.Helper()
	var recs []output.Record
	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var r output.Record
		require.NoError(t, json.Unmarshal([]byte(line), &r), line)
		recs = append(recs, r)
	}
	require.NoError(t, sc.Err())
	return recs
}

func ofType(recs []output.Record, typ string) []output.Record {
	var out []output.Record
	for _, r := range recs {
		if r.Type == typ {
			out = append(out, r)
		}
	}
	return out
}

func decode[T any](t *testing.T, r output.Record) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(r.Data, &v))
	return v
}

// ledgerRoot builds a small document store on disk:
//
//	inbox/INV-001.pdf       -30m
//	inbox/INV-002.pdf       -90m
//	inbox/INV-003.pdf       -10m
//	inbox/notes.txt         -5m
//	inbox/2024/INV-100.pdf  -48h
//	outbox/sent.pdf         -1h
func ledgerRoot(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	now := time.Now()

	files := []struct {
		key string
		age time.Duration
	}{
		{"inbox/INV-001.pdf", 30 * time.Minute},
		{"inbox/INV-002.pdf", 90 * time.Minute},
		{"inbox/INV-003.pdf", 10 * time.Minute},
		{"inbox/notes.txt", 5 * time.Minute},
		{"inbox/2024/INV-100.pdf", 48 * time.Hour},
		{"outbox/sent.pdf", time.Hour},
	}
	for _, f := range files {
		path := filepath.Join(root, filepath.FromSlash(f.key))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(f.key), 0o644))
		mt := now.Add(-f.age)
		require.NoError(t, os.Chtimes(path, mt, mt))
	}
	return root
}

func fileURI(parts ...string) string {
	return "file://" + filepath.ToSlash(filepath.Join(parts...))
}

// faultyStore fails List for one prefix and delegates everything else.
type faultyStore struct {
	provider.Provider
	failPrefix string
	err        error
}

func (s *faultyStore) List(ctx context.Context, opts provider.ListOptions) (*provider.ListResult, error) {
	if opts.Prefix == s.failPrefix {
		return nil, &provider.ProviderError{Op: "List", Provider: provider.ProviderS3, Key: opts.Prefix, Err: s.err}
	}
	return s.Provider.List(ctx, opts)
}

// useFaultyStore serves every URI from the file tree at root, failing List
// for failPrefix.
func useFaultyStore(t *testing.T, root, failPrefix string, err error) {
	t.Helper()
	orig := storeFactory
	t.Cleanup(func() { storeFactory = orig })

	storeFactory = func(ctx context.Context, u *ObjectURI, cfg *config.Config) (provider.Provider, error) {
		inner, ferr := openStore(ctx, &ObjectURI{Provider: "file", Bucket: root}, cfg)
		if ferr != nil {
			return nil, ferr
		}
		return &faultyStore{Provider: inner, failPrefix: failPrefix, err: err}, nil
	}
}
