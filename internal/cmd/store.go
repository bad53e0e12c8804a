package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/fulmenhq/gofulmen/foundry"

	"github.com/3leaps/ledgerscan/internal/config"
	"github.com/3leaps/ledgerscan/internal/observability"
	"github.com/3leaps/ledgerscan/pkg/inventory"
	"github.com/3leaps/ledgerscan/pkg/output"
	"github.com/3leaps/ledgerscan/pkg/provider"
	"github.com/3leaps/ledgerscan/pkg/provider/file"
	"github.com/3leaps/ledgerscan/pkg/provider/s3"
	"github.com/3leaps/ledgerscan/pkg/sink"
)

// storeFactory builds a provider for a parsed URI. Tests replace it.
var storeFactory = openStore

func openStore(ctx context.Context, u *ObjectURI, cfg *config.Config) (provider.Provider, error) {
	switch u.Provider {
	case "s3":
		return s3.New(ctx, s3.Config{
			Bucket:   u.Bucket,
			Region:   cfg.S3.Region,
			Endpoint: cfg.S3.Endpoint,
			Profile:  cfg.S3.Profile,
			// S3-compatible services (MinIO, moto) require path-style URLs.
			ForcePathStyle: cfg.S3.ForcePathStyle || cfg.S3.Endpoint != "",
			MaxKeys:        cfg.S3.MaxKeys,
		})
	case "file":
		return file.New(file.Config{BaseDir: u.Bucket})
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedProvider, u.Provider)
}

func newService(store provider.Provider, cfg *config.Config) *inventory.Service {
	return inventory.NewService(store, inventory.Config{
		Delimiter:      cfg.Inventory.Delimiter,
		MaxKeysPerPage: cfg.S3.MaxKeys,
		RateLimit:      cfg.Inventory.RateLimit,
		Concurrency:    cfg.Inventory.Concurrency,
	}).WithLogger(observability.CLILogger)
}

// openSink resolves a snapshot destination: s3://bucket/prefix/, file://dir
// or a plain directory path. The returned close func releases any provider
// opened for the sink.
func openSink(ctx context.Context, dest string, source *ObjectURI, cfg *config.Config) (sink.Sink, func(), error) {
	noop := func() {}
	if !strings.Contains(dest, "://") {
		dest = "file://" + filepath.ToSlash(dest)
	}

	u, err := ParseURI(dest)
	if err != nil {
		return nil, noop, err
	}
	if u.IsPattern() {
		return nil, noop, fmt.Errorf("%w: snapshot destination cannot contain a glob", ErrInvalidURI)
	}
	if source != nil && insideSource(u, source) {
		return nil, noop, fmt.Errorf("snapshot destination %s lies inside the listed prefix %s", u, source)
	}

	if u.Provider == "file" {
		return sink.NewFileSink(u.Bucket), noop, nil
	}

	store, err := storeFactory(ctx, u, cfg)
	if err != nil {
		return nil, noop, err
	}
	putter, ok := store.(provider.ObjectPutter)
	if !ok {
		_ = store.Close()
		return nil, noop, fmt.Errorf("provider %s cannot write objects", u.Provider)
	}
	return sink.NewObjectSink(putter, u.Key, u.String()), func() { _ = store.Close() }, nil
}

// insideSource reports whether writing to dest would place snapshots under
// the prefix being listed.
func insideSource(dest, source *ObjectURI) bool {
	if dest.Provider != source.Provider {
		return false
	}
	if dest.Provider == "file" {
		root, err := filepath.Abs(filepath.Join(source.Bucket, filepath.FromSlash(source.Key)))
		if err != nil {
			return false
		}
		dir, err := filepath.Abs(dest.Bucket)
		if err != nil {
			return false
		}
		rel, err := filepath.Rel(root, dir)
		return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
	}
	return dest.Bucket == source.Bucket && strings.HasPrefix(dest.Key, source.Key)
}

// newWriter returns the record writer for the --output format.
func newWriter(w io.Writer, jobID, providerName string) (output.Writer, error) {
	switch flagOutput {
	case "", "jsonl":
		return output.NewJSONLWriter(w, jobID, providerName), nil
	case "table":
		return output.NewTableWriter(w), nil
	}
	return nil, exitError(foundry.ExitInvalidArgument, "Invalid --output value", fmt.Errorf("expected jsonl or table, got %q", flagOutput))
}

// errorRecord converts a traversal or persistence failure into an output
// record that always names the prefix and how far the traversal got.
func errorRecord(prefix string, err error) *output.ErrorRecord {
	rec := &output.ErrorRecord{
		Code:    errorCode(err),
		Message: err.Error(),
		Prefix:  prefix,
	}
	var te *inventory.TraversalError
	if errors.As(err, &te) {
		rec.PagesCompleted = te.PagesCompleted
	}
	var pe *provider.ProviderError
	if errors.As(err, &pe) {
		rec.Details = map[string]string{
			"provider":      string(pe.Provider),
			"provider_code": provider.Code(err),
		}
	}
	return rec
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, provider.ErrAccessDenied), errors.Is(err, provider.ErrInvalidCredentials):
		return output.ErrCodeAccessDenied
	case errors.Is(err, provider.ErrNotFound), errors.Is(err, provider.ErrBucketNotFound):
		return output.ErrCodeNotFound
	case errors.Is(err, provider.ErrThrottled):
		return output.ErrCodeThrottled
	case inventory.IsPersistenceFailed(err):
		return output.ErrCodePersistenceFailed
	case inventory.IsStoreUnavailable(err):
		return output.ErrCodeStoreUnavailable
	case inventory.IsStoreRequestFailed(err):
		return output.ErrCodeStoreRequestFailed
	}
	return output.ErrCodeInternal
}

// failureExit maps an operation error to a CLI exit error.
func failureExit(message string, err error) error {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return exitError(foundry.ExitSignalInt, message+" (cancelled)", err)
	case inventory.IsPersistenceFailed(err):
		return exitError(foundry.ExitFileWriteError, message, err)
	}
	return exitError(foundry.ExitExternalServiceUnavailable, message, err)
}
