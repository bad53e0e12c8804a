package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3leaps/ledgerscan/internal/config"
	"github.com/3leaps/ledgerscan/internal/observability"
	"github.com/3leaps/ledgerscan/pkg/inventory"
	"github.com/3leaps/ledgerscan/pkg/manifest"
	"github.com/3leaps/ledgerscan/pkg/match"
	"github.com/3leaps/ledgerscan/pkg/output"
	"github.com/3leaps/ledgerscan/pkg/reconcile"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run an inventory job from a manifest",
	Long: `Run an inventory job as defined in a YAML or JSON manifest file.

For every prefix the job reports files modified within the recent window,
writes a fresh snapshot, and records the file count. When the manifest
names an ID list, the stored names are then reconciled against it.

Example:
  ledgerscan run --job acme.yaml
  ledgerscan run --job acme.yaml --output table
  ledgerscan run --job acme.yaml --dry-run`,
	RunE: runJob,
}

var (
	runJobPath string
	runDryRun  bool
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runJobPath, "job", "j", "", "Path to job manifest (required)")
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "Validate manifest and show plan without executing")
	runCmd.Flags().IntVar(&snapshotRetries, "retries", 2, "Snapshot write retries after a persistence failure")

	_ = runCmd.MarkFlagRequired("job")
}

func runJob(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	m, err := manifest.Load(runJobPath)
	if err != nil {
		observability.CLILogger.Error("Failed to load manifest",
			zap.String("path", runJobPath),
			zap.Error(err))
		return exitError(foundry.ExitInvalidArgument, "Invalid manifest", err)
	}

	observability.CLILogger.Debug("Loaded manifest",
		zap.String("path", runJobPath),
		zap.String("provider", m.Connection.Provider),
		zap.String("bucket", m.Connection.Bucket),
		zap.Strings("prefixes", m.Prefixes))

	if runDryRun {
		return showJobPlan(cmd.OutOrStdout(), m)
	}
	return executeJob(ctx, cmd.OutOrStdout(), m)
}

// jobConfig overlays manifest settings on the loaded configuration.
func jobConfig(base *config.Config, m *manifest.Manifest) (*config.Config, error) {
	cfg := *base
	c := m.Connection
	if c.Region != "" {
		cfg.S3.Region = c.Region
	}
	if c.Endpoint != "" {
		cfg.S3.Endpoint = c.Endpoint
	}
	if c.Profile != "" {
		cfg.S3.Profile = c.Profile
	}
	cfg.S3.ForcePathStyle = cfg.S3.ForcePathStyle || c.ForcePathStyle
	cfg.S3.MaxKeys = m.Listing.MaxKeys
	cfg.Inventory.Concurrency = m.Listing.Concurrency
	cfg.Inventory.RateLimit = m.Listing.RateLimit
	cfg.Inventory.Delimiter = m.Delimiter

	window, err := m.Recent.Duration()
	if err != nil {
		return nil, err
	}
	cfg.Inventory.RecentWindow = window
	return &cfg, nil
}

func executeJob(ctx context.Context, out io.Writer, m *manifest.Manifest) error {
	cfg, err := jobConfig(config.Get(), m)
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid manifest", err)
	}

	src := &ObjectURI{Provider: m.Connection.Provider, Bucket: m.Connection.Bucket}
	store, err := storeFactory(ctx, src, cfg)
	if err != nil {
		observability.CLILogger.Error("Failed to create provider", zap.Error(err))
		return exitError(foundry.ExitExternalServiceUnavailable, "Failed to connect to storage provider", err)
	}
	defer func() { _ = store.Close() }()

	jobID := uuid.New().String()
	w, err := newWriter(out, jobID, m.Connection.Provider)
	if err != nil {
		return err
	}
	defer func() { _ = w.Close() }()

	observability.CLILogger.Info("Starting job",
		zap.String("job_id", jobID),
		zap.String("bucket", m.Connection.Bucket),
		zap.Int("prefixes", len(m.Prefixes)))

	start := time.Now()
	svc := newService(store, cfg)
	now := time.Now()

	var (
		files, errCount int64
		pages           int
		firstErr        error
		allNames        []string
	)
	fail := func(prefix string, err error) error {
		errCount++
		if firstErr == nil {
			firstErr = err
		}
		return w.WriteError(ctx, errorRecord(prefix, err))
	}

	for _, prefix := range m.Prefixes {
		if err := ctx.Err(); err != nil {
			return failureExit("Job cancelled", err)
		}

		recent, err := svc.Recent(ctx, prefix, cfg.Inventory.RecentWindow)
		if err != nil {
			if werr := fail(prefix, err); werr != nil {
				return werr
			}
		}
		for _, f := range recent {
			if err := w.WriteFile(ctx, fileRecord(f, now)); err != nil {
				return err
			}
		}

		dst, closeSink, err := openSink(ctx, m.Snapshot.Destination, &ObjectURI{Provider: src.Provider, Bucket: src.Bucket, Key: prefix}, cfg)
		if err != nil {
			return exitError(foundry.ExitInvalidArgument, "Invalid snapshot destination", err)
		}
		rec, err := snapshotPrefix(ctx, svc, prefix, dst, m.Snapshot.Name, snapshotRetries)
		closeSink()
		if err != nil {
			if werr := fail(prefix, err); werr != nil {
				return werr
			}
			continue
		}
		if err := w.WriteSnapshot(ctx, rec); err != nil {
			return err
		}
		if err := w.WriteCount(ctx, &output.CountRecord{Prefix: prefix, Count: int64(rec.Names), Pages: rec.Pages}); err != nil {
			return err
		}
		files += int64(rec.Names)
		pages += rec.Pages

		if m.Reconcile.Enabled() {
			sel, err := manifestSelection(m.Reconcile)
			if err != nil {
				return exitError(foundry.ExitInvalidArgument, "Invalid reconcile selection", err)
			}
			names, _, err := collectNames(ctx, store, prefix, cfg, sel)
			if err != nil {
				if werr := fail(prefix, err); werr != nil {
					return werr
				}
				continue
			}
			allNames = append(allNames, names...)
		}
	}

	if m.Reconcile.Enabled() && firstErr == nil {
		recorded, err := readLines(m.Reconcile.IDs)
		if err != nil {
			return exitError(foundry.ExitFileReadError, "Failed to read recorded IDs", err)
		}
		res := reconcile.Diff(allNames, recorded, normalizer(m.Reconcile.TrimExtension, m.Reconcile.FoldCase))
		if err := w.WriteReconcile(ctx, reconcileRecord(res)); err != nil {
			return err
		}
	}

	dur := time.Since(start)
	if err := w.WriteSummary(ctx, &output.SummaryRecord{
		Command:       "run",
		Files:         files,
		Pages:         pages,
		Errors:        errCount,
		Duration:      dur,
		DurationHuman: formatDuration(dur),
		Prefixes:      m.Prefixes,
	}); err != nil {
		return err
	}

	if firstErr != nil {
		return failureExit(fmt.Sprintf("Job finished with %d errors", errCount), firstErr)
	}
	return nil
}

func manifestSelection(rc manifest.ReconcileConfig) (*selection, error) {
	m, err := match.New(match.Config{Includes: rc.Includes, Excludes: rc.Excludes})
	if err != nil {
		return nil, err
	}
	var f *match.Filter
	if rc.Filters != nil {
		if f, err = match.NewFilter(*rc.Filters); err != nil {
			return nil, err
		}
	}
	return &selection{matcher: m, filter: f}, nil
}

// showJobPlan displays what the job would do without executing.
func showJobPlan(out io.Writer, m *manifest.Manifest) error {
	var b strings.Builder
	b.WriteString("=== Job Plan (dry-run) ===\n\n")
	fmt.Fprintf(&b, "Provider:    %s\n", m.Connection.Provider)
	fmt.Fprintf(&b, "Bucket:      %s\n", m.Connection.Bucket)
	if m.Connection.Region != "" {
		fmt.Fprintf(&b, "Region:      %s\n", m.Connection.Region)
	}
	if m.Connection.Endpoint != "" {
		fmt.Fprintf(&b, "Endpoint:    %s\n", m.Connection.Endpoint)
	}
	b.WriteString("\nPrefixes:\n")
	for _, p := range m.Prefixes {
		fmt.Fprintf(&b, "  - %s -> %s\n", p, snapshotNameFor(m, p))
	}
	fmt.Fprintf(&b, "\nDelimiter:   %q\n", m.Delimiter)
	fmt.Fprintf(&b, "Page Size:   %d\n", m.Listing.MaxKeys)
	fmt.Fprintf(&b, "Concurrency: %d\n", m.Listing.Concurrency)
	if m.Listing.RateLimit > 0 {
		fmt.Fprintf(&b, "Rate Limit:  %.1f req/s\n", m.Listing.RateLimit)
	}
	fmt.Fprintf(&b, "Recent:      %s\n", m.Recent.Window)
	fmt.Fprintf(&b, "Snapshots:   %s\n", m.Snapshot.Destination)

	if m.Reconcile.Enabled() {
		b.WriteString("\nReconcile:\n")
		fmt.Fprintf(&b, "  IDs:       %s\n", m.Reconcile.IDs)
		if len(m.Reconcile.Includes) > 0 {
			fmt.Fprintf(&b, "  Include:   %s\n", strings.Join(m.Reconcile.Includes, ", "))
		}
		if len(m.Reconcile.Excludes) > 0 {
			fmt.Fprintf(&b, "  Exclude:   %s\n", strings.Join(m.Reconcile.Excludes, ", "))
		}
		if m.Reconcile.TrimExtension {
			b.WriteString("  Compare without extensions\n")
		}
		if m.Reconcile.FoldCase {
			b.WriteString("  Compare case-insensitively\n")
		}
	}
	b.WriteString("\n=== End Plan ===\n")

	_, err := io.WriteString(out, b.String())
	return err
}

func snapshotNameFor(m *manifest.Manifest, prefix string) string {
	if m.Snapshot.Name != "" {
		return m.Snapshot.Name
	}
	return inventory.SnapshotFileName(prefix)
}
