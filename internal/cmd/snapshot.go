package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3leaps/ledgerscan/internal/config"
	"github.com/3leaps/ledgerscan/internal/observability"
	"github.com/3leaps/ledgerscan/pkg/inventory"
	"github.com/3leaps/ledgerscan/pkg/output"
	"github.com/3leaps/ledgerscan/pkg/sink"
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot <uri>...",
	Short: "Persist the full set of file names under each prefix",
	Long: `Traverse every key under each prefix and write the leaf names, one per
line, to a destination. Each run replaces the previous snapshot file.

A snapshot is written only after its traversal completes; a failed
traversal leaves any earlier snapshot untouched. If the write itself fails
it is retried without listing the store again.

Destinations:
  ./snapshots                   local directory (default: snapshot.dir)
  file:///var/lib/ledgerscan    local directory
  s3://audit-bucket/snapshots/  objects in a separate bucket or prefix

Examples:
  ledgerscan snapshot s3://ledgers/clients/acme/inbox/
  ledgerscan snapshot s3://ledgers/clients/acme/inbox/ --out s3://ledger-audit/daily/
  ledgerscan snapshot s3://ledgers/a/ s3://ledgers/b/ --out ./snapshots`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSnapshot,
}

var (
	snapshotOut     string
	snapshotName    string
	snapshotRetries int
)

// persistBackoff is the pause before each snapshot write retry.
var persistBackoff = time.Second

func init() {
	rootCmd.AddCommand(snapshotCmd)
	snapshotCmd.Flags().StringVar(&snapshotOut, "out", "", "Destination directory or s3:// URI (default from config)")
	snapshotCmd.Flags().StringVar(&snapshotName, "name", "", "Snapshot file name (single URI only)")
	snapshotCmd.Flags().IntVar(&snapshotRetries, "retries", 2, "Write retries after a persistence failure")
}

func runSnapshot(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := config.Get()

	uris, err := requirePrefixURIs(args)
	if err != nil {
		return err
	}
	for _, u := range uris {
		if u.IsPattern() {
			return exitError(foundry.ExitInvalidArgument, "snapshot requires a prefix URI (no glob pattern)",
				fmt.Errorf("%s contains a pattern", u))
		}
	}
	if snapshotName != "" && len(uris) > 1 {
		return exitError(foundry.ExitInvalidArgument, "Invalid --name value", errors.New("--name requires exactly one URI"))
	}
	if snapshotRetries < 0 {
		return exitError(foundry.ExitInvalidArgument, "Invalid --retries value", errors.New("retries must be >= 0"))
	}

	dest := snapshotOut
	if dest == "" {
		dest = cfg.Snapshot.Dir
	}

	store, err := storeFactory(ctx, uris[0], cfg)
	if err != nil {
		observability.CLILogger.Error("Failed to create provider", zap.Error(err))
		return exitError(foundry.ExitExternalServiceUnavailable, "Failed to connect to storage provider", err)
	}
	defer func() { _ = store.Close() }()

	w, err := newWriter(cmd.OutOrStdout(), uuid.New().String(), uris[0].Provider)
	if err != nil {
		return err
	}
	defer func() { _ = w.Close() }()

	start := time.Now()
	svc := newService(store, cfg)

	var (
		names, errCount int64
		pages           int
		firstErr        error
		prefixes        []string
	)
	for _, u := range uris {
		prefixes = append(prefixes, u.Key)

		dst, closeSink, err := openSink(ctx, dest, u, cfg)
		if err != nil {
			return exitError(foundry.ExitInvalidArgument, "Invalid snapshot destination", err)
		}
		rec, err := snapshotPrefix(ctx, svc, u.Key, dst, snapshotName, snapshotRetries)
		closeSink()

		if err != nil {
			if werr := w.WriteError(ctx, errorRecord(u.Key, err)); werr != nil {
				return werr
			}
			errCount++
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if err := w.WriteSnapshot(ctx, rec); err != nil {
			return err
		}
		names += int64(rec.Names)
		pages += rec.Pages
	}

	dur := time.Since(start)
	if err := w.WriteSummary(ctx, &output.SummaryRecord{
		Command:       "snapshot",
		Files:         names,
		Pages:         pages,
		Errors:        errCount,
		Duration:      dur,
		DurationHuman: formatDuration(dur),
		Prefixes:      prefixes,
	}); err != nil {
		return err
	}

	if firstErr != nil {
		return failureExit(fmt.Sprintf("Snapshot failed for %d of %d prefixes", errCount, len(uris)), firstErr)
	}
	return nil
}

// snapshotPrefix traverses prefix once and persists the result, retrying
// only the write on a persistence failure.
func snapshotPrefix(ctx context.Context, svc *inventory.Service, prefix string, dst sink.Sink, name string, retries int) (*output.SnapshotRecord, error) {
	if name == "" {
		name = inventory.SnapshotFileName(prefix)
	}

	snap, err := svc.SnapshotTo(ctx, prefix, dst, name)
	for attempt := 1; err != nil && snap != nil && attempt <= retries; attempt++ {
		observability.CLILogger.Warn("Retrying snapshot write",
			zap.String("prefix", prefix),
			zap.String("sink", dst.String()),
			zap.Int("attempt", attempt),
			zap.Error(err))

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(persistBackoff * time.Duration(attempt)):
		}
		err = snap.Persist(ctx, dst, name)
	}
	if err != nil {
		return nil, err
	}

	return &output.SnapshotRecord{
		Prefix:     prefix,
		Sink:       dst.String(),
		Name:       name,
		Names:      len(snap.Names),
		Bytes:      len(snap.Encode()),
		Pages:      snap.Pages,
		CapturedAt: snap.CapturedAt,
	}, nil
}
