package cmd

import (
	"fmt"
	"time"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3leaps/ledgerscan/internal/config"
	"github.com/3leaps/ledgerscan/internal/observability"
	"github.com/3leaps/ledgerscan/pkg/output"
)

var countCmd = &cobra.Command{
	Use:   "count <uri>...",
	Short: "Count the files under one or more prefixes",
	Long: `Count every file under each prefix (recursively). Directory
placeholder objects are not counted. Prefixes are traversed concurrently;
a prefix that fails is reported and skipped, and the total covers the
prefixes that completed.

Examples:
  ledgerscan count s3://ledgers/clients/acme/
  ledgerscan count s3://ledgers/clients/acme/ s3://ledgers/clients/globex/ --concurrency 8`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCount,
}

func init() {
	rootCmd.AddCommand(countCmd)
}

func runCount(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := config.Get()

	uris, err := requirePrefixURIs(args)
	if err != nil {
		return err
	}
	prefixes := make([]string, len(uris))
	for i, u := range uris {
		if u.IsPattern() {
			return exitError(foundry.ExitInvalidArgument, "count requires a prefix URI (no glob pattern)",
				fmt.Errorf("%s contains a pattern", u))
		}
		prefixes[i] = u.Key
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
	res, err := newService(store, cfg).CountAll(ctx, prefixes)
	if err != nil {
		return failureExit("Count cancelled", err)
	}

	var pages int
	var firstErr error
	failed := 0
	for _, pc := range res.Prefixes {
		if pc.Err != nil {
			if werr := w.WriteError(ctx, errorRecord(pc.Prefix, pc.Err)); werr != nil {
				return werr
			}
			failed++
			if firstErr == nil {
				firstErr = pc.Err
			}
			continue
		}
		pages += pc.Pages
		if err := w.WriteCount(ctx, &output.CountRecord{Prefix: pc.Prefix, Count: pc.Count, Pages: pc.Pages}); err != nil {
			return err
		}
	}

	dur := time.Since(start)
	if err := w.WriteSummary(ctx, &output.SummaryRecord{
		Command:       "count",
		Files:         res.Total,
		Pages:         pages,
		Errors:        int64(failed),
		Duration:      dur,
		DurationHuman: formatDuration(dur),
		Prefixes:      prefixes,
	}); err != nil {
		return err
	}

	if res.Partial {
		return failureExit(fmt.Sprintf("Count incomplete: %d of %d prefixes skipped", failed, len(prefixes)), firstErr)
	}
	return nil
}
