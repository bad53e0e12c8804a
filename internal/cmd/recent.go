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

var recentCmd = &cobra.Command{
	Use:   "recent <uri>",
	Short: "Show files modified within a recent window, newest first",
	Long: `List the files directly under a prefix whose last modification falls
within the window ending now, newest first. Files modified exactly at the
window boundary are excluded.

Examples:
  ledgerscan recent s3://ledgers/clients/acme/inbox/
  ledgerscan recent s3://ledgers/clients/acme/inbox/ --window 1h --output table
  ledgerscan recent s3://ledgers/clients/acme/inbox/*.pdf --window 30m`,
	Args: cobra.ExactArgs(1),
	RunE: runRecent,
}

var (
	recentWindow time.Duration
	recentSelect selectionFlags
)

func init() {
	rootCmd.AddCommand(recentCmd)
	recentCmd.Flags().DurationVarP(&recentWindow, "window", "w", 0, "Recency window (default from config, 24h)")
	recentSelect.register(recentCmd)
}

func runRecent(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := config.Get()

	u, err := ParseURI(args[0])
	if err != nil {
		observability.CLILogger.Error("Invalid URI", zap.String("uri", args[0]), zap.Error(err))
		return exitError(foundry.ExitInvalidArgument, "Invalid URI", err)
	}

	window := recentWindow
	if window == 0 {
		window = cfg.Inventory.RecentWindow
	}
	if window <= 0 {
		return exitError(foundry.ExitInvalidArgument, "Invalid --window value", fmt.Errorf("window must be positive, got %s", window))
	}

	sel, err := recentSelect.build(u.Pattern)
	if err != nil {
		return err
	}

	store, err := storeFactory(ctx, u, cfg)
	if err != nil {
		observability.CLILogger.Error("Failed to create provider", zap.Error(err))
		return exitError(foundry.ExitExternalServiceUnavailable, "Failed to connect to storage provider", err)
	}
	defer func() { _ = store.Close() }()

	w, err := newWriter(cmd.OutOrStdout(), uuid.New().String(), u.Provider)
	if err != nil {
		return err
	}
	defer func() { _ = w.Close() }()

	start := time.Now()
	svc := newService(store, cfg)
	recent, err := svc.Recent(ctx, u.Key, window)
	if err != nil {
		observability.CLILogger.Error("Recency listing failed", zap.String("prefix", u.Key), zap.Error(err))
		if werr := w.WriteError(ctx, errorRecord(u.Key, err)); werr != nil {
			return werr
		}
		return failureExit("Failed to list recent files", err)
	}

	now := time.Now()
	var files int64
	for _, f := range sel.apply(recent) {
		if err := w.WriteFile(ctx, fileRecord(f, now)); err != nil {
			return err
		}
		files++
	}

	dur := time.Since(start)
	return w.WriteSummary(ctx, &output.SummaryRecord{
		Command:       "recent",
		Files:         files,
		Duration:      dur,
		DurationHuman: formatDuration(dur),
		Prefixes:      []string{u.Key},
	})
}
