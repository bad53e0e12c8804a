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

var lsCmd = &cobra.Command{
	Use:   "ls <uri>...",
	Short: "List the immediate subdirectories and files of a prefix",
	Long: `List one level of a prefix: child prefixes become subdirectories and
objects directly under the prefix become files. Directory placeholder
objects are never reported.

Several URIs in the same store are listed concurrently with independent
traversals; a failing prefix is reported and the rest still complete.

Examples:
  ledgerscan ls s3://ledgers/clients/acme/inbox/
  ledgerscan ls s3://ledgers/clients/acme/inbox/INV-*.pdf --output table
  ledgerscan ls s3://ledgers/clients/acme/ s3://ledgers/clients/globex/
  ledgerscan ls file:///srv/ledger --min-size 1KB --after 2026-01-01`,
	Args: cobra.MinimumNArgs(1),
	RunE: runLs,
}

var lsSelect selectionFlags

func init() {
	rootCmd.AddCommand(lsCmd)
	lsSelect.register(lsCmd)
}

func runLs(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := config.Get()

	uris, err := requirePrefixURIs(args)
	if err != nil {
		return err
	}
	selections := make([]*selection, len(uris))
	prefixes := make([]string, len(uris))
	for i, u := range uris {
		if selections[i], err = lsSelect.build(u.Pattern); err != nil {
			return err
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
	outcomes := newService(store, cfg).ListLevels(ctx, prefixes)

	var (
		files, subdirs, errCount int64
		pages                    int
		firstErr                 error
	)
	for i, oc := range outcomes {
		if oc.Err != nil {
			observability.CLILogger.Error("Listing failed", zap.String("prefix", oc.Prefix), zap.Error(oc.Err))
			if werr := w.WriteError(ctx, errorRecord(oc.Prefix, oc.Err)); werr != nil {
				return werr
			}
			errCount++
			if firstErr == nil {
				firstErr = oc.Err
			}
			continue
		}

		res := oc.Result
		pages += res.Pages
		if !selections[i].narrowing() {
			for _, name := range res.Subdirectories {
				if err := w.WritePrefix(ctx, &output.PrefixRecord{Parent: res.Prefix, Name: name}); err != nil {
					return err
				}
				subdirs++
			}
		}
		for _, f := range selections[i].apply(res.Files) {
			if err := w.WriteFile(ctx, fileRecord(f, time.Time{})); err != nil {
				return err
			}
			files++
		}
	}

	dur := time.Since(start)
	if err := w.WriteSummary(ctx, &output.SummaryRecord{
		Command:        "ls",
		Files:          files,
		Subdirectories: subdirs,
		Pages:          pages,
		Errors:         errCount,
		Duration:       dur,
		DurationHuman:  formatDuration(dur),
		Prefixes:       prefixes,
	}); err != nil {
		return err
	}

	if firstErr != nil {
		return failureExit(fmt.Sprintf("Listing failed for %d of %d prefixes", errCount, len(prefixes)), firstErr)
	}
	return nil
}
