package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3leaps/ledgerscan/internal/config"
	"github.com/3leaps/ledgerscan/internal/observability"
	"github.com/3leaps/ledgerscan/pkg/inventory"
	"github.com/3leaps/ledgerscan/pkg/output"
	"github.com/3leaps/ledgerscan/pkg/provider"
	"github.com/3leaps/ledgerscan/pkg/reconcile"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile [uri...] --ids <file>",
	Short: "Compare stored file names with recorded IDs",
	Long: `Compare the file names held in the store with the IDs a system of
record lists, one per line. Names come from fresh traversals of the given
URIs, from earlier snapshot files, or both.

Results list IDs present on both sides, recorded IDs with no stored file,
and stored files the record does not mention.

Examples:
  ledgerscan reconcile s3://ledgers/clients/acme/inbox/ --ids acme-ids.txt --trim-ext
  ledgerscan reconcile --snapshot snapshots/clients_acme_inbox.txt --ids acme-ids.txt
  ledgerscan reconcile s3://ledgers/clients/acme/ --ids ids.txt --include '*.pdf' --fold-case`,
	RunE: runReconcile,
}

var (
	reconcileIDs       string
	reconcileSnapshots []string
	reconcileTrimExt   bool
	reconcileFoldCase  bool
	reconcileSelect    selectionFlags
)

func init() {
	rootCmd.AddCommand(reconcileCmd)
	f := reconcileCmd.Flags()
	f.StringVar(&reconcileIDs, "ids", "", "File with one recorded ID per line (required)")
	f.StringArrayVar(&reconcileSnapshots, "snapshot", nil, "Snapshot file to read names from (repeatable)")
	f.BoolVar(&reconcileTrimExt, "trim-ext", false, "Compare names without their final extension")
	f.BoolVar(&reconcileFoldCase, "fold-case", false, "Compare case-insensitively")
	reconcileSelect.register(reconcileCmd)
	_ = reconcileCmd.MarkFlagRequired("ids")
}

func runReconcile(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := config.Get()

	if len(args) == 0 && len(reconcileSnapshots) == 0 {
		return exitError(foundry.ExitInvalidArgument, "Nothing to reconcile", errors.New("pass a URI or --snapshot"))
	}

	recorded, err := readLines(reconcileIDs)
	if err != nil {
		return exitError(foundry.ExitFileReadError, "Failed to read recorded IDs", err)
	}

	var names []string
	for _, path := range reconcileSnapshots {
		sel, err := reconcileSelect.build("")
		if err != nil {
			return err
		}
		if sel.filter != nil {
			return exitError(foundry.ExitInvalidArgument, "Size and date filters need a URI",
				errors.New("snapshot files hold names only"))
		}
		lines, err := readSnapshot(path)
		if err != nil {
			return exitError(foundry.ExitFileReadError, "Failed to read snapshot", err)
		}
		for _, n := range lines {
			if sel.matcher.Match(n) {
				names = append(names, n)
			}
		}
	}

	providerName := "file"
	if len(args) > 0 {
		uris, err := requirePrefixURIs(args)
		if err != nil {
			return err
		}
		providerName = uris[0].Provider

		store, err := storeFactory(ctx, uris[0], cfg)
		if err != nil {
			observability.CLILogger.Error("Failed to create provider", zap.Error(err))
			return exitError(foundry.ExitExternalServiceUnavailable, "Failed to connect to storage provider", err)
		}
		defer func() { _ = store.Close() }()

		for _, u := range uris {
			sel, err := reconcileSelect.build(u.Pattern)
			if err != nil {
				return err
			}
			got, _, err := collectNames(ctx, store, u.Key, cfg, sel)
			if err != nil {
				return failureExit(fmt.Sprintf("Failed to traverse %q", u.Key), err)
			}
			names = append(names, got...)
		}
	}

	w, err := newWriter(cmd.OutOrStdout(), uuid.New().String(), providerName)
	if err != nil {
		return err
	}
	defer func() { _ = w.Close() }()

	res := reconcile.Diff(names, recorded, normalizer(reconcileTrimExt, reconcileFoldCase))
	observability.CLILogger.Info("Reconciled",
		zap.Int("names", len(names)),
		zap.Int("recorded", len(recorded)),
		zap.Int("matched", len(res.Matched)),
		zap.Int("missing_from_store", len(res.MissingFromStore)),
		zap.Int("untracked_in_store", len(res.UntrackedInStore)))

	return w.WriteReconcile(ctx, reconcileRecord(res))
}

func reconcileRecord(res *reconcile.Result) *output.ReconcileRecord {
	return &output.ReconcileRecord{
		Matched:          len(res.Matched),
		MissingFromStore: res.MissingFromStore,
		UntrackedInStore: res.UntrackedInStore,
	}
}

func normalizer(trimExt, fold bool) reconcile.Normalizer {
	var ns []reconcile.Normalizer
	if trimExt {
		ns = append(ns, reconcile.TrimExtension)
	}
	if fold {
		ns = append(ns, reconcile.Fold)
	}
	if len(ns) == 0 {
		return nil
	}
	return reconcile.Chain(ns...)
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return reconcile.ReadIDs(f)
}

// readSnapshot reads a snapshot file verbatim; names are not trimmed and a
// leading '#' is part of the name.
func readSnapshot(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return inventory.DecodeSnapshot(f)
}

// collectNames runs a flat traversal of prefix and returns the leaf names
// sel keeps. Like a snapshot, the result is all-or-nothing.
func collectNames(ctx context.Context, store provider.Provider, prefix string, cfg *config.Config, sel *selection) ([]string, int, error) {
	c, err := inventory.Open(store, inventory.ListingRequest{
		Prefix:         prefix,
		NameDelimiter:  cfg.Inventory.Delimiter,
		MaxKeysPerPage: cfg.S3.MaxKeys,
	}, inventory.WithRateLimit(cfg.Inventory.RateLimit), inventory.WithLogger(observability.CLILogger))
	if err != nil {
		return nil, 0, err
	}

	start := time.Now()
	delimiter := c.Request().LeafDelimiter()
	var names []string
	for c.Next(ctx) {
		for _, d := range c.Page().Descriptors {
			name := inventory.Basename(d.Key, prefix, delimiter)
			if name == "" {
				continue
			}
			if sel.keep(inventory.File{ObjectDescriptor: d, Name: name}) {
				names = append(names, name)
			}
		}
	}
	if err := c.Err(); err != nil {
		return nil, c.PagesCompleted(), err
	}

	observability.CLILogger.Debug("Collected reconciliation names",
		zap.String("prefix", prefix),
		zap.Int("names", len(names)),
		zap.Int("pages", c.PagesCompleted()),
		zap.Duration("duration", time.Since(start)))
	return names, c.PagesCompleted(), nil
}
