package cmd

import (
	"context"
	"fmt"
	"io"
	"runtime"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/ec2/imds"
	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3leaps/ledgerscan/internal/config"
	"github.com/3leaps/ledgerscan/internal/observability"
	"github.com/3leaps/ledgerscan/pkg/provider"
	"github.com/3leaps/ledgerscan/pkg/provider/s3"
)

const imdsTimeout = 2 * time.Second

var doctorCmd = &cobra.Command{
	Use:   "doctor [uri]",
	Short: "Run diagnostic checks",
	Long: `Run diagnostic checks on the environment and, when a URI is given,
confirm the store can be listed.

Examples:
  ledgerscan doctor
  ledgerscan doctor s3://ledgers/clients/acme/
  ledgerscan doctor file:///srv/ledger`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

type doctorReport struct {
	out    io.Writer
	n      int
	total  int
	failed int
}

func (r *doctorReport) pass(check, detail string) {
	r.n++
	fmt.Fprintf(r.out, "[%d/%d] %s... ✅ %s\n", r.n, r.total, check, detail)
}

func (r *doctorReport) fail(check string, err error) {
	r.n++
	r.failed++
	fmt.Fprintf(r.out, "[%d/%d] %s... ❌ %v\n", r.n, r.total, check, err)
	observability.CLILogger.Debug("Doctor check failed", zap.String("check", check), zap.Error(err))
}

func runDoctor(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := config.Get()
	r := &doctorReport{out: cmd.OutOrStdout(), total: 3}

	var u *ObjectURI
	if len(args) == 1 {
		parsed, err := ParseURI(args[0])
		if err != nil {
			return exitError(foundry.ExitInvalidArgument, "Invalid URI", err)
		}
		u = parsed
		r.total++
		if u.Provider == "s3" {
			r.total += 2
		}
	}

	fmt.Fprintln(r.out, "=== ledgerscan doctor ===")

	r.pass("Checking Go version", runtime.Version())
	r.pass("Checking environment", runtime.GOOS+"/"+runtime.GOARCH)
	if err := cfg.Validate(); err != nil {
		r.fail("Checking configuration", err)
	} else {
		r.pass("Checking configuration", fmt.Sprintf("delimiter=%q concurrency=%d window=%s snapshots=%s",
			cfg.Inventory.Delimiter, cfg.Inventory.Concurrency, cfg.Inventory.RecentWindow, cfg.Snapshot.Dir))
	}

	if u != nil {
		if u.Provider == "s3" {
			src, region := resolveRegion(ctx, cfg)
			r.pass("Resolving region", region+" ("+src+")")
			if src, err := checkAWSCredentials(ctx, cfg); err != nil {
				r.fail("Checking AWS credentials", err)
			} else {
				r.pass("Checking AWS credentials", "source "+src)
			}
		}
		if err := probeStore(ctx, u, cfg); err != nil {
			r.fail("Listing "+u.String(), err)
		} else {
			r.pass("Listing "+u.String(), "readable")
		}
	}

	if r.failed > 0 {
		return exitError(foundry.ExitExternalServiceUnavailable, "Diagnostics failed", fmt.Errorf("%d of %d checks failed", r.failed, r.total))
	}
	fmt.Fprintln(r.out, "All checks passed.")
	return nil
}

// checkAWSCredentials resolves credentials through the SDK default chain
// and returns their source. Credentials are never printed.
func checkAWSCredentials(ctx context.Context, cfg *config.Config) (string, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.S3.Profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(cfg.S3.Profile))
	}
	if cfg.S3.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.S3.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return "", fmt.Errorf("load AWS config: %w", err)
	}
	creds, err := awsCfg.Credentials.Retrieve(ctx)
	if err != nil {
		return "", fmt.Errorf("retrieve credentials: %w", err)
	}
	if creds.Source == "" {
		return "unknown", nil
	}
	return creds.Source, nil
}

// resolveRegion reports the region the S3 provider will use and where it
// came from. Instance metadata is consulted only when nothing is configured.
func resolveRegion(ctx context.Context, cfg *config.Config) (source, region string) {
	if cfg.S3.Region != "" {
		return "configured", cfg.S3.Region
	}
	if cfg.S3.Endpoint != "" {
		return "custom endpoint", s3.DefaultAWSRegion
	}

	ctx, cancel := context.WithTimeout(ctx, imdsTimeout)
	defer cancel()
	out, err := imds.New(imds.Options{}).GetRegion(ctx, &imds.GetRegionInput{})
	if err == nil && out.Region != "" {
		return "instance metadata", out.Region
	}
	observability.CLILogger.Debug("Instance metadata region unavailable", zap.Error(err))
	return "default", s3.DefaultAWSRegion
}

// probeStore requests a single one-key page under the URI prefix.
func probeStore(ctx context.Context, u *ObjectURI, cfg *config.Config) error {
	store, err := storeFactory(ctx, u, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	_, err = store.List(ctx, provider.ListOptions{Prefix: u.Key, Delimiter: cfg.Inventory.Delimiter, MaxKeys: 1})
	return err
}
