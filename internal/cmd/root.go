// Package cmd implements the ledgerscan command line.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3leaps/ledgerscan/internal/config"
	"github.com/3leaps/ledgerscan/internal/observability"
)

// VersionInfo holds build metadata injected by main.
type VersionInfo struct {
	Version   string
	Commit    string
	BuildDate string
}

var versionInfo = VersionInfo{Version: "dev", Commit: "unknown", BuildDate: "unknown"}

// SetVersionInfo records build metadata for the version command.
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.BuildDate = buildDate
}

var (
	cfgFile string
	verbose bool

	// Connection flags shared by every store-facing command. Empty values
	// fall back to the loaded configuration.
	flagRegion         string
	flagProfile        string
	flagEndpoint       string
	flagForcePathStyle bool
	flagMaxKeys        int
	flagRateLimit      float64
	flagConcurrency    int
	flagOutput         string
)

var rootCmd = &cobra.Command{
	Use:   "ledgerscan",
	Short: "Inventory and reconcile document stores",
	Long: `ledgerscan lists, snapshots and counts the documents kept under
object-store prefixes, and reconciles stored names against externally
recorded IDs.

Supported stores:
  s3://bucket/prefix/    AWS S3 and S3-compatible endpoints
  file:///path/to/root   a local directory tree

Configuration is read from ledgerscan.yaml (working directory or
$HOME/.config/ledgerscan/), LEDGERSCAN_* environment variables and flags.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: initRuntime,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "Config file (default: ./ledgerscan.yaml)")
	pf.BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	pf.StringVarP(&flagRegion, "region", "r", "", "AWS region")
	pf.StringVarP(&flagProfile, "profile", "p", "", "AWS profile")
	pf.StringVar(&flagEndpoint, "endpoint", "", "Custom S3 endpoint")
	pf.BoolVar(&flagForcePathStyle, "force-path-style", false, "Use path-style S3 URLs")
	pf.IntVar(&flagMaxKeys, "max-keys", 0, "Keys per listing page (1-1000)")
	pf.Float64Var(&flagRateLimit, "rate-limit", 0, "Max List calls per second per prefix (0=unlimited)")
	pf.IntVar(&flagConcurrency, "concurrency", 0, "Max prefixes traversed in parallel")
	pf.StringVarP(&flagOutput, "output", "o", "jsonl", "Output format (jsonl|table)")
}

// initRuntime loads configuration and the CLI logger before any command.
func initRuntime(cmd *cobra.Command, _ []string) error {
	config.SetConfigFile(cfgFile)

	cfg, err := config.Load(cmd.Context(), flagOverrides(cmd))
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid configuration", err)
	}
	observability.InitCLILogger("ledgerscan", verbose, cfg.Logging.Level)
	observability.CLILogger.Debug("Loaded configuration",
		zap.String("config_file", cfgFile),
		zap.String("log_level", cfg.Logging.Level),
		zap.String("delimiter", cfg.Inventory.Delimiter),
		zap.Int("concurrency", cfg.Inventory.Concurrency))
	return nil
}

// flagOverrides maps explicitly set persistent flags onto config keys so
// they win over file and environment values.
func flagOverrides(cmd *cobra.Command) map[string]any {
	s3 := map[string]any{}
	inv := map[string]any{}
	flags := cmd.Flags()

	if flags.Changed("region") {
		s3["region"] = flagRegion
	}
	if flags.Changed("profile") {
		s3["profile"] = flagProfile
	}
	if flags.Changed("endpoint") {
		s3["endpoint"] = flagEndpoint
	}
	if flags.Changed("force-path-style") {
		s3["force_path_style"] = flagForcePathStyle
	}
	if flags.Changed("max-keys") {
		s3["max_keys"] = flagMaxKeys
	}
	if flags.Changed("rate-limit") {
		inv["rate_limit"] = flagRateLimit
	}
	if flags.Changed("concurrency") {
		inv["concurrency"] = flagConcurrency
	}

	out := map[string]any{}
	if len(s3) > 0 {
		out["s3"] = s3
	}
	if len(inv) > 0 {
		out["inventory"] = inv
	}
	return out
}

// ExitError carries a foundry exit code through cobra.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// exitError creates an error that will cause the CLI to exit with the given code.
func exitError(code int, message string, err error) error {
	return &ExitError{Code: code, Message: message, Err: err}
}

// ExitCode returns the process exit code for an error returned by Execute.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var ee *ExitError
	if errors.As(err, &ee) {
		return ee.Code
	}
	if errors.Is(err, context.Canceled) {
		return foundry.ExitSignalInt
	}
	return 1
}

// Execute runs the root command and returns the process exit code.
func Execute(ctx context.Context) int {
	rootCmd.SetContext(ctx)
	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	return ExitCode(err)
}
