// Package observability holds the process-wide CLI logger.
package observability

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// CLILogger is the logger used by CLI commands. It is a no-op until
// InitCLILogger runs so packages can log safely from tests.
var CLILogger = zap.NewNop()

// InitCLILogger replaces CLILogger with a console logger writing to stderr.
// Verbose forces debug level; otherwise level applies ("info" when empty
// or unknown).
func InitCLILogger(name string, verbose bool, level ...string) {
	CLILogger = NewCLILogger(name, verbose, level...)
}

// NewCLILogger builds the logger InitCLILogger installs.
func NewCLILogger(name string, verbose bool, level ...string) *zap.Logger {
	lvl := zapcore.InfoLevel
	if len(level) > 0 {
		lvl = parseLevel(level[0])
	}
	if verbose {
		lvl = zapcore.DebugLevel
	}

	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encCfg),
		zapcore.Lock(os.Stderr),
		zap.NewAtomicLevelAt(lvl),
	)
	return zap.New(core).Named(name)
}

func parseLevel(s string) zapcore.Level {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(strings.ToLower(strings.TrimSpace(s)))); err != nil {
		return zapcore.InfoLevel
	}
	return lvl
}
