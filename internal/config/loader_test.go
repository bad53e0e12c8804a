package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points HOME and the working directory at empty temp dirs, clears
// inherited env vars and resets package state.
func isolate(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	t.Setenv("HOME", t.TempDir())
	t.Chdir(dir)
	for _, name := range []string{
		"XDG_CONFIG_HOME",
		"AWS_REGION", "AWS_PROFILE",
		"LEDGERSCAN_LOG_LEVEL", "LEDGERSCAN_LOGGING_LEVEL",
		"LEDGERSCAN_S3_REGION", "LEDGERSCAN_S3_ENDPOINT", "LEDGERSCAN_S3_PROFILE",
		"LEDGERSCAN_INVENTORY_CONCURRENCY", "LEDGERSCAN_INVENTORY_RECENT_WINDOW",
	} {
		t.Setenv(name, "")
	}

	resetForTest()
	t.Cleanup(resetForTest)
	return dir
}

func resetForTest() {
	configMu.Lock()
	defer configMu.Unlock()
	appConfig = nil
	configFile = ""
}

func TestLoad(t *testing.T) {
	ctx := context.Background()

	t.Run("LoadDefaults", func(t *testing.T) {
		isolate(t)

		cfg, err := Load(ctx)
		require.NoError(t, err)
		require.NotNil(t, cfg)

		assert.Equal(t, "info", cfg.Logging.Level)
		assert.Empty(t, cfg.S3.Region)
		assert.Equal(t, 1000, cfg.S3.MaxKeys)
		assert.False(t, cfg.S3.ForcePathStyle)
		assert.Equal(t, "/", cfg.Inventory.Delimiter)
		assert.Equal(t, 24*time.Hour, cfg.Inventory.RecentWindow)
		assert.Equal(t, 4, cfg.Inventory.Concurrency)
		assert.Zero(t, cfg.Inventory.RateLimit)
		assert.Equal(t, "snapshots", cfg.Snapshot.Dir)
	})

	t.Run("RuntimeOverrides", func(t *testing.T) {
		isolate(t)

		overrides := map[string]any{
			"inventory": map[string]any{
				"concurrency":   8,
				"recent_window": "90m",
			},
			"logging": map[string]any{
				"level": "debug",
			},
		}

		cfg, err := Load(ctx, overrides)
		require.NoError(t, err)

		assert.Equal(t, 8, cfg.Inventory.Concurrency)
		assert.Equal(t, 90*time.Minute, cfg.Inventory.RecentWindow)
		assert.Equal(t, "debug", cfg.Logging.Level)

		assert.Equal(t, "/", cfg.Inventory.Delimiter)
		assert.Equal(t, "snapshots", cfg.Snapshot.Dir)
	})

	t.Run("EnvOverrides", func(t *testing.T) {
		isolate(t)
		t.Setenv("LEDGERSCAN_LOG_LEVEL", "warn")
		t.Setenv("LEDGERSCAN_S3_REGION", "eu-west-1")
		t.Setenv("LEDGERSCAN_S3_FORCE_PATH_STYLE", "true")
		t.Setenv("LEDGERSCAN_INVENTORY_RATE_LIMIT", "2.5")

		cfg, err := Load(ctx)
		require.NoError(t, err)

		assert.Equal(t, "warn", cfg.Logging.Level)
		assert.Equal(t, "eu-west-1", cfg.S3.Region)
		assert.True(t, cfg.S3.ForcePathStyle)
		assert.InDelta(t, 2.5, cfg.Inventory.RateLimit, 0.0001)
	})

	t.Run("AWSRegionFallback", func(t *testing.T) {
		isolate(t)
		t.Setenv("AWS_REGION", "ap-southeast-2")

		cfg, err := Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, "ap-southeast-2", cfg.S3.Region)
	})

	t.Run("ConfigPrecedence", func(t *testing.T) {
		isolate(t)
		t.Setenv("LEDGERSCAN_INVENTORY_CONCURRENCY", "6")

		cfg, err := Load(ctx, map[string]any{
			"inventory": map[string]any{"concurrency": 12},
		})
		require.NoError(t, err)
		assert.Equal(t, 12, cfg.Inventory.Concurrency)

		cfg, err = Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, 6, cfg.Inventory.Concurrency)
	})

	t.Run("DurationFromEnv", func(t *testing.T) {
		isolate(t)
		t.Setenv("LEDGERSCAN_INVENTORY_RECENT_WINDOW", "45m")

		cfg, err := Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, 45*time.Minute, cfg.Inventory.RecentWindow)
	})

	t.Run("ConfigFileInWorkingDir", func(t *testing.T) {
		dir := isolate(t)
		content := "s3:\n  endpoint: http://localhost:9000\n  force_path_style: true\nsnapshot:\n  dir: /var/lib/ledgerscan\n"
		require.NoError(t, os.WriteFile(filepath.Join(dir, "ledgerscan.yaml"), []byte(content), 0o600))

		cfg, err := Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, "http://localhost:9000", cfg.S3.Endpoint)
		assert.True(t, cfg.S3.ForcePathStyle)
		assert.Equal(t, "/var/lib/ledgerscan", cfg.Snapshot.Dir)
	})

	t.Run("ConfigFileInXDGConfigHome", func(t *testing.T) {
		isolate(t)
		xdg := t.TempDir()
		t.Setenv("XDG_CONFIG_HOME", xdg)
		require.NoError(t, os.MkdirAll(filepath.Join(xdg, AppName), 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(xdg, AppName, "ledgerscan.yaml"), []byte("logging:\n  level: debug\n"), 0o600))

		cfg, err := Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, "debug", cfg.Logging.Level)
	})

	t.Run("ConfigFileInHomeConfigDir", func(t *testing.T) {
		isolate(t)
		home := os.Getenv("HOME")
		require.NoError(t, os.MkdirAll(filepath.Join(home, ".config", AppName), 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(home, ".config", AppName, "ledgerscan.yaml"), []byte("inventory:\n  concurrency: 9\n"), 0o600))

		cfg, err := Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, 9, cfg.Inventory.Concurrency)
	})

	t.Run("WorkingDirBeatsXDGConfigHome", func(t *testing.T) {
		dir := isolate(t)
		xdg := t.TempDir()
		t.Setenv("XDG_CONFIG_HOME", xdg)
		require.NoError(t, os.MkdirAll(filepath.Join(xdg, AppName), 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(xdg, AppName, "ledgerscan.yaml"), []byte("logging:\n  level: debug\n"), 0o600))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "ledgerscan.yaml"), []byte("logging:\n  level: warn\n"), 0o600))

		cfg, err := Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, "warn", cfg.Logging.Level)
	})

	t.Run("EnvBeatsConfigFile", func(t *testing.T) {
		dir := isolate(t)
		require.NoError(t, os.WriteFile(filepath.Join(dir, "ledgerscan.yaml"), []byte("logging:\n  level: error\n"), 0o600))
		t.Setenv("LEDGERSCAN_LOG_LEVEL", "debug")

		cfg, err := Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, "debug", cfg.Logging.Level)
	})

	t.Run("ExplicitConfigFile", func(t *testing.T) {
		isolate(t)
		path := filepath.Join(t.TempDir(), "custom.yaml")
		require.NoError(t, os.WriteFile(path, []byte("inventory:\n  delimiter: \"|\"\n"), 0o600))
		SetConfigFile(path)

		cfg, err := Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, "|", cfg.Inventory.Delimiter)
	})

	t.Run("ExplicitConfigFileMissing", func(t *testing.T) {
		isolate(t)
		SetConfigFile(filepath.Join(t.TempDir(), "missing.yaml"))

		_, err := Load(ctx)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "missing.yaml")
	})

	t.Run("CancelledContext", func(t *testing.T) {
		isolate(t)
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		_, err := Load(cctx)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestLoad_Invalid(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name      string
		overrides map[string]any
		wantErr   string
	}{
		{"bad level", map[string]any{"logging": map[string]any{"level": "loud"}}, "logging.level"},
		{"max keys too high", map[string]any{"s3": map[string]any{"max_keys": 5000}}, "s3.max_keys"},
		{"zero concurrency", map[string]any{"inventory": map[string]any{"concurrency": 0}}, "inventory.concurrency"},
		{"negative window", map[string]any{"inventory": map[string]any{"recent_window": "-1h"}}, "inventory.recent_window"},
		{"negative rate", map[string]any{"inventory": map[string]any{"rate_limit": -1.0}}, "inventory.rate_limit"},
		{"empty delimiter", map[string]any{"inventory": map[string]any{"delimiter": ""}}, "inventory.delimiter"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)
			_, err := Load(ctx, tt.overrides)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestGet(t *testing.T) {
	isolate(t)

	def := Get()
	require.NotNil(t, def)
	assert.Equal(t, 4, def.Inventory.Concurrency)

	_, err := Load(context.Background(), map[string]any{"snapshot": map[string]any{"dir": "out"}})
	require.NoError(t, err)
	assert.Equal(t, "out", Get().Snapshot.Dir)
}

func TestFlatten(t *testing.T) {
	got := flatten("", map[string]any{
		"S3":      map[string]any{"Region": "us-east-2"},
		"logging": map[string]any{"level": "info"},
		"top":     1,
	})
	assert.Equal(t, map[string]any{
		"s3.region":     "us-east-2",
		"logging.level": "info",
		"top":           1,
	}, got)
}
