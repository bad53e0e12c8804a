// Package config loads ledgerscan runtime configuration.
//
// Values are layered, lowest precedence first: built-in defaults, an
// optional ledgerscan.yaml (working directory, then the XDG config dir,
// $XDG_CONFIG_HOME/ledgerscan/), LEDGERSCAN_* environment variables, and
// runtime overrides passed to Load.
package config

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	gfconfig "github.com/fulmenhq/gofulmen/config"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

const (
	// EnvPrefix prefixes every environment variable read by Load.
	EnvPrefix = "LEDGERSCAN"

	// AppName names the config file and the XDG config directory.
	AppName = "ledgerscan"
)

// Config is the effective runtime configuration.
type Config struct {
	Logging   LoggingConfig   `mapstructure:"logging"`
	S3        S3Config        `mapstructure:"s3"`
	Inventory InventoryConfig `mapstructure:"inventory"`
	Snapshot  SnapshotConfig  `mapstructure:"snapshot"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

// S3Config holds connection defaults applied to s3:// URIs.
type S3Config struct {
	Region         string `mapstructure:"region"`
	Endpoint       string `mapstructure:"endpoint"`
	Profile        string `mapstructure:"profile"`
	ForcePathStyle bool   `mapstructure:"force_path_style"`
	MaxKeys        int    `mapstructure:"max_keys"`
}

// InventoryConfig tunes traversals.
type InventoryConfig struct {
	Delimiter    string        `mapstructure:"delimiter"`
	RecentWindow time.Duration `mapstructure:"recent_window"`
	Concurrency  int           `mapstructure:"concurrency"`

	// RateLimit caps List calls per second per cursor; 0 is unlimited.
	RateLimit float64 `mapstructure:"rate_limit"`
}

type SnapshotConfig struct {
	Dir string `mapstructure:"dir"`
}

// envSpec binds a config key to environment variable names beyond the
// automatic LEDGERSCAN_<SECTION>_<KEY> form.
type envSpec struct {
	Key   string
	Names []string
}

var (
	configMu   sync.RWMutex
	appConfig  *Config
	configFile string
)

func defaults() map[string]any {
	return map[string]any{
		"logging.level":           "info",
		"s3.region":               "",
		"s3.endpoint":             "",
		"s3.profile":              "",
		"s3.force_path_style":     false,
		"s3.max_keys":             1000,
		"inventory.delimiter":     "/",
		"inventory.recent_window": 24 * time.Hour,
		"inventory.concurrency":   4,
		"inventory.rate_limit":    0.0,
		"snapshot.dir":            "snapshots",
	}
}

func getEnvSpecs() []envSpec {
	return []envSpec{
		{Key: "logging.level", Names: []string{EnvPrefix + "_LOG_LEVEL", EnvPrefix + "_LOGGING_LEVEL"}},
		{Key: "s3.region", Names: []string{EnvPrefix + "_S3_REGION", "AWS_REGION"}},
		{Key: "s3.endpoint", Names: []string{EnvPrefix + "_S3_ENDPOINT"}},
		{Key: "s3.profile", Names: []string{EnvPrefix + "_S3_PROFILE", "AWS_PROFILE"}},
	}
}

// SetConfigFile makes Load read path instead of searching for
// ledgerscan.yaml. An empty path restores the search.
func SetConfigFile(path string) {
	configMu.Lock()
	defer configMu.Unlock()
	configFile = path
}

// Load builds the configuration and stores it for Get.
func Load(ctx context.Context, overrides ...map[string]any) (*Config, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	configMu.RLock()
	explicit := configFile
	configMu.RUnlock()

	v := viper.New()
	for k, val := range defaults() {
		v.SetDefault(k, val)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, spec := range getEnvSpecs() {
		if err := v.BindEnv(append([]string{spec.Key}, spec.Names...)...); err != nil {
			return nil, fmt.Errorf("bind env for %s: %w", spec.Key, err)
		}
	}

	if err := readConfigFile(v, explicit); err != nil {
		return nil, err
	}

	for _, o := range overrides {
		for k, val := range flatten("", o) {
			v.Set(k, val)
		}
	}

	var cfg Config
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&cfg, hook); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	configMu.Lock()
	appConfig = &cfg
	configMu.Unlock()
	return &cfg, nil
}

func readConfigFile(v *viper.Viper, explicit string) error {
	if explicit != "" {
		v.SetConfigFile(explicit)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config file %s: %w", explicit, err)
		}
		return nil
	}

	v.SetConfigName(AppName)
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if dir := gfconfig.GetAppConfigDir(AppName); dir != AppName {
		v.AddConfigPath(dir)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config file: %w", err)
	}
	return nil
}

// flatten turns nested override maps into dotted viper keys.
func flatten(prefix string, m map[string]any) map[string]any {
	out := make(map[string]any)
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		key := strings.ToLower(k)
		if prefix != "" {
			key = prefix + "." + key
		}
		if nested, ok := m[k].(map[string]any); ok {
			for nk, nv := range flatten(key, nested) {
				out[nk] = nv
			}
			continue
		}
		out[key] = m[k]
	}
	return out
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error; got %q", c.Logging.Level)
	}
	if c.S3.MaxKeys < 0 || c.S3.MaxKeys > 1000 {
		return fmt.Errorf("s3.max_keys must be between 0 and 1000, got %d", c.S3.MaxKeys)
	}
	if c.Inventory.Delimiter == "" {
		return errors.New("inventory.delimiter must not be empty")
	}
	if c.Inventory.RecentWindow <= 0 {
		return fmt.Errorf("inventory.recent_window must be positive, got %s", c.Inventory.RecentWindow)
	}
	if c.Inventory.Concurrency < 1 {
		return fmt.Errorf("inventory.concurrency must be >= 1, got %d", c.Inventory.Concurrency)
	}
	if c.Inventory.RateLimit < 0 {
		return fmt.Errorf("inventory.rate_limit must be >= 0, got %g", c.Inventory.RateLimit)
	}
	return nil
}

// Get returns the configuration from the last successful Load, or the
// defaults when Load has not run.
func Get() *Config {
	configMu.RLock()
	cfg := appConfig
	configMu.RUnlock()
	if cfg != nil {
		return cfg
	}

	return &Config{
		Logging: LoggingConfig{Level: "info"},
		S3:      S3Config{MaxKeys: 1000},
		Inventory: InventoryConfig{
			Delimiter:    "/",
			RecentWindow: 24 * time.Hour,
			Concurrency:  4,
		},
		Snapshot: SnapshotConfig{Dir: "snapshots"},
	}
}
