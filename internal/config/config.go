package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gookit/validate"
	"github.com/spf13/viper"
)

// Config is the root configuration for feedtrack, stored in
// ~/.feedtrack/config.yaml. Every key can be overridden from the
// environment as FEEDTRACK_<SECTION>_<KEY>.
type Config struct {
	Airtable    AirtableConfig    `mapstructure:"airtable"`
	Refresh     RefreshConfig     `mapstructure:"refresh"`
	Log         LogConfig         `mapstructure:"log"`
	Cache       CacheConfig       `mapstructure:"cache"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
	Preferences PreferencesConfig `mapstructure:"preferences"`
}

// AirtableConfig locates the feeding tracker table.
type AirtableConfig struct {
	BaseURL string `mapstructure:"base_url" validate:"required"`
	// BaseID and APIKey are only checked by RequireAirtable; the day1
	// commands work without them.
	BaseID   string        `mapstructure:"base_id"`
	APIKey   string        `mapstructure:"api_key"`
	Table    string        `mapstructure:"table" validate:"required"`
	PageSize int           `mapstructure:"page_size" validate:"min:1|max:100"`
	Timeout  time.Duration `mapstructure:"timeout" validate:"min:0"`
}

type RefreshConfig struct {
	Interval time.Duration `mapstructure:"interval" validate:"required|min:1000000000"`
}

type LogConfig struct {
	Level string `mapstructure:"level" validate:"required|in:trace,debug,info,warn,error"`
}

// CacheConfig sizes the in-memory copy of the last good fetch.
type CacheConfig struct {
	SizeMB int           `mapstructure:"size_mb" validate:"min:0"`
	TTL    time.Duration `mapstructure:"ttl" validate:"min:0"`
}

type MetricsConfig struct {
	// Addr is the listen address for /metrics during watch. Empty = disabled.
	Addr string `mapstructure:"addr"`
}

type PreferencesConfig struct {
	Path string `mapstructure:"path"`
}

const (
	// DefaultTable is the table name used by the tracker base.
	DefaultTable = "Feeding Tracker"
	// DefaultInterval matches the one-minute auto refresh of the history view.
	DefaultInterval = time.Minute
)

// configTemplate is the annotated config written on first run.
const configTemplate = `# feedtrack configuration – ~/.feedtrack/config.yaml
#
# Every key can also be set from the environment, e.g.
# FEEDTRACK_AIRTABLE_BASE_ID or FEEDTRACK_REFRESH_INTERVAL.
# AIRTABLE_API_KEY and AIRTABLE_BASE_ID are honoured as well.

airtable:
  # REST endpoint root.
  base_url: "https://api.airtable.com/v0"
  # Base holding the feeding table, e.g. "appXXXXXXXXXXXXXX".
  base_id: ""
  # Personal access token. Prefer the AIRTABLE_API_KEY variable.
  api_key: ""
  table: "Feeding Tracker"
  # Rows per page (1-100).
  page_size: 100
  # Per-request timeout; 0 waits forever.
  timeout: 30s

refresh:
  # Auto refresh period for "feedtrack watch".
  interval: 60s

log:
  # trace, debug, info, warn or error.
  level: info

cache:
  # Memory for the last good fetch, served when Airtable is unreachable.
  # 0 disables the fallback.
  size_mb: 4
  ttl: 24h

metrics:
  # Prometheus listen address for "feedtrack watch", e.g. ":9464".
  addr: ""

preferences:
  # Where the day 1 date is kept. Empty = ~/.feedtrack/preferences.json
  path: ""
`

// DefaultPath returns ~/.feedtrack/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".feedtrack", "config.yaml"), nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")

	v.SetDefault("airtable.base_url", "https://api.airtable.com/v0")
	v.SetDefault("airtable.base_id", "")
	v.SetDefault("airtable.api_key", "")
	v.SetDefault("airtable.table", DefaultTable)
	v.SetDefault("airtable.page_size", 100)
	v.SetDefault("airtable.timeout", 30*time.Second)
	v.SetDefault("refresh.interval", DefaultInterval)
	v.SetDefault("log.level", "info")
	v.SetDefault("cache.size_mb", 4)
	v.SetDefault("cache.ttl", 24*time.Hour)
	v.SetDefault("metrics.addr", "")
	v.SetDefault("preferences.path", "")

	v.SetEnvPrefix("FEEDTRACK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("airtable.api_key", "FEEDTRACK_AIRTABLE_API_KEY", "AIRTABLE_API_KEY")
	_ = v.BindEnv("airtable.base_id", "FEEDTRACK_AIRTABLE_BASE_ID", "AIRTABLE_BASE_ID")
	return v
}

// Load reads the config file at path (or the default location when empty),
// creating it with annotated defaults on first run. Environment variables
// override file values.
func Load(path string) (Config, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return Config{}, err
		}
		path = p
	}

	v := newViper()
	v.SetConfigFile(path)

	if _, err := os.Stat(path); os.IsNotExist(err) {
		// First run: write the annotated template so users can discover options.
		if writeErr := writeDefault(path); writeErr != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not create config file %s: %v\n", path, writeErr)
		}
	}
	if err := v.ReadInConfig(); err != nil && !errors.Is(err, os.ErrNotExist) {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("parsing config file %s: %w\nTip: delete the file to regenerate defaults", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}

	if cfg.Preferences.Path == "" {
		cfg.Preferences.Path = filepath.Join(filepath.Dir(path), "preferences.json")
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks field ranges.
func (c *Config) Validate() error {
	v := validate.Struct(c)
	if !v.Validate() {
		return fmt.Errorf("invalid config: %s", v.Errors.One())
	}
	return nil
}

// RequireAirtable reports a helpful error when the credentials are missing.
func (c *Config) RequireAirtable() error {
	if c.Airtable.BaseID == "" {
		return errors.New("airtable.base_id is not set (config file or AIRTABLE_BASE_ID)")
	}
	if c.Airtable.APIKey == "" {
		return errors.New("airtable.api_key is not set (config file or AIRTABLE_API_KEY)")
	}
	return nil
}

// writeDefault creates the config directory and writes the annotated default
// config template.
func writeDefault(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(configTemplate), 0o600); err != nil {
		return fmt.Errorf("writing default config: %w", err)
	}
	return nil
}
