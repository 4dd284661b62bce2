// Package config loads rostersync settings with viper from, in increasing
// priority, built-in defaults, a YAML or TOML config file, ROSTERSYNC_*
// environment variables and command-line flags.
//
// Environment variable names are the key upper-cased with dots replaced by
// underscores: sync.login_timeout is ROSTERSYNC_SYNC_LOGIN_TIMEOUT.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/troopkit/rostersync/internal/browser"
	"github.com/troopkit/rostersync/internal/logging"
	"github.com/troopkit/rostersync/internal/orchestrator"
	"github.com/troopkit/rostersync/internal/staging"
	"github.com/troopkit/rostersync/internal/store"
	"github.com/troopkit/rostersync/internal/vocab"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "ROSTERSYNC"

// Config is the full set of settings.
type Config struct {
	Unit      UnitConfig      `mapstructure:"unit"`
	Browser   BrowserConfig   `mapstructure:"browser"`
	Sync      SyncConfig      `mapstructure:"sync"`
	Tour      TourConfig      `mapstructure:"tour"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Log       LogConfig       `mapstructure:"log"`
	Vocab     VocabConfig     `mapstructure:"vocab"`
	Staging   StagingConfig   `mapstructure:"staging"`
	Dashboard DashboardConfig `mapstructure:"dashboard"`
	Watch     WatchConfig     `mapstructure:"watch"`

	// File is the config file that was read, if any.
	File string `mapstructure:"-"`
}

type UnitConfig struct {
	ID string `mapstructure:"id"`
}

type BrowserConfig struct {
	Binary         string        `mapstructure:"binary"`
	Session        string        `mapstructure:"session"`
	CommandTimeout time.Duration `mapstructure:"command_timeout"`
}

type SyncConfig struct {
	LoginURL         string        `mapstructure:"login_url"`
	RosterURL        string        `mapstructure:"roster_url"`
	Headed           bool          `mapstructure:"headed"`
	LoginTimeout     time.Duration `mapstructure:"login_timeout"`
	PollInterval     time.Duration `mapstructure:"poll_interval"`
	RateLimitDelay   time.Duration `mapstructure:"rate_limit_delay"`
	RosterRetryDelay time.Duration `mapstructure:"roster_retry_delay"`
	RosterRetries    int           `mapstructure:"roster_retries"`
	StuckPageLimit   int           `mapstructure:"stuck_page_limit"`
	MinPageCeiling   int           `mapstructure:"min_page_ceiling"`
	RosterOnly       bool          `mapstructure:"roster_only"`
	ScreenshotDir    string        `mapstructure:"screenshot_dir"`
}

type TourConfig struct {
	Attempts       int           `mapstructure:"attempts"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

type VocabConfig struct {
	File string `mapstructure:"file"`
}

type StagingConfig struct {
	P18AsAdult bool `mapstructure:"p18_as_adult"`
}

type DashboardConfig struct {
	Addr string `mapstructure:"addr"`
}

type WatchConfig struct {
	Dir      string        `mapstructure:"dir"`
	Debounce time.Duration `mapstructure:"debounce"`
}

// SetDefaults registers the built-in value of every key on v.
func SetDefaults(v *viper.Viper) {
	b := browser.DefaultConfig()
	o := orchestrator.DefaultConfig()

	v.SetDefault("unit.id", "")
	v.SetDefault("browser.binary", "agent-browser")
	v.SetDefault("browser.session", b.Session)
	v.SetDefault("browser.command_timeout", 60*time.Second)

	v.SetDefault("sync.login_url", "https://advancements.scouting.org/login")
	v.SetDefault("sync.roster_url", "https://advancements.scouting.org/roster")
	v.SetDefault("sync.headed", o.Headed)
	v.SetDefault("sync.login_timeout", o.LoginTimeout)
	v.SetDefault("sync.poll_interval", b.PollInterval)
	v.SetDefault("sync.rate_limit_delay", o.RateLimitDelay)
	v.SetDefault("sync.roster_retry_delay", o.RosterRetryDelay)
	v.SetDefault("sync.roster_retries", o.RosterRetries)
	v.SetDefault("sync.stuck_page_limit", o.StuckPageLimit)
	v.SetDefault("sync.min_page_ceiling", o.MinPageCeiling)
	v.SetDefault("sync.roster_only", false)
	v.SetDefault("sync.screenshot_dir", "")

	v.SetDefault("tour.attempts", b.TourAttempts)
	v.SetDefault("tour.initial_backoff", b.TourBackoff)

	v.SetDefault("database.driver", store.DriverSQLite)
	v.SetDefault("database.dsn", "rostersync.db")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 50)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 28)

	v.SetDefault("vocab.file", "")
	v.SetDefault("staging.p18_as_adult", false)
	v.SetDefault("dashboard.addr", "")
	v.SetDefault("watch.dir", "")
	v.SetDefault("watch.debounce", 500*time.Millisecond)
}

// New returns a viper instance with defaults and environment binding.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the config file at path, or searches the working directory
// and the user config directory for rostersync.{yaml,yml,toml} when path is
// empty. A missing file is not an error unless path names it.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("rostersync")
		v.AddConfigPath(".")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, "rostersync"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	c.File = v.ConfigFileUsed()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// BindFlags binds each flag to the key of the same name in keys, so a flag
// set on the command line overrides file and environment values.
func BindFlags(v *viper.Viper, flags *pflag.FlagSet, keys map[string]string) error {
	for flag, key := range keys {
		f := flags.Lookup(flag)
		if f == nil {
			return fmt.Errorf("unknown flag %q", flag)
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("failed to bind flag %s: %w", flag, err)
		}
	}
	return nil
}

// Validate rejects values no component can run with.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Database.Driver) {
	case store.DriverSQLite, store.DriverPostgres:
	default:
		return fmt.Errorf("database.driver must be %q or %q, got %q", store.DriverSQLite, store.DriverPostgres, c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return errors.New("database.dsn is required")
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("log.format must be json or console, got %q", c.Log.Format)
	}
	if c.Sync.StuckPageLimit < 1 {
		return errors.New("sync.stuck_page_limit must be at least 1")
	}
	if c.Sync.RosterRetries < 0 {
		return errors.New("sync.roster_retries cannot be negative")
	}
	return nil
}

// LoadVocabulary returns the configured vocabulary, or the built-in tables.
func (c *Config) LoadVocabulary() (*vocab.Vocabulary, error) {
	if c.Vocab.File == "" {
		return vocab.Default(), nil
	}
	return vocab.Load(c.Vocab.File)
}

// StoreConfig returns the datastore settings.
func (c *Config) StoreConfig() store.Config {
	return store.Config{Driver: c.Database.Driver, DSN: c.Database.DSN}
}

// LoggingConfig returns the logger settings.
func (c *Config) LoggingConfig() logging.Config {
	return logging.Config{
		Level:      c.Log.Level,
		Format:     c.Log.Format,
		File:       c.Log.File,
		MaxSizeMB:  c.Log.MaxSizeMB,
		MaxBackups: c.Log.MaxBackups,
		MaxAgeDays: c.Log.MaxAgeDays,
	}
}

// Runner returns the automation CLI runner.
func (c *Config) Runner() *browser.ExecRunner {
	return &browser.ExecRunner{Binary: c.Browser.Binary, Timeout: c.Browser.CommandTimeout}
}

// BrowserConfig returns the client settings using v for marker text.
func (c *Config) BrowserConfig(v *vocab.Vocabulary) browser.Config {
	return browser.Config{
		Session:      c.Browser.Session,
		PollInterval: c.Sync.PollInterval,
		TourAttempts: c.Tour.Attempts,
		TourBackoff:  c.Tour.InitialBackoff,
		Vocab:        v,
	}
}

// OrchestratorConfig returns the run settings.
func (c *Config) OrchestratorConfig() orchestrator.Config {
	return orchestrator.Config{
		LoginURL:         c.Sync.LoginURL,
		RosterURL:        c.Sync.RosterURL,
		Headed:           c.Sync.Headed,
		LoginTimeout:     c.Sync.LoginTimeout,
		RateLimitDelay:   c.Sync.RateLimitDelay,
		RosterRetries:    c.Sync.RosterRetries,
		RosterRetryDelay: c.Sync.RosterRetryDelay,
		StuckPageLimit:   c.Sync.StuckPageLimit,
		MinPageCeiling:   c.Sync.MinPageCeiling,
		RosterOnly:       c.Sync.RosterOnly,
		ScreenshotDir:    c.Sync.ScreenshotDir,
	}
}

// StagingOptions returns the classification policy.
func (c *Config) StagingOptions() staging.Options {
	return staging.Options{P18AsAdult: c.Staging.P18AsAdult}
}
