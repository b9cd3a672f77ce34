package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/pflag"

	"github.com/dmitrijs2005/marinelog/internal/configx"
)

// Config holds runtime settings for the marinelog CLI.
//
// Relative DatabaseFile and LogFile values are resolved against DataDir.
type Config struct {
	ServerURL            string        `mapstructure:"server_url"`
	OnlineCheckInterval  time.Duration `mapstructure:"online_check_interval"`
	ConnectivityDebounce time.Duration `mapstructure:"connectivity_debounce"`
	DataDir              string        `mapstructure:"data_dir"`
	DatabaseFile         string        `mapstructure:"database_file"`
	LogFile              string        `mapstructure:"log_file"`
	LogLevel             string        `mapstructure:"log_level"`
	Language             string        `mapstructure:"language"`
	PhotoMaxDimension    int           `mapstructure:"photo_max_dimension"`
	PhotoQuality         int           `mapstructure:"photo_quality"`
	RetryAttempts        int           `mapstructure:"retry_attempts"`
	RetryBaseDelay       time.Duration `mapstructure:"retry_base_delay"`
	PushConcurrency      int           `mapstructure:"push_concurrency"`
	RequestTimeout       time.Duration `mapstructure:"request_timeout"`
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerURL = "http://127.0.0.1:8080"
	c.OnlineCheckInterval = 3 * time.Second
	c.ConnectivityDebounce = time.Second
	c.DataDir = defaultDataDir()
	c.DatabaseFile = "records.db"
	c.LogFile = "marinelog.log"
	c.LogLevel = "info"
	c.Language = "en"
	c.PhotoMaxDimension = 800
	c.PhotoQuality = 70
	c.RetryAttempts = 3
	c.RetryBaseDelay = 500 * time.Millisecond
	c.PushConcurrency = 4
	c.RequestTimeout = 30 * time.Second
}

// AddFlags registers one flag per field, defaulting to the values already
// in c, plus -c/--config.
func (c *Config) AddFlags(fs *pflag.FlagSet) {
	configx.AddConfigFlag(fs)
	fs.StringVarP(&c.ServerURL, "server-url", "a", c.ServerURL, "base URL of the marinelog server")
	fs.DurationVar(&c.OnlineCheckInterval, "online-check-interval", c.OnlineCheckInterval, "how often server reachability is probed")
	fs.DurationVar(&c.ConnectivityDebounce, "connectivity-debounce", c.ConnectivityDebounce, "minimum time between connectivity transitions")
	fs.StringVar(&c.DataDir, "data-dir", c.DataDir, "directory holding the local database and log")
	fs.StringVar(&c.DatabaseFile, "database-file", c.DatabaseFile, "local database file")
	fs.StringVar(&c.LogFile, "log-file", c.LogFile, "log file")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "log level: debug, info, warn or error")
	fs.StringVarP(&c.Language, "language", "l", c.Language, "message language: en or es")
	fs.IntVar(&c.PhotoMaxDimension, "photo-max-dimension", c.PhotoMaxDimension, "longest photo side after compression, in pixels")
	fs.IntVar(&c.PhotoQuality, "photo-quality", c.PhotoQuality, "JPEG quality for compressed photos (1-100)")
	fs.IntVar(&c.RetryAttempts, "retry-attempts", c.RetryAttempts, "attempts per remote call")
	fs.DurationVar(&c.RetryBaseDelay, "retry-base-delay", c.RetryBaseDelay, "delay before the first retry")
	fs.IntVar(&c.PushConcurrency, "push-concurrency", c.PushConcurrency, "records pushed in parallel during sync")
	fs.DurationVar(&c.RequestTimeout, "request-timeout", c.RequestTimeout, "timeout for a single HTTP request")
}

// Validate reports settings the client cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.ServerURL == "" {
		errs = append(errs, errors.New("server url is required"))
	}
	if c.OnlineCheckInterval <= 0 {
		errs = append(errs, fmt.Errorf("online check interval must be positive, got %s", c.OnlineCheckInterval))
	}
	if c.ConnectivityDebounce < 0 {
		errs = append(errs, fmt.Errorf("connectivity debounce must not be negative, got %s", c.ConnectivityDebounce))
	}
	if c.PhotoMaxDimension <= 0 {
		errs = append(errs, fmt.Errorf("photo max dimension must be positive, got %d", c.PhotoMaxDimension))
	}
	if c.PhotoQuality < 1 || c.PhotoQuality > 100 {
		errs = append(errs, fmt.Errorf("photo quality must be within 1-100, got %d", c.PhotoQuality))
	}
	if c.RetryAttempts < 1 {
		errs = append(errs, fmt.Errorf("retry attempts must be at least 1, got %d", c.RetryAttempts))
	}
	if c.PushConcurrency < 1 {
		errs = append(errs, fmt.Errorf("push concurrency must be at least 1, got %d", c.PushConcurrency))
	}
	return errors.Join(errs...)
}

// DatabasePath is the absolute location of the local database.
func (c *Config) DatabasePath() string { return c.resolve(c.DatabaseFile) }

// LogPath is the absolute location of the log file.
func (c *Config) LogPath() string { return c.resolve(c.LogFile) }

// EnsureDataDir creates DataDir if it is missing.
func (c *Config) EnsureDataDir() error {
	if err := os.MkdirAll(c.DataDir, 0o700); err != nil {
		return fmt.Errorf("failed to create data dir %s: %w", c.DataDir, err)
	}
	return nil
}

func (c *Config) resolve(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.DataDir, name)
}

// Load applies defaults, then the optional config file, MARINELOG_*
// environment variables and changed flags from fs. fs must have been
// populated by AddFlags.
func Load(fs *pflag.FlagSet) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := configx.Load(fs, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".marinelog"
	}
	return filepath.Join(home, ".marinelog")
}
