package model

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// RemoteConfig holds the connection settings for the remote notification service.
type RemoteConfig struct {
	// BaseURL is the root URL of the service (e.g., http://127.0.0.1:1488).
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`

	// Username is the basic-auth user. The password lives in the keyring.
	Username string `mapstructure:"username" yaml:"username"`

	// TimeoutSec bounds every remote call.
	TimeoutSec int `mapstructure:"timeout_sec" yaml:"timeout_sec"`
}

// Timeout returns TimeoutSec as a duration.
func (c RemoteConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSec) * time.Second
}

// SchedulerConfig holds the tuning knobs of the firing loop.
type SchedulerConfig struct {
	PollIntervalMs  int `mapstructure:"poll_interval_ms" yaml:"poll_interval_ms"`
	ToleranceMs     int `mapstructure:"tolerance_ms" yaml:"tolerance_ms"`
	SampleSize      int `mapstructure:"sample_size" yaml:"sample_size"`
	LowWatermark    int `mapstructure:"low_watermark" yaml:"low_watermark"`
	SyncIntervalSec int `mapstructure:"sync_interval_sec" yaml:"sync_interval_sec"`
}

// PollInterval returns the sleep between loop iterations.
func (c SchedulerConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

// Tolerance returns the window ahead of now within which a notification is due.
func (c SchedulerConfig) Tolerance() time.Duration {
	return time.Duration(c.ToleranceMs) * time.Millisecond
}

// SyncInterval returns the minimum time between throttled reconciliations.
func (c SchedulerConfig) SyncInterval() time.Duration {
	return time.Duration(c.SyncIntervalSec) * time.Second
}

// StoreConfig holds local persistence settings.
type StoreConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `mapstructure:"level" yaml:"level"`

	// Encoding is "console" or "json".
	Encoding string `mapstructure:"encoding" yaml:"encoding"`

	// File redirects log output to a file. Empty means stderr.
	File string `mapstructure:"file" yaml:"file"`
}

// MetricsConfig holds the Prometheus exporter settings.
type MetricsConfig struct {
	// Addr is the listen address for /metrics in daemon mode. Empty disables it.
	Addr string `mapstructure:"addr" yaml:"addr"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Remote    RemoteConfig    `mapstructure:"remote" yaml:"remote"`
	Scheduler SchedulerConfig `mapstructure:"scheduler" yaml:"scheduler"`
	Store     StoreConfig     `mapstructure:"store" yaml:"store"`
	Log       LogConfig       `mapstructure:"log" yaml:"log"`
	Metrics   MetricsConfig   `mapstructure:"metrics" yaml:"metrics"`
}

// configDir returns ~/.config/remindme, falling back to the working directory.
func configDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "remindme")
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/remindme/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(configDir(), "config.yaml")
}

// DefaultAppConfig returns a sensible default configuration.
func DefaultAppConfig() *AppConfig {
	return &AppConfig{
		Remote: RemoteConfig{
			BaseURL:    "http://127.0.0.1:1488",
			TimeoutSec: 10,
		},
		Scheduler: SchedulerConfig{
			PollIntervalMs:  500,
			ToleranceMs:     1000,
			SampleSize:      10,
			LowWatermark:    3,
			SyncIntervalSec: 30,
		},
		Store: StoreConfig{
			Path: filepath.Join(configDir(), "remindme.db"),
		},
		Log: LogConfig{
			Level:    "info",
			Encoding: "console",
			File:     "",
		},
	}
}

// setDefaults mirrors DefaultAppConfig into viper so missing keys resolve.
func setDefaults(v *viper.Viper) {
	d := DefaultAppConfig()
	v.SetDefault("remote.base_url", d.Remote.BaseURL)
	v.SetDefault("remote.username", d.Remote.Username)
	v.SetDefault("remote.timeout_sec", d.Remote.TimeoutSec)
	v.SetDefault("scheduler.poll_interval_ms", d.Scheduler.PollIntervalMs)
	v.SetDefault("scheduler.tolerance_ms", d.Scheduler.ToleranceMs)
	v.SetDefault("scheduler.sample_size", d.Scheduler.SampleSize)
	v.SetDefault("scheduler.low_watermark", d.Scheduler.LowWatermark)
	v.SetDefault("scheduler.sync_interval_sec", d.Scheduler.SyncIntervalSec)
	v.SetDefault("store.path", d.Store.Path)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.encoding", d.Log.Encoding)
	v.SetDefault("log.file", d.Log.File)
	v.SetDefault("metrics.addr", d.Metrics.Addr)
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// Environment variables prefixed with REMINDME_ override file values
// (e.g., REMINDME_REMOTE_BASE_URL). A missing file yields the defaults.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("remindme")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		_, missingFile := err.(*os.PathError)
		_, notFound := err.(viper.ConfigFileNotFoundError)
		if !missingFile && !notFound {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := &AppConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config %s: %w", path, err)
	}

	return cfg, nil
}

// Validate rejects settings the scheduler cannot run with.
func (c *AppConfig) Validate() error {
	if strings.TrimSpace(c.Remote.BaseURL) == "" {
		return fmt.Errorf("remote.base_url must not be empty")
	}
	if c.Remote.TimeoutSec <= 0 {
		return fmt.Errorf("remote.timeout_sec must be positive, got %d", c.Remote.TimeoutSec)
	}
	if c.Scheduler.PollIntervalMs <= 0 {
		return fmt.Errorf("scheduler.poll_interval_ms must be positive, got %d", c.Scheduler.PollIntervalMs)
	}
	if c.Scheduler.ToleranceMs < 0 {
		return fmt.Errorf("scheduler.tolerance_ms must not be negative, got %d", c.Scheduler.ToleranceMs)
	}
	if c.Scheduler.SampleSize <= 0 {
		return fmt.Errorf("scheduler.sample_size must be positive, got %d", c.Scheduler.SampleSize)
	}
	if c.Scheduler.LowWatermark < 0 {
		return fmt.Errorf("scheduler.low_watermark must not be negative, got %d", c.Scheduler.LowWatermark)
	}
	if c.Scheduler.SyncIntervalSec <= 0 {
		return fmt.Errorf("scheduler.sync_interval_sec must be positive, got %d", c.Scheduler.SyncIntervalSec)
	}
	if strings.TrimSpace(c.Store.Path) == "" {
		return fmt.Errorf("store.path must not be empty")
	}
	return nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("remote", cfg.Remote)
	v.Set("scheduler", cfg.Scheduler)
	v.Set("store", cfg.Store)
	v.Set("log", cfg.Log)
	v.Set("metrics", cfg.Metrics)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
