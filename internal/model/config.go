package model

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to environment variable overrides
// (e.g., MEDTRACKER_API_BASE_URL).
const EnvPrefix = "MEDTRACKER"

// APIConfig holds connection settings for the medication API.
type APIConfig struct {
	// BaseURL is the root URL of the medication API.
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`

	// TimeoutSec bounds each HTTP request.
	TimeoutSec int `mapstructure:"timeout_sec" yaml:"timeout_sec"`
}

// ReminderConfig controls the reminder scheduler.
type ReminderConfig struct {
	// Timezone is the reference timezone for all day/time comparisons.
	Timezone string `mapstructure:"timezone" yaml:"timezone"`

	// PollIntervalSec is how often the directory and ledger are re-fetched.
	PollIntervalSec int `mapstructure:"poll_interval_sec" yaml:"poll_interval_sec"`

	// RepeatIntervalSec is the minimum gap between notifications for the
	// same unresolved dose.
	RepeatIntervalSec int `mapstructure:"repeat_interval_sec" yaml:"repeat_interval_sec"`

	// CleanupIntervalSec is how often stale day keys are purged.
	CleanupIntervalSec int `mapstructure:"cleanup_interval_sec" yaml:"cleanup_interval_sec"`

	// DefaultLeadMinutes applies to medications that do not set a lead time.
	DefaultLeadMinutes int `mapstructure:"default_lead_minutes" yaml:"default_lead_minutes"`

	// AutoMissAfterMin marks a pending dose MISSED this many minutes after
	// its scheduled time. Zero disables the transition.
	AutoMissAfterMin int `mapstructure:"auto_miss_after_min" yaml:"auto_miss_after_min"`

	// SnoozeMin is the default snooze length offered by the UI.
	SnoozeMin int `mapstructure:"snooze_min" yaml:"snooze_min"`
}

// PollInterval returns the poll interval as a duration.
func (c ReminderConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSec) * time.Second
}

// RepeatInterval returns the repeat interval as a duration.
func (c ReminderConfig) RepeatInterval() time.Duration {
	return time.Duration(c.RepeatIntervalSec) * time.Second
}

// CleanupInterval returns the cleanup interval as a duration.
func (c ReminderConfig) CleanupInterval() time.Duration {
	return time.Duration(c.CleanupIntervalSec) * time.Second
}

// AutoMissAfter returns the auto-miss cutoff, zero when disabled.
func (c ReminderConfig) AutoMissAfter() time.Duration {
	return time.Duration(c.AutoMissAfterMin) * time.Minute
}

// NotificationConfig controls reminder side effects.
type NotificationConfig struct {
	// Sound enables the reminder beep.
	Sound bool `mapstructure:"sound" yaml:"sound"`

	// Desktop grants permission for OS-level desktop notifications.
	Desktop bool `mapstructure:"desktop" yaml:"desktop"`
}

// LogConfig controls the structured logger.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`

	// File is the log destination. Empty logs to stderr.
	File string `mapstructure:"file" yaml:"file"`
}

// StoreConfig locates the local SQLite database.
type StoreConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	API           APIConfig          `mapstructure:"api" yaml:"api"`
	Reminders     ReminderConfig     `mapstructure:"reminders" yaml:"reminders"`
	Notifications NotificationConfig `mapstructure:"notifications" yaml:"notifications"`
	Log           LogConfig          `mapstructure:"log" yaml:"log"`
	Store         StoreConfig        `mapstructure:"store" yaml:"store"`
}

// ConfigDir returns ~/.config/medtracker, or the working directory when the
// home directory cannot be resolved.
func ConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "medtracker")
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/medtracker/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// DefaultAppConfig returns a sensible default configuration.
func DefaultAppConfig() *AppConfig {
	return &AppConfig{
		API: APIConfig{
			BaseURL:    "http://localhost:8080",
			TimeoutSec: 30,
		},
		Reminders: ReminderConfig{
			Timezone:           "Asia/Dhaka",
			PollIntervalSec:    15,
			RepeatIntervalSec:  300,
			CleanupIntervalSec: 3600,
			DefaultLeadMinutes: DefaultLeadMinutes,
			AutoMissAfterMin:   0,
			SnoozeMin:          10,
		},
		Notifications: NotificationConfig{
			Sound:   true,
			Desktop: true,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Store: StoreConfig{
			Path: filepath.Join(ConfigDir(), "medtracker.db"),
		},
	}
}

// setDefaults registers every default on v so missing keys resolve and
// environment overrides are visible to Unmarshal.
func setDefaults(v *viper.Viper) {
	d := DefaultAppConfig()
	v.SetDefault("api.base_url", d.API.BaseURL)
	v.SetDefault("api.timeout_sec", d.API.TimeoutSec)
	v.SetDefault("reminders.timezone", d.Reminders.Timezone)
	v.SetDefault("reminders.poll_interval_sec", d.Reminders.PollIntervalSec)
	v.SetDefault("reminders.repeat_interval_sec", d.Reminders.RepeatIntervalSec)
	v.SetDefault("reminders.cleanup_interval_sec", d.Reminders.CleanupIntervalSec)
	v.SetDefault("reminders.default_lead_minutes", d.Reminders.DefaultLeadMinutes)
	v.SetDefault("reminders.auto_miss_after_min", d.Reminders.AutoMissAfterMin)
	v.SetDefault("reminders.snooze_min", d.Reminders.SnoozeMin)
	v.SetDefault("notifications.sound", d.Notifications.Sound)
	v.SetDefault("notifications.desktop", d.Notifications.Desktop)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("log.file", d.Log.File)
	v.SetDefault("store.path", d.Store.Path)
}

// NewViper returns a Viper instance with defaults and MEDTRACKER_* env
// overrides registered, ready for flags to be bound to it.
func NewViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// If the file does not exist, defaults (plus env overrides) are used.
func LoadConfig(path string) (*AppConfig, error) {
	return LoadConfigWith(NewViper(), path)
}

// LoadConfigWith is LoadConfig on a caller-supplied Viper instance, so
// command-line flags bound to v take precedence.
func LoadConfigWith(v *viper.Viper, path string) (*AppConfig, error) {
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		var pathErr *os.PathError
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &pathErr) && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := DefaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	cfg.normalize()
	return cfg, nil
}

// normalize replaces out-of-range values with defaults.
func (c *AppConfig) normalize() {
	d := DefaultAppConfig()
	if c.Reminders.PollIntervalSec <= 0 {
		c.Reminders.PollIntervalSec = d.Reminders.PollIntervalSec
	}
	if c.Reminders.RepeatIntervalSec <= 0 {
		c.Reminders.RepeatIntervalSec = d.Reminders.RepeatIntervalSec
	}
	if c.Reminders.CleanupIntervalSec <= 0 {
		c.Reminders.CleanupIntervalSec = d.Reminders.CleanupIntervalSec
	}
	if c.Reminders.DefaultLeadMinutes < 0 {
		c.Reminders.DefaultLeadMinutes = 0
	}
	if c.Reminders.AutoMissAfterMin < 0 {
		c.Reminders.AutoMissAfterMin = 0
	}
	if c.Reminders.SnoozeMin <= 0 {
		c.Reminders.SnoozeMin = d.Reminders.SnoozeMin
	}
	if c.API.TimeoutSec <= 0 {
		c.API.TimeoutSec = d.API.TimeoutSec
	}
	c.Store.Path = expandHome(c.Store.Path)
	c.Log.File = expandHome(c.Log.File)
}

// expandHome replaces a leading "~/" with the user's home directory.
func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
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

	v.Set("api", cfg.API)
	v.Set("reminders", cfg.Reminders)
	v.Set("notifications", cfg.Notifications)
	v.Set("log", cfg.Log)
	v.Set("store", cfg.Store)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
