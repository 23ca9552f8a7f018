// Package config loads server settings from flags, NOTETAKING_* environment
// variables and an optional config file, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ErrInvalidConfig is returned when a loaded setting is out of range.
var ErrInvalidConfig = errors.New("invalid configuration")

// EnvPrefix prefixes every environment variable, e.g. NOTETAKING_SERVER_ADDR.
const EnvPrefix = "NOTETAKING"

// Storage drivers.
const (
	DriverMemory = "memory"
	DriverDisk   = "disk"
)

// Config is the full server configuration.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Storage StorageConfig `mapstructure:"storage"`
	Editor  EditorConfig  `mapstructure:"editor"`
	Log     LogConfig     `mapstructure:"log"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// StorageConfig selects where notes are kept.
type StorageConfig struct {
	Driver string `mapstructure:"driver"`
	Path   string `mapstructure:"path"`
	// Watch reloads notes edited on disk by other processes.
	Watch bool `mapstructure:"watch"`
}

// EditorConfig holds the undo and autosave timing of editing sessions.
type EditorConfig struct {
	CaptureDelay   time.Duration `mapstructure:"capture_delay"`
	GraceDelay     time.Duration `mapstructure:"grace_delay"`
	MaxDepth       int           `mapstructure:"max_depth"`
	AutosaveDelay  time.Duration `mapstructure:"autosave_delay"`
	SavedIndicator time.Duration `mapstructure:"saved_indicator"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// SetDefaults registers the default of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("storage.driver", DriverMemory)
	v.SetDefault("storage.path", "notes")
	v.SetDefault("storage.watch", true)

	v.SetDefault("editor.capture_delay", time.Second)
	v.SetDefault("editor.grace_delay", 100*time.Millisecond)
	v.SetDefault("editor.max_depth", 50)
	v.SetDefault("editor.autosave_delay", 500*time.Millisecond)
	v.SetDefault("editor.saved_indicator", time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// BindEnv makes every key readable from NOTETAKING_<SECTION>_<KEY>.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Load applies defaults to v, reads file if it is not empty, and returns the
// validated configuration.
func Load(v *viper.Viper, file string) (*Config, error) {
	SetDefaults(v)
	BindEnv(v)

	if file != "" {
		v.SetConfigFile(file)

		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", file, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	cfg.Storage.Driver = strings.ToLower(cfg.Storage.Driver)
	cfg.Log.Level = strings.ToLower(cfg.Log.Level)
	cfg.Log.Format = strings.ToLower(cfg.Log.Format)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate reports the first setting that is out of range.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("%w: server.addr is empty", ErrInvalidConfig)
	}

	switch c.Storage.Driver {
	case DriverMemory:
	case DriverDisk:
		if c.Storage.Path == "" {
			return fmt.Errorf("%w: storage.path is required for the disk driver", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown storage.driver %q", ErrInvalidConfig, c.Storage.Driver)
	}

	durations := []struct {
		key string
		d   time.Duration
	}{
		{"editor.capture_delay", c.Editor.CaptureDelay},
		{"editor.grace_delay", c.Editor.GraceDelay},
		{"editor.autosave_delay", c.Editor.AutosaveDelay},
		{"editor.saved_indicator", c.Editor.SavedIndicator},
	}

	for _, d := range durations {
		if d.d <= 0 {
			return fmt.Errorf("%w: %s must be positive, got %s", ErrInvalidConfig, d.key, d.d)
		}
	}

	if c.Editor.MaxDepth < 1 {
		return fmt.Errorf("%w: editor.max_depth must be at least 1, got %d", ErrInvalidConfig, c.Editor.MaxDepth)
	}

	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("%w: unknown log.format %q", ErrInvalidConfig, c.Log.Format)
	}

	return nil
}
