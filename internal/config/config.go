// Package config handles groupsync configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Ncn914491/groupsync/internal/models"
)

// RefreshMode controls how a poll tick refreshes the open group's feed.
type RefreshMode string

const (
	// RefreshModeFull refetches the entire message list every tick and
	// replaces the local feed wholesale. This is the reference behavior.
	RefreshModeFull RefreshMode = "full"

	// RefreshModeIncremental fetches only messages newer than the last
	// seen message id and merges them by id.
	RefreshModeIncremental RefreshMode = "incremental"
)

// Config is the root configuration structure for groupsync.
type Config struct {
	// Global settings
	Global GlobalConfig `yaml:"global" mapstructure:"global"`

	// Server settings
	Server ServerConfig `yaml:"server" mapstructure:"server"`

	// Poll settings
	Poll PollConfig `yaml:"poll" mapstructure:"poll"`

	// Compose settings
	Compose ComposeConfig `yaml:"compose" mapstructure:"compose"`

	// Cache settings
	Cache CacheConfig `yaml:"cache" mapstructure:"cache"`

	// Logging settings
	Logging LoggingConfig `yaml:"logging" mapstructure:"logging"`
}

// GlobalConfig contains global groupsync settings.
type GlobalConfig struct {
	// DataDir is where groupsync stores its data (default: ~/.local/share/groupsync).
	DataDir string `yaml:"data_dir" mapstructure:"data_dir"`

	// ConfigDir is where config files are stored (default: ~/.config/groupsync).
	ConfigDir string `yaml:"config_dir" mapstructure:"config_dir"`
}

// ServerConfig contains portal gateway settings.
type ServerConfig struct {
	// BaseURL is the portal API base URL.
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`

	// Timeout is the per-request HTTP timeout.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// PollConfig contains polling synchronizer settings.
type PollConfig struct {
	// Interval is the fixed period between feed refreshes for the open
	// group. The first fetch is issued immediately regardless.
	Interval time.Duration `yaml:"interval" mapstructure:"interval"`

	// RefreshMode selects full-list refetch or incremental fetch.
	RefreshMode RefreshMode `yaml:"refresh_mode" mapstructure:"refresh_mode"`
}

// ComposeConfig contains compose draft settings.
type ComposeConfig struct {
	// CharacterLimit is the maximum message length in UTF-16 code units.
	CharacterLimit int `yaml:"character_limit" mapstructure:"character_limit"`
}

// CacheConfig contains local snapshot cache settings.
type CacheConfig struct {
	// Enabled toggles the SQLite snapshot cache.
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`

	// Path is the SQLite database file path (default: DataDir/groupsync.db).
	Path string `yaml:"path" mapstructure:"path"`

	// BusyTimeoutMs is how long to wait for a locked database (milliseconds).
	BusyTimeoutMs int `yaml:"busy_timeout_ms" mapstructure:"busy_timeout_ms"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	// Level is the minimum log level (debug, info, warn, error).
	Level string `yaml:"level" mapstructure:"level"`

	// Format is the output format (json, console).
	Format string `yaml:"format" mapstructure:"format"`

	// File is an optional log file path.
	File string `yaml:"file" mapstructure:"file"`

	// EnableCaller adds caller information to logs.
	EnableCaller bool `yaml:"enable_caller" mapstructure:"enable_caller"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()

	return &Config{
		Global: GlobalConfig{
			DataDir:   filepath.Join(homeDir, ".local", "share", "groupsync"),
			ConfigDir: filepath.Join(homeDir, ".config", "groupsync"),
		},
		Server: ServerConfig{
			BaseURL: "http://localhost:5000",
			Timeout: 15 * time.Second,
		},
		Poll: PollConfig{
			Interval:    5 * time.Second,
			RefreshMode: RefreshModeFull,
		},
		Compose: ComposeConfig{
			CharacterLimit: models.MaxMessageLength,
		},
		Cache: CacheConfig{
			Enabled:       true,
			Path:          "", // Will be set to DataDir/groupsync.db
			BusyTimeoutMs: 5000,
		},
		Logging: LoggingConfig{
			Level:        "info",
			Format:       "console",
			EnableCaller: false,
		},
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Server.BaseURL == "" {
		return fmt.Errorf("server.base_url is required")
	}

	if c.Server.Timeout < time.Second {
		return fmt.Errorf("server.timeout must be at least 1s")
	}

	if c.Poll.Interval < 500*time.Millisecond {
		return fmt.Errorf("poll.interval must be at least 500ms")
	}

	switch c.Poll.RefreshMode {
	case RefreshModeFull, RefreshModeIncremental:
		// ok
	default:
		return fmt.Errorf("poll.refresh_mode must be one of full, incremental")
	}

	if c.Compose.CharacterLimit < 1 {
		return fmt.Errorf("compose.character_limit must be at least 1")
	}

	return nil
}

// EnsureDirectories creates required directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.Global.DataDir,
		c.Global.ConfigDir,
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}

// CachePath returns the full snapshot cache path.
func (c *Config) CachePath() string {
	if c.Cache.Path != "" {
		return c.Cache.Path
	}
	return filepath.Join(c.Global.DataDir, "groupsync.db")
}

// TokenPath returns where the bearer credential is stored between runs.
func (c *Config) TokenPath() string {
	return filepath.Join(c.Global.DataDir, "token")
}
