// Package config loads the stride configuration from TOML with sensible
// defaults for every field, so a missing or partial file never blocks the
// CLI.
package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/momoosa/stride/internal/goals"
	"github.com/momoosa/stride/internal/util"
)

// Config represents the main configuration.
type Config struct {
	// DataDir holds the sqlite database and exports. Defaults to ~/.stride.
	DataDir string `toml:"data_dir"`

	// SharedDir holds the cross-process timer record and the live status
	// file. Defaults to DataDir/shared; point it elsewhere when the widget
	// process runs in a different sandbox.
	SharedDir string `toml:"shared_dir"`

	Timer TimerConfig `toml:"timer"`
	Sync  SyncConfig  `toml:"sync"`
	Theme ThemeConfig `toml:"theme"`
}

// TimerConfig holds timer engine tunables.
type TimerConfig struct {
	// TickSeconds is the UI refresh cadence while a session runs.
	TickSeconds int `toml:"tick_seconds"`
	// StatusHorizonMS is the minimum gap between live status writes.
	StatusHorizonMS int `toml:"status_horizon_ms"`
	// WatchDebounceMS coalesces bursts of shared-record change events.
	WatchDebounceMS int `toml:"watch_debounce_ms"`
}

// SyncConfig configures the external metric service.
type SyncConfig struct {
	Enabled bool   `toml:"enabled"`
	BaseURL string `toml:"base_url"`
	Token   string `toml:"token"`
}

// ThemeConfig is the fallback theme for goals without one of their own.
type ThemeConfig struct {
	Primary   string `toml:"primary"`
	Secondary string `toml:"secondary"`
	Accent    string `toml:"accent"`
}

// DefaultPath returns the default config file path.
func DefaultPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "stride", "config.toml")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "stride", "config.toml")
}

func defaultDataDir() string {
	dir, err := util.StrideDir()
	if err != nil {
		return ".stride"
	}
	return dir
}

// Default returns the default configuration.
func Default() *Config {
	theme := goals.DefaultTheme()
	return &Config{
		DataDir: defaultDataDir(),
		Timer: TimerConfig{
			TickSeconds:     1,
			StatusHorizonMS: 1000,
			WatchDebounceMS: 250,
		},
		Theme: ThemeConfig{
			Primary:   theme.Primary,
			Secondary: theme.Secondary,
			Accent:    theme.Accent,
		},
	}
}

// Load loads configuration from a file. An empty path means the default
// location; a missing file at the default location yields Default().
func Load(path string) (*Config, error) {
	explicit := path != ""
	if path == "" {
		path = DefaultPath()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return Default(), nil
		}
		return nil, err
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	def := Default()
	if cfg.DataDir == "" {
		cfg.DataDir = def.DataDir
	}
	if env := os.Getenv("STRIDE_DATA_DIR"); env != "" {
		cfg.DataDir = env
	}
	if cfg.Timer.TickSeconds <= 0 {
		cfg.Timer.TickSeconds = def.Timer.TickSeconds
	}
	if cfg.Timer.StatusHorizonMS <= 0 {
		cfg.Timer.StatusHorizonMS = def.Timer.StatusHorizonMS
	}
	if cfg.Timer.WatchDebounceMS <= 0 {
		cfg.Timer.WatchDebounceMS = def.Timer.WatchDebounceMS
	}
	if cfg.Theme.Primary == "" {
		cfg.Theme = def.Theme
	}

	return &cfg, nil
}

// ResolvedSharedDir returns the directory for cross-process files:
// the STRIDE_SHARED_DIR environment variable wins, then the configured
// shared_dir, then "shared" under the data directory. The fallback must
// stay in step with what the widget binary derives on its own.
func (c *Config) ResolvedSharedDir() string {
	if env := os.Getenv("STRIDE_SHARED_DIR"); env != "" {
		return env
	}
	if c.SharedDir != "" {
		return c.SharedDir
	}
	return filepath.Join(c.DataDir, "shared")
}

// DatabasePath returns the sqlite database location under DataDir.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "stride.db")
}

// TickInterval returns TickSeconds as a duration.
func (c *Config) TickInterval() time.Duration {
	return time.Duration(c.Timer.TickSeconds) * time.Second
}

// StatusHorizon returns the live status write horizon as a duration.
func (c *Config) StatusHorizon() time.Duration {
	return time.Duration(c.Timer.StatusHorizonMS) * time.Millisecond
}

// WatchDebounce returns the shared-record watch debounce as a duration.
func (c *Config) WatchDebounce() time.Duration {
	return time.Duration(c.Timer.WatchDebounceMS) * time.Millisecond
}

// GoalTheme converts the configured fallback theme.
func (c *Config) GoalTheme() goals.Theme {
	return goals.Theme{Primary: c.Theme.Primary, Secondary: c.Theme.Secondary, Accent: c.Theme.Accent}
}

// CreateDefault creates a default config file at the default path.
func CreateDefault() (string, error) {
	path := DefaultPath()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("creating config directory: %w", err)
	}
	if _, err := os.Stat(path); err == nil {
		return "", fmt.Errorf("config file already exists: %s", path)
	}

	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if err := Print(Default(), f); err != nil {
		return "", err
	}
	return path, nil
}

// Print writes config to a writer in TOML format.
func Print(cfg *Config, w io.Writer) error {
	fmt.Fprintln(w, "# Stride configuration")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "# Directory for the goal database and exports")
	fmt.Fprintf(w, "data_dir = %q\n", cfg.DataDir)
	if cfg.SharedDir != "" {
		fmt.Fprintf(w, "shared_dir = %q\n", cfg.SharedDir)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "[timer]")
	fmt.Fprintf(w, "tick_seconds = %d\n", cfg.Timer.TickSeconds)
	fmt.Fprintf(w, "status_horizon_ms = %d\n", cfg.Timer.StatusHorizonMS)
	fmt.Fprintf(w, "watch_debounce_ms = %d\n", cfg.Timer.WatchDebounceMS)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "[sync]")
	fmt.Fprintln(w, "# External metric service; sessions sync only when enabled")
	fmt.Fprintf(w, "enabled = %v\n", cfg.Sync.Enabled)
	fmt.Fprintf(w, "base_url = %q\n", cfg.Sync.BaseURL)
	fmt.Fprintf(w, "token = %q\n", cfg.Sync.Token)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "[theme]")
	fmt.Fprintln(w, "# Fallback colors for goals without a theme")
	fmt.Fprintf(w, "primary = %q\n", cfg.Theme.Primary)
	fmt.Fprintf(w, "secondary = %q\n", cfg.Theme.Secondary)
	fmt.Fprintf(w, "accent = %q\n", cfg.Theme.Accent)

	return nil
}
