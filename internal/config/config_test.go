package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadMissingDefaultPathReturnsDefaults(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Timer.TickSeconds != 1 {
		t.Errorf("TickSeconds = %d, want 1", cfg.Timer.TickSeconds)
	}
	if cfg.Theme.Primary == "" {
		t.Error("default theme primary is empty")
	}
}

func TestLoadMissingExplicitPathErrors(t *testing.T) {
	t.Parallel()

	if _, err := Load(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Fatal("Load() error = nil for explicit missing path")
	}
}

func TestLoadAppliesDefaultsForMissingFields(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
data_dir = "/tmp/stride-test"

[sync]
enabled = true
base_url = "https://metrics.example.com"
token = "tok"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.DataDir != "/tmp/stride-test" {
		t.Errorf("DataDir = %q", cfg.DataDir)
	}
	if !cfg.Sync.Enabled || cfg.Sync.BaseURL != "https://metrics.example.com" {
		t.Errorf("Sync = %+v", cfg.Sync)
	}
	if cfg.Timer.TickSeconds != 1 {
		t.Errorf("TickSeconds default not applied: %d", cfg.Timer.TickSeconds)
	}
	if cfg.TickInterval() != time.Second {
		t.Errorf("TickInterval() = %v, want 1s", cfg.TickInterval())
	}
	if cfg.StatusHorizon() != time.Second {
		t.Errorf("StatusHorizon() = %v, want 1s", cfg.StatusHorizon())
	}
	if cfg.Theme.Primary == "" {
		t.Error("theme defaults not applied")
	}
}

func TestLoadRejectsInvalidTOML(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("data_dir = [broken"), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("Load() error = nil for invalid toml")
	}
}

func TestResolvedSharedDir(t *testing.T) {
	cfg := Default()
	cfg.DataDir = "/data"

	t.Setenv("STRIDE_SHARED_DIR", "")
	if got := cfg.ResolvedSharedDir(); got != "/data/shared" {
		t.Errorf("ResolvedSharedDir() = %q, want shared under data dir", got)
	}

	cfg.SharedDir = "/shared"
	if got := cfg.ResolvedSharedDir(); got != "/shared" {
		t.Errorf("ResolvedSharedDir() = %q, want configured shared dir", got)
	}

	t.Setenv("STRIDE_SHARED_DIR", "/env")
	if got := cfg.ResolvedSharedDir(); got != "/env" {
		t.Errorf("ResolvedSharedDir() = %q, want env override", got)
	}
}

func TestPrintRoundTrips(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.Sync.Enabled = true
	cfg.Sync.BaseURL = "https://metrics.example.com"

	var buf bytes.Buffer
	if err := Print(cfg, &buf); err != nil {
		t.Fatalf("Print() error: %v", err)
	}
	if !strings.Contains(buf.String(), "base_url = \"https://metrics.example.com\"") {
		t.Errorf("printed config missing sync url:\n%s", buf.String())
	}

	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load(printed) error: %v", err)
	}
	if loaded.Sync.BaseURL != cfg.Sync.BaseURL {
		t.Errorf("round-trip base_url = %q, want %q", loaded.Sync.BaseURL, cfg.Sync.BaseURL)
	}
	if loaded.Timer.TickSeconds != cfg.Timer.TickSeconds {
		t.Errorf("round-trip tick = %d, want %d", loaded.Timer.TickSeconds, cfg.Timer.TickSeconds)
	}
}
