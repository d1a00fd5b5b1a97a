package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestParseDefaultConfig(t *testing.T) {
	cfg, err := parse(DefaultConfigYAML)
	if err != nil {
		t.Fatalf("failed to parse default config: %v", err)
	}

	if len(cfg.Sources.Feeds) == 0 {
		t.Error("expected feeds to be populated")
	}

	if cfg.Oracle.Provider != "ollama" {
		t.Errorf("expected provider 'ollama', got %q", cfg.Oracle.Provider)
	}

	if cfg.Curate.WindowDays != 3 {
		t.Errorf("expected window_days 3, got %d", cfg.Curate.WindowDays)
	}

	if !cfg.Curate.Snapshots {
		t.Error("expected snapshots enabled by default")
	}

	if cfg.Server.Port != 8000 {
		t.Errorf("expected port 8000, got %d", cfg.Server.Port)
	}
}

func TestParseMinimalConfig(t *testing.T) {
	data := []byte(`
oracle:
  provider: openai
  openai_model: gpt-4o
curate:
  filter_batch_size: 5
server:
  port: 9000
`)
	cfg, err := parse(data)
	if err != nil {
		t.Fatalf("failed to parse minimal config: %v", err)
	}

	if cfg.Oracle.Provider != "openai" {
		t.Errorf("expected provider 'openai', got %q", cfg.Oracle.Provider)
	}
	if cfg.Curate.FilterBatchSize != 5 {
		t.Errorf("expected filter_batch_size 5, got %d", cfg.Curate.FilterBatchSize)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("expected port 9000, got %d", cfg.Server.Port)
	}
	// Defaults should still be set for unspecified fields
	if cfg.Oracle.OllamaURL != "http://localhost:11434" {
		t.Errorf("expected default ollama_url, got %q", cfg.Oracle.OllamaURL)
	}
	if cfg.Curate.MaxRetries != 3 {
		t.Errorf("expected default max_retries 3, got %d", cfg.Curate.MaxRetries)
	}
	if cfg.Curate.Temperatures.Rank != 0.2 {
		t.Errorf("expected default rank temperature 0.2, got %v", cfg.Curate.Temperatures.Rank)
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, DefaultConfigYAML, 0o644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if len(cfg.Sources.Feeds) == 0 {
		t.Error("expected feeds to be populated from file")
	}
}

func TestPacing(t *testing.T) {
	c := &Curate{PacingMS: 250}
	if c.Pacing() != 250*time.Millisecond {
		t.Errorf("expected 250ms pacing, got %v", c.Pacing())
	}
}

func TestGetDataDir(t *testing.T) {
	cfg := &Config{}
	defaultDir := cfg.GetDataDir()
	if defaultDir == "" {
		t.Error("expected non-empty default data dir")
	}

	cfg.Output.DataDir = "/custom/path"
	if cfg.GetDataDir() != "/custom/path" {
		t.Errorf("expected '/custom/path', got %q", cfg.GetDataDir())
	}
}
