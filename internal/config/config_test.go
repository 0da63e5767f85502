package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"sumika/internal/config"
)

func TestLoadDefaultsExpandPathsAndCategories(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("SUMIKA_API_TOKEN", "tok-123")

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantData := filepath.Join(tempHome, ".local", "share", "sumika", "data")
	if cfg.Paths.DataDir != wantData {
		t.Fatalf("unexpected data dir: got %q want %q", cfg.Paths.DataDir, wantData)
	}
	if cfg.Paths.APIBind != "127.0.0.1:7581" {
		t.Fatalf("unexpected api bind: %q", cfg.Paths.APIBind)
	}
	if cfg.Paths.APIToken != "tok-123" {
		t.Fatalf("expected api token from env, got %q", cfg.Paths.APIToken)
	}
	if cfg.Categories.Primary != "mansion" {
		t.Fatalf("unexpected primary category: %q", cfg.Categories.Primary)
	}
	if got := cfg.AllCategories(); len(got) != 2 || got[0] != "mansion" {
		t.Fatalf("unexpected categories: %v", got)
	}
	if cfg.Pipeline.StageTimeout <= 0 {
		t.Fatal("expected positive stage timeout default")
	}
}

func TestLoadParsesFileAndNormalizesCategories(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[categories]
primary = " Mansion "
secondary = ["House", "house", "", "land"]

[logging]
format = "JSON"
level = "DEBUG"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to exist")
	}
	if cfg.Categories.Primary != "mansion" {
		t.Fatalf("primary not normalized: %q", cfg.Categories.Primary)
	}
	if len(cfg.Categories.Secondary) != 2 {
		t.Fatalf("secondary not deduplicated: %v", cfg.Categories.Secondary)
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("format not normalized: %q", cfg.Logging.Format)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("level not normalized: %q", cfg.Logging.Level)
	}
}

func TestValidateRejectsExportWithoutDSN(t *testing.T) {
	cfg := config.Default()
	cfg.Export.Enabled = true
	cfg.Export.DSN = ""

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "export.dsn") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCreateSampleWritesParseableConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sample.toml")

	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("sample config failed to load: %v", err)
	}
	if !exists {
		t.Fatal("expected sample config to exist")
	}
	if cfg.Categories.Primary != "mansion" {
		t.Fatalf("unexpected primary: %q", cfg.Categories.Primary)
	}
}
