package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(filepath.Join(dir, "absent.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Actor != "" || cfg.JSON != false {
		t.Fatalf("expected zero-value defaults, got %+v", cfg)
	}
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	want := &Config{Actor: "ada", JSON: true}
	if err := Save(path, want); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Actor != want.Actor || got.JSON != want.JSON {
		t.Fatalf("round-trip mismatch: got %+v, want %+v", got, want)
	}
}

func TestDefaultPathHonorsEnvOverride(t *testing.T) {
	t.Setenv("TISSUE_CONFIG", "/tmp/custom-tissue-config.yaml")
	if got := DefaultPath(); got != "/tmp/custom-tissue-config.yaml" {
		t.Fatalf("expected env override, got %q", got)
	}
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("actor: [unterminated"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error loading malformed yaml")
	}
}
