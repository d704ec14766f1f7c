package config

import (
	"path/filepath"
	"testing"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Database != "reconkg.db" || cfg.Eval.MaxRules != 200 {
		t.Fatalf("expected defaults, got %+v", cfg)
	}
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	cfg := Default()
	cfg.Database = "/var/lib/reconkg/custom.db"
	cfg.Eval.MaxIterations = 42

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Database != cfg.Database || loaded.Eval.MaxIterations != 42 {
		t.Fatalf("round-trip mismatch: got %+v, want %+v", loaded, cfg)
	}
}

func TestEnvOverrideWinsOverFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	if err := Default().Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	t.Setenv("RECONKG_DATABASE", "/tmp/from-env.db")
	t.Setenv("RECONKG_EVAL_MAX_TUPLES", "7")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Database != "/tmp/from-env.db" {
		t.Fatalf("expected env override of database, got %q", cfg.Database)
	}
	if cfg.Eval.MaxTuples != 7 {
		t.Fatalf("expected env override of MaxTuples, got %d", cfg.Eval.MaxTuples)
	}
}

func TestLoadEmptyPathAppliesOnlyDefaultsAndEnv(t *testing.T) {
	t.Setenv("RECONKG_LOG_LEVEL", "debug")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Log.Level != "debug" {
		t.Fatalf("expected env-overridden log level, got %q", cfg.Log.Level)
	}
	if cfg.Log.Format != "text" {
		t.Fatalf("expected default log format, got %q", cfg.Log.Format)
	}
}
