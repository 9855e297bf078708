package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig_PassesValidation(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config must validate: %v", err)
	}
	if cfg.Gateway.Port != 8400 {
		t.Fatalf("expected default port 8400, got %d", cfg.Gateway.Port)
	}
	if cfg.Policy.DefaultMode != "NORMAL" {
		t.Fatalf("expected default mode NORMAL, got %s", cfg.Policy.DefaultMode)
	}
}

func TestLoadFrom_CreatesDefaultWhenMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Gateway.Port != 8400 {
		t.Fatalf("expected defaults, got port %d", cfg.Gateway.Port)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected config file created: %v", err)
	}
}

func TestLoadFrom_ReadsExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	content := `{
	  "gateway": {"host": "127.0.0.1", "port": 9000, "token": "secret"},
	  "policy": {"path": "/etc/opsgate/ops_policy.json", "default_mode": "emergency"},
	  "log": {"level": "DEBUG"}
	}`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Gateway.Port != 9000 || cfg.Gateway.Token != "secret" {
		t.Fatalf("unexpected gateway config: %+v", cfg.Gateway)
	}
	if cfg.Policy.Path != "/etc/opsgate/ops_policy.json" {
		t.Fatalf("unexpected policy path: %s", cfg.Policy.Path)
	}
	if cfg.Log.Level != "debug" {
		t.Fatalf("expected normalized log level, got %q", cfg.Log.Level)
	}
}

func TestValidate_RejectsBadPort(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Gateway.Port = 70000
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for out-of-range port")
	}
}

func TestValidate_RejectsBadLogLevel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Log.Level = "verbose"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unknown log level")
	}
}

func TestValidate_FillsEmptyDefaults(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Policy.DefaultMode = ""
	cfg.State.Dir = ""
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if cfg.Policy.DefaultMode != "NORMAL" {
		t.Fatalf("expected NORMAL fallback, got %q", cfg.Policy.DefaultMode)
	}
	if cfg.State.Dir == "" {
		t.Fatal("expected state dir fallback")
	}
}
