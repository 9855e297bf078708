package commands

import (
	"os"
	"strings"
	"testing"

	"github.com/opsgate/opsgate/internal/config"
	"github.com/opsgate/opsgate/internal/policy"
)

func TestInitCommand_CreatesConfigAndPolicy(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)
	t.Setenv("USERPROFILE", tmpDir)

	output := captureOutput(t, func() {
		if err := runInit(nil, nil); err != nil {
			t.Fatalf("runInit error: %v", err)
		}
	})

	if !strings.Contains(output, "Opsgate initialized") {
		t.Fatalf("expected init confirmation, got: %s", output)
	}
	if _, err := os.Stat(config.ConfigPath()); err != nil {
		t.Fatalf("expected config file: %v", err)
	}

	cfg := config.DefaultConfig()
	if _, err := os.Stat(cfg.Policy.Path); err != nil {
		t.Fatalf("expected policy document: %v", err)
	}

	// The seeded policy must load and declare both operating modes.
	doc, err := policy.LoadDocument(cfg.Policy.Path)
	if err != nil {
		t.Fatalf("seeded policy document must be valid: %v", err)
	}
	if _, ok := doc.Mode("NORMAL"); !ok {
		t.Fatal("expected NORMAL mode in seeded policy")
	}
	if _, ok := doc.Mode("EMERGENCY"); !ok {
		t.Fatal("expected EMERGENCY mode in seeded policy")
	}
	if !doc.IsAlwaysBlocked("delete_database") {
		t.Fatal("expected delete_database globally blocked in seeded policy")
	}
}

func TestInitCommand_SecondRunIsNoop(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)
	t.Setenv("USERPROFILE", tmpDir)

	if err := runInit(nil, nil); err != nil {
		t.Fatalf("first runInit: %v", err)
	}

	output := captureOutput(t, func() {
		if err := runInit(nil, nil); err != nil {
			t.Fatalf("second runInit: %v", err)
		}
	})

	if !strings.Contains(output, "already exists") {
		t.Fatalf("expected noop message, got: %s", output)
	}
}
