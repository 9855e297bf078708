package audit

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestAppend_WritesOneLinePerEvent(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir)

	events := []Event{
		{Type: TypePolicyDeny, Tool: "restart_service", Mode: "NORMAL", Rule: "mode-blocked"},
		{Type: TypePolicyAllow, Tool: "restart_service", Mode: "EMERGENCY"},
		{Type: TypeExecuted, Tool: "restart_service", Result: "recovered web-server"},
	}
	for _, ev := range events {
		if err := w.Append(ev); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	file, err := os.Open(filepath.Join(dir, "audit.jsonl"))
	if err != nil {
		t.Fatalf("open audit file: %v", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	var got []Event
	for scanner.Scan() {
		var ev Event
		if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil {
			t.Fatalf("line is not valid json: %v", err)
		}
		got = append(got, ev)
	}
	if len(got) != len(events) {
		t.Fatalf("expected %d lines, got %d", len(events), len(got))
	}
	if got[0].Rule != "mode-blocked" {
		t.Fatalf("expected first event rule mode-blocked, got %q", got[0].Rule)
	}
	if got[0].Time.IsZero() {
		t.Fatal("expected append to stamp event time")
	}
}

func TestAppend_CreatesStateDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "state")
	w := NewWriter(dir)

	if err := w.Append(Event{Type: TypeModeChange, Mode: "EMERGENCY"}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "audit.jsonl")); err != nil {
		t.Fatalf("expected audit file: %v", err)
	}
}
