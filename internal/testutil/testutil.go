// Package testutil holds helpers shared across the kernel's test suites.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	schematrace "github.com/liyecom/govkernel/core/schema/v1/trace"
)

func WriteFile(t *testing.T, path string, content []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		t.Fatalf("create parent directory for %s: %v", path, err)
	}
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func ReadFile(t *testing.T, path string) []byte {
	t.Helper()
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return raw
}

// RequireEventTypes fails unless the event list carries exactly the given
// types in order.
func RequireEventTypes(t *testing.T, events []schematrace.Event, expected []schematrace.EventType) {
	t.Helper()
	if len(events) != len(expected) {
		t.Fatalf("expected %d events, got %d", len(expected), len(events))
	}
	for index, eventType := range expected {
		if events[index].Type != eventType {
			t.Fatalf("event %d: expected %s, got %s", index, eventType, events[index].Type)
		}
	}
}
