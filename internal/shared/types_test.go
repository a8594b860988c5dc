package shared

import (
	"strings"
	"testing"
)

func TestNewID(t *testing.T) {
	id := NewID("call_")
	if !strings.HasPrefix(id, "call_") {
		t.Errorf("expected prefix 'call_', got '%s'", id)
	}
	if len(id) != len("call_")+32 {
		t.Errorf("expected 32 hex chars after prefix, got len %d", len(id))
	}
}

func TestNewID_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := NewID("evt_")
		if seen[id] {
			t.Fatalf("duplicate id generated: %s", id)
		}
		seen[id] = true
	}
}
