package core

import (
	"strings"
	"testing"

	"github.com/google/uuid"
)

// TestNewIDUniqueness tests that NewID generates unique identifiers
func TestNewIDUniqueness(t *testing.T) {
	const numIDs = 10000

	ids := make(map[ID]bool, numIDs)
	for i := 0; i < numIDs; i++ {
		id := NewID()
		if id == "" {
			t.Errorf("Generated empty ID at iteration %d", i)
		}
		if ids[id] {
			t.Errorf("Generated duplicate ID: %s", id)
		}
		ids[id] = true
	}

	if len(ids) != numIDs {
		t.Errorf("Expected %d unique IDs, got %d", numIDs, len(ids))
	}
}

// TestNewScanIDIsV7 checks scan IDs are time-ordered UUIDs
func TestNewScanIDIsV7(t *testing.T) {
	id := NewScanID()
	parsed, err := uuid.Parse(id.String())
	if err != nil {
		t.Fatalf("scan ID is not a UUID: %v", err)
	}
	if parsed.Version() != 7 {
		t.Errorf("Expected UUID version 7, got %d", parsed.Version())
	}
}

func TestParseScanID(t *testing.T) {
	valid := NewScanID().String()

	tests := []struct {
		input    string
		hasError bool
	}{
		{valid, false},
		{"  " + valid + " ", false},
		{"", true},
		{"   ", true},
		{"scan-1", true},
	}

	for _, tt := range tests {
		result, err := ParseScanID(tt.input)
		if tt.hasError {
			if err == nil {
				t.Errorf("ParseScanID(%q) expected error, got nil", tt.input)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseScanID(%q) unexpected error: %v", tt.input, err)
		}
		if result.String() != valid {
			t.Errorf("ParseScanID(%q) = %q, want %q", tt.input, result, valid)
		}
	}
}

func TestParseConversationID(t *testing.T) {
	if _, err := ParseConversationID(""); err == nil {
		t.Error("Expected error for empty conversation ID")
	}
	id, err := ParseConversationID("  team-standup ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id.String() != "team-standup" {
		t.Errorf("Expected team-standup, got %s", id)
	}

	invalid := []string{
		"   ",
		strings.Repeat("a", MaxConversationIDLength+1),
		"team\nstandup",
		"bad\xffid",
	}
	for _, s := range invalid {
		if _, err := ParseConversationID(s); err == nil {
			t.Errorf("ParseConversationID(%q) expected error", s)
		}
	}

	if _, err := ParseConversationID(strings.Repeat("a", MaxConversationIDLength)); err != nil {
		t.Errorf("ID at the length limit rejected: %v", err)
	}
}

func TestHashShort(t *testing.T) {
	h := NewHash([]byte("logs"))
	if len(h.String()) != 64 {
		t.Errorf("Expected 64 hex chars, got %d", len(h.String()))
	}
	if h.Short() != h.String()[:12] {
		t.Errorf("Short() = %q, want prefix of %q", h.Short(), h)
	}
	if Hash("abc").Short() != "abc" {
		t.Error("Short() should return short hashes unchanged")
	}
}
