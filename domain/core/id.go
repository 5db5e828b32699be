package core

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
)

// ID represents a domain identifier
type ID string

// NewID creates a new unique identifier using UUID v7 for time-ordered generation
func NewID() ID {
	// v7 keeps ledger listings roughly time ordered; v4 only if the clock source fails
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return ID(id.String())
}

// String returns the string representation
func (id ID) String() string {
	return string(id)
}

// Domain-specific ID types
type (
	ScanID         ID
	ConversationID ID
)

// NewScanID creates a time-ordered scan identifier
func NewScanID() ScanID { return ScanID(NewID()) }

// String conversions for domain IDs
func (id ScanID) String() string         { return ID(id).String() }
func (id ConversationID) String() string { return ID(id).String() }

// ParseScanID parses a string into ScanID. Only UUIDs are accepted.
func ParseScanID(s string) (ScanID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("scan ID cannot be empty")
	}
	if _, err := uuid.Parse(s); err != nil {
		return "", fmt.Errorf("scan ID %q is not a valid UUID: %w", s, err)
	}
	return ScanID(s), nil
}

// MaxConversationIDLength matches the ledger's conversation_id column
const MaxConversationIDLength = 255

// ParseConversationID trims s and rejects empty, oversized or control-character IDs
func ParseConversationID(s string) (ConversationID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("conversation ID cannot be empty")
	}
	if len(s) > MaxConversationIDLength {
		return "", fmt.Errorf("conversation ID exceeds %d bytes", MaxConversationIDLength)
	}
	if !utf8.ValidString(s) {
		return "", fmt.Errorf("conversation ID is not valid UTF-8")
	}
	for _, r := range s {
		if unicode.IsControl(r) {
			return "", fmt.Errorf("conversation ID %q contains control characters", s)
		}
	}
	return ConversationID(s), nil
}
