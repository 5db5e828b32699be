// Package chat holds the message model accepted by the scanners. Two wire
// shapes exist for the same thread concept: a message either lists the
// identifiers of its replies or points at its parent's timestamp. Both are
// decoded into Message and a BranchingMode picks exactly one of them per batch.
package chat

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// UnknownSender is the grouping key for messages without a sender.
const UnknownSender = "unknown"

// Message is a single chat log entry.
type Message struct {
	Timestamp int64     `json:"timestamp"`         // Epoch-like integer; floats are floored
	Sender    string    `json:"sender,omitempty"`  // Also accepted as "user_id"
	Text      string    `json:"message,omitempty"` // Also accepted as "text"
	Parent    *int64    `json:"parent,omitempty"`  // Timestamp of the message this one replies to
	Replies   []ReplyID `json:"replies,omitempty"` // Identifiers of replies to this message

	hasParent  bool
	hasReplies bool
}

// NewReplyMessage builds a message in the reply-list shape.
func NewReplyMessage(timestamp int64, sender string, replies ...ReplyID) Message {
	if replies == nil {
		replies = []ReplyID{}
	}
	return Message{Timestamp: timestamp, Sender: sender, Replies: replies, hasReplies: true}
}

// NewThreadMessage builds a message in the parent-pointer shape. A nil parent
// starts a new thread.
func NewThreadMessage(timestamp int64, sender string, parent *int64) Message {
	return Message{Timestamp: timestamp, Sender: sender, Parent: parent, hasParent: true}
}

// WithReplies returns a copy of m that carries a replies field.
func (m Message) WithReplies(replies ...ReplyID) Message {
	if replies == nil {
		replies = []ReplyID{}
	}
	m.Replies = replies
	m.hasReplies = true
	return m
}

// WithParent returns a copy of m that carries a parent field.
func (m Message) WithParent(parent *int64) Message {
	m.Parent = parent
	m.hasParent = true
	return m
}

// ParentOf is a small helper for building parent pointers inline.
func ParentOf(timestamp int64) *int64 {
	return &timestamp
}

// SenderKey returns the sender used for grouping.
func (m Message) SenderKey() string {
	if s := strings.TrimSpace(m.Sender); s != "" {
		return s
	}
	return UnknownSender
}

// HasReplies reports whether the message carried a replies field, even an empty one.
func (m Message) HasReplies() bool {
	return m.hasReplies || len(m.Replies) > 0
}

// HasParent reports whether the message carried a parent field, even a null one.
func (m Message) HasParent() bool {
	return m.hasParent || m.Parent != nil
}

// UnmarshalJSON accepts both message shapes and the field aliases seen in exported logs.
func (m *Message) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("message must be a JSON object: %w", err)
	}

	*m = Message{}

	if v, ok := raw["timestamp"]; ok && !isNull(v) {
		ts, err := decodeTimestamp(v)
		if err != nil {
			return err
		}
		m.Timestamp = ts
	}

	for _, key := range []string{"sender", "user_id"} {
		if v, ok := raw[key]; ok && !isNull(v) {
			s, err := decodeLooseString(v)
			if err != nil {
				return fmt.Errorf("invalid %s: %w", key, err)
			}
			if s != "" {
				m.Sender = s
				break
			}
		}
	}

	for _, key := range []string{"message", "text"} {
		if v, ok := raw[key]; ok && !isNull(v) {
			if err := json.Unmarshal(v, &m.Text); err != nil {
				return fmt.Errorf("invalid %s: %w", key, err)
			}
			break
		}
	}

	if v, ok := raw["parent"]; ok {
		m.hasParent = true
		if !isNull(v) {
			p, err := decodeTimestamp(v)
			if err != nil {
				return fmt.Errorf("invalid parent: %w", err)
			}
			m.Parent = &p
		}
	}

	if v, ok := raw["replies"]; ok {
		m.hasReplies = true
		m.Replies = []ReplyID{}
		if !isNull(v) {
			if err := json.Unmarshal(v, &m.Replies); err != nil {
				return fmt.Errorf("replies must be an array: %w", err)
			}
		}
	}

	return nil
}

// ReplyID identifies a reply. Logs use both numbers and strings.
type ReplyID string

// UnmarshalJSON accepts a JSON string or number.
func (r *ReplyID) UnmarshalJSON(data []byte) error {
	if isNull(data) {
		*r = ""
		return nil
	}
	s, err := decodeLooseString(data)
	if err != nil {
		return fmt.Errorf("reply id: %w", err)
	}
	*r = ReplyID(s)
	return nil
}

func decodeTimestamp(v json.RawMessage) (int64, error) {
	dec := json.NewDecoder(bytes.NewReader(v))
	dec.UseNumber()
	var n json.Number
	if err := dec.Decode(&n); err != nil {
		return 0, fmt.Errorf("timestamp must be a number: %w", err)
	}
	if i, err := n.Int64(); err == nil {
		return i, nil
	}
	f, err := n.Float64()
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("timestamp %q is not a finite number", n.String())
	}
	if f > math.MaxInt64 || f < math.MinInt64 {
		return 0, fmt.Errorf("timestamp %q is out of range", n.String())
	}
	return int64(math.Floor(f)), nil
}

func decodeLooseString(v json.RawMessage) (string, error) {
	v = bytes.TrimSpace(v)
	if len(v) > 0 && v[0] == '"' {
		var s string
		err := json.Unmarshal(v, &s)
		return s, err
	}
	dec := json.NewDecoder(bytes.NewReader(v))
	dec.UseNumber()
	var n json.Number
	if err := dec.Decode(&n); err != nil {
		return "", fmt.Errorf("expected string or number, got %s", string(v))
	}
	return n.String(), nil
}

func isNull(v json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(v), []byte("null"))
}
