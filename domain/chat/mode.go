package chat

import (
	"fmt"
	"strings"
)

// BranchingMode selects how a message's branching count is derived.
type BranchingMode string

const (
	// ModeAuto picks replies when any message has a replies field, else parent
	// when any message has a parent field, else replies.
	ModeAuto BranchingMode = "auto"
	// ModeReplies counts the entries of a message's replies list.
	ModeReplies BranchingMode = "replies"
	// ModeParent counts the other messages in the whole input whose parent is
	// this message's timestamp.
	ModeParent BranchingMode = "parent"
)

// ParseBranchingMode parses a mode name. The empty string means auto.
func ParseBranchingMode(s string) (BranchingMode, error) {
	switch BranchingMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeAuto:
		return ModeAuto, nil
	case ModeReplies, "reply":
		return ModeReplies, nil
	case ModeParent, "parents", "thread":
		return ModeParent, nil
	default:
		return "", fmt.Errorf("unknown branching mode %q (want auto, replies or parent)", s)
	}
}

// Resolve turns auto into a concrete mode for the given batch. Concrete modes
// are returned unchanged.
func (m BranchingMode) Resolve(msgs []Message) BranchingMode {
	if m == ModeReplies || m == ModeParent {
		return m
	}
	sawParent := false
	for _, msg := range msgs {
		if msg.HasReplies() {
			return ModeReplies
		}
		if msg.HasParent() {
			sawParent = true
		}
	}
	if sawParent {
		return ModeParent
	}
	return ModeReplies
}

func (m BranchingMode) String() string { return string(m) }
