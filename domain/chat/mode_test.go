package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBranchingMode(t *testing.T) {
	tests := []struct {
		input   string
		want    BranchingMode
		wantErr bool
	}{
		{"", ModeAuto, false},
		{"auto", ModeAuto, false},
		{" Replies ", ModeReplies, false},
		{"parent", ModeParent, false},
		{"thread", ModeParent, false},
		{"tree", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseBranchingMode(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBranchingModeResolve(t *testing.T) {
	replies := NewReplyMessage(1, "a", "r1")
	thread := NewThreadMessage(2, "b", nil)
	bare := Message{Timestamp: 3}

	tests := []struct {
		name string
		mode BranchingMode
		msgs []Message
		want BranchingMode
	}{
		{"auto with replies", ModeAuto, []Message{bare, replies}, ModeReplies},
		{"auto with parents", ModeAuto, []Message{bare, thread}, ModeParent},
		{"auto mixed prefers replies", ModeAuto, []Message{thread, replies}, ModeReplies},
		{"auto bare", ModeAuto, []Message{bare}, ModeReplies},
		{"auto empty", ModeAuto, nil, ModeReplies},
		{"explicit parent wins", ModeParent, []Message{replies}, ModeParent},
		{"explicit replies wins", ModeReplies, []Message{thread}, ModeReplies},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.mode.Resolve(tt.msgs))
		})
	}
}
