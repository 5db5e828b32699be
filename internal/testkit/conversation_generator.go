package testkit

import (
	"fmt"
	"math/rand"
	"strconv"

	"fractalscan/domain/chat"
)

// ConversationGeneratorConfig configures the synthetic conversation generator
type ConversationGeneratorConfig struct {
	Messages   int                `json:"messages"`
	Senders    int                `json:"senders"`
	MaxReplies int                `json:"max_replies"`
	StartAt    int64              `json:"start_at"`
	MaxGap     int64              `json:"max_gap"` // Largest timestamp step between messages
	Mode       chat.BranchingMode `json:"mode"`
	Seed       int64              `json:"seed"`
}

// DefaultConversationConfig returns sensible defaults for generated logs
func DefaultConversationConfig() ConversationGeneratorConfig {
	return ConversationGeneratorConfig{
		Messages:   200,
		Senders:    6,
		MaxReplies: 6,
		StartAt:    1_700_000_000,
		MaxGap:     900,
		Mode:       chat.ModeReplies,
		Seed:       42,
	}
}

// ConversationGenerator produces deterministic synthetic chat logs
type ConversationGenerator struct {
	config ConversationGeneratorConfig
	rng    *rand.Rand
}

// NewConversationGenerator creates a new generator
func NewConversationGenerator(config ConversationGeneratorConfig) *ConversationGenerator {
	return &ConversationGenerator{
		config: config,
		rng:    rand.New(rand.NewSource(config.Seed)),
	}
}

// Generate builds a conversation in the configured shape.
func (g *ConversationGenerator) Generate() ([]chat.Message, error) {
	cfg := g.config
	if cfg.Messages <= 0 {
		return nil, fmt.Errorf("messages must be positive, got %d", cfg.Messages)
	}
	if cfg.Senders <= 0 {
		return nil, fmt.Errorf("senders must be positive, got %d", cfg.Senders)
	}
	if cfg.MaxGap <= 0 {
		cfg.MaxGap = 1
	}

	msgs := make([]chat.Message, 0, cfg.Messages)
	ts := cfg.StartAt
	replyID := 0

	for i := 0; i < cfg.Messages; i++ {
		sender := "member_" + strconv.Itoa(g.rng.Intn(cfg.Senders))

		switch cfg.Mode {
		case chat.ModeParent:
			var parent *int64
			// roughly a third of messages start a thread
			if len(msgs) > 0 && g.rng.Intn(3) != 0 {
				p := msgs[g.rng.Intn(len(msgs))].Timestamp
				parent = &p
			}
			msgs = append(msgs, chat.NewThreadMessage(ts, sender, parent))
		default:
			n := 0
			if cfg.MaxReplies > 0 {
				n = g.rng.Intn(cfg.MaxReplies + 1)
			}
			replies := make([]chat.ReplyID, n)
			for j := range replies {
				replyID++
				replies[j] = chat.ReplyID(strconv.Itoa(replyID))
			}
			msgs = append(msgs, chat.NewReplyMessage(ts, sender, replies...))
		}

		ts += 1 + g.rng.Int63n(cfg.MaxGap)
	}

	return msgs, nil
}

// Shuffle returns a copy of msgs in a seeded random order.
func Shuffle(msgs []chat.Message, seed int64) []chat.Message {
	out := make([]chat.Message, len(msgs))
	copy(out, msgs)
	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}
