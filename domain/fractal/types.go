// Package fractal defines the results produced by a fractal scan of chat logs.
package fractal

import (
	"fractalscan/domain/chat"
	"fractalscan/domain/core"
)

const (
	// TierCount is the number of reported buckets. Messages land in 1..HourModulus,
	// so the last tier is always empty; it is kept for output compatibility.
	TierCount = 25
	// HourModulus is the timestamp modulus used for bucket assignment.
	HourModulus = 24

	// IdealDimension is the chaos score a tier is compared against.
	IdealDimension = 2.8
	// AlignmentTolerance is the maximum distance from IdealDimension for an aligned tier.
	AlignmentTolerance = 0.5
	// AlertThreshold is the whole-conversation dimension above which a scan alerts.
	AlertThreshold = 2.5

	// PatternScoreThreshold and ParticipationThreshold gate the aligned status.
	PatternScoreThreshold  = 0.7
	ParticipationThreshold = 0.75

	// ScorePrecision is the number of decimals reported for scores.
	ScorePrecision = 2
)

// Status summarizes whether a conversation matches the pattern.
type Status string

const (
	StatusAligned Status = "PATTERN_ALIGNED"
	StatusSeeking Status = "SEEKING_ALIGNMENT"
)

// Result is the core statistics output.
type Result struct {
	ChaosScores    []float64 `json:"chaos_scores"`    // One per tier, tier order
	AlignmentFlags []bool    `json:"alignment_flags"` // Positionally aligned with ChaosScores
	InfluenceScore float64   `json:"influence_score"` // Mean of per-sender branching totals
}

// Summary carries the whole-conversation indicators derived from a scan.
type Summary struct {
	MessageCount        int                `json:"message_count"`
	TeamSize            int                `json:"team_size"`
	FractalDimension    float64            `json:"fractal_dimension"`
	Alert               bool               `json:"alert"`
	PatternScore        float64            `json:"pattern_score"`
	ParticipationRipple float64            `json:"participation_ripple"`
	CurrentTier         int                `json:"current_tier"`
	Status              Status             `json:"status"`
	ActiveTiers         int                `json:"active_tiers"`
	AlignedTiers        int                `json:"aligned_tiers"`
	TeamHealth          float64            `json:"team_health"`
	SenderInfluence     map[string]float64 `json:"sender_influence"`
}

// Scan is a complete scan of one conversation.
type Scan struct {
	Result
	Mode    chat.BranchingMode `json:"branching_mode"`
	Summary Summary            `json:"summary"`
}

// TierScore is one row of a tier breakdown.
type TierScore struct {
	Tier    int     `json:"tier"`
	Chaos   float64 `json:"chaos"`
	Aligned bool    `json:"aligned"`
}

// Tiers returns the per-tier rows of a result in tier order.
func (r Result) Tiers() []TierScore {
	out := make([]TierScore, len(r.ChaosScores))
	for i, c := range r.ChaosScores {
		out[i] = TierScore{Tier: i + 1, Chaos: c, Aligned: i < len(r.AlignmentFlags) && r.AlignmentFlags[i]}
	}
	return out
}

// ActiveTiers returns only the tiers with a non-zero chaos score.
func (r Result) ActiveTiers() []TierScore {
	var out []TierScore
	for _, t := range r.Tiers() {
		if t.Chaos > 0 {
			out = append(out, t)
		}
	}
	return out
}

// Record is a scan as stored in the ledger.
type Record struct {
	ID             core.ScanID         `json:"scan_id"`
	ConversationID core.ConversationID `json:"conversation_id,omitempty"`
	Fingerprint    core.Hash           `json:"fingerprint"`
	CreatedAt      int64               `json:"created_at"` // Unix milliseconds
	Scan
}
