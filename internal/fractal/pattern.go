package fractal

import (
	"math"

	"fractalscan/domain/chat"
	domain "fractalscan/domain/fractal"
	"fractalscan/internal/errors"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat"
)

// PatternAnalyzer derives the whole-conversation indicators from a computation.
type PatternAnalyzer struct{}

// NewPatternAnalyzer creates a new pattern analyzer
func NewPatternAnalyzer() *PatternAnalyzer {
	return &PatternAnalyzer{}
}

// Summarize builds the conversation summary for msgs and their computation.
func (pa *PatternAnalyzer) Summarize(msgs []chat.Message, comp *Computation) (domain.Summary, error) {
	if len(msgs) == 0 || comp == nil {
		return domain.Summary{}, ErrNoLogs
	}

	// Whole-input variance, not per tier
	_, dimension := stat.PopMeanVariance(comp.Branches, nil)

	participation, err := ParticipationRipple(msgs)
	if err != nil {
		return domain.Summary{}, err
	}

	senders, totals := SenderTotals(msgs, comp.Branches)
	influence := make(map[string]float64, len(senders))
	for i, s := range senders {
		influence[s] = totals[i]
	}

	pattern := PatternScore(dimension)

	summary := domain.Summary{
		MessageCount:        len(msgs),
		TeamSize:            len(senders),
		Alert:               dimension > domain.AlertThreshold,
		CurrentTier:         CurrentTier(len(senders), dimension),
		Status:              StatusFor(pattern, participation),
		SenderInfluence:     influence,
		FractalDimension:    roundOrZero(dimension),
		PatternScore:        roundOrZero(pattern),
		ParticipationRipple: roundOrZero(participation),
	}

	for i, c := range comp.ChaosScores {
		if c > 0 {
			summary.ActiveTiers++
		}
		if comp.AlignmentFlags[i] {
			summary.AlignedTiers++
		}
	}
	if summary.ActiveTiers > 0 {
		summary.TeamHealth = roundOrZero(float64(summary.AlignedTiers) / float64(summary.ActiveTiers))
	}

	return summary, nil
}

// PatternScore is 1 at the ideal dimension and falls linearly to 0.
func PatternScore(dimension float64) float64 {
	return math.Max(0, 1-math.Abs(dimension-domain.IdealDimension)/domain.IdealDimension)
}

// ParticipationRipple is 1 minus the coefficient of variation of per-sender
// message counts, clamped to [0, 1].
func ParticipationRipple(msgs []chat.Message) (float64, error) {
	counts := make(map[string]float64)
	var order []string
	for _, m := range msgs {
		key := m.SenderKey()
		if _, ok := counts[key]; !ok {
			order = append(order, key)
		}
		counts[key]++
	}
	if len(order) == 0 {
		return 0, nil
	}

	data := make(stats.Float64Data, len(order))
	for i, s := range order {
		data[i] = counts[s]
	}

	mean, err := stats.Mean(data)
	if err != nil {
		return 0, errors.Wrap(err, "participation mean")
	}
	if mean <= 0 {
		return 0, nil
	}
	sd, err := stats.StandardDeviationPopulation(data)
	if err != nil {
		return 0, errors.Wrap(err, "participation stddev")
	}

	return math.Min(1, math.Max(0, 1-sd/mean)), nil
}

// CurrentTier places a team on the 1..TierCount ladder from its size and dimension.
func CurrentTier(teamSize int, dimension float64) int {
	tier := int(float64(teamSize)*(dimension/5) + 1)
	if tier < 1 {
		return 1
	}
	if tier > domain.TierCount {
		return domain.TierCount
	}
	return tier
}

// StatusFor reports aligned only when both pattern and participation pass.
func StatusFor(pattern, participation float64) domain.Status {
	if pattern >= domain.PatternScoreThreshold && participation >= domain.ParticipationThreshold {
		return domain.StatusAligned
	}
	return domain.StatusSeeking
}

func roundOrZero(v float64) float64 {
	r, err := round(v)
	if err != nil {
		return 0
	}
	return r
}
