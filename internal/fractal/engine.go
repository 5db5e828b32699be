// Package fractal computes the tier statistics of a chat log: per-tier chaos
// scores (population variance of branching counts), alignment flags and the
// sender influence score.
package fractal

import (
	"math"
	"sort"

	"fractalscan/domain/chat"
	domain "fractalscan/domain/fractal"
	"fractalscan/internal/errors"

	"github.com/montanaflynn/stats"
)

// ErrNoLogs is returned for an empty message list.
var ErrNoLogs = errors.InvalidInput("No logs provided")

// Computation is the engine output plus the intermediate values the pattern
// analyzer and reports reuse.
type Computation struct {
	domain.Result
	Mode     chat.BranchingMode
	Branches []float64 // Branching count per input message, input order
	Tiers    [][]int   // Message indexes per tier, insertion order
}

// Engine is the stateless statistics engine. The zero value is ready to use.
type Engine struct{}

// NewEngine creates a new engine
func NewEngine() *Engine {
	return &Engine{}
}

// Compute runs bucketing, branching, chaos, alignment and influence over msgs.
// The mode is resolved once for the whole batch.
func (e *Engine) Compute(msgs []chat.Message, mode chat.BranchingMode) (*Computation, error) {
	if len(msgs) == 0 {
		return nil, ErrNoLogs
	}

	resolved := mode.Resolve(msgs)
	branches := BranchCounts(msgs, resolved)
	tiers := AssignTiers(msgs)

	chaos, err := ChaosScores(tiers, branches)
	if err != nil {
		return nil, err
	}

	influence, err := InfluenceScore(msgs, branches)
	if err != nil {
		return nil, err
	}

	return &Computation{
		Result: domain.Result{
			ChaosScores:    chaos,
			AlignmentFlags: AlignmentFlags(chaos),
			InfluenceScore: influence,
		},
		Mode:     resolved,
		Branches: branches,
		Tiers:    tiers,
	}, nil
}

// Bucket maps a timestamp to its tier in [1, HourModulus]. Floor modulo keeps
// negative timestamps in range. Tier TierCount is never produced.
func Bucket(timestamp int64) int {
	m := timestamp % domain.HourModulus
	if m < 0 {
		m += domain.HourModulus
	}
	return int(m) + 1
}

// AssignTiers groups message indexes by tier. Index 0 of the result is tier 1.
func AssignTiers(msgs []chat.Message) [][]int {
	tiers := make([][]int, domain.TierCount)
	for i, m := range msgs {
		t := Bucket(m.Timestamp) - 1
		tiers[t] = append(tiers[t], i)
	}
	return tiers
}

// BranchCounts returns the branching count of every message for the given
// concrete mode. In parent mode a message's count is the number of other
// messages anywhere in the input whose parent is its timestamp.
func BranchCounts(msgs []chat.Message, mode chat.BranchingMode) []float64 {
	counts := make([]float64, len(msgs))

	switch mode.Resolve(msgs) {
	case chat.ModeParent:
		children := make(map[int64]int, len(msgs))
		for _, m := range msgs {
			if m.Parent != nil {
				children[*m.Parent]++
			}
		}
		for i, m := range msgs {
			n := children[m.Timestamp]
			if m.Parent != nil && *m.Parent == m.Timestamp {
				n-- // a message is never its own reply
			}
			counts[i] = float64(n)
		}
	default:
		for i, m := range msgs {
			counts[i] = float64(len(m.Replies))
		}
	}

	return counts
}

// ChaosScores computes the population variance of branching counts per tier,
// rounded to ScorePrecision. Empty tiers score 0.
func ChaosScores(tiers [][]int, branches []float64) ([]float64, error) {
	scores := make([]float64, len(tiers))
	for t, members := range tiers {
		if len(members) == 0 {
			continue
		}
		data := make(stats.Float64Data, len(members))
		for j, idx := range members {
			data[j] = branches[idx]
		}
		// sorted so the float sum is identical for any input order
		sort.Float64s(data)
		v, err := stats.PopulationVariance(data)
		if err != nil {
			return nil, errors.Wrapf(err, "variance of tier %d", t+1)
		}
		scores[t], err = round(v)
		if err != nil {
			return nil, errors.Wrapf(err, "round tier %d", t+1)
		}
	}
	return scores, nil
}

// AlignmentFlags marks the tiers whose chaos score is within AlignmentTolerance
// of IdealDimension.
func AlignmentFlags(chaos []float64) []bool {
	flags := make([]bool, len(chaos))
	for i, c := range chaos {
		flags[i] = IsAligned(c)
	}
	return flags
}

// IsAligned reports whether a chaos score is close enough to the ideal.
func IsAligned(chaos float64) bool {
	return math.Abs(chaos-domain.IdealDimension) < domain.AlignmentTolerance
}

// InfluenceScore is the mean over distinct senders of each sender's total
// branching count, rounded to ScorePrecision.
func InfluenceScore(msgs []chat.Message, branches []float64) (float64, error) {
	_, totals := SenderTotals(msgs, branches)
	if len(totals) == 0 {
		return 0, nil
	}
	mean, err := stats.Mean(totals)
	if err != nil {
		return 0, errors.Wrap(err, "influence mean")
	}
	return round(mean)
}

// SenderTotals sums branching per sender. Senders are returned in order of
// first appearance, totals positionally aligned with them.
func SenderTotals(msgs []chat.Message, branches []float64) ([]string, stats.Float64Data) {
	index := make(map[string]int)
	var senders []string
	var totals stats.Float64Data
	for i, m := range msgs {
		key := m.SenderKey()
		pos, ok := index[key]
		if !ok {
			pos = len(senders)
			index[key] = pos
			senders = append(senders, key)
			totals = append(totals, 0)
		}
		totals[pos] += branches[i]
	}
	return senders, totals
}

func round(v float64) (float64, error) {
	if v == 0 {
		return 0, nil
	}
	return stats.Round(v, domain.ScorePrecision)
}
