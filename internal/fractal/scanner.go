package fractal

import (
	"fractalscan/domain/chat"
	domain "fractalscan/domain/fractal"
)

// Scanner runs the engine and the pattern analyzer together.
type Scanner struct {
	engine   *Engine
	analyzer *PatternAnalyzer
}

// NewScanner creates a scanner with a fresh engine and analyzer
func NewScanner() *Scanner {
	return &Scanner{engine: NewEngine(), analyzer: NewPatternAnalyzer()}
}

// Scan computes the full scan of one conversation.
func (s *Scanner) Scan(msgs []chat.Message, mode chat.BranchingMode) (*domain.Scan, error) {
	comp, err := s.engine.Compute(msgs, mode)
	if err != nil {
		return nil, err
	}
	summary, err := s.analyzer.Summarize(msgs, comp)
	if err != nil {
		return nil, err
	}
	return &domain.Scan{Result: comp.Result, Mode: comp.Mode, Summary: summary}, nil
}
