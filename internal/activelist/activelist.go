// Package activelist implements the frame frontier: the bounded,
// score-ordered multiset of surviving tokens (spec §3, §4.3). Selection
// (Simple/Partitioned/Word) and beam pruning live in the sibling pruner
// package, which consumes and produces *List values — keeping List itself
// a plain accumulator with Viterbi recombination.
package activelist

import (
	"github.com/denizumutdereli/lvcsr-decoder/internal/althyp"
	"github.com/denizumutdereli/lvcsr-decoder/internal/graph"
	"github.com/denizumutdereli/lvcsr-decoder/internal/logmath"
	"github.com/denizumutdereli/lvcsr-decoder/internal/token"
)

// AbsoluteBeamWidth, when set on a List, only affects WorstScore's "at
// capacity" reporting (spec §4.3); actual pruning to that width happens in
// the pruner package at Commit time.
type List struct {
	AbsoluteBeamWidth int

	tokens      []*token.Token
	bestByState map[graph.Signature]*token.Token

	bestScore float64
	bestToken *token.Token
}

// New constructs an empty List. absoluteBeamWidth <= 0 disables the
// "is this list at capacity" notion used by WorstScore.
func New(absoluteBeamWidth int) *List {
	return &List{
		AbsoluteBeamWidth: absoluteBeamWidth,
		bestByState:       make(map[graph.Signature]*token.Token),
		bestScore:         logmath.LogZero,
	}
}

// Add inserts t, performing Viterbi recombination: if a token sharing t's
// search-state signature already exists, the higher-scoring one survives
// and the loser is recorded against the winner in alt (spec §4.3, §4.5).
// alt may be nil, in which case losers are simply discarded.
func (l *List) Add(t *token.Token, alt *althyp.Manager) {
	sig := t.Signature()
	if existing, ok := l.bestByState[sig]; ok {
		if t.Less(existing) {
			if alt != nil && existing.Predecessor() != t.Predecessor() {
				alt.AddAlternate(t, existing)
			}
			l.bestByState[sig] = t
			l.replaceInTokens(existing, t)
		} else {
			if alt != nil && t.Predecessor() != existing.Predecessor() {
				alt.AddAlternate(existing, t)
			}
			return
		}
	} else {
		l.bestByState[sig] = t
		l.tokens = append(l.tokens, t)
	}

	if t.Score() > l.bestScore {
		l.bestScore = t.Score()
		l.bestToken = t
	}
}

func (l *List) replaceInTokens(loser, winner *token.Token) {
	for i, existing := range l.tokens {
		if existing == loser {
			l.tokens[i] = winner
			return
		}
	}
	// Unreachable if bestByState and tokens stay in sync, but fail safe
	// rather than silently dropping a survivor.
	l.tokens = append(l.tokens, winner)
}

// Best returns the highest-scoring surviving token, or nil if empty.
func (l *List) Best() *token.Token { return l.bestToken }

// BestScore returns the score of Best(), or LogZero if empty.
func (l *List) BestScore() float64 { return l.bestScore }

// BeamThreshold returns best_score + relativeBeamWidth (spec §4.3).
// relativeBeamWidth is expected to be <= 0.
func (l *List) BeamThreshold(relativeBeamWidth float64) float64 {
	if len(l.tokens) == 0 {
		return logmath.LogZero
	}
	return l.bestScore + relativeBeamWidth
}

// WorstScore returns the lowest-scoring surviving token's score if the
// list is at its configured absolute-beam capacity, else LogZero — "anything
// accepted" (spec §4.3).
func (l *List) WorstScore() float64 {
	if l.AbsoluteBeamWidth <= 0 || len(l.tokens) < l.AbsoluteBeamWidth {
		return logmath.LogZero
	}
	worst := l.bestScore
	for _, t := range l.tokens {
		if t.Score() < worst {
			worst = t.Score()
		}
	}
	return worst
}

// Tokens returns the current survivor set. Callers must not mutate it.
func (l *List) Tokens() []*token.Token { return l.tokens }

// Size returns the number of tokens currently held.
func (l *List) Size() int { return len(l.tokens) }

// Stats returns a diagnostic snapshot, mirroring this codebase's
// map[string]any live-component snapshot convention.
func (l *List) Stats() map[string]any {
	return map[string]any{
		"size":        len(l.tokens),
		"best_score":  l.bestScore,
		"worst_score": l.WorstScore(),
	}
}
