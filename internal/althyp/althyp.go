// Package althyp implements the AlternateHypothesisManager: the map from a
// winning token to the list of losing predecessors recombination discarded,
// kept so the lattice builder can reconstruct N-best paths (spec §4.6).
package althyp

import (
	"sort"
	"sync"

	"github.com/denizumutdereli/lvcsr-decoder/internal/token"
)

// Manager stores, per winning Token, the predecessors of tokens that lost
// Viterbi recombination against it. It is the only structure in the
// decoder with potential concurrent writers (spec §5): AddAlternate must
// be safe to call from multiple goroutines even though the SearchManager
// itself is single-threaded per utterance, because a future batched/
// parallel scorer path may recombine and record alternates concurrently.
type Manager struct {
	maxEdges int // alt_hyp_max_edges: cap per key, purge() truncates to maxEdges-1

	mu   sync.Mutex
	alts map[*token.Token][]*token.Token
}

// New constructs a Manager with the configured per-key cap
// (alt_hyp_max_edges, spec §6). A value <= 1 disables alternate retention
// entirely: AddAlternate returns without recording anything.
func New(maxEdges int) *Manager {
	return &Manager{
		maxEdges: maxEdges,
		alts:     make(map[*token.Token][]*token.Token),
	}
}

// AddAlternate records loser as a rejected predecessor path that lost
// recombination against winner. It records unconditionally; the check that
// loser.Predecessor() differs from winner's predecessor (spec §4.5) is made
// by the caller, activelist.List.Add, before calling it.
func (m *Manager) AddAlternate(winner, loser *token.Token) {
	if m.maxEdges <= 1 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alts[winner] = append(m.alts[winner], loser)
}

// HasAlternates reports whether t has any recorded alternate predecessors.
func (m *Manager) HasAlternates(t *token.Token) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.alts[t]) > 0
}

// GetAlternates returns the (unordered-until-Purge) alternates recorded
// against t. The returned slice must not be mutated by the caller.
func (m *Manager) GetAlternates(t *token.Token) []*token.Token {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.alts[t]
}

// Purge truncates every key's alternate list to at most maxEdges-1
// entries, keeping the highest-scoring losers (spec §4.6).
func (m *Manager) Purge() {
	m.mu.Lock()
	defer m.mu.Unlock()

	cap := m.maxEdges - 1
	if cap < 0 {
		cap = 0
	}
	for winner, losers := range m.alts {
		sort.Slice(losers, func(i, j int) bool { return losers[i].Less(losers[j]) })
		if len(losers) > cap {
			losers = losers[:cap]
		}
		m.alts[winner] = losers
	}
}

// Len reports the number of winning tokens with at least one alternate
// recorded, used for diagnostics/stats.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.alts)
}
