// Package token implements the decoder's hypothesis node: an
// immutable-after-commit token with a back-pointer into its ancestry, an
// accumulated score, and the search-graph state it occupies.
package token

import (
	"sync/atomic"

	"github.com/denizumutdereli/lvcsr-decoder/internal/graph"
)

var idSeq uint64

func nextID() uint64 {
	return atomic.AddUint64(&idSeq, 1)
}

// Token is one hypothesis node: a state + back-pointer + accumulated score
// (spec §3). Tokens form a DAG of ancestry via Predecessor; any surviving
// token keeps its entire ancestor chain alive by holding a reference to it,
// so the search never needs bare pointers into a growable/movable buffer
// (spec §9).
//
// A Token is immutable once constructed. "Commit" in the spec's sense
// (a token becomes unconditionally immutable once referenced by a
// surviving descendant or kept as an alternate predecessor) falls out
// naturally here: nothing ever mutates a *Token after New returns it.
type Token struct {
	id uint64

	state graph.State

	score          float64
	acousticScore  float64
	languageScore  float64
	insertionScore float64

	frameIndex  int
	predecessor *Token
	word        *graph.Word
}

// New constructs a token whose score is predecessor.score + the three
// incremental deltas (spec §3 invariant: score == predecessor.score +
// acoustic + language + insertion). For the root token (no predecessor),
// pass nil and a score that reflects the linguist's initial-state cost
// (commonly logmath.LogOne).
func New(state graph.State, predecessor *Token, acoustic, language, insertion float64, frameIndex int) *Token {
	base := 0.0
	word := (*graph.Word)(nil)
	if predecessor != nil {
		base = predecessor.score
		word = predecessor.word
	}
	if state.IsWord() {
		w := state.Word()
		word = &w
	}
	return &Token{
		id:             nextID(),
		state:          state,
		score:          base + acoustic + language + insertion,
		acousticScore:  acoustic,
		languageScore:  language,
		insertionScore: insertion,
		frameIndex:     frameIndex,
		predecessor:    predecessor,
		word:           word,
	}
}

// Root constructs the initial token at the linguist's initial state, with
// an explicit starting score (usually logmath.LogOne == 0).
func Root(state graph.State, score float64) *Token {
	var word *graph.Word
	if state.IsWord() {
		w := state.Word()
		word = &w
	}
	return &Token{
		id:         nextID(),
		state:      state,
		score:      score,
		frameIndex: -1,
		word:       word,
	}
}

// WithAcousticScore returns a new token identical to t but with its
// acoustic score and total score updated to reflect a frame's scorer
// result (spec §4.5 step 2: "tok.acoustic_score = scorer.score(...);
// tok.score += tok.acoustic_score"). Tokens are immutable, so scoring
// produces a fresh token rather than mutating t in place; t's descendants
// (if any were already built, which cannot happen before scoring in the
// documented algorithm) remain valid against the original.
func (t *Token) WithAcousticScore(acoustic float64, frameIndex int) *Token {
	return &Token{
		id:             nextID(),
		state:          t.state,
		score:          t.score + acoustic,
		acousticScore:  t.acousticScore + acoustic,
		languageScore:  t.languageScore,
		insertionScore: t.insertionScore,
		frameIndex:     frameIndex,
		predecessor:    t.predecessor,
		word:           t.word,
	}
}

// ID returns a process-unique, monotonically increasing identity used as a
// stable tie-break in Less so equal-score tokens never compare equal
// unless they are literally the same token (spec §4.1).
func (t *Token) ID() uint64 { return t.id }

func (t *Token) State() graph.State { return t.state }
func (t *Token) Score() float64     { return t.score }
func (t *Token) AcousticScore() float64  { return t.acousticScore }
func (t *Token) LanguageScore() float64  { return t.languageScore }
func (t *Token) InsertionScore() float64 { return t.insertionScore }
func (t *Token) Frame() int              { return t.frameIndex }
func (t *Token) Predecessor() *Token     { return t.predecessor }
func (t *Token) IsEmitting() bool        { return t.state.IsEmitting() }
func (t *Token) IsFinal() bool           { return t.state.IsFinal() }
func (t *Token) IsWord() bool            { return t.state.IsWord() }

// Word returns the nearest word-state ancestor's word, or nil if no word
// boundary has been crossed yet on this path.
func (t *Token) Word() *graph.Word { return t.word }

// Signature returns the recombination key for this token: its search
// state's signature.
func (t *Token) Signature() graph.Signature { return t.state.Signature() }

// Less orders tokens by descending score, with a stable secondary key
// (ID) so two distinct equal-score tokens are never considered equal by a
// sort (spec §4.1). It returns true when t sorts before other.
func (t *Token) Less(other *Token) bool {
	if t.score != other.score {
		return t.score > other.score
	}
	return t.id < other.id
}
