// Package graph defines the decoder's read-only view of the linguist's
// search graph: states and the arcs leaving them. The linguist (lexical
// tree, grammar, language-model unfolding) lives outside this module;
// this package only states the contract the search driver needs.
package graph

// Signature is a stable, hashable identity for a SearchState, used for
// Viterbi recombination in the ActiveList. Two arcs whose destination
// states share a Signature are treated as the same destination.
type Signature string

// Word identifies a lexical word emitted at a word-boundary state.
type Word struct {
	Text          string
	Pronunciation string
	Filler        bool // true for silence/filler words; counted against the word pruner's filler cap, not excluded from timed results
}

// State is the decoder's read-only view of one linguist search-graph node.
//
// Implementations MUST be safe for concurrent reads (spec §6: "Must be
// thread-safe for read") since arcs may be generated lazily and the graph
// need not be finite or fully materialized.
type State interface {
	// Signature returns a stable hashable identity used for recombination.
	Signature() Signature

	// IsEmitting reports whether entering this state consumes one feature
	// frame (an HMM state).
	IsEmitting() bool

	// IsFinal reports whether this state is an accepting end-of-utterance
	// state.
	IsFinal() bool

	// IsWord reports whether this state is a word-boundary carrying a Word.
	IsWord() bool

	// Word returns the word associated with this state. Only meaningful
	// when IsWord() is true.
	Word() Word

	// Arcs returns the outgoing transitions from this state. May be
	// computed lazily; callers must not assume a stable backing slice.
	Arcs() []Arc
}

// Arc is a transition from one State to another, carrying the incremental
// log scores contributed by taking it (spec §3: "insertion/language-model
// log score").
type Arc struct {
	Dest           State
	LanguageScore  float64
	InsertionScore float64
}

// SearchGraph is the linguist's uniform state/arc interface (spec §4.2,
// §6). The search driver never inspects the linguist directly; it only
// asks for the initial state and walks arcs from there.
type SearchGraph interface {
	// InitialState returns the graph's single entry point (conventionally
	// the <s> sentence-start state).
	InitialState() State
}
