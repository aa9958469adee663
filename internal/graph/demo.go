package graph

// LinearGraph builds a minimal left-to-right SearchGraph over words: one
// emitting state per word followed by a word-boundary state, chained
// start to end with no branching. This is a smoke-test/demo acceptor for
// cmd/decode and package tests, NOT a linguist (spec.md Non-goals:
// "dictionary/G2P loading, grammar compilation" — a real deployment
// supplies its own SearchGraph built from a compiled lexical tree).
func LinearGraph(words []string) SearchGraph {
	if len(words) == 0 {
		words = []string{"<s>"}
	}

	states := make([]*linearState, 0, len(words)*2+1)
	initial := &linearState{sig: Signature("demo:init")}
	states = append(states, initial)

	var prev *linearState = initial
	for i, w := range words {
		emit := &linearState{sig: Signature("demo:emit:" + w), emitting: true}
		states = append(states, emit)
		prev.arcs = append(prev.arcs, Arc{Dest: emit})

		boundary := &linearState{
			sig:    Signature("demo:word:" + w),
			isWord: true,
			word:   Word{Text: w},
			final:  i == len(words)-1,
		}
		states = append(states, boundary)
		emit.arcs = append(emit.arcs, Arc{Dest: boundary})

		prev = boundary
	}

	return &linearGraph{initial: initial}
}

type linearGraph struct{ initial *linearState }

func (g *linearGraph) InitialState() State { return g.initial }

type linearState struct {
	sig      Signature
	emitting bool
	final    bool
	isWord   bool
	word     Word
	arcs     []Arc
}

func (s *linearState) Signature() Signature { return s.sig }
func (s *linearState) IsEmitting() bool     { return s.emitting }
func (s *linearState) IsFinal() bool        { return s.final }
func (s *linearState) IsWord() bool         { return s.isWord }
func (s *linearState) Word() Word           { return s.word }
func (s *linearState) Arcs() []Arc          { return s.arcs }
