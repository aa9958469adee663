package token

import (
	"testing"

	"github.com/denizumutdereli/lvcsr-decoder/internal/graph"
)

type stubState struct {
	sig    graph.Signature
	word   bool
	wordV  graph.Word
	final  bool
	emit   bool
}

func (s *stubState) Signature() graph.Signature { return s.sig }
func (s *stubState) IsEmitting() bool            { return s.emit }
func (s *stubState) IsFinal() bool               { return s.final }
func (s *stubState) IsWord() bool                { return s.word }
func (s *stubState) Word() graph.Word            { return s.wordV }
func (s *stubState) Arcs() []graph.Arc           { return nil }

func TestNewScoreIsPredecessorPlusDeltas(t *testing.T) {
	root := Root(&stubState{sig: "init"}, 0)
	cases := []struct {
		acoustic, language, insertion float64
	}{
		{0, 0, 0},
		{-1.5, -0.25, -0.1},
		{-10, 0, 0},
	}
	for _, c := range cases {
		child := New(&stubState{sig: "s"}, root, c.acoustic, c.language, c.insertion, 0)
		want := root.Score() + c.acoustic + c.language + c.insertion
		if child.Score() != want {
			t.Errorf("acoustic=%v language=%v insertion=%v: score = %v, want %v", c.acoustic, c.language, c.insertion, child.Score(), want)
		}
	}
}

func TestWithAcousticScoreAddsToExistingScore(t *testing.T) {
	root := Root(&stubState{sig: "init"}, 0)
	tok := New(&stubState{sig: "s", emit: true}, root, -1.0, -0.5, 0, 0)
	before := tok.Score()
	scored := tok.WithAcousticScore(-2.0, 1)

	if scored.Score() != before-2.0 {
		t.Errorf("WithAcousticScore: score = %v, want %v", scored.Score(), before-2.0)
	}
	if scored.AcousticScore() != tok.AcousticScore()-2.0 {
		t.Errorf("WithAcousticScore: acoustic component = %v, want %v", scored.AcousticScore(), tok.AcousticScore()-2.0)
	}
	if scored.LanguageScore() != tok.LanguageScore() {
		t.Error("WithAcousticScore must not change the language score component")
	}
	if scored.Predecessor() != tok.Predecessor() {
		t.Error("WithAcousticScore must preserve the predecessor")
	}
	if tok.Score() != before {
		t.Error("WithAcousticScore must not mutate the original token")
	}
}

func TestLessOrdersByDescendingScoreThenID(t *testing.T) {
	root := Root(&stubState{sig: "init"}, 0)
	low := New(&stubState{sig: "a"}, root, -5, 0, 0, 0)
	high := New(&stubState{sig: "b"}, root, -1, 0, 0, 0)

	if !high.Less(low) {
		t.Error("higher-scoring token must sort before a lower-scoring one")
	}
	if low.Less(high) {
		t.Error("lower-scoring token must not sort before a higher-scoring one")
	}

	tie1 := New(&stubState{sig: "c"}, root, -1, 0, 0, 0)
	tie2 := New(&stubState{sig: "d"}, root, -1, 0, 0, 0)
	if tie1.ID() == tie2.ID() {
		t.Fatal("distinct tokens must never share an ID")
	}
	// Lower ID (constructed first) must be the Less winner among equal scores.
	if !tie1.Less(tie2) {
		t.Error("equal-score tokens must tie-break on ascending ID")
	}
}

func TestWordTracksNearestWordAncestor(t *testing.T) {
	root := Root(&stubState{sig: "init"}, 0)
	if root.Word() != nil {
		t.Error("root with a non-word state must have a nil Word")
	}

	wordState := &stubState{sig: "w1", word: true, wordV: graph.Word{Text: "hello"}}
	w1 := New(wordState, root, 0, 0, 0, 0)
	if w1.Word() == nil || w1.Word().Text != "hello" {
		t.Fatalf("expected Word() == %q, got %v", "hello", w1.Word())
	}

	nonWord := New(&stubState{sig: "s2"}, w1, 0, 0, 0, 1)
	if nonWord.Word() == nil || nonWord.Word().Text != "hello" {
		t.Errorf("non-word descendant must inherit nearest word ancestor, got %v", nonWord.Word())
	}
}

func TestSignatureDelegatesToState(t *testing.T) {
	root := Root(&stubState{sig: "init"}, 0)
	tok := New(&stubState{sig: "xyz"}, root, 0, 0, 0, 0)
	if tok.Signature() != "xyz" {
		t.Errorf("Signature() = %q, want %q", tok.Signature(), "xyz")
	}
}
