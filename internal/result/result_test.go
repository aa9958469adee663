package result

import (
	"math"
	"testing"

	"github.com/denizumutdereli/lvcsr-decoder/internal/activelist"
	"github.com/denizumutdereli/lvcsr-decoder/internal/althyp"
	"github.com/denizumutdereli/lvcsr-decoder/internal/graph"
	"github.com/denizumutdereli/lvcsr-decoder/internal/logmath"
	"github.com/denizumutdereli/lvcsr-decoder/internal/token"
)

type stubState struct {
	sig   graph.Signature
	final bool
}

func (s *stubState) Signature() graph.Signature { return s.sig }
func (s *stubState) IsEmitting() bool            { return true }
func (s *stubState) IsFinal() bool               { return s.final }
func (s *stubState) IsWord() bool                { return false }
func (s *stubState) Word() graph.Word            { return graph.Word{} }
func (s *stubState) Arcs() []graph.Arc           { return nil }

func TestResultReflectsFinalAndErrorFlags(t *testing.T) {
	alt := althyp.New(5)
	active := activelist.New(0)
	active.Add(token.Root(&stubState{sig: "init"}, logmath.LogOne), alt)

	r := New(active, alt, true, false)
	if !r.IsFinal() {
		t.Error("IsFinal() = false, want true")
	}
	if r.IsError() {
		t.Error("IsError() = true, want false")
	}

	r2 := New(active, alt, false, true)
	if r2.IsFinal() {
		t.Error("IsFinal() = true, want false")
	}
	if !r2.IsError() {
		t.Error("IsError() = false, want true")
	}
}

func TestIsEmptyWhenNoTokenIsFinal(t *testing.T) {
	alt := althyp.New(5)
	active := activelist.New(0)
	active.Add(token.Root(&stubState{sig: "init", final: false}, logmath.LogOne), alt)

	r := New(active, alt, true, false)
	if !r.IsEmpty() {
		t.Error("expected IsEmpty() == true when the best token is not final")
	}
}

func TestIsEmptyFalseWhenBestTokenIsFinal(t *testing.T) {
	alt := althyp.New(5)
	active := activelist.New(0)
	active.Add(token.Root(&stubState{sig: "init", final: true}, logmath.LogOne), alt)

	r := New(active, alt, true, false)
	if r.IsEmpty() {
		t.Error("expected IsEmpty() == false when the best token is final")
	}
}

func TestConfidenceLinearUsesNaturalLogSpace(t *testing.T) {
	wr := WordResult{LogConfidence: float32(math.Log(0.25))}
	got := wr.ConfidenceLinear()
	if math.Abs(got-0.25) > 1e-5 {
		t.Errorf("ConfidenceLinear() = %v, want ~0.25", got)
	}
}

type stubSegmenter struct {
	sentences []string
}

func (s stubSegmenter) Segment(string) []string { return s.sentences }

func TestSentenceGrouperSplitsOnSegmenterBoundaries(t *testing.T) {
	words := []WordResult{{Word: "hello"}, {Word: "world"}, {Word: "goodbye"}}
	g := &SentenceGrouper{seg: stubSegmenter{sentences: []string{"hello world", "goodbye"}}}

	groups := g.Group(words)
	if len(groups) != 2 {
		t.Fatalf("expected 2 sentence groups, got %d", len(groups))
	}
	if len(groups[0]) != 2 || groups[0][0].Word != "hello" || groups[0][1].Word != "world" {
		t.Errorf("first group = %v, want [hello world]", groups[0])
	}
	if len(groups[1]) != 1 || groups[1][0].Word != "goodbye" {
		t.Errorf("second group = %v, want [goodbye]", groups[1])
	}
}

func TestSentenceGrouperSingleSentenceReturnsWholeSequence(t *testing.T) {
	words := []WordResult{{Word: "hi"}, {Word: "there"}}
	g := &SentenceGrouper{seg: stubSegmenter{sentences: []string{"hi there"}}}

	groups := g.Group(words)
	if len(groups) != 1 || len(groups[0]) != 2 {
		t.Fatalf("expected a single group of 2 words, got %v", groups)
	}
}

func TestNilSentenceGrouperIsNoOp(t *testing.T) {
	var g *SentenceGrouper
	words := []WordResult{{Word: "a"}, {Word: "b"}}
	groups := g.Group(words)
	if len(groups) != 1 || len(groups[0]) != 2 {
		t.Errorf("nil grouper must return the whole sequence as one sentence, got %v", groups)
	}
}

func TestSentenceGrouperEmptyInput(t *testing.T) {
	g := NewSentenceGrouper()
	if groups := g.Group(nil); len(groups) != 1 || len(groups[0]) != 0 {
		t.Errorf("empty input must return one empty group, got %v", groups)
	}
}
