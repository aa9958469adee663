package search

import (
	"context"
	"errors"
	"testing"

	"github.com/denizumutdereli/lvcsr-decoder/internal/decoder"
	"github.com/denizumutdereli/lvcsr-decoder/internal/frontend"
	"github.com/denizumutdereli/lvcsr-decoder/internal/graph"
	"github.com/denizumutdereli/lvcsr-decoder/internal/logmath"
	"github.com/denizumutdereli/lvcsr-decoder/internal/pruner"
	"github.com/denizumutdereli/lvcsr-decoder/internal/scorer"
)

// fakeState is a minimal graph.State for exercising the search loop
// without a real linguist.
type fakeState struct {
	sig      graph.Signature
	emitting bool
	final    bool
	isWord   bool
	word     graph.Word
	arcs     []graph.Arc
}

func (s *fakeState) Signature() graph.Signature { return s.sig }
func (s *fakeState) IsEmitting() bool            { return s.emitting }
func (s *fakeState) IsFinal() bool               { return s.final }
func (s *fakeState) IsWord() bool                { return s.isWord }
func (s *fakeState) Word() graph.Word            { return s.word }
func (s *fakeState) Arcs() []graph.Arc           { return s.arcs }

type fakeGraph struct{ initial graph.State }

func (g *fakeGraph) InitialState() graph.State { return g.initial }

type constScorer struct{ score float64 }

func (c constScorer) Score(_ context.Context, _ scorer.Feature, _ graph.State) (float64, error) {
	return c.score, nil
}

// linearGraph builds: s0 (initial, non-emitting) --eps--> s1 (emitting)
// --word "hi"--> s2 (word, final, non-emitting).
func linearGraph() *fakeGraph {
	s2 := &fakeState{sig: "s2", final: true, isWord: true, word: graph.Word{Text: "hi"}}
	s1 := &fakeState{sig: "s1", emitting: true}
	s1.arcs = []graph.Arc{{Dest: s2, LanguageScore: -0.1, InsertionScore: 0}}
	s0 := &fakeState{sig: "s0"}
	s0.arcs = []graph.Arc{{Dest: s1, LanguageScore: 0, InsertionScore: 0}}
	return &fakeGraph{initial: s0}
}

func baseConfig() Config {
	return Config{
		Prune:               pruner.SimpleConfig(100, -50, true),
		NonEmittingDepthCap: 10,
		AltHypMaxEdges:      5,
		Math:                logmath.New(),
	}
}

func TestManagerRecognizeEndToEnd(t *testing.T) {
	g := linearGraph()
	sc := scorer.NewDefaultBatchScorer(constScorer{score: -1.0})
	fe := frontend.NewSliceFrontend([]any{1}, 0.01)

	m := New(g, sc, fe, baseConfig())
	if err := m.Allocate(); err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if err := m.StartRecognition(); err != nil {
		t.Fatalf("StartRecognition: %v", err)
	}

	res, err := m.Recognize(context.Background(), 10)
	if err != nil {
		t.Fatalf("Recognize: %v", err)
	}
	if res == nil {
		t.Fatal("expected non-nil result")
	}
	if !res.IsFinal() {
		t.Error("expected final result after end-of-data")
	}
	if res.IsError() {
		t.Error("did not expect an errored result")
	}
	best := res.BestToken()
	if best == nil {
		t.Fatal("expected a best token")
	}
	if !best.IsFinal() {
		t.Error("expected best token to reach the final state")
	}
	if best.Word() == nil || best.Word().Text != "hi" {
		t.Errorf("expected word 'hi', got %+v", best.Word())
	}
}

func TestManagerZeroBlockSizeIsNoop(t *testing.T) {
	g := linearGraph()
	sc := scorer.NewDefaultBatchScorer(constScorer{score: -1.0})
	fe := frontend.NewSliceFrontend([]any{1}, 0.01)

	m := New(g, sc, fe, baseConfig())
	_ = m.Allocate()
	_ = m.StartRecognition()

	res, err := m.Recognize(context.Background(), 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res != nil {
		t.Errorf("expected nil result for block_size=0, got %+v", res)
	}
}

func TestManagerInvalidStateTransition(t *testing.T) {
	g := linearGraph()
	sc := scorer.NewDefaultBatchScorer(constScorer{score: -1.0})
	fe := frontend.NewSliceFrontend([]any{1}, 0.01)

	m := New(g, sc, fe, baseConfig())
	if err := m.StartRecognition(); !errors.Is(err, decoder.ErrInvalidState) {
		t.Errorf("expected ErrInvalidState before allocate, got %v", err)
	}

	_ = m.Allocate()
	if _, err := m.Recognize(context.Background(), 1); !errors.Is(err, decoder.ErrInvalidState) {
		t.Errorf("expected ErrInvalidState before start_recognition, got %v", err)
	}
}

func TestManagerNonEmittingCycleExceedsDepthCap(t *testing.T) {
	// s0 and s1 are both non-emitting and loop into each other forever, so
	// grow_non_emitting can never reach a fixed point.
	s0 := &fakeState{sig: "loop0"}
	s1 := &fakeState{sig: "loop1"}
	s0.arcs = []graph.Arc{{Dest: s1, LanguageScore: -0.01}}
	s1.arcs = []graph.Arc{{Dest: s0, LanguageScore: -0.01}}
	g := &fakeGraph{initial: s0}

	sc := scorer.NewDefaultBatchScorer(constScorer{score: -1.0})
	fe := frontend.NewSliceFrontend([]any{1}, 0.01)

	cfg := baseConfig()
	cfg.NonEmittingDepthCap = 5
	m := New(g, sc, fe, cfg)
	_ = m.Allocate()
	_ = m.StartRecognition()

	res, err := m.Recognize(context.Background(), 1)
	if err != nil {
		t.Fatalf("Recognize should surface the cycle as an errored Result, not a Go error: %v", err)
	}
	if !res.IsError() {
		t.Error("expected an errored result when the depth cap is exceeded")
	}
	if !res.IsFinal() {
		t.Error("an errored result must also be final")
	}
}

func TestManagerEmitIntermediateResults(t *testing.T) {
	g := linearGraph()
	sc := scorer.NewDefaultBatchScorer(constScorer{score: -1.0})
	fe := frontend.NewSliceFrontend([]any{1, 2}, 0.01)

	cfg := baseConfig()
	cfg.EmitIntermediateResults = true
	m := New(g, sc, fe, cfg)
	_ = m.Allocate()
	_ = m.StartRecognition()

	res, err := m.Recognize(context.Background(), 1)
	if err != nil {
		t.Fatalf("Recognize: %v", err)
	}
	if res == nil {
		t.Fatal("expected an intermediate result")
	}
	if res.IsFinal() {
		t.Error("first block should not yet be final: end-of-data not reached")
	}
}
