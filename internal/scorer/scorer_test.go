package scorer

import (
	"context"
	"errors"
	"testing"

	"github.com/denizumutdereli/lvcsr-decoder/internal/graph"
	"github.com/denizumutdereli/lvcsr-decoder/internal/logmath"
)

type stubState struct {
	sig graph.Signature
}

func (s *stubState) Signature() graph.Signature { return s.sig }
func (s *stubState) IsEmitting() bool            { return true }
func (s *stubState) IsFinal() bool               { return false }
func (s *stubState) IsWord() bool                { return false }
func (s *stubState) Word() graph.Word            { return graph.Word{} }
func (s *stubState) Arcs() []graph.Arc           { return nil }

func TestReferenceScorerMatchesExactToken(t *testing.T) {
	s := NewReferenceScorer(-50)
	state := &stubState{sig: "demo:emit:cat"}
	feat := Feature{Index: 0, Payload: "cat"}

	got, err := s.Score(context.Background(), feat, state)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if got != logmath.LogOne {
		t.Errorf("exact match score = %v, want LogOne", got)
	}
}

func TestReferenceScorerMatchIsCaseInsensitive(t *testing.T) {
	s := NewReferenceScorer(-50)
	state := &stubState{sig: "demo:emit:Cat"}
	feat := Feature{Index: 0, Payload: "cat"}

	got, _ := s.Score(context.Background(), feat, state)
	if got != logmath.LogOne {
		t.Errorf("case-insensitive match score = %v, want LogOne", got)
	}
}

func TestReferenceScorerMismatchUsesConfiguredScore(t *testing.T) {
	s := NewReferenceScorer(-50)
	state := &stubState{sig: "demo:emit:cat"}
	feat := Feature{Index: 0, Payload: "dog"}

	got, _ := s.Score(context.Background(), feat, state)
	if got != -50 {
		t.Errorf("mismatch score = %v, want -50", got)
	}
}

func TestReferenceScorerNonEmittingStateIsMismatch(t *testing.T) {
	s := NewReferenceScorer(-50)
	state := &stubState{sig: "demo:word:cat"}
	feat := Feature{Index: 0, Payload: "cat"}

	got, _ := s.Score(context.Background(), feat, state)
	if got != -50 {
		t.Errorf("non-emitting-prefixed signature score = %v, want -50 (mismatchScore)", got)
	}
}

func TestDefaultBatchScorerReducesBestAcrossStates(t *testing.T) {
	s := NewDefaultBatchScorer(NewReferenceScorer(-50))
	states := []graph.State{
		&stubState{sig: "demo:emit:dog"},
		&stubState{sig: "demo:emit:cat"},
		&stubState{sig: "demo:emit:bird"},
	}
	feat := Feature{Index: 0, Payload: "cat"}

	batch, err := s.CalculateScoresAndNormalize(context.Background(), feat, states)
	if err != nil {
		t.Fatalf("CalculateScoresAndNormalize: %v", err)
	}
	if batch.BestScore != logmath.LogOne {
		t.Errorf("BestScore = %v, want LogOne (the matching state)", batch.BestScore)
	}
	if len(batch.Scores) != 3 {
		t.Fatalf("expected 3 scored states, got %d", len(batch.Scores))
	}
	if batch.Scores["demo:emit:cat"] != logmath.LogOne {
		t.Errorf("scored state for cat = %v, want LogOne", batch.Scores["demo:emit:cat"])
	}
	if batch.Scores["demo:emit:dog"] != -50 {
		t.Errorf("scored state for dog = %v, want -50", batch.Scores["demo:emit:dog"])
	}
}

// Exercises a batch size that isn't a multiple of reduceWide's 4-wide
// chunking, regardless of which reduction path this host's CPU selects.
func TestDefaultBatchScorerHandlesBatchSizeNotMultipleOfFour(t *testing.T) {
	s := NewDefaultBatchScorer(NewReferenceScorer(-50))
	states := make([]graph.State, 0, 9)
	for i := 0; i < 8; i++ {
		states = append(states, &stubState{sig: graph.Signature("demo:emit:x")})
	}
	states = append(states, &stubState{sig: "demo:emit:cat"})
	feat := Feature{Index: 0, Payload: "cat"}

	batch, err := s.CalculateScoresAndNormalize(context.Background(), feat, states)
	if err != nil {
		t.Fatalf("CalculateScoresAndNormalize: %v", err)
	}
	if batch.BestScore != logmath.LogOne {
		t.Errorf("BestScore over a 9-state batch = %v, want LogOne", batch.BestScore)
	}
}

func TestErrScorerFailedUnwrapsToCause(t *testing.T) {
	cause := errors.New("acoustic model timeout")
	err := &ErrScorerFailed{Frame: 3, State: "s", Cause: cause}
	if !errors.Is(err, cause) {
		t.Error("ErrScorerFailed must unwrap to its Cause")
	}
}
