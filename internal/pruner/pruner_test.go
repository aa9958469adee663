package pruner

import (
	"testing"

	"github.com/denizumutdereli/lvcsr-decoder/internal/activelist"
	"github.com/denizumutdereli/lvcsr-decoder/internal/althyp"
	"github.com/denizumutdereli/lvcsr-decoder/internal/graph"
	"github.com/denizumutdereli/lvcsr-decoder/internal/logmath"
	"github.com/denizumutdereli/lvcsr-decoder/internal/token"
)

type stubState struct {
	sig    graph.Signature
	word   bool
	wordV  graph.Word
}

func (s *stubState) Signature() graph.Signature { return s.sig }
func (s *stubState) IsEmitting() bool            { return true }
func (s *stubState) IsFinal() bool               { return false }
func (s *stubState) IsWord() bool                { return s.word }
func (s *stubState) Word() graph.Word            { return s.wordV }
func (s *stubState) Arcs() []graph.Arc           { return nil }

func makeTokens(scores ...float64) []*token.Token {
	root := token.Root(&stubState{sig: "init"}, logmath.LogOne)
	out := make([]*token.Token, len(scores))
	for i, sc := range scores {
		out[i] = token.New(&stubState{sig: graph.Signature(string(rune('a' + i)))}, root, sc, 0, 0, 0)
	}
	return out
}

func TestCanPruneBeforeScoringIsInverseOfStrict(t *testing.T) {
	if !(Config{Strict: false}).CanPruneBeforeScoring() {
		t.Error("Strict=false must allow entry-time pruning")
	}
	if (Config{Strict: true}).CanPruneBeforeScoring() {
		t.Error("Strict=true must forbid entry-time pruning")
	}
}

func TestSelectBySortOrdersDescendingAndTruncates(t *testing.T) {
	toks := makeTokens(-5, -1, -3)
	out := SelectBySort(toks, 2)
	if len(out) != 2 {
		t.Fatalf("len(out) = %d, want 2", len(out))
	}
	if out[0].Score() != -1 || out[1].Score() != -3 {
		t.Errorf("expected descending order [-1, -3], got [%v, %v]", out[0].Score(), out[1].Score())
	}
}

func TestSelectBySortWithNonPositiveKIsUnbounded(t *testing.T) {
	toks := makeTokens(-5, -1, -3)
	out := SelectBySort(toks, 0)
	if len(out) != 3 {
		t.Errorf("k<=0 must keep every token, got %d", len(out))
	}
}

// TestSelectByPartitionAgreesWithSelectBySort is the relative-beam /
// top-K selection invariant: quickselect must place the same top-k set,
// in the same descending order, as the full sort it's meant to speed up.
func TestSelectByPartitionAgreesWithSelectBySort(t *testing.T) {
	scores := []float64{-9, -1, -4, -2, -7, -0.5, -3}
	for k := 1; k <= len(scores); k++ {
		sorted := SelectBySort(makeTokens(scores...), k)
		partitioned := SelectByPartition(makeTokens(scores...), k)
		if len(sorted) != len(partitioned) {
			t.Fatalf("k=%d: len mismatch sorted=%d partitioned=%d", k, len(sorted), len(partitioned))
		}
		for i := range sorted {
			if sorted[i].Score() != partitioned[i].Score() {
				t.Errorf("k=%d: position %d: sorted=%v partitioned=%v", k, i, sorted[i].Score(), partitioned[i].Score())
			}
		}
	}
}

func TestCommitAppliesAbsoluteBeamWidth(t *testing.T) {
	alt := althyp.New(5)
	src := activelist.New(0)
	for _, tok := range makeTokens(-5, -1, -3, -2) {
		src.Add(tok, alt)
	}

	cfg := SimpleConfig(2, 0, false)
	out := Commit(src, cfg, alt)

	if out.Size() != 2 {
		t.Fatalf("expected AbsoluteBeamWidth=2 to keep 2 survivors, got %d", out.Size())
	}
	if out.Best().Score() != -1 {
		t.Errorf("Best().Score() = %v, want -1", out.Best().Score())
	}
}

func TestCommitAppliesRelativeBeamWidth(t *testing.T) {
	alt := althyp.New(5)
	src := activelist.New(0)
	for _, tok := range makeTokens(-10, -1, -1.5, -0.5) {
		src.Add(tok, alt)
	}

	cfg := SimpleConfig(0, -2.0, false) // threshold = best(-0.5) - 2.0 = -2.5
	out := Commit(src, cfg, alt)

	for _, tok := range out.Tokens() {
		if tok.Score() < -2.5 {
			t.Errorf("survivor with score %v falls below the relative beam threshold -2.5", tok.Score())
		}
	}
	if out.Size() != 3 {
		t.Errorf("expected 3 survivors within the relative beam, got %d", out.Size())
	}
}

func TestCommitAppliesWordCaps(t *testing.T) {
	alt := althyp.New(5)
	root := token.Root(&stubState{sig: "init"}, logmath.LogOne)

	mkWord := func(sig string, score float64, word string, filler bool) *token.Token {
		return token.New(&stubState{sig: graph.Signature(sig), word: true, wordV: graph.Word{Text: word, Filler: filler}}, root, score, 0, 0, 0)
	}

	src := activelist.New(0)
	src.Add(mkWord("w1", -1, "cat", false), alt)
	src.Add(mkWord("w2", -2, "cat", false), alt)
	src.Add(mkWord("w3", -3, "cat", false), alt)
	src.Add(mkWord("f1", -0.5, "<sil>", true), alt)
	src.Add(mkWord("f2", -0.6, "<sil>", true), alt)

	cfg := WordConfig(0, 0, false, WordCaps{MaxPathsPerWord: 2, MaxFillerWords: 1})
	out := Commit(src, cfg, alt)

	catCount, fillerCount := 0, 0
	for _, tok := range out.Tokens() {
		if tok.Word().Filler {
			fillerCount++
		} else if tok.Word().Text == "cat" {
			catCount++
		}
	}
	if catCount != 2 {
		t.Errorf("expected at most 2 survivors for word %q, got %d", "cat", catCount)
	}
	if fillerCount != 1 {
		t.Errorf("expected at most 1 filler survivor, got %d", fillerCount)
	}
}

func TestWordConfigLayersOverPartitionedSelection(t *testing.T) {
	cfg := WordConfig(5, -1, true, WordCaps{MaxPathsPerWord: 1})
	if cfg.Words == nil || cfg.Words.MaxPathsPerWord != 1 {
		t.Fatal("WordConfig must carry the given WordCaps")
	}
	if cfg.AbsoluteBeamWidth != 5 || cfg.RelativeBeamWidth != -1 || !cfg.Strict {
		t.Error("WordConfig must preserve the beam-width and strict arguments")
	}
}
