package scorer

import (
	"context"
	"strings"

	"github.com/denizumutdereli/lvcsr-decoder/internal/graph"
	"github.com/denizumutdereli/lvcsr-decoder/internal/logmath"
)

// ReferenceScorer is the pure-Go fallback NativeScorer's doc comment
// refers to: an exact-match acoustic model good enough for wiring tests
// and cmd/decode's demo graph, never a production acoustic model. It
// scores a graph.LinearGraph emitting state by comparing the word
// encoded in its signature against the feature payload's claimed token.
type ReferenceScorer struct {
	mismatchScore float64
}

// NewReferenceScorer returns a ReferenceScorer. mismatchScore is the log
// score assigned to a non-matching state/token pair; a large negative
// value (e.g. -50) prunes mismatches out of the beam quickly.
func NewReferenceScorer(mismatchScore float64) *ReferenceScorer {
	return &ReferenceScorer{mismatchScore: mismatchScore}
}

func (s *ReferenceScorer) Score(ctx context.Context, feature Feature, state graph.State) (float64, error) {
	label := string(state.Signature())
	word, ok := strings.CutPrefix(label, "demo:emit:")
	if !ok {
		return s.mismatchScore, nil
	}
	token, _ := feature.Payload.(string)
	if strings.EqualFold(word, token) {
		return logmath.LogOne, nil
	}
	return s.mismatchScore, nil
}
