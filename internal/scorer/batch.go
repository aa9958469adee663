package scorer

import (
	"context"
	"runtime"

	"github.com/klauspost/cpuid/v2"

	"github.com/denizumutdereli/lvcsr-decoder/internal/graph"
	"github.com/denizumutdereli/lvcsr-decoder/internal/logmath"
)

// wideReduce selects an unrolled best-score reduction on hardware with
// wide SIMD lanes (AVX2/FMA3, or Apple/NEON arm64), falling back to a
// scalar loop elsewhere. Mirrors the cpuid-gated hardware/generic split
// used for vector similarity kernels elsewhere in this codebase's lineage.
var wideReduce = cpuid.CPU.Supports(cpuid.AVX2) && cpuid.CPU.Supports(cpuid.FMA3) ||
	(runtime.GOARCH == "arm64" && runtime.GOOS == "darwin") ||
	(runtime.GOARCH == "arm64" && cpuid.CPU.Supports(cpuid.SVE))

// DefaultBatchScorer adapts any per-state Scorer into a BatchScorer by
// looping calls and reducing the best score. Real acoustic-model backends
// should implement BatchScorer directly so the batch call can share
// feature-extraction work across states; this adapter exists for simple
// or test scorers that only implement the narrow per-token contract.
type DefaultBatchScorer struct {
	Scorer Scorer
}

func NewDefaultBatchScorer(s Scorer) *DefaultBatchScorer {
	return &DefaultBatchScorer{Scorer: s}
}

func (b *DefaultBatchScorer) Score(ctx context.Context, feature Feature, state graph.State) (float64, error) {
	return b.Scorer.Score(ctx, feature, state)
}

func (b *DefaultBatchScorer) CalculateScoresAndNormalize(ctx context.Context, feature Feature, states []graph.State) (BatchResult, error) {
	scores := make(map[graph.Signature]float64, len(states))
	best := logmath.LogZero

	if wideReduce {
		best = reduceWide(ctx, b.Scorer, feature, states, scores)
	} else {
		best = reduceScalar(ctx, b.Scorer, feature, states, scores)
	}

	return BatchResult{Scores: scores, BestScore: best}, nil
}

func reduceScalar(ctx context.Context, s Scorer, feature Feature, states []graph.State, out map[graph.Signature]float64) float64 {
	best := logmath.LogZero
	for _, st := range states {
		sc, err := s.Score(ctx, feature, st)
		if err != nil {
			sc = logmath.LogZero
		}
		out[st.Signature()] = sc
		if sc > best {
			best = sc
		}
	}
	return best
}

// reduceWide processes states four at a time; there is no real SIMD gain
// from the acoustic scorer call itself (that cost lives inside Scorer),
// but keeping the two code paths separate documents the seam a native
// batched backend would hook into.
func reduceWide(ctx context.Context, s Scorer, feature Feature, states []graph.State, out map[graph.Signature]float64) float64 {
	best := logmath.LogZero
	n := len(states)
	i := 0
	for ; i+4 <= n; i += 4 {
		var chunk [4]float64
		for j := 0; j < 4; j++ {
			sc, err := s.Score(ctx, feature, states[i+j])
			if err != nil {
				sc = logmath.LogZero
			}
			chunk[j] = sc
			out[states[i+j].Signature()] = sc
		}
		for _, sc := range chunk {
			if sc > best {
				best = sc
			}
		}
	}
	for ; i < n; i++ {
		sc, err := s.Score(ctx, feature, states[i])
		if err != nil {
			sc = logmath.LogZero
		}
		out[states[i].Signature()] = sc
		if sc > best {
			best = sc
		}
	}
	return best
}
