// Package scorer defines the acoustic-model boundary the search driver
// consults once per emitting token per frame (spec §6: "Scorer contract").
package scorer

import (
	"context"
	"fmt"

	"github.com/denizumutdereli/lvcsr-decoder/internal/graph"
)

// Feature is an opaque, immutable acoustic feature frame tagged with a
// monotonic frame index and duration (spec §3). The decoder never
// inspects its payload.
type Feature struct {
	Index    int
	Duration float64 // seconds, default 0.010 (10ms)
	Payload  any
}

// ErrScorerFailed wraps acoustic scorer failures (spec §7 ScorerError):
// fatal for the current utterance, never for the process.
type ErrScorerFailed struct {
	Frame int
	State graph.Signature
	Cause error
}

func (e *ErrScorerFailed) Error() string {
	return fmt.Sprintf("scorer failed at frame %d for state %s: %v", e.Frame, e.State, e.Cause)
}

func (e *ErrScorerFailed) Unwrap() error { return e.Cause }

// Scorer is the acoustic-model boundary: given a feature and a search
// state, it returns a log-likelihood score. Implementations may batch
// internally; Scorer itself is the narrow per-token contract the search
// loop calls directly.
type Scorer interface {
	Score(ctx context.Context, feature Feature, state graph.State) (float64, error)
}

// BatchResult is the outcome of scoring every requested state against one
// feature frame in a single call.
type BatchResult struct {
	Scores    map[graph.Signature]float64
	BestScore float64 // best score across the batch, used for relative beaming
}

// BatchScorer exposes calculate_scores_and_normalize from spec §6: a
// batched scoring entry point that also returns a best-score reference so
// the caller can beam-prune before even building child tokens.
type BatchScorer interface {
	Scorer
	CalculateScoresAndNormalize(ctx context.Context, feature Feature, states []graph.State) (BatchResult, error)
}
