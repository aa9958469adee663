// Package result defines the decoder's immutable output surface: Result
// and WordResult (spec §3 "Lifecycle", §6 "Decoder CLI / API surface").
package result

import (
	"github.com/denizumutdereli/lvcsr-decoder/internal/activelist"
	"github.com/denizumutdereli/lvcsr-decoder/internal/althyp"
	"github.com/denizumutdereli/lvcsr-decoder/internal/logmath"
	"github.com/denizumutdereli/lvcsr-decoder/internal/token"
)

// WordResult is one word of a timed recognition output (spec §6).
type WordResult struct {
	Word    string
	BeginMS uint64
	EndMS   uint64
	Score   float32

	// LogConfidence is always natural-log (base e), regardless of the
	// MathConfig.LogBase the producing LogMath was configured with (spec
	// §9): lattice.NBest converts every posterior to nats before storing it
	// here, so this field never needs to carry its own base alongside it.
	LogConfidence float32
}

// ConfidenceLinear converts LogConfidence to a linear [0,1] value:
// exp(log_confidence). Safe to use a fixed natural-log LogMath regardless
// of the session's configured log_base, because LogConfidence is always
// stored in natural-log space (see its doc comment).
func (w WordResult) ConfidenceLinear() float64 {
	lm := logmath.New()
	return lm.LogToLinear(float64(w.LogConfidence))
}

// Result is the immutable per-recognize()-call output (spec §6). It
// retains the active list at the time of return (or the final survivors,
// for a final Result) and the alternate-hypothesis map needed to build a
// Lattice on demand.
type Result struct {
	final      bool
	errored    bool
	activeList *activelist.List
	bestToken  *token.Token
	alternates *althyp.Manager
}

// New constructs a Result from the frame loop's current state.
func New(active *activelist.List, alt *althyp.Manager, final bool, errored bool) *Result {
	return &Result{
		final:      final,
		errored:    errored,
		activeList: active,
		bestToken:  active.Best(),
		alternates: alt,
	}
}

// IsFinal reports whether this Result represents the end of the
// utterance (spec §6).
func (r *Result) IsFinal() bool { return r.final }

// IsError reports a GraphError/ScorerError condition (spec §7): the
// utterance was aborted, and BestToken reflects only the partial path
// reached before the failure.
func (r *Result) IsError() bool { return r.errored }

// BestToken returns the highest-scoring token on the active list at the
// time this Result was produced (spec §6).
func (r *Result) BestToken() *token.Token { return r.bestToken }

// ActiveTokens returns every surviving token (spec §6).
func (r *Result) ActiveTokens() []*token.Token { return r.activeList.Tokens() }

// Alternates exposes the alternate-hypothesis map for lattice
// construction; lattice.Build(result) is the intended caller.
func (r *Result) Alternates() *althyp.Manager { return r.alternates }

// IsEmpty reports the EmptyResult condition (spec §7): no token reached a
// final state, which is NOT an error — BestToken is still the
// highest-scoring active token.
func (r *Result) IsEmpty() bool {
	return r.bestToken == nil || !r.bestToken.IsFinal()
}
