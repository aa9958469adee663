// Package search implements the SearchManager: the frame-synchronous
// token-passing driver (spec §4.5). One Manager decodes exactly one
// utterance; independent utterances run as independent Manager instances
// (spec §5) — there is no shared mutable state between them beyond what the
// caller explicitly shares (a read-only SearchGraph, a Scorer).
package search

import (
	"context"
	"fmt"
	"log"

	"github.com/denizumutdereli/lvcsr-decoder/internal/activelist"
	"github.com/denizumutdereli/lvcsr-decoder/internal/althyp"
	"github.com/denizumutdereli/lvcsr-decoder/internal/decoder"
	"github.com/denizumutdereli/lvcsr-decoder/internal/frontend"
	"github.com/denizumutdereli/lvcsr-decoder/internal/graph"
	"github.com/denizumutdereli/lvcsr-decoder/internal/logmath"
	"github.com/denizumutdereli/lvcsr-decoder/internal/pruner"
	"github.com/denizumutdereli/lvcsr-decoder/internal/result"
	"github.com/denizumutdereli/lvcsr-decoder/internal/scorer"
	"github.com/denizumutdereli/lvcsr-decoder/internal/token"
)

// State is one of the SearchManager's lifecycle states (spec §4.5:
// "Idle → Allocated → Running → Drained → Allocated → ...").
type State int

const (
	Idle State = iota
	Allocated
	Running
	Drained
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Allocated:
		return "allocated"
	case Running:
		return "running"
	case Drained:
		return "drained"
	default:
		return "unknown"
	}
}

// Config bundles everything Manager needs to run one utterance's decode
// beyond the graph/scorer/frontend triple (spec §6 configuration keys
// relevant to the search loop).
type Config struct {
	// Prune is applied at the end of every frame's arc expansion and, when
	// Prune.CanPruneBeforeScoring() (Strict is false), during non-emitting
	// growth (spec §4.4).
	Prune pruner.Config

	// NonEmittingDepthCap bounds grow_non_emitting's fixed point (spec
	// §4.5, SPEC_FULL.md supplement; default 10).
	NonEmittingDepthCap int

	// AltHypMaxEdges sizes the AlternateHypothesisManager this Manager
	// owns for the utterance's duration (spec §4.6).
	AltHypMaxEdges int

	// Math is the log-domain arithmetic this Manager's loop uses (spec §9:
	// explicit parameter, never a singleton).
	Math logmath.LogMath

	// EmitIntermediateResults governs whether Recognize returns a non-nil,
	// non-final Result after every committed frame, or only after the
	// utterance ends (SPEC_FULL.md supplement to spec §4.5 step 5).
	EmitIntermediateResults bool
}

// Manager is the SearchManager (spec §4.5): single-threaded cooperative
// with respect to its one utterance. Callers must not invoke its methods
// concurrently; the only structure inside it safe for concurrent access is
// the AlternateHypothesisManager, and even that requirement exists only in
// anticipation of a future parallel scorer path (spec §5).
type Manager struct {
	graph    graph.SearchGraph
	scorer   scorer.BatchScorer
	frontend frontend.Frontend
	cfg      Config

	state State

	alt    *althyp.Manager
	active *activelist.List

	frameIndex int
	ended      bool
	erroredErr error
}

// New constructs a Manager in the Idle state. g, sc, and fe are retained for
// the Manager's lifetime; Deallocate releases only the per-utterance active
// list and alternate map, not them.
func New(g graph.SearchGraph, sc scorer.BatchScorer, fe frontend.Frontend, cfg Config) *Manager {
	return &Manager{
		graph:    g,
		scorer:   sc,
		frontend: fe,
		cfg:      cfg,
		state:    Idle,
	}
}

// State reports the current lifecycle state.
func (m *Manager) State() State { return m.state }

// Allocate transitions Idle → Allocated (spec §5: "the scorer and linguist
// are allocated before start_recognition"). Scorer/linguist acquisition
// itself is the caller's responsibility (they are constructor arguments
// here); Allocate's role is the lifecycle gate.
func (m *Manager) Allocate() error {
	if m.state != Idle && m.state != Drained {
		return fmt.Errorf("%w: allocate from %s", decoder.ErrInvalidState, m.state)
	}
	m.state = Allocated
	m.alt = althyp.New(m.cfg.AltHypMaxEdges)
	m.active = nil
	m.frameIndex = -1
	m.ended = false
	m.erroredErr = nil
	return nil
}

// Deallocate transitions back to Idle, releasing the active list and
// alternate map (spec §5: "the decoder MUST release active lists and
// scorer caches on deallocation").
func (m *Manager) Deallocate() error {
	if m.state == Idle {
		return nil
	}
	m.active = nil
	m.alt = nil
	m.state = Idle
	return nil
}

// StartRecognition seeds the active list with a single root token at the
// graph's initial state and transitions Allocated → Running (spec §4.5:
// "Initialize active_list with a single token at graph.initial_state if
// Idle→Running").
func (m *Manager) StartRecognition() error {
	if m.state != Allocated {
		return fmt.Errorf("%w: start_recognition from %s", decoder.ErrInvalidState, m.state)
	}
	root := token.Root(m.graph.InitialState(), logmath.LogOne)
	active := activelist.New(m.cfg.Prune.AbsoluteBeamWidth)
	active.Add(root, m.alt)
	m.active = active
	m.frameIndex = -1
	m.ended = false
	m.erroredErr = nil
	m.state = Running
	return nil
}

// StopRecognition transitions Running/Drained → Allocated. A partial
// Result remains extractable from the caller's last Recognize return value
// (spec §5: "partial Result from current ActiveList is still extractable").
func (m *Manager) StopRecognition() error {
	if m.state != Running && m.state != Drained {
		return fmt.Errorf("%w: stop_recognition from %s", decoder.ErrInvalidState, m.state)
	}
	m.state = Allocated
	return nil
}

// Recognize runs up to blockSize frame steps of spec §4.5's algorithm,
// returning the Result of the block (or nil for a zero-frame no-op, spec
// §8 "recognize(0) is a no-op and returns null"). A ctx cancellation is
// honored between frame steps, not within one (spec §5: "Suspension
// points: none within a frame step").
func (m *Manager) Recognize(ctx context.Context, blockSize int) (*result.Result, error) {
	if m.state != Running {
		return nil, fmt.Errorf("%w: recognize from %s", decoder.ErrInvalidState, m.state)
	}
	if blockSize <= 0 {
		return nil, nil
	}

	var last *result.Result
	for i := 0; i < blockSize; i++ {
		select {
		case <-ctx.Done():
			return last, ctx.Err()
		default:
		}

		grown, err := m.growNonEmitting(m.active)
		if err != nil {
			m.erroredErr = err
			m.ended = true
			m.state = Drained
			return result.New(grown, m.alt, true, true), nil
		}
		m.active = grown

		feature, ok := m.frontend.NextFeature()
		if !ok {
			m.ended = true
			m.state = Drained
			return result.New(m.active, m.alt, true, false), nil
		}
		m.frameIndex = feature.Index

		scored, err := m.scoreFrame(ctx, feature)
		if err != nil {
			m.erroredErr = err
			m.ended = true
			m.state = Drained
			return result.New(m.active, m.alt, true, true), nil
		}

		newActive := m.expandFrame(scored, feature)
		m.active = pruner.Commit(newActive, m.cfg.Prune, m.alt)

		if m.cfg.EmitIntermediateResults {
			last = result.New(m.active, m.alt, false, false)
		}
	}

	if last != nil {
		return last, nil
	}
	return result.New(m.active, m.alt, false, false), nil
}

// scoreFrame scores every emitting token on active against feature via the
// batch scorer and returns fresh tokens carrying the updated acoustic/total
// score (spec §4.5 step 2). Tokens are immutable, so scoring a token
// produces a new *token.Token rather than mutating the original.
func (m *Manager) scoreFrame(ctx context.Context, feature scorer.Feature) ([]*token.Token, error) {
	tokens := m.active.Tokens()

	emitting := make([]*token.Token, 0, len(tokens))
	states := make([]graph.State, 0, len(tokens))
	for _, t := range tokens {
		if t.IsEmitting() {
			emitting = append(emitting, t)
			states = append(states, t.State())
		}
	}

	out := make([]*token.Token, 0, len(tokens))
	for _, t := range tokens {
		if !t.IsEmitting() {
			out = append(out, t)
		}
	}
	if len(emitting) == 0 {
		return out, nil
	}

	batch, err := m.scorer.CalculateScoresAndNormalize(ctx, feature, states)
	if err != nil {
		return nil, &scorer.ErrScorerFailed{Frame: feature.Index, Cause: err}
	}

	for _, t := range emitting {
		sc, ok := batch.Scores[t.Signature()]
		if !ok {
			sc = logmath.LogZero
		}
		if safe, underflowed := logmath.SafeValue(sc); underflowed {
			log.Printf("%v: frame %d, state %s", decoder.ErrNumericUnderflow, feature.Index, t.Signature())
			sc = safe
		}
		out = append(out, t.WithAcousticScore(sc, feature.Index))
	}
	return out, nil
}

// expandFrame advances every surviving token over its outgoing arcs,
// applying the relative beam threshold at entry (spec §4.5 step 3) before
// expanding arcs, and recombining children via Viterbi into a new
// ActiveList. The threshold is computed from scored, not from m.active:
// scored carries this frame's just-applied acoustic deltas, while m.active
// still holds the pre-scoring frontier, which is systematically
// higher-scored and would admit tokens the beam is meant to reject.
func (m *Manager) expandFrame(scored []*token.Token, feature scorer.Feature) *activelist.List {
	threshold := logmath.LogZero
	if m.cfg.Prune.RelativeBeamWidth != 0 {
		best := logmath.LogZero
		for _, t := range scored {
			if t.Score() > best {
				best = t.Score()
			}
		}
		threshold = best + m.cfg.Prune.RelativeBeamWidth
	}
	newActive := activelist.New(m.cfg.Prune.AbsoluteBeamWidth)

	for _, t := range scored {
		if m.cfg.Prune.RelativeBeamWidth != 0 && t.Score() < threshold {
			continue
		}
		for _, arc := range t.State().Arcs() {
			cand := token.New(arc.Dest, t, 0, arc.LanguageScore, arc.InsertionScore, feature.Index)
			newActive.Add(cand, m.alt)
		}
	}
	return newActive
}

// growNonEmitting performs the bounded fixed-point non-emitting expansion
// (spec §4.5): repeatedly expand tokens whose state is non-emitting,
// recombining into the same active list, until no new recombination
// improves any signature's best score, or NonEmittingDepthCap is hit.
//
// Because every expansion allocates fresh *token.Token values even when
// nothing actually changed, convergence is detected by comparing each
// signature's best *score* between passes (within a small epsilon), not by
// pointer identity.
func (m *Manager) growNonEmitting(active *activelist.List) (*activelist.List, error) {
	current := active
	cap := m.cfg.NonEmittingDepthCap
	if cap <= 0 {
		cap = 1
	}

	for depth := 0; depth < cap; depth++ {
		before := snapshotScores(current)

		next := activelist.New(m.cfg.Prune.AbsoluteBeamWidth)
		any := false
		for _, t := range current.Tokens() {
			if t.IsEmitting() {
				next.Add(t, m.alt)
				continue
			}
			arcs := t.State().Arcs()
			if len(arcs) == 0 {
				// Dead-end non-emitting state (typically final): nothing
				// to expand, carry the token forward unchanged.
				next.Add(t, m.alt)
				continue
			}
			any = true
			for _, arc := range arcs {
				cand := token.New(arc.Dest, t, 0, arc.LanguageScore, arc.InsertionScore, t.Frame())
				next.Add(cand, m.alt)
			}
		}
		if !any {
			return current, nil
		}

		// These tokens still carry only their predecessor's score: the
		// current frame's acoustic score isn't computed until scoreFrame
		// runs, after growNonEmitting returns. Beam/word-cap pruning here
		// is therefore the "entry-time" pruning spec §4.4 item 3 gates on
		// Strict: skip it when Strict requires waiting until post-scoring.
		committed := next
		if m.cfg.Prune.CanPruneBeforeScoring() {
			committed = pruner.Commit(next, m.cfg.Prune, m.alt)
		}
		if frontierConverged(before, committed) {
			return committed, nil
		}
		current = committed
	}
	return current, &decoderCycleError{depth: cap}
}

const convergenceEpsilon = 1e-9

func snapshotScores(l *activelist.List) map[graph.Signature]float64 {
	tokens := l.Tokens()
	snap := make(map[graph.Signature]float64, len(tokens))
	for _, t := range tokens {
		if best, ok := snap[t.Signature()]; !ok || t.Score() > best {
			snap[t.Signature()] = t.Score()
		}
	}
	return snap
}

// frontierConverged reports whether committed's per-signature best scores
// are unchanged (within convergenceEpsilon) from before, and no new
// signature appeared.
func frontierConverged(before map[graph.Signature]float64, committed *activelist.List) bool {
	after := snapshotScores(committed)
	if len(after) != len(before) {
		return false
	}
	for sig, score := range after {
		prev, ok := before[sig]
		if !ok {
			return false
		}
		delta := score - prev
		if delta < 0 {
			delta = -delta
		}
		if delta > convergenceEpsilon {
			return false
		}
	}
	return true
}

// decoderCycleError wraps decoder.ErrGraphCycle with the depth cap that was
// exceeded, satisfying errors.Is(err, decoder.ErrGraphCycle).
type decoderCycleError struct {
	depth int
}

func (e *decoderCycleError) Error() string {
	return fmt.Sprintf("%v: depth cap %d exceeded", decoder.ErrGraphCycle, e.depth)
}

func (e *decoderCycleError) Unwrap() error { return decoder.ErrGraphCycle }

// IntermediateResult returns the current best partial path without
// advancing the frame loop, grounded on this codebase's Stats()-style
// read-only snapshot accessors (SPEC_FULL.md supplement to spec §4.5 step
// 5's unspecified partial-Result policy).
func (m *Manager) IntermediateResult() *result.Result {
	if m.active == nil {
		return nil
	}
	return result.New(m.active, m.alt, m.ended, m.erroredErr != nil)
}
