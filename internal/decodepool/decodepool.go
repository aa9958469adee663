// Package decodepool manages independent SearchManager instances keyed by
// session ID, isolated from one another exactly as spec §5 requires ("no
// shared mutable state between independent utterances beyond a read-only
// SearchGraph and Scorer"). Grounded on this codebase's
// pkg/concurrency.WorkerPool: double-checked-locked get-or-create, a
// background idle-eviction loop, and a map[string]any Stats snapshot.
package decodepool

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/denizumutdereli/lvcsr-decoder/internal/config"
	"github.com/denizumutdereli/lvcsr-decoder/internal/frontend"
	"github.com/denizumutdereli/lvcsr-decoder/internal/graph"
	"github.com/denizumutdereli/lvcsr-decoder/internal/logmath"
	"github.com/denizumutdereli/lvcsr-decoder/internal/pruner"
	"github.com/denizumutdereli/lvcsr-decoder/internal/scorer"
	"github.com/denizumutdereli/lvcsr-decoder/internal/search"
)

// SessionID identifies one in-flight or recently-finished utterance.
type SessionID string

// session wraps one Manager with the bookkeeping the pool needs for idle
// eviction, independent of anything search.Manager itself tracks.
type session struct {
	mgr      *search.Manager
	lastUsed time.Time
}

// Pool owns a SearchManager per active session, sharing the read-only
// SearchGraph across every session the way the spec requires (§5) while
// keeping each session's ActiveList/AlternateHypothesisManager/frame
// counter fully isolated.
type Pool struct {
	graph graph.SearchGraph
	sc    scorer.BatchScorer
	math  logmath.LogMath

	buildConfig func(*config.DecoderConfig) search.Config

	maxIdleTime time.Duration

	mu       sync.RWMutex
	createMu sync.Mutex
	sessions map[SessionID]*session

	totalCreated uint64
	totalEvicted uint64

	ctx    context.Context
	cancel context.CancelFunc
}

// New constructs a Pool sharing g and sc across every session it creates.
// cfg supplies the beam/pruning/lattice/recognize settings new sessions
// are allocated with (spec §6); math is the log-domain arithmetic threaded
// into every Manager (spec §9: never a package-level singleton).
func New(g graph.SearchGraph, sc scorer.BatchScorer, math logmath.LogMath, cfg *config.DecoderConfig) *Pool {
	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		graph:       g,
		sc:          sc,
		math:        math,
		buildConfig: searchConfigFrom(cfg),
		maxIdleTime: 30 * time.Minute,
		sessions:    make(map[SessionID]*session),
		ctx:         ctx,
		cancel:      cancel,
	}
	go p.evictionLoop()
	return p
}

// searchConfigFrom translates a resolved DecoderConfig into the
// search.Config one Manager needs, picking the Word-constrained pruning
// variant whenever per-word/filler caps are configured, Partitioned
// otherwise (spec §4.3: "which variant a beam configuration implies").
func searchConfigFrom(cfg *config.DecoderConfig) func(*config.DecoderConfig) search.Config {
	return func(cfg *config.DecoderConfig) search.Config {
		var pcfg pruner.Config
		if cfg.Beam.MaxPathsPerWord > 0 || cfg.Beam.MaxFillerWords > 0 {
			pcfg = pruner.WordConfig(cfg.Beam.AbsoluteBeamWidth, cfg.Beam.RelativeBeamWidth, cfg.Pruning.Strict,
				pruner.WordCaps{MaxPathsPerWord: cfg.Beam.MaxPathsPerWord, MaxFillerWords: cfg.Beam.MaxFillerWords})
		} else {
			pcfg = pruner.PartitionedConfig(cfg.Beam.AbsoluteBeamWidth, cfg.Beam.RelativeBeamWidth, cfg.Pruning.Strict)
		}
		return search.Config{
			Prune:                   pcfg,
			NonEmittingDepthCap:     cfg.Recognize.NonEmittingDepthCap,
			AltHypMaxEdges:          cfg.Lattice.AltHypMaxEdges,
			EmitIntermediateResults: cfg.Recognize.EmitIntermediateResults,
		}
	}
}

// GetOrCreate returns id's existing Manager, allocating and starting a
// fresh one over fe on first use. fe is ignored on the fast path: a
// session's Frontend is fixed at creation, matching "an utterance decodes
// against one feature stream for its lifetime" (spec §5).
func (p *Pool) GetOrCreate(id SessionID, fe frontend.Frontend, cfg *config.DecoderConfig) (*search.Manager, error) {
	p.mu.RLock()
	s, ok := p.sessions[id]
	p.mu.RUnlock()
	if ok {
		p.touch(id)
		return s.mgr, nil
	}

	p.createMu.Lock()
	defer p.createMu.Unlock()

	p.mu.RLock()
	s, ok = p.sessions[id]
	p.mu.RUnlock()
	if ok {
		p.touch(id)
		return s.mgr, nil
	}

	scfg := p.buildConfig(cfg)
	scfg.Math = p.math
	mgr := search.New(p.graph, p.sc, fe, scfg)
	if err := mgr.Allocate(); err != nil {
		return nil, fmt.Errorf("decodepool: allocating session %s: %w", id, err)
	}
	if err := mgr.StartRecognition(); err != nil {
		return nil, fmt.Errorf("decodepool: starting session %s: %w", id, err)
	}

	p.mu.Lock()
	p.sessions[id] = &session{mgr: mgr, lastUsed: time.Now()}
	p.totalCreated++
	p.mu.Unlock()

	return mgr, nil
}

// Get returns an existing session's Manager, or an error if id is unknown.
func (p *Pool) Get(id SessionID) (*search.Manager, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s, ok := p.sessions[id]
	if !ok {
		return nil, fmt.Errorf("decodepool: session %s not found", id)
	}
	return s.mgr, nil
}

func (p *Pool) touch(id SessionID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if s, ok := p.sessions[id]; ok {
		s.lastUsed = time.Now()
	}
}

// Evict deallocates and removes id's session.
func (p *Pool) Evict(id SessionID) error {
	p.mu.Lock()
	s, ok := p.sessions[id]
	if !ok {
		p.mu.Unlock()
		return nil
	}
	delete(p.sessions, id)
	p.totalEvicted++
	p.mu.Unlock()

	if s.mgr.State() == search.Running {
		s.mgr.StopRecognition()
	}
	return s.mgr.Deallocate()
}

// ListSessions returns every active session ID.
func (p *Pool) ListSessions() []SessionID {
	p.mu.RLock()
	defer p.mu.RUnlock()
	ids := make([]SessionID, 0, len(p.sessions))
	for id := range p.sessions {
		ids = append(ids, id)
	}
	return ids
}

// ActiveCount reports the number of live sessions.
func (p *Pool) ActiveCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.sessions)
}

// SetMaxIdleTime updates the idle-eviction threshold at runtime.
func (p *Pool) SetMaxIdleTime(d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.maxIdleTime = d
}

func (p *Pool) evictionLoop() {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.evictIdle()
		}
	}
}

func (p *Pool) evictIdle() {
	now := time.Now()
	p.mu.RLock()
	toEvict := make([]SessionID, 0)
	for id, s := range p.sessions {
		if now.Sub(s.lastUsed) > p.maxIdleTime {
			toEvict = append(toEvict, id)
		}
	}
	p.mu.RUnlock()

	for _, id := range toEvict {
		p.Evict(id)
	}
}

// Shutdown deallocates every session and stops the eviction loop.
func (p *Pool) Shutdown() error {
	p.cancel()

	p.mu.Lock()
	sessions := p.sessions
	p.sessions = make(map[SessionID]*session)
	p.mu.Unlock()

	var lastErr error
	for _, s := range sessions {
		if s.mgr.State() == search.Running {
			s.mgr.StopRecognition()
		}
		if err := s.mgr.Deallocate(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// Stats returns a pool-wide snapshot (spec §6: "decoder stats surface").
func (p *Pool) Stats() map[string]any {
	p.mu.RLock()
	defer p.mu.RUnlock()

	details := make(map[string]any, len(p.sessions))
	for id, s := range p.sessions {
		details[string(id)] = map[string]any{
			"state":     s.mgr.State().String(),
			"last_used": s.lastUsed,
		}
	}
	return map[string]any{
		"active_sessions": len(p.sessions),
		"total_created":   p.totalCreated,
		"total_evicted":   p.totalEvicted,
		"max_idle_time":   p.maxIdleTime.String(),
		"sessions":        details,
	}
}
