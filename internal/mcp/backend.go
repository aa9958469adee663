// Package mcp exposes the decoder over the Model Context Protocol,
// grounded on this codebase's pkg/mcp/server.go: a streamable HTTP MCP
// server with an API-key gate, a per-client token-bucket rate limiter,
// and a thin Backend seam between the tool handlers and the actual
// decode pool.
package mcp

import (
	"context"
	"fmt"

	"github.com/denizumutdereli/lvcsr-decoder/internal/config"
	"github.com/denizumutdereli/lvcsr-decoder/internal/decodepool"
	"github.com/denizumutdereli/lvcsr-decoder/internal/frontend"
	"github.com/denizumutdereli/lvcsr-decoder/internal/lattice"
	"github.com/denizumutdereli/lvcsr-decoder/internal/logmath"
	"github.com/denizumutdereli/lvcsr-decoder/internal/persistence"
	"github.com/denizumutdereli/lvcsr-decoder/internal/result"
)

// DecodeBackend implements Backend against a live decodepool.Pool: one
// session per utterance, addressed by an opaque session ID the caller
// supplies (spec §5, §6).
type DecodeBackend struct {
	pool          *decodepool.Pool
	defaultCfg    *config.DecoderConfig
	frameDuration float64
	math          logmath.LogMath
	grouper       *result.SentenceGrouper
}

// NewDecodeBackend wires pool to the MCP tool surface. frameDuration
// stamps node Time fields during lattice construction (spec §4.7).
func NewDecodeBackend(pool *decodepool.Pool, defaultCfg *config.DecoderConfig, frameDuration float64, math logmath.LogMath) *DecodeBackend {
	var grouper *result.SentenceGrouper
	if defaultCfg.Recognize.GroupSentences {
		grouper = result.NewSentenceGrouper()
	}
	return &DecodeBackend{pool: pool, defaultCfg: defaultCfg, frameDuration: frameDuration, math: math, grouper: grouper}
}

// Recognize feeds payloads into sessionID's Manager (creating it on first
// use) and runs one recognize(block_size) call (spec §4.5 operation).
func (b *DecodeBackend) Recognize(ctx context.Context, sessionID string, payloads []any, blockSize int) (map[string]any, error) {
	fe := frontend.NewSliceFrontend(payloads, b.frameDuration)
	mgr, err := b.pool.GetOrCreate(decodepool.SessionID(sessionID), fe, b.defaultCfg)
	if err != nil {
		return nil, err
	}
	res, err := mgr.Recognize(ctx, blockSize)
	if err != nil {
		return nil, err
	}
	return resultToMap(res), nil
}

// GetLattice builds sessionID's current word lattice and renders it in
// format ("slf" or "msgpack", base-encoded as a string either way for
// transport over a text-only tool result).
func (b *DecodeBackend) GetLattice(ctx context.Context, sessionID string, format string) (map[string]any, error) {
	mgr, err := b.pool.Get(decodepool.SessionID(sessionID))
	if err != nil {
		return nil, err
	}
	res := mgr.IntermediateResult()
	if res == nil {
		return nil, fmt.Errorf("mcp: session %s has no active decode state yet", sessionID)
	}

	l, err := lattice.Build(res, res.Alternates(), b.frameDuration)
	if err != nil {
		return nil, fmt.Errorf("mcp: building lattice: %w", err)
	}

	switch format {
	case "", "slf":
		var buf writerBuffer
		if err := persistence.WriteSLF(&buf, l); err != nil {
			return nil, err
		}
		return map[string]any{"format": "slf", "lattice": buf.String(), "nodes": len(l.Nodes), "edges": len(l.Edges)}, nil
	case "msgpack":
		codec := persistence.NewCodec(true)
		raw, err := codec.Encode(l)
		if err != nil {
			return nil, err
		}
		return map[string]any{"format": "msgpack", "bytes": raw, "nodes": len(l.Nodes), "edges": len(l.Edges)}, nil
	default:
		return nil, fmt.Errorf("mcp: unknown lattice format %q", format)
	}
}

// GetTimedBestResult runs N-best extraction over sessionID's current
// lattice and returns the single best timed word sequence (spec §4.9,
// SPEC_FULL.md N-best supplement).
func (b *DecodeBackend) GetTimedBestResult(ctx context.Context, sessionID string) (map[string]any, error) {
	mgr, err := b.pool.Get(decodepool.SessionID(sessionID))
	if err != nil {
		return nil, err
	}
	res := mgr.IntermediateResult()
	if res == nil {
		return nil, fmt.Errorf("mcp: session %s has no active decode state yet", sessionID)
	}

	l, err := lattice.Build(res, res.Alternates(), b.frameDuration)
	if err != nil {
		return nil, fmt.Errorf("mcp: building lattice: %w", err)
	}
	pr := lattice.ComputePosteriors(l, b.math)
	best := l.NBest(1, &pr, b.math)
	if len(best) == 0 {
		return map[string]any{"words": []result.WordResult{}, "empty": true}, nil
	}

	if b.defaultCfg.Recognize.GroupSentences {
		sentences := b.grouper.Group(best[0])
		return map[string]any{"sentences": sentences, "empty": false}, nil
	}
	return map[string]any{"words": best[0], "empty": false}, nil
}

func resultToMap(res *result.Result) map[string]any {
	out := map[string]any{
		"final":   res.IsFinal(),
		"error":   res.IsError(),
		"empty":   res.IsEmpty(),
		"n_alive": len(res.ActiveTokens()),
	}
	if best := res.BestToken(); best != nil {
		out["best_score"] = best.Score()
		out["frame"] = best.Frame()
	}
	return out
}

// writerBuffer is a tiny io.Writer the lattice SLF writer fills in
// memory, avoiding a temp-file round trip for a tool result.
type writerBuffer struct {
	data []byte
}

func (w *writerBuffer) Write(p []byte) (int, error) {
	w.data = append(w.data, p...)
	return len(p), nil
}

func (w *writerBuffer) String() string { return string(w.data) }
