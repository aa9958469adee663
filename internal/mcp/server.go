package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	mcpproto "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/denizumutdereli/lvcsr-decoder/internal/decodeerr"
	"github.com/denizumutdereli/lvcsr-decoder/internal/decoder"
	"github.com/denizumutdereli/lvcsr-decoder/internal/scorer"
)

const (
	toolRecognize          = "decoder_recognize"
	toolGetLattice         = "decoder_get_lattice"
	toolGetTimedBestResult = "decoder_get_timed_best_result"
)

// Config controls MCP route behavior.
type Config struct {
	APIKey         string
	Stateless      bool
	RateLimitRPS   float64
	RateLimitBurst int
	EnablePrompts  bool
	AllowedTools   []string
}

// Backend is the minimal capability contract exposed to MCP tools.
type Backend interface {
	Recognize(ctx context.Context, sessionID string, payloads []any, blockSize int) (map[string]any, error)
	GetLattice(ctx context.Context, sessionID string, format string) (map[string]any, error)
	GetTimedBestResult(ctx context.Context, sessionID string) (map[string]any, error)
}

// NewHandler builds an MCP streamable HTTP handler with optional API-key
// auth and endpoint-local rate limiting.
func NewHandler(cfg Config, backend Backend) (http.Handler, error) {
	if backend == nil {
		return nil, fmt.Errorf("mcp backend is required")
	}

	s := mcpserver.NewMCPServer(
		"lvcsr-decoder-mcp",
		"1.0.0",
		mcpserver.WithToolCapabilities(true),
		mcpserver.WithPromptCapabilities(cfg.EnablePrompts),
		mcpserver.WithRecovery(),
	)

	registerTools(s, backend, cfg.AllowedTools)
	if cfg.EnablePrompts {
		registerPrompts(s)
	}

	streamable := mcpserver.NewStreamableHTTPServer(s, mcpserver.WithStateLess(cfg.Stateless))
	var h http.Handler = http.HandlerFunc(streamable.ServeHTTP)

	if strings.TrimSpace(cfg.APIKey) != "" {
		h = apiKeyMiddleware(strings.TrimSpace(cfg.APIKey), h)
	}
	if cfg.RateLimitRPS > 0 && cfg.RateLimitBurst > 0 {
		h = rateLimitMiddleware(newRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst), h)
	}

	return h, nil
}

func registerTools(s *mcpserver.MCPServer, backend Backend, allowed []string) {
	allowedSet := make(map[string]struct{}, len(allowed))
	for _, name := range allowed {
		name = strings.TrimSpace(name)
		if name != "" {
			allowedSet[name] = struct{}{}
		}
	}
	isAllowed := func(name string) bool {
		if len(allowedSet) == 0 {
			return true
		}
		_, ok := allowedSet[name]
		return ok
	}

	if isAllowed(toolRecognize) {
		s.AddTool(mcpproto.NewTool(toolRecognize,
			mcpproto.WithDescription("Push a block of feature frames into a decode session and run recognize()."),
			mcpproto.WithString("session_id", mcpproto.Required(), mcpproto.Description("Opaque session id; a new session is created on first use.")),
			mcpproto.WithString("features", mcpproto.Required(), mcpproto.Description("JSON array of opaque per-frame feature payloads.")),
			mcpproto.WithNumber("block_size", mcpproto.Description("Max frames to consume this call (optional, default: all).")),
		), func(ctx context.Context, req mcpproto.CallToolRequest) (*mcpproto.CallToolResult, error) {
			args := req.GetArguments()
			sessionID := getString(args, "session_id", "")
			if sessionID == "" {
				return errResult(decodeerr.CodeConfigInvalid, "session_id is required"), nil
			}
			raw := getString(args, "features", "")
			var payloads []any
			if raw != "" {
				if err := json.Unmarshal([]byte(raw), &payloads); err != nil {
					return errResult(decodeerr.CodeConfigInvalid, "features must be a valid JSON array"), nil
				}
			}
			blockSize := getInt(args, "block_size", 1<<30)
			out, err := backend.Recognize(ctx, sessionID, payloads, blockSize)
			if err != nil {
				return errResult(codeForError(err), err.Error()), nil
			}
			return structuredResult("recognize completed", out)
		})
	}

	if isAllowed(toolGetLattice) {
		s.AddTool(mcpproto.NewTool(toolGetLattice,
			mcpproto.WithDescription("Fetch the current word lattice for a decode session."),
			mcpproto.WithString("session_id", mcpproto.Required(), mcpproto.Description("Session id.")),
			mcpproto.WithString("format", mcpproto.Description("slf (default) or msgpack.")),
		), func(ctx context.Context, req mcpproto.CallToolRequest) (*mcpproto.CallToolResult, error) {
			args := req.GetArguments()
			sessionID := getString(args, "session_id", "")
			if sessionID == "" {
				return errResult(decodeerr.CodeConfigInvalid, "session_id is required"), nil
			}
			format := getString(args, "format", "slf")
			out, err := backend.GetLattice(ctx, sessionID, format)
			if err != nil {
				return errResult(codeForError(err), err.Error()), nil
			}
			return structuredResult("lattice fetched", out)
		})
	}

	if isAllowed(toolGetTimedBestResult) {
		s.AddTool(mcpproto.NewTool(toolGetTimedBestResult,
			mcpproto.WithDescription("Fetch the single best timed word sequence for a decode session."),
			mcpproto.WithString("session_id", mcpproto.Required(), mcpproto.Description("Session id.")),
		), func(ctx context.Context, req mcpproto.CallToolRequest) (*mcpproto.CallToolResult, error) {
			args := req.GetArguments()
			sessionID := getString(args, "session_id", "")
			if sessionID == "" {
				return errResult(decodeerr.CodeConfigInvalid, "session_id is required"), nil
			}
			out, err := backend.GetTimedBestResult(ctx, sessionID)
			if err != nil {
				return errResult(codeForError(err), err.Error()), nil
			}
			return structuredResult("timed best result fetched", out)
		})
	}
}

func registerPrompts(s *mcpserver.MCPServer) {
	s.AddPrompt(mcpproto.NewPrompt("decoder_recognition_workflow",
		mcpproto.WithPromptDescription("Generate a recognize/get_lattice/get_timed_best_result workflow for a session."),
		mcpproto.WithArgument("session_id", mcpproto.RequiredArgument(), mcpproto.ArgumentDescription("Session id.")),
	), func(_ context.Context, req mcpproto.GetPromptRequest) (*mcpproto.GetPromptResult, error) {
		sessionID := req.Params.Arguments["session_id"]
		return &mcpproto.GetPromptResult{
			Description: "Decoder recognition workflow",
			Messages: []mcpproto.PromptMessage{
				{
					Role: mcpproto.RoleUser,
					Content: mcpproto.TextContent{
						Type: "text",
						Text: fmt.Sprintf("For session %q, call decoder_recognize with each feature block, then decoder_get_timed_best_result once recognize reports final=true.", sessionID),
					},
				},
			},
		}, nil
	})
}

// errResult builds a tool error result carrying the same decodeerr.Response
// envelope the HTTP middlewares below write directly, so a caller parsing
// CallToolResult.Content's JSON blob sees the same {ok, error, code, status}
// shape regardless of which surface rejected the call.
func errResult(code, msg string) *mcpproto.CallToolResult {
	status := http.StatusInternalServerError
	if code != decodeerr.CodeInternalError && code != decodeerr.CodeScorerFailed && code != decodeerr.CodeGraphCycle {
		status = http.StatusBadRequest
	}
	resp := decodeerr.Response{OK: false, Error: msg, Code: code, Status: status}
	blob, err := json.Marshal(resp)
	content := []mcpproto.Content{
		mcpproto.TextContent{Type: "text", Text: "Error: " + msg},
	}
	if err == nil {
		content = append(content, mcpproto.TextContent{Type: "text", Text: string(blob)})
	}
	return &mcpproto.CallToolResult{Content: content, IsError: true}
}

// codeForError classifies a Backend error into a decodeerr code. The
// scorer package's richer failure type is matched via errors.As since it
// doesn't wrap decoder's sentinel (see decoder.ErrScorerFailed's doc
// comment); the other kinds are matched via errors.Is against decoder's
// shared sentinels (spec §7).
func codeForError(err error) string {
	var scorerErr *scorer.ErrScorerFailed
	switch {
	case errors.As(err, &scorerErr):
		return decodeerr.CodeScorerFailed
	case errors.Is(err, decoder.ErrGraphCycle):
		return decodeerr.CodeGraphCycle
	case errors.Is(err, decoder.ErrInvalidState):
		return decodeerr.CodeInvalidState
	case errors.Is(err, decoder.ErrConfigInvalid):
		return decodeerr.CodeConfigInvalid
	default:
		return decodeerr.CodeInternalError
	}
}

func structuredResult(summary string, data any) (*mcpproto.CallToolResult, error) {
	blob, err := json.Marshal(data)
	if err != nil {
		return errResult(decodeerr.CodeInternalError, fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return &mcpproto.CallToolResult{
		Content: []mcpproto.Content{
			mcpproto.TextContent{Type: "text", Text: summary},
			mcpproto.TextContent{Type: "text", Text: string(blob)},
		},
	}, nil
}

func getString(args map[string]any, key string, def string) string {
	if args == nil {
		return def
	}
	if v, ok := args[key].(string); ok {
		return v
	}
	return def
}

func getInt(args map[string]any, key string, def int) int {
	if args == nil {
		return def
	}
	v, ok := args[key].(float64)
	if !ok {
		return def
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return def
	}
	return int(v)
}

func apiKeyMiddleware(expected string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		provided := strings.TrimSpace(r.Header.Get("X-API-Key"))
		if provided == "" {
			auth := strings.TrimSpace(r.Header.Get("Authorization"))
			if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
				provided = strings.TrimSpace(auth[7:])
			}
		}

		if provided == "" || provided != expected {
			decodeerr.Write(w, http.StatusUnauthorized, decodeerr.CodeUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type rateLimitEntry struct {
	tokens float64
	last   time.Time
}

type rateLimiter struct {
	rps   float64
	burst float64

	mu      sync.Mutex
	clients map[string]rateLimitEntry
}

func newRateLimiter(rps float64, burst int) *rateLimiter {
	return &rateLimiter{
		rps:     rps,
		burst:   float64(burst),
		clients: make(map[string]rateLimitEntry),
	}
}

func (rl *rateLimiter) allow(key string) bool {
	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	entry, ok := rl.clients[key]
	if !ok {
		rl.clients[key] = rateLimitEntry{tokens: rl.burst - 1, last: now}
		return true
	}

	elapsed := now.Sub(entry.last).Seconds()
	entry.tokens = math.Min(rl.burst, entry.tokens+elapsed*rl.rps)
	entry.last = now
	if entry.tokens < 1 {
		rl.clients[key] = entry
		return false
	}
	entry.tokens -= 1
	rl.clients[key] = entry
	return true
}

func rateLimitMiddleware(rl *rateLimiter, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := clientAddr(r)
		if !rl.allow(key) {
			w.Header().Set("Retry-After", "1")
			decodeerr.Write(w, http.StatusTooManyRequests, decodeerr.CodeRateLimited, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientAddr(r *http.Request) string {
	if fwd := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); fwd != "" {
		parts := strings.Split(fwd, ",")
		if len(parts) > 0 {
			return strings.TrimSpace(parts[0])
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil && host != "" {
		return host
	}
	if strings.TrimSpace(r.RemoteAddr) != "" {
		return strings.TrimSpace(r.RemoteAddr)
	}
	return "unknown"
}
