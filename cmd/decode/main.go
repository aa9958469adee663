// Command decode runs the decoder as an MCP-accessible server, grounded on
// cmd/qubicdb/main.go's cobra root command + CLIOverrides + run(flags,
// overrides) shape.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/denizumutdereli/lvcsr-decoder/internal/config"
	"github.com/denizumutdereli/lvcsr-decoder/internal/decodepool"
	"github.com/denizumutdereli/lvcsr-decoder/internal/graph"
	"github.com/denizumutdereli/lvcsr-decoder/internal/logmath"
	"github.com/denizumutdereli/lvcsr-decoder/internal/mcp"
	"github.com/denizumutdereli/lvcsr-decoder/internal/scorer"
)

// cliOverrides mirrors core.CLIOverrides: pointers into pflag-parsed
// values, applied on top of the resolved config only when explicitly set
// on the command line.
type cliOverrides struct {
	configPath        *string
	httpAddr          *string
	absoluteBeamWidth *int
	relativeBeamWidth *float64
	featureBlockSize  *int
	nonEmittingDepth  *int
	mergePolicy       *string
	apiKey            *string
	vocab             *string
	nativeScorerLib   *string
}

func main() {
	var o cliOverrides

	rootCmd := &cobra.Command{
		Use:   "decode",
		Short: "LVCSR token-passing decoder",
		Long:  "A frame-synchronous beam-search speech decoder exposed over MCP for agentic/tool-calling callers.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Flags(), &o)
		},
		SilenceUsage: true,
	}

	f := rootCmd.Flags()
	o.configPath = f.StringP("config", "f", "", "Path to YAML config file (overrides DECODER_CONFIG env)")
	o.httpAddr = f.String("http-addr", "", "MCP HTTP listen address")
	o.absoluteBeamWidth = f.Int("absolute-beam-width", 0, "Absolute beam width")
	o.relativeBeamWidth = f.Float64("relative-beam-width", 0, "Relative beam width (log domain, <= 0)")
	o.featureBlockSize = f.Int("feature-block-size", 0, "Max frames consumed per recognize() call")
	o.nonEmittingDepth = f.Int("non-emitting-depth-cap", 0, "grow_non_emitting fixed-point depth cap")
	o.mergePolicy = f.String("merge-policy", "", "Lattice merge policy: max or logadd")
	o.apiKey = f.String("api-key", "", "Require this API key on the MCP endpoint")
	o.vocab = f.String("vocab", "", "Comma-separated word list for the built-in demo linear graph (no linguist ships with this module)")
	o.nativeScorerLib = f.String("native-scorer-lib", "", "Path to a native acoustic-scorer shared library; falls back to the pure-Go reference scorer when unset")

	rootCmd.AddCommand(newLatticeCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(flags *pflag.FlagSet, o *cliOverrides) error {
	configPath := *o.configPath
	if configPath == "" {
		configPath = os.Getenv("DECODER_CONFIG")
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	applyExplicitFlags(flags, cfg, o)

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	httpAddr := ":7070"
	if *o.httpAddr != "" {
		httpAddr = *o.httpAddr
	}

	math := logmath.NewWithBase(cfg.Math.LogBase)
	log.Printf("Log math base: %v", cfg.Math.LogBase)

	// No linguist/acoustic-model loader is in scope here (spec.md
	// Non-goals): a real deployment wires a concrete graph.SearchGraph
	// (lexical tree, grammar) and scorer.Scorer before constructing the
	// pool. --vocab builds a flat demo graph.LinearGraph and the pure-Go
	// scorer.ReferenceScorer so the binary is end-to-end runnable without
	// one, for wiring tests and smoke checks only.
	var words []string
	if v := strings.TrimSpace(*o.vocab); v != "" {
		words = strings.Split(v, ",")
	}
	g := graph.LinearGraph(words)

	sc, err := buildScorer(*o.nativeScorerLib)
	if err != nil {
		return fmt.Errorf("failed to build scorer: %w", err)
	}

	pool := decodepool.New(g, sc, math, cfg)
	log.Println("Decode pool initialized")

	backend := mcp.NewDecodeBackend(pool, cfg, frameDurationFromConfig(cfg), math)
	handler, err := mcp.NewHandler(mcp.Config{APIKey: *o.apiKey, EnablePrompts: true}, backend)
	if err != nil {
		return fmt.Errorf("failed to build MCP handler: %w", err)
	}

	srv := &http.Server{Addr: httpAddr, Handler: handler}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		log.Printf("MCP listening on %s", httpAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("HTTP server error: %v", err)
		}
	}()

	waitForShutdown(ctx, cancel)

	log.Println("Initiating graceful shutdown...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP shutdown error: %v", err)
	}
	if err := pool.Shutdown(); err != nil {
		log.Printf("Pool shutdown error: %v", err)
	}

	log.Println("decode shutdown complete")
	return nil
}

// buildScorer prefers a native acoustic-scorer library when one is
// configured or discoverable on the default search paths, falling back
// to the pure-Go reference scorer otherwise (scorer.NativeScorer's doc
// comment: "callers should fall back to a pure-Go Scorer").
func buildScorer(libPath string) (scorer.BatchScorer, error) {
	if libPath != "" || scorer.IsNativeScorerAvailable("") {
		native, err := scorer.NewNativeScorer(libPath, nativeStateID, nativeFeatureOf)
		if err != nil {
			return nil, err
		}
		return scorer.NewDefaultBatchScorer(native), nil
	}
	return scorer.NewDefaultBatchScorer(scorer.NewReferenceScorer(-50)), nil
}

// nativeStateID and nativeFeatureOf are the demo graph's bindings for
// scorer.NativeScorer; a real linguist supplies its own state-id space
// and feature encoding alongside its own graph.SearchGraph.
func nativeStateID(sig graph.Signature) (uint32, bool) {
	h := fnv32(string(sig))
	return h, true
}

func nativeFeatureOf(payload any) []float32 {
	if v, ok := payload.([]float32); ok {
		return v
	}
	return nil
}

func fnv32(s string) uint32 {
	const (
		offset32 = 2166136261
		prime32  = 16777619
	)
	h := uint32(offset32)
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= prime32
	}
	return h
}

func frameDurationFromConfig(cfg *config.DecoderConfig) float64 {
	// Sphinx-4-derived decoders conventionally run a 10ms frame step;
	// nothing in DecoderConfig overrides it independently of the
	// frontend the caller wires in.
	_ = cfg
	return 0.01
}

func applyExplicitFlags(flags *pflag.FlagSet, cfg *config.DecoderConfig, o *cliOverrides) {
	if flags.Changed("absolute-beam-width") {
		cfg.Beam.AbsoluteBeamWidth = *o.absoluteBeamWidth
	}
	if flags.Changed("relative-beam-width") {
		cfg.Beam.RelativeBeamWidth = *o.relativeBeamWidth
	}
	if flags.Changed("feature-block-size") {
		cfg.Recognize.FeatureBlockSize = *o.featureBlockSize
	}
	if flags.Changed("non-emitting-depth-cap") {
		cfg.Recognize.NonEmittingDepthCap = *o.nonEmittingDepth
	}
	if flags.Changed("merge-policy") {
		cfg.Lattice.MergePolicy = *o.mergePolicy
	}
}

func waitForShutdown(ctx context.Context, cancel context.CancelFunc) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
	case <-ctx.Done():
	}
	cancel()
}
