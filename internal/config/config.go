// Package config implements the decoder's explicit configuration record
// (spec §6, §9: "replace the source's reflective configuration with an
// explicit configuration record"), resolved through the same four-level
// hierarchy this codebase's lineage uses for its server config: built-in
// defaults, overlaid by a YAML file, overlaid by environment variables,
// overlaid last by programmatic CLI overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// BeamConfig groups ActiveList beam-width settings (spec §6).
type BeamConfig struct {
	AbsoluteBeamWidth int     `yaml:"absoluteBeamWidth"`
	RelativeBeamWidth float64 `yaml:"relativeBeamWidth"`
	WordBeamAbsolute  int     `yaml:"wordBeamAbsolute"`
	WordBeamRelative  float64 `yaml:"wordBeamRelative"`
	MaxPathsPerWord   int     `yaml:"maxPathsPerWord"`
	MaxFillerWords    int     `yaml:"maxFillerWords"`
}

// PruningConfig groups Pruner behavior settings (spec §4.4).
type PruningConfig struct {
	Strict bool `yaml:"strict"`
}

// LatticeConfig groups lattice construction/optimization settings (spec
// §4.6, §4.8, §9).
type LatticeConfig struct {
	AltHypMaxEdges int    `yaml:"altHypMaxEdges"`
	MergePolicy    string `yaml:"mergePolicy"` // "max" (default, Viterbi) or "logadd"
}

// RecognizeConfig groups the frame-synchronous loop's runtime settings
// (spec §4.5, §6).
type RecognizeConfig struct {
	FeatureBlockSize        int  `yaml:"featureBlockSize"`
	NonEmittingDepthCap     int  `yaml:"nonEmittingDepthCap"`
	EmitIntermediateResults bool `yaml:"emitIntermediateResults"`
	GroupSentences          bool `yaml:"groupSentences"`
}

// MathConfig groups the process-wide (but explicitly threaded, never
// global) log-math base (spec §6, §9).
type MathConfig struct {
	LogBase float64 `yaml:"logBase"`
}

// DecoderConfig is the full, explicit configuration record for one
// decoder instance (spec §6 "Configuration keys").
type DecoderConfig struct {
	Beam      BeamConfig      `yaml:"beam"`
	Pruning   PruningConfig   `yaml:"pruning"`
	Lattice   LatticeConfig   `yaml:"lattice"`
	Recognize RecognizeConfig `yaml:"recognize"`
	Math      MathConfig      `yaml:"math"`
}

// Error wraps a configuration problem detected either while loading or
// while validating a DecoderConfig (spec §7 ConfigError: "fatal at
// allocate time").
type Error struct {
	Field string
	Msg   string
}

func (e *Error) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Msg)
}

// Default returns the built-in default configuration.
func Default() *DecoderConfig {
	return &DecoderConfig{
		Beam: BeamConfig{
			AbsoluteBeamWidth: 2000,
			RelativeBeamWidth: 0.0,
			WordBeamAbsolute:  200,
			WordBeamRelative:  0.0,
			MaxPathsPerWord:   0,
			MaxFillerWords:    1,
		},
		Pruning: PruningConfig{Strict: true},
		Lattice: LatticeConfig{AltHypMaxEdges: 5, MergePolicy: "max"},
		Recognize: RecognizeConfig{
			FeatureBlockSize:        1 << 30,
			NonEmittingDepthCap:     10,
			EmitIntermediateResults: false,
			GroupSentences:          false,
		},
		Math: MathConfig{LogBase: 2.718281828459045},
	}
}

// FromFile overlays a YAML configuration file on top of the built-in
// defaults (spec §9: explicit configuration record, not reflective).
func FromFile(path string) (*DecoderConfig, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return cfg, nil
}

// FromEnv applies DECODER_* environment variable overrides on top of cfg.
// If cfg is nil a default config is created first.
func FromEnv(cfg *DecoderConfig) *DecoderConfig {
	if cfg == nil {
		cfg = Default()
	}
	setEnvInt("DECODER_ABSOLUTE_BEAM_WIDTH", &cfg.Beam.AbsoluteBeamWidth)
	setEnvFloat("DECODER_RELATIVE_BEAM_WIDTH", &cfg.Beam.RelativeBeamWidth)
	setEnvInt("DECODER_WORD_BEAM_ABSOLUTE", &cfg.Beam.WordBeamAbsolute)
	setEnvFloat("DECODER_WORD_BEAM_RELATIVE", &cfg.Beam.WordBeamRelative)
	setEnvInt("DECODER_MAX_PATHS_PER_WORD", &cfg.Beam.MaxPathsPerWord)
	setEnvInt("DECODER_MAX_FILLER_WORDS", &cfg.Beam.MaxFillerWords)
	setEnvBool("DECODER_STRICT_PRUNING", &cfg.Pruning.Strict)
	setEnvInt("DECODER_ALT_HYP_MAX_EDGES", &cfg.Lattice.AltHypMaxEdges)
	setEnvStr("DECODER_MERGE_POLICY", &cfg.Lattice.MergePolicy)
	setEnvInt("DECODER_FEATURE_BLOCK_SIZE", &cfg.Recognize.FeatureBlockSize)
	setEnvInt("DECODER_NON_EMITTING_DEPTH_CAP", &cfg.Recognize.NonEmittingDepthCap)
	setEnvBool("DECODER_EMIT_INTERMEDIATE_RESULTS", &cfg.Recognize.EmitIntermediateResults)
	setEnvBool("DECODER_GROUP_SENTENCES", &cfg.Recognize.GroupSentences)
	setEnvFloat("DECODER_LOG_BASE", &cfg.Math.LogBase)
	return cfg
}

// Load implements the full hierarchy: defaults, then (if configPath is
// non-empty) the YAML file, then environment variables. The caller
// applies programmatic overrides (e.g. CLI flags) afterward.
func Load(configPath string) (*DecoderConfig, error) {
	var cfg *DecoderConfig
	if configPath != "" {
		var err error
		cfg, err = FromFile(configPath)
		if err != nil {
			return nil, err
		}
	} else {
		cfg = Default()
	}
	return FromEnv(cfg), nil
}

// Validate performs structural validation, returning a *Error describing
// the first invalid field (spec §7: ConfigError, fatal at allocate time).
func (c *DecoderConfig) Validate() error {
	if c.Beam.AbsoluteBeamWidth <= 0 {
		return &Error{Field: "beam.absoluteBeamWidth", Msg: "must be > 0"}
	}
	if c.Beam.RelativeBeamWidth > 0 {
		return &Error{Field: "beam.relativeBeamWidth", Msg: "must be <= 0 (log domain)"}
	}
	if c.Beam.WordBeamRelative > 0 {
		return &Error{Field: "beam.wordBeamRelative", Msg: "must be <= 0 (log domain)"}
	}
	if c.Beam.MaxFillerWords < 0 {
		return &Error{Field: "beam.maxFillerWords", Msg: "must be >= 0"}
	}
	if c.Lattice.AltHypMaxEdges < 1 {
		return &Error{Field: "lattice.altHypMaxEdges", Msg: "must be >= 1"}
	}
	policy := strings.ToLower(strings.TrimSpace(c.Lattice.MergePolicy))
	if policy != "max" && policy != "logadd" {
		return &Error{Field: "lattice.mergePolicy", Msg: "must be one of max|logadd"}
	}
	if c.Recognize.FeatureBlockSize <= 0 {
		return &Error{Field: "recognize.featureBlockSize", Msg: "must be > 0"}
	}
	if c.Recognize.NonEmittingDepthCap <= 0 {
		return &Error{Field: "recognize.nonEmittingDepthCap", Msg: "must be > 0"}
	}
	if c.Math.LogBase <= 0 || c.Math.LogBase == 1 {
		return &Error{Field: "math.logBase", Msg: "must be positive and != 1"}
	}
	return nil
}

func setEnvStr(key string, dst *string) {
	if v, ok := os.LookupEnv(key); ok {
		*dst = v
	}
}

func setEnvBool(key string, dst *bool) {
	if v, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setEnvInt(key string, dst *int) {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setEnvFloat(key string, dst *float64) {
	if v, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}
