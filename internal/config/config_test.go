package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultPassesValidate(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("Default() must validate cleanly, got %v", err)
	}
}

func TestValidateRejectsEachBadField(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*DecoderConfig)
		field  string
	}{
		{"absolute beam width zero", func(c *DecoderConfig) { c.Beam.AbsoluteBeamWidth = 0 }, "beam.absoluteBeamWidth"},
		{"relative beam width positive", func(c *DecoderConfig) { c.Beam.RelativeBeamWidth = 1 }, "beam.relativeBeamWidth"},
		{"word beam relative positive", func(c *DecoderConfig) { c.Beam.WordBeamRelative = 1 }, "beam.wordBeamRelative"},
		{"negative filler cap", func(c *DecoderConfig) { c.Beam.MaxFillerWords = -1 }, "beam.maxFillerWords"},
		{"alt hyp max edges zero", func(c *DecoderConfig) { c.Lattice.AltHypMaxEdges = 0 }, "lattice.altHypMaxEdges"},
		{"unknown merge policy", func(c *DecoderConfig) { c.Lattice.MergePolicy = "bogus" }, "lattice.mergePolicy"},
		{"feature block size zero", func(c *DecoderConfig) { c.Recognize.FeatureBlockSize = 0 }, "recognize.featureBlockSize"},
		{"non-emitting depth cap zero", func(c *DecoderConfig) { c.Recognize.NonEmittingDepthCap = 0 }, "recognize.nonEmittingDepthCap"},
		{"log base one", func(c *DecoderConfig) { c.Math.LogBase = 1 }, "math.logBase"},
		{"log base negative", func(c *DecoderConfig) { c.Math.LogBase = -1 }, "math.logBase"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected Validate to reject the broken field")
			}
			cerr, ok := err.(*Error)
			if !ok {
				t.Fatalf("expected *Error, got %T", err)
			}
			if cerr.Field != tc.field {
				t.Errorf("Field = %q, want %q", cerr.Field, tc.field)
			}
		})
	}
}

func TestMergePolicyIsCaseAndSpaceInsensitive(t *testing.T) {
	cfg := Default()
	cfg.Lattice.MergePolicy = "  LogAdd  "
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected a case/space-insensitive merge policy to validate, got %v", err)
	}
}

func TestFromEnvOverridesDefaults(t *testing.T) {
	t.Setenv("DECODER_ABSOLUTE_BEAM_WIDTH", "500")
	t.Setenv("DECODER_STRICT_PRUNING", "false")
	t.Setenv("DECODER_MERGE_POLICY", "logadd")
	t.Setenv("DECODER_LOG_BASE", "2")

	cfg := FromEnv(nil)
	if cfg.Beam.AbsoluteBeamWidth != 500 {
		t.Errorf("AbsoluteBeamWidth = %d, want 500", cfg.Beam.AbsoluteBeamWidth)
	}
	if cfg.Pruning.Strict {
		t.Error("Strict = true, want false")
	}
	if cfg.Lattice.MergePolicy != "logadd" {
		t.Errorf("MergePolicy = %q, want logadd", cfg.Lattice.MergePolicy)
	}
	if cfg.Math.LogBase != 2 {
		t.Errorf("LogBase = %v, want 2", cfg.Math.LogBase)
	}
}

func TestFromEnvIgnoresUnparsableValues(t *testing.T) {
	t.Setenv("DECODER_ABSOLUTE_BEAM_WIDTH", "not-a-number")
	cfg := FromEnv(nil)
	if cfg.Beam.AbsoluteBeamWidth != Default().Beam.AbsoluteBeamWidth {
		t.Error("an unparsable env override must leave the default value untouched")
	}
}

func TestFromFileOverlaysDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "decoder.yaml")
	yaml := "beam:\n  absoluteBeamWidth: 777\nmath:\n  logBase: 10\n"
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("writing fixture config: %v", err)
	}

	cfg, err := FromFile(path)
	if err != nil {
		t.Fatalf("FromFile: %v", err)
	}
	if cfg.Beam.AbsoluteBeamWidth != 777 {
		t.Errorf("AbsoluteBeamWidth = %d, want 777", cfg.Beam.AbsoluteBeamWidth)
	}
	if cfg.Math.LogBase != 10 {
		t.Errorf("LogBase = %v, want 10", cfg.Math.LogBase)
	}
	// Fields absent from the file must keep their built-in default.
	if cfg.Lattice.AltHypMaxEdges != Default().Lattice.AltHypMaxEdges {
		t.Error("FromFile must overlay onto defaults, not replace them wholesale")
	}
}

func TestFromFileMissingPathErrors(t *testing.T) {
	if _, err := FromFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected an error for a nonexistent config file")
	}
}

func TestLoadAppliesFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "decoder.yaml")
	if err := os.WriteFile(path, []byte("beam:\n  absoluteBeamWidth: 42\n"), 0o644); err != nil {
		t.Fatalf("writing fixture config: %v", err)
	}
	t.Setenv("DECODER_ABSOLUTE_BEAM_WIDTH", "99")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Beam.AbsoluteBeamWidth != 99 {
		t.Errorf("env must win over file: AbsoluteBeamWidth = %d, want 99", cfg.Beam.AbsoluteBeamWidth)
	}
}
