// Package frontend defines the decoder's pull interface onto the feature
// extraction pipeline (spec §6: "Frontend contract"). The feature pipeline
// itself is out of scope for this module; only the contract is specified.
package frontend

import "github.com/denizumutdereli/lvcsr-decoder/internal/scorer"

// Frontend is the pull interface the search driver polls once per frame
// (spec §6). Features are opaque; the decoder does not inspect them.
type Frontend interface {
	// NextFeature returns the next feature frame, or ok=false at
	// end-of-data.
	NextFeature() (feature scorer.Feature, ok bool)
}

// SliceFrontend is a simple in-memory Frontend over a pre-built slice of
// features, useful for tests and for batch decoding of pre-extracted
// feature files.
type SliceFrontend struct {
	features []scorer.Feature
	pos      int
}

// NewSliceFrontend builds a Frontend over payloads, stamping each with its
// sequential frame index and the given duration.
func NewSliceFrontend(payloads []any, frameDuration float64) *SliceFrontend {
	features := make([]scorer.Feature, len(payloads))
	for i, p := range payloads {
		features[i] = scorer.Feature{Index: i, Duration: frameDuration, Payload: p}
	}
	return &SliceFrontend{features: features}
}

func (f *SliceFrontend) NextFeature() (scorer.Feature, bool) {
	if f.pos >= len(f.features) {
		return scorer.Feature{}, false
	}
	feat := f.features[f.pos]
	f.pos++
	return feat, true
}

// Remaining reports how many features are left to pull.
func (f *SliceFrontend) Remaining() int { return len(f.features) - f.pos }
