// Package logmath provides numerically stable log-domain arithmetic for the
// decoder. All scores inside the search and lattice packages are
// log-probabilities; combining hypotheses means adding log scores, and
// merging hypotheses means taking the log-sum-exp of their scores.
package logmath

import "math"

// LogZero is the floor value substituted for numeric underflow. It stands
// in for log(0) without producing -Inf/NaN propagation through arithmetic.
const LogZero = -math.MaxFloat64 / 2

// LogOne is the additive identity in the log domain (log(1) == 0).
const LogOne = 0.0

// LogMath carries the process-wide log base as an explicit value rather
// than a package-level singleton (spec §9: "make it an explicit parameter
// of the decoder context, not a singleton").
type LogMath struct {
	base    float64
	lnBase  float64
	invBase float64
}

// New returns a LogMath using the natural log (e) base.
func New() LogMath {
	return NewWithBase(math.E)
}

// NewWithBase returns a LogMath for an arbitrary positive base != 1.
func NewWithBase(base float64) LogMath {
	if base <= 0 || base == 1 {
		base = math.E
	}
	ln := math.Log(base)
	return LogMath{base: base, lnBase: ln, invBase: 1.0 / ln}
}

// Base returns the configured log base.
func (m LogMath) Base() float64 { return m.base }

// Add computes logAdd(a, b) = log(base^a + base^b) in the configured base,
// i.e. the log-domain sum of two probabilities. Numerically stable for
// arbitrarily small or large magnitude differences.
func (m LogMath) Add(a, b float64) float64 {
	if a == LogZero {
		return b
	}
	if b == LogZero {
		return a
	}
	if math.IsNaN(a) || math.IsNaN(b) {
		return LogZero
	}
	if a < b {
		a, b = b, a
	}
	diff := b - a
	// Convert the base-specific diff into natural-log space for log1p,
	// then back, so the identity holds regardless of base.
	natDiff := diff * m.lnBase
	if natDiff < -745 { // exp underflows float64 below this
		return a
	}
	return a + math.Log1p(math.Exp(natDiff))*m.invBase
}

// LogToLinear converts a log-domain score to its linear [0,1]-ish value,
// i.e. base^x. Used for WordResult.confidence_linear.
func (m LogMath) LogToLinear(x float64) float64 {
	if x <= LogZero {
		return 0.0
	}
	return math.Pow(m.base, x)
}

// LinearToLog converts a linear probability to the configured log base.
func (m LogMath) LinearToLog(p float64) float64 {
	if p <= 0 {
		return LogZero
	}
	return math.Log(p) * m.invBase
}

// Nats converts x, expressed in this LogMath's configured base, into
// natural-log (base e) space by scaling by ln(base). LogZero is a
// base-agnostic floor sentinel and is passed through unscaled: scaling it
// directly can overflow float64 for base > e.
func (m LogMath) Nats(x float64) float64 {
	if x <= LogZero {
		return LogZero
	}
	return x * m.lnBase
}

// CapLogOne clamps a log score at LogOne (0.0), masking floating-point
// overshoot from repeated forward/backward accumulation (spec §4.9, §9).
func CapLogOne(x float64) float64 {
	if x > LogOne {
		return LogOne
	}
	return x
}

// IsUnderflow reports whether x has collapsed to (or below) LogZero,
// a condition the caller should log as a NumericError rather than
// propagate as a fatal error (spec §7).
func IsUnderflow(x float64) bool {
	return math.IsNaN(x) || math.IsInf(x, -1) || x <= LogZero
}

// SafeValue returns x, or LogZero if x has underflowed/NaN'd. The bool
// return reports whether a substitution occurred so callers can log it.
func SafeValue(x float64) (float64, bool) {
	if IsUnderflow(x) {
		return LogZero, true
	}
	return x, false
}
