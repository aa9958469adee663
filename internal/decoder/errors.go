// Package decoder defines the sentinel error values shared across the
// decoder's packages (spec §7). Each kind's propagation rule is documented
// at the point it is returned, not here.
package decoder

import "errors"

var (
	// ErrConfigInvalid marks a ConfigError (spec §7): invalid or missing
	// configuration, fatal at allocate time.
	ErrConfigInvalid = errors.New("decoder: invalid configuration")

	// ErrGraphCycle marks a GraphError (spec §7): the linguist produced a
	// malformed state, or non-emitting expansion exceeded its depth cap.
	// Fatal for the current utterance, never for the process.
	ErrGraphCycle = errors.New("decoder: non-emitting expansion exceeded depth cap")

	// ErrScorerFailed marks a ScorerError (spec §7) for packages that don't
	// import scorer. It is a separate sentinel from scorer.ErrScorerFailed,
	// not a wrapped cause of it: scorer.ErrScorerFailed's Unwrap returns its
	// Cause field, never this value, so matching the richer type requires
	// errors.As(err, &scorerErr), not errors.Is against this sentinel.
	ErrScorerFailed = errors.New("decoder: acoustic scorer failed")

	// ErrEmptyResult marks the EmptyResult condition (spec §7): used only
	// as a documentation marker, never returned as a failure. No token
	// reaching a final state is a normal, successful outcome.
	ErrEmptyResult = errors.New("decoder: no token reached a final state")

	// ErrNumericUnderflow marks a NumericError (spec §7): underflow or NaN
	// collapsed a log-domain computation to LOG_ZERO. Logged, never
	// propagated as a failure.
	ErrNumericUnderflow = errors.New("decoder: numeric underflow in log-domain arithmetic")

	// ErrInvalidState marks an out-of-order lifecycle call (spec §4.5's
	// state machine): e.g. start_recognition before allocate, or
	// recognize before start_recognition.
	ErrInvalidState = errors.New("decoder: invalid lifecycle state transition")
)
