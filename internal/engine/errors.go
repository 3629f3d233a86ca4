package engine

import "errors"

// Sentinel errors returned by exported Engine operations. Callers compare
// with errors.Is; none of these are ever wrapped with additional context
// that would break that comparison on the hot path.
var (
	ErrOutOfCapacity          = errors.New("engine: account table at capacity")
	ErrNotFound               = errors.New("engine: account not found")
	ErrOverflow               = errors.New("engine: arithmetic overflow")
	ErrInsufficientCapital    = errors.New("engine: insufficient capital")
	ErrBelowMaintenanceMargin = errors.New("engine: below maintenance margin")
	ErrBelowInitialMargin     = errors.New("engine: below initial margin")
	ErrStaleCrank             = errors.New("engine: crank is stale")
	ErrStaleSweep             = errors.New("engine: sweep is stale")
	ErrInvalidOracle          = errors.New("engine: invalid oracle price")
	ErrInvalidMatcherOutput   = errors.New("engine: invalid matcher output")
	ErrAlreadyResolved        = errors.New("engine: market already resolved")
	ErrNotResolved            = errors.New("engine: market not resolved")
	ErrPositionsRemain        = errors.New("engine: positions remain open")
	ErrRiskReductionOnly      = errors.New("engine: risk-reduction-only mode")
)
