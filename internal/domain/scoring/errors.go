package scoring

import "errors"

// Sentinel error kinds for this package. These allow errors.Is/As from callers.
var (
	// ErrInvalidConfiguration means a risk-level mapping does not cover a
	// computed normalized time. It must reach the caller unmodified.
	ErrInvalidConfiguration = errors.New("invalid configuration")

	ErrOverlappingRanges = errors.New("overlapping ranges")
	ErrEmptyRange        = errors.New("empty range")
	ErrUnknownRiskLevel  = errors.New("unknown risk level")
	ErrUnknownRule       = errors.New("unknown aggregation rule")
	ErrInvalidDocument   = errors.New("invalid configuration document")
)
