package detection

import "errors"

// Sentinel errors returned by the evaluator.
var (
	ErrNilConfiguration = errors.New("detection: no scoring configuration")
	ErrTooManyWindows   = errors.New("detection: too many windows in run")
)
