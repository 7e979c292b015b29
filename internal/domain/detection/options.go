package detection

import "time"

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithClock sets the clock used for EvaluatedAt and for runs without a
// reference time.
func WithClock(now func() time.Time) Option {
	return func(e *Evaluator) {
		if now != nil {
			e.now = now
		}
	}
}

// WithMaxWindows caps the windows accepted per run; 0 means no cap.
func WithMaxWindows(n int) Option {
	return func(e *Evaluator) {
		if n >= 0 {
			e.maxWindows = n
		}
	}
}
