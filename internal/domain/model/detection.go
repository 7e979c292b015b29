package model

import "time"

// DetectionRun is one batch of exposure windows submitted for evaluation.
type DetectionRun struct {
	RunID         string           // unique id for idempotency
	ReferenceTime time.Time        // "now" for encounter-age filtering
	Windows       []ExposureWindow // borrowed; never mutated by consumers
	ReceivedAt    time.Time
}
