// Package repository keeps detection results so clients can poll them.
package repository

import (
	"context"
	"time"

	"github.com/okian/exposurerisk/internal/domain/detection"
)

// Status is the processing state of a detection run.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Record is the stored state of one detection run.
type Record struct {
	RunID       string
	Status      Status
	Result      *detection.Result // set when completed
	Error       string            // set when failed
	ErrorCode   string            // machine-readable failure kind
	SubmittedAt time.Time
	CompletedAt time.Time
}

// Store provides read/write access to detection results.
type Store interface {
	// Save inserts or replaces the record for rec.RunID. Replacing keeps the
	// record's original retention position.
	Save(ctx context.Context, rec Record) error

	// Get returns the record for runID or ErrNotFound.
	Get(ctx context.Context, runID string) (Record, error)

	// Recent returns up to n records, newest submission first.
	Recent(ctx context.Context, n int) ([]Record, error)

	// Delete removes a record; deleting an unknown run is not an error.
	Delete(ctx context.Context, runID string) error

	// Count returns the number of retained records.
	Count(ctx context.Context) int
}
