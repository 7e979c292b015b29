package testdetections

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"

	"github.com/okian/exposurerisk/pkg/logger"
)

// Ranges for synthetic windows. Dates reach past the default encounter age
// so that some windows expire.
const (
	maxWindowAgeDays   = 18
	maxScansPerWindow  = 8
	attenuationMin     = 30
	attenuationRange   = 50
	scanSecondsMin     = 60
	scanSecondsRange   = 240
	closeContactChance = 4 // one in N windows is a close contact
	closeAttenuation   = 40
)

var (
	reportTypes = []string{
		"confirmed_test", "confirmed_test", "confirmed_test",
		"confirmed_clinical_diagnosis", "self_reported", "recursive", "revoked", "unknown",
	}
	infectiousness = []string{"standard", "standard", "high", "high", "none"}
	confidences    = []string{"lowest", "low", "medium", "high"}
)

// randomInt returns a random int in [0, n) using crypto/rand.
func randomInt(n int) int {
	if n <= 1 {
		return 0
	}
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0
	}
	return int(v.Int64())
}

func pick(values []string) string {
	return values[randomInt(len(values))]
}

// generateRuns creates config.NumRuns runs with unique run IDs, all measured
// from the same reference time.
func generateRuns(ctx context.Context, config *Config, ref time.Time, stats *Stats) ([]SubmittedRun, error) {
	logger.Get().Info(ctx, "generating detection runs", logger.Int("numRuns", config.NumRuns))

	runs := make([]SubmittedRun, config.NumRuns)
	windows := 0
	for i := range runs {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("context cancelled during run generation: %w", ctx.Err())
		default:
		}
		runs[i] = generateSingleRun(uuid.NewString(), ref, config.WindowsPerRun)
		windows += len(runs[i].Windows)
	}

	stats.RunsGenerated = len(runs)
	stats.WindowsGenerated = windows
	logger.Get().Info(ctx, "generated runs successfully",
		logger.Int("runs", len(runs)),
		logger.Int("windows", windows))
	return runs, nil
}

// generateSingleRun creates a run with between one and maxWindows windows.
func generateSingleRun(runID string, ref time.Time, maxWindows int) SubmittedRun {
	if maxWindows < 1 {
		maxWindows = 1
	}
	n := 1 + randomInt(maxWindows)
	run := SubmittedRun{
		RunID:         runID,
		ReferenceTime: ref.UTC().Format(time.RFC3339),
		Windows:       make([]Window, n),
	}
	day := time.Date(ref.Year(), ref.Month(), ref.Day(), 0, 0, 0, 0, time.UTC)
	for i := range run.Windows {
		run.Windows[i] = generateWindow(day.AddDate(0, 0, -randomInt(maxWindowAgeDays+1)))
	}
	return run
}

// generateWindow creates a window on date. A fraction of windows are close
// contacts with low attenuation so that high risk results appear.
func generateWindow(date time.Time) Window {
	w := Window{
		Date:                  date.Format(time.DateOnly),
		ReportType:            pick(reportTypes),
		Infectiousness:        pick(infectiousness),
		CalibrationConfidence: pick(confidences),
		ScanInstances:         make([]Scan, 1+randomInt(maxScansPerWindow)),
	}
	closeContact := randomInt(closeContactChance) == 0
	for i := range w.ScanInstances {
		att := attenuationMin + randomInt(attenuationRange)
		if closeContact {
			att = attenuationMin + randomInt(closeAttenuation-attenuationMin)
		}
		w.ScanInstances[i] = Scan{
			TypicalAttenuation:   int32(att),                                          //nolint:gosec // bounded above
			SecondsSinceLastScan: int32(scanSecondsMin + randomInt(scanSecondsRange)), //nolint:gosec // bounded above
		}
	}
	return w
}
