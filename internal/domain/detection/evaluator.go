// Package detection evaluates a whole detection run: it filters windows by
// encounter age, scores each one and aggregates the outcome.
package detection

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/okian/exposurerisk/internal/domain/aggregate"
	"github.com/okian/exposurerisk/internal/domain/model"
	"github.com/okian/exposurerisk/internal/domain/scoring"
	"github.com/okian/exposurerisk/pkg/metrics"
)

const hoursPerDay = 24

// Result is the outcome of one detection run.
type Result struct {
	RunID                string
	ConfigurationVersion string
	ReferenceTime        time.Time
	Windows              []aggregate.ScoredWindow // in input order, expired windows excluded
	Overall              aggregate.OverallRiskResult
	DroppedCount         int
	ExpiredCount         int
	EvaluatedAt          time.Time
}

// Evaluator runs the scoring pipeline for detection runs. It holds no
// per-run state and is safe for concurrent use.
type Evaluator struct {
	now        func() time.Time
	maxWindows int
}

// NewEvaluator creates an evaluator.
func NewEvaluator(opts ...Option) *Evaluator {
	e := &Evaluator{now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate scores run under cfg. cfg is read as one snapshot for the whole
// run. A risk level lookup failure on a surviving window fails the run with
// scoring.ErrInvalidConfiguration; on a dropped window it is ignored since
// the window takes no part in the result.
func (e *Evaluator) Evaluate(ctx context.Context, run model.DetectionRun, cfg *scoring.Configuration) (Result, error) { //nolint:gocritic // hugeParam: runs are value snapshots
	if cfg == nil {
		return Result{}, ErrNilConfiguration
	}
	if e.maxWindows > 0 && len(run.Windows) > e.maxWindows {
		return Result{}, fmt.Errorf("%w: %d > %d", ErrTooManyWindows, len(run.Windows), e.maxWindows)
	}

	ref := run.ReferenceTime
	if ref.IsZero() {
		ref = e.now()
	}
	refDay := model.Day(ref)
	maxAge := cfg.MaxEncounterAgeInDays()

	res := Result{
		RunID:                run.RunID,
		ConfigurationVersion: cfg.Version(),
		ReferenceTime:        ref,
		Windows:              make([]aggregate.ScoredWindow, 0, len(run.Windows)),
	}

	for i := range run.Windows {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		w := run.Windows[i]
		if maxAge > 0 && ageInDays(refDay, w.Date) > maxAge {
			res.ExpiredCount++
			continue
		}

		score, err := scoring.Score(w, cfg)
		if err != nil && !score.IsDropped {
			metrics.RecordInvalidConfiguration()
			return Result{}, fmt.Errorf("window %d: %w", i, err)
		}
		if score.IsDropped {
			res.DroppedCount++
		}
		res.Windows = append(res.Windows, aggregate.ScoredWindow{Index: i, Window: w, Score: score})
	}

	agg, err := aggregate.New(cfg)
	if err != nil {
		return Result{}, err
	}
	if res.Overall, err = agg.Aggregate(res.Windows); err != nil {
		if errors.Is(err, scoring.ErrInvalidConfiguration) {
			metrics.RecordInvalidConfiguration()
		}
		return Result{}, err
	}
	res.EvaluatedAt = e.now()
	record(&res)
	return res, nil
}

func record(res *Result) {
	if res.ExpiredCount > 0 {
		metrics.RecordWindowsExpired(res.ExpiredCount)
	}
	for i := range res.Windows {
		s := &res.Windows[i].Score
		if s.IsDropped {
			for _, reason := range s.DropReasons.Reasons() {
				metrics.RecordWindowDropped(reason)
			}
			continue
		}
		metrics.RecordWindowScored(s.RiskLevel.String(), s.NormalizedTime)
	}
}

// ageInDays counts whole calendar days from the window's day to refDay.
// Windows dated after refDay have a negative age and are kept.
func ageInDays(refDay, date time.Time) int {
	return int(refDay.Sub(model.Day(date)).Hours() / hoursPerDay)
}
