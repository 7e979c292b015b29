// Package aggregate combines scored exposure windows into one overall risk
// result. Dropped windows never take part.
package aggregate

import (
	"fmt"
	"time"

	"github.com/okian/exposurerisk/internal/domain/model"
	"github.com/okian/exposurerisk/internal/domain/scoring"
)

// ScoredWindow pairs a window with its score. Index is the window's
// position in the submitted run.
type ScoredWindow struct {
	Index  int
	Window model.ExposureWindow
	Score  scoring.WindowRiskScore
}

// OverallRiskResult is the outcome of one detection run.
type OverallRiskResult struct {
	RiskLevel           scoring.RiskLevel
	HighRiskWindowCount int
	// MostRecentRelevantExposureDate is the latest day carrying RiskLevel,
	// nil when no window survived the filters.
	MostRecentRelevantExposureDate *time.Time
}

// Aggregator combines the scores of one run.
type Aggregator interface {
	Aggregate(windows []ScoredWindow) (OverallRiskResult, error)
}

// New returns the aggregator selected by cfg.AggregationRule.
func New(cfg *scoring.Configuration) (Aggregator, error) {
	switch cfg.AggregationRule() {
	case scoring.RuleAnyHigh:
		return AnyHigh{}, nil
	case scoring.RulePerDay:
		return NewPerDay(cfg), nil
	default:
		return nil, fmt.Errorf("%w: %q", scoring.ErrUnknownRule, cfg.AggregationRule())
	}
}

// AnyHigh reports high as soon as one surviving window is high.
type AnyHigh struct{}

// Aggregate implements Aggregator.
func (AnyHigh) Aggregate(windows []ScoredWindow) (OverallRiskResult, error) {
	res := OverallRiskResult{RiskLevel: scoring.RiskLevelLow}
	var latestHigh, latestLow *time.Time

	for i := range windows {
		sw := &windows[i]
		if sw.Score.IsDropped {
			continue
		}
		day := model.Day(sw.Window.Date)
		switch sw.Score.RiskLevel {
		case scoring.RiskLevelHigh:
			res.HighRiskWindowCount++
			latestHigh = later(latestHigh, day)
		case scoring.RiskLevelLow:
			latestLow = later(latestLow, day)
		default:
			return OverallRiskResult{}, fmt.Errorf("%w: window %d has no risk level", scoring.ErrInvalidConfiguration, i)
		}
	}

	return finish(res, latestHigh, latestLow), nil
}

// PerDay sums the normalized time of surviving windows per calendar day and
// classifies each day through the per-day mapping. The run is high when any
// day is high.
type PerDay struct {
	cfg *scoring.Configuration
}

// NewPerDay returns a per-day aggregator bound to cfg.
func NewPerDay(cfg *scoring.Configuration) PerDay { return PerDay{cfg: cfg} }

// Aggregate implements Aggregator.
func (p PerDay) Aggregate(windows []ScoredWindow) (OverallRiskResult, error) {
	res := OverallRiskResult{RiskLevel: scoring.RiskLevelLow}
	perDay := make(map[time.Time]float64)

	for i := range windows {
		sw := &windows[i]
		if sw.Score.IsDropped {
			continue
		}
		perDay[model.Day(sw.Window.Date)] += sw.Score.NormalizedTime
		if sw.Score.RiskLevel == scoring.RiskLevelHigh {
			res.HighRiskWindowCount++
		}
	}

	var latestHigh, latestLow *time.Time
	for day, total := range perDay {
		level, err := p.cfg.ClassifyDay(total)
		if err != nil {
			return OverallRiskResult{}, fmt.Errorf("day %s: %w", day.Format(time.DateOnly), err)
		}
		if level == scoring.RiskLevelHigh {
			latestHigh = later(latestHigh, day)
		} else {
			latestLow = later(latestLow, day)
		}
	}

	return finish(res, latestHigh, latestLow), nil
}

// finish applies the latest high day, else the latest low day. A nil day
// means no surviving window carried that level; the zero time is a valid day.
func finish(res OverallRiskResult, latestHigh, latestLow *time.Time) OverallRiskResult {
	switch {
	case latestHigh != nil:
		res.RiskLevel = scoring.RiskLevelHigh
		res.MostRecentRelevantExposureDate = latestHigh
	case latestLow != nil:
		res.MostRecentRelevantExposureDate = latestLow
	}
	return res
}

func later(cur *time.Time, day time.Time) *time.Time {
	if cur == nil || day.After(*cur) {
		return &day
	}
	return cur
}
