// Package types contains the wire representation of detection results shared
// by the HTTP API and the result publisher.
package types

import (
	"time"

	"github.com/okian/exposurerisk/internal/domain/detection"
	"github.com/okian/exposurerisk/internal/domain/model"
	"github.com/okian/exposurerisk/internal/domain/scoring"
)

// WindowScore is the scored form of one submitted exposure window.
type WindowScore struct {
	Index                 int                  `json:"index"`
	Date                  string               `json:"date"`
	ReportType            model.ReportType     `json:"report_type"`
	Infectiousness        model.Infectiousness `json:"infectiousness"`
	TransmissionRiskLevel int                  `json:"transmission_risk_level"`
	TransmissionRiskValue float64              `json:"transmission_risk_value"`
	WeightedMinutes       float64              `json:"weighted_minutes"`
	NormalizedTime        float64              `json:"normalized_time"`
	IsDropped             bool                 `json:"is_dropped"`
	DropReasons           []string             `json:"drop_reasons,omitempty"`
	// RiskLevel is omitted when a dropped window could not be classified.
	RiskLevel string `json:"risk_level,omitempty"`
}

// OverallRisk is the aggregated outcome of a run.
type OverallRisk struct {
	RiskLevel                      string  `json:"risk_level"`
	HighRiskWindowCount            int     `json:"high_risk_window_count"`
	MostRecentRelevantExposureDate *string `json:"most_recent_relevant_exposure_date"`
	DaysSinceMostRecentExposure    *int    `json:"days_since_most_recent_exposure,omitempty"`
}

// DetectionResult is the JSON document for one evaluated run.
type DetectionResult struct {
	RunID                string        `json:"run_id"`
	ConfigurationVersion string        `json:"configuration_version"`
	ReferenceDate        string        `json:"reference_date"`
	EvaluatedAt          time.Time     `json:"evaluated_at"`
	Overall              OverallRisk   `json:"overall"`
	Windows              []WindowScore `json:"windows"`
	DroppedCount         int           `json:"dropped_count"`
	ExpiredCount         int           `json:"expired_count"`
}

// FromResult maps an evaluation result to its wire form.
func FromResult(res *detection.Result) DetectionResult {
	refDay := model.Day(res.ReferenceTime)
	out := DetectionResult{
		RunID:                res.RunID,
		ConfigurationVersion: res.ConfigurationVersion,
		ReferenceDate:        refDay.Format(time.DateOnly),
		EvaluatedAt:          res.EvaluatedAt,
		Overall: OverallRisk{
			RiskLevel:           res.Overall.RiskLevel.String(),
			HighRiskWindowCount: res.Overall.HighRiskWindowCount,
		},
		Windows:      make([]WindowScore, 0, len(res.Windows)),
		DroppedCount: res.DroppedCount,
		ExpiredCount: res.ExpiredCount,
	}
	if d := res.Overall.MostRecentRelevantExposureDate; d != nil {
		date := d.Format(time.DateOnly)
		days := int(refDay.Sub(model.Day(*d)).Hours() / 24)
		out.Overall.MostRecentRelevantExposureDate = &date
		out.Overall.DaysSinceMostRecentExposure = &days
	}
	for i := range res.Windows {
		sw := &res.Windows[i]
		ws := WindowScore{
			Index:                 sw.Index,
			Date:                  sw.Window.Date.Format(time.DateOnly),
			ReportType:            sw.Window.ReportType,
			Infectiousness:        sw.Window.Infectiousness,
			TransmissionRiskLevel: sw.Score.TransmissionRiskLevel,
			TransmissionRiskValue: sw.Score.TransmissionRiskValue,
			WeightedMinutes:       sw.Score.WeightedMinutes,
			NormalizedTime:        sw.Score.NormalizedTime,
			IsDropped:             sw.Score.IsDropped,
			DropReasons:           sw.Score.DropReasons.Reasons(),
		}
		if sw.Score.RiskLevel != scoring.RiskLevelNone {
			ws.RiskLevel = sw.Score.RiskLevel.String()
		}
		out.Windows = append(out.Windows, ws)
	}
	return out
}
