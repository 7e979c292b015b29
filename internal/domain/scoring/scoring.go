// Package scoring turns exposure windows into transmission risk levels,
// normalized exposure times and low/high classifications, driven by a
// versioned scoring configuration.
package scoring

import (
	"math"

	"github.com/okian/exposurerisk/internal/domain/model"
)

const secondsPerMinute = 60

// DropReason records which filters excluded a window.
type DropReason uint8

const (
	DropAttenuationDuration DropReason = 1 << iota
	DropTransmissionRiskLevel
)

// Reasons lists the set flags by name.
func (d DropReason) Reasons() []string {
	var out []string
	if d&DropAttenuationDuration != 0 {
		out = append(out, "attenuation_duration")
	}
	if d&DropTransmissionRiskLevel != 0 {
		out = append(out, "transmission_risk_level")
	}
	return out
}

// WindowRiskScore is the outcome of scoring one exposure window.
type WindowRiskScore struct {
	TransmissionRiskLevel int
	TransmissionRiskValue float64
	WeightedMinutes       float64
	NormalizedTime        float64
	IsDropped             bool
	DropReasons           DropReason
	RiskLevel             RiskLevel // RiskLevelNone when classification failed
}

// Score computes the risk score of w under cfg. It never fails for the
// transmission risk level, the normalized time or the drop flags; the only
// error is ErrInvalidConfiguration from the risk level lookup, in which case
// the returned score is still filled except for RiskLevel.
func Score(w model.ExposureWindow, cfg *Configuration) (WindowRiskScore, error) { //nolint:gocritic // hugeParam: windows are passed by value as immutable snapshots
	s := WindowRiskScore{
		TransmissionRiskLevel: TransmissionRiskLevel(w, cfg.trl),
		WeightedMinutes:       WeightedMinutes(w, cfg),
	}
	s.TransmissionRiskValue = float64(s.TransmissionRiskLevel) * cfg.multiplier
	s.NormalizedTime = s.TransmissionRiskValue * s.WeightedMinutes

	if droppedByAttenuation(w, cfg.filters) {
		s.DropReasons |= DropAttenuationDuration
	}
	if AnyContains(cfg.trlFilters, float64(s.TransmissionRiskLevel)) {
		s.DropReasons |= DropTransmissionRiskLevel
	}
	s.IsDropped = s.DropReasons != 0

	level, err := cfg.ClassifyWindow(s.NormalizedTime)
	if err != nil {
		return s, err
	}
	s.RiskLevel = level
	return s, nil
}

// TransmissionRiskLevel sums the infectiousness and report type offsets.
func TransmissionRiskLevel(w model.ExposureWindow, enc TRLEncoding) int { //nolint:gocritic // hugeParam
	return infectiousnessOffset(w.Infectiousness, enc) + reportTypeOffset(w.ReportType, enc)
}

func infectiousnessOffset(i model.Infectiousness, enc TRLEncoding) int {
	switch i {
	case model.InfectiousnessHigh:
		return enc.InfectiousnessOffsetHigh
	default:
		// standard, none and anything newer share the standard offset
		return enc.InfectiousnessOffsetStandard
	}
}

func reportTypeOffset(r model.ReportType, enc TRLEncoding) int {
	switch r {
	case model.ReportTypeConfirmedTest:
		return enc.ReportTypeOffsetConfirmedTest
	case model.ReportTypeConfirmedClinicalDiagnosis:
		return enc.ReportTypeOffsetConfirmedClinicalDiagnosis
	case model.ReportTypeSelfReported:
		return enc.ReportTypeOffsetSelfReport
	case model.ReportTypeRecursive:
		return enc.ReportTypeOffsetRecursive
	default:
		// unknown, revoked and future report types contribute nothing
		return 0
	}
}

// WeightedMinutes sums scan durations weighted by their attenuation bucket.
// Attenuations outside every bucket weigh 0.
func WeightedMinutes(w model.ExposureWindow, cfg *Configuration) float64 { //nolint:gocritic // hugeParam
	var weightedSeconds float64
	for _, si := range w.ScanInstances {
		weightedSeconds += float64(si.SecondsSinceLastScan) * cfg.AttenuationWeight(si.TypicalAttenuation)
	}
	return weightedSeconds / secondsPerMinute
}

func droppedByAttenuation(w model.ExposureWindow, filters []AttenuationFilter) bool { //nolint:gocritic // hugeParam
	for _, f := range filters {
		var seconds int64
		for _, si := range w.ScanInstances {
			if f.AttenuationRange.Contains(float64(si.TypicalAttenuation)) {
				seconds += int64(si.SecondsSinceLastScan)
			}
		}
		minutes := math.Floor(float64(seconds) / secondsPerMinute)
		if f.DropIfMinutesInRange.Contains(minutes) {
			return true
		}
	}
	return false
}
