// Package model contains domain models passed between layers.
package model

import (
	"fmt"
	"strings"
	"time"
)

// ReportType describes how the diagnosis behind a window was obtained.
// Unknown, revoked and unrecognised values all carry a zero report-type
// offset when scoring.
type ReportType int

const (
	ReportTypeUnknown ReportType = iota
	ReportTypeConfirmedTest
	ReportTypeConfirmedClinicalDiagnosis
	ReportTypeSelfReported
	ReportTypeRecursive
	ReportTypeRevoked
)

var reportTypeNames = map[ReportType]string{
	ReportTypeUnknown:                    "unknown",
	ReportTypeConfirmedTest:              "confirmed_test",
	ReportTypeConfirmedClinicalDiagnosis: "confirmed_clinical_diagnosis",
	ReportTypeSelfReported:               "self_reported",
	ReportTypeRecursive:                  "recursive",
	ReportTypeRevoked:                    "revoked",
}

func (r ReportType) String() string {
	if s, ok := reportTypeNames[r]; ok {
		return s
	}
	return reportTypeNames[ReportTypeUnknown]
}

// MarshalText implements encoding.TextMarshaler.
func (r ReportType) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler. Values this build does
// not know decode to ReportTypeUnknown so newer platforms keep working.
func (r *ReportType) UnmarshalText(b []byte) error {
	*r = ParseReportType(string(b))
	return nil
}

// ParseReportType maps a report type name to its value.
func ParseReportType(s string) ReportType {
	key := normalizeEnum(s)
	for k, v := range reportTypeNames {
		if v == key {
			return k
		}
	}
	return ReportTypeUnknown
}

// Infectiousness is the platform's judgement of how infectious the
// contact was on the day of the window.
type Infectiousness int

const (
	InfectiousnessNone Infectiousness = iota
	InfectiousnessStandard
	InfectiousnessHigh
)

var infectiousnessNames = map[Infectiousness]string{
	InfectiousnessNone:     "none",
	InfectiousnessStandard: "standard",
	InfectiousnessHigh:     "high",
}

func (i Infectiousness) String() string {
	if s, ok := infectiousnessNames[i]; ok {
		return s
	}
	return infectiousnessNames[InfectiousnessNone]
}

// MarshalText implements encoding.TextMarshaler.
func (i Infectiousness) MarshalText() ([]byte, error) { return []byte(i.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (i *Infectiousness) UnmarshalText(b []byte) error {
	key := normalizeEnum(string(b))
	for k, v := range infectiousnessNames {
		if v == key {
			*i = k
			return nil
		}
	}
	*i = InfectiousnessNone
	return nil
}

// CalibrationConfidence reports how well the device's Bluetooth
// calibration is known. It does not take part in scoring.
type CalibrationConfidence int

const (
	CalibrationConfidenceLowest CalibrationConfidence = iota
	CalibrationConfidenceLow
	CalibrationConfidenceMedium
	CalibrationConfidenceHigh
)

var calibrationNames = map[CalibrationConfidence]string{
	CalibrationConfidenceLowest: "lowest",
	CalibrationConfidenceLow:    "low",
	CalibrationConfidenceMedium: "medium",
	CalibrationConfidenceHigh:   "high",
}

func (c CalibrationConfidence) String() string {
	if s, ok := calibrationNames[c]; ok {
		return s
	}
	return calibrationNames[CalibrationConfidenceLowest]
}

// MarshalText implements encoding.TextMarshaler.
func (c CalibrationConfidence) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler. "unknown" is accepted
// as an alias of "lowest".
func (c *CalibrationConfidence) UnmarshalText(b []byte) error {
	key := normalizeEnum(string(b))
	for k, v := range calibrationNames {
		if v == key {
			*c = k
			return nil
		}
	}
	*c = CalibrationConfidenceLowest
	return nil
}

// ScanInstance is one sub-measurement of a window: the typical attenuation
// observed and the seconds elapsed since the previous scan.
type ScanInstance struct {
	TypicalAttenuation   int32 // dB
	SecondsSinceLastScan int32 // not validated here; ingestion rejects negatives
}

// ExposureWindow is an immutable snapshot of one proximity episode as
// aggregated by the platform.
type ExposureWindow struct {
	CalibrationConfidence CalibrationConfidence
	Date                  time.Time // calendar day, UTC midnight
	ReportType            ReportType
	Infectiousness        Infectiousness
	ScanInstances         []ScanInstance
}

// Day truncates t to its UTC calendar day.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDay parses a YYYY-MM-DD calendar day.
func ParseDay(s string) (time.Time, error) {
	t, err := time.Parse(time.DateOnly, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("parse day %q: %w", s, err)
	}
	return t, nil
}

func normalizeEnum(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.ReplaceAll(s, "-", "_")
}
