package testdetections

import (
	"time"

	"github.com/okian/exposurerisk/internal/domain/types"
)

// Config holds configuration for the detection load test
type Config struct {
	BaseURL       string        // Base URL of the service
	NumRuns       int           // Number of detection runs to generate
	WindowsPerRun int           // Maximum exposure windows per run
	Workers       int           // Number of concurrent workers
	Timeout       time.Duration // HTTP request timeout
	PollInterval  time.Duration // Delay between result polls for one run
	PollTimeout   time.Duration // How long to wait for a run to leave the queue
	VerifySample  int           // Number of completed runs re-scored through /score
	OutputFile    string        // Output file for generated runs
	LogFile       string        // Log file for test output
	Verbose       bool          // Enable verbose logging
}

// SubmittedRun is a detection run as submitted to the service
type SubmittedRun struct {
	RunID         string   `json:"run_id"`
	ReferenceTime string   `json:"reference_time"`
	Windows       []Window `json:"windows"`
}

// Window is one synthetic exposure window
type Window struct {
	Date                  string `json:"date"`
	ReportType            string `json:"report_type"`
	Infectiousness        string `json:"infectiousness"`
	CalibrationConfidence string `json:"calibration_confidence"`
	ScanInstances         []Scan `json:"scan_instances"`
}

// Scan is one scan instance inside a window
type Scan struct {
	TypicalAttenuation   int32 `json:"typical_attenuation"`
	SecondsSinceLastScan int32 `json:"seconds_since_last_scan"`
}

// AckResponse represents the response from run submission
type AckResponse struct {
	Status    string `json:"status"`
	RunID     string `json:"run_id"`
	Duplicate bool   `json:"duplicate"`
}

// Detection is the polled state of a submitted run
type Detection struct {
	RunID  string                 `json:"run_id"`
	Status string                 `json:"status"`
	Result *types.DetectionResult `json:"result,omitempty"`
	Error  *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Stats holds test statistics
type Stats struct {
	RunsGenerated    int
	WindowsGenerated int
	RunsSubmitted    int
	RunsAccepted     int
	RunsDuplicate    int
	RunsRejected     int
	RunsFailed       int
	RunsCompleted    int
	RunsErrored      int
	RunsPending      int
	HighRisk         int
	LowRisk          int
	Verified         int
	Mismatched       int
	StartTime        time.Time
	EndTime          time.Time
	Duration         time.Duration
}
