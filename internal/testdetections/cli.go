package testdetections

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/okian/exposurerisk/pkg/logger"
)

// File permission constants.
const (
	logFilePermission = 0600
)

// SetupLogging configures logging to both console and file.
// If logFile is empty, a timestamped filename is generated.
func SetupLogging(logFile string) error {
	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	if logFile == "" {
		logFile = "test_log_" + time.Now().Format("20060102_150405") + ".log"
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
	if err != nil {
		return fmt.Errorf("failed to create log file: %w", err)
	}

	log.SetOutput(io.MultiWriter(os.Stdout, file))
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	logger.Get().Info(context.Background(), "logging to file", logger.String("logFile", logFile))
	return nil
}

// ShowHelp prints usage information for the detection test tool.
func ShowHelp() {
	os.Stdout.WriteString(`Exposure Risk Detection Test Tool
=================================

Submits synthetic detection runs to the exposure risk service, waits for
their results and cross-checks a sample against synchronous scoring.

Usage:
  go run ./cmd/test-detections [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:9080")
  -runs int
        Number of detection runs to generate and submit (default 1000)
  -windows int
        Maximum exposure windows per run (default 12)
  -workers int
        Number of concurrent workers (default CPU cores * 2)
  -timeout duration
        HTTP request timeout (default 30s)
  -poll-interval duration
        Delay between result polls (default 100ms)
  -poll-timeout duration
        How long to wait for one run to complete (default 1m)
  -verify int
        Number of completed runs re-scored through /score (default 100)
  -output string
        Output file for generated runs (default: generated_runs_TIMESTAMP.json)
  -log string
        Log file for test output (default: test_log_TIMESTAMP.log)
  -verbose
        Enable verbose logging
  -help
        Show this help message

Examples:
  # Test with default settings
  go run ./cmd/test-detections

  # Larger runs against another instance
  go run ./cmd/test-detections -runs 20000 -windows 40 -url http://localhost:8080
`)
}
