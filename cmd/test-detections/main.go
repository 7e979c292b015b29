package main

import (
	"context"
	"flag"
	"os"
	"runtime"
	"time"

	"github.com/okian/exposurerisk/internal/testdetections"
)

// Default configuration constants.
const (
	defaultNumRuns       = 1000
	defaultWindowsPerRun = 12
	defaultWorkers       = 2 // multiplier for runtime.NumCPU()
	defaultTimeout       = 30 * time.Second
	defaultPollInterval  = 100 * time.Millisecond
	defaultPollTimeout   = time.Minute
	defaultVerifySample  = 100
	defaultTestTimeout   = 10 * time.Minute
)

func main() {
	var (
		baseURL      = flag.String("url", "http://localhost:9080", "Base URL of the service")
		numRuns      = flag.Int("runs", defaultNumRuns, "Number of detection runs to generate and submit")
		windows      = flag.Int("windows", defaultWindowsPerRun, "Maximum exposure windows per run")
		workers      = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent workers")
		timeout      = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		pollInterval = flag.Duration("poll-interval", defaultPollInterval, "Delay between result polls")
		pollTimeout  = flag.Duration("poll-timeout", defaultPollTimeout, "How long to wait for one run to complete")
		verify       = flag.Int("verify", defaultVerifySample, "Number of completed runs re-scored through /score")
		outputFile   = flag.String("output", "", "Output file for generated runs (default: generated_runs_TIMESTAMP.json)")
		logFile      = flag.String("log", "", "Log file for test output (default: test_log_TIMESTAMP.log)")
		verbose      = flag.Bool("verbose", false, "Enable verbose logging")
		help         = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		testdetections.ShowHelp()
		return
	}

	if err := testdetections.SetupLogging(*logFile); err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultTestTimeout)
	defer cancel()

	config := &testdetections.Config{
		BaseURL:       *baseURL,
		NumRuns:       *numRuns,
		WindowsPerRun: *windows,
		Workers:       *workers,
		Timeout:       *timeout,
		PollInterval:  *pollInterval,
		PollTimeout:   *pollTimeout,
		VerifySample:  *verify,
		OutputFile:    *outputFile,
		LogFile:       *logFile,
		Verbose:       *verbose,
	}

	if err := testdetections.Run(ctx, config); err != nil {
		os.Stderr.WriteString("Test failed: " + err.Error() + "\n")
		cancel()
		os.Exit(1) //nolint:gocritic // cancel called above
	}
}
