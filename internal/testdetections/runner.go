package testdetections

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/okian/exposurerisk/pkg/logger"
)

// File permission constants.
const (
	directoryPermission = 0750
)

// Run executes the complete detection load test.
func Run(ctx context.Context, config *Config) error {
	stats := &Stats{
		StartTime: time.Now(),
	}

	logger.Get().Info(ctx, "starting exposure risk detection test",
		logger.String("baseURL", config.BaseURL),
		logger.Int("runs", config.NumRuns),
		logger.Int("windowsPerRun", config.WindowsPerRun),
		logger.Int("workers", config.Workers),
		logger.Duration("timeout", config.Timeout),
		logger.Duration("pollTimeout", config.PollTimeout),
		logger.String("logFile", config.LogFile),
		logger.Bool("verbose", config.Verbose))

	// Step 1: Check service health
	if err := checkServiceHealth(ctx, config); err != nil {
		return fmt.Errorf("service health check failed: %w", err)
	}

	// Step 2: Generate runs
	runs, err := generateRuns(ctx, config, time.Now().UTC(), stats)
	if err != nil {
		return fmt.Errorf("run generation failed: %w", err)
	}

	// Step 3: Submit runs concurrently
	outcomes := submitRuns(ctx, config, runs, stats)

	// Step 4: Poll until the runs leave the queue
	results := pollResults(ctx, config, runs, outcomes, stats)

	// Step 5: Cross-check against synchronous scoring
	if err := verifyResults(ctx, config, runs, results, stats); err != nil {
		return fmt.Errorf("result verification failed: %w", err)
	}

	// Step 6: Save runs to file
	if err := saveRunsToFile(ctx, config, runs); err != nil {
		logger.Get().Warn(ctx, "failed to save runs to file", logger.Error(err))
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)

	displayFinalStats(ctx, stats)

	if stats.Mismatched > 0 {
		return fmt.Errorf("%d runs scored differently through /score", stats.Mismatched)
	}
	logger.Get().Info(ctx, "test completed successfully")
	return nil
}

// checkServiceHealth verifies the service is running.
func checkServiceHealth(ctx context.Context, config *Config) error {
	logger.Get().Info(ctx, "checking service health")

	client := newHTTPClient(config.Timeout)
	resp, err := client.Get(ctx, config.BaseURL+"/healthz")
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logger.Get().Error(ctx, "failed to close response body", logger.Error(err))
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("service health check failed with status: %d", resp.StatusCode)
	}

	logger.Get().Info(ctx, "service is healthy")
	return nil
}

// saveRunsToFile saves the generated runs to a JSON file.
func saveRunsToFile(ctx context.Context, config *Config, runs []SubmittedRun) error {
	if len(runs) == 0 {
		return fmt.Errorf("no runs to save")
	}

	filename := config.OutputFile
	if filename == "" {
		filename = "generated_runs_" + time.Now().Format("20060102_150405") + ".json"
	}

	dir := filepath.Dir(filename)
	if dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer func() {
		if err := file.Close(); err != nil {
			logger.Get().Error(ctx, "failed to close file", logger.Error(err))
		}
	}()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(runs); err != nil {
		return fmt.Errorf("failed to write runs: %w", err)
	}

	logger.Get().Info(ctx, "runs saved to file", logger.String("filename", filename))
	return nil
}

// displayFinalStats prints the final test statistics.
func displayFinalStats(ctx context.Context, stats *Stats) {
	var acceptRate, runsPerSecond float64

	if stats.RunsSubmitted > 0 {
		acceptRate = float64(stats.RunsAccepted) / float64(stats.RunsSubmitted) * PercentageMultiplier
	}
	if stats.Duration > 0 {
		runsPerSecond = float64(stats.RunsSubmitted) / stats.Duration.Seconds()
	}

	logger.Get().Info(ctx, "final statistics",
		logger.Int("runsGenerated", stats.RunsGenerated),
		logger.Int("windowsGenerated", stats.WindowsGenerated),
		logger.Int("runsSubmitted", stats.RunsSubmitted),
		logger.Int("runsAccepted", stats.RunsAccepted),
		logger.Int("runsDuplicate", stats.RunsDuplicate),
		logger.Int("runsRejected", stats.RunsRejected),
		logger.Int("runsFailed", stats.RunsFailed),
		logger.Int("runsCompleted", stats.RunsCompleted),
		logger.Int("runsErrored", stats.RunsErrored),
		logger.Int("runsPending", stats.RunsPending),
		logger.Int("highRisk", stats.HighRisk),
		logger.Int("lowRisk", stats.LowRisk),
		logger.Int("verified", stats.Verified),
		logger.Int("mismatched", stats.Mismatched),
		logger.Duration("duration", stats.Duration),
		logger.Float64("acceptRate", acceptRate),
		logger.Float64("runsPerSecond", runsPerSecond))
}
