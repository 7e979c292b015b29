package testdetections

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"net/http"
	"sort"

	"github.com/okian/exposurerisk/internal/domain/types"
)

const scoreTolerance = 1e-9

// verifyResults re-scores up to config.VerifySample completed runs through
// POST /score and compares them with the asynchronous results. Mismatches are
// reported, not returned as errors.
func verifyResults(ctx context.Context, config *Config, runs []SubmittedRun, results []*Detection, stats *Stats) error {
	log.Println("🔍 Verifying results...")

	completed := make([]int, 0, len(results))
	for i, d := range results {
		if d != nil && d.Status == statusCompleted && d.Result != nil {
			completed = append(completed, i)
		}
	}
	if len(completed) == 0 {
		return fmt.Errorf("no completed runs to verify")
	}

	client := newHTTPClient(config.Timeout)
	for n, index := range completed {
		if n >= config.VerifySample {
			break
		}
		direct, err := scoreRun(ctx, client, config.BaseURL, &runs[index])
		if err != nil {
			return fmt.Errorf("score run %s: %w", runs[index].RunID, err)
		}
		if err := compareResults(results[index].Result, direct); err != nil {
			stats.Mismatched++
			log.Printf("⚠️  Run %s: %v", runs[index].RunID, err)
			continue
		}
		stats.Verified++
	}

	displayMostRecentExposures(results, config.Verbose)

	log.Printf("✅ Result verification completed (verified: %d, mismatched: %d)", stats.Verified, stats.Mismatched)
	return nil
}

// scoreRun evaluates run synchronously.
func scoreRun(ctx context.Context, client *HTTPClient, baseURL string, run *SubmittedRun) (*types.DetectionResult, error) {
	resp, err := client.Post(ctx, baseURL+"/score", run)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	body, err := readResponseBody(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
	}
	var res types.DetectionResult
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return &res, nil
}

// compareResults checks that two evaluations of the same run agree. The
// evaluation instant is ignored.
func compareResults(async, direct *types.DetectionResult) error {
	if async.ConfigurationVersion != direct.ConfigurationVersion {
		return fmt.Errorf("configuration changed between evaluations (%s, %s)",
			async.ConfigurationVersion, direct.ConfigurationVersion)
	}
	if async.Overall.RiskLevel != direct.Overall.RiskLevel {
		return fmt.Errorf("risk level %s does not match synchronous %s", async.Overall.RiskLevel, direct.Overall.RiskLevel)
	}
	if async.Overall.HighRiskWindowCount != direct.Overall.HighRiskWindowCount {
		return fmt.Errorf("high risk window count %d does not match synchronous %d",
			async.Overall.HighRiskWindowCount, direct.Overall.HighRiskWindowCount)
	}
	if dateOf(async.Overall.MostRecentRelevantExposureDate) != dateOf(direct.Overall.MostRecentRelevantExposureDate) {
		return fmt.Errorf("most recent exposure %q does not match synchronous %q",
			dateOf(async.Overall.MostRecentRelevantExposureDate), dateOf(direct.Overall.MostRecentRelevantExposureDate))
	}
	if len(async.Windows) != len(direct.Windows) {
		return fmt.Errorf("%d scored windows do not match synchronous %d", len(async.Windows), len(direct.Windows))
	}
	for i := range async.Windows {
		a, s := &async.Windows[i], &direct.Windows[i]
		if a.Index != s.Index || a.IsDropped != s.IsDropped || a.RiskLevel != s.RiskLevel ||
			math.Abs(a.NormalizedTime-s.NormalizedTime) > scoreTolerance {
			return fmt.Errorf("window %d scored differently", a.Index)
		}
	}
	return nil
}

func dateOf(d *string) string {
	if d == nil {
		return ""
	}
	return *d
}

// displayMostRecentExposures shows the high risk runs with the most recent
// relevant exposures.
func displayMostRecentExposures(results []*Detection, verbose bool) {
	high := make([]*types.DetectionResult, 0)
	for _, d := range results {
		if d != nil && d.Result != nil && d.Result.Overall.RiskLevel == "high" {
			high = append(high, d.Result)
		}
	}
	sort.Slice(high, func(i, j int) bool {
		return dateOf(high[i].Overall.MostRecentRelevantExposureDate) > dateOf(high[j].Overall.MostRecentRelevantExposureDate)
	})

	topN := 10
	if len(high) < topN {
		topN = len(high)
	}
	log.Printf("🚨 %d high risk runs, most recent %d:", len(high), topN)
	for i := 0; i < topN; i++ {
		r := high[i]
		log.Printf("   %d. %s - exposure %s, high windows: %d",
			i+1, r.RunID, dateOf(r.Overall.MostRecentRelevantExposureDate), r.Overall.HighRiskWindowCount)
	}

	if verbose && len(results) > 0 {
		dropped, expired, windows := 0, 0, 0
		for _, d := range results {
			if d == nil || d.Result == nil {
				continue
			}
			dropped += d.Result.DroppedCount
			expired += d.Result.ExpiredCount
			windows += len(d.Result.Windows)
		}
		log.Printf(`📊 Window statistics:
   Scored: %d
   Dropped: %d
   Expired: %d
`, windows, dropped, expired)
	}
}
