package testdetections

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"sync"
	"time"
)

var errStillQueued = errors.New("run still queued")

// pollResults waits for every accepted run to complete or fail and returns
// the final states, indexed like runs. Runs that were not accepted, or did
// not finish within config.PollTimeout, are left nil.
func pollResults(ctx context.Context, config *Config, runs []SubmittedRun, outcomes []string, stats *Stats) []*Detection {
	log.Printf("🔎 Polling results with %d workers...", config.Workers)

	client := newHTTPClient(config.Timeout)
	results := make([]*Detection, len(runs))

	indexChan := make(chan int, config.Workers*WorkerChannelMultiplier)
	var wg sync.WaitGroup

	for i := 0; i < config.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for index := range indexChan {
				d, err := pollSingleResult(ctx, client, config, runs[index].RunID)
				if err != nil {
					if config.Verbose {
						log.Printf("⚠️  No result for %s: %v", runs[index].RunID, err)
					}
					continue
				}
				results[index] = d
			}
		}()
	}

	go func() {
		defer close(indexChan)
		for i := range runs {
			if outcomes[i] != outcomeAccepted {
				continue
			}
			select {
			case <-ctx.Done():
				return
			case indexChan <- i:
			}
		}
	}()

	wg.Wait()
	summarizeResults(outcomes, results, stats)

	log.Printf(`✅ Result polling completed:
   Completed: %d (high: %d, low: %d)
   Failed: %d
   Still pending: %d
`, stats.RunsCompleted, stats.HighRisk, stats.LowRisk, stats.RunsErrored, stats.RunsPending)

	return results
}

// pollSingleResult polls one run until it leaves the queue.
func pollSingleResult(ctx context.Context, client *HTTPClient, config *Config, runID string) (*Detection, error) {
	endpoint := fmt.Sprintf("%s/detections/%s", config.BaseURL, url.PathEscape(runID))
	deadline := time.Now().Add(config.PollTimeout)

	for {
		var d Detection
		if _, err := client.getJSON(ctx, endpoint, &d); err != nil {
			return nil, err
		}
		if d.Status != statusQueued {
			return &d, nil
		}
		if time.Now().After(deadline) {
			return nil, errStillQueued
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(config.PollInterval):
		}
	}
}

// summarizeResults counts final states and risk levels.
func summarizeResults(outcomes []string, results []*Detection, stats *Stats) {
	for i, d := range results {
		if outcomes[i] != outcomeAccepted {
			continue
		}
		switch {
		case d == nil:
			stats.RunsPending++
		case d.Status == statusFailed:
			stats.RunsErrored++
		case d.Status == statusCompleted && d.Result != nil:
			stats.RunsCompleted++
			if d.Result.Overall.RiskLevel == "high" {
				stats.HighRisk++
			} else {
				stats.LowRisk++
			}
		default:
			stats.RunsPending++
		}
	}
}
