package testdetections

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

const progressInterval = time.Second

// HTTPClient wraps http.Client with timeout
type HTTPClient struct {
	client  *http.Client
	timeout time.Duration
}

// newHTTPClient creates a new HTTP client with timeout
func newHTTPClient(timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		client: &http.Client{
			Timeout: timeout,
		},
		timeout: timeout,
	}
}

// Get performs a GET request
func (c *HTTPClient) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	return c.client.Do(req)
}

// Post performs a POST request with JSON body
func (c *HTTPClient) Post(ctx context.Context, url string, body interface{}) (*http.Response, error) {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	return c.client.Do(req)
}

// readResponseBody reads and closes the response body
func readResponseBody(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

// getJSON fetches url and decodes a 200 response into v.
func (c *HTTPClient) getJSON(ctx context.Context, url string, v interface{}) (int, error) {
	resp, err := c.Get(ctx, url)
	if err != nil {
		return 0, fmt.Errorf("request failed: %w", err)
	}
	body, err := readResponseBody(resp)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return resp.StatusCode, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
	}
	if err := json.Unmarshal(body, v); err != nil {
		return resp.StatusCode, fmt.Errorf("failed to parse response: %w", err)
	}
	return resp.StatusCode, nil
}

// submitRuns submits runs concurrently and returns the outcome of each one,
// indexed like runs.
func submitRuns(ctx context.Context, config *Config, runs []SubmittedRun, stats *Stats) []string {
	log.Printf("📤 Submitting %d runs with %d workers...", len(runs), config.Workers)

	client := newHTTPClient(config.Timeout)
	url := config.BaseURL + "/detections"
	outcomes := make([]string, len(runs))

	var (
		accepted   int64
		duplicate  int64
		rejected   int64
		failed     int64
		submitted  int64
		lastReport atomic.Int64
	)

	indexChan := make(chan int, config.Workers*WorkerChannelMultiplier)
	var wg sync.WaitGroup

	for i := 0; i < config.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			for index := range indexChan {
				if ctx.Err() != nil {
					return
				}
				outcome := submitSingleRun(ctx, client, url, &runs[index])
				outcomes[index] = outcome

				total := atomic.AddInt64(&submitted, 1)
				switch outcome {
				case outcomeAccepted:
					atomic.AddInt64(&accepted, 1)
				case outcomeDuplicate:
					atomic.AddInt64(&duplicate, 1)
				case outcomeRejected:
					atomic.AddInt64(&rejected, 1)
				default:
					atomic.AddInt64(&failed, 1)
				}

				now := time.Now().UnixNano()
				last := lastReport.Load()
				if now-last >= int64(progressInterval) && lastReport.CompareAndSwap(last, now) && config.Verbose {
					log.Printf("📊 Progress: %d/%d submitted (accepted: %d, duplicate: %d, rejected: %d, failed: %d)",
						total, len(runs), atomic.LoadInt64(&accepted), atomic.LoadInt64(&duplicate),
						atomic.LoadInt64(&rejected), atomic.LoadInt64(&failed))
				}
			}
		}()
	}

	go func() {
		defer close(indexChan)
		for i := range runs {
			select {
			case <-ctx.Done():
				return
			case indexChan <- i:
			}
		}
	}()

	wg.Wait()

	stats.RunsSubmitted = int(atomic.LoadInt64(&submitted))
	stats.RunsAccepted = int(atomic.LoadInt64(&accepted))
	stats.RunsDuplicate = int(atomic.LoadInt64(&duplicate))
	stats.RunsRejected = int(atomic.LoadInt64(&rejected))
	stats.RunsFailed = int(atomic.LoadInt64(&failed))

	log.Printf(`✅ Run submission completed:
   Accepted: %d
   Duplicate: %d
   Rejected (backpressure): %d
   Failed: %d
`, stats.RunsAccepted, stats.RunsDuplicate, stats.RunsRejected, stats.RunsFailed)

	return outcomes
}

// submitSingleRun submits a single run and classifies the response.
func submitSingleRun(ctx context.Context, client *HTTPClient, url string, run *SubmittedRun) string {
	resp, err := client.Post(ctx, url, run)
	if err != nil {
		return outcomeFailed
	}
	body, err := readResponseBody(resp)
	if err != nil {
		return outcomeFailed
	}

	switch resp.StatusCode {
	case http.StatusAccepted:
		return outcomeAccepted
	case http.StatusOK:
		var ack AckResponse
		if err := json.Unmarshal(body, &ack); err == nil && !ack.Duplicate {
			return outcomeAccepted
		}
		return outcomeDuplicate
	case http.StatusTooManyRequests, http.StatusServiceUnavailable:
		return outcomeRejected
	default:
		return outcomeFailed
	}
}
