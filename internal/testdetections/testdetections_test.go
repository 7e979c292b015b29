package testdetections

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/okian/exposurerisk/internal/adapters/http/api"
	app "github.com/okian/exposurerisk/internal/app"
	"github.com/okian/exposurerisk/internal/domain/types"
	"github.com/okian/exposurerisk/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func newTestServer(ctx context.Context) (*httptest.Server, func()) {
	svc := app.New(app.WithWorkerCount(4), app.WithLogger(logger.Nop()))
	if err := svc.Start(ctx); err != nil {
		panic(err)
	}
	mux := http.NewServeMux()
	api.NewServer(svc, svc).Register(ctx, mux)
	srv := httptest.NewServer(mux)
	return srv, func() {
		srv.Close()
		_ = svc.Stop(ctx)
	}
}

func testConfig(baseURL string, runs int) *Config {
	return &Config{
		BaseURL:       baseURL,
		NumRuns:       runs,
		WindowsPerRun: 6,
		Workers:       4,
		Timeout:       5 * time.Second,
		PollInterval:  10 * time.Millisecond,
		PollTimeout:   5 * time.Second,
		VerifySample:  5,
	}
}

func TestGenerateSingleRun(t *testing.T) {
	Convey("Given a reference time", t, func() {
		ref := time.Date(2026, 10, 17, 14, 5, 0, 0, time.UTC)

		Convey("When a run is generated", func() {
			run := generateSingleRun("run-1", ref, 5)

			Convey("Then it carries the run ID and reference time", func() {
				So(run.RunID, ShouldEqual, "run-1")
				So(run.ReferenceTime, ShouldEqual, "2026-10-17T14:05:00Z")
			})

			Convey("Then every window is within the generated bounds", func() {
				So(len(run.Windows), ShouldBeBetweenOrEqual, 1, 5)
				oldest := ref.AddDate(0, 0, -maxWindowAgeDays).Format(time.DateOnly)
				for _, w := range run.Windows {
					So(w.Date, ShouldBeLessThanOrEqualTo, "2026-10-17")
					So(w.Date, ShouldBeGreaterThanOrEqualTo, oldest)
					So(len(w.ScanInstances), ShouldBeBetweenOrEqual, 1, maxScansPerWindow)
					for _, s := range w.ScanInstances {
						So(s.TypicalAttenuation, ShouldBeBetweenOrEqual, attenuationMin, attenuationMin+attenuationRange)
						So(s.SecondsSinceLastScan, ShouldBeBetweenOrEqual, scanSecondsMin, scanSecondsMin+scanSecondsRange)
					}
				}
			})
		})

		Convey("When a run is generated with no window limit", func() {
			run := generateSingleRun("run-2", ref, 0)

			Convey("Then it still has one window", func() {
				So(run.Windows, ShouldHaveLength, 1)
			})
		})
	})
}

func TestCompareResults(t *testing.T) {
	Convey("Given two evaluations of the same run", t, func() {
		date := "2026-10-15"
		a := &types.DetectionResult{
			ConfigurationVersion: "v1",
			Overall:              types.OverallRisk{RiskLevel: "high", HighRiskWindowCount: 1, MostRecentRelevantExposureDate: &date},
			Windows:              []types.WindowScore{{Index: 0, NormalizedTime: 18.5, RiskLevel: "high"}},
		}
		b := *a
		b.Windows = []types.WindowScore{a.Windows[0]}

		Convey("When they agree", func() {
			Convey("Then no mismatch is reported", func() {
				So(compareResults(a, &b), ShouldBeNil)
			})
		})

		Convey("When the overall risk differs", func() {
			b.Overall.RiskLevel = "low"

			Convey("Then a mismatch is reported", func() {
				So(compareResults(a, &b), ShouldNotBeNil)
			})
		})

		Convey("When a window scores differently", func() {
			b.Windows[0].NormalizedTime = 12

			Convey("Then a mismatch is reported", func() {
				So(compareResults(a, &b), ShouldNotBeNil)
			})
		})

		Convey("When only one has a relevant exposure", func() {
			b.Overall.MostRecentRelevantExposureDate = nil

			Convey("Then a mismatch is reported", func() {
				So(compareResults(a, &b), ShouldNotBeNil)
			})
		})
	})
}

func TestPipeline(t *testing.T) {
	Convey("Given a running exposure risk service", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		srv, stop := newTestServer(ctx)
		defer stop()
		config := testConfig(srv.URL, 20)

		runs, err := generateRuns(ctx, config, time.Now().UTC(), &Stats{})
		So(err, ShouldBeNil)

		Convey("When the runs are submitted and polled", func() {
			stats := &Stats{}
			outcomes := submitRuns(ctx, config, runs, stats)
			results := pollResults(ctx, config, runs, outcomes, stats)

			Convey("Then every run is accepted and completes", func() {
				So(stats.RunsAccepted, ShouldEqual, 20)
				So(stats.RunsCompleted, ShouldEqual, 20)
				So(stats.HighRisk+stats.LowRisk, ShouldEqual, 20)
				So(results[0].Result.RunID, ShouldEqual, runs[0].RunID)
			})

			Convey("Then the results match synchronous scoring", func() {
				So(verifyResults(ctx, config, runs, results, stats), ShouldBeNil)
				So(stats.Verified, ShouldEqual, 5)
				So(stats.Mismatched, ShouldEqual, 0)
			})

			Convey("Then submitting them again reports duplicates", func() {
				again := &Stats{}
				submitRuns(ctx, config, runs, again)
				So(again.RunsDuplicate, ShouldEqual, 20)
			})
		})
	})
}

func TestRun(t *testing.T) {
	Convey("Given a running exposure risk service", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		srv, stop := newTestServer(ctx)
		defer stop()
		config := testConfig(srv.URL, 10)
		config.OutputFile = filepath.Join(t.TempDir(), "out", "runs.json")

		Convey("When the full test runs", func() {
			err := Run(ctx, config)

			Convey("Then it succeeds and saves the generated runs", func() {
				So(err, ShouldBeNil)
				_, statErr := os.Stat(config.OutputFile)
				So(statErr, ShouldBeNil)
			})
		})
	})

	Convey("Given no service", t, func() {
		config := testConfig("http://127.0.0.1:1", 1)
		config.Timeout = 500 * time.Millisecond

		Convey("When the test runs", func() {
			err := Run(context.Background(), config)

			Convey("Then the health check fails", func() {
				So(err, ShouldNotBeNil)
			})
		})
	})
}
