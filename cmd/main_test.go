package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/okian/exposurerisk/internal/adapters/mq/publisher"
	app "github.com/okian/exposurerisk/internal/app"
	"github.com/okian/exposurerisk/internal/config"
	"github.com/okian/exposurerisk/internal/domain/scoring"
	"github.com/okian/exposurerisk/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func TestNewMux(t *testing.T) {
	convey.Convey("Given a started service behind the application mux", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		svc := app.New(app.WithWorkerCount(2))
		convey.So(svc.Start(ctx), convey.ShouldBeNil)
		defer func() { _ = svc.Stop(ctx) }()
		mux := newMux(ctx, svc)

		convey.Convey("When a run is submitted and polled", func() {
			body := `{"run_id":"e2e","windows":[{"date":"` + time.Now().UTC().AddDate(0, 0, -1).Format(time.DateOnly) +
				`","report_type":"confirmed_test","infectiousness":"high","scan_instances":[{"typical_attenuation":50,"seconds_since_last_scan":900}]}]}`
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/detections", strings.NewReader(body)))
			convey.So(w.Code, convey.ShouldEqual, http.StatusAccepted)

			var status string
			deadline := time.Now().Add(5 * time.Second)
			for status != "completed" && time.Now().Before(deadline) {
				w = httptest.NewRecorder()
				mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/detections/e2e", http.NoBody))
				var doc map[string]any
				_ = json.Unmarshal(w.Body.Bytes(), &doc)
				status, _ = doc["status"].(string)
				time.Sleep(10 * time.Millisecond)
			}

			convey.Convey("Then the run completes", func() {
				convey.So(status, convey.ShouldEqual, "completed")
			})
		})

		convey.Convey("When the API docs are requested", func() {
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/openapi.yaml", http.NoBody))

			convey.Convey("Then they are served next to the API", func() {
				convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
			})
		})
	})
}

func TestNewPublisher(t *testing.T) {
	convey.Convey("Given a configuration without brokers", t, func() {
		cfg := config.New(context.Background())
		pub, err := newPublisher(cfg, logger.Nop())

		convey.Convey("Then results are discarded", func() {
			convey.So(err, convey.ShouldBeNil)
			convey.So(pub, convey.ShouldHaveSameTypeAs, publisher.Nop{})
		})
	})

	convey.Convey("Given a configuration with brokers", t, func() {
		cfg := config.New(context.Background())
		cfg.KafkaBrokers = []string{"localhost:9092"}
		pub, err := newPublisher(cfg, logger.Nop())

		convey.Convey("Then a kafka publisher is built", func() {
			convey.So(err, convey.ShouldBeNil)
			_, ok := pub.(*publisher.KafkaPublisher)
			convey.So(ok, convey.ShouldBeTrue)
			convey.So(pub.Close(), convey.ShouldBeNil)
		})
	})
}

func TestOnScoringChange(t *testing.T) {
	convey.Convey("Given a service and its reload callback", t, func() {
		ctx := context.Background()
		svc := app.New()
		onChange := onScoringChange(ctx, svc, logger.Nop())

		convey.Convey("When a reload fails", func() {
			onChange(nil, errors.New("bad document"))

			convey.Convey("Then the active configuration stays", func() {
				convey.So(svc.Current().Version(), convey.ShouldEqual, "builtin-1")
			})
		})

		convey.Convey("When a reload succeeds", func() {
			doc := scoring.DefaultDocument()
			doc.Version = "reloaded"
			cfg, err := scoring.NewConfiguration(doc)
			convey.So(err, convey.ShouldBeNil)
			onChange(cfg, nil)

			convey.Convey("Then the new configuration is active", func() {
				convey.So(svc.Current().Version(), convey.ShouldEqual, "reloaded")
			})
		})
	})
}

func TestSystemMetrics(t *testing.T) {
	convey.Convey("Given the system metrics updater", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		convey.Convey("Then it returns when the context ends", func() {
			convey.So(func() { startSystemMetricsUpdater(ctx) }, convey.ShouldNotPanic)
			convey.So(func() { updateSystemMetrics() }, convey.ShouldNotPanic)
		})
	})
}
