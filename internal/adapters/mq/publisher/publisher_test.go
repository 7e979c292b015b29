package publisher_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/exposurerisk/internal/adapters/mq/publisher"
	"github.com/okian/exposurerisk/internal/domain/aggregate"
	"github.com/okian/exposurerisk/internal/domain/detection"
	"github.com/okian/exposurerisk/internal/domain/scoring"
	"github.com/okian/exposurerisk/internal/domain/types"
)

type fakeWriter struct {
	mu     sync.Mutex
	msgs   []kafkago.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

func result() *detection.Result {
	return &detection.Result{
		RunID:                "run-42",
		ConfigurationVersion: "v3",
		ReferenceTime:        time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC),
		Overall:              aggregate.OverallRiskResult{RiskLevel: scoring.RiskLevelHigh, HighRiskWindowCount: 2},
	}
}

func TestKafkaPublisher(t *testing.T) {
	Convey("Given a kafka publisher over a fake writer", t, func() {
		w := &fakeWriter{}
		p, err := publisher.NewKafka(nil, "results", publisher.WithWriter(w))
		So(err, ShouldBeNil)
		ctx := context.Background()

		Convey("When a result is published", func() {
			So(p.Publish(ctx, result()), ShouldBeNil)

			Convey("Then one message keyed by run ID is written", func() {
				So(w.msgs, ShouldHaveLength, 1)
				msg := w.msgs[0]
				So(string(msg.Key), ShouldEqual, "run-42")

				headers := map[string]string{}
				for _, h := range msg.Headers {
					headers[h.Key] = string(h.Value)
				}
				So(headers[publisher.HeaderConfigurationVersion], ShouldEqual, "v3")
				So(headers[publisher.HeaderRiskLevel], ShouldEqual, "high")

				var doc types.DetectionResult
				So(json.Unmarshal(msg.Value, &doc), ShouldBeNil)
				So(doc.RunID, ShouldEqual, "run-42")
				So(doc.Overall.RiskLevel, ShouldEqual, "high")
				So(doc.Overall.HighRiskWindowCount, ShouldEqual, 2)
			})
		})

		Convey("When the writer fails", func() {
			w.err = errors.New("broker down")
			err := p.Publish(ctx, result())

			Convey("Then the error is wrapped", func() {
				So(errors.Is(err, publisher.ErrPublish), ShouldBeTrue)
				So(err.Error(), ShouldContainSubstring, "broker down")
			})
		})

		Convey("When it is closed", func() {
			So(p.Close(), ShouldBeNil)

			Convey("Then the writer is closed", func() {
				So(w.closed, ShouldBeTrue)
			})
		})
	})

	Convey("Given no brokers and no writer", t, func() {
		_, err := publisher.NewKafka(nil, "results")

		Convey("Then construction fails", func() {
			So(errors.Is(err, publisher.ErrNoBrokers), ShouldBeTrue)
		})
	})

	Convey("Given brokers", t, func() {
		p, err := publisher.NewKafka([]string{"localhost:9092"}, "results")

		Convey("Then a kafka-go writer is built without dialing", func() {
			So(err, ShouldBeNil)
			So(p, ShouldNotBeNil)
			So(p.Close(), ShouldBeNil)
		})
	})
}

func TestNop(t *testing.T) {
	Convey("Given the no-op publisher", t, func() {
		var p publisher.Publisher = publisher.Nop{}

		Convey("Then publishing and closing succeed", func() {
			So(p.Publish(context.Background(), result()), ShouldBeNil)
			So(p.Close(), ShouldBeNil)
		})
	})
}
