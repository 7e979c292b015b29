// Package publisher delivers evaluated detection results to downstream
// consumers.
package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/okian/exposurerisk/internal/domain/detection"
	"github.com/okian/exposurerisk/internal/domain/types"
	"github.com/okian/exposurerisk/pkg/logger"
	"github.com/okian/exposurerisk/pkg/metrics"
)

const (
	HeaderConfigurationVersion = "configuration_version"
	HeaderRiskLevel            = "risk_level"

	defaultBatchTimeout = 10 * time.Millisecond
)

// Publisher sends results out of the process.
type Publisher interface {
	Publish(ctx context.Context, res *detection.Result) error
	Close() error
}

// MessageWriter is the subset of *kafkago.Writer the publisher needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// KafkaPublisher writes one JSON message per result, keyed by run ID.
type KafkaPublisher struct {
	writer       MessageWriter
	topic        string
	batchTimeout time.Duration
	log          logger.Logger
}

// NewKafka creates a publisher for topic on brokers.
func NewKafka(brokers []string, topic string, opts ...Option) (*KafkaPublisher, error) {
	p := &KafkaPublisher{
		topic:        topic,
		batchTimeout: defaultBatchTimeout,
		log:          logger.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.writer == nil {
		if len(brokers) == 0 {
			return nil, ErrNoBrokers
		}
		p.writer = &kafkago.Writer{
			Addr:         kafkago.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafkago.LeastBytes{},
			BatchTimeout: p.batchTimeout,
			RequiredAcks: kafkago.RequireAll,
		}
	}
	return p, nil
}

// Publish encodes res and writes it to the topic.
func (p *KafkaPublisher) Publish(ctx context.Context, res *detection.Result) error {
	payload, err := json.Marshal(types.FromResult(res))
	if err != nil {
		metrics.RecordPublish("failed")
		return fmt.Errorf("%w: encode %s: %w", ErrPublish, res.RunID, err)
	}
	msg := kafkago.Message{
		Key:   []byte(res.RunID),
		Value: payload,
		Headers: []kafkago.Header{
			{Key: HeaderConfigurationVersion, Value: []byte(res.ConfigurationVersion)},
			{Key: HeaderRiskLevel, Value: []byte(res.Overall.RiskLevel.String())},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		metrics.RecordPublish("failed")
		return fmt.Errorf("%w: kafka publish to %s: %w", ErrPublish, p.topic, err)
	}
	metrics.RecordPublish("ok")
	p.log.Debug(ctx, "result published",
		logger.String("run_id", res.RunID),
		logger.String("topic", p.topic))
	return nil
}

// Close flushes and closes the writer.
func (p *KafkaPublisher) Close() error {
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("close kafka writer: %w", err)
	}
	return nil
}

// Nop discards results. It is used when no brokers are configured.
type Nop struct{}

func (Nop) Publish(context.Context, *detection.Result) error { return nil }
func (Nop) Close() error                                     { return nil }
