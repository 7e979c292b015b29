package publisher

import (
	"time"

	"github.com/okian/exposurerisk/pkg/logger"
)

// Option configures a KafkaPublisher.
type Option func(*KafkaPublisher)

// WithLogger sets the publisher logger.
func WithLogger(l logger.Logger) Option {
	return func(p *KafkaPublisher) {
		if l != nil {
			p.log = l
		}
	}
}

// WithWriter replaces the kafka-go writer, mainly for tests.
func WithWriter(w MessageWriter) Option {
	return func(p *KafkaPublisher) {
		if w != nil {
			p.writer = w
		}
	}
}

// WithBatchTimeout sets how long the writer waits to fill a batch.
func WithBatchTimeout(d time.Duration) Option {
	return func(p *KafkaPublisher) {
		if d > 0 {
			p.batchTimeout = d
		}
	}
}
