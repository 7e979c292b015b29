package worker

import (
	"github.com/okian/exposurerisk/internal/adapters/mq/publisher"
	"github.com/okian/exposurerisk/pkg/logger"
)

// Option applies a configuration option to the InMemoryWorker.
type Option func(*InMemoryWorker)

// WithName sets the worker name for identification and logging.
func WithName(name string) Option {
	return func(w *InMemoryWorker) {
		if name != "" {
			w.name = name
		}
	}
}

// WithLogger sets a custom logger for the worker.
func WithLogger(l logger.Logger) Option {
	return func(w *InMemoryWorker) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithPublisher forwards completed results to p.
func WithPublisher(p publisher.Publisher) Option {
	return func(w *InMemoryWorker) {
		if p != nil {
			w.publisher = p
		}
	}
}
