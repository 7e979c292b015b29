package publisher

import "errors"

var (
	// ErrNoBrokers is returned when a Kafka publisher is built without brokers.
	ErrNoBrokers = errors.New("no kafka brokers configured")
	// ErrPublish wraps failures to encode or deliver a result.
	ErrPublish = errors.New("publish result")
)
