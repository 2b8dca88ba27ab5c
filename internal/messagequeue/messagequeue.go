// Package messagequeue publishes billing notifications to RabbitMQ.
package messagequeue

import "context"

// Publisher defines the interface for message queue publishing.
type Publisher interface {
	Publish(ctx context.Context, queueName string, body []byte) error
	Close() error
}
