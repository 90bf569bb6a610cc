package queue

import (
	"context"
	"fmt"

	"clipforge/internal/config"
)

// Delivery carries one dequeued job payload. Ack removes the message
// from the queue; Nack with requeue hands it to another consumer.
type Delivery struct {
	Body        []byte
	Redelivered bool

	ack  func() error
	nack func(requeue bool) error
}

// Ack marks the delivery as processed.
func (d *Delivery) Ack() error {
	if d.ack == nil {
		return nil
	}
	return d.ack()
}

// Nack returns the delivery to the broker. With requeue false the
// message is dropped.
func (d *Delivery) Nack(requeue bool) error {
	if d.nack == nil {
		return nil
	}
	return d.nack(requeue)
}

// Broker is the transport between job submission and job execution.
type Broker interface {
	// Enqueue appends a payload to the queue.
	Enqueue(ctx context.Context, body []byte) error
	// Consume starts delivering payloads until the context ends. The
	// returned channel closes when consumption stops.
	Consume(ctx context.Context) (<-chan Delivery, error)
	// Close releases the broker connection.
	Close() error
}

// FromConfig builds the broker named by the configuration. Backend
// "none" has no broker; submissions execute inline instead.
func FromConfig(cfg *config.Config) (Broker, error) {
	switch cfg.Queue.Backend {
	case config.QueueBackendAMQP:
		return NewAMQPBroker(cfg.Queue.URL, cfg.Queue.Name)
	case config.QueueBackendRedis:
		return NewRedisBroker(cfg.Queue.URL, cfg.Queue.Name)
	case config.QueueBackendNone:
		return nil, fmt.Errorf("queue backend: dispatch is inline when backend is %q", config.QueueBackendNone)
	default:
		return nil, fmt.Errorf("queue backend: unsupported value %q", cfg.Queue.Backend)
	}
}
