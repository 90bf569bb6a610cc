package queue

import (
	"context"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

// AMQPBroker publishes and consumes through a RabbitMQ-compatible
// broker. The queue name doubles as exchange and routing key so a
// single declaration covers both sides.
type AMQPBroker struct {
	mu   sync.Mutex
	conn *amqp.Connection
	name string
}

// NewAMQPBroker dials the broker and validates the connection.
func NewAMQPBroker(url, name string) (*AMQPBroker, error) {
	if name == "" {
		return nil, fmt.Errorf("amqp queue name is required")
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial amqp broker: %w", err)
	}
	return &AMQPBroker{conn: conn, name: name}, nil
}

func (b *AMQPBroker) connected() bool {
	return b.conn != nil && !b.conn.IsClosed()
}

// Ping reports whether the dialed connection is still open.
func (b *AMQPBroker) Ping(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.connected() {
		return fmt.Errorf("amqp connection is not available")
	}
	return nil
}

func (b *AMQPBroker) declare(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(b.name, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}
	q, err := ch.QueueDeclare(b.name, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}
	if err := ch.QueueBind(q.Name, b.name, b.name, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}
	return nil
}

// Enqueue publishes in confirm mode so a nil return means the broker
// accepted the message.
func (b *AMQPBroker) Enqueue(ctx context.Context, body []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.connected() {
		return fmt.Errorf("amqp connection is not available")
	}

	ch, err := b.conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer ch.Close()

	if err := b.declare(ch); err != nil {
		return err
	}
	if err := ch.Confirm(false); err != nil {
		return fmt.Errorf("enable confirm mode: %w", err)
	}
	confirms := ch.NotifyPublish(make(chan amqp.Confirmation, 1))

	err = ch.PublishWithContext(ctx, b.name, b.name, true, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish message: %w", err)
	}

	select {
	case confirmed, ok := <-confirms:
		if !ok {
			return fmt.Errorf("confirmation channel closed")
		}
		if !confirmed.Ack {
			return fmt.Errorf("broker rejected publish")
		}
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

// Consume delivers one message at a time. Prefetch stays at one so a
// slow transform never starves other workers.
func (b *AMQPBroker) Consume(ctx context.Context) (<-chan Delivery, error) {
	if !b.connected() {
		return nil, fmt.Errorf("amqp connection is not available")
	}

	ch, err := b.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := b.declare(ch); err != nil {
		ch.Close()
		return nil, err
	}
	if err := ch.Qos(1, 0, false); err != nil {
		ch.Close()
		return nil, fmt.Errorf("set qos: %w", err)
	}
	msgs, err := ch.Consume(b.name, "", false, false, false, false, nil)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("register consumer: %w", err)
	}

	out := make(chan Delivery)
	go func() {
		defer close(out)
		defer ch.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				delivery := Delivery{
					Body:        msg.Body,
					Redelivered: msg.Redelivered,
					ack:         func() error { return msg.Ack(false) },
					nack:        func(requeue bool) error { return msg.Nack(false, requeue) },
				}
				select {
				case out <- delivery:
				case <-ctx.Done():
					_ = msg.Nack(false, true)
					return
				}
			}
		}
	}()
	return out, nil
}

func (b *AMQPBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.connected() {
		return nil
	}
	if err := b.conn.Close(); err != nil {
		return fmt.Errorf("close amqp connection: %w", err)
	}
	return nil
}
