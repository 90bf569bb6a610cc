package queue

import (
	"context"
	"fmt"
	"sync"
)

const memoryCapacity = 256

type memoryItem struct {
	body        []byte
	redelivered bool
}

// Memory is an in-process broker with AMQP-like redelivery marking.
// Tests use it to drive the worker without a running broker.
type Memory struct {
	mu     sync.Mutex
	items  chan memoryItem
	closed bool
}

func NewMemory() *Memory {
	return &Memory{items: make(chan memoryItem, memoryCapacity)}
}

func (m *Memory) Enqueue(ctx context.Context, body []byte) error {
	buf := make([]byte, len(body))
	copy(buf, body)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return fmt.Errorf("queue is closed")
	}
	select {
	case m.items <- memoryItem{body: buf}:
		return nil
	default:
		return fmt.Errorf("queue is full")
	}
}

func (m *Memory) requeue(body []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return fmt.Errorf("queue is closed")
	}
	select {
	case m.items <- memoryItem{body: body, redelivered: true}:
		return nil
	default:
		return fmt.Errorf("queue is full")
	}
}

func (m *Memory) Consume(ctx context.Context) (<-chan Delivery, error) {
	out := make(chan Delivery)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case item, ok := <-m.items:
				if !ok {
					return
				}
				delivery := Delivery{
					Body:        item.body,
					Redelivered: item.redelivered,
					nack: func(requeue bool) error {
						if !requeue {
							return nil
						}
						return m.requeue(item.body)
					},
				}
				select {
				case out <- delivery:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.items)
	}
	return nil
}
