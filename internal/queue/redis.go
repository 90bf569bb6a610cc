package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisBroker keeps the queue in a Redis list. Delivery is at most
// once: a crash between pop and completion loses the message. Requeued
// messages carry a redelivery marker in a small envelope so the worker
// can break poison loops.
type RedisBroker struct {
	client *redis.Client
	name   string
}

// NewRedisBroker parses a redis:// URL and builds the client.
func NewRedisBroker(url, name string) (*RedisBroker, error) {
	if name == "" {
		return nil, fmt.Errorf("redis queue name is required")
	}
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return &RedisBroker{client: redis.NewClient(opt), name: name}, nil
}

// Ping verifies connectivity with a single round trip. The client
// itself dials lazily, so construction alone proves nothing.
func (b *RedisBroker) Ping(ctx context.Context) error {
	if err := b.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping redis broker: %w", err)
	}
	return nil
}

type redisEnvelope struct {
	Redelivered bool            `json:"redelivered"`
	Body        json.RawMessage `json:"body"`
}

func (b *RedisBroker) push(ctx context.Context, body []byte, redelivered bool) error {
	payload, err := json.Marshal(redisEnvelope{Redelivered: redelivered, Body: body})
	if err != nil {
		return fmt.Errorf("encode queue envelope: %w", err)
	}
	if err := b.client.LPush(ctx, b.name, payload).Err(); err != nil {
		return fmt.Errorf("push to queue %s: %w", b.name, err)
	}
	return nil
}

func (b *RedisBroker) Enqueue(ctx context.Context, body []byte) error {
	return b.push(ctx, body, false)
}

// decodeEnvelope tolerates raw payloads from producers that do not
// wrap messages.
func decodeEnvelope(raw []byte) ([]byte, bool) {
	var env redisEnvelope
	if err := json.Unmarshal(raw, &env); err == nil && len(env.Body) > 0 {
		return env.Body, env.Redelivered
	}
	return raw, false
}

func (b *RedisBroker) Consume(ctx context.Context) (<-chan Delivery, error) {
	out := make(chan Delivery)
	go func() {
		defer close(out)
		for {
			res, err := b.client.BRPop(ctx, 0, b.name).Result()
			if err != nil {
				if ctx.Err() != nil || errors.Is(err, redis.ErrClosed) {
					return
				}
				select {
				case <-ctx.Done():
					return
				case <-time.After(time.Second):
				}
				continue
			}
			if len(res) < 2 {
				continue
			}

			body, redelivered := decodeEnvelope([]byte(res[1]))
			delivery := Delivery{
				Body:        body,
				Redelivered: redelivered,
				nack: func(requeue bool) error {
					if !requeue {
						return nil
					}
					return b.push(context.WithoutCancel(ctx), body, true)
				},
			}
			select {
			case out <- delivery:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (b *RedisBroker) Close() error {
	return b.client.Close()
}
