// Package redisbus implements bus.Upstream on top of Redis Pub/Sub. It
// exists as an alternate bus transport for local/dev deployments that have
// a Redis instance but no NATS broker; selected via Config.NATS.Driver =
// "redis".
package redisbus

import (
	"context"
	"fmt"
	"strings"

	"github.com/alanyoungcy/natsgw/internal/bus"
	"github.com/redis/go-redis/v9"
)

// Upstream wraps a *redis.Client to satisfy bus.Upstream using Pub/Sub.
type Upstream struct {
	rdb *redis.Client
}

// Config holds connection parameters for the Redis client.
type Config struct {
	Addr       string
	Password   string
	DB         int
	PoolSize   int
	MaxRetries int
}

// Connect dials Redis and verifies connectivity with a Ping.
func Connect(ctx context.Context, cfg Config) (*Upstream, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:       cfg.Addr,
		Password:   cfg.Password,
		DB:         cfg.DB,
		PoolSize:   cfg.PoolSize,
		MaxRetries: cfg.MaxRetries,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redisbus: ping: %w", err)
	}
	return &Upstream{rdb: rdb}, nil
}

// Subscribe subscribes to a Redis Pub/Sub channel (pattern-subscribing when
// subject contains glob characters, matching NATS wildcard subjects as
// closely as Redis allows) and forwards every message to handler.
func (u *Upstream) Subscribe(ctx context.Context, subject string, handler bus.MessageHandler) (bus.UpstreamHandle, error) {
	var pubsub *redis.PubSub
	if hasPattern(subject) {
		pubsub = u.rdb.PSubscribe(ctx, subject)
	} else {
		pubsub = u.rdb.Subscribe(ctx, subject)
	}

	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("redisbus: subscribe %s: %w", subject, err)
	}

	done := make(chan struct{})
	go func() {
		ch := pubsub.Channel()
		for {
			select {
			case <-done:
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				handler(msg.Channel, []byte(msg.Payload))
			}
		}
	}()

	return &handle{pubsub: pubsub, done: done}, nil
}

// Publish sends payload on subject.
func (u *Upstream) Publish(ctx context.Context, subject string, payload []byte) error {
	if err := u.rdb.Publish(ctx, subject, payload).Err(); err != nil {
		return fmt.Errorf("redisbus: publish %s: %w", subject, err)
	}
	return nil
}

// Close closes the underlying Redis client.
func (u *Upstream) Close() error {
	return u.rdb.Close()
}

func hasPattern(subject string) bool {
	return strings.ContainsAny(subject, "*?[")
}

type handle struct {
	pubsub *redis.PubSub
	done   chan struct{}
}

func (h *handle) Unsubscribe(ctx context.Context) error {
	close(h.done)
	if err := h.pubsub.Close(); err != nil {
		return fmt.Errorf("redisbus: unsubscribe: %w", err)
	}
	return nil
}
