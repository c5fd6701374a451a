// Package natsbus implements bus.Upstream on top of a NATS core connection.
// It is the default bus transport for the gateway.
package natsbus

import (
	"context"
	"fmt"
	"time"

	"github.com/alanyoungcy/natsgw/internal/bus"
	"github.com/nats-io/nats.go"
)

// Upstream wraps a *nats.Conn to satisfy bus.Upstream.
type Upstream struct {
	nc *nats.Conn
}

// Config holds connection parameters for the NATS client.
type Config struct {
	URL        string
	ClientName string
}

// Connect dials the NATS server at cfg.URL and returns a ready Upstream.
func Connect(cfg Config) (*Upstream, error) {
	nc, err := nats.Connect(cfg.URL,
		nats.Name(cfg.ClientName),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.Timeout(5*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("natsbus: connect %s: %w", cfg.URL, err)
	}
	return &Upstream{nc: nc}, nil
}

// Subscribe creates a NATS core subscription on subject, delivering every
// message to handler on the NATS client's dispatch goroutine.
func (u *Upstream) Subscribe(ctx context.Context, subject string, handler bus.MessageHandler) (bus.UpstreamHandle, error) {
	sub, err := u.nc.Subscribe(subject, func(msg *nats.Msg) {
		handler(msg.Subject, msg.Data)
	})
	if err != nil {
		return nil, fmt.Errorf("natsbus: subscribe %s: %w", subject, err)
	}
	return &handle{sub: sub}, nil
}

// Publish sends payload on subject.
func (u *Upstream) Publish(ctx context.Context, subject string, payload []byte) error {
	if err := u.nc.Publish(subject, payload); err != nil {
		return fmt.Errorf("natsbus: publish %s: %w", subject, err)
	}
	return nil
}

// Close drains and closes the underlying NATS connection.
func (u *Upstream) Close() {
	_ = u.nc.Drain()
}

type handle struct {
	sub *nats.Subscription
}

func (h *handle) Unsubscribe(ctx context.Context) error {
	if err := h.sub.Unsubscribe(); err != nil {
		return fmt.Errorf("natsbus: unsubscribe %s: %w", h.sub.Subject, err)
	}
	return nil
}
