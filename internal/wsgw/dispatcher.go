package wsgw

import (
	"encoding/json"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/alanyoungcy/natsgw/internal/domain"
	"github.com/alanyoungcy/natsgw/internal/registry"
)

// sendTimeout bounds how long the Dispatcher waits to hand a message to one
// client's mailbox before abandoning it for that client.
const sendTimeout = 1 * time.Second

// Dispatcher is the Fan-out Dispatcher: the single inbound callback
// registered with the Bus Subscription Manager for every active upstream
// subscription. It snapshots the current subscriber set and delivers to
// each in parallel, bounded by sendTimeout per client.
type Dispatcher struct {
	gw       *Gateway
	registry *registry.Registry
	logger   *slog.Logger
}

// NewDispatcher creates a Dispatcher that delivers to sessions tracked by gw.
func NewDispatcher(gw *Gateway, reg *registry.Registry, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		gw:       gw,
		registry: reg,
		logger:   logger.With(slog.String("component", "wsgw.dispatcher")),
	}
}

// HandleBusMessage is the bus.MessageHandler passed to bus.NewManager. It is
// invoked on whatever goroutine the upstream transport delivers on; it never
// blocks on any one client longer than sendTimeout.
func (d *Dispatcher) HandleBusMessage(subject string, raw []byte) {
	subscribers := d.registry.SnapshotSubscribers(subject)
	if len(subscribers) == 0 {
		d.logger.Debug("no subscribers, dropping", slog.String("subject", subject))
		return
	}

	envelope := domain.BuildEnvelope(subject, raw)
	data, err := json.Marshal(envelope)
	if err != nil {
		d.logger.Error("failed to encode envelope, dropping message",
			slog.String("subject", subject),
			slog.String("error", err.Error()),
		)
		return
	}

	var delivered, failed int64
	done := make(chan struct{}, len(subscribers))

	for _, client := range subscribers {
		client := client
		go func() {
			defer func() { done <- struct{}{} }()

			session, ok := d.gw.sessionFor(client)
			if !ok {
				atomic.AddInt64(&failed, 1)
				return
			}
			if session.TrySend(data, sendTimeout) {
				atomic.AddInt64(&delivered, 1)
				return
			}
			atomic.AddInt64(&failed, 1)
			d.logger.Warn("send timed out, abandoning for this client",
				slog.String("subject", subject),
				slog.String("client", client.Label()),
			)
		}()
	}

	for range subscribers {
		<-done
	}

	d.logger.Debug("fan-out complete",
		slog.String("subject", subject),
		slog.Int64("delivered", delivered),
		slog.Int64("failed", failed),
	)
}
