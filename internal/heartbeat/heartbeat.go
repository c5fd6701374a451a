// Package heartbeat implements the device-heartbeat side-effect protocol:
// it tracks which subject currently owns a device's heartbeat binding and
// emits START/RELOAD/STOP control publishes at the right transitions.
//
// It deliberately has no dependency on the registry or bus manager; it
// learns about transitions only from return values the caller passes in,
// keeping device semantics out of subject parsing entirely.
package heartbeat

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/alanyoungcy/natsgw/internal/domain"
)

// Publisher is the narrow bus capability the Controller needs.
type Publisher interface {
	Publish(ctx context.Context, subject string, payload []byte) error
}

// Controller owns the subject->device heartbeat binding table.
type Controller struct {
	mu        sync.Mutex
	owner     map[string]string // subject -> device id
	publisher Publisher
	logger    *slog.Logger
}

// New creates a Controller that publishes control messages via publisher.
func New(publisher Publisher, logger *slog.Logger) *Controller {
	return &Controller{
		owner:     make(map[string]string),
		publisher: publisher,
		logger:    logger.With(slog.String("component", "heartbeat")),
	}
}

// OnSubscribe handles a heartbeat-flavored subscribe once the registry has
// recorded it and, for a newly added subscription, the upstream is active; a
// duplicate subscribe from an already-registered client lands here too. It
// binds, reloads, or rebinds the subject's device and emits the corresponding
// control publish.
func (c *Controller) OnSubscribe(ctx context.Context, subject, deviceID string) {
	c.mu.Lock()
	current, bound := c.owner[subject]
	var action domain.HeartbeatAction
	switch {
	case !bound:
		c.owner[subject] = deviceID
		action = domain.HeartbeatStart
	case current == deviceID:
		action = domain.HeartbeatReload
	default:
		c.logger.Warn("rebinding heartbeat subject to a different device",
			slog.String("subject", subject),
			slog.String("previous_device", current),
			slog.String("new_device", deviceID),
		)
		c.owner[subject] = deviceID
		action = domain.HeartbeatStart
	}
	c.mu.Unlock()

	c.publish(ctx, deviceID, action)
}

// OnEmpty handles a subject's transition to zero WebSocket subscribers. If a
// device was bound to that subject, the binding is dropped and a STOP is
// emitted for it.
func (c *Controller) OnEmpty(ctx context.Context, subject string) {
	c.mu.Lock()
	deviceID, bound := c.owner[subject]
	if bound {
		delete(c.owner, subject)
	}
	c.mu.Unlock()

	if !bound {
		return
	}
	c.publish(ctx, deviceID, domain.HeartbeatStop)
}

func (c *Controller) publish(ctx context.Context, deviceID string, action domain.HeartbeatAction) {
	payload, err := json.Marshal(domain.NewHeartbeatControlPayload(action))
	if err != nil {
		c.logger.Error("failed to encode heartbeat control payload",
			slog.String("device_id", deviceID),
			slog.String("action", string(action)),
			slog.String("error", err.Error()),
		)
		return
	}

	subject := domain.HeartbeatControlSubject(deviceID)
	if err := c.publisher.Publish(ctx, subject, payload); err != nil {
		c.logger.Warn("heartbeat control publish failed",
			slog.String("subject", subject),
			slog.String("action", string(action)),
			slog.String("error", err.Error()),
		)
		return
	}

	c.logger.Info("heartbeat control published",
		slog.String("device_id", deviceID),
		slog.String("action", string(action)),
	)
}

// BoundDevice returns the device currently bound to subject, if any. Used by
// the admin status surface.
func (c *Controller) BoundDevice(subject string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	d, ok := c.owner[subject]
	return d, ok
}

// ActiveBindings returns the number of subjects currently bound to a device,
// for the admin status surface.
func (c *Controller) ActiveBindings() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.owner)
}
