// Package bus owns the reference-counted lifecycle of upstream subject-bus
// subscriptions. It is backend-agnostic: concrete transports (NATS, Redis)
// implement the Upstream interface in the natsbus and redisbus subpackages.
package bus

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/alanyoungcy/natsgw/internal/domain"
)

// MessageHandler is invoked for every message delivered on an active
// upstream subscription.
type MessageHandler func(subject string, payload []byte)

// Upstream is the narrow interface the Bus Subscription Manager needs from a
// concrete bus client. Implementations live in natsbus and redisbus.
type Upstream interface {
	// Subscribe creates a subscription bound to handler and returns a handle
	// that Unsubscribe can later tear down. It must not block longer than
	// the implementation's own connect/subscribe timeout.
	Subscribe(ctx context.Context, subject string, handler MessageHandler) (UpstreamHandle, error)
	// Publish sends payload on subject.
	Publish(ctx context.Context, subject string, payload []byte) error
}

// UpstreamHandle represents one live upstream subscription.
type UpstreamHandle interface {
	Unsubscribe(ctx context.Context) error
}

// Manager is the reference-counted owner of upstream bus subscriptions: it
// starts a subscription on the 0->1 transition of a subject's refcount and
// tears it down on the 1->0 transition.
type Manager struct {
	mu       sync.Mutex
	upstream Upstream
	handler  MessageHandler
	logger   *slog.Logger

	subs      map[string]UpstreamHandle
	refcounts map[string]int
}

// NewManager creates a Manager bound to upstream. handler is invoked for
// every message received on any subject this Manager activates.
func NewManager(upstream Upstream, handler MessageHandler, logger *slog.Logger) *Manager {
	return &Manager{
		upstream:  upstream,
		handler:   handler,
		logger:    logger.With(slog.String("component", "bus.manager")),
		subs:      make(map[string]UpstreamHandle),
		refcounts: make(map[string]int),
	}
}

// Start increments subject's refcount. On the 0->1 transition it creates the
// upstream subscription synchronously; on failure the refcount increment is
// rolled back and ErrUpstreamSubscribeFailed is returned. The manager mutex
// is held for the full call, including the upstream Subscribe round-trip, so
// concurrent Starts for the same subject are fully serialized: a second
// caller can never observe a refcount raised by a 0->1 Subscribe that hasn't
// finished (and possibly rolled back) yet.
func (m *Manager) Start(ctx context.Context, subject string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	current := m.refcounts[subject]
	next := current + 1
	m.refcounts[subject] = next

	if current > 0 {
		m.logger.Debug("refcount incremented", slog.String("subject", subject), slog.Int("refs", next))
		return nil
	}

	handle, err := m.upstream.Subscribe(ctx, subject, m.handler)
	if err != nil {
		m.refcounts[subject]--
		if m.refcounts[subject] <= 0 {
			delete(m.refcounts, subject)
		}
		m.logger.Error("upstream subscribe failed", slog.String("subject", subject), slog.String("error", err.Error()))
		return fmt.Errorf("bus: subscribe %s: %w: %w", subject, domain.ErrUpstreamSubscribeFailed, err)
	}

	m.subs[subject] = handle
	total := len(m.subs)
	m.logger.Info("subject active", slog.String("subject", subject), slog.Int("total_subjects", total))
	return nil
}

// Stop decrements subject's refcount. On the 1->0 transition the upstream
// handle is removed from the manager's state synchronously and torn down
// asynchronously so the caller is never blocked on a network round-trip.
// Stops for unknown subjects are ignored: they may arrive during a
// disconnect-sweep race.
func (m *Manager) Stop(subject string) {
	m.mu.Lock()
	current, ok := m.refcounts[subject]
	if !ok || current == 0 {
		m.mu.Unlock()
		m.logger.Debug("stop skipped, no refs", slog.String("subject", subject))
		return
	}

	next := current - 1
	if next > 0 {
		m.refcounts[subject] = next
		m.mu.Unlock()
		m.logger.Debug("refcount decremented", slog.String("subject", subject), slog.Int("refs", next))
		return
	}

	delete(m.refcounts, subject)
	handle, ok := m.subs[subject]
	delete(m.subs, subject)
	total := len(m.subs)
	m.mu.Unlock()

	if !ok {
		m.logger.Warn("missing upstream handle for subject", slog.String("subject", subject))
		return
	}

	m.logger.Info("subject inactive", slog.String("subject", subject), slog.Int("total_subjects", total))

	go func() {
		ctx := context.Background()
		if err := handle.Unsubscribe(ctx); err != nil {
			m.logger.Warn("upstream unsubscribe failed", slog.String("subject", subject), slog.String("error", err.Error()))
		}
	}()
}

// StopAll tears down every active upstream subscription. Safe to call once
// during shutdown.
func (m *Manager) StopAll(ctx context.Context) {
	m.mu.Lock()
	toStop := m.subs
	m.subs = make(map[string]UpstreamHandle)
	m.refcounts = make(map[string]int)
	m.mu.Unlock()

	if len(toStop) == 0 {
		return
	}

	m.logger.Info("stopping active subscriptions", slog.Int("count", len(toStop)))
	for subject, handle := range toStop {
		if err := handle.Unsubscribe(ctx); err != nil {
			m.logger.Warn("unsubscribe during shutdown failed", slog.String("subject", subject), slog.String("error", err.Error()))
			continue
		}
		m.logger.Info("unsubscribed during shutdown", slog.String("subject", subject))
	}
}

// Publish sends payload on subject via the upstream bus. Failures are
// returned to the caller, who is responsible for logging/dropping per the
// calling component's error policy.
func (m *Manager) Publish(ctx context.Context, subject string, payload []byte) error {
	return m.upstream.Publish(ctx, subject, payload)
}

// RefCount returns the current refcount for subject (0 if unknown).
func (m *Manager) RefCount(subject string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.refcounts[subject]
}

// ActiveSubjectCount returns the number of subjects with an active upstream
// subscription.
func (m *Manager) ActiveSubjectCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subs)
}
