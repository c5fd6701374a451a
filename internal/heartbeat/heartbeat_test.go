package heartbeat

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/alanyoungcy/natsgw/internal/domain"
)

type publishedMessage struct {
	subject string
	payload domain.HeartbeatControlPayload
}

type mockPublisher struct {
	mu        sync.Mutex
	published []publishedMessage
	failNext  bool
}

func (p *mockPublisher) Publish(ctx context.Context, subject string, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var decoded domain.HeartbeatControlPayload
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return err
	}
	p.published = append(p.published, publishedMessage{subject: subject, payload: decoded})
	return nil
}

func (p *mockPublisher) actions() []domain.HeartbeatAction {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.HeartbeatAction, len(p.published))
	for i, m := range p.published {
		out[i] = m.payload.Action
	}
	return out
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestOnSubscribeFirstBindEmitsStart(t *testing.T) {
	pub := &mockPublisher{}
	c := New(pub, testLogger())

	c.OnSubscribe(context.Background(), "s", "device-1")

	actions := pub.actions()
	if len(actions) != 1 || actions[0] != domain.HeartbeatStart {
		t.Fatalf("expected a single START_HEARTBEAT publish, got %v", actions)
	}
	if bound, ok := c.BoundDevice("s"); !ok || bound != "device-1" {
		t.Fatalf("expected device-1 bound to s, got %q ok=%v", bound, ok)
	}
}

func TestOnSubscribeSameDeviceEmitsReload(t *testing.T) {
	pub := &mockPublisher{}
	c := New(pub, testLogger())

	c.OnSubscribe(context.Background(), "s", "device-1")
	c.OnSubscribe(context.Background(), "s", "device-1")

	actions := pub.actions()
	if len(actions) != 2 || actions[1] != domain.HeartbeatReload {
		t.Fatalf("expected START then RELOAD, got %v", actions)
	}
}

func TestOnSubscribeDifferentDeviceRebinds(t *testing.T) {
	pub := &mockPublisher{}
	c := New(pub, testLogger())

	c.OnSubscribe(context.Background(), "s", "device-1")
	c.OnSubscribe(context.Background(), "s", "device-2")

	actions := pub.actions()
	if len(actions) != 2 || actions[0] != domain.HeartbeatStart || actions[1] != domain.HeartbeatStart {
		t.Fatalf("expected START for both the original and rebinding device, got %v", actions)
	}
	if bound, ok := c.BoundDevice("s"); !ok || bound != "device-2" {
		t.Fatalf("expected device-2 bound to s after rebind, got %q ok=%v", bound, ok)
	}
}

func TestOnEmptyEmitsStopAndClearsBinding(t *testing.T) {
	pub := &mockPublisher{}
	c := New(pub, testLogger())

	c.OnSubscribe(context.Background(), "s", "device-1")
	c.OnEmpty(context.Background(), "s")

	actions := pub.actions()
	if len(actions) != 2 || actions[1] != domain.HeartbeatStop {
		t.Fatalf("expected START then STOP, got %v", actions)
	}
	if _, ok := c.BoundDevice("s"); ok {
		t.Fatal("expected binding to be cleared after OnEmpty")
	}
	if got := c.ActiveBindings(); got != 0 {
		t.Errorf("expected 0 active bindings after OnEmpty, got %d", got)
	}
}

func TestOnEmptyUnboundSubjectIsNoop(t *testing.T) {
	pub := &mockPublisher{}
	c := New(pub, testLogger())

	c.OnEmpty(context.Background(), "never-bound")

	if len(pub.actions()) != 0 {
		t.Fatalf("expected no publish for an unbound subject, got %v", pub.actions())
	}
}

func TestHeartbeatSubjectIsPerDevice(t *testing.T) {
	pub := &mockPublisher{}
	c := New(pub, testLogger())

	c.OnSubscribe(context.Background(), "s", "device-7")

	pub.mu.Lock()
	defer pub.mu.Unlock()
	if len(pub.published) != 1 {
		t.Fatalf("expected one publish, got %d", len(pub.published))
	}
	want := domain.HeartbeatControlSubject("device-7")
	if got := pub.published[0].subject; got != want {
		t.Errorf("expected control subject %q, got %q", want, got)
	}
}
