package wsgw

import (
	"testing"
	"time"

	"github.com/alanyoungcy/natsgw/internal/domain"
)

func TestDispatcherDropsSlowClientButDeliversOthers(t *testing.T) {
	gw, reg, _ := newTestGateway()
	dispatcher := NewDispatcher(gw, reg, testLogger())

	fastClient := domain.NewClient("127.0.0.1:1")
	slowClient := domain.NewClient("127.0.0.1:2")

	fastSession := newSession(gw, nil, fastClient)
	slowSession := newSession(gw, nil, slowClient)
	// Fill the slow client's mailbox so TrySend can never enqueue within the
	// dispatcher's send timeout.
	for i := 0; i < sendBufferSize; i++ {
		slowSession.send <- []byte("x")
	}

	gw.mu.Lock()
	gw.sessions[fastClient] = fastSession
	gw.sessions[slowClient] = slowSession
	gw.mu.Unlock()

	reg.RegisterClient(fastClient)
	reg.RegisterClient(slowClient)
	reg.AddSubscription("room.3", fastClient)
	reg.AddSubscription("room.3", slowClient)

	start := time.Now()
	dispatcher.HandleBusMessage("room.3", []byte(`{"hello":"world"}`))
	elapsed := time.Since(start)

	if elapsed > sendTimeout+500*time.Millisecond {
		t.Fatalf("expected HandleBusMessage to return near sendTimeout, took %v", elapsed)
	}

	select {
	case msg := <-fastSession.send:
		if len(msg) == 0 {
			t.Fatal("expected a non-empty envelope delivered to the fast client")
		}
	default:
		t.Fatal("expected the fast client to receive the fan-out message")
	}
}

func TestDispatcherNoSubscribersIsNoop(t *testing.T) {
	gw, reg, _ := newTestGateway()
	dispatcher := NewDispatcher(gw, reg, testLogger())

	// Must not panic or block when nobody is subscribed.
	dispatcher.HandleBusMessage("nobody.listening", []byte("irrelevant"))
}
