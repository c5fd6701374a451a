// Package wsgw implements the WebSocket-facing half of the gateway: the
// per-connection Session Handler and the Fan-out Dispatcher, built on a
// Hub/client pattern.
package wsgw

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/alanyoungcy/natsgw/internal/bus"
	"github.com/alanyoungcy/natsgw/internal/domain"
	"github.com/alanyoungcy/natsgw/internal/heartbeat"
	"github.com/alanyoungcy/natsgw/internal/registry"
	"github.com/gorilla/websocket"
)

// upgrader mirrors the hub.go upgrader: permissive origin check since this
// gateway has no auth concept, buffer sizes sized for small control frames.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Gateway owns the accept loop and wires every accepted connection to the
// Subscription Registry, Bus Subscription Manager, and Heartbeat Controller.
// It also tracks the live Session for each registered Client so the Fan-out
// Dispatcher can deliver to a registry snapshot.
type Gateway struct {
	registry  *registry.Registry
	manager   *bus.Manager
	heartbeat *heartbeat.Controller
	logger    *slog.Logger

	heartbeatEventName string

	mu       sync.Mutex
	sessions map[*domain.Client]*Session
}

// NewGateway wires a Gateway to its three control-plane collaborators.
func NewGateway(reg *registry.Registry, mgr *bus.Manager, hb *heartbeat.Controller, heartbeatEventName string, logger *slog.Logger) *Gateway {
	return &Gateway{
		registry:           reg,
		manager:            mgr,
		heartbeat:          hb,
		heartbeatEventName: heartbeatEventName,
		logger:             logger.With(slog.String("component", "wsgw.gateway")),
		sessions:           make(map[*domain.Client]*Session),
	}
}

// HandleWS upgrades the HTTP request to a WebSocket connection, registers a
// fresh Client and Session, and starts the connection's read/write pumps.
func (g *Gateway) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Warn("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}

	client := domain.NewClient(r.RemoteAddr)
	session := newSession(g, conn, client)

	g.registry.RegisterClient(client)

	g.mu.Lock()
	g.sessions[client] = session
	g.mu.Unlock()

	g.logger.Info("client connected", slog.String("client", client.Label()))

	go session.writePump()
	session.readLoop()
}

// sessionFor returns the live Session for a Client handle returned from a
// registry snapshot, used by the Fan-out Dispatcher to deliver.
func (g *Gateway) sessionFor(c *domain.Client) (*Session, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	s, ok := g.sessions[c]
	return s, ok
}

// handleDisconnect performs the disconnect sweep: remove the client from
// the registry, stop the upstream subscription for every subject it was
// the last subscriber of, and emit heartbeat STOPs for the subjects that
// emptied.
func (g *Gateway) handleDisconnect(s *Session) {
	g.mu.Lock()
	delete(g.sessions, s.Client)
	g.mu.Unlock()

	removedSubjects, emptiedSubjects := g.registry.RemoveClient(s.Client)
	ctx := context.Background()

	for _, subject := range removedSubjects {
		g.manager.Stop(subject)
	}
	for _, subject := range emptiedSubjects {
		g.heartbeat.OnEmpty(ctx, subject)
	}

	g.logger.Info("client disconnected",
		slog.String("client", s.Client.Label()),
		slog.Int("subjects_removed", len(removedSubjects)),
	)
}

// subscribe implements the single-subject subscribe action.
func (g *Gateway) subscribe(s *Session, msg controlMessage) {
	subject := strings.TrimSpace(msg.Subject)
	if subject == "" {
		s.sendError(domain.ErrInvalidSubject, "subject must be a non-empty string")
		return
	}
	g.doSubscribe(s, subject, msg.UUID, msg.Event)
}

// doSubscribe runs the add_subscription -> manager.Start -> heartbeat
// sequence for one subject. It is shared by subscribe and subscribe_many.
func (g *Gateway) doSubscribe(s *Session, subject, uuid, event string) {
	ctx := context.Background()

	added := g.registry.AddSubscription(subject, s.Client)
	if added {
		if err := g.manager.Start(ctx, subject); err != nil {
			g.registry.RemoveSubscription(subject, s.Client)
			g.logger.Warn("upstream subscribe failed",
				slog.String("subject", subject),
				slog.String("client", s.Client.Label()),
				slog.String("error", err.Error()),
			)
			s.sendError(err, "failed to activate upstream subscription for "+subject)
			return
		}
	}

	req := domain.SubscribeRequest{Subject: subject, UUID: uuid, Event: event}
	if req.IsHeartbeatFlavored(g.heartbeatEventName) {
		// A duplicate subscribe to an already-active subject still drives the
		// heartbeat transition when heartbeat-flavored, not only the first
		// subscribe for that (subject, client) pair.
		g.heartbeat.OnSubscribe(ctx, subject, uuid)
	}
}

// subscribeMany implements the bulk subscribe action: it reconciles the
// client's subscription set with the requested set, subscribing to new
// subjects and unsubscribing from ones no longer listed, each through the
// same sequence single subscribe/unsubscribe calls use.
func (g *Gateway) subscribeMany(s *Session, msg controlMessage) {
	if msg.Subjects == nil {
		s.sendError(domain.ErrInvalidSubjects, "subjects must be a list of strings")
		return
	}
	wanted := dedupSubjects(msg.Subjects)
	wantedSet := make(map[string]struct{}, len(wanted))
	for _, subject := range wanted {
		wantedSet[subject] = struct{}{}
	}

	for _, subject := range g.registry.SubjectsForClient(s.Client) {
		if _, keep := wantedSet[subject]; !keep {
			g.doUnsubscribe(s, subject)
		}
	}
	for _, subject := range wanted {
		g.doSubscribe(s, subject, msg.UUID, msg.Event)
	}
}

// unsubscribe implements the single-subject unsubscribe action.
func (g *Gateway) unsubscribe(s *Session, msg controlMessage) {
	subject := strings.TrimSpace(msg.Subject)
	if subject == "" {
		s.sendError(domain.ErrInvalidSubject, "subject must be a non-empty string")
		return
	}
	g.doUnsubscribe(s, subject)
}

// doUnsubscribe runs the remove_subscription -> manager.Stop -> heartbeat
// STOP sequence for one subject.
func (g *Gateway) doUnsubscribe(s *Session, subject string) {
	removed, emptied := g.registry.RemoveSubscription(subject, s.Client)
	if !removed {
		return
	}
	g.manager.Stop(subject)
	if emptied {
		g.heartbeat.OnEmpty(context.Background(), subject)
	}
}

// unsubscribeMany implements the bulk unsubscribe action.
func (g *Gateway) unsubscribeMany(s *Session, msg controlMessage) {
	if msg.Subjects == nil {
		s.sendError(domain.ErrInvalidSubjects, "subjects must be a list of strings")
		return
	}
	for _, subject := range dedupSubjects(msg.Subjects) {
		g.doUnsubscribe(s, subject)
	}
}

// dedupSubjects trims and de-duplicates a client-supplied subject list,
// dropping empty entries.
func dedupSubjects(raw []string) []string {
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, subject := range raw {
		subject = strings.TrimSpace(subject)
		if subject == "" {
			continue
		}
		if _, ok := seen[subject]; ok {
			continue
		}
		seen[subject] = struct{}{}
		out = append(out, subject)
	}
	return out
}
