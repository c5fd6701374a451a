package wsgw

import (
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/alanyoungcy/natsgw/internal/domain"
	"github.com/gorilla/websocket"
)

const (
	// writeWait bounds a single WebSocket frame write.
	writeWait = 10 * time.Second
	// pongWait bounds how long we wait for a pong before considering the
	// connection dead.
	pongWait = 60 * time.Second
	// pingPeriod sends pings at this interval; must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
	// maxMessageSize bounds an incoming control frame.
	maxMessageSize = 4096
	// sendBufferSize is the per-connection outbound channel buffer.
	sendBufferSize = 64
)

// controlMessage is the decoded shape of an inbound WebSocket control frame.
type controlMessage struct {
	Action   string   `json:"action"`
	Subject  string   `json:"subject"`
	Subjects []string `json:"subjects"`
	UUID     string   `json:"uuid"`
	Event    string   `json:"event"`
}

// Session is one accepted WebSocket connection: its identity (Client), the
// underlying transport, and the outbound mailbox that the Fan-out
// Dispatcher and the session's own error replies write into. Only
// writePump ever writes to conn, keeping per-client delivery serialized.
type Session struct {
	Client *domain.Client
	conn   *websocket.Conn
	send   chan []byte
	gw     *Gateway
	logger *slog.Logger
}

func newSession(gw *Gateway, conn *websocket.Conn, client *domain.Client) *Session {
	return &Session{
		Client: client,
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		gw:     gw,
		logger: gw.logger.With(slog.String("client", client.Label())),
	}
}

// TrySend enqueues data for delivery within timeout. It returns false if the
// session's mailbox stays full for the whole window, meaning the connection
// is too slow; the message is then abandoned for this client only.
func (s *Session) TrySend(data []byte, timeout time.Duration) bool {
	select {
	case s.send <- data:
		return true
	case <-time.After(timeout):
		return false
	}
}

// readLoop is the single cooperative reader for this connection. It runs
// until the connection errors or closes, then performs the disconnect
// sweep. ACTIVE is the only state in which subscribe/unsubscribe actions
// are accepted; CLEANUP (the deferred block) is the only state in which
// bulk STOP publishes may be emitted.
func (s *Session) readLoop() {
	defer s.gw.handleDisconnect(s)
	defer s.conn.Close()

	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("unexpected close", slog.String("error", err.Error()))
			}
			return
		}
		s.handleFrame(raw)
	}
}

// decodeControlMessage parses raw into a controlMessage, distinguishing a
// JSON syntax error (ErrInvalidJSON) from syntactically valid JSON that
// isn't an object, or an object that doesn't match the control message
// shape (both ErrInvalidPayload).
func decodeControlMessage(raw []byte) (controlMessage, error) {
	var probe any
	if err := json.Unmarshal(raw, &probe); err != nil {
		return controlMessage{}, domain.ErrInvalidJSON
	}
	if _, ok := probe.(map[string]any); !ok {
		return controlMessage{}, domain.ErrInvalidPayload
	}

	var msg controlMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return controlMessage{}, domain.ErrInvalidPayload
	}
	return msg, nil
}

// handleFrame decodes and dispatches one control frame. Errors are reported
// back to the client via an error frame; the connection is never closed for
// a protocol error.
func (s *Session) handleFrame(raw []byte) {
	msg, err := decodeControlMessage(raw)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidJSON) {
			s.sendError(err, "frame is not valid JSON")
		} else {
			s.sendError(err, "frame must be a JSON object matching the control message shape")
		}
		return
	}

	switch msg.Action {
	case "subscribe":
		s.gw.subscribe(s, msg)
	case "subscribe_many":
		s.gw.subscribeMany(s, msg)
	case "unsubscribe":
		s.gw.unsubscribe(s, msg)
	case "unsubscribe_many":
		s.gw.unsubscribeMany(s, msg)
	default:
		s.sendError(domain.ErrUnknownAction, "unknown action: "+msg.Action)
	}
}

// sendError reports a protocol or validation error back to the client,
// mapping err to its wire code via domain.CodeFor.
func (s *Session) sendError(err error, message string) {
	frame := domain.NewErrorFrame(domain.CodeFor(err), message)
	data, err := json.Marshal(frame)
	if err != nil {
		s.logger.Error("failed to encode error frame", slog.String("error", err.Error()))
		return
	}
	select {
	case s.send <- data:
	default:
		s.logger.Warn("dropping error frame, mailbox full")
	}
}

// writePump is the single writer for this connection: it drains the
// outbound mailbox and sends periodic pings, guaranteeing in-order,
// serialized delivery to this client regardless of how many goroutines
// call TrySend concurrently.
func (s *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case data, ok := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
