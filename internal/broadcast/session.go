package broadcast

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

const (
	outboxSize   = 32
	writeTimeout = 10 * time.Second
)

// Session is one connected client of the broadcast channel. UserID is empty
// for anonymous read-only viewers.
type Session struct {
	ID     string
	UserID string

	conn *websocket.Conn
	out  chan []byte
}

func NewSession(conn *websocket.Conn, userID string) *Session {
	return &Session{
		ID:     uuid.NewString(),
		UserID: userID,
		conn:   conn,
		out:    make(chan []byte, outboxSize),
	}
}

// SubscribeFunc is called after the session has been added to a room, with
// the session and the subscribed event id.
type SubscribeFunc func(s *Session, eventID string)

// Run pumps the session until the connection drops or ctx is cancelled. The
// session must already be registered with the hub; Run unregisters it on the
// way out. Outbound messages are written by a single goroutine in the order
// they were queued, so per-recipient emission order is preserved.
func (s *Session) Run(ctx context.Context, hub *Hub, onSubscribe SubscribeFunc) {
	done := make(chan struct{})
	defer close(done)
	defer hub.Unregister(s.ID)
	defer s.conn.Close()

	go func() {
		for data := range s.out {
			s.conn.SetWriteDeadline(time.Now().Add(writeTimeout)) //nolint:errcheck
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.WithField("session", s.ID).Debugf("write failed: %v", err)
				return
			}
		}
		s.conn.WriteMessage( //nolint:errcheck
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		s.conn.Close()
	}()

	go func() {
		select {
		case <-ctx.Done():
			s.conn.Close()
		case <-done:
		}
	}()

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			log.WithField("session", s.ID).Debugf("session closed: %v", err)
			return
		}
		s.handleInbound(hub, data, onSubscribe)
	}
}

func (s *Session) handleInbound(hub *Hub, data []byte, onSubscribe SubscribeFunc) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.WithField("session", s.ID).Warnf("unreadable message: %v", err)
		return
	}
	switch env.Type {
	case TypeJoinRoom:
		var eventID string
		if err := json.Unmarshal(env.Payload, &eventID); err != nil || eventID == "" {
			log.WithField("session", s.ID).Warn("join_event without event id")
			return
		}
		hub.Subscribe(s.ID, eventID)
		if onSubscribe != nil {
			onSubscribe(s, eventID)
		}
	default:
		log.WithField("session", s.ID).Warnf("unknown message type %q", env.Type)
	}
}
