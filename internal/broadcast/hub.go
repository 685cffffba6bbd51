package broadcast

import (
	"sync"

	log "github.com/sirupsen/logrus"
)

// Hub holds the live session set and the room registry. It is created once
// at server startup and shared by reference with the request handlers; rooms
// and subscriptions live exactly as long as their sessions.
type Hub struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	rooms    map[string]map[string]struct{}
}

func NewHub() *Hub {
	return &Hub{
		sessions: make(map[string]*Session),
		rooms:    make(map[string]map[string]struct{}),
	}
}

func (h *Hub) Register(s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sessions[s.ID] = s
}

// Unregister removes the session from the hub and from every room it was
// subscribed to, dropping rooms that become empty.
func (h *Hub) Unregister(sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.sessions[sessionID]
	if !ok {
		return
	}
	delete(h.sessions, sessionID)
	close(s.out)
	for eventID, members := range h.rooms {
		delete(members, sessionID)
		if len(members) == 0 {
			delete(h.rooms, eventID)
		}
	}
}

// Subscribe adds the session to the event's room, creating the room if
// absent. Subscribing twice is a no-op.
func (h *Hub) Subscribe(sessionID string, eventID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.sessions[sessionID]; !ok {
		return
	}
	members, ok := h.rooms[eventID]
	if !ok {
		members = make(map[string]struct{})
		h.rooms[eventID] = members
	}
	members[sessionID] = struct{}{}
}

// BroadcastAll delivers the notification to every connected session.
func (h *Hub) BroadcastAll(n Notification) {
	data, err := Encode(n)
	if err != nil {
		log.Errorf("failed to encode %s notification: %v", n.Type(), err)
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, s := range h.sessions {
		h.deliver(s, n.Type(), data)
	}
}

// BroadcastRoom delivers the notification only to sessions subscribed to the
// event's room.
func (h *Hub) BroadcastRoom(eventID string, n Notification) {
	data, err := Encode(n)
	if err != nil {
		log.Errorf("failed to encode %s notification: %v", n.Type(), err)
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for sessionID := range h.rooms[eventID] {
		if s, ok := h.sessions[sessionID]; ok {
			h.deliver(s, n.Type(), data)
		}
	}
}

// SendTo delivers the notification to a single session.
func (h *Hub) SendTo(sessionID string, n Notification) {
	data, err := Encode(n)
	if err != nil {
		log.Errorf("failed to encode %s notification: %v", n.Type(), err)
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if s, ok := h.sessions[sessionID]; ok {
		h.deliver(s, n.Type(), data)
	}
}

// deliver pushes onto the session's outbox without blocking the publisher.
// A full outbox means the session is too slow; the message is dropped and the
// session reconciles on its next full refetch.
func (h *Hub) deliver(s *Session, kind string, data []byte) {
	select {
	case s.out <- data:
	default:
		log.WithField("session", s.ID).Warnf("outbox full, dropped %s notification", kind)
	}
}

// CloseAll disconnects every session; used on server shutdown.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, s := range h.sessions {
		delete(h.sessions, id)
		close(s.out)
	}
	h.rooms = make(map[string]map[string]struct{})
}
