package broadcast

import (
	"encoding/json"
	"fmt"

	"github.com/gatherly/gatherly/internal/storage"
)

// Wire names of the server→client notifications and the client→server room
// subscription request.
const (
	TypeCreated        = "new_event"
	TypeUpdated        = "event_updated"
	TypeAttendeeJoined = "attendee_joined"
	TypeDeleted        = "event_deleted"
	TypeJoinRoom       = "join_event"
)

// Notification describes one committed mutation of the event collection.
// Exactly one value is emitted per successful mutation and it is never
// modified after emission.
type Notification interface {
	Type() string
	EventID() string
	payload() any
}

type Created struct {
	Event storage.Event
}

func (n Created) Type() string    { return TypeCreated }
func (n Created) EventID() string { return n.Event.ID }
func (n Created) payload() any    { return n.Event }

type Updated struct {
	Event storage.Event
}

func (n Updated) Type() string    { return TypeUpdated }
func (n Updated) EventID() string { return n.Event.ID }
func (n Updated) payload() any    { return n.Event }

type AttendeeJoined struct {
	ID             string
	AttendeesCount int
}

type attendeeJoinedPayload struct {
	EventID        string `json:"eventId"`
	AttendeesCount int    `json:"attendeesCount"`
}

func (n AttendeeJoined) Type() string    { return TypeAttendeeJoined }
func (n AttendeeJoined) EventID() string { return n.ID }
func (n AttendeeJoined) payload() any {
	return attendeeJoinedPayload{EventID: n.ID, AttendeesCount: n.AttendeesCount}
}

type Deleted struct {
	ID string
}

func (n Deleted) Type() string    { return TypeDeleted }
func (n Deleted) EventID() string { return n.ID }
func (n Deleted) payload() any    { return n.ID }

type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Encode wraps the notification into its wire envelope.
func Encode(n Notification) ([]byte, error) {
	payload, err := json.Marshal(n.payload())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", n.Type(), err)
	}
	return json.Marshal(envelope{Type: n.Type(), Payload: payload})
}

// Decode parses a wire envelope back into a typed notification.
func Decode(data []byte) (Notification, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to unmarshal envelope: %w", err)
	}
	switch env.Type {
	case TypeCreated:
		var e storage.Event
		if err := json.Unmarshal(env.Payload, &e); err != nil {
			return nil, fmt.Errorf("failed to unmarshal %s payload: %w", env.Type, err)
		}
		return Created{Event: e}, nil
	case TypeUpdated:
		var e storage.Event
		if err := json.Unmarshal(env.Payload, &e); err != nil {
			return nil, fmt.Errorf("failed to unmarshal %s payload: %w", env.Type, err)
		}
		return Updated{Event: e}, nil
	case TypeAttendeeJoined:
		var p attendeeJoinedPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return nil, fmt.Errorf("failed to unmarshal %s payload: %w", env.Type, err)
		}
		return AttendeeJoined{ID: p.EventID, AttendeesCount: p.AttendeesCount}, nil
	case TypeDeleted:
		var id string
		if err := json.Unmarshal(env.Payload, &id); err != nil {
			return nil, fmt.Errorf("failed to unmarshal %s payload: %w", env.Type, err)
		}
		return Deleted{ID: id}, nil
	default:
		return nil, fmt.Errorf("unknown notification type %q", env.Type)
	}
}

// EncodeJoinRoom builds the client→server room subscription request.
func EncodeJoinRoom(eventID string) ([]byte, error) {
	payload, err := json.Marshal(eventID)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{Type: TypeJoinRoom, Payload: payload})
}
