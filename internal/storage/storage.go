package storage

import (
	"context"
	"errors"
)

var (
	ErrDuplicateEventID   = errors.New("event with same ID exists")
	ErrNotFoundEvent      = errors.New("event not found")
	ErrIncorrectEventTime = errors.New("incorrect event time")
	ErrEmptyField         = errors.New("required field is empty")
	ErrAlreadyJoined      = errors.New("user already joined the event")
	ErrNotFoundUser       = errors.New("user not found")
	ErrDuplicateEmail     = errors.New("user with same email exists")
)

type Storage interface {
	Connect(ctx context.Context) error
	Close(ctx context.Context) error

	AddEvent(ctx context.Context, e *Event) error
	GetEvent(ctx context.Context, id string) (Event, error)
	ListEvents(ctx context.Context) ([]Event, error)
	// UpdateEvent merges the patch and returns the stored post-update event.
	UpdateEvent(ctx context.Context, id string, u EventUpdate) (Event, error)
	RemoveEvent(ctx context.Context, id string) error
	// AddAttendee appends userID to the event's attendee list and recomputes
	// the count in the same committed write. Appending a user that is already
	// present fails with ErrAlreadyJoined and changes nothing.
	AddAttendee(ctx context.Context, eventID string, userID string) (Event, error)

	AddUser(ctx context.Context, u *User) error
	GetUser(ctx context.Context, id string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
}
