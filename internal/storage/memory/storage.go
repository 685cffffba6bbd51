package memorystorage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/gatherly/gatherly/internal/storage"
	"github.com/google/uuid"
)

type Storage struct {
	mu     sync.RWMutex
	events map[string]storage.Event
	users  map[string]storage.User
	emails map[string]string
}

func New() *Storage {
	return &Storage{
		events: make(map[string]storage.Event),
		users:  make(map[string]storage.User),
		emails: make(map[string]string),
	}
}

func (s *Storage) Connect(_ context.Context) error {
	return nil
}

func (s *Storage) Close(_ context.Context) error {
	return nil
}

func (s *Storage) AddEvent(_ context.Context, e *storage.Event) error {
	if err := e.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.events[e.ID]; ok {
		return fmt.Errorf("duplicate ID %q: %w", e.ID, storage.ErrDuplicateEventID)
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Attendees == nil {
		e.Attendees = []string{}
	}
	e.AttendeesCount = len(e.Attendees)
	s.events[e.ID] = copyEvent(*e)
	return nil
}

func (s *Storage) GetEvent(_ context.Context, id string) (storage.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.events[id]
	if !ok {
		return storage.Event{}, fmt.Errorf("failed to get event with id %q: %w", id, storage.ErrNotFoundEvent)
	}
	return copyEvent(e), nil
}

func (s *Storage) ListEvents(_ context.Context) ([]storage.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	events := make([]storage.Event, 0, len(s.events))
	for _, e := range s.events {
		events = append(events, copyEvent(e))
	}
	sort.Slice(events, func(i, j int) bool { return events[i].ID < events[j].ID })
	return events, nil
}

func (s *Storage) UpdateEvent(_ context.Context, id string, u storage.EventUpdate) (storage.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[id]
	if !ok {
		return storage.Event{}, fmt.Errorf("failed to update event with id %q: %w", id, storage.ErrNotFoundEvent)
	}
	updated := copyEvent(e)
	updated.ApplyUpdate(u)
	if err := updated.Validate(); err != nil {
		return storage.Event{}, err
	}
	s.events[id] = copyEvent(updated)
	return updated, nil
}

func (s *Storage) RemoveEvent(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.events[id]; !ok {
		return fmt.Errorf("failed to remove event with id %q: %w", id, storage.ErrNotFoundEvent)
	}
	delete(s.events, id)
	return nil
}

// AddAttendee appends under the write lock, so the attendee list and the
// count never disagree for a concurrent reader.
func (s *Storage) AddAttendee(_ context.Context, eventID string, userID string) (storage.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[eventID]
	if !ok {
		return storage.Event{}, fmt.Errorf("failed to join event with id %q: %w", eventID, storage.ErrNotFoundEvent)
	}
	for _, a := range e.Attendees {
		if a == userID {
			return storage.Event{}, fmt.Errorf("user %q: %w", userID, storage.ErrAlreadyJoined)
		}
	}
	e = copyEvent(e)
	e.Attendees = append(e.Attendees, userID)
	e.AttendeesCount = len(e.Attendees)
	s.events[eventID] = copyEvent(e)
	return e, nil
}

func (s *Storage) AddUser(_ context.Context, u *storage.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.emails[u.Email]; ok {
		return fmt.Errorf("duplicate email %q: %w", u.Email, storage.ErrDuplicateEmail)
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	s.users[u.ID] = *u
	s.emails[u.Email] = u.ID
	return nil
}

func (s *Storage) GetUser(_ context.Context, id string) (storage.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return storage.User{}, fmt.Errorf("failed to get user with id %q: %w", id, storage.ErrNotFoundUser)
	}
	return u, nil
}

func (s *Storage) GetUserByEmail(_ context.Context, email string) (storage.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.emails[email]
	if !ok {
		return storage.User{}, fmt.Errorf("failed to get user with email %q: %w", email, storage.ErrNotFoundUser)
	}
	return s.users[id], nil
}

func copyEvent(e storage.Event) storage.Event {
	tags := make([]string, len(e.Tags))
	copy(tags, e.Tags)
	attendees := make([]string, len(e.Attendees))
	copy(attendees, e.Attendees)
	e.Tags = tags
	e.Attendees = attendees
	return e
}
