package memorystorage

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/gatherly/gatherly/internal/storage"
	"github.com/stretchr/testify/require"
)

func newEvent() storage.Event {
	return storage.Event{
		Title:       "meetup",
		Description: "monthly meetup",
		Date:        "2030-06-15",
		Time:        "19:00",
		Location:    "main hall",
		Tags:        []string{"go", "talks"},
		CreatedBy:   "user-1",
	}
}

func TestAddEvent(t *testing.T) {
	s := New()
	ctx := context.Background()

	e := newEvent()
	require.NoError(t, s.AddEvent(ctx, &e))
	require.NotEmpty(t, e.ID)

	got, err := s.GetEvent(ctx, e.ID)
	require.NoError(t, err)
	require.Equal(t, e.Title, got.Title)
	require.Equal(t, []string{"go", "talks"}, got.Tags)
	require.Empty(t, got.Attendees)
	require.Equal(t, 0, got.AttendeesCount)

	dup := newEvent()
	dup.ID = e.ID
	require.ErrorIs(t, s.AddEvent(ctx, &dup), storage.ErrDuplicateEventID)
}

func TestAddEventValidation(t *testing.T) {
	tests := []struct {
		mutate      func(e *storage.Event)
		expectedErr error
	}{
		{func(e *storage.Event) { e.Title = "" }, storage.ErrEmptyField},
		{func(e *storage.Event) { e.Description = "" }, storage.ErrEmptyField},
		{func(e *storage.Event) { e.Location = "" }, storage.ErrEmptyField},
		{func(e *storage.Event) { e.Date = "15.06.2030" }, storage.ErrIncorrectEventTime},
		{func(e *storage.Event) { e.Time = "7pm" }, storage.ErrIncorrectEventTime},
	}

	for i, tt := range tests {
		tt := tt
		t.Run(fmt.Sprintf("case %d", i), func(t *testing.T) {
			s := New()
			e := newEvent()
			tt.mutate(&e)
			require.ErrorIs(t, s.AddEvent(context.Background(), &e), tt.expectedErr)
		})
	}
}

func TestUpdateEvent(t *testing.T) {
	s := New()
	ctx := context.Background()

	e := newEvent()
	require.NoError(t, s.AddEvent(ctx, &e))

	title := "renamed meetup"
	updated, err := s.UpdateEvent(ctx, e.ID, storage.EventUpdate{Title: &title})
	require.NoError(t, err)
	require.Equal(t, "renamed meetup", updated.Title)
	require.Equal(t, e.Description, updated.Description)
	require.Equal(t, "user-1", updated.CreatedBy)

	_, err = s.UpdateEvent(ctx, "missing", storage.EventUpdate{Title: &title})
	require.ErrorIs(t, err, storage.ErrNotFoundEvent)

	empty := ""
	_, err = s.UpdateEvent(ctx, e.ID, storage.EventUpdate{Title: &empty})
	require.ErrorIs(t, err, storage.ErrEmptyField)

	// A failed update must leave the stored event untouched.
	got, err := s.GetEvent(ctx, e.ID)
	require.NoError(t, err)
	require.Equal(t, "renamed meetup", got.Title)
}

func TestRemoveEvent(t *testing.T) {
	s := New()
	ctx := context.Background()

	e := newEvent()
	require.NoError(t, s.AddEvent(ctx, &e))
	require.NoError(t, s.RemoveEvent(ctx, e.ID))
	require.ErrorIs(t, s.RemoveEvent(ctx, e.ID), storage.ErrNotFoundEvent)

	_, err := s.GetEvent(ctx, e.ID)
	require.ErrorIs(t, err, storage.ErrNotFoundEvent)
}

func TestAddAttendee(t *testing.T) {
	s := New()
	ctx := context.Background()

	e := newEvent()
	require.NoError(t, s.AddEvent(ctx, &e))

	updated, err := s.AddAttendee(ctx, e.ID, "user-2")
	require.NoError(t, err)
	require.Equal(t, []string{"user-2"}, updated.Attendees)
	require.Equal(t, 1, updated.AttendeesCount)

	_, err = s.AddAttendee(ctx, e.ID, "user-2")
	require.ErrorIs(t, err, storage.ErrAlreadyJoined)

	got, err := s.GetEvent(ctx, e.ID)
	require.NoError(t, err)
	require.Equal(t, 1, got.AttendeesCount)

	_, err = s.AddAttendee(ctx, "missing", "user-2")
	require.ErrorIs(t, err, storage.ErrNotFoundEvent)
}

func TestAddAttendeeConcurrent(t *testing.T) {
	s := New()
	ctx := context.Background()

	e := newEvent()
	require.NoError(t, s.AddEvent(ctx, &e))

	const users = 50
	var wg sync.WaitGroup
	for i := 0; i < users; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.AddAttendee(ctx, e.ID, fmt.Sprintf("user-%d", i))
			require.NoError(t, err)
		}(i)
	}
	wg.Wait()

	got, err := s.GetEvent(ctx, e.ID)
	require.NoError(t, err)
	require.Equal(t, users, got.AttendeesCount)
	require.Len(t, got.Attendees, users)

	seen := make(map[string]struct{})
	for _, a := range got.Attendees {
		_, dup := seen[a]
		require.False(t, dup, "attendee %q appears twice", a)
		seen[a] = struct{}{}
	}
}

func TestUsers(t *testing.T) {
	s := New()
	ctx := context.Background()

	u := storage.User{Name: "alice", Email: "alice@example.com", PasswordHash: "x"}
	require.NoError(t, s.AddUser(ctx, &u))
	require.NotEmpty(t, u.ID)

	dup := storage.User{Name: "other", Email: "alice@example.com"}
	require.ErrorIs(t, s.AddUser(ctx, &dup), storage.ErrDuplicateEmail)

	got, err := s.GetUserByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	require.Equal(t, u.ID, got.ID)

	got, err = s.GetUser(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, "alice", got.Name)

	_, err = s.GetUser(ctx, "missing")
	require.ErrorIs(t, err, storage.ErrNotFoundUser)
}
