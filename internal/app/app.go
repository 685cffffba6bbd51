package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/gatherly/gatherly/internal/broadcast"
	"github.com/gatherly/gatherly/internal/storage"
)

// ErrForbidden marks a mutation attempted by someone other than the owner.
var ErrForbidden = errors.New("only the event owner may do this")

// Notifier is the dispatch side of the broadcast channel. The hub implements
// it; tests substitute a recording fake.
type Notifier interface {
	BroadcastAll(n broadcast.Notification)
	BroadcastRoom(eventID string, n broadcast.Notification)
}

// App is the synchronization core: every mutating operation commits to
// storage first and then emits exactly one notification to the recipient set
// that mutation calls for. Dispatch failures never roll the commit back.
type App struct {
	Storage  storage.Storage
	notifier Notifier
}

func New(storage storage.Storage, notifier Notifier) *App {
	return &App{Storage: storage, notifier: notifier}
}

// CreateEvent stores a new event owned by userID and broadcasts it globally;
// new events are discoverable by every session regardless of subscriptions.
// Any client-supplied id, owner or attendance is discarded.
func (a *App) CreateEvent(ctx context.Context, e storage.Event, userID string) (storage.Event, error) {
	e.ID = ""
	e.CreatedBy = userID
	e.Attendees = nil
	e.AttendeesCount = 0
	if err := a.Storage.AddEvent(ctx, &e); err != nil {
		return storage.Event{}, err
	}
	a.notifier.BroadcastAll(broadcast.Created{Event: e})
	return e, nil
}

func (a *App) GetEvent(ctx context.Context, id string) (storage.Event, error) {
	return a.Storage.GetEvent(ctx, id)
}

func (a *App) ListEvents(ctx context.Context) ([]storage.Event, error) {
	return a.Storage.ListEvents(ctx)
}

// UpdateEvent applies a partial update and broadcasts the full post-update
// event globally, so list views holding a stale copy refresh too, not only
// sessions inside the event's room.
func (a *App) UpdateEvent(ctx context.Context, id string, u storage.EventUpdate, userID string) (storage.Event, error) {
	current, err := a.Storage.GetEvent(ctx, id)
	if err != nil {
		return storage.Event{}, err
	}
	if current.CreatedBy != userID {
		return storage.Event{}, fmt.Errorf("user %q is not the owner of event %q: %w", userID, id, ErrForbidden)
	}
	updated, err := a.Storage.UpdateEvent(ctx, id, u)
	if err != nil {
		return storage.Event{}, err
	}
	a.notifier.BroadcastAll(broadcast.Updated{Event: updated})
	return updated, nil
}

// JoinEvent appends userID to the attendee list and notifies only the
// sessions subscribed to this event's room. Count churn is high-frequency;
// unsubscribed list views stay stale until their next full refetch.
func (a *App) JoinEvent(ctx context.Context, id string, userID string) (storage.Event, error) {
	updated, err := a.Storage.AddAttendee(ctx, id, userID)
	if err != nil {
		return storage.Event{}, err
	}
	a.notifier.BroadcastRoom(id, broadcast.AttendeeJoined{
		ID:             id,
		AttendeesCount: updated.AttendeesCount,
	})
	return updated, nil
}

// RemoveEvent deletes an event; owner only. The deletion is broadcast
// globally so every session drops its local copy.
func (a *App) RemoveEvent(ctx context.Context, id string, userID string) error {
	e, err := a.Storage.GetEvent(ctx, id)
	if err != nil {
		return err
	}
	if e.CreatedBy != userID {
		return fmt.Errorf("user %q is not the owner of event %q: %w", userID, id, ErrForbidden)
	}
	if err := a.Storage.RemoveEvent(ctx, id); err != nil {
		return err
	}
	a.notifier.BroadcastAll(broadcast.Deleted{ID: id})
	return nil
}
