package client

import (
	"fmt"
	"testing"
	"time"

	"github.com/gatherly/gatherly/internal/broadcast"
	"github.com/gatherly/gatherly/internal/storage"
	"github.com/stretchr/testify/require"
)

func event(id string) storage.Event {
	return storage.Event{
		ID:          id,
		Title:       "event " + id,
		Description: "d",
		Date:        "2030-06-15",
		Time:        "19:00",
		Location:    "hall",
		Attendees:   []string{},
	}
}

func TestApplyCreated(t *testing.T) {
	p := NewProjection()

	p.Apply(broadcast.Created{Event: event("e1")})
	p.Apply(broadcast.Created{Event: event("e2")})

	events := p.Events()
	require.Len(t, events, 2)
	require.Equal(t, "e1", events[0].ID)
	require.Equal(t, "e2", events[1].ID)

	// Duplicate delivery (e.g. own optimistic echo) is a no-op and must not
	// clobber newer local state.
	p.Apply(broadcast.AttendeeJoined{ID: "e1", AttendeesCount: 5})
	p.Apply(broadcast.Created{Event: event("e1")})

	got, ok := p.Get("e1")
	require.True(t, ok)
	require.Equal(t, 5, got.AttendeesCount)
	require.Len(t, p.Events(), 2)
}

func TestApplyUpdated(t *testing.T) {
	p := NewProjection()
	p.Apply(broadcast.Created{Event: event("e1")})

	updated := event("e1")
	updated.Title = "renamed"
	p.Apply(broadcast.Updated{Event: updated})

	got, _ := p.Get("e1")
	require.Equal(t, "renamed", got.Title)

	// An Updated for an unknown id must not fabricate a record.
	p.Apply(broadcast.Updated{Event: event("ghost")})
	_, ok := p.Get("ghost")
	require.False(t, ok)
	require.Len(t, p.Events(), 1)
}

func TestDeletedThenStaleUpdatedDoesNotResurrect(t *testing.T) {
	p := NewProjection()
	p.Apply(broadcast.Created{Event: event("e1")})
	p.Apply(broadcast.Deleted{ID: "e1"})

	stale := event("e1")
	stale.Title = "stale"
	p.Apply(broadcast.Updated{Event: stale})
	p.Apply(broadcast.AttendeeJoined{ID: "e1", AttendeesCount: 9})

	_, ok := p.Get("e1")
	require.False(t, ok)
	require.Empty(t, p.Events())
}

func TestApplyIdempotence(t *testing.T) {
	updated := event("e2")
	updated.Title = "renamed"

	notifications := []broadcast.Notification{
		broadcast.Created{Event: event("e1")},
		broadcast.Created{Event: event("e2")},
		broadcast.Updated{Event: updated},
		broadcast.AttendeeJoined{ID: "e1", AttendeesCount: 3},
		broadcast.Deleted{ID: "e2"},
	}

	once := NewProjection()
	twice := NewProjection()
	for _, n := range notifications {
		once.Apply(n)
		twice.Apply(n)
		twice.Apply(n)
	}
	require.Equal(t, once.Events(), twice.Events())
}

func TestPartition(t *testing.T) {
	p := NewProjection()

	past := event("past")
	past.Date = "2001-01-01"
	future := event("future")
	future.Date = "2099-01-01"
	unparsable := event("broken")
	unparsable.Date = "someday"

	for _, e := range []storage.Event{past, future, unparsable} {
		p.Apply(broadcast.Created{Event: e})
	}

	now := time.Date(2030, 6, 15, 12, 0, 0, 0, time.UTC)
	upcoming, gone := p.Partition(now)
	require.Len(t, upcoming, 1)
	require.Equal(t, "future", upcoming[0].ID)
	require.Len(t, gone, 2)

	// Partitioning is a pure function of the collection and the clock: the
	// same collection flips when the clock passes the occurrence.
	later := time.Date(2100, 1, 1, 0, 0, 0, 0, time.UTC)
	upcoming, gone = p.Partition(later)
	require.Empty(t, upcoming)
	require.Len(t, gone, 3)
}

func TestOptimisticJoinRollback(t *testing.T) {
	p := NewProjection()
	p.Apply(broadcast.Created{Event: event("e1")})

	rollback := p.OptimisticJoin("e1", "u1")
	got, _ := p.Get("e1")
	require.Equal(t, 1, got.AttendeesCount)
	require.Equal(t, []string{"u1"}, got.Attendees)

	rollback()
	got, _ = p.Get("e1")
	require.Equal(t, 0, got.AttendeesCount)
	require.Empty(t, got.Attendees)
}

func TestOptimisticJoinNoOps(t *testing.T) {
	p := NewProjection()

	// Unknown event: nothing to do, rollback is harmless.
	rollback := p.OptimisticJoin("ghost", "u1")
	rollback()
	require.Empty(t, p.Events())

	e := event("e1")
	e.Attendees = []string{"u1"}
	e.AttendeesCount = 1
	p.Apply(broadcast.Created{Event: e})

	// Already attending: no double count.
	rollback = p.OptimisticJoin("e1", "u1")
	got, _ := p.Get("e1")
	require.Equal(t, 1, got.AttendeesCount)
	rollback()
	got, _ = p.Get("e1")
	require.Equal(t, 1, got.AttendeesCount)
}

func TestReplace(t *testing.T) {
	p := NewProjection()
	p.Apply(broadcast.Created{Event: event("old")})

	p.Replace([]storage.Event{event("a"), event("b")})
	events := p.Events()
	require.Len(t, events, 2)
	require.Equal(t, "a", events[0].ID)
	_, ok := p.Get("old")
	require.False(t, ok)
}

func TestManyJoinNotificationsLastWriteWins(t *testing.T) {
	p := NewProjection()
	p.Apply(broadcast.Created{Event: event("e1")})

	for i := 1; i <= 10; i++ {
		p.Apply(broadcast.AttendeeJoined{ID: "e1", AttendeesCount: i})
	}
	got, _ := p.Get("e1")
	require.Equal(t, 10, got.AttendeesCount)

	// A late duplicate of an older count wins by arrival order; the next
	// refresh or notification corrects it.
	p.Apply(broadcast.AttendeeJoined{ID: "e1", AttendeesCount: 7})
	got, _ = p.Get("e1")
	require.Equal(t, 7, got.AttendeesCount)
}

func TestEventsOrderStable(t *testing.T) {
	p := NewProjection()
	for i := 0; i < 5; i++ {
		p.Apply(broadcast.Created{Event: event(fmt.Sprintf("e%d", i))})
	}
	p.Apply(broadcast.Deleted{ID: "e2"})

	var ids []string
	for _, e := range p.Events() {
		ids = append(ids, e.ID)
	}
	require.Equal(t, []string{"e0", "e1", "e3", "e4"}, ids)
}
