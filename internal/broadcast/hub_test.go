package broadcast

import (
	"fmt"
	"testing"

	"github.com/gatherly/gatherly/internal/storage"
	"github.com/stretchr/testify/require"
)

func testSession(userID string) *Session {
	return NewSession(nil, userID)
}

func drain(t *testing.T, s *Session) []Notification {
	t.Helper()
	var got []Notification
	for {
		select {
		case data := <-s.out:
			n, err := Decode(data)
			require.NoError(t, err)
			got = append(got, n)
		default:
			return got
		}
	}
}

func TestBroadcastAll(t *testing.T) {
	h := NewHub()
	s1 := testSession("u1")
	s2 := testSession("")
	h.Register(s1)
	h.Register(s2)

	h.BroadcastAll(Deleted{ID: "e1"})

	for _, s := range []*Session{s1, s2} {
		got := drain(t, s)
		require.Len(t, got, 1)
		require.Equal(t, Deleted{ID: "e1"}, got[0])
	}
}

func TestBroadcastRoomOnlyReachesSubscribers(t *testing.T) {
	h := NewHub()
	s1 := testSession("u1")
	s2 := testSession("u2")
	h.Register(s1)
	h.Register(s2)
	h.Subscribe(s1.ID, "e1")
	h.Subscribe(s1.ID, "e1") // idempotent

	h.BroadcastRoom("e1", AttendeeJoined{ID: "e1", AttendeesCount: 3})
	h.BroadcastRoom("e2", AttendeeJoined{ID: "e2", AttendeesCount: 1})

	got := drain(t, s1)
	require.Len(t, got, 1)
	require.Equal(t, AttendeeJoined{ID: "e1", AttendeesCount: 3}, got[0])
	require.Empty(t, drain(t, s2))
}

func TestUnregisterLeavesAllRooms(t *testing.T) {
	h := NewHub()
	s1 := testSession("u1")
	h.Register(s1)
	h.Subscribe(s1.ID, "e1")
	h.Subscribe(s1.ID, "e2")

	h.Unregister(s1.ID)

	require.Empty(t, h.rooms, "empty rooms must be dropped")
	require.Empty(t, h.sessions)

	// Safe to call twice.
	h.Unregister(s1.ID)
}

func TestSubscribeUnknownSession(t *testing.T) {
	h := NewHub()
	h.Subscribe("ghost", "e1")
	require.Empty(t, h.rooms)
}

func TestSendTo(t *testing.T) {
	h := NewHub()
	s1 := testSession("u1")
	s2 := testSession("u2")
	h.Register(s1)
	h.Register(s2)

	h.SendTo(s1.ID, AttendeeJoined{ID: "e1", AttendeesCount: 7})

	got := drain(t, s1)
	require.Len(t, got, 1)
	require.Empty(t, drain(t, s2))
}

func TestPerRecipientOrderPreserved(t *testing.T) {
	h := NewHub()
	s := testSession("u1")
	h.Register(s)

	for i := 0; i < 10; i++ {
		h.BroadcastAll(AttendeeJoined{ID: "e1", AttendeesCount: i})
	}

	got := drain(t, s)
	require.Len(t, got, 10)
	for i, n := range got {
		require.Equal(t, AttendeeJoined{ID: "e1", AttendeesCount: i}, n)
	}
}

func TestSlowSessionDropsInsteadOfBlocking(t *testing.T) {
	h := NewHub()
	s := testSession("u1")
	h.Register(s)

	for i := 0; i < outboxSize+5; i++ {
		h.BroadcastAll(Deleted{ID: fmt.Sprintf("e%d", i)})
	}

	got := drain(t, s)
	require.Len(t, got, outboxSize)
	// The kept prefix stays in emission order.
	require.Equal(t, Deleted{ID: "e0"}, got[0])
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	event := storage.Event{
		ID:             "e1",
		Title:          "meetup",
		Description:    "d",
		Date:           "2030-06-15",
		Time:           "19:00",
		Location:       "hall",
		Tags:           []string{"go"},
		CreatedBy:      "u1",
		Attendees:      []string{"u2"},
		AttendeesCount: 1,
	}

	tests := []Notification{
		Created{Event: event},
		Updated{Event: event},
		AttendeeJoined{ID: "e1", AttendeesCount: 1},
		Deleted{ID: "e1"},
	}

	for i, n := range tests {
		n := n
		t.Run(fmt.Sprintf("case %d", i), func(t *testing.T) {
			data, err := Encode(n)
			require.NoError(t, err)
			decoded, err := Decode(data)
			require.NoError(t, err)
			require.Equal(t, n, decoded)
			require.Equal(t, n.Type(), decoded.Type())
			require.Equal(t, "e1", decoded.EventID())
		})
	}
}

func TestDecodeUnknownType(t *testing.T) {
	_, err := Decode([]byte(`{"type":"mystery","payload":{}}`))
	require.Error(t, err)
}
