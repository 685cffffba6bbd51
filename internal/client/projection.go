package client

import (
	"sync"
	"time"

	"github.com/gatherly/gatherly/internal/broadcast"
	"github.com/gatherly/gatherly/internal/storage"
)

// Projection is a session's local mirror of the server's event collection.
// Notifications merge into it idempotently: applying the same notification
// twice, or notifications arriving out of order across different event ids,
// leaves a state a later full refresh can always fix.
type Projection struct {
	mu     sync.RWMutex
	order  []string
	events map[string]storage.Event
}

func NewProjection() *Projection {
	return &Projection{events: make(map[string]storage.Event)}
}

// Replace seeds the projection from a full refetch.
func (p *Projection) Replace(events []storage.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.order = p.order[:0]
	p.events = make(map[string]storage.Event, len(events))
	for _, e := range events {
		p.order = append(p.order, e.ID)
		p.events[e.ID] = e
	}
}

// Apply merges one notification.
//   - Created: append unless the id is already present (own optimistic echo
//     or duplicate delivery).
//   - Updated: replace in place; an unknown id is a no-op, never an insert —
//     fabricating a record from an Updated would resurrect deleted events.
//   - AttendeeJoined: last-write-wins count set; no-op for unknown ids.
//   - Deleted: remove if present.
func (p *Projection) Apply(n broadcast.Notification) {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch t := n.(type) {
	case broadcast.Created:
		if _, ok := p.events[t.Event.ID]; ok {
			return
		}
		p.order = append(p.order, t.Event.ID)
		p.events[t.Event.ID] = t.Event
	case broadcast.Updated:
		if _, ok := p.events[t.Event.ID]; !ok {
			return
		}
		p.events[t.Event.ID] = t.Event
	case broadcast.AttendeeJoined:
		e, ok := p.events[t.ID]
		if !ok {
			return
		}
		e.AttendeesCount = t.AttendeesCount
		p.events[t.ID] = e
	case broadcast.Deleted:
		if _, ok := p.events[t.ID]; !ok {
			return
		}
		delete(p.events, t.ID)
		for i, id := range p.order {
			if id == t.ID {
				p.order = append(p.order[:i], p.order[i+1:]...)
				break
			}
		}
	}
}

func (p *Projection) Get(id string) (storage.Event, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	e, ok := p.events[id]
	return e, ok
}

// Events returns the collection in insertion order.
func (p *Projection) Events() []storage.Event {
	p.mu.RLock()
	defer p.mu.RUnlock()
	events := make([]storage.Event, 0, len(p.order))
	for _, id := range p.order {
		events = append(events, p.events[id])
	}
	return events
}

// Partition recomputes the upcoming/past split from the full collection;
// the split is never patched incrementally.
func (p *Projection) Partition(now time.Time) (upcoming, past []storage.Event) {
	for _, e := range p.Events() {
		if e.Upcoming(now) {
			upcoming = append(upcoming, e)
		} else {
			past = append(past, e)
		}
	}
	return upcoming, past
}

// OptimisticJoin applies a join locally before server confirmation and
// returns the compensating action. The caller runs the rollback if the
// server round-trip fails and discards it on success.
func (p *Projection) OptimisticJoin(eventID, userID string) (rollback func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.events[eventID]
	if !ok {
		return func() {}
	}
	for _, a := range e.Attendees {
		if a == userID {
			return func() {}
		}
	}
	prev := e
	prev.Attendees = append([]string{}, e.Attendees...)

	e.Attendees = append(append([]string{}, e.Attendees...), userID)
	e.AttendeesCount = len(e.Attendees)
	p.events[eventID] = e

	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		if _, ok := p.events[eventID]; ok {
			p.events[eventID] = prev
		}
	}
}

// Set stores the authoritative copy of one event, e.g. the response body of
// a confirmed mutation.
func (p *Projection) Set(e storage.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.events[e.ID]; !ok {
		p.order = append(p.order, e.ID)
	}
	p.events[e.ID] = e
}
