package storage

import (
	"fmt"
	"time"
)

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04"
)

// Event is a schedulable gathering. Date and Time are stored exactly as the
// creator provided them; the occurrence instant is derived on demand.
type Event struct {
	ID             string   `db:"id" json:"id"`
	Title          string   `db:"title" json:"title"`
	Description    string   `db:"description" json:"description"`
	Date           string   `db:"event_date" json:"date"`
	Time           string   `db:"event_time" json:"time"`
	Location       string   `db:"location" json:"location"`
	Tags           []string `db:"-" json:"tags"`
	Image          string   `db:"image" json:"image,omitempty"`
	CreatedBy      string   `db:"created_by" json:"createdBy"`
	Attendees      []string `db:"-" json:"attendees"`
	AttendeesCount int      `db:"attendees_count" json:"attendeesCount"`
}

// EventUpdate is a partial update. Nil fields are left untouched. Ownership
// and attendance are never updatable through it.
type EventUpdate struct {
	Title       *string
	Description *string
	Date        *string
	Time        *string
	Location    *string
	Tags        []string
	Image       *string
}

func (e *Event) Validate() error {
	if e.Title == "" {
		return fmt.Errorf("title is required: %w", ErrEmptyField)
	}
	if e.Description == "" {
		return fmt.Errorf("description is required: %w", ErrEmptyField)
	}
	if e.Location == "" {
		return fmt.Errorf("location is required: %w", ErrEmptyField)
	}
	if _, err := time.Parse(dateLayout, e.Date); err != nil {
		return fmt.Errorf("date %q is not %s: %w", e.Date, dateLayout, ErrIncorrectEventTime)
	}
	if _, err := time.Parse(timeLayout, e.Time); err != nil {
		return fmt.Errorf("time %q is not %s: %w", e.Time, timeLayout, ErrIncorrectEventTime)
	}
	return nil
}

// ApplyUpdate merges the patch into the event. ID, CreatedBy, Attendees and
// AttendeesCount are immutable here even if a caller smuggled them in.
func (e *Event) ApplyUpdate(u EventUpdate) {
	if u.Title != nil {
		e.Title = *u.Title
	}
	if u.Description != nil {
		e.Description = *u.Description
	}
	if u.Date != nil {
		e.Date = *u.Date
	}
	if u.Time != nil {
		e.Time = *u.Time
	}
	if u.Location != nil {
		e.Location = *u.Location
	}
	if u.Tags != nil {
		e.Tags = u.Tags
	}
	if u.Image != nil {
		e.Image = *u.Image
	}
}

// OccursAt derives the occurrence instant from the stored date and time.
func (e Event) OccursAt() (time.Time, error) {
	t, err := time.Parse(dateLayout+" "+timeLayout, e.Date+" "+e.Time)
	if err != nil {
		return time.Time{}, fmt.Errorf("event %q has unparsable occurrence: %w", e.ID, ErrIncorrectEventTime)
	}
	return t, nil
}

// Upcoming reports whether the event occurs after now. Events with an
// unparsable occurrence count as past.
func (e Event) Upcoming(now time.Time) bool {
	t, err := e.OccursAt()
	if err != nil {
		return false
	}
	return t.After(now)
}
