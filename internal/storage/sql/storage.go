package sqlstorage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/gatherly/gatherly/internal/storage"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	log "github.com/sirupsen/logrus"
)

var ErrConnectionFailed = errors.New("failed to connect")

const dbErrUniqueViolation = "23505"

type Config struct {
	Host     string
	Port     int
	Database string
	Username string
	Password string
}

type Storage struct {
	config Config
	db     *sqlx.DB
}

type eventRow struct {
	ID             string         `db:"id"`
	Title          string         `db:"title"`
	Description    string         `db:"description"`
	Date           string         `db:"event_date"`
	Time           string         `db:"event_time"`
	Location       string         `db:"location"`
	Tags           pq.StringArray `db:"tags"`
	Image          string         `db:"image"`
	CreatedBy      string         `db:"created_by"`
	Attendees      pq.StringArray `db:"attendees"`
	AttendeesCount int            `db:"attendees_count"`
}

const eventColumns = "id, title, description, event_date, event_time, location, tags, image, created_by, attendees, attendees_count"

func (r eventRow) toEvent() storage.Event {
	return storage.Event{
		ID:             r.ID,
		Title:          r.Title,
		Description:    r.Description,
		Date:           r.Date,
		Time:           r.Time,
		Location:       r.Location,
		Tags:           []string(r.Tags),
		Image:          r.Image,
		CreatedBy:      r.CreatedBy,
		Attendees:      []string(r.Attendees),
		AttendeesCount: r.AttendeesCount,
	}
}

func New(config Config) *Storage {
	return &Storage{config: config}
}

func (s *Storage) Connect(ctx context.Context) error {
	db, err := sqlx.ConnectContext(
		ctx,
		"postgres",
		fmt.Sprintf(
			"sslmode=disable host=%s port=%d dbname=%s user=%s password=%s",
			s.config.Host, s.config.Port, s.config.Database, s.config.Username, s.config.Password),
	)
	if err != nil {
		log.Errorf("failed to connect: %v", err)
		return ErrConnectionFailed
	}
	s.db = db
	return nil
}

func (s *Storage) Close(_ context.Context) error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close connection: %w", err)
	}
	return nil
}

func (s *Storage) AddEvent(ctx context.Context, e *storage.Event) error {
	if err := e.Validate(); err != nil {
		return err
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Attendees == nil {
		e.Attendees = []string{}
	}
	e.AttendeesCount = len(e.Attendees)

	_, err := s.db.ExecContext(
		ctx,
		"INSERT INTO events(id, title, description, event_date, event_time, location, tags, image, created_by, attendees, attendees_count) "+
			"VALUES($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)",
		e.ID, e.Title, e.Description, e.Date, e.Time, e.Location,
		pq.StringArray(e.Tags), e.Image, e.CreatedBy, pq.StringArray(e.Attendees), e.AttendeesCount)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == dbErrUniqueViolation {
		return fmt.Errorf("duplicate ID %q: %w", e.ID, storage.ErrDuplicateEventID)
	}
	return err
}

func (s *Storage) GetEvent(ctx context.Context, id string) (storage.Event, error) {
	var row eventRow
	err := s.db.GetContext(ctx, &row, "SELECT "+eventColumns+" FROM events WHERE id=$1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.Event{}, fmt.Errorf("failed to get event with id %q: %w", id, storage.ErrNotFoundEvent)
	}
	if err != nil {
		return storage.Event{}, err
	}
	return row.toEvent(), nil
}

func (s *Storage) ListEvents(ctx context.Context) ([]storage.Event, error) {
	var rows []eventRow
	err := s.db.SelectContext(ctx, &rows, "SELECT "+eventColumns+" FROM events ORDER BY id")
	if err != nil {
		return nil, err
	}
	events := make([]storage.Event, 0, len(rows))
	for _, r := range rows {
		events = append(events, r.toEvent())
	}
	return events, nil
}

// UpdateEvent reads and rewrites the row in one transaction; the row lock
// serializes concurrent updates to the same event id.
func (s *Storage) UpdateEvent(ctx context.Context, id string, u storage.EventUpdate) (storage.Event, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return storage.Event{}, err
	}
	defer tx.Rollback() //nolint:errcheck

	var row eventRow
	err = tx.GetContext(ctx, &row, "SELECT "+eventColumns+" FROM events WHERE id=$1 FOR UPDATE", id)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.Event{}, fmt.Errorf("failed to update event with id %q: %w", id, storage.ErrNotFoundEvent)
	}
	if err != nil {
		return storage.Event{}, err
	}

	e := row.toEvent()
	e.ApplyUpdate(u)
	if err := e.Validate(); err != nil {
		return storage.Event{}, err
	}

	_, err = tx.ExecContext(
		ctx,
		"UPDATE events SET title=$2, description=$3, event_date=$4, event_time=$5, location=$6, tags=$7, image=$8 WHERE id=$1",
		id, e.Title, e.Description, e.Date, e.Time, e.Location, pq.StringArray(e.Tags), e.Image)
	if err != nil {
		return storage.Event{}, err
	}
	if err := tx.Commit(); err != nil {
		return storage.Event{}, err
	}
	return e, nil
}

func (s *Storage) RemoveEvent(ctx context.Context, id string) error {
	var found bool
	err := s.db.GetContext(ctx, &found, "DELETE FROM events WHERE id=$1 RETURNING TRUE", id)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("failed to remove event with id %q: %w", id, storage.ErrNotFoundEvent)
	}
	return err
}

// AddAttendee appends the user and recomputes the count in a single UPDATE,
// so no reader can observe the list and the count disagreeing.
func (s *Storage) AddAttendee(ctx context.Context, eventID string, userID string) (storage.Event, error) {
	var row eventRow
	err := s.db.GetContext(
		ctx,
		&row,
		"UPDATE events SET attendees = array_append(attendees, $2), attendees_count = cardinality(attendees) + 1 "+
			"WHERE id=$1 AND NOT (attendees @> ARRAY[$2]) RETURNING "+eventColumns,
		eventID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		// Either the event does not exist or the user is already in the list.
		if _, getErr := s.GetEvent(ctx, eventID); getErr != nil {
			return storage.Event{}, getErr
		}
		return storage.Event{}, fmt.Errorf("user %q: %w", userID, storage.ErrAlreadyJoined)
	}
	if err != nil {
		return storage.Event{}, err
	}
	return row.toEvent(), nil
}

func (s *Storage) AddUser(ctx context.Context, u *storage.User) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(
		ctx,
		"INSERT INTO users(id, name, email, password_hash) VALUES($1, $2, $3, $4)",
		u.ID, u.Name, u.Email, u.PasswordHash)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == dbErrUniqueViolation {
		return fmt.Errorf("duplicate email %q: %w", u.Email, storage.ErrDuplicateEmail)
	}
	return err
}

func (s *Storage) GetUser(ctx context.Context, id string) (storage.User, error) {
	var u storage.User
	err := s.db.GetContext(ctx, &u, "SELECT id, name, email, password_hash FROM users WHERE id=$1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.User{}, fmt.Errorf("failed to get user with id %q: %w", id, storage.ErrNotFoundUser)
	}
	return u, err
}

func (s *Storage) GetUserByEmail(ctx context.Context, email string) (storage.User, error) {
	var u storage.User
	err := s.db.GetContext(ctx, &u, "SELECT id, name, email, password_hash FROM users WHERE email=$1", email)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.User{}, fmt.Errorf("failed to get user with email %q: %w", email, storage.ErrNotFoundUser)
	}
	return u, err
}
