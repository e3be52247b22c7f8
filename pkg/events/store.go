package events

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/platinummonkey/campus/pkg/roles"
	"github.com/platinummonkey/campus/pkg/storage"
)

var (
	// ErrNotFound is returned when no event matches
	ErrNotFound = errors.New("event not found")
	// ErrCommentNotFound is returned when no comment matches
	ErrCommentNotFound = errors.New("comment not found")
)

const selectEventColumns = `SELECT id, organization_id, group_id, created_by_id, name, description, category, privacy,
	start_time, end_time, latitude, longitude, contact_phone, contact_email, image_url,
	created_at, updated_at, inactive_at, inactive_by_id FROM events`

const selectCommentColumns = `SELECT id, event_id, created_by_id, message, created_at, updated_at, inactive_at FROM comments`

// Store persists events and comments
type Store struct {
	db *sql.DB
}

// NewStore creates a new event store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Insert creates e and sets its id and timestamps
func (s *Store) Insert(ctx context.Context, e *Event) error {
	now := storage.Now()
	e.CreatedAt = now
	e.UpdatedAt = now
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO events (organization_id, group_id, created_by_id, name, description, category, privacy,
			start_time, end_time, latitude, longitude, contact_phone, contact_email, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING id
	`, e.OrganizationID, e.GroupID, e.CreatedByID, e.Name, e.Description, e.Category, int(e.Privacy),
		e.StartTime.UTC(), e.EndTime.UTC(), storage.NullFloat64(e.Latitude), storage.NullFloat64(e.Longitude),
		storage.NullString(e.ContactPhone), storage.NullString(e.ContactEmail), e.CreatedAt, e.UpdatedAt).Scan(&e.ID)
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}
	return nil
}

// Get returns an event of the organization subject to active
func (s *Store) Get(ctx context.Context, organizationID, id int64, active storage.ActiveFilter) (*Event, error) {
	c := &storage.Conditions{}
	c.Eq("id", id)
	c.Eq("organization_id", organizationID)
	active.Apply(c, "inactive_at")

	e, err := scanEvent(s.db.QueryRowContext(ctx, selectEventColumns+c.Where(), c.Args()...))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	return e, nil
}

// List returns active events matching filter whose privacy is at least
// minimum, plus RSO-tier events of memberGroups. Results are ordered by
// start time.
func (s *Store) List(ctx context.Context, filter ListFilter, minimum roles.PrivacyTier, memberGroups []int64) ([]*Event, error) {
	c := &storage.Conditions{}
	c.Eq("organization_id", filter.OrganizationID)
	if filter.GroupID != nil {
		c.Eq("group_id", *filter.GroupID)
	}
	if filter.Category != "" {
		c.Eq("category", filter.Category)
	}
	if filter.From != nil {
		c.Raw("end_time >= " + c.Arg(filter.From.UTC()))
	}
	if filter.To != nil {
		c.Raw("start_time <= " + c.Arg(filter.To.UTC()))
	}

	visible := "privacy >= " + c.Arg(int(minimum))
	if len(memberGroups) > 0 {
		placeholders := make([]string, len(memberGroups))
		for i, id := range memberGroups {
			placeholders[i] = c.Arg(id)
		}
		visible = "(" + visible + " OR group_id IN (" + strings.Join(placeholders, ", ") + "))"
	}
	c.Raw(visible)
	storage.ActiveOnly.Apply(c, "inactive_at")

	rows, err := s.db.QueryContext(ctx, selectEventColumns+c.Where()+` ORDER BY start_time, id`, c.Args()...)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	events := []*Event{}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate events: %w", err)
	}
	return events, nil
}

// Deactivate soft-deletes an active event
func (s *Store) Deactivate(ctx context.Context, id, actorID int64, at time.Time) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE events SET inactive_at = $1, inactive_by_id = $2, updated_at = $3
		WHERE id = $4 AND inactive_at IS NULL
	`, at, actorID, at, id)
	if err != nil {
		return fmt.Errorf("failed to deactivate event: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// SetImage records the event's image URL
func (s *Store) SetImage(ctx context.Context, id int64, imageURL string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE events SET image_url = $1, updated_at = $2 WHERE id = $3`,
		imageURL, storage.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to set event image: %w", err)
	}
	return nil
}

// InsertComment creates c and sets its id and timestamps
func (s *Store) InsertComment(ctx context.Context, c *Comment) error {
	now := storage.Now()
	c.CreatedAt = now
	c.UpdatedAt = now
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO comments (event_id, created_by_id, message, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, c.EventID, c.CreatedByID, c.Message, c.CreatedAt, c.UpdatedAt).Scan(&c.ID)
	if err != nil {
		return fmt.Errorf("failed to insert comment: %w", err)
	}
	return nil
}

// GetComment returns an active comment of the event
func (s *Store) GetComment(ctx context.Context, eventID, id int64) (*Comment, error) {
	c := &storage.Conditions{}
	c.Eq("id", id)
	c.Eq("event_id", eventID)
	storage.ActiveOnly.Apply(c, "inactive_at")

	comment, err := scanComment(s.db.QueryRowContext(ctx, selectCommentColumns+c.Where(), c.Args()...))
	if err == sql.ErrNoRows {
		return nil, ErrCommentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get comment: %w", err)
	}
	return comment, nil
}

// ListComments returns the comments of an event oldest first
func (s *Store) ListComments(ctx context.Context, eventID int64, active storage.ActiveFilter) ([]*Comment, error) {
	c := &storage.Conditions{}
	c.Eq("event_id", eventID)
	active.Apply(c, "inactive_at")

	rows, err := s.db.QueryContext(ctx, selectCommentColumns+c.Where()+` ORDER BY created_at, id`, c.Args()...)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	defer rows.Close()

	comments := []*Comment{}
	for rows.Next() {
		comment, err := scanComment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan comment: %w", err)
		}
		comments = append(comments, comment)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate comments: %w", err)
	}
	return comments, nil
}

// UpdateComment rewrites the message of an active comment
func (s *Store) UpdateComment(ctx context.Context, c *Comment) error {
	c.UpdatedAt = storage.Now()
	_, err := s.db.ExecContext(ctx, `UPDATE comments SET message = $1, updated_at = $2 WHERE id = $3`,
		c.Message, c.UpdatedAt, c.ID)
	if err != nil {
		return fmt.Errorf("failed to update comment: %w", err)
	}
	return nil
}

// DeactivateComment soft-deletes a comment
func (s *Store) DeactivateComment(ctx context.Context, id int64, at time.Time) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE comments SET inactive_at = $1, updated_at = $2
		WHERE id = $3 AND inactive_at IS NULL
	`, at, at, id)
	if err != nil {
		return fmt.Errorf("failed to delete comment: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrCommentNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanEvent(row scanner) (*Event, error) {
	var (
		e                      Event
		privacy                int
		lat, lng               sql.NullFloat64
		phone, email, imageURL sql.NullString
		inactiveAt             sql.NullTime
		inactiveByID           sql.NullInt64
	)
	if err := row.Scan(&e.ID, &e.OrganizationID, &e.GroupID, &e.CreatedByID, &e.Name, &e.Description,
		&e.Category, &privacy, &e.StartTime, &e.EndTime, &lat, &lng, &phone, &email, &imageURL,
		&e.CreatedAt, &e.UpdatedAt, &inactiveAt, &inactiveByID); err != nil {
		return nil, err
	}
	e.Privacy = roles.PrivacyTier(privacy)
	e.StartTime = e.StartTime.UTC()
	e.EndTime = e.EndTime.UTC()
	e.Latitude = storage.Float64Ptr(lat)
	e.Longitude = storage.Float64Ptr(lng)
	e.ContactPhone = storage.StringPtr(phone)
	e.ContactEmail = storage.StringPtr(email)
	e.ImageURL = storage.StringPtr(imageURL)
	e.CreatedAt = e.CreatedAt.UTC()
	e.UpdatedAt = e.UpdatedAt.UTC()
	e.InactiveAt = storage.TimePtr(inactiveAt)
	e.InactiveByID = storage.Int64Ptr(inactiveByID)
	return &e, nil
}

func scanComment(row scanner) (*Comment, error) {
	var (
		c          Comment
		inactiveAt sql.NullTime
	)
	if err := row.Scan(&c.ID, &c.EventID, &c.CreatedByID, &c.Message, &c.CreatedAt, &c.UpdatedAt, &inactiveAt); err != nil {
		return nil, err
	}
	c.CreatedAt = c.CreatedAt.UTC()
	c.UpdatedAt = c.UpdatedAt.UTC()
	c.InactiveAt = storage.TimePtr(inactiveAt)
	return &c, nil
}
