package groups

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/platinummonkey/campus/pkg/storage"
)

// ErrNotFound is returned when no group matches
var ErrNotFound = errors.New("group not found")

const selectColumns = `SELECT id, organization_id, created_by_id, name, description, created_at, updated_at, inactive_at, inactive_by_id FROM rsos`

// Store persists groups in the rsos table
type Store struct {
	db *sql.DB
	q  storage.Querier
}

// NewStore creates a new group store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db, q: db}
}

// WithTx returns a store bound to tx
func (s *Store) WithTx(tx *sql.Tx) *Store {
	return &Store{db: s.db, q: tx}
}

// Insert creates a group row and sets its id and timestamps
func (s *Store) Insert(ctx context.Context, g *Group) error {
	now := storage.Now()
	g.CreatedAt = now
	g.UpdatedAt = now
	err := s.q.QueryRowContext(ctx, `
		INSERT INTO rsos (organization_id, created_by_id, name, description, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, g.OrganizationID, g.CreatedByID, g.Name, g.Description, g.CreatedAt, g.UpdatedAt).Scan(&g.ID)
	if err != nil {
		return fmt.Errorf("failed to insert group: %w", err)
	}
	return nil
}

// Get returns a group by id subject to active
func (s *Store) Get(ctx context.Context, id int64, active storage.ActiveFilter) (*Group, error) {
	c := &storage.Conditions{}
	c.Eq("id", id)
	active.Apply(c, "inactive_at")

	g, err := scanGroup(s.q.QueryRowContext(ctx, selectColumns+c.Where(), c.Args()...))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get group: %w", err)
	}
	return g, nil
}

// List returns groups matching filter ordered by name
func (s *Store) List(ctx context.Context, filter Filter) ([]*Group, error) {
	c := filter.conditions()
	query := selectColumns + c.Where() + ` ORDER BY name, id`
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", filter.Limit, filter.Offset)
	}

	rows, err := s.q.QueryContext(ctx, query, c.Args()...)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	defer rows.Close()

	var groups []*Group
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan group: %w", err)
		}
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate groups: %w", err)
	}
	return groups, nil
}

// UpdateDetails writes name and description of an active group
func (s *Store) UpdateDetails(ctx context.Context, g *Group) error {
	g.UpdatedAt = storage.Now()
	result, err := s.q.ExecContext(ctx, `
		UPDATE rsos SET name = $1, description = $2, updated_at = $3
		WHERE id = $4 AND inactive_at IS NULL
	`, g.Name, g.Description, g.UpdatedAt, g.ID)
	if err != nil {
		return fmt.Errorf("failed to update group: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkInactive soft-deletes an active group. It reports false when the group
// was already inactive.
func (s *Store) MarkInactive(ctx context.Context, id int64, at time.Time, actorID *int64) (bool, error) {
	result, err := s.q.ExecContext(ctx, `
		UPDATE rsos SET inactive_at = $1, inactive_by_id = $2, updated_at = $3
		WHERE id = $4 AND inactive_at IS NULL
	`, at, storage.NullInt64(actorID), at, id)
	if err != nil {
		return false, fmt.Errorf("failed to deactivate group: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to deactivate group: %w", err)
	}
	return n > 0, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanGroup(row scanner) (*Group, error) {
	var (
		g            Group
		inactiveAt   sql.NullTime
		inactiveByID sql.NullInt64
	)
	if err := row.Scan(&g.ID, &g.OrganizationID, &g.CreatedByID, &g.Name, &g.Description,
		&g.CreatedAt, &g.UpdatedAt, &inactiveAt, &inactiveByID); err != nil {
		return nil, err
	}
	g.CreatedAt = g.CreatedAt.UTC()
	g.UpdatedAt = g.UpdatedAt.UTC()
	g.InactiveAt = storage.TimePtr(inactiveAt)
	g.InactiveByID = storage.Int64Ptr(inactiveByID)
	return &g, nil
}
