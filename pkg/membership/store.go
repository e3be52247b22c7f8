package membership

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/platinummonkey/campus/pkg/apierrors"
	"github.com/platinummonkey/campus/pkg/roles"
	"github.com/platinummonkey/campus/pkg/storage"
)

// ErrNotFound is returned when no membership matches the requested id
var ErrNotFound = errors.New("membership not found")

var tracer = otel.Tracer("campus/membership")

const selectColumns = `SELECT id, user_id, organization_id, group_id, tier, created_at, updated_at, inactive_at, inactive_by_id FROM memberships`

// SQLStore implements Store on PostgreSQL or SQLite
type SQLStore struct {
	db *sql.DB
	q  storage.Querier
}

// NewSQLStore creates a new membership store
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db, q: db}
}

// WithTx returns a store whose reads and writes run inside tx
func (s *SQLStore) WithTx(tx *sql.Tx) *SQLStore {
	return &SQLStore{db: s.db, q: tx}
}

// FindActiveByUser returns all active memberships of a user
func (s *SQLStore) FindActiveByUser(ctx context.Context, userID int64) ([]*Membership, error) {
	ctx, span := tracer.Start(ctx, "membership.FindActiveByUser")
	defer span.End()
	span.SetAttributes(attribute.Int64("user.id", userID))

	memberships, err := find(ctx, s.q, Filter{UserID: &userID})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to load memberships")
		return nil, err
	}
	span.SetAttributes(attribute.Int("membership.count", len(memberships)))
	return memberships, nil
}

// CountActive counts active memberships matching filter. The filter's
// Active field is ignored.
func (s *SQLStore) CountActive(ctx context.Context, filter Filter) (int, error) {
	filter.Active = storage.ActiveOnly
	return count(ctx, s.q, filter)
}

// Find returns memberships matching filter ordered by id
func (s *SQLStore) Find(ctx context.Context, filter Filter) ([]*Membership, error) {
	return find(ctx, s.q, filter)
}

// Get returns a membership by id regardless of state
func (s *SQLStore) Get(ctx context.Context, id int64) (*Membership, error) {
	row := s.q.QueryRowContext(ctx, selectColumns+` WHERE id = $1`, id)
	m, err := scanMembership(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get membership: %w", err)
	}
	return m, nil
}

// Create validates and inserts m in its own transaction, or in the store's
// transaction when obtained through WithTx
func (s *SQLStore) Create(ctx context.Context, m *Membership) (*Membership, error) {
	ctx, span := tracer.Start(ctx, "membership.Create")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("user.id", m.UserID),
		attribute.Int64("organization.id", m.OrganizationID),
		attribute.Int("membership.tier", int(m.Tier)),
	)

	var created *Membership
	err := s.inTx(ctx, func(q storage.Querier) error {
		var err error
		created, err = insert(ctx, q, m)
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to create membership")
		return nil, err
	}
	span.SetAttributes(attribute.Int64("membership.id", created.ID))
	return created, nil
}

// CreateBatch validates and inserts all memberships atomically. Validation
// sees earlier rows of the same batch.
func (s *SQLStore) CreateBatch(ctx context.Context, ms []*Membership) ([]*Membership, error) {
	ctx, span := tracer.Start(ctx, "membership.CreateBatch")
	defer span.End()
	span.SetAttributes(attribute.Int("membership.count", len(ms)))

	created := make([]*Membership, 0, len(ms))
	err := s.inTx(ctx, func(q storage.Querier) error {
		for _, m := range ms {
			c, err := insert(ctx, q, m)
			if err != nil {
				return err
			}
			created = append(created, c)
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to create memberships")
		return nil, err
	}
	return created, nil
}

// Update validates and persists changes to an existing membership
func (s *SQLStore) Update(ctx context.Context, m *Membership) error {
	if m.ID <= 0 {
		return apierrors.Missing("id")
	}
	return s.inTx(ctx, func(q storage.Querier) error {
		if err := Validate(ctx, q, m); err != nil {
			return err
		}
		m.UpdatedAt = storage.Now()
		result, err := q.ExecContext(ctx, `
			UPDATE memberships
			SET tier = $1, group_id = $2, updated_at = $3, inactive_at = $4, inactive_by_id = $5
			WHERE id = $6
		`, int(m.Tier), storage.NullInt64(m.GroupID), m.UpdatedAt, storage.NullTime(m.InactiveAt), storage.NullInt64(m.InactiveByID), m.ID)
		if storage.IsUniqueViolation(err) {
			return apierrors.ErrDuplicateOrganizationMembership
		}
		if err != nil {
			return fmt.Errorf("failed to update membership: %w", err)
		}
		if n, _ := result.RowsAffected(); n == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// Deactivate soft-deletes a membership on behalf of actorID
func (s *SQLStore) Deactivate(ctx context.Context, membershipID, actorID int64) error {
	now := storage.Now()
	result, err := s.q.ExecContext(ctx, `
		UPDATE memberships
		SET inactive_at = $1, inactive_by_id = $2, updated_at = $3
		WHERE id = $4 AND inactive_at IS NULL
	`, now, actorID, now, membershipID)
	if err != nil {
		return fmt.Errorf("failed to deactivate membership: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeactivateByGroup overwrites inactive_at on every membership of groupID and
// returns the number of rows written. Callers run it in the transaction that
// deactivates the group.
func (s *SQLStore) DeactivateByGroup(ctx context.Context, groupID int64, at time.Time, actorID *int64) (int64, error) {
	result, err := s.q.ExecContext(ctx, `
		UPDATE memberships
		SET inactive_at = $1, inactive_by_id = $2, updated_at = $3
		WHERE group_id = $4
	`, at, storage.NullInt64(actorID), at, groupID)
	if err != nil {
		return 0, fmt.Errorf("failed to deactivate group memberships: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deactivated memberships: %w", err)
	}
	return n, nil
}

func (s *SQLStore) inTx(ctx context.Context, fn func(q storage.Querier) error) error {
	if _, ok := s.q.(*sql.Tx); ok {
		return fn(s.q)
	}
	return storage.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		return fn(tx)
	})
}

func insert(ctx context.Context, q storage.Querier, m *Membership) (*Membership, error) {
	c := *m
	c.ID = 0
	if err := Validate(ctx, q, &c); err != nil {
		return nil, err
	}

	now := storage.Now()
	c.CreatedAt = now
	c.UpdatedAt = now
	err := q.QueryRowContext(ctx, `
		INSERT INTO memberships (user_id, organization_id, group_id, tier, created_at, updated_at, inactive_at, inactive_by_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`, c.UserID, c.OrganizationID, storage.NullInt64(c.GroupID), int(c.Tier), c.CreatedAt, c.UpdatedAt,
		storage.NullTime(c.InactiveAt), storage.NullInt64(c.InactiveByID)).Scan(&c.ID)
	if storage.IsUniqueViolation(err) {
		return nil, apierrors.ErrDuplicateOrganizationMembership
	}
	if err != nil {
		return nil, apierrors.ErrFailedToCreateMembership.Wrap(err)
	}
	return &c, nil
}

func count(ctx context.Context, q storage.Querier, filter Filter) (int, error) {
	c := filter.conditions()
	var n int
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM memberships`+c.Where(), c.Args()...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count memberships: %w", err)
	}
	return n, nil
}

func find(ctx context.Context, q storage.Querier, filter Filter) ([]*Membership, error) {
	c := filter.conditions()
	rows, err := q.QueryContext(ctx, selectColumns+c.Where()+` ORDER BY id`, c.Args()...)
	if err != nil {
		return nil, fmt.Errorf("failed to query memberships: %w", err)
	}
	defer rows.Close()

	var memberships []*Membership
	for rows.Next() {
		m, err := scanMembership(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan membership: %w", err)
		}
		memberships = append(memberships, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate memberships: %w", err)
	}
	return memberships, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanMembership(row scanner) (*Membership, error) {
	var (
		m            Membership
		tier         int
		groupID      sql.NullInt64
		inactiveAt   sql.NullTime
		inactiveByID sql.NullInt64
	)
	if err := row.Scan(&m.ID, &m.UserID, &m.OrganizationID, &groupID, &tier,
		&m.CreatedAt, &m.UpdatedAt, &inactiveAt, &inactiveByID); err != nil {
		return nil, err
	}
	m.Tier = roles.Tier(tier)
	m.GroupID = storage.Int64Ptr(groupID)
	m.InactiveAt = storage.TimePtr(inactiveAt)
	m.InactiveByID = storage.Int64Ptr(inactiveByID)
	m.CreatedAt = m.CreatedAt.UTC()
	m.UpdatedAt = m.UpdatedAt.UTC()
	return &m, nil
}
