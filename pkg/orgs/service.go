package orgs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/platinummonkey/campus/pkg/apierrors"
	"github.com/platinummonkey/campus/pkg/membership"
	"github.com/platinummonkey/campus/pkg/permissions"
	"github.com/platinummonkey/campus/pkg/roles"
	"github.com/platinummonkey/campus/pkg/storage"
	"github.com/platinummonkey/campus/pkg/users"
)

var tracer = otel.Tracer("campus/orgs")

const selectColumns = `SELECT id, name, description, image_url, latitude, longitude, created_by_id, created_at, updated_at, inactive_at, inactive_by_id FROM organizations`

// CreatorLookup returns an active user
type CreatorLookup interface {
	Get(ctx context.Context, id int64) (*users.User, error)
}

// SQLService implements Service on PostgreSQL or SQLite
type SQLService struct {
	db          *sql.DB
	memberships *membership.SQLStore
	creators    CreatorLookup
}

// NewSQLService creates a new SQLService
func NewSQLService(db *sql.DB, memberships *membership.SQLStore, creators CreatorLookup) *SQLService {
	return &SQLService{db: db, memberships: memberships, creators: creators}
}

// Create inserts a university and makes the creator its SUPERADMIN
func (s *SQLService) Create(ctx context.Context, creatorID int64, req CreateRequest) (*Organization, error) {
	ctx, span := tracer.Start(ctx, "orgs.Create")
	defer span.End()
	span.SetAttributes(attribute.Int64("creator.id", creatorID))

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, apierrors.Missing("name")
	}

	exists, err := s.nameTaken(ctx, name)
	if err != nil {
		return nil, apierrors.ErrFailedToCreateUniversity.Wrap(err)
	}
	if exists {
		return nil, apierrors.ErrUniversityExistsWithName
	}

	if creatorID <= 0 {
		return nil, apierrors.ErrInvalidUserCreatingUniversity
	}
	if _, err := s.creators.Get(ctx, creatorID); err != nil {
		if errors.Is(err, apierrors.ErrUserRecordNotFound) {
			return nil, apierrors.ErrInvalidUserCreatingUniversity
		}
		return nil, apierrors.ErrFailedToCreateUniversity.Wrap(err)
	}

	now := storage.Now()
	org := &Organization{
		Name:        name,
		Description: strings.TrimSpace(req.Description),
		Latitude:    req.Latitude,
		Longitude:   req.Longitude,
		CreatedByID: creatorID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	err = storage.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `
			INSERT INTO organizations (name, description, latitude, longitude, created_by_id, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id
		`, org.Name, org.Description, storage.NullFloat64(org.Latitude), storage.NullFloat64(org.Longitude), org.CreatedByID,
			org.CreatedAt, org.UpdatedAt).Scan(&org.ID)
		if storage.IsUniqueViolation(err) {
			return apierrors.ErrUniversityExistsWithName
		}
		if err != nil {
			return apierrors.ErrFailedToCreateUniversity.Wrap(err)
		}

		_, err = s.memberships.WithTx(tx).Create(ctx, &membership.Membership{
			UserID:         creatorID,
			OrganizationID: org.ID,
			Tier:           roles.TierSuperAdmin,
		})
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to create university")
		return nil, err
	}

	span.SetAttributes(attribute.Int64("organization.id", org.ID))
	return org, nil
}

// Get returns an active university
func (s *SQLService) Get(ctx context.Context, id int64) (*Organization, error) {
	if id <= 0 {
		return nil, apierrors.Missing("id")
	}
	c := &storage.Conditions{}
	c.Eq("id", id)
	storage.ActiveOnly.Apply(c, "inactive_at")

	org, err := scanOrganization(s.db.QueryRowContext(ctx, selectColumns+c.Where(), c.Args()...))
	if err == sql.ErrNoRows {
		return nil, apierrors.ErrUniversityRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get university: %w", err)
	}
	return org, nil
}

// Exists reports whether an active university with id exists
func (s *SQLService) Exists(ctx context.Context, id int64) (bool, error) {
	_, err := s.Get(ctx, id)
	if errors.Is(err, apierrors.ErrUniversityRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// List returns universities matching filter ordered by name
func (s *SQLService) List(ctx context.Context, filter ListFilter) ([]*Organization, error) {
	c := &storage.Conditions{}
	if filter.UserID != nil {
		ms, err := s.memberships.Find(ctx, membership.Filter{
			UserID: filter.UserID,
			Level:  membership.LevelOrganization,
		})
		if err != nil {
			return nil, err
		}
		ids := make([]int64, 0, len(ms))
		for _, m := range ms {
			ids = append(ids, m.OrganizationID)
		}
		c.In("id", ids)
	}
	if filter.Name != "" {
		c.Like("name", filter.Name)
	}
	filter.Active.Apply(c, "inactive_at")

	rows, err := s.db.QueryContext(ctx, selectColumns+c.Where()+` ORDER BY name, id`, c.Args()...)
	if err != nil {
		return nil, fmt.Errorf("failed to list universities: %w", err)
	}
	defer rows.Close()

	orgs := []*Organization{}
	for rows.Next() {
		org, err := scanOrganization(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan university: %w", err)
		}
		orgs = append(orgs, org)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate universities: %w", err)
	}
	return orgs, nil
}

// Update changes descriptive fields. Requires university.update.
func (s *SQLService) Update(ctx context.Context, perms *permissions.Resolver, id int64, req UpdateRequest) (*Organization, error) {
	org, err := s.authorize(ctx, perms, roles.ActionUniversityUpdate, id)
	if err != nil {
		return nil, err
	}

	if req.Description != nil {
		org.Description = strings.TrimSpace(*req.Description)
	}
	if req.Latitude != nil {
		org.Latitude = req.Latitude
	}
	if req.Longitude != nil {
		org.Longitude = req.Longitude
	}
	org.UpdatedAt = storage.Now()

	_, err = s.db.ExecContext(ctx, `
		UPDATE organizations SET description = $1, latitude = $2, longitude = $3, updated_at = $4
		WHERE id = $5
	`, org.Description, storage.NullFloat64(org.Latitude), storage.NullFloat64(org.Longitude), org.UpdatedAt, org.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to update university: %w", err)
	}
	return org, nil
}

// SetImage records the university's image URL. Requires university.update.
func (s *SQLService) SetImage(ctx context.Context, perms *permissions.Resolver, id int64, imageURL string) (*Organization, error) {
	org, err := s.authorize(ctx, perms, roles.ActionUniversityUpdate, id)
	if err != nil {
		return nil, err
	}
	org.ImageURL = &imageURL
	org.UpdatedAt = storage.Now()

	_, err = s.db.ExecContext(ctx, `UPDATE organizations SET image_url = $1, updated_at = $2 WHERE id = $3`,
		imageURL, org.UpdatedAt, org.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to set university image: %w", err)
	}
	return org, nil
}

// Deactivate soft-deletes the university. Requires university.destroy.
func (s *SQLService) Deactivate(ctx context.Context, perms *permissions.Resolver, id int64) (*Organization, error) {
	org, err := s.authorize(ctx, perms, roles.ActionUniversityDestroy, id)
	if err != nil {
		return nil, err
	}

	at := storage.Now()
	actor := perms.UserID()
	_, err = s.db.ExecContext(ctx, `
		UPDATE organizations SET inactive_at = $1, inactive_by_id = $2, updated_at = $3
		WHERE id = $4 AND inactive_at IS NULL
	`, at, actor, at, org.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to deactivate university: %w", err)
	}
	org.InactiveAt = &at
	org.InactiveByID = &actor
	org.UpdatedAt = at
	return org, nil
}

func (s *SQLService) authorize(ctx context.Context, perms *permissions.Resolver, action roles.Action, id int64) (*Organization, error) {
	if id <= 0 {
		return nil, apierrors.Missing("id")
	}
	if !perms.Allowed(action, permissions.ScopeOrganization, id) {
		return nil, apierrors.ErrInvalidPermissionForAction.WithRaw(map[string]interface{}{
			"action": action,
			"id":     id,
		})
	}
	return s.Get(ctx, id)
}

func (s *SQLService) nameTaken(ctx context.Context, name string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM organizations WHERE name = $1`, name).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check university name: %w", err)
	}
	return n > 0, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanOrganization(row scanner) (*Organization, error) {
	var (
		org          Organization
		imageURL     sql.NullString
		lat, lng     sql.NullFloat64
		inactiveAt   sql.NullTime
		inactiveByID sql.NullInt64
	)
	if err := row.Scan(&org.ID, &org.Name, &org.Description, &imageURL, &lat, &lng, &org.CreatedByID,
		&org.CreatedAt, &org.UpdatedAt, &inactiveAt, &inactiveByID); err != nil {
		return nil, err
	}
	org.ImageURL = storage.StringPtr(imageURL)
	org.Latitude = storage.Float64Ptr(lat)
	org.Longitude = storage.Float64Ptr(lng)
	org.CreatedAt = org.CreatedAt.UTC()
	org.UpdatedAt = org.UpdatedAt.UTC()
	org.InactiveAt = storage.TimePtr(inactiveAt)
	org.InactiveByID = storage.Int64Ptr(inactiveByID)
	return &org, nil
}
