package users

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/platinummonkey/campus/pkg/apierrors"
	"github.com/platinummonkey/campus/pkg/membership"
	"github.com/platinummonkey/campus/pkg/roles"
	"github.com/platinummonkey/campus/pkg/storage"
)

var tracer = otel.Tracer("campus/users")

// OrganizationLookup reports whether an active organization exists
type OrganizationLookup interface {
	Exists(ctx context.Context, id int64) (bool, error)
}

// Service implements account operations
type Service struct {
	db          *sql.DB
	store       *Store
	memberships *membership.SQLStore
	orgs        OrganizationLookup
	bcryptCost  int
}

// NewService creates a user service. orgs may be nil, in which case signup
// does not check that the university exists.
func NewService(db *sql.DB, memberships *membership.SQLStore, orgs OrganizationLookup, bcryptCost int) *Service {
	return &Service{
		db:          db,
		store:       NewStore(db),
		memberships: memberships,
		orgs:        orgs,
		bcryptCost:  bcryptCost,
	}
}

// NormalizeEmail lowercases and trims an email address
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Signup creates the account and its STUDENT membership in the requested
// university in one transaction
func (s *Service) Signup(ctx context.Context, req SignupRequest) (*User, error) {
	ctx, span := tracer.Start(ctx, "users.Signup")
	defer span.End()
	span.SetAttributes(attribute.Int64("organization.id", req.OrganizationID))

	email := NormalizeEmail(req.Email)
	var missing []string
	if strings.TrimSpace(req.FirstName) == "" {
		missing = append(missing, "first_name")
	}
	if strings.TrimSpace(req.LastName) == "" {
		missing = append(missing, "last_name")
	}
	if email == "" || !strings.Contains(email, "@") {
		missing = append(missing, "email")
	}
	if req.Password == "" {
		missing = append(missing, "password")
	}
	if len(missing) > 0 {
		return nil, apierrors.Missing(missing...)
	}
	if req.OrganizationID <= 0 {
		return nil, apierrors.ErrNoUniversitySpecifiedToJoin
	}

	if s.orgs != nil {
		ok, err := s.orgs.Exists(ctx, req.OrganizationID)
		if err != nil {
			return nil, apierrors.ErrFailedToSignup.Wrap(err)
		}
		if !ok {
			return nil, apierrors.ErrUniversityRecordNotFound
		}
	}

	if _, err := s.store.GetByEmail(ctx, email, storage.AllRows); err == nil {
		return nil, apierrors.ErrUserExistsWithEmail
	} else if !errors.Is(err, ErrNotFound) {
		return nil, apierrors.ErrFailedToSignup.Wrap(err)
	}

	hash, err := HashPassword(req.Password, s.bcryptCost)
	if err != nil {
		return nil, apierrors.ErrFailedToSignup.Wrap(err)
	}

	u := &User{
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		Email:        email,
		PasswordHash: hash,
	}
	err = storage.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		if err := NewStore(tx).Insert(ctx, u); err != nil {
			if storage.IsUniqueViolation(err) {
				return apierrors.ErrUserExistsWithEmail
			}
			return err
		}
		_, err := s.memberships.WithTx(tx).Create(ctx, &membership.Membership{
			UserID:         u.ID,
			OrganizationID: req.OrganizationID,
			Tier:           roles.TierStudent,
		})
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "signup failed")
		var apiErr *apierrors.Error
		if errors.As(err, &apiErr) {
			return nil, err
		}
		return nil, apierrors.ErrFailedToSignup.Wrap(err)
	}

	span.SetAttributes(attribute.Int64("user.id", u.ID))
	return u, nil
}

// Authenticate checks credentials and records the login
func (s *Service) Authenticate(ctx context.Context, email, password string) (*User, error) {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, apierrors.ErrFailedToLogin
	}

	u, err := s.store.GetByEmail(ctx, email, storage.ActiveOnly)
	if errors.Is(err, ErrNotFound) {
		return nil, apierrors.ErrFailedToLogin
	}
	if err != nil {
		return nil, apierrors.ErrFailedToLogin.Wrap(err)
	}
	if !CheckPassword(u.PasswordHash, password) {
		return nil, apierrors.ErrFailedToLogin
	}

	if err := s.store.RecordLogin(ctx, u.ID); err != nil {
		return nil, apierrors.ErrFailedToLogin.Wrap(err)
	}
	u.Logins++
	return u, nil
}

// Get returns an active user
func (s *Service) Get(ctx context.Context, id int64) (*User, error) {
	if id <= 0 {
		return nil, apierrors.Missing("id")
	}
	u, err := s.store.Get(ctx, id, storage.ActiveOnly)
	if errors.Is(err, ErrNotFound) {
		return nil, apierrors.ErrUserRecordNotFound
	}
	return u, err
}

// FindActiveByEmail returns the active user with email
func (s *Service) FindActiveByEmail(ctx context.Context, email string) (*User, error) {
	u, err := s.store.GetByEmail(ctx, NormalizeEmail(email), storage.ActiveOnly)
	if errors.Is(err, ErrNotFound) {
		return nil, apierrors.ErrUserRecordNotFound
	}
	return u, err
}

// FindActiveIDByEmail resolves an email for the group-creation workflow
func (s *Service) FindActiveIDByEmail(ctx context.Context, email string) (int64, bool, error) {
	u, err := s.store.GetByEmail(ctx, NormalizeEmail(email), storage.ActiveOnly)
	if errors.Is(err, ErrNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return u.ID, true, nil
}

// Update changes the caller's own profile
func (s *Service) Update(ctx context.Context, actorID, id int64, req UpdateRequest) (*User, error) {
	if actorID != id {
		return nil, apierrors.ErrInvalidPermissionForAction
	}
	u, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.FirstName != nil {
		u.FirstName = strings.TrimSpace(*req.FirstName)
	}
	if req.LastName != nil {
		u.LastName = strings.TrimSpace(*req.LastName)
	}
	if req.Email != nil {
		email := NormalizeEmail(*req.Email)
		if email != u.Email {
			if _, err := s.store.GetByEmail(ctx, email, storage.AllRows); err == nil {
				return nil, apierrors.ErrUserExistsWithEmail
			}
		}
		u.Email = email
	}
	if req.Password != nil {
		hash, err := HashPassword(*req.Password, s.bcryptCost)
		if err != nil {
			return nil, err
		}
		u.PasswordHash = hash
	}
	if u.FirstName == "" || u.LastName == "" || u.Email == "" {
		return nil, apierrors.Missing("first_name", "last_name", "email")
	}

	if err := s.store.Update(ctx, u); err != nil {
		if storage.IsUniqueViolation(err) {
			return nil, apierrors.ErrUserExistsWithEmail
		}
		return nil, err
	}
	return u, nil
}

// Deactivate closes the caller's own account
func (s *Service) Deactivate(ctx context.Context, actorID, id int64) error {
	if actorID != id {
		return apierrors.ErrInvalidPermissionForAction
	}
	err := s.store.Deactivate(ctx, id, actorID, storage.Now())
	if errors.Is(err, ErrNotFound) {
		return apierrors.ErrUserRecordNotFound
	}
	return err
}
