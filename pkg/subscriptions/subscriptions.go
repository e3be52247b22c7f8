// Package subscriptions records which users follow which groups.
package subscriptions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/platinummonkey/campus/pkg/apierrors"
	"github.com/platinummonkey/campus/pkg/groups"
	"github.com/platinummonkey/campus/pkg/permissions"
	"github.com/platinummonkey/campus/pkg/roles"
	"github.com/platinummonkey/campus/pkg/storage"
)

// ErrNotFound is returned when no active subscription matches
var ErrNotFound = errors.New("subscription not found")

// Subscription links a user to a group they follow
type Subscription struct {
	ID         int64      `json:"id"`
	UserID     int64      `json:"user_id"`
	GroupID    int64      `json:"rso_id"`
	CreatedAt  time.Time  `json:"created_at"`
	InactiveAt *time.Time `json:"inactive_at,omitempty"`
}

// Filter selects active subscriptions. At least one field must be set.
type Filter struct {
	UserID  *int64
	GroupID *int64
}

func (f Filter) empty() bool {
	return f.UserID == nil && f.GroupID == nil
}

// GroupLookup resolves the group being subscribed to
type GroupLookup interface {
	Get(ctx context.Context, id int64, active storage.ActiveFilter) (*groups.Group, error)
}

// Service manages subscriptions
type Service struct {
	db     *sql.DB
	groups GroupLookup
}

// NewService creates a subscription service
func NewService(db *sql.DB, groupLookup GroupLookup) *Service {
	return &Service{db: db, groups: groupLookup}
}

// Subscribe subscribes the caller to a group of the organization. Requires
// rso.subscribe on the group's organization.
func (s *Service) Subscribe(ctx context.Context, perms *permissions.Resolver, organizationID, groupID int64) (*Subscription, error) {
	if groupID <= 0 {
		return nil, apierrors.Missing("rso_id")
	}
	g, err := s.groups.Get(ctx, groupID, storage.ActiveOnly)
	if errors.Is(err, groups.ErrNotFound) || (err == nil && organizationID > 0 && g.OrganizationID != organizationID) {
		return nil, apierrors.ErrNoRsoInUniversity
	}
	if err != nil {
		return nil, err
	}
	if !perms.Allowed(roles.ActionRsoSubscribe, permissions.ScopeOrganization, g.OrganizationID) {
		return nil, apierrors.ErrInvalidPermissionForAction
	}

	userID := perms.UserID()
	existing, err := s.List(ctx, Filter{UserID: &userID, GroupID: &g.ID})
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		return nil, apierrors.ErrUserAlreadySubscribedToRso
	}

	sub := &Subscription{UserID: userID, GroupID: g.ID, CreatedAt: storage.Now()}
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO subscriptions (user_id, group_id, created_at)
		VALUES ($1, $2, $3)
		RETURNING id
	`, sub.UserID, sub.GroupID, sub.CreatedAt).Scan(&sub.ID)
	if err != nil {
		if storage.IsUniqueViolation(err) {
			return nil, apierrors.ErrUserAlreadySubscribedToRso
		}
		return nil, fmt.Errorf("failed to insert subscription: %w", err)
	}
	return sub, nil
}

// List returns active subscriptions matching filter. An empty filter matches
// nothing.
func (s *Service) List(ctx context.Context, filter Filter) ([]*Subscription, error) {
	subs := []*Subscription{}
	if filter.empty() {
		return subs, nil
	}

	c := &storage.Conditions{}
	if filter.UserID != nil {
		c.Eq("user_id", *filter.UserID)
	}
	if filter.GroupID != nil {
		c.Eq("group_id", *filter.GroupID)
	}
	storage.ActiveOnly.Apply(c, "inactive_at")

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, group_id, created_at, inactive_at FROM subscriptions`+c.Where()+` ORDER BY id`,
		c.Args()...)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			sub        Subscription
			inactiveAt sql.NullTime
		)
		if err := rows.Scan(&sub.ID, &sub.UserID, &sub.GroupID, &sub.CreatedAt, &inactiveAt); err != nil {
			return nil, fmt.Errorf("failed to scan subscription: %w", err)
		}
		sub.CreatedAt = sub.CreatedAt.UTC()
		sub.InactiveAt = storage.TimePtr(inactiveAt)
		subs = append(subs, &sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate subscriptions: %w", err)
	}
	return subs, nil
}

// Unsubscribe ends a subscription owned by actorID
func (s *Service) Unsubscribe(ctx context.Context, actorID, id int64) error {
	var ownerID int64
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id FROM subscriptions WHERE id = $1 AND inactive_at IS NULL`, id).Scan(&ownerID)
	if err == sql.ErrNoRows {
		return apierrors.ErrSubscriptionNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to get subscription: %w", err)
	}
	if ownerID != actorID {
		return apierrors.ErrInvalidPermissionForAction
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE subscriptions SET inactive_at = $1 WHERE id = $2 AND inactive_at IS NULL`, storage.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to delete subscription: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return apierrors.ErrSubscriptionNotFound
	}
	return nil
}
