package membership

import (
	"context"
	"fmt"

	"github.com/platinummonkey/campus/pkg/apierrors"
	"github.com/platinummonkey/campus/pkg/roles"
	"github.com/platinummonkey/campus/pkg/storage"
)

// Validate checks m against the membership invariants. It must run on the
// same Querier (usually a transaction) that performs the write.
//
// On success an unset InactiveAt also clears InactiveByID.
func Validate(ctx context.Context, q storage.Querier, m *Membership) error {
	if m.UserID <= 0 || m.OrganizationID <= 0 {
		return apierrors.Missing("user_id", "organization_id")
	}

	if m.GroupID == nil && m.Tier == roles.TierAdmin {
		return apierrors.ErrInvalidOrganizationTier
	}
	if m.GroupID != nil && m.Tier == roles.TierSuperAdmin {
		return apierrors.ErrInvalidGroupTier
	}
	if !m.Tier.Valid() {
		return apierrors.Missing("tier")
	}

	if m.GroupID != nil && m.InactiveAt == nil {
		if err := groupActiveInOrganization(ctx, q, *m.GroupID, m.OrganizationID); err != nil {
			return err
		}
	}

	if m.GroupID == nil && m.InactiveAt == nil {
		filter := Filter{
			UserID:         &m.UserID,
			OrganizationID: &m.OrganizationID,
			Level:          LevelOrganization,
		}
		if m.ID != 0 {
			filter.ExcludeID = &m.ID
		}
		n, err := count(ctx, q, filter)
		if err != nil {
			return err
		}
		if n > 0 {
			return apierrors.ErrDuplicateOrganizationMembership
		}
	}

	if m.InactiveAt == nil {
		m.InactiveByID = nil
	}
	return nil
}

// groupActiveInOrganization fails with NoRsoInUniversity unless groupID names
// an active group of orgID. The no-op UPDATE takes the group's row lock, so
// on PostgreSQL the write serializes with a concurrent cascade.
func groupActiveInOrganization(ctx context.Context, q storage.Querier, groupID, orgID int64) error {
	result, err := q.ExecContext(ctx, `
		UPDATE rsos SET updated_at = updated_at
		WHERE id = $1 AND organization_id = $2 AND inactive_at IS NULL
	`, groupID, orgID)
	if err != nil {
		return fmt.Errorf("failed to check group: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check group: %w", err)
	}
	if n == 0 {
		return apierrors.ErrNoRsoInUniversity
	}
	return nil
}
