package groups

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/platinummonkey/campus/pkg/apierrors"
	"github.com/platinummonkey/campus/pkg/membership"
	"github.com/platinummonkey/campus/pkg/storage"
)

// CascadeResult describes what a deactivation changed
type CascadeResult struct {
	Group *Group
	// Cascaded is false when the group was already inactive
	Cascaded bool
	// Memberships is the number of membership rows overwritten
	Memberships int64
}

// CascadeCoordinator deactivates groups together with their memberships
type CascadeCoordinator struct {
	db          *sql.DB
	groups      *Store
	memberships *membership.SQLStore
}

// NewCascadeCoordinator creates a coordinator over the given stores
func NewCascadeCoordinator(db *sql.DB, groups *Store, memberships *membership.SQLStore) *CascadeCoordinator {
	return &CascadeCoordinator{db: db, groups: groups, memberships: memberships}
}

// Deactivate marks the group inactive and sets every membership of the group,
// active or not, to the same inactive_at. Both writes commit together or not
// at all.
func (c *CascadeCoordinator) Deactivate(ctx context.Context, groupID, actorID int64) (*CascadeResult, error) {
	ctx, span := tracer.Start(ctx, "groups.CascadeCoordinator.Deactivate")
	defer span.End()
	span.SetAttributes(attribute.Int64("group.id", groupID), attribute.Int64("actor.id", actorID))

	result := &CascadeResult{}
	err := storage.WithTx(ctx, c.db, func(tx *sql.Tx) error {
		groups := c.groups.WithTx(tx)

		at := storage.Now()
		changed, err := groups.MarkInactive(ctx, groupID, at, &actorID)
		if err != nil {
			return err
		}
		if changed {
			n, err := c.memberships.WithTx(tx).DeactivateByGroup(ctx, groupID, at, &actorID)
			if err != nil {
				return apierrors.ErrConsistency.Wrap(err)
			}
			result.Cascaded = true
			result.Memberships = n
		}

		result.Group, err = groups.Get(ctx, groupID, storage.AllRows)
		if errors.Is(err, ErrNotFound) {
			return apierrors.ErrNoRsoInUniversity.Wrap(err)
		}
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "cascade failed")
		return nil, fmt.Errorf("failed to deactivate group %d: %w", groupID, err)
	}

	span.SetAttributes(
		attribute.Bool("cascade.applied", result.Cascaded),
		attribute.Int64("cascade.memberships", result.Memberships),
	)
	return result, nil
}
