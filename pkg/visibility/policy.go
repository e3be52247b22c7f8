// Package visibility decides which event privacy tiers a user may see.
package visibility

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/campus/pkg/membership"
	"github.com/platinummonkey/campus/pkg/roles"
)

var tracer = otel.Tracer("campus/visibility")

// TierObserver is told about every resolved minimum tier
type TierObserver interface {
	ObserveVisibilityTier(tier string)
}

// Policy resolves the minimum privacy tier visible to a user
type Policy struct {
	counter  membership.Counter
	observer TierObserver
}

// NewPolicy creates a policy backed by counter
func NewPolicy(counter membership.Counter) *Policy {
	return &Policy{counter: counter}
}

// WithObserver returns a copy of p that reports resolved tiers to o
func (p *Policy) WithObserver(o TierObserver) *Policy {
	cp := *p
	cp.observer = o
	return &cp
}

func (p *Policy) observe(tier roles.PrivacyTier) {
	if p.observer != nil {
		p.observer.ObserveVisibilityTier(tier.String())
	}
}

// MinimumTier returns the most restricted privacy tier userID may see in the
// organization. Everyone sees PUBLIC; organization members see PRIVATE; members
// of groupID see RSO. The probes run concurrently and the lowest unlocked tier
// wins.
func (p *Policy) MinimumTier(ctx context.Context, organizationID, userID int64, groupID *int64) (roles.PrivacyTier, error) {
	ctx, span := tracer.Start(ctx, "visibility.MinimumTier")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("organization.id", organizationID),
		attribute.Int64("user.id", userID),
	)

	if userID <= 0 || organizationID <= 0 {
		p.observe(roles.PrivacyPublic)
		return roles.PrivacyPublic, nil
	}

	var orgMember, groupMember bool
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		n, err := p.counter.CountActive(gctx, membership.Filter{
			UserID:         &userID,
			OrganizationID: &organizationID,
			Level:          membership.LevelOrganization,
		})
		if err != nil {
			return fmt.Errorf("organization probe: %w", err)
		}
		orgMember = n > 0
		return nil
	})

	if groupID != nil {
		g.Go(func() error {
			n, err := p.counter.CountActive(gctx, membership.Filter{
				UserID:         &userID,
				OrganizationID: &organizationID,
				GroupID:        groupID,
				Level:          membership.LevelGroup,
			})
			if err != nil {
				return fmt.Errorf("group probe: %w", err)
			}
			groupMember = n > 0
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return roles.PrivacyPublic, fmt.Errorf("failed to resolve visibility: %w", err)
	}

	tier := roles.PrivacyPublic
	if orgMember {
		tier = roles.PrivacyPrivate
	}
	if groupMember {
		tier = roles.PrivacyRSO
	}
	span.SetAttributes(attribute.String("visibility.minimum_tier", tier.String()))
	p.observe(tier)
	return tier, nil
}

// Visible reports whether an event with the given privacy is visible at minimum
func Visible(privacy, minimum roles.PrivacyTier) bool {
	return privacy >= minimum
}

// Filter keeps the items whose privacy is visible at minimum
func Filter[T any](items []T, minimum roles.PrivacyTier, privacy func(T) roles.PrivacyTier) []T {
	out := make([]T, 0, len(items))
	for _, item := range items {
		if Visible(privacy(item), minimum) {
			out = append(out, item)
		}
	}
	return out
}
