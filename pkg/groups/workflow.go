package groups

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/campus/pkg/apierrors"
	"github.com/platinummonkey/campus/pkg/membership"
	"github.com/platinummonkey/campus/pkg/permissions"
	"github.com/platinummonkey/campus/pkg/roles"
	"github.com/platinummonkey/campus/pkg/storage"
)

var tracer = otel.Tracer("campus/groups")

// MinimumCandidates is the number of members, besides the creator, a new
// group must start with
const MinimumCandidates = 4

// lookupConcurrency bounds parallel email resolution
const lookupConcurrency = 8

// UserLookup resolves an email to an active user id
type UserLookup interface {
	FindActiveIDByEmail(ctx context.Context, email string) (id int64, found bool, err error)
}

// Workflow creates groups with their founding roster
type Workflow struct {
	db          *sql.DB
	groups      *Store
	memberships *membership.SQLStore
	users       UserLookup
}

// NewWorkflow creates a group-creation workflow
func NewWorkflow(db *sql.DB, groups *Store, memberships *membership.SQLStore, users UserLookup) *Workflow {
	return &Workflow{db: db, groups: groups, memberships: memberships, users: users}
}

// Create checks preconditions in order and stops at the first failure:
// rso.create at organization scope, at least MinimumCandidates distinct
// candidates, and every candidate an active organization member. The group
// and all memberships are then written in one transaction.
func (w *Workflow) Create(ctx context.Context, perms *permissions.Resolver, req CreateRequest) (*Created, error) {
	ctx, span := tracer.Start(ctx, "groups.Workflow.Create")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("organization.id", req.OrganizationID),
		attribute.Int64("creator.id", req.CreatorID),
	)

	created, err := w.create(ctx, perms, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "group creation failed")
		return nil, err
	}
	span.SetAttributes(attribute.Int64("group.id", created.Group.ID))
	return created, nil
}

func (w *Workflow) create(ctx context.Context, perms *permissions.Resolver, req CreateRequest) (*Created, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" || req.OrganizationID <= 0 || req.CreatorID <= 0 {
		return nil, apierrors.Missing("name", "organization_id", "creator_id")
	}

	if !perms.Allowed(roles.ActionRsoCreate, permissions.ScopeOrganization, req.OrganizationID) {
		return nil, apierrors.ErrInvalidPermissionForAction
	}

	candidates := NormalizeCandidates(req.MemberEmails, req.CreatorEmail)
	if len(candidates) < MinimumCandidates {
		return nil, apierrors.ErrNotEnoughMembersInRso.WithRaw(map[string]int{
			"required": MinimumCandidates,
			"given":    len(candidates),
		})
	}

	userIDs, err := w.resolveCandidates(ctx, req.OrganizationID, candidates)
	if err != nil {
		return nil, err
	}

	group := &Group{
		OrganizationID: req.OrganizationID,
		CreatedByID:    req.CreatorID,
		Name:           name,
		Description:    strings.TrimSpace(req.Description),
	}

	roster := make([]*membership.Membership, 0, len(candidates)+1)
	var created []*membership.Membership
	err = storage.WithTx(ctx, w.db, func(tx *sql.Tx) error {
		if err := w.groups.WithTx(tx).Insert(ctx, group); err != nil {
			return err
		}

		roster = append(roster, &membership.Membership{
			UserID:         req.CreatorID,
			OrganizationID: req.OrganizationID,
			GroupID:        &group.ID,
			Tier:           roles.TierAdmin,
		})
		for _, email := range candidates {
			roster = append(roster, &membership.Membership{
				UserID:         userIDs[email],
				OrganizationID: req.OrganizationID,
				GroupID:        &group.ID,
				Tier:           roles.TierStudent,
			})
		}

		var err error
		created, err = w.memberships.WithTx(tx).CreateBatch(ctx, roster)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create group: %w", err)
	}

	return &Created{Group: group, Memberships: created}, nil
}

// resolveCandidates maps every candidate email to an active user id with an
// active organization-level membership. Any miss fails the whole set with a
// per-email report.
func (w *Workflow) resolveCandidates(ctx context.Context, organizationID int64, emails []string) (map[string]int64, error) {
	var (
		mu      sync.Mutex
		ids     = make(map[string]int64, len(emails))
		results = make(map[string]bool, len(emails))
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(lookupConcurrency)
	for _, email := range emails {
		email := email
		g.Go(func() error {
			id, found, err := w.users.FindActiveIDByEmail(gctx, email)
			if err != nil {
				return fmt.Errorf("failed to resolve %s: %w", email, err)
			}
			ok := false
			if found {
				n, err := w.memberships.CountActive(gctx, membership.Filter{
					UserID:         &id,
					OrganizationID: &organizationID,
					Level:          membership.LevelOrganization,
				})
				if err != nil {
					return err
				}
				ok = n > 0
			}

			mu.Lock()
			defer mu.Unlock()
			results[email] = ok
			if ok {
				ids[email] = id
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, ok := range results {
		if !ok {
			return nil, apierrors.InvalidUserSpecifiedForCreation(results)
		}
	}
	return ids, nil
}

// NormalizeCandidates lowercases, trims and deduplicates emails, dropping
// blanks and the creator's own address. The result is sorted.
func NormalizeCandidates(emails []string, creatorEmail string) []string {
	creator := strings.ToLower(strings.TrimSpace(creatorEmail))
	seen := make(map[string]struct{}, len(emails))
	out := make([]string, 0, len(emails))
	for _, e := range emails {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" || e == creator {
			continue
		}
		if _, dup := seen[e]; dup {
			continue
		}
		seen[e] = struct{}{}
		out = append(out, e)
	}
	sort.Strings(out)
	return out
}
