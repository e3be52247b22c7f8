// Package permissions answers "may this user perform this action here" for a
// single request.
//
// A Resolver is built once per authenticated request from the user's active
// memberships and is immutable afterwards. It is never cached across requests.
package permissions

import (
	"context"
	"fmt"
	"sort"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/platinummonkey/campus/pkg/apierrors"
	"github.com/platinummonkey/campus/pkg/membership"
	"github.com/platinummonkey/campus/pkg/roles"
)

var tracer = otel.Tracer("campus/permissions")

// Scope selects which membership index a check consults
type Scope string

const (
	ScopeOrganization Scope = "organization"
	ScopeGroup        Scope = "group"
)

// Valid reports whether s is a known scope
func (s Scope) Valid() bool {
	return s == ScopeOrganization || s == ScopeGroup
}

// Malformed checks. All three are RequiredParametersMissing, so they reach
// clients as 400 with the offending field in raw.
var (
	ErrMissingAction = apierrors.Missing("action")
	ErrMissingScope  = apierrors.Missing("scope_id")
	ErrUnknownScope  = apierrors.Missing("scope")
)

type actionSet map[roles.Action]struct{}

// Resolver is a read-only view of a user's permissions. The zero value and a
// nil *Resolver grant nothing.
type Resolver struct {
	userID        int64
	loaded        bool
	organizations map[int64]actionSet
	groups        map[int64]actionSet
}

// Build loads the active memberships of userID and indexes the actions each
// grants. A load failure returns an error and no resolver; callers must treat
// that as no permissions.
func Build(ctx context.Context, loader membership.Loader, userID int64) (*Resolver, error) {
	ctx, span := tracer.Start(ctx, "permissions.Build")
	defer span.End()
	span.SetAttributes(attribute.Int64("user.id", userID))

	memberships, err := loader.FindActiveByUser(ctx, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to load memberships")
		return nil, fmt.Errorf("failed to resolve permissions: %w", err)
	}

	r := FromMemberships(userID, memberships)
	span.SetAttributes(
		attribute.Int("permissions.organizations", len(r.organizations)),
		attribute.Int("permissions.groups", len(r.groups)),
	)
	return r, nil
}

// FromMemberships indexes an already-loaded membership snapshot. Inactive
// entries are skipped.
func FromMemberships(userID int64, memberships []*membership.Membership) *Resolver {
	r := &Resolver{
		userID:        userID,
		loaded:        true,
		organizations: make(map[int64]actionSet),
		groups:        make(map[int64]actionSet),
	}
	for _, m := range memberships {
		if m == nil || !m.IsActive() {
			continue
		}
		if m.GroupID != nil {
			grant(r.groups, *m.GroupID, m.Tier)
		} else {
			grant(r.organizations, m.OrganizationID, m.Tier)
		}
	}
	return r
}

func grant(index map[int64]actionSet, id int64, tier roles.Tier) {
	set, ok := index[id]
	if !ok {
		set = make(actionSet)
		index[id] = set
	}
	for _, action := range roles.ConcatPerms(tier) {
		set[action] = struct{}{}
	}
}

// UserID returns the user the resolver was built for
func (r *Resolver) UserID() int64 {
	if r == nil {
		return 0
	}
	return r.userID
}

// Loaded reports whether the resolver was built from a successful load
func (r *Resolver) Loaded() bool {
	return r != nil && r.loaded
}

// Can reports whether the user may perform action in the given scope. Lack of
// standing is false, not an error; only malformed checks return an error.
func (r *Resolver) Can(action roles.Action, scope Scope, id int64) (bool, error) {
	if action == "" {
		return false, ErrMissingAction
	}
	if id <= 0 {
		return false, ErrMissingScope
	}

	var index map[int64]actionSet
	switch scope {
	case ScopeOrganization:
		if r != nil {
			index = r.organizations
		}
	case ScopeGroup:
		if r != nil {
			index = r.groups
		}
	default:
		return false, ErrUnknownScope
	}

	_, ok := index[id][action]
	return ok, nil
}

// Allowed is Can with malformed checks treated as denied
func (r *Resolver) Allowed(action roles.Action, scope Scope, id int64) bool {
	ok, err := r.Can(action, scope, id)
	return err == nil && ok
}

// Actions returns the sorted actions granted in a scope
func (r *Resolver) Actions(scope Scope, id int64) []roles.Action {
	if r == nil {
		return nil
	}
	var set actionSet
	switch scope {
	case ScopeOrganization:
		set = r.organizations[id]
	case ScopeGroup:
		set = r.groups[id]
	}
	return sortedActions(set)
}

// OrganizationIDs returns the organizations in which the user has standing
func (r *Resolver) OrganizationIDs() []int64 {
	if r == nil {
		return nil
	}
	return sortedKeys(r.organizations)
}

// GroupIDs returns the groups in which the user has standing
func (r *Resolver) GroupIDs() []int64 {
	if r == nil {
		return nil
	}
	return sortedKeys(r.groups)
}

// Snapshot is the serializable form of a resolver
type Snapshot struct {
	UserID        int64                    `json:"user_id"`
	Organizations map[int64][]roles.Action `json:"organizations"`
	Groups        map[int64][]roles.Action `json:"groups"`
}

// Snapshot copies the resolver's grants
func (r *Resolver) Snapshot() Snapshot {
	s := Snapshot{
		UserID:        r.UserID(),
		Organizations: make(map[int64][]roles.Action),
		Groups:        make(map[int64][]roles.Action),
	}
	if r == nil {
		return s
	}
	for id, set := range r.organizations {
		s.Organizations[id] = sortedActions(set)
	}
	for id, set := range r.groups {
		s.Groups[id] = sortedActions(set)
	}
	return s
}

func sortedActions(set actionSet) []roles.Action {
	actions := make([]roles.Action, 0, len(set))
	for a := range set {
		actions = append(actions, a)
	}
	sort.Slice(actions, func(i, j int) bool { return actions[i] < actions[j] })
	return actions
}

func sortedKeys(index map[int64]actionSet) []int64 {
	ids := make([]int64, 0, len(index))
	for id := range index {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
