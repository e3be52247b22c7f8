// Package membership is the system of record for user standing in
// organizations and groups.
//
// # Invariants
//
// The store enforces, on every create and update:
//
//   - an organization-level membership (GroupID == nil) is never ADMIN
//   - a group-level membership is never SUPERADMIN
//   - a user holds at most one active organization-level membership per organization
//
// The first two are checked by Validate before the write. The third is
// checked by Validate inside the write transaction and backed by the partial
// unique index idx_memberships_active_org, so two concurrent creates cannot
// both commit.
//
// # Querying
//
// Every read goes through Filter, whose Active field is a storage.ActiveFilter.
// The zero Filter matches active rows only.
//
//	n, err := store.CountActive(ctx, membership.Filter{
//		UserID:         &userID,
//		OrganizationID: &orgID,
//		Level:          membership.LevelOrganization,
//	})
//
// # Deactivation
//
// Deactivate soft-deletes a single membership. DeactivateByGroup is reserved
// for the group cascade in pkg/groups and must run inside the same transaction
// as the group update.
package membership
