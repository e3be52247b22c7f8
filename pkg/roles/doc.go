// Package roles defines the static role catalog for campus.
//
// # Overview
//
// A membership carries one of three tiers. Each tier grants a fixed set of
// action keys. The table is declared once in Catalog and never changes at
// runtime, so it can be read from any goroutine without locking.
//
//	TierSuperAdmin  organization-level only
//	TierAdmin       group-level only
//	TierStudent     either level
//
// # Privacy Tiers
//
// Events carry a PrivacyTier. It is a separate type from Tier so the two
// scales cannot be compared by accident:
//
//	PrivacyRSO      visible to members of the owning group
//	PrivacyPrivate  visible to members of the owning organization
//	PrivacyPublic   visible to everyone
//
// # Usage
//
//	for _, action := range roles.ConcatPerms(m.Tier) {
//		set[action] = struct{}{}
//	}
//
//	if roles.Grants(roles.TierAdmin, roles.ActionEventsCreate) {
//		// ...
//	}
//
// # Related Packages
//
//   - pkg/permissions: Builds per-user permission views from memberships
//   - pkg/visibility: Maps memberships to the minimum visible PrivacyTier
package roles
