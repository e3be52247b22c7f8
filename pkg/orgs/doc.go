// Package orgs manages universities, the top-level tenants of the platform.
//
// # Overview
//
// A university is created by an active user, who becomes its SUPERADMIN
// through an organization-level membership written in the same transaction.
// Names are unique across all universities, active or not.
//
// Updates require university.update and deactivation requires
// university.destroy at organization scope.
//
// # Caching
//
// CachedService wraps any Service with an in-process expirable LRU and an
// optional Redis layer:
//
//	svc := orgs.NewCachedService(orgs.NewSQLService(db, memberships, userService), redisClient, orgs.DefaultCacheConfig())
//	uni, err := svc.Get(ctx, id)
//
// Writes through the cached service invalidate both layers.
//
// # Related Packages
//
//   - pkg/membership: organization-level standing
//   - pkg/permissions: grants checked by Update and Deactivate
package orgs
