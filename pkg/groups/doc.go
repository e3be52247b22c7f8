// Package groups manages student organizations (RSOs) within a university.
//
// Creation goes through Workflow, which checks the creator's rso.create grant,
// requires at least MinimumCandidates other members who already belong to the
// university, and writes the group and every membership in one transaction.
//
// Deactivation goes through CascadeCoordinator, which soft-deletes the group
// and overwrites inactive_at on all of its memberships in the same
// transaction. Deactivating an inactive group is a no-op.
package groups
