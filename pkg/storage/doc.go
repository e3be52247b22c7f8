// Package storage provides database access primitives shared by every campus store.
//
// # Overview
//
// The package owns connection setup, schema migrations, transaction helpers,
// the active-row filter, and driver-independent error classification. Two
// drivers are supported:
//
//	postgres  github.com/lib/pq, used in production
//	sqlite3   github.com/mattn/go-sqlite3, used for tests and local development
//
// # Connections
//
//	cm, err := storage.Open(cfg)
//	defer cm.Close()
//
//	writes := cm.Primary()
//	reads := cm.Replica() // round-robin, falls back to primary
//
// # Transactions
//
// Stores accept a Querier so the same code runs against *sql.DB or *sql.Tx:
//
//	err := storage.WithTx(ctx, db, func(tx *sql.Tx) error {
//		if _, err := groups.WithTx(tx).Create(ctx, g); err != nil {
//			return err
//		}
//		return memberships.WithTx(tx).CreateBatch(ctx, ms)
//	})
//
// # Soft Deletes
//
// Rows are never hard-deleted. Every query builds its WHERE clause through
// Conditions and an ActiveFilter so inactive rows are excluded by default:
//
//	var c storage.Conditions
//	c.Eq("user_id", userID)
//	storage.ActiveOnly.Apply(&c, "inactive_at")
//	rows, err := q.QueryContext(ctx, "SELECT ... FROM memberships"+c.Where(), c.Args()...)
//
// # Related Packages
//
//   - pkg/membership: Membership store built on these primitives
//   - pkg/config: Loads Config from file and environment
package storage
