package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// Migration is a single forward-only schema change
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// Migrations is the ordered schema history. Statements use placeholders
// that are expanded per dialect by Render.
var Migrations = []Migration{
	{
		Version:     1,
		Description: "users and organizations",
		SQL: `
CREATE TABLE IF NOT EXISTS users (
	id {{id}},
	first_name VARCHAR(255) NOT NULL,
	last_name VARCHAR(255) NOT NULL,
	email VARCHAR(255) NOT NULL,
	password_hash VARCHAR(255) NOT NULL,
	logins INTEGER NOT NULL DEFAULT 0,
	created_at {{timestamp}} NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at {{timestamp}} NOT NULL DEFAULT CURRENT_TIMESTAMP,
	inactive_at {{timestamp}},
	inactive_by_id BIGINT
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email ON users(email);

CREATE TABLE IF NOT EXISTS organizations (
	id {{id}},
	name VARCHAR(255) NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	image_url TEXT,
	latitude {{float}},
	longitude {{float}},
	created_by_id BIGINT NOT NULL REFERENCES users(id),
	created_at {{timestamp}} NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at {{timestamp}} NOT NULL DEFAULT CURRENT_TIMESTAMP,
	inactive_at {{timestamp}},
	inactive_by_id BIGINT
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_organizations_name ON organizations(name);
`,
	},
	{
		Version:     2,
		Description: "groups and memberships",
		SQL: `
CREATE TABLE IF NOT EXISTS rsos (
	id {{id}},
	organization_id BIGINT NOT NULL REFERENCES organizations(id),
	created_by_id BIGINT NOT NULL REFERENCES users(id),
	name VARCHAR(255) NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	created_at {{timestamp}} NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at {{timestamp}} NOT NULL DEFAULT CURRENT_TIMESTAMP,
	inactive_at {{timestamp}},
	inactive_by_id BIGINT
);
CREATE INDEX IF NOT EXISTS idx_rsos_organization_id ON rsos(organization_id);

CREATE TABLE IF NOT EXISTS memberships (
	id {{id}},
	user_id BIGINT NOT NULL REFERENCES users(id),
	organization_id BIGINT NOT NULL REFERENCES organizations(id),
	group_id BIGINT REFERENCES rsos(id),
	tier INTEGER NOT NULL,
	created_at {{timestamp}} NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at {{timestamp}} NOT NULL DEFAULT CURRENT_TIMESTAMP,
	inactive_at {{timestamp}},
	inactive_by_id BIGINT
);
CREATE INDEX IF NOT EXISTS idx_memberships_user_id ON memberships(user_id);
CREATE INDEX IF NOT EXISTS idx_memberships_group_id ON memberships(group_id);
CREATE INDEX IF NOT EXISTS idx_memberships_organization_id ON memberships(organization_id);
CREATE UNIQUE INDEX IF NOT EXISTS idx_memberships_active_org
	ON memberships(user_id, organization_id)
	WHERE group_id IS NULL AND inactive_at IS NULL;
`,
	},
	{
		Version:     3,
		Description: "events, comments and subscriptions",
		SQL: `
CREATE TABLE IF NOT EXISTS events (
	id {{id}},
	organization_id BIGINT NOT NULL REFERENCES organizations(id),
	group_id BIGINT NOT NULL REFERENCES rsos(id),
	created_by_id BIGINT NOT NULL REFERENCES users(id),
	name VARCHAR(255) NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	category VARCHAR(100) NOT NULL DEFAULT '',
	privacy INTEGER NOT NULL,
	start_time {{timestamp}} NOT NULL,
	end_time {{timestamp}} NOT NULL,
	latitude {{float}},
	longitude {{float}},
	contact_phone VARCHAR(50),
	contact_email VARCHAR(255),
	image_url TEXT,
	created_at {{timestamp}} NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at {{timestamp}} NOT NULL DEFAULT CURRENT_TIMESTAMP,
	inactive_at {{timestamp}},
	inactive_by_id BIGINT
);
CREATE INDEX IF NOT EXISTS idx_events_organization_id ON events(organization_id);
CREATE INDEX IF NOT EXISTS idx_events_group_id ON events(group_id);

CREATE TABLE IF NOT EXISTS comments (
	id {{id}},
	event_id BIGINT NOT NULL REFERENCES events(id),
	created_by_id BIGINT NOT NULL REFERENCES users(id),
	message TEXT NOT NULL,
	created_at {{timestamp}} NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at {{timestamp}} NOT NULL DEFAULT CURRENT_TIMESTAMP,
	inactive_at {{timestamp}}
);
CREATE INDEX IF NOT EXISTS idx_comments_event_id ON comments(event_id);

CREATE TABLE IF NOT EXISTS subscriptions (
	id {{id}},
	user_id BIGINT NOT NULL REFERENCES users(id),
	group_id BIGINT NOT NULL REFERENCES rsos(id),
	created_at {{timestamp}} NOT NULL DEFAULT CURRENT_TIMESTAMP,
	inactive_at {{timestamp}}
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_subscriptions_active
	ON subscriptions(user_id, group_id)
	WHERE inactive_at IS NULL;
`,
	},
	{
		Version:     4,
		Description: "sessions and audit log",
		SQL: `
CREATE TABLE IF NOT EXISTS sessions (
	id {{id}},
	user_id BIGINT NOT NULL REFERENCES users(id),
	token_hash VARCHAR(64) NOT NULL,
	token_prefix VARCHAR(32) NOT NULL,
	expires_at {{timestamp}} NOT NULL,
	created_at {{timestamp}} NOT NULL DEFAULT CURRENT_TIMESTAMP,
	last_used_at {{timestamp}},
	revoked_at {{timestamp}}
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_sessions_token_hash ON sessions(token_hash);
CREATE INDEX IF NOT EXISTS idx_sessions_expires_at ON sessions(expires_at);

CREATE TABLE IF NOT EXISTS audit_logs (
	id {{id}},
	timestamp {{timestamp}} NOT NULL,
	event_type VARCHAR(100) NOT NULL,
	status VARCHAR(20) NOT NULL,
	user_id BIGINT,
	organization_id BIGINT,
	resource_type VARCHAR(50),
	resource_id VARCHAR(255),
	ip_address VARCHAR(45),
	user_agent TEXT,
	request_id VARCHAR(100),
	method VARCHAR(10),
	path TEXT,
	status_code INTEGER,
	message TEXT,
	error_message TEXT,
	metadata {{json}},
	created_at {{timestamp}} DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_audit_logs_timestamp ON audit_logs(timestamp);
CREATE INDEX IF NOT EXISTS idx_audit_logs_event_type ON audit_logs(event_type);
CREATE INDEX IF NOT EXISTS idx_audit_logs_user_id ON audit_logs(user_id);
`,
	},
}

var dialectTypes = map[Dialect]*strings.Replacer{
	DialectPostgres: strings.NewReplacer(
		"{{id}}", "BIGSERIAL PRIMARY KEY",
		"{{timestamp}}", "TIMESTAMP WITH TIME ZONE",
		"{{json}}", "JSONB",
		"{{float}}", "DOUBLE PRECISION",
	),
	DialectSQLite: strings.NewReplacer(
		"{{id}}", "INTEGER PRIMARY KEY AUTOINCREMENT",
		"{{timestamp}}", "TIMESTAMP",
		"{{json}}", "TEXT",
		"{{float}}", "REAL",
	),
}

// Render expands dialect placeholders in a migration statement
func Render(dialect Dialect, stmt string) (string, error) {
	r, ok := dialectTypes[dialect]
	if !ok {
		return "", fmt.Errorf("unsupported dialect: %q", dialect)
	}
	return r.Replace(stmt), nil
}

// RunMigrations applies every migration newer than the recorded schema version
func RunMigrations(ctx context.Context, db *sql.DB, dialect Dialect) error {
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMP NOT NULL
		)`); err != nil {
		return fmt.Errorf("failed to create schema_migrations: %w", err)
	}

	var current int
	if err := db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&current); err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	for _, m := range Migrations {
		if m.Version <= current {
			continue
		}
		if err := applyMigration(ctx, db, dialect, m); err != nil {
			return fmt.Errorf("migration %d (%s) failed: %w", m.Version, m.Description, err)
		}
	}
	return nil
}

func applyMigration(ctx context.Context, db *sql.DB, dialect Dialect, m Migration) error {
	rendered, err := Render(dialect, m.SQL)
	if err != nil {
		return err
	}

	return WithTx(ctx, db, func(tx *sql.Tx) error {
		for _, stmt := range splitStatements(rendered) {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return err
			}
		}
		_, err := tx.ExecContext(ctx,
			"INSERT INTO schema_migrations (version, description, applied_at) VALUES ($1, $2, $3)",
			m.Version, m.Description, Now())
		return err
	})
}

// splitStatements splits on semicolons. Migrations never contain literal semicolons.
func splitStatements(sqlText string) []string {
	parts := strings.Split(sqlText, ";")
	stmts := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			stmts = append(stmts, s)
		}
	}
	return stmts
}

// Now returns the current time in the form every store writes: UTC with
// microsecond precision, which both drivers round-trip exactly.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
