package groups

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/campus/pkg/membership"
	"github.com/platinummonkey/campus/pkg/permissions"
	"github.com/platinummonkey/campus/pkg/roles"
	"github.com/platinummonkey/campus/pkg/storage"
)

type mockUserLookup struct {
	findActiveIDByEmailFunc func(ctx context.Context, email string) (int64, bool, error)
}

func (m *mockUserLookup) FindActiveIDByEmail(ctx context.Context, email string) (int64, bool, error) {
	return m.findActiveIDByEmailFunc(ctx, email)
}

// directory resolves the given emails to ids; everything else is unknown
func directory(users map[string]int64) *mockUserLookup {
	return &mockUserLookup{
		findActiveIDByEmailFunc: func(ctx context.Context, email string) (int64, bool, error) {
			id, ok := users[email]
			return id, ok, nil
		},
	}
}

type fixture struct {
	db          *sql.DB
	store       *Store
	memberships *membership.SQLStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := storage.NewTestDB(t)
	return &fixture{db: db, store: NewStore(db), memberships: membership.NewSQLStore(db)}
}

func (f *fixture) enroll(t *testing.T, userID, orgID int64, tier roles.Tier) {
	t.Helper()
	_, err := f.memberships.Create(context.Background(), &membership.Membership{UserID: userID, OrganizationID: orgID, Tier: tier})
	require.NoError(t, err)
}

func (f *fixture) group(t *testing.T, orgID int64, name string) *Group {
	t.Helper()
	g := &Group{OrganizationID: orgID, CreatedByID: 1, Name: name}
	require.NoError(t, f.store.Insert(context.Background(), g))
	return g
}

func (f *fixture) resolver(t *testing.T, userID int64) *permissions.Resolver {
	t.Helper()
	r, err := permissions.Build(context.Background(), f.memberships, userID)
	require.NoError(t, err)
	return r
}
