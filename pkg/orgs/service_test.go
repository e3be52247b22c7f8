package orgs

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/campus/pkg/apierrors"
	"github.com/platinummonkey/campus/pkg/membership"
	"github.com/platinummonkey/campus/pkg/permissions"
	"github.com/platinummonkey/campus/pkg/roles"
	"github.com/platinummonkey/campus/pkg/storage"
	"github.com/platinummonkey/campus/pkg/users"
)

type mockCreatorLookup struct {
	getFunc func(ctx context.Context, id int64) (*users.User, error)
}

func (m *mockCreatorLookup) Get(ctx context.Context, id int64) (*users.User, error) {
	return m.getFunc(ctx, id)
}

func activeCreators(ids ...int64) *mockCreatorLookup {
	known := map[int64]bool{}
	for _, id := range ids {
		known[id] = true
	}
	return &mockCreatorLookup{getFunc: func(ctx context.Context, id int64) (*users.User, error) {
		if !known[id] {
			return nil, apierrors.ErrUserRecordNotFound
		}
		return &users.User{ID: id}, nil
	}}
}

func newTestService(t *testing.T, creators CreatorLookup) (*SQLService, *membership.SQLStore) {
	t.Helper()
	db := storage.NewTestDB(t)
	memberships := membership.NewSQLStore(db)
	return NewSQLService(db, memberships, creators), memberships
}

func resolverFor(t *testing.T, memberships *membership.SQLStore, userID int64) *permissions.Resolver {
	t.Helper()
	r, err := permissions.Build(context.Background(), memberships, userID)
	require.NoError(t, err)
	return r
}

func TestSQLService_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("creator becomes superadmin", func(t *testing.T) {
		svc, memberships := newTestService(t, activeCreators(1))
		lat := 28.6
		org, err := svc.Create(ctx, 1, CreateRequest{Name: " State University ", Description: "Go Knights", Latitude: &lat})
		require.NoError(t, err)
		assert.NotZero(t, org.ID)
		assert.Equal(t, "State University", org.Name)

		ms, err := memberships.FindActiveByUser(ctx, 1)
		require.NoError(t, err)
		require.Len(t, ms, 1)
		assert.Equal(t, org.ID, ms[0].OrganizationID)
		assert.Equal(t, roles.TierSuperAdmin, ms[0].Tier)

		got, err := svc.Get(ctx, org.ID)
		require.NoError(t, err)
		require.NotNil(t, got.Latitude)
		assert.InDelta(t, 28.6, *got.Latitude, 0.0001)
		assert.Nil(t, got.Longitude)
	})

	t.Run("duplicate name", func(t *testing.T) {
		svc, _ := newTestService(t, activeCreators(1, 2))
		_, err := svc.Create(ctx, 1, CreateRequest{Name: "State"})
		require.NoError(t, err)
		_, err = svc.Create(ctx, 2, CreateRequest{Name: "State"})
		assert.ErrorIs(t, err, apierrors.ErrUniversityExistsWithName)
	})

	t.Run("unknown creator", func(t *testing.T) {
		svc, _ := newTestService(t, activeCreators())
		_, err := svc.Create(ctx, 5, CreateRequest{Name: "State"})
		assert.ErrorIs(t, err, apierrors.ErrInvalidUserCreatingUniversity)
	})

	t.Run("creator lookup failure", func(t *testing.T) {
		svc, _ := newTestService(t, &mockCreatorLookup{getFunc: func(ctx context.Context, id int64) (*users.User, error) {
			return nil, errors.New("timeout")
		}})
		_, err := svc.Create(ctx, 5, CreateRequest{Name: "State"})
		assert.ErrorIs(t, err, apierrors.ErrFailedToCreateUniversity)
	})

	t.Run("missing name", func(t *testing.T) {
		svc, _ := newTestService(t, activeCreators(1))
		_, err := svc.Create(ctx, 1, CreateRequest{})
		assert.ErrorIs(t, err, apierrors.ErrRequiredParametersMissing)
	})
}

func TestSQLService_List(t *testing.T) {
	ctx := context.Background()
	svc, memberships := newTestService(t, activeCreators(1, 2))

	state, err := svc.Create(ctx, 1, CreateRequest{Name: "State University"})
	require.NoError(t, err)
	tech, err := svc.Create(ctx, 2, CreateRequest{Name: "Tech Institute"})
	require.NoError(t, err)
	_, err = memberships.Create(ctx, &membership.Membership{UserID: 3, OrganizationID: tech.ID, Tier: roles.TierStudent})
	require.NoError(t, err)

	t.Run("all", func(t *testing.T) {
		got, err := svc.List(ctx, ListFilter{})
		require.NoError(t, err)
		assert.Len(t, got, 2)
	})

	t.Run("by name", func(t *testing.T) {
		got, err := svc.List(ctx, ListFilter{Name: "state"})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, state.ID, got[0].ID)
	})

	t.Run("by member", func(t *testing.T) {
		got, err := svc.List(ctx, ListFilter{UserID: storage.Int64(3)})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, tech.ID, got[0].ID)

		got, err = svc.List(ctx, ListFilter{UserID: storage.Int64(99)})
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("inactive excluded by default", func(t *testing.T) {
		_, err := svc.Deactivate(ctx, resolverFor(t, memberships, 1), state.ID)
		require.NoError(t, err)

		got, err := svc.List(ctx, ListFilter{})
		require.NoError(t, err)
		assert.Len(t, got, 1)

		got, err = svc.List(ctx, ListFilter{Active: storage.AllRows})
		require.NoError(t, err)
		assert.Len(t, got, 2)
	})
}

func TestSQLService_UpdateAndDeactivate(t *testing.T) {
	ctx := context.Background()
	svc, memberships := newTestService(t, activeCreators(1))
	org, err := svc.Create(ctx, 1, CreateRequest{Name: "State"})
	require.NoError(t, err)
	_, err = memberships.Create(ctx, &membership.Membership{UserID: 2, OrganizationID: org.ID, Tier: roles.TierStudent})
	require.NoError(t, err)

	t.Run("student cannot update", func(t *testing.T) {
		desc := "hijacked"
		_, err := svc.Update(ctx, resolverFor(t, memberships, 2), org.ID, UpdateRequest{Description: &desc})
		assert.ErrorIs(t, err, apierrors.ErrInvalidPermissionForAction)
	})

	t.Run("superadmin updates", func(t *testing.T) {
		desc := "Home of the Knights"
		got, err := svc.Update(ctx, resolverFor(t, memberships, 1), org.ID, UpdateRequest{Description: &desc})
		require.NoError(t, err)
		assert.Equal(t, "Home of the Knights", got.Description)

		fresh, err := svc.Get(ctx, org.ID)
		require.NoError(t, err)
		assert.Equal(t, "Home of the Knights", fresh.Description)
	})

	t.Run("set image", func(t *testing.T) {
		got, err := svc.SetImage(ctx, resolverFor(t, memberships, 1), org.ID, "https://cdn.example/a.png")
		require.NoError(t, err)
		require.NotNil(t, got.ImageURL)

		fresh, err := svc.Get(ctx, org.ID)
		require.NoError(t, err)
		assert.Equal(t, "https://cdn.example/a.png", *fresh.ImageURL)
	})

	t.Run("student cannot deactivate", func(t *testing.T) {
		_, err := svc.Deactivate(ctx, resolverFor(t, memberships, 2), org.ID)
		assert.ErrorIs(t, err, apierrors.ErrInvalidPermissionForAction)
	})

	t.Run("superadmin deactivates", func(t *testing.T) {
		got, err := svc.Deactivate(ctx, resolverFor(t, memberships, 1), org.ID)
		require.NoError(t, err)
		require.NotNil(t, got.InactiveAt)
		assert.Equal(t, int64(1), *got.InactiveByID)

		_, err = svc.Get(ctx, org.ID)
		assert.ErrorIs(t, err, apierrors.ErrUniversityRecordNotFound)

		ok, err := svc.Exists(ctx, org.ID)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}
