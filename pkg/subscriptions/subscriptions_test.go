package subscriptions

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/campus/pkg/apierrors"
	"github.com/platinummonkey/campus/pkg/groups"
	"github.com/platinummonkey/campus/pkg/membership"
	"github.com/platinummonkey/campus/pkg/permissions"
	"github.com/platinummonkey/campus/pkg/roles"
	"github.com/platinummonkey/campus/pkg/storage"
)

type mockGroupLookup struct {
	getFunc func(ctx context.Context, id int64, active storage.ActiveFilter) (*groups.Group, error)
}

func (m *mockGroupLookup) Get(ctx context.Context, id int64, active storage.ActiveFilter) (*groups.Group, error) {
	return m.getFunc(ctx, id, active)
}

func student(userID, orgID int64) *permissions.Resolver {
	return permissions.FromMemberships(userID, []*membership.Membership{
		{UserID: userID, OrganizationID: orgID, Tier: roles.TierStudent},
	})
}

func TestService_Subscribe(t *testing.T) {
	ctx := context.Background()
	db := storage.NewTestDB(t)
	groupStore := groups.NewStore(db)
	chess := &groups.Group{OrganizationID: 1, CreatedByID: 1, Name: "Chess"}
	require.NoError(t, groupStore.Insert(ctx, chess))
	svc := NewService(db, groupStore)

	sub, err := svc.Subscribe(ctx, student(5, 1), 1, chess.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(5), sub.UserID)
	assert.Equal(t, chess.ID, sub.GroupID)

	t.Run("already subscribed", func(t *testing.T) {
		_, err := svc.Subscribe(ctx, student(5, 1), 1, chess.ID)
		assert.True(t, errors.Is(err, apierrors.ErrUserAlreadySubscribedToRso))
	})

	t.Run("not a member of the university", func(t *testing.T) {
		_, err := svc.Subscribe(ctx, student(6, 2), 1, chess.ID)
		assert.True(t, errors.Is(err, apierrors.ErrInvalidPermissionForAction))
	})

	t.Run("group in another university", func(t *testing.T) {
		_, err := svc.Subscribe(ctx, student(6, 2), 2, chess.ID)
		assert.True(t, errors.Is(err, apierrors.ErrNoRsoInUniversity))
	})

	t.Run("unknown group", func(t *testing.T) {
		_, err := svc.Subscribe(ctx, student(5, 1), 1, 404)
		assert.True(t, errors.Is(err, apierrors.ErrNoRsoInUniversity))
	})

	t.Run("resubscribe after unsubscribe", func(t *testing.T) {
		require.NoError(t, svc.Unsubscribe(ctx, 5, sub.ID))
		again, err := svc.Subscribe(ctx, student(5, 1), 1, chess.ID)
		require.NoError(t, err)
		assert.NotEqual(t, sub.ID, again.ID)
	})
}

func TestService_SubscribeUniqueViolation(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	lookup := &mockGroupLookup{getFunc: func(ctx context.Context, id int64, active storage.ActiveFilter) (*groups.Group, error) {
		return &groups.Group{ID: id, OrganizationID: 1}, nil
	}}
	svc := NewService(db, lookup)

	mock.ExpectQuery("SELECT id, user_id, group_id").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "group_id", "created_at", "inactive_at"}))
	mock.ExpectQuery("INSERT INTO subscriptions").
		WillReturnError(sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintUnique})

	_, err = svc.Subscribe(context.Background(), student(5, 1), 1, 3)
	assert.True(t, errors.Is(err, apierrors.ErrUserAlreadySubscribedToRso))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestService_List(t *testing.T) {
	ctx := context.Background()
	db := storage.NewTestDB(t)
	groupStore := groups.NewStore(db)
	a := &groups.Group{OrganizationID: 1, CreatedByID: 1, Name: "A"}
	b := &groups.Group{OrganizationID: 1, CreatedByID: 1, Name: "B"}
	require.NoError(t, groupStore.Insert(ctx, a))
	require.NoError(t, groupStore.Insert(ctx, b))
	svc := NewService(db, groupStore)

	for _, userID := range []int64{5, 6} {
		for _, g := range []*groups.Group{a, b} {
			_, err := svc.Subscribe(ctx, student(userID, 1), 1, g.ID)
			require.NoError(t, err)
		}
	}

	userID := int64(5)
	tests := []struct {
		name   string
		filter Filter
		want   int
	}{
		{"empty filter", Filter{}, 0},
		{"by user", Filter{UserID: &userID}, 2},
		{"by group", Filter{GroupID: &a.ID}, 2},
		{"by user and group", Filter{UserID: &userID, GroupID: &b.ID}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			subs, err := svc.List(ctx, tt.filter)
			require.NoError(t, err)
			assert.NotNil(t, subs)
			assert.Len(t, subs, tt.want)
		})
	}
}

func TestService_Unsubscribe(t *testing.T) {
	ctx := context.Background()
	db := storage.NewTestDB(t)
	groupStore := groups.NewStore(db)
	g := &groups.Group{OrganizationID: 1, CreatedByID: 1, Name: "A"}
	require.NoError(t, groupStore.Insert(ctx, g))
	svc := NewService(db, groupStore)

	sub, err := svc.Subscribe(ctx, student(5, 1), 1, g.ID)
	require.NoError(t, err)

	err = svc.Unsubscribe(ctx, 6, sub.ID)
	assert.True(t, errors.Is(err, apierrors.ErrInvalidPermissionForAction))

	require.NoError(t, svc.Unsubscribe(ctx, 5, sub.ID))

	err = svc.Unsubscribe(ctx, 5, sub.ID)
	assert.True(t, errors.Is(err, apierrors.ErrSubscriptionNotFound))
}
