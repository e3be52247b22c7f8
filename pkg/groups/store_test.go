package groups

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/campus/pkg/storage"
)

func TestStore(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	chess := f.group(t, 7, "Chess Club")
	robotics := f.group(t, 7, "Robotics")
	f.group(t, 8, "Chess Society")

	t.Run("get", func(t *testing.T) {
		got, err := f.store.Get(ctx, chess.ID, storage.ActiveOnly)
		require.NoError(t, err)
		assert.Equal(t, "Chess Club", got.Name)
		assert.Equal(t, int64(7), got.OrganizationID)
		assert.True(t, got.IsActive())
	})

	t.Run("get missing", func(t *testing.T) {
		_, err := f.store.Get(ctx, 999, storage.AllRows)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("list by organization and name", func(t *testing.T) {
		got, err := f.store.List(ctx, Filter{OrganizationID: storage.Int64(7)})
		require.NoError(t, err)
		assert.Len(t, got, 2)

		got, err = f.store.List(ctx, Filter{Name: "CHESS"})
		require.NoError(t, err)
		assert.Len(t, got, 2)

		got, err = f.store.List(ctx, Filter{IDs: []int64{}})
		require.NoError(t, err)
		assert.Empty(t, got)

		got, err = f.store.List(ctx, Filter{Limit: 1, Offset: 1, OrganizationID: storage.Int64(7)})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, robotics.ID, got[0].ID)
	})

	t.Run("update details", func(t *testing.T) {
		robotics.Description = "Build robots"
		require.NoError(t, f.store.UpdateDetails(ctx, robotics))

		got, err := f.store.Get(ctx, robotics.ID, storage.ActiveOnly)
		require.NoError(t, err)
		assert.Equal(t, "Build robots", got.Description)
	})

	t.Run("mark inactive once", func(t *testing.T) {
		changed, err := f.store.MarkInactive(ctx, robotics.ID, storage.Now(), storage.Int64(1))
		require.NoError(t, err)
		assert.True(t, changed)

		changed, err = f.store.MarkInactive(ctx, robotics.ID, storage.Now(), storage.Int64(1))
		require.NoError(t, err)
		assert.False(t, changed)

		_, err = f.store.Get(ctx, robotics.ID, storage.ActiveOnly)
		assert.ErrorIs(t, err, ErrNotFound)

		got, err := f.store.List(ctx, Filter{OrganizationID: storage.Int64(7), Active: storage.AllRows})
		require.NoError(t, err)
		assert.Len(t, got, 2)

		assert.ErrorIs(t, f.store.UpdateDetails(ctx, robotics), ErrNotFound)
	})
}
