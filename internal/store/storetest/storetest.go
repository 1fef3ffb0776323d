// Package storetest is a behavioural suite every store.Store backend runs.
package storetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Makepad-fr/basket/internal/errs"
	"github.com/Makepad-fr/basket/internal/model"
	"github.com/Makepad-fr/basket/internal/store"
)

// Run exercises the Store contract. open must return a fresh, empty store.
func Run(t *testing.T, open func(t *testing.T) store.Store) {
	ctx := context.Background()

	t.Run("empty room", func(t *testing.T) {
		s := open(t)
		snap, err := s.Snapshot(ctx, "global")
		require.NoError(t, err)
		assert.NotNil(t, snap)
		assert.Empty(t, snap)
	})

	t.Run("put and snapshot", func(t *testing.T) {
		s := open(t)
		require.NoError(t, s.Put(ctx, "global", "a", model.NewStoredItem("milk", 2, 10)))
		require.NoError(t, s.Put(ctx, "global", "b", model.NewStoredItem("eggs", 12, 20)))
		require.NoError(t, s.Put(ctx, "other", "c", model.NewStoredItem("tea", 1, 30)))

		snap, err := s.Snapshot(ctx, "global")
		require.NoError(t, err)
		assert.Equal(t, []model.ListItem{
			{ID: "a", Text: "milk", Quantity: 2, CreatedAt: 10},
			{ID: "b", Text: "eggs", Quantity: 12, CreatedAt: 20},
		}, model.Reconcile(snap))
	})

	t.Run("patch merges fields", func(t *testing.T) {
		s := open(t)
		require.NoError(t, s.Put(ctx, "global", "a", model.NewStoredItem("milk", 1, 10)))

		require.NoError(t, s.Patch(ctx, "global", "a", model.QuantityPatch(5)))
		require.NoError(t, s.Patch(ctx, "global", "a", model.CompletedPatch(true)))

		snap, err := s.Snapshot(ctx, "global")
		require.NoError(t, err)
		assert.Equal(t, model.ListItem{ID: "a", Text: "milk", Completed: true, Quantity: 5, CreatedAt: 10},
			model.Normalize("a", snap["a"]))
	})

	t.Run("patch missing record", func(t *testing.T) {
		s := open(t)
		err := s.Patch(ctx, "global", "ghost", model.QuantityPatch(2))
		assert.True(t, errs.IsNotFound(err), "got %v", err)

		snap, err := s.Snapshot(ctx, "global")
		require.NoError(t, err)
		assert.Empty(t, snap)
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		s := open(t)
		require.NoError(t, s.Put(ctx, "global", "a", model.NewStoredItem("milk", 1, 10)))

		require.NoError(t, s.Delete(ctx, "global", "a"))
		require.NoError(t, s.Delete(ctx, "global", "a"))
		require.NoError(t, s.Delete(ctx, "nowhere", "a"))

		snap, err := s.Snapshot(ctx, "global")
		require.NoError(t, err)
		assert.Empty(t, snap)
	})

	t.Run("delete room", func(t *testing.T) {
		s := open(t)
		require.NoError(t, s.Put(ctx, "global", "a", model.NewStoredItem("milk", 1, 10)))
		require.NoError(t, s.Put(ctx, "other", "b", model.NewStoredItem("tea", 1, 10)))

		require.NoError(t, s.DeleteRoom(ctx, "global"))
		require.NoError(t, s.DeleteRoom(ctx, "global"))

		snap, err := s.Snapshot(ctx, "global")
		require.NoError(t, err)
		assert.Empty(t, snap)

		other, err := s.Snapshot(ctx, "other")
		require.NoError(t, err)
		assert.Len(t, other, 1)
	})

	t.Run("rejects invalid keys", func(t *testing.T) {
		s := open(t)
		assert.True(t, errs.IsValidation(s.Put(ctx, "a/b", "x", model.StoredItem{})))
		_, err := s.Snapshot(ctx, "")
		assert.True(t, errs.IsValidation(err))
	})
}
