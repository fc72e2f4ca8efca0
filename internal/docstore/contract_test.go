package docstore

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runStoreContract exercises the behaviour every backend must share.
func runStoreContract(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()
	owner := uuid.NewString()
	courses := Join("users", owner, "courses")

	t.Run("missing document", func(t *testing.T) {
		_, err := store.Get(ctx, Join(courses, "404"))
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("batch write and read back", func(t *testing.T) {
		b := store.Batch()
		b.Set(Join(courses, "1"), map[string]any{"name": "CS 101", "status": "current", "points": 10})
		b.Set(Join(courses, "2"), map[string]any{"name": "History", "status": "past"})
		b.Set(Join(courses, "1", "notes", "a"), map[string]any{"status": "current"})
		assert.Equal(t, 3, b.Len())
		require.NoError(t, b.Commit(ctx))

		doc, err := store.Get(ctx, Join(courses, "1"))
		require.NoError(t, err)
		assert.Equal(t, "CS 101", doc.Data["name"])
		assert.Equal(t, float64(10), doc.Data["points"])
		assert.Equal(t, "1", doc.ID())
		assert.False(t, doc.UpdatedAt.IsZero())
	})

	t.Run("query filters by equality within one collection", func(t *testing.T) {
		docs, err := store.Query(ctx, courses, Where("status", "current"))
		require.NoError(t, err)
		require.Len(t, docs, 1)
		assert.Equal(t, Join(courses, "1"), docs[0].Path)

		all, err := store.Query(ctx, courses)
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, Join(courses, "1"), all[0].Path)
		assert.Equal(t, Join(courses, "2"), all[1].Path)

		none, err := store.Query(ctx, Join("users", uuid.NewString(), "courses"))
		require.NoError(t, err)
		assert.NotNil(t, none)
		assert.Empty(t, none)
	})

	t.Run("set overwrites the whole document", func(t *testing.T) {
		b := store.Batch()
		b.Set(Join(courses, "2"), map[string]any{"name": "History II"})
		b.Set(Join(courses, "2"), map[string]any{"name": "History III"})
		assert.Equal(t, 1, b.Len())
		require.NoError(t, b.Commit(ctx))

		doc, err := store.Get(ctx, Join(courses, "2"))
		require.NoError(t, err)
		assert.Equal(t, "History III", doc.Data["name"])
		_, hasStatus := doc.Data["status"]
		assert.False(t, hasStatus)
	})

	t.Run("invalid path fails the whole batch", func(t *testing.T) {
		b := store.Batch()
		b.Set(Join(courses, "3"), map[string]any{"name": "ok"})
		b.Set(Join("users", owner, "courses"), map[string]any{"name": "collection, not a doc"})
		require.ErrorIs(t, b.Commit(ctx), ErrInvalidPath)

		_, err := store.Get(ctx, Join(courses, "3"))
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("empty batch is a no-op", func(t *testing.T) {
		assert.NoError(t, store.Batch().Commit(ctx))
	})
}
