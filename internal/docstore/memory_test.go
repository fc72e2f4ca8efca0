package docstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryContract(t *testing.T) {
	runStoreContract(t, NewMemory())
}

func TestMemoryCountsCommits(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	require.NoError(t, m.Batch().Commit(ctx))
	assert.Equal(t, 0, m.Commits())

	b := m.Batch()
	b.Set("users/u1/courses/1", map[string]any{"name": "a"})
	b.Set("users/u1/courses/2", map[string]any{"name": "b"})
	require.NoError(t, b.Commit(ctx))
	assert.Equal(t, 1, m.Commits())
	assert.Equal(t, 2, m.Writes())
}

func TestMemoryReturnsCopies(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	b := m.Batch()
	b.Set("users/u1", map[string]any{"name": "a"})
	require.NoError(t, b.Commit(ctx))

	doc, err := m.Get(ctx, "users/u1")
	require.NoError(t, err)
	doc.Data["name"] = "mutated"

	again, err := m.Get(ctx, "users/u1")
	require.NoError(t, err)
	assert.Equal(t, "a", again.Data["name"])
}

func TestValidatePath(t *testing.T) {
	assert.NoError(t, ValidatePath("users/u1"))
	assert.NoError(t, ValidatePath("users/u1/courses/10"))
	assert.ErrorIs(t, ValidatePath("users"), ErrInvalidPath)
	assert.ErrorIs(t, ValidatePath("users//courses/1"), ErrInvalidPath)
	assert.ErrorIs(t, ValidatePath(""), ErrInvalidPath)
}

func TestNormalize(t *testing.T) {
	type rec struct {
		Name   string   `json:"name"`
		Points *float64 `json:"points"`
		Count  int      `json:"count"`
	}
	got, err := Normalize(rec{Name: "x", Count: 3})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"name": "x", "points": nil, "count": float64(3)}, got)
	assert.Equal(t, "users/u1/courses", CollectionOf("users/u1/courses/9"))
}

func TestValidSegment(t *testing.T) {
	assert.NoError(t, ValidSegment("user-1"))
	assert.ErrorIs(t, ValidSegment(""), ErrInvalidPath)
	assert.ErrorIs(t, ValidSegment("a/b"), ErrInvalidPath)
}
