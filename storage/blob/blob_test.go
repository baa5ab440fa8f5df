package blob

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/DhruvTemura/second-brain-ai/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_SaveRead(t *testing.T) {
	ctx := context.Background()
	store, err := NewStore(filepath.Join(t.TempDir(), "uploads"))
	require.NoError(t, err)

	loc, err := store.Save(ctx, "Notes.PDF", []byte("%PDF-1.4"))
	require.NoError(t, err)
	assert.Equal(t, ".pdf", filepath.Ext(loc))

	other, err := store.Save(ctx, "Notes.PDF", []byte("x"))
	require.NoError(t, err)
	assert.NotEqual(t, loc, other)

	data, err := store.Read(ctx, loc)
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.4"), data)

	require.NoError(t, store.Delete(ctx, loc))
	_, err = store.Read(ctx, loc)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestStore_RejectsPathTraversal(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Read(context.Background(), "../etc/passwd")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
