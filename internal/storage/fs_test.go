package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFSStorePutCreatesFolders(t *testing.T) {
	root := t.TempDir()
	store, err := NewFSStore(root)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, store.Put(ctx, "People/John Doe.jpg", strings.NewReader("v1"), 2))
	require.NoError(t, store.Put(ctx, "People/John Doe.jpg", strings.NewReader("v2"), 2))

	data, err := os.ReadFile(filepath.Join(root, "People", "John Doe.jpg"))
	require.NoError(t, err)
	assert.Equal(t, "v2", string(data))

	entries, err := os.ReadDir(filepath.Join(root, "People"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporários não devem sobrar")
}

func TestFSStoreRejectsEscapingKeys(t *testing.T) {
	store, err := NewFSStore(t.TempDir())
	require.NoError(t, err)

	for _, key := range []string{"", "/etc/passwd", "..", "../fora.jpg", "People/../../fora.jpg"} {
		err := store.Put(context.Background(), key, strings.NewReader("x"), 1)
		assert.ErrorIs(t, err, ErrInvalidKey, key)
	}
}

func TestFSStoreGet(t *testing.T) {
	store, err := NewFSStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Get("nada.jpg")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Put(context.Background(), "a/b.png", strings.NewReader("png"), -1))
	data, err := store.Get("a/b.png")
	require.NoError(t, err)
	assert.Equal(t, "png", string(data))
}
