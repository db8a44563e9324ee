package storage_test

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"photo-sync/core/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func localBackend(t *testing.T) (storage.Backend, string) {
	t.Helper()
	root := t.TempDir()
	backend, err := storage.NewBackend(storage.Config{Provider: "local", LocalRoot: root})
	require.NoError(t, err)
	return backend, root
}

func TestLocalBackend_RequiresExistingRoot(t *testing.T) {
	_, err := storage.NewBackend(storage.Config{Provider: "local", LocalRoot: "/does/not/exist"})
	var authErr *storage.AuthError
	assert.ErrorAs(t, err, &authErr)

	_, err = storage.NewBackend(storage.Config{Provider: "local"})
	assert.Error(t, err)
}

func TestLocalBackend_Roundtrip(t *testing.T) {
	ctx := context.Background()
	backend, root := localBackend(t)

	require.NoError(t, backend.Put(ctx, "2024/a.jpg", []byte("jpeg-bytes"), "image/jpeg"))

	// Put creates parent directories under the root.
	_, err := os.Stat(filepath.Join(root, "2024", "a.jpg"))
	require.NoError(t, err)

	obj, err := backend.Stat(ctx, "2024/a.jpg")
	require.NoError(t, err)
	assert.Equal(t, "2024/a.jpg", obj.Key)
	assert.Equal(t, int64(10), obj.Size)
	assert.Empty(t, obj.ETag, "local files carry no etag")
	assert.False(t, obj.LastModified.IsZero())

	data, err := backend.Fetch(ctx, "2024/a.jpg")
	require.NoError(t, err)
	assert.Equal(t, []byte("jpeg-bytes"), data)
}

func TestLocalBackend_MissingKey(t *testing.T) {
	ctx := context.Background()
	backend, _ := localBackend(t)

	_, err := backend.Stat(ctx, "nope.jpg")
	assert.ErrorIs(t, err, storage.ErrObjectNotFound)

	_, err = backend.Fetch(ctx, "nope.jpg")
	assert.ErrorIs(t, err, storage.ErrObjectNotFound)
}

func TestLocalBackend_ListWithPrefix(t *testing.T) {
	ctx := context.Background()
	backend, _ := localBackend(t)

	for _, key := range []string{"2023/a.jpg", "2024/b.jpg", "2024/c.jpg"} {
		require.NoError(t, backend.Put(ctx, key, []byte("x"), "image/jpeg"))
	}

	objects, err := backend.List(ctx, "2024/").Drain()
	require.NoError(t, err)

	keys := make([]string, 0, len(objects))
	for _, obj := range objects {
		keys = append(keys, obj.Key)
	}
	sort.Strings(keys)
	assert.Equal(t, []string{"2024/b.jpg", "2024/c.jpg"}, keys)
}

func TestListingOf(t *testing.T) {
	listing := storage.ListingOf(nil,
		storage.Object{Key: "a"},
		storage.Object{Key: "b"},
	)
	objects, err := listing.Drain()
	require.NoError(t, err)
	assert.Len(t, objects, 2)

	failed := storage.ListingOf(&storage.ListingError{Err: assert.AnError})
	objects, err = failed.Drain()
	assert.Empty(t, objects)
	var listErr *storage.ListingError
	assert.ErrorAs(t, err, &listErr)
}
