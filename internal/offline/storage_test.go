package offline

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStorageOrdersKeysOldestFirst(t *testing.T) {
	ctx := context.Background()
	storage := NewMemoryStorage()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, storage.Put(ctx, "c", Entry{Key: "/b", StoredAt: base.Add(time.Minute)}))
	require.NoError(t, storage.Put(ctx, "c", Entry{Key: "/a", StoredAt: base}))
	require.NoError(t, storage.Put(ctx, "c", Entry{Key: "/c", StoredAt: base.Add(time.Minute)}))

	metas, err := storage.Keys(ctx, "c")
	require.NoError(t, err)
	keys := make([]string, 0, len(metas))
	for _, meta := range metas {
		keys = append(keys, meta.Key)
	}
	assert.Equal(t, []string{"/a", "/b", "/c"}, keys)
}

func TestMemoryStorageIsolatesCopies(t *testing.T) {
	ctx := context.Background()
	storage := NewMemoryStorage()
	header := http.Header{"Content-Type": []string{"text/plain"}}
	body := []byte("original")

	require.NoError(t, storage.Put(ctx, "c", Entry{Key: "/", Status: http.StatusOK, Header: header, Body: body}))
	body[0] = 'X'
	header.Set("Content-Type", "changed")

	entry, found, err := storage.Match(ctx, "c", "/")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "original", string(entry.Body))
	assert.Equal(t, "text/plain", entry.Header.Get("Content-Type"))

	require.NoError(t, storage.Delete(ctx, "c", "/"))
	_, found, err = storage.Match(ctx, "c", "/")
	require.NoError(t, err)
	assert.False(t, found)
}
