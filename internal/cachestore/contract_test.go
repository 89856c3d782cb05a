package cachestore

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/receitas/internal/offline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// exerciseStorage checks the behaviour every offline.Storage backend shares.
func exerciseStorage(t *testing.T, storage offline.Storage) {
	t.Helper()
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	_, found, err := storage.Match(ctx, "pwareceitas", "/")
	require.NoError(t, err)
	assert.False(t, found)

	header := http.Header{"Content-Type": []string{"text/html; charset=utf-8"}}
	require.NoError(t, storage.Put(ctx, "pwareceitas", offline.Entry{
		Key:      "/",
		Status:   http.StatusOK,
		Header:   header,
		Body:     []byte("<h1>Receitas</h1>"),
		StoredAt: base,
	}))

	entry, found, err := storage.Match(ctx, "pwareceitas", "/")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "/", entry.Key)
	assert.Equal(t, http.StatusOK, entry.Status)
	assert.Equal(t, "text/html; charset=utf-8", entry.Header.Get("Content-Type"))
	assert.Equal(t, "<h1>Receitas</h1>", string(entry.Body))
	assert.True(t, entry.StoredAt.Equal(base))

	_, found, err = storage.Match(ctx, "images", "/")
	require.NoError(t, err)
	assert.False(t, found, "caches are isolated by name")

	require.NoError(t, storage.Put(ctx, "images", offline.Entry{Key: "/b.png", StoredAt: base.Add(2 * time.Second)}))
	require.NoError(t, storage.Put(ctx, "images", offline.Entry{Key: "/a.png", StoredAt: base}))
	require.NoError(t, storage.Put(ctx, "images", offline.Entry{Key: "/c.png", StoredAt: base.Add(time.Second)}))

	metas, err := storage.Keys(ctx, "images")
	require.NoError(t, err)
	assert.Equal(t, []string{"/a.png", "/c.png", "/b.png"}, metaKeys(metas))

	require.NoError(t, storage.Put(ctx, "images", offline.Entry{Key: "/a.png", Status: 0, StoredAt: base.Add(3 * time.Second)}))
	metas, err = storage.Keys(ctx, "images")
	require.NoError(t, err)
	assert.Equal(t, []string{"/c.png", "/b.png", "/a.png"}, metaKeys(metas), "replacing an entry makes it the newest")

	require.NoError(t, storage.Delete(ctx, "images", "/c.png"))
	metas, err = storage.Keys(ctx, "images")
	require.NoError(t, err)
	assert.Equal(t, []string{"/b.png", "/a.png"}, metaKeys(metas))

	require.NoError(t, storage.Delete(ctx, "images", "/missing.png"))

	tied := base.Add(1500 * time.Nanosecond)
	require.NoError(t, storage.Put(ctx, "same-instant", offline.Entry{Key: "/z.png", StoredAt: tied}))
	require.NoError(t, storage.Put(ctx, "same-instant", offline.Entry{Key: "/a.png", StoredAt: tied}))
	require.NoError(t, storage.Put(ctx, "same-instant", offline.Entry{Key: "/m.png", StoredAt: tied}))
	metas, err = storage.Keys(ctx, "same-instant")
	require.NoError(t, err)
	assert.Equal(t, []string{"/z.png", "/a.png", "/m.png"}, metaKeys(metas), "equal timestamps keep insertion order")
	for _, meta := range metas {
		assert.True(t, meta.StoredAt.Equal(tied), "stored time keeps nanoseconds for %s", meta.Key)
	}

	require.NoError(t, storage.Put(ctx, "same-instant", offline.Entry{Key: "/z.png", StoredAt: tied}))
	metas, err = storage.Keys(ctx, "same-instant")
	require.NoError(t, err)
	assert.Equal(t, []string{"/a.png", "/m.png", "/z.png"}, metaKeys(metas))

	metas, err = storage.Keys(ctx, "asset-cache")
	require.NoError(t, err)
	assert.Empty(t, metas)
}

func TestMemoryStorageContract(t *testing.T) {
	exerciseStorage(t, offline.NewMemoryStorage())
}

func metaKeys(metas []offline.EntryMeta) []string {
	keys := make([]string, 0, len(metas))
	for _, meta := range metas {
		keys = append(keys, meta.Key)
	}
	return keys
}
