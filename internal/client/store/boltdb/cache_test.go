package boltdb

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.etcd.io/bbolt"

	"github.com/iudanet/boardsync/internal/client/store"
	"github.com/iudanet/boardsync/internal/models"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	cache, err := New(context.Background(), filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })
	return cache
}

func TestNew_CreatesBuckets(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "testdb.db")
	cache, err := New(context.Background(), dbPath)
	require.NoError(t, err)
	defer func() {
		require.NoError(t, cache.Close())
	}()

	info, err := os.Stat(dbPath)
	require.NoError(t, err)
	assert.False(t, info.IsDir())

	err = cache.db.View(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{bucketSnapshots, bucketObjects} {
			if tx.Bucket(b) == nil {
				return os.ErrNotExist
			}
		}
		return nil
	})
	require.NoError(t, err)
}

func TestNew_InvalidPath(t *testing.T) {
	cache, err := New(context.Background(), filepath.Join(t.TempDir(), "missing", "dir", "cache.db"))
	assert.Error(t, err)
	assert.Nil(t, cache)
}

func TestClose_Twice(t *testing.T) {
	cache, err := New(context.Background(), filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)

	assert.NoError(t, cache.Close())
	assert.Nil(t, cache.db)
	assert.NoError(t, cache.Close())
}

func TestSnapshot_RoundTrip(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	_, err := cache.GetSnapshot(ctx, "board-1")
	assert.ErrorIs(t, err, store.ErrNotFound)

	snap := &models.Snapshot{Strokes: []models.Stroke{
		{Points: []models.Point{{X: 1, Y: 2}, {X: 3, Y: 4}}},
		{Points: []models.Point{{X: -1.5, Y: 0}}, Erase: true},
	}}
	require.NoError(t, cache.PutSnapshot(ctx, "board-1", snap))

	got, err := cache.GetSnapshot(ctx, "board-1")
	require.NoError(t, err)
	assert.Equal(t, snap, got)

	// Перезапись заменяет снимок целиком
	require.NoError(t, cache.PutSnapshot(ctx, "board-1", &models.Snapshot{Strokes: snap.Strokes[:1]}))
	got, err = cache.GetSnapshot(ctx, "board-1")
	require.NoError(t, err)
	assert.Len(t, got.Strokes, 1)

	_, err = cache.GetSnapshot(ctx, "board-2")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestObjects_Lifecycle(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	empty, err := cache.ListObjects(ctx, "b", models.KindNote)
	require.NoError(t, err)
	assert.Empty(t, empty)

	stored, err := cache.InsertObject(ctx, "b", models.KindNote, json.RawMessage(`{"text":"first"}`))
	require.NoError(t, err)
	firstID, err := store.ObjectID(stored)
	require.NoError(t, err)
	assert.NotEmpty(t, firstID)

	_, err = cache.InsertObject(ctx, "b", models.KindNote, json.RawMessage(`{"id":"n2","text":"second"}`))
	require.NoError(t, err)
	_, err = cache.InsertObject(ctx, "b", models.KindShape, json.RawMessage(`{"id":"s1"}`))
	require.NoError(t, err)

	require.NoError(t, cache.PatchObject(ctx, "b", models.KindNote, "n2", json.RawMessage(`{"text":"patched","x":5}`)))
	assert.ErrorIs(t, cache.PatchObject(ctx, "b", models.KindNote, "nope", json.RawMessage(`{}`)), store.ErrNotFound)
	assert.ErrorIs(t, cache.PatchObject(ctx, "other", models.KindNote, "n2", json.RawMessage(`{}`)), store.ErrNotFound)

	notes, err := cache.ListObjects(ctx, "b", models.KindNote)
	require.NoError(t, err)
	require.Len(t, notes, 2)
	assert.JSONEq(t, `{"id":"`+firstID+`","text":"first"}`, string(notes[0]))
	assert.JSONEq(t, `{"id":"n2","text":"patched","x":5}`, string(notes[1]))

	// Повторная вставка того же id заменяет значение, сохраняя позицию
	_, err = cache.InsertObject(ctx, "b", models.KindNote, json.RawMessage(`{"id":"`+firstID+`","text":"replaced"}`))
	require.NoError(t, err)
	notes, err = cache.ListObjects(ctx, "b", models.KindNote)
	require.NoError(t, err)
	require.Len(t, notes, 2)
	assert.JSONEq(t, `{"id":"`+firstID+`","text":"replaced"}`, string(notes[0]))

	require.NoError(t, cache.DeleteObject(ctx, "b", models.KindNote, firstID))
	require.NoError(t, cache.DeleteObject(ctx, "b", models.KindNote, firstID))
	require.NoError(t, cache.DeleteObject(ctx, "unknown", models.KindNote, "x"))

	notes, err = cache.ListObjects(ctx, "b", models.KindNote)
	require.NoError(t, err)
	require.Len(t, notes, 1)

	shapes, err := cache.ListObjects(ctx, "b", models.KindShape)
	require.NoError(t, err)
	assert.Len(t, shapes, 1)
}

func TestInsertObject_RejectsNonObject(t *testing.T) {
	cache := newTestCache(t)
	_, err := cache.InsertObject(context.Background(), "b", models.KindNote, json.RawMessage(`[1,2]`))
	assert.Error(t, err)
}

func TestPersistsAcrossReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "cache.db")
	ctx := context.Background()

	cache, err := New(ctx, dbPath)
	require.NoError(t, err)
	require.NoError(t, cache.PutSnapshot(ctx, "b", &models.Snapshot{Strokes: []models.Stroke{{Points: []models.Point{{X: 1}}}}}))
	_, err = cache.InsertObject(ctx, "b", models.KindTextBox, json.RawMessage(`{"id":"t1"}`))
	require.NoError(t, err)
	require.NoError(t, cache.Close())

	cache, err = New(ctx, dbPath)
	require.NoError(t, err)
	defer cache.Close()

	snap, err := cache.GetSnapshot(ctx, "b")
	require.NoError(t, err)
	assert.Len(t, snap.Strokes, 1)

	texts, err := cache.ListObjects(ctx, "b", models.KindTextBox)
	require.NoError(t, err)
	assert.Len(t, texts, 1)
}
