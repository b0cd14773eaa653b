package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/boardsync/internal/models"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCached_SnapshotFallback(t *testing.T) {
	ctx := context.Background()
	cachedSnap := &models.Snapshot{Strokes: []models.Stroke{{Points: []models.Point{{X: 1}}}}}

	tests := []struct {
		remoteErr error
		want      *models.Snapshot
		wantErr   error
		name      string
		puts      int
	}{
		{name: "remote ok writes through", want: &models.Snapshot{}, puts: 1},
		{name: "transient serves cache", remoteErr: fmt.Errorf("%w: down", ErrTransient), want: cachedSnap},
		{name: "denied is not masked", remoteErr: ErrPermissionDenied, wantErr: ErrPermissionDenied},
		{name: "not found is not masked", remoteErr: ErrNotFound, wantErr: ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			remote := &StoreMock{
				GetSnapshotFunc: func(ctx context.Context, boardID string) (*models.Snapshot, error) {
					if tt.remoteErr != nil {
						return nil, tt.remoteErr
					}
					return &models.Snapshot{}, nil
				},
			}
			local := &StoreMock{
				GetSnapshotFunc: func(ctx context.Context, boardID string) (*models.Snapshot, error) {
					return cachedSnap, nil
				},
				PutSnapshotFunc: func(ctx context.Context, boardID string, snap *models.Snapshot) error {
					return nil
				},
			}

			got, err := NewCached(remote, local, discardLogger()).GetSnapshot(ctx, "b")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Len(t, local.PutSnapshotCalls(), tt.puts)
		})
	}
}

func TestCached_SnapshotNoCache(t *testing.T) {
	remote := &StoreMock{
		GetSnapshotFunc: func(ctx context.Context, boardID string) (*models.Snapshot, error) {
			return nil, ErrTransient
		},
	}
	local := &StoreMock{
		GetSnapshotFunc: func(ctx context.Context, boardID string) (*models.Snapshot, error) {
			return nil, ErrNotFound
		},
	}
	_, err := NewCached(remote, local, discardLogger()).GetSnapshot(context.Background(), "b")
	assert.ErrorIs(t, err, ErrTransient)
}

func TestCached_WritesGoRemoteFirst(t *testing.T) {
	ctx := context.Background()
	denied := errors.New("denied")

	remote := &StoreMock{
		PutSnapshotFunc: func(ctx context.Context, boardID string, snap *models.Snapshot) error {
			return fmt.Errorf("%w: %v", ErrPermissionDenied, denied)
		},
		InsertObjectFunc: func(ctx context.Context, boardID string, kind models.ObjectKind, fields json.RawMessage) (json.RawMessage, error) {
			return json.RawMessage(`{"id":"srv"}`), nil
		},
		PatchObjectFunc: func(ctx context.Context, boardID string, kind models.ObjectKind, id string, fields json.RawMessage) error {
			return nil
		},
		DeleteObjectFunc: func(ctx context.Context, boardID string, kind models.ObjectKind, id string) error {
			return nil
		},
	}
	local := &StoreMock{
		InsertObjectFunc: func(ctx context.Context, boardID string, kind models.ObjectKind, fields json.RawMessage) (json.RawMessage, error) {
			return fields, nil
		},
		PatchObjectFunc: func(ctx context.Context, boardID string, kind models.ObjectKind, id string, fields json.RawMessage) error {
			return ErrNotFound
		},
		DeleteObjectFunc: func(ctx context.Context, boardID string, kind models.ObjectKind, id string) error {
			return nil
		},
	}
	c := NewCached(remote, local, discardLogger())

	err := c.PutSnapshot(ctx, "b", &models.Snapshot{})
	assert.ErrorIs(t, err, ErrPermissionDenied)

	stored, err := c.InsertObject(ctx, "b", models.KindNote, json.RawMessage(`{}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"srv"}`, string(stored))
	require.Len(t, local.InsertObjectCalls(), 1)
	assert.JSONEq(t, `{"id":"srv"}`, string(local.InsertObjectCalls()[0].Fields))

	require.NoError(t, c.PatchObject(ctx, "b", models.KindNote, "srv", json.RawMessage(`{"x":1}`)))
	require.NoError(t, c.DeleteObject(ctx, "b", models.KindNote, "srv"))
	assert.Len(t, local.DeleteObjectCalls(), 1)
}

func TestCached_ListRefreshesLocal(t *testing.T) {
	ctx := context.Background()
	remote := &StoreMock{
		ListObjectsFunc: func(ctx context.Context, boardID string, kind models.ObjectKind) ([]json.RawMessage, error) {
			return []json.RawMessage{json.RawMessage(`{"id":"a"}`)}, nil
		},
	}
	local := &StoreMock{
		ListObjectsFunc: func(ctx context.Context, boardID string, kind models.ObjectKind) ([]json.RawMessage, error) {
			return []json.RawMessage{json.RawMessage(`{"id":"stale"}`)}, nil
		},
		DeleteObjectFunc: func(ctx context.Context, boardID string, kind models.ObjectKind, id string) error {
			return nil
		},
		InsertObjectFunc: func(ctx context.Context, boardID string, kind models.ObjectKind, fields json.RawMessage) (json.RawMessage, error) {
			return fields, nil
		},
	}

	got, err := NewCached(remote, local, discardLogger()).ListObjects(ctx, "b", models.KindNote)
	require.NoError(t, err)
	assert.Len(t, got, 1)
	require.Len(t, local.DeleteObjectCalls(), 1)
	assert.Equal(t, "stale", local.DeleteObjectCalls()[0].ID)
	assert.Len(t, local.InsertObjectCalls(), 1)
}

func TestMergeFields(t *testing.T) {
	merged, err := MergeFields(json.RawMessage(`{"id":"a","x":1,"text":"t"}`), json.RawMessage(`{"x":2,"color":"#fff"}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"a","x":2,"text":"t","color":"#fff"}`, string(merged))

	merged, err = MergeFields(nil, json.RawMessage(`{"id":"b"}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"b"}`, string(merged))

	_, err = MergeFields(json.RawMessage(`{}`), json.RawMessage(`[]`))
	assert.Error(t, err)
}
