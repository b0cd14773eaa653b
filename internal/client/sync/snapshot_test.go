package sync

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/boardsync/internal/client/store"
	"github.com/iudanet/boardsync/internal/clock"
	"github.com/iudanet/boardsync/internal/models"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newSnapshotStore() *store.StoreMock {
	return &store.StoreMock{
		PutSnapshotFunc: func(ctx context.Context, boardID string, snap *models.Snapshot) error {
			return nil
		},
	}
}

func TestSnapshotWriter_Debounce(t *testing.T) {
	st := newSnapshotStore()
	clk := clock.Fake(time.Unix(0, 0))
	w := NewSnapshotWriter(st, "board-1", clk, 0, testLogger())

	w.Schedule([]models.Stroke{stroke(1)})
	clk.Advance(100 * time.Millisecond)
	w.Schedule([]models.Stroke{stroke(1), stroke(2)})
	clk.Advance(DefaultSnapshotDelay - time.Millisecond)
	assert.Empty(t, st.PutSnapshotCalls())

	clk.Advance(time.Millisecond)
	calls := st.PutSnapshotCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "board-1", calls[0].BoardID)
	assert.Equal(t, []models.Stroke{stroke(1), stroke(2)}, calls[0].Snap.Strokes)
	assert.Zero(t, clk.Pending())
}

func TestSnapshotWriter_SkipsUnchangedState(t *testing.T) {
	st := newSnapshotStore()
	clk := clock.Fake(time.Unix(0, 0))
	w := NewSnapshotWriter(st, "board-1", clk, time.Second, testLogger())

	w.MarkPersisted(&models.Snapshot{Strokes: []models.Stroke{stroke(1)}})
	w.Schedule([]models.Stroke{stroke(1)})
	clk.Advance(time.Second)
	assert.Empty(t, st.PutSnapshotCalls())

	w.Schedule([]models.Stroke{stroke(1), stroke(2)})
	clk.Advance(time.Second)
	w.Schedule([]models.Stroke{stroke(1), stroke(2)})
	clk.Advance(time.Second)
	assert.Len(t, st.PutSnapshotCalls(), 1)
}

func TestSnapshotWriter_EmptyStateIsWritten(t *testing.T) {
	st := newSnapshotStore()
	clk := clock.Fake(time.Unix(0, 0))
	w := NewSnapshotWriter(st, "board-1", clk, time.Second, testLogger())

	w.Schedule(nil)
	require.NoError(t, w.Flush(context.Background()))
	calls := st.PutSnapshotCalls()
	require.Len(t, calls, 1)
	assert.NotNil(t, calls[0].Snap.Strokes)
	assert.Empty(t, calls[0].Snap.Strokes)
}

func TestSnapshotWriter_PermissionDeniedReported(t *testing.T) {
	st := &store.StoreMock{
		PutSnapshotFunc: func(ctx context.Context, boardID string, snap *models.Snapshot) error {
			return store.ErrPermissionDenied
		},
	}
	clk := clock.Fake(time.Unix(0, 0))
	w := NewSnapshotWriter(st, "board-1", clk, time.Second, testLogger())

	var reported []error
	w.SetErrorHandler(func(err error) { reported = append(reported, err) })

	w.Schedule([]models.Stroke{stroke(1)})
	err := w.Flush(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPermissionDenied)
	require.Len(t, reported, 1)
	assert.ErrorIs(t, reported[0], store.ErrPermissionDenied)
}

func TestSnapshotWriter_TransientNotReported(t *testing.T) {
	st := &store.StoreMock{
		PutSnapshotFunc: func(ctx context.Context, boardID string, snap *models.Snapshot) error {
			return errors.Join(store.ErrTransient, errors.New("connection reset"))
		},
	}
	w := NewSnapshotWriter(st, "board-1", clock.Fake(time.Unix(0, 0)), time.Second, testLogger())

	reported := 0
	w.SetErrorHandler(func(error) { reported++ })
	w.Schedule([]models.Stroke{stroke(1)})
	assert.ErrorIs(t, w.Flush(context.Background()), store.ErrTransient)
	assert.Zero(t, reported)
}

func TestSnapshotWriter_CloseFlushes(t *testing.T) {
	st := newSnapshotStore()
	clk := clock.Fake(time.Unix(0, 0))
	w := NewSnapshotWriter(st, "board-1", clk, time.Minute, testLogger())

	require.NoError(t, w.Flush(context.Background()))
	assert.Empty(t, st.PutSnapshotCalls())

	w.Schedule([]models.Stroke{stroke(3)})
	require.NoError(t, w.Close(context.Background()))
	require.Len(t, st.PutSnapshotCalls(), 1)

	// После Close новые изменения не планируются
	w.Schedule([]models.Stroke{stroke(4)})
	clk.Advance(time.Hour)
	assert.Len(t, st.PutSnapshotCalls(), 1)
}

func TestSnapshotWriter_StopDropsPending(t *testing.T) {
	st := newSnapshotStore()
	clk := clock.Fake(time.Unix(0, 0))
	w := NewSnapshotWriter(st, "board-1", clk, time.Second, testLogger())

	w.Schedule([]models.Stroke{stroke(1)})
	w.Stop()
	clk.Advance(time.Minute)
	require.NoError(t, w.Flush(context.Background()))
	assert.Empty(t, st.PutSnapshotCalls())
	assert.Zero(t, clk.Pending())
}
