package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/zeebo/blake3"

	"github.com/iudanet/boardsync/internal/client/store"
	"github.com/iudanet/boardsync/internal/clock"
	"github.com/iudanet/boardsync/internal/models"
)

// DefaultSnapshotDelay задержка debounce записи снимка
const DefaultSnapshotDelay = 500 * time.Millisecond

// SnapshotMark is the position in the strokes topic a scheduled state
// reflects: every message of Epoch up to Serial and the ones Writer
// published.
type SnapshotMark struct {
	Epoch  string
	Writer string
	Serial uint64
}

// SnapshotWriter debounces snapshot writes of one board: a burst of
// Schedule calls results in a single PutSnapshot of the last scheduled
// state. A state identical to the last persisted one is not written again.
type SnapshotWriter struct {
	store    store.Store
	clock    clock.Clock
	logger   *slog.Logger
	timer    clock.Timer
	onError  ErrorHandler
	boardID  string
	pending  []models.Stroke
	mark     SnapshotMark
	delay    time.Duration
	digest   [32]byte
	mu       sync.Mutex
	writeMu  sync.Mutex
	dirty    bool
	hasState bool
	closed   bool
}

// NewSnapshotWriter creates a writer. delay <= 0 selects DefaultSnapshotDelay.
func NewSnapshotWriter(st store.Store, boardID string, clk clock.Clock, delay time.Duration, logger *slog.Logger) *SnapshotWriter {
	if delay <= 0 {
		delay = DefaultSnapshotDelay
	}
	return &SnapshotWriter{
		store:   st,
		clock:   clk,
		boardID: boardID,
		delay:   delay,
		logger:  logger,
	}
}

// SetErrorHandler registers a handler for failed writes.
func (w *SnapshotWriter) SetErrorHandler(fn ErrorHandler) {
	w.mu.Lock()
	w.onError = fn
	w.mu.Unlock()
}

// MarkPersisted records snap as the state the store already has.
func (w *SnapshotWriter) MarkPersisted(snap *models.Snapshot) {
	digest, err := snapshotDigest(snap)
	if err != nil {
		return
	}
	w.writeMu.Lock()
	w.digest, w.hasState = digest, true
	w.writeMu.Unlock()
}

// Schedule records strokes as the latest state and restarts the delay.
func (w *SnapshotWriter) Schedule(strokes []models.Stroke) {
	w.ScheduleAt(strokes, SnapshotMark{})
}

// ScheduleAt is Schedule for a state that reflects the strokes topic up to
// mark.
func (w *SnapshotWriter) ScheduleAt(strokes []models.Stroke, mark SnapshotMark) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.pending = cloneStrokes(strokes)
	w.mark = mark
	w.dirty = true
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = w.clock.AfterFunc(w.delay, func() {
		if err := w.Flush(context.Background()); err != nil {
			w.logger.Warn("Failed to write snapshot", "board_id", w.boardID, "error", err)
		}
	})
}

// Flush writes the pending state immediately, if any.
func (w *SnapshotWriter) Flush(ctx context.Context) error {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()

	w.mu.Lock()
	if !w.dirty {
		w.mu.Unlock()
		return nil
	}
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	snap := &models.Snapshot{
		Strokes: w.pending,
		Epoch:   w.mark.Epoch,
		Serial:  w.mark.Serial,
		Writer:  w.mark.Writer,
	}
	if snap.Strokes == nil {
		snap.Strokes = []models.Stroke{}
	}
	w.pending, w.dirty = nil, false
	onError := w.onError
	w.mu.Unlock()

	digest, err := snapshotDigest(snap)
	if err != nil {
		return err
	}
	if w.hasState && digest == w.digest {
		w.logger.Debug("Snapshot unchanged, skipping write", "board_id", w.boardID)
		return nil
	}

	if err := w.store.PutSnapshot(ctx, w.boardID, snap); err != nil {
		err = fmt.Errorf("failed to put snapshot: %w", err)
		if onError != nil && errors.Is(err, store.ErrPermissionDenied) {
			onError(err)
		}
		return err
	}
	w.digest, w.hasState = digest, true
	w.logger.Debug("Snapshot written", "board_id", w.boardID, "strokes", len(snap.Strokes))
	return nil
}

// Close flushes the pending state and stops accepting new work.
func (w *SnapshotWriter) Close(ctx context.Context) error {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()
	return w.Flush(ctx)
}

// Stop drops the pending state without writing it.
func (w *SnapshotWriter) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	w.pending, w.dirty = nil, false
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
}

func snapshotDigest(snap *models.Snapshot) ([32]byte, error) {
	data, err := json.Marshal(snap)
	if err != nil {
		return [32]byte{}, fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	return blake3.Sum256(data), nil
}
