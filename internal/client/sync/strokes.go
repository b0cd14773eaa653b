package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/iudanet/boardsync/internal/channel"
	"github.com/iudanet/boardsync/internal/events"
	"github.com/iudanet/boardsync/internal/models"
)

// ClearHook is invoked after the stroke history was cleared. local reports
// whether the clear originated on this client.
type ClearHook func(ctx context.Context, local bool)

// Strokes replicates freehand strokes and the shared undo/redo history of a
// board. Any participant's undo or redo moves the same shared stacks.
type Strokes struct {
	ch        channel.Channel
	snapshots *SnapshotWriter
	logger    *slog.Logger
	onClear   ClearHook
	onChange  func()
	boardID   string
	history   History
	position  SnapshotMark // последний примененный serial, пишется в снимок
	mu        sync.Mutex
}

// NewStrokes creates the stroke synchronizer of a board. snapshots may be nil
// when strokes are not persisted.
func NewStrokes(boardID string, ch channel.Channel, snapshots *SnapshotWriter, logger *slog.Logger) *Strokes {
	return &Strokes{
		boardID:   boardID,
		ch:        ch,
		snapshots: snapshots,
		logger:    logger,
	}
}

// SetClearHook registers the hook that clears the rest of the board.
func (s *Strokes) SetClearHook(fn ClearHook) {
	s.mu.Lock()
	s.onClear = fn
	s.mu.Unlock()
}

// OnChange registers a listener called after every state change.
func (s *Strokes) OnChange(fn func()) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

// SetPosition records the strokes topic position the history reflects.
// Remote messages applied later move the serial forward.
func (s *Strokes) SetPosition(mark SnapshotMark) {
	s.mu.Lock()
	s.position = mark
	s.mu.Unlock()
}

// Load initializes the history from a persisted snapshot.
func (s *Strokes) Load(snap *models.Snapshot) {
	s.mu.Lock()
	if snap == nil {
		s.history.Load(nil)
	} else {
		s.history.Load(snap.Strokes)
	}
	notify := s.onChange
	s.mu.Unlock()

	if s.snapshots != nil && snap != nil {
		s.snapshots.MarkPersisted(snap)
	}
	if notify != nil {
		notify()
	}
}

// AddStroke validates stroke, appends it to the shared history, drops the
// local redo stack and broadcasts it. A broadcast refused by the relay
// takes the stroke back out.
func (s *Strokes) AddStroke(ctx context.Context, stroke models.Stroke) error {
	if err := stroke.Validate(); err != nil {
		return err
	}
	stroke = stroke.Clone()

	s.mu.Lock()
	s.history.Push(stroke)
	dropped := s.history.ClearRedo()
	state, mark, notify := s.history.UndoStack(), s.position, s.onChange
	s.mu.Unlock()

	s.afterLocal(state, mark, notify)
	err := s.publish(ctx, events.StrokeAdded{Stroke: stroke})
	if forbidden(err) {
		s.rollback(func(h *History) {
			h.Unpush(stroke)
			h.Restore(nil, dropped)
		})
	}
	return err
}

// Undo moves the newest stroke to the redo stack. With nothing to undo it is
// a silent no-op and nothing is broadcast.
func (s *Strokes) Undo(ctx context.Context) error {
	s.mu.Lock()
	moved := s.history.Undo()
	state, mark, notify := s.history.UndoStack(), s.position, s.onChange
	s.mu.Unlock()

	if !moved {
		return nil
	}
	s.afterLocal(state, mark, notify)
	err := s.publish(ctx, events.UndoRequested{BoardID: s.boardID})
	if forbidden(err) {
		s.rollback(func(h *History) { h.Redo() })
	}
	return err
}

// Redo moves the newest undone stroke back. With nothing to redo it is a
// silent no-op and nothing is broadcast.
func (s *Strokes) Redo(ctx context.Context) error {
	s.mu.Lock()
	moved := s.history.Redo()
	state, mark, notify := s.history.UndoStack(), s.position, s.onChange
	s.mu.Unlock()

	if !moved {
		return nil
	}
	s.afterLocal(state, mark, notify)
	err := s.publish(ctx, events.RedoRequested{BoardID: s.boardID})
	if forbidden(err) {
		s.rollback(func(h *History) { h.Undo() })
	}
	return err
}

// Clear empties the history, broadcasts the clear and runs the clear hook.
// When the relay refuses the clear the history comes back and the rest of
// the board is left alone.
func (s *Strokes) Clear(ctx context.Context) error {
	s.mu.Lock()
	undo, redo := s.history.Clear()
	mark, hook, notify := s.position, s.onClear, s.onChange
	s.mu.Unlock()

	s.afterLocal([]models.Stroke{}, mark, notify)
	err := s.publish(ctx, events.Cleared{BoardID: s.boardID})
	if forbidden(err) {
		s.rollback(func(h *History) { h.Restore(undo, redo) })
		return err
	}
	if hook != nil {
		hook(ctx, true)
	}
	return err
}

// rollback reverses a local change the relay refused to broadcast.
func (s *Strokes) rollback(undo func(h *History)) {
	s.mu.Lock()
	undo(&s.history)
	state, mark, notify := s.history.UndoStack(), s.position, s.onChange
	s.mu.Unlock()

	s.logger.Info("Rolled back refused stroke change", "board_id", s.boardID)
	s.afterLocal(state, mark, notify)
}

// forbidden сообщает, что relay отклонил публикацию
func forbidden(err error) bool {
	return errors.Is(err, channel.ErrForbidden)
}

func (s *Strokes) afterLocal(state []models.Stroke, mark SnapshotMark, notify func()) {
	if s.snapshots != nil {
		s.snapshots.ScheduleAt(state, mark)
	}
	if notify != nil {
		notify()
	}
}

func (s *Strokes) publish(ctx context.Context, ev events.StrokeEvent) error {
	name, data, err := events.EncodeStroke(ev)
	if err != nil {
		return err
	}
	if err := s.ch.Publish(ctx, events.TopicStrokes, name, data); err != nil {
		s.logger.Warn("Failed to publish stroke event", "board_id", s.boardID, "event", name, "error", err)
		return fmt.Errorf("failed to publish %s: %w", name, err)
	}
	return nil
}

// HandleMessage decodes a strokes topic message and applies it. Malformed
// payloads are logged and dropped.
func (s *Strokes) HandleMessage(msg channel.Message) {
	ev, err := events.DecodeStroke(msg.Event, msg.Data)
	if err != nil {
		s.logger.Warn("Dropping stroke event", "board_id", s.boardID, "message_id", msg.ID, "error", err)
		return
	}
	s.apply(ev, msg.Serial)
}

// ApplyRemote applies an event published by another participant.
func (s *Strokes) ApplyRemote(ev events.StrokeEvent) {
	s.apply(ev, 0)
}

func (s *Strokes) apply(ev events.StrokeEvent, serial uint64) {
	s.mu.Lock()
	if serial > s.position.Serial {
		s.position.Serial = serial
	}
	changed := true
	var hook ClearHook
	switch e := ev.(type) {
	case events.StrokeAdded:
		s.history.Push(e.Stroke.Clone())
	case events.UndoRequested:
		changed = s.history.Undo()
	case events.RedoRequested:
		changed = s.history.Redo()
	case events.Cleared:
		s.history.Clear()
		hook = s.onClear
	default:
		changed = false
	}
	notify := s.onChange
	s.mu.Unlock()

	if hook != nil {
		hook(context.Background(), false)
	}
	if changed && notify != nil {
		notify()
	}
}

// Visible returns the strokes to render.
func (s *Strokes) Visible() []models.Stroke {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.Visible()
}

// UndoStack returns a copy of the undo stack.
func (s *Strokes) UndoStack() []models.Stroke {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.UndoStack()
}

// RedoStack returns a copy of the redo stack.
func (s *Strokes) RedoStack() []models.Stroke {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.RedoStack()
}
