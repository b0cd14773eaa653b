// Package session ties the synchronizers of one open board to a channel and a
// store. A Session owns every subscription of the board and releases them on
// Close.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	gosync "sync"
	"time"

	"github.com/iudanet/boardsync/internal/channel"
	"github.com/iudanet/boardsync/internal/client/presence"
	"github.com/iudanet/boardsync/internal/client/store"
	"github.com/iudanet/boardsync/internal/client/sync"
	"github.com/iudanet/boardsync/internal/clock"
	"github.com/iudanet/boardsync/internal/events"
	"github.com/iudanet/boardsync/internal/models"
	"github.com/iudanet/boardsync/internal/validation"
	"github.com/iudanet/boardsync/internal/view"
)

var (
	// ErrBoardDeleted доска удалена владельцем, сессия закрыта
	ErrBoardDeleted = errors.New("board deleted")

	// ErrClosed сессия уже закрыта
	ErrClosed = errors.New("session closed")

	// ErrToolCannotDraw выбранный инструмент не рисует штрихи
	ErrToolCannotDraw = errors.New("selected tool does not draw strokes")
)

// DefaultHistoryTimeout ожидание истории топика при проверке пропусков и resync
const DefaultHistoryTimeout = 10 * time.Second

// Config описывает открываемую доску
type Config struct {
	BoardID  string
	Identity presence.Identity
	// CursorInterval интервал публикации курсора, 0 - по умолчанию
	CursorInterval time.Duration
	// SnapshotDelay задержка записи снимка, 0 - по умолчанию
	SnapshotDelay time.Duration
	// HistoryLimit сколько сообщений истории запрашивать при resync, 0 - лимит канала
	HistoryLimit int
	// HistoryTimeout ожидание ответа на запрос истории, 0 - по умолчанию
	HistoryTimeout  time.Duration
	StoreAssignsIDs bool
}

// Validate проверяет конфигурацию сессии
func (c Config) Validate() error {
	if err := validation.ValidateBoardID(c.BoardID); err != nil {
		return err
	}
	if c.HistoryLimit < 0 {
		return fmt.Errorf("history limit must not be negative")
	}
	if c.HistoryTimeout < 0 {
		return fmt.Errorf("history timeout must not be negative")
	}
	return nil
}

// objectSet is the part of an object synchronizer the session drives.
type objectSet interface {
	Topic() string
	Load(ctx context.Context) error
	HandleMessage(msg channel.Message)
	RemoveAll(ctx context.Context) error
	Clear()
	SetErrorHandler(fn sync.ErrorHandler)
	OnChange(fn func())
}

// Session is one open board.
type Session struct {
	ch        channel.Channel
	store     store.Store
	logger    *slog.Logger
	Strokes   *sync.Strokes
	Notes     *sync.Notes
	Shapes    *sync.Shapes
	Texts     *sync.TextBoxes
	Presence  *presence.Tracker
	snapshots *sync.SnapshotWriter
	done      chan struct{}
	err       error
	onError   sync.ErrorHandler
	onChange  func()
	serials   map[string]uint64
	name      string
	tool      models.Tool
	cfg       Config
	subs      []channel.Subscription
	view      view.View
	objects   []objectSet
	// applyMu сериализует применение удаленных событий и resync
	applyMu      gosync.Mutex
	mu           gosync.Mutex
	disconnected bool
	closed       bool
}

// Open loads the board, subscribes to every topic and enters presence.
func Open(ctx context.Context, cfg Config, ch channel.Channel, st store.Store, clk clock.Clock, logger *slog.Logger) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid session config: %w", err)
	}
	logger = logger.With("board_id", cfg.BoardID)

	s := &Session{
		cfg:     cfg,
		ch:      ch,
		store:   st,
		logger:  logger,
		done:    make(chan struct{}),
		serials: make(map[string]uint64),
		tool:    models.ToolPen,
		view:    view.Default(),
	}

	if s.cfg.HistoryTimeout == 0 {
		s.cfg.HistoryTimeout = DefaultHistoryTimeout
	}

	s.snapshots = sync.NewSnapshotWriter(st, cfg.BoardID, clk, cfg.SnapshotDelay, logger)
	s.Strokes = sync.NewStrokes(cfg.BoardID, ch, s.snapshots, logger)
	s.Notes = sync.NewObjects[models.Note, models.NotePatch](cfg.objects(models.KindNote, events.TopicNotes), ch, st, logger)
	s.Shapes = sync.NewObjects[models.Shape, models.ShapePatch](cfg.objects(models.KindShape, events.TopicShapes), ch, st, logger)
	s.Texts = sync.NewObjects[models.TextBox, models.TextBoxPatch](cfg.objects(models.KindTextBox, events.TopicTexts), ch, st, logger)
	s.objects = []objectSet{s.Notes, s.Shapes, s.Texts}
	s.Presence = presence.NewTracker(ch, cfg.Identity, clk, cfg.CursorInterval, logger)

	s.Strokes.SetClearHook(s.clearObjects)
	s.snapshots.SetErrorHandler(s.reportError)
	for _, o := range s.objects {
		o.SetErrorHandler(s.reportError)
		o.OnChange(s.changed)
	}
	s.Strokes.OnChange(s.changed)
	s.Presence.OnChange(s.changed)

	if err := s.subscribe(); err != nil {
		s.unsubscribe()
		return nil, err
	}
	if err := s.Resync(ctx); err != nil {
		s.unsubscribe()
		return nil, err
	}
	if err := s.Presence.Enter(ctx); err != nil {
		// Членство восстановится при следующем подключении
		logger.Warn("Failed to enter presence on open", "error", err)
	}

	logger.Info("Board session opened", "client_id", ch.ClientID())
	return s, nil
}

func (c Config) objects(kind models.ObjectKind, topic string) sync.ObjectsConfig {
	return sync.ObjectsConfig{BoardID: c.BoardID, Kind: kind, Topic: topic, StoreAssignsIDs: c.StoreAssignsIDs}
}

func (s *Session) subscribe() error {
	add := func(topic string, h channel.Handler) error {
		sub, err := s.ch.Subscribe(topic, "", h)
		if err != nil {
			return fmt.Errorf("failed to subscribe to %s: %w", topic, err)
		}
		s.subs = append(s.subs, sub)
		return nil
	}

	if err := add(events.TopicStrokes, s.tracked(events.TopicStrokes, true, s.Strokes.HandleMessage)); err != nil {
		return err
	}
	for _, o := range s.objects {
		if err := add(o.Topic(), s.tracked(o.Topic(), false, o.HandleMessage)); err != nil {
			return err
		}
	}
	if err := add(events.TopicCursors, s.Presence.HandleMessage); err != nil {
		return err
	}
	if err := add(events.TopicBoard, s.handleBoardEvent); err != nil {
		return err
	}

	presenceSub, err := s.ch.Presence().Subscribe("", s.Presence.HandlePresence)
	if err != nil {
		return fmt.Errorf("failed to subscribe to presence: %w", err)
	}
	s.subs = append(s.subs, presenceSub)
	s.subs = append(s.subs, s.ch.OnStateChange(s.handleState))
	return nil
}

func (s *Session) unsubscribe() {
	s.mu.Lock()
	subs := s.subs
	s.subs = nil
	s.mu.Unlock()
	for _, sub := range subs {
		sub.Unsubscribe()
	}
}

// tracked wraps a topic handler with duplicate suppression by serial and,
// when detectGaps is set, a full resync on a missed message.
func (s *Session) tracked(topic string, detectGaps bool, h channel.Handler) channel.Handler {
	return func(msg channel.Message) {
		s.applyMu.Lock()
		defer s.applyMu.Unlock()

		last := s.serials[topic]
		if msg.Serial != 0 && msg.Serial <= last {
			s.logger.Debug("Skipping already applied message", "topic", topic, "serial", msg.Serial)
			return
		}
		if detectGaps && last > 0 && msg.Serial > last+1 && !s.ownGap(topic, last, msg.Serial) {
			s.logger.Warn("Missed messages detected, resyncing", "topic", topic, "last_serial", last, "serial", msg.Serial)
			if err := s.resyncLocked(context.Background()); err != nil {
				s.logger.Error("Failed to resync board", "error", err)
			}
			return
		}
		h(msg)
		if msg.Serial > last {
			s.serials[topic] = msg.Serial
		}
	}
}

// ownGap reports whether every message between last and next was published
// by this client. The channel does not echo own messages, so their serials
// show up as holes.
func (s *Session) ownGap(topic string, last, next uint64) bool {
	history, err := s.history(context.Background(), topic)
	if err != nil {
		s.logger.Warn("Failed to check missed messages", "topic", topic, "error", err)
		return false
	}
	self := s.ch.ClientID()
	found := uint64(0)
	for _, m := range history {
		if m.Serial <= last || m.Serial >= next {
			continue
		}
		if m.ClientID != self {
			return false
		}
		found++
	}
	return found == next-last-1
}

// Resync reloads the board from the store and the channel history.
func (s *Session) Resync(ctx context.Context) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return ErrClosed
	}

	s.applyMu.Lock()
	defer s.applyMu.Unlock()
	return s.resyncLocked(ctx)
}

func (s *Session) resyncLocked(ctx context.Context) error {
	snap, err := s.store.GetSnapshot(ctx, s.cfg.BoardID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		snap = &models.Snapshot{}
	case err != nil:
		return fmt.Errorf("failed to load snapshot: %w", err)
	}

	for _, o := range s.objects {
		if err := o.Load(ctx); err != nil {
			return err
		}
	}

	strokeHistory, err := s.history(ctx, events.TopicStrokes)
	if err != nil {
		return err
	}
	epoch := s.ch.Epoch()
	base, replay := strokeBase(snap, strokeHistory, epoch)
	if snap.Epoch != "" && snap.Epoch != epoch {
		s.logger.Info("Relay epoch changed since the snapshot", "snapshot_epoch", snap.Epoch, "epoch", epoch)
	}
	s.Strokes.Load(base)
	s.snapshots.MarkPersisted(snap)
	for _, msg := range replay {
		s.Strokes.HandleMessage(msg)
	}
	s.serials[events.TopicStrokes] = lastSerial(strokeHistory)
	s.Strokes.SetPosition(sync.SnapshotMark{
		Epoch:  epoch,
		Serial: s.serials[events.TopicStrokes],
		Writer: s.ch.ClientID(),
	})

	for _, o := range s.objects {
		msgs, err := s.history(ctx, o.Topic())
		if err != nil {
			return err
		}
		// Повтор идемпотентен поверх сохраненных объектов
		for _, msg := range msgs {
			o.HandleMessage(msg)
		}
		s.serials[o.Topic()] = lastSerial(msgs)
	}

	s.logger.Info("Board resynchronized",
		"strokes", len(s.Strokes.Visible()),
		"replayed", len(replay),
		"notes", s.Notes.Len(),
		"shapes", s.Shapes.Len(),
		"texts", s.Texts.Len(),
	)
	return nil
}

// history reads the retained messages of topic. The wait is bounded since
// callers hold applyMu and may run on the channel's delivery goroutine.
func (s *Session) history(ctx context.Context, topic string) ([]channel.Message, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.HistoryTimeout)
	defer cancel()
	msgs, err := s.ch.History(ctx, topic, channel.HistoryOptions{
		Direction: channel.Forwards,
		Limit:     s.cfg.HistoryLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load %s history: %w", topic, err)
	}
	return msgs, nil
}

// strokeBase picks the starting state for a stroke replay. The snapshot is
// the base and only messages it does not cover are replayed. A snapshot of
// an earlier relay epoch covers none of the current history, which is
// replayed only when it reaches back to the first serial. A clear in the
// replay drops everything before it.
func strokeBase(snap *models.Snapshot, history []channel.Message, epoch string) (*models.Snapshot, []channel.Message) {
	var replay []channel.Message
	switch {
	case snap.Epoch != "" && snap.Epoch == epoch:
		for _, m := range history {
			if !snap.Covers(epoch, m.Serial, m.ClientID) {
				replay = append(replay, m)
			}
		}
	case len(history) > 0 && history[0].Serial == 1:
		replay = history
	}
	for i := len(replay) - 1; i >= 0; i-- {
		if replay[i].Event == events.EventClear {
			return &models.Snapshot{}, replay[i+1:]
		}
	}
	return snap, replay
}

func lastSerial(msgs []channel.Message) uint64 {
	var last uint64
	for _, m := range msgs {
		if m.Serial > last {
			last = m.Serial
		}
	}
	return last
}

func (s *Session) handleState(st channel.State) {
	switch st {
	case channel.StateDisconnected:
		s.mu.Lock()
		s.disconnected = true
		s.mu.Unlock()
		s.logger.Warn("Board connection lost")
	case channel.StateConnected:
		s.mu.Lock()
		resync := s.disconnected && !s.closed
		s.disconnected = false
		s.mu.Unlock()
		if resync {
			if err := s.Resync(context.Background()); err != nil {
				s.logger.Error("Failed to resync after reconnect", "error", err)
			}
		}
	}
	s.Presence.HandleState(st)
}

func (s *Session) handleBoardEvent(msg channel.Message) {
	ev, err := events.DecodeBoard(msg.Event, msg.Data)
	if err != nil {
		s.logger.Warn("Dropping board event", "message_id", msg.ID, "error", err)
		return
	}
	switch e := ev.(type) {
	case events.BoardDeleted:
		s.logger.Info("Board deleted by another participant", "client_id", msg.ClientID)
		s.closeWith(context.Background(), ErrBoardDeleted)
	case events.BoardRenamed:
		s.mu.Lock()
		s.name = e.Name
		s.mu.Unlock()
		s.changed()
	}
}

// clearObjects runs after a stroke clear: a clear resets the whole board.
func (s *Session) clearObjects(ctx context.Context, local bool) {
	for _, o := range s.objects {
		if !local {
			o.Clear()
			continue
		}
		if err := o.RemoveAll(ctx); err != nil {
			s.logger.Warn("Failed to broadcast object removal on clear", "error", err)
		}
	}
}

// OnError registers a handler for failures reported after the originating
// call returned, such as rolled back changes.
func (s *Session) OnError(fn sync.ErrorHandler) {
	s.mu.Lock()
	s.onError = fn
	s.mu.Unlock()
}

// OnChange registers a listener called after any board state change.
func (s *Session) OnChange(fn func()) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

func (s *Session) reportError(err error) {
	s.mu.Lock()
	fn := s.onError
	s.mu.Unlock()
	if fn != nil {
		fn(err)
	}
}

func (s *Session) changed() {
	s.mu.Lock()
	fn := s.onChange
	s.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// BoardID returns the id of the open board.
func (s *Session) BoardID() string { return s.cfg.BoardID }

// Name returns the last announced board name.
func (s *Session) Name() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.name
}

// Tool returns the selected drawing tool.
func (s *Session) Tool() models.Tool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tool
}

// SetTool selects the drawing tool.
func (s *Session) SetTool(t models.Tool) error {
	if !t.Valid() {
		return &models.ValidationError{Field: "tool", Reason: "unknown tool " + string(t)}
	}
	s.mu.Lock()
	s.tool = t
	s.mu.Unlock()
	return nil
}

// View returns the local camera.
func (s *Session) View() view.View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view
}

// Zoom applies a wheel zoom anchored at the screen pivot.
func (s *Session) Zoom(pivot models.Point, wheelDelta float64) view.View {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.view = view.ApplyZoom(s.view, pivot, wheelDelta)
	return s.view
}

// Pan moves the local camera by a screen delta.
func (s *Session) Pan(delta models.Point) view.View {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.view = view.ApplyPan(s.view, delta, view.DefaultPanSpeed)
	return s.view
}

// Draw converts screen points to world space and adds them as a stroke of
// the selected tool.
func (s *Session) Draw(ctx context.Context, screen []models.Point) error {
	s.mu.Lock()
	tool, v := s.tool, s.view
	s.mu.Unlock()
	if !tool.Draws() {
		return ErrToolCannotDraw
	}

	points := make([]models.Point, len(screen))
	for i, p := range screen {
		points[i] = view.ScreenToWorld(p, v)
	}
	return s.Strokes.AddStroke(ctx, models.Stroke{Points: points, Erase: tool == models.ToolEraser})
}

// PointerMove publishes the local cursor for a screen position.
func (s *Session) PointerMove(ctx context.Context, screen models.Point) error {
	return s.Presence.Move(ctx, screen, s.View())
}

// PointerLeave publishes that the local cursor left the board.
func (s *Session) PointerLeave(ctx context.Context) error {
	return s.Presence.Leave(ctx)
}

// Rename announces a new board name to every participant.
func (s *Session) Rename(ctx context.Context, name string) error {
	if err := validation.ValidateBoardName(name); err != nil {
		return &models.ValidationError{Field: "name", Reason: err.Error()}
	}
	if err := s.publishBoardEvent(ctx, events.BoardRenamed{BoardID: s.cfg.BoardID, Name: name}); err != nil {
		return err
	}
	s.mu.Lock()
	s.name = name
	s.mu.Unlock()
	s.changed()
	return nil
}

// Delete announces that the board was deleted and closes the session.
func (s *Session) Delete(ctx context.Context) error {
	if err := s.publishBoardEvent(ctx, events.BoardDeleted{BoardID: s.cfg.BoardID}); err != nil {
		return err
	}
	return s.closeWith(ctx, ErrBoardDeleted)
}

func (s *Session) publishBoardEvent(ctx context.Context, ev events.BoardEvent) error {
	name, data, err := events.EncodeBoard(ev)
	if err != nil {
		return err
	}
	if err := s.ch.Publish(ctx, events.TopicBoard, name, data); err != nil {
		return fmt.Errorf("failed to publish %s: %w", name, err)
	}
	return nil
}

// Done is closed when the session ends.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Err returns why the session ended: nil after Close, ErrBoardDeleted when the
// board was deleted.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close unsubscribes from the board, leaves presence and flushes the pending
// snapshot. Persistence calls already in flight finish on their own.
func (s *Session) Close(ctx context.Context) error {
	return s.closeWith(ctx, nil)
}

func (s *Session) closeWith(ctx context.Context, reason error) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.err = reason
	s.mu.Unlock()

	s.unsubscribe()

	var errs []error
	if err := s.Presence.Leave(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := s.Presence.Exit(ctx); err != nil {
		errs = append(errs, err)
	}
	if errors.Is(reason, ErrBoardDeleted) {
		s.snapshots.Stop()
	} else if err := s.snapshots.Close(ctx); err != nil {
		errs = append(errs, err)
	}
	close(s.done)

	s.logger.Info("Board session closed", "reason", reason)
	return errors.Join(errs...)
}
