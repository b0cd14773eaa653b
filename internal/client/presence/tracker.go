// Package presence broadcasts the local cursor and tracks the cursors and the
// online roster of the other participants of a board.
package presence

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/iudanet/boardsync/internal/channel"
	"github.com/iudanet/boardsync/internal/clock"
	"github.com/iudanet/boardsync/internal/events"
	"github.com/iudanet/boardsync/internal/models"
	"github.com/iudanet/boardsync/internal/view"
)

// DefaultInterval минимальный интервал между публикациями курсора
const DefaultInterval = 50 * time.Millisecond

// Identity is how the local participant is shown to others.
type Identity struct {
	Name  string
	Color string
}

// Cursor is the last known pointer position of a remote participant.
type Cursor struct {
	ClientID string
	Name     string
	Color    string
	Position models.Point
}

// Tracker publishes the local cursor at a bounded rate and keeps the cursor
// map and the membership roster of the board.
type Tracker struct {
	lastSent time.Time
	ch       channel.Channel
	clock    clock.Clock
	logger   *slog.Logger
	cursors  map[string]Cursor
	roster   map[string]channel.Member
	onChange func()
	self     Identity
	interval time.Duration
	mu       sync.Mutex
	moved    bool // курсор опубликован после последнего leave
	entered  bool
}

// NewTracker creates a tracker. interval <= 0 selects DefaultInterval.
func NewTracker(ch channel.Channel, self Identity, clk clock.Clock, interval time.Duration, logger *slog.Logger) *Tracker {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Tracker{
		ch:       ch,
		self:     self,
		clock:    clk,
		interval: interval,
		logger:   logger,
		cursors:  make(map[string]Cursor),
		roster:   make(map[string]channel.Member),
	}
}

// OnChange registers a listener called whenever cursors or the roster change.
func (t *Tracker) OnChange(fn func()) {
	t.mu.Lock()
	t.onChange = fn
	t.mu.Unlock()
}

// Move publishes the local pointer position, given in screen space. Calls
// within the interval after the last published one are dropped.
func (t *Tracker) Move(ctx context.Context, screen models.Point, v view.View) error {
	world := view.ScreenToWorld(screen, view.Normalize(v))
	if !world.IsFinite() {
		return &models.ValidationError{Field: "position", Reason: "cursor position is not finite"}
	}

	t.mu.Lock()
	now := t.clock.Now()
	if t.moved && now.Sub(t.lastSent) < t.interval {
		t.mu.Unlock()
		return nil
	}
	t.lastSent, t.moved = now, true
	self := t.self
	t.mu.Unlock()

	return t.publish(ctx, events.CursorMoved{
		ClientID: t.ch.ClientID(),
		Name:     self.Name,
		Color:    self.Color,
		Position: world,
	})
}

// Leave publishes a single leave event once the pointer left the board.
func (t *Tracker) Leave(ctx context.Context) error {
	t.mu.Lock()
	if !t.moved {
		t.mu.Unlock()
		return nil
	}
	t.moved = false
	t.mu.Unlock()

	return t.publish(ctx, events.CursorLeft{ClientID: t.ch.ClientID()})
}

func (t *Tracker) publish(ctx context.Context, ev events.CursorEvent) error {
	name, data, err := events.EncodeCursor(ev)
	if err != nil {
		return err
	}
	if err := t.ch.Publish(ctx, events.TopicCursors, name, data); err != nil {
		t.logger.Debug("Failed to publish cursor", "error", err)
		return fmt.Errorf("failed to publish cursor: %w", err)
	}
	return nil
}

// HandleMessage decodes a cursors topic message and applies it.
func (t *Tracker) HandleMessage(msg channel.Message) {
	ev, err := events.DecodeCursor(msg.Event, msg.Data)
	if err != nil {
		t.logger.Warn("Dropping cursor event", "message_id", msg.ID, "error", err)
		return
	}
	t.ApplyRemote(ev)
}

// ApplyRemote upserts or removes the sender's cursor. Events carrying the
// local client id are ignored.
func (t *Tracker) ApplyRemote(ev events.CursorEvent) {
	self := t.ch.ClientID()

	t.mu.Lock()
	changed := false
	switch e := ev.(type) {
	case events.CursorMoved:
		if e.ClientID == self {
			break
		}
		t.cursors[e.ClientID] = Cursor{ClientID: e.ClientID, Name: e.Name, Color: e.Color, Position: e.Position}
		changed = true
	case events.CursorLeft:
		if _, ok := t.cursors[e.ClientID]; ok && e.ClientID != self {
			delete(t.cursors, e.ClientID)
			changed = true
		}
	}
	notify := t.onChange
	t.mu.Unlock()

	if changed && notify != nil {
		notify()
	}
}

// Cursors returns the remote cursors ordered by client id.
func (t *Tracker) Cursors() []Cursor {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Cursor, 0, len(t.cursors))
	for _, c := range t.cursors {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ClientID < out[j].ClientID })
	return out
}

// Cursor returns the cursor of clientID.
func (t *Tracker) Cursor(clientID string) (Cursor, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	c, ok := t.cursors[clientID]
	return c, ok
}

// Enter announces the local participant in the board roster and loads the
// current members.
func (t *Tracker) Enter(ctx context.Context) error {
	t.mu.Lock()
	self := t.self
	t.entered = true
	t.mu.Unlock()

	if err := t.ch.Presence().Enter(ctx, channel.Member{Name: self.Name, Color: self.Color}); err != nil {
		t.logger.Warn("Failed to enter presence", "error", err)
		return fmt.Errorf("failed to enter presence: %w", err)
	}
	return t.Refresh(ctx)
}

// Update changes how the local participant is shown to others.
func (t *Tracker) Update(ctx context.Context, self Identity) error {
	t.mu.Lock()
	t.self = self
	entered := t.entered
	t.mu.Unlock()

	if !entered {
		return nil
	}
	if err := t.ch.Presence().Update(ctx, channel.Member{Name: self.Name, Color: self.Color}); err != nil {
		t.logger.Warn("Failed to update presence", "error", err)
		return fmt.Errorf("failed to update presence: %w", err)
	}
	return nil
}

// Exit removes the local participant from the roster.
func (t *Tracker) Exit(ctx context.Context) error {
	t.mu.Lock()
	entered := t.entered
	t.entered = false
	t.mu.Unlock()

	if !entered {
		return nil
	}
	if err := t.ch.Presence().Leave(ctx); err != nil {
		t.logger.Debug("Failed to leave presence", "error", err)
		return fmt.Errorf("failed to leave presence: %w", err)
	}
	return nil
}

// Refresh replaces the roster with the members reported by the channel.
func (t *Tracker) Refresh(ctx context.Context) error {
	members, err := t.ch.Presence().Get(ctx)
	if err != nil {
		t.logger.Warn("Failed to get presence members", "error", err)
		return fmt.Errorf("failed to get presence members: %w", err)
	}

	t.mu.Lock()
	t.roster = make(map[string]channel.Member, len(members))
	for _, m := range members {
		t.roster[m.ClientID] = m
	}
	notify := t.onChange
	t.mu.Unlock()

	if notify != nil {
		notify()
	}
	return nil
}

// HandlePresence applies a membership change of the board.
func (t *Tracker) HandlePresence(ev channel.PresenceEvent) {
	t.mu.Lock()
	switch ev.Action {
	case channel.PresenceEnter, channel.PresenceUpdate:
		t.roster[ev.Member.ClientID] = ev.Member
	case channel.PresenceLeave:
		delete(t.roster, ev.Member.ClientID)
		// Ушедший участник больше не рисует курсор
		delete(t.cursors, ev.Member.ClientID)
	}
	notify := t.onChange
	t.mu.Unlock()

	if notify != nil {
		notify()
	}
}

// HandleState re-asserts membership after a reconnect and forgets remote
// cursors while disconnected.
func (t *Tracker) HandleState(st channel.State) {
	switch st {
	case channel.StateConnected:
		t.mu.Lock()
		entered := t.entered
		t.mu.Unlock()
		if !entered {
			return
		}
		if err := t.Enter(context.Background()); err != nil {
			t.logger.Warn("Failed to restore presence after reconnect", "error", err)
		}
	case channel.StateDisconnected:
		t.mu.Lock()
		t.cursors = make(map[string]Cursor)
		t.moved = false
		notify := t.onChange
		t.mu.Unlock()
		if notify != nil {
			notify()
		}
	}
}

// Roster returns the members that have the board open, sorted by name.
func (t *Tracker) Roster() []channel.Member {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]channel.Member, 0, len(t.roster))
	for _, m := range t.roster {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ClientID < out[j].ClientID
	})
	return out
}
