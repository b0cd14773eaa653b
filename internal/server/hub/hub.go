// Package hub is the relay of the board server: per-board topic logs with
// serials and bounded history, fan-out to subscribers and presence.
package hub

import (
	"errors"
	"log/slog"
	"regexp"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iudanet/boardsync/internal/events"
	"github.com/iudanet/boardsync/internal/models"
	"github.com/iudanet/boardsync/pkg/api"
)

// DefaultHistoryLimit сколько сообщений топика хранит relay
const DefaultHistoryLimit = 500

var (
	// ErrUnknownTopic топик не входит в протокол доски
	ErrUnknownTopic = errors.New("unknown topic")
	// ErrReadOnly роль участника не позволяет публиковать в топик
	ErrReadOnly = errors.New("role may not publish to this topic")
)

var clientIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)

// PublishHook is called after a message was accepted and delivered.
type PublishHook func(boardID string, msg api.Message)

// Hub holds every open board.
type Hub struct {
	logger       *slog.Logger
	boards       map[string]*board
	onPublish    PublishHook
	now          func() time.Time
	epoch        string // serials в памяти, новый epoch при каждом запуске
	historyLimit int
	mu           sync.Mutex
}

type board struct {
	topics  map[string]*topicLog
	conns   map[string]*Conn // по client id
	members map[string]api.Member
}

type topicLog struct {
	subs     map[*Conn]struct{}
	messages []api.Message
	serial   uint64
}

// New creates an empty hub. historyLimit <= 0 selects DefaultHistoryLimit.
func New(logger *slog.Logger, historyLimit int) *Hub {
	if historyLimit <= 0 {
		historyLimit = DefaultHistoryLimit
	}
	return &Hub{
		logger:       logger,
		boards:       make(map[string]*board),
		historyLimit: historyLimit,
		epoch:        uuid.NewString(),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Epoch returns the id of this relay lifetime. Clients use it to tell
// serials of a restarted relay apart from the ones they persisted.
func (h *Hub) Epoch() string {
	return h.epoch
}

// OnPublish registers a hook called for every accepted message.
func (h *Hub) OnPublish(fn PublishHook) {
	h.mu.Lock()
	h.onPublish = fn
	h.mu.Unlock()
}

// Attach registers a new connection of clientID to the board. An empty or
// malformed clientID gets a random one. A connection already registered
// under the same id is closed first.
func (h *Hub) Attach(boardID, clientID string, role models.Role) *Conn {
	if !clientIDPattern.MatchString(clientID) {
		clientID = uuid.NewString()
	}
	c := newConn(h, boardID, clientID, role)

	h.mu.Lock()
	b := h.board(boardID)
	old := b.conns[clientID]
	h.mu.Unlock()

	if old != nil {
		h.logger.Info("Replacing stale connection", "board_id", boardID, "client_id", clientID)
		old.Close()
	}

	h.mu.Lock()
	b.conns[clientID] = c
	h.mu.Unlock()

	h.logger.Debug("Client attached", "board_id", boardID, "client_id", clientID, "role", role)
	return c
}

// board must be called with h.mu held.
func (h *Hub) board(boardID string) *board {
	b, ok := h.boards[boardID]
	if !ok {
		b = &board{
			topics:  make(map[string]*topicLog),
			conns:   make(map[string]*Conn),
			members: make(map[string]api.Member),
		}
		h.boards[boardID] = b
	}
	return b
}

// topic must be called with h.mu held.
func (b *board) topic(name string) *topicLog {
	t, ok := b.topics[name]
	if !ok {
		t = &topicLog{subs: make(map[*Conn]struct{})}
		b.topics[name] = t
	}
	return t
}

// detach removes every trace of c and announces its presence leave.
func (h *Hub) detach(c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	b, ok := h.boards[c.boardID]
	if !ok || b.conns[c.clientID] != c {
		return
	}
	delete(b.conns, c.clientID)
	for _, t := range b.topics {
		delete(t.subs, c)
	}
	if m, ok := b.members[c.clientID]; ok {
		delete(b.members, c.clientID)
		h.broadcastPresence(b, api.PresenceLeave, m)
	}
	h.logger.Debug("Client detached", "board_id", c.boardID, "client_id", c.clientID)
}

// attachedLocked must be called with h.mu held.
func (h *Hub) attachedLocked(c *Conn) bool {
	b, ok := h.boards[c.boardID]
	return ok && b.conns[c.clientID] == c
}

func validTopic(topic string) bool {
	return slices.Contains(events.Topics, topic)
}

// canPublish reports whether role may publish on topic. Viewers only move
// their cursor.
func canPublish(role models.Role, topic string) bool {
	return role.CanEdit() || topic == events.TopicCursors
}

func (h *Hub) subscribe(c *Conn, topic string) error {
	if !validTopic(topic) {
		return ErrUnknownTopic
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.attachedLocked(c) {
		return nil
	}
	h.board(c.boardID).topic(topic).subs[c] = struct{}{}
	return nil
}

func (h *Hub) unsubscribe(c *Conn, topic string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if b, ok := h.boards[c.boardID]; ok {
		if t, ok := b.topics[topic]; ok {
			delete(t.subs, c)
		}
	}
}

// publish appends a message to the topic log and delivers it to every
// subscriber except the publisher.
func (h *Hub) publish(c *Conn, topic, event string, data []byte) (api.Message, error) {
	if !validTopic(topic) {
		return api.Message{}, ErrUnknownTopic
	}
	if !canPublish(c.role, topic) {
		return api.Message{}, ErrReadOnly
	}

	h.mu.Lock()
	t := h.board(c.boardID).topic(topic)
	t.serial++
	msg := api.Message{
		ID:        uuid.NewString(),
		Serial:    t.serial,
		Topic:     topic,
		Event:     event,
		ClientID:  c.clientID,
		Data:      append([]byte(nil), data...),
		Timestamp: h.now(),
	}
	t.messages = append(t.messages, msg)
	if over := len(t.messages) - h.historyLimit; over > 0 {
		t.messages = append([]api.Message(nil), t.messages[over:]...)
	}

	// Отправка под блокировкой сохраняет порядок serial у всех получателей
	for sub := range t.subs {
		if sub == c {
			continue
		}
		sub.send(api.Frame{Type: api.FrameMessage, Message: &msg})
	}
	hook := h.onPublish
	h.mu.Unlock()

	if hook != nil {
		hook(c.boardID, msg)
	}
	return msg, nil
}

// history returns the newest limit messages of the topic.
func (h *Hub) history(c *Conn, topic string, limit int, direction string) ([]api.Message, error) {
	if !validTopic(topic) {
		return nil, ErrUnknownTopic
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	b, ok := h.boards[c.boardID]
	if !ok {
		return nil, nil
	}
	t, ok := b.topics[topic]
	if !ok {
		return nil, nil
	}
	from := 0
	if limit > 0 && len(t.messages) > limit {
		from = len(t.messages) - limit
	}
	out := slices.Clone(t.messages[from:])
	if direction == api.DirectionBackwards {
		slices.Reverse(out)
	}
	return out, nil
}

// DropHistory forgets the messages of every topic of the board. Serials keep
// counting so clients never see them go back.
func (h *Hub) DropHistory(boardID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if b, ok := h.boards[boardID]; ok {
		for _, t := range b.topics {
			t.messages = nil
		}
	}
}

// Serial returns the last serial assigned on a topic of the board.
func (h *Hub) Serial(boardID, topic string) uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	if b, ok := h.boards[boardID]; ok {
		if t, ok := b.topics[topic]; ok {
			return t.serial
		}
	}
	return 0
}

// setMember enters or updates the presence of c.
func (h *Hub) setMember(c *Conn, m api.Member) {
	m.ClientID = c.clientID

	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.attachedLocked(c) {
		return
	}
	b := h.board(c.boardID)
	action := api.PresenceUpdate
	if _, ok := b.members[c.clientID]; !ok {
		action = api.PresenceEnter
	}
	b.members[c.clientID] = m
	h.broadcastPresence(b, action, m)
}

func (h *Hub) leaveMember(c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	b, ok := h.boards[c.boardID]
	if !ok {
		return
	}
	if m, ok := b.members[c.clientID]; ok {
		delete(b.members, c.clientID)
		h.broadcastPresence(b, api.PresenceLeave, m)
	}
}

// members returns the presence set of the board ordered by client id.
func (h *Hub) members(boardID string) []api.Member {
	h.mu.Lock()
	defer h.mu.Unlock()
	b, ok := h.boards[boardID]
	if !ok {
		return nil
	}
	out := make([]api.Member, 0, len(b.members))
	for _, m := range b.members {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ClientID < out[j].ClientID })
	return out
}

// broadcastPresence must be called with h.mu held.
func (h *Hub) broadcastPresence(b *board, action string, m api.Member) {
	member := m
	for _, conn := range b.conns {
		conn.send(api.Frame{Type: api.FramePresence, Action: action, Member: &member})
	}
}

// Stats describes one open board.
type Stats struct {
	BoardID     string
	Connections int
	Members     int
}

// Stats returns the boards that have at least one connection.
func (h *Hub) Stats() []Stats {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []Stats
	for id, b := range h.boards {
		if len(b.conns) == 0 {
			continue
		}
		out = append(out, Stats{BoardID: id, Connections: len(b.conns), Members: len(b.members)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BoardID < out[j].BoardID })
	return out
}
