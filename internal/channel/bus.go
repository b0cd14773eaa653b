package channel

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultHistoryLimit сколько сообщений топика хранится для History
const DefaultHistoryLimit = 500

// Bus is an in-process relay for one board. Each participant obtains its own
// Channel with Connect.
//
// Delivery is synchronous and globally ordered: the goroutine that publishes
// onto an idle bus delivers every queued message before Publish returns.
// Messages published from inside a handler are queued and delivered after the
// current handler returns, so handlers may publish without deadlocking.
type Bus struct {
	logger       *slog.Logger
	topics       map[string]*topicLog
	subs         map[uint64]*busSub
	presenceSubs map[uint64]*presenceSub
	members      map[string]Member
	clients      map[string]*Local
	queue        []func()
	epoch        string
	historyLimit int
	nextID       uint64
	mu           sync.Mutex
	dispatching  bool
}

type topicLog struct {
	messages []Message
	serial   uint64
}

type busSub struct {
	client *Local
	h      Handler
	topic  string
	event  string
}

type presenceSub struct {
	client *Local
	h      PresenceHandler
	action PresenceAction
}

// NewBus creates an empty in-process relay. historyLimit <= 0 selects
// DefaultHistoryLimit.
func NewBus(logger *slog.Logger, historyLimit int) *Bus {
	if historyLimit <= 0 {
		historyLimit = DefaultHistoryLimit
	}
	return &Bus{
		logger:       logger,
		topics:       make(map[string]*topicLog),
		subs:         make(map[uint64]*busSub),
		presenceSubs: make(map[uint64]*presenceSub),
		members:      make(map[string]Member),
		clients:      make(map[string]*Local),
		epoch:        uuid.NewString(),
		historyLimit: historyLimit,
	}
}

// Epoch returns the id of this bus instance. A new bus over the same
// persisted board starts a new epoch.
func (b *Bus) Epoch() string {
	return b.epoch
}

// Connect returns a connected Channel publishing as clientID. An empty
// clientID gets a random one.
func (b *Bus) Connect(clientID string) *Local {
	if clientID == "" {
		clientID = uuid.NewString()
	}
	l := &Local{
		bus:       b,
		clientID:  clientID,
		connected: true,
		listeners: make(map[uint64]func(State)),
	}

	b.mu.Lock()
	b.clients[clientID] = l
	b.mu.Unlock()
	return l
}

// Serial returns the last serial assigned on topic.
func (b *Bus) Serial(topic string) uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if t, ok := b.topics[topic]; ok {
		return t.serial
	}
	return 0
}

func (b *Bus) publish(from *Local, topic, event string, data []byte) error {
	if topic == "" {
		return ErrInvalidTopic
	}

	b.mu.Lock()
	if from.closed {
		b.mu.Unlock()
		return ErrClosed
	}
	if !from.connected {
		b.mu.Unlock()
		return ErrDisconnected
	}

	log, ok := b.topics[topic]
	if !ok {
		log = &topicLog{}
		b.topics[topic] = log
	}
	log.serial++

	payload := make([]byte, len(data))
	copy(payload, data)
	msg := Message{
		ID:        uuid.NewString(),
		Serial:    log.serial,
		Topic:     topic,
		Event:     event,
		ClientID:  from.clientID,
		Data:      payload,
		Timestamp: time.Now().UTC(),
	}

	log.messages = append(log.messages, msg)
	if over := len(log.messages) - b.historyLimit; over > 0 {
		log.messages = append([]Message(nil), log.messages[over:]...)
	}

	// Получатели определяются в момент публикации, активность подписки
	// перепроверяется в момент доставки
	var targets []uint64
	for id, s := range b.subs {
		if s.topic != topic || s.client == from {
			continue
		}
		if s.event != "" && s.event != event {
			continue
		}
		targets = append(targets, id)
	}
	sort.Slice(targets, func(i, j int) bool { return targets[i] < targets[j] })

	b.queue = append(b.queue, func() { b.deliver(targets, msg) })
	b.mu.Unlock()

	b.drain()
	return nil
}

func (b *Bus) deliver(targets []uint64, msg Message) {
	for _, id := range targets {
		b.mu.Lock()
		s, ok := b.subs[id]
		active := ok && s.client.connected && !s.client.closed
		b.mu.Unlock()
		if !active {
			continue
		}
		b.call(func() { s.h(msg) })
	}
}

func (b *Bus) broadcastPresence(ev PresenceEvent) {
	var targets []uint64
	for id, s := range b.presenceSubs {
		if s.action == "" || s.action == ev.Action {
			targets = append(targets, id)
		}
	}
	sort.Slice(targets, func(i, j int) bool { return targets[i] < targets[j] })

	b.queue = append(b.queue, func() {
		for _, id := range targets {
			b.mu.Lock()
			s, ok := b.presenceSubs[id]
			active := ok && s.client.connected && !s.client.closed
			b.mu.Unlock()
			if active {
				b.call(func() { s.h(ev) })
			}
		}
	})
}

func (b *Bus) emitState(l *Local, st State) {
	listeners := make([]func(State), 0, len(l.listeners))
	ids := make([]uint64, 0, len(l.listeners))
	for id := range l.listeners {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		listeners = append(listeners, l.listeners[id])
	}

	b.queue = append(b.queue, func() {
		for _, fn := range listeners {
			b.call(func() { fn(st) })
		}
	})
}

// drain runs queued deliveries unless another goroutine already does.
func (b *Bus) drain() {
	b.mu.Lock()
	if b.dispatching {
		b.mu.Unlock()
		return
	}
	b.dispatching = true
	for len(b.queue) > 0 {
		next := b.queue[0]
		b.queue = b.queue[1:]
		b.mu.Unlock()
		next()
		b.mu.Lock()
	}
	b.dispatching = false
	b.mu.Unlock()
}

func (b *Bus) call(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Handler panicked", "panic", fmt.Sprint(r))
		}
	}()
	fn()
}

func (b *Bus) history(topic string, opts HistoryOptions) []Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	log, ok := b.topics[topic]
	if !ok {
		return nil
	}
	return selectHistory(log.messages, opts)
}

// selectHistory picks the newest opts.Limit messages and orders them by
// opts.Direction.
func selectHistory(messages []Message, opts HistoryOptions) []Message {
	from := 0
	if opts.Limit > 0 && len(messages) > opts.Limit {
		from = len(messages) - opts.Limit
	}
	out := make([]Message, len(messages)-from)
	copy(out, messages[from:])
	if opts.Direction == Backwards {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	return out
}

// Local is one participant's connection to a Bus.
type Local struct {
	bus       *Bus
	listeners map[uint64]func(State)
	clientID  string
	connected bool
	closed    bool
}

var _ Channel = (*Local)(nil)

func (l *Local) Publish(_ context.Context, topic, event string, data []byte) error {
	return l.bus.publish(l, topic, event, data)
}

func (l *Local) Subscribe(topic, event string, h Handler) (Subscription, error) {
	if topic == "" {
		return nil, ErrInvalidTopic
	}
	b := l.bus
	b.mu.Lock()
	defer b.mu.Unlock()
	if l.closed {
		return nil, ErrClosed
	}
	b.nextID++
	id := b.nextID
	b.subs[id] = &busSub{client: l, topic: topic, event: event, h: h}

	return newSubscription(func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}), nil
}

func (l *Local) History(_ context.Context, topic string, opts HistoryOptions) ([]Message, error) {
	l.bus.mu.Lock()
	closed := l.closed
	l.bus.mu.Unlock()
	if closed {
		return nil, ErrClosed
	}
	return l.bus.history(topic, opts), nil
}

func (l *Local) Presence() Presence {
	return localPresence{l: l}
}

func (l *Local) OnStateChange(fn func(State)) Subscription {
	b := l.bus
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	l.listeners[id] = fn
	b.mu.Unlock()

	return newSubscription(func() {
		b.mu.Lock()
		delete(l.listeners, id)
		b.mu.Unlock()
	})
}

func (l *Local) ClientID() string {
	return l.clientID
}

func (l *Local) Epoch() string {
	return l.bus.epoch
}

// Disconnect simulates a dropped connection: messages published meanwhile are
// not delivered to l and its presence membership is lost.
func (l *Local) Disconnect() {
	b := l.bus
	b.mu.Lock()
	if l.closed || !l.connected {
		b.mu.Unlock()
		return
	}
	l.connected = false
	l.dropMember()
	b.emitState(l, StateDisconnected)
	b.mu.Unlock()
	b.drain()
}

// Reconnect restores a connection dropped with Disconnect.
func (l *Local) Reconnect() {
	b := l.bus
	b.mu.Lock()
	if l.closed || l.connected {
		b.mu.Unlock()
		return
	}
	l.connected = true
	b.emitState(l, StateConnected)
	b.mu.Unlock()
	b.drain()
}

func (l *Local) Close() error {
	b := l.bus
	b.mu.Lock()
	if l.closed {
		b.mu.Unlock()
		return nil
	}
	for id, s := range b.subs {
		if s.client == l {
			delete(b.subs, id)
		}
	}
	for id, s := range b.presenceSubs {
		if s.client == l {
			delete(b.presenceSubs, id)
		}
	}
	l.dropMember()
	b.emitState(l, StateClosed)
	l.closed = true
	delete(b.clients, l.clientID)
	b.mu.Unlock()

	b.drain()
	return nil
}

// dropMember must be called with bus.mu held.
func (l *Local) dropMember() {
	if m, ok := l.bus.members[l.clientID]; ok {
		delete(l.bus.members, l.clientID)
		l.bus.broadcastPresence(PresenceEvent{Action: PresenceLeave, Member: m})
	}
}

type localPresence struct {
	l *Local
}

func (p localPresence) Enter(_ context.Context, m Member) error {
	return p.set(m, PresenceEnter)
}

func (p localPresence) Update(_ context.Context, m Member) error {
	return p.set(m, PresenceUpdate)
}

func (p localPresence) set(m Member, action PresenceAction) error {
	b := p.l.bus
	b.mu.Lock()
	if err := p.l.usable(); err != nil {
		b.mu.Unlock()
		return err
	}
	m.ClientID = p.l.clientID
	if _, ok := b.members[m.ClientID]; !ok {
		action = PresenceEnter
	} else if action == PresenceEnter {
		action = PresenceUpdate
	}
	b.members[m.ClientID] = m
	b.broadcastPresence(PresenceEvent{Action: action, Member: m})
	b.mu.Unlock()

	b.drain()
	return nil
}

func (p localPresence) Leave(_ context.Context) error {
	b := p.l.bus
	b.mu.Lock()
	if err := p.l.usable(); err != nil {
		b.mu.Unlock()
		return err
	}
	p.l.dropMember()
	b.mu.Unlock()

	b.drain()
	return nil
}

func (p localPresence) Get(_ context.Context) ([]Member, error) {
	b := p.l.bus
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := p.l.usable(); err != nil {
		return nil, err
	}
	members := make([]Member, 0, len(b.members))
	for _, m := range b.members {
		members = append(members, m)
	}
	sort.Slice(members, func(i, j int) bool { return members[i].ClientID < members[j].ClientID })
	return members, nil
}

func (p localPresence) Subscribe(action PresenceAction, h PresenceHandler) (Subscription, error) {
	b := p.l.bus
	b.mu.Lock()
	defer b.mu.Unlock()
	if p.l.closed {
		return nil, ErrClosed
	}
	b.nextID++
	id := b.nextID
	b.presenceSubs[id] = &presenceSub{client: p.l, action: action, h: h}

	return newSubscription(func() {
		b.mu.Lock()
		delete(b.presenceSubs, id)
		b.mu.Unlock()
	}), nil
}

// usable must be called with bus.mu held.
func (l *Local) usable() error {
	if l.closed {
		return ErrClosed
	}
	if !l.connected {
		return ErrDisconnected
	}
	return nil
}
