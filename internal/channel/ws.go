package channel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sethvargo/go-retry"

	"github.com/iudanet/boardsync/pkg/api"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	writeWait  = 10 * time.Second
)

// WSConfig содержит параметры подключения к relay-серверу
type WSConfig struct {
	URL            string        // ws(s)://host/api/v1/boards/{board}/ws
	Token          string        // JWT access token
	ClientID       string        // пустой - будет сгенерирован сервером
	MinBackoff     time.Duration // начальная задержка переподключения
	MaxBackoff     time.Duration // максимальная задержка переподключения
	RequestTimeout time.Duration // ожидание ack для subscribe без контекста
}

func (c *WSConfig) setDefaults() {
	if c.MinBackoff <= 0 {
		c.MinBackoff = 200 * time.Millisecond
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 10 * time.Second
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 10 * time.Second
	}
}

// BoardSocketURL builds the relay WebSocket URL of a board from the server's
// HTTP base URL.
func BoardSocketURL(serverURL, boardID string) (string, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return "", fmt.Errorf("failed to parse server url: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported url scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/api/v1/boards/" + url.PathEscape(boardID) + "/ws"
	return u.String(), nil
}

// WS is a Channel backed by a WebSocket connection to the relay server. It
// reconnects with capped exponential backoff and restores subscriptions and
// presence membership after every reconnect. Handlers run on a single
// dispatch goroutine in arrival order.
type WS struct {
	ctx          context.Context
	logger       *slog.Logger
	conn         *websocket.Conn
	member       *Member
	subs         map[uint64]*busSub
	topicRefs    map[string]int
	presenceSubs map[uint64]*presenceSub
	listeners    map[uint64]func(State)
	pending      map[string]chan api.Frame
	cancel       context.CancelFunc
	inbox        []func() // без ограничения, readLoop никогда не ждет обработчики
	wake         chan struct{}
	done         chan struct{}
	dialer       *websocket.Dialer
	cfg          WSConfig
	clientID     string
	epoch        string
	nextID       uint64
	state        State
	mu           sync.Mutex
	writeMu      sync.Mutex
	inboxMu      sync.Mutex
}

var _ Channel = (*WS)(nil)

// DialWS connects to the relay. The first connection attempt must succeed;
// later drops are repaired in the background until Close.
func DialWS(ctx context.Context, cfg WSConfig, logger *slog.Logger) (*WS, error) {
	cfg.setDefaults()

	runCtx, cancel := context.WithCancel(context.Background())
	w := &WS{
		cfg:          cfg,
		logger:       logger,
		dialer:       &websocket.Dialer{HandshakeTimeout: 10 * time.Second, Proxy: http.ProxyFromEnvironment},
		ctx:          runCtx,
		cancel:       cancel,
		clientID:     cfg.ClientID,
		state:        StateConnecting,
		subs:         make(map[uint64]*busSub),
		topicRefs:    make(map[string]int),
		presenceSubs: make(map[uint64]*presenceSub),
		listeners:    make(map[uint64]func(State)),
		pending:      make(map[string]chan api.Frame),
		wake:         make(chan struct{}, 1),
		done:         make(chan struct{}),
	}

	conn, err := w.dial(ctx)
	if err != nil {
		cancel()
		return nil, err
	}
	w.attach(conn)

	go w.dispatch()
	go w.run(conn)
	return w, nil
}

func (w *WS) dial(ctx context.Context) (*websocket.Conn, error) {
	u, err := url.Parse(w.cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse url: %w", err)
	}
	if id := w.ClientID(); id != "" {
		q := u.Query()
		q.Set("client_id", id)
		u.RawQuery = q.Encode()
	}

	header := http.Header{}
	if w.cfg.Token != "" {
		header.Set("Authorization", "Bearer "+w.cfg.Token)
	}

	conn, resp, err := w.dialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return nil, fmt.Errorf("failed to connect: %w (status %d)", ErrForbidden, resp.StatusCode)
		}
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	// Первым кадром сервер сообщает назначенный client id
	var hello api.Frame
	_ = conn.SetReadDeadline(time.Now().Add(writeWait))
	if err := conn.ReadJSON(&hello); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to read hello: %w", err)
	}
	if hello.Type != api.FrameAck || hello.Member == nil {
		conn.Close()
		return nil, fmt.Errorf("unexpected hello frame %q", hello.Type)
	}
	w.mu.Lock()
	w.clientID = hello.Member.ClientID
	w.epoch = hello.Epoch
	w.mu.Unlock()
	_ = conn.SetReadDeadline(time.Time{})
	return conn, nil
}

// attach installs conn as the active connection and restores subscriptions
// and presence. Subscribe frames are written before the read loop starts;
// their acks are ignored.
func (w *WS) attach(conn *websocket.Conn) {
	w.mu.Lock()
	w.conn = conn
	w.state = StateConnected
	topics := make([]string, 0, len(w.topicRefs))
	for topic := range w.topicRefs {
		topics = append(topics, topic)
	}
	member := w.member
	w.mu.Unlock()

	sort.Strings(topics)
	for _, topic := range topics {
		if err := w.write(api.Frame{Type: api.FrameSubscribe, Topic: topic}); err != nil {
			w.logger.Warn("Failed to restore subscription", "topic", topic, "error", err)
		}
	}
	if member != nil {
		if err := w.write(api.Frame{Type: api.FramePresenceEnter, Member: toAPIMember(*member)}); err != nil {
			w.logger.Warn("Failed to restore presence", "error", err)
		}
	}
}

func (w *WS) run(conn *websocket.Conn) {
	defer close(w.done)

	for {
		w.emitState(StateConnected)
		err := w.readLoop(conn)

		w.detach(conn)
		if w.ctx.Err() != nil {
			return
		}
		w.logger.Warn("Relay connection lost", "error", err)
		w.emitState(StateDisconnected)

		conn, err = w.reconnect()
		if err != nil {
			return
		}
		w.attach(conn)
		w.logger.Info("Relay connection restored", "client_id", w.ClientID())
	}
}

func (w *WS) reconnect() (*websocket.Conn, error) {
	backoff := retry.NewExponential(w.cfg.MinBackoff)
	backoff = retry.WithCappedDuration(w.cfg.MaxBackoff, backoff)
	backoff = retry.WithJitterPercent(10, backoff)

	var conn *websocket.Conn
	err := retry.Do(w.ctx, backoff, func(ctx context.Context) error {
		c, err := w.dial(ctx)
		if err != nil {
			w.logger.Debug("Reconnect attempt failed", "error", err)
			return retry.RetryableError(err)
		}
		conn = c
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to reconnect: %w", err)
	}
	return conn, nil
}

// detach forgets conn and fails every in-flight request.
func (w *WS) detach(conn *websocket.Conn) {
	conn.Close()

	w.mu.Lock()
	if w.conn == conn {
		w.conn = nil
	}
	if w.state != StateClosed {
		w.state = StateDisconnected
	}
	pending := w.pending
	w.pending = make(map[string]chan api.Frame)
	w.mu.Unlock()

	for _, ch := range pending {
		ch <- api.Frame{Type: api.FrameError, Error: ErrDisconnected.Error()}
	}
}

func (w *WS) readLoop(conn *websocket.Conn) error {
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	stop := make(chan struct{})
	defer close(stop)
	go w.ping(conn, stop)

	for {
		var f api.Frame
		if err := conn.ReadJSON(&f); err != nil {
			return fmt.Errorf("failed to read frame: %w", err)
		}

		switch f.Type {
		case api.FrameMessage:
			if f.Message != nil {
				w.route(fromAPIMessage(*f.Message))
			}
		case api.FramePresence:
			if f.Member != nil {
				w.routePresence(PresenceEvent{Action: PresenceAction(f.Action), Member: fromAPIMember(*f.Member)})
			}
		default:
			w.resolve(f)
		}
	}
}

func (w *WS) ping(conn *websocket.Conn, stop <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			w.writeMu.Lock()
			err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
			w.writeMu.Unlock()
			if err != nil {
				return
			}
		case <-stop:
			return
		}
	}
}

func (w *WS) dispatch() {
	for {
		w.inboxMu.Lock()
		if len(w.inbox) == 0 {
			w.inboxMu.Unlock()
			select {
			case <-w.wake:
				continue
			case <-w.ctx.Done():
				return
			}
		}
		fn := w.inbox[0]
		w.inbox[0] = nil
		w.inbox = w.inbox[1:]
		w.inboxMu.Unlock()
		w.call(fn)
	}
}

func (w *WS) call(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("Handler panicked", "panic", fmt.Sprint(r))
		}
	}()
	fn()
}

// enqueue hands fn to the dispatch goroutine without blocking, so a handler
// waiting on a reply never stalls the read loop that delivers it.
func (w *WS) enqueue(fn func()) {
	if w.ctx.Err() != nil {
		return
	}
	w.inboxMu.Lock()
	w.inbox = append(w.inbox, fn)
	w.inboxMu.Unlock()
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

func (w *WS) route(msg Message) {
	w.mu.Lock()
	var handlers []Handler
	ids := make([]uint64, 0, len(w.subs))
	for id := range w.subs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		s := w.subs[id]
		if s.topic == msg.Topic && (s.event == "" || s.event == msg.Event) {
			handlers = append(handlers, s.h)
		}
	}
	w.mu.Unlock()

	if len(handlers) == 0 {
		return
	}
	w.enqueue(func() {
		for _, h := range handlers {
			w.call(func() { h(msg) })
		}
	})
}

func (w *WS) routePresence(ev PresenceEvent) {
	w.mu.Lock()
	var handlers []PresenceHandler
	for _, s := range w.presenceSubs {
		if s.action == "" || s.action == ev.Action {
			handlers = append(handlers, s.h)
		}
	}
	w.mu.Unlock()

	if len(handlers) == 0 {
		return
	}
	w.enqueue(func() {
		for _, h := range handlers {
			w.call(func() { h(ev) })
		}
	})
}

func (w *WS) emitState(st State) {
	w.mu.Lock()
	listeners := make([]func(State), 0, len(w.listeners))
	for _, fn := range w.listeners {
		listeners = append(listeners, fn)
	}
	w.mu.Unlock()

	if len(listeners) == 0 {
		return
	}
	w.enqueue(func() {
		for _, fn := range listeners {
			w.call(func() { fn(st) })
		}
	})
}

func (w *WS) resolve(f api.Frame) {
	if f.Ref == "" {
		if f.Type == api.FrameError {
			w.logger.Warn("Relay error", "error", f.Error, "code", f.Code)
		}
		return
	}
	w.mu.Lock()
	ch, ok := w.pending[f.Ref]
	delete(w.pending, f.Ref)
	w.mu.Unlock()
	if ok {
		ch <- f
	}
}

func (w *WS) write(f api.Frame) error {
	w.mu.Lock()
	conn := w.conn
	w.mu.Unlock()
	if conn == nil {
		return ErrDisconnected
	}

	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(f); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}
	return nil
}

// request sends f and waits for the frame answering its ref.
func (w *WS) request(ctx context.Context, f api.Frame) (api.Frame, error) {
	w.mu.Lock()
	switch w.state {
	case StateClosed:
		w.mu.Unlock()
		return api.Frame{}, ErrClosed
	case StateConnected:
	default:
		w.mu.Unlock()
		return api.Frame{}, ErrDisconnected
	}
	w.nextID++
	f.Ref = strconv.FormatUint(w.nextID, 10)
	ch := make(chan api.Frame, 1)
	w.pending[f.Ref] = ch
	w.mu.Unlock()

	if err := w.write(f); err != nil {
		w.mu.Lock()
		delete(w.pending, f.Ref)
		w.mu.Unlock()
		return api.Frame{}, err
	}

	select {
	case resp := <-ch:
		if resp.Type == api.FrameError {
			return resp, frameError(resp)
		}
		return resp, nil
	case <-ctx.Done():
		w.mu.Lock()
		delete(w.pending, f.Ref)
		w.mu.Unlock()
		return api.Frame{}, ctx.Err()
	case <-w.ctx.Done():
		return api.Frame{}, ErrClosed
	}
}

func frameError(f api.Frame) error {
	switch {
	case f.Code == http.StatusForbidden || f.Code == http.StatusUnauthorized:
		return fmt.Errorf("%w: %s", ErrForbidden, f.Error)
	case f.Code == http.StatusBadRequest:
		return fmt.Errorf("%w: %s", ErrInvalidTopic, f.Error)
	case f.Error == ErrDisconnected.Error():
		return ErrDisconnected
	}
	return errors.New(f.Error)
}

func (w *WS) Publish(ctx context.Context, topic, event string, data []byte) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	_, err := w.request(ctx, api.Frame{Type: api.FramePublish, Topic: topic, Event: event, Data: data})
	if err != nil {
		return fmt.Errorf("failed to publish %s/%s: %w", topic, event, err)
	}
	return nil
}

func (w *WS) Subscribe(topic, event string, h Handler) (Subscription, error) {
	if topic == "" {
		return nil, ErrInvalidTopic
	}

	w.mu.Lock()
	if w.state == StateClosed {
		w.mu.Unlock()
		return nil, ErrClosed
	}
	w.nextID++
	id := w.nextID
	w.subs[id] = &busSub{topic: topic, event: event, h: h}
	w.topicRefs[topic]++
	first := w.topicRefs[topic] == 1
	w.mu.Unlock()

	sub := newSubscription(func() { w.unsubscribe(id, topic) })

	if first {
		ctx, cancel := context.WithTimeout(w.ctx, w.cfg.RequestTimeout)
		defer cancel()
		_, err := w.request(ctx, api.Frame{Type: api.FrameSubscribe, Topic: topic})
		switch {
		case errors.Is(err, ErrDisconnected):
			// Подписка будет восстановлена после переподключения
		case err != nil:
			sub.Unsubscribe()
			return nil, fmt.Errorf("failed to subscribe to %s: %w", topic, err)
		}
	}
	return sub, nil
}

func (w *WS) unsubscribe(id uint64, topic string) {
	w.mu.Lock()
	delete(w.subs, id)
	w.topicRefs[topic]--
	last := w.topicRefs[topic] <= 0
	if last {
		delete(w.topicRefs, topic)
	}
	w.mu.Unlock()

	if last {
		if err := w.write(api.Frame{Type: api.FrameUnsubscribe, Topic: topic}); err != nil && !errors.Is(err, ErrDisconnected) {
			w.logger.Debug("Failed to send unsubscribe", "topic", topic, "error", err)
		}
	}
}

func (w *WS) History(ctx context.Context, topic string, opts HistoryOptions) ([]Message, error) {
	resp, err := w.request(ctx, api.Frame{
		Type:      api.FrameHistory,
		Topic:     topic,
		Limit:     opts.Limit,
		Direction: string(opts.Direction),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get history of %s: %w", topic, err)
	}
	if resp.Epoch != "" {
		w.mu.Lock()
		w.epoch = resp.Epoch
		w.mu.Unlock()
	}
	out := make([]Message, 0, len(resp.Messages))
	for _, m := range resp.Messages {
		out = append(out, fromAPIMessage(m))
	}
	return out, nil
}

func (w *WS) Presence() Presence {
	return wsPresence{w: w}
}

func (w *WS) OnStateChange(fn func(State)) Subscription {
	w.mu.Lock()
	w.nextID++
	id := w.nextID
	w.listeners[id] = fn
	w.mu.Unlock()

	return newSubscription(func() {
		w.mu.Lock()
		delete(w.listeners, id)
		w.mu.Unlock()
	})
}

func (w *WS) ClientID() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.clientID
}

func (w *WS) Epoch() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.epoch
}

// State returns the current connection state.
func (w *WS) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

func (w *WS) Close() error {
	w.mu.Lock()
	if w.state == StateClosed {
		w.mu.Unlock()
		return nil
	}
	w.state = StateClosed
	conn := w.conn
	listeners := make([]func(State), 0, len(w.listeners))
	for _, fn := range w.listeners {
		listeners = append(listeners, fn)
	}
	w.mu.Unlock()

	w.cancel()
	if conn != nil {
		w.writeMu.Lock()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
		w.writeMu.Unlock()
		conn.Close()
	}
	<-w.done

	for _, fn := range listeners {
		w.call(func() { fn(StateClosed) })
	}
	return nil
}

type wsPresence struct {
	w *WS
}

func (p wsPresence) Enter(ctx context.Context, m Member) error {
	return p.set(ctx, api.FramePresenceEnter, m)
}

func (p wsPresence) Update(ctx context.Context, m Member) error {
	return p.set(ctx, api.FramePresenceUpdate, m)
}

func (p wsPresence) set(ctx context.Context, t api.FrameType, m Member) error {
	m.ClientID = p.w.ClientID()
	if _, err := p.w.request(ctx, api.Frame{Type: t, Member: toAPIMember(m)}); err != nil {
		return fmt.Errorf("failed to %s presence: %w", strings.TrimPrefix(string(t), "presence."), err)
	}
	p.w.mu.Lock()
	p.w.member = &m
	p.w.mu.Unlock()
	return nil
}

func (p wsPresence) Leave(ctx context.Context) error {
	p.w.mu.Lock()
	p.w.member = nil
	p.w.mu.Unlock()

	if _, err := p.w.request(ctx, api.Frame{Type: api.FramePresenceLeave}); err != nil {
		return fmt.Errorf("failed to leave presence: %w", err)
	}
	return nil
}

func (p wsPresence) Get(ctx context.Context) ([]Member, error) {
	resp, err := p.w.request(ctx, api.Frame{Type: api.FramePresenceGet})
	if err != nil {
		return nil, fmt.Errorf("failed to get presence: %w", err)
	}
	out := make([]Member, 0, len(resp.Members))
	for _, m := range resp.Members {
		out = append(out, fromAPIMember(m))
	}
	return out, nil
}

func (p wsPresence) Subscribe(action PresenceAction, h PresenceHandler) (Subscription, error) {
	w := p.w
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state == StateClosed {
		return nil, ErrClosed
	}
	w.nextID++
	id := w.nextID
	w.presenceSubs[id] = &presenceSub{action: action, h: h}

	return newSubscription(func() {
		w.mu.Lock()
		delete(w.presenceSubs, id)
		w.mu.Unlock()
	}), nil
}

func fromAPIMessage(m api.Message) Message {
	return Message{
		ID:        m.ID,
		Serial:    m.Serial,
		Topic:     m.Topic,
		Event:     m.Event,
		ClientID:  m.ClientID,
		Data:      []byte(m.Data),
		Timestamp: m.Timestamp,
	}
}

func toAPIMember(m Member) *api.Member {
	return &api.Member{ClientID: m.ClientID, Name: m.Name, Color: m.Color}
}

func fromAPIMember(m api.Member) Member {
	return Member{ClientID: m.ClientID, Name: m.Name, Color: m.Color}
}
