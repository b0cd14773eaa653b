// Package channel defines the realtime pub/sub contract the board engine
// talks to, plus two implementations: an in-process Bus for tests and
// single-process use, and a WebSocket client of the relay server.
package channel

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	// ErrClosed канал закрыт
	ErrClosed = errors.New("channel closed")
	// ErrDisconnected соединение с relay временно отсутствует
	ErrDisconnected = errors.New("channel disconnected")
	// ErrForbidden relay отклонил операцию из-за недостатка прав
	ErrForbidden = errors.New("operation not permitted")
	// ErrInvalidTopic пустой или неизвестный топик
	ErrInvalidTopic = errors.New("invalid topic")
)

// Message is one event on a topic. Serial is assigned by the relay and is
// strictly increasing without gaps within a topic.
type Message struct {
	Timestamp time.Time
	ID        string
	Topic     string
	Event     string
	ClientID  string
	Data      []byte
	Serial    uint64
}

// Handler receives messages in per-topic publish order.
type Handler func(Message)

// Subscription is released with Unsubscribe. Unsubscribe is idempotent.
type Subscription interface {
	Unsubscribe()
}

// Direction порядок чтения истории
type Direction string

// Direction константы
const (
	Forwards  Direction = "forwards"
	Backwards Direction = "backwards"
)

// HistoryOptions задает параметры чтения истории топика.
// Limit <= 0 означает всю доступную историю.
type HistoryOptions struct {
	Direction Direction
	Limit     int
}

// State состояние соединения канала
type State int

// State константы
const (
	StateConnecting State = iota
	StateConnected
	StateDisconnected
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// Member участник в списке присутствия доски
type Member struct {
	ClientID string
	Name     string
	Color    string
}

// PresenceAction тип изменения присутствия
type PresenceAction string

// PresenceAction константы. Пустое значение при подписке означает все действия.
const (
	PresenceEnter  PresenceAction = "enter"
	PresenceUpdate PresenceAction = "update"
	PresenceLeave  PresenceAction = "leave"
)

// PresenceEvent изменение присутствия участника
type PresenceEvent struct {
	Action PresenceAction
	Member Member
}

// PresenceHandler receives presence changes.
type PresenceHandler func(PresenceEvent)

//go:generate moq -out channel_mock.go . Channel Presence

// Channel is an ordered, at-least-once pub/sub connection scoped to one board.
// Messages published by this client are not echoed back to it.
type Channel interface {
	// Publish sends an event to every other subscriber of topic.
	Publish(ctx context.Context, topic, event string, data []byte) error

	// Subscribe registers h for topic. An empty event receives every event.
	Subscribe(topic, event string, h Handler) (Subscription, error)

	// History returns retained messages of topic.
	History(ctx context.Context, topic string, opts HistoryOptions) ([]Message, error)

	// Presence returns the membership API of the board.
	Presence() Presence

	// OnStateChange registers a connection state listener.
	OnStateChange(fn func(State)) Subscription

	// ClientID returns the identifier this connection publishes under.
	ClientID() string

	// Epoch identifies the relay lifetime serials belong to. Serials start
	// over from 1 whenever the epoch changes.
	Epoch() string

	Close() error
}

// Presence is the membership roster of the board.
type Presence interface {
	Enter(ctx context.Context, m Member) error
	Update(ctx context.Context, m Member) error
	Leave(ctx context.Context) error
	Get(ctx context.Context) ([]Member, error)
	Subscribe(action PresenceAction, h PresenceHandler) (Subscription, error)
}

// subscriptionFunc adapts a function to Subscription and makes it idempotent.
type subscriptionFunc struct {
	fn   func()
	once sync.Once
}

func newSubscription(fn func()) *subscriptionFunc {
	return &subscriptionFunc{fn: fn}
}

func (s *subscriptionFunc) Unsubscribe() {
	s.once.Do(s.fn)
}
