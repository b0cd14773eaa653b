package api

import (
	"encoding/json"
	"time"
)

// FrameType тип кадра WebSocket протокола relay-сервера
type FrameType string

// Кадры от клиента
const (
	FrameSubscribe      FrameType = "subscribe"
	FrameUnsubscribe    FrameType = "unsubscribe"
	FramePublish        FrameType = "publish"
	FrameHistory        FrameType = "history"
	FramePresenceEnter  FrameType = "presence.enter"
	FramePresenceUpdate FrameType = "presence.update"
	FramePresenceLeave  FrameType = "presence.leave"
	FramePresenceGet    FrameType = "presence.get"
)

// Кадры от сервера
const (
	FrameMessage         FrameType = "message"
	FramePresence        FrameType = "presence"
	FramePresenceMembers FrameType = "presence.members"
	FrameAck             FrameType = "ack"
	FrameError           FrameType = "error"
)

// Направления чтения истории
const (
	DirectionForwards  = "forwards"
	DirectionBackwards = "backwards"
)

// Действия присутствия
const (
	PresenceEnter  = "enter"
	PresenceUpdate = "update"
	PresenceLeave  = "leave"
)

// Message одно событие топика в том виде, в каком его разослал relay
type Message struct {
	Timestamp time.Time       `json:"timestamp"`
	ID        string          `json:"id"`
	Topic     string          `json:"topic"`
	Event     string          `json:"event"`
	ClientID  string          `json:"clientId"`
	Data      json.RawMessage `json:"data,omitempty"`
	Serial    uint64          `json:"serial"`
}

// Member участник доски в списке присутствия
type Member struct {
	ClientID string `json:"clientId"`
	Name     string `json:"name"`
	Color    string `json:"color,omitempty"`
}

// Frame единый конверт для всех кадров протокола.
// Заполняются только поля, относящиеся к Type.
type Frame struct {
	Type      FrameType       `json:"type"`
	Ref       string          `json:"ref,omitempty"`
	Topic     string          `json:"topic,omitempty"`
	Event     string          `json:"event,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Direction string          `json:"direction,omitempty"`
	Action    string          `json:"action,omitempty"`
	Error     string          `json:"error,omitempty"`
	Epoch     string          `json:"epoch,omitempty"`
	Message   *Message        `json:"message,omitempty"`
	Member    *Member         `json:"member,omitempty"`
	Messages  []Message       `json:"messages,omitempty"`
	Members   []Member        `json:"members,omitempty"`
	Limit     int             `json:"limit,omitempty"`
	Code      int             `json:"code,omitempty"`
}
