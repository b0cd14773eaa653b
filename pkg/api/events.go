// Package api описывает формат данных, которыми обмениваются клиенты доски
// и relay-сервер: полезные нагрузки событий, кадры WebSocket и REST DTO.
package api

import "encoding/json"

// Point точка штриха в world space
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// StrokePayload событие stroke-added
type StrokePayload struct {
	Points []Point `json:"points"`
	Erase  bool    `json:"erase"`
}

// HistoryControl payload событий undo, redo и clear
type HistoryControl struct {
	BoardID string `json:"boardId"`
}

// ObjectPatch payload события patched: идентификатор и частичное обновление
type ObjectPatch struct {
	ID    string          `json:"id"`
	Patch json.RawMessage `json:"patch"`
}

// ObjectRef payload события removed
type ObjectRef struct {
	ID string `json:"id"`
}

// Состояния курсора
const (
	CursorMove  = "move"
	CursorLeave = "leave"
)

// Cursor payload события cursor. Для state=leave координаты не передаются.
type Cursor struct {
	X        *float64 `json:"x,omitempty"`
	Y        *float64 `json:"y,omitempty"`
	ClientID string   `json:"clientId"`
	Name     string   `json:"name,omitempty"`
	Color    string   `json:"color,omitempty"`
	State    string   `json:"state"`
}

// BoardNotice payload событий топика board-events
type BoardNotice struct {
	BoardID string `json:"boardId"`
	Name    string `json:"name,omitempty"`
}
