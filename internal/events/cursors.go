package events

import (
	"encoding/json"
	"fmt"

	"github.com/iudanet/boardsync/internal/models"
	"github.com/iudanet/boardsync/pkg/api"
)

// CursorEvent is one of CursorMoved, CursorLeft.
type CursorEvent interface {
	cursorEvent()
}

// CursorMoved курсор участника в world space
type CursorMoved struct {
	ClientID string
	Name     string
	Color    string
	Position models.Point
}

// CursorLeft курсор участника покинул холст
type CursorLeft struct {
	ClientID string
}

func (CursorMoved) cursorEvent() {}
func (CursorLeft) cursorEvent()  {}

// DecodeCursor decodes a message from the cursors topic.
func DecodeCursor(event string, data []byte) (CursorEvent, error) {
	if event != EventCursor {
		return nil, malformed(event, "unknown cursor event")
	}
	var p api.Cursor
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, malformedErr(event, err)
	}
	if p.ClientID == "" {
		return nil, malformed(event, "missing clientId")
	}

	switch p.State {
	case api.CursorMove:
		if p.X == nil || p.Y == nil {
			return nil, malformed(event, "move without position")
		}
		pos := models.Point{X: *p.X, Y: *p.Y}
		if !pos.IsFinite() {
			return nil, malformed(event, "position is not finite")
		}
		return CursorMoved{ClientID: p.ClientID, Name: p.Name, Color: p.Color, Position: pos}, nil
	case api.CursorLeave:
		return CursorLeft{ClientID: p.ClientID}, nil
	}
	return nil, malformed(event, "unknown cursor state "+p.State)
}

// EncodeCursor returns the event name and payload for ev.
func EncodeCursor(ev CursorEvent) (string, []byte, error) {
	var payload api.Cursor
	switch e := ev.(type) {
	case CursorMoved:
		x, y := e.Position.X, e.Position.Y
		payload = api.Cursor{ClientID: e.ClientID, Name: e.Name, Color: e.Color, X: &x, Y: &y, State: api.CursorMove}
	case CursorLeft:
		payload = api.Cursor{ClientID: e.ClientID, State: api.CursorLeave}
	default:
		return "", nil, fmt.Errorf("unsupported cursor event %T", ev)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return "", nil, fmt.Errorf("failed to marshal cursor: %w", err)
	}
	return EventCursor, data, nil
}
