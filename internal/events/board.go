package events

import (
	"encoding/json"
	"fmt"

	"github.com/iudanet/boardsync/pkg/api"
)

// BoardEvent is one of BoardDeleted, BoardRenamed.
type BoardEvent interface {
	boardEvent()
}

// BoardDeleted доска удалена владельцем
type BoardDeleted struct {
	BoardID string
}

// BoardRenamed доска переименована
type BoardRenamed struct {
	BoardID string
	Name    string
}

func (BoardDeleted) boardEvent() {}
func (BoardRenamed) boardEvent() {}

// DecodeBoard decodes a message from the board-events topic.
func DecodeBoard(event string, data []byte) (BoardEvent, error) {
	var p api.BoardNotice
	if len(data) > 0 {
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, malformedErr(event, err)
		}
	}
	switch event {
	case EventBoardDeleted:
		return BoardDeleted{BoardID: p.BoardID}, nil
	case EventBoardRenamed:
		if p.Name == "" {
			return nil, malformed(event, "missing name")
		}
		return BoardRenamed{BoardID: p.BoardID, Name: p.Name}, nil
	}
	return nil, malformed(event, "unknown board event")
}

// EncodeBoard returns the event name and payload for ev.
func EncodeBoard(ev BoardEvent) (string, []byte, error) {
	var (
		name    string
		payload api.BoardNotice
	)
	switch e := ev.(type) {
	case BoardDeleted:
		name, payload = EventBoardDeleted, api.BoardNotice{BoardID: e.BoardID}
	case BoardRenamed:
		name, payload = EventBoardRenamed, api.BoardNotice{BoardID: e.BoardID, Name: e.Name}
	default:
		return "", nil, fmt.Errorf("unsupported board event %T", ev)
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", nil, fmt.Errorf("failed to marshal %s: %w", name, err)
	}
	return name, data, nil
}
