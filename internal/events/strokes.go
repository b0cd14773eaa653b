package events

import (
	"encoding/json"
	"fmt"

	"github.com/iudanet/boardsync/internal/models"
	"github.com/iudanet/boardsync/pkg/api"
)

// StrokeEvent is one of StrokeAdded, UndoRequested, RedoRequested, Cleared.
type StrokeEvent interface {
	strokeEvent()
}

// StrokeAdded штрих добавлен в общую историю
type StrokeAdded struct {
	Stroke models.Stroke
}

// UndoRequested отмена последнего штриха
type UndoRequested struct {
	BoardID string
}

// RedoRequested повтор последнего отмененного штриха
type RedoRequested struct {
	BoardID string
}

// Cleared доска очищена
type Cleared struct {
	BoardID string
}

func (StrokeAdded) strokeEvent()   {}
func (UndoRequested) strokeEvent() {}
func (RedoRequested) strokeEvent() {}
func (Cleared) strokeEvent()       {}

// DecodeStroke decodes a message from the strokes topic.
func DecodeStroke(event string, data []byte) (StrokeEvent, error) {
	switch event {
	case EventStrokeAdded:
		var p api.StrokePayload
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, malformedErr(event, err)
		}
		stroke := strokeFromPayload(p)
		if err := stroke.Validate(); err != nil {
			return nil, malformedErr(event, err)
		}
		return StrokeAdded{Stroke: stroke}, nil

	case EventUndo, EventRedo, EventClear:
		var p api.HistoryControl
		// Пустое тело допустимо: boardId носит информационный характер
		if len(data) > 0 {
			if err := json.Unmarshal(data, &p); err != nil {
				return nil, malformedErr(event, err)
			}
		}
		switch event {
		case EventUndo:
			return UndoRequested{BoardID: p.BoardID}, nil
		case EventRedo:
			return RedoRequested{BoardID: p.BoardID}, nil
		default:
			return Cleared{BoardID: p.BoardID}, nil
		}
	}
	return nil, malformed(event, "unknown stroke event")
}

// EncodeStroke returns the event name and payload for ev.
func EncodeStroke(ev StrokeEvent) (string, []byte, error) {
	var (
		name    string
		payload any
	)
	switch e := ev.(type) {
	case StrokeAdded:
		name, payload = EventStrokeAdded, strokeToPayload(e.Stroke)
	case UndoRequested:
		name, payload = EventUndo, api.HistoryControl{BoardID: e.BoardID}
	case RedoRequested:
		name, payload = EventRedo, api.HistoryControl{BoardID: e.BoardID}
	case Cleared:
		name, payload = EventClear, api.HistoryControl{BoardID: e.BoardID}
	default:
		return "", nil, fmt.Errorf("unsupported stroke event %T", ev)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return "", nil, fmt.Errorf("failed to marshal %s: %w", name, err)
	}
	return name, data, nil
}

func strokeFromPayload(p api.StrokePayload) models.Stroke {
	points := make([]models.Point, len(p.Points))
	for i, pt := range p.Points {
		points[i] = models.Point{X: pt.X, Y: pt.Y}
	}
	return models.Stroke{Points: points, Erase: p.Erase}
}

func strokeToPayload(s models.Stroke) api.StrokePayload {
	points := make([]api.Point, len(s.Points))
	for i, pt := range s.Points {
		points[i] = api.Point{X: pt.X, Y: pt.Y}
	}
	return api.StrokePayload{Points: points, Erase: s.Erase}
}
