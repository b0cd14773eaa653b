// Package events decodes channel payloads into closed sets of typed events,
// one set per topic. Decoding happens once at the channel boundary; consumers
// type-switch on the result.
package events

import (
	"errors"
	"fmt"
)

// Топики доски
const (
	TopicStrokes = "strokes"
	TopicNotes   = "notes"
	TopicShapes  = "shapes"
	TopicTexts   = "texts"
	TopicCursors = "cursors"
	TopicBoard   = "board-events"
)

// Topics lists every topic a board session subscribes to.
var Topics = []string{TopicStrokes, TopicNotes, TopicShapes, TopicTexts, TopicCursors, TopicBoard}

// Имена событий
const (
	EventStrokeAdded = "stroke-added"
	EventUndo        = "undo"
	EventRedo        = "redo"
	EventClear       = "clear"

	EventCreated = "created"
	EventPatched = "patched"
	EventRemoved = "removed"

	EventCursor = "cursor"

	EventBoardDeleted = "board-deleted"
	EventBoardRenamed = "board-renamed"
)

// ErrMalformedEvent is returned for payloads that cannot be decoded into a
// known event.
var ErrMalformedEvent = errors.New("malformed event")

func malformed(event, reason string) error {
	return fmt.Errorf("%w: %s: %s", ErrMalformedEvent, event, reason)
}

func malformedErr(event string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrMalformedEvent, event, err)
}
