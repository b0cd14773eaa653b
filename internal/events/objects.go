package events

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/iudanet/boardsync/pkg/api"
)

// Identified is implemented by every synchronized object type.
type Identified interface {
	ObjectID() string
}

// ObjectEvent is one of ObjectCreated, ObjectPatched, ObjectRemoved for the
// object type T with patch type P.
type ObjectEvent[T Identified, P any] interface {
	objectEvent(T, P)
}

// ObjectCreated объект создан, несет полное значение
type ObjectCreated[T Identified, P any] struct {
	Object T
}

// ObjectPatched частичное обновление объекта
type ObjectPatched[T Identified, P any] struct {
	ID    string
	Patch P
}

// ObjectRemoved объект удален
type ObjectRemoved[T Identified, P any] struct {
	ID string
}

func (ObjectCreated[T, P]) objectEvent(T, P) {}
func (ObjectPatched[T, P]) objectEvent(T, P) {}
func (ObjectRemoved[T, P]) objectEvent(T, P) {}

// DecodeObject decodes a message from an object topic (notes, shapes, texts).
func DecodeObject[T Identified, P any](event string, data []byte) (ObjectEvent[T, P], error) {
	switch event {
	case EventCreated:
		var obj T
		if err := json.Unmarshal(data, &obj); err != nil {
			return nil, malformedErr(event, err)
		}
		if obj.ObjectID() == "" {
			return nil, malformed(event, "missing id")
		}
		return ObjectCreated[T, P]{Object: obj}, nil

	case EventPatched:
		var wire api.ObjectPatch
		if err := json.Unmarshal(data, &wire); err != nil {
			return nil, malformedErr(event, err)
		}
		if wire.ID == "" {
			return nil, malformed(event, "missing id")
		}
		if len(wire.Patch) == 0 || bytes.Equal(wire.Patch, []byte("null")) {
			return nil, malformed(event, "missing patch")
		}
		var patch P
		if err := json.Unmarshal(wire.Patch, &patch); err != nil {
			return nil, malformedErr(event, err)
		}
		return ObjectPatched[T, P]{ID: wire.ID, Patch: patch}, nil

	case EventRemoved:
		var ref api.ObjectRef
		if err := json.Unmarshal(data, &ref); err != nil {
			return nil, malformedErr(event, err)
		}
		if ref.ID == "" {
			return nil, malformed(event, "missing id")
		}
		return ObjectRemoved[T, P]{ID: ref.ID}, nil
	}
	return nil, malformed(event, "unknown object event")
}

// EncodeObject returns the event name and payload for ev.
func EncodeObject[T Identified, P any](ev ObjectEvent[T, P]) (string, []byte, error) {
	var (
		name    string
		payload any
	)
	switch e := ev.(type) {
	case ObjectCreated[T, P]:
		name, payload = EventCreated, e.Object
	case ObjectPatched[T, P]:
		patch, err := json.Marshal(e.Patch)
		if err != nil {
			return "", nil, fmt.Errorf("failed to marshal patch: %w", err)
		}
		name, payload = EventPatched, api.ObjectPatch{ID: e.ID, Patch: patch}
	case ObjectRemoved[T, P]:
		name, payload = EventRemoved, api.ObjectRef{ID: e.ID}
	default:
		return "", nil, fmt.Errorf("unsupported object event %T", ev)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return "", nil, fmt.Errorf("failed to marshal %s: %w", name, err)
	}
	return name, data, nil
}
