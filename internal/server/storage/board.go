package storage

import (
	"context"
	"encoding/json"
	"time"
)

// Snapshot is the stored stroke snapshot of a board.
type Snapshot struct {
	UpdatedAt time.Time
	Data      []byte // Data JSON снимка без сжатия
	Digest    string // Digest hex blake3 от Data
}

// Object is a stored note, shape or text box. Data holds the object fields
// as the clients sent them.
type Object struct {
	CreatedAt time.Time
	UpdatedAt time.Time
	ID        string
	BoardID   string
	Kind      string
	Data      json.RawMessage
}

// BoardStorage defines interface for board content persistence
type BoardStorage interface {
	// GetSnapshot returns the snapshot of the board
	// Returns ErrSnapshotNotFound if nothing was written yet
	GetSnapshot(ctx context.Context, boardID string) (*Snapshot, error)

	// PutSnapshot replaces the snapshot of the board and returns its digest
	// changed is false when the stored snapshot already had the same digest
	PutSnapshot(ctx context.Context, boardID string, data []byte) (digest string, changed bool, err error)

	// ListObjects returns the objects of kind on the board in creation order
	// Returns empty slice if no objects found
	ListObjects(ctx context.Context, boardID, kind string) ([]*Object, error)

	// CreateObject stores a new object
	// Returns ErrObjectExists if the id is taken on the board
	CreateObject(ctx context.Context, obj *Object) error

	// PatchObject merges the top-level fields of patch into the object
	// check, when not nil, vets the merged fields before they are written
	// Returns ErrObjectNotFound if the object doesn't exist
	PatchObject(ctx context.Context, boardID, kind, id string, patch json.RawMessage, check func(json.RawMessage) error) (*Object, error)

	// DeleteObject removes the object
	// Returns ErrObjectNotFound if the object doesn't exist
	DeleteObject(ctx context.Context, boardID, kind, id string) error

	// DeleteBoard removes the snapshot and every object of the board
	DeleteBoard(ctx context.Context, boardID string) error
}

// MergeFields overlays the top-level keys of patch onto doc. The "id" and
// "boardId" keys of patch are ignored.
func MergeFields(doc, patch json.RawMessage) (json.RawMessage, error) {
	base := map[string]json.RawMessage{}
	if len(doc) > 0 {
		if err := json.Unmarshal(doc, &base); err != nil {
			return nil, ErrInvalidObject
		}
	}
	var over map[string]json.RawMessage
	if err := json.Unmarshal(patch, &over); err != nil || over == nil {
		return nil, ErrInvalidObject
	}
	for k, v := range over {
		if k == "id" || k == "boardId" {
			continue
		}
		base[k] = v
	}
	return json.Marshal(base)
}
