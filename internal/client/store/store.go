// Package store defines the persistence contract of a board: a snapshot of the
// stroke history plus independently addressable object records.
package store

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/iudanet/boardsync/internal/models"
)

var (
	// ErrNotFound запись или снимок не найдены
	ErrNotFound = errors.New("not found")

	// ErrPermissionDenied у участника нет прав на операцию
	ErrPermissionDenied = errors.New("permission denied")

	// ErrTransient временная ошибка хранилища или сети
	ErrTransient = errors.New("transient store failure")
)

//go:generate moq -out store_mock.go . Store

// Store is the persistence backend of one or more boards. Object fields are
// passed as raw JSON so the store stays independent of object kinds.
type Store interface {
	// GetSnapshot returns the last snapshot written for the board or
	// ErrNotFound.
	GetSnapshot(ctx context.Context, boardID string) (*models.Snapshot, error)

	// PutSnapshot replaces the board snapshot.
	PutSnapshot(ctx context.Context, boardID string, snap *models.Snapshot) error

	// ListObjects returns every object of kind on the board in creation order.
	ListObjects(ctx context.Context, boardID string, kind models.ObjectKind) ([]json.RawMessage, error)

	// InsertObject stores a new object and returns it as stored. A missing
	// "id" field is assigned by the store.
	InsertObject(ctx context.Context, boardID string, kind models.ObjectKind, fields json.RawMessage) (json.RawMessage, error)

	// PatchObject merges fields into an existing object.
	PatchObject(ctx context.Context, boardID string, kind models.ObjectKind, id string, fields json.RawMessage) error

	// DeleteObject removes an object. Deleting a missing object is not an error.
	DeleteObject(ctx context.Context, boardID string, kind models.ObjectKind, id string) error
}

// MergeFields overlays the top-level keys of patch onto doc.
func MergeFields(doc, patch json.RawMessage) (json.RawMessage, error) {
	base := map[string]json.RawMessage{}
	if len(doc) > 0 {
		if err := json.Unmarshal(doc, &base); err != nil {
			return nil, err
		}
	}
	var over map[string]json.RawMessage
	if err := json.Unmarshal(patch, &over); err != nil {
		return nil, err
	}
	for k, v := range over {
		base[k] = v
	}
	return json.Marshal(base)
}

// ObjectID extracts the "id" field of a stored object.
func ObjectID(fields json.RawMessage) (string, error) {
	var head struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(fields, &head); err != nil {
		return "", err
	}
	return head.ID, nil
}
