package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/iudanet/boardsync/internal/models"
)

// Cached reads through a remote Store and keeps a local copy. When the remote
// fails transiently, reads are served from the local copy. Writes always go to
// the remote; a successful write is mirrored locally.
type Cached struct {
	remote Store
	local  Store
	logger *slog.Logger
}

var _ Store = (*Cached)(nil)

// NewCached creates a read-through cache of remote backed by local.
func NewCached(remote, local Store, logger *slog.Logger) *Cached {
	return &Cached{remote: remote, local: local, logger: logger}
}

func (c *Cached) GetSnapshot(ctx context.Context, boardID string) (*models.Snapshot, error) {
	snap, err := c.remote.GetSnapshot(ctx, boardID)
	switch {
	case err == nil:
		if err := c.local.PutSnapshot(ctx, boardID, snap); err != nil {
			c.logger.Warn("Failed to cache snapshot", "board_id", boardID, "error", err)
		}
		return snap, nil
	case errors.Is(err, ErrTransient):
		local, lerr := c.local.GetSnapshot(ctx, boardID)
		if lerr != nil {
			return nil, fmt.Errorf("remote unavailable and no cached snapshot: %w", err)
		}
		c.logger.Warn("Serving cached snapshot", "board_id", boardID, "error", err)
		return local, nil
	}
	return nil, err
}

func (c *Cached) PutSnapshot(ctx context.Context, boardID string, snap *models.Snapshot) error {
	if err := c.remote.PutSnapshot(ctx, boardID, snap); err != nil {
		return err
	}
	if err := c.local.PutSnapshot(ctx, boardID, snap); err != nil {
		c.logger.Warn("Failed to cache snapshot", "board_id", boardID, "error", err)
	}
	return nil
}

func (c *Cached) ListObjects(ctx context.Context, boardID string, kind models.ObjectKind) ([]json.RawMessage, error) {
	objects, err := c.remote.ListObjects(ctx, boardID, kind)
	if err == nil {
		c.refresh(ctx, boardID, kind, objects)
		return objects, nil
	}
	if !errors.Is(err, ErrTransient) {
		return nil, err
	}

	local, lerr := c.local.ListObjects(ctx, boardID, kind)
	if lerr != nil {
		return nil, fmt.Errorf("remote unavailable and cache failed: %w", err)
	}
	c.logger.Warn("Serving cached objects", "board_id", boardID, "kind", kind, "error", err)
	return local, nil
}

// refresh replaces the local copy of a kind with the remote listing.
func (c *Cached) refresh(ctx context.Context, boardID string, kind models.ObjectKind, objects []json.RawMessage) {
	stale, err := c.local.ListObjects(ctx, boardID, kind)
	if err != nil {
		c.logger.Warn("Failed to read cached objects", "board_id", boardID, "kind", kind, "error", err)
		return
	}
	for _, obj := range stale {
		id, err := ObjectID(obj)
		if err != nil || id == "" {
			continue
		}
		_ = c.local.DeleteObject(ctx, boardID, kind, id)
	}
	for _, obj := range objects {
		if _, err := c.local.InsertObject(ctx, boardID, kind, obj); err != nil {
			c.logger.Warn("Failed to cache object", "board_id", boardID, "kind", kind, "error", err)
		}
	}
}

func (c *Cached) InsertObject(ctx context.Context, boardID string, kind models.ObjectKind, fields json.RawMessage) (json.RawMessage, error) {
	stored, err := c.remote.InsertObject(ctx, boardID, kind, fields)
	if err != nil {
		return nil, err
	}
	if _, err := c.local.InsertObject(ctx, boardID, kind, stored); err != nil {
		c.logger.Warn("Failed to cache object", "board_id", boardID, "kind", kind, "error", err)
	}
	return stored, nil
}

func (c *Cached) PatchObject(ctx context.Context, boardID string, kind models.ObjectKind, id string, fields json.RawMessage) error {
	if err := c.remote.PatchObject(ctx, boardID, kind, id, fields); err != nil {
		return err
	}
	if err := c.local.PatchObject(ctx, boardID, kind, id, fields); err != nil && !errors.Is(err, ErrNotFound) {
		c.logger.Warn("Failed to cache patch", "board_id", boardID, "object_id", id, "error", err)
	}
	return nil
}

func (c *Cached) DeleteObject(ctx context.Context, boardID string, kind models.ObjectKind, id string) error {
	if err := c.remote.DeleteObject(ctx, boardID, kind, id); err != nil {
		return err
	}
	if err := c.local.DeleteObject(ctx, boardID, kind, id); err != nil {
		c.logger.Warn("Failed to uncache object", "board_id", boardID, "object_id", id, "error", err)
	}
	return nil
}
