package sqlite

import (
	"context"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/zeebo/blake3"

	"github.com/iudanet/boardsync/internal/server/storage"
)

// Digest returns the hex blake3 digest of snapshot data.
func Digest(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// GetSnapshot returns the snapshot of the board
// Returns ErrSnapshotNotFound if nothing was written yet
func (s *Storage) GetSnapshot(ctx context.Context, boardID string) (*storage.Snapshot, error) {
	query := `SELECT data, digest, updated_at FROM snapshots WHERE board_id = ?`

	var compressed []byte
	var updatedAt int64
	snap := &storage.Snapshot{}
	err := s.db.QueryRowContext(ctx, query, boardID).Scan(&compressed, &snap.Digest, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}

	snap.Data, err = s.decoder.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress snapshot: %w", err)
	}
	snap.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return snap, nil
}

// PutSnapshot replaces the snapshot of the board and returns its digest
func (s *Storage) PutSnapshot(ctx context.Context, boardID string, data []byte) (string, bool, error) {
	digest := Digest(data)

	var current string
	err := s.db.QueryRowContext(ctx, `SELECT digest FROM snapshots WHERE board_id = ?`, boardID).Scan(&current)
	switch {
	case err == nil && current == digest:
		return digest, false, nil
	case err != nil && !errors.Is(err, sql.ErrNoRows):
		return "", false, fmt.Errorf("failed to check snapshot digest: %w", err)
	}

	query := `
		INSERT INTO snapshots (board_id, data, digest, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(board_id) DO UPDATE SET
			data = excluded.data,
			digest = excluded.digest,
			updated_at = excluded.updated_at
	`
	compressed := s.encoder.EncodeAll(data, nil)
	if _, err := s.db.ExecContext(ctx, query, boardID, compressed, digest, time.Now().Unix()); err != nil {
		return "", false, fmt.Errorf("failed to save snapshot: %w", err)
	}
	return digest, true, nil
}

// ListObjects returns the objects of kind on the board in creation order
func (s *Storage) ListObjects(ctx context.Context, boardID, kind string) ([]*storage.Object, error) {
	query := `
		SELECT id, board_id, kind, data, created_at, updated_at
		FROM objects
		WHERE board_id = ? AND kind = ?
		ORDER BY seq ASC
	`

	rows, err := s.db.QueryContext(ctx, query, boardID, kind)
	if err != nil {
		return nil, fmt.Errorf("failed to query objects: %w", err)
	}
	defer rows.Close()

	objects := make([]*storage.Object, 0)
	for rows.Next() {
		obj, err := scanObject(rows)
		if err != nil {
			return nil, err
		}
		objects = append(objects, obj)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate objects: %w", err)
	}
	return objects, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanObject(row scanner) (*storage.Object, error) {
	obj := &storage.Object{}
	var data []byte
	var createdAt, updatedAt int64
	if err := row.Scan(&obj.ID, &obj.BoardID, &obj.Kind, &data, &createdAt, &updatedAt); err != nil {
		return nil, fmt.Errorf("failed to scan object: %w", err)
	}
	obj.Data = json.RawMessage(data)
	obj.CreatedAt = time.Unix(createdAt, 0).UTC()
	obj.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return obj, nil
}

// CreateObject stores a new object
// Returns ErrObjectExists if the id is taken on the board
func (s *Storage) CreateObject(ctx context.Context, obj *storage.Object) error {
	if !json.Valid(obj.Data) {
		return storage.ErrInvalidObject
	}

	now := time.Now().UTC()
	if obj.CreatedAt.IsZero() {
		obj.CreatedAt = now
	}
	obj.UpdatedAt = now

	query := `
		INSERT INTO objects (id, board_id, kind, data, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		obj.ID, obj.BoardID, obj.Kind, []byte(obj.Data),
		obj.CreatedAt.Unix(), obj.UpdatedAt.Unix(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrObjectExists
		}
		return fmt.Errorf("failed to insert object: %w", err)
	}
	return nil
}

// PatchObject merges the top-level fields of patch into the object
// An error from check aborts the update and is returned as is
// Returns ErrObjectNotFound if the object doesn't exist
func (s *Storage) PatchObject(ctx context.Context, boardID, kind, id string, patch json.RawMessage, check func(json.RawMessage) error) (*storage.Object, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	query := `
		SELECT id, board_id, kind, data, created_at, updated_at
		FROM objects
		WHERE board_id = ? AND kind = ? AND id = ?
	`
	obj, err := scanObject(tx.QueryRowContext(ctx, query, boardID, kind, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrObjectNotFound
		}
		return nil, err
	}

	merged, err := storage.MergeFields(obj.Data, patch)
	if err != nil {
		return nil, err
	}
	if check != nil {
		if err := check(merged); err != nil {
			return nil, err
		}
	}
	obj.Data = merged
	obj.UpdatedAt = time.Now().UTC()

	update := `UPDATE objects SET data = ?, updated_at = ? WHERE board_id = ? AND kind = ? AND id = ?`
	if _, err := tx.ExecContext(ctx, update, []byte(merged), obj.UpdatedAt.Unix(), boardID, kind, id); err != nil {
		return nil, fmt.Errorf("failed to update object: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return obj, nil
}

// DeleteObject removes the object
// Returns ErrObjectNotFound if the object doesn't exist
func (s *Storage) DeleteObject(ctx context.Context, boardID, kind, id string) error {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM objects WHERE board_id = ? AND kind = ? AND id = ?`, boardID, kind, id)
	if err != nil {
		return fmt.Errorf("failed to delete object: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return storage.ErrObjectNotFound
	}
	return nil
}

// DeleteBoard removes the snapshot and every object of the board
func (s *Storage) DeleteBoard(ctx context.Context, boardID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM objects WHERE board_id = ?`, boardID); err != nil {
		return fmt.Errorf("failed to delete objects: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM snapshots WHERE board_id = ?`, boardID); err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// isUniqueViolation проверяет нарушение UNIQUE ограничения
func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
