// Package boltdb is the client's local board store on top of BoltDB. It keeps
// the last known snapshot and objects of every board the client opened so a
// board can still be loaded when the relay is unreachable.
package boltdb

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
	"go.etcd.io/bbolt"

	"github.com/iudanet/boardsync/internal/client/store"
	"github.com/iudanet/boardsync/internal/models"
)

var (
	// BoltDB bucket names
	bucketSnapshots = []byte("snapshots")
	bucketObjects   = []byte("objects")
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("boltdb: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("boltdb: CBOR decoder initialization failed: " + err.Error())
	}
}

// Cache represents BoltDB storage implementation of store.Store.
//
// Layout: snapshots/<board> holds the CBOR-encoded snapshot; objects/<board>/<kind>
// is a nested bucket of object JSON keyed by a sequence number, with an
// index bucket mapping object id to that key so listing keeps creation order.
type Cache struct {
	db *bbolt.DB
}

var _ store.Store = (*Cache)(nil)

// New opens (creating if needed) the cache database at dbPath.
func New(ctx context.Context, dbPath string) (*Cache, error) {
	db, err := bbolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open boltdb: %w", err)
	}

	cache := &Cache{db: db}

	if err := cache.initBuckets(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize buckets: %w", err)
	}

	return cache, nil
}

// Close closes the database connection
func (c *Cache) Close() error {
	if c.db == nil {
		return nil
	}
	err := c.db.Close()
	c.db = nil
	return err
}

// initBuckets создает необходимые buckets если они не существуют
func (c *Cache) initBuckets() error {
	return c.db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketSnapshots, bucketObjects} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("failed to create %s bucket: %w", name, err)
			}
		}
		return nil
	})
}

func (c *Cache) GetSnapshot(ctx context.Context, boardID string) (*models.Snapshot, error) {
	var snap models.Snapshot
	err := c.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketSnapshots).Get([]byte(boardID))
		if data == nil {
			return store.ErrNotFound
		}
		if err := decMode.Unmarshal(data, &snap); err != nil {
			return fmt.Errorf("failed to decode snapshot: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

func (c *Cache) PutSnapshot(ctx context.Context, boardID string, snap *models.Snapshot) error {
	data, err := encMode.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return c.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket(bucketSnapshots).Put([]byte(boardID), data); err != nil {
			return fmt.Errorf("failed to save snapshot: %w", err)
		}
		return nil
	})
}

// kindBuckets returns the data and index buckets of a board kind, creating
// them when create is set. Returns nils if they don't exist.
func kindBuckets(tx *bbolt.Tx, boardID string, kind models.ObjectKind, create bool) (data, index *bbolt.Bucket, err error) {
	root := tx.Bucket(bucketObjects)
	if !create {
		board := root.Bucket([]byte(boardID))
		if board == nil {
			return nil, nil, nil
		}
		k := board.Bucket([]byte(kind))
		if k == nil {
			return nil, nil, nil
		}
		return k.Bucket([]byte("data")), k.Bucket([]byte("index")), nil
	}

	board, err := root.CreateBucketIfNotExists([]byte(boardID))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create board bucket: %w", err)
	}
	k, err := board.CreateBucketIfNotExists([]byte(kind))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create kind bucket: %w", err)
	}
	if data, err = k.CreateBucketIfNotExists([]byte("data")); err != nil {
		return nil, nil, fmt.Errorf("failed to create data bucket: %w", err)
	}
	if index, err = k.CreateBucketIfNotExists([]byte("index")); err != nil {
		return nil, nil, fmt.Errorf("failed to create index bucket: %w", err)
	}
	return data, index, nil
}

func (c *Cache) ListObjects(ctx context.Context, boardID string, kind models.ObjectKind) ([]json.RawMessage, error) {
	objects := []json.RawMessage{}
	err := c.db.View(func(tx *bbolt.Tx) error {
		data, _, err := kindBuckets(tx, boardID, kind, false)
		if err != nil || data == nil {
			return err
		}
		// Ключи - big-endian sequence, курсор обходит их в порядке создания
		return data.ForEach(func(_, v []byte) error {
			obj := make(json.RawMessage, len(v))
			copy(obj, v)
			objects = append(objects, obj)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list objects: %w", err)
	}
	return objects, nil
}

// InsertObject stores fields, assigning an id when missing. Inserting an id
// that already exists replaces the stored value in place.
func (c *Cache) InsertObject(ctx context.Context, boardID string, kind models.ObjectKind, fields json.RawMessage) (json.RawMessage, error) {
	id, err := store.ObjectID(fields)
	if err != nil {
		return nil, fmt.Errorf("failed to read object id: %w", err)
	}
	if id == "" {
		id = uuid.NewString()
		idField, _ := json.Marshal(map[string]string{"id": id})
		if fields, err = store.MergeFields(fields, idField); err != nil {
			return nil, fmt.Errorf("failed to assign object id: %w", err)
		}
	}

	err = c.db.Update(func(tx *bbolt.Tx) error {
		data, index, err := kindBuckets(tx, boardID, kind, true)
		if err != nil {
			return err
		}
		key := index.Get([]byte(id))
		if key == nil {
			seq, err := data.NextSequence()
			if err != nil {
				return fmt.Errorf("failed to allocate sequence: %w", err)
			}
			key = seqKey(seq)
			if err := index.Put([]byte(id), key); err != nil {
				return fmt.Errorf("failed to index object: %w", err)
			}
		}
		return data.Put(key, fields)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to insert object: %w", err)
	}
	return fields, nil
}

func (c *Cache) PatchObject(ctx context.Context, boardID string, kind models.ObjectKind, id string, fields json.RawMessage) error {
	return c.db.Update(func(tx *bbolt.Tx) error {
		data, index, err := kindBuckets(tx, boardID, kind, false)
		if err != nil {
			return err
		}
		if data == nil {
			return store.ErrNotFound
		}
		key := index.Get([]byte(id))
		if key == nil {
			return store.ErrNotFound
		}
		merged, err := store.MergeFields(data.Get(key), fields)
		if err != nil {
			return fmt.Errorf("failed to merge patch: %w", err)
		}
		return data.Put(key, merged)
	})
}

func (c *Cache) DeleteObject(ctx context.Context, boardID string, kind models.ObjectKind, id string) error {
	return c.db.Update(func(tx *bbolt.Tx) error {
		data, index, err := kindBuckets(tx, boardID, kind, false)
		if err != nil || data == nil {
			return err
		}
		key := index.Get([]byte(id))
		if key == nil {
			return nil
		}
		if err := data.Delete(key); err != nil {
			return fmt.Errorf("failed to delete object: %w", err)
		}
		return index.Delete([]byte(id))
	})
}

func seqKey(seq uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, seq)
	return key
}
