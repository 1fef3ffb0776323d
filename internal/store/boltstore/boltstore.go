// Package boltstore keeps room records in a single bbolt file.
// Layout mirrors the record path: bucket "rooms" → bucket per room →
// bucket "items" → key item id, value JSON record.
package boltstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/Makepad-fr/basket/internal/errs"
	"github.com/Makepad-fr/basket/internal/model"
	"github.com/Makepad-fr/basket/internal/store"
)

const FileName = "basket.db"

var (
	roomsBucket = []byte("rooms")
	itemsBucket = []byte("items")
)

type Store struct {
	db *bolt.DB
}

var _ store.Store = (*Store)(nil)

// Open opens (creating if needed) the database file at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir: %w", err)
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(roomsBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init buckets: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Snapshot(_ context.Context, room string) (model.Snapshot, error) {
	if err := store.CheckKeys(room); err != nil {
		return nil, err
	}
	out := model.Snapshot{}
	err := s.db.View(func(tx *bolt.Tx) error {
		items := itemsOf(tx, room)
		if items == nil {
			return nil
		}
		return items.ForEach(func(k, v []byte) error {
			var it model.StoredItem
			if err := json.Unmarshal(v, &it); err != nil {
				// skip unreadable records instead of failing the room
				return nil
			}
			out[string(k)] = it
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("read room %s: %w", room, err)
	}
	return out, nil
}

func (s *Store) Put(_ context.Context, room, id string, item model.StoredItem) error {
	if err := store.CheckKeys(room, id); err != nil {
		return err
	}
	b, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("marshal item: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		items, err := createItems(tx, room)
		if err != nil {
			return err
		}
		return items.Put([]byte(id), b)
	})
}

func (s *Store) Patch(_ context.Context, room, id string, p model.Patch) error {
	if err := store.CheckKeys(room, id); err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		items := itemsOf(tx, room)
		var cur []byte
		if items != nil {
			cur = items.Get([]byte(id))
		}
		if cur == nil {
			return errs.NotFound(fmt.Sprintf("item %s not found in room %s", id, room))
		}
		var it model.StoredItem
		if err := json.Unmarshal(cur, &it); err != nil {
			return fmt.Errorf("decode item: %w", err)
		}
		b, err := json.Marshal(it.Apply(p))
		if err != nil {
			return fmt.Errorf("marshal item: %w", err)
		}
		return items.Put([]byte(id), b)
	})
}

func (s *Store) Delete(_ context.Context, room, id string) error {
	if err := store.CheckKeys(room, id); err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		items := itemsOf(tx, room)
		if items == nil {
			return nil
		}
		return items.Delete([]byte(id))
	})
}

func (s *Store) DeleteRoom(_ context.Context, room string) error {
	if err := store.CheckKeys(room); err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		rooms := tx.Bucket(roomsBucket)
		if rooms.Bucket([]byte(room)) == nil {
			return nil
		}
		return rooms.DeleteBucket([]byte(room))
	})
}

func itemsOf(tx *bolt.Tx, room string) *bolt.Bucket {
	r := tx.Bucket(roomsBucket).Bucket([]byte(room))
	if r == nil {
		return nil
	}
	return r.Bucket(itemsBucket)
}

func createItems(tx *bolt.Tx, room string) (*bolt.Bucket, error) {
	r, err := tx.Bucket(roomsBucket).CreateBucketIfNotExists([]byte(room))
	if err != nil {
		return nil, fmt.Errorf("create room bucket: %w", err)
	}
	items, err := r.CreateBucketIfNotExists(itemsBucket)
	if err != nil {
		return nil, fmt.Errorf("create items bucket: %w", err)
	}
	return items, nil
}
