// Package sqlitestore keeps room records in SQLite through the pure-Go
// modernc.org/sqlite driver. Each record is one row holding its JSON body.
package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/Makepad-fr/basket/internal/errs"
	"github.com/Makepad-fr/basket/internal/model"
	"github.com/Makepad-fr/basket/internal/store"
)

const FileName = "basket.sqlite"

const schema = `
CREATE TABLE IF NOT EXISTS items (
	room TEXT NOT NULL,
	id   TEXT NOT NULL,
	body TEXT NOT NULL,
	PRIMARY KEY (room, id)
);
`

type Store struct {
	db *sql.DB
}

var _ store.Store = (*Store)(nil)

// Open opens (creating if needed) the database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// one writer keeps read-modify-write patches serialized
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Snapshot(ctx context.Context, room string) (model.Snapshot, error) {
	if err := store.CheckKeys(room); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, body FROM items WHERE room = ?`, room)
	if err != nil {
		return nil, fmt.Errorf("query room %s: %w", room, err)
	}
	defer rows.Close()

	out := model.Snapshot{}
	for rows.Next() {
		var id, body string
		if err := rows.Scan(&id, &body); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		var it model.StoredItem
		if err := json.Unmarshal([]byte(body), &it); err != nil {
			continue
		}
		out[id] = it
	}
	return out, rows.Err()
}

func (s *Store) Put(ctx context.Context, room, id string, item model.StoredItem) error {
	if err := store.CheckKeys(room, id); err != nil {
		return err
	}
	b, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("marshal item: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO items (room, id, body) VALUES (?, ?, ?)
		 ON CONFLICT(room, id) DO UPDATE SET body = excluded.body`,
		room, id, string(b))
	if err != nil {
		return fmt.Errorf("put item: %w", err)
	}
	return nil
}

func (s *Store) Patch(ctx context.Context, room, id string, p model.Patch) error {
	if err := store.CheckKeys(room, id); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var body string
	err = tx.QueryRowContext(ctx, `SELECT body FROM items WHERE room = ? AND id = ?`, room, id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return errs.NotFound(fmt.Sprintf("item %s not found in room %s", id, room))
	}
	if err != nil {
		return fmt.Errorf("read item: %w", err)
	}
	var it model.StoredItem
	if err := json.Unmarshal([]byte(body), &it); err != nil {
		return fmt.Errorf("decode item: %w", err)
	}
	b, err := json.Marshal(it.Apply(p))
	if err != nil {
		return fmt.Errorf("marshal item: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE items SET body = ? WHERE room = ? AND id = ?`, string(b), room, id); err != nil {
		return fmt.Errorf("update item: %w", err)
	}
	return tx.Commit()
}

func (s *Store) Delete(ctx context.Context, room, id string) error {
	if err := store.CheckKeys(room, id); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM items WHERE room = ? AND id = ?`, room, id); err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	return nil
}

func (s *Store) DeleteRoom(ctx context.Context, room string) error {
	if err := store.CheckKeys(room); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM items WHERE room = ?`, room); err != nil {
		return fmt.Errorf("delete room: %w", err)
	}
	return nil
}
