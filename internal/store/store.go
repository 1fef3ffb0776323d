// Package store holds the persistence contract behind the feed server.
// Records live at rooms/{room}/items/{id}; the backends only store and
// retrieve them, they never merge concurrent writes.
package store

import (
	"context"
	"regexp"

	"github.com/Makepad-fr/basket/internal/errs"
	"github.com/Makepad-fr/basket/internal/model"
)

// Store persists room item records.
type Store interface {
	// Snapshot returns every record in the room. An unknown room is empty.
	Snapshot(ctx context.Context, room string) (model.Snapshot, error)
	// Put stores item under id, replacing any previous record.
	Put(ctx context.Context, room, id string, item model.StoredItem) error
	// Patch merges p into an existing record. A missing record is an
	// errs.KindNotFound error.
	Patch(ctx context.Context, room, id string, p model.Patch) error
	// Delete removes one record. Deleting a missing record is not an error.
	Delete(ctx context.Context, room, id string) error
	// DeleteRoom removes every record in the room.
	DeleteRoom(ctx context.Context, room string) error
	Close() error
}

var keyPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// ValidKey reports whether s may be used as a room or item id.
func ValidKey(s string) bool { return keyPattern.MatchString(s) }

// CheckKeys validates the room and, when given, the item id.
func CheckKeys(room string, id ...string) error {
	if !ValidKey(room) {
		return errs.Validation("invalid room id " + quote(room))
	}
	for _, k := range id {
		if !ValidKey(k) {
			return errs.Validation("invalid item id " + quote(k))
		}
	}
	return nil
}

func quote(s string) string { return `"` + s + `"` }
