// Package feed is the realtime, room-scoped view of the item store.
//
// A Feed hands out complete snapshots: on subscribe and after every
// change a subscriber receives the whole room. Ordering and convergence
// under concurrent writers are the backing store's business; callers
// simply replace whatever they held with the latest snapshot.
package feed

import (
	"context"

	"github.com/google/uuid"

	"github.com/Makepad-fr/basket/internal/model"
)

// SnapshotFunc receives a room snapshot. It must not block and must not
// call back into the Feed that invoked it.
type SnapshotFunc func(model.Snapshot)

// Unsubscribe stops a subscription. It is safe to call more than once.
type Unsubscribe func()

type Feed interface {
	Subscribe(ctx context.Context, room string, fn SnapshotFunc) (Unsubscribe, error)
	Snapshot(ctx context.Context, room string) (model.Snapshot, error)
	// Create stores a new record under a freshly allocated id.
	Create(ctx context.Context, room string, item model.StoredItem) (string, error)
	// Write merge-patches an existing record.
	Write(ctx context.Context, room, id string, p model.Patch) error
	Delete(ctx context.Context, room, id string) error
	DeleteAll(ctx context.Context, room string) error
}

// NewID allocates an item id. Ids are UUIDv7 so they sort by creation time.
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
