package feed

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/Makepad-fr/basket/internal/model"
	"github.com/Makepad-fr/basket/internal/store"
)

// Local serves a Feed straight from a store.Store. Each mutation, the
// snapshot read that follows it and the fan-out to subscribers happen
// under one lock, so every subscriber sees snapshots in commit order.
type Local struct {
	store store.Store
	log   *zap.Logger
	newID func() string

	mu   sync.Mutex
	subs map[string]map[uint64]SnapshotFunc
	next uint64
}

var _ Feed = (*Local)(nil)

func NewLocal(s store.Store, log *zap.Logger) *Local {
	if log == nil {
		log = zap.NewNop()
	}
	return &Local{
		store: s,
		log:   log,
		newID: NewID,
		subs:  make(map[string]map[uint64]SnapshotFunc),
	}
}

func (l *Local) Subscribe(ctx context.Context, room string, fn SnapshotFunc) (Unsubscribe, error) {
	l.mu.Lock()
	snap, err := l.store.Snapshot(ctx, room)
	if err != nil {
		l.mu.Unlock()
		return nil, err
	}
	fn(snap)
	l.next++
	key := l.next
	if l.subs[room] == nil {
		l.subs[room] = make(map[uint64]SnapshotFunc)
	}
	l.subs[room][key] = fn
	l.mu.Unlock()

	var once sync.Once
	remove := func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.subs[room], key)
			if len(l.subs[room]) == 0 {
				delete(l.subs, room)
			}
			l.mu.Unlock()
		})
	}
	stop := context.AfterFunc(ctx, remove)
	return func() {
		stop()
		remove()
	}, nil
}

func (l *Local) Snapshot(ctx context.Context, room string) (model.Snapshot, error) {
	return l.store.Snapshot(ctx, room)
}

func (l *Local) Create(ctx context.Context, room string, item model.StoredItem) (string, error) {
	id := l.newID()
	err := l.mutate(ctx, room, func() error {
		return l.store.Put(ctx, room, id, item)
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

func (l *Local) Write(ctx context.Context, room, id string, p model.Patch) error {
	return l.mutate(ctx, room, func() error {
		return l.store.Patch(ctx, room, id, p)
	})
}

func (l *Local) Delete(ctx context.Context, room, id string) error {
	return l.mutate(ctx, room, func() error {
		return l.store.Delete(ctx, room, id)
	})
}

func (l *Local) DeleteAll(ctx context.Context, room string) error {
	return l.mutate(ctx, room, func() error {
		return l.store.DeleteRoom(ctx, room)
	})
}

func (l *Local) mutate(ctx context.Context, room string, op func() error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := op(); err != nil {
		return err
	}
	subs := l.subs[room]
	if len(subs) == 0 {
		return nil
	}
	snap, err := l.store.Snapshot(ctx, room)
	if err != nil {
		// the write landed; subscribers catch up on the next change
		l.log.Warn("snapshot after write failed", zap.String("room", room), zap.Error(err))
		return nil
	}
	for _, fn := range subs {
		fn(snap.Clone())
	}
	return nil
}
