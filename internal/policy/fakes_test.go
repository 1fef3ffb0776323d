package policy

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Makepad-fr/basket/internal/errs"
	"github.com/Makepad-fr/basket/internal/feed"
	"github.com/Makepad-fr/basket/internal/model"
)

// memFeed is an in-memory feed.Feed that pushes a snapshot to its
// subscriber after every successful mutation, the way the real feeds do.
type memFeed struct {
	mu         sync.Mutex
	items      map[string]model.StoredItem
	sub        feed.SnapshotFunc
	nextID     int
	failDelete bool
	// holdWrites applies writes without publishing until publish is called
	holdWrites bool
	calls      []string
}

var _ feed.Feed = (*memFeed)(nil)

func newMemFeed() *memFeed {
	return &memFeed{items: map[string]model.StoredItem{}}
}

// seed stores an item without recording a call or notifying.
func (f *memFeed) seed(id, text string, qty int, createdAt int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[id] = model.NewStoredItem(text, qty, createdAt)
}

// remote simulates another client mutating the room.
func (f *memFeed) remote(mutate func(items map[string]model.StoredItem)) {
	f.mu.Lock()
	mutate(f.items)
	f.mu.Unlock()
	f.publish()
}

func (f *memFeed) callLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *memFeed) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
}

func (f *memFeed) snapshot() model.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return model.Snapshot(f.items).Clone()
}

func (f *memFeed) publish() {
	f.mu.Lock()
	sub := f.sub
	f.mu.Unlock()
	if sub != nil {
		sub(f.snapshot())
	}
}

func (f *memFeed) Subscribe(_ context.Context, _ string, fn feed.SnapshotFunc) (feed.Unsubscribe, error) {
	f.mu.Lock()
	f.sub = fn
	f.mu.Unlock()
	fn(f.snapshot())
	return func() {
		f.mu.Lock()
		f.sub = nil
		f.mu.Unlock()
	}, nil
}

func (f *memFeed) Snapshot(context.Context, string) (model.Snapshot, error) {
	return f.snapshot(), nil
}

func (f *memFeed) Create(_ context.Context, _ string, item model.StoredItem) (string, error) {
	f.mu.Lock()
	f.nextID++
	id := fmt.Sprintf("id%02d", f.nextID)
	f.items[id] = item
	f.mu.Unlock()
	f.record("create " + id)
	f.publish()
	return id, nil
}

func (f *memFeed) Write(_ context.Context, _ string, id string, p model.Patch) error {
	f.mu.Lock()
	cur, ok := f.items[id]
	if ok {
		f.items[id] = cur.Apply(p)
	}
	hold := f.holdWrites
	f.mu.Unlock()
	f.record("write " + id)
	if !ok {
		return errs.NotFound("item " + id)
	}
	if !hold {
		f.publish()
	}
	return nil
}

func (f *memFeed) Delete(_ context.Context, _ string, id string) error {
	f.record("delete " + id)
	f.mu.Lock()
	fail := f.failDelete
	if !fail {
		delete(f.items, id)
	}
	f.mu.Unlock()
	if fail {
		return errors.New("network down")
	}
	f.publish()
	return nil
}

func (f *memFeed) DeleteAll(context.Context, string) error {
	f.mu.Lock()
	f.items = map[string]model.StoredItem{}
	f.mu.Unlock()
	f.record("deleteAll")
	f.publish()
	return nil
}

// fakeClock fires timers only when advanced.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	clock *fakeClock
	at    time.Time
	f     func()
	done  bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.UnixMilli(1_700_000_000_000)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	was := !t.done
	t.done = true
	return was
}

// Advance moves time forward and runs due timers on the caller's goroutine.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []*fakeTimer
	for _, t := range c.timers {
		if !t.done && !t.at.After(c.now) {
			t.done = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()
	for _, t := range due {
		t.f()
	}
}
