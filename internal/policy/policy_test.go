package policy

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/Makepad-fr/basket/internal/model"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fixture struct {
	feed    *memFeed
	clock   *fakeClock
	policy  *Policy
	changes atomic.Int32
	unsub   func()
}

func newFixture(t *testing.T, seed func(f *memFeed)) *fixture {
	t.Helper()
	fx := &fixture{feed: newMemFeed(), clock: newFakeClock()}
	if seed != nil {
		seed(fx.feed)
	}
	fx.policy = New(fx.feed, Options{
		Room:     "global",
		Clock:    fx.clock,
		Logger:   zaptest.NewLogger(t),
		OnChange: func() { fx.changes.Add(1) },
	})
	unsub, err := fx.policy.Subscribe(context.Background())
	require.NoError(t, err)
	fx.unsub = unsub
	t.Cleanup(func() {
		fx.policy.Close()
		fx.unsub()
	})
	return fx
}

func (fx *fixture) item(t *testing.T, id string) model.ListItem {
	t.Helper()
	for _, it := range fx.policy.Items() {
		if it.ID == id {
			return it
		}
	}
	t.Fatalf("item %s not in list", id)
	return model.ListItem{}
}

func TestAddMergesByNormalizedText(t *testing.T) {
	fx := newFixture(t, func(f *memFeed) { f.seed("m", "milk", 1, 1) })

	require.NoError(t, fx.policy.Add(context.Background(), "Milk", "2"))

	items := fx.policy.Items()
	require.Len(t, items, 1)
	assert.Equal(t, 3, items[0].Quantity)
	assert.Equal(t, []string{"write m"}, fx.feed.callLog())
}

func TestAddMatchesIgnoringSurroundingSpace(t *testing.T) {
	fx := newFixture(t, func(f *memFeed) { f.seed("m", "  Oat Milk ", 2, 1) })

	require.NoError(t, fx.policy.Add(context.Background(), "oat milk   ", ""))

	assert.Equal(t, 3, fx.item(t, "m").Quantity)
}

func TestAddCreatesNewItem(t *testing.T) {
	fx := newFixture(t, nil)

	require.NoError(t, fx.policy.Add(context.Background(), "  Bread ", "abc"))

	items := fx.policy.Items()
	require.Len(t, items, 1)
	assert.Equal(t, "Bread", items[0].Text)
	assert.Equal(t, 1, items[0].Quantity)
	assert.False(t, items[0].Completed)
	assert.Equal(t, fx.clock.Now().UnixMilli(), items[0].CreatedAt)
	assert.Equal(t, []string{"create id01"}, fx.feed.callLog())
}

func TestAddBlankTextIsNoop(t *testing.T) {
	fx := newFixture(t, func(f *memFeed) { f.seed("m", "milk", 1, 1) })

	require.NoError(t, fx.policy.Add(context.Background(), "   \t ", "5"))
	require.NoError(t, fx.policy.Add(context.Background(), "", "5"))

	assert.Empty(t, fx.feed.callLog())
	assert.Len(t, fx.policy.Items(), 1)
}

func TestDisabledPolicyDoesNothing(t *testing.T) {
	ctx := context.Background()
	p := New(nil, Options{Room: "global"})

	assert.False(t, p.Enabled())
	assert.False(t, p.Loading())
	require.NoError(t, p.Add(ctx, "milk", "1"))
	require.NoError(t, p.Toggle(ctx, model.ListItem{ID: "x"}))
	require.NoError(t, p.SetQuantity(ctx, model.ListItem{ID: "x", Quantity: 1}, 4))
	assert.False(t, p.Delete(ctx, "x"))
	require.NoError(t, p.ClearAll(ctx, func(string) bool { return true }))
	require.NoError(t, p.Refresh(ctx))
	unsub, err := p.Subscribe(ctx)
	require.NoError(t, err)
	unsub()

	noRoom := New(newMemFeed(), Options{})
	assert.False(t, noRoom.Enabled())
}

func TestLoadingUntilFirstSnapshot(t *testing.T) {
	p := New(newMemFeed(), Options{Room: "global"})
	assert.True(t, p.Loading())
	assert.True(t, p.View().Loading)

	require.NoError(t, p.Refresh(context.Background()))
	assert.False(t, p.Loading())
}

func TestToggle(t *testing.T) {
	fx := newFixture(t, func(f *memFeed) { f.seed("m", "milk", 1, 1) })

	require.NoError(t, fx.policy.Toggle(context.Background(), fx.item(t, "m")))
	assert.True(t, fx.item(t, "m").Completed)
	assert.Equal(t, 0, fx.policy.Remaining())

	require.NoError(t, fx.policy.Toggle(context.Background(), fx.item(t, "m")))
	assert.False(t, fx.item(t, "m").Completed)
}

func TestSetQuantitySkipsUnchangedValue(t *testing.T) {
	fx := newFixture(t, func(f *memFeed) { f.seed("m", "milk", 4, 1) })
	fx.policy.EditDraft("m", "4.5")

	require.NoError(t, fx.policy.SetQuantity(context.Background(), fx.item(t, "m"), 4))

	assert.Empty(t, fx.feed.callLog())
	_, editing := fx.policy.Draft("m")
	assert.False(t, editing)
}

func TestSetQuantityClampsToOne(t *testing.T) {
	fx := newFixture(t, func(f *memFeed) { f.seed("m", "milk", 3, 1) })

	require.NoError(t, fx.policy.SetQuantity(context.Background(), fx.item(t, "m"), -2))

	assert.Equal(t, 1, fx.item(t, "m").Quantity)
}

func TestIncrementDecrement(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t, func(f *memFeed) { f.seed("m", "milk", 1, 1) })

	require.NoError(t, fx.policy.Decrement(ctx, fx.item(t, "m")))
	assert.Empty(t, fx.feed.callLog(), "decrement at 1 stays at 1")

	require.NoError(t, fx.policy.Increment(ctx, fx.item(t, "m")))
	require.NoError(t, fx.policy.Increment(ctx, fx.item(t, "m")))
	assert.Equal(t, 3, fx.item(t, "m").Quantity)

	require.NoError(t, fx.policy.Decrement(ctx, fx.item(t, "m")))
	assert.Equal(t, 2, fx.item(t, "m").Quantity)
}

func TestCommitQuantityDraft(t *testing.T) {
	fx := newFixture(t, func(f *memFeed) { f.seed("m", "milk", 1, 1) })

	fx.policy.EditDraft("m", "7.8")
	require.NoError(t, fx.policy.CommitQuantityDraft(context.Background(), fx.item(t, "m")))

	assert.Equal(t, 7, fx.item(t, "m").Quantity)
	_, editing := fx.policy.Draft("m")
	assert.False(t, editing)
}

func TestCommitWithoutDraftKeepsQuantity(t *testing.T) {
	fx := newFixture(t, func(f *memFeed) { f.seed("m", "milk", 5, 1) })

	require.NoError(t, fx.policy.CommitQuantityDraft(context.Background(), fx.item(t, "m")))

	assert.Empty(t, fx.feed.callLog())
	assert.Equal(t, 5, fx.item(t, "m").Quantity)
}

func TestDraftWinsUntilCommittedOrDiscarded(t *testing.T) {
	fx := newFixture(t, func(f *memFeed) { f.seed("m", "milk", 1, 1) })
	fx.policy.EditDraft("m", "9")

	// Another client changes the quantity while we type.
	fx.feed.remote(func(items map[string]model.StoredItem) {
		items["m"] = items["m"].Apply(model.QuantityPatch(2))
	})

	row := fx.policy.View().Rows[0]
	assert.True(t, row.Editing)
	assert.Equal(t, "9", row.Draft)
	assert.Equal(t, 2, row.Quantity)

	fx.policy.DiscardDraft("m")
	row = fx.policy.View().Rows[0]
	assert.False(t, row.Editing)
	assert.Equal(t, "2", row.Draft)
}

func TestDraftDroppedWhenItemDisappears(t *testing.T) {
	fx := newFixture(t, func(f *memFeed) { f.seed("m", "milk", 1, 1) })
	fx.policy.EditDraft("m", "3")

	fx.feed.remote(func(items map[string]model.StoredItem) { delete(items, "m") })

	_, ok := fx.policy.Draft("m")
	assert.False(t, ok)
}

func TestDeleteWaitsForDelay(t *testing.T) {
	fx := newFixture(t, func(f *memFeed) { f.seed("m", "milk", 1, 1) })

	require.True(t, fx.policy.Delete(context.Background(), "m"))
	assert.True(t, fx.policy.Pending("m"))
	assert.True(t, fx.policy.View().Rows[0].Pending)

	fx.clock.Advance(DefaultDeleteDelay - time.Millisecond)
	assert.Empty(t, fx.feed.callLog())
	assert.True(t, fx.policy.Pending("m"))

	fx.clock.Advance(time.Millisecond)
	assert.Equal(t, []string{"delete m"}, fx.feed.callLog())
	assert.False(t, fx.policy.Pending("m"))
	assert.Empty(t, fx.policy.Items())
}

func TestDeleteTwiceSchedulesOnce(t *testing.T) {
	fx := newFixture(t, func(f *memFeed) { f.seed("m", "milk", 1, 1) })

	assert.True(t, fx.policy.Delete(context.Background(), "m"))
	assert.False(t, fx.policy.Delete(context.Background(), "m"))
	fx.clock.Advance(DefaultDeleteDelay)

	assert.Equal(t, []string{"delete m"}, fx.feed.callLog())
}

func TestDeleteUnknownItem(t *testing.T) {
	fx := newFixture(t, nil)
	assert.False(t, fx.policy.Delete(context.Background(), "nope"))
}

func TestDeleteFailureStillClearsPending(t *testing.T) {
	fx := newFixture(t, func(f *memFeed) { f.seed("m", "milk", 1, 1) })
	fx.feed.failDelete = true

	fx.policy.Delete(context.Background(), "m")
	fx.clock.Advance(DefaultDeleteDelay)

	assert.False(t, fx.policy.Pending("m"))
	// The record survived remotely, so it is still listed.
	assert.Len(t, fx.policy.Items(), 1)
	require.NoError(t, fx.policy.Settle(context.Background()))
}

func TestDeleteCancelledWhenRemovedRemotely(t *testing.T) {
	fx := newFixture(t, func(f *memFeed) { f.seed("m", "milk", 1, 1) })
	fx.policy.Delete(context.Background(), "m")

	fx.feed.remote(func(items map[string]model.StoredItem) { delete(items, "m") })

	assert.False(t, fx.policy.Pending("m"))
	assert.Empty(t, fx.policy.Items(), "a snapshot without the item must not resurrect it")

	fx.clock.Advance(DefaultDeleteDelay)
	assert.Empty(t, fx.feed.callLog())
	require.NoError(t, fx.policy.Settle(context.Background()))
}

func TestDeleteCancelledWhenMutatedRemotely(t *testing.T) {
	fx := newFixture(t, func(f *memFeed) { f.seed("m", "milk", 1, 1) })
	fx.policy.Delete(context.Background(), "m")

	fx.feed.remote(func(items map[string]model.StoredItem) {
		items["m"] = items["m"].Apply(model.QuantityPatch(6))
	})
	fx.clock.Advance(DefaultDeleteDelay)

	assert.False(t, fx.policy.Pending("m"))
	assert.Empty(t, fx.feed.callLog())
	assert.Equal(t, 6, fx.item(t, "m").Quantity)

	cancelled := fx.policy.CancelledDeletes()
	require.Len(t, cancelled, 1)
	assert.Equal(t, "milk", cancelled[0].Text)
	assert.Empty(t, fx.policy.CancelledDeletes())
}

func TestOwnWriteInFlightKeepsDeleteScheduled(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t, func(f *memFeed) { f.seed("m", "milk", 1, 1) })
	fx.feed.holdWrites = true

	// toggle, then confirm the delete before the toggle's snapshot lands
	require.NoError(t, fx.policy.Toggle(ctx, fx.item(t, "m")))
	require.True(t, fx.policy.Delete(ctx, "m"))
	fx.feed.publish()

	assert.True(t, fx.policy.Pending("m"))
	assert.True(t, fx.item(t, "m").Completed)

	fx.clock.Advance(DefaultDeleteDelay)
	assert.Equal(t, []string{"write m", "delete m"}, fx.feed.callLog())
	assert.Empty(t, fx.policy.Items())
	assert.Empty(t, fx.policy.CancelledDeletes())
}

func TestOwnWritesThenRemoteChangeCancelsDelete(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t, func(f *memFeed) { f.seed("m", "milk", 1, 1) })
	fx.feed.holdWrites = true

	require.NoError(t, fx.policy.Increment(ctx, fx.item(t, "m")))
	require.True(t, fx.policy.Delete(ctx, "m"))
	fx.feed.publish()
	require.True(t, fx.policy.Pending("m"))

	fx.feed.remote(func(items map[string]model.StoredItem) {
		items["m"] = items["m"].Apply(model.CompletedPatch(true))
	})
	fx.clock.Advance(DefaultDeleteDelay)

	assert.False(t, fx.policy.Pending("m"))
	assert.Equal(t, []string{"write m"}, fx.feed.callLog())
	assert.Len(t, fx.policy.CancelledDeletes(), 1)
}

func TestUnrelatedSnapshotKeepsDeleteScheduled(t *testing.T) {
	fx := newFixture(t, func(f *memFeed) {
		f.seed("m", "milk", 1, 1)
		f.seed("e", "eggs", 6, 2)
	})
	fx.policy.Delete(context.Background(), "m")

	fx.feed.remote(func(items map[string]model.StoredItem) {
		items["e"] = items["e"].Apply(model.CompletedPatch(true))
	})
	assert.True(t, fx.policy.Pending("m"))

	fx.clock.Advance(DefaultDeleteDelay)
	assert.Equal(t, []string{"delete m"}, fx.feed.callLog())
}

func TestClearAllWithNoItems(t *testing.T) {
	fx := newFixture(t, nil)
	asked := false

	require.NoError(t, fx.policy.ClearAll(context.Background(), func(string) bool {
		asked = true
		return true
	}))

	assert.False(t, asked)
	assert.Empty(t, fx.feed.callLog())
}

func TestClearAllNeedsConfirmation(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t, func(f *memFeed) {
		f.seed("m", "milk", 1, 1)
		f.seed("e", "eggs", 6, 2)
	})

	var prompt string
	require.NoError(t, fx.policy.ClearAll(ctx, func(p string) bool { prompt = p; return false }))
	assert.Equal(t, ClearAllPrompt, prompt)
	assert.Len(t, fx.policy.Items(), 2)

	require.NoError(t, fx.policy.ClearAll(ctx, nil))
	assert.Empty(t, fx.feed.callLog())

	require.NoError(t, fx.policy.ClearAll(ctx, func(string) bool { return true }))
	assert.Equal(t, []string{"deleteAll"}, fx.feed.callLog())
	assert.Empty(t, fx.policy.Items())
}

func TestClearAllCancelsPendingDeletes(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t, func(f *memFeed) { f.seed("m", "milk", 1, 1) })
	fx.policy.Delete(ctx, "m")

	require.NoError(t, fx.policy.ClearAll(ctx, func(string) bool { return true }))
	fx.clock.Advance(DefaultDeleteDelay)

	assert.Equal(t, []string{"deleteAll"}, fx.feed.callLog())
	assert.False(t, fx.policy.Pending("m"))
}

func TestSettleWithRealClock(t *testing.T) {
	f := newMemFeed()
	f.seed("m", "milk", 1, 1)
	p := New(f, Options{Room: "global", DeleteDelay: 5 * time.Millisecond})
	require.NoError(t, p.Refresh(context.Background()))

	require.True(t, p.Delete(context.Background(), "m"))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, p.Settle(ctx))
	assert.Equal(t, []string{"delete m"}, f.callLog())
	assert.False(t, p.Pending("m"))
}

func TestViewAndChangeNotifications(t *testing.T) {
	fx := newFixture(t, func(f *memFeed) {
		f.seed("b", "bread", 2, 2)
		f.seed("a", "apples", 6, 1)
	})
	before := fx.changes.Load()

	require.NoError(t, fx.policy.Toggle(context.Background(), fx.item(t, "a")))

	v := fx.policy.View()
	require.Len(t, v.Rows, 2)
	assert.Equal(t, "a", v.Rows[0].ID)
	assert.Equal(t, "6", v.Rows[0].Draft)
	assert.Equal(t, 1, v.Remaining)
	assert.True(t, v.Enabled)
	assert.Equal(t, "global", v.Room)
	assert.Greater(t, fx.changes.Load(), before)
}
