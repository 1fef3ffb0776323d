// Package policy applies user intents (add, toggle, quantity edits,
// deletes) to a room through a feed.Feed, and keeps the reconciled list
// the shell renders.
//
// The list is only ever replaced by snapshots from the feed; operations
// write through the feed and wait for the resulting snapshot rather than
// editing the list themselves. Two pieces of purely local state sit on
// top of it: quantity drafts being typed, and deletes waiting out their
// exit animation.
package policy

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Makepad-fr/basket/internal/feed"
	"github.com/Makepad-fr/basket/internal/model"
)

const (
	// DefaultDeleteDelay leaves room for the row's exit animation.
	DefaultDeleteDelay = 220 * time.Millisecond

	ClearAllPrompt = "Clear the entire list for everyone in this room?"

	deleteTimeout = 10 * time.Second
)

// Confirm asks the user a yes/no question.
type Confirm func(prompt string) bool

type Options struct {
	Room        string
	DeleteDelay time.Duration // zero means DefaultDeleteDelay; negative means no delay
	Clock       Clock
	Logger      *zap.Logger
	// OnChange runs after the list, a draft or a pending flag changes.
	// It is called without internal locks held.
	OnChange func()
}

type Policy struct {
	feed     feed.Feed
	room     string
	delay    time.Duration
	clock    Clock
	log      *zap.Logger
	onChange func()

	mu      sync.Mutex
	items   []model.ListItem
	loaded  bool
	drafts  map[string]string
	pending map[string]*deferredDelete
	// own holds this policy's writes per id until a snapshot reflects them.
	own map[string][]*model.Patch
	// called off because someone else changed the item; see CancelledDeletes
	cancelled []model.ListItem

	inflight sync.WaitGroup
}

// deferredDelete is a scheduled removal. target is the item as it looked
// when the user asked, moved forward by this policy's own writes. If a
// snapshot shows it gone, or changed in a way those writes do not explain,
// the removal is called off.
type deferredDelete struct {
	ctx    context.Context
	timer  Timer
	target model.ListItem
	fired  bool
}

// New returns a policy for f. A nil f or an empty room yields a disabled
// policy whose operations do nothing.
func New(f feed.Feed, opts Options) *Policy {
	p := &Policy{
		feed:     f,
		room:     opts.Room,
		delay:    opts.DeleteDelay,
		clock:    opts.Clock,
		log:      opts.Logger,
		onChange: opts.OnChange,
		drafts:   make(map[string]string),
		pending:  make(map[string]*deferredDelete),
		own:      make(map[string][]*model.Patch),
	}
	if p.delay == 0 {
		p.delay = DefaultDeleteDelay
	}
	if p.delay < 0 {
		p.delay = 0
	}
	if p.clock == nil {
		p.clock = RealClock()
	}
	if p.log == nil {
		p.log = zap.NewNop()
	}
	return p
}

// Enabled reports whether a room and a feed are configured.
func (p *Policy) Enabled() bool {
	return p.feed != nil && p.room != ""
}

func (p *Policy) Room() string { return p.room }

// Subscribe starts applying the room's snapshots as they arrive.
func (p *Policy) Subscribe(ctx context.Context) (feed.Unsubscribe, error) {
	if !p.Enabled() {
		return func() {}, nil
	}
	unsub, err := p.feed.Subscribe(ctx, p.room, p.Apply)
	if err != nil {
		return nil, fmt.Errorf("subscribe to room %s: %w", p.room, err)
	}
	return unsub, nil
}

// Refresh reads the room once and applies it.
func (p *Policy) Refresh(ctx context.Context) error {
	if !p.Enabled() {
		return nil
	}
	snap, err := p.feed.Snapshot(ctx, p.room)
	if err != nil {
		return fmt.Errorf("read room %s: %w", p.room, err)
	}
	p.Apply(snap)
	return nil
}

// Apply replaces the list with the reconciled snapshot. Drafts of items
// that disappeared are dropped. Scheduled deletes whose item vanished, or
// was changed by another client, are cancelled.
func (p *Policy) Apply(s model.Snapshot) {
	items := model.Reconcile(s)
	index := make(map[string]model.ListItem, len(items))
	for _, it := range items {
		index[it.ID] = it
	}

	p.mu.Lock()
	for id, d := range p.pending {
		if d.fired {
			continue
		}
		cur, ok := index[id]
		switch {
		case !ok:
			p.cancelLocked(id, d)
		case cur == d.target:
		case p.ownExplainsLocked(id, d.target, cur):
			d.target = cur
		default:
			p.cancelLocked(id, d)
			p.cancelled = append(p.cancelled, cur)
		}
	}
	p.pruneOwnLocked(index)
	for id := range p.drafts {
		if _, ok := index[id]; !ok {
			delete(p.drafts, id)
		}
	}
	p.items = items
	p.loaded = true
	p.mu.Unlock()

	p.changed()
}

// Add puts text on the list. If an item with the same text (ignoring case
// and surrounding space) exists, its quantity grows instead.
func (p *Policy) Add(ctx context.Context, text, quantityText string) error {
	if !p.Enabled() {
		return nil
	}
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}
	qty := model.ParseQuantity(quantityText)

	existing, found := p.findByText(trimmed)
	if found {
		next := model.NormalizeQuantity(float64(existing.Quantity) + float64(qty))
		if err := p.write(ctx, existing.ID, model.QuantityPatch(next)); err != nil {
			return fmt.Errorf("add %q: %w", trimmed, err)
		}
		p.clearDraft(existing.ID)
		return nil
	}

	item := model.NewStoredItem(trimmed, qty, p.clock.Now().UnixMilli())
	if _, err := p.feed.Create(ctx, p.room, item); err != nil {
		return fmt.Errorf("add %q: %w", trimmed, err)
	}
	return nil
}

// Toggle flips the item's completed flag.
func (p *Policy) Toggle(ctx context.Context, item model.ListItem) error {
	if !p.Enabled() {
		return nil
	}
	if err := p.write(ctx, item.ID, model.CompletedPatch(!item.Completed)); err != nil {
		return fmt.Errorf("toggle %q: %w", item.Text, err)
	}
	return nil
}

// SetQuantity writes n when it differs from the item's quantity. Either
// way the item's draft is dropped so the confirmed value shows again.
func (p *Policy) SetQuantity(ctx context.Context, item model.ListItem, n int) error {
	if !p.Enabled() {
		return nil
	}
	n = model.NormalizeQuantity(float64(n))
	if n == item.Quantity {
		p.clearDraft(item.ID)
		return nil
	}
	if err := p.write(ctx, item.ID, model.QuantityPatch(n)); err != nil {
		return fmt.Errorf("set quantity of %q: %w", item.Text, err)
	}
	p.clearDraft(item.ID)
	return nil
}

func (p *Policy) Increment(ctx context.Context, item model.ListItem) error {
	return p.SetQuantity(ctx, item, item.Quantity+1)
}

func (p *Policy) Decrement(ctx context.Context, item model.ListItem) error {
	return p.SetQuantity(ctx, item, item.Quantity-1)
}

// EditDraft records quantity text being typed for an item.
func (p *Policy) EditDraft(id, text string) {
	p.mu.Lock()
	p.drafts[id] = text
	p.mu.Unlock()
	p.changed()
}

// Draft returns the text being typed for id, if any.
func (p *Policy) Draft(id string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	d, ok := p.drafts[id]
	return d, ok
}

// DiscardDraft abandons an edit; the confirmed quantity shows again.
func (p *Policy) DiscardDraft(id string) {
	p.clearDraft(id)
}

// CommitQuantityDraft parses the item's draft and applies it.
func (p *Policy) CommitQuantityDraft(ctx context.Context, item model.ListItem) error {
	text, ok := p.Draft(item.ID)
	if !ok {
		text = strconv.Itoa(item.Quantity)
	}
	return p.SetQuantity(ctx, item, model.ParseQuantity(text))
}

// Delete marks the item pending and removes it remotely once the delete
// delay has passed. It reports whether a removal was scheduled. A failed
// remote delete is logged and the pending flag cleared anyway; the item
// then stays on the list.
func (p *Policy) Delete(ctx context.Context, id string) bool {
	if !p.Enabled() {
		return false
	}
	p.mu.Lock()
	if _, ok := p.pending[id]; ok {
		p.mu.Unlock()
		return false
	}
	target, ok := p.findLocked(id)
	if !ok {
		p.mu.Unlock()
		return false
	}
	d := &deferredDelete{ctx: context.WithoutCancel(ctx), target: target}
	p.pending[id] = d
	p.inflight.Add(1)
	d.timer = p.clock.AfterFunc(p.delay, func() { p.fire(id, d) })
	p.mu.Unlock()

	p.changed()
	return true
}

// Pending reports whether id is waiting to be removed.
func (p *Policy) Pending(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.pending[id]
	return ok
}

// ClearAll deletes every item in the room after confirm agrees. With no
// items it neither asks nor touches the feed.
func (p *Policy) ClearAll(ctx context.Context, confirm Confirm) error {
	if !p.Enabled() {
		return nil
	}
	p.mu.Lock()
	n := len(p.items)
	p.mu.Unlock()
	if n == 0 || confirm == nil || !confirm(ClearAllPrompt) {
		return nil
	}

	p.mu.Lock()
	for id, d := range p.pending {
		if !d.fired {
			p.cancelLocked(id, d)
		}
	}
	p.mu.Unlock()
	p.changed()

	if err := p.feed.DeleteAll(ctx, p.room); err != nil {
		return fmt.Errorf("clear room %s: %w", p.room, err)
	}
	return nil
}

// Settle waits until every scheduled delete has finished or been
// cancelled.
func (p *Policy) Settle(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		p.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close cancels deletes that have not fired yet.
func (p *Policy) Close() {
	p.mu.Lock()
	for id, d := range p.pending {
		if !d.fired {
			p.cancelLocked(id, d)
		}
	}
	p.mu.Unlock()
}

// CancelledDeletes returns, and forgets, the items whose scheduled delete
// was called off because another client changed them first.
func (p *Policy) CancelledDeletes() []model.ListItem {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := p.cancelled
	p.cancelled = nil
	return out
}

// Items returns a copy of the current list.
func (p *Policy) Items() []model.ListItem {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]model.ListItem(nil), p.items...)
}

// Loading is true until the first snapshot arrives.
func (p *Policy) Loading() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Enabled() && !p.loaded
}

func (p *Policy) Remaining() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return model.Remaining(p.items)
}

func (p *Policy) fire(id string, d *deferredDelete) {
	p.mu.Lock()
	if p.pending[id] != d {
		// cancelled after the timer had already started
		p.mu.Unlock()
		return
	}
	d.fired = true
	p.mu.Unlock()

	ctx, cancel := context.WithTimeout(d.ctx, deleteTimeout)
	err := p.feed.Delete(ctx, p.room, id)
	cancel()
	if err != nil {
		p.log.Warn("delete failed", zap.String("room", p.room), zap.String("item", id), zap.Error(err))
	}

	p.mu.Lock()
	if p.pending[id] == d {
		delete(p.pending, id)
	}
	p.mu.Unlock()
	p.inflight.Done()
	p.changed()
}

// cancelLocked stops a delete that has not fired. Callers hold p.mu.
func (p *Policy) cancelLocked(id string, d *deferredDelete) {
	d.timer.Stop()
	delete(p.pending, id)
	p.inflight.Done()
}

// write sends a patch and remembers it until a snapshot shows it applied.
func (p *Policy) write(ctx context.Context, id string, patch model.Patch) error {
	w := &patch
	p.mu.Lock()
	p.own[id] = append(p.own[id], w)
	p.mu.Unlock()

	err := p.feed.Write(ctx, p.room, id, patch)
	if err != nil {
		p.mu.Lock()
		p.own[id] = slices.DeleteFunc(p.own[id], func(o *model.Patch) bool { return o == w })
		if len(p.own[id]) == 0 {
			delete(p.own, id)
		}
		p.mu.Unlock()
	}
	return err
}

// ownExplainsLocked reports whether applying a prefix of this policy's
// outstanding writes on id to from yields cur.
func (p *Policy) ownExplainsLocked(id string, from, cur model.ListItem) bool {
	it := from
	for _, w := range p.own[id] {
		it = it.Apply(*w)
		if it == cur {
			return true
		}
	}
	return false
}

// pruneOwnLocked forgets writes the snapshot already reflects.
func (p *Policy) pruneOwnLocked(index map[string]model.ListItem) {
	for id, ws := range p.own {
		cur, ok := index[id]
		if !ok {
			delete(p.own, id)
			continue
		}
		ws = slices.DeleteFunc(ws, func(w *model.Patch) bool { return cur.Apply(*w) == cur })
		if len(ws) == 0 {
			delete(p.own, id)
		} else {
			p.own[id] = ws
		}
	}
}

func (p *Policy) findLocked(id string) (model.ListItem, bool) {
	for _, it := range p.items {
		if it.ID == id {
			return it, true
		}
	}
	return model.ListItem{}, false
}

func (p *Policy) findByText(text string) (model.ListItem, bool) {
	key := model.MatchKey(text)
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, it := range p.items {
		if model.MatchKey(it.Text) == key {
			return it, true
		}
	}
	return model.ListItem{}, false
}

func (p *Policy) clearDraft(id string) {
	p.mu.Lock()
	_, had := p.drafts[id]
	delete(p.drafts, id)
	p.mu.Unlock()
	if had {
		p.changed()
	}
}

func (p *Policy) changed() {
	if p.onChange != nil {
		p.onChange()
	}
}
