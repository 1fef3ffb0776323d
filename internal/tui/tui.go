// Package tui is the interactive list: a Bubble Tea program drawing the
// policy's view of one room and turning keys into policy operations.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/Makepad-fr/basket/internal/model"
	"github.com/Makepad-fr/basket/internal/policy"
	"github.com/Makepad-fr/basket/internal/room"
)

type Options struct {
	Policy *policy.Policy
	// Changes fires after the policy's view changed; see Notifier.
	Changes   <-chan struct{}
	ShareLink string
	// Missing names unset connection parameters; the list is read-only.
	Missing []string
	// Copy puts the share link on the clipboard. Defaults to the system
	// clipboard.
	Copy func(link string) error
	// Offline reports a dropped feed connection that is being redialled.
	Offline func() bool
}

// Notifier coalesces policy change callbacks into at most one pending
// signal. Pass Notify as policy.Options.OnChange and C as Options.Changes.
type Notifier struct {
	ch chan struct{}
}

func NewNotifier() *Notifier {
	return &Notifier{ch: make(chan struct{}, 1)}
}

func (n *Notifier) Notify() {
	select {
	case n.ch <- struct{}{}:
	default:
	}
}

func (n *Notifier) C() <-chan struct{} { return n.ch }

// Run blocks until the user quits or ctx is cancelled.
func Run(ctx context.Context, opts Options) error {
	p := tea.NewProgram(newModel(ctx, opts), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("tui: %w", err)
	}
	return nil
}

type mode int

const (
	modeList mode = iota
	modeAdd
	modeQuantity
	modeConfirmDelete
	modeConfirmClear
)

type (
	changedMsg struct{}
	opDoneMsg  struct {
		verb string
		err  error
	}
	copiedMsg struct{ err error }
)

type modelTUI struct {
	ctx     context.Context
	pol     *policy.Policy
	changes <-chan struct{}
	share   string
	missing []string
	copy    func(string) error
	offline func() bool

	view policy.View
	list list.Model
	mode mode

	// add form
	text     textinput.Model
	qty      textinput.Model
	focusQty bool
	addErr   string

	// quantity edit and delete confirmation act on target
	target model.ListItem
	edit   textinput.Model

	status    string
	statusErr bool
}

func newModel(ctx context.Context, opts Options) modelTUI {
	l := list.New(nil, itemDelegate{}, 76, 16)
	l.SetShowTitle(false)
	l.SetShowHelp(true)
	l.SetShowPagination(true)
	l.SetShowStatusBar(true)
	l.SetFilteringEnabled(true)
	l.SetStatusBarItemName("item", "items")
	l.Styles.HelpStyle = helpStyle
	l.Styles.PaginationStyle = helpStyle
	l.FilterInput.Prompt = "/ "
	l.AdditionalShortHelpKeys = keys.short
	l.AdditionalFullHelpKeys = keys.short

	m := modelTUI{
		ctx:     ctx,
		pol:     opts.Policy,
		changes: opts.Changes,
		share:   opts.ShareLink,
		missing: opts.Missing,
		copy:    opts.Copy,
		offline: opts.Offline,
		list:    l,
	}
	if m.copy == nil {
		m.copy = room.ToClipboard
	}

	m.text = textinput.New()
	m.text.Prompt = "item> "
	m.text.Placeholder = "What do you need?"
	m.text.CharLimit = 200

	m.qty = textinput.New()
	m.qty.Prompt = "qty> "
	m.qty.Placeholder = "1"
	m.qty.CharLimit = 10

	m.edit = textinput.New()
	m.edit.Prompt = "qty> "
	m.edit.CharLimit = 10

	m.refresh()
	return m
}

func (m modelTUI) Init() tea.Cmd { return m.waitForChange() }

// waitForChange delivers the next policy change as a changedMsg.
func (m modelTUI) waitForChange() tea.Cmd {
	if m.changes == nil {
		return nil
	}
	ch, ctx := m.changes, m.ctx
	return func() tea.Msg {
		select {
		case <-ch:
			return changedMsg{}
		case <-ctx.Done():
			return nil
		}
	}
}

func (m *modelTUI) refresh() {
	m.view = m.pol.View()
	if gone := m.pol.CancelledDeletes(); len(gone) > 0 {
		m.status = fmt.Sprintf("%q was changed by someone else and was not removed", gone[len(gone)-1].Text)
		m.statusErr = true
	}
	items := make([]list.Item, 0, len(m.view.Rows))
	for _, r := range m.view.Rows {
		items = append(items, row{r})
	}
	m.list.SetItems(items)
}

func (m modelTUI) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.list.SetSize(msg.Width-4, msg.Height-8)
		return m, nil
	case changedMsg:
		m.refresh()
		return m, m.waitForChange()
	case opDoneMsg:
		m.setStatus(msg.verb, msg.err)
		m.refresh()
		return m, nil
	case copiedMsg:
		if msg.err != nil {
			m.status, m.statusErr = room.CopyFallbackPrefix+m.share, false
		} else {
			m.status, m.statusErr = "link copied", false
		}
		return m, nil
	case tea.KeyMsg:
		switch m.mode {
		case modeAdd:
			return m.updateAdd(msg)
		case modeQuantity:
			return m.updateQuantity(msg)
		case modeConfirmDelete, modeConfirmClear:
			return m.updateConfirm(msg)
		}
		return m.updateList(msg)
	}
	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m modelTUI) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.list.FilterState() == list.Filtering {
		var cmd tea.Cmd
		m.list, cmd = m.list.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, keys.Share):
		return m, m.copyLink()
	case key.Matches(msg, keys.Add):
		if !m.writable() {
			return m, nil
		}
		m.mode = modeAdd
		m.addErr = ""
		m.focusQty = false
		m.text.SetValue("")
		m.qty.SetValue("1")
		m.qty.Blur()
		return m, m.text.Focus()
	case key.Matches(msg, keys.Clear):
		if !m.writable() || len(m.view.Rows) == 0 {
			return m, nil
		}
		m.mode = modeConfirmClear
		return m, nil
	}

	sel, ok := m.selected()
	if !ok {
		var cmd tea.Cmd
		m.list, cmd = m.list.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, keys.Toggle):
		if !m.writable() {
			return m, nil
		}
		return m, m.op("updated", func(ctx context.Context) error { return m.pol.Toggle(ctx, sel.ListItem) })
	case key.Matches(msg, keys.Inc):
		if !m.writable() {
			return m, nil
		}
		return m, m.op("updated", func(ctx context.Context) error { return m.pol.Increment(ctx, sel.ListItem) })
	case key.Matches(msg, keys.Dec):
		if !m.writable() {
			return m, nil
		}
		return m, m.op("updated", func(ctx context.Context) error { return m.pol.Decrement(ctx, sel.ListItem) })
	case key.Matches(msg, keys.Edit):
		if !m.writable() || sel.Pending {
			return m, nil
		}
		m.mode = modeQuantity
		m.target = sel.ListItem
		m.edit.SetValue(sel.Draft)
		m.edit.CursorEnd()
		return m, m.edit.Focus()
	case key.Matches(msg, keys.Delete):
		if !m.writable() || sel.Pending {
			return m, nil
		}
		m.mode = modeConfirmDelete
		m.target = sel.ListItem
		return m, nil
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m modelTUI) updateAdd(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.mode = modeList
		m.text.Blur()
		m.qty.Blur()
		return m, nil
	case "tab", "shift+tab":
		m.focusQty = !m.focusQty
		if m.focusQty {
			m.text.Blur()
			return m, m.qty.Focus()
		}
		m.qty.Blur()
		return m, m.text.Focus()
	case "enter":
		text, qty := m.text.Value(), m.qty.Value()
		if strings.TrimSpace(text) == "" {
			m.addErr = "Item cannot be empty"
			return m, nil
		}
		m.mode = modeList
		m.text.Blur()
		m.qty.Blur()
		return m, m.op("added", func(ctx context.Context) error { return m.pol.Add(ctx, text, qty) })
	}

	var cmd tea.Cmd
	if m.focusQty {
		m.qty, cmd = m.qty.Update(msg)
	} else {
		m.text, cmd = m.text.Update(msg)
		m.addErr = ""
	}
	return m, cmd
}

func (m modelTUI) updateQuantity(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.mode = modeList
		m.edit.Blur()
		m.pol.DiscardDraft(m.target.ID)
		m.refresh()
		return m, nil
	case "enter":
		m.mode = modeList
		m.edit.Blur()
		target := m.current(m.target)
		return m, m.op("updated", func(ctx context.Context) error { return m.pol.CommitQuantityDraft(ctx, target) })
	}

	var cmd tea.Cmd
	m.edit, cmd = m.edit.Update(msg)
	m.pol.EditDraft(m.target.ID, m.edit.Value())
	m.refresh()
	return m, cmd
}

func (m modelTUI) updateConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y", "Y", "enter":
		confirmed := m.mode
		m.mode = modeList
		if confirmed == modeConfirmDelete {
			m.pol.Delete(m.ctx, m.target.ID)
			m.refresh()
			return m, nil
		}
		return m, m.op("cleared", func(ctx context.Context) error {
			return m.pol.ClearAll(ctx, func(string) bool { return true })
		})
	case "n", "N", "esc", "q":
		m.mode = modeList
	}
	return m, nil
}

// op runs a policy call off the event loop and reports back.
func (m modelTUI) op(verb string, call func(ctx context.Context) error) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		return opDoneMsg{verb: verb, err: call(ctx)}
	}
}

func (m modelTUI) copyLink() tea.Cmd {
	if m.share == "" {
		return nil
	}
	link, cp := m.share, m.copy
	return func() tea.Msg { return copiedMsg{err: cp(link)} }
}

func (m *modelTUI) setStatus(verb string, err error) {
	if err != nil {
		m.status, m.statusErr = err.Error(), true
		return
	}
	m.status, m.statusErr = verb, false
}

func (m modelTUI) writable() bool {
	return m.view.Enabled && len(m.missing) == 0
}

func (m modelTUI) selected() (row, bool) {
	r, ok := m.list.SelectedItem().(row)
	return r, ok
}

// current returns the latest copy of it from the view.
func (m modelTUI) current(it model.ListItem) model.ListItem {
	for _, r := range m.view.Rows {
		if r.ID == it.ID {
			return r.ListItem
		}
	}
	return it
}
