package tui

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/Makepad-fr/basket/internal/policy"
	"github.com/Makepad-fr/basket/internal/ui"
)

// row adapts policy.Row to list.Item.
type row struct {
	policy.Row
}

func (r row) Title() string       { return r.Text }
func (r row) Description() string { return "" }
func (r row) FilterValue() string { return r.Text }

// itemDelegate draws one line per item.
type itemDelegate struct{}

func (d itemDelegate) Height() int                         { return 1 }
func (d itemDelegate) Spacing() int                        { return 0 }
func (d itemDelegate) Update(tea.Msg, *list.Model) tea.Cmd { return nil }
func (d itemDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	r, ok := item.(row)
	if !ok {
		return
	}
	fmt.Fprintln(w, renderRow(r, index == m.Index()))
}

func renderRow(r row, selected bool) string {
	box := mutedStyle.Render(boxUnchecked)
	text := r.Text
	if r.Completed {
		box = successStyle.Render(boxChecked)
		text = doneStyle.Render(text)
	}

	qty := mutedStyle.Render(fmt.Sprintf("×%d", r.Quantity))
	if r.Editing {
		qty = draftStyle.Render("×" + r.Draft)
	}

	line := fmt.Sprintf("%s %s  %s", box, text, qty)
	if r.Pending {
		line = deletingStyle.Render(fmt.Sprintf("%s %s  ×%d  removing", boxUnchecked, r.Text, r.Quantity))
	}

	prefix := "  "
	if selected {
		prefix = selectedStyle.Render("> ")
	}
	return prefix + line
}

func (m modelTUI) View() string {
	var b strings.Builder
	b.WriteString(m.header())
	b.WriteString("\n")

	if notice := m.notice(); notice != "" {
		b.WriteString(errorStyle.Render(notice))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	switch {
	case m.view.Loading:
		b.WriteString(mutedStyle.Render("Syncing..."))
	case len(m.view.Rows) == 0:
		b.WriteString(mutedStyle.Render("Nothing on the list yet. Press a to add an item."))
	default:
		b.WriteString(m.list.View())
	}

	switch m.mode {
	case modeAdd:
		title := "Add item (tab switches field)"
		if m.addErr != "" {
			title += "  " + errorStyle.Render(m.addErr)
		}
		b.WriteString("\n" + dialogStyle.Render(title+"\n"+m.text.View()+"\n"+m.qty.View()))
	case modeQuantity:
		b.WriteString("\n" + dialogStyle.Render(fmt.Sprintf("Quantity of %q\n%s", m.target.Text, m.edit.View())))
	case modeConfirmDelete:
		b.WriteString("\n" + dialogStyle.Render(fmt.Sprintf("Delete item?\n%q will be removed for everyone.\n\n[y] delete  [n] cancel", m.target.Text)))
	case modeConfirmClear:
		b.WriteString("\n" + dialogStyle.Render(policy.ClearAllPrompt+"\n\n[y] clear  [n] cancel"))
	}

	if m.status != "" {
		style := mutedStyle
		if m.statusErr {
			style = errorStyle
		}
		b.WriteString("\n" + style.Render(m.status))
	}
	return frameStyle.Render(b.String())
}

func (m modelTUI) header() string {
	title := titleStyle.Render("Basket") + "  " + accentStyle.Render("room "+m.view.Room)
	if m.view.Loading || !m.view.Enabled {
		return title
	}
	done := len(m.view.Rows) - m.view.Remaining
	return fmt.Sprintf("%s   %s %d remaining   %s",
		title,
		pendingStyle.Render("•"), m.view.Remaining,
		mutedStyle.Render(ui.ProgressBar(done, len(m.view.Rows), 16)),
	)
}

func (m modelTUI) notice() string {
	if len(m.missing) > 0 {
		return "Not connected: set " + strings.Join(m.missing, ", ") + ". The list is read-only."
	}
	if !m.view.Enabled {
		return "No room selected. The list is read-only."
	}
	if m.offline != nil && m.offline() {
		return "Connection lost. Reconnecting..."
	}
	return ""
}
