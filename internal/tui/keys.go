package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Toggle, Inc, Dec, Edit, Add, Delete, Clear, Share, Quit key.Binding
}

var keys = keyMap{
	Toggle: key.NewBinding(key.WithKeys(" ", "x"), key.WithHelp("space", "toggle")),
	Inc:    key.NewBinding(key.WithKeys("+", "="), key.WithHelp("+", "more")),
	Dec:    key.NewBinding(key.WithKeys("-"), key.WithHelp("-", "less")),
	Edit:   key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "quantity")),
	Add:    key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "add")),
	Delete: key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "delete")),
	Clear:  key.NewBinding(key.WithKeys("C"), key.WithHelp("C", "clear all")),
	Share:  key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "copy link")),
	Quit:   key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}

func (k keyMap) short() []key.Binding {
	return []key.Binding{k.Toggle, k.Inc, k.Dec, k.Edit, k.Add, k.Delete, k.Clear, k.Share}
}
