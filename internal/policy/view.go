package policy

import (
	"strconv"

	"github.com/Makepad-fr/basket/internal/model"
)

// Row is a list item with the local overlay applied.
type Row struct {
	model.ListItem
	Pending bool   // removal scheduled; the shell fades the row out
	Editing bool   // a quantity draft is open
	Draft   string // quantity text to show: the draft, or the confirmed value
}

// View is everything the shell needs to draw one frame.
type View struct {
	Rows      []Row
	Remaining int
	Loading   bool
	Enabled   bool
	Room      string
}

func (p *Policy) View() View {
	p.mu.Lock()
	defer p.mu.Unlock()

	v := View{
		Rows:      make([]Row, 0, len(p.items)),
		Remaining: model.Remaining(p.items),
		Loading:   p.Enabled() && !p.loaded,
		Enabled:   p.Enabled(),
		Room:      p.room,
	}
	for _, it := range p.items {
		r := Row{ListItem: it, Draft: strconv.Itoa(it.Quantity)}
		if d, ok := p.drafts[it.ID]; ok {
			r.Draft, r.Editing = d, true
		}
		_, r.Pending = p.pending[it.ID]
		v.Rows = append(v.Rows, r)
	}
	return v
}
