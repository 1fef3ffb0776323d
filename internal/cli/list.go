package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Makepad-fr/basket/internal/model"
	"github.com/Makepad-fr/basket/internal/ui"
)

// NewListCommand creates the ls command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	var group bool
	cmd := &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List the room's items",
		Args:    noArgs("ls"),
		RunE: func(cmd *cobra.Command, args []string) error {
			pol, err := rootOpts.openList(cmd.Context())
			if err != nil {
				return err
			}
			ui.Panel(listLines(rootOpts.cfg.Room, pol.Items(), group))
			return nil
		},
	}
	cmd.Flags().BoolVar(&group, "group", false, "group output by to buy/done")
	return cmd
}

func listLines(room string, items []model.ListItem, group bool) []string {
	t := ui.Current()
	remaining := model.Remaining(items)
	done := len(items) - remaining

	header := fmt.Sprintf("%s  %s   %s %d remaining  %s %d",
		ui.C(t.Title, "Basket"),
		ui.C(t.Accent, "room "+room),
		ui.C(t.Pending, t.SymRemaining), remaining,
		ui.C(t.Accent, "Total"), len(items),
	)

	lines := []string{header, ui.C(t.Muted, ui.ProgressBar(done, len(items), 28)), ""}
	if group {
		lines = append(lines, groupLines(items)...)
	} else {
		lines = append(lines, flatLines(items, nil)...)
	}
	lines = append(lines, "", ui.C(t.Muted, "Tip: add with `basket add -q 2 \"Coffee\"`"))
	return lines
}

// flatLines numbers items by their position in all, so indexes match
// what done/qty/rm expect even in grouped output. A nil all means items.
func flatLines(items, all []model.ListItem) []string {
	t := ui.Current()
	if len(items) == 0 {
		return []string{ui.C(t.Muted, "no items")}
	}
	if all == nil {
		all = items
	}
	pos := make(map[string]int, len(all))
	for i, it := range all {
		pos[it.ID] = i + 1
	}

	out := make([]string, 0, len(items))
	for _, it := range items {
		box, color := t.BoxUnchecked, t.Muted
		text := ui.Truncate(it.Text, 60)
		if it.Completed {
			box, color = t.BoxChecked, t.Success
			text = ui.C(t.Done, text)
		}
		out = append(out, fmt.Sprintf("%s %s %s %s",
			ui.C(t.Muted, fmt.Sprintf("%2d.", pos[it.ID])),
			ui.C(color, box),
			text,
			ui.C(t.Muted, fmt.Sprintf("%s%d", t.QtyPrefix, it.Quantity)),
		))
	}
	return out
}

func groupLines(items []model.ListItem) []string {
	t := ui.Current()
	var todo, done []model.ListItem
	for _, it := range items {
		if it.Completed {
			done = append(done, it)
		} else {
			todo = append(todo, it)
		}
	}
	var lines []string
	lines = append(lines, ui.C(t.Accent, "To buy"))
	if len(todo) == 0 {
		lines = append(lines, ui.C(t.Muted, "(none)"))
	} else {
		lines = append(lines, flatLines(todo, items)...)
	}
	lines = append(lines, "")
	lines = append(lines, ui.C(t.Accent, "Done"))
	if len(done) == 0 {
		lines = append(lines, ui.C(t.Muted, "(none)"))
	} else {
		lines = append(lines, flatLines(done, items)...)
	}
	return lines
}
