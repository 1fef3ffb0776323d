package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Makepad-fr/basket/internal/model"
	"github.com/Makepad-fr/basket/internal/ui"
)

const settleTimeout = 15 * time.Second

func noArgs(name string) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) != 0 {
			return usagef("usage: basket %s", name)
		}
		return nil
	}
}

func exactArgs(n int, usage string) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) != n {
			return usagef("usage: basket %s", usage)
		}
		return nil
	}
}

func minArgs(n int, usage string) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) < n {
			return usagef("usage: basket %s", usage)
		}
		return nil
	}
}

// NewAddCommand creates the add command.
func NewAddCommand(rootOpts *RootOptions) *cobra.Command {
	var qty string
	cmd := &cobra.Command{
		Use:   "add <text...>",
		Short: "Add an item, or raise its quantity when it is already listed",
		Args:  minArgs(1, "add [-q N] <text...>"),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.TrimSpace(strings.Join(args, " "))
			if text == "" {
				return usagef("add: empty item")
			}
			pol, err := rootOpts.openList(cmd.Context())
			if err != nil {
				return err
			}
			if err := pol.Add(cmd.Context(), text, qty); err != nil {
				return err
			}
			ui.OK(fmt.Sprintf("added %s ×%d", text, model.ParseQuantity(qty)))
			return nil
		},
	}
	cmd.Flags().StringVarP(&qty, "quantity", "q", "1", "how many")
	return cmd
}

// NewDoneCommand creates the done command.
func NewDoneCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "done <index|text>",
		Short: "Toggle an item between to buy and done",
		Args:  exactArgs(1, "done <index|text>"),
		RunE: func(cmd *cobra.Command, args []string) error {
			pol, err := rootOpts.openList(cmd.Context())
			if err != nil {
				return err
			}
			it, err := resolveItem(pol.Items(), args[0])
			if err != nil {
				return err
			}
			if err := pol.Toggle(cmd.Context(), it); err != nil {
				return err
			}
			state := "done"
			if it.Completed {
				state = "to buy"
			}
			ui.OK(fmt.Sprintf("%s marked %s", it.Text, state))
			return nil
		},
	}
}

// NewQtyCommand creates the qty command.
func NewQtyCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "qty <index|text> <N|+|->",
		Short: "Set an item's quantity, or step it with + and -",
		Args:  exactArgs(2, "qty <index|text> <N|+|->"),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			pol, err := rootOpts.openList(ctx)
			if err != nil {
				return err
			}
			it, err := resolveItem(pol.Items(), args[0])
			if err != nil {
				return err
			}
			switch args[1] {
			case "+":
				err = pol.Increment(ctx, it)
			case "-":
				err = pol.Decrement(ctx, it)
			default:
				pol.EditDraft(it.ID, args[1])
				err = pol.CommitQuantityDraft(ctx, it)
			}
			if err != nil {
				return err
			}
			if err := pol.Refresh(ctx); err != nil {
				return err
			}
			if now, err := resolveItemByID(pol.Items(), it.ID); err == nil {
				it = now
			}
			ui.OK(fmt.Sprintf("%s ×%d", it.Text, it.Quantity))
			return nil
		},
	}
}

// NewRemoveCommand creates the rm command.
func NewRemoveCommand(rootOpts *RootOptions) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "rm <index|text>",
		Short: "Delete an item for everyone in the room",
		Args:  exactArgs(1, "rm [--yes] <index|text>"),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			pol, err := rootOpts.openList(ctx)
			if err != nil {
				return err
			}
			defer pol.Close()

			it, err := resolveItem(pol.Items(), args[0])
			if err != nil {
				return err
			}
			prompt := fmt.Sprintf("%q will be removed for everyone.", it.Text)
			if !yes && !confirm(cmd.InOrStdin(), cmd.OutOrStdout(), prompt+" Continue?") {
				ui.Warn("cancelled")
				return nil
			}

			pol.Delete(ctx, it.ID)
			settleCtx, cancel := context.WithTimeout(ctx, settleTimeout)
			defer cancel()
			if err := pol.Settle(settleCtx); err != nil {
				return err
			}
			// failed deletes are only logged by the policy; check the room
			if err := pol.Refresh(ctx); err != nil {
				return err
			}
			if _, err := resolveItemByID(pol.Items(), it.ID); err == nil {
				return fmt.Errorf("could not remove %q", it.Text)
			}
			ui.OK("removed " + it.Text)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	return cmd
}

// NewClearCommand creates the clear command.
func NewClearCommand(rootOpts *RootOptions) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every item in the room",
		Args:  noArgs("clear [--yes]"),
		RunE: func(cmd *cobra.Command, args []string) error {
			pol, err := rootOpts.openList(cmd.Context())
			if err != nil {
				return err
			}
			if len(pol.Items()) == 0 {
				ui.OK("the list is already empty")
				return nil
			}
			cleared := false
			err = pol.ClearAll(cmd.Context(), func(prompt string) bool {
				cleared = yes || confirm(cmd.InOrStdin(), cmd.OutOrStdout(), prompt)
				return cleared
			})
			if err != nil {
				return err
			}
			if !cleared {
				ui.Warn("cancelled")
				return nil
			}
			ui.OK("cleared")
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	return cmd
}

func resolveItemByID(items []model.ListItem, id string) (model.ListItem, error) {
	for _, it := range items {
		if it.ID == id {
			return it, nil
		}
	}
	return model.ListItem{}, fmt.Errorf("item %s is gone", id)
}

func maxArgs(n int, usage string) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) > n {
			return usagef("usage: basket %s", usage)
		}
		return nil
	}
}
