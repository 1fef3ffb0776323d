package cli

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Makepad-fr/basket/internal/model"
	"github.com/Makepad-fr/basket/internal/store/jsonstore"
	"github.com/Makepad-fr/basket/internal/ui"
)

const importWorkers = 4

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "export [file]",
		Short: "Write the room's items to a JSON file",
		Args:  maxArgs(1, "export [file]"),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := jsonstore.DefaultFileName
			if len(args) == 1 {
				path = args[0]
			}
			f, err := rootOpts.remote()
			if err != nil {
				return err
			}
			snap, err := f.Snapshot(cmd.Context(), rootOpts.cfg.Room)
			if err != nil {
				return err
			}
			doc := jsonstore.Document{
				Room:       rootOpts.cfg.Room,
				ExportedAt: time.Now().UTC(),
				Items:      snap,
			}
			if err := jsonstore.Save(path, doc); err != nil {
				return err
			}
			ui.OK(fmt.Sprintf("exported %d items to %s", len(snap), path))
			return nil
		},
	}
}

// NewImportCommand creates the import command.
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	var replace bool
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Add the items of an exported JSON file to the room",
		Args:  exactArgs(1, "import [--replace] <file>"),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if _, err := os.Stat(args[0]); errors.Is(err, os.ErrNotExist) {
				return usagef("import: %s does not exist", args[0])
			}
			doc, err := jsonstore.Load(args[0])
			if err != nil {
				return err
			}
			f, err := rootOpts.remote()
			if err != nil {
				return err
			}
			room := rootOpts.cfg.Room
			if replace {
				if err := f.DeleteAll(ctx, room); err != nil {
					return err
				}
			}

			// fresh ids; order comes from createdAt, which is kept
			g, gctx := errgroup.WithContext(ctx)
			g.SetLimit(importWorkers)
			for _, it := range model.Reconcile(doc.Items) {
				item := doc.Items[it.ID]
				g.Go(func() error {
					_, err := f.Create(gctx, room, item)
					return err
				})
			}
			if err := g.Wait(); err != nil {
				return fmt.Errorf("import: %w", err)
			}
			ui.OK(fmt.Sprintf("imported %d items into %s", len(doc.Items), room))
			return nil
		},
	}
	cmd.Flags().BoolVar(&replace, "replace", false, "clear the room first")
	return cmd
}
