package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Makepad-fr/basket/internal/config"
	"github.com/Makepad-fr/basket/internal/room"
	"github.com/Makepad-fr/basket/internal/ui"
)

// NewShareCommand creates the share command.
func NewShareCommand(rootOpts *RootOptions) *cobra.Command {
	var copyLink bool
	cmd := &cobra.Command{
		Use:   "share",
		Short: "Print the link that joins this room",
		Args:  noArgs("share [--copy]"),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := rootOpts.cfg
			if missing := cfg.MissingClientParams(); len(missing) > 0 {
				return notConfigured(missing)
			}
			link := room.ShareLink(cfg.ServerURL, cfg.Room)
			if !copyLink {
				fmt.Fprintln(cmd.OutOrStdout(), link)
				return nil
			}
			if room.CopyLink(cmd.OutOrStdout(), link) {
				ui.OK("link copied")
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&copyLink, "copy", "c", false, "copy the link to the clipboard")
	return cmd
}

// NewRoomCommand creates the room command and its subcommands.
func NewRoomCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "room",
		Short: "Show the current room or start a new one",
		Args:  noArgs("room"),
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), rootOpts.cfg.Room)
			return nil
		},
	}

	var save bool
	newCmd := &cobra.Command{
		Use:   "new",
		Short: "Generate a fresh room id",
		Args:  noArgs("room new [--save]"),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := rootOpts.cfg
			id := room.NewID()
			fmt.Fprintln(cmd.OutOrStdout(), id)
			if cfg.ServerURL != "" {
				fmt.Fprintln(cmd.OutOrStdout(), room.ShareLink(cfg.ServerURL, id))
			}
			if !save {
				return nil
			}
			path := rootOpts.ConfigPath
			if path == "" {
				path = cfg.Path()
			}
			if err := config.Edit(path, func(c *config.Config) { c.Room = id }); err != nil {
				return err
			}
			ui.OK("default room saved to " + path)
			return nil
		},
	}
	newCmd.Flags().BoolVar(&save, "save", false, "make it the default room in the config file")
	cmd.AddCommand(newCmd)
	return cmd
}
