// Package cli is the basket command line: the feed server, one-shot list
// commands and the interactive list.
package cli

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Makepad-fr/basket/internal/config"
	"github.com/Makepad-fr/basket/internal/errs"
	"github.com/Makepad-fr/basket/internal/logging"
	"github.com/Makepad-fr/basket/internal/room"
	"github.com/Makepad-fr/basket/internal/ui"
)

// annotationLogFile routes a command's log to <data_dir>/basket.log.
const annotationLogFile = "basket/log-file"

// RootOptions holds global flags and what PersistentPreRunE builds from
// them.
type RootOptions struct {
	ConfigPath string
	Room       string
	Server     string
	Theme      string
	Verbose    bool
	NoColor    bool

	cfg *config.Config
	log *zap.Logger
}

// NewRootCommand creates the root command for the basket CLI.
func NewRootCommand() *cobra.Command {
	cmd, _ := newRoot()
	return cmd
}

func newRoot() (*cobra.Command, *RootOptions) {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "basket",
		Short: "basket - a shared shopping list",
		Long: `A realtime shopping list shared by everyone in the same room.

Run 'basket serve' somewhere everyone can reach, point clients at it with
server_url (or BASKET_SERVER_URL), and share the room link.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.setup(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			opts.syncLogger()
		},
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "config file (default ~/.basket/config.yaml)")
	cmd.PersistentFlags().StringVarP(&opts.Room, "room", "r", "", "room id or share link")
	cmd.PersistentFlags().StringVar(&opts.Server, "server", "", "feed server URL")
	cmd.PersistentFlags().StringVar(&opts.Theme, "theme", "", "output theme (classic|neon|mono)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "debug logging")
	cmd.PersistentFlags().BoolVar(&opts.NoColor, "no-color", false, "disable colors")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewAddCommand(opts))
	cmd.AddCommand(NewDoneCommand(opts))
	cmd.AddCommand(NewQtyCommand(opts))
	cmd.AddCommand(NewRemoveCommand(opts))
	cmd.AddCommand(NewClearCommand(opts))
	cmd.AddCommand(NewTUICommand(opts))
	cmd.AddCommand(NewShareCommand(opts))
	cmd.AddCommand(NewRoomCommand(opts))
	cmd.AddCommand(NewAuthCommand(opts))
	cmd.AddCommand(NewExportCommand(opts))
	cmd.AddCommand(NewImportCommand(opts))

	return cmd, opts
}

// setup loads the config, applies flags on top and builds the logger.
func (o *RootOptions) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return err
	}
	if o.Room != "" {
		id, err := room.Parse(o.Room)
		if err != nil {
			return err
		}
		cfg.Room = id
	}
	if o.Server != "" {
		cfg.ServerURL = o.Server
	}
	if o.Theme != "" {
		cfg.Theme = o.Theme
	}
	if o.Verbose {
		cfg.Debug = true
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	cfg.Theme = strings.ToLower(strings.TrimSpace(cfg.Theme))
	if !slices.Contains(ui.Themes, cfg.Theme) {
		return errs.Validation(fmt.Sprintf("theme %q: want one of %v", cfg.Theme, ui.Themes))
	}
	o.cfg = cfg

	ui.SetTheme(cfg.Theme)
	if o.NoColor {
		ui.SetColorForcing(false, true)
	}

	lo := logging.Options{Debug: cfg.Debug}
	if _, ok := cmd.Annotations[annotationLogFile]; ok {
		lo.File = logFile(cfg)
	}
	log, err := logging.New(lo)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	o.log = log
	return nil
}

func (o *RootOptions) syncLogger() {
	if o.log != nil {
		_ = o.log.Sync()
	}
}

// logger is safe to call before setup ran.
func (o *RootOptions) logger() *zap.Logger {
	if o.log == nil {
		return zap.NewNop()
	}
	return o.log
}
