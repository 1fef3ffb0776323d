package cli

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"

	"github.com/Makepad-fr/basket/internal/feed"
	"github.com/Makepad-fr/basket/internal/room"
	"github.com/Makepad-fr/basket/internal/tui"
)

// NewTUICommand creates the tui command.
func NewTUICommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:         "tui",
		Short:       "Open the interactive list",
		Args:        noArgs("tui"),
		Annotations: map[string]string{annotationLogFile: ""},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg := rootOpts.cfg
			missing := cfg.MissingClientParams()

			n := tui.NewNotifier()
			var offline atomic.Bool
			var f feed.Feed
			if len(missing) == 0 {
				r, err := rootOpts.remote(feed.WithConnState(func(up bool) {
					offline.Store(!up)
					n.Notify()
				}))
				if err != nil {
					return err
				}
				f = r
			}

			pol := rootOpts.newPolicy(f, n.Notify)
			defer pol.Close()
			unsub, err := pol.Subscribe(ctx)
			if err != nil {
				return err
			}
			defer unsub()

			var link string
			if cfg.ServerURL != "" {
				link = room.ShareLink(cfg.ServerURL, cfg.Room)
			}
			err = tui.Run(ctx, tui.Options{
				Policy:    pol,
				Changes:   n.C(),
				ShareLink: link,
				Missing:   missing,
				Offline:   offline.Load,
			})

			// let deletes confirmed just before quitting go through
			settleCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = pol.Settle(settleCtx)
			return err
		},
	}
}
