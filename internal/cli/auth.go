package cli

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Makepad-fr/basket/internal/auth"
	"github.com/Makepad-fr/basket/internal/errs"
	"github.com/Makepad-fr/basket/internal/feed"
	"github.com/Makepad-fr/basket/internal/ui"
)

// NewAuthCommand creates the auth command and its subcommands.
func NewAuthCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage the API key sent to the feed server",
	}
	cmd.AddCommand(newLoginCommand(rootOpts), newLogoutCommand(rootOpts), newAuthStatusCommand(rootOpts))
	return cmd
}

func newLoginCommand(rootOpts *RootOptions) *cobra.Command {
	var key string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Save an API key",
		Args:  noArgs("auth login [--key KEY]"),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := rootOpts.cfg
			if key == "" {
				fmt.Fprint(cmd.OutOrStdout(), "API key: ")
				line, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				key = strings.TrimSpace(line)
			}
			if key == "" {
				return usagef("auth login: empty API key")
			}

			// check the key against the server when we know one
			if cfg.ServerURL != "" {
				r, err := feed.NewRemote(cfg.ServerURL, key, feed.WithLogger(rootOpts.logger()))
				if err != nil {
					return err
				}
				if _, err := r.Snapshot(cmd.Context(), cfg.Room); err != nil {
					if errs.IsUnauthorized(err) {
						return fmt.Errorf("server rejected the key: %w", err)
					}
					ui.Warn("could not verify the key: " + err.Error())
				}
			}

			if err := rootOpts.credentials().Set(key, cfg.ServerURL); err != nil {
				return err
			}
			ui.OK("logged in (" + auth.Mask(key) + ")")
			return nil
		},
	}
	cmd.Flags().StringVar(&key, "key", "", "API key (prompted when omitted)")
	return cmd
}

func newLogoutCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the saved API key",
		Args:  noArgs("auth logout"),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rootOpts.credentials().Delete(); err != nil {
				return err
			}
			ui.OK("logged out")
			return nil
		},
	}
}

func newAuthStatusCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show which API key is in use",
		Args:  noArgs("auth status"),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if rootOpts.cfg.APIKey != "" {
				fmt.Fprintf(out, "api key %s (config)\n", auth.Mask(rootOpts.cfg.APIKey))
				return nil
			}
			c, err := rootOpts.credentials().Get()
			if err != nil {
				return err
			}
			if c == nil {
				fmt.Fprintln(out, "not logged in")
				return nil
			}
			fmt.Fprintf(out, "api key %s (file)\n", auth.Mask(c.APIKey))
			if c.Server != "" {
				fmt.Fprintf(out, "saved for %s\n", c.Server)
			}
			return nil
		},
	}
}
