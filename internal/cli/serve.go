package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Makepad-fr/basket/internal/config"
	"github.com/Makepad-fr/basket/internal/feed"
	"github.com/Makepad-fr/basket/internal/server"
	"github.com/Makepad-fr/basket/internal/store"
	"github.com/Makepad-fr/basket/internal/store/boltstore"
	"github.com/Makepad-fr/basket/internal/store/sqlitestore"
)

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	var listen, backend string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the feed server that clients share rooms through",
		Long: `Run the feed server.

Items are kept under the data directory, in bbolt (default) or SQLite.
When an API key is configured (api_key or BASKET_API_KEY) every /api
request must carry it as a bearer token.`,
		Args: noArgs("serve [--listen ADDR] [--store bolt|sqlite]"),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := rootOpts.cfg
			if listen != "" {
				cfg.Listen = listen
			}
			if backend != "" {
				cfg.Store = backend
				if err := cfg.Validate(); err != nil {
					return err
				}
			}
			if !cfg.Debug {
				gin.SetMode(gin.ReleaseMode)
			}

			st, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			log := rootOpts.logger()
			log.Info("feed server starting",
				zap.String("store", cfg.Store),
				zap.String("data_dir", cfg.DataDir),
				zap.Bool("api_key", cfg.APIKey != ""),
			)
			srv := server.New(feed.NewLocal(st, log), server.Options{APIKey: cfg.APIKey, Logger: log})
			return srv.Run(cmd.Context(), cfg.Listen)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "listen address (default :8080)")
	cmd.Flags().StringVar(&backend, "store", "", "storage backend (bolt|sqlite)")
	return cmd
}

func openStore(cfg *config.Config) (store.Store, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		return nil, fmt.Errorf("data dir: %w", err)
	}
	switch cfg.Store {
	case "sqlite":
		return sqlitestore.Open(filepath.Join(cfg.DataDir, sqlitestore.FileName))
	default:
		return boltstore.Open(filepath.Join(cfg.DataDir, boltstore.FileName))
	}
}
