// Package server is the feed server behind `basket serve`: a JSON API over
// the item store plus a websocket per room that pushes full snapshots.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Makepad-fr/basket/internal/feed"
)

const shutdownTimeout = 5 * time.Second

type Options struct {
	// APIKey, when set, must be presented as a bearer token on /api.
	APIKey string
	Logger *zap.Logger
}

type Server struct {
	feed   *feed.Local
	hub    *Hub
	engine *gin.Engine
	log    *zap.Logger
}

func New(f *feed.Local, opts Options) *Server {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{
		feed: f,
		hub:  NewHub(f, log),
		log:  log,
	}
	s.engine = s.routes(opts.APIKey)
	return s
}

func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) Hub() *Hub { return s.hub }

// Run serves on addr until ctx is cancelled, then drains connections.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.hub.Run(ctx) })
	g.Go(func() error {
		s.log.Info("listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		s.log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func (s *Server) routes(apiKey string) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(s.log))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.SetHTMLTemplate(joinTemplate)
	r.GET("/", s.join)

	api := r.Group("/api", requireAPIKey(apiKey))
	api.GET("/status", s.status)

	rooms := api.Group("/rooms/:room", validRoom())
	rooms.GET("/items", s.listItems)
	rooms.POST("/items", limitBody(maxBodyBytes), s.createItem)
	rooms.DELETE("/items", s.clearItems)
	rooms.PATCH("/items/:id", validItem(), limitBody(maxBodyBytes), s.patchItem)
	rooms.DELETE("/items/:id", validItem(), s.deleteItem)
	rooms.GET("/ws", s.socket)

	r.NoRoute(func(c *gin.Context) {
		abortWithError(c, http.StatusNotFound, "not_found", "no route for "+c.Request.URL.Path)
	})
	return r
}
