package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Domenick1991/smartaccess/api"
	"github.com/Domenick1991/smartaccess/config"
	"github.com/Domenick1991/smartaccess/internal/logger"
	"github.com/Domenick1991/smartaccess/internal/middleware"
	"github.com/Domenick1991/smartaccess/internal/session"
	"github.com/Domenick1991/smartaccess/internal/web"
	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
)

const (
	shutdownTimeout = 5 * time.Second
	sweepInterval   = time.Minute
)

// NewRouter builds the portal engine: middlewares, templates and routes.
func NewRouter(cfg *config.Config, sessions *session.Registry) (*gin.Engine, error) {
	tmpl, err := web.Templates()
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	limiter := middleware.NewRateLimiter(cfg.HTTP.RateLimit, cfg.HTTP.RateBurst)

	router := gin.New()
	router.Use(
		middleware.AccessLog(),
		middleware.Recover(),
		middleware.CORS("/api/", cfg.HTTP.AllowedOrigins),
		limiter.Limit(),
	)
	router.SetHTMLTemplate(tmpl)

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "sessions": sessions.Len()})
	})

	handler := api.NewPortalHandler(sessions, time.Duration(cfg.Portal.AdminRefreshSeconds)*time.Second)
	root := router.Group("/", handler.Session)
	handler.Register(root, root.Group("/api"))

	return router, nil
}

// Run serves the portal and sweeps idle sessions until ctx is canceled or the
// server fails.
func Run(ctx context.Context, cfg *config.Config, sessions *session.Registry) error {
	router, err := NewRouter(cfg, sessions)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.HTTP.Address,
		Handler:           router,
		ReadHeaderTimeout: time.Duration(cfg.HTTP.ReadHeaderTimeout) * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.FromContext(gctx).Info().Str("address", srv.Addr).Msg("portal listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve http: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return sessions.Run(gctx, sweepInterval)
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	})

	return g.Wait()
}
