// Package dashboard serves the read-only local operator API: sync-job
// history, pipeline status, and a health probe. It binds to localhost
// only and never mutates pipeline state.
package dashboard

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/timedock/internal/audit"
	"github.com/zulandar/timedock/internal/session"
	"github.com/zulandar/timedock/internal/syncer"
	"gorm.io/gorm"
)

// StartOpts holds configuration for the dashboard server.
type StartOpts struct {
	DB         *gorm.DB
	Trail      *audit.Trail
	Controller *session.Controller
	Engine     *syncer.Engine
	Port       int
}

// Start launches the dashboard HTTP server. It blocks until ctx is
// cancelled, then shuts down gracefully.
func Start(ctx context.Context, opts StartOpts) error {
	if opts.DB == nil {
		return fmt.Errorf("dashboard: db is required")
	}
	if opts.Trail == nil {
		return fmt.Errorf("dashboard: audit trail is required")
	}
	if opts.Port <= 0 {
		opts.Port = 8417
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	registerRoutes(router, opts)

	srv := &http.Server{
		Addr:    fmt.Sprintf("127.0.0.1:%d", opts.Port),
		Handler: router,
	}

	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("dashboard: %w", err)
	}
	return nil
}
