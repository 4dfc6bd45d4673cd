package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/yegors/flightbrief/internal/api"
	"github.com/yegors/flightbrief/pkg/logger"
)

const shutdownTimeout = 15 * time.Second

func newServeCmd(version string, load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the briefing HTTP server",
		Long: `Starts the HTTP server.

Endpoints:
  POST /api/analyze          Briefing for {icao, plane_size}
  GET  /api/system-status    Public banner
  GET  /api/health           Liveness
  GET  /api/admin/...        Logs, stats, settings and the live feed (bearer token)`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}

			log, err := newLogger(cfg.Logging)
			if err != nil {
				return err
			}
			defer log.Sync()

			log.Info("Starting flightbrief server",
				logger.String("version", version),
				logger.String("cache_backend", cfg.Storage.CacheBackend),
				logger.String("rate_backend", cfg.Storage.RateBackend),
				logger.String("provider", cfg.Analysis.Provider))

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			app, err := buildApp(ctx, cfg, log)
			if err != nil {
				log.Error("Failed to initialize", logger.Error(err))
				return err
			}
			defer app.close()

			feedCtx, stopFeed := context.WithCancel(context.Background())
			defer stopFeed()
			go app.feed.Run(feedCtx)

			router := api.NewRouter(app.handler, cfg.Server, log)
			server := &http.Server{
				Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
				Handler:      router.Routes(),
				ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSecs) * time.Second,
				WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSecs) * time.Second,
				IdleTimeout:  time.Duration(cfg.Server.IdleTimeoutSecs) * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				log.Info("Starting HTTP server", logger.String("addr", server.Addr))
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				if err != nil {
					log.Error("HTTP server error", logger.String("addr", server.Addr), logger.Error(err))
					return err
				}
			case <-ctx.Done():
			}

			log.Info("Shutting down server...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()

			if err := server.Shutdown(shutdownCtx); err != nil {
				log.Error("HTTP server shutdown error", logger.Error(err))
			} else {
				log.Info("HTTP server shutdown complete")
			}
			stopFeed()

			log.Info("Server stopped")
			return nil
		},
	}
}
