package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/PratikDhanave/event-inbox-service/internal/config"
	"github.com/PratikDhanave/event-inbox-service/internal/events"
	"github.com/PratikDhanave/event-inbox-service/internal/httpserver"
	"github.com/PratikDhanave/event-inbox-service/internal/logging"
	"github.com/PratikDhanave/event-inbox-service/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	// Load runtime config from file, .env and INBOX_* variables.
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	logger := logging.New(cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(logger)
	logger.Info("starting",
		slog.String("service", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("store", cfg.Store.Driver))

	// Connect to the storage backend, provisioning it when configured to.
	backend, err := store.Open(cmd.Context(), cfg.Store, logger)
	if err != nil {
		return err
	}
	defer backend.Close()

	svc := events.NewService(backend, events.Options{
		MaxInboxLimit:    cfg.Events.MaxInboxLimit,
		StatsCap:         cfg.Events.StatsCap,
		AllowUnpersisted: cfg.Events.DevFallbacks,
		StoreTimeout:     cfg.Store.Timeout,
	}, logger)

	ctx, stop := context.WithCancel(cmd.Context())
	defer stop()

	router := httpserver.NewRouter(ctx, cfg, svc, logger)
	srv := httpserver.NewServer(cfg, router)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server started", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case sig := <-quit:
		logger.Info("shutting down", slog.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}
