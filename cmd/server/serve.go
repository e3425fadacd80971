package main

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

	"github.com/warp/timeclock-engine/api"
	"github.com/warp/timeclock-engine/generic"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and background jobs",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

// runServe starts the server and blocks until SIGINT/SIGTERM. On shutdown it
// stops accepting connections, waits up to 30s for active requests, stops the
// background jobs and closes the store.
func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.services.TimeOff.EnsureDefaultRules(ctx); err != nil {
		return fmt.Errorf("failed to seed default time-off rules: %w", err)
	}

	handler := api.NewHandler(a.services, a.cfg.Location, generic.SystemClock, a.logger)
	jobs := api.NewJobs(a.services, a.cfg.JobInterval, a.cfg.ReleaseEarlyAttempts, generic.SystemClock, a.logger)
	handler.Jobs = jobs

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", a.cfg.HTTPPort),
		Handler:      api.NewRouter(handler, a.cfg.CORSOrigins),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("server starting", "addr", server.Addr, "timezone", a.cfg.Location.String())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	jobs.Start()
	defer jobs.Stop()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-quit:
	}

	a.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	a.logger.Info("server stopped")
	return nil
}
