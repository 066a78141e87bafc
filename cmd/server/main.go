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

	"codeberg.org/anonchat/server/internal/config"
	"codeberg.org/anonchat/server/internal/logger"
)

func NewServerCommand() *cobra.Command {
	var flags config.Flags

	cmd := &cobra.Command{
		Use:   "anonchat-server",
		Short: "Anonymous ephemeral group chat relay",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return run(flags)
		},
	}

	cmd.Flags().StringVarP(&flags.Port, "port", "p", "", "Port to listen on (overrides PORT)")
	cmd.Flags().BoolVarP(&flags.Debug, "debug", "d", false, "Enable debug logging")

	return cmd
}

func run(flags config.Flags) error {
	// load configuration from environment
	cfg, err := config.LoadEnvironmentVariables()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	cfg.ApplyFlags(flags)

	// .env may have changed ENVIRONMENT after the package default was built
	logger.Configure(cfg.Environment, nil)

	if flags.Debug {
		logger.SetLevel(slog.LevelDebug)
	}

	logger.Info("starting anonchat server", "environment", cfg.Environment)

	srv, err := NewServer(cfg)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      srv.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// start websocket hub
	go srv.hub.Run()

	serveErr := make(chan error, 1)

	// start server in goroutine
	go func() {
		logger.Info("server listening", "port", cfg.Port)

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	// wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
	case err := <-serveErr:
		srv.Shutdown()
		return fmt.Errorf("server failed to start: %w", err)
	}

	logger.Info("shutting down server")

	// notify websocket clients and close connections first
	srv.Shutdown()

	// graceful shutdown with 10 second timeout
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	logger.Info("server stopped")

	return nil
}

func main() {
	if err := NewServerCommand().Execute(); err != nil {
		logger.ErrorErr(err, "server exited")
		os.Exit(1)
	}
}
