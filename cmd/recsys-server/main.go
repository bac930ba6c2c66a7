package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/andrew/hybrid-recsys/pkg/api"
	"github.com/andrew/hybrid-recsys/pkg/app"
	"github.com/andrew/hybrid-recsys/pkg/config"
	"github.com/andrew/hybrid-recsys/pkg/logging"
)

var configPath = flag.String("config", "", "Path to a YAML config file (default: $CONFIG_PATH or ./config.yaml)")

func main() {
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}
	logging.Init(app.LoggingConfig(cfg))

	// Dial the vector store once; it is closed after the HTTP server drains
	deps, err := app.Dial(cfg)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialise dependencies")
	}
	defer func() {
		if err := deps.Close(); err != nil {
			logging.Error().Err(err).Msg("Failed to close vector store")
		}
	}()

	handler := api.NewHandler(deps.Pipeline, deps.Retrieval, api.Options{
		CORSAllowedOrigins: cfg.Server.CORSAllowedOrigins,
		MaxUploadBytes:     cfg.Server.MaxUploadBytes,
	})

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           handler.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Handle interrupts
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serverErr := make(chan error, 1)
	go func() {
		logging.Info().Str("addr", server.Addr).Msg("Starting recommendation service")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			logging.Error().Err(err).Msg("HTTP server error")
		}
	case <-ctx.Done():
		logging.Info().Msg("Shutting down...")
	}

	// Shutdown the server gracefully
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logging.Error().Err(err).Msg("Server shutdown failed")
		return
	}
	logging.Info().Msg("Server stopped")
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFrom(path)
	}
	return config.Load()
}
