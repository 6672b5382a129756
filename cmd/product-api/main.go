package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/maltedev/amazon-product-scraper/internal/api"
	"github.com/maltedev/amazon-product-scraper/internal/app"
	"github.com/maltedev/amazon-product-scraper/internal/config"
	"github.com/maltedev/amazon-product-scraper/pkg/logger"
)

func main() {
	os.Exit(run())
}

// run serves the API until a shutdown signal arrives and returns the process
// exit code, so deferred cleanup finishes before the process exits.
func run() int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		return 1
	}

	log := logger.New(cfg.Logging.Level, cfg.Logging.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Error("failed to initialize", "error", err)
		return 1
	}
	defer a.Close()

	if a.Relay != nil {
		go func() {
			if err := a.Relay.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("relay stopped with error", "error", err)
			}
		}()
	}

	newRunner := func(outputDir string, downloadImages bool) api.Runner {
		return a.Pipeline(outputDir, downloadImages)
	}

	var outbox api.OutboxCounter
	if a.Outbox != nil {
		outbox = a.Outbox
	}

	handlers := api.NewHandlers(cfg.Scraper.OutputDir, newRunner, outbox, log)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      api.NewRouter(handlers, cfg.Server.WriteTimeout, a.Registry),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.ReadTimeout * 4,
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan

		log.Info("shutting down server...")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("server shutdown failed", "error", err)
		}
	}()

	log.Info("server starting", "port", cfg.Server.Port, "output_dir", cfg.Scraper.OutputDir)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("server failed", "error", err)
		return 1
	}

	log.Info("server stopped")
	return 0
}
