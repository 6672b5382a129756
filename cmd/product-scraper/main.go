package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/maltedev/amazon-product-scraper/internal/app"
	"github.com/maltedev/amazon-product-scraper/internal/config"
	"github.com/maltedev/amazon-product-scraper/internal/storage"
	"github.com/maltedev/amazon-product-scraper/pkg/logger"
)

const relayDrainTimeout = 30 * time.Second

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		return 1
	}

	opts, err := parseFlags(args, cfg.Scraper.OutputDir, os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	log := logger.New(cfg.Logging.Level, cfg.Logging.Format)

	urls := []string{opts.URL}
	if opts.URLList != "" {
		urls, err = storage.ReadLines(opts.URLList)
		if err != nil {
			log.Error("failed to read URL list", "path", opts.URLList, "error", err)
			return 1
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Error("failed to initialize", "error", err)
		return 1
	}
	defer a.Close()

	log.Info("starting product scraper",
		"urls", len(urls),
		"output_dir", opts.OutputDir,
		"download_images", opts.DownloadImage,
	)

	summary := a.Pipeline(opts.OutputDir, opts.DownloadImage).Run(ctx, urls)

	if a.Relay != nil {
		drainCtx, cancel := context.WithTimeout(context.Background(), relayDrainTimeout)
		defer cancel()

		published, err := a.Relay.Drain(drainCtx)
		if err != nil {
			log.Error("failed to relay outbox events", "published", published, "error", err)
		} else {
			log.Info("relayed outbox events", "published", published)
		}
	}

	log.Info("scraping completed",
		"total", summary.Total,
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
	)

	return 0
}
