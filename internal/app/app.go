package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/maltedev/amazon-product-scraper/internal/config"
	"github.com/maltedev/amazon-product-scraper/internal/database"
	"github.com/maltedev/amazon-product-scraper/internal/events"
	"github.com/maltedev/amazon-product-scraper/internal/parser"
	"github.com/maltedev/amazon-product-scraper/internal/pipeline"
	"github.com/maltedev/amazon-product-scraper/internal/scraper"
	"github.com/maltedev/amazon-product-scraper/internal/storage"
	"github.com/maltedev/amazon-product-scraper/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
)

// App holds the components shared by the CLI and the API server.
type App struct {
	cfg        *config.Config
	logger     *slog.Logger
	scraper    *scraper.AmazonScraper
	downloader *storage.Downloader

	DB     *database.DB
	Outbox *database.OutboxRepository
	Relay  *database.Relay

	// Registry gathers the scrape and relay counters for /metrics.
	Registry *prometheus.Registry
	metrics  *metrics.Metrics

	redis     *redis.Client
	publisher *events.Publisher
}

// New builds the scraper stack from cfg and connects to Postgres and Redis
// when they are enabled.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	fetcher := scraper.NewHTTPFetcher(cfg.Scraper.Timeout, cfg.Scraper.UserAgent)
	registry := prometheus.NewRegistry()

	a := &App{
		cfg:      cfg,
		logger:   logger,
		Registry: registry,
		metrics:  metrics.New(registry),
		scraper: scraper.NewAmazonScraper(
			scraper.NewURLValidator(cfg.Scraper.AllowedDomains, logger),
			fetcher,
			parser.NewAmazonParser(parser.WithStableIDs(cfg.Scraper.StableIDs)),
			logger,
		),
		downloader: storage.NewDownloader(fetcher),
	}

	if cfg.Database.Enabled {
		db, err := database.New(ctx, database.Config{
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			Database: cfg.Database.DBName,
			SSLMode:  cfg.Database.SSLMode,
			MaxConns: cfg.Database.MaxConns,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		a.DB = db

		if err := db.EnsureSchema(ctx); err != nil {
			a.Close()
			return nil, err
		}

		a.Outbox = database.NewOutboxRepository(db)
		a.publisher = events.NewPublisher(database.NewRecordRepository(db), logger)
	}

	if cfg.Redis.Enabled {
		a.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})

		if err := a.redis.Ping(ctx).Err(); err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}

		a.Relay = database.NewRelay(a.DB, a.redis, logger, database.RelayConfig{
			Stream:       cfg.Redis.Stream,
			PollInterval: cfg.Redis.RelayInterval,
			BatchSize:    cfg.Redis.RelayBatchSize,
			Metrics:      a.metrics,
		})
	}

	return a, nil
}

// Pipeline returns a pipeline writing into outputDir, with the outbox sink
// attached when a database is configured.
func (a *App) Pipeline(outputDir string, downloadImages bool) *pipeline.Pipeline {
	opts := []pipeline.Option{pipeline.WithMetrics(a.metrics)}
	if a.publisher != nil {
		opts = append(opts, pipeline.WithSink("outbox", a.publisher.PublishProductScraped))
	}

	return pipeline.New(a.scraper, a.downloader, a.logger, pipeline.Options{
		OutputDir:      outputDir,
		DownloadImages: downloadImages,
		Overwrite:      a.cfg.Scraper.Overwrite,
	}, opts...)
}

// Close releases the Redis client and the database pool.
func (a *App) Close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("failed to close redis client", "error", err)
		}
	}
	if a.DB != nil {
		a.DB.Close()
	}
}
