package database

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/maltedev/amazon-product-scraper/pkg/metrics"
	"github.com/redis/go-redis/v9"
)

// RedisClient is the subset of *redis.Client the relay needs.
type RedisClient interface {
	XAdd(ctx context.Context, args *redis.XAddArgs) *redis.StringCmd
}

type OutboxRepo interface {
	GetPending(ctx context.Context, limit int) ([]*OutboxEvent, error)
	MarkProcessed(ctx context.Context, id uuid.UUID) error
	MarkFailed(ctx context.Context, id uuid.UUID, err error) error
}

// Relay moves events from the outbox table onto a Redis stream.
type Relay struct {
	redis     RedisClient
	outbox    OutboxRepo
	stream    string
	logger    *slog.Logger
	interval  time.Duration
	batchSize int
	metrics   *metrics.Metrics
}

type RelayConfig struct {
	Stream       string
	PollInterval time.Duration
	BatchSize    int
	Metrics      *metrics.Metrics
}

// NewRelay creates a new relay instance
func NewRelay(db *DB, redisClient RedisClient, logger *slog.Logger, config RelayConfig) *Relay {
	return newRelay(NewOutboxRepository(db), redisClient, logger, config)
}

func newRelay(outbox OutboxRepo, redisClient RedisClient, logger *slog.Logger, config RelayConfig) *Relay {
	if config.PollInterval == 0 {
		config.PollInterval = 5 * time.Second
	}
	if config.BatchSize == 0 {
		config.BatchSize = 100
	}
	if config.Stream == "" {
		config.Stream = "stream:product_records"
	}

	return &Relay{
		redis:     redisClient,
		outbox:    outbox,
		stream:    config.Stream,
		logger:    logger.With("component", "relay"),
		interval:  config.PollInterval,
		batchSize: config.BatchSize,
		metrics:   config.Metrics,
	}
}

// Start polls the outbox until ctx is cancelled.
func (r *Relay) Start(ctx context.Context) error {
	r.logger.Info("starting relay",
		"stream", r.stream,
		"interval", r.interval,
		"batch_size", r.batchSize)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		if _, err := r.processEvents(ctx); err != nil {
			r.logger.Error("failed to process events", "error", err)
		}

		select {
		case <-ctx.Done():
			r.logger.Info("relay stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Drain publishes batches until the outbox has nothing ready or a batch
// makes no progress, and returns the number of events published.
func (r *Relay) Drain(ctx context.Context) (int, error) {
	total := 0
	for {
		published, err := r.processEvents(ctx)
		total += published
		if err != nil {
			return total, err
		}
		if published == 0 {
			return total, nil
		}
	}
}

func (r *Relay) processEvents(ctx context.Context) (int, error) {
	events, err := r.outbox.GetPending(ctx, r.batchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to get pending events: %w", err)
	}

	if len(events) == 0 {
		return 0, nil
	}

	r.logger.Debug("processing events", "count", len(events))

	published := 0
	for _, event := range events {
		if err := r.processEvent(ctx, event); err != nil {
			r.logger.Error("failed to process event",
				"event_id", event.ID,
				"aggregate_id", event.AggregateID,
				"error", err)
			continue
		}
		published++
	}

	return published, nil
}

func (r *Relay) processEvent(ctx context.Context, event *OutboxEvent) error {
	if err := r.publish(ctx, event); err != nil {
		r.metrics.IncRelayFailures()
		if markErr := r.outbox.MarkFailed(ctx, event.ID, err); markErr != nil {
			r.logger.Error("failed to mark event as failed",
				"event_id", event.ID,
				"error", markErr)
		}
		return err
	}

	if err := r.outbox.MarkProcessed(ctx, event.ID); err != nil {
		return err
	}
	r.metrics.IncEventsRelayed()

	r.logger.Info("event relayed",
		"event_id", event.ID,
		"event_type", event.EventType,
		"aggregate_id", event.AggregateID,
		"stream", r.stream)

	return nil
}

func (r *Relay) publish(ctx context.Context, event *OutboxEvent) error {
	envelope := map[string]any{
		"id":           event.ID.String(),
		"type":         event.EventType,
		"aggregate_id": event.AggregateID,
		"timestamp":    event.CreatedAt.Format(time.RFC3339),
		"payload":      event.Payload,
		"metadata": map[string]any{
			"source":      "product-scraper",
			"retry_count": event.RetryCount,
		},
	}

	data, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("failed to marshal stream data: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: r.stream,
		Values: map[string]any{
			"data":         string(data),
			"event_type":   event.EventType,
			"event_id":     event.ID.String(),
			"aggregate_id": event.AggregateID,
			"timestamp":    strconv.FormatInt(event.CreatedAt.UnixNano(), 10),
		},
	}

	if err := r.redis.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("failed to publish to redis: %w", err)
	}

	return nil
}
