package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/maltedev/amazon-product-scraper/internal/database"
	"github.com/maltedev/amazon-product-scraper/internal/models"
)

type EventType string

const (
	// EventTypeProductScraped is published once a record has been written to disk.
	EventTypeProductScraped EventType = "PRODUCT_SCRAPED"
)

type ProductScrapedPayload struct {
	EventID   string                `json:"event_id"`
	EventType string                `json:"event_type"`
	Timestamp time.Time             `json:"timestamp"`
	SourceURL string                `json:"source_url"`
	Record    *models.ProductRecord `json:"record"`
	Source    string                `json:"source"`
}

// RecordStore persists a record together with its outbox event.
type RecordStore interface {
	SaveWithEvent(ctx context.Context, sourceURL string, record *models.ProductRecord, event *database.OutboxEvent) error
}

// Publisher writes records and their PRODUCT_SCRAPED events through the
// transactional outbox; the relay later moves the events onto the stream.
type Publisher struct {
	store  RecordStore
	now    func() time.Time
	logger *slog.Logger
}

func NewPublisher(store RecordStore, logger *slog.Logger) *Publisher {
	return &Publisher{
		store:  store,
		now:    time.Now,
		logger: logger.With("component", "event_publisher"),
	}
}

func (p *Publisher) PublishProductScraped(ctx context.Context, sourceURL string, record *models.ProductRecord) error {
	eventID := uuid.New()
	payload := &ProductScrapedPayload{
		EventID:   eventID.String(),
		EventType: string(EventTypeProductScraped),
		Timestamp: p.now().UTC(),
		SourceURL: sourceURL,
		Record:    record,
		Source:    "scraper",
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	outboxEvent := &database.OutboxEvent{
		ID:          eventID,
		AggregateID: record.ID,
		EventType:   payload.EventType,
		Payload:     data,
		CreatedAt:   payload.Timestamp,
	}

	if err := p.store.SaveWithEvent(ctx, sourceURL, record, outboxEvent); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	p.logger.Info("event published to outbox",
		"type", payload.EventType,
		"event_id", payload.EventID,
		"id", record.ID,
		"url", sourceURL,
	)

	return nil
}
