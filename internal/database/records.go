package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/maltedev/amazon-product-scraper/internal/models"
)

// StoredRecord is a product record as kept in product_records.
type StoredRecord struct {
	models.ProductRecord
	SourceURL string    `json:"source_url"`
	ScrapedAt time.Time `json:"scraped_at"`
}

type RecordRepository struct {
	db     *DB
	outbox *OutboxRepository
}

func NewRecordRepository(db *DB) *RecordRepository {
	return &RecordRepository{
		db:     db,
		outbox: NewOutboxRepository(db),
	}
}

// SaveWithEvent upserts record by id and, when event is non-nil, queues it
// in the outbox within the same transaction.
func (r *RecordRepository) SaveWithEvent(ctx context.Context, sourceURL string, record *models.ProductRecord, event *OutboxEvent) error {
	imageURLs := record.ImageURLs
	if imageURLs == nil {
		imageURLs = []string{}
	}
	imagesJSON, err := json.Marshal(imageURLs)
	if err != nil {
		return fmt.Errorf("failed to marshal image urls: %w", err)
	}

	return r.db.Transaction(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO product_records (id, source_url, title, description, image_urls, scraped_at)
			VALUES ($1, $2, $3, $4, $5, now())
			ON CONFLICT (id) DO UPDATE SET
				source_url  = EXCLUDED.source_url,
				title       = EXCLUDED.title,
				description = EXCLUDED.description,
				image_urls  = EXCLUDED.image_urls,
				scraped_at  = EXCLUDED.scraped_at`,
			record.ID, sourceURL, record.Title, record.Description, imagesJSON,
		)
		if err != nil {
			return fmt.Errorf("failed to upsert product record: %w", err)
		}

		if event == nil {
			return nil
		}
		return r.outbox.InsertWithTx(ctx, tx, event)
	})
}

func (r *RecordRepository) Get(ctx context.Context, id string) (*StoredRecord, error) {
	var (
		rec        StoredRecord
		imagesJSON []byte
	)

	err := r.db.pool.QueryRow(ctx, `
		SELECT id, source_url, title, description, image_urls, scraped_at
		FROM product_records WHERE id = $1`, id,
	).Scan(&rec.ID, &rec.SourceURL, &rec.Title, &rec.Description, &imagesJSON, &rec.ScrapedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRecordNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product record: %w", err)
	}

	if err := json.Unmarshal(imagesJSON, &rec.ImageURLs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal image urls: %w", err)
	}

	return &rec, nil
}
