package scraper

import (
	"context"
	"errors"
	"io"

	"github.com/maltedev/amazon-product-scraper/internal/models"
)

var (
	ErrInvalidURL = errors.New("invalid Amazon URL")
	ErrFetch      = errors.New("fetch failed")
)

type Scraper interface {
	ScrapeProduct(ctx context.Context, url string) (*models.ProductRecord, error)
}

type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
	Open(ctx context.Context, url string) (io.ReadCloser, error)
}

type Validator interface {
	IsValid(url string) bool
}
