package scraper

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/maltedev/amazon-product-scraper/internal/models"
	"github.com/maltedev/amazon-product-scraper/internal/parser"
)

type AmazonScraper struct {
	validator Validator
	fetcher   Fetcher
	parser    parser.Parser
	logger    *slog.Logger
}

func NewAmazonScraper(v Validator, f Fetcher, p parser.Parser, logger *slog.Logger) *AmazonScraper {
	return &AmazonScraper{
		validator: v,
		fetcher:   f,
		parser:    p,
		logger:    logger.With("component", "amazon_scraper"),
	}
}

// ScrapeProduct validates url, fetches the page and extracts its record.
func (s *AmazonScraper) ScrapeProduct(ctx context.Context, url string) (*models.ProductRecord, error) {
	if !s.validator.IsValid(url) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidURL, url)
	}

	s.logger.Debug("fetching product page", "url", url)

	html, err := s.fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}

	product, err := s.parser.ParseProductPage(html, url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse product: %w", err)
	}

	s.logger.Info("fetched product data", "url", url, "id", product.ID,
		"hasTitle", product.HasTitle(),
		"hasDescription", product.HasDescription(),
		"imageCount", len(product.ImageURLs),
	)

	return product, nil
}
