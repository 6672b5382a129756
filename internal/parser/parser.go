package parser

import (
	"github.com/maltedev/amazon-product-scraper/internal/models"
)

type Parser interface {
	ParseProductPage(html []byte, sourceURL string) (*models.ProductRecord, error)
}
