package parser

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/google/uuid"
	"github.com/maltedev/amazon-product-scraper/internal/models"
	"golang.org/x/net/html"
)

// galleryMarker identifies the script that bootstraps the image carousel.
const galleryMarker = "ImageBlockATF"

// AmazonParser extracts product records from Amazon product pages.
type AmazonParser struct {
	asinSelector        cascadia.Selector
	titleSelector       cascadia.Selector
	descriptionSelector cascadia.Selector
	imageBlockSelector  cascadia.Selector
	scriptSelector      cascadia.Selector
	hiResPattern        *regexp.Regexp
	stableIDs           bool
}

// Option configures an AmazonParser.
type Option func(*AmazonParser)

// WithStableIDs derives the fallback identifier from the source URL instead
// of generating a random one, so re-runs produce the same id.
func WithStableIDs(enabled bool) Option {
	return func(p *AmazonParser) { p.stableIDs = enabled }
}

// NewAmazonParser creates a parser with its selectors compiled once.
func NewAmazonParser(opts ...Option) *AmazonParser {
	p := &AmazonParser{
		asinSelector:        cascadia.MustCompile("input#ASIN"),
		titleSelector:       cascadia.MustCompile("#productTitle"),
		descriptionSelector: cascadia.MustCompile("#feature-bullets"),
		imageBlockSelector:  cascadia.MustCompile("#imageBlock_feature_div"),
		scriptSelector:      cascadia.MustCompile("script"),
		hiResPattern:        regexp.MustCompile(`"hiRes":"(.*?)",`),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ParseProductPage builds a record from a page snapshot. Missing fields are
// never an error; only unreadable input is.
func (p *AmazonParser) ParseProductPage(body []byte, sourceURL string) (*models.ProductRecord, error) {
	root, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	doc := goquery.NewDocumentFromNode(root)

	product := models.NewProductRecord(p.extractID(doc, sourceURL))
	product.Title = p.extractText(doc, p.titleSelector)
	product.Description = p.extractText(doc, p.descriptionSelector)
	product.ImageURLs = p.extractImages(doc)

	return product, nil
}

func (p *AmazonParser) extractID(doc *goquery.Document, sourceURL string) string {
	if value, exists := doc.FindMatcher(p.asinSelector).First().Attr("value"); exists {
		if asin := strings.TrimSpace(value); asin != "" {
			return asin
		}
	}

	if p.stableIDs && sourceURL != "" {
		return uuid.NewSHA1(uuid.NameSpaceURL, []byte(sourceURL)).String()
	}
	return uuid.New().String()
}

func (p *AmazonParser) extractText(doc *goquery.Document, selector cascadia.Selector) *string {
	sel := doc.FindMatcher(selector).First()
	if sel.Length() == 0 {
		return nil
	}
	return models.StringPtr(strings.TrimSpace(sel.Text()))
}

func (p *AmazonParser) extractImages(doc *goquery.Document) []string {
	images := make([]string, 0)

	block := doc.FindMatcher(p.imageBlockSelector).First()
	if block.Length() == 0 {
		return images
	}

	block.FindMatcher(p.scriptSelector).Each(func(i int, s *goquery.Selection) {
		script := s.Text()
		if !strings.Contains(script, galleryMarker) {
			return
		}
		for _, match := range p.hiResPattern.FindAllStringSubmatch(script, -1) {
			images = append(images, match[1])
		}
	})

	return images
}
