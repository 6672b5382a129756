package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"

	"github.com/maltedev/amazon-product-scraper/internal/models"
	"github.com/maltedev/amazon-product-scraper/internal/scraper"
	"github.com/maltedev/amazon-product-scraper/internal/storage"
	"github.com/maltedev/amazon-product-scraper/pkg/metrics"
)

// ImageDownloader saves a remote file into dir under fileName.
type ImageDownloader interface {
	DownloadBinary(ctx context.Context, url, dir, fileName string) error
}

// SinkFunc receives every record after it has been written to disk.
type SinkFunc func(ctx context.Context, sourceURL string, record *models.ProductRecord) error

// Options controls where and how a run writes its output.
type Options struct {
	OutputDir      string
	DownloadImages bool
	Overwrite      bool
}

// Pipeline scrapes a list of product URLs into numbered item directories.
type Pipeline struct {
	scraper    scraper.Scraper
	downloader ImageDownloader
	sinks      []namedSink
	metrics    *metrics.Metrics
	logger     *slog.Logger
	opts       Options
}

type namedSink struct {
	name string
	fn   SinkFunc
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithSink registers fn under name. Sink failures are logged and do not fail the item.
func WithSink(name string, fn SinkFunc) Option {
	return func(p *Pipeline) {
		p.sinks = append(p.sinks, namedSink{name: name, fn: fn})
	}
}

// WithMetrics counts items and images in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) {
		p.metrics = m
	}
}

// New creates a pipeline over s and d.
func New(s scraper.Scraper, d ImageDownloader, logger *slog.Logger, opts Options, options ...Option) *Pipeline {
	p := &Pipeline{
		scraper:    s,
		downloader: d,
		logger:     logger.With("component", "pipeline"),
		opts:       opts,
	}
	for _, opt := range options {
		opt(p)
	}
	return p
}

// ItemResult is the outcome of one URL. Error is empty on success.
type ItemResult struct {
	Item        int      `json:"item"`
	URL         string   `json:"url"`
	Dir         string   `json:"dir,omitempty"`
	ID          string   `json:"id,omitempty"`
	Images      int      `json:"images"`
	ImageErrors []string `json:"image_errors,omitempty"`
	Error       string   `json:"error,omitempty"`
}

type Summary struct {
	Total     int          `json:"total"`
	Succeeded int          `json:"succeeded"`
	Failed    int          `json:"failed"`
	Items     []ItemResult `json:"items"`
}

// Run processes urls in order, numbering items from 1. A failing item is
// logged and never stops the batch; cancellation is checked between items.
//
// When image downloads fail after the record was written, the item still
// counts as failed, but its Dir and ID are set, the record stays on disk and
// the sinks have already received it. ImageErrors lists each failed image.
func (p *Pipeline) Run(ctx context.Context, urls []string) *Summary {
	summary := &Summary{Items: make([]ItemResult, 0, len(urls))}

	for i, raw := range urls {
		if err := ctx.Err(); err != nil {
			p.logger.Warn("run cancelled", "processed", i, "remaining", len(urls)-i, "error", err)
			break
		}

		result := p.processItem(ctx, i+1, raw)
		summary.Items = append(summary.Items, result)
		p.metrics.IncItem(result.Error == "")
		summary.Total++
		if result.Error == "" {
			summary.Succeeded++
		} else {
			summary.Failed++
		}
	}

	p.logger.Info("run finished",
		"total", summary.Total,
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
	)

	return summary
}

func (p *Pipeline) processItem(ctx context.Context, item int, raw string) (result ItemResult) {
	url := strings.TrimSpace(raw)
	result = ItemResult{Item: item, URL: url}

	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("unexpected failure processing item",
				"item", item,
				"url", url,
				"panic", r,
				"stack", string(debug.Stack()),
			)
			result.Error = fmt.Sprintf("unexpected failure: %v", r)
		}
	}()

	if err := p.process(ctx, &result); err != nil {
		p.logger.Error("failed to fetch product details", "item", item, "url", url, "error", err)
		result.Error = err.Error()
	}

	return result
}

func (p *Pipeline) process(ctx context.Context, result *ItemResult) error {
	record, err := p.scraper.ScrapeProduct(ctx, result.URL)
	if err != nil {
		return err
	}

	if problems := record.Validate(); len(problems) > 0 {
		return fmt.Errorf("invalid record: %s", strings.Join(problems, ", "))
	}

	dir := filepath.Join(p.opts.OutputDir, fmt.Sprintf("item_%d", result.Item))
	if err := storage.CreateDirectory(dir, p.opts.Overwrite); err != nil {
		return fmt.Errorf("failed to create item directory: %w", err)
	}

	path, err := storage.WriteRecord(dir, record)
	if err != nil {
		os.RemoveAll(dir)
		return fmt.Errorf("failed to write product details: %w", err)
	}

	result.Dir = dir
	result.ID = record.ID
	p.logger.Info("wrote product details", "item", result.Item, "url", result.URL, "path", path)

	var imageErrs []error
	if p.opts.DownloadImages {
		result.Images, imageErrs = p.downloadImages(ctx, record.ImageURLs, dir)
		for _, err := range imageErrs {
			result.ImageErrors = append(result.ImageErrors, err.Error())
		}
	}

	p.notifySinks(ctx, result, record)

	return errors.Join(imageErrs...)
}

func (p *Pipeline) downloadImages(ctx context.Context, imageURLs []string, dir string) (int, []error) {
	imagesDir := filepath.Join(dir, storage.ImagesDirName)
	if err := storage.CreateDirectory(imagesDir, false); err != nil {
		return 0, []error{fmt.Errorf("failed to create images directory: %w", err)}
	}

	var errs []error
	downloaded := 0
	for i, imageURL := range imageURLs {
		fileName := imageFileName(i+1, imageURL)

		if err := p.downloader.DownloadBinary(ctx, imageURL, imagesDir, fileName); err != nil {
			p.logger.Warn("failed to download image", "url", imageURL, "file", fileName, "error", err)
			errs = append(errs, fmt.Errorf("image %d: %w", i+1, err))
			p.metrics.IncImage(false)
			continue
		}
		p.metrics.IncImage(true)
		downloaded++
	}

	p.logger.Info("downloaded images", "dir", imagesDir, "downloaded", downloaded, "total", len(imageURLs))

	return downloaded, errs
}

func (p *Pipeline) notifySinks(ctx context.Context, result *ItemResult, record *models.ProductRecord) {
	for _, sink := range p.sinks {
		if err := sink.fn(ctx, result.URL, record); err != nil {
			p.logger.Warn("record sink failed", "sink", sink.name, "item", result.Item, "url", result.URL, "error", err)
		}
	}
}

// imageFileName returns image_<n>.<ext>, or image_<n> when the URL has no
// usable extension (none, or a dot that belongs to the host or a directory).
func imageFileName(n int, imageURL string) string {
	if ext := storage.InferExtension(imageURL); ext != "" && !strings.ContainsAny(ext, `/\`) {
		return fmt.Sprintf("image_%d.%s", n, ext)
	}
	return fmt.Sprintf("image_%d", n)
}
