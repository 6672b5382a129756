package scraper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/111.0.0.0 Safari/537.36"
	DefaultTimeout   = 30 * time.Second

	maxPageSize = 10 * 1024 * 1024
)

type HTTPFetcher struct {
	client    *http.Client
	userAgent string
}

func NewHTTPFetcher(timeout time.Duration, userAgent string) *HTTPFetcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}

	return &HTTPFetcher{
		client: &http.Client{
			Timeout: timeout,
		},
		userAgent: userAgent,
	}
}

// Open issues a GET and returns the body for streaming. The caller must close it.
func (f *HTTPFetcher) Open(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request for %s: %w", ErrFetch, url, err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: request %s: %w", ErrFetch, url, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: HTTP %d for %s", ErrFetch, resp.StatusCode, url)
	}

	return resp.Body, nil
}

// Fetch returns the full response body of a successful GET. Pages larger
// than maxPageSize are rejected rather than parsed in part.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	body, err := f.Open(ctx, url)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	data, err := io.ReadAll(io.LimitReader(body, maxPageSize+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read body of %s: %w", ErrFetch, url, err)
	}
	if len(data) > maxPageSize {
		return nil, fmt.Errorf("%w: page of %s exceeds %d bytes", ErrFetch, url, maxPageSize)
	}

	return data, nil
}
