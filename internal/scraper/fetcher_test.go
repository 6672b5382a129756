package scraper

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPFetcherFetch(t *testing.T) {
	var gotUserAgent string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserAgent = r.Header.Get("User-Agent")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("<html><body>Hello</body></html>"))
	}))
	defer server.Close()

	fetcher := NewHTTPFetcher(5*time.Second, "test-agent/1.0")
	body, err := fetcher.Fetch(context.Background(), server.URL)

	require.NoError(t, err)
	assert.Equal(t, "<html><body>Hello</body></html>", string(body))
	assert.Equal(t, "test-agent/1.0", gotUserAgent)
}

func TestHTTPFetcherDefaults(t *testing.T) {
	fetcher := NewHTTPFetcher(0, "")

	assert.Equal(t, DefaultUserAgent, fetcher.userAgent)
	assert.Equal(t, DefaultTimeout, fetcher.client.Timeout)
}

func TestHTTPFetcherNonSuccessStatus(t *testing.T) {
	tests := []struct {
		name   string
		status int
	}{
		{"Not found", http.StatusNotFound},
		{"Service unavailable", http.StatusServiceUnavailable},
		{"Redirect without location", http.StatusMultipleChoices},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			fetcher := NewHTTPFetcher(5*time.Second, "")
			_, err := fetcher.Fetch(context.Background(), server.URL)

			require.Error(t, err)
			assert.ErrorIs(t, err, ErrFetch)
			assert.Contains(t, err.Error(), strconv.Itoa(tt.status))
		})
	}
}

func TestHTTPFetcherTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	fetcher := NewHTTPFetcher(2*time.Second, "")
	_, err := fetcher.Fetch(context.Background(), url)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFetch)
}

func TestHTTPFetcherTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	fetcher := NewHTTPFetcher(50*time.Millisecond, "")
	_, err := fetcher.Fetch(context.Background(), server.URL)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFetch)
}

func TestHTTPFetcherOpenStreamsBody(t *testing.T) {
	payload := make([]byte, 100*1024)
	for i := range payload {
		payload[i] = byte(i % 251)
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(payload)
	}))
	defer server.Close()

	fetcher := NewHTTPFetcher(5*time.Second, "")
	body, err := fetcher.Open(context.Background(), server.URL)
	require.NoError(t, err)
	defer body.Close()

	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, payload, data)
}

func TestHTTPFetcherPageSizeLimit(t *testing.T) {
	const title = `<span id="productTitle">Widget</span>`

	tests := []struct {
		name    string
		filler  int
		wantErr bool
	}{
		{"page at the limit", maxPageSize - len(title), false},
		{"page over the limit", 11 * 1024 * 1024, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(strings.Repeat(" ", tt.filler)))
				w.Write([]byte(title))
			}))
			defer server.Close()

			fetcher := NewHTTPFetcher(10*time.Second, "")
			body, err := fetcher.Fetch(context.Background(), server.URL)

			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrFetch)
				assert.Contains(t, err.Error(), "exceeds")
				assert.Nil(t, body)
				return
			}
			require.NoError(t, err)
			assert.Len(t, body, maxPageSize)
			assert.True(t, strings.HasSuffix(string(body), title))
		})
	}
}
