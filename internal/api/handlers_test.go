package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/maltedev/amazon-product-scraper/internal/database"
	"github.com/maltedev/amazon-product-scraper/internal/models"
	"github.com/maltedev/amazon-product-scraper/internal/pipeline"
	"github.com/maltedev/amazon-product-scraper/internal/storage"
	"github.com/maltedev/amazon-product-scraper/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// fakeRunner writes one record per URL the way the pipeline lays them out.
type fakeRunner struct {
	t         *testing.T
	outputDir string
	download  bool
	urls      []string
}

func (f *fakeRunner) Run(ctx context.Context, urls []string) *pipeline.Summary {
	f.urls = urls
	summary := &pipeline.Summary{}
	for i := range urls {
		dir := filepath.Join(f.outputDir, fmt.Sprintf("item_%d", i+1))
		require.NoError(f.t, storage.CreateDirectory(dir, true))

		record := models.NewProductRecord(fmt.Sprintf("B00000000%d", i+1))
		record.Title = models.StringPtr("Widget")
		_, err := storage.WriteRecord(dir, record)
		require.NoError(f.t, err)

		summary.Total++
		summary.Succeeded++
		summary.Items = append(summary.Items, pipeline.ItemResult{Item: i + 1, URL: urls[i], Dir: dir, ID: record.ID})
	}
	return summary
}

type MockOutboxCounter struct {
	mock.Mock
}

func (m *MockOutboxCounter) CountByStatus(ctx context.Context, statuses ...string) (int64, error) {
	args := m.Called(ctx, statuses)
	return args.Get(0).(int64), args.Error(1)
}

type testServer struct {
	router http.Handler
	runner *fakeRunner
	output string
}

func newTestServer(t *testing.T, outbox OutboxCounter) *testServer {
	t.Helper()
	ts := &testServer{output: t.TempDir()}

	factory := func(outputDir string, downloadImages bool) Runner {
		ts.runner = &fakeRunner{t: t, outputDir: outputDir, download: downloadImages}
		return ts.runner
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ts.router = NewRouter(NewHandlers(ts.output, factory, outbox, logger), 5*time.Second, nil)
	return ts
}

func (ts *testServer) do(method, path string, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	t.Run("without database", func(t *testing.T) {
		ts := newTestServer(t, nil)

		rec := ts.do(http.MethodGet, "/health", "")

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	})

	t.Run("reports outbox backlog", func(t *testing.T) {
		counter := new(MockOutboxCounter)
		counter.On("CountByStatus", mock.Anything, []string{database.OutboxStatusPending, database.OutboxStatusFailed}).Return(int64(3), nil)
		counter.On("CountByStatus", mock.Anything, []string{database.OutboxStatusDeadLetter}).Return(int64(0), nil)
		ts := newTestServer(t, counter)

		rec := ts.do(http.MethodGet, "/health", "")

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"status":"ok","outbox":{"pending":3,"dead_letter":0}}`, rec.Body.String())
	})

	t.Run("too many dead letters", func(t *testing.T) {
		counter := new(MockOutboxCounter)
		counter.On("CountByStatus", mock.Anything, []string{database.OutboxStatusPending, database.OutboxStatusFailed}).Return(int64(0), nil)
		counter.On("CountByStatus", mock.Anything, []string{database.OutboxStatusDeadLetter}).Return(int64(101), nil)
		ts := newTestServer(t, counter)

		rec := ts.do(http.MethodGet, "/health", "")

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Contains(t, rec.Body.String(), "dead letter")
	})

	t.Run("database error", func(t *testing.T) {
		counter := new(MockOutboxCounter)
		counter.On("CountByStatus", mock.Anything, mock.Anything).Return(int64(0), errors.New("connection refused"))
		ts := newTestServer(t, counter)

		rec := ts.do(http.MethodGet, "/health", "")

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}

func TestScrapeValidation(t *testing.T) {
	blank, _ := json.Marshal(ScrapeRequest{URLs: []string{"", "  ", "\n"}})
	tooMany := ScrapeRequest{}
	for i := 0; i < maxURLsPerRequest+1; i++ {
		tooMany.URLs = append(tooMany.URLs, "https://www.amazon.de/dp/X")
	}
	tooManyBody, _ := json.Marshal(tooMany)

	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"malformed json", `{"urls":`, "invalid request body"},
		{"missing urls", `{}`, "urls is required"},
		{"only blank urls", string(blank), "urls is required"},
		{"too many urls", string(tooManyBody), "at most 100 urls"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, nil)

			rec := ts.do(http.MethodPost, "/api/v1/scrape", tt.body)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.wantErr)
			assert.Nil(t, ts.runner, "pipeline must not run for a rejected request")
		})
	}
}

func TestScrapeAndFetchItem(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(http.MethodPost, "/api/v1/scrape",
		`{"urls":[" https://www.amazon.de/dp/B000000001 ","","https://www.amazon.de/dp/B000000002"],"download_images":true}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ScrapeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.JobID)
	assert.Equal(t, 2, resp.Summary.Succeeded)

	require.NotNil(t, ts.runner)
	assert.True(t, ts.runner.download)
	assert.Equal(t, filepath.Join(ts.output, resp.JobID), ts.runner.outputDir)
	assert.Equal(t, []string{"https://www.amazon.de/dp/B000000001", "https://www.amazon.de/dp/B000000002"}, ts.runner.urls)

	item := ts.do(http.MethodGet, "/api/v1/jobs/"+resp.JobID+"/items/2", "")
	require.Equal(t, http.StatusOK, item.Code)
	assert.Equal(t, "application/json", item.Header().Get("Content-Type"))

	onDisk, err := storage.ReadRecord(filepath.Join(ts.output, resp.JobID, "item_2"))
	require.NoError(t, err)
	expected, err := storage.MarshalRecord(onDisk)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(expected, item.Body.Bytes()), "item must be served exactly as stored")
}

func TestGetItemErrors(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		status int
	}{
		{"malformed job id", "/api/v1/jobs/not-a-uuid/items/1", http.StatusBadRequest},
		{"non numeric item", "/api/v1/jobs/6f1c1d1e-4a43-4f5e-9a43-3b9c1f7b2d10/items/first", http.StatusBadRequest},
		{"zero item", "/api/v1/jobs/6f1c1d1e-4a43-4f5e-9a43-3b9c1f7b2d10/items/0", http.StatusBadRequest},
		{"unknown job", "/api/v1/jobs/6f1c1d1e-4a43-4f5e-9a43-3b9c1f7b2d10/items/1", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, nil)

			rec := ts.do(http.MethodGet, tt.path, "")

			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	t.Run("disabled without a gatherer", func(t *testing.T) {
		ts := newTestServer(t, nil)

		rec := ts.do(http.MethodGet, "/metrics", "")

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("exposes registered counters", func(t *testing.T) {
		reg := prometheus.NewRegistry()
		m := metrics.New(reg)
		m.IncItem(true)
		m.IncEventsRelayed()

		logger := slog.New(slog.NewTextHandler(io.Discard, nil))
		router := NewRouter(NewHandlers(t.TempDir(), nil, nil, logger), 5*time.Second, reg)

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `scraper_items_total{status="succeeded"} 1`)
		assert.Contains(t, rec.Body.String(), "outbox_events_relayed_total 1")
	})
}
