package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/maltedev/amazon-product-scraper/internal/database"
	"github.com/maltedev/amazon-product-scraper/internal/pipeline"
	"github.com/maltedev/amazon-product-scraper/internal/storage"
)

const (
	maxURLsPerRequest  = 100
	deadLetterCritical = 100
	pendingWarning     = 1000
)

type Runner interface {
	Run(ctx context.Context, urls []string) *pipeline.Summary
}

// RunnerFactory builds a pipeline writing into outputDir.
type RunnerFactory func(outputDir string, downloadImages bool) Runner

// OutboxCounter reports outbox backlog for the health endpoint.
type OutboxCounter interface {
	CountByStatus(ctx context.Context, statuses ...string) (int64, error)
}

type Handlers struct {
	outputDir string
	newRunner RunnerFactory
	outbox    OutboxCounter
	logger    *slog.Logger
}

// NewHandlers wires the HTTP handlers; outbox may be nil when no database
// is configured.
func NewHandlers(outputDir string, newRunner RunnerFactory, outbox OutboxCounter, logger *slog.Logger) *Handlers {
	return &Handlers{
		outputDir: outputDir,
		newRunner: newRunner,
		outbox:    outbox,
		logger:    logger.With("component", "api"),
	}
}

type ScrapeRequest struct {
	URLs           []string `json:"urls"`
	DownloadImages bool     `json:"download_images"`
}

type ScrapeResponse struct {
	JobID   string            `json:"job_id"`
	Summary *pipeline.Summary `json:"summary"`
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	health := map[string]any{"status": "ok"}
	status := http.StatusOK

	if h.outbox != nil {
		pending, pendingErr := h.outbox.CountByStatus(r.Context(), database.OutboxStatusPending, database.OutboxStatusFailed)
		deadLetter, deadErr := h.outbox.CountByStatus(r.Context(), database.OutboxStatusDeadLetter)
		if err := errors.Join(pendingErr, deadErr); err != nil {
			h.logger.Error("failed to read outbox status", "error", err)
			h.respondJSON(w, http.StatusServiceUnavailable, map[string]any{
				"status":  "error",
				"message": "database unavailable",
			})
			return
		}

		health["outbox"] = map[string]any{
			"pending":     pending,
			"dead_letter": deadLetter,
		}
		if pending > pendingWarning {
			health["status"] = "warning"
			health["message"] = "High number of pending outbox events"
		}
		if deadLetter > deadLetterCritical {
			health["status"] = "error"
			health["message"] = "High number of dead letter events"
			status = http.StatusServiceUnavailable
		}
	}

	h.respondJSON(w, status, health)
}

// Scrape runs the given URLs synchronously into a fresh job directory.
func (h *Handlers) Scrape(w http.ResponseWriter, r *http.Request) {
	var req ScrapeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	urls := make([]string, 0, len(req.URLs))
	for _, u := range req.URLs {
		if u = strings.TrimSpace(u); u != "" {
			urls = append(urls, u)
		}
	}

	if len(urls) == 0 {
		h.respondError(w, http.StatusBadRequest, "urls is required")
		return
	}
	if len(urls) > maxURLsPerRequest {
		h.respondError(w, http.StatusBadRequest, fmt.Sprintf("at most %d urls per request", maxURLsPerRequest))
		return
	}

	jobID := uuid.NewString()
	jobDir := filepath.Join(h.outputDir, jobID)

	h.logger.Info("scrape job started", "job_id", jobID, "urls", len(urls), "download_images", req.DownloadImages)

	summary := h.newRunner(jobDir, req.DownloadImages).Run(r.Context(), urls)

	h.respondJSON(w, http.StatusOK, ScrapeResponse{
		JobID:   jobID,
		Summary: summary,
	})
}

// GetItem serves a stored product-info.json as written to disk.
func (h *Handlers) GetItem(w http.ResponseWriter, r *http.Request) {
	jobID, err := uuid.Parse(chi.URLParam(r, "jobID"))
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid job ID")
		return
	}

	item, err := strconv.Atoi(chi.URLParam(r, "item"))
	if err != nil || item < 1 {
		h.respondError(w, http.StatusBadRequest, "invalid item number")
		return
	}

	path := filepath.Join(h.outputDir, jobID.String(), fmt.Sprintf("item_%d", item), storage.ProductInfoFileName)
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		h.respondError(w, http.StatusNotFound, "item not found")
		return
	}
	if err != nil {
		h.logger.Error("failed to read item", "path", path, "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to read item")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (h *Handlers) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handlers) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
