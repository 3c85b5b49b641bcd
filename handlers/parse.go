package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/averyholt/descentbackend/parser"
	"github.com/averyholt/descentbackend/repository"
	"github.com/averyholt/descentbackend/workers"
)

// ParseHandler starts, inspects, and cancels parse jobs.
type ParseHandler struct {
	Sources          repository.SourceRepositoryInterface
	Worker           *workers.ParseWorker
	DefaultThreshold float64
	Log              *zap.SugaredLogger
}

// StartParse queues a parse of the source's stored pages and returns the job.
func (ph *ParseHandler) StartParse(w http.ResponseWriter, r *http.Request) {
	id, ok := uintParam(w, r, "sourceID")
	if !ok {
		return
	}

	var req struct {
		DryRun              bool     `json:"dry_run"`
		Force               bool     `json:"force"`
		ConfidenceThreshold *float64 `json:"confidence_threshold"`
	}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteAPIError(w, http.StatusBadRequest, "invalid_body", "invalid request body: "+err.Error())
			return
		}
	}

	if _, err := ph.Sources.GetByID(id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			WriteAPIError(w, http.StatusNotFound, "not_found", "source not found")
			return
		}
		ph.Log.Errorw("failed to get source", "id", id, "error", err)
		WriteAPIError(w, http.StatusInternalServerError, "get_failed", "failed to get source")
		return
	}

	stored, err := ph.Sources.ListPages(id)
	if err != nil {
		ph.Log.Errorw("failed to load pages", "source_id", id, "error", err)
		WriteAPIError(w, http.StatusInternalServerError, "load_failed", "failed to load pages")
		return
	}
	if len(stored) == 0 {
		WriteAPIError(w, http.StatusBadRequest, "no_pages", "source has no stored pages to parse")
		return
	}

	pages := make([]parser.PageInput, 0, len(stored))
	for _, pt := range stored {
		page := parser.PageInput{Index: pt.PageIndex, Text: pt.Text}
		if pt.Confidences != nil {
			if err := json.Unmarshal([]byte(*pt.Confidences), &page.Confidences); err != nil {
				ph.Log.Warnw("ignoring malformed confidences", "source_id", id, "page", pt.PageIndex, "error", err)
			}
		}
		pages = append(pages, page)
	}

	threshold := ph.DefaultThreshold
	if req.ConfidenceThreshold != nil {
		threshold = *req.ConfidenceThreshold
	}
	if threshold < 0 || threshold > 1 {
		WriteAPIError(w, http.StatusBadRequest, "invalid_threshold", "confidence_threshold must be between 0 and 1")
		return
	}

	job, err := ph.Worker.Enqueue(workers.ParseRequest{
		SourceID:            id,
		Pages:               pages,
		DryRun:              req.DryRun,
		Force:               req.Force,
		ConfidenceThreshold: threshold,
	})
	if err != nil {
		switch {
		case errors.Is(err, workers.ErrSourceBusy):
			WriteAPIError(w, http.StatusConflict, "source_busy", err.Error())
		case errors.Is(err, workers.ErrQueueFull):
			WriteAPIError(w, http.StatusServiceUnavailable, "queue_full", err.Error())
		default:
			ph.Log.Errorw("failed to enqueue parse", "source_id", id, "error", err)
			WriteAPIError(w, http.StatusInternalServerError, "enqueue_failed", "failed to enqueue parse")
		}
		return
	}
	writeJSON(w, http.StatusAccepted, job)
}

// GetJob returns the current state of a parse job.
func (ph *ParseHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	job, ok := ph.Worker.GetJob(jobID)
	if !ok {
		WriteAPIError(w, http.StatusNotFound, "not_found", "parse job not found")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// CancelJob stops a queued or running parse job.
func (ph *ParseHandler) CancelJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	if !ph.Worker.Cancel(jobID) {
		WriteAPIError(w, http.StatusConflict, "not_cancellable", "job not found or already finished")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelling"})
}
