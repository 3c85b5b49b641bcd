package handlers

import (
	"errors"
	"net/http"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/averyholt/descentbackend/fallback"
	"github.com/averyholt/descentbackend/repository"
)

// FlaggedHandler serves flagged-line review: listing, resolution, and
// re-offering a line to the fallback resolver.
type FlaggedHandler struct {
	Repo     repository.FlaggedLineRepositoryInterface
	Resolver fallback.LineResolver // nil when no fallback is configured
	Log      *zap.SugaredLogger
}

// ListFlagged returns a source's flagged lines. ?include_resolved=true also
// returns lines already handled.
func (fh *FlaggedHandler) ListFlagged(w http.ResponseWriter, r *http.Request) {
	id, ok := uintParam(w, r, "sourceID")
	if !ok {
		return
	}
	includeResolved := r.URL.Query().Get("include_resolved") == "true"
	lines, err := fh.Repo.ListBySource(id, includeResolved)
	if err != nil {
		fh.Log.Errorw("failed to list flagged lines", "source_id", id, "error", err)
		WriteAPIError(w, http.StatusInternalServerError, "list_failed", "failed to list flagged lines")
		return
	}
	writeJSON(w, http.StatusOK, lines)
}

// ResolveFlagged marks a flagged line as handled.
func (fh *FlaggedHandler) ResolveFlagged(w http.ResponseWriter, r *http.Request) {
	id, ok := uintParam(w, r, "flaggedID")
	if !ok {
		return
	}
	if err := fh.Repo.MarkResolved(id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			WriteAPIError(w, http.StatusNotFound, "not_found", "flagged line not found")
			return
		}
		fh.Log.Errorw("failed to resolve flagged line", "id", id, "error", err)
		WriteAPIError(w, http.StatusInternalServerError, "resolve_failed", "failed to resolve flagged line")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "resolved"})
}

// RetryFlagged re-offers a flagged line to the fallback resolver and returns
// the candidates it recovers, for the caller to apply as manual edits.
func (fh *FlaggedHandler) RetryFlagged(w http.ResponseWriter, r *http.Request) {
	id, ok := uintParam(w, r, "flaggedID")
	if !ok {
		return
	}
	if fh.Resolver == nil {
		WriteAPIError(w, http.StatusServiceUnavailable, "no_fallback", "no fallback resolver is configured")
		return
	}

	line, err := fh.Repo.GetByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			WriteAPIError(w, http.StatusNotFound, "not_found", "flagged line not found")
			return
		}
		fh.Log.Errorw("failed to get flagged line", "id", id, "error", err)
		WriteAPIError(w, http.StatusInternalServerError, "get_failed", "failed to get flagged line")
		return
	}

	candidates, err := fh.Resolver.ResolveLine(r.Context(), line.Text, fallback.LineContext{})
	if err != nil {
		fh.Log.Warnw("fallback retry failed", "id", id, "error", err)
		WriteAPIError(w, http.StatusBadGateway, "fallback_failed", "fallback resolver failed: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"line": line, "candidates": candidates})
}
