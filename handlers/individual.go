package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/averyholt/descentbackend/repository"
)

// IndividualHandler serves individual search, edits, duplicate detection, and
// merging.
type IndividualHandler struct {
	Repo repository.IndividualRepositoryInterface
	Log  *zap.SugaredLogger
}

// SearchIndividuals lists individuals, optionally filtered by source, gen,
// and a name query.
func (ih *IndividualHandler) SearchIndividuals(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := repository.IndividualFilter{Query: q.Get("q")}

	if raw := q.Get("source_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			WriteAPIError(w, http.StatusBadRequest, "invalid_filter", "source_id must be an integer")
			return
		}
		filter.SourceID = uint(id)
	}
	if raw := q.Get("gen"); raw != "" {
		gen, err := strconv.Atoi(raw)
		if err != nil || gen < 1 {
			WriteAPIError(w, http.StatusBadRequest, "invalid_filter", "gen must be a positive integer")
			return
		}
		filter.Gen = &gen
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			WriteAPIError(w, http.StatusBadRequest, "invalid_filter", "limit must be an integer")
			return
		}
		filter.Limit = limit
	}
	if raw := q.Get("offset"); raw != "" {
		offset, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			WriteAPIError(w, http.StatusBadRequest, "invalid_filter", "offset must be an integer")
			return
		}
		filter.Offset = offset
	}

	inds, err := ih.Repo.Search(filter)
	if err != nil {
		ih.Log.Errorw("failed to search individuals", "error", err)
		WriteAPIError(w, http.StatusInternalServerError, "search_failed", "failed to search individuals")
		return
	}
	writeJSON(w, http.StatusOK, inds)
}

// GetIndividual returns one individual by ID.
func (ih *IndividualHandler) GetIndividual(w http.ResponseWriter, r *http.Request) {
	id, ok := uintParam(w, r, "individualID")
	if !ok {
		return
	}
	ind, err := ih.Repo.GetByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			WriteAPIError(w, http.StatusNotFound, "not_found", "individual not found")
			return
		}
		ih.Log.Errorw("failed to get individual", "id", id, "error", err)
		WriteAPIError(w, http.StatusInternalServerError, "get_failed", "failed to get individual")
		return
	}
	writeJSON(w, http.StatusOK, ind)
}

// UpdateIndividual applies a partial edit and marks the row manually edited,
// protecting the edit from subsequent re-parses.
func (ih *IndividualHandler) UpdateIndividual(w http.ResponseWriter, r *http.Request) {
	id, ok := uintParam(w, r, "individualID")
	if !ok {
		return
	}
	var updates repository.IndividualUpdate
	if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
		WriteAPIError(w, http.StatusBadRequest, "invalid_body", "invalid request body: "+err.Error())
		return
	}
	if updates.Sex != nil && *updates.Sex != "" && *updates.Sex != "M" && *updates.Sex != "F" {
		WriteAPIError(w, http.StatusBadRequest, "invalid_field", "sex must be \"M\", \"F\", or empty to clear")
		return
	}

	ind, err := ih.Repo.Update(id, updates)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			WriteAPIError(w, http.StatusNotFound, "not_found", "individual not found")
			return
		}
		ih.Log.Errorw("failed to update individual", "id", id, "error", err)
		WriteAPIError(w, http.StatusInternalServerError, "update_failed", "failed to update individual")
		return
	}
	writeJSON(w, http.StatusOK, ind)
}

// DeleteIndividual removes an individual and unlinks all references to it.
func (ih *IndividualHandler) DeleteIndividual(w http.ResponseWriter, r *http.Request) {
	id, ok := uintParam(w, r, "individualID")
	if !ok {
		return
	}
	if err := ih.Repo.Delete(id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			WriteAPIError(w, http.StatusNotFound, "not_found", "individual not found")
			return
		}
		ih.Log.Errorw("failed to delete individual", "id", id, "error", err)
		WriteAPIError(w, http.StatusInternalServerError, "delete_failed", "failed to delete individual")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListDuplicates returns the probable duplicate groups within a source.
func (ih *IndividualHandler) ListDuplicates(w http.ResponseWriter, r *http.Request) {
	id, ok := uintParam(w, r, "sourceID")
	if !ok {
		return
	}
	groups, err := ih.Repo.FindDuplicates(id)
	if err != nil {
		ih.Log.Errorw("failed to find duplicates", "source_id", id, "error", err)
		WriteAPIError(w, http.StatusInternalServerError, "duplicates_failed", "failed to find duplicates")
		return
	}
	writeJSON(w, http.StatusOK, groups)
}

// MergeIndividuals folds duplicates into a survivor within one source.
func (ih *IndividualHandler) MergeIndividuals(w http.ResponseWriter, r *http.Request) {
	sourceID, ok := uintParam(w, r, "sourceID")
	if !ok {
		return
	}
	var req struct {
		SurvivorID   uint   `json:"survivor_id"`
		DuplicateIDs []uint `json:"duplicate_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteAPIError(w, http.StatusBadRequest, "invalid_body", "invalid request body: "+err.Error())
		return
	}
	if req.SurvivorID == 0 || len(req.DuplicateIDs) == 0 {
		WriteAPIError(w, http.StatusBadRequest, "missing_field", "survivor_id and duplicate_ids are required")
		return
	}

	survivor, err := ih.Repo.Merge(sourceID, req.SurvivorID, req.DuplicateIDs)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			WriteAPIError(w, http.StatusNotFound, "not_found", "survivor or duplicate not found in this source")
			return
		}
		ih.Log.Errorw("failed to merge individuals", "source_id", sourceID, "survivor", req.SurvivorID, "error", err)
		WriteAPIError(w, http.StatusInternalServerError, "merge_failed", "failed to merge individuals")
		return
	}
	writeJSON(w, http.StatusOK, survivor)
}
