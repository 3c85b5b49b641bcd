package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/averyholt/descentbackend/repository"
)

// UnionHandler serves union listing, parent edits, and child reparenting.
type UnionHandler struct {
	Repo repository.UnionRepositoryInterface
	Log  *zap.SugaredLogger
}

// ListUnions returns all unions of a source with parents preloaded.
func (uh *UnionHandler) ListUnions(w http.ResponseWriter, r *http.Request) {
	id, ok := uintParam(w, r, "sourceID")
	if !ok {
		return
	}
	unions, err := uh.Repo.ListBySource(id)
	if err != nil {
		uh.Log.Errorw("failed to list unions", "source_id", id, "error", err)
		WriteAPIError(w, http.StatusInternalServerError, "list_failed", "failed to list unions")
		return
	}
	writeJSON(w, http.StatusOK, unions)
}

// GetUnion returns one union with its parents and ordered children.
func (uh *UnionHandler) GetUnion(w http.ResponseWriter, r *http.Request) {
	id, ok := uintParam(w, r, "unionID")
	if !ok {
		return
	}
	union, err := uh.Repo.GetByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			WriteAPIError(w, http.StatusNotFound, "not_found", "union not found")
			return
		}
		uh.Log.Errorw("failed to get union", "id", id, "error", err)
		WriteAPIError(w, http.StatusInternalServerError, "get_failed", "failed to get union")
		return
	}
	children, err := uh.Repo.ListChildren(id)
	if err != nil {
		uh.Log.Errorw("failed to list children", "union_id", id, "error", err)
		WriteAPIError(w, http.StatusInternalServerError, "children_failed", "failed to list children")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"union": union, "children": children})
}

// UpdateUnion edits a union's parent slots. Setting a slot to 0 clears it.
func (uh *UnionHandler) UpdateUnion(w http.ResponseWriter, r *http.Request) {
	id, ok := uintParam(w, r, "unionID")
	if !ok {
		return
	}
	var req struct {
		HusbandID *uint `json:"husband_id"`
		WifeID    *uint `json:"wife_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteAPIError(w, http.StatusBadRequest, "invalid_body", "invalid request body: "+err.Error())
		return
	}

	clearHusband := req.HusbandID != nil && *req.HusbandID == 0
	clearWife := req.WifeID != nil && *req.WifeID == 0
	if clearHusband {
		req.HusbandID = nil
	}
	if clearWife {
		req.WifeID = nil
	}

	union, err := uh.Repo.UpdateParents(id, req.HusbandID, req.WifeID, clearHusband, clearWife)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			WriteAPIError(w, http.StatusNotFound, "not_found", "union not found")
			return
		}
		uh.Log.Errorw("failed to update union", "id", id, "error", err)
		WriteAPIError(w, http.StatusInternalServerError, "update_failed", "failed to update union")
		return
	}
	writeJSON(w, http.StatusOK, union)
}

// ReparentChild moves a child from this union to another one.
func (uh *UnionHandler) ReparentChild(w http.ResponseWriter, r *http.Request) {
	fromID, ok := uintParam(w, r, "unionID")
	if !ok {
		return
	}
	var req struct {
		PersonID  uint `json:"person_id"`
		ToUnionID uint `json:"to_union_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteAPIError(w, http.StatusBadRequest, "invalid_body", "invalid request body: "+err.Error())
		return
	}
	if req.PersonID == 0 || req.ToUnionID == 0 {
		WriteAPIError(w, http.StatusBadRequest, "missing_field", "person_id and to_union_id are required")
		return
	}

	if err := uh.Repo.Reparent(req.PersonID, fromID, req.ToUnionID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			WriteAPIError(w, http.StatusNotFound, "not_found", "child link or destination union not found")
			return
		}
		uh.Log.Errorw("failed to reparent child", "person_id", req.PersonID, "from", fromID, "to", req.ToUnionID, "error", err)
		WriteAPIError(w, http.StatusInternalServerError, "reparent_failed", "failed to reparent child")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reparented"})
}
