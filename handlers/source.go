package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sort"
	"strings"

	"github.com/facette/natsort"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/averyholt/descentbackend/models"
	"github.com/averyholt/descentbackend/repository"
)

// SourceHandler serves source CRUD and page-text upload.
type SourceHandler struct {
	Repo repository.SourceRepositoryInterface
	Log  *zap.SugaredLogger
}

// CreateSource registers a new chart source.
func (sh *SourceHandler) CreateSource(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string  `json:"name"`
		Path *string `json:"path"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteAPIError(w, http.StatusBadRequest, "invalid_body", "invalid request body: "+err.Error())
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		WriteAPIError(w, http.StatusBadRequest, "missing_field", "name is required")
		return
	}

	source := models.Source{Name: req.Name, Path: req.Path}
	if err := sh.Repo.Create(&source); err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			WriteAPIError(w, http.StatusConflict, "duplicate_name", "a source with this name already exists")
			return
		}
		sh.Log.Errorw("failed to create source", "name", req.Name, "error", err)
		WriteAPIError(w, http.StatusInternalServerError, "create_failed", "failed to create source")
		return
	}
	writeJSON(w, http.StatusCreated, source)
}

// ListSources returns all registered sources.
func (sh *SourceHandler) ListSources(w http.ResponseWriter, r *http.Request) {
	sources, err := sh.Repo.ListAll()
	if err != nil {
		sh.Log.Errorw("failed to list sources", "error", err)
		WriteAPIError(w, http.StatusInternalServerError, "list_failed", "failed to list sources")
		return
	}
	writeJSON(w, http.StatusOK, sources)
}

// GetSource returns one source by ID.
func (sh *SourceHandler) GetSource(w http.ResponseWriter, r *http.Request) {
	id, ok := uintParam(w, r, "sourceID")
	if !ok {
		return
	}
	source, err := sh.Repo.GetByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			WriteAPIError(w, http.StatusNotFound, "not_found", "source not found")
			return
		}
		sh.Log.Errorw("failed to get source", "id", id, "error", err)
		WriteAPIError(w, http.StatusInternalServerError, "get_failed", "failed to get source")
		return
	}
	writeJSON(w, http.StatusOK, source)
}

// DeleteSource removes a source and everything parsed from it.
func (sh *SourceHandler) DeleteSource(w http.ResponseWriter, r *http.Request) {
	id, ok := uintParam(w, r, "sourceID")
	if !ok {
		return
	}
	if err := sh.Repo.Delete(id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			WriteAPIError(w, http.StatusNotFound, "not_found", "source not found")
			return
		}
		sh.Log.Errorw("failed to delete source", "id", id, "error", err)
		WriteAPIError(w, http.StatusInternalServerError, "delete_failed", "failed to delete source")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type pageUpload struct {
	PageIndex   int       `json:"page_index"`
	Text        string    `json:"text"`
	Confidences []float64 `json:"confidences,omitempty"`
}

// PutPages replaces the stored OCR text of a source. The body is either a
// JSON payload with a pages array, or a multipart form of plain-text page
// files whose natural filename order ("page2" before "page10") decides the
// page sequence.
func (sh *SourceHandler) PutPages(w http.ResponseWriter, r *http.Request) {
	id, ok := uintParam(w, r, "sourceID")
	if !ok {
		return
	}
	if _, err := sh.Repo.GetByID(id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			WriteAPIError(w, http.StatusNotFound, "not_found", "source not found")
			return
		}
		sh.Log.Errorw("failed to get source", "id", id, "error", err)
		WriteAPIError(w, http.StatusInternalServerError, "get_failed", "failed to get source")
		return
	}

	var uploads []pageUpload
	var err error
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		uploads, err = readMultipartPages(r)
	} else {
		uploads, err = readJSONPages(r)
	}
	if err != nil {
		WriteAPIError(w, http.StatusBadRequest, "invalid_pages", err.Error())
		return
	}
	if len(uploads) == 0 {
		WriteAPIError(w, http.StatusBadRequest, "invalid_pages", "no pages supplied")
		return
	}

	pages := make([]models.PageText, 0, len(uploads))
	for _, up := range uploads {
		page := models.PageText{PageIndex: up.PageIndex, Text: up.Text}
		if len(up.Confidences) > 0 {
			encoded, err := json.Marshal(up.Confidences)
			if err != nil {
				WriteAPIError(w, http.StatusBadRequest, "invalid_pages", "invalid confidences")
				return
			}
			s := string(encoded)
			page.Confidences = &s
		}
		pages = append(pages, page)
	}

	if err := sh.Repo.ReplacePages(id, pages); err != nil {
		sh.Log.Errorw("failed to store pages", "source_id", id, "error", err)
		WriteAPIError(w, http.StatusInternalServerError, "store_failed", "failed to store pages")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"source_id": id, "pages": len(pages)})
}

func readJSONPages(r *http.Request) ([]pageUpload, error) {
	var req struct {
		Pages []pageUpload `json:"pages"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, errors.New("invalid request body: " + err.Error())
	}
	seen := make(map[int]bool, len(req.Pages))
	for _, p := range req.Pages {
		if p.PageIndex < 0 {
			return nil, errors.New("page_index must be non-negative")
		}
		if seen[p.PageIndex] {
			return nil, errors.New("duplicate page_index in payload")
		}
		seen[p.PageIndex] = true
	}
	sort.Slice(req.Pages, func(i, j int) bool { return req.Pages[i].PageIndex < req.Pages[j].PageIndex })
	return req.Pages, nil
}

// readMultipartPages collects the uploaded text files and assigns page
// indexes by natural filename order, so "scan_10.txt" follows "scan_2.txt".
func readMultipartPages(r *http.Request) ([]pageUpload, error) {
	if err := r.ParseMultipartForm(64 << 20); err != nil {
		return nil, errors.New("invalid multipart form: " + err.Error())
	}
	if r.MultipartForm == nil || len(r.MultipartForm.File) == 0 {
		return nil, errors.New("no files in multipart form")
	}

	byName := make(map[string]string)
	var names []string
	for _, headers := range r.MultipartForm.File {
		for _, hdr := range headers {
			f, err := hdr.Open()
			if err != nil {
				return nil, errors.New("failed to open uploaded file " + hdr.Filename)
			}
			content, err := io.ReadAll(f)
			f.Close()
			if err != nil {
				return nil, errors.New("failed to read uploaded file " + hdr.Filename)
			}
			byName[hdr.Filename] = string(content)
			names = append(names, hdr.Filename)
		}
	}
	natsort.Sort(names)

	uploads := make([]pageUpload, 0, len(names))
	for i, name := range names {
		uploads = append(uploads, pageUpload{PageIndex: i, Text: byName[name]})
	}
	return uploads, nil
}

// GetPages returns the stored OCR pages of a source.
func (sh *SourceHandler) GetPages(w http.ResponseWriter, r *http.Request) {
	id, ok := uintParam(w, r, "sourceID")
	if !ok {
		return
	}
	pages, err := sh.Repo.ListPages(id)
	if err != nil {
		sh.Log.Errorw("failed to list pages", "source_id", id, "error", err)
		WriteAPIError(w, http.StatusInternalServerError, "list_failed", "failed to list pages")
		return
	}
	writeJSON(w, http.StatusOK, pages)
}
