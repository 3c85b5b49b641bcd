package handlers

import (
	"net/http"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/averyholt/descentbackend/repository"
)

// AdminHandler gates destructive maintenance behind the admin key.
type AdminHandler struct {
	Repo repository.AdminRepositoryInterface
	// AdminKeyHash is the bcrypt hash of the admin key; empty disables the
	// admin surface entirely.
	AdminKeyHash string
	Log          *zap.SugaredLogger
}

func (ah *AdminHandler) authorize(w http.ResponseWriter, r *http.Request) bool {
	if ah.AdminKeyHash == "" {
		WriteAPIError(w, http.StatusForbidden, "admin_disabled", "no admin key is configured")
		return false
	}
	key := r.Header.Get("X-Admin-Key")
	if key == "" {
		WriteAPIError(w, http.StatusUnauthorized, "missing_key", "X-Admin-Key header is required")
		return false
	}
	if err := bcrypt.CompareHashAndPassword([]byte(ah.AdminKeyHash), []byte(key)); err != nil {
		WriteAPIError(w, http.StatusUnauthorized, "invalid_key", "admin key is not valid")
		return false
	}
	return true
}

// PurgeData deletes every stored source, individual, union, and flagged line.
func (ah *AdminHandler) PurgeData(w http.ResponseWriter, r *http.Request) {
	if !ah.authorize(w, r) {
		return
	}
	if err := ah.Repo.PurgeAllData(); err != nil {
		ah.Log.Errorw("failed to purge data", "error", err)
		WriteAPIError(w, http.StatusInternalServerError, "purge_failed", "failed to purge data")
		return
	}
	ah.Log.Warn("all data purged by admin request")
	w.WriteHeader(http.StatusNoContent)
}
