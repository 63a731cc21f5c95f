package api

import (
	"encoding/json"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/example/storefront-backend/internal/apperror"
)

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		_ = json.NewEncoder(w).Encode(payload)
	}
}

// respondAppError maps domain error kinds onto HTTP statuses. Anything
// without a kind is logged and surfaced as an opaque 500.
func respondAppError(w http.ResponseWriter, err error) {
	switch apperror.KindOf(err) {
	case apperror.KindNotFound:
		respondJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case apperror.KindBadRequest:
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case apperror.KindForbidden:
		respondJSON(w, http.StatusForbidden, map[string]string{"error": err.Error()})
	default:
		logrus.WithError(err).Error("request failed")
		respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func respondBadRequest(w http.ResponseWriter, message string) {
	respondJSON(w, http.StatusBadRequest, map[string]string{"error": message})
}
