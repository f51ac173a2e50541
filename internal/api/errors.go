// internal/api/errors.go
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"hatm_bot/internal/app"

	"github.com/sirupsen/logrus"
)

type errorResponse struct {
	Detail string `json:"detail"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeErrorMessage(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorResponse{Detail: detail})
}

// writeServiceError maps the four error kinds of the service layer onto
// HTTP statuses. Anything unclassified is a 500 and gets logged; the
// classified kinds are request-level noise the caller already knows about.
func writeServiceError(w http.ResponseWriter, log *logrus.Entry, err error) {
	switch {
	case errors.Is(err, app.ErrNotFound):
		writeErrorMessage(w, http.StatusNotFound, err.Error())
	case errors.Is(err, app.ErrInvalidInput), errors.Is(err, app.ErrInvalidState):
		writeErrorMessage(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, app.ErrConflict):
		writeErrorMessage(w, http.StatusConflict, err.Error())
	default:
		log.WithError(err).Error("Unhandled service error")
		writeErrorMessage(w, http.StatusInternalServerError, "internal server error")
	}
}
