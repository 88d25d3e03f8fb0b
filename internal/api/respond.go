package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/xtrntr/auction/internal/auctionerrors"
	"github.com/xtrntr/auction/internal/auth"
	"github.com/xtrntr/auction/internal/expiration"
	"github.com/xtrntr/auction/internal/logging"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Warn("Failed to encode response", map[string]any{"error": err.Error()})
	}
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeError maps the error taxonomy onto HTTP statuses
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var tooLow *auctionerrors.BidTooLowError
	switch {
	case errors.As(err, &tooLow):
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error":   err.Error(),
			"minimum": tooLow.Minimum.StringFixed(2),
		})
	case errors.Is(err, auctionerrors.ErrNotFound):
		writeMessage(w, http.StatusNotFound, err.Error())
	case errors.Is(err, auth.ErrInvalidCredentials), errors.Is(err, auth.ErrInvalidToken):
		writeMessage(w, http.StatusUnauthorized, "Invalid credentials")
	case errors.Is(err, auctionerrors.ErrValidation):
		writeMessage(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, auctionerrors.ErrConcurrencyConflict):
		writeMessage(w, http.StatusConflict, "Auction is busy, retry the request")
	case errors.Is(err, auctionerrors.ErrAlreadyRunning), errors.Is(err, expiration.ErrRunAlreadyExecuted):
		writeMessage(w, http.StatusConflict, err.Error())
	default:
		logging.Error("Request failed", map[string]any{
			"method": r.Method,
			"path":   r.URL.Path,
			"error":  err.Error(),
		})
		writeMessage(w, http.StatusInternalServerError, "Internal server error")
	}
}
