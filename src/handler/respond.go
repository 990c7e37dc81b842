package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	logger "github.com/sirupsen/logrus"

	"tradeclient/src/model"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.WithError(err).Error("failed to encode response")
	}
}

// writeError maps the core error taxonomy to one human-readable message at
// the point of user intent. The position-tracking loop itself never crashes
// on these.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, model.ErrSessionInvalid):
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "Session expired. Please sign in again."})
	case errors.Is(err, model.ErrInsufficientBalance):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: "Insufficient balance for this operation."})
	case errors.Is(err, model.ErrInvalidPosition):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: "Position rejected: " + err.Error()})
	case errors.Is(err, model.ErrSettlementConflict):
		// Expected under races; the position is already on its way out.
		writeJSON(w, http.StatusConflict, errorResponse{Error: "Position is already being closed."})
	case errors.Is(err, model.ErrNetworkFailure):
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: "Service temporarily unavailable. Please try again."})
	default:
		logger.WithError(err).Error("unhandled error in handler")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Internal error."})
	}
}
