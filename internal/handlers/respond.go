package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"relay-backend/internal/middleware"
	"relay-backend/internal/models"
	"relay-backend/internal/services"
)

// Shared helpers

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func errorResp(code, message string, r *http.Request) models.ErrorResponse {
	return models.ErrorResponse{
		Error: models.APIError{
			Code:      code,
			Message:   message,
			RequestID: r.Header.Get(middleware.RequestIDHeader),
		},
	}
}

func errorRespWithFields(code, message string, fields map[string]string, r *http.Request) models.ErrorResponse {
	return models.ErrorResponse{
		Error: models.APIError{
			Code:      code,
			Message:   message,
			Fields:    fields,
			RequestID: r.Header.Get(middleware.RequestIDHeader),
		},
	}
}

// handleServiceError writes a generic client message and logs the detail.
// Provider and storage internals never reach the response body.
func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	requestID := r.Header.Get(middleware.RequestIDHeader)
	userID := middleware.GetUserID(r.Context())

	var (
		validationErr  *services.ValidationError
		authErr        *middleware.AuthError
		upstreamErr    *services.UpstreamError
		persistenceErr *services.PersistenceError
	)

	switch {
	case errors.As(err, &validationErr):
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed", validationErr.Fields, r))
	case errors.As(err, &authErr):
		writeJSON(w, authErr.Status(), errorResp(authErr.Code(), authErr.Message, r))
	case errors.As(err, &upstreamErr):
		slog.Error("completion provider failed",
			"request_id", requestID, "owner", userID,
			"provider", upstreamErr.Provider, "status", upstreamErr.Status, "error", upstreamErr.Err)
		writeJSON(w, http.StatusInternalServerError, errorResp("AI_ERROR", "Failed to reach AI.", r))
	case errors.As(err, &persistenceErr):
		slog.Error("history store failed",
			"request_id", requestID, "owner", userID,
			"op", persistenceErr.Op, "error", persistenceErr.Err)
		writeJSON(w, http.StatusInternalServerError, errorResp("PERSISTENCE_ERROR", "Failed to access chat history.", r))
	default:
		slog.Error("unexpected error", "request_id", requestID, "owner", userID, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "An unexpected error occurred", r))
	}
}
