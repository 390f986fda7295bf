package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"relay-backend/internal/middleware"
	"relay-backend/internal/models"
)

type relayService interface {
	Submit(ctx context.Context, ownerID, message string) (*models.ChatExchange, error)
	History(ctx context.Context, ownerID string, limit int) ([]models.ChatExchange, error)
}

// MaxBodyBytes sizes the request body cap for a message limit. Each character
// may arrive as a surrogate-pair escape (12 bytes); the rest covers the envelope.
func MaxBodyBytes(maxMessageLength int) int64 {
	if maxMessageLength <= 0 {
		return 1 << 20
	}
	return int64(maxMessageLength)*12 + 1024
}

type ChatHandler struct {
	relay        relayService
	maxBodyBytes int64
}

func NewChatHandler(relay relayService, maxBodyBytes int64) *ChatHandler {
	return &ChatHandler{relay: relay, maxBodyBytes: maxBodyBytes}
}

// Submit relays the caller's message and returns the provider reply.
func (h *ChatHandler) Submit(w http.ResponseWriter, r *http.Request) {
	if r.ContentLength > h.maxBodyBytes {
		writeJSON(w, http.StatusRequestEntityTooLarge, errorResp("PAYLOAD_TOO_LARGE", "Request body too large", r))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)

	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorResp("PAYLOAD_TOO_LARGE", "Request body too large", r))
			return
		}
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	userID := middleware.GetUserID(r.Context())
	exchange, err := h.relay.Submit(r.Context(), userID, req.Message)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, models.ChatResponse{Reply: exchange.Reply})
}

// History lists the caller's most recent exchanges, newest first.
func (h *ChatHandler) History(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed",
				map[string]string{"limit": "Limit must be an integer"}, r))
			return
		}
		limit = n
	}

	userID := middleware.GetUserID(r.Context())
	exchanges, err := h.relay.History(r.Context(), userID, limit)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, exchanges)
}
