package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ChatExchange is one persisted message/reply pair and its owner.
type ChatExchange struct {
	ID        uuid.UUID `json:"id"`
	OwnerID   string    `json:"userId"`
	Message   string    `json:"message"`
	Reply     string    `json:"reply"`
	CreatedAt time.Time `json:"createdAt"`
}

// ChatRequest is the payload sent to the chat endpoint.
type ChatRequest struct {
	Message string `json:"message"`
}

// UnmarshalJSON accepts "message" either as a string or as a chat turn
// object ({"role": "user", "content": "..."}), which is what the web client sends.
func (r *ChatRequest) UnmarshalJSON(data []byte) error {
	var raw struct {
		Message json.RawMessage `json:"message"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	msg := bytes.TrimSpace(raw.Message)
	switch {
	case len(msg) == 0 || bytes.Equal(msg, []byte("null")):
		r.Message = ""
	case msg[0] == '"':
		return json.Unmarshal(msg, &r.Message)
	case msg[0] == '{':
		var turn ChatMessage
		if err := json.Unmarshal(msg, &turn); err != nil {
			return err
		}
		r.Message = turn.Content
	default:
		return errors.New("message must be a string or a chat turn object")
	}
	return nil
}

// ChatMessage represents a single message in a conversation.
type ChatMessage struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// ChatResponse is the reply from the AI chat.
type ChatResponse struct {
	Reply string `json:"reply"`
}
