package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"relay-backend/internal/models"
)

type historyStore interface {
	Append(ctx context.Context, ownerID, message, reply string) (*models.ChatExchange, error)
	ListByOwner(ctx context.Context, ownerID string, limit int) ([]models.ChatExchange, error)
}

// UpdatePublisher fans a stored exchange out to the owner's live sessions.
type UpdatePublisher interface {
	PublishExchange(ctx context.Context, e *models.ChatExchange) error
}

var errMissingOwner = errors.New("request has no verified owner")

// RelayService forwards a message to the completion provider and records the
// exchange. A record is written only after the provider has replied; if the
// write fails the reply is dropped and the caller gets a PersistenceError.
type RelayService struct {
	completion       CompletionClient
	history          historyStore
	publisher        UpdatePublisher
	maxMessageLength int
	historyTimeout   time.Duration
}

func NewRelayService(completion CompletionClient, history historyStore, publisher UpdatePublisher, maxMessageLength int, historyTimeout time.Duration) *RelayService {
	return &RelayService{
		completion:       completion,
		history:          history,
		publisher:        publisher,
		maxMessageLength: maxMessageLength,
		historyTimeout:   historyTimeout,
	}
}

func (s *RelayService) Submit(ctx context.Context, ownerID, message string) (*models.ChatExchange, error) {
	if ownerID == "" {
		return nil, errMissingOwner
	}

	// Blank input is rejected, but the text is forwarded and stored as sent.
	if strings.TrimSpace(message) == "" {
		return nil, &ValidationError{Fields: map[string]string{"message": "Message is required"}}
	}
	if s.maxMessageLength > 0 && utf8.RuneCountInString(message) > s.maxMessageLength {
		return nil, &ValidationError{Fields: map[string]string{
			"message": fmt.Sprintf("Message must be at most %d characters", s.maxMessageLength),
		}}
	}

	// A client disconnect does not abort work already in flight.
	ctx = context.WithoutCancel(ctx)

	reply, err := s.completion.Complete(ctx, ownerID, message)
	if err != nil {
		return nil, err
	}

	storeCtx, cancel := context.WithTimeout(ctx, s.historyTimeout)
	exchange, err := s.history.Append(storeCtx, ownerID, message, reply)
	cancel()
	if err != nil {
		return nil, &PersistenceError{Op: "append", Err: err}
	}

	if s.publisher != nil {
		pubCtx, cancel := context.WithTimeout(ctx, s.historyTimeout)
		if err := s.publisher.PublishExchange(pubCtx, exchange); err != nil {
			slog.Warn("failed to publish chat update", "owner", ownerID, "exchange_id", exchange.ID, "error", err)
		}
		cancel()
	}

	return exchange, nil
}

func (s *RelayService) History(ctx context.Context, ownerID string, limit int) ([]models.ChatExchange, error) {
	if ownerID == "" {
		return nil, errMissingOwner
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.historyTimeout)
	defer cancel()

	exchanges, err := s.history.ListByOwner(ctx, ownerID, limit)
	if err != nil {
		return nil, &PersistenceError{Op: "query", Err: err}
	}
	if exchanges == nil {
		exchanges = []models.ChatExchange{}
	}
	return exchanges, nil
}
