package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"relay-backend/internal/models"
)

// MaxHistoryLimit is both the default and the ceiling for history queries.
const MaxHistoryLimit = 20

// ClampLimit maps non-positive or oversized limits onto MaxHistoryLimit.
func ClampLimit(limit int) int {
	if limit <= 0 || limit > MaxHistoryLimit {
		return MaxHistoryLimit
	}
	return limit
}

type ChatRepo struct {
	pool *pgxpool.Pool
}

func NewChatRepo(pool *pgxpool.Pool) *ChatRepo {
	return &ChatRepo{pool: pool}
}

func (r *ChatRepo) Append(ctx context.Context, ownerID, message, reply string) (*models.ChatExchange, error) {
	e := &models.ChatExchange{
		ID:      uuid.New(),
		OwnerID: ownerID,
		Message: message,
		Reply:   reply,
	}

	query := `INSERT INTO chat_exchanges (id, owner_id, message, reply)
		VALUES ($1, $2, $3, $4) RETURNING created_at`

	if err := r.pool.QueryRow(ctx, query, e.ID, e.OwnerID, e.Message, e.Reply).Scan(&e.CreatedAt); err != nil {
		return nil, fmt.Errorf("failed to insert chat exchange: %w", err)
	}
	return e, nil
}

func (r *ChatRepo) ListByOwner(ctx context.Context, ownerID string, limit int) ([]models.ChatExchange, error) {
	query := `SELECT id, owner_id, message, reply, created_at
		FROM chat_exchanges WHERE owner_id = $1
		ORDER BY created_at DESC, seq DESC LIMIT $2`

	rows, err := r.pool.Query(ctx, query, ownerID, ClampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to query chat history: %w", err)
	}
	defer rows.Close()

	exchanges := make([]models.ChatExchange, 0, ClampLimit(limit))
	for rows.Next() {
		var e models.ChatExchange
		if err := rows.Scan(&e.ID, &e.OwnerID, &e.Message, &e.Reply, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan chat exchange: %w", err)
		}
		exchanges = append(exchanges, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read chat history: %w", err)
	}
	return exchanges, nil
}
