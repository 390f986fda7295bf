package repository

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"

	"relay-backend/internal/models"
)

var chatBucket = []byte("chat_exchanges")

// BoltChatRepo keeps one nested bucket per owner under chat_exchanges. Keys
// are the owner bucket's big-endian sequence, so cursor order is insertion
// order.
type BoltChatRepo struct {
	db  *bolt.DB
	now func() time.Time
}

func NewBoltChatRepo(db *bolt.DB) *BoltChatRepo {
	return &BoltChatRepo{db: db, now: time.Now}
}

func (r *BoltChatRepo) Append(ctx context.Context, ownerID, message, reply string) (*models.ChatExchange, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if ownerID == "" {
		return nil, errors.New("owner id is required")
	}

	e := &models.ChatExchange{
		ID:      uuid.New(),
		OwnerID: ownerID,
		Message: message,
		Reply:   reply,
	}

	err := r.db.Update(func(tx *bolt.Tx) error {
		root, err := tx.CreateBucketIfNotExists(chatBucket)
		if err != nil {
			return err
		}
		b, err := root.CreateBucketIfNotExists([]byte(ownerID))
		if err != nil {
			return err
		}

		e.CreatedAt = r.now().UTC()

		// Clamp to the newest stored record so createdAt never goes backwards
		// for an owner, even if the wall clock does.
		if k, v := b.Cursor().Last(); k != nil {
			var last models.ChatExchange
			if err := json.Unmarshal(v, &last); err == nil && e.CreatedAt.Before(last.CreatedAt) {
				e.CreatedAt = last.CreatedAt
			}
		}

		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		data, err := json.Marshal(e)
		if err != nil {
			return err
		}
		return b.Put(seqKey(seq), data)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to store chat exchange: %w", err)
	}
	return e, nil
}

func (r *BoltChatRepo) ListByOwner(ctx context.Context, ownerID string, limit int) ([]models.ChatExchange, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	limit = ClampLimit(limit)
	exchanges := make([]models.ChatExchange, 0, limit)

	err := r.db.View(func(tx *bolt.Tx) error {
		root := tx.Bucket(chatBucket)
		if root == nil || ownerID == "" {
			return nil
		}
		b := root.Bucket([]byte(ownerID))
		if b == nil {
			return nil
		}

		c := b.Cursor()
		for k, v := c.Last(); k != nil && len(exchanges) < limit; k, v = c.Prev() {
			var e models.ChatExchange
			if err := json.Unmarshal(v, &e); err != nil {
				return fmt.Errorf("corrupt record %x: %w", k, err)
			}
			exchanges = append(exchanges, e)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read chat history: %w", err)
	}
	return exchanges, nil
}

func seqKey(seq uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, seq)
	return b
}
