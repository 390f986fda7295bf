package repository

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"relay-backend/internal/database"
)

// These tests need real services and are skipped unless TEST_DATABASE_URL or
// TEST_REDIS_URL is set.

func TestChatRepo_Postgres(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	if err := database.MigrateUp(dsn); err != nil {
		t.Fatalf("migrations failed: %v", err)
	}
	pool, err := database.NewPostgresPool(dsn)
	if err != nil {
		t.Fatalf("pool failed: %v", err)
	}
	defer pool.Close()

	repo := NewChatRepo(pool)
	ctx := context.Background()
	owner := "pg-" + uuid.NewString()
	other := "pg-" + uuid.NewString()

	for i := 0; i < 23; i++ {
		if _, err := repo.Append(ctx, owner, fmt.Sprintf("m%d", i), "r"); err != nil {
			t.Fatalf("append failed: %v", err)
		}
	}
	repo.Append(ctx, other, "x", "y")

	list, err := repo.ListByOwner(ctx, owner, 100)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(list) != MaxHistoryLimit {
		t.Fatalf("expected %d records, got %d", MaxHistoryLimit, len(list))
	}
	if list[0].Message != "m22" {
		t.Fatalf("expected newest first, got %q", list[0].Message)
	}
	for i, e := range list {
		if e.OwnerID != owner {
			t.Fatalf("foreign record at %d: %+v", i, e)
		}
		if i > 0 && e.CreatedAt.After(list[i-1].CreatedAt) {
			t.Fatalf("records out of order at %d", i)
		}
	}

	empty, err := repo.ListByOwner(ctx, "pg-nobody-"+uuid.NewString(), 20)
	if err != nil || empty == nil || len(empty) != 0 {
		t.Fatalf("expected empty slice, got %#v err=%v", empty, err)
	}
}

func TestCachedHistory_Redis(t *testing.T) {
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}

	opt, err := redis.ParseURL(url)
	if err != nil {
		t.Fatalf("bad redis url: %v", err)
	}
	client := redis.NewClient(opt)
	defer client.Close()

	cache := NewCachedHistory(newTestBoltRepo(t), client, time.Minute)
	ctx := context.Background()
	owner := "cache-" + uuid.NewString()

	first, err := cache.ListByOwner(ctx, owner, 20)
	if err != nil || len(first) != 0 {
		t.Fatalf("expected empty history, got %d err=%v", len(first), err)
	}

	if _, err := cache.Append(ctx, owner, "Hello", "Hi there"); err != nil {
		t.Fatalf("append failed: %v", err)
	}

	// The empty page cached above must not be served after the append.
	after, err := cache.ListByOwner(ctx, owner, 20)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(after) != 1 || after[0].Reply != "Hi there" {
		t.Fatalf("expected fresh history after append, got %+v", after)
	}

	limited, _ := cache.ListByOwner(ctx, owner, 1)
	if len(limited) != 1 {
		t.Fatalf("expected cached page to honor limit, got %d", len(limited))
	}
}
