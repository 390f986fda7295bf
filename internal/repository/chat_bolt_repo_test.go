package repository

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	bolt "go.etcd.io/bbolt"
)

func newTestBoltRepo(t *testing.T) *BoltChatRepo {
	t.Helper()
	db, err := bolt.Open(filepath.Join(t.TempDir(), "chat.bolt"), 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		t.Fatalf("failed to open bolt: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewBoltChatRepo(db)
}

func TestClampLimit(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{-1, 20}, {0, 20}, {1, 1}, {5, 5}, {20, 20}, {21, 20}, {1000, 20},
	}
	for _, tc := range tests {
		if got := ClampLimit(tc.in); got != tc.want {
			t.Errorf("ClampLimit(%d) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestBoltChatRepo_AppendAndList(t *testing.T) {
	repo := newTestBoltRepo(t)
	ctx := context.Background()

	e, err := repo.Append(ctx, "u1", "Hello", "Hi there")
	if err != nil {
		t.Fatalf("append failed: %v", err)
	}
	if e.OwnerID != "u1" || e.Message != "Hello" || e.Reply != "Hi there" {
		t.Fatalf("unexpected stored record: %+v", e)
	}
	if e.CreatedAt.IsZero() {
		t.Fatalf("expected server-assigned createdAt")
	}

	list, err := repo.ListByOwner(ctx, "u1", 20)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(list) != 1 || list[0].ID != e.ID {
		t.Fatalf("expected the stored record back, got %+v", list)
	}
}

func TestBoltChatRepo_EmptyOwnerReturnsEmptySlice(t *testing.T) {
	repo := newTestBoltRepo(t)

	list, err := repo.ListByOwner(context.Background(), "nobody", 20)
	if err != nil {
		t.Fatalf("expected no error for unknown owner, got %v", err)
	}
	if list == nil || len(list) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", list)
	}
}

func TestBoltChatRepo_OrderingAndLimit(t *testing.T) {
	repo := newTestBoltRepo(t)
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	tick := 0
	repo.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}

	for i := 0; i < 25; i++ {
		if _, err := repo.Append(ctx, "u1", fmt.Sprintf("m%d", i), "r"); err != nil {
			t.Fatalf("append %d failed: %v", i, err)
		}
	}

	list, err := repo.ListByOwner(ctx, "u1", 0)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(list) != MaxHistoryLimit {
		t.Fatalf("expected %d records, got %d", MaxHistoryLimit, len(list))
	}
	if list[0].Message != "m24" {
		t.Fatalf("expected newest first, got %q", list[0].Message)
	}
	for i := 1; i < len(list); i++ {
		if list[i].CreatedAt.After(list[i-1].CreatedAt) {
			t.Fatalf("records out of order at %d: %s after %s", i, list[i].CreatedAt, list[i-1].CreatedAt)
		}
	}

	small, err := repo.ListByOwner(ctx, "u1", 3)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(small) != 3 || small[2].Message != "m22" {
		t.Fatalf("unexpected limited page: %+v", small)
	}
}

func TestBoltChatRepo_OwnerIsolation(t *testing.T) {
	repo := newTestBoltRepo(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		repo.Append(ctx, "alice", "a", "ra")
		repo.Append(ctx, "bob", "b", "rb")
	}

	list, err := repo.ListByOwner(ctx, "alice", 20)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("expected 3 records for alice, got %d", len(list))
	}
	for _, e := range list {
		if e.OwnerID != "alice" {
			t.Fatalf("foreign record leaked into alice's history: %+v", e)
		}
	}
}

func TestBoltChatRepo_CreatedAtNeverGoesBackwards(t *testing.T) {
	repo := newTestBoltRepo(t)
	ctx := context.Background()

	later := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return later }
	first, err := repo.Append(ctx, "u1", "first", "r")
	if err != nil {
		t.Fatalf("append failed: %v", err)
	}

	repo.now = func() time.Time { return later.Add(-time.Hour) }
	second, err := repo.Append(ctx, "u1", "second", "r")
	if err != nil {
		t.Fatalf("append failed: %v", err)
	}

	if second.CreatedAt.Before(first.CreatedAt) {
		t.Fatalf("createdAt went backwards: %s < %s", second.CreatedAt, first.CreatedAt)
	}

	list, _ := repo.ListByOwner(ctx, "u1", 20)
	if list[0].Message != "second" {
		t.Fatalf("expected insertion order tie-break, got %q first", list[0].Message)
	}
}

func TestBoltChatRepo_ConcurrentAppends(t *testing.T) {
	repo := newTestBoltRepo(t)
	ctx := context.Background()

	repo.Append(ctx, "u1", "before", "r")

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := repo.Append(ctx, "u1", fmt.Sprintf("c%d", i), "r"); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent append failed: %v", err)
	}

	list, _ := repo.ListByOwner(ctx, "u1", 20)
	if len(list) != 3 {
		t.Fatalf("expected 3 records after two concurrent appends, got %d", len(list))
	}
}

func TestBoltChatRepo_CanceledContext(t *testing.T) {
	repo := newTestBoltRepo(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := repo.Append(ctx, "u1", "m", "r"); err == nil {
		t.Fatalf("expected error on canceled context")
	}

	list, _ := repo.ListByOwner(context.Background(), "u1", 20)
	if len(list) != 0 {
		t.Fatalf("no record should exist after a canceled append, got %d", len(list))
	}
}
