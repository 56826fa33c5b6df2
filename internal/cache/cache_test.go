package cache

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemStoreSetGet(t *testing.T) {
	store := NewMemStore()
	ctx := context.Background()

	if err := store.Set(ctx, "user_data:42", []byte("payload"), 0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, err := store.Get(ctx, "user_data:42")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !bytes.Equal(got, []byte("payload")) {
		t.Errorf("expected payload, got %q", got)
	}
}

func TestMemStoreMiss(t *testing.T) {
	store := NewMemStore()

	_, err := store.Get(context.Background(), "no_such_key")
	if !errors.Is(err, ErrCacheMiss) {
		t.Errorf("expected ErrCacheMiss, got %v", err)
	}
}

func TestMemStoreTTLExpiry(t *testing.T) {
	store := NewMemStore()
	ctx := context.Background()

	if err := store.Set(ctx, "stats:today", []byte("x"), 10*time.Millisecond); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	time.Sleep(20 * time.Millisecond)

	if _, err := store.Get(ctx, "stats:today"); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected ErrCacheMiss after TTL, got %v", err)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.Evictions != 1 {
		t.Errorf("expected 1 eviction, got %d", stats.Evictions)
	}
}

func TestMemStoreDelete(t *testing.T) {
	store := NewMemStore()
	ctx := context.Background()

	store.Set(ctx, "game_data:7", []byte("x"), 0)
	if err := store.Delete(ctx, "game_data:7"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := store.Get(ctx, "game_data:7"); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("expected ErrCacheMiss after Delete, got %v", err)
	}
}

func TestMemStoreClearPrefix(t *testing.T) {
	store := NewMemStore()
	ctx := context.Background()

	store.Set(ctx, "user_data:1", []byte("a"), 0)
	store.Set(ctx, "user_data:2", []byte("b"), 0)
	store.Set(ctx, "game_data:1", []byte("c"), 0)

	removed, err := store.ClearPrefix(ctx, "user_data")
	if err != nil {
		t.Fatalf("ClearPrefix failed: %v", err)
	}
	if removed != 2 {
		t.Errorf("expected 2 removed keys, got %d", removed)
	}

	if _, err := store.Get(ctx, "game_data:1"); err != nil {
		t.Errorf("unrelated key must survive: %v", err)
	}

	stats, _ := store.Stats(ctx)
	if stats.Invalidations != 2 {
		t.Errorf("expected 2 invalidations, got %d", stats.Invalidations)
	}
	if stats.Size != 1 {
		t.Errorf("expected size 1, got %d", stats.Size)
	}
}

func TestMemStoreStatsCounting(t *testing.T) {
	store := NewMemStore()
	ctx := context.Background()

	store.Set(ctx, "api:odds", []byte("x"), 0)

	store.Get(ctx, "api:odds")
	store.Get(ctx, "api:odds")
	store.Get(ctx, "api:lines")

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.Hits != 2 {
		t.Errorf("expected 2 hits, got %d", stats.Hits)
	}
	if stats.Misses != 1 {
		t.Errorf("expected 1 miss, got %d", stats.Misses)
	}
}
