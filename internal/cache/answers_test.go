package cache

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"docuchat/internal/redis"
)

type memKV struct {
	mu   sync.Mutex
	data map[string]string
}

func newMemKV() *memKV { return &memKV{data: make(map[string]string)} }

func (m *memKV) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value.(string)
	return nil
}

func (m *memKV) Get(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return "", redis.ErrCacheMiss
	}
	return v, nil
}

func (m *memKV) Incr(ctx context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, _ := strconv.ParseInt(m.data[key], 10, 64)
	n++
	m.data[key] = strconv.FormatInt(n, 10)
	return n, nil
}

func TestLookupMissThenHit(t *testing.T) {
	ctx := context.Background()
	c := NewAnswerCache(newMemKV(), time.Minute)

	if _, ok := c.Lookup(ctx, "alice", "capital of France?"); ok {
		t.Fatalf("expected miss on empty cache")
	}
	if err := c.Store(ctx, "alice", "capital of France?", "Paris"); err != nil {
		t.Fatalf("store: %v", err)
	}
	answer, ok := c.Lookup(ctx, "alice", "capital of France?")
	if !ok || answer != "Paris" {
		t.Fatalf("expected cached answer, got %q ok=%v", answer, ok)
	}
}

func TestEntriesAreScopedPerUser(t *testing.T) {
	ctx := context.Background()
	c := NewAnswerCache(newMemKV(), time.Minute)

	if err := c.Store(ctx, "alice", "question", "alice answer"); err != nil {
		t.Fatalf("store: %v", err)
	}
	if _, ok := c.Lookup(ctx, "bob", "question"); ok {
		t.Fatalf("bob must not see alice's cached answer")
	}
}

func TestInvalidateDropsCachedAnswers(t *testing.T) {
	ctx := context.Background()
	c := NewAnswerCache(newMemKV(), time.Minute)

	if err := c.Store(ctx, "alice", "question", "stale"); err != nil {
		t.Fatalf("store: %v", err)
	}
	if err := c.Invalidate(ctx, "alice"); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if _, ok := c.Lookup(ctx, "alice", "question"); ok {
		t.Fatalf("expected miss after invalidation")
	}
	// the same question can be cached again under the new version
	if err := c.Store(ctx, "alice", "question", "fresh"); err != nil {
		t.Fatalf("store after invalidate: %v", err)
	}
	answer, ok := c.Lookup(ctx, "alice", "question")
	if !ok || answer != "fresh" {
		t.Fatalf("expected fresh answer, got %q ok=%v", answer, ok)
	}
}

func TestNilBackendDisablesCaching(t *testing.T) {
	ctx := context.Background()
	c := NewAnswerCache(nil, time.Minute)

	if err := c.Store(ctx, "alice", "q", "a"); err != nil {
		t.Fatalf("store should be a no-op: %v", err)
	}
	if _, ok := c.Lookup(ctx, "alice", "q"); ok {
		t.Fatalf("nil backend must always miss")
	}
	if err := c.Invalidate(ctx, "alice"); err != nil {
		t.Fatalf("invalidate should be a no-op: %v", err)
	}
}
