// Package memocache keeps drafted memos keyed by the request that produced
// them, so repeated memo requests for an unchanged brief skip the model.
package memocache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/fiscal-cli/internal/config"
)

const keyPrefix = "fiscal:memo:"

// Cache stores memo text by key.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, memo string) error
}

// Key hashes parts into a cache key. Parts are separated so that ("ab", "c")
// and ("a", "bc") differ.
func Key(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return keyPrefix + hex.EncodeToString(h.Sum(nil))
}

// New builds the cache described by cfg. It returns nil when caching is
// disabled, a Redis cache when a URL is set, and a Memory cache otherwise.
func New(ctx context.Context, cfg config.CacheConfig) (Cache, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	ttl := time.Duration(cfg.TTLHours) * time.Hour
	if cfg.RedisURL == "" {
		zap.L().Debug("memocache: using in-process cache", zap.Duration("ttl", ttl))
		return NewMemory(ttl), nil
	}
	r, err := NewRedis(ctx, cfg.RedisURL, ttl)
	if err != nil {
		return nil, err
	}
	zap.L().Info("memocache: using redis", zap.Duration("ttl", ttl))
	return r, nil
}

type entry struct {
	memo    string
	expires time.Time
}

// Memory is an in-process Cache with a fixed TTL.
type Memory struct {
	mu    sync.Mutex
	ttl   time.Duration
	now   func() time.Time
	items map[string]entry
}

// NewMemory creates an empty Memory cache. ttl <= 0 keeps entries forever.
func NewMemory(ttl time.Duration) *Memory {
	return &Memory{ttl: ttl, now: time.Now, items: make(map[string]entry)}
}

// Get returns the memo for key if present and unexpired.
func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.items[key]
	if !ok {
		return "", false, nil
	}
	if !e.expires.IsZero() && m.now().After(e.expires) {
		delete(m.items, key)
		return "", false, nil
	}
	return e.memo, true, nil
}

// Set stores memo under key.
func (m *Memory) Set(_ context.Context, key, memo string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e := entry{memo: memo}
	if m.ttl > 0 {
		e.expires = m.now().Add(m.ttl)
	}
	m.items[key] = e
	return nil
}

// Len returns the number of stored entries, expired ones included.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}
