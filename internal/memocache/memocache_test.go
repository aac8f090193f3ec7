package memocache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/fiscal-cli/internal/config"
)

func TestKey(t *testing.T) {
	a := Key("entity_memo", "health")
	assert.Equal(t, a, Key("entity_memo", "health"))
	assert.NotEqual(t, a, Key("entity_memo", "works"))
	assert.NotEqual(t, Key("ab", "c"), Key("a", "bc"))
	assert.Contains(t, a, "fiscal:memo:")
	assert.Len(t, a, len("fiscal:memo:")+64)
}

func TestMemory_GetSet(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(time.Hour)

	_, ok, err := m.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, m.Set(ctx, "k", "memo text"))
	got, ok, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "memo text", got)
}

func TestMemory_Expiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	m := NewMemory(time.Hour)
	m.now = func() time.Time { return now }

	require.NoError(t, m.Set(ctx, "k", "memo"))
	now = now.Add(59 * time.Minute)
	_, ok, _ := m.Get(ctx, "k")
	assert.True(t, ok)

	now = now.Add(2 * time.Minute)
	_, ok, _ = m.Get(ctx, "k")
	assert.False(t, ok)
	assert.Zero(t, m.Len())
}

func TestMemory_NoTTL(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(0)
	m.now = func() time.Time { return time.Date(2100, 1, 1, 0, 0, 0, 0, time.UTC) }
	require.NoError(t, m.Set(ctx, "k", "memo"))
	_, ok, _ := m.Get(ctx, "k")
	assert.True(t, ok)
}

func TestNew(t *testing.T) {
	ctx := context.Background()

	c, err := New(ctx, config.CacheConfig{Enabled: false})
	require.NoError(t, err)
	assert.Nil(t, c)

	c, err = New(ctx, config.CacheConfig{Enabled: true, TTLHours: 1})
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, c)

	_, err = New(ctx, config.CacheConfig{Enabled: true, TTLHours: 1, RedisURL: "not a url"})
	assert.Error(t, err)
}
