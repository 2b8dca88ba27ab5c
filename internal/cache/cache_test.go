package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCache_GetSetDelete(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()

	val, err := c.Get(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, val)

	require.NoError(t, c.Set(ctx, "k", 42, 0))
	val, err = c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "42", val)

	require.NoError(t, c.Delete(ctx, "k"))
	val, err = c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Empty(t, val)
}

func TestMemoryCache_Expiration(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	require.NoError(t, c.Set(ctx, "k", "v", time.Minute))

	now = now.Add(59 * time.Second)
	val, _ := c.Get(ctx, "k")
	assert.Equal(t, "v", val)

	now = now.Add(time.Second)
	val, _ = c.Get(ctx, "k")
	assert.Empty(t, val)
}

func TestMemoryCache_SetSweepsExpiredEntries(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	require.NoError(t, c.Set(ctx, "stripe:event:evt_1", "1", time.Minute))
	require.NoError(t, c.Set(ctx, "stripe:event:evt_2", "1", time.Hour))
	require.NoError(t, c.Set(ctx, "pinned", "1", 0))

	now = now.Add(2 * time.Minute)
	require.NoError(t, c.Set(ctx, "stripe:event:evt_3", "1", time.Minute))

	c.mu.Lock()
	defer c.mu.Unlock()
	assert.Len(t, c.entries, 3)
	assert.NotContains(t, c.entries, "stripe:event:evt_1")
	assert.Contains(t, c.entries, "pinned")
}

func TestProcessedEvents(t *testing.T) {
	ctx := context.Background()
	p := NewProcessedEvents(NewMemoryCache(), time.Hour)

	done, err := p.IsProcessed(ctx, "evt_1")
	require.NoError(t, err)
	assert.False(t, done)

	require.NoError(t, p.MarkProcessed(ctx, "evt_1"))

	done, err = p.IsProcessed(ctx, "evt_1")
	require.NoError(t, err)
	assert.True(t, done)

	done, err = p.IsProcessed(ctx, "evt_2")
	require.NoError(t, err)
	assert.False(t, done)
}

func TestRedisCache_RoundTrip(t *testing.T) {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}
	ctx := context.Background()

	c, err := NewRedisCache(ctx, RedisConfig{Address: addr})
	require.NoError(t, err)
	defer c.Close()

	p := NewProcessedEvents(c, time.Minute)
	id := "evt_test_" + time.Now().Format("150405.000000000")

	done, err := p.IsProcessed(ctx, id)
	require.NoError(t, err)
	assert.False(t, done)

	require.NoError(t, p.MarkProcessed(ctx, id))
	done, err = p.IsProcessed(ctx, id)
	require.NoError(t, err)
	assert.True(t, done)

	require.NoError(t, c.Delete(ctx, processedEventPrefix+id))
}
