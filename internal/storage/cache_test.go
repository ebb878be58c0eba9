package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCacheSetGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()

	require.NoError(t, c.Set(ctx, "sensor:abc:latest", []byte("payload"), time.Minute))

	val, ok, err := c.Get(ctx, "sensor:abc:latest")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("payload"), val)
}

func TestMemoryCacheExpiresEntries(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()

	require.NoError(t, c.Set(ctx, "k", []byte("v"), 10*time.Millisecond))
	time.Sleep(30 * time.Millisecond)

	_, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryCacheInvalidatePrefix(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()

	require.NoError(t, c.Set(ctx, "query:hash1", []byte("a"), time.Minute))
	require.NoError(t, c.Set(ctx, "query:hash2", []byte("b"), time.Minute))
	require.NoError(t, c.Set(ctx, "sensor:abc:latest", []byte("c"), time.Minute))

	require.NoError(t, c.InvalidatePrefix(ctx, "query:"))

	_, ok, _ := c.Get(ctx, "query:hash1")
	assert.False(t, ok)
	_, ok, _ = c.Get(ctx, "query:hash2")
	assert.False(t, ok)
	_, ok, _ = c.Get(ctx, "sensor:abc:latest")
	assert.True(t, ok)
}

func TestCacheKeyBuilders(t *testing.T) {
	assert.Equal(t, "sensor:abc:latest", sensorLatestKey("abc"))
	assert.Equal(t, "sensor:abc:metadata", sensorMetadataKey("abc"))
	assert.Equal(t, "query:deadbeef", queryKey("deadbeef"))
}
