package cache

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	_, ok, err := s.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	val := []byte("payload")
	require.NoError(t, s.Set(ctx, "k", val, time.Minute))
	val[0] = 'X'

	got, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "payload", string(got))

	require.NoError(t, s.Set(ctx, "forever", []byte("v"), 0))

	now = now.Add(2 * time.Minute)
	_, ok, _ = s.Get(ctx, "k")
	assert.False(t, ok)
	_, ok, _ = s.Get(ctx, "forever")
	assert.True(t, ok)
	assert.Equal(t, 1, s.Len())
}

func TestNewRedisStore_BadURL(t *testing.T) {
	_, err := NewRedisStore("not a url", "rh:")
	assert.Error(t, err)
}

func TestRedisStore_Unreachable(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 200 * time.Millisecond,
		MaxRetries:  -1,
	})
	s := NewRedisStoreFromClient(client, "rh:")
	defer func() { _ = s.Close() }()

	assert.Equal(t, "rh:abc", s.key("abc"))

	ctx := context.Background()
	_, ok, err := s.Get(ctx, "abc")
	assert.Error(t, err)
	assert.False(t, ok)
	assert.Error(t, s.Set(ctx, "abc", []byte("v"), time.Minute))
	assert.Error(t, s.Ping(ctx))
}
