package marker

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client, "link"), mr
}

func TestRedisStore_SetGet(t *testing.T) {
	s, mr := newRedisStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "abc", "valid", 60*time.Second))
	require.True(t, mr.Exists("link:abc"))
	require.Equal(t, 60*time.Second, mr.TTL("link:abc"))

	v, ok, err := s.Get(ctx, "abc")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "valid", v)
}

func TestRedisStore_Expiry(t *testing.T) {
	s, mr := newRedisStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "abc", "valid", 30*time.Second))
	mr.FastForward(31 * time.Second)

	_, ok, err := s.Get(ctx, "abc")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRedisStore_NonPositiveTTL(t *testing.T) {
	s, mr := newRedisStore(t)
	require.NoError(t, s.Set(context.Background(), "abc", "valid", 0))
	require.False(t, mr.Exists("link:abc"))
}

func TestRedisStore_ServerDown(t *testing.T) {
	s, mr := newRedisStore(t)
	mr.Close()

	err := s.Set(context.Background(), "abc", "valid", time.Minute)
	require.Error(t, err)

	_, ok, err := s.Get(context.Background(), "abc")
	require.Error(t, err)
	require.False(t, ok)
}
