package repository

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/mansoorceksport/imgcrop/internal/domain"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestReplayCache(t *testing.T) (*RedisReplayCache, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewRedisReplayCache(client), mr
}

func TestReplayCacheRoundTrip(t *testing.T) {
	cache, mr := newTestReplayCache(t)
	ctx := context.Background()

	_, err := cache.GetResponse(ctx, "abc")
	assert.ErrorIs(t, err, domain.ErrCacheMiss)

	body := []byte(`{"message":"success","url":"http://h/files/temp/x.png"}`)
	require.NoError(t, cache.SetResponse(ctx, "abc", body, time.Minute))

	got, err := cache.GetResponse(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, body, got)
	assert.True(t, mr.Exists("idempotency:abc"))
}

func TestReplayCacheExpires(t *testing.T) {
	cache, mr := newTestReplayCache(t)
	ctx := context.Background()

	require.NoError(t, cache.SetResponse(ctx, "abc", []byte("x"), time.Minute))
	mr.FastForward(2 * time.Minute)

	_, err := cache.GetResponse(ctx, "abc")
	assert.ErrorIs(t, err, domain.ErrCacheMiss)
}
