package storage

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*RedisChannel, *miniredis.Miniredis) {
	s := miniredis.RunT(t)
	rc, err := NewRedisChannel("redis://" + s.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = rc.Close() })
	return rc, s
}

func TestNewRedisChannel_BadURL(t *testing.T) {
	_, err := NewRedisChannel("::not a url")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse redis url")
}

func TestRedisChannel_SetGetDelete(t *testing.T) {
	rc, s := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, rc.Set(ctx, "token:customer", "tok", time.Time{}))
	assert.True(t, s.Exists("gophshop:credential:token:customer"))

	got, err := rc.Get(ctx, "token:customer")
	require.NoError(t, err)
	assert.Equal(t, "tok", got)

	require.NoError(t, rc.Delete(ctx, "token:customer"))
	_, err = rc.Get(ctx, "token:customer")
	assert.ErrorIs(t, err, ErrNotFound)

	// deleting a missing key is fine
	require.NoError(t, rc.Delete(ctx, "token:customer"))
}

func TestRedisChannel_Expiry(t *testing.T) {
	rc, s := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, rc.Set(ctx, "token:admin", "tok", time.Now().Add(time.Minute)))
	assert.Positive(t, s.TTL("gophshop:credential:token:admin"))

	s.FastForward(2 * time.Minute)

	_, err := rc.Get(ctx, "token:admin")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisChannel_PastExpiryDeletes(t *testing.T) {
	rc, s := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, rc.Set(ctx, "k", "v", time.Time{}))
	require.NoError(t, rc.Set(ctx, "k", "v2", time.Now().Add(-time.Minute)))
	assert.False(t, s.Exists("gophshop:credential:k"))
}

func TestRedisChannel_Unavailable(t *testing.T) {
	rc, s := setupTestRedis(t)
	s.Close()

	_, err := rc.Get(context.Background(), "k")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}
