package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"mosaic-functions/internal/common/config"
)

func TestRetryWithBackoff(t *testing.T) {
	calls := 0
	err := retryWithBackoff(func() error {
		calls++
		if calls < 3 {
			return errors.New("not yet")
		}
		return nil
	}, 5, time.Millisecond, zap.NewNop(), "op")
	require.NoError(t, err)
	assert.Equal(t, 3, calls)

	calls = 0
	err = retryWithBackoff(func() error {
		calls++
		return errors.New("down")
	}, 2, time.Millisecond, zap.NewNop(), "op")
	assert.EqualError(t, err, "op failed after 2 attempts: down")
	assert.Equal(t, 2, calls)
}

func TestConnectRedis(t *testing.T) {
	ctx := context.Background()

	t.Run("reachable", func(t *testing.T) {
		mr := miniredis.RunT(t)
		client, err := connectRedis(ctx, config.RedisConfig{Enabled: true, Address: mr.Addr()}, 3, time.Millisecond, zap.NewNop())
		require.NoError(t, err)
		t.Cleanup(func() { _ = client.Close() })
		assert.NoError(t, client.Ping(ctx))
	})

	t.Run("unreachable returns no client", func(t *testing.T) {
		mr := miniredis.RunT(t)
		addr := mr.Addr()
		mr.Close()

		client, err := connectRedis(ctx, config.RedisConfig{Enabled: true, Address: addr}, 2, time.Millisecond, zap.NewNop())
		assert.ErrorContains(t, err, "Redis connection failed after 2 attempts")
		assert.Nil(t, client)
	})

	t.Run("recovers once the server answers", func(t *testing.T) {
		mr := miniredis.RunT(t)
		mr.SetError("LOADING")
		go func() {
			time.Sleep(20 * time.Millisecond)
			mr.SetError("")
		}()

		client, err := connectRedis(ctx, config.RedisConfig{Enabled: true, Address: mr.Addr()}, 6, 10*time.Millisecond, zap.NewNop())
		require.NoError(t, err)
		t.Cleanup(func() { _ = client.Close() })
		assert.NoError(t, client.Ping(ctx))
	})

	t.Run("missing address", func(t *testing.T) {
		client, err := connectRedis(ctx, config.RedisConfig{Enabled: true}, 3, time.Millisecond, zap.NewNop())
		assert.EqualError(t, err, "redis address is required")
		assert.Nil(t, client)
	})
}
