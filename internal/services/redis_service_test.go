package services

import (
	"context"
	"testing"
	"time"

	"zawj-chat/internal/config"
	"zawj-chat/internal/database"
	"zawj-chat/pkg/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisService(t *testing.T) *RedisService {
	t.Helper()
	client, err := database.NewRedisConnection(config.RedisConfig{
		URI:          "redis://localhost:6379/15",
		DialTimeout:  time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
		PoolSize:     4,
	}, logger.NewNop())
	if err != nil {
		t.Skip("Redis is not available, skipping test")
	}
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisService(client, logger.NewNop())
}

func TestRedisServicePresence(t *testing.T) {
	svc := newTestRedisService(t)
	ctx := context.Background()
	userID := uuid.New().String()

	online, err := svc.IsUserOnline(ctx, userID)
	require.NoError(t, err)
	assert.False(t, online)

	require.NoError(t, svc.SetUserOnline(ctx, userID))
	online, err = svc.IsUserOnline(ctx, userID)
	require.NoError(t, err)
	assert.True(t, online)

	require.NoError(t, svc.SetUserOffline(ctx, userID))
	online, err = svc.IsUserOnline(ctx, userID)
	require.NoError(t, err)
	assert.False(t, online)
}

func TestRedisServiceRateLimit(t *testing.T) {
	svc := newTestRedisService(t)
	ctx := context.Background()
	key := "rate_limit:test:" + uuid.New().String()

	for i := 0; i < 3; i++ {
		allowed, err := svc.CheckRateLimit(ctx, key, 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, allowed, "request %d should be allowed", i+1)
	}

	allowed, err := svc.CheckRateLimit(ctx, key, 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestRedisServiceMigrationState(t *testing.T) {
	svc := newTestRedisService(t)
	ctx := context.Background()

	require.NoError(t, svc.SetMigrationState(ctx, "1.0.0", "ready"))

	state, err := svc.GetMigrationState(ctx)
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", state["version"])
	assert.Equal(t, "ready", state["status"])
}
