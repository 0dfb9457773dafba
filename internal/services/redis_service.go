package services

import (
	"context"
	"fmt"
	"time"

	"zawj-chat/internal/database"
	"zawj-chat/pkg/logger"

	"github.com/redis/go-redis/v9"
)

const onlineUsersKey = "online_users"

type RedisService struct {
	client *database.RedisClient
	logger *logger.Logger
}

func NewRedisService(client *database.RedisClient, log *logger.Logger) *RedisService {
	return &RedisService{
		client: client,
		logger: log,
	}
}

// =============================================================================
// Presence
// =============================================================================

func (r *RedisService) SetUserOnline(ctx context.Context, userID string) error {
	pipe := r.client.GetClient().Pipeline()

	pipe.SAdd(ctx, onlineUsersKey, userID)
	pipe.HSet(ctx, fmt.Sprintf("user:%s:status", userID), map[string]interface{}{
		"status":     "online",
		"last_seen":  time.Now().Unix(),
		"updated_at": time.Now().Unix(),
	})
	pipe.Expire(ctx, fmt.Sprintf("user:%s:status", userID), 5*time.Minute)

	if _, err := pipe.Exec(ctx); err != nil {
		r.logger.Error("Failed to set user online", "userID", userID, "error", err)
		return err
	}

	r.logger.Debug("User set to online", "userID", userID)
	return nil
}

func (r *RedisService) SetUserOffline(ctx context.Context, userID string) error {
	pipe := r.client.GetClient().Pipeline()

	pipe.SRem(ctx, onlineUsersKey, userID)
	pipe.HSet(ctx, fmt.Sprintf("user:%s:status", userID), map[string]interface{}{
		"status":     "offline",
		"last_seen":  time.Now().Unix(),
		"updated_at": time.Now().Unix(),
	})
	pipe.Expire(ctx, fmt.Sprintf("user:%s:status", userID), 24*time.Hour)

	if _, err := pipe.Exec(ctx); err != nil {
		r.logger.Error("Failed to set user offline", "userID", userID, "error", err)
		return err
	}

	r.logger.Debug("User set to offline", "userID", userID)
	return nil
}

func (r *RedisService) IsUserOnline(ctx context.Context, userID string) (bool, error) {
	return r.client.GetClient().SIsMember(ctx, onlineUsersKey, userID).Result()
}

// =============================================================================
// Rate Limiting
// =============================================================================

// CheckRateLimit is a sliding window counter stored in a sorted set.
func (r *RedisService) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	now := time.Now()
	windowStart := now.Add(-window).UnixNano()

	pipe := r.client.GetClient().Pipeline()
	pipe.ZRemRangeByScore(ctx, key, "0", fmt.Sprintf("%d", windowStart))
	pipe.ZCard(ctx, key)
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(now.UnixNano()), Member: now.UnixNano()})
	pipe.Expire(ctx, key, window)

	results, err := pipe.Exec(ctx)
	if err != nil {
		return false, err
	}

	count := results[1].(*redis.IntCmd).Val()
	return count < int64(limit), nil
}

// =============================================================================
// Migration State Management
// =============================================================================

func (r *RedisService) SetMigrationState(ctx context.Context, version string, status string) error {
	return r.client.GetClient().HSet(ctx, "db:migration:status", map[string]interface{}{
		"version":    version,
		"status":     status,
		"updated_at": time.Now().Unix(),
	}).Err()
}

func (r *RedisService) GetMigrationState(ctx context.Context) (map[string]string, error) {
	return r.client.GetClient().HGetAll(ctx, "db:migration:status").Result()
}
