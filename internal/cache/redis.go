package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cobitis_web/internal/metrics"
	"cobitis_web/internal/models"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps preferences in Redis as JSON under prefs:<userID>.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore connects to Redis and verifies the connection with a PING.
func NewRedisStore(ctx context.Context, addr, password string, db int, ttl time.Duration) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		PoolSize:     20,
		MinIdleConns: 2,
		MaxRetries:   3,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisStore{client: client, ttl: ttl}, nil
}

func preferenceKey(userID int) string {
	return fmt.Sprintf("prefs:%d", userID)
}

func (r *RedisStore) Load(ctx context.Context, userID int) (models.Preferences, bool, error) {
	var p models.Preferences

	raw, err := r.client.Get(ctx, preferenceKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		metrics.RedisOperations.WithLabelValues("get", "miss").Inc()
		return p, false, nil
	}
	if err != nil {
		metrics.RedisOperations.WithLabelValues("get", "error").Inc()
		return p, false, fmt.Errorf("get preferences for user %d: %w", userID, err)
	}
	metrics.RedisOperations.WithLabelValues("get", "hit").Inc()

	if err := json.Unmarshal(raw, &p); err != nil {
		return models.Preferences{}, false, fmt.Errorf("decode preferences for user %d: %w", userID, err)
	}
	return p, true, nil
}

func (r *RedisStore) Save(ctx context.Context, userID int, p models.Preferences) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal preferences: %w", err)
	}
	if err := r.client.Set(ctx, preferenceKey(userID), data, r.ttl).Err(); err != nil {
		metrics.RedisOperations.WithLabelValues("set", "error").Inc()
		return fmt.Errorf("set preferences for user %d: %w", userID, err)
	}
	metrics.RedisOperations.WithLabelValues("set", "ok").Inc()
	return nil
}

// Close closes the Redis connection pool.
func (r *RedisStore) Close() error {
	return r.client.Close()
}
