package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/koios/matrx-widgets/internal/config"
)

const keyPrefix = "resource"

// RedisCache stores rendered widget documents in Redis
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache creates a new shared Redis cache instance
func NewRedisCache(cfg *config.RedisConfig) *RedisCache {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	return &RedisCache{
		client: rdb,
	}
}

// Close closes the Redis connection
func (r *RedisCache) Close() error {
	return r.client.Close()
}

// Ping tests the Redis connection
func (r *RedisCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// buildKey scopes a cache entry to its widget
func buildKey(widgetID, variant string) string {
	// Clean parts to remove any potential path separators
	cleanID := strings.ReplaceAll(widgetID, "/", "_")
	cleanVariant := strings.ReplaceAll(variant, "/", "_")
	return fmt.Sprintf("%s/%s/%s", keyPrefix, cleanID, cleanVariant)
}

// Get retrieves a rendered document
func (r *RedisCache) Get(ctx context.Context, widgetID, variant string) (string, bool, error) {
	cacheKey := buildKey(widgetID, variant)

	result, err := r.client.Get(ctx, cacheKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to get key %s from Redis: %w", cacheKey, err)
	}

	return result, true, nil
}

// Set stores a rendered document with the given TTL
func (r *RedisCache) Set(ctx context.Context, widgetID, variant, document string, ttl time.Duration) error {
	cacheKey := buildKey(widgetID, variant)

	if err := r.client.Set(ctx, cacheKey, document, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set key %s in Redis: %w", cacheKey, err)
	}

	return nil
}

// FlushWidget removes every cached document of a widget
func (r *RedisCache) FlushWidget(ctx context.Context, widgetID string) error {
	pattern := fmt.Sprintf("%s/%s/*", keyPrefix, strings.ReplaceAll(widgetID, "/", "_"))

	iter := r.client.Scan(ctx, 0, pattern, 0).Iterator()
	var keys []string

	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}

	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan for keys with pattern %s: %w", pattern, err)
	}

	if len(keys) > 0 {
		if err := r.client.Del(ctx, keys...).Err(); err != nil {
			return fmt.Errorf("failed to delete keys: %w", err)
		}
	}

	return nil
}

// Stats returns the number of cached documents for a widget
func (r *RedisCache) Stats(ctx context.Context, widgetID string) (int64, error) {
	pattern := fmt.Sprintf("%s/%s/*", keyPrefix, strings.ReplaceAll(widgetID, "/", "_"))

	var count int64
	iter := r.client.Scan(ctx, 0, pattern, 0).Iterator()

	for iter.Next(ctx) {
		count++
	}

	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("failed to count keys with pattern %s: %w", pattern, err)
	}

	return count, nil
}
