package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/koios/matrx-widgets/internal/config"
	"github.com/koios/matrx-widgets/pkg/models"
)

// RedisPublisher publishes widget events over Redis pub/sub
type RedisPublisher struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisPublisher connects to Redis and verifies the connection
func NewRedisPublisher(cfg config.RedisConfig, logger *zap.Logger) (*RedisPublisher, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		PoolTimeout:  30 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Test the connection
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Connected to Redis for widget events", zap.String("addr", cfg.Addr))

	return &RedisPublisher{client: rdb, logger: logger}, nil
}

// Close closes the Redis connection
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}

// Publish sends the event to the region's channel
func (p *RedisPublisher) Publish(ctx context.Context, event models.WidgetEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal widget event: %w", err)
	}

	channel := ChannelName(event.RegionID)

	if err := p.client.Publish(ctx, channel, body).Err(); err != nil {
		return fmt.Errorf("failed to publish to Redis channel %s: %w", channel, err)
	}

	p.logger.Debug("Published widget event",
		zap.String("channel", channel),
		zap.String("widget_id", event.WidgetID),
		zap.String("type", event.Type))

	return nil
}
