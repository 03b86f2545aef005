// Package notify tells players that widget configuration changed
package notify

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/koios/matrx-widgets/internal/config"
	"github.com/koios/matrx-widgets/pkg/models"
)

// Publisher delivers widget events and owns a broker connection
type Publisher interface {
	Publish(ctx context.Context, event models.WidgetEvent) error
	Close() error
}

// Nop drops every event
type Nop struct{}

func (Nop) Publish(ctx context.Context, event models.WidgetEvent) error { return nil }

func (Nop) Close() error { return nil }

// New selects the publisher named by cfg.Notifier
func New(cfg *config.Config, logger *zap.Logger) (Publisher, error) {
	switch cfg.Notifier {
	case "", "none":
		return Nop{}, nil
	case "redis":
		return NewRedisPublisher(cfg.Redis, logger)
	case "amqp":
		return NewAMQPPublisher(cfg.AMQP, logger)
	default:
		return nil, fmt.Errorf("unknown notifier %q", cfg.Notifier)
	}
}

// ChannelName is the Redis channel players of a region subscribe to
func ChannelName(regionID string) string {
	return fmt.Sprintf("region:%s", regionID)
}

// RoutingKey is the AMQP routing key for events of a region
func RoutingKey(regionID string) string {
	return fmt.Sprintf("region.%s", regionID)
}
