package widget

import (
	"context"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/koios/matrx-widgets/pkg/models"
)

// WidgetStore persists regions and widgets
type WidgetStore interface {
	GetRegion(ctx context.Context, id string) (*models.Region, error)
	GetWidget(ctx context.Context, id string) (*models.Widget, error)
	SaveWidget(ctx context.Context, w *models.Widget) error
}

// ResourceCache stores rendered documents per widget and request variant
type ResourceCache interface {
	Get(ctx context.Context, widgetID, variant string) (string, bool, error)
	Set(ctx context.Context, widgetID, variant, document string, ttl time.Duration) error
	FlushWidget(ctx context.Context, widgetID string) error
}

// Notifier tells players that a widget changed
type Notifier interface {
	Publish(ctx context.Context, event models.WidgetEvent) error
}

// Service runs widget operations against the module registry and its collaborators
type Service struct {
	registry *Registry
	store    WidgetStore
	cache    ResourceCache
	notifier Notifier
	cacheTTL time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

// NewService creates a widget service
func NewService(registry *Registry, store WidgetStore, cache ResourceCache, notifier Notifier, cacheTTL time.Duration, logger *zap.Logger) *Service {
	return &Service{
		registry: registry,
		store:    store,
		cache:    cache,
		notifier: notifier,
		cacheTTL: cacheTTL,
		logger:   logger,
		now:      time.Now,
	}
}

// Registry returns the module dispatch table
func (s *Service) Registry() *Registry {
	return s.registry
}

// AddWidget creates a widget of moduleType in a region from submitted fields
func (s *Service) AddWidget(ctx context.Context, regionID, moduleType string, params Params) (*models.Widget, error) {
	module, err := s.registry.Get(moduleType)
	if err != nil {
		return nil, err
	}

	if _, err := s.store.GetRegion(ctx, regionID); err != nil {
		return nil, fmt.Errorf("failed to load region %s: %w", regionID, err)
	}

	now := s.now().UTC()
	w := &models.Widget{
		ID:        ulid.Make().String(),
		RegionID:  regionID,
		Type:      moduleType,
		CreatedAt: now,
	}

	return s.apply(ctx, module, w, params, "widget_added")
}

// EditWidget overwrites an existing widget's configuration from submitted fields
func (s *Service) EditWidget(ctx context.Context, widgetID string, params Params) (*models.Widget, error) {
	w, err := s.store.GetWidget(ctx, widgetID)
	if err != nil {
		return nil, fmt.Errorf("failed to load widget %s: %w", widgetID, err)
	}

	module, err := s.registry.Get(w.Type)
	if err != nil {
		return nil, err
	}

	return s.apply(ctx, module, w, params, "widget_updated")
}

func (s *Service) apply(ctx context.Context, module Module, w *models.Widget, params Params, eventType string) (*models.Widget, error) {
	if err := module.Apply(w, params); err != nil {
		return nil, err
	}

	// UpdatedAt versions cached documents and advances on every save
	updatedAt := s.now().UTC()
	if !updatedAt.After(w.UpdatedAt) {
		updatedAt = w.UpdatedAt.Add(time.Nanosecond)
	}
	w.UpdatedAt = updatedAt
	if err := s.store.SaveWidget(ctx, w); err != nil {
		return nil, fmt.Errorf("failed to save widget %s: %w", w.ID, err)
	}

	if err := s.cache.FlushWidget(ctx, w.ID); err != nil {
		s.logger.Warn("Failed to flush cached resources",
			zap.String("widget_id", w.ID),
			zap.Error(err))
	}

	event := models.WidgetEvent{
		Type:      eventType,
		WidgetID:  w.ID,
		RegionID:  w.RegionID,
		Module:    w.Type,
		ChangedAt: w.UpdatedAt,
	}
	if err := s.notifier.Publish(ctx, event); err != nil {
		s.logger.Warn("Failed to publish widget event",
			zap.String("widget_id", w.ID),
			zap.String("event", eventType),
			zap.Error(err))
	}

	s.logger.Info("Widget saved",
		zap.String("widget_id", w.ID),
		zap.String("region_id", w.RegionID),
		zap.String("type", w.Type),
		zap.String("event", eventType))

	return w, nil
}

// GetWidget returns a stored widget
func (s *Service) GetWidget(ctx context.Context, widgetID string) (*models.Widget, error) {
	return s.store.GetWidget(ctx, widgetID)
}

func (s *Service) load(ctx context.Context, widgetID string) (*models.Widget, *models.Region, Module, error) {
	w, err := s.store.GetWidget(ctx, widgetID)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load widget %s: %w", widgetID, err)
	}

	region, err := s.store.GetRegion(ctx, w.RegionID)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load region %s: %w", w.RegionID, err)
	}

	module, err := s.registry.Get(w.Type)
	if err != nil {
		return nil, nil, nil, err
	}

	return w, region, module, nil
}

// Preview renders the CMS preview of a widget
func (s *Service) Preview(ctx context.Context, widgetID string, req PreviewRequest) (string, error) {
	w, region, module, err := s.load(ctx, widgetID)
	if err != nil {
		return "", err
	}
	return module.Preview(w, region, req)
}

// Resource renders the playback document of a widget, served from cache when possible.
// Entries are keyed by the widget version read before rendering.
func (s *Service) Resource(ctx context.Context, widgetID string, req ResourceRequest) (string, error) {
	w, err := s.store.GetWidget(ctx, widgetID)
	if err != nil {
		return "", fmt.Errorf("failed to load widget %s: %w", widgetID, err)
	}
	variant := resourceVariant(req, w.UpdatedAt)

	if document, found, err := s.cache.Get(ctx, widgetID, variant); err != nil {
		s.logger.Warn("Resource cache lookup failed",
			zap.String("widget_id", widgetID),
			zap.Error(err))
	} else if found {
		s.logger.Debug("Resource cache hit", zap.String("widget_id", widgetID))
		return document, nil
	}

	region, err := s.store.GetRegion(ctx, w.RegionID)
	if err != nil {
		return "", fmt.Errorf("failed to load region %s: %w", w.RegionID, err)
	}

	module, err := s.registry.Get(w.Type)
	if err != nil {
		return "", err
	}

	document, err := module.GetResource(w, region, req)
	if err != nil {
		return "", err
	}

	if err := s.cache.Set(ctx, widgetID, variant, document, s.cacheTTL); err != nil {
		s.logger.Warn("Failed to cache resource",
			zap.String("widget_id", widgetID),
			zap.Error(err))
	}

	return document, nil
}

// Validity reports whether a widget is known to play
func (s *Service) Validity(ctx context.Context, widgetID string) (models.Validity, error) {
	w, err := s.store.GetWidget(ctx, widgetID)
	if err != nil {
		return models.ValidityInvalid, fmt.Errorf("failed to load widget %s: %w", widgetID, err)
	}

	module, err := s.registry.Get(w.Type)
	if err != nil {
		return models.ValidityInvalid, err
	}

	return module.IsValid(w), nil
}

func resourceVariant(req ResourceRequest, version time.Time) string {
	return fmt.Sprintf("v%d_p%t_w%s_h%s_s%s", version.UnixNano(),
		req.Preview, FormatFloat(req.Width), FormatFloat(req.Height), FormatFloat(req.ScaleOverride))
}
