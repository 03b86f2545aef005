package widget

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/koios/matrx-widgets/pkg/models"
)

type prefixAssets string

func (p prefixAssets) ResourceURL(name string) string { return string(p) + "/" + name }

func newTestEnvironment(t *testing.T) *Environment {
	t.Helper()
	renderer, err := NewRenderer()
	require.NoError(t, err)
	return &Environment{
		Assets:   prefixAssets("/library"),
		Renderer: renderer,
		WidgetResourceURL: func(widgetID string) string {
			return "/widgets/" + widgetID + "/resource"
		},
	}
}

func newTestWebPage(t *testing.T) *WebPage {
	t.Helper()
	m, err := NewWebPage(newTestEnvironment(t), nil, zap.NewNop())
	require.NoError(t, err)
	return m
}

func form(pairs ...string) Params {
	values := url.Values{}
	for i := 0; i+1 < len(pairs); i += 2 {
		values.Set(pairs[i], pairs[i+1])
	}
	return NewParams(values)
}

type memoryStore struct {
	mu      sync.Mutex
	regions map[string]*models.Region
	widgets map[string]*models.Widget
	saves   int
	// afterGetWidget runs once a widget has been copied out, before it is returned
	afterGetWidget func(id string)
}

func newMemoryStore(regions ...*models.Region) *memoryStore {
	s := &memoryStore{
		regions: make(map[string]*models.Region),
		widgets: make(map[string]*models.Widget),
	}
	for _, r := range regions {
		s.regions[r.ID] = r
	}
	return s
}

func (s *memoryStore) GetRegion(ctx context.Context, id string) (*models.Region, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.regions[id]
	if !ok {
		return nil, fmt.Errorf("region %s: %w", id, models.ErrNotFound)
	}
	copied := *r
	return &copied, nil
}

func (s *memoryStore) GetWidget(ctx context.Context, id string) (*models.Widget, error) {
	s.mu.Lock()
	w, ok := s.widgets[id]
	if !ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("widget %s: %w", id, models.ErrNotFound)
	}
	copied := *w
	hook := s.afterGetWidget
	s.mu.Unlock()

	if hook != nil {
		hook(id)
	}
	return &copied, nil
}

func (s *memoryStore) SaveWidget(ctx context.Context, w *models.Widget) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *w
	s.widgets[w.ID] = &copied
	s.saves++
	return nil
}

type countingCache struct {
	entries map[string]string
	gets    int
	flushes []string
}

func newCountingCache() *countingCache {
	return &countingCache{entries: make(map[string]string)}
}

func (c *countingCache) Get(ctx context.Context, widgetID, variant string) (string, bool, error) {
	c.gets++
	doc, ok := c.entries[widgetID+"/"+variant]
	return doc, ok, nil
}

func (c *countingCache) Set(ctx context.Context, widgetID, variant, document string, ttl time.Duration) error {
	c.entries[widgetID+"/"+variant] = document
	return nil
}

func (c *countingCache) FlushWidget(ctx context.Context, widgetID string) error {
	c.flushes = append(c.flushes, widgetID)
	for key := range c.entries {
		if len(key) > len(widgetID) && key[:len(widgetID)+1] == widgetID+"/" {
			delete(c.entries, key)
		}
	}
	return nil
}

type recordingNotifier struct {
	events []models.WidgetEvent
}

func (n *recordingNotifier) Publish(ctx context.Context, event models.WidgetEvent) error {
	n.events = append(n.events, event)
	return nil
}
