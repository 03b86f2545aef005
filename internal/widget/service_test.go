package widget

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/koios/matrx-widgets/pkg/models"
)

type serviceFixture struct {
	service  *Service
	store    *memoryStore
	cache    *countingCache
	notifier *recordingNotifier
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	store := newMemoryStore(&models.Region{ID: "R1", Width: 1920, Height: 1080})
	cache := newCountingCache()
	notifier := &recordingNotifier{}
	registry := NewRegistry(newTestWebPage(t))

	service := NewService(registry, store, cache, notifier, time.Minute, zap.NewNop())
	fixed := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	service.now = func() time.Time { return fixed }

	return &serviceFixture{service: service, store: store, cache: cache, notifier: notifier}
}

func TestAddAndEditPersistIdenticalConfiguration(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	params := form("uri", "example.com/menu", "duration", "20", "scaling", "80", "transparency", "on", "pageWidth", "1280")

	added, err := f.service.AddWidget(ctx, "R1", WebPageType, params)
	require.NoError(t, err)

	other, err := f.service.AddWidget(ctx, "R1", WebPageType, form("uri", "example.org", "duration", "5"))
	require.NoError(t, err)

	edited, err := f.service.EditWidget(ctx, other.ID, params)
	require.NoError(t, err)

	storedAdded, err := f.store.GetWidget(ctx, added.ID)
	require.NoError(t, err)
	storedEdited, err := f.store.GetWidget(ctx, edited.ID)
	require.NoError(t, err)

	assert.Equal(t, storedAdded.Duration, storedEdited.Duration)
	assert.JSONEq(t, string(storedAdded.Options), string(storedEdited.Options))
	assert.Equal(t, storedAdded.Type, storedEdited.Type)
	assert.NotEqual(t, storedAdded.ID, storedEdited.ID)
}

func TestAddWidget_ValidationErrorSavesNothing(t *testing.T) {
	f := newServiceFixture(t)

	_, err := f.service.AddWidget(context.Background(), "R1", WebPageType, form("uri", "", "duration", "10"))

	var validationErr *ValidationError
	require.True(t, errors.As(err, &validationErr))
	assert.Equal(t, "uri", validationErr.Field)
	assert.Zero(t, f.store.saves)
	assert.Empty(t, f.notifier.events)
}

func TestEditWidget_ValidationErrorKeepsStoredConfiguration(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	w, err := f.service.AddWidget(ctx, "R1", WebPageType, form("uri", "example.com", "duration", "10"))
	require.NoError(t, err)

	_, err = f.service.EditWidget(ctx, w.ID, form("uri", "example.com", "duration", "0"))
	require.Error(t, err)

	stored, err := f.store.GetWidget(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, stored.Duration)
	assert.Equal(t, 1, f.store.saves)
}

func TestAddWidget_UnknownModuleAndRegion(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	params := form("uri", "example.com", "duration", "10")

	_, err := f.service.AddWidget(ctx, "R1", "ticker", params)
	assert.ErrorIs(t, err, ErrUnknownModule)

	_, err = f.service.AddWidget(ctx, "missing", WebPageType, params)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestEditWidget_NotFound(t *testing.T) {
	f := newServiceFixture(t)

	_, err := f.service.EditWidget(context.Background(), "missing", form("uri", "example.com", "duration", "10"))
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestApplyPublishesEvents(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	w, err := f.service.AddWidget(ctx, "R1", WebPageType, form("uri", "example.com", "duration", "10"))
	require.NoError(t, err)
	_, err = f.service.EditWidget(ctx, w.ID, form("uri", "example.com", "duration", "15"))
	require.NoError(t, err)

	require.Len(t, f.notifier.events, 2)
	assert.Equal(t, "widget_added", f.notifier.events[0].Type)
	assert.Equal(t, "widget_updated", f.notifier.events[1].Type)
	assert.Equal(t, "R1", f.notifier.events[1].RegionID)
	assert.Equal(t, WebPageType, f.notifier.events[1].Module)
}

func TestResource_CachedUntilEdit(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	req := ResourceRequest{Preview: true, Width: 640, Height: 360}

	w, err := f.service.AddWidget(ctx, "R1", WebPageType, form("uri", "example.com", "duration", "10"))
	require.NoError(t, err)

	first, err := f.service.Resource(ctx, w.ID, req)
	require.NoError(t, err)
	assert.Len(t, f.cache.entries, 1)

	second, err := f.service.Resource(ctx, w.ID, req)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	_, err = f.service.EditWidget(ctx, w.ID, form("uri", "example.org", "duration", "10"))
	require.NoError(t, err)
	assert.Empty(t, f.cache.entries, "edit must flush cached documents")

	third, err := f.service.Resource(ctx, w.ID, req)
	require.NoError(t, err)
	assert.Contains(t, third, `src="http://example.org"`)
}

func TestResource_VariantsCachedSeparately(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	w, err := f.service.AddWidget(ctx, "R1", WebPageType, form("uri", "example.com", "duration", "10"))
	require.NoError(t, err)

	live, err := f.service.Resource(ctx, w.ID, ResourceRequest{})
	require.NoError(t, err)
	preview, err := f.service.Resource(ctx, w.ID, ResourceRequest{Preview: true})
	require.NoError(t, err)

	assert.NotEqual(t, live, preview)
	assert.Len(t, f.cache.entries, 2)
}

func TestPreviewAndValidity(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	w, err := f.service.AddWidget(ctx, "R1", WebPageType, form("uri", "example.com", "duration", "10", "modeId", "1"))
	require.NoError(t, err)

	preview, err := f.service.Preview(ctx, w.ID, PreviewRequest{Width: 100, Height: 100})
	require.NoError(t, err)
	assert.Contains(t, preview, "<img")

	validity, err := f.service.Validity(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ValidityUnknown, validity)

	_, err = f.service.Validity(ctx, "missing")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestRegistry(t *testing.T) {
	registry := NewRegistry(newTestWebPage(t))

	m, err := registry.Get(WebPageType)
	require.NoError(t, err)
	assert.Equal(t, WebPageType, m.Type())

	_, err = registry.Get("clock")
	assert.ErrorIs(t, err, ErrUnknownModule)

	assert.Len(t, registry.Modules(), 1)
}

func TestResource_EditDuringRenderIsNotServedStale(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	w, err := f.service.AddWidget(ctx, "R1", WebPageType, form("uri", "old.example.com", "duration", "10"))
	require.NoError(t, err)

	f.store.afterGetWidget = func(id string) {
		f.store.afterGetWidget = nil
		_, err := f.service.EditWidget(ctx, id, form("uri", "new.example.com", "duration", "10"))
		require.NoError(t, err)
	}

	racing, err := f.service.Resource(ctx, w.ID, ResourceRequest{})
	require.NoError(t, err)
	assert.Contains(t, racing, `src="http://old.example.com"`)

	next, err := f.service.Resource(ctx, w.ID, ResourceRequest{})
	require.NoError(t, err)
	assert.Contains(t, next, `src="http://new.example.com"`)
	assert.NotContains(t, next, "old.example.com")
}

func TestApply_UpdatedAtAlwaysAdvances(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	w, err := f.service.AddWidget(ctx, "R1", WebPageType, form("uri", "example.com", "duration", "10"))
	require.NoError(t, err)
	first := w.UpdatedAt

	edited, err := f.service.EditWidget(ctx, w.ID, form("uri", "example.com", "duration", "20"))
	require.NoError(t, err)
	assert.True(t, edited.UpdatedAt.After(first), "a frozen clock must still produce a newer version")
}
