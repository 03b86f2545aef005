package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCache_SetGet(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()

	_, found, err := c.Get(ctx, "w1", "a")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, c.Set(ctx, "w1", "a", "<html>", time.Minute))
	doc, found, err := c.Get(ctx, "w1", "a")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "<html>", doc)
}

func TestMemoryCache_Expiry(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	require.NoError(t, c.Set(ctx, "w1", "a", "doc", time.Second))
	now = now.Add(2 * time.Second)

	_, found, err := c.Get(ctx, "w1", "a")
	require.NoError(t, err)
	assert.False(t, found, "entry should have expired")
}

func TestMemoryCache_FlushWidget(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()

	c.Set(ctx, "w1", "a", "one", 0)
	c.Set(ctx, "w1", "b", "two", 0)
	c.Set(ctx, "w10", "a", "other", 0)

	require.NoError(t, c.FlushWidget(ctx, "w1"))

	_, found, _ := c.Get(ctx, "w1", "a")
	assert.False(t, found)
	_, found, _ = c.Get(ctx, "w1", "b")
	assert.False(t, found)
	doc, found, _ := c.Get(ctx, "w10", "a")
	assert.True(t, found, "flushing w1 must not touch w10")
	assert.Equal(t, "other", doc)
}

func TestBuildKey(t *testing.T) {
	tests := []struct {
		widgetID, variant, want string
	}{
		{"w1", "ptrue_w100", "resource/w1/ptrue_w100"},
		{"w/1", "a/b", "resource/w_1/a_b"},
	}
	for _, tt := range tests {
		if got := buildKey(tt.widgetID, tt.variant); got != tt.want {
			t.Errorf("buildKey(%q, %q) = %q, want %q", tt.widgetID, tt.variant, got, tt.want)
		}
	}
}
