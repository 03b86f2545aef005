package widget

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlot(t *testing.T) {
	assert.Equal(t, "[[ViewPortWidth]]", Slot(SlotViewPortWidth))
}

func TestSubstituteSlots(t *testing.T) {
	doc := `<meta content="width=[[ViewPortWidth]]"> [[Other]]`

	got := SubstituteSlots(doc, map[string]string{SlotViewPortWidth: "1280"})
	assert.Equal(t, `<meta content="width=1280"> [[Other]]`, got, "unknown slots stay in place")

	assert.Equal(t, doc, SubstituteSlots(doc, nil))
}

func TestRendererRender(t *testing.T) {
	r, err := NewRenderer()
	require.NoError(t, err)

	doc, err := r.Render(TemplateData{
		ViewPortWidth: "800",
		Head:          "<style>a{}</style>",
		Body:          `<iframe src="http://example.com/?a=1&amp;b=2"></iframe>`,
		JavaScript:    "<script>var x = 1;</script>",
	})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(doc, "<!DOCTYPE html>"))
	assert.Contains(t, doc, `content="width=800, user-scalable=no"`)
	assert.Contains(t, doc, "<style>a{}</style>")
	assert.Contains(t, doc, `<div id="content"><iframe src="http://example.com/?a=1&amp;b=2"></iframe></div>`)
	assert.Contains(t, doc, "<script>var x = 1;</script>")
}
