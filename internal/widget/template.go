package widget

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
)

// Slot names left in rendered documents for the player side template engine.
// A slot appears in output as [[Name]].
const (
	SlotViewPortWidth = "ViewPortWidth"
)

// Slot returns the placeholder token for a named slot
func Slot(name string) string {
	return "[[" + name + "]]"
}

// SubstituteSlots fills named slots in a rendered document. Slots without a
// value are left in place.
func SubstituteSlots(document string, values map[string]string) string {
	if len(values) == 0 {
		return document
	}
	pairs := make([]string, 0, len(values)*2)
	for name, value := range values {
		pairs = append(pairs, Slot(name), value)
	}
	return strings.NewReplacer(pairs...).Replace(document)
}

// TemplateData is the content a module contributes to a rendered document.
// Head, Body and JavaScript are trusted markup produced by the module.
type TemplateData struct {
	ViewPortWidth string
	Head          string
	Body          string
	JavaScript    string
}

const documentTemplate = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width={{.ViewPortWidth}}, user-scalable=no">
<style>html, body { margin:0; padding:0; overflow:hidden; }</style>
{{.Head}}
</head>
<body>
<div id="content">{{.Body}}</div>
{{.JavaScript}}
</body>
</html>
`

// Renderer composes module content into a complete HTML document
type Renderer struct {
	tmpl *template.Template
}

// NewRenderer parses the document template
func NewRenderer() (*Renderer, error) {
	tmpl, err := template.New("document").Parse(documentTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse document template: %w", err)
	}
	return &Renderer{tmpl: tmpl}, nil
}

// Render executes the document template with data
func (r *Renderer) Render(data TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render document: %w", err)
	}
	return buf.String(), nil
}
