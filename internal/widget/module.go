package widget

import (
	"embed"
	"fmt"
	"html"
	"io/fs"
	"net/url"
	"path"
	"sort"
	"strconv"

	"github.com/koios/matrx-widgets/pkg/models"
)

// FallbackPreviewIcon is the library name of the icon shown for modules whose manifest declares none
const FallbackPreviewIcon = "icons/preview-unavailable.png"

//go:embed icons/*.png
var bundledIcons embed.FS

// AssetResolver turns media library names into URLs a player can load
type AssetResolver interface {
	ResourceURL(name string) string
}

// Environment carries the collaborators modules need while rendering
type Environment struct {
	Assets   AssetResolver
	Renderer *Renderer
	// WidgetResourceURL returns the URL serving GetResource for a widget
	WidgetResourceURL func(widgetID string) string
}

// PreviewRequest holds the CMS preview pane dimensions
type PreviewRequest struct {
	Width         float64
	Height        float64
	ScaleOverride float64
}

// ResourceRequest holds the render time request fields
type ResourceRequest struct {
	Preview       bool
	Width         float64
	Height        float64
	ScaleOverride float64
}

// PreviewRequestFromParams reads width, height and scale_override
func PreviewRequestFromParams(p Params) PreviewRequest {
	return PreviewRequest{
		Width:         p.GetDouble("width", 0),
		Height:        p.GetDouble("height", 0),
		ScaleOverride: p.GetDouble("scale_override", 0),
	}
}

// ResourceRequestFromParams reads preview, width, height and scale_override
func ResourceRequestFromParams(p Params) ResourceRequest {
	return ResourceRequest{
		Preview:       p.GetCheckbox("preview"),
		Width:         p.GetDouble("width", 0),
		Height:        p.GetDouble("height", 0),
		ScaleOverride: p.GetDouble("scale_override", 0),
	}
}

// Module is the capability set every widget type implements
type Module interface {
	Type() string
	Manifest() *models.ModuleManifest
	// InstallFiles lists the static assets the module needs in the media library
	InstallFiles() []string
	// Apply overwrites the widget configuration from submitted fields and validates it
	Apply(w *models.Widget, params Params) error
	Validate(w *models.Widget) error
	Preview(w *models.Widget, region *models.Region, req PreviewRequest) (string, error)
	GetResource(w *models.Widget, region *models.Region, req ResourceRequest) (string, error)
	IsValid(w *models.Widget) models.Validity
}

// Registry is the dispatch table of modules keyed on widget type
type Registry struct {
	modules map[string]Module
}

// NewRegistry creates a registry holding the given modules
func NewRegistry(modules ...Module) *Registry {
	r := &Registry{modules: make(map[string]Module)}
	for _, m := range modules {
		r.Register(m)
	}
	return r
}

// Register adds or replaces the module for its type
func (r *Registry) Register(m Module) {
	r.modules[m.Type()] = m
}

// Get returns the module for a widget type
func (r *Registry) Get(moduleType string) (Module, error) {
	m, ok := r.modules[moduleType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownModule, moduleType)
	}
	return m, nil
}

// Modules returns the registered modules ordered by type
func (r *Registry) Modules() []Module {
	list := make([]Module, 0, len(r.modules))
	for _, m := range r.modules {
		list = append(list, m)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Type() < list[j].Type() })
	return list
}

// PreviewIconName is the library name a module's preview icon is installed under
func PreviewIconName(manifest *models.ModuleManifest) string {
	if manifest == nil || manifest.PreviewIcon == "" {
		return FallbackPreviewIcon
	}
	return path.Join("icons", path.Base(manifest.PreviewIcon))
}

// OpenBundledIcon opens an icon compiled into the binary by its library name
func OpenBundledIcon(name string) (fs.File, error) {
	return bundledIcons.Open(path.Join("icons", path.Base(name)))
}

// previewIcon renders the generic thumbnail shown when a module cannot be previewed
func previewIcon(env *Environment, manifest *models.ModuleManifest) string {
	icon := PreviewIconName(manifest)
	return fmt.Sprintf(`<div style="text-align:center;"><img alt="%s thumbnail" src="%s" /></div>`,
		html.EscapeString(manifest.Name),
		html.EscapeString(env.Assets.ResourceURL(icon)))
}

// previewAsClient embeds the widget's own resource endpoint in an iframe sized to the preview pane
func previewAsClient(env *Environment, w *models.Widget, req PreviewRequest) string {
	query := url.Values{}
	query.Set("preview", "1")
	query.Set("width", FormatFloat(req.Width))
	query.Set("height", FormatFloat(req.Height))
	query.Set("scale_override", FormatFloat(req.ScaleOverride))

	src := env.WidgetResourceURL(w.ID) + "?" + query.Encode()
	return fmt.Sprintf(`<iframe scrolling="no" src="%s" width="%spx" height="%spx" style="border:0;"></iframe>`,
		html.EscapeString(src), FormatFloat(req.Width), FormatFloat(req.Height))
}

// FormatFloat prints a dimension without trailing zeros
func FormatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
