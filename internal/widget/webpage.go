package widget

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"html"
	"net/url"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/koios/matrx-widgets/pkg/models"
)

// WebPageType is the widget type served by the WebPage module
const WebPageType = "webpage"

// ModeNative means the player opens the page in its own browser; there is nothing to preview
const ModeNative = 1

//go:embed manifests/webpage.yaml
var webPageManifest []byte

// Library names of the client scripts, in load order
var webPageScripts = []string{
	"vendor/jquery-1.11.1.min.js",
	"xibo-layout-scaler.js",
	"xibo-webpage-render.js",
}

var urlValidator = validator.New()

// WebPageOptions is the stored configuration of a webpage widget.
// URI is kept query-escaped.
type WebPageOptions struct {
	URI          string `json:"uri"`
	Name         string `json:"name"`
	Transparency bool   `json:"transparency"`
	Scaling      int    `json:"scaling"`
	OffsetLeft   int    `json:"offsetLeft"`
	OffsetTop    int    `json:"offsetTop"`
	PageWidth    int    `json:"pageWidth"`
	PageHeight   int    `json:"pageHeight"`
	ModeID       int    `json:"modeid"`
	XMDS         bool   `json:"xmds"`
}

// DefaultWebPageOptions is the default table applied to fields that were not submitted
func DefaultWebPageOptions() WebPageOptions {
	return WebPageOptions{
		Scaling: 100,
		XMDS:    true,
	}
}

// scalerOptions is handed to xiboLayoutScaler and xiboIframeScaler on the client
type scalerOptions struct {
	ModeID         int     `json:"modeId"`
	OriginalWidth  int     `json:"originalWidth"`
	OriginalHeight int     `json:"originalHeight"`
	IframeWidth    int     `json:"iframeWidth"`
	IframeHeight   int     `json:"iframeHeight"`
	PreviewWidth   int     `json:"previewWidth"`
	PreviewHeight  int     `json:"previewHeight"`
	OffsetTop      int     `json:"offsetTop"`
	OffsetLeft     int     `json:"offsetLeft"`
	Scale          float64 `json:"scale"`
	ScaleOverride  float64 `json:"scaleOverride"`
}

// WebPage embeds an external web page in a region
type WebPage struct {
	env      *Environment
	manifest *models.ModuleManifest
	logger   *zap.Logger
}

// NewWebPage creates the module. A nil manifest selects the embedded one.
func NewWebPage(env *Environment, manifest *models.ModuleManifest, logger *zap.Logger) (*WebPage, error) {
	if manifest == nil {
		m, err := EmbeddedWebPageManifest()
		if err != nil {
			return nil, err
		}
		manifest = m
	}
	return &WebPage{env: env, manifest: manifest, logger: logger}, nil
}

// EmbeddedWebPageManifest returns the manifest compiled into the binary
func EmbeddedWebPageManifest() (*models.ModuleManifest, error) {
	return models.ParseManifest(webPageManifest)
}

func (m *WebPage) Type() string { return WebPageType }

func (m *WebPage) Manifest() *models.ModuleManifest { return m.manifest }

func (m *WebPage) InstallFiles() []string {
	files := make([]string, len(webPageScripts))
	for i, name := range webPageScripts {
		files[i] = "modules/" + name
	}
	return files
}

// Apply replaces the widget's duration and options with the submitted fields
func (m *WebPage) Apply(w *models.Widget, params Params) error {
	defaults := DefaultWebPageOptions()

	opts := WebPageOptions{
		URI:          url.QueryEscape(params.GetString("uri", defaults.URI)),
		Name:         params.GetString("name", defaults.Name),
		Transparency: params.GetCheckbox("transparency"),
		Scaling:      params.GetInt("scaling", defaults.Scaling),
		OffsetLeft:   params.GetInt("offsetLeft", defaults.OffsetLeft),
		OffsetTop:    params.GetInt("offsetTop", defaults.OffsetTop),
		PageWidth:    params.GetInt("pageWidth", defaults.PageWidth),
		PageHeight:   params.GetInt("pageHeight", defaults.PageHeight),
		ModeID:       params.GetInt("modeId", defaults.ModeID),
		XMDS:         true,
	}
	duration := params.GetInt("duration", 0)

	if err := ValidateWebPage(opts, duration); err != nil {
		return err
	}

	encoded, err := json.Marshal(opts)
	if err != nil {
		return fmt.Errorf("failed to encode webpage options: %w", err)
	}

	w.Type = WebPageType
	w.Duration = duration
	w.Options = encoded

	m.logger.Debug("Applied webpage configuration",
		zap.String("widget_id", w.ID),
		zap.Int("duration", duration),
		zap.Int("mode_id", opts.ModeID))

	return nil
}

func (m *WebPage) Validate(w *models.Widget) error {
	opts, err := DecodeWebPageOptions(w)
	if err != nil {
		return err
	}
	return ValidateWebPage(opts, w.Duration)
}

// ValidateWebPage checks the link first, then the duration
func ValidateWebPage(opts WebPageOptions, duration int) error {
	raw, err := url.QueryUnescape(opts.URI)
	if err != nil || strings.TrimSpace(raw) == "" || urlValidator.Var(resolveURL(opts.URI), "url") != nil {
		return &ValidationError{Field: "uri", Message: "Please enter a link", Code: "invalid_uri"}
	}

	if duration <= 0 {
		return &ValidationError{Field: "duration", Message: "You must enter a duration.", Code: "required"}
	}

	return nil
}

// DecodeWebPageOptions reads the stored options of a widget over the default table
func DecodeWebPageOptions(w *models.Widget) (WebPageOptions, error) {
	opts := DefaultWebPageOptions()
	if len(w.Options) == 0 {
		return opts, nil
	}
	if err := json.Unmarshal(w.Options, &opts); err != nil {
		return opts, fmt.Errorf("failed to decode webpage options for widget %s: %w", w.ID, err)
	}
	return opts, nil
}

// resolveURL unescapes a stored link and prefixes http:// when it has no http(s) scheme
func resolveURL(stored string) string {
	link, err := url.QueryUnescape(stored)
	if err != nil {
		link = stored
	}
	if !strings.HasPrefix(link, "http") {
		link = "http://" + link
	}
	return link
}

// Preview shows the fallback icon for native mode, otherwise renders as the player would
func (m *WebPage) Preview(w *models.Widget, region *models.Region, req PreviewRequest) (string, error) {
	opts, err := DecodeWebPageOptions(w)
	if err != nil {
		return "", err
	}
	if opts.ModeID == ModeNative {
		return previewIcon(m.env, m.manifest), nil
	}
	return previewAsClient(m.env, w, req), nil
}

// GetResource renders the iframe document. Outside of preview the viewport
// width is left as a slot for the player side template engine.
func (m *WebPage) GetResource(w *models.Widget, region *models.Region, req ResourceRequest) (string, error) {
	opts, err := DecodeWebPageOptions(w)
	if err != nil {
		return "", err
	}

	viewPortWidth := Slot(SlotViewPortWidth)
	if req.Preview {
		viewPortWidth = FormatFloat(region.Width)
	}

	iframeWidth := opts.PageWidth
	if iframeWidth == 0 {
		iframeWidth = int(region.Width)
	}
	iframeHeight := opts.PageHeight
	if iframeHeight == 0 {
		iframeHeight = int(region.Height)
	}

	payload, err := json.Marshal(scalerOptions{
		ModeID:         opts.ModeID,
		OriginalWidth:  int(region.Width),
		OriginalHeight: int(region.Height),
		IframeWidth:    iframeWidth,
		IframeHeight:   iframeHeight,
		PreviewWidth:   int(req.Width),
		PreviewHeight:  int(req.Height),
		OffsetTop:      opts.OffsetTop,
		OffsetLeft:     opts.OffsetLeft,
		Scale:          float64(opts.Scaling) / 100,
		ScaleOverride:  req.ScaleOverride,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode scaler options: %w", err)
	}

	var js strings.Builder
	for _, name := range webPageScripts {
		fmt.Fprintf(&js, `<script type="text/javascript" src="%s"></script>`,
			html.EscapeString(m.env.Assets.ResourceURL(name)))
	}
	fmt.Fprintf(&js, `<script>
    var options = %s;
    $(document).ready(function() {
        $("#content").xiboLayoutScaler(options);
        $("#iframe").xiboIframeScaler(options);
    });
</script>`, payload)

	return m.env.Renderer.Render(TemplateData{
		ViewPortWidth: viewPortWidth,
		Head:          `<style>#iframe { border:0; }</style>`,
		Body: fmt.Sprintf(`<iframe id="iframe" scrolling="no" frameborder="0" src="%s"></iframe>`,
			html.EscapeString(resolveURL(opts.URI))),
		JavaScript: js.String(),
	})
}

// IsValid is always unknown: only the player can tell whether the page loads
func (m *WebPage) IsValid(w *models.Widget) models.Validity {
	return models.ValidityUnknown
}
