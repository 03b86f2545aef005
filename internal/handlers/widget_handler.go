package handlers

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/koios/matrx-widgets/internal/widget"
	"github.com/koios/matrx-widgets/pkg/models"
)

const maxFormMemory = 8 << 20

// RegionStore is the region side of persistence used by the API
type RegionStore interface {
	CreateRegion(ctx context.Context, region *models.Region) error
	GetRegion(ctx context.Context, id string) (*models.Region, error)
	ListWidgets(ctx context.Context, regionID string) ([]*models.Widget, error)
}

// WidgetHandler handles HTTP requests for regions and widgets
type WidgetHandler struct {
	service   *widget.Service
	regions   RegionStore
	manifests *models.ManifestRegistry
	logger    *zap.Logger
}

// NewWidgetHandler creates a new widget handler
func NewWidgetHandler(service *widget.Service, regions RegionStore, manifests *models.ManifestRegistry, logger *zap.Logger) *WidgetHandler {
	return &WidgetHandler{
		service:   service,
		regions:   regions,
		manifests: manifests,
		logger:    logger,
	}
}

// ResourcePath is the route serving a widget's rendered document
func ResourcePath(widgetID string) string {
	return "/widgets/" + url.PathEscape(widgetID) + "/resource"
}

// RegisterRoutes registers the API routes
func (h *WidgetHandler) RegisterRoutes(r gin.IRouter) {
	r.GET("/health", h.handleHealth)
	r.GET("/modules", h.handleModules)

	r.POST("/regions", h.handleCreateRegion)
	r.GET("/regions/:id", h.handleGetRegion)
	r.GET("/regions/:id/widgets", h.handleListWidgets)
	r.POST("/regions/:id/widgets/:type", h.handleAddWidget)

	r.GET("/widgets/:id", h.handleGetWidget)
	r.PUT("/widgets/:id", h.handleEditWidget)
	r.POST("/widgets/:id", h.handleEditWidget)
	r.GET("/widgets/:id/preview", h.handlePreview)
	r.GET("/widgets/:id/resource", h.handleResource)
	r.GET("/widgets/:id/validity", h.handleValidity)
}

// ErrorResponse is the body of every non-validation error
type ErrorResponse struct {
	Error string `json:"error"`
}

// CreateRegionRequest is the body of POST /regions
type CreateRegionRequest struct {
	Name   string  `json:"name"`
	Width  float64 `json:"width" binding:"required,gt=0"`
	Height float64 `json:"height" binding:"required,gt=0"`
}

// ValidityResponse is the body of GET /widgets/:id/validity
type ValidityResponse struct {
	WidgetID string `json:"widget_id"`
	Validity string `json:"validity"`
	Code     int    `json:"code"`
}

func (h *WidgetHandler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "matrx-widgets",
		"modules": len(h.service.Registry().Modules()),
	})
}

func (h *WidgetHandler) handleModules(c *gin.Context) {
	modules := h.service.Registry().Modules()
	manifests := make([]*models.ModuleManifest, 0, len(modules))
	for _, m := range modules {
		if manifest, ok := h.manifests.Get(m.Type()); ok {
			manifests = append(manifests, manifest)
			continue
		}
		manifests = append(manifests, m.Manifest())
	}
	c.JSON(http.StatusOK, manifests)
}

func (h *WidgetHandler) handleCreateRegion(c *gin.Context) {
	var req CreateRegionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request body: " + err.Error()})
		return
	}

	region := &models.Region{Name: req.Name, Width: req.Width, Height: req.Height}
	if err := h.regions.CreateRegion(c.Request.Context(), region); err != nil {
		h.writeError(c, err)
		return
	}

	h.logger.Info("Region created",
		zap.String("region_id", region.ID),
		zap.Float64("width", region.Width),
		zap.Float64("height", region.Height))
	c.JSON(http.StatusCreated, region)
}

func (h *WidgetHandler) handleGetRegion(c *gin.Context) {
	region, err := h.regions.GetRegion(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, region)
}

func (h *WidgetHandler) handleListWidgets(c *gin.Context) {
	regionID := c.Param("id")
	if _, err := h.regions.GetRegion(c.Request.Context(), regionID); err != nil {
		h.writeError(c, err)
		return
	}

	widgets, err := h.regions.ListWidgets(c.Request.Context(), regionID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if widgets == nil {
		widgets = []*models.Widget{}
	}
	c.JSON(http.StatusOK, widgets)
}

func (h *WidgetHandler) handleAddWidget(c *gin.Context) {
	params, err := requestParams(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid form body"})
		return
	}

	w, err := h.service.AddWidget(c.Request.Context(), c.Param("id"), c.Param("type"), params)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, w)
}

func (h *WidgetHandler) handleGetWidget(c *gin.Context) {
	w, err := h.service.GetWidget(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, w)
}

func (h *WidgetHandler) handleEditWidget(c *gin.Context) {
	params, err := requestParams(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid form body"})
		return
	}

	w, err := h.service.EditWidget(c.Request.Context(), c.Param("id"), params)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, w)
}

func (h *WidgetHandler) handlePreview(c *gin.Context) {
	params := widget.NewParams(c.Request.URL.Query())

	document, err := h.service.Preview(c.Request.Context(), c.Param("id"), widget.PreviewRequestFromParams(params))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(document))
}

// handleResource serves the playback document. When viewport_width is given
// the viewport slot is filled here instead of by the player.
func (h *WidgetHandler) handleResource(c *gin.Context) {
	params := widget.NewParams(c.Request.URL.Query())

	viewPortWidth := ""
	if params.Has("viewport_width") {
		width := params.GetDouble("viewport_width", 0)
		if !(width > 0) || math.IsInf(width, 0) {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "viewport_width must be a positive number"})
			return
		}
		viewPortWidth = widget.FormatFloat(width)
	}

	document, err := h.service.Resource(c.Request.Context(), c.Param("id"), widget.ResourceRequestFromParams(params))
	if err != nil {
		h.writeError(c, err)
		return
	}

	if viewPortWidth != "" {
		document = widget.SubstituteSlots(document, map[string]string{
			widget.SlotViewPortWidth: viewPortWidth,
		})
	}

	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(document))
}

func (h *WidgetHandler) handleValidity(c *gin.Context) {
	widgetID := c.Param("id")
	validity, err := h.service.Validity(c.Request.Context(), widgetID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ValidityResponse{
		WidgetID: widgetID,
		Validity: validity.String(),
		Code:     int(validity),
	})
}

func (h *WidgetHandler) writeError(c *gin.Context, err error) {
	var validationErr *widget.ValidationError
	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, validationErr)
	case errors.Is(err, models.ErrNotFound), errors.Is(err, widget.ErrUnknownModule):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})
	default:
		h.logger.Error("Request failed",
			zap.String("path", c.Request.URL.Path),
			zap.Error(err))
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Internal server error"})
	}
}

func requestParams(c *gin.Context) (widget.Params, error) {
	if strings.HasPrefix(c.ContentType(), "multipart/form-data") {
		if err := c.Request.ParseMultipartForm(maxFormMemory); err != nil {
			return widget.Params{}, err
		}
	} else if err := c.Request.ParseForm(); err != nil {
		return widget.Params{}, err
	}
	return widget.NewParams(c.Request.Form), nil
}
