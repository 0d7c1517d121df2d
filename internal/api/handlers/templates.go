package handlers

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ovenfresh/labelpress/internal/db"
	"github.com/ovenfresh/labelpress/internal/label"
	"github.com/ovenfresh/labelpress/internal/render"
	"github.com/ovenfresh/labelpress/internal/resolve"
)

type CreateTemplateRequest struct {
	Name        string  `json:"name" binding:"required"`
	Description string  `json:"description"`
	Schema      string  `json:"schema" binding:"required"`
	WidthIn     float64 `json:"width_in" binding:"required,gt=0"`
	HeightIn    float64 `json:"height_in" binding:"required,gt=0"`
}

type PreviewRequest struct {
	Engine db.Engine         `json:"engine"`
	Data   map[string]string `json:"data" binding:"required"`
	DPI    int               `json:"dpi"`
}

type TemplateHandler struct{}

func NewTemplateHandler() *TemplateHandler {
	return &TemplateHandler{}
}

func (h *TemplateHandler) ListTemplates(c *gin.Context) {
	templates, err := db.Templates.ListTemplates(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "database_error", Message: "Failed to list templates"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"templates": templates})
}

func (h *TemplateHandler) GetTemplate(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_id"})
		return
	}

	t, err := db.Templates.GetTemplateByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "template_not_found"})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "database_error", Message: "Failed to get template"})
		return
	}
	c.JSON(http.StatusOK, t)
}

// CreateTemplate stores a new version under the given name. Existing versions
// are immutable; profiles keep pointing at the version they were built with.
func (h *TemplateHandler) CreateTemplate(c *gin.Context) {
	var req CreateTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "validation_error", Message: err.Error()})
		return
	}

	if _, err := label.Parse(req.Schema); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: fmt.Sprintf("schema is invalid: %v", err),
		})
		return
	}

	t, err := db.Templates.NewVersion(c.Request.Context(), req.Name, req.Description, req.Schema, req.WidthIn, req.HeightIn)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "database_error", Message: "Failed to create template version"})
		return
	}
	c.JSON(http.StatusCreated, t)
}

// PreviewTemplate renders a single label from caller-supplied data and
// streams the result back. Useful for template authoring without touching
// the job queue.
func (h *TemplateHandler) PreviewTemplate(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_id"})
		return
	}

	var req PreviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "validation_error", Message: err.Error()})
		return
	}
	if req.Engine == "" {
		req.Engine = db.EnginePDF
	}
	if !db.ValidEngine(req.Engine) {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "engine must be one of PDF, ZPL, BROTHER_QL",
		})
		return
	}

	t, err := db.Templates.GetTemplateByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "template_not_found"})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "database_error", Message: "Failed to get template"})
		return
	}

	tmpl, err := label.Parse(t.SchemaJSON)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error:   "invalid_schema",
			Message: err.Error(),
		})
		return
	}

	out, err := render.RenderOne(req.Engine, tmpl, resolve.Data(req.Data), req.DPI, t.WidthIn, t.HeightIn, 1)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "render_error", Message: err.Error()})
		return
	}
	c.Data(http.StatusOK, out.MIME, out.Buffer)
}

func (h *TemplateHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/templates", h.ListTemplates)
	r.POST("/templates", h.CreateTemplate)
	r.GET("/templates/:id", h.GetTemplate)
	r.POST("/templates/:id/preview", h.PreviewTemplate)
}
