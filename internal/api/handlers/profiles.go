package handlers

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ovenfresh/labelpress/internal/api/middleware"
	"github.com/ovenfresh/labelpress/internal/db"
	"github.com/ovenfresh/labelpress/internal/label"
)

type CreateProfileRequest struct {
	Name        string    `json:"name" binding:"required"`
	TemplateID  int64     `json:"template_id" binding:"required"`
	Engine      db.Engine `json:"engine" binding:"required"`
	WidthIn     float64   `json:"width_in" binding:"required,gt=0"`
	HeightIn    float64   `json:"height_in" binding:"required,gt=0"`
	Orientation string    `json:"orientation"`
	Copies      int       `json:"copies"`
}

type UpdateProfileRequest struct {
	Name        *string    `json:"name"`
	TemplateID  *int64     `json:"template_id"`
	Engine      *db.Engine `json:"engine"`
	WidthIn     *float64   `json:"width_in"`
	HeightIn    *float64   `json:"height_in"`
	Orientation *string    `json:"orientation"`
	Copies      *int       `json:"copies"`
}

type ProfileHandler struct{}

func NewProfileHandler() *ProfileHandler {
	return &ProfileHandler{}
}

func (h *ProfileHandler) ListProfiles(c *gin.Context) {
	ctx := c.Request.Context()
	var (
		profiles []*db.LabelProfile
		err      error
	)
	if scope := middleware.VendorScope(c); scope != "" {
		profiles, err = db.Profiles.ListProfilesByVendor(ctx, scope)
	} else {
		profiles, err = db.Profiles.ListProfiles(ctx)
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "database_error", Message: "Failed to list profiles"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"profiles": profiles})
}

func (h *ProfileHandler) GetProfile(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_id"})
		return
	}

	p, err := db.Profiles.GetProfileByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "profile_not_found"})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "database_error", Message: "Failed to get profile"})
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *ProfileHandler) CreateProfile(c *gin.Context) {
	var req CreateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "validation_error", Message: err.Error()})
		return
	}
	if !db.ValidEngine(req.Engine) {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "engine must be one of PDF, ZPL, BROTHER_QL",
		})
		return
	}

	ctx := c.Request.Context()
	if _, err := db.Templates.GetTemplateByID(ctx, req.TemplateID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "validation_error", Message: "template does not exist"})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "database_error", Message: "Failed to check template"})
		return
	}

	p := &db.LabelProfile{
		VendorID:    middleware.VendorScope(c),
		Name:        req.Name,
		TemplateID:  req.TemplateID,
		Engine:      req.Engine,
		WidthIn:     req.WidthIn,
		HeightIn:    req.HeightIn,
		Orientation: req.Orientation,
		Copies:      req.Copies,
		Status:      db.ProfileStatusDraft,
	}
	if p.Orientation == "" {
		p.Orientation = "portrait"
	}
	if p.Copies <= 0 {
		p.Copies = 1
	}

	if msg := h.checkDimensions(c, p); msg != "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "validation_error", Message: msg})
		return
	}

	if err := db.Profiles.CreateProfile(ctx, p); err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "database_error", Message: "Failed to create profile"})
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (h *ProfileHandler) UpdateProfile(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_id"})
		return
	}

	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "validation_error", Message: err.Error()})
		return
	}

	ctx := c.Request.Context()
	p, err := db.Profiles.GetProfileByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "profile_not_found"})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "database_error", Message: "Failed to get profile"})
		return
	}

	if req.Name != nil {
		p.Name = *req.Name
	}
	if req.TemplateID != nil {
		p.TemplateID = *req.TemplateID
	}
	if req.Engine != nil {
		if !db.ValidEngine(*req.Engine) {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "validation_error",
				Message: "engine must be one of PDF, ZPL, BROTHER_QL",
			})
			return
		}
		p.Engine = *req.Engine
	}
	if req.WidthIn != nil {
		p.WidthIn = *req.WidthIn
	}
	if req.HeightIn != nil {
		p.HeightIn = *req.HeightIn
	}
	if req.Orientation != nil {
		p.Orientation = *req.Orientation
	}
	if req.Copies != nil {
		p.Copies = *req.Copies
	}

	if p.WidthIn <= 0 || p.HeightIn <= 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "validation_error", Message: "label dimensions must be positive"})
		return
	}
	if msg := h.checkDimensions(c, p); msg != "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "validation_error", Message: msg})
		return
	}

	if err := db.Profiles.UpdateProfile(ctx, p); err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "database_error", Message: "Failed to update profile"})
		return
	}
	c.JSON(http.StatusOK, p)
}

// ActivateProfile moves a draft profile into service. Activation requires
// the referenced template schema to parse: a profile that activates must be
// renderable.
func (h *ProfileHandler) ActivateProfile(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_id"})
		return
	}

	ctx := c.Request.Context()
	p, err := db.Profiles.GetProfileByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "profile_not_found"})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "database_error", Message: "Failed to get profile"})
		return
	}

	tmpl, err := db.Templates.GetTemplateByID(ctx, p.TemplateID)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "validation_error", Message: "profile template does not exist"})
		return
	}
	if _, err := label.Parse(tmpl.SchemaJSON); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: fmt.Sprintf("template schema is invalid: %v", err),
		})
		return
	}

	if err := db.Profiles.UpdateProfileStatus(ctx, id, db.ProfileStatusActive); err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "database_error", Message: "Failed to activate profile"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": db.ProfileStatusActive})
}

func (h *ProfileHandler) RetireProfile(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_id"})
		return
	}

	if err := db.Profiles.UpdateProfileStatus(c.Request.Context(), id, db.ProfileStatusRetired); err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "database_error", Message: "Failed to retire profile"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": db.ProfileStatusRetired})
}

func (h *ProfileHandler) DeleteProfile(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_id"})
		return
	}

	if err := db.Profiles.DeleteProfile(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "database_error", Message: "Failed to delete profile"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": id})
}

// checkDimensions rejects a profile no registered printer could ever print:
// larger than every printer's maximum printable area.
func (h *ProfileHandler) checkDimensions(c *gin.Context, p *db.LabelProfile) string {
	printers, err := db.Printers.ListPrinters(c.Request.Context())
	if err != nil || len(printers) == 0 {
		return ""
	}
	for _, pr := range printers {
		if pr.MaxWidthIn <= 0 || pr.MaxHeightIn <= 0 {
			return ""
		}
		if p.WidthIn <= pr.MaxWidthIn && p.HeightIn <= pr.MaxHeightIn {
			return ""
		}
	}
	return fmt.Sprintf("label size %.2fx%.2f in exceeds every printer's printable area", p.WidthIn, p.HeightIn)
}

func (h *ProfileHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/profiles", h.ListProfiles)
	r.POST("/profiles", h.CreateProfile)
	r.GET("/profiles/:id", h.GetProfile)
	r.PUT("/profiles/:id", h.UpdateProfile)
	r.DELETE("/profiles/:id", h.DeleteProfile)
	r.POST("/profiles/:id/activate", h.ActivateProfile)
	r.POST("/profiles/:id/retire", h.RetireProfile)
}
