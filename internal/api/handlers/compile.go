package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ovenfresh/labelpress/internal/api/middleware"
	"github.com/ovenfresh/labelpress/internal/compile"
	"github.com/ovenfresh/labelpress/internal/resolve"
)

type CompileHandler struct {
	orchestrator *compile.Orchestrator
	resolver     *resolve.ProfileResolver
}

func NewCompileHandler(orchestrator *compile.Orchestrator, resolver *resolve.ProfileResolver) *CompileHandler {
	return &CompileHandler{
		orchestrator: orchestrator,
		resolver:     resolver,
	}
}

// CompileLabels runs the whole pipeline synchronously and returns the batch
// plan with download links. Long requests can be watched from another client
// via the job_id in GetStatus.
func (h *CompileHandler) CompileLabels(c *gin.Context) {
	var req compile.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "validation_error", Message: err.Error()})
		return
	}
	req.VendorScope = middleware.VendorScope(c)

	resp, err := h.orchestrator.CompileLabels(c.Request.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, compile.ErrValidation):
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "validation_error", Message: err.Error()})
		case errors.Is(err, compile.ErrNoAvailablePrinters):
			c.JSON(http.StatusConflict, ErrorResponse{Error: "no_available_printers", Message: err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "compile_error", Message: err.Error()})
		}
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *CompileHandler) GetStatus(c *gin.Context) {
	status, err := h.orchestrator.GetJobStatus(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "job_not_found"})
		return
	}
	c.JSON(http.StatusOK, status)
}

func (h *CompileHandler) CancelJob(c *gin.Context) {
	err := h.orchestrator.CancelJob(c.Param("id"))
	if err != nil {
		if errors.Is(err, compile.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "job_not_found"})
			return
		}
		if errors.Is(err, compile.ErrJobFinished) {
			c.JSON(http.StatusConflict, ErrorResponse{Error: "job_finished", Message: err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "cancel_error", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"cancelled": c.Param("id")})
}

// ResolveOrder previews which label profiles apply to an order without
// compiling anything.
func (h *CompileHandler) ResolveOrder(c *gin.Context) {
	orderID := c.Param("id")
	res, err := h.resolver.ResolveOrderLabels(c.Request.Context(), orderID, resolve.ResolveOptions{
		VendorScope: middleware.VendorScope(c),
	})
	if err != nil {
		if errors.Is(err, resolve.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "order_not_found"})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "resolve_error", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *CompileHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/compile", h.CompileLabels)
	r.GET("/compile/:id", h.GetStatus)
	r.POST("/compile/:id/cancel", h.CancelJob)
	r.GET("/orders/:id/labels", h.ResolveOrder)
}
