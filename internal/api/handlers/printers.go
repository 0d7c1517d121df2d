package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ovenfresh/labelpress/internal/api/middleware"
	"github.com/ovenfresh/labelpress/internal/db"
	"github.com/ovenfresh/labelpress/internal/printer"
)

type CreatePrinterRequest struct {
	Name        string         `json:"name" binding:"required"`
	Engine      db.Engine      `json:"engine" binding:"required"`
	IPAddress   string         `json:"ip_address"`
	Port        int            `json:"port"`
	DPI         int            `json:"dpi"`
	MaxWidthIn  float64        `json:"max_width_in"`
	MaxHeightIn float64        `json:"max_height_in"`
	Media       []db.MediaSize `json:"media"`
}

type UpdatePrinterRequest struct {
	Name        *string         `json:"name"`
	Engine      *db.Engine      `json:"engine"`
	IPAddress   *string         `json:"ip_address"`
	Port        *int            `json:"port"`
	DPI         *int            `json:"dpi"`
	MaxWidthIn  *float64        `json:"max_width_in"`
	MaxHeightIn *float64        `json:"max_height_in"`
	Media       *[]db.MediaSize `json:"media"`
}

type PrinterHandler struct {
	manager *printer.Manager
}

func NewPrinterHandler(manager *printer.Manager) *PrinterHandler {
	return &PrinterHandler{manager: manager}
}

func (h *PrinterHandler) ListPrinters(c *gin.Context) {
	printers, err := db.Printers.ListPrinters(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "database_error",
			Message: "Failed to list printers",
		})
		return
	}

	if scope := middleware.VendorScope(c); scope != "" {
		scoped := printers[:0]
		for _, p := range printers {
			if p.VendorID == scope {
				scoped = append(scoped, p)
			}
		}
		printers = scoped
	}
	c.JSON(http.StatusOK, gin.H{"printers": printers})
}

func (h *PrinterHandler) GetPrinter(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_id"})
		return
	}

	p, err := db.Printers.GetPrinterByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "printer_not_found"})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "database_error",
			Message: "Failed to get printer",
		})
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *PrinterHandler) CreatePrinter(c *gin.Context) {
	var req CreatePrinterRequest
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

	mediaJSON, err := json.Marshal(req.Media)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "validation_error", Message: "invalid media list"})
		return
	}

	p := &db.Printer{
		VendorID:    middleware.VendorScope(c),
		Name:        req.Name,
		Engine:      req.Engine,
		IPAddress:   req.IPAddress,
		Port:        req.Port,
		DPI:         req.DPI,
		MaxWidthIn:  req.MaxWidthIn,
		MaxHeightIn: req.MaxHeightIn,
		MediaJSON:   string(mediaJSON),
		Status:      db.PrinterStatusActive,
	}
	if p.DPI <= 0 {
		p.DPI = 203
	}

	if err := db.Printers.CreatePrinter(c.Request.Context(), p); err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "database_error",
			Message: "Failed to create printer",
		})
		return
	}

	h.manager.Reload(c.Request.Context())
	c.JSON(http.StatusCreated, p)
}

func (h *PrinterHandler) UpdatePrinter(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_id"})
		return
	}

	var req UpdatePrinterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "validation_error", Message: err.Error()})
		return
	}

	p, err := db.Printers.GetPrinterByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "printer_not_found"})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "database_error", Message: "Failed to get printer"})
		return
	}

	if req.Name != nil {
		p.Name = *req.Name
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
	if req.IPAddress != nil {
		p.IPAddress = *req.IPAddress
	}
	if req.Port != nil {
		p.Port = *req.Port
	}
	if req.DPI != nil {
		p.DPI = *req.DPI
	}
	if req.MaxWidthIn != nil {
		p.MaxWidthIn = *req.MaxWidthIn
	}
	if req.MaxHeightIn != nil {
		p.MaxHeightIn = *req.MaxHeightIn
	}
	if req.Media != nil {
		mediaJSON, err := json.Marshal(*req.Media)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "validation_error", Message: "invalid media list"})
			return
		}
		p.MediaJSON = string(mediaJSON)
	}

	if err := db.Printers.UpdatePrinter(c.Request.Context(), p); err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "database_error", Message: "Failed to update printer"})
		return
	}

	h.manager.Reload(c.Request.Context())
	c.JSON(http.StatusOK, p)
}

func (h *PrinterHandler) DeletePrinter(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_id"})
		return
	}

	if err := db.Printers.DeletePrinter(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "database_error", Message: "Failed to delete printer"})
		return
	}

	h.manager.Reload(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"deleted": id})
}

func (h *PrinterHandler) PausePrinter(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_id"})
		return
	}

	if err := h.manager.Pause(c.Request.Context(), id); err != nil {
		if errors.Is(err, printer.ErrPrinterNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "printer_not_found"})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "printer_error", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": db.PrinterStatusInactive})
}

func (h *PrinterHandler) ResumePrinter(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_id"})
		return
	}

	if err := h.manager.Resume(c.Request.Context(), id); err != nil {
		if errors.Is(err, printer.ErrPrinterNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "printer_not_found"})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "printer_error", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": db.PrinterStatusActive})
}

// TestPrinter probes connectivity and refreshes the stored status.
func (h *PrinterHandler) TestPrinter(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_id"})
		return
	}

	if _, err := h.manager.Get(id); err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "printer_not_found"})
		return
	}

	h.manager.CheckAll(c.Request.Context())
	p, err := db.Printers.GetPrinterByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "database_error", Message: "Failed to read printer"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": p.Status})
}

func (h *PrinterHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/printers", h.ListPrinters)
	r.POST("/printers", h.CreatePrinter)
	r.GET("/printers/:id", h.GetPrinter)
	r.PUT("/printers/:id", h.UpdatePrinter)
	r.DELETE("/printers/:id", h.DeletePrinter)
	r.POST("/printers/:id/pause", h.PausePrinter)
	r.POST("/printers/:id/resume", h.ResumePrinter)
	r.POST("/printers/:id/test", h.TestPrinter)
}
