package handlers

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ovenfresh/labelpress/internal/config"
	"github.com/ovenfresh/labelpress/internal/db"
)

const (
	settingKeyRetentionDays = "retention_days"
)

type SettingsResponse struct {
	RetentionDays int    `json:"retention_days"`
	DownloadTTL   string `json:"download_ttl"`
	PublicURL     string `json:"public_url"`
}

type UpdateRetentionRequest struct {
	RetentionDays int `json:"retention_days" binding:"min=0"`
}

type ServerConfigResponse struct {
	Port                int    `json:"port"`
	DatabasePath        string `json:"database_path"`
	OutputDir           string `json:"output_dir"`
	HealthCheckInterval string `json:"health_check_interval"`
	ConnectionTimeout   string `json:"connection_timeout"`
	PollInterval        string `json:"poll_interval"`
	MaxLabelsPerBatch   int    `json:"max_labels_per_batch"`
	MaxBatchSizeBytes   int    `json:"max_batch_size_bytes"`
	LogLevel            string `json:"log_level"`
}

type SettingsHandler struct {
	config *config.Config
}

func NewSettingsHandler(cfg *config.Config) *SettingsHandler {
	return &SettingsHandler{config: cfg}
}

func (h *SettingsHandler) GetSettings(c *gin.Context) {
	resp := SettingsResponse{
		RetentionDays: h.config.Queue.RetentionDays,
		DownloadTTL:   h.config.Output.DownloadTTL.String(),
		PublicURL:     h.config.Server.PublicURL,
	}

	if setting, err := db.Settings.GetSetting(c.Request.Context(), settingKeyRetentionDays); err == nil {
		if days, err := strconv.Atoi(setting.Value); err == nil && days >= 0 {
			resp.RetentionDays = days
		}
	} else if !errors.Is(err, sql.ErrNoRows) {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "database_error", Message: "Failed to read settings"})
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *SettingsHandler) UpdateRetention(c *gin.Context) {
	var req UpdateRetentionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "validation_error", Message: err.Error()})
		return
	}

	value := strconv.Itoa(req.RetentionDays)
	if err := db.Settings.SetSetting(c.Request.Context(), settingKeyRetentionDays, value, false); err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "database_error", Message: "Failed to update retention"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"retention_days": req.RetentionDays})
}

func (h *SettingsHandler) GetServerConfig(c *gin.Context) {
	c.JSON(http.StatusOK, ServerConfigResponse{
		Port:                h.config.Server.Port,
		DatabasePath:        h.config.Database.Path,
		OutputDir:           h.config.Output.Dir,
		HealthCheckInterval: h.config.Printers.HealthCheckInterval.String(),
		ConnectionTimeout:   h.config.Printers.ConnectionTimeout.String(),
		PollInterval:        h.config.Queue.PollInterval.String(),
		MaxLabelsPerBatch:   h.config.Compile.MaxLabelsPerBatch,
		MaxBatchSizeBytes:   h.config.Compile.MaxBatchSizeBytes,
		LogLevel:            h.config.Logging.Level,
	})
}

func (h *SettingsHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/settings", h.GetSettings)
	r.PUT("/settings/retention", h.UpdateRetention)
	r.GET("/settings/server", h.GetServerConfig)
}
