package handlers

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ovenfresh/labelpress/internal/db"
	"github.com/ovenfresh/labelpress/internal/webhook"
)

type CreateWebhookRequest struct {
	Name    string   `json:"name" binding:"required"`
	URL     string   `json:"url" binding:"required,url"`
	Secret  string   `json:"secret" binding:"required"`
	Events  []string `json:"events" binding:"required,min=1"`
	Enabled *bool    `json:"enabled"`
}

type UpdateWebhookRequest struct {
	Name    *string   `json:"name"`
	URL     *string   `json:"url"`
	Secret  *string   `json:"secret"`
	Events  *[]string `json:"events"`
	Enabled *bool     `json:"enabled"`
}

type WebhookHandler struct{}

func NewWebhookHandler() *WebhookHandler {
	return &WebhookHandler{}
}

func validEvents(events []string) bool {
	for _, e := range events {
		switch webhook.Event(e) {
		case webhook.EventJobQueued, webhook.EventJobStarted, webhook.EventJobCompleted,
			webhook.EventJobFailed, webhook.EventPrinterStatusChanged:
		default:
			return false
		}
	}
	return true
}

func (h *WebhookHandler) ListWebhooks(c *gin.Context) {
	webhooks, err := db.Webhooks.ListWebhooks(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "database_error", Message: "Failed to list webhooks"})
		return
	}
	for _, w := range webhooks {
		w.Secret = ""
	}
	c.JSON(http.StatusOK, gin.H{"webhooks": webhooks})
}

func (h *WebhookHandler) GetWebhook(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_id"})
		return
	}

	w, err := db.Webhooks.GetWebhookByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "webhook_not_found"})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "database_error", Message: "Failed to get webhook"})
		return
	}
	w.Secret = ""
	c.JSON(http.StatusOK, w)
}

func (h *WebhookHandler) CreateWebhook(c *gin.Context) {
	var req CreateWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "validation_error", Message: err.Error()})
		return
	}
	if !validEvents(req.Events) {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "validation_error", Message: "unknown event in subscription list"})
		return
	}

	eventsJSON, _ := json.Marshal(req.Events)
	w := &db.Webhook{
		Name:       req.Name,
		URL:        req.URL,
		Secret:     req.Secret,
		EventsJSON: string(eventsJSON),
		Enabled:    req.Enabled == nil || *req.Enabled,
	}
	if err := db.Webhooks.CreateWebhook(c.Request.Context(), w); err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "database_error", Message: "Failed to create webhook"})
		return
	}

	w.Secret = ""
	c.JSON(http.StatusCreated, w)
}

func (h *WebhookHandler) UpdateWebhook(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_id"})
		return
	}

	var req UpdateWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "validation_error", Message: err.Error()})
		return
	}

	ctx := c.Request.Context()
	w, err := db.Webhooks.GetWebhookByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "webhook_not_found"})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "database_error", Message: "Failed to get webhook"})
		return
	}

	if req.Name != nil {
		w.Name = *req.Name
	}
	if req.URL != nil {
		w.URL = *req.URL
	}
	if req.Secret != nil {
		w.Secret = *req.Secret
	}
	if req.Events != nil {
		if !validEvents(*req.Events) {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "validation_error", Message: "unknown event in subscription list"})
			return
		}
		eventsJSON, _ := json.Marshal(*req.Events)
		w.EventsJSON = string(eventsJSON)
	}
	if req.Enabled != nil {
		w.Enabled = *req.Enabled
	}

	if err := db.Webhooks.UpdateWebhook(ctx, w); err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "database_error", Message: "Failed to update webhook"})
		return
	}

	w.Secret = ""
	c.JSON(http.StatusOK, w)
}

func (h *WebhookHandler) DeleteWebhook(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_id"})
		return
	}

	if err := db.Webhooks.DeleteWebhook(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "database_error", Message: "Failed to delete webhook"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": id})
}

// TestWebhook delivers a signed test event synchronously and reports the
// endpoint's response.
func (h *WebhookHandler) TestWebhook(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_id"})
		return
	}

	w, err := db.Webhooks.GetWebhookByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "webhook_not_found"})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "database_error", Message: "Failed to get webhook"})
		return
	}

	data, _ := json.Marshal(gin.H{"message": "test delivery", "webhook_id": w.ID})
	body, _ := json.Marshal(gin.H{
		"event":     "test",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"data":      json.RawMessage(data),
	})

	req, err := http.NewRequestWithContext(c.Request.Context(), http.MethodPost, w.URL, bytes.NewReader(body))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_url", Message: err.Error()})
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-Event", "test")
	req.Header.Set("X-Webhook-Signature", webhook.Sign(data, w.Secret))

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		c.JSON(http.StatusBadGateway, ErrorResponse{Error: "delivery_failed", Message: err.Error()})
		return
	}
	defer resp.Body.Close()

	c.JSON(http.StatusOK, gin.H{"delivered": true, "status_code": resp.StatusCode})
}

func (h *WebhookHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/webhooks", h.ListWebhooks)
	r.POST("/webhooks", h.CreateWebhook)
	r.GET("/webhooks/:id", h.GetWebhook)
	r.PUT("/webhooks/:id", h.UpdateWebhook)
	r.DELETE("/webhooks/:id", h.DeleteWebhook)
	r.POST("/webhooks/:id/test", h.TestWebhook)
}
