package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ovenfresh/labelpress/internal/api/middleware"
	"github.com/ovenfresh/labelpress/internal/db"
	"github.com/ovenfresh/labelpress/internal/queue"
	"github.com/ovenfresh/labelpress/internal/resolve"
	"github.com/ovenfresh/labelpress/internal/webhook"
)

type CreateJobRequest struct {
	SourceType string            `json:"source_type" binding:"required,oneof=order product manual"`
	SourceID   string            `json:"source_id"`
	ProfileID  int64             `json:"profile_id" binding:"required"`
	Copies     int               `json:"copies"`
	Data       map[string]string `json:"data"`
}

type ListJobsQuery struct {
	Status    string `form:"status"`
	ProfileID int64  `form:"profile_id"`
	FromDate  string `form:"from_date"`
	ToDate    string `form:"to_date"`
	Limit     int    `form:"limit" binding:"max=200"`
	Offset    int    `form:"offset"`
}

type JobHandler struct {
	dispatcher *queue.Dispatcher
	resolver   *resolve.DataResolver
	webhooks   *webhook.Sender
}

func NewJobHandler(dispatcher *queue.Dispatcher, resolver *resolve.DataResolver, webhooks *webhook.Sender) *JobHandler {
	return &JobHandler{
		dispatcher: dispatcher,
		resolver:   resolver,
		webhooks:   webhooks,
	}
}

// CreateJob enqueues a label job. Source data is resolved immediately and
// snapshotted into the job payload, so later edits to the order or product
// do not change what gets printed.
func (h *JobHandler) CreateJob(c *gin.Context) {
	var req CreateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "validation_error", Message: err.Error()})
		return
	}
	if req.SourceType != string(resolve.SourceManual) && req.SourceID == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "validation_error", Message: "source_id is required for order and product sources"})
		return
	}
	if req.Copies <= 0 {
		req.Copies = 1
	}

	ctx := c.Request.Context()
	profile, err := db.Profiles.GetProfileByID(ctx, req.ProfileID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "profile_not_found"})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "database_error", Message: "Failed to get profile"})
		return
	}
	if profile.Status != db.ProfileStatusActive {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "profile_inactive", Message: "label profile is not active"})
		return
	}

	var payload resolve.Data
	if req.SourceType == string(resolve.SourceManual) {
		payload = resolve.Data(req.Data)
	} else {
		src := resolve.Source{Kind: resolve.SourceKind(req.SourceType), ID: req.SourceID}
		payload, err = h.resolver.Resolve(ctx, src, middleware.VendorScope(c))
		if err != nil {
			if errors.Is(err, resolve.ErrNotFound) {
				c.JSON(http.StatusNotFound, ErrorResponse{Error: "source_not_found", Message: err.Error()})
				return
			}
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "resolve_error", Message: err.Error()})
			return
		}
		for k, v := range req.Data {
			payload[k] = v
		}
	}

	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "encode_error", Message: "Failed to encode payload"})
		return
	}

	job := &db.LabelJob{
		SourceType:  req.SourceType,
		SourceID:    req.SourceID,
		ProfileID:   req.ProfileID,
		RequestedBy: middleware.VendorScope(c),
		Copies:      req.Copies,
		PayloadJSON: string(payloadJSON),
		Status:      db.JobStatusQueued,
	}
	if err := db.Jobs.CreateLabelJob(ctx, job); err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "database_error", Message: "Failed to enqueue job"})
		return
	}

	h.webhooks.SendJobEvent(string(webhook.EventJobQueued), job)
	c.JSON(http.StatusCreated, job)
}

func (h *JobHandler) GetJob(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_id"})
		return
	}

	job, err := db.Jobs.GetLabelJobByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "job_not_found"})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "database_error", Message: "Failed to get job"})
		return
	}
	c.JSON(http.StatusOK, job)
}

func (h *JobHandler) ListJobs(c *gin.Context) {
	var q ListJobsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "validation_error", Message: err.Error()})
		return
	}

	filter := db.JobFilter{
		Status:    q.Status,
		ProfileID: q.ProfileID,
		Limit:     q.Limit,
		Offset:    q.Offset,
	}
	if q.FromDate != "" {
		t, err := time.Parse(time.RFC3339, q.FromDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "validation_error", Message: "from_date must be RFC 3339"})
			return
		}
		filter.FromDate = &t
	}
	if q.ToDate != "" {
		t, err := time.Parse(time.RFC3339, q.ToDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "validation_error", Message: "to_date must be RFC 3339"})
			return
		}
		filter.ToDate = &t
	}

	jobs, err := db.Jobs.ListJobs(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "database_error", Message: "Failed to list jobs"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobs": jobs})
}

func (h *JobHandler) RetryJob(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_id"})
		return
	}

	if err := h.dispatcher.Retry(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusConflict, ErrorResponse{Error: "retry_error", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": db.JobStatusQueued})
}

func (h *JobHandler) CancelJob(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_id"})
		return
	}

	if err := h.dispatcher.Cancel(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusConflict, ErrorResponse{Error: "cancel_error", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": db.JobStatusCancelled})
}

func (h *JobHandler) ReprintJob(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_id"})
		return
	}

	job, err := h.dispatcher.Reprint(c.Request.Context(), id, middleware.VendorScope(c))
	if err != nil {
		if errors.Is(err, queue.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "job_not_found"})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "reprint_error", Message: err.Error()})
		return
	}
	c.JSON(http.StatusCreated, job)
}

type JobStatsResponse struct {
	ByStatus   map[string]int `json:"by_status"`
	Total      int            `json:"total"`
	TodayTotal int            `json:"today_total"`
	WeekTotal  int            `json:"week_total"`
}

func (h *JobHandler) GetStats(c *gin.Context) {
	ctx := c.Request.Context()
	stats, err := h.dispatcher.Stats(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "database_error", Message: "Failed to read job stats"})
		return
	}

	resp := JobStatsResponse{ByStatus: stats, Total: stats["total"]}
	delete(stats, "total")

	now := time.Now()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if n, err := db.Jobs.CountCreatedSince(ctx, startOfDay); err == nil {
		resp.TodayTotal = n
	}
	if n, err := db.Jobs.CountCreatedSince(ctx, startOfDay.AddDate(0, 0, -6)); err == nil {
		resp.WeekTotal = n
	}

	c.JSON(http.StatusOK, resp)
}

func (h *JobHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/jobs", h.ListJobs)
	r.POST("/jobs", h.CreateJob)
	r.GET("/jobs/stats", h.GetStats)
	r.GET("/jobs/:id", h.GetJob)
	r.POST("/jobs/:id/retry", h.RetryJob)
	r.POST("/jobs/:id/cancel", h.CancelJob)
	r.POST("/jobs/:id/reprint", h.ReprintJob)
}
