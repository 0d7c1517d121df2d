package compile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ovenfresh/labelpress/internal/batch"
	"github.com/ovenfresh/labelpress/internal/db"
	"github.com/ovenfresh/labelpress/internal/label"
	"github.com/ovenfresh/labelpress/internal/logger"
	"github.com/ovenfresh/labelpress/internal/render"
	"github.com/ovenfresh/labelpress/internal/resolve"
)

var (
	ErrValidation          = errors.New("invalid compile request")
	ErrNoAvailablePrinters = errors.New("no available printers")
	ErrJobNotFound         = errors.New("compile job not found")
	ErrJobFinished         = errors.New("compile job already finished")
)

// Output formats accepted by a compile request. Auto infers the format per
// batch from the assigned printer's name.
type OutputFormat string

const (
	FormatPDF  OutputFormat = "PDF"
	FormatZPL  OutputFormat = "ZPL"
	FormatAuto OutputFormat = "AUTO"
)

const (
	maxOrderIDs   = 100
	maxPrinterIDs = 20
	maxPriority   = 10

	totalSteps = 5
)

type Request struct {
	OrderIDs     []string     `json:"order_ids"`
	PrinterIDs   []int64      `json:"printer_ids,omitempty"`
	OutputFormat OutputFormat `json:"output_format,omitempty"`
	Priority     int          `json:"priority,omitempty"`

	IncludeShippingLabels bool             `json:"include_shipping_labels,omitempty"`
	OverrideLabelProfiles map[string]int64 `json:"override_label_profiles,omitempty"`
	CustomLabelsPerItem   map[string]int   `json:"custom_labels_per_item,omitempty"`
	VendorScope           string           `json:"vendor_scope,omitempty"`
	GroupByOrder          bool             `json:"group_by_order,omitempty"`
	PrinterAffinity       bool             `json:"printer_affinity,omitempty"`
	OrderAgePriority      bool             `json:"order_age_priority,omitempty"`
}

// BatchResult summarizes one batch's outcome, including a download handle
// when a file was produced.
type BatchResult struct {
	BatchID       string        `json:"batch_id"`
	ProfileName   string        `json:"profile_name"`
	PrinterName   string        `json:"printer_name"`
	Labels        int           `json:"labels"`
	Status        string        `json:"status"`
	Engine        db.Engine     `json:"engine"`
	EstimatedTime time.Duration `json:"estimated_time"`
	DownloadPath  string        `json:"download_path,omitempty"`
	ExpiresAt     *time.Time    `json:"expires_at,omitempty"`
	Error         string        `json:"error,omitempty"`
}

type Response struct {
	JobID         string           `json:"job_id"`
	Batches       []BatchResult    `json:"batches"`
	TotalLabels   int              `json:"total_labels"`
	TotalBatches  int              `json:"total_batches"`
	FailedBatches int              `json:"failed_batches"`
	Skipped       []string         `json:"skipped_items,omitempty"`
	Statistics    batch.Statistics `json:"statistics"`
	Warnings      []string         `json:"warnings,omitempty"`
}

type Resolver interface {
	ResolveOrderLabels(ctx context.Context, orderID string, opts resolve.ResolveOptions) (*resolve.OrderResolution, error)
}

type PrinterStore interface {
	GetPrinterByID(ctx context.Context, id int64) (*db.Printer, error)
	ListActivePrinters(ctx context.Context) ([]*db.Printer, error)
}

type TemplateStore interface {
	GetTemplateByID(ctx context.Context, id int64) (*db.Template, error)
}

type Config struct {
	OutputDir         string
	DownloadTTL       time.Duration
	MaxLabelsPerBatch int
	MaxBatchSizeBytes int
	MaxPrintTime      time.Duration
}

// Orchestrator drives the five-step compilation pipeline: resolve, load
// printers, batch, render files, finalize. Safe for concurrent compile
// calls; progress is tracked per job ID in the injected store.
type Orchestrator struct {
	resolver  Resolver
	printers  PrinterStore
	templates TemplateStore
	optimizer *batch.Optimizer
	store     JobStore
	cfg       Config
	log       logger.Logger
	now       func() time.Time
}

func NewOrchestrator(resolver Resolver, printers PrinterStore, templates TemplateStore, optimizer *batch.Optimizer, store JobStore, cfg Config, log logger.Logger) *Orchestrator {
	return &Orchestrator{
		resolver:  resolver,
		printers:  printers,
		templates: templates,
		optimizer: optimizer,
		store:     store,
		cfg:       cfg,
		log:       log,
		now:       time.Now,
	}
}

// Validate rejects malformed requests before any work begins.
func (r *Request) Validate() error {
	if len(r.OrderIDs) == 0 {
		return fmt.Errorf("%w: at least one order ID required", ErrValidation)
	}
	if len(r.OrderIDs) > maxOrderIDs {
		return fmt.Errorf("%w: at most %d order IDs per request", ErrValidation, maxOrderIDs)
	}
	if len(r.PrinterIDs) > maxPrinterIDs {
		return fmt.Errorf("%w: at most %d printer IDs per request", ErrValidation, maxPrinterIDs)
	}
	switch r.OutputFormat {
	case "", FormatPDF, FormatZPL, FormatAuto:
	default:
		return fmt.Errorf("%w: unknown output format %q", ErrValidation, r.OutputFormat)
	}
	if r.Priority < 0 || r.Priority > maxPriority {
		return fmt.Errorf("%w: priority must be 0-%d", ErrValidation, maxPriority)
	}
	return nil
}

// CompileLabels runs the full pipeline for one request and returns the
// assembled response. A job ID is allocated up front so concurrent callers
// can poll progress via GetJobStatus while the call is in flight.
func (o *Orchestrator) CompileLabels(ctx context.Context, req Request) (*Response, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if req.OutputFormat == "" {
		req.OutputFormat = FormatAuto
	}

	jobID := uuid.NewString()
	status := &JobStatus{
		JobID:      jobID,
		State:      StateRunning,
		TotalSteps: totalSteps,
		StartedAt:  o.now(),
		UpdatedAt:  o.now(),
	}
	o.store.Put(status)

	resp, err := o.run(ctx, jobID, req, status)
	if err != nil {
		if errors.Is(err, context.Canceled) || o.isCancelled(jobID) {
			o.setState(status, StateCancelled, err.Error())
			return nil, err
		}
		o.setState(status, StateFailed, err.Error())
		return nil, err
	}
	status.Result = resp
	o.setState(status, StateCompleted, "")
	return resp, nil
}

func (o *Orchestrator) run(ctx context.Context, jobID string, req Request, status *JobStatus) (*Response, error) {
	// Step 1: resolve label requirements per order.
	o.step(status, 1, "resolving label requirements")
	var items []*resolve.ResolvedLabelItem
	var skipped []string
	for _, orderID := range req.OrderIDs {
		if err := o.checkLive(ctx, jobID); err != nil {
			return nil, err
		}
		res, err := o.resolver.ResolveOrderLabels(ctx, orderID, resolve.ResolveOptions{
			OverrideLabelProfiles: req.OverrideLabelProfiles,
			CustomLabelsPerItem:   req.CustomLabelsPerItem,
			IncludeShippingLabels: req.IncludeShippingLabels,
			VendorScope:           req.VendorScope,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to resolve order %s: %w", orderID, err)
		}
		items = append(items, res.Items...)
		skipped = append(skipped, res.Summary.SkippedItems...)
	}

	// Step 2: load the candidate printer pool.
	o.step(status, 2, "loading printers")
	printers, err := o.loadPrinters(ctx, req.PrinterIDs)
	if err != nil {
		return nil, err
	}
	if len(printers) == 0 {
		return nil, ErrNoAvailablePrinters
	}

	// Step 3: batch.
	o.step(status, 3, "optimizing batches")
	templates, err := o.loadTemplates(ctx, items)
	if err != nil {
		return nil, err
	}
	result, err := o.optimizer.CreateOptimizedBatches(items, printers, batch.Options{
		MaxLabelsPerBatch: o.cfg.MaxLabelsPerBatch,
		MaxBatchSizeBytes: o.cfg.MaxBatchSizeBytes,
		MaxPrintTime:      o.cfg.MaxPrintTime,
		Priority:          req.Priority,
		GroupByOrder:      req.GroupByOrder,
		PrinterAffinity:   req.PrinterAffinity,
		OrderAgePriority:  req.OrderAgePriority,
		Templates:         templates,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to batch labels: %w", err)
	}

	// Step 4: generate one output file per batch. A failed batch is
	// recorded and skipped; siblings keep rendering.
	o.step(status, 4, "generating output files")
	resp := &Response{
		JobID:      jobID,
		Skipped:    skipped,
		Statistics: result.Statistics,
		Warnings:   result.Warnings,
	}
	for _, b := range result.Batches {
		if err := o.checkLive(ctx, jobID); err != nil {
			return nil, err
		}
		br := o.generateBatchFile(jobID, b, req.OutputFormat, templates)
		if br.Status == batch.StatusFailed {
			resp.FailedBatches++
		} else {
			resp.TotalLabels += br.Labels
		}
		resp.Batches = append(resp.Batches, br)
	}

	// Step 5: finalize.
	o.step(status, 5, "finalizing")
	resp.TotalBatches = len(resp.Batches)
	o.log.Info("compilation finished",
		logger.String("job_id", jobID),
		logger.Int("batches", resp.TotalBatches),
		logger.Int("failed", resp.FailedBatches),
		logger.Int("labels", resp.TotalLabels))
	return resp, nil
}

func (o *Orchestrator) loadPrinters(ctx context.Context, ids []int64) ([]*db.Printer, error) {
	if len(ids) == 0 {
		printers, err := o.printers.ListActivePrinters(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list printers: %w", err)
		}
		return printers, nil
	}
	var printers []*db.Printer
	for _, id := range ids {
		p, err := o.printers.GetPrinterByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to load printer %d: %w", id, err)
		}
		if p != nil && p.IsActive() {
			printers = append(printers, p)
		}
	}
	return printers, nil
}

// loadTemplates fetches and parses each distinct template referenced by the
// resolved items, keyed by template ID for the optimizer and renderers.
func (o *Orchestrator) loadTemplates(ctx context.Context, items []*resolve.ResolvedLabelItem) (map[int64]*label.Template, error) {
	templates := make(map[int64]*label.Template)
	for _, it := range items {
		id := it.Profile.TemplateID
		if _, ok := templates[id]; ok {
			continue
		}
		rec, err := o.templates.GetTemplateByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to load template %d: %w", id, err)
		}
		tmpl, err := label.Parse(rec.SchemaJSON)
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %d: %w", id, err)
		}
		templates[id] = tmpl
	}
	return templates, nil
}

// generateBatchFile renders one batch and writes the output under a
// job-scoped directory. The filename embeds the batch ID, a timestamp, and
// a random suffix so concurrent batches can never collide.
func (o *Orchestrator) generateBatchFile(jobID string, b *batch.Batch, format OutputFormat, templates map[int64]*label.Template) BatchResult {
	br := BatchResult{
		BatchID:       b.ID,
		ProfileName:   b.Profile.Name,
		PrinterName:   b.Printer.Name,
		Labels:        len(b.Items),
		Engine:        b.Profile.Engine,
		EstimatedTime: b.EstimatedTime,
	}

	engine := o.batchEngine(b, format)
	br.Engine = engine

	tmpl := templates[b.Profile.TemplateID]
	if tmpl == nil {
		br.Status = batch.StatusFailed
		br.Error = fmt.Sprintf("template %d not loaded", b.Profile.TemplateID)
		return br
	}

	job := render.Job{
		Template: tmpl,
		DPI:      b.Printer.DPI,
		WidthIn:  b.Profile.WidthIn,
		HeightIn: b.Profile.HeightIn,
	}
	copies := b.Profile.Copies
	if copies < 1 {
		copies = 1
	}
	for _, u := range b.Items {
		job.Labels = append(job.Labels, render.Label{
			ItemID: u.OrderItemID,
			Data:   u.Data,
			Copies: copies,
		})
	}

	out, err := render.Render(engine, job)
	if err != nil {
		o.log.Error("batch render failed",
			logger.String("batch_id", b.ID), logger.Err(err))
		br.Status = batch.StatusFailed
		br.Error = err.Error()
		return br
	}

	dir := filepath.Join(o.cfg.OutputDir, jobID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		br.Status = batch.StatusFailed
		br.Error = fmt.Sprintf("failed to create output dir: %v", err)
		return br
	}
	name := fmt.Sprintf("%s-%d-%s%s", b.ID, o.now().UnixMilli(), uuid.NewString()[:8], render.FileExt(engine))
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, out.Buffer, 0o644); err != nil {
		br.Status = batch.StatusFailed
		br.Error = fmt.Sprintf("failed to write output file: %v", err)
		return br
	}

	br.Status = batch.StatusCompleted
	br.DownloadPath = filepath.Join(jobID, name)
	if o.cfg.DownloadTTL > 0 {
		exp := o.now().Add(o.cfg.DownloadTTL)
		br.ExpiresAt = &exp
	}
	return br
}

// batchEngine picks the render engine for a batch. Explicit formats win;
// Auto sniffs the printer name and falls back to PDF for anything it does
// not recognize.
func (o *Orchestrator) batchEngine(b *batch.Batch, format OutputFormat) db.Engine {
	switch format {
	case FormatPDF:
		return db.EnginePDF
	case FormatZPL:
		return db.EngineZPL
	}
	name := strings.ToLower(b.Printer.Name)
	switch {
	case strings.Contains(name, "zebra") || strings.Contains(name, "zpl") || b.Printer.Engine == db.EngineZPL:
		return db.EngineZPL
	case strings.Contains(name, "brother") || b.Printer.Engine == db.EngineBrotherQL:
		return db.EngineBrotherQL
	default:
		return db.EnginePDF
	}
}

// GetJobStatus returns a stable snapshot of a job's progress.
func (o *Orchestrator) GetJobStatus(jobID string) (*JobStatus, error) {
	st, ok := o.store.Get(jobID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	return st, nil
}

// CancelJob marks a running job cancelled. Completed and failed jobs are
// final and cannot be cancelled.
func (o *Orchestrator) CancelJob(jobID string) error {
	st, ok := o.store.Get(jobID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	if st.State == StateCompleted || st.State == StateFailed {
		return fmt.Errorf("%w: %s is %s", ErrJobFinished, jobID, st.State)
	}
	st.State = StateCancelled
	st.UpdatedAt = o.now()
	o.store.Put(st)
	return nil
}

// CleanupExpiredJobs evicts job records older than maxAge, returning how
// many were removed.
func (o *Orchestrator) CleanupExpiredJobs(maxAge time.Duration) int {
	cutoff := o.now().Add(-maxAge)
	removed := 0
	for _, st := range o.store.List() {
		if st.UpdatedAt.Before(cutoff) {
			o.store.Delete(st.JobID)
			removed++
		}
	}
	if removed > 0 {
		o.log.Info("evicted expired compile jobs", logger.Int("count", removed))
	}
	return removed
}

func (o *Orchestrator) step(status *JobStatus, n int, name string) {
	status.CurrentStep = name
	status.CompletedSteps = n - 1
	status.Percent = (n - 1) * 100 / totalSteps
	status.UpdatedAt = o.now()
	o.store.Put(status)
}

func (o *Orchestrator) setState(status *JobStatus, state, errMsg string) {
	// An operator cancel can land between the last liveness check and
	// finalization; cancellation wins over a completed or failed result.
	if o.isCancelled(status.JobID) {
		status.State = StateCancelled
		status.UpdatedAt = o.now()
		o.store.Put(status)
		return
	}
	status.State = state
	status.Error = errMsg
	if state == StateCompleted {
		status.CompletedSteps = totalSteps
		status.Percent = 100
	}
	status.UpdatedAt = o.now()
	o.store.Put(status)
}

// checkLive aborts the pipeline when the context dies or an operator has
// cancelled the job out of band.
func (o *Orchestrator) checkLive(ctx context.Context, jobID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if o.isCancelled(jobID) {
		return fmt.Errorf("job %s cancelled", jobID)
	}
	return nil
}

func (o *Orchestrator) isCancelled(jobID string) bool {
	st, ok := o.store.Get(jobID)
	return ok && st.State == StateCancelled
}
