// Package queue runs the label job dispatcher: a single polling loop that
// claims one queued job at a time, resolves its data, renders it, and
// delivers the output to a network printer or the output directory.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ovenfresh/labelpress/internal/batch"
	"github.com/ovenfresh/labelpress/internal/config"
	"github.com/ovenfresh/labelpress/internal/db"
	"github.com/ovenfresh/labelpress/internal/label"
	"github.com/ovenfresh/labelpress/internal/logger"
	"github.com/ovenfresh/labelpress/internal/render"
	"github.com/ovenfresh/labelpress/internal/resolve"
)

var ErrJobNotFound = errors.New("label job not found")

const (
	defaultPollInterval = 1 * time.Second
	defaultErrorBackoff = 5 * time.Second

	retentionSweepInterval = 1 * time.Hour
)

type JobStore interface {
	ClaimNextQueued(ctx context.Context) (*db.LabelJob, error)
	GetLabelJobByID(ctx context.Context, id int64) (*db.LabelJob, error)
	CreateLabelJob(ctx context.Context, j *db.LabelJob) error
	UpdateStatus(ctx context.Context, id int64, status, errMsg string) error
	Complete(ctx context.Context, id int64, status, errMsg, outputPath string) error
	Retry(ctx context.Context, id int64) error
	Cancel(ctx context.Context, id int64) error
	CountByStatus(ctx context.Context) (map[string]int, error)
	PurgeTerminal(ctx context.Context, cutoff time.Time) (int64, error)
}

type DataResolver interface {
	Resolve(ctx context.Context, src resolve.Source, vendorScope string) (resolve.Data, error)
}

type ProfileStore interface {
	GetProfileByID(ctx context.Context, id int64) (*db.LabelProfile, error)
}

type TemplateStore interface {
	GetTemplateByID(ctx context.Context, id int64) (*db.Template, error)
}

// PrinterPool is the delivery side: the cached printer list for selection
// and the network path for streaming bytes to a device.
type PrinterPool interface {
	List() []*db.Printer
	Print(ctx context.Context, id int64, payload []byte, labels int) error
}

type WebhookSender interface {
	SendJobEvent(event string, job *db.LabelJob)
}

// Dispatcher drives the label job state machine: queued, rendering,
// printing, then completed, with failed reachable from either working state.
// One job is in flight at a time; delivery and rendering errors fail that
// job and the loop moves on.
type Dispatcher struct {
	jobs      JobStore
	data      DataResolver
	profiles  ProfileStore
	templates TemplateStore
	printers  PrinterPool
	webhooks  WebhookSender
	cfg       config.QueueConfig
	outputDir string
	log       logger.Logger
	now       func() time.Time

	stopCh  chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

func NewDispatcher(jobs JobStore, data DataResolver, profiles ProfileStore, templates TemplateStore, printers PrinterPool, webhooks WebhookSender, cfg config.QueueConfig, outputDir string, log logger.Logger) *Dispatcher {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.ErrorBackoff <= 0 {
		cfg.ErrorBackoff = defaultErrorBackoff
	}
	return &Dispatcher{
		jobs:      jobs,
		data:      data,
		profiles:  profiles,
		templates: templates,
		printers:  printers,
		webhooks:  webhooks,
		cfg:       cfg,
		outputDir: outputDir,
		log:       log,
		now:       time.Now,
		stopCh:    make(chan struct{}),
	}
}

func (d *Dispatcher) Start() {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return
	}
	d.running = true
	d.mu.Unlock()

	d.wg.Add(1)
	go d.loop()

	if d.cfg.RetentionDays > 0 {
		d.wg.Add(1)
		go d.retentionLoop()
	}
}

func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	d.running = false
	d.mu.Unlock()

	close(d.stopCh)
	d.wg.Wait()
}

// loop is the dispatcher heartbeat. An empty queue sleeps the poll
// interval; an unexpected claim error sleeps the longer error backoff so a
// broken database does not spin the loop hot.
func (d *Dispatcher) loop() {
	defer d.wg.Done()

	ctx := context.Background()
	for {
		delay := d.cfg.PollInterval

		job, err := d.jobs.ClaimNextQueued(ctx)
		switch {
		case err != nil:
			d.log.Error("failed to claim job", logger.Err(err))
			delay = d.cfg.ErrorBackoff
		case job != nil:
			d.process(ctx, job)
			delay = 0
		}

		select {
		case <-d.stopCh:
			return
		case <-time.After(delay):
		}
	}
}

// Tick claims and processes at most one job. Exposed for tests; the loop
// calls the same path.
func (d *Dispatcher) Tick(ctx context.Context) (bool, error) {
	job, err := d.jobs.ClaimNextQueued(ctx)
	if err != nil {
		return false, err
	}
	if job == nil {
		return false, nil
	}
	d.process(ctx, job)
	return true, nil
}

// process takes a freshly claimed job (already in rendering state) through
// render and delivery. Any error fails the job with its message preserved
// verbatim for operator diagnosis.
func (d *Dispatcher) process(ctx context.Context, job *db.LabelJob) {
	d.log.Info("processing label job",
		logger.Int64("job_id", job.ID),
		logger.String("source", job.SourceType))

	if d.webhooks != nil {
		d.webhooks.SendJobEvent("job_started", job)
	}

	outputPath, err := d.renderAndDeliver(ctx, job)
	if err != nil {
		d.fail(ctx, job, err)
		return
	}

	job.Status = db.JobStatusCompleted
	job.OutputPath = outputPath
	if err := d.jobs.Complete(ctx, job.ID, db.JobStatusCompleted, "", outputPath); err != nil {
		d.log.Error("failed to mark job completed",
			logger.Int64("job_id", job.ID), logger.Err(err))
		return
	}
	d.log.Info("label job completed",
		logger.Int64("job_id", job.ID),
		logger.String("output", outputPath))
	if d.webhooks != nil {
		d.webhooks.SendJobEvent("job_completed", job)
	}
}

func (d *Dispatcher) fail(ctx context.Context, job *db.LabelJob, cause error) {
	d.log.Warn("label job failed",
		logger.Int64("job_id", job.ID), logger.Err(cause))
	job.Status = db.JobStatusFailed
	job.ErrorMessage = cause.Error()
	if err := d.jobs.Complete(ctx, job.ID, db.JobStatusFailed, cause.Error(), ""); err != nil {
		d.log.Error("failed to mark job failed",
			logger.Int64("job_id", job.ID), logger.Err(err))
	}
	if d.webhooks != nil {
		d.webhooks.SendJobEvent("job_failed", job)
	}
}

func (d *Dispatcher) renderAndDeliver(ctx context.Context, job *db.LabelJob) (string, error) {
	profile, err := d.profiles.GetProfileByID(ctx, job.ProfileID)
	if err != nil {
		return "", fmt.Errorf("failed to load profile %d: %w", job.ProfileID, err)
	}

	data, err := d.jobData(ctx, job)
	if err != nil {
		return "", err
	}

	rec, err := d.templates.GetTemplateByID(ctx, profile.TemplateID)
	if err != nil {
		return "", fmt.Errorf("failed to load template %d: %w", profile.TemplateID, err)
	}
	tmpl, err := label.Parse(rec.SchemaJSON)
	if err != nil {
		return "", fmt.Errorf("failed to parse template %d: %w", profile.TemplateID, err)
	}

	// Command-language output is device dots, so the printer has to be
	// picked before rendering: a 300 DPI head needs different geometry
	// than the template's default.
	var printer *db.Printer
	dpi := 0
	if profile.Engine == db.EngineZPL {
		if p := batch.SelectPrinter(profile, d.printers.List()); p != nil && p.IPAddress != "" {
			printer = p
			dpi = p.DPI
		}
	}

	out, err := render.RenderOne(profile.Engine, tmpl, data, dpi, profile.WidthIn, profile.HeightIn, job.Copies)
	if err != nil {
		return "", fmt.Errorf("failed to render: %w", err)
	}

	if err := d.jobs.UpdateStatus(ctx, job.ID, db.JobStatusPrinting, ""); err != nil {
		return "", err
	}
	job.Status = db.JobStatusPrinting

	return d.deliver(ctx, job, profile, printer, out)
}

// jobData uses the payload snapshot taken at enqueue time when present and
// falls back to a fresh resolve of the job's source otherwise.
func (d *Dispatcher) jobData(ctx context.Context, job *db.LabelJob) (resolve.Data, error) {
	if job.PayloadJSON != "" {
		var data resolve.Data
		if err := json.Unmarshal([]byte(job.PayloadJSON), &data); err == nil && len(data) > 0 {
			return data, nil
		}
		d.log.Warn("bad payload snapshot, re-resolving",
			logger.Int64("job_id", job.ID))
	}
	data, err := d.data.Resolve(ctx, resolve.Source{
		Kind: resolve.SourceKind(job.SourceType),
		ID:   job.SourceID,
	}, "")
	if err != nil {
		return nil, fmt.Errorf("failed to resolve job data: %w", err)
	}
	return data, nil
}

// deliver streams command-language output to the selected network printer
// and persists everything else as a file for manual retrieval. ZPL with no
// reachable printer also degrades to a file rather than failing the job.
func (d *Dispatcher) deliver(ctx context.Context, job *db.LabelJob, profile *db.LabelProfile, printer *db.Printer, out render.Output) (string, error) {
	if printer != nil {
		dctx, cancel := context.WithTimeout(ctx, defaultNetworkTimeout)
		defer cancel()
		if err := d.printers.Print(dctx, printer.ID, out.Buffer, job.Copies); err != nil {
			return "", fmt.Errorf("failed to deliver to printer %s: %w", printer.Name, err)
		}
		return "", nil
	}
	if profile.Engine == db.EngineZPL {
		d.log.Warn("no network printer for job, writing file",
			logger.Int64("job_id", job.ID),
			logger.String("profile", profile.Name))
	}
	return d.writeFile(job, profile.Engine, out.Buffer)
}

const defaultNetworkTimeout = 10 * time.Second

func (d *Dispatcher) writeFile(job *db.LabelJob, engine db.Engine, buf []byte) (string, error) {
	dir := filepath.Join(d.outputDir, "jobs")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output dir: %w", err)
	}
	name := fmt.Sprintf("job-%d-%d%s", job.ID, d.now().UnixMilli(), render.FileExt(engine))
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return "", fmt.Errorf("failed to write output file: %w", err)
	}
	return filepath.Join("jobs", name), nil
}

// Retry re-queues a failed job, clearing its error. Only failed jobs
// qualify; the next polling tick picks it up.
func (d *Dispatcher) Retry(ctx context.Context, id int64) error {
	return d.jobs.Retry(ctx, id)
}

// Cancel stops a job that has not started printing yet.
func (d *Dispatcher) Cancel(ctx context.Context, id int64) error {
	return d.jobs.Cancel(ctx, id)
}

// Reprint clones a finished job into a fresh queued one and returns the new
// job. The payload snapshot rides along so the reprint matches the original
// even if the source entity changed since.
func (d *Dispatcher) Reprint(ctx context.Context, id int64, requestedBy string) (*db.LabelJob, error) {
	orig, err := d.jobs.GetLabelJobByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: %d", ErrJobNotFound, id)
	}
	clone := &db.LabelJob{
		SourceType:  orig.SourceType,
		SourceID:    orig.SourceID,
		ProfileID:   orig.ProfileID,
		RequestedBy: requestedBy,
		Copies:      orig.Copies,
		PayloadJSON: orig.PayloadJSON,
		Status:      db.JobStatusQueued,
	}
	if err := d.jobs.CreateLabelJob(ctx, clone); err != nil {
		return nil, err
	}
	return clone, nil
}

// Stats reports job counts by status plus a total.
func (d *Dispatcher) Stats(ctx context.Context) (map[string]int, error) {
	counts, err := d.jobs.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}
	total := 0
	for _, n := range counts {
		total += n
	}
	counts["total"] = total
	return counts, nil
}

func (d *Dispatcher) retentionLoop() {
	defer d.wg.Done()

	ticker := time.NewTicker(retentionSweepInterval)
	defer ticker.Stop()

	ctx := context.Background()
	for {
		select {
		case <-d.stopCh:
			return
		case <-ticker.C:
			cutoff := d.now().AddDate(0, 0, -d.cfg.RetentionDays)
			purged, err := d.jobs.PurgeTerminal(ctx, cutoff)
			if err != nil {
				d.log.Error("retention sweep failed", logger.Err(err))
				continue
			}
			if purged > 0 {
				d.log.Info("purged old label jobs", logger.Int64("count", purged))
			}
		}
	}
}
