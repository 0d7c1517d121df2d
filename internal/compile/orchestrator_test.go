package compile

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ovenfresh/labelpress/internal/batch"
	"github.com/ovenfresh/labelpress/internal/db"
	"github.com/ovenfresh/labelpress/internal/logger"
	"github.com/ovenfresh/labelpress/internal/resolve"
)

const testSchema = `{
	"name": "retail",
	"width_in": 4, "height_in": 6,
	"elements": [
		{"id": "name", "type": "text", "x": 0.2, "y": 0.2, "w": 3.6, "bind": "productName"},
		{"id": "code", "type": "barcode", "x": 0.2, "y": 1.0, "w": 3.0, "h": 0.5, "bind": "barcode"}
	]
}`

type fakeResolver struct {
	items   []*resolve.ResolvedLabelItem
	skipped []string
	err     error
}

func (f *fakeResolver) ResolveOrderLabels(ctx context.Context, orderID string, opts resolve.ResolveOptions) (*resolve.OrderResolution, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &resolve.OrderResolution{
		Items: f.items,
		Summary: resolve.Summary{
			TotalLabels:  len(f.items),
			SkippedItems: f.skipped,
		},
	}, nil
}

type fakePrinters struct {
	printers []*db.Printer
}

func (f *fakePrinters) GetPrinterByID(ctx context.Context, id int64) (*db.Printer, error) {
	for _, p := range f.printers {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, fmt.Errorf("printer %d not found", id)
}

func (f *fakePrinters) ListActivePrinters(ctx context.Context) ([]*db.Printer, error) {
	return f.printers, nil
}

type fakeTemplates struct{}

func (fakeTemplates) GetTemplateByID(ctx context.Context, id int64) (*db.Template, error) {
	return &db.Template{ID: id, Name: "retail", SchemaJSON: testSchema, WidthIn: 4, HeightIn: 6}, nil
}

func testOrchestrator(t *testing.T, resolver Resolver, printers PrinterStore) (*Orchestrator, string) {
	t.Helper()
	dir := t.TempDir()
	o := NewOrchestrator(resolver, printers, fakeTemplates{}, batch.NewOptimizer(logger.NewNop()),
		NewMemoryJobStore(), Config{OutputDir: dir, DownloadTTL: time.Hour}, logger.NewNop())
	return o, dir
}

func pdfPrinter() *db.Printer {
	return &db.Printer{
		ID: 1, Name: "Office Laser", Engine: db.EnginePDF, DPI: 300,
		MediaJSON: `[{"width_in":4,"height_in":6}]`,
		Status:    db.PrinterStatusActive,
	}
}

func resolvedItems(n int) []*resolve.ResolvedLabelItem {
	profile := &db.LabelProfile{
		ID: 1, Name: "Retail 4x6", TemplateID: 10,
		Engine: db.EnginePDF, WidthIn: 4, HeightIn: 6,
		Copies: 1, Status: db.ProfileStatusActive,
	}
	items := make([]*resolve.ResolvedLabelItem, n)
	for i := range items {
		items[i] = &resolve.ResolvedLabelItem{
			OrderID:       "order-1",
			OrderItemID:   fmt.Sprintf("item-%d", i),
			Profile:       profile,
			Source:        resolve.SourceProductLevel,
			LabelsPerItem: 1,
			Data:          resolve.Data{"productName": "Rye Loaf", "barcode": "ORD-1001"},
		}
	}
	return items
}

func TestCompileLabelsWritesBatchFiles(t *testing.T) {
	o, dir := testOrchestrator(t, &fakeResolver{items: resolvedItems(3)}, &fakePrinters{printers: []*db.Printer{pdfPrinter()}})

	resp, err := o.CompileLabels(context.Background(), Request{OrderIDs: []string{"order-1"}})
	require.NoError(t, err)
	require.Len(t, resp.Batches, 1)
	assert.Equal(t, 3, resp.TotalLabels)
	assert.Equal(t, 0, resp.FailedBatches)
	assert.Equal(t, batch.StatusCompleted, resp.Batches[0].Status)

	full := filepath.Join(dir, resp.Batches[0].DownloadPath)
	data, err := os.ReadFile(full)
	require.NoError(t, err)
	assert.True(t, len(data) > 0)
	assert.Equal(t, ".pdf", filepath.Ext(full))

	st, err := o.GetJobStatus(resp.JobID)
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, st.State)
	assert.Equal(t, 100, st.Percent)
}

func TestCompileValidation(t *testing.T) {
	o, _ := testOrchestrator(t, &fakeResolver{}, &fakePrinters{})

	cases := []Request{
		{},
		{OrderIDs: make([]string, 101)},
		{OrderIDs: []string{"o1"}, PrinterIDs: make([]int64, 21)},
		{OrderIDs: []string{"o1"}, OutputFormat: "DOCX"},
		{OrderIDs: []string{"o1"}, Priority: 99},
	}
	for _, req := range cases {
		_, err := o.CompileLabels(context.Background(), req)
		assert.ErrorIs(t, err, ErrValidation)
	}
}

func TestCompileNoPrinters(t *testing.T) {
	o, _ := testOrchestrator(t, &fakeResolver{items: resolvedItems(1)}, &fakePrinters{})

	_, err := o.CompileLabels(context.Background(), Request{OrderIDs: []string{"order-1"}})
	require.ErrorIs(t, err, ErrNoAvailablePrinters)
}

func TestGetJobStatusIdempotent(t *testing.T) {
	o, _ := testOrchestrator(t, &fakeResolver{items: resolvedItems(2)}, &fakePrinters{printers: []*db.Printer{pdfPrinter()}})

	resp, err := o.CompileLabels(context.Background(), Request{OrderIDs: []string{"order-1"}})
	require.NoError(t, err)

	first, err := o.GetJobStatus(resp.JobID)
	require.NoError(t, err)
	second, err := o.GetJobStatus(resp.JobID)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestCancelRules(t *testing.T) {
	o, _ := testOrchestrator(t, &fakeResolver{items: resolvedItems(1)}, &fakePrinters{printers: []*db.Printer{pdfPrinter()}})

	resp, err := o.CompileLabels(context.Background(), Request{OrderIDs: []string{"order-1"}})
	require.NoError(t, err)

	err = o.CancelJob(resp.JobID)
	assert.ErrorIs(t, err, ErrJobFinished)

	err = o.CancelJob("no-such-job")
	assert.ErrorIs(t, err, ErrJobNotFound)

	// A still-running record can be cancelled.
	o.store.Put(&JobStatus{JobID: "running", State: StateRunning, UpdatedAt: time.Now()})
	require.NoError(t, o.CancelJob("running"))
	st, err := o.GetJobStatus("running")
	require.NoError(t, err)
	assert.Equal(t, StateCancelled, st.State)
}

// A cancel that lands after the last liveness check but before the job is
// finalized must stick; the pipeline's completion write cannot revive it.
func TestCancelBeforeFinalizeWins(t *testing.T) {
	o, _ := testOrchestrator(t, &fakeResolver{}, &fakePrinters{})

	status := &JobStatus{JobID: "racy", State: StateRunning, UpdatedAt: time.Now()}
	o.store.Put(status)
	require.NoError(t, o.CancelJob("racy"))

	o.setState(status, StateCompleted, "")

	st, err := o.GetJobStatus("racy")
	require.NoError(t, err)
	assert.Equal(t, StateCancelled, st.State)
	assert.NotEqual(t, 100, st.Percent)
}

func TestCleanupExpiredJobs(t *testing.T) {
	o, _ := testOrchestrator(t, &fakeResolver{}, &fakePrinters{})

	o.store.Put(&JobStatus{JobID: "old", State: StateCompleted, UpdatedAt: time.Now().Add(-48 * time.Hour)})
	o.store.Put(&JobStatus{JobID: "fresh", State: StateCompleted, UpdatedAt: time.Now()})

	removed := o.CleanupExpiredJobs(24 * time.Hour)
	assert.Equal(t, 1, removed)
	_, err := o.GetJobStatus("old")
	assert.ErrorIs(t, err, ErrJobNotFound)
	_, err = o.GetJobStatus("fresh")
	assert.NoError(t, err)
}

func TestAutoFormatSniffsPrinterName(t *testing.T) {
	o, _ := testOrchestrator(t, &fakeResolver{}, &fakePrinters{})

	zpl := &batch.Batch{Printer: &db.Printer{Name: "Zebra ZD421", Engine: db.EngineZPL}}
	laser := &batch.Batch{Printer: &db.Printer{Name: "HP LaserJet", Engine: db.EnginePDF}}
	brother := &batch.Batch{Printer: &db.Printer{Name: "Brother QL-820", Engine: db.EngineBrotherQL}}

	assert.Equal(t, db.EngineZPL, o.batchEngine(zpl, FormatAuto))
	assert.Equal(t, db.EnginePDF, o.batchEngine(laser, FormatAuto))
	assert.Equal(t, db.EngineBrotherQL, o.batchEngine(brother, FormatAuto))
	assert.Equal(t, db.EnginePDF, o.batchEngine(zpl, FormatPDF))
}
