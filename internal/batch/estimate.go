package batch

import (
	"fmt"
	"time"

	"github.com/ovenfresh/labelpress/internal/db"
	"github.com/ovenfresh/labelpress/internal/label"
	"github.com/ovenfresh/labelpress/internal/resolve"
)

// Serialized-size overhead multipliers per engine. ZPL is near-plaintext;
// PDF carries page structure and embedded barcode images.
const (
	zplOverheadFactor = 1.5
	pdfOverheadFactor = 3.0

	// unitBaseBytes covers fixed per-label framing (block directives or
	// page objects) before any payload.
	unitBaseBytes = 256
)

// Per-engine timing. Thermal command-language printers burn labels faster
// than page-description devices that rasterize first.
const (
	batchSetupTime  = 5 * time.Second
	zplPerLabelTime = 500 * time.Millisecond
	pdfPerLabelTime = 1500 * time.Millisecond

	maxComplexityFactor = 3.0

	// idealBatchSize anchors the optimization score; batches near this
	// size amortize setup without hogging a printer.
	idealBatchSize = 50

	// minEfficientBatch is the warning floor: smaller runs pay setup
	// cost for almost no throughput.
	minEfficientBatch = 5
)

// estimateUnitBytes sizes one label's serialized output from its payload
// fields times the engine overhead multiplier.
func estimateUnitBytes(u *resolve.ResolvedLabelItem, engine db.Engine) int {
	payload := 0
	for k, v := range u.Data {
		payload += len(k) + len(v)
	}
	factor := zplOverheadFactor
	if engine == db.EnginePDF || engine == db.EngineBrotherQL {
		factor = pdfOverheadFactor
	}
	return unitBaseBytes + int(float64(payload)*factor)
}

// estimatePrintTime is setup + labels x per-label time x complexity.
// Complexity grows with element count and weighs barcodes, QR codes, and
// images heavier than text; it is capped so a busy template cannot blow the
// estimate out by an order of magnitude.
func estimatePrintTime(labels int, engine db.Engine, tmpl *label.Template) time.Duration {
	perLabel := pdfPerLabelTime
	if engine == db.EngineZPL {
		perLabel = zplPerLabelTime
	}
	c := complexityFactor(tmpl)
	return batchSetupTime + time.Duration(float64(labels)*float64(perLabel)*c)
}

func complexityFactor(tmpl *label.Template) float64 {
	if tmpl == nil || len(tmpl.Elements) == 0 {
		return 1.0
	}
	weight := 0.0
	for _, e := range tmpl.Elements {
		switch e.Type {
		case label.ElementBarcode:
			if e.Symbology == label.SymbologyQR {
				weight += 0.30
			} else {
				weight += 0.20
			}
		case label.ElementImage:
			weight += 0.25
		default:
			weight += 0.05
		}
	}
	c := 1.0 + weight
	if c > maxComplexityFactor {
		c = maxComplexityFactor
	}
	return c
}

func (o *Optimizer) statistics(units []*resolve.ResolvedLabelItem, batches []*Batch, printers []*db.Printer, opts Options) Statistics {
	stats := Statistics{
		TotalLabels:  len(units),
		TotalBatches: len(batches),
	}
	if len(batches) == 0 {
		stats.OptimizationScore = 100
		return stats
	}
	for _, b := range batches {
		stats.TotalEstimatedTime += b.EstimatedTime
	}
	stats.AvgLabelsPerBatch = float64(len(units)) / float64(len(batches))
	stats.OptimizationScore = score(batches, printers)
	return stats
}

// score blends two signals into 0-100: average batch-size proximity to the
// ideal size (70% of the score) and how much of the printer pool actually
// got work (30%).
func score(batches []*Batch, printers []*db.Printer) int {
	sizeScore := 0.0
	used := make(map[int64]bool)
	for _, b := range batches {
		n := float64(len(b.Items))
		if n > idealBatchSize {
			sizeScore += idealBatchSize / n
		} else {
			sizeScore += n / idealBatchSize
		}
		used[b.Printer.ID] = true
	}
	sizeScore /= float64(len(batches))

	active := 0
	for _, p := range printers {
		if p.IsActive() {
			active++
		}
	}
	utilScore := 1.0
	if active > 0 {
		utilScore = float64(len(used)) / float64(active)
	}

	s := int(100 * (0.7*sizeScore + 0.3*utilScore))
	if s > 100 {
		s = 100
	}
	return s
}

func (o *Optimizer) warnings(batches []*Batch, opts Options) []string {
	var warnings []string
	used := make(map[int64]bool)
	for _, b := range batches {
		used[b.Printer.ID] = true
		if opts.MaxPrintTime > 0 && b.EstimatedTime > opts.MaxPrintTime {
			warnings = append(warnings, fmt.Sprintf(
				"batch %s estimated at %s exceeds max print time %s",
				b.ID, b.EstimatedTime.Round(time.Second), opts.MaxPrintTime))
		}
		if len(b.Items) < minEfficientBatch {
			warnings = append(warnings, fmt.Sprintf(
				"batch %s has only %d labels; setup cost dominates", b.ID, len(b.Items)))
		}
	}
	if len(batches) > 1 && len(used) == 1 {
		warnings = append(warnings, "all batches assigned to a single printer; consider activating more devices")
	}
	return warnings
}
