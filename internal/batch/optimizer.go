package batch

import (
	"errors"
	"fmt"
	"hash/fnv"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ovenfresh/labelpress/internal/db"
	"github.com/ovenfresh/labelpress/internal/label"
	"github.com/ovenfresh/labelpress/internal/logger"
	"github.com/ovenfresh/labelpress/internal/resolve"
)

// ErrNoCompatiblePrinter fails a compilation when at least one required
// profile has no printer in the pool that can serve it. The wrapped message
// names the offending profiles so operators can fix the pool instead of
// guessing.
var ErrNoCompatiblePrinter = errors.New("no compatible printer")

// mediaToleranceIn is how far a printer's supported media may deviate from a
// profile's declared dimensions and still count as a match.
const mediaToleranceIn = 0.1

// Batch status values. Batches start pending and are driven through the rest
// of the lifecycle by the orchestrator.
const (
	StatusPending   = "PENDING"
	StatusQueued    = "QUEUED"
	StatusPrinting  = "PRINTING"
	StatusCompleted = "COMPLETED"
	StatusFailed    = "FAILED"
	StatusCancelled = "CANCELLED"
)

type Options struct {
	// MaxLabelsPerBatch caps the unit count per batch. Zero means the
	// default of 100.
	MaxLabelsPerBatch int
	// MaxBatchSizeBytes caps the estimated serialized output per batch.
	// Zero means the default of 1 MiB.
	MaxBatchSizeBytes int
	// MaxPrintTime is a warning threshold, not a hard ceiling.
	MaxPrintTime time.Duration
	// Priority is attached to every produced batch. Higher prints first.
	Priority int
	// GroupByOrder additionally partitions profile groups by source
	// order, keeping each order's labels contiguous on the printer.
	GroupByOrder bool
	// PrinterAffinity partitions by order and pins each order group to
	// one compatible printer chosen by a stable hash of the order ID,
	// spreading concurrent orders across the pool instead of funneling
	// everything to the single best device.
	PrinterAffinity bool
	// OrderAgePriority raises batch priority by one point per full day
	// since the oldest order in the batch was placed, capped at +5, so
	// long-waiting orders print ahead of same-priority work.
	OrderAgePriority bool
	// Templates, keyed by template ID, feed the complexity estimate.
	// Missing entries fall back to a neutral complexity of 1.
	Templates map[int64]*label.Template
}

const (
	defaultMaxLabelsPerBatch = 100
	defaultMaxBatchSizeBytes = 1 << 20
)

// Batch is a run of identical-profile labels bound to one printer.
type Batch struct {
	ID             string                      `json:"id"`
	Profile        *db.LabelProfile            `json:"profile"`
	Printer        *db.Printer                 `json:"printer"`
	Items          []*resolve.ResolvedLabelItem `json:"items"`
	Priority       int                         `json:"priority"`
	Status         string                      `json:"status"`
	EstimatedBytes int                         `json:"estimated_bytes"`
	EstimatedTime  time.Duration               `json:"estimated_time"`

	// Ordering keys. Chunks cut from one group stay contiguous and in
	// split order; groups themselves compete on total print time.
	groupSeq  int
	chunkSeq  int
	groupTime time.Duration
}

type Statistics struct {
	TotalLabels        int           `json:"total_labels"`
	TotalBatches       int           `json:"total_batches"`
	AvgLabelsPerBatch  float64       `json:"avg_labels_per_batch"`
	TotalEstimatedTime time.Duration `json:"total_estimated_time"`
	// OptimizationScore is 0-100: how close batches sit to the ideal
	// size and how evenly the printer pool is used.
	OptimizationScore int `json:"optimization_score"`
}

type Result struct {
	Batches    []*Batch   `json:"batches"`
	Statistics Statistics `json:"statistics"`
	Warnings   []string   `json:"warnings,omitempty"`
}

type Optimizer struct {
	log logger.Logger
	now func() time.Time
}

func NewOptimizer(log logger.Logger) *Optimizer {
	return &Optimizer{log: log, now: time.Now}
}

// CreateOptimizedBatches groups resolved label items by profile, assigns the
// best compatible printer per group, splits on the count and size ceilings,
// and orders the result by priority then estimated print time.
//
// Every distinct profile must have at least one compatible printer in the
// pool up front; a pool that cannot serve the work fails the whole call
// rather than silently dropping labels.
func (o *Optimizer) CreateOptimizedBatches(items []*resolve.ResolvedLabelItem, printers []*db.Printer, opts Options) (*Result, error) {
	if opts.MaxLabelsPerBatch <= 0 {
		opts.MaxLabelsPerBatch = defaultMaxLabelsPerBatch
	}
	if opts.MaxBatchSizeBytes <= 0 {
		opts.MaxBatchSizeBytes = defaultMaxBatchSizeBytes
	}

	units := flatten(items)
	if len(units) == 0 {
		return &Result{Batches: nil, Statistics: Statistics{OptimizationScore: 100}}, nil
	}

	if err := o.validatePrinterCoverage(units, printers); err != nil {
		return nil, err
	}

	groups := groupUnits(units, opts.GroupByOrder || opts.PrinterAffinity)

	var batches []*Batch
	for gi, g := range groups {
		printer := SelectPrinter(g[0].Profile, printers)
		if opts.PrinterAffinity {
			if p := affinityPrinter(g[0], printers); p != nil {
				printer = p
			}
		}
		if printer == nil {
			// Coverage was validated above; reaching here means the
			// pool changed under us.
			return nil, fmt.Errorf("%w: profile %q", ErrNoCompatiblePrinter, g[0].Profile.Name)
		}
		chunks := o.split(g, printer, opts)
		var groupTime time.Duration
		for _, chunk := range chunks {
			groupTime += chunk.EstimatedTime
		}
		for ci, chunk := range chunks {
			chunk.Priority = opts.Priority
			if opts.OrderAgePriority {
				chunk.Priority += o.ageBoost(chunk.Items)
			}
			chunk.groupSeq = gi
			chunk.chunkSeq = ci
			chunk.groupTime = groupTime
			batches = append(batches, chunk)
		}
	}

	// Priority first, then quick groups ahead of slow ones. Chunks of a
	// split group keep their split order rather than racing each other on
	// per-chunk time.
	sort.SliceStable(batches, func(i, j int) bool {
		a, b := batches[i], batches[j]
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		if a.groupTime != b.groupTime {
			return a.groupTime < b.groupTime
		}
		if a.groupSeq != b.groupSeq {
			return a.groupSeq < b.groupSeq
		}
		return a.chunkSeq < b.chunkSeq
	})

	stats := o.statistics(units, batches, printers, opts)
	warnings := o.warnings(batches, opts)

	o.log.Info("created optimized batches",
		logger.Int("labels", stats.TotalLabels),
		logger.Int("batches", stats.TotalBatches),
		logger.Int("score", stats.OptimizationScore))

	return &Result{Batches: batches, Statistics: stats, Warnings: warnings}, nil
}

// flatten expands each item's labelsPerItem into one entry per physical
// label so the count ceiling operates on real output volume.
func flatten(items []*resolve.ResolvedLabelItem) []*resolve.ResolvedLabelItem {
	var units []*resolve.ResolvedLabelItem
	for _, it := range items {
		if it == nil || it.Profile == nil {
			continue
		}
		n := it.LabelsPerItem
		if n < 1 {
			n = 1
		}
		for i := 0; i < n; i++ {
			u := *it
			u.LabelsPerItem = 1
			units = append(units, &u)
		}
	}
	return units
}

func (o *Optimizer) validatePrinterCoverage(units []*resolve.ResolvedLabelItem, printers []*db.Printer) error {
	seen := make(map[int64]bool)
	var uncovered []string
	for _, u := range units {
		if seen[u.Profile.ID] {
			continue
		}
		seen[u.Profile.ID] = true
		if SelectPrinter(u.Profile, printers) == nil {
			uncovered = append(uncovered, u.Profile.Name)
		}
	}
	if len(uncovered) > 0 {
		sort.Strings(uncovered)
		return fmt.Errorf("%w: profiles %s", ErrNoCompatiblePrinter, strings.Join(uncovered, ", "))
	}
	return nil
}

// groupUnits buckets units by profile identity (optionally sub-keyed by
// source order), preserving first-seen order so batch output is stable for
// a given input.
func groupUnits(units []*resolve.ResolvedLabelItem, byOrder bool) [][]*resolve.ResolvedLabelItem {
	index := make(map[string]int)
	var groups [][]*resolve.ResolvedLabelItem
	for _, u := range units {
		key := fmt.Sprintf("%d", u.Profile.ID)
		if byOrder {
			key += "|" + u.OrderID
		}
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, nil)
		}
		groups[i] = append(groups[i], u)
	}
	return groups
}

// affinityPrinter resolves an order group's pinned printer: the group's
// order ID is hashed over the profile's compatible printers in preference
// order. Groups without an order ID stay on the preferred device.
func affinityPrinter(u *resolve.ResolvedLabelItem, printers []*db.Printer) *db.Printer {
	pool := compatiblePrinters(u.Profile, printers)
	if len(pool) == 0 {
		return nil
	}
	if u.OrderID == "" {
		return pool[0]
	}
	h := fnv.New32a()
	h.Write([]byte(u.OrderID))
	return pool[int(h.Sum32())%len(pool)]
}

// compatiblePrinters lists every printer that can serve the profile,
// best first: engine-exact before PDF fallback, higher DPI before lower,
// ID as the final tiebreak so the ordering is stable across calls.
func compatiblePrinters(profile *db.LabelProfile, printers []*db.Printer) []*db.Printer {
	var pool []*db.Printer
	for _, p := range printers {
		if Compatible(profile, p) {
			pool = append(pool, p)
		}
	}
	sort.SliceStable(pool, func(i, j int) bool {
		ei := pool[i].Engine == profile.Engine
		ej := pool[j].Engine == profile.Engine
		if ei != ej {
			return ei
		}
		if pool[i].DPI != pool[j].DPI {
			return pool[i].DPI > pool[j].DPI
		}
		return pool[i].ID < pool[j].ID
	})
	return pool
}

const maxAgeBoost = 5

func (o *Optimizer) ageBoost(items []*resolve.ResolvedLabelItem) int {
	var oldest time.Time
	for _, u := range items {
		if u.OrderPlacedAt.IsZero() {
			continue
		}
		if oldest.IsZero() || u.OrderPlacedAt.Before(oldest) {
			oldest = u.OrderPlacedAt
		}
	}
	if oldest.IsZero() {
		return 0
	}
	boost := int(o.now().Sub(oldest).Hours() / 24)
	if boost < 0 {
		return 0
	}
	if boost > maxAgeBoost {
		return maxAgeBoost
	}
	return boost
}

// SelectPrinter picks the best compatible printer for a profile: an
// engine-exact match beats a PDF fallback, and among exact matches the
// higher DPI wins. Returns nil when nothing in the pool is compatible.
func SelectPrinter(profile *db.LabelProfile, printers []*db.Printer) *db.Printer {
	var best *db.Printer
	bestExact := false
	for _, p := range printers {
		if !Compatible(profile, p) {
			continue
		}
		exact := p.Engine == profile.Engine
		switch {
		case best == nil:
			best, bestExact = p, exact
		case exact && !bestExact:
			best, bestExact = p, exact
		case exact == bestExact && p.DPI > best.DPI:
			best = p
		}
	}
	return best
}

// Compatible reports whether a printer can serve a profile: the printer is
// active, its engine matches (PDF printers accept anything since PDF needs
// no device-specific encoding), and its media list carries the profile's
// dimensions within tolerance.
func Compatible(profile *db.LabelProfile, printer *db.Printer) bool {
	if printer == nil || !printer.IsActive() {
		return false
	}
	if printer.Engine != profile.Engine && printer.Engine != db.EnginePDF {
		return false
	}
	for _, m := range printer.Media() {
		if within(m.WidthIn, profile.WidthIn, mediaToleranceIn) &&
			within(m.HeightIn, profile.HeightIn, mediaToleranceIn) {
			return true
		}
	}
	return false
}

func within(a, b, tol float64) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d <= tol
}

// split cuts one profile group into batches honoring both the label-count
// and estimated-size ceilings. At least one unit always fits: a single
// oversized label still gets its own batch rather than being dropped.
func (o *Optimizer) split(group []*resolve.ResolvedLabelItem, printer *db.Printer, opts Options) []*Batch {
	profile := group[0].Profile
	tmpl := opts.Templates[profile.TemplateID]

	var batches []*Batch
	current := newBatch(profile, printer)
	for _, u := range group {
		sz := estimateUnitBytes(u, profile.Engine)
		if len(current.Items) > 0 &&
			(len(current.Items) >= opts.MaxLabelsPerBatch ||
				current.EstimatedBytes+sz > opts.MaxBatchSizeBytes) {
			current.EstimatedTime = estimatePrintTime(len(current.Items), profile.Engine, tmpl)
			batches = append(batches, current)
			current = newBatch(profile, printer)
		}
		current.Items = append(current.Items, u)
		current.EstimatedBytes += sz
	}
	if len(current.Items) > 0 {
		current.EstimatedTime = estimatePrintTime(len(current.Items), profile.Engine, tmpl)
		batches = append(batches, current)
	}
	return batches
}

func newBatch(profile *db.LabelProfile, printer *db.Printer) *Batch {
	return &Batch{
		ID:      uuid.NewString(),
		Profile: profile,
		Printer: printer,
		Status:  StatusPending,
	}
}
