package batch

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ovenfresh/labelpress/internal/db"
	"github.com/ovenfresh/labelpress/internal/logger"
	"github.com/ovenfresh/labelpress/internal/resolve"
)

func testProfile(id int64, name string, engine db.Engine, w, h float64) *db.LabelProfile {
	return &db.LabelProfile{
		ID:      id,
		Name:    name,
		Engine:  engine,
		WidthIn: w, HeightIn: h,
		Status: db.ProfileStatusActive,
	}
}

func testPrinter(id int64, name string, engine db.Engine, dpi int, media ...db.MediaSize) *db.Printer {
	mj := "["
	for i, m := range media {
		if i > 0 {
			mj += ","
		}
		mj += fmt.Sprintf(`{"width_in":%g,"height_in":%g}`, m.WidthIn, m.HeightIn)
	}
	mj += "]"
	return &db.Printer{
		ID: id, Name: name, Engine: engine, DPI: dpi,
		MediaJSON: mj,
		Status:    db.PrinterStatusActive,
	}
}

func testItems(profile *db.LabelProfile, n int) []*resolve.ResolvedLabelItem {
	items := make([]*resolve.ResolvedLabelItem, n)
	for i := range items {
		items[i] = &resolve.ResolvedLabelItem{
			OrderID:       "order-1",
			OrderItemID:   fmt.Sprintf("item-%d", i),
			Profile:       profile,
			Source:        resolve.SourceProductLevel,
			LabelsPerItem: 1,
			Data:          resolve.Data{"productName": "Sourdough Loaf", "barcode": "ORD-1001"},
		}
	}
	return items
}

func TestSplitOnLabelCountCeiling(t *testing.T) {
	profile := testProfile(1, "Retail 2x1", db.EnginePDF, 2, 1)
	printers := []*db.Printer{
		testPrinter(1, "Office Laser", db.EnginePDF, 300, db.MediaSize{WidthIn: 2, HeightIn: 1}),
	}

	res, err := NewOptimizer(logger.NewNop()).CreateOptimizedBatches(
		testItems(profile, 150), printers, Options{MaxLabelsPerBatch: 100})
	require.NoError(t, err)
	require.Len(t, res.Batches, 2)
	assert.Len(t, res.Batches[0].Items, 100)
	assert.Len(t, res.Batches[1].Items, 50)
	assert.Equal(t, 150, res.Statistics.TotalLabels)
}

func TestNoCompatiblePrinterNamesProfile(t *testing.T) {
	profile := testProfile(7, "Brother Shelf Tag", db.EngineBrotherQL, 2.4, 1.1)
	printers := []*db.Printer{
		testPrinter(1, "Zebra ZD421", db.EngineZPL, 203, db.MediaSize{WidthIn: 2.4, HeightIn: 1.1}),
	}

	_, err := NewOptimizer(logger.NewNop()).CreateOptimizedBatches(
		testItems(profile, 3), printers, Options{})
	require.ErrorIs(t, err, ErrNoCompatiblePrinter)
	assert.Contains(t, err.Error(), "Brother Shelf Tag")
}

func TestLabelsPerItemFlattened(t *testing.T) {
	profile := testProfile(2, "Case Label", db.EngineZPL, 4, 6)
	printers := []*db.Printer{
		testPrinter(1, "Zebra ZT411", db.EngineZPL, 300, db.MediaSize{WidthIn: 4, HeightIn: 6}),
	}
	items := testItems(profile, 2)
	items[0].LabelsPerItem = 3

	res, err := NewOptimizer(logger.NewNop()).CreateOptimizedBatches(items, printers, Options{})
	require.NoError(t, err)
	require.Len(t, res.Batches, 1)
	assert.Len(t, res.Batches[0].Items, 4)
}

func TestSelectPrinterPrefersExactEngineThenDPI(t *testing.T) {
	profile := testProfile(3, "Freezer 4x6", db.EngineZPL, 4, 6)
	media := db.MediaSize{WidthIn: 4, HeightIn: 6}
	pool := []*db.Printer{
		testPrinter(1, "Office Laser", db.EnginePDF, 600, media),
		testPrinter(2, "Zebra Low", db.EngineZPL, 203, media),
		testPrinter(3, "Zebra High", db.EngineZPL, 300, media),
	}

	picked := SelectPrinter(profile, pool)
	require.NotNil(t, picked)
	assert.Equal(t, int64(3), picked.ID)
}

func TestPDFPrinterServesAnyEngine(t *testing.T) {
	profile := testProfile(4, "Brother Tag", db.EngineBrotherQL, 2.4, 1.1)
	pdf := testPrinter(1, "Office Laser", db.EnginePDF, 300, db.MediaSize{WidthIn: 2.4, HeightIn: 1.1})
	assert.True(t, Compatible(profile, pdf))
}

func TestMediaTolerance(t *testing.T) {
	profile := testProfile(5, "Deli 4x6", db.EngineZPL, 4, 6)
	near := testPrinter(1, "Zebra", db.EngineZPL, 203, db.MediaSize{WidthIn: 4.05, HeightIn: 5.95})
	far := testPrinter(2, "Zebra", db.EngineZPL, 203, db.MediaSize{WidthIn: 4.5, HeightIn: 6})

	assert.True(t, Compatible(profile, near))
	assert.False(t, Compatible(profile, far))
}

func TestInactivePrinterIncompatible(t *testing.T) {
	profile := testProfile(6, "Deli 4x6", db.EngineZPL, 4, 6)
	p := testPrinter(1, "Zebra", db.EngineZPL, 203, db.MediaSize{WidthIn: 4, HeightIn: 6})
	p.Status = db.PrinterStatusOffline
	assert.False(t, Compatible(profile, p))
}

func TestBatchInvariantsUnderRandomPools(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	engines := []db.Engine{db.EnginePDF, db.EngineZPL, db.EngineBrotherQL}
	sizes := []db.MediaSize{{WidthIn: 2, HeightIn: 1}, {WidthIn: 4, HeightIn: 6}, {WidthIn: 2.4, HeightIn: 1.1}}

	for trial := 0; trial < 50; trial++ {
		var profiles []*db.LabelProfile
		for i := 0; i < 1+rng.Intn(4); i++ {
			s := sizes[rng.Intn(len(sizes))]
			profiles = append(profiles, testProfile(int64(i+1),
				fmt.Sprintf("profile-%d", i), engines[rng.Intn(len(engines))], s.WidthIn, s.HeightIn))
		}
		var printers []*db.Printer
		for i := 0; i < 1+rng.Intn(5); i++ {
			var media []db.MediaSize
			for _, s := range sizes {
				if rng.Intn(2) == 0 {
					media = append(media, s)
				}
			}
			printers = append(printers, testPrinter(int64(i+1),
				fmt.Sprintf("printer-%d", i), engines[rng.Intn(len(engines))], 203+100*rng.Intn(2), media...))
		}

		var items []*resolve.ResolvedLabelItem
		for _, p := range profiles {
			items = append(items, testItems(p, 1+rng.Intn(140))...)
		}

		res, err := NewOptimizer(logger.NewNop()).CreateOptimizedBatches(items, printers, Options{})
		if err != nil {
			assert.ErrorIs(t, err, ErrNoCompatiblePrinter)
			continue
		}
		total := 0
		for _, b := range res.Batches {
			total += len(b.Items)
			assert.LessOrEqual(t, len(b.Items), defaultMaxLabelsPerBatch)
			for _, u := range b.Items {
				assert.Equal(t, b.Profile.ID, u.Profile.ID)
				assert.True(t, Compatible(u.Profile, b.Printer))
			}
		}
		assert.Equal(t, len(items), total)
	}
}

func TestBatchesSortedByPriorityThenTime(t *testing.T) {
	zpl := testProfile(1, "Fast ZPL", db.EngineZPL, 4, 6)
	pdf := testProfile(2, "Slow PDF", db.EnginePDF, 4, 6)
	printers := []*db.Printer{
		testPrinter(1, "Zebra", db.EngineZPL, 203, db.MediaSize{WidthIn: 4, HeightIn: 6}),
		testPrinter(2, "Laser", db.EnginePDF, 300, db.MediaSize{WidthIn: 4, HeightIn: 6}),
	}
	items := append(testItems(pdf, 20), testItems(zpl, 20)...)

	res, err := NewOptimizer(logger.NewNop()).CreateOptimizedBatches(items, printers, Options{})
	require.NoError(t, err)
	require.Len(t, res.Batches, 2)
	// Equal priority, so the quicker thermal batch surfaces first.
	assert.Equal(t, "Fast ZPL", res.Batches[0].Profile.Name)
}

// Chunks cut from one oversized group keep their split order; they never
// race each other on per-chunk time, while whole groups still compete.
func TestSplitChunksStayContiguousAndOrdered(t *testing.T) {
	zpl := testProfile(1, "Case Label", db.EngineZPL, 4, 6)
	pdf := testProfile(2, "Retail PDF", db.EnginePDF, 4, 6)
	media := db.MediaSize{WidthIn: 4, HeightIn: 6}
	printers := []*db.Printer{
		testPrinter(1, "Zebra", db.EngineZPL, 203, media),
		testPrinter(2, "Laser", db.EnginePDF, 300, media),
	}
	items := append(testItems(zpl, 250), testItems(pdf, 10)...)

	res, err := NewOptimizer(logger.NewNop()).CreateOptimizedBatches(items, printers, Options{})
	require.NoError(t, err)
	require.Len(t, res.Batches, 4)

	// The small PDF group is quickest overall and goes first; the split
	// thermal group follows as a contiguous [100, 100, 50] run.
	assert.Equal(t, "Retail PDF", res.Batches[0].Profile.Name)
	assert.Len(t, res.Batches[1].Items, 100)
	assert.Len(t, res.Batches[2].Items, 100)
	assert.Len(t, res.Batches[3].Items, 50)
}

func TestPrinterAffinityKeepsOrdersTogether(t *testing.T) {
	profile := testProfile(1, "Case Label", db.EngineZPL, 4, 6)
	media := db.MediaSize{WidthIn: 4, HeightIn: 6}
	printers := []*db.Printer{
		testPrinter(1, "Zebra A", db.EngineZPL, 203, media),
		testPrinter(2, "Zebra B", db.EngineZPL, 203, media),
	}
	items := testItems(profile, 4)
	for _, u := range items[2:] {
		u.OrderID = "order-2"
	}

	run := func() map[string]int64 {
		res, err := NewOptimizer(logger.NewNop()).CreateOptimizedBatches(
			items, printers, Options{PrinterAffinity: true})
		require.NoError(t, err)
		require.Len(t, res.Batches, 2)
		assigned := make(map[string]int64)
		for _, b := range res.Batches {
			order := b.Items[0].OrderID
			for _, u := range b.Items {
				assert.Equal(t, order, u.OrderID, "an order never splits across batches")
			}
			assert.True(t, Compatible(b.Profile, b.Printer))
			assigned[order] = b.Printer.ID
		}
		return assigned
	}

	first := run()
	assert.Equal(t, first, run(), "printer assignment is stable across runs")
}

func TestOrderAgePriorityFavorsOldOrders(t *testing.T) {
	profile := testProfile(1, "Retail 4x6", db.EnginePDF, 4, 6)
	printers := []*db.Printer{
		testPrinter(1, "Laser", db.EnginePDF, 300, db.MediaSize{WidthIn: 4, HeightIn: 6}),
	}

	now := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	fresh := testItems(profile, 5)
	for _, u := range fresh {
		u.OrderPlacedAt = now.Add(-2 * time.Hour)
	}
	stale := testItems(profile, 30)
	for _, u := range stale {
		u.OrderID = "order-9"
		u.OrderPlacedAt = now.Add(-72 * time.Hour)
	}

	o := NewOptimizer(logger.NewNop())
	o.now = func() time.Time { return now }
	res, err := o.CreateOptimizedBatches(append(fresh, stale...), printers,
		Options{GroupByOrder: true, OrderAgePriority: true})
	require.NoError(t, err)
	require.Len(t, res.Batches, 2)

	// The stale batch is larger and slower, so only its three-day boost
	// can put it in front.
	assert.Equal(t, "order-9", res.Batches[0].Items[0].OrderID)
	assert.Equal(t, 3, res.Batches[0].Priority)
	assert.Equal(t, 0, res.Batches[1].Priority)
}

func TestAgeBoostCappedAndZeroForUnknown(t *testing.T) {
	now := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	o := NewOptimizer(logger.NewNop())
	o.now = func() time.Time { return now }

	ancient := []*resolve.ResolvedLabelItem{{OrderPlacedAt: now.AddDate(0, 0, -45)}}
	assert.Equal(t, maxAgeBoost, o.ageBoost(ancient))
	assert.Equal(t, 0, o.ageBoost([]*resolve.ResolvedLabelItem{{}}))
}

func TestWarnings(t *testing.T) {
	profile := testProfile(1, "Tiny Run", db.EngineZPL, 4, 6)
	printers := []*db.Printer{
		testPrinter(1, "Zebra", db.EngineZPL, 203, db.MediaSize{WidthIn: 4, HeightIn: 6}),
	}

	res, err := NewOptimizer(logger.NewNop()).CreateOptimizedBatches(
		testItems(profile, 2), printers, Options{})
	require.NoError(t, err)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "setup cost")
}

func TestEmptyInput(t *testing.T) {
	res, err := NewOptimizer(logger.NewNop()).CreateOptimizedBatches(nil, nil, Options{})
	require.NoError(t, err)
	assert.Empty(t, res.Batches)
	assert.Equal(t, 100, res.Statistics.OptimizationScore)
}
