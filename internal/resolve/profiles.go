package resolve

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/ovenfresh/labelpress/internal/db"
	"github.com/ovenfresh/labelpress/internal/logger"
)

// ResolutionSource records which level of the override hierarchy produced a
// label profile for an item.
type ResolutionSource string

const (
	SourceOverride      ResolutionSource = "order_override"
	SourceVariant       ResolutionSource = "variant"
	SourceProductLevel  ResolutionSource = "product"
	SourceSystemDefault ResolutionSource = "system_default"
	SourceShipping      ResolutionSource = "shipping"
)

// ResolvedLabelItem is one unit of print output with its profile and data
// fully determined. Ephemeral; lives only within a compilation run.
type ResolvedLabelItem struct {
	OrderID       string
	OrderItemID   string
	ProductID     string
	VariantID     string
	OrderPlacedAt time.Time
	Profile       *db.LabelProfile
	Source        ResolutionSource
	LabelsPerItem int
	Data          Data
}

type ResolveOptions struct {
	// OverrideLabelProfiles maps order-item IDs to an explicit profile ID.
	OverrideLabelProfiles map[string]int64
	// CustomLabelsPerItem overrides the default of 1 label per item.
	CustomLabelsPerItem   map[string]int
	IncludeShippingLabels bool
	VendorScope           string
}

type Summary struct {
	TotalLabels    int            `json:"total_labels"`
	UniqueProfiles int            `json:"unique_profiles"`
	ByProfile      map[string]int `json:"by_profile"`
	SkippedItems   []string       `json:"skipped_items,omitempty"`
}

type OrderResolution struct {
	Items   []*ResolvedLabelItem
	Summary Summary
}

type ProfileStore interface {
	GetProfileByID(ctx context.Context, id int64) (*db.LabelProfile, error)
	GetSystemDefault(ctx context.Context) (*db.LabelProfile, error)
	GetShippingProfile(ctx context.Context) (*db.LabelProfile, error)
}

// ProfileResolver walks the four-level override hierarchy for every order
// line item: explicit per-item override, then variant, then product, then
// the system default. The first level that yields a profile wins.
type ProfileResolver struct {
	data     *DataResolver
	orders   OrderStore
	products ProductStore
	profiles ProfileStore
	log      logger.Logger
}

func NewProfileResolver(data *DataResolver, orders OrderStore, products ProductStore, profiles ProfileStore, log logger.Logger) *ProfileResolver {
	return &ProfileResolver{
		data:     data,
		orders:   orders,
		products: products,
		profiles: profiles,
		log:      log,
	}
}

// itemContext carries the loaded entities a strategy may consult.
type itemContext struct {
	item    *db.OrderItem
	product *db.Product
	variant *db.Variant
}

// profileStrategy is one level of the hierarchy. Returning (nil, nil) means
// "this level does not apply, try the next one".
type profileStrategy struct {
	source  ResolutionSource
	resolve func(ctx context.Context, ic *itemContext, opts ResolveOptions) (*db.LabelProfile, error)
}

func (r *ProfileResolver) strategies() []profileStrategy {
	return []profileStrategy{
		{
			source: SourceOverride,
			resolve: func(ctx context.Context, ic *itemContext, opts ResolveOptions) (*db.LabelProfile, error) {
				id, ok := opts.OverrideLabelProfiles[ic.item.ID]
				if !ok {
					return nil, nil
				}
				return r.loadProfile(ctx, id)
			},
		},
		{
			source: SourceVariant,
			resolve: func(ctx context.Context, ic *itemContext, _ ResolveOptions) (*db.LabelProfile, error) {
				if ic.variant == nil || ic.variant.LabelProfileID == nil {
					return nil, nil
				}
				return r.loadProfile(ctx, *ic.variant.LabelProfileID)
			},
		},
		{
			source: SourceProductLevel,
			resolve: func(ctx context.Context, ic *itemContext, _ ResolveOptions) (*db.LabelProfile, error) {
				if ic.product == nil || ic.product.LabelProfileID == nil {
					return nil, nil
				}
				return r.loadProfile(ctx, *ic.product.LabelProfileID)
			},
		},
	}
}

func (r *ProfileResolver) loadProfile(ctx context.Context, id int64) (*db.LabelProfile, error) {
	p, err := r.profiles.GetProfileByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return p, nil
}

// ResolveOrderLabels resolves the label requirements for one order. A line
// item with no resolvable profile anywhere in the hierarchy is skipped with
// a warning, not an error; one bad item must not void the batch.
func (r *ProfileResolver) ResolveOrderLabels(ctx context.Context, orderID string, opts ResolveOptions) (*OrderResolution, error) {
	order, err := r.orders.GetOrderByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if opts.VendorScope != "" && order.VendorID != opts.VendorScope {
		return nil, ErrNotFound
	}

	// Loaded at most once per resolution run, shared by all items that fall
	// through to the bottom of the hierarchy.
	var systemDefault *db.LabelProfile
	var systemDefaultLoaded bool
	loadSystemDefault := func() *db.LabelProfile {
		if !systemDefaultLoaded {
			systemDefaultLoaded = true
			p, err := r.profiles.GetSystemDefault(ctx)
			if err != nil {
				if !errors.Is(err, sql.ErrNoRows) {
					r.log.Warn("failed to load system default profile", logger.Err(err))
				}
				return nil
			}
			systemDefault = p
		}
		return systemDefault
	}

	res := &OrderResolution{
		Summary: Summary{ByProfile: make(map[string]int)},
	}
	strategies := r.strategies()

	for _, item := range order.Items {
		ic, err := r.loadItemContext(ctx, item)
		if err != nil {
			r.log.Warn("skipping order item: failed to load entities",
				logger.String("order_item_id", item.ID), logger.Err(err))
			res.Summary.SkippedItems = append(res.Summary.SkippedItems, item.ID)
			continue
		}

		var profile *db.LabelProfile
		var source ResolutionSource
		for _, s := range strategies {
			p, err := s.resolve(ctx, ic, opts)
			if err != nil {
				return nil, err
			}
			if p != nil {
				profile, source = p, s.source
				break
			}
		}
		if profile == nil {
			if p := loadSystemDefault(); p != nil {
				profile, source = p, SourceSystemDefault
			}
		}
		if profile == nil {
			r.log.Warn("no label profile resolvable for order item",
				logger.String("order_id", order.ID),
				logger.String("order_item_id", item.ID))
			res.Summary.SkippedItems = append(res.Summary.SkippedItems, item.ID)
			continue
		}

		labels := 1
		if n, ok := opts.CustomLabelsPerItem[item.ID]; ok && n > 0 {
			labels = n
		}

		data, err := r.data.resolveOrderItem(ctx, order, item)
		if err != nil {
			r.log.Warn("skipping order item: data resolution failed",
				logger.String("order_item_id", item.ID), logger.Err(err))
			res.Summary.SkippedItems = append(res.Summary.SkippedItems, item.ID)
			continue
		}

		res.Items = append(res.Items, &ResolvedLabelItem{
			OrderID:       order.ID,
			OrderItemID:   item.ID,
			ProductID:     item.ProductID,
			VariantID:     item.VariantID,
			OrderPlacedAt: order.CreatedAt,
			Profile:       profile,
			Source:        source,
			LabelsPerItem: labels,
			Data:          data,
		})
	}

	if opts.IncludeShippingLabels {
		shipping, err := r.profiles.GetShippingProfile(ctx)
		if err != nil {
			if !errors.Is(err, sql.ErrNoRows) {
				return nil, err
			}
			r.log.Warn("shipping labels requested but no shipping profile exists",
				logger.String("order_id", order.ID))
		} else {
			res.Items = append(res.Items, &ResolvedLabelItem{
				OrderID:       order.ID,
				OrderPlacedAt: order.CreatedAt,
				Profile:       shipping,
				Source:        SourceShipping,
				LabelsPerItem: 1,
				Data:          r.data.shippingData(order),
			})
		}
	}

	seen := make(map[int64]bool)
	for _, item := range res.Items {
		res.Summary.TotalLabels += item.LabelsPerItem
		res.Summary.ByProfile[item.Profile.Name] += item.LabelsPerItem
		seen[item.Profile.ID] = true
	}
	res.Summary.UniqueProfiles = len(seen)

	return res, nil
}

func (r *ProfileResolver) loadItemContext(ctx context.Context, item *db.OrderItem) (*itemContext, error) {
	ic := &itemContext{item: item}

	product, err := r.products.GetProductByID(ctx, item.ProductID)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
	} else {
		ic.product = product
	}

	if item.VariantID != "" {
		variant, err := r.products.GetVariantByID(ctx, item.VariantID)
		if err != nil {
			if !errors.Is(err, sql.ErrNoRows) {
				return nil, err
			}
		} else {
			ic.variant = variant
		}
	}

	return ic, nil
}
