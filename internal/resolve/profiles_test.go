package resolve

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ovenfresh/labelpress/internal/db"
	"github.com/ovenfresh/labelpress/internal/logger"
)

type stubProfiles struct {
	profiles map[int64]*db.LabelProfile
	def      *db.LabelProfile
	shipping *db.LabelProfile
}

func (s *stubProfiles) GetProfileByID(ctx context.Context, id int64) (*db.LabelProfile, error) {
	p, ok := s.profiles[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return p, nil
}

func (s *stubProfiles) GetSystemDefault(ctx context.Context) (*db.LabelProfile, error) {
	if s.def == nil {
		return nil, sql.ErrNoRows
	}
	return s.def, nil
}

func (s *stubProfiles) GetShippingProfile(ctx context.Context) (*db.LabelProfile, error) {
	if s.shipping == nil {
		return nil, sql.ErrNoRows
	}
	return s.shipping, nil
}

func profileID(id int64) *int64 { return &id }

func testProfileResolver(t *testing.T) (*ProfileResolver, *stubOrders, *stubProducts, *stubProfiles) {
	t.Helper()
	orders := &stubOrders{orders: map[string]*db.Order{}}
	products := &stubProducts{
		products: map[string]*db.Product{},
		variants: map[string]*db.Variant{},
	}
	profiles := &stubProfiles{profiles: map[int64]*db.LabelProfile{}}

	data := NewDataResolver(orders, products, "https://shop.example.com", logger.NewNop())
	data.now = func() time.Time { return time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC) }
	r := NewProfileResolver(data, orders, products, profiles, logger.NewNop())
	return r, orders, products, profiles
}

// Two items: one resolves via its variant profile, the other falls all the
// way through to the system default.
func TestResolveOrderLabelsHierarchy(t *testing.T) {
	r, orders, products, profiles := testProfileResolver(t)

	profiles.profiles[11] = &db.LabelProfile{ID: 11, Name: "cake-2x3", Status: db.ProfileStatusActive}
	profiles.def = &db.LabelProfile{ID: 1, Name: "default-4x6", IsSystemDefault: true, Status: db.ProfileStatusActive}

	products.products["prod_cake"] = &db.Product{ID: "prod_cake", Name: "Carrot Cake"}
	products.products["prod_roll"] = &db.Product{ID: "prod_roll", Name: "Dinner Roll"}
	products.variants["var_mini"] = &db.Variant{ID: "var_mini", ProductID: "prod_cake", Name: "Mini", LabelProfileID: profileID(11)}

	orders.orders["ord_1"] = &db.Order{
		ID:       "ord_1",
		Number:   "ORD-2001",
		VendorID: "ven_1",
		Total:    decimal.NewFromInt(30),
		Items: []*db.OrderItem{
			{ID: "item_cake", OrderID: "ord_1", ProductID: "prod_cake", VariantID: "var_mini", Quantity: 1},
			{ID: "item_roll", OrderID: "ord_1", ProductID: "prod_roll", Quantity: 6},
		},
	}

	res, err := r.ResolveOrderLabels(context.Background(), "ord_1", ResolveOptions{})
	require.NoError(t, err)
	require.Len(t, res.Items, 2)

	byItem := make(map[string]*ResolvedLabelItem)
	for _, it := range res.Items {
		byItem[it.OrderItemID] = it
	}

	assert.Equal(t, SourceVariant, byItem["item_cake"].Source)
	assert.Equal(t, int64(11), byItem["item_cake"].Profile.ID)
	assert.Equal(t, SourceSystemDefault, byItem["item_roll"].Source)
	assert.Equal(t, int64(1), byItem["item_roll"].Profile.ID)

	assert.Equal(t, 2, res.Summary.TotalLabels)
	assert.Equal(t, 2, res.Summary.UniqueProfiles)
	assert.Equal(t, 1, res.Summary.ByProfile["cake-2x3"])
	assert.Equal(t, 1, res.Summary.ByProfile["default-4x6"])
	assert.Empty(t, res.Summary.SkippedItems)
}

func TestOverrideBeatsVariantAndProduct(t *testing.T) {
	r, orders, products, profiles := testProfileResolver(t)

	profiles.profiles[11] = &db.LabelProfile{ID: 11, Name: "variant-profile"}
	profiles.profiles[12] = &db.LabelProfile{ID: 12, Name: "product-profile"}
	profiles.profiles[13] = &db.LabelProfile{ID: 13, Name: "override-profile"}

	products.products["prod_1"] = &db.Product{ID: "prod_1", Name: "Brioche", LabelProfileID: profileID(12)}
	products.variants["var_1"] = &db.Variant{ID: "var_1", ProductID: "prod_1", LabelProfileID: profileID(11)}
	orders.orders["ord_1"] = &db.Order{
		ID:    "ord_1",
		Total: decimal.Zero,
		Items: []*db.OrderItem{
			{ID: "item_1", OrderID: "ord_1", ProductID: "prod_1", VariantID: "var_1", Quantity: 1},
		},
	}

	res, err := r.ResolveOrderLabels(context.Background(), "ord_1", ResolveOptions{
		OverrideLabelProfiles: map[string]int64{"item_1": 13},
	})
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Equal(t, SourceOverride, res.Items[0].Source)
	assert.Equal(t, int64(13), res.Items[0].Profile.ID)
}

func TestProductProfileBeatsDefault(t *testing.T) {
	r, orders, products, profiles := testProfileResolver(t)

	profiles.profiles[12] = &db.LabelProfile{ID: 12, Name: "product-profile"}
	profiles.def = &db.LabelProfile{ID: 1, Name: "default"}

	products.products["prod_1"] = &db.Product{ID: "prod_1", Name: "Focaccia", LabelProfileID: profileID(12)}
	orders.orders["ord_1"] = &db.Order{
		ID:    "ord_1",
		Total: decimal.Zero,
		Items: []*db.OrderItem{{ID: "item_1", OrderID: "ord_1", ProductID: "prod_1", Quantity: 1}},
	}

	res, err := r.ResolveOrderLabels(context.Background(), "ord_1", ResolveOptions{})
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Equal(t, SourceProductLevel, res.Items[0].Source)
}

// A dangling override ID falls through the hierarchy instead of erroring.
func TestDanglingProfileReferenceFallsThrough(t *testing.T) {
	r, orders, products, profiles := testProfileResolver(t)

	profiles.def = &db.LabelProfile{ID: 1, Name: "default"}
	products.products["prod_1"] = &db.Product{ID: "prod_1", Name: "Scone"}
	orders.orders["ord_1"] = &db.Order{
		ID:    "ord_1",
		Total: decimal.Zero,
		Items: []*db.OrderItem{{ID: "item_1", OrderID: "ord_1", ProductID: "prod_1", Quantity: 1}},
	}

	res, err := r.ResolveOrderLabels(context.Background(), "ord_1", ResolveOptions{
		OverrideLabelProfiles: map[string]int64{"item_1": 999},
	})
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Equal(t, SourceSystemDefault, res.Items[0].Source)
}

func TestUnresolvableItemSkippedNotFatal(t *testing.T) {
	r, orders, products, _ := testProfileResolver(t)

	products.products["prod_good"] = &db.Product{ID: "prod_good", Name: "Bagel"}
	orders.orders["ord_1"] = &db.Order{
		ID:    "ord_1",
		Total: decimal.Zero,
		Items: []*db.OrderItem{
			{ID: "item_1", OrderID: "ord_1", ProductID: "prod_good", Quantity: 1},
		},
	}

	// No default profile configured anywhere: the item is skipped.
	res, err := r.ResolveOrderLabels(context.Background(), "ord_1", ResolveOptions{})
	require.NoError(t, err)
	assert.Empty(t, res.Items)
	assert.Equal(t, []string{"item_1"}, res.Summary.SkippedItems)
	assert.Zero(t, res.Summary.TotalLabels)
}

func TestCustomLabelsPerItem(t *testing.T) {
	r, orders, products, profiles := testProfileResolver(t)

	profiles.def = &db.LabelProfile{ID: 1, Name: "default"}
	products.products["prod_1"] = &db.Product{ID: "prod_1", Name: "Croissant"}
	orders.orders["ord_1"] = &db.Order{
		ID:    "ord_1",
		Total: decimal.Zero,
		Items: []*db.OrderItem{{ID: "item_1", OrderID: "ord_1", ProductID: "prod_1", Quantity: 4}},
	}

	res, err := r.ResolveOrderLabels(context.Background(), "ord_1", ResolveOptions{
		CustomLabelsPerItem: map[string]int{"item_1": 4},
	})
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Equal(t, 4, res.Items[0].LabelsPerItem)
	assert.Equal(t, 4, res.Summary.TotalLabels)
}

func TestShippingLabelAppended(t *testing.T) {
	r, orders, _, profiles := testProfileResolver(t)

	profiles.shipping = &db.LabelProfile{ID: 2, Name: "shipping-4x6", IsSystemShipping: true}
	orders.orders["ord_1"] = &db.Order{
		ID:              "ord_1",
		Number:          "ORD-3001",
		Total:           decimal.NewFromInt(18),
		ShippingAddress: "12 Flour St",
	}

	res, err := r.ResolveOrderLabels(context.Background(), "ord_1", ResolveOptions{IncludeShippingLabels: true})
	require.NoError(t, err)
	require.Len(t, res.Items, 1)

	ship := res.Items[0]
	assert.Equal(t, SourceShipping, ship.Source)
	assert.Equal(t, "12 Flour St", ship.Data["shippingAddress"])
	assert.Equal(t, "ORD-3001", ship.Data["barcode"])
	assert.Empty(t, ship.OrderItemID)
}

func TestResolveOrderLabelsScopeAndMissing(t *testing.T) {
	r, orders, _, _ := testProfileResolver(t)
	orders.orders["ord_1"] = &db.Order{ID: "ord_1", VendorID: "ven_1", Total: decimal.Zero}

	_, err := r.ResolveOrderLabels(context.Background(), "ord_missing", ResolveOptions{})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = r.ResolveOrderLabels(context.Background(), "ord_1", ResolveOptions{VendorScope: "ven_2"})
	assert.ErrorIs(t, err, ErrNotFound)
}
