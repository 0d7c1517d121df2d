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

type stubOrders struct {
	orders map[string]*db.Order
}

func (s *stubOrders) GetOrderByID(ctx context.Context, id string) (*db.Order, error) {
	o, ok := s.orders[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return o, nil
}

type stubProducts struct {
	products map[string]*db.Product
	variants map[string]*db.Variant
}

func (s *stubProducts) GetProductByID(ctx context.Context, id string) (*db.Product, error) {
	p, ok := s.products[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return p, nil
}

func (s *stubProducts) GetVariantByID(ctx context.Context, id string) (*db.Variant, error) {
	v, ok := s.variants[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return v, nil
}

func testDataResolver(t *testing.T) (*DataResolver, *stubOrders, *stubProducts) {
	t.Helper()
	orders := &stubOrders{orders: map[string]*db.Order{}}
	products := &stubProducts{
		products: map[string]*db.Product{},
		variants: map[string]*db.Variant{},
	}
	r := NewDataResolver(orders, products, "https://shop.example.com/", logger.NewNop())
	r.now = func() time.Time { return time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC) }
	return r, orders, products
}

func TestResolveOrderSource(t *testing.T) {
	r, orders, products := testDataResolver(t)

	created := time.Date(2024, 3, 14, 6, 0, 0, 0, time.UTC)
	orders.orders["ord_9f3k21ab"] = &db.Order{
		ID:           "ord_9f3k21ab",
		Number:       "ORD-1042",
		VendorID:     "ven_1",
		CustomerName: "Dana Whitfield",
		Total:        decimal.NewFromFloat(42.50),
		CreatedAt:    created,
		Items: []*db.OrderItem{
			{ID: "item_1", OrderID: "ord_9f3k21ab", ProductID: "prod_rye", VariantID: "var_large", Quantity: 2},
		},
	}
	products.products["prod_rye"] = &db.Product{
		ID:   "prod_rye",
		Name: "Seeded Rye Bread",
		Tags: "bestseller, allergen: peanut, allergen:dairy, seasonal",
	}
	products.variants["var_large"] = &db.Variant{ID: "var_large", ProductID: "prod_rye", Name: "Large"}

	data, err := r.Resolve(context.Background(), Source{Kind: SourceOrder, ID: "ord_9f3k21ab"}, "")
	require.NoError(t, err)

	assert.Equal(t, "ORD-1042", data["orderNumber"])
	assert.Equal(t, "Dana Whitfield", data["customerName"])
	assert.Equal(t, "42.50", data["orderTotal"])
	assert.Equal(t, "Seeded Rye Bread", data["productName"])
	assert.Equal(t, "Large", data["variantName"])
	assert.Equal(t, "2", data["quantity"])
	assert.Equal(t, "https://shop.example.com/orders/ord_9f3k21ab", data["orderURL"])
	assert.Equal(t, "ORD-1042", data["barcode"])
	assert.Equal(t, data["orderURL"], data["qr"])

	// Allergen tags keep their order, lose the prefix, and uppercase.
	assert.Equal(t, "PEANUT, DAIRY", data["allergens"])

	// Lot code is the order date plus the tail of the order ID.
	assert.Equal(t, "20240314-21AB", data["lotCode"])
	assert.Equal(t, "2024-03-14", data["productionDate"])
	assert.Equal(t, "2024-03-19", data["expirationDate"])
}

func TestResolveProductSource(t *testing.T) {
	r, _, products := testDataResolver(t)
	products.products["prod_choc"] = &db.Product{
		ID:       "prod_choc",
		VendorID: "ven_2",
		Name:     "Chocolate Chip Cookie Dozen",
	}

	data, err := r.Resolve(context.Background(), Source{Kind: SourceProduct, ID: "prod_choc"}, "")
	require.NoError(t, err)

	assert.Equal(t, "Chocolate Chip Cookie Dozen", data["productName"])
	assert.Equal(t, "", data["allergens"])
	// 40 g cookie base times a dozen.
	assert.Equal(t, "480 g", data["weight"])
	assert.Equal(t, "2024-03-15", data["productionDate"])
	assert.Equal(t, "2024-04-14", data["expirationDate"])
	assert.Equal(t, "prod_choc", data["barcode"])
}

func TestResolveManualSource(t *testing.T) {
	r, _, _ := testDataResolver(t)

	data, err := r.Resolve(context.Background(), Source{Kind: SourceManual, ID: "BATCH-7"}, "")
	require.NoError(t, err)

	assert.Equal(t, "BATCH-7", data["reference"])
	assert.Equal(t, "BATCH-7", data["barcode"])
	assert.Equal(t, "2024-03-15", data["printDate"])
	assert.Equal(t, "09:30", data["printTime"])
}

func TestResolveVendorScope(t *testing.T) {
	r, orders, products := testDataResolver(t)
	orders.orders["ord_1"] = &db.Order{ID: "ord_1", VendorID: "ven_1", Total: decimal.Zero}
	products.products["prod_1"] = &db.Product{ID: "prod_1", VendorID: "ven_1", Name: "Baguette"}

	_, err := r.Resolve(context.Background(), Source{Kind: SourceOrder, ID: "ord_1"}, "ven_2")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = r.Resolve(context.Background(), Source{Kind: SourceProduct, ID: "prod_1"}, "ven_2")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = r.Resolve(context.Background(), Source{Kind: SourceOrder, ID: "ord_1"}, "ven_1")
	assert.NoError(t, err)
}

func TestResolveMissingSource(t *testing.T) {
	r, _, _ := testDataResolver(t)

	_, err := r.Resolve(context.Background(), Source{Kind: SourceOrder, ID: "ord_missing"}, "")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = r.Resolve(context.Background(), Source{Kind: SourceKind("warehouse"), ID: "x"}, "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEstimateWeightGrams(t *testing.T) {
	assert.Equal(t, 680, estimateWeightGrams("Country Loaf", 1))
	assert.Equal(t, 1360, estimateWeightGrams("Country Loaf", 2))
	assert.Equal(t, 480, estimateWeightGrams("Cookie Dozen", 1))
	assert.Equal(t, 720, estimateWeightGrams("Muffin 6-pack", 1))
	assert.Equal(t, 250, estimateWeightGrams("Mystery Pastry", 1))
}

func TestFormatWeight(t *testing.T) {
	assert.Equal(t, "680 g", formatWeight(680))
	assert.Equal(t, "1.36 kg", formatWeight(1360))
}
