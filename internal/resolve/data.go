// Package resolve turns marketplace entities into the flat data records that
// label templates bind against, and determines which label profile applies
// to each unit of output.
package resolve

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ovenfresh/labelpress/internal/db"
	"github.com/ovenfresh/labelpress/internal/logger"
)

var ErrNotFound = errors.New("source not found")

type SourceKind string

const (
	SourceOrder   SourceKind = "order"
	SourceProduct SourceKind = "product"
	SourceManual  SourceKind = "manual"
)

// Source references the entity a label's data is resolved from.
type Source struct {
	Kind SourceKind `json:"kind"`
	ID   string     `json:"id"`
}

// Data is the flat record templates bind against via dotted-path lookup.
type Data map[string]string

type OrderStore interface {
	GetOrderByID(ctx context.Context, id string) (*db.Order, error)
}

type ProductStore interface {
	GetProductByID(ctx context.Context, id string) (*db.Product, error)
	GetVariantByID(ctx context.Context, id string) (*db.Variant, error)
}

const (
	orderExpirationDays   = 5
	productExpirationDays = 30
)

type DataResolver struct {
	orders   OrderStore
	products ProductStore
	baseURL  string
	now      func() time.Time
	log      logger.Logger
}

func NewDataResolver(orders OrderStore, products ProductStore, baseURL string, log logger.Logger) *DataResolver {
	return &DataResolver{
		orders:   orders,
		products: products,
		baseURL:  strings.TrimRight(baseURL, "/"),
		now:      time.Now,
		log:      log,
	}
}

// Resolve produces the flat record for a source reference. A missing backing
// entity fails with ErrNotFound; bad tag data degrades to empty fields.
func (r *DataResolver) Resolve(ctx context.Context, src Source, vendorScope string) (Data, error) {
	switch src.Kind {
	case SourceOrder:
		order, err := r.loadOrder(ctx, src.ID, vendorScope)
		if err != nil {
			return nil, err
		}
		var item *db.OrderItem
		if len(order.Items) > 0 {
			item = order.Items[0]
		}
		return r.resolveOrderItem(ctx, order, item)
	case SourceProduct:
		return r.resolveProduct(ctx, src.ID, vendorScope)
	case SourceManual:
		return r.resolveManual(src.ID), nil
	default:
		return nil, fmt.Errorf("%w: unknown source kind %q", ErrNotFound, src.Kind)
	}
}

func (r *DataResolver) loadOrder(ctx context.Context, id, vendorScope string) (*db.Order, error) {
	order, err := r.orders.GetOrderByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: order %s", ErrNotFound, id)
		}
		return nil, err
	}
	if vendorScope != "" && order.VendorID != vendorScope {
		return nil, fmt.Errorf("%w: order %s", ErrNotFound, id)
	}
	return order, nil
}

// resolveOrderItem builds the record for one order line item. When item is
// nil the order has no line items and only order-level fields are produced.
func (r *DataResolver) resolveOrderItem(ctx context.Context, order *db.Order, item *db.OrderItem) (Data, error) {
	data := r.base()

	data["orderNumber"] = order.Number
	data["customerName"] = order.CustomerName
	data["customerEmail"] = order.CustomerEmail
	data["orderTotal"] = order.Total.StringFixed(2)
	data["orderURL"] = r.baseURL + "/orders/" + order.ID
	data["lotCode"] = lotCode(order.CreatedAt, order.ID)
	data["productionDate"] = order.CreatedAt.Format("2006-01-02")
	data["expirationDate"] = order.CreatedAt.AddDate(0, 0, orderExpirationDays).Format("2006-01-02")
	data["barcode"] = order.Number
	data["qr"] = data["orderURL"]

	if item == nil {
		return data, nil
	}

	product, err := r.products.GetProductByID(ctx, item.ProductID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: product %s", ErrNotFound, item.ProductID)
		}
		return nil, err
	}

	data["productName"] = product.Name
	data["allergens"] = parseAllergens(product.Tags)
	data["weight"] = formatWeight(estimateWeightGrams(product.Name, item.Quantity))
	data["productURL"] = r.baseURL + "/products/" + product.ID
	data["quantity"] = strconv.Itoa(item.Quantity)

	if item.VariantID != "" {
		variant, err := r.products.GetVariantByID(ctx, item.VariantID)
		if err == nil && variant.Name != "" {
			data["variantName"] = variant.Name
		}
	}

	return data, nil
}

func (r *DataResolver) resolveProduct(ctx context.Context, id, vendorScope string) (Data, error) {
	product, err := r.products.GetProductByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: product %s", ErrNotFound, id)
		}
		return nil, err
	}
	if vendorScope != "" && product.VendorID != vendorScope {
		return nil, fmt.Errorf("%w: product %s", ErrNotFound, id)
	}

	now := r.now()
	data := r.base()
	data["productName"] = product.Name
	data["allergens"] = parseAllergens(product.Tags)
	data["weight"] = formatWeight(estimateWeightGrams(product.Name, 1))
	data["productURL"] = r.baseURL + "/products/" + product.ID
	data["lotCode"] = lotCode(now, product.ID)
	data["productionDate"] = now.Format("2006-01-02")
	data["expirationDate"] = now.AddDate(0, 0, productExpirationDays).Format("2006-01-02")
	data["barcode"] = product.ID
	data["qr"] = data["productURL"]

	return data, nil
}

func (r *DataResolver) resolveManual(refID string) Data {
	data := r.base()
	data["reference"] = refID
	data["lotCode"] = lotCode(r.now(), refID)
	data["barcode"] = refID
	data["qr"] = refID
	return data
}

// shippingData builds the order-level record used by synthesized shipping
// labels; no product fields.
func (r *DataResolver) shippingData(order *db.Order) Data {
	data := r.base()
	data["orderNumber"] = order.Number
	data["customerName"] = order.CustomerName
	data["customerEmail"] = order.CustomerEmail
	data["orderTotal"] = order.Total.StringFixed(2)
	data["itemCount"] = strconv.Itoa(len(order.Items))
	data["shippingAddress"] = order.ShippingAddress
	data["orderDate"] = order.CreatedAt.Format("2006-01-02")
	if order.ExpectedDelivery != nil {
		data["expectedDelivery"] = order.ExpectedDelivery.Format("2006-01-02")
	}
	data["orderURL"] = r.baseURL + "/orders/" + order.ID
	data["barcode"] = order.Number
	data["qr"] = data["orderURL"]
	return data
}

func (r *DataResolver) base() Data {
	now := r.now()
	return Data{
		"printDate": now.Format("2006-01-02"),
		"printTime": now.Format("15:04"),
	}
}

// lotCode is the order/production date plus a suffix of the source ID,
// enough to trace a label back without exposing the full internal ID.
func lotCode(t time.Time, id string) string {
	suffix := strings.ToUpper(strings.NewReplacer("-", "", "_", "").Replace(id))
	if len(suffix) > 4 {
		suffix = suffix[len(suffix)-4:]
	}
	return t.Format("20060102") + "-" + suffix
}

// parseAllergens extracts "allergen:" tags from a comma-separated tag list,
// preserving order, stripping the prefix and uppercasing. Anything malformed
// just drops out; allergen data is advisory, not load-bearing.
func parseAllergens(tags string) string {
	if tags == "" {
		return ""
	}
	var allergens []string
	for _, tag := range strings.Split(tags, ",") {
		tag = strings.TrimSpace(tag)
		if rest, ok := strings.CutPrefix(tag, "allergen:"); ok {
			rest = strings.TrimSpace(rest)
			if rest != "" {
				allergens = append(allergens, strings.ToUpper(rest))
			}
		}
	}
	return strings.Join(allergens, ", ")
}

var packPattern = regexp.MustCompile(`(\d+)[- ]?pack`)

// estimateWeightGrams guesses a product's weight from name substrings.
// Marketplace products carry no weight field, so labels get a category
// estimate keyed off what bakeries actually sell.
func estimateWeightGrams(name string, quantity int) int {
	if quantity < 1 {
		quantity = 1
	}
	n := strings.ToLower(name)

	base := 250
	switch {
	case strings.Contains(n, "bread"), strings.Contains(n, "loaf"):
		base = 680
	case strings.Contains(n, "muffin"), strings.Contains(n, "roll"):
		base = 120
	case strings.Contains(n, "cake"), strings.Contains(n, "pie"):
		base = 900
	case strings.Contains(n, "cookie"), strings.Contains(n, "biscuit"):
		base = 40
	}

	pack := 1
	if strings.Contains(n, "dozen") {
		pack = 12
	} else if m := packPattern.FindStringSubmatch(n); m != nil {
		if v, err := strconv.Atoi(m[1]); err == nil && v > 0 {
			pack = v
		}
	}

	return base * pack * quantity
}

func formatWeight(grams int) string {
	if grams >= 1000 {
		return strconv.FormatFloat(float64(grams)/1000, 'f', 2, 64) + " kg"
	}
	return strconv.Itoa(grams) + " g"
}
