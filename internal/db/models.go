package db

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Engine is the output encoding family a printer or label profile speaks.
type Engine string

const (
	EnginePDF       Engine = "PDF"
	EngineZPL       Engine = "ZPL"
	EngineBrotherQL Engine = "BROTHER_QL"
)

func ValidEngine(e Engine) bool {
	switch e {
	case EnginePDF, EngineZPL, EngineBrotherQL:
		return true
	}
	return false
}

const (
	PrinterStatusActive   = "active"
	PrinterStatusInactive = "inactive"
	PrinterStatusOffline  = "offline"
)

const (
	ProfileStatusDraft   = "draft"
	ProfileStatusActive  = "active"
	ProfileStatusRetired = "retired"
)

// Label job lifecycle. Failed jobs can re-enter queued via retry.
const (
	JobStatusQueued    = "queued"
	JobStatusRendering = "rendering"
	JobStatusPrinting  = "printing"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
	JobStatusCancelled = "cancelled"
)

// MediaSize is one physical media entry a printer can load.
type MediaSize struct {
	WidthIn  float64 `json:"width_in"`
	HeightIn float64 `json:"height_in"`
}

type Printer struct {
	ID          int64      `json:"id"`
	VendorID    string     `json:"vendor_id"`
	Name        string     `json:"name"`
	Engine      Engine     `json:"engine"`
	IPAddress   string     `json:"ip_address"`
	Port        int        `json:"port"`
	DPI         int        `json:"dpi"`
	MaxWidthIn  float64    `json:"max_width_in"`
	MaxHeightIn float64    `json:"max_height_in"`
	MediaJSON   string     `json:"media_json"`
	Status      string     `json:"status"`
	LastSeenAt  *time.Time `json:"last_seen_at"`
	TotalPrints int64      `json:"total_prints"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Media parses the supported-media list. A malformed list reads as empty,
// which makes the printer incompatible with everything rather than crashing
// compatibility checks.
func (p *Printer) Media() []MediaSize {
	var media []MediaSize
	if err := json.Unmarshal([]byte(p.MediaJSON), &media); err != nil {
		return nil
	}
	return media
}

func (p *Printer) IsActive() bool {
	return p.Status == PrinterStatusActive
}

type Template struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Version     int       `json:"version"`
	Description string    `json:"description"`
	SchemaJSON  string    `json:"schema_json"`
	WidthIn     float64   `json:"width_in"`
	HeightIn    float64   `json:"height_in"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type LabelProfile struct {
	ID               int64     `json:"id"`
	VendorID         string    `json:"vendor_id"`
	Name             string    `json:"name"`
	TemplateID       int64     `json:"template_id"`
	Engine           Engine    `json:"engine"`
	WidthIn          float64   `json:"width_in"`
	HeightIn         float64   `json:"height_in"`
	Orientation      string    `json:"orientation"`
	Copies           int       `json:"copies"`
	IsSystemDefault  bool      `json:"is_system_default"`
	IsSystemShipping bool      `json:"is_system_shipping"`
	Status           string    `json:"status"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

type LabelJob struct {
	ID           int64      `json:"id"`
	SourceType   string     `json:"source_type"`
	SourceID     string     `json:"source_id"`
	ProfileID    int64      `json:"profile_id"`
	RequestedBy  string     `json:"requested_by"`
	Copies       int        `json:"copies"`
	PayloadJSON  string     `json:"payload_json"`
	Status       string     `json:"status"`
	ErrorMessage string     `json:"error_message"`
	OutputPath   string     `json:"output_path"`
	CreatedAt    time.Time  `json:"created_at"`
	StartedAt    *time.Time `json:"started_at"`
	CompletedAt  *time.Time `json:"completed_at"`
}

type Order struct {
	ID               string          `json:"id"`
	Number           string          `json:"number"`
	VendorID         string          `json:"vendor_id"`
	CustomerName     string          `json:"customer_name"`
	CustomerEmail    string          `json:"customer_email"`
	Total            decimal.Decimal `json:"total"`
	ShippingAddress  string          `json:"shipping_address"`
	ExpectedDelivery *time.Time      `json:"expected_delivery"`
	CreatedAt        time.Time       `json:"created_at"`
	Items            []*OrderItem    `json:"items,omitempty"`
}

type OrderItem struct {
	ID        string `json:"id"`
	OrderID   string `json:"order_id"`
	ProductID string `json:"product_id"`
	VariantID string `json:"variant_id,omitempty"`
	Quantity  int    `json:"quantity"`
}

type Product struct {
	ID             string `json:"id"`
	VendorID       string `json:"vendor_id"`
	Name           string `json:"name"`
	Tags           string `json:"tags"`
	LabelProfileID *int64 `json:"label_profile_id,omitempty"`
}

type Variant struct {
	ID             string `json:"id"`
	ProductID      string `json:"product_id"`
	Name           string `json:"name"`
	LabelProfileID *int64 `json:"label_profile_id,omitempty"`
}

type Webhook struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	URL        string    `json:"url"`
	Secret     string    `json:"secret,omitempty"`
	EventsJSON string    `json:"events_json"`
	Enabled    bool      `json:"enabled"`
	CreatedAt  time.Time `json:"created_at"`
}

// Subscribes reports whether the webhook's event filter includes the given
// event. An empty or malformed filter subscribes to nothing.
func (w *Webhook) Subscribes(event string) bool {
	var events []string
	if err := json.Unmarshal([]byte(w.EventsJSON), &events); err != nil {
		return false
	}
	for _, e := range events {
		if e == event {
			return true
		}
	}
	return false
}

type Setting struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	Encrypted bool      `json:"encrypted"`
	UpdatedAt time.Time `json:"updated_at"`
}

type JobFilter struct {
	ProfileID int64
	Status    string
	FromDate  *time.Time
	ToDate    *time.Time
	Limit     int
	Offset    int
}
