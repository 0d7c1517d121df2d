// Package label holds the declarative template model: a physical size plus
// positioned elements with optional data bindings and conditional rules.
// Schemas are stored serialized and parsed once at the load boundary; a
// schema that fails to parse or validate is rejected when a profile is
// created or activated, not at render time.
package label

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidSchema = errors.New("invalid template schema")

type ElementType string

const (
	ElementText    ElementType = "text"
	ElementBarcode ElementType = "barcode"
	ElementImage   ElementType = "image"
	ElementBox     ElementType = "box"
	ElementLine    ElementType = "line"
)

type Symbology string

const (
	SymbologyCode128 Symbology = "code128"
	SymbologyEAN13   Symbology = "ean13"
	SymbologyUPC     Symbology = "upc"
	SymbologyQR      Symbology = "qr"
)

type Template struct {
	Name           string    `json:"name"`
	WidthIn        float64   `json:"width_in"`
	HeightIn       float64   `json:"height_in"`
	Orientation    string    `json:"orientation,omitempty"`
	CornerRadiusIn float64   `json:"corner_radius_in,omitempty"`
	DPI            int       `json:"dpi,omitempty"`
	Units          string    `json:"units,omitempty"`
	Elements       []Element `json:"elements"`
	Rules          []Rule    `json:"rules,omitempty"`
}

// Element is a tagged variant; the Type field selects which of the
// type-specific fields are meaningful. Positions and sizes are inches.
type Element struct {
	ID   string      `json:"id"`
	Type ElementType `json:"type"`
	X    float64     `json:"x"`
	Y    float64     `json:"y"`
	W    float64     `json:"w,omitempty"`
	H    float64     `json:"h,omitempty"`

	// text
	Value      string  `json:"value,omitempty"`
	Bind       string  `json:"bind,omitempty"`
	Font       string  `json:"font,omitempty"`
	FontSize   float64 `json:"font_size,omitempty"`
	Bold       bool    `json:"bold,omitempty"`
	Align      string  `json:"align,omitempty"`
	LineHeight float64 `json:"line_height,omitempty"`
	Wrap       bool    `json:"wrap,omitempty"`
	Uppercase  bool    `json:"uppercase,omitempty"`

	// barcode
	Symbology Symbology `json:"symbology,omitempty"`

	// image
	Source string `json:"source,omitempty"`

	// box/line
	StrokeWidth float64 `json:"stroke_width,omitempty"`
	Fill        bool    `json:"fill,omitempty"`
}

// Rule conditionally hides elements or overrides element values when its
// predicate matches the resolved data record.
type Rule struct {
	When Condition         `json:"when"`
	Hide []string          `json:"hide,omitempty"`
	Set  map[string]string `json:"set,omitempty"`
}

type Condition struct {
	Field string `json:"field"`
	Op    string `json:"op"` // eq | ne | contains | exists | empty
	Value string `json:"value,omitempty"`
}

// Parse decodes a serialized schema, applies element defaults and validates
// geometry. Callers keep the parsed value; the raw string is never re-parsed
// per label.
func Parse(schemaJSON string) (*Template, error) {
	var t Template
	if err := json.Unmarshal([]byte(schemaJSON), &t); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSchema, err)
	}

	if t.DPI == 0 {
		t.DPI = 203
	}
	if t.Units == "" {
		t.Units = "in"
	}
	if t.Orientation == "" {
		t.Orientation = "portrait"
	}

	for i := range t.Elements {
		applyElementDefaults(&t.Elements[i])
	}

	if err := t.validate(); err != nil {
		return nil, err
	}

	return &t, nil
}

func applyElementDefaults(e *Element) {
	switch e.Type {
	case ElementText:
		if e.Font == "" {
			e.Font = "helvetica"
		}
		if e.FontSize == 0 {
			e.FontSize = 10
		}
		if e.Align == "" {
			e.Align = "left"
		}
		if e.LineHeight == 0 {
			e.LineHeight = 1.2
		}
	case ElementBarcode:
		if e.Symbology == "" {
			// Code128 handles arbitrary alphanumeric payloads.
			e.Symbology = SymbologyCode128
		}
		if e.H == 0 {
			e.H = 0.5
		}
	case ElementBox, ElementLine:
		if e.StrokeWidth == 0 {
			e.StrokeWidth = 0.01
		}
	}
}

func (t *Template) validate() error {
	if t.WidthIn <= 0 || t.HeightIn <= 0 {
		return fmt.Errorf("%w: template size must be positive, got %.2fx%.2f", ErrInvalidSchema, t.WidthIn, t.HeightIn)
	}

	seen := make(map[string]bool, len(t.Elements))
	for i, e := range t.Elements {
		if e.ID == "" {
			return fmt.Errorf("%w: element %d has no id", ErrInvalidSchema, i)
		}
		if seen[e.ID] {
			return fmt.Errorf("%w: duplicate element id %q", ErrInvalidSchema, e.ID)
		}
		seen[e.ID] = true

		switch e.Type {
		case ElementText, ElementBarcode, ElementImage, ElementBox, ElementLine:
		default:
			return fmt.Errorf("%w: element %q has unsupported type %q", ErrInvalidSchema, e.ID, e.Type)
		}

		if e.X < 0 || e.Y < 0 {
			return fmt.Errorf("%w: element %q has negative position", ErrInvalidSchema, e.ID)
		}
		if e.W < 0 || e.H < 0 {
			return fmt.Errorf("%w: element %q has negative size", ErrInvalidSchema, e.ID)
		}
		if e.W > 0 && e.X+e.W > t.WidthIn+0.001 {
			return fmt.Errorf("%w: element %q exceeds template width", ErrInvalidSchema, e.ID)
		}
		if e.H > 0 && e.Y+e.H > t.HeightIn+0.001 {
			return fmt.Errorf("%w: element %q exceeds template height", ErrInvalidSchema, e.ID)
		}

		if e.Type == ElementBarcode {
			switch e.Symbology {
			case SymbologyCode128, SymbologyEAN13, SymbologyUPC, SymbologyQR:
			default:
				return fmt.Errorf("%w: element %q has unsupported symbology %q", ErrInvalidSchema, e.ID, e.Symbology)
			}
		}
	}

	for i, r := range t.Rules {
		switch r.When.Op {
		case "eq", "ne", "contains", "exists", "empty":
		default:
			return fmt.Errorf("%w: rule %d has unsupported op %q", ErrInvalidSchema, i, r.When.Op)
		}
		for _, id := range r.Hide {
			if !seen[id] {
				return fmt.Errorf("%w: rule %d hides unknown element %q", ErrInvalidSchema, i, id)
			}
		}
		for id := range r.Set {
			if !seen[id] {
				return fmt.Errorf("%w: rule %d sets unknown element %q", ErrInvalidSchema, i, id)
			}
		}
	}

	return nil
}

// Apply evaluates the template's rules against a resolved data record and
// returns the effective element list: hidden elements removed, value
// overrides applied. The receiver is not mutated.
func (t *Template) Apply(data map[string]string) []Element {
	hidden := make(map[string]bool)
	overrides := make(map[string]string)

	for _, r := range t.Rules {
		if !r.When.matches(data) {
			continue
		}
		for _, id := range r.Hide {
			hidden[id] = true
		}
		for id, v := range r.Set {
			overrides[id] = v
		}
	}

	elements := make([]Element, 0, len(t.Elements))
	for _, e := range t.Elements {
		if hidden[e.ID] {
			continue
		}
		if v, ok := overrides[e.ID]; ok {
			e.Value = v
			e.Bind = ""
		}
		elements = append(elements, e)
	}
	return elements
}

func (c Condition) matches(data map[string]string) bool {
	v, ok := data[c.Field]
	switch c.Op {
	case "eq":
		return v == c.Value
	case "ne":
		return v != c.Value
	case "contains":
		return strings.Contains(v, c.Value)
	case "exists":
		return ok && v != ""
	case "empty":
		return !ok || v == ""
	}
	return false
}

// ResolveValue returns an element's effective string value: the literal
// value, or the bound field looked up in data via dotted path. Missing
// bindings resolve to empty string.
func (e *Element) ResolveValue(data map[string]string) string {
	v := e.Value
	if e.Bind != "" {
		v = Lookup(data, e.Bind)
	}
	if e.Uppercase {
		v = strings.ToUpper(v)
	}
	return v
}

// Lookup resolves a dotted path against a flat record. The record is flat,
// so "order.number" is first tried verbatim and then with the leading
// segment stripped, which keeps older templates that used nested paths
// working against flattened data.
func Lookup(data map[string]string, path string) string {
	if v, ok := data[path]; ok {
		return v
	}
	if i := strings.IndexByte(path, '.'); i >= 0 {
		if v, ok := data[path[i+1:]]; ok {
			return v
		}
	}
	return ""
}
