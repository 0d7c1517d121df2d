package label

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const basicSchema = `{
	"name": "product-4x6",
	"width_in": 4,
	"height_in": 6,
	"elements": [
		{"id": "title", "type": "text", "x": 0.2, "y": 0.2, "w": 3.6, "bind": "product.name", "uppercase": true},
		{"id": "price", "type": "text", "x": 0.2, "y": 0.6, "w": 2.0, "bind": "order.total"},
		{"id": "code", "type": "barcode", "x": 0.2, "y": 4.5, "w": 3.0, "h": 1.0, "bind": "order.number"},
		{"id": "border", "type": "box", "x": 0, "y": 0, "w": 4, "h": 6}
	],
	"rules": [
		{"when": {"field": "allergens", "op": "empty"}, "hide": ["price"]},
		{"when": {"field": "vendor.name", "op": "eq", "value": "Crumb & Co"}, "set": {"title": "CRUMB SPECIAL"}}
	]
}`

func TestParseAppliesDefaults(t *testing.T) {
	tmpl, err := Parse(basicSchema)
	require.NoError(t, err)

	assert.Equal(t, 203, tmpl.DPI)
	assert.Equal(t, "in", tmpl.Units)
	assert.Equal(t, "portrait", tmpl.Orientation)

	title := tmpl.Elements[0]
	assert.Equal(t, "helvetica", title.Font)
	assert.Equal(t, 10.0, title.FontSize)
	assert.Equal(t, "left", title.Align)

	code := tmpl.Elements[2]
	assert.Equal(t, SymbologyCode128, code.Symbology)

	border := tmpl.Elements[3]
	assert.Equal(t, 0.01, border.StrokeWidth)
}

func TestParseRejectsBadSchemas(t *testing.T) {
	cases := []struct {
		name   string
		schema string
	}{
		{"not json", `{`},
		{"zero size", `{"name":"x","width_in":0,"height_in":6,"elements":[]}`},
		{"missing element id", `{"name":"x","width_in":4,"height_in":6,"elements":[{"type":"text","x":0,"y":0}]}`},
		{"duplicate id", `{"name":"x","width_in":4,"height_in":6,"elements":[{"id":"a","type":"text","x":0,"y":0},{"id":"a","type":"text","x":1,"y":1}]}`},
		{"unknown type", `{"name":"x","width_in":4,"height_in":6,"elements":[{"id":"a","type":"hologram","x":0,"y":0}]}`},
		{"element overflows width", `{"name":"x","width_in":4,"height_in":6,"elements":[{"id":"a","type":"box","x":3,"y":0,"w":2,"h":1}]}`},
		{"bad symbology", `{"name":"x","width_in":4,"height_in":6,"elements":[{"id":"a","type":"barcode","x":0,"y":0,"w":1,"symbology":"maxicode"}]}`},
		{"bad rule op", `{"name":"x","width_in":4,"height_in":6,"elements":[{"id":"a","type":"text","x":0,"y":0}],"rules":[{"when":{"field":"f","op":"gt","value":"1"}}]}`},
		{"rule hides unknown element", `{"name":"x","width_in":4,"height_in":6,"elements":[{"id":"a","type":"text","x":0,"y":0}],"rules":[{"when":{"field":"f","op":"exists"},"hide":["ghost"]}]}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse(tc.schema)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidSchema)
		})
	}
}

func TestApplyRules(t *testing.T) {
	tmpl, err := Parse(basicSchema)
	require.NoError(t, err)

	// No allergens: the empty rule fires and hides the price element.
	elements := tmpl.Apply(map[string]string{"product.name": "Sourdough"})
	ids := elementIDs(elements)
	assert.NotContains(t, ids, "price")
	assert.Contains(t, ids, "title")

	// Allergens present plus the vendor override.
	elements = tmpl.Apply(map[string]string{
		"allergens":   "PEANUT",
		"vendor.name": "Crumb & Co",
	})
	ids = elementIDs(elements)
	assert.Contains(t, ids, "price")
	for _, e := range elements {
		if e.ID == "title" {
			assert.Equal(t, "CRUMB SPECIAL", e.Value)
			assert.Empty(t, e.Bind, "override must win over the binding")
		}
	}
}

func TestApplyDoesNotMutateTemplate(t *testing.T) {
	tmpl, err := Parse(basicSchema)
	require.NoError(t, err)

	tmpl.Apply(map[string]string{"vendor.name": "Crumb & Co"})
	assert.Equal(t, "product.name", tmpl.Elements[0].Bind)
	assert.Empty(t, tmpl.Elements[0].Value)
}

func TestResolveValue(t *testing.T) {
	data := map[string]string{
		"product.name": "rye loaf",
		"number":       "ORD-1001",
	}

	bound := Element{Type: ElementText, Bind: "product.name", Uppercase: true}
	assert.Equal(t, "RYE LOAF", bound.ResolveValue(data))

	// Dotted paths fall back to the path with the leading segment stripped.
	legacy := Element{Type: ElementText, Bind: "order.number"}
	assert.Equal(t, "ORD-1001", legacy.ResolveValue(data))

	missing := Element{Type: ElementText, Bind: "order.carrier"}
	assert.Equal(t, "", missing.ResolveValue(data))

	literal := Element{Type: ElementText, Value: "Keep Refrigerated"}
	assert.Equal(t, "Keep Refrigerated", literal.ResolveValue(data))
}

func elementIDs(elements []Element) []string {
	ids := make([]string, 0, len(elements))
	for _, e := range elements {
		ids = append(ids, e.ID)
	}
	return ids
}
