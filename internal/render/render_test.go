package render

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ovenfresh/labelpress/internal/db"
	"github.com/ovenfresh/labelpress/internal/label"
	"github.com/ovenfresh/labelpress/internal/resolve"
)

const renderSchema = `{
	"name": "bakery-4x6",
	"width_in": 4,
	"height_in": 6,
	"elements": [
		{"id": "title", "type": "text", "x": 0.2, "y": 0.2, "w": 3.6, "bind": "productName", "uppercase": true},
		{"id": "lot", "type": "text", "x": 0.2, "y": 0.7, "w": 2.0, "bind": "lotCode"},
		{"id": "missing", "type": "text", "x": 0.2, "y": 1.1, "w": 2.0, "bind": "noSuchField"},
		{"id": "code", "type": "barcode", "x": 0.2, "y": 4.5, "w": 3.0, "h": 1.0, "bind": "barcode", "symbology": "code128"}
	]
}`

func renderTemplate(t *testing.T) *label.Template {
	t.Helper()
	tmpl, err := label.Parse(renderSchema)
	require.NoError(t, err)
	return tmpl
}

func renderData() resolve.Data {
	return resolve.Data{
		"productName": "Seeded Rye",
		"lotCode":     "20240314-21AB",
		"barcode":     "ORD-1042",
	}
}

func TestRenderZPL(t *testing.T) {
	out, err := RenderOne(db.EngineZPL, renderTemplate(t), renderData(), 203, 4, 6, 2)
	require.NoError(t, err)
	assert.Equal(t, MIMEZPL, out.MIME)

	zpl := string(out.Buffer)
	assert.Equal(t, 1, strings.Count(zpl, "^XA"))
	assert.Equal(t, 1, strings.Count(zpl, "^XZ"))
	assert.Contains(t, zpl, "^PW812")
	assert.Contains(t, zpl, "^LL1218")
	assert.Contains(t, zpl, "^PQ2")
	assert.Contains(t, zpl, "SEEDED RYE", "uppercase binding must apply")
	assert.Contains(t, zpl, "20240314-21AB")
	assert.Contains(t, zpl, "ORD-1042")
}

func TestRenderZPLMultipleLabels(t *testing.T) {
	job := Job{
		Template: renderTemplate(t),
		DPI:      203,
		WidthIn:  4,
		HeightIn: 6,
		Labels: []Label{
			{ItemID: "item_1", Data: renderData()},
			{ItemID: "item_2", Data: renderData()},
			{ItemID: "item_3", Data: renderData()},
		},
	}

	out, err := Render(db.EngineZPL, job)
	require.NoError(t, err)

	zpl := string(out.Buffer)
	assert.Equal(t, 3, strings.Count(zpl, "^XA"))
	assert.Equal(t, 3, strings.Count(zpl, "^XZ"))
	// Uninitialized copies default to 1 per label.
	assert.Equal(t, 3, strings.Count(zpl, "^PQ1"))
}

func TestRenderZPLEscapesControlCharacters(t *testing.T) {
	data := renderData()
	data["productName"] = "rye^XZ~loaf"

	out, err := RenderOne(db.EngineZPL, renderTemplate(t), data, 203, 4, 6, 1)
	require.NoError(t, err)

	// A caret in field data would terminate the label mid-stream.
	assert.Equal(t, 1, strings.Count(string(out.Buffer), "^XZ"))
}

func TestRenderZPLMissingBindRendersEmpty(t *testing.T) {
	out, err := RenderOne(db.EngineZPL, renderTemplate(t), renderData(), 203, 4, 6, 1)
	require.NoError(t, err)
	assert.Contains(t, string(out.Buffer), "^FD^FS", "missing binding must resolve to an empty field, not an error")
}

func TestRenderPDF(t *testing.T) {
	out, err := RenderOne(db.EnginePDF, renderTemplate(t), renderData(), 0, 4, 6, 1)
	require.NoError(t, err)
	assert.Equal(t, MIMEPDF, out.MIME)
	assert.True(t, strings.HasPrefix(string(out.Buffer), "%PDF-"))
}

// Rendering the same job twice yields identical bytes; batch files are
// content-addressable downstream.
func TestRenderPDFDeterministic(t *testing.T) {
	first, err := RenderOne(db.EnginePDF, renderTemplate(t), renderData(), 0, 4, 6, 1)
	require.NoError(t, err)
	second, err := RenderOne(db.EnginePDF, renderTemplate(t), renderData(), 0, 4, 6, 1)
	require.NoError(t, err)
	assert.Equal(t, first.Buffer, second.Buffer)
}

// A label whose embedded image cannot be decoded degrades to the error
// placeholder page; sibling labels in the same file still render.
func TestRenderPDFBadImageDegradesToPlaceholder(t *testing.T) {
	schema := `{
		"name": "photo-2x2",
		"width_in": 2,
		"height_in": 2,
		"elements": [
			{"id": "name", "type": "text", "x": 0.2, "y": 0.2, "w": 1.6, "bind": "productName"},
			{"id": "photo", "type": "image", "x": 0.2, "y": 0.6, "w": 1.0, "h": 1.0, "bind": "photo"}
		]
	}`
	tmpl, err := label.Parse(schema)
	require.NoError(t, err)

	// Valid PNG signature over a garbage body, so it reaches the decoder.
	corrupt := base64.StdEncoding.EncodeToString([]byte("\x89PNG\r\nnot-an-image"))
	job := Job{
		Template: tmpl,
		Labels: []Label{
			{ItemID: "item_bad", Data: resolve.Data{"productName": "Rye", "photo": corrupt}},
			{ItemID: "item_ok", Data: resolve.Data{"productName": "Sourdough"}},
		},
	}

	out, err := Render(db.EnginePDF, job)
	require.NoError(t, err, "one bad image must not void the whole file")
	pdfText := string(out.Buffer)
	assert.True(t, strings.HasPrefix(pdfText, "%PDF-"))
	assert.Contains(t, pdfText, "/Count 2", "both labels keep their pages")
}

func TestRenderBrotherServedPDF(t *testing.T) {
	out, err := RenderOne(db.EngineBrotherQL, renderTemplate(t), renderData(), 0, 4, 6, 1)
	require.NoError(t, err)
	assert.Equal(t, MIMEPDF, out.MIME)
	assert.True(t, strings.HasPrefix(string(out.Buffer), "%PDF-"))
}

func TestRenderUnknownEngine(t *testing.T) {
	_, err := Render(db.Engine("TSPL"), Job{Template: renderTemplate(t)})
	assert.ErrorIs(t, err, ErrUnsupportedEngine)
}

func TestRenderDefaultsFromTemplate(t *testing.T) {
	tmpl := renderTemplate(t)
	out, err := Render(db.EngineZPL, Job{
		Template: tmpl,
		Labels:   []Label{{Data: renderData()}},
	})
	require.NoError(t, err)

	// Geometry and DPI come off the template when the job leaves them zero.
	zpl := string(out.Buffer)
	assert.Contains(t, zpl, "^PW812")
	assert.Contains(t, zpl, "^LL1218")
}

func TestFileExtAndMIME(t *testing.T) {
	assert.Equal(t, ".zpl", FileExt(db.EngineZPL))
	assert.Equal(t, ".pdf", FileExt(db.EnginePDF))
	assert.Equal(t, ".pdf", FileExt(db.EngineBrotherQL))
	assert.Equal(t, MIMEZPL, MIMEFor(db.EngineZPL))
	assert.Equal(t, MIMEPDF, MIMEFor(db.EnginePDF))
}
