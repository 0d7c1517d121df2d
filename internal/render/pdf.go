package render

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"strings"
	"time"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/code128"
	"github.com/boombuler/barcode/ean"
	"github.com/boombuler/barcode/qr"
	"github.com/jung-kurt/gofpdf"

	"github.com/ovenfresh/labelpress/internal/label"
	"github.com/ovenfresh/labelpress/internal/resolve"
)

const ptPerIn = 72.0

// pdfEpoch pins the document creation date so rendering the same job twice
// yields byte-identical output.
var pdfEpoch = time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)

// renderPDF emits one page per label (repeated per copy), page size equal to
// the label's physical dimensions at 72 points per inch.
func renderPDF(job Job) (Output, error) {
	wPt := job.WidthIn * ptPerIn
	hPt := job.HeightIn * ptPerIn

	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		UnitStr: "pt",
		Size:    gofpdf.SizeType{Wd: wPt, Ht: hPt},
	})
	pdf.SetCreationDate(pdfEpoch)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetMargins(0, 0, 0)

	for _, lbl := range job.Labels {
		for copyN := 0; copyN < lbl.Copies; copyN++ {
			pdf.AddPage()
			err := pdfLabel(pdf, job, lbl)
			// gofpdf latches element failures (e.g. a bad embedded image) on
			// the document, which would void every page at Output time. Clear
			// it and degrade just this label to the placeholder.
			if pdf.Err() {
				if err == nil {
					err = pdf.Error()
				}
				pdf.ClearError()
			}
			if err != nil {
				pdfErrorLabel(pdf, wPt, hPt, lbl.ItemID)
			}
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return Output{}, fmt.Errorf("failed to write pdf: %w", err)
	}
	return Output{MIME: MIMEPDF, Buffer: buf.Bytes()}, nil
}

func pdfLabel(pdf *gofpdf.Fpdf, job Job, lbl Label) error {
	if job.Template.CornerRadiusIn > 0 {
		pdf.SetLineWidth(0.5)
		pdf.RoundedRect(0, 0, job.WidthIn*ptPerIn, job.HeightIn*ptPerIn,
			job.Template.CornerRadiusIn*ptPerIn, "1234", "D")
	}

	for _, elem := range job.Template.Apply(map[string]string(lbl.Data)) {
		var err error
		switch elem.Type {
		case label.ElementText:
			pdfText(pdf, &elem, lbl.Data, job)
		case label.ElementBarcode:
			err = pdfBarcode(pdf, &elem, lbl.Data, job)
		case label.ElementImage:
			pdfImage(pdf, &elem, lbl.Data)
		case label.ElementBox:
			pdfBox(pdf, &elem)
		case label.ElementLine:
			pdfLine(pdf, &elem)
		default:
			err = fmt.Errorf("unsupported element type: %s", elem.Type)
		}
		if err != nil {
			return fmt.Errorf("error rendering %s element %q: %w", elem.Type, elem.ID, err)
		}
	}
	return nil
}

func pdfText(pdf *gofpdf.Fpdf, elem *label.Element, data resolve.Data, job Job) {
	value := elem.ResolveValue(map[string]string(data))

	style := ""
	if elem.Bold {
		style = "B"
	}
	pdf.SetFont(fontFamily(elem.Font), style, elem.FontSize)

	x := elem.X * ptPerIn
	y := elem.Y * ptPerIn
	w := elem.W * ptPerIn
	if w == 0 {
		w = (job.WidthIn - elem.X) * ptPerIn
	}
	lineHt := elem.FontSize * elem.LineHeight
	if lineHt == 0 {
		lineHt = elem.FontSize * 1.2
	}

	align := "L"
	switch elem.Align {
	case "center":
		align = "C"
	case "right":
		align = "R"
	}

	pdf.SetXY(x, y)
	if elem.Wrap {
		pdf.MultiCell(w, lineHt, value, "", align, false)
	} else {
		pdf.CellFormat(w, lineHt, value, "", 0, align, false, 0, "")
	}
}

func fontFamily(font string) string {
	switch strings.ToLower(font) {
	case "courier", "mono":
		return "Courier"
	case "times", "serif":
		return "Times"
	default:
		return "Helvetica"
	}
}

func pdfBarcode(pdf *gofpdf.Fpdf, elem *label.Element, data resolve.Data, job Job) error {
	value := elem.ResolveValue(map[string]string(data))
	if value == "" {
		return fmt.Errorf("barcode element has empty payload")
	}

	w := elem.W
	if w == 0 {
		w = job.WidthIn - elem.X
	}
	h := elem.H

	var (
		bc  barcode.Barcode
		err error
	)
	switch elem.Symbology {
	case label.SymbologyQR:
		bc, err = qr.Encode(value, qr.M, qr.Auto)
		// QR codes are square; use the smaller extent for both axes.
		if h < w {
			w = h
		} else {
			h = w
		}
	case label.SymbologyEAN13, label.SymbologyUPC:
		bc, err = ean.Encode(value)
	default:
		bc, err = code128.Encode(value)
	}
	if err != nil {
		return fmt.Errorf("failed to encode %s barcode: %w", elem.Symbology, err)
	}

	// Scale in device pixels at the declared DPI so the PNG is crisp when
	// the page is printed at physical size.
	pxW := int(w * float64(job.DPI))
	pxH := int(h * float64(job.DPI))
	if pxW < 1 || pxH < 1 {
		return fmt.Errorf("barcode element %q has zero size", elem.ID)
	}
	scaled, err := barcode.Scale(bc, pxW, pxH)
	if err != nil {
		return fmt.Errorf("failed to scale barcode: %w", err)
	}

	// The scaler yields 16-bit grayscale, which gofpdf's PNG reader rejects.
	// Redraw into an 8-bit image before encoding.
	gray := image.NewGray(scaled.Bounds())
	draw.Draw(gray, gray.Bounds(), scaled, scaled.Bounds().Min, draw.Src)

	var pngBuf bytes.Buffer
	if err := png.Encode(&pngBuf, gray); err != nil {
		return fmt.Errorf("failed to encode barcode png: %w", err)
	}

	// Image names must be unique per payload+geometry or gofpdf reuses the
	// first registration.
	sum := sha256.Sum256(append([]byte(fmt.Sprintf("%s|%dx%d|", elem.Symbology, pxW, pxH)), value...))
	name := "bc-" + hex.EncodeToString(sum[:8])

	opts := gofpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader(name, opts, &pngBuf)
	pdf.ImageOptions(name, elem.X*ptPerIn, elem.Y*ptPerIn, w*ptPerIn, h*ptPerIn, false, opts, 0, "")
	return nil
}

// pdfImage draws a bound image or, when the source cannot be loaded, a
// bordered placeholder so the rest of the label still prints.
func pdfImage(pdf *gofpdf.Fpdf, elem *label.Element, data resolve.Data) {
	w := elem.W * ptPerIn
	h := elem.H * ptPerIn
	if w == 0 {
		w = 0.5 * ptPerIn
	}
	if h == 0 {
		h = 0.5 * ptPerIn
	}

	src := elem.Source
	if src == "logo" || src == "" {
		// Logo bytes are resolved into the data record ahead of render time;
		// renders stay deterministic and offline.
		src = label.Lookup(map[string]string(data), "logo")
	}
	if elem.Bind != "" {
		src = label.Lookup(map[string]string(data), elem.Bind)
	}

	img := loadImage(src)
	if img == nil {
		x := elem.X * ptPerIn
		y := elem.Y * ptPerIn
		pdf.SetLineWidth(0.75)
		pdf.Rect(x, y, w, h, "D")
		pdf.Line(x, y, x+w, y+h)
		pdf.Line(x+w, y, x, y+h)
		return
	}

	sum := sha256.Sum256(img)
	name := "img-" + hex.EncodeToString(sum[:8])
	opts := gofpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(img))
	pdf.ImageOptions(name, elem.X*ptPerIn, elem.Y*ptPerIn, w, h, false, opts, 0, "")
}

// loadImage resolves an image source to PNG bytes. Accepted forms are a
// data URI or raw base64; external URLs are never fetched at render time,
// so an http(s) source falls through to the placeholder.
func loadImage(src string) []byte {
	if src == "" || strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") {
		return nil
	}
	if i := strings.Index(src, ";base64,"); i >= 0 {
		src = src[i+len(";base64,"):]
	}
	img, err := base64.StdEncoding.DecodeString(src)
	if err != nil || len(img) == 0 {
		return nil
	}
	// Only PNG payloads are registered downstream.
	if !bytes.HasPrefix(img, []byte("\x89PNG")) {
		return nil
	}
	return img
}

func pdfBox(pdf *gofpdf.Fpdf, elem *label.Element) {
	pdf.SetLineWidth(elem.StrokeWidth * ptPerIn)
	style := "D"
	if elem.Fill {
		style = "F"
	}
	pdf.Rect(elem.X*ptPerIn, elem.Y*ptPerIn, elem.W*ptPerIn, elem.H*ptPerIn, style)
}

func pdfLine(pdf *gofpdf.Fpdf, elem *label.Element) {
	pdf.SetLineWidth(elem.StrokeWidth * ptPerIn)
	x := elem.X * ptPerIn
	y := elem.Y * ptPerIn
	pdf.Line(x, y, x+elem.W*ptPerIn, y+elem.H*ptPerIn)
}

// pdfErrorLabel overwrites the current page with a visibly marked failure
// placeholder: border, "ERROR", and the item identifier.
func pdfErrorLabel(pdf *gofpdf.Fpdf, wPt, hPt float64, itemID string) {
	pdf.SetLineWidth(2)
	pdf.Rect(4, 4, wPt-8, hPt-8, "D")
	pdf.SetFont("Helvetica", "B", 24)
	pdf.SetXY(8, hPt/3)
	pdf.CellFormat(wPt-16, 28, "ERROR", "", 0, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.SetXY(8, hPt/3+30)
	pdf.CellFormat(wPt-16, 12, itemID, "", 0, "C", false, 0, "")
}
