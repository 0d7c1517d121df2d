package render

import (
	"fmt"
	"strings"

	"github.com/ovenfresh/labelpress/internal/label"
	"github.com/ovenfresh/labelpress/internal/resolve"
)

// renderZPL emits one ^XA..^XZ block per label, all coordinates in device
// dots at the job's DPI.
func renderZPL(job Job) (Output, error) {
	var sb strings.Builder
	dpi := job.DPI

	for _, lbl := range job.Labels {
		block, err := zplLabel(job, lbl, dpi)
		if err != nil {
			// One bad label must not abort its siblings; emit a marked
			// placeholder the operator can spot on the roll.
			block = zplErrorLabel(job, lbl, dpi)
		}
		sb.WriteString(block)
	}

	return Output{MIME: MIMEZPL, Buffer: []byte(sb.String())}, nil
}

func zplLabel(job Job, lbl Label, dpi int) (string, error) {
	var sb strings.Builder

	widthDots := inToDots(job.WidthIn, dpi)
	heightDots := inToDots(job.HeightIn, dpi)

	sb.WriteString("^XA\n")
	sb.WriteString("^CI28\n")
	sb.WriteString(fmt.Sprintf("^PW%d\n", widthDots))
	sb.WriteString(fmt.Sprintf("^LL%d\n", heightDots))
	sb.WriteString("^LH0,0\n")

	for _, elem := range job.Template.Apply(map[string]string(lbl.Data)) {
		cmd, err := zplElement(&elem, lbl.Data, job, dpi)
		if err != nil {
			return "", fmt.Errorf("error generating %s element %q: %w", elem.Type, elem.ID, err)
		}
		if cmd != "" {
			sb.WriteString(cmd)
			sb.WriteString("\n")
		}
	}

	sb.WriteString(fmt.Sprintf("^PQ%d\n", lbl.Copies))
	sb.WriteString("^XZ\n")
	return sb.String(), nil
}

func zplElement(elem *label.Element, data resolve.Data, job Job, dpi int) (string, error) {
	switch elem.Type {
	case label.ElementText:
		return zplText(elem, data, job, dpi), nil
	case label.ElementBarcode:
		return zplBarcode(elem, data, dpi), nil
	case label.ElementImage:
		return zplImagePlaceholder(elem, dpi), nil
	case label.ElementBox:
		return zplBox(elem, dpi), nil
	case label.ElementLine:
		return zplLine(elem, dpi), nil
	default:
		return "", fmt.Errorf("unsupported element type: %s", elem.Type)
	}
}

// zplTextWidthFactor approximates the rendered width of one character as a
// fraction of the font height. ZPL has no alignment primitive and we do not
// consult real font metrics; this is a known-approximate heuristic, good
// enough to center short fields on a label.
const zplTextWidthFactor = 0.6

func zplText(elem *label.Element, data resolve.Data, job Job, dpi int) string {
	value := elem.ResolveValue(map[string]string(data))
	value = escapeZPL(value)

	fontH := inToDots(elem.FontSize/72.0, dpi)
	if fontH < 10 {
		fontH = 10
	}
	fontW := 0
	if elem.Bold {
		// No bold weight in the bitmap fonts; widen the glyphs instead.
		fontW = fontH * 11 / 10
	}

	boxW := inToDots(elem.W, dpi)
	if boxW == 0 {
		boxW = inToDots(job.WidthIn-elem.X, dpi)
	}

	lines := []string{value}
	if elem.Wrap && boxW > 0 {
		lines = wrapByEstimate(value, boxW, fontH)
	}

	var sb strings.Builder
	y := inToDots(elem.Y, dpi)
	lineStep := int(float64(fontH) * elem.LineHeight)
	if lineStep == 0 {
		lineStep = fontH
	}
	for i, line := range lines {
		x := inToDots(elem.X, dpi)
		est := int(float64(len(line)) * float64(fontH) * zplTextWidthFactor)
		switch elem.Align {
		case "center":
			if est < boxW {
				x += (boxW - est) / 2
			}
		case "right":
			if est < boxW {
				x += boxW - est
			}
		}
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(fmt.Sprintf("^FO%d,%d^A0N,%d,%d^FD%s^FS", x, y, fontH, fontW, line))
		y += lineStep
	}
	return sb.String()
}

// wrapByEstimate breaks text into lines that fit boxW dots, using the same
// width heuristic as alignment.
func wrapByEstimate(text string, boxW, fontH int) []string {
	charW := float64(fontH) * zplTextWidthFactor
	maxChars := int(float64(boxW) / charW)
	if maxChars < 1 {
		maxChars = 1
	}

	var lines []string
	var current string
	for _, word := range strings.Fields(text) {
		candidate := word
		if current != "" {
			candidate = current + " " + word
		}
		if len(candidate) <= maxChars {
			current = candidate
			continue
		}
		if current != "" {
			lines = append(lines, current)
		}
		// A single word longer than the line is hard-split.
		for len(word) > maxChars {
			lines = append(lines, word[:maxChars])
			word = word[maxChars:]
		}
		current = word
	}
	if current != "" {
		lines = append(lines, current)
	}
	if len(lines) == 0 {
		lines = []string{""}
	}
	return lines
}

func zplBarcode(elem *label.Element, data resolve.Data, dpi int) string {
	value := escapeZPL(elem.ResolveValue(map[string]string(data)))
	x := inToDots(elem.X, dpi)
	y := inToDots(elem.Y, dpi)
	h := inToDots(elem.H, dpi)
	if h == 0 {
		h = inToDots(0.5, dpi)
	}

	switch elem.Symbology {
	case label.SymbologyQR:
		mag := dpi / 50
		if mag < 2 {
			mag = 2
		}
		return fmt.Sprintf("^FO%d,%d^BQN,2,%d^FDMA,%s^FS", x, y, mag, value)
	case label.SymbologyEAN13:
		return fmt.Sprintf("^FO%d,%d^BY2^BEN,%d,Y,N^FD%s^FS", x, y, h, value)
	case label.SymbologyUPC:
		return fmt.Sprintf("^FO%d,%d^BY2^BUN,%d,Y,N,Y^FD%s^FS", x, y, h, value)
	default:
		return fmt.Sprintf("^FO%d,%d^BY2^BCN,%d,Y,N,N^FD%s^FS", x, y, h, value)
	}
}

// zplImagePlaceholder draws a bordered box where the image would sit.
// Raster upload (~DG) is not implemented for thermal devices; profiles that
// need artwork use the PDF engine.
func zplImagePlaceholder(elem *label.Element, dpi int) string {
	x := inToDots(elem.X, dpi)
	y := inToDots(elem.Y, dpi)
	w := inToDots(elem.W, dpi)
	h := inToDots(elem.H, dpi)
	if w == 0 {
		w = inToDots(0.5, dpi)
	}
	if h == 0 {
		h = inToDots(0.5, dpi)
	}
	return fmt.Sprintf("^FO%d,%d^GB%d,%d,2^FS", x, y, w, h)
}

func zplBox(elem *label.Element, dpi int) string {
	x := inToDots(elem.X, dpi)
	y := inToDots(elem.Y, dpi)
	w := inToDots(elem.W, dpi)
	h := inToDots(elem.H, dpi)
	thickness := inToDots(elem.StrokeWidth, dpi)
	if thickness < 1 {
		thickness = 1
	}
	if elem.Fill {
		thickness = min(w, h)
	}
	return fmt.Sprintf("^FO%d,%d^GB%d,%d,%d^FS", x, y, w, h, thickness)
}

// zplLine renders as a thin filled box; ZPL's ^GB cannot draw arbitrary
// diagonals.
func zplLine(elem *label.Element, dpi int) string {
	x := inToDots(elem.X, dpi)
	y := inToDots(elem.Y, dpi)
	w := inToDots(elem.W, dpi)
	thickness := inToDots(elem.StrokeWidth, dpi)
	if thickness < 1 {
		thickness = 1
	}
	if w == 0 {
		w = thickness
	}
	return fmt.Sprintf("^FO%d,%d^GB%d,%d,%d^FS", x, y, w, thickness, thickness)
}

func zplErrorLabel(job Job, lbl Label, dpi int) string {
	widthDots := inToDots(job.WidthIn, dpi)
	heightDots := inToDots(job.HeightIn, dpi)

	var sb strings.Builder
	sb.WriteString("^XA\n")
	sb.WriteString(fmt.Sprintf("^PW%d\n^LL%d\n^LH0,0\n", widthDots, heightDots))
	sb.WriteString(fmt.Sprintf("^FO10,10^GB%d,%d,4^FS\n", widthDots-20, heightDots-20))
	sb.WriteString("^FO30,40^A0N,60,0^FDERROR^FS\n")
	sb.WriteString(fmt.Sprintf("^FO30,120^A0N,30,0^FD%s^FS\n", escapeZPL(lbl.ItemID)))
	sb.WriteString("^PQ1\n^XZ\n")
	return sb.String()
}

func inToDots(in float64, dpi int) int {
	return int(in*float64(dpi) + 0.5)
}

// escapeZPL strips the ZPL control prefixes from field data. ^ and ~ start
// commands mid-field; there is no inline escape, so they are replaced.
func escapeZPL(s string) string {
	s = strings.ReplaceAll(s, "^", " ")
	s = strings.ReplaceAll(s, "~", " ")
	s = strings.ReplaceAll(s, "\\", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\r", "")
	return s
}
