// Package render encodes (template, resolved data) pairs into printer-ready
// bytes. Two real encodings exist: a page-description document (PDF, one
// page per label, positioned in points) and a line-oriented command language
// (ZPL, positioned in device dots). Brother QL devices are served PDF; see
// the engine table.
package render

import (
	"errors"
	"fmt"

	"github.com/ovenfresh/labelpress/internal/db"
	"github.com/ovenfresh/labelpress/internal/label"
	"github.com/ovenfresh/labelpress/internal/resolve"
)

var ErrUnsupportedEngine = errors.New("unsupported render engine")

const (
	MIMEPDF = "application/pdf"
	MIMEZPL = "text/plain"
)

// Job is one rendering unit: a template, physical geometry, and the labels
// to emit into a single output document.
type Job struct {
	Template *label.Template
	DPI      int
	WidthIn  float64
	HeightIn float64
	Labels   []Label
}

// Label is one label instance within a Job.
type Label struct {
	ItemID string
	Data   resolve.Data
	Copies int
}

type Output struct {
	MIME   string
	Buffer []byte
}

type renderFunc func(Job) (Output, error)

// Brother QL deliberately degrades to the page-description renderer: that
// device class is always served PDF today.
var engines = map[db.Engine]renderFunc{
	db.EngineZPL:       renderZPL,
	db.EnginePDF:       renderPDF,
	db.EngineBrotherQL: renderPDF,
}

// Render encodes a job for the given engine. Per-label failures inside the
// encoders do not surface here; they become visibly marked error placeholder
// labels so sibling labels in the same document survive.
func Render(engine db.Engine, job Job) (Output, error) {
	fn, ok := engines[engine]
	if !ok {
		return Output{}, fmt.Errorf("%w: %s", ErrUnsupportedEngine, engine)
	}
	if job.Template == nil {
		return Output{}, fmt.Errorf("render job has no template")
	}
	if job.DPI == 0 {
		job.DPI = job.Template.DPI
	}
	if job.WidthIn == 0 {
		job.WidthIn = job.Template.WidthIn
	}
	if job.HeightIn == 0 {
		job.HeightIn = job.Template.HeightIn
	}
	for i := range job.Labels {
		if job.Labels[i].Copies <= 0 {
			job.Labels[i].Copies = 1
		}
	}
	return fn(job)
}

// RenderOne is the single-label convenience used by previews and the job
// dispatcher.
func RenderOne(engine db.Engine, tmpl *label.Template, data resolve.Data, dpi int, widthIn, heightIn float64, copies int) (Output, error) {
	return Render(engine, Job{
		Template: tmpl,
		DPI:      dpi,
		WidthIn:  widthIn,
		HeightIn: heightIn,
		Labels:   []Label{{Data: data, Copies: copies}},
	})
}

// FileExt returns the artifact extension for an engine's output.
func FileExt(engine db.Engine) string {
	if engine == db.EngineZPL {
		return ".zpl"
	}
	return ".pdf"
}

// MIMEFor returns the MIME type an engine's output carries.
func MIMEFor(engine db.Engine) string {
	if engine == db.EngineZPL {
		return MIMEZPL
	}
	return MIMEPDF
}
