package render

import (
	"image/color"
	"io"

	"github.com/jung-kurt/gofpdf"

	"github.com/samirrijal/lplace/internal/core/domain"
)

// PDF paints onto a single-page document sized to the viewport, one point
// per pixel.
type PDF struct {
	doc *gofpdf.Fpdf
}

// NewPDF returns an empty PDF surface. Clear must be called before drawing.
func NewPDF() *PDF {
	return &PDF{}
}

// Clear starts a fresh document.
func (p *PDF) Clear(width, height int) {
	w, h := float64(width), float64(height)
	if w <= 0 {
		w = 1
	}
	if h <= 0 {
		h = 1
	}
	// Portrait keeps Wd x Ht as given; landscape would swap them.
	p.doc = gofpdf.NewCustom(&gofpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "pt",
		Size:           gofpdf.SizeType{Wd: w, Ht: h},
	})
	p.doc.SetMargins(0, 0, 0)
	p.doc.SetAutoPageBreak(false, 0)
	p.doc.AddPage()
}

func (p *PDF) setAlpha(c color.NRGBA) {
	p.doc.SetAlpha(float64(c.A)/255, "Normal")
}

// Path strokes a polyline with round caps and joins.
func (p *PDF) Path(points []domain.Pixel, c color.NRGBA, width float64) {
	if p.doc == nil || len(points) == 0 {
		return
	}
	p.setAlpha(c)
	if len(points) == 1 {
		p.doc.SetFillColor(int(c.R), int(c.G), int(c.B))
		p.doc.Circle(points[0].X, points[0].Y, width/2, "F")
		return
	}
	p.doc.SetDrawColor(int(c.R), int(c.G), int(c.B))
	p.doc.SetLineWidth(width)
	p.doc.SetLineCapStyle("round")
	p.doc.SetLineJoinStyle("round")
	p.doc.MoveTo(points[0].X, points[0].Y)
	for _, pt := range points[1:] {
		p.doc.LineTo(pt.X, pt.Y)
	}
	p.doc.DrawPath("D")
}

// Marks fills a footprint-sized square centred on each point.
func (p *PDF) Marks(points []domain.Pixel, c color.NRGBA, footprint float64) {
	if p.doc == nil {
		return
	}
	p.setAlpha(c)
	p.doc.SetFillColor(int(c.R), int(c.G), int(c.B))
	half := footprint / 2
	for _, pt := range points {
		p.doc.Rect(pt.X-half, pt.Y-half, footprint, footprint, "F")
	}
}

// Write encodes the document. A surface never cleared yields a blank page.
func (p *PDF) Write(w io.Writer) error {
	if p.doc == nil {
		p.Clear(1, 1)
	}
	return p.doc.Output(w)
}
