// Package render provides paint surfaces for the engine renderer.
package render

import (
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"

	"github.com/srwiley/rasterx"
	"golang.org/x/image/math/fixed"

	"github.com/samirrijal/lplace/internal/core/domain"
)

// Raster paints onto an in-memory RGBA image with rasterx. Identical call
// sequences produce byte-identical images.
type Raster struct {
	img        *image.RGBA
	background color.Color
}

// NewRaster returns a raster surface cleared to background. A nil
// background means fully transparent, which suits an overlay above map tiles.
func NewRaster(background color.Color) *Raster {
	if background == nil {
		background = color.Transparent
	}
	return &Raster{background: background}
}

// Clear resets the image to the background, reallocating on resize.
func (r *Raster) Clear(width, height int) {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	if r.img == nil || r.img.Bounds().Dx() != width || r.img.Bounds().Dy() != height {
		r.img = image.NewRGBA(image.Rect(0, 0, width, height))
	}
	draw.Draw(r.img, r.img.Bounds(), image.NewUniform(r.background), image.Point{}, draw.Src)
}

func (r *Raster) scanner() (*rasterx.ScannerGV, int, int) {
	w, h := r.img.Bounds().Dx(), r.img.Bounds().Dy()
	return rasterx.NewScannerGV(w, h, r.img, r.img.Bounds()), w, h
}

// Path strokes a polyline with round caps and joins.
func (r *Raster) Path(points []domain.Pixel, c color.NRGBA, width float64) {
	if r.img == nil || len(points) == 0 {
		return
	}
	scanner, w, h := r.scanner()

	if len(points) == 1 {
		f := rasterx.NewFiller(w, h, scanner)
		rasterx.AddCircle(points[0].X, points[0].Y, width/2, f)
		f.SetColor(c)
		f.Draw()
		return
	}

	d := rasterx.NewDasher(w, h, scanner)
	d.SetStroke(toFixed(width), toFixed(4), rasterx.RoundCap, rasterx.RoundCap,
		rasterx.RoundGap, rasterx.Round, nil, 0)
	d.SetColor(c)
	d.Start(toFixedP(points[0]))
	for _, p := range points[1:] {
		d.Line(toFixedP(p))
	}
	d.Stop(false)
	d.Draw()
}

// Marks fills a footprint-sized square centred on each point.
func (r *Raster) Marks(points []domain.Pixel, c color.NRGBA, footprint float64) {
	if r.img == nil || len(points) == 0 {
		return
	}
	scanner, w, h := r.scanner()
	f := rasterx.NewFiller(w, h, scanner)
	half := footprint / 2
	for _, p := range points {
		rasterx.AddRect(p.X-half, p.Y-half, p.X+half, p.Y+half, 0, f)
	}
	f.SetColor(c)
	f.Draw()
}

// Image returns the current frame. The caller must not modify it.
func (r *Raster) Image() *image.RGBA {
	return r.img
}

// WritePNG encodes the current frame.
func (r *Raster) WritePNG(w io.Writer) error {
	if r.img == nil {
		r.Clear(0, 0)
	}
	return png.Encode(w, r.img)
}

func toFixed(v float64) fixed.Int26_6 {
	return fixed.Int26_6(v * 64)
}

func toFixedP(p domain.Pixel) fixed.Point26_6 {
	return fixed.Point26_6{X: toFixed(p.X), Y: toFixed(p.Y)}
}
