package engine

import (
	"image/color"
	"strings"

	"github.com/srwiley/oksvg"

	"github.com/samirrijal/lplace/internal/core/domain"
)

// Surface is a paint target. Implementations must draw only what they are
// told between two Clear calls.
type Surface interface {
	// Clear erases everything and sizes the surface to the viewport.
	Clear(width, height int)
	// Path strokes a connected polyline. A single point is drawn as a dot.
	Path(points []domain.Pixel, c color.NRGBA, width float64)
	// Marks fills one square of edge footprint centred on each point.
	Marks(points []domain.Pixel, c color.NRGBA, footprint float64)
}

// Renderer repaints a Store into a viewport from scratch every time.
type Renderer struct {
	proj Projector
}

// NewRenderer returns a renderer using proj for every point.
func NewRenderer(proj Projector) *Renderer {
	return &Renderer{proj: proj}
}

// Render clears s and paints every stroke of st, owners in insertion order
// and strokes in record order. The output depends only on st and v.
func (r *Renderer) Render(s Surface, st *Store, v domain.ViewState) {
	s.Clear(v.Width, v.Height)
	var buf []domain.Pixel
	st.each(func(_ string, stroke domain.Stroke) {
		if len(stroke.Points) == 0 {
			return
		}
		buf = buf[:0]
		for _, p := range stroke.Points {
			buf = append(buf, r.proj.ToScreen(p, v))
		}
		c := ParseColor(stroke.Color)
		if stroke.Mode == domain.ModePixel {
			s.Marks(buf, c, stroke.Size)
			return
		}
		s.Path(buf, c, stroke.Size)
	})
}

// ParseColor reads any SVG colour: #rgb, #rrggbb, rgb() or a named colour.
// Anything else is opaque black.
func ParseColor(value string) color.NRGBA {
	c, err := oksvg.ParseSVGColor(strings.TrimSpace(value))
	if err != nil || c == nil {
		return color.NRGBA{A: 0xff}
	}
	return color.NRGBAModel.Convert(c).(color.NRGBA)
}
