package engine

import (
	"github.com/samirrijal/lplace/internal/core/domain"
	"github.com/samirrijal/lplace/internal/pkg/geospatial"
)

// erase removes from r every point closer than radius screen pixels (at zoom)
// to epicenter. Strokes that fall below their mode's minimum point count are
// dropped. It returns the number of points removed.
//
// r only ever holds strokes of a single owner, which is what scopes an erase
// to the acting owner.
func (r *record) erase(epicenter domain.Point, radius, zoom float64) int {
	if radius <= 0 || len(r.strokes) == 0 {
		return 0
	}
	candidates := r.grid.candidates(epicenter, radius, zoom)
	if len(candidates) == 0 {
		return 0
	}

	removed := 0
	kept := r.strokes[:0]
	for _, s := range r.strokes {
		if _, ok := candidates[s.ID]; !ok {
			kept = append(kept, s)
			continue
		}

		points := make([]domain.Point, 0, len(s.Points))
		for _, p := range s.Points {
			if geospatial.PixelDistance(p, epicenter, zoom) < radius {
				continue
			}
			points = append(points, p)
		}
		if len(points) == len(s.Points) {
			kept = append(kept, s)
			continue
		}

		removed += len(s.Points) - len(points)
		r.grid.remove(s)
		if len(points) < s.Mode.MinPoints() {
			delete(r.ids, s.ID)
			continue
		}
		s.Points = points
		r.grid.insert(s)
		kept = append(kept, s)
	}
	// Clear the tail so dropped strokes do not linger in the backing array.
	for i := len(kept); i < len(r.strokes); i++ {
		r.strokes[i] = domain.Stroke{}
	}
	r.strokes = kept
	return removed
}
