package engine

import (
	"math"

	"github.com/samirrijal/lplace/internal/core/domain"
	"github.com/samirrijal/lplace/internal/pkg/geospatial"
)

const (
	// gridZoom is the reference zoom whose world-pixel plane the grid is laid on.
	gridZoom = 18.0
	// gridCell is the cell edge in world pixels at gridZoom.
	gridCell = 256.0
)

// gridCols is the number of cell columns around the world at gridZoom.
var gridCols = int64(geospatial.WorldSize(gridZoom) / gridCell)

type cellKey struct{ X, Y int64 }

// grid maps quantized world-pixel cells to the ids of strokes with at least
// one point in that cell. It only narrows the candidates for an erase; the
// exact distance test still decides which points go.
type grid struct {
	cells map[cellKey]map[string]struct{}
}

func newGrid() *grid {
	return &grid{cells: make(map[cellKey]map[string]struct{})}
}

func cellOf(p domain.Point) cellKey {
	w := geospatial.ToWorld(p, gridZoom)
	return cellKey{X: wrapCol(int64(math.Floor(w.X / gridCell))), Y: int64(math.Floor(w.Y / gridCell))}
}

// wrapCol folds a column index onto the world, so ±180 share a column and a
// query window may run past either edge.
func wrapCol(x int64) int64 {
	x %= gridCols
	if x < 0 {
		x += gridCols
	}
	return x
}

func (g *grid) insert(s domain.Stroke) {
	for _, p := range s.Points {
		k := cellOf(p)
		ids, ok := g.cells[k]
		if !ok {
			ids = make(map[string]struct{})
			g.cells[k] = ids
		}
		ids[s.ID] = struct{}{}
	}
}

func (g *grid) remove(s domain.Stroke) {
	for _, p := range s.Points {
		k := cellOf(p)
		ids, ok := g.cells[k]
		if !ok {
			continue
		}
		delete(ids, s.ID)
		if len(ids) == 0 {
			delete(g.cells, k)
		}
	}
}

// candidates returns the ids of strokes that may have a point within radius
// screen pixels (at zoom) of epicenter.
func (g *grid) candidates(epicenter domain.Point, radius, zoom float64) map[string]struct{} {
	out := make(map[string]struct{})
	if len(g.cells) == 0 {
		return out
	}

	reach := radius * math.Exp2(gridZoom-zoom)
	c := geospatial.ToWorld(epicenter, gridZoom)
	minX := int64(math.Floor((c.X - reach) / gridCell))
	maxX := int64(math.Floor((c.X + reach) / gridCell))
	minY := int64(math.Floor((c.Y - reach) / gridCell))
	maxY := int64(math.Floor((c.Y + reach) / gridCell))

	span := float64(maxX-minX+1) * float64(maxY-minY+1)
	if span > float64(len(g.cells)) {
		// Walking occupied cells is cheaper than walking the query window.
		for k, ids := range g.cells {
			if wrapCol(k.X-minX) > maxX-minX || k.Y < minY || k.Y > maxY {
				continue
			}
			for id := range ids {
				out[id] = struct{}{}
			}
		}
		return out
	}

	for x := minX; x <= maxX; x++ {
		for y := minY; y <= maxY; y++ {
			for id := range g.cells[cellKey{X: wrapCol(x), Y: y}] {
				out[id] = struct{}{}
			}
		}
	}
	return out
}
