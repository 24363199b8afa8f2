package geospatial

import (
	"math"

	"github.com/samirrijal/lplace/internal/core/domain"
)

const (
	// TileSize is the edge of one map tile in pixels at integer zoom.
	TileSize = 256.0
	// MaxLatitude is the Web Mercator latitude limit.
	MaxLatitude = 85.0511287798066
)

// Mercator converts between geographic coordinates and viewport pixels using
// the spherical Web Mercator projection used by slippy-map tile servers.
// The zero value is ready to use.
type Mercator struct{}

// WorldSize returns the width of the whole world in pixels at zoom.
func WorldSize(zoom float64) float64 {
	return TileSize * math.Exp2(zoom)
}

// ToWorld projects p to absolute world pixels at zoom, independent of any viewport.
func ToWorld(p domain.Point, zoom float64) domain.Pixel {
	ws := WorldSize(zoom)
	lat := math.Max(-MaxLatitude, math.Min(MaxLatitude, p.Lat))
	sinLat := math.Sin(toRad(lat))
	return domain.Pixel{
		X: (p.Lon + 180) / 360 * ws,
		Y: (0.5 - math.Log((1+sinLat)/(1-sinLat))/(4*math.Pi)) * ws,
	}
}

// FromWorld is the inverse of ToWorld. Longitudes are wrapped into [-180,180].
func FromWorld(px domain.Pixel, zoom float64) domain.Point {
	ws := WorldSize(zoom)
	n := math.Pi - 2*math.Pi*px.Y/ws
	return domain.Point{
		Lat: toDeg(math.Atan(math.Sinh(n))),
		Lon: wrapLon(px.X/ws*360 - 180),
	}
}

// ToScreen projects p into the viewport described by v. Points are placed on
// the world copy nearest the centre, so a view straddling the antimeridian
// shows both sides next to each other.
func (Mercator) ToScreen(p domain.Point, v domain.ViewState) domain.Pixel {
	w := ToWorld(p, v.Zoom)
	c := ToWorld(v.Center, v.Zoom)
	return domain.Pixel{
		X: wrapX(w.X-c.X, WorldSize(v.Zoom)) + float64(v.Width)/2,
		Y: w.Y - c.Y + float64(v.Height)/2,
	}
}

// ToGeo converts a viewport pixel back to a geographic coordinate.
func (Mercator) ToGeo(px domain.Pixel, v domain.ViewState) domain.Point {
	c := ToWorld(v.Center, v.Zoom)
	return FromWorld(domain.Pixel{
		X: c.X + px.X - float64(v.Width)/2,
		Y: c.Y + px.Y - float64(v.Height)/2,
	}, v.Zoom)
}

// PixelDistance is the screen distance between a and b at zoom, the short way
// round the antimeridian. It does not depend on the viewport centre, so every
// client computes the same value.
func PixelDistance(a, b domain.Point, zoom float64) float64 {
	pa, pb := ToWorld(a, zoom), ToWorld(b, zoom)
	return math.Hypot(wrapX(pa.X-pb.X, WorldSize(zoom)), pa.Y-pb.Y)
}

// wrapX shifts a horizontal world-pixel offset into [-ws/2, ws/2].
func wrapX(dx, ws float64) float64 {
	if dx >= -ws/2 && dx <= ws/2 {
		return dx
	}
	dx = math.Mod(dx+ws/2, ws)
	if dx < 0 {
		dx += ws
	}
	return dx - ws/2
}

func wrapLon(lon float64) float64 {
	if lon >= -180 && lon <= 180 {
		return lon
	}
	lon = math.Mod(lon+180, 360)
	if lon < 0 {
		lon += 360
	}
	return lon - 180
}

func toDeg(rad float64) float64 {
	return rad * 180 / math.Pi
}
