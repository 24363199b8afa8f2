package geospatial

import (
	"math"

	"github.com/samirrijal/lplace/internal/core/domain"
)

const (
	earthRadiusMeters = 6371000.0
	metersPerDegree   = 111320.0
)

// Distance returns the great-circle distance in meters between a and b.
func Distance(a, b domain.Point) float64 {
	dLat := toRad(b.Lat - a.Lat)
	dLon := toRad(b.Lon - a.Lon)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(a.Lat))*math.Cos(toRad(b.Lat))*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	return 2 * earthRadiusMeters * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// Around returns a box enclosing the circle of radiusMeters around center.
// It is a cheap prefilter for Distance, not an exact bound near the poles.
// Near the antimeridian MinLon or MaxLon run past ±180; Within handles that.
func Around(center domain.Point, radiusMeters float64) domain.Bounds {
	latDelta := radiusMeters / metersPerDegree
	lonDelta := radiusMeters / (metersPerDegree * math.Max(math.Cos(toRad(center.Lat)), 1e-6))
	return domain.Bounds{
		MinLat: center.Lat - latDelta,
		MinLon: center.Lon - lonDelta,
		MaxLat: center.Lat + latDelta,
		MaxLon: center.Lon + lonDelta,
	}
}

// Within reports whether any of points lies within radiusMeters of center.
func Within(center domain.Point, radiusMeters float64, points []domain.Point) bool {
	box := Around(center, radiusMeters)
	latDelta, lonDelta := box.MaxLat-center.Lat, box.MaxLon-center.Lon
	for _, p := range points {
		if math.Abs(p.Lat-center.Lat) > latDelta || math.Abs(wrapLon(p.Lon-center.Lon)) > lonDelta {
			continue
		}
		if Distance(center, p) <= radiusMeters {
			return true
		}
	}
	return false
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
