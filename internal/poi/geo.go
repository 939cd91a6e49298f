package poi

import (
	"fmt"
	"math"

	"homematch/internal/domain"
)

const earthRadiusM = 6371000.0

// Haversine returns the great-circle distance between two points in
// metres.
func Haversine(a, b domain.Coords) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return earthRadiusM * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// cacheKey rounds coordinates to three decimals (~100 m) so nearby
// requests collide on purpose. Namespaced for the shared store.
func cacheKey(loc domain.Coords, category domain.POICategory, radiusM float64) string {
	return fmt.Sprintf("poi:%.3f:%.3f:%s:%.0f",
		roundCoord(loc.Lat), roundCoord(loc.Lng), category, radiusM)
}

func roundCoord(v float64) float64 {
	return math.Round(v*1000) / 1000
}

func centroid(locs []domain.Coords) domain.Coords {
	var lat, lng float64
	for _, l := range locs {
		lat += l.Lat
		lng += l.Lng
	}
	n := float64(len(locs))
	return domain.Coords{Lat: lat / n, Lng: lng / n}
}
