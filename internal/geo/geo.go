// Package geo provides great-circle math over a spherical Earth.
package geo

import "math"

// EarthRadiusKm is the spherical Earth radius used by DistanceKm.
const EarthRadiusKm = 6371

// DistanceKm calculates the great-circle distance between two points in
// kilometers using the haversine formula. Pure and symmetric; zero for
// identical points.
func DistanceKm(lat1, lng1, lat2, lng2 float64) float64 {
	lat1Rad := lat1 * math.Pi / 180
	lat2Rad := lat2 * math.Pi / 180
	deltaLat := (lat2 - lat1) * math.Pi / 180
	deltaLng := (lng2 - lng1) * math.Pi / 180

	a := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(deltaLng/2)*math.Sin(deltaLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusKm * c
}
