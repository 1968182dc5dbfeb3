// Package geo holds the geodesic math the engine uses. Pure functions,
// no I/O; the haversine formula here is the contract of record for any
// distance shown to a user.
package geo

import "math"

// EarthRadiusKm is the mean Earth radius used by the haversine formula.
const EarthRadiusKm = 6371.0

// kmPerDegreeLat is one degree of latitude (π·R/180).
const kmPerDegreeLat = math.Pi * EarthRadiusKm / 180.0

// DistanceKm returns the great-circle distance between two points in km.
// Symmetric, and zero (within float tolerance) for identical points.
func DistanceKm(lat1, lng1, lat2, lng2 float64) float64 {
	lat1r := lat1 * math.Pi / 180
	lat2r := lat2 * math.Pi / 180
	dLat := (lat2 - lat1) * math.Pi / 180
	dLng := (lng2 - lng1) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1r)*math.Cos(lat2r)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusKm * c
}

// BoundingBox returns a lat/lng box that fully contains the circle of
// radiusKm around the center. Coarse by construction: callers must refine
// with DistanceKm. Near the poles the longitude span degenerates to the
// full range.
func BoundingBox(lat, lng, radiusKm float64) (minLat, maxLat, minLng, maxLng float64) {
	dLat := radiusKm / kmPerDegreeLat
	minLat, maxLat = lat-dLat, lat+dLat

	cos := math.Cos(lat * math.Pi / 180)
	if cos < 1e-6 {
		return minLat, maxLat, -180, 180
	}
	dLng := radiusKm / (kmPerDegreeLat * cos)
	return minLat, maxLat, lng - dLng, lng + dLng
}
