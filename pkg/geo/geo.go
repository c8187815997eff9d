// Package geo provides the distance math used for stop inference and fare
// staging.
package geo

import "math"

const earthRadiusKm = 6371.0

// Point is a GPS coordinate in decimal degrees.
type Point struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// IsZero reports whether the point carries no coordinates. Devices with a
// cold GPS fix report (0, 0), which is in the Gulf of Guinea and never on a
// served route.
func (p Point) IsZero() bool {
	return p.Latitude == 0 && p.Longitude == 0
}

// HaversineKm returns the great-circle distance between a and b in
// kilometers.
func HaversineKm(a, b Point) float64 {
	lat1 := a.Latitude * math.Pi / 180
	lon1 := a.Longitude * math.Pi / 180
	lat2 := b.Latitude * math.Pi / 180
	lon2 := b.Longitude * math.Pi / 180

	dLat := lat2 - lat1
	dLon := lon2 - lon1

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return earthRadiusKm * 2 * math.Asin(math.Sqrt(h))
}
