package geo

import "math"

const earthRadiusMeters = 6371000.0

// Distance returns the great-circle distance in meters between two
// coordinates given in decimal degrees.
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	rad := math.Pi / 180
	dLat := (lat2 - lat1) * rad
	dLon := (lon2 - lon1) * rad
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*rad)*math.Cos(lat2*rad)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusMeters * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// Fence is the office geofence: a center and a radius in meters.
type Fence struct {
	Latitude     float64
	Longitude    float64
	RadiusMeters float64
}

func (f Fence) Distance(lat, lon float64) float64 {
	return Distance(f.Latitude, f.Longitude, lat, lon)
}

// Contains reports whether the point lies within the radius (inclusive).
func (f Fence) Contains(lat, lon float64) bool {
	return f.Distance(lat, lon) <= f.RadiusMeters
}
