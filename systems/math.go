package systems

import "math"

// EarthRadius is the mean Earth radius in metres used for advection.
const EarthRadius = 6371009.0

const (
	degToRad = math.Pi / 180
	radToDeg = 180 / math.Pi
)

// wrapLon wraps a longitude to [-180, 180).
func wrapLon(lon float64) float64 {
	lon = math.Mod(lon+180, 360)
	if lon < 0 {
		lon += 360
	}
	return lon - 180
}

// clampLat clamps a latitude to [-90, 90].
func clampLat(lat float64) float64 {
	return math.Max(-90, math.Min(90, lat))
}

// lerp interpolates linearly between a and b.
func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

// Displace moves (lon, lat) by u metres east and v metres north on a sphere.
func Displace(lon, lat, u, v float64) (float64, float64) {
	dLat := v / EarthRadius * radToDeg
	cosLat := math.Cos(lat * degToRad)
	dLon := 0.0
	if math.Abs(cosLat) > 1e-12 {
		dLon = u / (EarthRadius * cosLat) * radToDeg
	}
	return wrapLon(lon + dLon), clampLat(lat + dLat)
}

// Advect moves (lon, lat) with velocity (u, v) in m/s for dt seconds.
func Advect(lon, lat, u, v, dt float64) (float64, float64) {
	return Displace(lon, lat, u*dt, v*dt)
}

// Distance returns the great-circle distance in metres between two points.
func Distance(lon1, lat1, lon2, lat2 float64) float64 {
	dLat := (lat2 - lat1) * degToRad
	dLon := (lon2 - lon1) * degToRad
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*degToRad)*math.Cos(lat2*degToRad)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * EarthRadius * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}
