package systems

import (
	"math"

	"github.com/golang/geo/s2"
)

// GreatCirclePoints returns n points along the great circle from (lon0, lat0)
// to (lon1, lat1), both endpoints included. n == 1 yields the start point.
func GreatCirclePoints(lon0, lat0, lon1, lat1 float64, n int) (lons, lats []float64) {
	lons = make([]float64, n)
	lats = make([]float64, n)
	if n == 0 {
		return lons, lats
	}
	if n == 1 || (lon0 == lon1 && lat0 == lat1) {
		for i := range lons {
			lons[i], lats[i] = lon0, lat0
		}
		return lons, lats
	}

	a := s2.PointFromLatLng(s2.LatLngFromDegrees(lat0, lon0))
	b := s2.PointFromLatLng(s2.LatLngFromDegrees(lat1, lon1))
	for i := 0; i < n; i++ {
		switch i {
		case 0:
			lons[i], lats[i] = lon0, lat0
		case n - 1:
			lons[i], lats[i] = lon1, lat1
		default:
			ll := s2.LatLngFromPoint(s2.Interpolate(float64(i)/float64(n-1), a, b))
			lons[i], lats[i] = ll.Lng.Degrees(), ll.Lat.Degrees()
		}
	}
	return lons, lats
}

// Antipodal reports whether two points lie on opposite sides of the globe,
// where the great circle between them is undefined.
func Antipodal(lon0, lat0, lon1, lat1 float64) bool {
	a := s2.PointFromLatLng(s2.LatLngFromDegrees(lat0, lon0))
	b := s2.PointFromLatLng(s2.LatLngFromDegrees(lat1, lon1))
	return a.Distance(b).Radians() > math.Pi-antipodalTolerance
}

// antipodalTolerance is in radians, about 6 m on the Earth's surface.
const antipodalTolerance = 1e-6
