package environment

import (
	"fmt"
	"time"

	"github.com/jonas-p/go-shp"
)

// Ring is a closed polygon ring of (lon, lat) vertices.
type Ring [][2]float64

// LandPolygon is one land shape. Rings are combined with the even-odd rule,
// so inner rings (lakes) are water.
type LandPolygon struct {
	Rings          []Ring
	MinLon, MinLat float64
	MaxLon, MaxLat float64
}

// NewLandPolygon builds a polygon from rings and computes its bounding box.
func NewLandPolygon(rings ...Ring) LandPolygon {
	p := LandPolygon{Rings: rings}
	first := true
	for _, r := range rings {
		for _, pt := range r {
			if first {
				p.MinLon, p.MaxLon = pt[0], pt[0]
				p.MinLat, p.MaxLat = pt[1], pt[1]
				first = false
				continue
			}
			p.MinLon = min(p.MinLon, pt[0])
			p.MaxLon = max(p.MaxLon, pt[0])
			p.MinLat = min(p.MinLat, pt[1])
			p.MaxLat = max(p.MaxLat, pt[1])
		}
	}
	return p
}

// Contains reports whether (lon, lat) is inside the polygon.
func (p *LandPolygon) Contains(lon, lat float64) bool {
	if lon < p.MinLon || lon > p.MaxLon || lat < p.MinLat || lat > p.MaxLat {
		return false
	}
	inside := false
	for _, r := range p.Rings {
		if ringContains(r, lon, lat) {
			inside = !inside
		}
	}
	return inside
}

func ringContains(r Ring, x, y float64) bool {
	inside := false
	n := len(r)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		xi, yi := r[i][0], r[i][1]
		xj, yj := r[j][0], r[j][1]
		if (yi > y) != (yj > y) && x < (xj-xi)*(y-yi)/(yj-yi)+xi {
			inside = !inside
		}
	}
	return inside
}

// LandPolygons is a land_binary_mask reader backed by polygons.
// Every point is covered: 1 inside a polygon, 0 elsewhere.
type LandPolygons struct {
	name     string
	polygons []LandPolygon
}

// NewLandPolygons creates a land mask reader over polygons.
func NewLandPolygons(name string, polygons []LandPolygon) *LandPolygons {
	return &LandPolygons{name: name, polygons: polygons}
}

// LoadLandShapefile reads polygon shapes from an ESRI shapefile. Coordinates
// must be geographic (lon, lat). Non-polygon shapes are skipped.
func LoadLandShapefile(path string) (*LandPolygons, error) {
	shape, err := shp.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening shapefile: %w", err)
	}
	defer shape.Close()

	var polygons []LandPolygon
	for shape.Next() {
		_, s := shape.Shape()
		poly, ok := s.(*shp.Polygon)
		if !ok {
			continue
		}
		polygons = append(polygons, polygonFromShape(poly))
	}
	if len(polygons) == 0 {
		return nil, fmt.Errorf("shapefile %s has no polygons", path)
	}
	return NewLandPolygons(path, polygons), nil
}

func polygonFromShape(poly *shp.Polygon) LandPolygon {
	rings := make([]Ring, 0, len(poly.Parts))
	for partIdx := range poly.Parts {
		start := int(poly.Parts[partIdx])
		end := len(poly.Points)
		if partIdx+1 < len(poly.Parts) {
			end = int(poly.Parts[partIdx+1])
		}
		ring := make(Ring, 0, end-start)
		for i := start; i < end; i++ {
			ring = append(ring, [2]float64{poly.Points[i].X, poly.Points[i].Y})
		}
		rings = append(rings, ring)
	}
	return NewLandPolygon(rings...)
}

func (l *LandPolygons) Name() string { return l.name }

func (l *LandPolygons) Provides(v Variable) bool { return v == LandBinaryMask }

func (l *LandPolygons) Value(v Variable, t time.Time, lon, lat float64) (float64, bool) {
	if v != LandBinaryMask {
		return 0, false
	}
	for i := range l.polygons {
		if l.polygons[i].Contains(lon, lat) {
			return 1, true
		}
	}
	return 0, true
}

// Len returns the number of polygons.
func (l *LandPolygons) Len() int { return len(l.polygons) }
