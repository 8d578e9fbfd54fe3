package environment

import (
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"time"

	"github.com/gocarina/gocsv"
)

// GridRecord is one row of a gridded forcing CSV file.
// Every (time, lon, lat) node of a regular grid must appear exactly once.
type GridRecord struct {
	Time     string  `csv:"time"` // RFC 3339
	Lon      float64 `csv:"lon"`
	Lat      float64 `csv:"lat"`
	XWind    float64 `csv:"x_wind"`
	YWind    float64 `csv:"y_wind"`
	XCurrent float64 `csv:"x_sea_water_velocity"`
	YCurrent float64 `csv:"y_sea_water_velocity"`
}

var gridVariables = []Variable{XWind, YWind, XSeaWaterVelocity, YSeaWaterVelocity}

// Grid is a reader over wind and current on a regular lon/lat grid.
// Values are bilinear in space and linear in time between slabs; points
// outside the grid or its time span are not covered.
type Grid struct {
	name  string
	times []time.Time
	lons  []float64
	lats  []float64
	// data[v][ti][j*len(lons)+i]
	data [4][][]float64
}

// LoadGridFile loads a gridded forcing CSV from path.
func LoadGridFile(path string) (*Grid, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening grid file: %w", err)
	}
	defer f.Close()

	g, err := LoadGrid(path, f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return g, nil
}

// LoadGrid reads gridded forcing CSV from r.
func LoadGrid(name string, r io.Reader) (*Grid, error) {
	var records []GridRecord
	if err := gocsv.Unmarshal(r, &records); err != nil {
		return nil, fmt.Errorf("parsing grid csv: %w", err)
	}
	return NewGrid(name, records)
}

// NewGrid builds a grid from records.
func NewGrid(name string, records []GridRecord) (*Grid, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("grid %q has no records", name)
	}

	timeSet := make(map[time.Time]struct{})
	lonSet := make(map[float64]struct{})
	latSet := make(map[float64]struct{})
	parsed := make([]time.Time, len(records))
	for i, rec := range records {
		t, err := time.Parse(time.RFC3339, rec.Time)
		if err != nil {
			return nil, fmt.Errorf("record %d: parsing time: %w", i+1, err)
		}
		t = t.UTC()
		parsed[i] = t
		timeSet[t] = struct{}{}
		lonSet[rec.Lon] = struct{}{}
		latSet[rec.Lat] = struct{}{}
	}

	g := &Grid{
		name:  name,
		times: sortedTimes(timeSet),
		lons:  sortedFloats(lonSet),
		lats:  sortedFloats(latSet),
	}

	nodes := len(g.lons) * len(g.lats)
	if nodes*len(g.times) != len(records) {
		return nil, fmt.Errorf("grid %q is not regular: %d records for %d times x %d lons x %d lats",
			name, len(records), len(g.times), len(g.lons), len(g.lats))
	}

	seen := make([][]bool, len(g.times))
	for v := range g.data {
		g.data[v] = make([][]float64, len(g.times))
		for ti := range g.times {
			g.data[v][ti] = make([]float64, nodes)
		}
	}
	for ti := range g.times {
		seen[ti] = make([]bool, nodes)
	}

	for k, rec := range records {
		ti := sort.Search(len(g.times), func(i int) bool { return !g.times[i].Before(parsed[k]) })
		i := sort.SearchFloat64s(g.lons, rec.Lon)
		j := sort.SearchFloat64s(g.lats, rec.Lat)
		idx := j*len(g.lons) + i
		if seen[ti][idx] {
			return nil, fmt.Errorf("record %d: duplicate node (%s, %v, %v)", k+1, rec.Time, rec.Lon, rec.Lat)
		}
		seen[ti][idx] = true
		g.data[0][ti][idx] = rec.XWind
		g.data[1][ti][idx] = rec.YWind
		g.data[2][ti][idx] = rec.XCurrent
		g.data[3][ti][idx] = rec.YCurrent
	}
	return g, nil
}

func (g *Grid) Name() string { return g.name }

func (g *Grid) Provides(v Variable) bool {
	return gridIndex(v) >= 0
}

// StartTime returns the first slab time.
func (g *Grid) StartTime() time.Time { return g.times[0] }

// EndTime returns the last slab time.
func (g *Grid) EndTime() time.Time { return g.times[len(g.times)-1] }

func (g *Grid) Value(v Variable, t time.Time, lon, lat float64) (float64, bool) {
	vi := gridIndex(v)
	if vi < 0 {
		return 0, false
	}

	t0, t1, wt, ok := bracketTime(g.times, t)
	if !ok {
		return 0, false
	}
	a, ok := g.spatial(g.data[vi][t0], lon, lat)
	if !ok {
		return 0, false
	}
	if t1 == t0 {
		return a, true
	}
	b, _ := g.spatial(g.data[vi][t1], lon, lat)
	return a*(1-wt) + b*wt, true
}

func (g *Grid) spatial(slab []float64, lon, lat float64) (float64, bool) {
	i0, i1, wx, ok := bracket(g.lons, lon)
	if !ok {
		return 0, false
	}
	j0, j1, wy, ok := bracket(g.lats, lat)
	if !ok {
		return 0, false
	}
	nx := len(g.lons)
	v00 := slab[j0*nx+i0]
	v10 := slab[j0*nx+i1]
	v01 := slab[j1*nx+i0]
	v11 := slab[j1*nx+i1]
	return v00*(1-wx)*(1-wy) + v10*wx*(1-wy) + v01*(1-wx)*wy + v11*wx*wy, true
}

func gridIndex(v Variable) int {
	for i, gv := range gridVariables {
		if gv == v {
			return i
		}
	}
	return -1
}

// bracket finds the cell of axis containing x and the weight of the upper node.
// A single-node axis covers only that exact coordinate.
func bracket(axis []float64, x float64) (lo, hi int, w float64, ok bool) {
	n := len(axis)
	if math.IsNaN(x) || x < axis[0] || x > axis[n-1] {
		return 0, 0, 0, false
	}
	if n == 1 {
		return 0, 0, 0, true
	}
	hi = sort.SearchFloat64s(axis, x)
	if hi == 0 {
		return 0, 0, 0, true
	}
	lo = hi - 1
	if axis[hi] == x {
		return hi, hi, 0, true
	}
	w = (x - axis[lo]) / (axis[hi] - axis[lo])
	return lo, hi, w, true
}

func bracketTime(times []time.Time, t time.Time) (lo, hi int, w float64, ok bool) {
	n := len(times)
	if t.Before(times[0]) || t.After(times[n-1]) {
		return 0, 0, 0, false
	}
	hi = sort.Search(n, func(i int) bool { return !times[i].Before(t) })
	if times[hi].Equal(t) || hi == 0 {
		return hi, hi, 0, true
	}
	lo = hi - 1
	w = float64(t.Sub(times[lo])) / float64(times[hi].Sub(times[lo]))
	return lo, hi, w, true
}

func sortedTimes(set map[time.Time]struct{}) []time.Time {
	out := make([]time.Time, 0, len(set))
	for t := range set {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

func sortedFloats(set map[float64]struct{}) []float64 {
	out := make([]float64, 0, len(set))
	for f := range set {
		out = append(out, f)
	}
	sort.Float64s(out)
	return out
}
