// Package environment supplies wind, current and land-mask fields to the
// leeway model at arbitrary times and positions.
package environment

import (
	"fmt"
	"strings"
	"time"
)

// Variable names an environment field.
type Variable string

const (
	XWind             Variable = "x_wind"
	YWind             Variable = "y_wind"
	XSeaWaterVelocity Variable = "x_sea_water_velocity"
	YSeaWaterVelocity Variable = "y_sea_water_velocity"
	LandBinaryMask    Variable = "land_binary_mask"
)

// Required lists the variables the leeway model needs at every particle.
var Required = []Variable{XWind, YWind, XSeaWaterVelocity, YSeaWaterVelocity, LandBinaryMask}

// ParseVariable returns the required variable with the given name.
func ParseVariable(name string) (Variable, bool) {
	for _, v := range Required {
		if string(v) == name {
			return v, true
		}
	}
	return "", false
}

// DefaultFallbacks returns the values used when no reader covers a variable.
// The land mask has no fallback.
func DefaultFallbacks() map[Variable]float64 {
	return map[Variable]float64{
		XWind:             0,
		YWind:             0,
		XSeaWaterVelocity: 0,
		YSeaWaterVelocity: 0,
	}
}

// Reader provides some environment variables.
type Reader interface {
	Name() string
	Provides(v Variable) bool
	// Value returns v at (t, lon, lat). ok is false when the point is outside
	// the reader's coverage.
	Value(v Variable, t time.Time, lon, lat float64) (value float64, ok bool)
}

// TimeBounded is implemented by readers with a known first available time.
type TimeBounded interface {
	StartTime() time.Time
}

// Sample is the set of required variables at one particle.
type Sample struct {
	XWind, YWind       float64 // m/s
	XCurrent, YCurrent float64 // m/s
	LandBinaryMask     float64 // 1 on land, 0 on water
}

// MissingDataError lists variables no reader or fallback could supply.
type MissingDataError struct {
	Variables []Variable
	Lon, Lat  float64
	Time      time.Time
}

func (e *MissingDataError) Error() string {
	names := make([]string, len(e.Variables))
	for i, v := range e.Variables {
		names[i] = string(v)
	}
	return fmt.Sprintf("missing %s at (%.4f, %.4f) %s",
		strings.Join(names, ", "), e.Lon, e.Lat, e.Time.Format(time.RFC3339))
}

// Environment composes readers in priority order with fallback values.
type Environment struct {
	readers   []Reader
	fallbacks map[Variable]float64
}

// New creates an environment over readers with the default fallbacks.
func New(readers ...Reader) *Environment {
	return &Environment{readers: readers, fallbacks: DefaultFallbacks()}
}

// AddReader appends r with lowest priority.
func (e *Environment) AddReader(r Reader) {
	e.readers = append(e.readers, r)
}

// Readers returns the readers in priority order.
func (e *Environment) Readers() []Reader {
	return e.readers
}

// SetFallback sets the value used for v when no reader covers a point.
func (e *Environment) SetFallback(v Variable, value float64) {
	e.fallbacks[v] = value
}

// ClearFallback removes the fallback for v.
func (e *Environment) ClearFallback(v Variable) {
	delete(e.fallbacks, v)
}

// Value returns v from the first reader that covers the point, then the fallback.
func (e *Environment) Value(v Variable, t time.Time, lon, lat float64) (float64, bool) {
	for _, r := range e.readers {
		if !r.Provides(v) {
			continue
		}
		if val, ok := r.Value(v, t, lon, lat); ok {
			return val, true
		}
	}
	val, ok := e.fallbacks[v]
	return val, ok
}

// Sample returns all required variables at (t, lon, lat), or a
// *MissingDataError naming the ones that could not be supplied.
func (e *Environment) Sample(t time.Time, lon, lat float64) (Sample, error) {
	var s Sample
	var missing []Variable
	get := func(v Variable, dst *float64) {
		val, ok := e.Value(v, t, lon, lat)
		if !ok {
			missing = append(missing, v)
			return
		}
		*dst = val
	}
	get(XWind, &s.XWind)
	get(YWind, &s.YWind)
	get(XSeaWaterVelocity, &s.XCurrent)
	get(YSeaWaterVelocity, &s.YCurrent)
	get(LandBinaryMask, &s.LandBinaryMask)

	if len(missing) > 0 {
		return s, &MissingDataError{Variables: missing, Lon: lon, Lat: lat, Time: t}
	}
	return s, nil
}

// IsLand reports whether (lon, lat) is on land. ok is false when no reader
// covers the point.
func (e *Environment) IsLand(t time.Time, lon, lat float64) (land, ok bool) {
	v, ok := e.Value(LandBinaryMask, t, lon, lat)
	if !ok {
		return false, false
	}
	return v == 1, true
}

// StartTime returns the earliest start time of any time-bounded reader.
func (e *Environment) StartTime() (time.Time, bool) {
	var start time.Time
	found := false
	for _, r := range e.readers {
		tb, ok := r.(TimeBounded)
		if !ok {
			continue
		}
		st := tb.StartTime()
		if st.IsZero() {
			continue
		}
		if !found || st.Before(start) {
			start = st
			found = true
		}
	}
	return start, found
}
