package environment

import "time"

// Constant is a reader with spatially and temporally uniform fields.
type Constant struct {
	name   string
	values map[Variable]float64
	start  time.Time
}

// NewConstant creates a uniform reader for the given values.
func NewConstant(name string, values map[Variable]float64) *Constant {
	vals := make(map[Variable]float64, len(values))
	for k, v := range values {
		vals[k] = v
	}
	return &Constant{name: name, values: vals}
}

// WithStartTime marks the reader as starting at t.
func (c *Constant) WithStartTime(t time.Time) *Constant {
	c.start = t
	return c
}

func (c *Constant) Name() string { return c.name }

func (c *Constant) Provides(v Variable) bool {
	_, ok := c.values[v]
	return ok
}

func (c *Constant) Value(v Variable, t time.Time, lon, lat float64) (float64, bool) {
	val, ok := c.values[v]
	return val, ok
}

// StartTime returns the configured start time, zero if none.
func (c *Constant) StartTime() time.Time { return c.start }
