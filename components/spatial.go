package components

import "time"

// Position is a particle's geographic position in degrees.
type Position struct {
	Lon, Lat float64
}

// Release records where and when a particle was seeded.
// Lon/Lat is the release centre on the seeding line; the particle's initial
// Position lies within Radius metres of it.
type Release struct {
	Time     time.Time
	Lon, Lat float64
	Radius   float64 // metres
}
