// Package components defines the ECS components of a leeway particle.
package components

// Orientation is the side of the downwind axis an object drifts toward.
// The numeric values match the original property table convention and are
// never used as a velocity sign; see Sign.
type Orientation uint8

const (
	Right Orientation = 0 // right of downwind
	Left  Orientation = 1 // left of downwind
)

// Sign returns the crosswind sign for the orientation: Right is +1, Left is -1.
// It is applied once, when computing crosswind velocity. The crosswind
// coefficients stored on a particle are relative to its side, so a Left
// particle carries the negated left branch of the property table.
func (o Orientation) Sign() float64 {
	if o == Left {
		return -1
	}
	return 1
}

func (o Orientation) String() string {
	if o == Left {
		return "left"
	}
	return "right"
}

// OrientationForIndex returns the orientation of the i-th particle of a
// seeding batch: even ordinals drift right, odd ordinals drift left.
func OrientationForIndex(i int) Orientation {
	if i%2 == 0 {
		return Right
	}
	return Left
}

// DefaultJibeProbability is the probability per hour of a crosswind flip.
const DefaultJibeProbability = 0.04

// Leeway holds a particle's realised leeway regression parameters.
// All fields are fixed at seeding.
type Leeway struct {
	ObjectType  int
	Orientation Orientation

	DownwindSlope  float64 // % of wind speed
	DownwindOffset float64 // cm/s
	DownwindEps    float64 // cm/s

	// Crosswind coefficients towards the particle's side; see Orientation.Sign.
	CrosswindSlope  float64
	CrosswindOffset float64
	CrosswindEps    float64

	JibeProbability float64 // per hour
}

// EffectiveDownwindSlope is the slope after applying the residual,
// DownwindSlope + DownwindEps/20. Seeding keeps it non-negative.
func (l *Leeway) EffectiveDownwindSlope() float64 {
	return l.DownwindSlope + l.DownwindEps/20.0
}

// State holds a particle's identity and lifecycle state.
type State struct {
	ID         uint32
	Status     Status
	AgeSeconds float64
}
