package systems

import (
	"errors"
	"fmt"
)

// ErrMissingTime is returned when seeding without a time and no environment
// reader reports a start time.
var ErrMissingTime = errors.New("seeding time must be specified when no reader provides a start time")

// UnknownObjectTypeError reports an object-type ordinal outside the property table.
type UnknownObjectTypeError struct {
	ObjectType int
	Key        string // set when the lookup was by name
	TableLen   int
}

func (e *UnknownObjectTypeError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("unknown object type %q", e.Key)
	}
	return fmt.Sprintf("unknown object type %d (table has %d entries)", e.ObjectType, e.TableLen)
}

// InvalidRequestError reports a malformed seeding request.
type InvalidRequestError struct {
	Field  string
	Reason string
}

func (e *InvalidRequestError) Error() string {
	return fmt.Sprintf("invalid seeding request: %s %s", e.Field, e.Reason)
}

// SamplingError reports that no admissible downwind residual was drawn
// within the attempt limit.
type SamplingError struct {
	ObjectType int
	Particle   int
	Attempts   int
	Slope, Std float64
}

func (e *SamplingError) Error() string {
	return fmt.Sprintf("object type %d particle %d: no downwind residual with slope+eps/20 >= 0 after %d draws (slope %.3f, std %.3f)",
		e.ObjectType, e.Particle, e.Attempts, e.Slope, e.Std)
}
