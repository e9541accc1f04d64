package motion

import (
	"fmt"
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"
	"math"
)

// Timestamps holds the last seen device timestamp per sensor. A sensor without a
// reading yet has its Has flag unset, its first sample only initializes the timestamp
type Timestamps struct {
	Accel    uint32
	Gyro     uint32
	Mag      uint32
	HasAccel bool
	HasGyro  bool
	HasMag   bool
}

// State is the reconstructed motion of the device. It is a plain value, Update returns
// a new State and never modifies the one passed in
type State struct {
	// Orientation rotates body frame vectors into the reference frame, always unit norm
	Orientation quat.Number
	// Velocity in the reference frame in m/s
	Velocity r3.Vector
	// Position in the reference frame in m
	Position r3.Vector
	// Last holds the per sensor timestamps of the previous update
	Last Timestamps
}

// NewState returns the state at rest: identity orientation, zero velocity and position
func NewState() State {
	return State{Orientation: quat.Number{Real: 1}}
}

// Euler returns roll, pitch and yaw in radians (rotation order z-y-x)
func (s State) Euler() (roll, pitch, yaw float64) {
	q := s.Orientation
	w, x, y, z := q.Real, q.Imag, q.Jmag, q.Kmag

	roll = math.Atan2(2*(w*x+y*z), 1-2*(x*x+y*y))

	sinPitch := 2 * (w*y - z*x)
	if sinPitch > 1 {
		sinPitch = 1
	} else if sinPitch < -1 {
		sinPitch = -1
	}
	pitch = math.Asin(sinPitch)

	yaw = math.Atan2(2*(w*z+x*y), 1-2*(y*y+z*z))
	return roll, pitch, yaw
}

// String renders the state in the consumer log format
func (s State) String() string {
	q := s.Orientation
	return fmt.Sprintf("Pos: [%.3f, %.3f, %.3f]m | Vel: [%.3f, %.3f, %.3f]m/s | Orient: [%.3f, %.3f, %.3f, %.3f]quat",
		s.Position.X, s.Position.Y, s.Position.Z,
		s.Velocity.X, s.Velocity.Y, s.Velocity.Z,
		q.Real, q.Imag, q.Jmag, q.Kmag)
}
