package common

import (
	"fmt"
	"math"
)

// --------------------------------------------------------------------------
// Vector Types
// --------------------------------------------------------------------------

// Vector3f is a three axis float reading (accelerometer in mg, magnetometer in mGauss)
type Vector3f struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
	Z float32 `json:"z"`
}

// IsFinite reports whether no component is NaN or +-Inf
func (v Vector3f) IsFinite() bool {
	return isFinite32(v.X) && isFinite32(v.Y) && isFinite32(v.Z)
}

// IsZero reports whether all components are exactly zero
func (v Vector3f) IsZero() bool {
	return v.X == 0 && v.Y == 0 && v.Z == 0
}

// Vector3i is a three axis integer reading (gyroscope in mdeg/s)
type Vector3i struct {
	X int32 `json:"x"`
	Y int32 `json:"y"`
	Z int32 `json:"z"`
}

// --------------------------------------------------------------------------
// Sample Structure
// --------------------------------------------------------------------------

// Sample is one IMU reading as it travels from the publisher to the consumer.
// It is a plain value: it is copied across every boundary and never mutated after creation.
//
// Each sensor carries its own timestamp in device ticks (milliseconds for the emulator).
// The three timestamp domains are independent, a sensor that did not tick since the last
// sample simply repeats its previous timestamp and reading.
type Sample struct {
	Accel          Vector3f `json:"accel"`           // milli-g
	TimestampAccel uint32   `json:"timestamp_accel"` // device ticks
	Gyro           Vector3i `json:"gyro"`            // milli-degrees per second
	TimestampGyro  uint32   `json:"timestamp_gyro"`  // device ticks
	Mag            Vector3f `json:"mag"`             // milli-gauss
	TimestampMag   uint32   `json:"timestamp_mag"`   // device ticks
}

// IsFinite reports whether all float components of the sample are finite
func (s Sample) IsFinite() bool {
	return s.Accel.IsFinite() && s.Mag.IsFinite()
}

// String returns a compact single line representation used in debug logs
func (s Sample) String() string {
	return fmt.Sprintf("acc=[%+.1f,%+.1f,%+.1f]@%d gyro=[%+d,%+d,%+d]@%d mag=[%+.1f,%+.1f,%+.1f]@%d",
		s.Accel.X, s.Accel.Y, s.Accel.Z, s.TimestampAccel,
		s.Gyro.X, s.Gyro.Y, s.Gyro.Z, s.TimestampGyro,
		s.Mag.X, s.Mag.Y, s.Mag.Z, s.TimestampMag)
}

func isFinite32(f float32) bool {
	return !math.IsNaN(float64(f)) && !math.IsInf(float64(f), 0)
}
