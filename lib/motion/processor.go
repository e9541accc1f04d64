package motion

import (
	"fmt"
	"github.com/ValentinKolb/imuipc/rpc/common"
	"github.com/golang/geo/r3"
	"github.com/lni/dragonboat/v4/logger"
	"gonum.org/v1/gonum/num/quat"
	"math"
)

var Logger = logger.GetLogger("motion")

const (
	degToRad = math.Pi / 180

	// tiltTolerance is the allowed deviation of |accel| from 1 g for the tilt correction
	tiltTolerance = 0.05

	// newerLimit separates a newer timestamp from an older one under uint32 wrap around
	newerLimit = 1 << 31

	// epsilon below which vectors are treated as degenerate
	epsilon = 1e-9
)

// Processor applies IMU samples to a motion State. It only holds its immutable configuration,
// the state is owned by the caller and threaded through Update explicitly.
type Processor struct {
	config Config
}

// NewProcessor creates a processor after validating the configuration
func NewProcessor(config Config) (*Processor, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid motion config: %w", err)
	}
	Logger.Debugf("Motion processor created: %s", config.String())
	return &Processor{config: config}, nil
}

// Config returns the processor configuration
func (p *Processor) Config() Config {
	return p.config
}

// Update applies one sample to state and returns the new state. The steps are:
//
//  1. integrate the gyro rate into the orientation and renormalize
//  2. pull pitch and roll toward the measured gravity direction (tilt correction)
//  3. rotate the accel reading into the reference frame, remove gravity and integrate
//     into velocity and position (semi implicit Euler)
//  4. on a newer mag reading pull the heading toward magnetic north (mag correction)
//
// Each sensor step uses its own timestamp delta. The first reading of a sensor only
// initializes its timestamp, a zero delta means no new reading and a delta above
// MaxDeltaSeconds is a gap. Problems are reported as warnings and never abort the update.
func (p *Processor) Update(state State, sample common.Sample) (State, Warnings) {
	var warnings Warnings
	next := state

	// Gyro
	if dt, ok := p.delta(&next.Last.Gyro, &next.Last.HasGyro, sample.TimestampGyro); ok {
		if dt > p.config.MaxDeltaSeconds {
			warnings.add(WarnGyroGap, "gyro step of %.3fs skipped", dt)
		} else {
			next.Orientation = p.integrateGyro(next.Orientation, sample.Gyro, dt, &warnings)
		}
	}

	// Accel
	if dt, ok := p.delta(&next.Last.Accel, &next.Last.HasAccel, sample.TimestampAccel); ok {
		switch {
		case !sample.Accel.IsFinite():
			warnings.add(WarnNonFiniteAccel, "accel reading %v skipped", sample.Accel)
		case dt > p.config.MaxDeltaSeconds:
			warnings.add(WarnAccelGap, "accel step of %.3fs skipped", dt)
		default:
			accel := p.clampAccel(sample.Accel, &warnings)
			next.Orientation = p.correctTilt(next.Orientation, accel)
			next.Velocity, next.Position = p.integrateAccel(next.Orientation, next.Velocity, next.Position, accel, dt)
		}
	}

	// Mag
	if p.newerMag(&next.Last, sample.TimestampMag) {
		switch {
		case !sample.Mag.IsFinite():
			warnings.add(WarnNonFiniteMag, "mag reading %v skipped", sample.Mag)
		case sample.Mag.IsZero():
			// no field information
		default:
			next.Orientation = p.correctHeading(next.Orientation, sample.Mag)
		}
	}

	return next, warnings
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// delta advances the stored timestamp and returns the step in seconds. ok is false for the
// first reading of a sensor and for repeated timestamps. Timestamps running backwards
// wrap to a huge delta and are reported as a gap by the caller.
func (p *Processor) delta(last *uint32, seen *bool, ts uint32) (float64, bool) {
	if !*seen {
		*last, *seen = ts, true
		return 0, false
	}
	ticks := ts - *last // wrap aware
	if ticks == 0 {
		return 0, false
	}
	*last = ts
	return float64(ticks) * p.config.TickSeconds, true
}

// newerMag reports whether ts is a new mag reading and records it
func (p *Processor) newerMag(last *Timestamps, ts uint32) bool {
	if !last.HasMag {
		last.Mag, last.HasMag = ts, true
		return true
	}
	ticks := ts - last.Mag
	if ticks == 0 {
		return false
	}
	last.Mag = ts
	return ticks < newerLimit
}

// integrateGyro applies q <- q * exp(omega*dt/2) with omega in rad/s in the body frame
func (p *Processor) integrateGyro(q quat.Number, gyro common.Vector3i, dt float64, warnings *Warnings) quat.Number {
	limit := p.config.MaxGyroMilliDPS
	x, cx := clamp(float64(gyro.X), limit)
	y, cy := clamp(float64(gyro.Y), limit)
	z, cz := clamp(float64(gyro.Z), limit)
	if cx || cy || cz {
		warnings.add(WarnGyroClamped, "gyro reading [%d, %d, %d] mdps clamped to +-%g", gyro.X, gyro.Y, gyro.Z, limit)
	}

	// mdeg/s -> rad/s, then half angle
	half := dt / 2 * degToRad / 1000
	delta := quat.Exp(quat.Number{Imag: x * half, Jmag: y * half, Kmag: z * half})

	return normalize(quat.Mul(q, delta))
}

// clampAccel clamps the accel reading to the sensor range and returns it in mg
func (p *Processor) clampAccel(accel common.Vector3f, warnings *Warnings) r3.Vector {
	limit := p.config.MaxAccelMilliG
	x, cx := clamp(float64(accel.X), limit)
	y, cy := clamp(float64(accel.Y), limit)
	z, cz := clamp(float64(accel.Z), limit)
	if cx || cy || cz {
		warnings.add(WarnAccelClamped, "accel reading %v mg clamped to +-%g", accel, limit)
	}
	return r3.Vector{X: x, Y: y, Z: z}
}

// correctTilt rotates q by a fraction of the angle between the measured gravity direction
// and the reference up axis. The correction axis is horizontal, so yaw stays untouched.
// It only runs while the device is close to unaccelerated (|accel| within 5% of 1 g)
func (p *Processor) correctTilt(q quat.Number, accelMilliG r3.Vector) quat.Number {
	if p.config.TiltCorrectionWeight == 0 {
		return q
	}
	norm := accelMilliG.Norm()
	if math.Abs(norm/1000-1) > tiltTolerance {
		return q
	}

	measured := rotate(q, accelMilliG.Mul(1/norm))
	up := r3.Vector{Z: 1}

	axis := measured.Cross(up)
	sinAngle := axis.Norm()
	if sinAngle < epsilon {
		return q
	}
	angle := math.Atan2(sinAngle, measured.Dot(up))

	correction := axisAngle(axis.Mul(1/sinAngle), p.config.TiltCorrectionWeight*angle)
	return normalize(quat.Mul(correction, q))
}

// integrateAccel rotates the reading into the reference frame, removes gravity and integrates
// velocity first and then position with the new velocity
func (p *Processor) integrateAccel(q quat.Number, v, pos r3.Vector, accelMilliG r3.Vector, dt float64) (r3.Vector, r3.Vector) {
	g := p.config.Gravity

	body := accelMilliG.Mul(g / 1000)
	linear := rotate(q, body).Sub(r3.Vector{Z: g})

	band := p.config.AccelDeadband
	linear = r3.Vector{X: deadband(linear.X, band), Y: deadband(linear.Y, band), Z: deadband(linear.Z, band)}

	v = v.Add(linear.Mul(dt)).Mul(p.config.VelocityDecay)
	pos = pos.Add(v.Mul(dt))
	return v, pos
}

// correctHeading rotates q about the reference z axis to reduce the angle between the
// horizontal magnetic field and the reference x axis. Pitch and roll are not changed.
func (p *Processor) correctHeading(q quat.Number, mag common.Vector3f) quat.Number {
	if p.config.MagCorrectionWeight == 0 {
		return q
	}
	field := rotate(q, r3.Vector{X: float64(mag.X), Y: float64(mag.Y), Z: float64(mag.Z)})
	if math.Hypot(field.X, field.Y) < epsilon {
		// field is vertical, heading undefined
		return q
	}
	headingError := math.Atan2(field.Y, field.X)

	correction := axisAngle(r3.Vector{Z: 1}, -p.config.MagCorrectionWeight*headingError)
	return normalize(quat.Mul(correction, q))
}

// rotate returns q v q* for a unit quaternion q
func rotate(q quat.Number, v r3.Vector) r3.Vector {
	r := quat.Mul(quat.Mul(q, quat.Number{Imag: v.X, Jmag: v.Y, Kmag: v.Z}), quat.Conj(q))
	return r3.Vector{X: r.Imag, Y: r.Jmag, Z: r.Kmag}
}

// axisAngle returns the rotation of angle radians about the unit axis
func axisAngle(axis r3.Vector, angle float64) quat.Number {
	s := math.Sin(angle / 2)
	return quat.Number{Real: math.Cos(angle / 2), Imag: axis.X * s, Jmag: axis.Y * s, Kmag: axis.Z * s}
}

// normalize scales q to unit norm, a degenerate quaternion is reset to identity
func normalize(q quat.Number) quat.Number {
	n := quat.Abs(q)
	if n < epsilon || math.IsNaN(n) || math.IsInf(n, 0) {
		return quat.Number{Real: 1}
	}
	return quat.Scale(1/n, q)
}

func clamp(v, limit float64) (float64, bool) {
	if v > limit {
		return limit, true
	}
	if v < -limit {
		return -limit, true
	}
	return v, false
}

func deadband(v, band float64) float64 {
	if math.Abs(v) < band {
		return 0
	}
	return v
}
