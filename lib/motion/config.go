package motion

import (
	"fmt"
	"math"
	"strings"
)

// Config holds the immutable parameters of the motion processor
type Config struct {
	// TickSeconds converts device timestamp ticks into seconds (the emulator ticks in milliseconds)
	TickSeconds float64
	// MaxDeltaSeconds is the largest step that is integrated, larger steps are treated as a gap
	MaxDeltaSeconds float64
	// Gravity is the magnitude of the reference gravity vector (0, 0, Gravity) in m/s^2
	Gravity float64

	// MagCorrectionWeight is the fraction of the magnetometer heading error removed per mag update (0 disables)
	MagCorrectionWeight float64
	// TiltCorrectionWeight is the fraction of the accelerometer tilt error removed per accel update (0 disables)
	TiltCorrectionWeight float64

	// AccelDeadband zeroes linear acceleration components below this magnitude in m/s^2
	AccelDeadband float64
	// VelocityDecay multiplies the velocity after every accel step (1 = no decay)
	VelocityDecay float64

	// MaxAccelMilliG and MaxGyroMilliDPS are the sensor ranges, readings beyond are clamped
	MaxAccelMilliG  float64
	MaxGyroMilliDPS float64
}

// DefaultConfig returns the processor configuration used by the consumer
func DefaultConfig() Config {
	return Config{
		TickSeconds:          0.001,
		MaxDeltaSeconds:      0.1,
		Gravity:              9.81,
		MagCorrectionWeight:  0.02,
		TiltCorrectionWeight: 0.02,
		AccelDeadband:        0.01,
		VelocityDecay:        1.0,
		MaxAccelMilliG:       16000,
		MaxGyroMilliDPS:      2000000,
	}
}

// Validate checks that all parameters are finite and within their meaningful range
func (c Config) Validate() error {
	for name, v := range map[string]float64{
		"tick seconds":      c.TickSeconds,
		"max delta seconds": c.MaxDeltaSeconds,
		"gravity":           c.Gravity,
		"max accel":         c.MaxAccelMilliG,
		"max gyro":          c.MaxGyroMilliDPS,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
			return fmt.Errorf("%s must be a positive number, got %v", name, v)
		}
	}
	for name, v := range map[string]float64{
		"mag correction weight":  c.MagCorrectionWeight,
		"tilt correction weight": c.TiltCorrectionWeight,
		"velocity decay":         c.VelocityDecay,
	} {
		if math.IsNaN(v) || v < 0 || v > 1 {
			return fmt.Errorf("%s must be within [0, 1], got %v", name, v)
		}
	}
	if math.IsNaN(c.AccelDeadband) || c.AccelDeadband < 0 {
		return fmt.Errorf("accel deadband must not be negative, got %v", c.AccelDeadband)
	}
	return nil
}

// String returns a formatted string representation of the configuration
func (c Config) String() string {
	var sb strings.Builder

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	sb.WriteString("\nMOTION\n")
	addField("Tick", fmt.Sprintf("%g s", c.TickSeconds))
	addField("Max Delta", fmt.Sprintf("%g s", c.MaxDeltaSeconds))
	addField("Gravity", fmt.Sprintf("%g m/s^2", c.Gravity))
	addField("Mag Weight", fmt.Sprintf("%g", c.MagCorrectionWeight))
	addField("Tilt Weight", fmt.Sprintf("%g", c.TiltCorrectionWeight))
	addField("Accel Deadband", fmt.Sprintf("%g m/s^2", c.AccelDeadband))
	addField("Velocity Decay", fmt.Sprintf("%g", c.VelocityDecay))
	return sb.String()
}
