package emulator

import (
	"fmt"
	"github.com/ValentinKolb/imuipc/rpc/common"
)

// SteadyConfig describes the constant reading of a Steady source
type SteadyConfig struct {
	// RateHz sets the timestamp step to 1000/RateHz ms
	RateHz int
	// Accel in mg, defaults to a device lying flat
	Accel common.Vector3f
	// Gyro in mdeg/s
	Gyro common.Vector3i
	// Mag in mGauss
	Mag common.Vector3f
	// Start is the timestamp of the first sample
	Start uint32
}

// DefaultSteadyConfig returns a device lying flat and pointing north
func DefaultSteadyConfig() SteadyConfig {
	return SteadyConfig{
		RateHz: common.DefaultRateHz,
		Accel:  common.Vector3f{Z: 1000},
		Mag:    common.Vector3f{X: 250, Z: -400},
	}
}

// Steady is a deterministic sample source emitting the same reading at a fixed rate
type Steady struct {
	config SteadyConfig
	step   uint32
	next   uint32
}

// NewSteady creates a steady source
func NewSteady(config SteadyConfig) (*Steady, error) {
	if config.RateHz < 1 || config.RateHz > 1000 {
		return nil, fmt.Errorf("rate must be between 1 and 1000 Hz, got %d", config.RateHz)
	}
	return &Steady{
		config: config,
		step:   uint32(1000 / config.RateHz),
		next:   config.Start,
	}, nil
}

func (s *Steady) Name() string {
	return "steady"
}

func (s *Steady) Next() common.Sample {
	ts := s.next
	s.next += s.step
	return common.Sample{
		Accel:          s.config.Accel,
		TimestampAccel: ts,
		Gyro:           s.config.Gyro,
		TimestampGyro:  ts,
		Mag:            s.config.Mag,
		TimestampMag:   ts,
	}
}
