package util

import (
	"crypto/rand"
	"encoding/binary"
	"time"
)

// --------------------------------------------------------------------------
// General Utility Functions
// --------------------------------------------------------------------------

// GenerateSeed creates a random seed for the pseudo random sources of the emulator
func GenerateSeed() uint64 {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		// fall back to the current time, only if the system source is unavailable
		return uint64(time.Now().UnixNano())
	}
	return binary.LittleEndian.Uint64(b[:])
}

// Backoff returns the wait before retry number attempt (1 based): initial doubled per attempt and capped at max.
// A max below initial disables the growth. jitter in [-1, 1] scales the result by up to +-10%.
func Backoff(initial, max time.Duration, attempt int, jitter float64) time.Duration {
	if initial <= 0 {
		return 0
	}
	d := initial
	if max > initial {
		for i := 1; i < attempt && d < max; i++ {
			d *= 2
		}
		if d > max {
			d = max
		}
	}
	if jitter < -1 {
		jitter = -1
	} else if jitter > 1 {
		jitter = 1
	}
	return d + time.Duration(float64(d)*0.1*jitter)
}
