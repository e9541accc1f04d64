package motion

import "fmt"

// WarningKind enumerates the non fatal integration problems reported by Update
type WarningKind uint8

const (
	// WarnGyroGap is reported when the gyro step exceeded MaxDeltaSeconds and was skipped
	WarnGyroGap WarningKind = iota + 1
	// WarnAccelGap is reported when the accel step exceeded MaxDeltaSeconds and was skipped
	WarnAccelGap
	// WarnNonFiniteAccel is reported when the accel reading contained NaN or Inf and was skipped
	WarnNonFiniteAccel
	// WarnNonFiniteMag is reported when the mag reading contained NaN or Inf and was skipped
	WarnNonFiniteMag
	// WarnAccelClamped is reported when an accel component exceeded the sensor range
	WarnAccelClamped
	// WarnGyroClamped is reported when a gyro component exceeded the sensor range
	WarnGyroClamped
)

// String returns the string representation of a WarningKind
func (k WarningKind) String() string {
	switch k {
	case WarnGyroGap:
		return "gyro gap"
	case WarnAccelGap:
		return "accel gap"
	case WarnNonFiniteAccel:
		return "non-finite accel"
	case WarnNonFiniteMag:
		return "non-finite mag"
	case WarnAccelClamped:
		return "accel clamped"
	case WarnGyroClamped:
		return "gyro clamped"
	default:
		return "unknown"
	}
}

// Warning is a non fatal problem found while applying one sample
type Warning struct {
	Kind   WarningKind
	Detail string
}

func (w Warning) String() string {
	return fmt.Sprintf("%s: %s", w.Kind, w.Detail)
}

// Warnings collects all warnings of a single update
type Warnings []Warning

// Has reports whether a warning of the given kind was raised
func (w Warnings) Has(kind WarningKind) bool {
	for _, warning := range w {
		if warning.Kind == kind {
			return true
		}
	}
	return false
}

func (w *Warnings) add(kind WarningKind, format string, args ...interface{}) {
	*w = append(*w, Warning{Kind: kind, Detail: fmt.Sprintf(format, args...)})
}
