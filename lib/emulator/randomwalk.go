package emulator

import (
	"github.com/ValentinKolb/imuipc/lib/util"
	"github.com/ValentinKolb/imuipc/rpc/common"
	"github.com/lni/dragonboat/v4/logger"
	"gonum.org/v1/gonum/stat/distuv"
	"math"
	"math/rand/v2"
	"time"
)

var Logger = logger.GetLogger("emulator")

const (
	accMaxChange  = 100 // mg per update
	gyroMaxChange = 500 // mdeg/s per update
	magMaxChange  = 20  // mGauss per update

	accNoiseStdDev  = 2  // mg
	gyroNoiseStdDev = 50 // mdeg/s
	magNoiseStdDev  = 5  // mGauss

	// alpha is the low-pass coefficient, higher means more smoothing
	alpha = 0.7

	minTargetHold = 1000 // ms
	maxTargetHold = 3000 // ms
)

// sensorJitter is the half open range [min, max) in ms a sensor waits before its next reading
type sensorJitter struct {
	min, max uint64
}

var (
	accJitter  = sensorJitter{0, 2} // ~1ms
	gyroJitter = sensorJitter{1, 2} // ~1.25ms
	magJitter  = sensorJitter{1, 3} // ~2ms
)

// RandomWalk is a sample source emulating a moving device
type RandomWalk struct {
	now  func() time.Time
	rng  *rand.Rand
	seed uint64

	sample           common.Sample
	nextTargetChange time.Time

	accTarget  [3]float64
	gyroTarget [3]float64
	magTarget  [3]float64

	accNoise  distuv.Normal
	gyroNoise distuv.Normal
	magNoise  distuv.Normal
}

// NewRandomWalk creates a random walk source. A seed of 0 picks a random seed,
// any other seed makes the values (not the timestamps) reproducible
func NewRandomWalk(seed uint64) *RandomWalk {
	return newRandomWalk(seed, time.Now)
}

// newRandomWalk creates a random walk source reading the time from now
func newRandomWalk(seed uint64, now func() time.Time) *RandomWalk {
	if seed == 0 {
		seed = util.GenerateSeed()
	}
	src := rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)

	Logger.Debugf("Random walk emulator created with seed %d", seed)

	return &RandomWalk{
		now:       now,
		rng:       rand.New(src),
		seed:      seed,
		accNoise:  distuv.Normal{Mu: 0, Sigma: accNoiseStdDev, Src: src},
		gyroNoise: distuv.Normal{Mu: 0, Sigma: gyroNoiseStdDev, Src: src},
		magNoise:  distuv.Normal{Mu: 0, Sigma: magNoiseStdDev, Src: src},
	}
}

// Seed returns the seed of the source
func (r *RandomWalk) Seed() uint64 {
	return r.seed
}

func (r *RandomWalk) Name() string {
	return "random"
}

func (r *RandomWalk) Next() common.Sample {
	now := r.now()

	if !now.Before(r.nextTargetChange) {
		r.updateTargets()
		hold := time.Duration(minTargetHold+r.rng.IntN(maxTargetHold-minTargetHold)) * time.Millisecond
		r.nextTargetChange = now.Add(hold)
	}

	r.updateAccel(now)
	r.updateGyro(now)
	r.updateMag(now)

	return r.sample
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

func (r *RandomWalk) updateTargets() {
	r.accTarget = [3]float64{
		r.uniform(-300, 300),
		r.uniform(-300, 300),
		r.uniform(900, 1100), // close to 1 g
	}
	r.gyroTarget = [3]float64{
		math.Floor(r.uniform(-2000, 2000)),
		math.Floor(r.uniform(-2000, 2000)),
		math.Floor(r.uniform(-2000, 2000)),
	}
	r.magTarget = [3]float64{
		r.uniform(-400, 400),
		r.uniform(-400, 400),
		r.uniform(-400, 400),
	}
	Logger.Debugf("New targets: acc=%v gyro=%v mag=%v", r.accTarget, r.gyroTarget, r.magTarget)
}

func (r *RandomWalk) updateAccel(now time.Time) {
	if !r.shouldUpdate(now, r.sample.TimestampAccel, accJitter) {
		return
	}
	a := &r.sample.Accel
	a.X = float32(moveToward(float64(a.X), r.accTarget[0], accMaxChange) + r.accNoise.Rand())
	a.Y = float32(moveToward(float64(a.Y), r.accTarget[1], accMaxChange) + r.accNoise.Rand())
	a.Z = float32(moveToward(float64(a.Z), r.accTarget[2], accMaxChange) + r.accNoise.Rand())
	r.sample.TimestampAccel = timestamp(now)
}

func (r *RandomWalk) updateGyro(now time.Time) {
	if !r.shouldUpdate(now, r.sample.TimestampGyro, gyroJitter) {
		return
	}
	g := &r.sample.Gyro
	g.X = moveTowardInt(g.X, int32(r.gyroTarget[0]), gyroMaxChange) + int32(r.gyroNoise.Rand())
	g.Y = moveTowardInt(g.Y, int32(r.gyroTarget[1]), gyroMaxChange) + int32(r.gyroNoise.Rand())
	g.Z = moveTowardInt(g.Z, int32(r.gyroTarget[2]), gyroMaxChange) + int32(r.gyroNoise.Rand())
	r.sample.TimestampGyro = timestamp(now)
}

func (r *RandomWalk) updateMag(now time.Time) {
	if !r.shouldUpdate(now, r.sample.TimestampMag, magJitter) {
		return
	}
	m := &r.sample.Mag
	m.X = float32(moveToward(float64(m.X), r.magTarget[0], magMaxChange) + r.magNoise.Rand())
	m.Y = float32(moveToward(float64(m.Y), r.magTarget[1], magMaxChange) + r.magNoise.Rand())
	m.Z = float32(moveToward(float64(m.Z), r.magTarget[2], magMaxChange) + r.magNoise.Rand())
	r.sample.TimestampMag = timestamp(now)
}

// shouldUpdate reports whether a sensor with the given last timestamp produces a new reading,
// the required elapsed time is drawn from the jitter range on every call
func (r *RandomWalk) shouldUpdate(now time.Time, last uint32, jitter sensorJitter) bool {
	elapsed := uint64(timestamp(now) - last)
	required := jitter.min + r.rng.Uint64N(jitter.max-jitter.min)
	return elapsed >= required
}

func (r *RandomWalk) uniform(min, max float64) float64 {
	return min + r.rng.Float64()*(max-min)
}

// moveToward steps current toward target by at most maxChange and low-pass filters the step.
// A target within reach is returned unfiltered
func moveToward(current, target, maxChange float64) float64 {
	diff := target - current
	if math.Abs(diff) <= maxChange {
		return target
	}
	next := current + math.Copysign(maxChange, diff)
	return alpha*next + (1-alpha)*current
}

// moveTowardInt is moveToward for integer readings, the filtered value is truncated
func moveTowardInt(current, target, maxChange int32) int32 {
	return int32(moveToward(float64(current), float64(target), float64(maxChange)))
}

// timestamp converts a wall clock time to a millisecond device timestamp, wrapping at 2^32
func timestamp(t time.Time) uint32 {
	return uint32(t.UnixMilli())
}
