package emulator

import (
	"github.com/ValentinKolb/imuipc/rpc/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"math"
	"testing"
	"time"
)

// fakeClock advances by step on every call
type fakeClock struct {
	t    time.Time
	step time.Duration
}

func (c *fakeClock) now() time.Time {
	c.t = c.t.Add(c.step)
	return c.t
}

func newTestWalk(seed uint64, step time.Duration) *RandomWalk {
	clock := &fakeClock{t: time.UnixMilli(1_700_000_000_000), step: step}
	return newRandomWalk(seed, clock.now)
}

func TestMoveToward(t *testing.T) {
	// target within reach
	assert.Equal(t, 6.0, moveToward(5, 6, 2))

	// limited by max change
	up := moveToward(5, 10, 2)
	assert.InDelta(t, alpha*7+(1-alpha)*5, up, 1e-12)
	assert.Greater(t, up, 5.0)
	assert.Less(t, up, 7.0)

	down := moveToward(5, 0, 2)
	assert.InDelta(t, alpha*3+(1-alpha)*5, down, 1e-12)
}

func TestMoveTowardInt(t *testing.T) {
	assert.Equal(t, int32(150), moveTowardInt(100, 150, 100))
	assert.Equal(t, int32(alpha*150+(1-alpha)*100), moveTowardInt(100, 300, 50))
	assert.Equal(t, int32(alpha*50+(1-alpha)*100), moveTowardInt(100, 0, 50))
}

func TestRandomWalkTimestampsMonotonic(t *testing.T) {
	walk := newTestWalk(42, 5*time.Millisecond)

	prev := walk.Next()
	for i := 0; i < 1000; i++ {
		s := walk.Next()
		require.GreaterOrEqual(t, s.TimestampAccel, prev.TimestampAccel)
		require.GreaterOrEqual(t, s.TimestampGyro, prev.TimestampGyro)
		require.GreaterOrEqual(t, s.TimestampMag, prev.TimestampMag)
		prev = s
	}

	// with 5ms steps every sensor ticks on every call
	next := walk.Next()
	assert.Greater(t, next.TimestampAccel, prev.TimestampAccel)
	assert.Greater(t, next.TimestampGyro, prev.TimestampGyro)
	assert.Greater(t, next.TimestampMag, prev.TimestampMag)
}

func TestRandomWalkChangesSmoothly(t *testing.T) {
	walk := newTestWalk(7, 5*time.Millisecond)

	// noise is gaussian, allow a generous 6 sigma
	maxAcc := accMaxChange + 6*accNoiseStdDev
	maxGyro := gyroMaxChange + 6*gyroNoiseStdDev
	maxMag := magMaxChange + 6*magNoiseStdDev

	prev := walk.Next()
	for i := 0; i < 2000; i++ {
		s := walk.Next()
		require.True(t, s.IsFinite())
		require.LessOrEqual(t, math.Abs(float64(s.Accel.X-prev.Accel.X)), float64(maxAcc))
		require.LessOrEqual(t, math.Abs(float64(s.Gyro.Y-prev.Gyro.Y)), float64(maxGyro))
		require.LessOrEqual(t, math.Abs(float64(s.Mag.Z-prev.Mag.Z)), float64(maxMag))
		prev = s
	}
}

func TestRandomWalkMovesTowardGravity(t *testing.T) {
	walk := newTestWalk(3, 2*time.Millisecond)

	var s common.Sample
	for i := 0; i < 200; i++ {
		s = walk.Next()
	}

	// z target is between 900 and 1100 mg and reached after a few dozen updates
	assert.InDelta(t, 1000, s.Accel.Z, 100+6*accNoiseStdDev)
}

func TestRandomWalkSeedIsReproducible(t *testing.T) {
	a := newTestWalk(99, 3*time.Millisecond)
	b := newTestWalk(99, 3*time.Millisecond)
	for i := 0; i < 100; i++ {
		require.Equal(t, a.Next(), b.Next())
	}

	random := NewRandomWalk(0)
	assert.NotZero(t, random.Seed())
	assert.Equal(t, "random", random.Name())
}

func TestRandomWalkTargetsChange(t *testing.T) {
	walk := newTestWalk(11, time.Millisecond)
	walk.Next()
	first := walk.accTarget

	// targets hold for at most 3s
	for i := 0; i < 3100; i++ {
		walk.Next()
	}
	assert.NotEqual(t, first, walk.accTarget)
}

func TestSteady(t *testing.T) {
	cfg := DefaultSteadyConfig()
	cfg.RateHz = 100
	cfg.Gyro = common.Vector3i{Z: 90000}
	cfg.Start = 500

	source, err := NewSteady(cfg)
	require.NoError(t, err)
	assert.Equal(t, "steady", source.Name())

	for i := uint32(0); i < 10; i++ {
		s := source.Next()
		ts := 500 + i*10
		assert.Equal(t, ts, s.TimestampAccel)
		assert.Equal(t, ts, s.TimestampGyro)
		assert.Equal(t, ts, s.TimestampMag)
		assert.Equal(t, cfg.Gyro, s.Gyro)
		assert.Equal(t, cfg.Accel, s.Accel)
	}
}

func TestSteadyRejectsInvalidRate(t *testing.T) {
	for _, rate := range []int{0, -1, 1001} {
		cfg := DefaultSteadyConfig()
		cfg.RateHz = rate
		_, err := NewSteady(cfg)
		assert.Error(t, err, "rate %d", rate)
	}
}
