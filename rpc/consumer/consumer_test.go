package consumer

import (
	"context"
	"encoding/binary"
	"errors"
	"github.com/ValentinKolb/imuipc/lib/emulator"
	"github.com/ValentinKolb/imuipc/lib/motion"
	"github.com/ValentinKolb/imuipc/rpc/common"
	"github.com/ValentinKolb/imuipc/rpc/publisher"
	"github.com/ValentinKolb/imuipc/rpc/serializer"
	"github.com/ValentinKolb/imuipc/rpc/transport/unix"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"math"
	"net"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

// --------------------------------------------------------------------------
// Helpers
// --------------------------------------------------------------------------

func socketPath(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "imu")
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(dir) })
	return filepath.Join(dir, "imu.sock")
}

func consumerConfig(path string) common.ConsumerConfig {
	cfg := common.DefaultConsumerConfig()
	cfg.Endpoint = path
	cfg.ConnectTimeout = 200 * time.Millisecond
	cfg.BackoffInitial = 10 * time.Millisecond
	cfg.BackoffMax = 50 * time.Millisecond
	return cfg
}

func newProcessor(t *testing.T, mutate func(*motion.Config)) *motion.Processor {
	t.Helper()
	cfg := motion.DefaultConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	p, err := motion.NewProcessor(cfg)
	require.NoError(t, err)
	return p
}

func writeFrame(conn net.Conn, payload []byte) error {
	var prefix [4]byte
	binary.BigEndian.PutUint32(prefix[:], uint32(len(payload)))
	_, err := conn.Write(append(prefix[:], payload...))
	return err
}

func runConsumer(t *testing.T, c *Consumer) (cancel func() error) {
	t.Helper()
	ctx, stop := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	var once atomic.Bool
	cancel = func() error {
		stop()
		if !once.CompareAndSwap(false, true) {
			return nil
		}
		select {
		case err := <-done:
			return err
		case <-time.After(3 * time.Second):
			return errors.New("consumer did not stop")
		}
	}
	t.Cleanup(func() { _ = cancel() })
	return cancel
}

func toDegrees(rad float64) float64 {
	return rad * 180 / math.Pi
}

// --------------------------------------------------------------------------
// Tests
// --------------------------------------------------------------------------

func TestHandleAppliesSamples(t *testing.T) {
	codec := serializer.NewProtoSerializer()
	var hooked []motion.State
	c := NewConsumer(consumerConfig("unused"), unix.NewUnixConsumerTransport(), codec, newProcessor(t, nil),
		WithReportInterval(-1),
		WithSnapshotHook(func(s motion.State) { hooked = append(hooked, s) }),
	)

	for i := uint32(0); i < 5; i++ {
		payload, err := codec.Serialize(common.Sample{
			Accel:          common.Vector3f{Z: 1000},
			TimestampAccel: i * 4,
			TimestampGyro:  i * 4,
		})
		require.NoError(t, err)
		require.NoError(t, c.handle(payload))
	}

	stats := c.Stats()
	assert.Equal(t, int64(5), stats.Samples)
	assert.Zero(t, stats.DecodeErrors)
	assert.Zero(t, stats.Warnings)
	assert.Equal(t, 4.0, stats.GyroDtMeanMs)
	assert.Equal(t, int64(4), stats.GyroDtMaxMs)

	require.Len(t, hooked, 5)
	assert.Equal(t, hooked[4], c.Snapshot())
	assert.Equal(t, uint32(16), c.Snapshot().Last.Gyro)
}

func TestHandleCountsWarnings(t *testing.T) {
	codec := serializer.NewProtoSerializer()
	c := NewConsumer(consumerConfig("unused"), unix.NewUnixConsumerTransport(), codec, newProcessor(t, nil), WithReportInterval(-1))

	for _, ts := range []uint32{0, 1000} {
		payload, err := codec.Serialize(common.Sample{TimestampGyro: ts})
		require.NoError(t, err)
		require.NoError(t, c.handle(payload))
	}

	// 1s between two gyro readings is a gap
	assert.Equal(t, int64(1), c.Stats().Warnings)
}

func TestHandleRejectsGarbage(t *testing.T) {
	c := NewConsumer(consumerConfig("unused"), unix.NewUnixConsumerTransport(), serializer.NewProtoSerializer(), newProcessor(t, nil))

	before := c.Snapshot()
	err := c.handle([]byte{0x0d, 0x01})
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrMalformed))
	assert.Equal(t, int64(1), c.Stats().DecodeErrors)
	assert.Zero(t, c.Stats().Samples)
	assert.Equal(t, before, c.Snapshot())
}

func TestGivesUpWithoutPublisher(t *testing.T) {
	cfg := consumerConfig(socketPath(t))
	cfg.MaxAttempts = 3

	c := NewConsumer(cfg, unix.NewUnixConsumerTransport(), serializer.NewProtoSerializer(), newProcessor(t, nil))
	err := c.Run(context.Background())

	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrGivenUp))
	var connectErr *common.ConnectError
	require.True(t, errors.As(err, &connectErr))
	assert.Equal(t, 3, connectErr.Attempts)
	assert.Equal(t, common.StateClosed, c.State())
}

func TestDecodeErrorReconnects(t *testing.T) {
	path := socketPath(t)
	listener, err := net.Listen("unix", path)
	require.NoError(t, err)
	defer listener.Close()

	codec := serializer.NewProtoSerializer()
	valid, err := codec.Serialize(common.Sample{Accel: common.Vector3f{Z: 1000}, TimestampGyro: 42})
	require.NoError(t, err)

	// first connection sends garbage, the second one a valid sample
	go func() {
		first, err := listener.Accept()
		if err != nil {
			return
		}
		defer first.Close()
		_ = writeFrame(first, []byte{0xff, 0xff, 0xff})

		second, err := listener.Accept()
		if err != nil {
			return
		}
		defer second.Close()
		_ = writeFrame(second, valid)
		time.Sleep(time.Second)
	}()

	var stateChanges atomic.Int64
	cfg := consumerConfig(path)
	cfg.OnStateChange = func(_, _ common.ConnectionState) { stateChanges.Add(1) }

	c := NewConsumer(cfg, unix.NewUnixConsumerTransport(), codec, newProcessor(t, nil))
	cancel := runConsumer(t, c)

	require.Eventually(t, func() bool { return c.Stats().Samples == 1 }, 3*time.Second, 5*time.Millisecond)
	require.NoError(t, cancel())

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.DecodeErrors)
	assert.Equal(t, int64(1), stats.Reconnects)
	assert.Equal(t, uint32(42), c.Snapshot().Last.Gyro)

	// the user hook is still called
	assert.Greater(t, stateChanges.Load(), int64(3))
}

// TestEndToEnd streams a constant yaw rate of 90 deg/s from a publisher to a consumer over a
// real unix socket. 100 samples at 100 Hz are 99 integration steps of 10 ms
func TestEndToEnd(t *testing.T) {
	path := socketPath(t)

	steady := emulator.DefaultSteadyConfig()
	steady.RateHz = 100
	steady.Gyro = common.Vector3i{Z: 90000}
	source, err := emulator.NewSteady(steady)
	require.NoError(t, err)

	pubConfig := common.DefaultPublisherConfig()
	pubConfig.Endpoint = path
	pubConfig.RateHz = 1000
	pubConfig.SampleLimit = 100
	pubConfig.SessionQueueSize = 256
	pubConfig.FlushTimeout = 2 * time.Second

	codec := serializer.NewProtoSerializer()
	pub := publisher.NewPublisher(pubConfig, unix.NewUnixPublisherTransport(), codec, source)

	pubDone := make(chan error, 1)
	go func() { pubDone <- pub.Run(context.Background()) }()

	var received atomic.Int64
	processor := newProcessor(t, func(c *motion.Config) { c.MagCorrectionWeight = 0 })
	c := NewConsumer(consumerConfig(path), unix.NewUnixConsumerTransport(), codec, processor,
		WithReportInterval(100*time.Millisecond),
		WithSnapshotHook(func(motion.State) { received.Add(1) }),
	)
	cancel := runConsumer(t, c)

	require.Eventually(t, func() bool { return received.Load() == 100 }, 5*time.Second, 5*time.Millisecond)

	select {
	case err := <-pubDone:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("publisher did not stop")
	}
	require.NoError(t, cancel())

	state := c.Snapshot()
	roll, pitch, yaw := state.Euler()
	assert.InDelta(t, 89.1, toDegrees(yaw), 1e-6)
	assert.InDelta(t, 0, roll, 1e-9)
	assert.InDelta(t, 0, pitch, 1e-9)
	assert.InDelta(t, 0, state.Velocity.Norm(), 1e-9)
	assert.InDelta(t, 0, state.Position.Norm(), 1e-9)

	stats := c.Stats()
	assert.Equal(t, int64(100), stats.Samples)
	assert.Zero(t, stats.Warnings)
	assert.Zero(t, stats.DecodeErrors)
	assert.Equal(t, 10.0, stats.GyroDtMeanMs)
}
