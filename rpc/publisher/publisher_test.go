package publisher

import (
	"context"
	"encoding/binary"
	"errors"
	"github.com/ValentinKolb/imuipc/lib/emulator"
	"github.com/ValentinKolb/imuipc/rpc/common"
	"github.com/ValentinKolb/imuipc/rpc/serializer"
	"github.com/ValentinKolb/imuipc/rpc/transport/unix"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"io"
	"net"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func socketPath(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "imu")
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(dir) })
	return filepath.Join(dir, "pub.sock")
}

func testConfig(path string) common.PublisherConfig {
	cfg := common.DefaultPublisherConfig()
	cfg.Endpoint = path
	cfg.RateHz = 1000
	cfg.SessionQueueSize = 1024
	cfg.FlushTimeout = 2 * time.Second
	return cfg
}

func steadySource(t *testing.T) emulator.ISampleSource {
	t.Helper()
	cfg := emulator.DefaultSteadyConfig()
	cfg.RateHz = 1000
	source, err := emulator.NewSteady(cfg)
	require.NoError(t, err)
	return source
}

func dial(t *testing.T, path string) net.Conn {
	t.Helper()
	var conn net.Conn
	require.Eventually(t, func() bool {
		c, err := net.Dial("unix", path)
		if err != nil {
			return false
		}
		conn = c
		return true
	}, 2*time.Second, 5*time.Millisecond)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readFrame(r io.Reader) ([]byte, error) {
	var prefix [4]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		return nil, err
	}
	payload := make([]byte, binary.BigEndian.Uint32(prefix[:]))
	_, err := io.ReadFull(r, payload)
	return payload, err
}

// flakySerializer fails every second sample
type flakySerializer struct {
	serializer.ISampleSerializer
	calls atomic.Int64
}

func (s *flakySerializer) Serialize(sample common.Sample) ([]byte, error) {
	if s.calls.Add(1)%2 == 0 {
		return nil, errors.New("boom")
	}
	return s.ISampleSerializer.Serialize(sample)
}

func TestPublishesSampleLimit(t *testing.T) {
	path := socketPath(t)
	cfg := testConfig(path)
	cfg.SampleLimit = 50

	codec := serializer.NewProtoSerializer()
	p := NewPublisher(cfg, unix.NewUnixPublisherTransport(), codec, steadySource(t))

	done := make(chan error, 1)
	go func() { done <- p.Run(context.Background()) }()

	conn := dial(t, path)

	var samples []common.Sample
	for {
		payload, err := readFrame(conn)
		if err != nil {
			break
		}
		var s common.Sample
		require.NoError(t, codec.Deserialize(payload, &s))
		samples = append(samples, s)
	}

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after the sample limit")
	}

	assert.Equal(t, uint64(50), p.Published())
	assert.Equal(t, uint64(50), p.Delivered())
	require.Len(t, samples, 50)
	for i, s := range samples {
		assert.Equal(t, uint32(i), s.TimestampGyro)
	}

	// the socket is removed on shutdown
	_, err := os.Lstat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestWaitsForConsumers(t *testing.T) {
	path := socketPath(t)
	cfg := testConfig(path)
	cfg.MinConsumers = 2

	p := NewPublisher(cfg, unix.NewUnixPublisherTransport(), serializer.NewProtoSerializer(), steadySource(t))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	dial(t, path)
	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, p.Published())

	dial(t, path)
	require.Eventually(t, func() bool { return p.Published() > 0 }, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestCancelWhileWaiting(t *testing.T) {
	path := socketPath(t)
	p := NewPublisher(testConfig(path), unix.NewUnixPublisherTransport(), serializer.NewProtoSerializer(), steadySource(t))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	require.NoError(t, p.Run(ctx))
	assert.Zero(t, p.Published())

	_, err := os.Lstat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestPublishesWithoutConsumers(t *testing.T) {
	cfg := testConfig(socketPath(t))
	cfg.MinConsumers = 0
	cfg.SampleLimit = 20

	p := NewPublisher(cfg, unix.NewUnixPublisherTransport(), serializer.NewProtoSerializer(), steadySource(t))
	require.NoError(t, p.Run(context.Background()))

	assert.Equal(t, uint64(20), p.Published())
	assert.Zero(t, p.Delivered())
}

func TestSerializationFailureSkipsSample(t *testing.T) {
	cfg := testConfig(socketPath(t))
	cfg.MinConsumers = 0
	cfg.SampleLimit = 10

	codec := &flakySerializer{ISampleSerializer: serializer.NewProtoSerializer()}
	p := NewPublisher(cfg, unix.NewUnixPublisherTransport(), codec, steadySource(t))
	require.NoError(t, p.Run(context.Background()))

	assert.Equal(t, uint64(10), p.Published())
	assert.Equal(t, uint64(10), p.skipped.Load())
}

func TestBindFailure(t *testing.T) {
	path := socketPath(t)
	require.NoError(t, os.WriteFile(path, []byte("not a socket"), 0o644))

	p := NewPublisher(testConfig(path), unix.NewUnixPublisherTransport(), serializer.NewProtoSerializer(), steadySource(t))
	assert.Error(t, p.Run(context.Background()))

	// the regular file is left alone
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "not a socket", string(data))
}
