package consumer

import (
	"context"
	"fmt"
	"github.com/ValentinKolb/imuipc/lib/motion"
	"github.com/ValentinKolb/imuipc/rpc/common"
	"github.com/ValentinKolb/imuipc/rpc/serializer"
	"github.com/ValentinKolb/imuipc/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
	gometrics "github.com/rcrowley/go-metrics"
	"sync"
	"time"
)

var Logger = logger.GetLogger("consumer")

// Option configures optional behavior of a Consumer
type Option func(*Consumer)

// WithReportInterval sets how often the current state is logged at info level.
// An interval of 0 logs every sample, a negative interval disables the log line
func WithReportInterval(interval time.Duration) Option {
	return func(c *Consumer) {
		c.reportInterval = interval
	}
}

// WithSnapshotHook registers fn to be called with the new state after every applied sample.
// It runs on the read loop and must not block
func WithSnapshotHook(fn func(motion.State)) Option {
	return func(c *Consumer) {
		c.onSnapshot = fn
	}
}

// Stats is a point in time copy of the consumer statistics
type Stats struct {
	Samples      int64
	SampleRate1  float64 // one minute moving average in samples per second
	DecodeErrors int64
	Reconnects   int64
	Warnings     int64
	GyroDtMeanMs float64
	GyroDtMaxMs  int64
}

// Consumer receives samples from the publisher and reconstructs the motion of the device.
// The live motion.State is owned by the read loop, Snapshot returns a copy for reporting.
type Consumer struct {
	config     common.ConsumerConfig
	transport  transport.IConsumerTransport
	serializer serializer.ISampleSerializer
	processor  *motion.Processor

	reportInterval time.Duration
	onSnapshot     func(motion.State)

	// read loop only
	state      motion.State
	lastReport time.Time
	connected  bool

	mu       sync.Mutex
	snapshot motion.State

	registry     gometrics.Registry
	samples      gometrics.Meter
	decodeErrors gometrics.Counter
	reconnects   gometrics.Counter
	warnings     gometrics.Counter
	dtGyro       gometrics.Histogram
}

// NewConsumer creates a new consumer
// It takes a config, transport, serializer and motion processor as parameters
//
// Usage:
//
//	c := consumer.NewConsumer(
//		config,
//		unix.NewUnixConsumerTransport(),
//		serializer.NewProtoSerializer(),
//		processor,
//		consumer.WithReportInterval(time.Second),
//	)
//
//	if err := c.Run(ctx); err != nil {
//		panic(err)
//	}
func NewConsumer(
	config common.ConsumerConfig,
	transport transport.IConsumerTransport,
	serializer serializer.ISampleSerializer,
	processor *motion.Processor,
	opts ...Option,
) *Consumer {
	c := &Consumer{
		config:         config,
		transport:      transport,
		serializer:     serializer,
		processor:      processor,
		reportInterval: time.Second,
		state:          motion.NewState(),
		snapshot:       motion.NewState(),
		registry:       gometrics.NewRegistry(),
		samples:        gometrics.NewMeter(),
		decodeErrors:   gometrics.NewCounter(),
		reconnects:     gometrics.NewCounter(),
		warnings:       gometrics.NewCounter(),
		dtGyro:         gometrics.NewHistogram(gometrics.NewUniformSample(1028)),
	}
	for _, opt := range opts {
		opt(c)
	}

	_ = c.registry.Register("samples", c.samples)
	_ = c.registry.Register("decode_errors", c.decodeErrors)
	_ = c.registry.Register("reconnects", c.reconnects)
	_ = c.registry.Register("warnings", c.warnings)
	_ = c.registry.Register("dt_gyro_ms", c.dtGyro)

	return c
}

// Run connects to the publisher and processes samples until ctx is cancelled (returns nil)
// or the connect attempt budget is exhausted (returns a *common.ConnectError of kind GivenUp)
func (c *Consumer) Run(ctx context.Context) error {
	Logger.Infof("Starting consumer (serializer %s)", c.serializer.Name())
	Logger.Infof(c.config.String())

	config := c.config
	userHook := config.OnStateChange
	config.OnStateChange = func(from, to common.ConnectionState) {
		c.onStateChange(from, to)
		if userHook != nil {
			userHook(from, to)
		}
	}

	err := c.transport.Run(ctx, config, c.handle)
	Logger.Infof("Consumer stopped, final state: %s", c.Snapshot().String())
	return err
}

// Snapshot returns a copy of the state after the last applied sample
func (c *Consumer) Snapshot() motion.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot
}

// State returns the connection state of the underlying transport
func (c *Consumer) State() common.ConnectionState {
	return c.transport.State()
}

// Registry returns the go-metrics registry holding the consumer statistics
func (c *Consumer) Registry() gometrics.Registry {
	return c.registry
}

// Stats returns a copy of the consumer statistics
func (c *Consumer) Stats() Stats {
	dt := c.dtGyro.Snapshot()
	return Stats{
		Samples:      c.samples.Count(),
		SampleRate1:  c.samples.Rate1(),
		DecodeErrors: c.decodeErrors.Count(),
		Reconnects:   c.reconnects.Count(),
		Warnings:     c.warnings.Count(),
		GyroDtMeanMs: dt.Mean(),
		GyroDtMaxMs:  dt.Max(),
	}
}

// String renders the statistics in a single log line
func (s Stats) String() string {
	return fmt.Sprintf("samples=%d (%.1f/s) decode_errors=%d reconnects=%d warnings=%d dt_gyro=%.2fms (max %dms)",
		s.Samples, s.SampleRate1, s.DecodeErrors, s.Reconnects, s.Warnings, s.GyroDtMeanMs, s.GyroDtMaxMs)
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// handle decodes one payload and applies it to the motion state. A decode error is
// returned so the transport drops the connection, the stream can no longer be trusted
func (c *Consumer) handle(payload []byte) error {
	var sample common.Sample
	if err := c.serializer.Deserialize(payload, &sample); err != nil {
		c.decodeErrors.Inc(1)
		Logger.Warningf("Failed to decode sample (%d bytes): %v", len(payload), err)
		return err
	}

	prev := c.state
	next, warnings := c.processor.Update(prev, sample)
	c.state = next

	c.samples.Mark(1)
	if prev.Last.HasGyro {
		if dt := sample.TimestampGyro - prev.Last.Gyro; dt != 0 {
			c.dtGyro.Update(int64(dt))
		}
	}
	for _, w := range warnings {
		c.warnings.Inc(1)
		Logger.Warningf("Integration warning: %s", w)
	}

	c.mu.Lock()
	c.snapshot = next
	c.mu.Unlock()

	if c.onSnapshot != nil {
		c.onSnapshot(next)
	}
	c.report(next)
	return nil
}

// report logs the state at most once per report interval
func (c *Consumer) report(state motion.State) {
	if c.reportInterval < 0 {
		return
	}
	now := time.Now()
	if c.reportInterval > 0 && now.Sub(c.lastReport) < c.reportInterval {
		return
	}
	c.lastReport = now
	Logger.Infof("%s", state.String())
	Logger.Debugf("Stats: %s", c.Stats())
}

// onStateChange runs on the read loop goroutine. A new connection may come from a restarted
// publisher, so the sensor timestamps are forgotten and the next sample only initializes them
func (c *Consumer) onStateChange(from, to common.ConnectionState) {
	if to != common.StateConnected {
		return
	}
	if c.connected {
		c.reconnects.Inc(1)
		Logger.Infof("Reconnected, keeping pose %s", c.state.String())
	}
	c.connected = true
	c.state.Last = motion.Timestamps{}
}
