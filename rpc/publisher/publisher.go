package publisher

import (
	"context"
	"fmt"
	"github.com/ValentinKolb/imuipc/lib/emulator"
	"github.com/ValentinKolb/imuipc/rpc/common"
	"github.com/ValentinKolb/imuipc/rpc/serializer"
	"github.com/ValentinKolb/imuipc/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
	"sync/atomic"
	"time"
)

var Logger = logger.GetLogger("publisher")

// statsInterval is the period of the throughput log line
const statsInterval = 10 * time.Second

// Publisher streams samples from a source to all connected consumers at a fixed rate
type Publisher struct {
	config     common.PublisherConfig
	transport  transport.IPublisherTransport
	serializer serializer.ISampleSerializer
	source     emulator.ISampleSource

	published atomic.Uint64
	delivered atomic.Uint64
	skipped   atomic.Uint64
}

// NewPublisher creates a new publisher
// It takes a config, transport, serializer and sample source as parameters
//
// Usage:
//
//	p := publisher.NewPublisher(
//		config,
//		unix.NewUnixPublisherTransport(),
//		serializer.NewProtoSerializer(),
//		emulator.NewRandomWalk(0),
//	)
//
//	if err := p.Run(ctx); err != nil {
//		panic(err)
//	}
func NewPublisher(
	config common.PublisherConfig,
	transport transport.IPublisherTransport,
	serializer serializer.ISampleSerializer,
	source emulator.ISampleSource,
) *Publisher {
	return &Publisher{
		config:     config,
		transport:  transport,
		serializer: serializer,
		source:     source,
	}
}

// Run binds the endpoint, accepts consumers and publishes samples until ctx is cancelled
// or SampleLimit samples were published. The transport is closed (and its queues flushed)
// before Run returns. Cancelling ctx is a normal shutdown and returns nil
func (p *Publisher) Run(ctx context.Context) error {
	Logger.Infof("Starting publisher (source %s, serializer %s)", p.source.Name(), p.serializer.Name())
	Logger.Infof(p.config.String())

	if err := p.transport.Bind(p.config); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)

	// Accept loop, returns once the transport is closed
	g.Go(func() error {
		return p.transport.Serve(gctx)
	})

	// Publish loop, cancelling stops the accept loop as well
	g.Go(func() error {
		defer cancel()
		return p.publishLoop(gctx)
	})

	err := g.Wait()

	// Serve returns as soon as the listener is closed, Close blocks until all queues are flushed
	if cerr := p.transport.Close(); cerr != nil {
		err = multierr.Append(err, fmt.Errorf("failed to close transport: %w", cerr))
	}

	Logger.Infof("Publisher stopped after %d samples (%d frames delivered, %d skipped)",
		p.Published(), p.delivered.Load(), p.skipped.Load())
	return err
}

// Published returns the number of samples handed to the transport
func (p *Publisher) Published() uint64 {
	return p.published.Load()
}

// Delivered returns the number of frames enqueued over all sessions
func (p *Publisher) Delivered() uint64 {
	return p.delivered.Load()
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// publishLoop waits for the minimum number of consumers and then emits one sample per tick
func (p *Publisher) publishLoop(ctx context.Context) error {
	if p.config.MinConsumers > 0 {
		Logger.Infof("Waiting for %d consumer(s) to connect...", p.config.MinConsumers)
		if err := p.transport.WaitForSessions(ctx, p.config.MinConsumers); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}

	Logger.Infof("Starting to publish data at %d Hz", p.config.RateHz)

	ticker := time.NewTicker(p.config.Interval())
	defer ticker.Stop()

	lastStats := time.Now()
	var lastPublished uint64

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		p.publishOne()

		published := p.Published()
		if p.config.SampleLimit > 0 && published >= uint64(p.config.SampleLimit) {
			Logger.Infof("Sample limit of %d reached", p.config.SampleLimit)
			return nil
		}

		if since := time.Since(lastStats); since >= statsInterval {
			rate := float64(published-lastPublished) / since.Seconds()
			Logger.Infof("Published %d samples (%.1f/s) to %d consumer(s)", published, rate, p.transport.Sessions())
			lastStats, lastPublished = time.Now(), published
		}
	}
}

// publishOne serializes the next sample and fans it out. A sample that fails to
// serialize is logged and skipped
func (p *Publisher) publishOne() {
	sample := p.source.Next()

	payload, err := p.serializer.Serialize(sample)
	if err != nil {
		p.skipped.Add(1)
		Logger.Errorf("Failed to serialize sample %s: %v", sample, err)
		return
	}

	n := p.transport.Publish(payload)
	p.published.Add(1)
	p.delivered.Add(uint64(n))
	Logger.Debugf("Published %s to %d consumer(s)", sample, n)
}
