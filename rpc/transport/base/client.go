package base

import (
	"context"
	"errors"
	"fmt"
	"github.com/ValentinKolb/imuipc/lib/util"
	"github.com/ValentinKolb/imuipc/rpc/common"
	"github.com/ValentinKolb/imuipc/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
	"math/rand"
	"net"
	"sync/atomic"
	"time"
)

var Logger = logger.GetLogger("transport/ipc")

// initialReadBufferSize is the starting size of the per connection read buffer, it grows on demand
const initialReadBufferSize = 4 * 1024

// -----------------------------------------------------------
// Interface Definitions for dependency injection
// -----------------------------------------------------------

// IClientConnector defines the interface for transport-specific connection operations
type IClientConnector interface {
	// Connect establishes a single connection, ctx carries the connect timeout
	Connect(ctx context.Context, endpoint string) (net.Conn, error)

	// GetName returns the name of the transport type (e.g., "unix")
	GetName() string
}

// -----------------------------------------------------------
// Helper Types
// -----------------------------------------------------------

// clientTransport implements the reconnecting consumer transport
// independent of the specific transport medium
type clientTransport struct {
	connector IClientConnector
	config    common.ConsumerConfig
	state     atomic.Uint32
	running   atomic.Bool
}

// -----------------------------------------------------------
// Transport Factory Method (used for unix, etc.)
// -----------------------------------------------------------

// NewBaseConsumerTransport creates a new base consumer transport with the specified connector
func NewBaseConsumerTransport(connector IClientConnector) transport.IConsumerTransport {
	return &clientTransport{
		connector: connector,
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IConsumerTransport)
// --------------------------------------------------------------------------

func (t *clientTransport) Run(ctx context.Context, config common.ConsumerConfig, handler transport.PayloadHandler) error {
	if err := config.Validate(); err != nil {
		return fmt.Errorf("invalid consumer config: %w", err)
	}
	if handler == nil {
		return fmt.Errorf("no payload handler provided")
	}
	if !t.running.CompareAndSwap(false, true) {
		return fmt.Errorf("consumer transport is already running")
	}
	defer t.running.Store(false)

	t.config = config
	t.setState(common.StateIdle)

	failures := 0
	var lastErr error

	for {
		if ctx.Err() != nil {
			t.setState(common.StateClosed)
			return nil
		}

		t.setState(common.StateConnecting)
		conn, err := t.connect(ctx)
		if err != nil {
			if ctx.Err() != nil {
				t.setState(common.StateClosed)
				return nil
			}

			failures++
			lastErr = err
			Logger.Warningf("Connect attempt %d failed: %v", failures, err)

			// Give up once the attempt budget is exhausted
			if config.MaxAttempts > 0 && failures >= config.MaxAttempts {
				t.setState(common.StateClosed)
				return &common.ConnectError{
					Kind:     common.ConnectGivenUp,
					Endpoint: config.Endpoint,
					Attempts: failures,
					Err:      lastErr,
				}
			}

			t.setState(common.StateReconnecting)
			if !sleepContext(ctx, t.backoff(failures)) {
				t.setState(common.StateClosed)
				return nil
			}
			continue
		}

		// the attempt budget counts consecutive failures only
		failures = 0
		t.setState(common.StateConnected)
		Logger.Infof("Connected to %s using %s transport", config.Endpoint, t.connector.GetName())

		err = t.readLoop(ctx, conn, handler)
		_ = conn.Close()

		if ctx.Err() != nil {
			t.setState(common.StateClosed)
			return nil
		}

		Logger.Warningf("Connection to %s lost: %v", config.Endpoint, err)
		t.setState(common.StateReconnecting)
		if !sleepContext(ctx, t.backoff(1)) {
			t.setState(common.StateClosed)
			return nil
		}
	}
}

func (t *clientTransport) State() common.ConnectionState {
	return common.ConnectionState(t.state.Load())
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// setState stores the new state, logs the transition and calls the state hook
func (t *clientTransport) setState(state common.ConnectionState) {
	prev := common.ConnectionState(t.state.Swap(uint32(state)))
	if prev == state {
		return
	}
	Logger.Debugf("Consumer state %s -> %s", prev, state)
	if t.config.OnStateChange != nil {
		t.config.OnStateChange(prev, state)
	}
}

// connect performs a single connect attempt bounded by the connect timeout
func (t *clientTransport) connect(ctx context.Context) (net.Conn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, t.config.ConnectTimeout)
	defer cancel()

	conn, err := t.connector.Connect(dialCtx, t.config.Endpoint)
	if err != nil {
		return nil, classifyConnectError(t.config.Endpoint, err)
	}
	return conn, nil
}

// readLoop reads frames until the connection fails, the handler rejects a payload or ctx is cancelled
func (t *clientTransport) readLoop(ctx context.Context, conn net.Conn, handler transport.PayloadHandler) error {
	// cancelling the context unblocks the pending read
	stop := context.AfterFunc(ctx, func() {
		_ = conn.Close()
	})
	defer stop()

	buf := make([]byte, initialReadBufferSize)

	for {
		if t.config.ReadTimeout > 0 {
			if err := conn.SetReadDeadline(time.Now().Add(t.config.ReadTimeout)); err != nil {
				return &common.TransportError{Kind: common.TransportClosed, Err: err}
			}
		}

		payload, err := readFrame(conn, buf, t.config.MaxFrameSize)
		if err != nil {
			return err
		}

		// zero length frames are keepalives
		if len(payload) == 0 {
			Logger.Debugf("Received keepalive frame")
			continue
		}

		// keep a grown buffer for the next frame
		if cap(payload) > len(buf) {
			buf = payload[:cap(payload)]
		}

		if err := handler(payload); err != nil {
			return fmt.Errorf("payload rejected: %w", err)
		}
	}
}

// backoff returns the jittered wait before the next attempt
func (t *clientTransport) backoff(attempt int) time.Duration {
	// Exponential backoff with a small random jitter (+-10%)
	return util.Backoff(t.config.BackoffInitial, t.config.BackoffMax, attempt, 2*rand.Float64()-1)
}

// classifyConnectError maps a dial error to a ConnectError of kind timeout or refused
func classifyConnectError(endpoint string, err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &common.ConnectError{Kind: common.ConnectTimeout, Endpoint: endpoint, Err: err}
	}
	return &common.ConnectError{Kind: common.ConnectRefused, Endpoint: endpoint, Err: err}
}

// sleepContext waits for d and reports false if ctx was cancelled first
func sleepContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
