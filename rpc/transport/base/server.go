package base

import (
	"context"
	"errors"
	"fmt"
	"github.com/VictoriaMetrics/metrics"
	"github.com/ValentinKolb/imuipc/rpc/common"
	"github.com/ValentinKolb/imuipc/rpc/transport"
	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"
	"go.uber.org/multierr"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

// acceptRetryDelay is the pause after a transient accept error
const acceptRetryDelay = 100 * time.Millisecond

// -----------------------------------------------------------
// Interface Definitions for dependency injection
// -----------------------------------------------------------

// IServerConnector defines the interface for transport-specific server operations
type IServerConnector interface {
	// Listen prepares the endpoint, creates a listener and returns it
	Listen(config common.PublisherConfig) (net.Listener, error)

	// Cleanup removes the endpoint artifact after the listener was closed
	Cleanup(config common.PublisherConfig) error

	// GetName returns the name of the transport type (e.g., "unix")
	GetName() string
}

// -----------------------------------------------------------
// Helper Types
// -----------------------------------------------------------

// serverMetrics holds the per server counters. A dedicated set per server keeps
// several servers in one process (tests) from registering the same names twice
type serverMetrics struct {
	set              *metrics.Set
	framesEnqueued   *metrics.Counter
	framesWritten    *metrics.Counter
	framesDropped    *metrics.Counter
	framesRejected   *metrics.Counter
	sessionsAccepted *metrics.Counter
	sessionsClosed   *metrics.Counter
}

// serverTransport implements the core publisher transport functionality
// independent of the specific transport medium
type serverTransport struct {
	connector IServerConnector
	config    common.PublisherConfig

	mu       sync.Mutex // serializes Bind, Serve and Close
	state    atomic.Uint32
	listener net.Listener
	serving  chan struct{} // closed when the accept loop returned

	sessions *xsync.MapOf[string, *session]
	active   atomic.Int64

	// changed is closed and replaced whenever a session is added or removed
	changedMu sync.Mutex
	changed   chan struct{}

	metrics serverMetrics
}

// -----------------------------------------------------------
// Transport Factory Method (used for unix, etc.)
// -----------------------------------------------------------

// NewBasePublisherTransport creates a new base publisher transport with the specified connector
func NewBasePublisherTransport(connector IServerConnector) transport.IPublisherTransport {
	t := &serverTransport{
		connector: connector,
		sessions:  xsync.NewMapOf[string, *session](),
		changed:   make(chan struct{}),
	}

	set := metrics.NewSet()
	t.metrics = serverMetrics{
		set:              set,
		framesEnqueued:   set.NewCounter("imuipc_publisher_frames_enqueued_total"),
		framesWritten:    set.NewCounter("imuipc_publisher_frames_written_total"),
		framesDropped:    set.NewCounter("imuipc_publisher_frames_dropped_total"),
		framesRejected:   set.NewCounter("imuipc_publisher_frames_rejected_total"),
		sessionsAccepted: set.NewCounter("imuipc_publisher_sessions_accepted_total"),
		sessionsClosed:   set.NewCounter("imuipc_publisher_sessions_closed_total"),
	}
	set.NewGauge("imuipc_publisher_sessions_active", func() float64 {
		return float64(t.active.Load())
	})

	return t
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IPublisherTransport)
// --------------------------------------------------------------------------

func (t *serverTransport) Bind(config common.PublisherConfig) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if state := t.State(); state != common.ServerUnbound {
		return fmt.Errorf("cannot bind in state %s", state)
	}
	if err := config.Validate(); err != nil {
		return fmt.Errorf("invalid publisher config: %w", err)
	}

	// Create listener using the connector
	listener, err := t.connector.Listen(config)
	if err != nil {
		return fmt.Errorf("failed to bind %s endpoint %s: %w", t.connector.GetName(), config.Endpoint, err)
	}

	t.config = config
	t.listener = listener
	t.serving = nil
	t.setState(common.ServerBound)

	Logger.Infof("Bound %s endpoint %s", t.connector.GetName(), config.Endpoint)
	return nil
}

func (t *serverTransport) Serve(ctx context.Context) error {
	t.mu.Lock()
	if state := t.State(); state != common.ServerBound {
		t.mu.Unlock()
		return fmt.Errorf("cannot serve in state %s", state)
	}
	listener := t.listener
	serving := make(chan struct{})
	t.serving = serving
	t.setState(common.ServerListening)
	t.mu.Unlock()

	defer close(serving)

	// cancelling the context shuts the server down
	stop := context.AfterFunc(ctx, func() {
		if err := t.Close(); err != nil {
			Logger.Errorf("Failed to close server: %v", err)
		}
	})
	defer stop()

	Logger.Infof("Accepting consumers on %s (queue size %d, write timeout %s)",
		t.config.Endpoint, t.config.SessionQueueSize, t.config.WriteTimeout)

	// Accept connections
	for {
		conn, err := listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || t.State() != common.ServerListening {
				return nil
			}
			Logger.Errorf("Accept error: %v", err)
			time.Sleep(acceptRetryDelay)
			continue
		}

		t.startSession(conn)
	}
}

func (t *serverTransport) Publish(payload []byte) int {
	if t.State() != common.ServerListening {
		return 0
	}

	if uint32(len(payload)) > t.config.MaxFrameSize {
		t.metrics.framesRejected.Inc()
		Logger.Errorf("Dropping payload of %d bytes, exceeds max frame size of %d bytes", len(payload), t.config.MaxFrameSize)
		return 0
	}

	delivered := 0
	t.sessions.Range(func(_ string, s *session) bool {
		if s.State() != common.StateConnected {
			return true
		}
		ok, evicted := s.queue.Push(payload)
		if !ok {
			return true
		}
		delivered++
		t.metrics.framesEnqueued.Inc()
		if evicted {
			t.metrics.framesDropped.Inc()
			Logger.Debugf("Session %s is slow, dropped oldest queued frame", s.id)
		}
		return true
	})
	return delivered
}

func (t *serverTransport) WaitForSessions(ctx context.Context, n int) error {
	for {
		t.changedMu.Lock()
		changed := t.changed
		t.changedMu.Unlock()

		if t.Sessions() >= n {
			return nil
		}

		select {
		case <-changed:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (t *serverTransport) Sessions() int {
	return int(t.active.Load())
}

func (t *serverTransport) State() common.ServerState {
	return common.ServerState(t.state.Load())
}

func (t *serverTransport) WritePrometheus(w io.Writer) {
	t.metrics.set.WritePrometheus(w)
}

func (t *serverTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	state := t.State()
	if state == common.ServerUnbound || state == common.ServerShuttingDown {
		return nil
	}
	t.setState(common.ServerShuttingDown)
	Logger.Infof("Shutting down %s endpoint %s with %d sessions", t.connector.GetName(), t.config.Endpoint, t.Sessions())

	var err error

	// Stop accepting
	if cerr := t.listener.Close(); cerr != nil && !errors.Is(cerr, net.ErrClosed) {
		err = multierr.Append(err, fmt.Errorf("failed to close listener: %w", cerr))
	}
	if t.serving != nil {
		<-t.serving
	}

	// Flush or abandon all session queues in parallel
	var wg sync.WaitGroup
	var errMu sync.Mutex
	t.sessions.Range(func(_ string, s *session) bool {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if serr := s.shutdown(t.config.FlushTimeout); serr != nil {
				errMu.Lock()
				err = multierr.Append(err, serr)
				errMu.Unlock()
			}
		}()
		return true
	})
	wg.Wait()

	// Remove the artifact last so no consumer can reach a half closed server
	if cerr := t.connector.Cleanup(t.config); cerr != nil {
		err = multierr.Append(err, fmt.Errorf("failed to remove endpoint: %w", cerr))
	}

	t.listener = nil
	t.setState(common.ServerUnbound)
	Logger.Infof("Endpoint %s closed", t.config.Endpoint)
	return err
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// setState stores the new server state
func (t *serverTransport) setState(state common.ServerState) {
	t.state.Store(uint32(state))
}

// startSession registers an accepted connection and starts its goroutines
func (t *serverTransport) startSession(conn net.Conn) {
	s := newSession(uuid.NewString(), conn, t)
	t.sessions.Store(s.id, s)
	t.active.Add(1)
	t.metrics.sessionsAccepted.Inc()
	t.notifyChanged()

	Logger.Infof("Consumer connected (session %s, %d active)", s.id, t.Sessions())
	s.start()
}

// removeSession is called exactly once per session after it moved to Disconnected
func (t *serverTransport) removeSession(s *session) {
	if _, loaded := t.sessions.LoadAndDelete(s.id); !loaded {
		return
	}
	t.active.Add(-1)
	t.metrics.sessionsClosed.Inc()
	t.notifyChanged()
}

// notifyChanged wakes up all WaitForSessions callers
func (t *serverTransport) notifyChanged() {
	t.changedMu.Lock()
	defer t.changedMu.Unlock()
	close(t.changed)
	t.changed = make(chan struct{})
}
