package base

import (
	"errors"
	"github.com/ValentinKolb/imuipc/lib/util"
	"github.com/ValentinKolb/imuipc/rpc/common"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

// session is the publisher side of one consumer connection.
//
// Payloads flow from Publish into the bounded drop-oldest queue and are written by a single
// writer goroutine, so frames on one connection are never interleaved. A second goroutine
// reads from the socket only to notice when the consumer goes away.
type session struct {
	id     string
	conn   net.Conn
	queue  *util.DropQueue[[]byte]
	parent *serverTransport

	state      atomic.Uint32
	abort      chan struct{} // closed on disconnect, stops the writer
	writerDone chan struct{} // closed when the writer goroutine returned

	closeOnce sync.Once
	closeErr  error
}

// newSession creates a session in the Connected state
func newSession(id string, conn net.Conn, parent *serverTransport) *session {
	s := &session{
		id:         id,
		conn:       conn,
		queue:      util.NewDropQueue[[]byte](parent.config.SessionQueueSize),
		parent:     parent,
		abort:      make(chan struct{}),
		writerDone: make(chan struct{}),
	}
	s.state.Store(uint32(common.StateConnected))
	return s
}

// start launches the writer and the peer close detector
func (s *session) start() {
	go s.writeLoop()
	go s.detectPeerClose()
}

// State returns the connection state of the session
func (s *session) State() common.ConnectionState {
	return common.ConnectionState(s.state.Load())
}

// shutdown lets the writer flush the queue for up to flushTimeout and then closes the connection
func (s *session) shutdown(flushTimeout time.Duration) error {
	s.queue.Close()

	if flushTimeout > 0 {
		timer := time.NewTimer(flushTimeout)
		select {
		case <-s.writerDone:
		case <-timer.C:
			Logger.Warningf("Session %s did not flush in %s, abandoning %d frames", s.id, flushTimeout, s.queue.Len())
		}
		timer.Stop()
	}

	s.disconnect(nil)
	<-s.writerDone
	return s.closeErr
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// writeLoop pops payloads in FIFO order and writes them until the queue is closed and drained
// or the session is disconnected
func (s *session) writeLoop() {
	defer close(s.writerDone)

	timeout := s.parent.config.WriteTimeout

	for {
		// closed must be read before popping, otherwise a payload pushed between
		// an empty pop and the close check would be lost
		closed := s.queue.IsClosed()

		payload, ok := s.queue.TryPop()
		if ok {
			if timeout > 0 {
				if err := s.conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
					s.disconnect(err)
					return
				}
			}
			if err := writeFrame(s.conn, payload); err != nil {
				s.disconnect(err)
				return
			}
			s.parent.metrics.framesWritten.Inc()
			continue
		}

		if closed {
			return
		}

		select {
		case <-s.queue.Ready():
		case <-s.abort:
			return
		}
	}
}

// detectPeerClose drains the socket until it fails. Consumers never send data, so
// any read result other than data means the peer is gone or the session was closed
func (s *session) detectPeerClose() {
	buf := make([]byte, 512)
	for {
		if _, err := s.conn.Read(buf); err != nil {
			s.disconnect(err)
			return
		}
	}
}

// disconnect moves the session to Disconnected, discards its queue, closes the socket
// and removes it from the fan-out set. Only the first call has an effect
func (s *session) disconnect(cause error) {
	s.closeOnce.Do(func() {
		s.state.Store(uint32(common.StateDisconnected))
		close(s.abort)

		s.queue.Close()
		discarded := s.queue.Discard()

		if err := s.conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			s.closeErr = err
		}
		s.parent.removeSession(s)

		switch {
		case cause == nil:
			Logger.Debugf("Session %s closed (%d frames discarded)", s.id, discarded)
		case errors.Is(cause, io.EOF) || errors.Is(cause, net.ErrClosed):
			Logger.Infof("Consumer disconnected (session %s, %d frames discarded)", s.id, discarded)
		default:
			Logger.Warningf("Session %s failed: %v (%d frames discarded)", s.id, cause, discarded)
		}
	})
}
