package transport

import (
	"context"
	"github.com/ValentinKolb/imuipc/rpc/common"
	"io"
)

// --------------------------------------------------------------------------
// Publisher Transport
// --------------------------------------------------------------------------

// IPublisherTransport is the interface for the publishing end of the channel.
// It owns the endpoint and fans every published payload out to all connected consumers.
type IPublisherTransport interface {
	// Bind prepares the endpoint (stale artifact removal, parent directory) and starts listening.
	// Bind failure is a startup failure and is returned to the caller
	Bind(config common.PublisherConfig) error
	// Serve runs the accept loop until Close is called or ctx is cancelled
	Serve(ctx context.Context) error
	// Publish enqueues payload for every connected consumer and returns how many sessions received it.
	// It never blocks, slow consumers lose their oldest queued payloads instead.
	// The payload must not be modified after the call
	Publish(payload []byte) int
	// WaitForSessions blocks until at least n consumers are connected or ctx is done
	WaitForSessions(ctx context.Context, n int) error
	// Sessions returns the number of connected consumers
	Sessions() int
	// State returns the current server state
	State() common.ServerState
	// WritePrometheus writes the transport metrics in Prometheus text format
	WritePrometheus(w io.Writer)
	// Close stops accepting, flushes or abandons pending payloads, closes all sessions
	// and removes the endpoint artifact. Close is idempotent
	Close() error
}

// --------------------------------------------------------------------------
// Consumer Transport
// --------------------------------------------------------------------------

// PayloadHandler is called by the consumer transport for every non empty frame in arrival order.
// The payload is only valid for the duration of the call. Returning an error tears the
// connection down and triggers a reconnect
type PayloadHandler func(payload []byte) error

// IConsumerTransport is the interface for the consuming end of the channel
type IConsumerTransport interface {
	// Run connects to the endpoint and delivers frames to handler, reconnecting on failures.
	// It returns nil when ctx is cancelled and a *common.ConnectError of kind ConnectGivenUp
	// once the configured attempt budget is exhausted
	Run(ctx context.Context, config common.ConsumerConfig, handler PayloadHandler) error
	// State returns the current connection state
	State() common.ConnectionState
}
