// Package base provides the protocol independent core of the IMU channel transport.
// It implements framing, the fan-out publisher and the reconnecting consumer, and can be
// extended with socket specific connectors.
//
// The package focuses on:
//   - Length prefixed framing of opaque payloads on a byte stream
//   - Fan-out to any number of consumers without letting a slow consumer stall the others
//   - Reconnection with capped exponential backoff on the consumer side
//   - Explicit lifecycle state machines for the server, its sessions and the client
//
// Key Components:
//
//   - IClientConnector/IServerConnector: Interfaces for protocol-specific operations
//     that allow extending the base transport with different socket types.
//
//   - writeFrame/readFrame: Frame format is a 4 byte big endian length followed by the
//     payload. Lengths above the configured maximum are rejected before reading the
//     payload. There is no resynchronization, a framing error ends the connection.
//
//   - serverTransport: Owns the listener and the fan-out set of sessions
//     (Unbound -> Bound -> Listening -> ShuttingDown -> Unbound). Exposes its counters
//     through a VictoriaMetrics set.
//
//   - session: One accepted consumer. It owns a bounded drop-oldest queue and a single
//     writer goroutine. Write failure or peer close moves it to Disconnected and removes it
//     from the fan-out set without touching other sessions or the endpoint.
//
//   - clientTransport: Runs the consumer state machine
//     (Idle -> Connecting -> Connected -> Reconnecting -> Closed), hands every non empty
//     frame to the payload handler and reconnects on transport or handler errors.
//
// Thread Safety:
//
//	Publish may be called from any goroutine but is designed for a single publishing loop.
//	All other public methods are thread-safe. Every connection has exactly one writer.
package base
