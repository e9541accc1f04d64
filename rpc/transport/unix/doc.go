// Package unix implements the IMU channel transport on top of Unix domain stream sockets.
// It provides low latency communication for processes running on the same machine.
//
// This package extends the base transport layer with Unix socket-specific connectors
// while inheriting all core functionality like framing, per consumer queues, fan-out
// and reconnection from the base package.
//
// Key Components:
//
//   - serverConnector: Prepares the socket path (creates the parent directory, removes a
//     stale socket of a previous run), creates the listener and removes the socket file
//     again on shutdown. Regular files at the socket path are never deleted.
//
//   - clientConnector: Establishes connections using Unix domain sockets. A missing socket
//     file or a socket without listener surfaces as a refused connect attempt.
//
// Usage:
//
//	publisher := unix.NewUnixPublisherTransport()
//	consumer := unix.NewUnixConsumerTransport()
package unix
