// Package common provides the core data structures and utilities shared by the
// publisher, the consumer and the transport layer of the IMU streaming system.
//
// The package focuses on:
//   - The IMU sample data model that travels over the local socket
//   - Connection and server state enumerations
//   - The error taxonomy of codecs, framing and connection establishment
//   - Configuration structures for the publisher and the consumer
//   - Custom logging implementation integrated with the Dragonboat logger facade
//
// Key Components:
//
//   - Sample: One IMU reading (accelerometer in mg, gyroscope in mdeg/s,
//     magnetometer in mGauss) with an independent timestamp per sensor.
//     Samples are plain values and are copied across every boundary.
//
//   - ConnectionState / ServerState: The lifecycle states of a consumer
//     client, of a publisher session and of the publisher server.
//
//   - CodecError, TransportError, ConnectError: Typed errors that match the
//     sentinels ErrMalformed, ErrClosed, ErrOversizedFrame, ErrConnectTimeout,
//     ErrConnectRefused and ErrGivenUp via errors.Is.
//
//   - PublisherConfig / ConsumerConfig: All tunables with defaults, validation
//     and a human readable String() representation.
//
//   - Logger: Custom logging implementation that integrates with Dragonboat's
//     logging system while providing consistent formatting across the application.
package common
