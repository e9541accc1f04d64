// Package transport defines the interfaces and abstractions for the local publish/subscribe
// channel that carries IMU samples from one publisher to any number of consumers. It provides
// a common contract that all transport implementations must fulfill.
//
// The package focuses on:
//   - Defining clear interfaces for the publishing and the consuming end
//   - Keeping the payload opaque: transports move byte slices, serializers give them meaning
//   - Enabling the base transport to be reused with different socket connectors
//
// Key Components:
//
//   - IPublisherTransport: Interface for the publishing end that owns the endpoint,
//     accepts consumers and fans payloads out to them without ever blocking.
//
//   - IConsumerTransport: Interface for the consuming end that connects, reads frames
//     and reconnects with backoff when the connection breaks.
//
//   - PayloadHandler: Function type for frame handling callbacks.
package transport
