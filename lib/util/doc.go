// Package util provides small utility components shared by the transport and the emulator.
//
// The package contains:
//   - dropqueue: A bounded drop-oldest Single-Producer Single-Consumer queue. Every publisher
//     session owns one, so a slow consumer loses its oldest samples instead of stalling the
//     publisher or any other consumer.
//   - functions: Seed generation and the capped exponential backoff used by the reconnecting client
package util
