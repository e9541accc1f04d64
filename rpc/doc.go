// Package rpc provides the communication layer of imuipc: everything between
// a sample leaving the emulator and a sample entering the motion processor.
//
// The package is organized into several subpackages:
//
//   - common: Core data structures and utilities used across the system,
//     including the Sample type, the error taxonomy, configuration structures and logging.
//
//   - serializer: Sample encoding with multiple format options (protobuf wire format, JSON, GOB)
//     for converting between Sample values and frame payloads.
//
//   - transport: Length prefixed framing and the pub/sub socket abstractions with the unix
//     domain socket implementation (fan-out publisher, reconnecting consumer).
//
//   - publisher: The producer service publishing samples at a fixed rate.
//
//   - consumer: The consumer service decoding samples and running the motion processor.
package rpc
