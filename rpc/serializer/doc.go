// Package serializer provides sample serialization for the IMU streaming system.
// It defines a common interface and multiple implementations for turning one
// common.Sample into the payload of a single frame and back.
//
// The package focuses on:
//   - Providing a consistent interface for different serialization formats
//   - A compact default encoding that other languages can read (protobuf)
//   - Strict failure reporting: malformed input never yields a partial sample
//
// Key Components:
//
//   - ISampleSerializer: Core interface that all serializer implementations must satisfy.
//
//   - protoSerializerImpl: The protobuf wire encoding of the ImuData message
//     (imu.proto). All twelve fields are always written in field number order,
//     which makes the encoding deterministic and never empty. Unknown fields are
//     skipped on decode, known fields with a wrong wire type are rejected.
//
//   - jsonSerializerImpl: Implementation using JSON encoding, useful for debugging.
//     Non-finite floats cannot be represented and fail to serialize.
//
//   - gobSerializerImpl: Implementation using Go's built-in gob encoding. Each frame
//     is self describing which makes it by far the largest encoding.
//
// Errors:
//
//	Every Deserialize failure is a *common.CodecError matching common.ErrMalformed.
//	The target sample is only written when decoding succeeded.
//
// Thread Safety:
//
//	All serializer implementations are stateless and safe for concurrent use
//	across multiple goroutines without additional synchronization.
//
// Usage:
//
//	  s, err := serializer.FromName("proto")
//	  data, err := s.Serialize(sample)
//	  // ... send data ...
//	  var received common.Sample
//	  err = s.Deserialize(data, &received)
package serializer
