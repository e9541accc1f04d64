// Package consumer implements the receiving side of the IMU stream.
//
// A Consumer runs a consumer transport (rpc/transport), decodes every payload with the
// configured serializer (rpc/serializer) and applies the sample to a motion.State using a
// motion.Processor (lib/motion). The state lives on the read loop only. Snapshot returns a
// copy for reporting, the snapshot hook receives every new state and the current pose is
// logged once per report interval in the form
//
//	Pos: [x, y, z]m | Vel: [x, y, z]m/s | Orient: [w, x, y, z]quat
//
// A payload that fails to decode tears down the connection and the transport reconnects.
// Integration warnings (gaps, non-finite readings, clamping) are logged and counted but never
// stop the consumer. Statistics are kept in a go-metrics registry (samples, decode_errors,
// reconnects, warnings, dt_gyro_ms).
//
// Usage Example:
//
//	processor, err := motion.NewProcessor(motion.DefaultConfig())
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	c := consumer.NewConsumer(
//		common.DefaultConsumerConfig(),
//		unix.NewUnixConsumerTransport(),
//		serializer.NewProtoSerializer(),
//		processor,
//	)
//
//	if err := c.Run(ctx); err != nil {
//		log.Fatal(err) // gave up connecting
//	}
package consumer
