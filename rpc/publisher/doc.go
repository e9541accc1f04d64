// Package publisher implements the producer side of the IMU stream.
//
// A Publisher ties together a sample source (lib/emulator), a serializer (rpc/serializer) and a
// publisher transport (rpc/transport). Run binds the endpoint, accepts consumers in the
// background, optionally waits until MinConsumers are connected and then publishes one sample
// per tick at RateHz. Each sample is serialized once and the same payload is fanned out to every
// connected consumer. A slow consumer only loses its own oldest frames.
//
// Usage Example:
//
//	config := common.DefaultPublisherConfig()
//	config.Endpoint = "/tmp/imu-ipc.sock"
//
//	p := publisher.NewPublisher(
//		config,
//		unix.NewUnixPublisherTransport(),
//		serializer.NewProtoSerializer(),
//		emulator.NewRandomWalk(0),
//	)
//
//	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
//	defer stop()
//	if err := p.Run(ctx); err != nil {
//		log.Fatal(err)
//	}
package publisher
