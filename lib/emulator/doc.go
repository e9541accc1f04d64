/*
Package emulator provides the sample sources used by the publisher.

Two sources are available:

  - RandomWalk emulates a moving IMU. Every one to three seconds it picks new random target
    readings, each sensor moves toward its target by a bounded step per update, is smoothed
    with a low-pass filter and receives gaussian noise. The sensors tick independently with a
    small random jitter, so their timestamps advance at different rates.
  - Steady emits a constant reading with timestamps advancing at a fixed rate. It is used for
    reproducible end-to-end runs (e.g. a constant yaw rate with the device lying flat).

Both sources use millisecond timestamps. Usage:

	source := emulator.NewRandomWalk(0) // 0 picks a random seed
	for {
		sample := source.Next()
		...
	}
*/
package emulator
