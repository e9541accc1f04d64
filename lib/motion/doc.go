// Package motion reconstructs orientation, velocity and position from a stream of IMU samples.
//
// The processor is a pure state transition: Update takes the previous State and one
// common.Sample and returns the next State plus any warnings. It keeps no hidden state,
// so the caller (the consumer read loop) owns the single live State and threads it through.
//
// Conventions:
//   - Orientation is a unit quaternion (gonum num/quat) rotating body vectors into the
//     reference frame. The reference frame has z pointing up and magnetic north along x.
//   - Vectors use golang/geo r3. Velocity is in m/s, position in m, both in the reference frame.
//   - Accelerometer readings are in mg, gyroscope readings in mdeg/s and magnetometer
//     readings in mGauss. Device timestamps are converted with Config.TickSeconds.
//
// This is dead reckoning, not navigation grade fusion: there is no bias estimation and
// position drift grows quadratically with any residual acceleration error.
package motion
