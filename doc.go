// Package smartport provides smart-port device control over STS serial bus
// servos, MPU inertial sensors and an in-memory simulator.
//
// Each of the 21 smart ports holds at most one device, and every handle
// claims its port for the duration of a call. Motor, rotation and encoder
// handles install their own configuration for the call and afterwards
// reinstate whatever the port held when the call began. IMU and distance
// handles forward directly. Ordering between handles sharing a port comes
// only from the port claim.
//
// # Installation
//
//	go install github.com/gwillem/smartport/cmd/smartport@latest
//
// # Usage
//
// Run setup to pick a servo bus, name the devices and calibrate them:
//
//	smartport setup
//
// Then inspect or watch them:
//
//	smartport info
//	smartport monitor
//
// Every command accepts --sim to run against the simulator.
//
// # Packages
//
// The module is organized into the following packages:
//
//   - cmd/smartport: CLI with ports, setup, info, move, monitor, record and replay commands
//   - pkg/port: port indices, device types, errors and the port registry
//   - pkg/driver: backend interfaces, unit conversions and the backend mux
//   - pkg/device: the Brain and the Motor, Rotation, Encoder, Imu and Distance handles
//   - pkg/sts: Feetech STS servo backend
//   - pkg/mpu: MPU gyro/accelerometer backend over I²C or SPI
//   - pkg/sim: in-memory backend for tests and --sim
//   - pkg/robot: configuration and robot assembly
//   - pkg/telemetry: sampling, CBOR recording and replay
package smartport
