// Package telemetry polls a robot's devices at a fixed rate, publishes
// each sample to a UI and optionally records the session as CBOR.
package telemetry

import "time"

// Sample is one poll of every configured device. Readings that failed are
// absent from their map and listed in Errors.
type Sample struct {
	Session   string                     `cbor:"1,keyasint"`
	Seq       uint64                     `cbor:"2,keyasint"`
	Timestamp time.Time                  `cbor:"3,keyasint"`
	Motors    map[string]MotorReading    `cbor:"4,keyasint,omitempty"`
	Angles    map[string]AngleReading    `cbor:"5,keyasint,omitempty"`
	Imus      map[string]ImuReading      `cbor:"6,keyasint,omitempty"`
	Distances map[string]DistanceReading `cbor:"7,keyasint,omitempty"`
	Errors    []string                   `cbor:"8,keyasint,omitempty"`
}

// MotorReading is the telemetry of one motor, in its own units.
type MotorReading struct {
	Position    float64 `cbor:"1,keyasint"`
	Velocity    float64 `cbor:"2,keyasint"`
	Current     int32   `cbor:"3,keyasint"`
	Voltage     int32   `cbor:"4,keyasint"`
	Temperature float64 `cbor:"5,keyasint,omitempty"`
}

// AngleReading is the telemetry of a rotation sensor or encoder, in
// centidegrees.
type AngleReading struct {
	Position int32 `cbor:"1,keyasint"`
	Velocity int32 `cbor:"2,keyasint"`
}

// ImuReading is the telemetry of one IMU, in degrees.
type ImuReading struct {
	Heading float64 `cbor:"1,keyasint"`
	Pitch   float64 `cbor:"2,keyasint"`
	Roll    float64 `cbor:"3,keyasint"`
	Yaw     float64 `cbor:"4,keyasint"`
}

// DistanceReading is the telemetry of one distance sensor.
type DistanceReading struct {
	Millimeters int32 `cbor:"1,keyasint"`
	Confidence  int32 `cbor:"2,keyasint"`
}
