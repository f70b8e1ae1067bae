// Package driver defines the register-level device access a backend
// provides for each device family. Every call takes a port claim, so no
// backend is ever touched without holding the port.
package driver

import (
	"context"

	"github.com/gwillem/smartport/pkg/port"
)

// Backend is a source of devices. It reports what is wired to each port
// and implements one or more of the family interfaces below.
type Backend interface {
	port.Detector
}

// MotorMeasurement selects a motor telemetry register.
type MotorMeasurement uint8

const (
	MotorPosition MotorMeasurement = iota
	MotorActualVelocity
	MotorTargetPosition
	MotorTargetVelocity
	MotorCurrentDraw
	MotorCurrentLimit
	MotorVoltage
	MotorVoltageLimit
	MotorDirection
	MotorEfficiency
	MotorPower
	MotorTemperature
	MotorTorque
	MotorFaults
	MotorFlags
	MotorOverCurrent
	MotorOverTemp
)

var motorMeasurementNames = [...]string{
	"position", "actual_velocity", "target_position", "target_velocity",
	"current_draw", "current_limit", "voltage", "voltage_limit", "direction",
	"efficiency", "power", "temperature", "torque", "faults", "flags",
	"over_current", "over_temp",
}

func (m MotorMeasurement) String() string {
	if int(m) < len(motorMeasurementNames) {
		return motorMeasurementNames[m]
	}
	return "unknown"
}

// Motor is register access for a smart motor. Positions are in the
// port's currently latched encoder units and reversal.
type Motor interface {
	Gearing(ctx context.Context, c *port.Claim) (Gearset, error)
	SetGearing(ctx context.Context, c *port.Claim, g Gearset) error
	Reversed(ctx context.Context, c *port.Claim) (bool, error)
	SetReversed(ctx context.Context, c *port.Claim, reversed bool) error
	EncoderUnits(ctx context.Context, c *port.Claim) (EncoderUnits, error)
	SetEncoderUnits(ctx context.Context, c *port.Claim, u EncoderUnits) error

	MoveVoltage(ctx context.Context, c *port.Claim, millivolts int32) error
	MoveVelocity(ctx context.Context, c *port.Claim, rpm int32) error
	MoveAbsolute(ctx context.Context, c *port.Claim, position float64, rpm int32) error
	MoveRelative(ctx context.Context, c *port.Claim, delta float64, rpm int32) error
	ModifyProfiledVelocity(ctx context.Context, c *port.Claim, rpm int32) error

	TarePosition(ctx context.Context, c *port.Claim) error
	SetZeroPosition(ctx context.Context, c *port.Claim, position float64) error
	BrakeMode(ctx context.Context, c *port.Claim) (BrakeMode, error)
	SetBrakeMode(ctx context.Context, c *port.Claim, m BrakeMode) error
	SetCurrentLimit(ctx context.Context, c *port.Claim, milliamps int32) error
	SetVoltageLimit(ctx context.Context, c *port.Claim, volts int32) error

	PosPID(ctx context.Context, c *port.Claim) (PIDFull, error)
	SetPosPID(ctx context.Context, c *port.Claim, pid PIDFull) error
	VelPID(ctx context.Context, c *port.Claim) (PIDFull, error)
	SetVelPID(ctx context.Context, c *port.Claim, pid PIDFull) error

	Measure(ctx context.Context, c *port.Claim, m MotorMeasurement) (float64, error)
	RawPosition(ctx context.Context, c *port.Claim) (ticks int32, timestamp uint32, err error)
}

// Rotation is register access for an absolute rotation sensor. Angles are
// in centidegrees.
type Rotation interface {
	Reversed(ctx context.Context, c *port.Claim) (bool, error)
	SetReversed(ctx context.Context, c *port.Claim, reversed bool) error

	Reset(ctx context.Context, c *port.Claim) error
	SetDataRate(ctx context.Context, c *port.Claim, ms uint32) error
	SetPosition(ctx context.Context, c *port.Claim, centidegrees uint32) error
	ResetPosition(ctx context.Context, c *port.Claim) error
	Position(ctx context.Context, c *port.Claim) (int32, error)
	Velocity(ctx context.Context, c *port.Claim) (int32, error)
	Angle(ctx context.Context, c *port.Claim) (int32, error)
}

// Encoder is register access for a quadrature encoder. It shares the
// rotation sensor's register model.
type Encoder interface {
	Rotation
}

// Imu is register access for an inertial sensor.
type Imu interface {
	Reset(ctx context.Context, c *port.Claim) error
	SetDataRate(ctx context.Context, c *port.Claim, ms uint32) error
	Status(ctx context.Context, c *port.Claim) (ImuStatus, error)

	Rotation(ctx context.Context, c *port.Claim) (float64, error)
	Heading(ctx context.Context, c *port.Claim) (float64, error)
	Quaternion(ctx context.Context, c *port.Claim) (Quaternion, error)
	Euler(ctx context.Context, c *port.Claim) (Euler, error)
	GyroRate(ctx context.Context, c *port.Claim) (Vector3, error)
	Accel(ctx context.Context, c *port.Claim) (Vector3, error)

	SetRotation(ctx context.Context, c *port.Claim, target float64) error
	SetHeading(ctx context.Context, c *port.Claim, target float64) error
	SetEuler(ctx context.Context, c *port.Claim, target Euler) error
}

// Distance is register access for a time-of-flight distance sensor.
type Distance interface {
	Distance(ctx context.Context, c *port.Claim) (int32, error)
	Confidence(ctx context.Context, c *port.Claim) (int32, error)
	ObjectSize(ctx context.Context, c *port.Claim) (int32, error)
	ObjectVelocity(ctx context.Context, c *port.Claim) (float64, error)
}
