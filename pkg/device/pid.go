package device

import (
	"context"
	"log/slog"

	"github.com/gwillem/smartport/pkg/driver"
	"github.com/gwillem/smartport/pkg/port"
)

const pidDeprecation = "changing motor PID constants is not supported by the vendor and may permanently damage the motor"

// ConvertPID converts floating point gains to the motor's 4.4 fixed point
// format.
func ConvertPID(kf, kp, ki, kd float64) driver.PID {
	return driver.PID{
		KF: uint8(kf * 16),
		KP: uint8(kp * 16),
		KI: uint8(ki * 16),
		KD: uint8(kd * 16),
	}
}

// ConvertPIDFull converts every tunable to the motor's fixed point format.
func ConvertPIDFull(kf, kp, ki, kd, filter, limit, threshold, loopSpeed float64) driver.PIDFull {
	return driver.PIDFull{
		KF:        uint8(kf * 16),
		KP:        uint8(kp * 16),
		KI:        uint8(ki * 16),
		KD:        uint8(kd * 16),
		Filter:    uint8(filter * 16),
		Limit:     uint16(limit * 16),
		Threshold: uint8(threshold * 16),
		LoopSpeed: uint8(loopSpeed * 16),
	}
}

func (m *Motor) warnPID(op string) {
	m.deprecation.Do(func() {
		m.brain.log.Warn(pidDeprecation, slog.Int("port", int(m.index)), slog.String("op", op))
	})
}

// PosPID returns the position loop constants.
//
// Deprecated: changing PID constants is not supported by the vendor and
// may permanently damage the motor.
func (m *Motor) PosPID(ctx context.Context) (driver.PIDFull, error) {
	m.warnPID("pos pid")
	return motorCall(ctx, m, "pos pid", func(ctx context.Context, c *port.Claim) (driver.PIDFull, error) {
		return m.drv.PosPID(ctx, c)
	})
}

// VelPID returns the velocity loop constants.
//
// Deprecated: changing PID constants is not supported by the vendor and
// may permanently damage the motor.
func (m *Motor) VelPID(ctx context.Context) (driver.PIDFull, error) {
	m.warnPID("vel pid")
	return motorCall(ctx, m, "vel pid", func(ctx context.Context, c *port.Claim) (driver.PIDFull, error) {
		return m.drv.VelPID(ctx, c)
	})
}

// SetPosPID sets the position loop gains.
//
// Deprecated: changing PID constants is not supported by the vendor and
// may permanently damage the motor.
func (m *Motor) SetPosPID(ctx context.Context, pid driver.PID) error {
	return m.SetPosPIDFull(ctx, fullPID(pid))
}

// SetPosPIDFull sets every position loop tunable.
//
// Deprecated: changing PID constants is not supported by the vendor and
// may permanently damage the motor.
func (m *Motor) SetPosPIDFull(ctx context.Context, pid driver.PIDFull) error {
	m.warnPID("set pos pid")
	return m.command(ctx, "set pos pid", func(ctx context.Context, c *port.Claim) error {
		return m.drv.SetPosPID(ctx, c, pid)
	})
}

// SetVelPID sets the velocity loop gains.
//
// Deprecated: changing PID constants is not supported by the vendor and
// may permanently damage the motor.
func (m *Motor) SetVelPID(ctx context.Context, pid driver.PID) error {
	return m.SetVelPIDFull(ctx, fullPID(pid))
}

// SetVelPIDFull sets every velocity loop tunable.
//
// Deprecated: changing PID constants is not supported by the vendor and
// may permanently damage the motor.
func (m *Motor) SetVelPIDFull(ctx context.Context, pid driver.PIDFull) error {
	m.warnPID("set vel pid")
	return m.command(ctx, "set vel pid", func(ctx context.Context, c *port.Claim) error {
		return m.drv.SetVelPID(ctx, c, pid)
	})
}

func fullPID(pid driver.PID) driver.PIDFull {
	return driver.PIDFull{KF: pid.KF, KP: pid.KP, KI: pid.KI, KD: pid.KD}
}
