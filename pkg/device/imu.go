package device

import (
	"context"

	"github.com/gwillem/smartport/pkg/driver"
	"github.com/gwillem/smartport/pkg/port"
)

// Imu is a handle on an inertial sensor port. It holds no configuration;
// every method is a single claimed call to the backend.
type Imu struct {
	brain *Brain
	index port.Index
}

// NewImu returns an Imu on port i. It does not touch the port.
func NewImu(b *Brain, i port.Index) *Imu {
	return &Imu{brain: b, index: i}
}

// Port returns the IMU's port.
func (m *Imu) Port() port.Index {
	return m.index
}

func (m *Imu) do(ctx context.Context, fn func(context.Context, *port.Claim) error) error {
	return do(ctx, m.brain, m.index, port.DeviceImu, fn)
}

func (m *Imu) float(ctx context.Context, fn func(context.Context, *port.Claim) (float64, error)) (float64, error) {
	v, err := call(ctx, m.brain, m.index, port.DeviceImu, fn)
	if err != nil {
		return ErrFloat, err
	}
	return v, nil
}

func (m *Imu) euler(ctx context.Context) (driver.Euler, error) {
	e, err := call(ctx, m.brain, m.index, port.DeviceImu, func(ctx context.Context, c *port.Claim) (driver.Euler, error) {
		return m.brain.imus.Euler(ctx, c)
	})
	if err != nil {
		return driver.Euler{Pitch: ErrFloat, Roll: ErrFloat, Yaw: ErrFloat}, err
	}
	return e, nil
}

// Reset recalibrates the IMU. Calibration runs in the background; poll
// IsCalibrating.
func (m *Imu) Reset(ctx context.Context) error {
	return m.do(ctx, func(ctx context.Context, c *port.Claim) error {
		return m.brain.imus.Reset(ctx, c)
	})
}

// SetDataRate sets the reporting interval in ms.
func (m *Imu) SetDataRate(ctx context.Context, ms uint32) error {
	return m.do(ctx, func(ctx context.Context, c *port.Claim) error {
		return m.brain.imus.SetDataRate(ctx, c, ms)
	})
}

// Rotation returns the unbounded accumulated rotation in degrees.
func (m *Imu) Rotation(ctx context.Context) (float64, error) {
	return m.float(ctx, func(ctx context.Context, c *port.Claim) (float64, error) {
		return m.brain.imus.Rotation(ctx, c)
	})
}

// Heading returns the heading in [0, 360) degrees.
func (m *Imu) Heading(ctx context.Context) (float64, error) {
	return m.float(ctx, func(ctx context.Context, c *port.Claim) (float64, error) {
		return m.brain.imus.Heading(ctx, c)
	})
}

// Quaternion returns the raw orientation quaternion.
func (m *Imu) Quaternion(ctx context.Context) (driver.Quaternion, error) {
	q, err := call(ctx, m.brain, m.index, port.DeviceImu, func(ctx context.Context, c *port.Claim) (driver.Quaternion, error) {
		return m.brain.imus.Quaternion(ctx, c)
	})
	if err != nil {
		return driver.Quaternion{X: ErrFloat, Y: ErrFloat, Z: ErrFloat, W: ErrFloat}, err
	}
	return q, nil
}

// Euler returns pitch, roll and yaw in degrees.
func (m *Imu) Euler(ctx context.Context) (driver.Euler, error) {
	return m.euler(ctx)
}

// Pitch returns the pitch in degrees.
func (m *Imu) Pitch(ctx context.Context) (float64, error) {
	e, err := m.euler(ctx)
	return e.Pitch, err
}

// Roll returns the roll in degrees.
func (m *Imu) Roll(ctx context.Context) (float64, error) {
	e, err := m.euler(ctx)
	return e.Roll, err
}

// Yaw returns the yaw in degrees.
func (m *Imu) Yaw(ctx context.Context) (float64, error) {
	e, err := m.euler(ctx)
	return e.Yaw, err
}

func (m *Imu) vector(ctx context.Context, read func(context.Context, *port.Claim) (driver.Vector3, error)) (driver.Vector3, error) {
	v, err := call(ctx, m.brain, m.index, port.DeviceImu, read)
	if err != nil {
		return driver.Vector3{X: ErrFloat, Y: ErrFloat, Z: ErrFloat}, err
	}
	return v, nil
}

// GyroRate returns the rotation rate about each axis in degrees per second.
func (m *Imu) GyroRate(ctx context.Context) (driver.Vector3, error) {
	return m.vector(ctx, func(ctx context.Context, c *port.Claim) (driver.Vector3, error) {
		return m.brain.imus.GyroRate(ctx, c)
	})
}

// Accel returns the acceleration along each axis in g.
func (m *Imu) Accel(ctx context.Context) (driver.Vector3, error) {
	return m.vector(ctx, func(ctx context.Context, c *port.Claim) (driver.Vector3, error) {
		return m.brain.imus.Accel(ctx, c)
	})
}

// Status returns the IMU status bitmask, or driver.ImuStatusError.
func (m *Imu) Status(ctx context.Context) (driver.ImuStatus, error) {
	s, err := call(ctx, m.brain, m.index, port.DeviceImu, func(ctx context.Context, c *port.Claim) (driver.ImuStatus, error) {
		return m.brain.imus.Status(ctx, c)
	})
	if err != nil {
		return driver.ImuStatusError, err
	}
	return s, nil
}

// IsCalibrating reports whether the IMU is still calibrating.
func (m *Imu) IsCalibrating(ctx context.Context) (bool, error) {
	s, err := m.Status(ctx)
	if err != nil {
		return false, err
	}
	return s != driver.ImuStatusError && s&driver.ImuStatusCalibrating != 0, nil
}

// SetRotation makes the current rotation read as target.
func (m *Imu) SetRotation(ctx context.Context, target float64) error {
	return m.do(ctx, func(ctx context.Context, c *port.Claim) error {
		return m.brain.imus.SetRotation(ctx, c, target)
	})
}

// SetHeading makes the current heading read as target, clamped to
// [0, 360].
func (m *Imu) SetHeading(ctx context.Context, target float64) error {
	return m.do(ctx, func(ctx context.Context, c *port.Claim) error {
		return m.brain.imus.SetHeading(ctx, c, target)
	})
}

// SetEuler makes the current angles read as target.
func (m *Imu) SetEuler(ctx context.Context, target driver.Euler) error {
	return m.do(ctx, func(ctx context.Context, c *port.Claim) error {
		return m.brain.imus.SetEuler(ctx, c, target)
	})
}

// setAxis changes one Euler angle, leaving the others reading as they do.
// The read and write happen under one claim.
func (m *Imu) setAxis(ctx context.Context, set func(*driver.Euler)) error {
	return m.do(ctx, func(ctx context.Context, c *port.Claim) error {
		e, err := m.brain.imus.Euler(ctx, c)
		if err != nil {
			return err
		}
		set(&e)
		return m.brain.imus.SetEuler(ctx, c, e)
	})
}

// SetPitch makes the current pitch read as target.
func (m *Imu) SetPitch(ctx context.Context, target float64) error {
	return m.setAxis(ctx, func(e *driver.Euler) { e.Pitch = target })
}

// SetRoll makes the current roll read as target.
func (m *Imu) SetRoll(ctx context.Context, target float64) error {
	return m.setAxis(ctx, func(e *driver.Euler) { e.Roll = target })
}

// SetYaw makes the current yaw read as target.
func (m *Imu) SetYaw(ctx context.Context, target float64) error {
	return m.setAxis(ctx, func(e *driver.Euler) { e.Yaw = target })
}

// TareRotation makes the current rotation read as zero.
func (m *Imu) TareRotation(ctx context.Context) error {
	return m.SetRotation(ctx, 0)
}

// TareHeading makes the current heading read as zero.
func (m *Imu) TareHeading(ctx context.Context) error {
	return m.SetHeading(ctx, 0)
}

// TarePitch makes the current pitch read as zero.
func (m *Imu) TarePitch(ctx context.Context) error {
	return m.SetPitch(ctx, 0)
}

// TareRoll makes the current roll read as zero.
func (m *Imu) TareRoll(ctx context.Context) error {
	return m.SetRoll(ctx, 0)
}

// TareYaw makes the current yaw read as zero.
func (m *Imu) TareYaw(ctx context.Context) error {
	return m.SetYaw(ctx, 0)
}

// TareEuler makes pitch, roll and yaw read as zero.
func (m *Imu) TareEuler(ctx context.Context) error {
	return m.SetEuler(ctx, driver.Euler{})
}

// Tare zeroes rotation, heading and every Euler angle under one claim.
func (m *Imu) Tare(ctx context.Context) error {
	return m.do(ctx, func(ctx context.Context, c *port.Claim) error {
		if err := m.brain.imus.SetEuler(ctx, c, driver.Euler{}); err != nil {
			return err
		}
		if err := m.brain.imus.SetHeading(ctx, c, 0); err != nil {
			return err
		}
		return m.brain.imus.SetRotation(ctx, c, 0)
	})
}
