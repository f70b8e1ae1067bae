package sim

import (
	"context"
	"time"

	"github.com/gwillem/smartport/pkg/driver"
	"github.com/gwillem/smartport/pkg/port"
)

// ImuState is the register file of a simulated IMU. Yaw accumulates
// without bound and feeds rotation, heading and Euler yaw.
type ImuState struct {
	DataRate uint32
	Yaw      float64
	Pitch    float64
	Roll     float64
	Gyro     driver.Vector3
	Accel    driver.Vector3

	calibratedAt time.Time
	orientation  driver.Orientation
}

func (m *ImuState) reset(done time.Time) {
	m.orientation.Reset()
	m.Yaw, m.Pitch, m.Roll = 0, 0, 0
	m.calibratedAt = done
}

func (m *ImuState) step(dt time.Duration) {
	m.Yaw += m.Gyro.Z * dt.Seconds()
	m.Pitch += m.Gyro.Y * dt.Seconds()
	m.Roll += m.Gyro.X * dt.Seconds()
}

func (m *ImuState) raw() driver.Euler {
	return driver.Euler{Pitch: m.Pitch, Roll: m.Roll, Yaw: m.Yaw}
}

// UpdateImu lets a test change the IMU registers on port i.
func (b *Backend) UpdateImu(i port.Index, fn func(*ImuState)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if i.Valid() && b.devices[i] != nil && b.devices[i].imu != nil {
		fn(b.devices[i].imu)
	}
}

func (b *Backend) withImu(c *port.Claim, op string, fn func(m *ImuState) error) error {
	return b.with(c, op, func(d *device) error {
		if d.imu == nil {
			return port.ErrWrongDeviceType
		}
		return fn(d.imu)
	})
}

func (b *Backend) Status(_ context.Context, c *port.Claim) (s driver.ImuStatus, err error) {
	err = b.withImu(c, "status", func(m *ImuState) error {
		if b.now().Before(m.calibratedAt) {
			s |= driver.ImuStatusCalibrating
		}
		return nil
	})
	return s, err
}

func (b *Backend) Rotation(_ context.Context, c *port.Claim) (v float64, err error) {
	err = b.withImu(c, "rotation", func(m *ImuState) error {
		v = m.orientation.Rotation(m.Yaw)
		return nil
	})
	return v, err
}

func (b *Backend) Heading(_ context.Context, c *port.Claim) (v float64, err error) {
	err = b.withImu(c, "heading", func(m *ImuState) error {
		v = m.orientation.Heading(m.Yaw)
		return nil
	})
	return v, err
}

func (b *Backend) Quaternion(_ context.Context, c *port.Claim) (q driver.Quaternion, err error) {
	err = b.withImu(c, "quaternion", func(m *ImuState) error {
		q = driver.QuaternionFromEuler(m.raw())
		return nil
	})
	return q, err
}

func (b *Backend) Euler(_ context.Context, c *port.Claim) (e driver.Euler, err error) {
	err = b.withImu(c, "euler", func(m *ImuState) error {
		e = m.orientation.Euler(m.raw())
		return nil
	})
	return e, err
}

func (b *Backend) GyroRate(_ context.Context, c *port.Claim) (v driver.Vector3, err error) {
	err = b.withImu(c, "gyro_rate", func(m *ImuState) error {
		v = m.Gyro
		return nil
	})
	return v, err
}

func (b *Backend) Accel(_ context.Context, c *port.Claim) (v driver.Vector3, err error) {
	err = b.withImu(c, "accel", func(m *ImuState) error {
		v = m.Accel
		return nil
	})
	return v, err
}

func (b *Backend) SetRotation(_ context.Context, c *port.Claim, target float64) error {
	return b.withImu(c, "set_rotation", func(m *ImuState) error {
		m.orientation.SetRotation(m.Yaw, target)
		return nil
	})
}

func (b *Backend) SetHeading(_ context.Context, c *port.Claim, target float64) error {
	return b.withImu(c, "set_heading", func(m *ImuState) error {
		m.orientation.SetHeading(m.Yaw, target)
		return nil
	})
}

func (b *Backend) SetEuler(_ context.Context, c *port.Claim, target driver.Euler) error {
	return b.withImu(c, "set_euler", func(m *ImuState) error {
		m.orientation.SetEuler(m.raw(), target)
		return nil
	})
}
