package driver

import (
	"context"
	"slices"

	"github.com/gwillem/smartport/pkg/port"
)

// Mux combines several backends into one. Each port is served by the
// first backend that reports a device on it.
type Mux struct {
	backends []Backend
}

// NewMux returns a Mux over backends, consulted in order.
func NewMux(backends ...Backend) *Mux {
	return &Mux{backends: backends}
}

var (
	_ Backend  = (*Mux)(nil)
	_ Motor    = (*Mux)(nil)
	_ Rotation = (*Mux)(nil)
	_ Encoder  = (*Mux)(nil)
	_ Imu      = (*Mux)(nil)
	_ Distance = (*Mux)(nil)
)

// DeviceAt implements port.Detector.
func (m *Mux) DeviceAt(i port.Index) port.DeviceType {
	_, d := m.owner(i)
	return d
}

func (m *Mux) owner(i port.Index) (Backend, port.DeviceType) {
	for _, b := range m.backends {
		if d := b.DeviceAt(i); d != port.DeviceNone {
			return b, d
		}
	}
	return nil, port.DeviceNone
}

// route finds the backend serving c's port as family F. The claim must be
// for one of kinds.
func route[F any](m *Mux, c *port.Claim, kinds ...port.DeviceType) (F, error) {
	var zero F
	if !slices.Contains(kinds, c.Device()) {
		return zero, port.ErrWrongDeviceType
	}
	b, d := m.owner(c.Index())
	if b == nil || d != c.Device() {
		return zero, port.ErrWrongDeviceType
	}
	f, ok := b.(F)
	if !ok {
		return zero, port.ErrWrongDeviceType
	}
	return f, nil
}

func motor(m *Mux, c *port.Claim) (Motor, error) {
	return route[Motor](m, c, port.DeviceMotor)
}

func angular(m *Mux, c *port.Claim) (Rotation, error) {
	return route[Rotation](m, c, port.DeviceRotation, port.DeviceEncoder)
}

func imu(m *Mux, c *port.Claim) (Imu, error) {
	return route[Imu](m, c, port.DeviceImu)
}

func distance(m *Mux, c *port.Claim) (Distance, error) {
	return route[Distance](m, c, port.DeviceDistance)
}

func (m *Mux) Gearing(ctx context.Context, c *port.Claim) (Gearset, error) {
	b, err := motor(m, c)
	if err != nil {
		return 0, err
	}
	return b.Gearing(ctx, c)
}

func (m *Mux) SetGearing(ctx context.Context, c *port.Claim, g Gearset) error {
	b, err := motor(m, c)
	if err != nil {
		return err
	}
	return b.SetGearing(ctx, c, g)
}

// Reversed serves motors and angular sensors.
func (m *Mux) Reversed(ctx context.Context, c *port.Claim) (bool, error) {
	if c.Device() == port.DeviceMotor {
		b, err := motor(m, c)
		if err != nil {
			return false, err
		}
		return b.Reversed(ctx, c)
	}
	b, err := angular(m, c)
	if err != nil {
		return false, err
	}
	return b.Reversed(ctx, c)
}

// SetReversed serves motors and angular sensors.
func (m *Mux) SetReversed(ctx context.Context, c *port.Claim, reversed bool) error {
	if c.Device() == port.DeviceMotor {
		b, err := motor(m, c)
		if err != nil {
			return err
		}
		return b.SetReversed(ctx, c, reversed)
	}
	b, err := angular(m, c)
	if err != nil {
		return err
	}
	return b.SetReversed(ctx, c, reversed)
}

func (m *Mux) EncoderUnits(ctx context.Context, c *port.Claim) (EncoderUnits, error) {
	b, err := motor(m, c)
	if err != nil {
		return 0, err
	}
	return b.EncoderUnits(ctx, c)
}

func (m *Mux) SetEncoderUnits(ctx context.Context, c *port.Claim, u EncoderUnits) error {
	b, err := motor(m, c)
	if err != nil {
		return err
	}
	return b.SetEncoderUnits(ctx, c, u)
}

func (m *Mux) MoveVoltage(ctx context.Context, c *port.Claim, millivolts int32) error {
	b, err := motor(m, c)
	if err != nil {
		return err
	}
	return b.MoveVoltage(ctx, c, millivolts)
}

func (m *Mux) MoveVelocity(ctx context.Context, c *port.Claim, rpm int32) error {
	b, err := motor(m, c)
	if err != nil {
		return err
	}
	return b.MoveVelocity(ctx, c, rpm)
}

func (m *Mux) MoveAbsolute(ctx context.Context, c *port.Claim, position float64, rpm int32) error {
	b, err := motor(m, c)
	if err != nil {
		return err
	}
	return b.MoveAbsolute(ctx, c, position, rpm)
}

func (m *Mux) MoveRelative(ctx context.Context, c *port.Claim, delta float64, rpm int32) error {
	b, err := motor(m, c)
	if err != nil {
		return err
	}
	return b.MoveRelative(ctx, c, delta, rpm)
}

func (m *Mux) ModifyProfiledVelocity(ctx context.Context, c *port.Claim, rpm int32) error {
	b, err := motor(m, c)
	if err != nil {
		return err
	}
	return b.ModifyProfiledVelocity(ctx, c, rpm)
}

func (m *Mux) TarePosition(ctx context.Context, c *port.Claim) error {
	b, err := motor(m, c)
	if err != nil {
		return err
	}
	return b.TarePosition(ctx, c)
}

func (m *Mux) SetZeroPosition(ctx context.Context, c *port.Claim, position float64) error {
	b, err := motor(m, c)
	if err != nil {
		return err
	}
	return b.SetZeroPosition(ctx, c, position)
}

func (m *Mux) BrakeMode(ctx context.Context, c *port.Claim) (BrakeMode, error) {
	b, err := motor(m, c)
	if err != nil {
		return BrakeInvalid, err
	}
	return b.BrakeMode(ctx, c)
}

func (m *Mux) SetBrakeMode(ctx context.Context, c *port.Claim, mode BrakeMode) error {
	b, err := motor(m, c)
	if err != nil {
		return err
	}
	return b.SetBrakeMode(ctx, c, mode)
}

func (m *Mux) SetCurrentLimit(ctx context.Context, c *port.Claim, milliamps int32) error {
	b, err := motor(m, c)
	if err != nil {
		return err
	}
	return b.SetCurrentLimit(ctx, c, milliamps)
}

func (m *Mux) SetVoltageLimit(ctx context.Context, c *port.Claim, volts int32) error {
	b, err := motor(m, c)
	if err != nil {
		return err
	}
	return b.SetVoltageLimit(ctx, c, volts)
}

func (m *Mux) PosPID(ctx context.Context, c *port.Claim) (PIDFull, error) {
	b, err := motor(m, c)
	if err != nil {
		return PIDFull{}, err
	}
	return b.PosPID(ctx, c)
}

func (m *Mux) SetPosPID(ctx context.Context, c *port.Claim, pid PIDFull) error {
	b, err := motor(m, c)
	if err != nil {
		return err
	}
	return b.SetPosPID(ctx, c, pid)
}

func (m *Mux) VelPID(ctx context.Context, c *port.Claim) (PIDFull, error) {
	b, err := motor(m, c)
	if err != nil {
		return PIDFull{}, err
	}
	return b.VelPID(ctx, c)
}

func (m *Mux) SetVelPID(ctx context.Context, c *port.Claim, pid PIDFull) error {
	b, err := motor(m, c)
	if err != nil {
		return err
	}
	return b.SetVelPID(ctx, c, pid)
}

func (m *Mux) Measure(ctx context.Context, c *port.Claim, meas MotorMeasurement) (float64, error) {
	b, err := motor(m, c)
	if err != nil {
		return 0, err
	}
	return b.Measure(ctx, c, meas)
}

func (m *Mux) RawPosition(ctx context.Context, c *port.Claim) (int32, uint32, error) {
	b, err := motor(m, c)
	if err != nil {
		return 0, 0, err
	}
	return b.RawPosition(ctx, c)
}

// Reset serves angular sensors and IMUs.
func (m *Mux) Reset(ctx context.Context, c *port.Claim) error {
	if c.Device() == port.DeviceImu {
		b, err := imu(m, c)
		if err != nil {
			return err
		}
		return b.Reset(ctx, c)
	}
	b, err := angular(m, c)
	if err != nil {
		return err
	}
	return b.Reset(ctx, c)
}

// SetDataRate serves angular sensors and IMUs.
func (m *Mux) SetDataRate(ctx context.Context, c *port.Claim, ms uint32) error {
	if c.Device() == port.DeviceImu {
		b, err := imu(m, c)
		if err != nil {
			return err
		}
		return b.SetDataRate(ctx, c, ms)
	}
	b, err := angular(m, c)
	if err != nil {
		return err
	}
	return b.SetDataRate(ctx, c, ms)
}

func (m *Mux) SetPosition(ctx context.Context, c *port.Claim, centidegrees uint32) error {
	b, err := angular(m, c)
	if err != nil {
		return err
	}
	return b.SetPosition(ctx, c, centidegrees)
}

func (m *Mux) ResetPosition(ctx context.Context, c *port.Claim) error {
	b, err := angular(m, c)
	if err != nil {
		return err
	}
	return b.ResetPosition(ctx, c)
}

func (m *Mux) Position(ctx context.Context, c *port.Claim) (int32, error) {
	b, err := angular(m, c)
	if err != nil {
		return 0, err
	}
	return b.Position(ctx, c)
}

func (m *Mux) Velocity(ctx context.Context, c *port.Claim) (int32, error) {
	b, err := angular(m, c)
	if err != nil {
		return 0, err
	}
	return b.Velocity(ctx, c)
}

func (m *Mux) Angle(ctx context.Context, c *port.Claim) (int32, error) {
	b, err := angular(m, c)
	if err != nil {
		return 0, err
	}
	return b.Angle(ctx, c)
}

func (m *Mux) Status(ctx context.Context, c *port.Claim) (ImuStatus, error) {
	b, err := imu(m, c)
	if err != nil {
		return ImuStatusError, err
	}
	return b.Status(ctx, c)
}

func (m *Mux) Rotation(ctx context.Context, c *port.Claim) (float64, error) {
	b, err := imu(m, c)
	if err != nil {
		return 0, err
	}
	return b.Rotation(ctx, c)
}

func (m *Mux) Heading(ctx context.Context, c *port.Claim) (float64, error) {
	b, err := imu(m, c)
	if err != nil {
		return 0, err
	}
	return b.Heading(ctx, c)
}

func (m *Mux) Quaternion(ctx context.Context, c *port.Claim) (Quaternion, error) {
	b, err := imu(m, c)
	if err != nil {
		return Quaternion{}, err
	}
	return b.Quaternion(ctx, c)
}

func (m *Mux) Euler(ctx context.Context, c *port.Claim) (Euler, error) {
	b, err := imu(m, c)
	if err != nil {
		return Euler{}, err
	}
	return b.Euler(ctx, c)
}

func (m *Mux) GyroRate(ctx context.Context, c *port.Claim) (Vector3, error) {
	b, err := imu(m, c)
	if err != nil {
		return Vector3{}, err
	}
	return b.GyroRate(ctx, c)
}

func (m *Mux) Accel(ctx context.Context, c *port.Claim) (Vector3, error) {
	b, err := imu(m, c)
	if err != nil {
		return Vector3{}, err
	}
	return b.Accel(ctx, c)
}

func (m *Mux) SetRotation(ctx context.Context, c *port.Claim, target float64) error {
	b, err := imu(m, c)
	if err != nil {
		return err
	}
	return b.SetRotation(ctx, c, target)
}

func (m *Mux) SetHeading(ctx context.Context, c *port.Claim, target float64) error {
	b, err := imu(m, c)
	if err != nil {
		return err
	}
	return b.SetHeading(ctx, c, target)
}

func (m *Mux) SetEuler(ctx context.Context, c *port.Claim, target Euler) error {
	b, err := imu(m, c)
	if err != nil {
		return err
	}
	return b.SetEuler(ctx, c, target)
}

func (m *Mux) Distance(ctx context.Context, c *port.Claim) (int32, error) {
	b, err := distance(m, c)
	if err != nil {
		return 0, err
	}
	return b.Distance(ctx, c)
}

func (m *Mux) Confidence(ctx context.Context, c *port.Claim) (int32, error) {
	b, err := distance(m, c)
	if err != nil {
		return 0, err
	}
	return b.Confidence(ctx, c)
}

func (m *Mux) ObjectSize(ctx context.Context, c *port.Claim) (int32, error) {
	b, err := distance(m, c)
	if err != nil {
		return 0, err
	}
	return b.ObjectSize(ctx, c)
}

func (m *Mux) ObjectVelocity(ctx context.Context, c *port.Claim) (float64, error) {
	b, err := distance(m, c)
	if err != nil {
		return 0, err
	}
	return b.ObjectVelocity(ctx, c)
}
