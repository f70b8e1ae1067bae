package sts

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/gwillem/smartport/pkg/driver"
	"github.com/gwillem/smartport/pkg/port"
)

// motor shadows the smart motor registers an STS servo lacks. Raw
// positions are servo ticks; zero is HomingOffset plus the tare.
type motor struct {
	mu    sync.Mutex
	servo servo
	cal   Calibration

	gearset  driver.Gearset
	reversed bool
	units    driver.EncoderUnits
	brake    driver.BrakeMode

	tare           int
	target         int
	targetVelocity int32
	voltage        int32
	currentLimit   int32
	voltageLimit   int32
	enabled        bool

	lastRaw  int
	lastRead time.Time
	velocity float64
}

func newMotor(s servo, cal Calibration) *motor {
	return &motor{
		servo:        s,
		cal:          cal,
		brake:        driver.BrakeCoast,
		currentLimit: 2500,
	}
}

func (m *motor) dir() float64 {
	if m.reversed {
		return -1
	}
	return 1
}

// toUnits converts raw ticks to the latched unit system.
func (m *motor) toUnits(raw int) float64 {
	ticks := m.dir() * float64(raw-m.cal.HomingOffset-m.tare)
	switch m.units {
	case driver.UnitsRotations:
		return ticks / TicksPerRev
	case driver.UnitsCounts:
		return ticks
	default:
		return ticks / TicksPerRev * 360
	}
}

// fromUnits converts a position in the latched unit system to raw ticks.
func (m *motor) fromUnits(v float64) int {
	var ticks float64
	switch m.units {
	case driver.UnitsRotations:
		ticks = v * TicksPerRev
	case driver.UnitsCounts:
		ticks = v
	default:
		ticks = v / 360 * TicksPerRev
	}
	return int(math.Round(m.dir()*ticks)) + m.cal.HomingOffset + m.tare
}

func (m *motor) read(ctx context.Context, now time.Time) (int, error) {
	raw, err := m.servo.Position(ctx)
	if err != nil {
		return 0, err
	}
	if !m.lastRead.IsZero() {
		if dt := now.Sub(m.lastRead).Minutes(); dt > 0 {
			m.velocity = float64(raw-m.lastRaw) / TicksPerRev / dt
		}
	}
	m.lastRaw, m.lastRead = raw, now
	return raw, nil
}

func (m *motor) moveTo(ctx context.Context, raw int, rpm int32) error {
	if !m.enabled {
		if err := m.servo.Enable(ctx); err != nil {
			return err
		}
		m.enabled = true
	}
	m.target = m.cal.Clamp(raw)
	m.targetVelocity = rpm
	return m.servo.SetPosition(ctx, m.target)
}

func (m *motor) release(ctx context.Context) error {
	if err := m.servo.Disable(ctx); err != nil {
		return err
	}
	m.enabled = false
	m.voltage = 0
	m.targetVelocity = 0
	return nil
}

// with runs fn on the motor on c's port under the motor lock.
func (b *Backend) with(c *port.Claim, fn func(m *motor) error) error {
	m, err := b.motor(c)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(m)
}

func (b *Backend) Gearing(_ context.Context, c *port.Claim) (g driver.Gearset, err error) {
	err = b.with(c, func(m *motor) error {
		g = m.gearset
		return nil
	})
	return g, err
}

func (b *Backend) SetGearing(_ context.Context, c *port.Claim, g driver.Gearset) error {
	return b.with(c, func(m *motor) error {
		m.gearset = g
		return nil
	})
}

func (b *Backend) Reversed(_ context.Context, c *port.Claim) (r bool, err error) {
	err = b.with(c, func(m *motor) error {
		r = m.reversed
		return nil
	})
	return r, err
}

func (b *Backend) SetReversed(_ context.Context, c *port.Claim, reversed bool) error {
	return b.with(c, func(m *motor) error {
		m.reversed = reversed
		return nil
	})
}

func (b *Backend) EncoderUnits(_ context.Context, c *port.Claim) (u driver.EncoderUnits, err error) {
	err = b.with(c, func(m *motor) error {
		u = m.units
		return nil
	})
	return u, err
}

func (b *Backend) SetEncoderUnits(_ context.Context, c *port.Claim, u driver.EncoderUnits) error {
	return b.with(c, func(m *motor) error {
		m.units = u
		return nil
	})
}

// MoveVoltage releases the servo for 0 mV. Servos in position mode take
// no open loop voltage, so any other value is unsupported.
func (b *Backend) MoveVoltage(ctx context.Context, c *port.Claim, millivolts int32) error {
	return b.with(c, func(m *motor) error {
		if millivolts != 0 {
			return fmt.Errorf("move voltage %d mV: %w", millivolts, port.ErrUnsupported)
		}
		return m.release(ctx)
	})
}

// MoveVelocity stops the servo for 0 RPM, holding position unless the
// brake mode is coast. Continuous rotation is unsupported.
func (b *Backend) MoveVelocity(ctx context.Context, c *port.Claim, rpm int32) error {
	return b.with(c, func(m *motor) error {
		if rpm != 0 {
			return fmt.Errorf("move velocity %d rpm: %w", rpm, port.ErrUnsupported)
		}
		if m.brake == driver.BrakeCoast {
			return m.release(ctx)
		}
		raw, err := m.read(ctx, b.now())
		if err != nil {
			return err
		}
		return m.moveTo(ctx, raw, 0)
	})
}

func (b *Backend) MoveAbsolute(ctx context.Context, c *port.Claim, position float64, rpm int32) error {
	return b.with(c, func(m *motor) error {
		return m.moveTo(ctx, m.fromUnits(position), rpm)
	})
}

func (b *Backend) MoveRelative(ctx context.Context, c *port.Claim, delta float64, rpm int32) error {
	return b.with(c, func(m *motor) error {
		return m.moveTo(ctx, m.fromUnits(m.toUnits(m.target)+delta), rpm)
	})
}

func (b *Backend) ModifyProfiledVelocity(_ context.Context, c *port.Claim, rpm int32) error {
	return b.with(c, func(m *motor) error {
		m.targetVelocity = rpm
		return nil
	})
}

func (b *Backend) TarePosition(ctx context.Context, c *port.Claim) error {
	return b.with(c, func(m *motor) error {
		raw, err := m.read(ctx, b.now())
		if err != nil {
			return err
		}
		m.tare = raw - m.cal.HomingOffset
		return nil
	})
}

func (b *Backend) SetZeroPosition(ctx context.Context, c *port.Claim, position float64) error {
	return b.with(c, func(m *motor) error {
		raw, err := m.read(ctx, b.now())
		if err != nil {
			return err
		}
		// fromUnits adds the tare back in.
		m.tare = 0
		m.tare = raw - m.fromUnits(position)
		return nil
	})
}

func (b *Backend) BrakeMode(_ context.Context, c *port.Claim) (mode driver.BrakeMode, err error) {
	err = b.with(c, func(m *motor) error {
		mode = m.brake
		return nil
	})
	return mode, err
}

func (b *Backend) SetBrakeMode(_ context.Context, c *port.Claim, mode driver.BrakeMode) error {
	return b.with(c, func(m *motor) error {
		m.brake = mode
		return nil
	})
}

func (b *Backend) SetCurrentLimit(_ context.Context, c *port.Claim, milliamps int32) error {
	return b.with(c, func(m *motor) error {
		m.currentLimit = milliamps
		return nil
	})
}

func (b *Backend) SetVoltageLimit(_ context.Context, c *port.Claim, volts int32) error {
	return b.with(c, func(m *motor) error {
		m.voltageLimit = volts
		return nil
	})
}

func (b *Backend) PosPID(context.Context, *port.Claim) (driver.PIDFull, error) {
	return driver.PIDFull{}, port.ErrUnsupported
}

func (b *Backend) SetPosPID(context.Context, *port.Claim, driver.PIDFull) error {
	return port.ErrUnsupported
}

func (b *Backend) VelPID(context.Context, *port.Claim) (driver.PIDFull, error) {
	return driver.PIDFull{}, port.ErrUnsupported
}

func (b *Backend) SetVelPID(context.Context, *port.Claim, driver.PIDFull) error {
	return port.ErrUnsupported
}

func (b *Backend) Measure(ctx context.Context, c *port.Claim, meas driver.MotorMeasurement) (v float64, err error) {
	err = b.with(c, func(m *motor) error {
		switch meas {
		case driver.MotorPosition:
			raw, err := m.read(ctx, b.now())
			if err != nil {
				return err
			}
			v = m.toUnits(raw)
		case driver.MotorActualVelocity:
			v = m.dir() * m.velocity
		case driver.MotorTargetPosition:
			v = m.toUnits(m.target)
		case driver.MotorTargetVelocity:
			v = float64(m.targetVelocity)
		case driver.MotorCurrentLimit:
			v = float64(m.currentLimit)
		case driver.MotorVoltage:
			v = float64(m.voltage)
		case driver.MotorVoltageLimit:
			v = float64(m.voltageLimit)
		case driver.MotorDirection:
			v = 1
			if m.dir()*m.velocity < 0 {
				v = -1
			}
		case driver.MotorFaults:
			v = 0
		case driver.MotorFlags:
			var flags uint32
			if m.velocity == 0 {
				flags |= driver.FlagZeroVelocity
			}
			if m.lastRaw-m.cal.HomingOffset-m.tare == 0 {
				flags |= driver.FlagZeroPosition
			}
			v = float64(flags)
		case driver.MotorOverCurrent, driver.MotorOverTemp:
			v = 0
		default:
			return fmt.Errorf("measure %s: %w", meas, port.ErrUnsupported)
		}
		return nil
	})
	return v, err
}

func (b *Backend) RawPosition(ctx context.Context, c *port.Claim) (ticks int32, ts uint32, err error) {
	err = b.with(c, func(m *motor) error {
		now := b.now()
		raw, err := m.read(ctx, now)
		if err != nil {
			return err
		}
		ticks = int32(m.dir() * float64(raw-m.cal.HomingOffset))
		ts = uint32(now.Sub(b.start).Milliseconds())
		return nil
	})
	return ticks, ts, err
}
