package sim

import (
	"context"
	"time"

	"github.com/gwillem/smartport/pkg/driver"
	"github.com/gwillem/smartport/pkg/port"
)

// MotorState is the register file of a simulated motor. Ticks, velocity
// and voltage are in the motor's physical direction; reversal is applied
// when values cross the driver interface.
type MotorState struct {
	Gearset      driver.Gearset
	Reversed     bool
	Units        driver.EncoderUnits
	BrakeMode    driver.BrakeMode
	CurrentLimit int32
	VoltageLimit int32

	Ticks          float64
	TargetTicks    float64
	TargetVelocity int32
	Velocity       float64
	Voltage        int32

	CurrentDraw int32
	Temperature float64
	Efficiency  float64
	Power       float64
	Torque      float64
	Faults      uint32

	PosPID driver.PIDFull
	VelPID driver.PIDFull
}

const overTempCelsius = 55

func newMotorState() *MotorState {
	return &MotorState{
		CurrentLimit: 2500,
		Temperature:  25,
	}
}

func (m *MotorState) dir() float64 {
	if m.Reversed {
		return -1
	}
	return 1
}

func (m *MotorState) step(dt time.Duration) {
	m.Ticks += m.Velocity / 60 * m.Gearset.TicksPerRev() * dt.Seconds()
}

// Motor returns a copy of the motor registers on port i.
func (b *Backend) Motor(i port.Index) (MotorState, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !i.Valid() || b.devices[i] == nil || b.devices[i].motor == nil {
		return MotorState{}, false
	}
	return *b.devices[i].motor, true
}

// UpdateMotor lets a test change the motor registers on port i.
func (b *Backend) UpdateMotor(i port.Index, fn func(*MotorState)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if i.Valid() && b.devices[i] != nil && b.devices[i].motor != nil {
		fn(b.devices[i].motor)
	}
}

func (b *Backend) withMotor(c *port.Claim, op string, fn func(m *MotorState) error) error {
	return b.with(c, op, func(d *device) error {
		if d.motor == nil {
			return port.ErrWrongDeviceType
		}
		return fn(d.motor)
	})
}

func (b *Backend) Gearing(_ context.Context, c *port.Claim) (g driver.Gearset, err error) {
	err = b.withMotor(c, "gearing", func(m *MotorState) error {
		g = m.Gearset
		return nil
	})
	return g, err
}

func (b *Backend) SetGearing(_ context.Context, c *port.Claim, g driver.Gearset) error {
	return b.withMotor(c, "set_gearing", func(m *MotorState) error {
		m.Gearset = g
		return nil
	})
}

// Reversed serves motors, rotation sensors and encoders.
func (b *Backend) Reversed(_ context.Context, c *port.Claim) (r bool, err error) {
	err = b.with(c, "reversed", func(d *device) error {
		switch {
		case d.motor != nil:
			r = d.motor.Reversed
		case d.angular != nil:
			r = d.angular.Reversed
		default:
			return port.ErrWrongDeviceType
		}
		return nil
	})
	return r, err
}

// SetReversed serves motors, rotation sensors and encoders.
func (b *Backend) SetReversed(_ context.Context, c *port.Claim, reversed bool) error {
	return b.with(c, "set_reversed", func(d *device) error {
		switch {
		case d.motor != nil:
			d.motor.Reversed = reversed
		case d.angular != nil:
			d.angular.Reversed = reversed
		default:
			return port.ErrWrongDeviceType
		}
		return nil
	})
}

func (b *Backend) EncoderUnits(_ context.Context, c *port.Claim) (u driver.EncoderUnits, err error) {
	err = b.withMotor(c, "encoder_units", func(m *MotorState) error {
		u = m.Units
		return nil
	})
	return u, err
}

func (b *Backend) SetEncoderUnits(_ context.Context, c *port.Claim, u driver.EncoderUnits) error {
	return b.withMotor(c, "set_encoder_units", func(m *MotorState) error {
		m.Units = u
		return nil
	})
}

func (b *Backend) MoveVoltage(_ context.Context, c *port.Claim, millivolts int32) error {
	return b.withMotor(c, "move_voltage", func(m *MotorState) error {
		millivolts = max(-12000, min(12000, millivolts))
		if m.VoltageLimit > 0 {
			limit := m.VoltageLimit * 1000
			millivolts = max(-limit, min(limit, millivolts))
		}
		m.Voltage = int32(m.dir()) * millivolts
		m.TargetVelocity = 0
		m.Velocity = float64(m.Voltage) / 12000 * float64(m.Gearset.MaxRPM())
		return nil
	})
}

func (b *Backend) MoveVelocity(_ context.Context, c *port.Claim, rpm int32) error {
	return b.withMotor(c, "move_velocity", func(m *MotorState) error {
		limit := m.Gearset.MaxRPM()
		rpm = max(-limit, min(limit, rpm))
		m.TargetVelocity = rpm
		m.Velocity = m.dir() * float64(rpm)
		m.Voltage = int32(m.Velocity / float64(limit) * 12000)
		return nil
	})
}

func (b *Backend) MoveAbsolute(_ context.Context, c *port.Claim, position float64, rpm int32) error {
	return b.withMotor(c, "move_absolute", func(m *MotorState) error {
		m.TargetTicks = m.dir() * m.Units.ToTicks(position, m.Gearset)
		m.Ticks = m.TargetTicks
		m.TargetVelocity = rpm
		m.Velocity = 0
		return nil
	})
}

func (b *Backend) MoveRelative(_ context.Context, c *port.Claim, delta float64, rpm int32) error {
	return b.withMotor(c, "move_relative", func(m *MotorState) error {
		m.TargetTicks += m.dir() * m.Units.ToTicks(delta, m.Gearset)
		m.Ticks = m.TargetTicks
		m.TargetVelocity = rpm
		m.Velocity = 0
		return nil
	})
}

func (b *Backend) ModifyProfiledVelocity(_ context.Context, c *port.Claim, rpm int32) error {
	return b.withMotor(c, "modify_profiled_velocity", func(m *MotorState) error {
		m.TargetVelocity = rpm
		return nil
	})
}

func (b *Backend) TarePosition(_ context.Context, c *port.Claim) error {
	return b.withMotor(c, "tare_position", func(m *MotorState) error {
		m.TargetTicks -= m.Ticks
		m.Ticks = 0
		return nil
	})
}

func (b *Backend) SetZeroPosition(_ context.Context, c *port.Claim, position float64) error {
	return b.withMotor(c, "set_zero_position", func(m *MotorState) error {
		m.Ticks = m.dir() * m.Units.ToTicks(position, m.Gearset)
		return nil
	})
}

func (b *Backend) BrakeMode(_ context.Context, c *port.Claim) (mode driver.BrakeMode, err error) {
	err = b.withMotor(c, "brake_mode", func(m *MotorState) error {
		mode = m.BrakeMode
		return nil
	})
	return mode, err
}

func (b *Backend) SetBrakeMode(_ context.Context, c *port.Claim, mode driver.BrakeMode) error {
	return b.withMotor(c, "set_brake_mode", func(m *MotorState) error {
		m.BrakeMode = mode
		return nil
	})
}

func (b *Backend) SetCurrentLimit(_ context.Context, c *port.Claim, milliamps int32) error {
	return b.withMotor(c, "set_current_limit", func(m *MotorState) error {
		m.CurrentLimit = milliamps
		return nil
	})
}

func (b *Backend) SetVoltageLimit(_ context.Context, c *port.Claim, volts int32) error {
	return b.withMotor(c, "set_voltage_limit", func(m *MotorState) error {
		m.VoltageLimit = volts
		return nil
	})
}

func (b *Backend) PosPID(_ context.Context, c *port.Claim) (pid driver.PIDFull, err error) {
	err = b.withMotor(c, "pos_pid", func(m *MotorState) error {
		pid = m.PosPID
		return nil
	})
	return pid, err
}

func (b *Backend) SetPosPID(_ context.Context, c *port.Claim, pid driver.PIDFull) error {
	return b.withMotor(c, "set_pos_pid", func(m *MotorState) error {
		m.PosPID = pid
		return nil
	})
}

func (b *Backend) VelPID(_ context.Context, c *port.Claim) (pid driver.PIDFull, err error) {
	err = b.withMotor(c, "vel_pid", func(m *MotorState) error {
		pid = m.VelPID
		return nil
	})
	return pid, err
}

func (b *Backend) SetVelPID(_ context.Context, c *port.Claim, pid driver.PIDFull) error {
	return b.withMotor(c, "set_vel_pid", func(m *MotorState) error {
		m.VelPID = pid
		return nil
	})
}

func (b *Backend) Measure(_ context.Context, c *port.Claim, meas driver.MotorMeasurement) (v float64, err error) {
	err = b.withMotor(c, "measure_"+meas.String(), func(m *MotorState) error {
		var ok bool
		if v, ok = m.measure(meas); !ok {
			return port.ErrUnsupported
		}
		return nil
	})
	return v, err
}

func (m *MotorState) measure(meas driver.MotorMeasurement) (float64, bool) {
	switch meas {
	case driver.MotorPosition:
		return m.dir() * m.Units.FromTicks(m.Ticks, m.Gearset), true
	case driver.MotorActualVelocity:
		return m.dir() * m.Velocity, true
	case driver.MotorTargetPosition:
		return m.dir() * m.Units.FromTicks(m.TargetTicks, m.Gearset), true
	case driver.MotorTargetVelocity:
		return float64(m.TargetVelocity), true
	case driver.MotorCurrentDraw:
		return float64(m.CurrentDraw), true
	case driver.MotorCurrentLimit:
		return float64(m.CurrentLimit), true
	case driver.MotorVoltage:
		return m.dir() * float64(m.Voltage), true
	case driver.MotorVoltageLimit:
		return float64(m.VoltageLimit), true
	case driver.MotorDirection:
		if m.dir()*m.Velocity < 0 {
			return -1, true
		}
		return 1, true
	case driver.MotorEfficiency:
		return m.Efficiency, true
	case driver.MotorPower:
		return m.Power, true
	case driver.MotorTemperature:
		return m.Temperature, true
	case driver.MotorTorque:
		return m.Torque, true
	case driver.MotorFaults:
		return float64(m.faults()), true
	case driver.MotorFlags:
		var flags uint32
		if m.Velocity == 0 {
			flags |= driver.FlagZeroVelocity
		}
		if m.Ticks == 0 {
			flags |= driver.FlagZeroPosition
		}
		return float64(flags), true
	case driver.MotorOverCurrent:
		return bit(m.faults()&driver.FaultOverCurrent != 0), true
	case driver.MotorOverTemp:
		return bit(m.faults()&driver.FaultOverTemp != 0), true
	}
	return 0, false
}

func (m *MotorState) faults() uint32 {
	f := m.Faults
	if m.Temperature >= overTempCelsius {
		f |= driver.FaultOverTemp
	}
	if m.CurrentDraw > m.CurrentLimit {
		f |= driver.FaultOverCurrent
	}
	return f
}

func (b *Backend) RawPosition(_ context.Context, c *port.Claim) (ticks int32, ts uint32, err error) {
	err = b.withMotor(c, "raw_position", func(m *MotorState) error {
		ticks = int32(m.dir() * m.Ticks)
		ts = b.millis()
		return nil
	})
	return ticks, ts, err
}

func bit(v bool) float64 {
	if v {
		return 1
	}
	return 0
}
