package device

import (
	"context"
	"fmt"
	"sync"

	"github.com/gwillem/smartport/pkg/driver"
	"github.com/gwillem/smartport/pkg/port"
)

// MotorConfig is the configuration a Motor installs on its port. The zero
// value is the default: 36:1 cartridge, not reversed, degrees.
type MotorConfig struct {
	Gearset  driver.Gearset
	Reversed bool
	Units    driver.EncoderUnits
}

// MotorOption overrides part of a Motor's initial configuration.
type MotorOption func(*MotorConfig)

// WithGearset sets the motor's gear cartridge.
func WithGearset(g driver.Gearset) MotorOption {
	return func(c *MotorConfig) { c.Gearset = g }
}

// WithReversed sets whether the motor's direction is reversed.
func WithReversed(reversed bool) MotorOption {
	return func(c *MotorConfig) { c.Reversed = reversed }
}

// WithUnits sets the unit system for the motor's positions.
func WithUnits(u driver.EncoderUnits) MotorOption {
	return func(c *MotorConfig) { c.Units = u }
}

// Motor is one software handle on a smart motor port.
type Motor struct {
	brain *Brain
	index port.Index
	drv   driver.Motor
	tx    *transaction[MotorConfig]

	deprecation sync.Once
}

// NewMotor creates a Motor on port i and installs its configuration on
// the port.
func NewMotor(ctx context.Context, b *Brain, i port.Index, opts ...MotorOption) (*Motor, error) {
	m := newMotor(b, i, opts...)
	if err := m.tx.init(ctx); err != nil {
		return nil, fmt.Errorf("new motor: %w", err)
	}
	return m, nil
}

func newMotor(b *Brain, i port.Index, opts ...MotorOption) *Motor {
	var cfg MotorConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	m := &Motor{brain: b, index: i, drv: b.motors}
	m.tx = newTransaction(b, i, port.DeviceMotor, cfg, motorConfigurator{m.drv})
	return m
}

type motorConfigurator struct {
	drv driver.Motor
}

func (mc motorConfigurator) readConfig(ctx context.Context, c *port.Claim) (MotorConfig, error) {
	var cfg MotorConfig
	var err error
	if cfg.Gearset, err = mc.drv.Gearing(ctx, c); err != nil {
		return cfg, err
	}
	if cfg.Reversed, err = mc.drv.Reversed(ctx, c); err != nil {
		return cfg, err
	}
	if cfg.Units, err = mc.drv.EncoderUnits(ctx, c); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (mc motorConfigurator) writeConfig(ctx context.Context, c *port.Claim, cfg MotorConfig) error {
	if err := mc.drv.SetGearing(ctx, c, cfg.Gearset); err != nil {
		return err
	}
	if err := mc.drv.SetReversed(ctx, c, cfg.Reversed); err != nil {
		return err
	}
	return mc.drv.SetEncoderUnits(ctx, c, cfg.Units)
}

// motorCall runs fn on m's port inside a configuration transaction.
func motorCall[T any](ctx context.Context, m *Motor, op string, fn func(context.Context, *port.Claim) (T, error)) (T, error) {
	return withConfiguration(ctx, m.tx, op, func(ctx context.Context) (T, error) {
		return call(ctx, m.brain, m.index, port.DeviceMotor, fn)
	})
}

func (m *Motor) command(ctx context.Context, op string, fn func(context.Context, *port.Claim) error) error {
	_, err := motorCall(ctx, m, op, func(ctx context.Context, c *port.Claim) (struct{}, error) {
		return struct{}{}, fn(ctx, c)
	})
	return err
}

func (m *Motor) measure(ctx context.Context, op string, meas driver.MotorMeasurement) (float64, error) {
	v, err := motorCall(ctx, m, op, func(ctx context.Context, c *port.Claim) (float64, error) {
		return m.drv.Measure(ctx, c, meas)
	})
	if err != nil {
		return ErrFloat, err
	}
	return v, nil
}

func (m *Motor) measureInt(ctx context.Context, op string, meas driver.MotorMeasurement) (int32, error) {
	v, err := m.measure(ctx, op, meas)
	if err != nil {
		return ErrInt32, err
	}
	return int32(v), nil
}

func (m *Motor) measureBits(ctx context.Context, op string, meas driver.MotorMeasurement) (uint32, error) {
	v, err := m.measure(ctx, op, meas)
	if err != nil {
		return ErrUint32, err
	}
	return uint32(v), nil
}

func (m *Motor) measureBool(ctx context.Context, op string, meas driver.MotorMeasurement) (bool, error) {
	v, err := m.measure(ctx, op, meas)
	if err != nil {
		return false, err
	}
	return v != 0, nil
}

// Move sets the motor's output from -127 to 127, as from a joystick.
func (m *Motor) Move(ctx context.Context, voltage int32) error {
	voltage = max(-127, min(127, voltage))
	return m.command(ctx, "move", func(ctx context.Context, c *port.Claim) error {
		return m.drv.MoveVoltage(ctx, c, voltage*12000/127)
	})
}

// MoveAbsolute sets a target position in the motor's encoder units, to be
// reached at the given velocity.
func (m *Motor) MoveAbsolute(ctx context.Context, position float64, velocity int32) error {
	return m.command(ctx, "move absolute", func(ctx context.Context, c *port.Claim) error {
		return m.drv.MoveAbsolute(ctx, c, position, velocity)
	})
}

// MoveRelative sets a target position relative to the current target.
func (m *Motor) MoveRelative(ctx context.Context, delta float64, velocity int32) error {
	return m.command(ctx, "move relative", func(ctx context.Context, c *port.Claim) error {
		return m.drv.MoveRelative(ctx, c, delta, velocity)
	})
}

// MoveVelocity sets the velocity in RPM, limited by the cartridge.
func (m *Motor) MoveVelocity(ctx context.Context, velocity int32) error {
	return m.command(ctx, "move velocity", func(ctx context.Context, c *port.Claim) error {
		return m.drv.MoveVelocity(ctx, c, velocity)
	})
}

// MoveVoltage sets the output voltage from -12000 to 12000 mV.
func (m *Motor) MoveVoltage(ctx context.Context, millivolts int32) error {
	return m.command(ctx, "move voltage", func(ctx context.Context, c *port.Claim) error {
		return m.drv.MoveVoltage(ctx, c, millivolts)
	})
}

// Brake stops the motor using its brake mode.
func (m *Motor) Brake(ctx context.Context) error {
	return m.command(ctx, "brake", func(ctx context.Context, c *port.Claim) error {
		return m.drv.MoveVelocity(ctx, c, 0)
	})
}

// ModifyProfiledVelocity changes the velocity of an in-progress
// MoveAbsolute or MoveRelative.
func (m *Motor) ModifyProfiledVelocity(ctx context.Context, velocity int32) error {
	return m.command(ctx, "modify profiled velocity", func(ctx context.Context, c *port.Claim) error {
		return m.drv.ModifyProfiledVelocity(ctx, c, velocity)
	})
}

// TarePosition makes the current position read as zero.
func (m *Motor) TarePosition(ctx context.Context) error {
	return m.command(ctx, "tare position", func(ctx context.Context, c *port.Claim) error {
		return m.drv.TarePosition(ctx, c)
	})
}

// SetZeroPosition makes position the motor's absolute zero.
func (m *Motor) SetZeroPosition(ctx context.Context, position float64) error {
	return m.command(ctx, "set zero position", func(ctx context.Context, c *port.Claim) error {
		return m.drv.SetZeroPosition(ctx, c, position)
	})
}

// SetBrakeMode sets the behavior when the motor is stopped.
func (m *Motor) SetBrakeMode(ctx context.Context, mode driver.BrakeMode) error {
	return m.command(ctx, "set brake mode", func(ctx context.Context, c *port.Claim) error {
		return m.drv.SetBrakeMode(ctx, c, mode)
	})
}

// SetCurrentLimit sets the current limit in mA.
func (m *Motor) SetCurrentLimit(ctx context.Context, milliamps int32) error {
	return m.command(ctx, "set current limit", func(ctx context.Context, c *port.Claim) error {
		return m.drv.SetCurrentLimit(ctx, c, milliamps)
	})
}

// SetVoltageLimit sets the voltage limit in V.
func (m *Motor) SetVoltageLimit(ctx context.Context, volts int32) error {
	return m.command(ctx, "set voltage limit", func(ctx context.Context, c *port.Claim) error {
		return m.drv.SetVoltageLimit(ctx, c, volts)
	})
}

// BrakeMode returns the motor's brake mode, or driver.BrakeInvalid.
func (m *Motor) BrakeMode(ctx context.Context) (driver.BrakeMode, error) {
	mode, err := motorCall(ctx, m, "brake mode", func(ctx context.Context, c *port.Claim) (driver.BrakeMode, error) {
		return m.drv.BrakeMode(ctx, c)
	})
	if err != nil {
		return driver.BrakeInvalid, err
	}
	return mode, nil
}

// Position returns the absolute position in the motor's encoder units.
func (m *Motor) Position(ctx context.Context) (float64, error) {
	return m.measure(ctx, "position", driver.MotorPosition)
}

// ActualVelocity returns the measured velocity in RPM.
func (m *Motor) ActualVelocity(ctx context.Context) (float64, error) {
	return m.measure(ctx, "actual velocity", driver.MotorActualVelocity)
}

// TargetPosition returns the target of the last MoveAbsolute or
// MoveRelative.
func (m *Motor) TargetPosition(ctx context.Context) (float64, error) {
	return m.measure(ctx, "target position", driver.MotorTargetPosition)
}

// TargetVelocity returns the velocity set by MoveVelocity.
func (m *Motor) TargetVelocity(ctx context.Context) (int32, error) {
	return m.measureInt(ctx, "target velocity", driver.MotorTargetVelocity)
}

// CurrentDraw returns the current in mA.
func (m *Motor) CurrentDraw(ctx context.Context) (int32, error) {
	return m.measureInt(ctx, "current draw", driver.MotorCurrentDraw)
}

// CurrentLimit returns the current limit in mA.
func (m *Motor) CurrentLimit(ctx context.Context) (int32, error) {
	return m.measureInt(ctx, "current limit", driver.MotorCurrentLimit)
}

// Voltage returns the applied voltage in mV.
func (m *Motor) Voltage(ctx context.Context) (int32, error) {
	return m.measureInt(ctx, "voltage", driver.MotorVoltage)
}

// VoltageLimit returns the voltage limit in V.
func (m *Motor) VoltageLimit(ctx context.Context) (int32, error) {
	return m.measureInt(ctx, "voltage limit", driver.MotorVoltageLimit)
}

// Direction returns 1 when moving forward and -1 when moving backward.
func (m *Motor) Direction(ctx context.Context) (int32, error) {
	return m.measureInt(ctx, "direction", driver.MotorDirection)
}

// Efficiency returns the efficiency in percent.
func (m *Motor) Efficiency(ctx context.Context) (float64, error) {
	return m.measure(ctx, "efficiency", driver.MotorEfficiency)
}

// Power returns the power draw in W.
func (m *Motor) Power(ctx context.Context) (float64, error) {
	return m.measure(ctx, "power", driver.MotorPower)
}

// Temperature returns the temperature in degrees Celsius.
func (m *Motor) Temperature(ctx context.Context) (float64, error) {
	return m.measure(ctx, "temperature", driver.MotorTemperature)
}

// Torque returns the torque in Nm.
func (m *Motor) Torque(ctx context.Context) (float64, error) {
	return m.measure(ctx, "torque", driver.MotorTorque)
}

// Faults returns the fault bitmask, see driver.FaultOverTemp and friends.
func (m *Motor) Faults(ctx context.Context) (uint32, error) {
	return m.measureBits(ctx, "faults", driver.MotorFaults)
}

// Flags returns the status flag bitmask, see driver.FlagBusy and friends.
func (m *Motor) Flags(ctx context.Context) (uint32, error) {
	return m.measureBits(ctx, "flags", driver.MotorFlags)
}

// IsOverCurrent reports whether the current limit is exceeded.
func (m *Motor) IsOverCurrent(ctx context.Context) (bool, error) {
	return m.measureBool(ctx, "is over current", driver.MotorOverCurrent)
}

// IsOverTemp reports whether the temperature limit is exceeded.
func (m *Motor) IsOverTemp(ctx context.Context) (bool, error) {
	return m.measureBool(ctx, "is over temp", driver.MotorOverTemp)
}

// IsStopped is not provided by the motor firmware. It always fails with
// port.ErrUnsupported once the port has been validated.
func (m *Motor) IsStopped(ctx context.Context) (bool, error) {
	return motorCall(ctx, m, "is stopped", func(context.Context, *port.Claim) (bool, error) {
		return false, port.ErrUnsupported
	})
}

// ZeroPositionFlag is not provided by the motor firmware. It always fails
// with port.ErrUnsupported once the port has been validated.
func (m *Motor) ZeroPositionFlag(ctx context.Context) (bool, error) {
	return motorCall(ctx, m, "zero position flag", func(context.Context, *port.Claim) (bool, error) {
		return false, port.ErrUnsupported
	})
}

// RawPosition returns the raw encoder count and the time in ms it was
// sampled.
func (m *Motor) RawPosition(ctx context.Context) (ticks int32, timestamp uint32, err error) {
	type raw struct {
		ticks int32
		ts    uint32
	}
	r, err := motorCall(ctx, m, "raw position", func(ctx context.Context, c *port.Claim) (raw, error) {
		t, ts, err := m.drv.RawPosition(ctx, c)
		return raw{t, ts}, err
	})
	if err != nil {
		return ErrInt32, 0, err
	}
	return r.ticks, r.ts, nil
}

// SetGearing changes the cartridge and writes it to the port.
func (m *Motor) SetGearing(ctx context.Context, g driver.Gearset) error {
	return m.tx.set(ctx, "set gearing",
		func(c *MotorConfig) { c.Gearset = g },
		func(ctx context.Context, c *port.Claim, cfg MotorConfig) error {
			return m.drv.SetGearing(ctx, c, cfg.Gearset)
		})
}

// SetReversed changes the direction and writes it to the port.
func (m *Motor) SetReversed(ctx context.Context, reversed bool) error {
	return m.tx.set(ctx, "set reversed",
		func(c *MotorConfig) { c.Reversed = reversed },
		func(ctx context.Context, c *port.Claim, cfg MotorConfig) error {
			return m.drv.SetReversed(ctx, c, cfg.Reversed)
		})
}

// SetEncoderUnits changes the unit system and writes it to the port.
func (m *Motor) SetEncoderUnits(ctx context.Context, u driver.EncoderUnits) error {
	return m.tx.set(ctx, "set encoder units",
		func(c *MotorConfig) { c.Units = u },
		func(ctx context.Context, c *port.Claim, cfg MotorConfig) error {
			return m.drv.SetEncoderUnits(ctx, c, cfg.Units)
		})
}

// Gearing returns the cached cartridge.
func (m *Motor) Gearing() driver.Gearset {
	return m.tx.cache.read().Gearset
}

// IsReversed returns the cached direction.
func (m *Motor) IsReversed() bool {
	return m.tx.cache.read().Reversed
}

// EncoderUnits returns the cached unit system.
func (m *Motor) EncoderUnits() driver.EncoderUnits {
	return m.tx.cache.read().Units
}

// Config returns the cached configuration.
func (m *Motor) Config() MotorConfig {
	return m.tx.cache.read()
}

// Port returns the motor's port.
func (m *Motor) Port() port.Index {
	return m.index
}
