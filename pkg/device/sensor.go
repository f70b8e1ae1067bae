package device

import (
	"context"
	"fmt"

	"github.com/gwillem/smartport/pkg/driver"
	"github.com/gwillem/smartport/pkg/port"
)

// SensorConfig is the configuration a Rotation or Encoder installs on its
// port.
type SensorConfig struct {
	Reversed bool
}

type sensorConfigurator struct {
	drv driver.Rotation
}

func (sc sensorConfigurator) readConfig(ctx context.Context, c *port.Claim) (SensorConfig, error) {
	r, err := sc.drv.Reversed(ctx, c)
	return SensorConfig{Reversed: r}, err
}

func (sc sensorConfigurator) writeConfig(ctx context.Context, c *port.Claim, cfg SensorConfig) error {
	return sc.drv.SetReversed(ctx, c, cfg.Reversed)
}

// angular is the shared implementation of the absolute rotation sensor
// and the quadrature encoder. Angles are in centidegrees.
type angular struct {
	brain *Brain
	index port.Index
	kind  port.DeviceType
	drv   driver.Rotation
	tx    *transaction[SensorConfig]
}

func newAngular(b *Brain, i port.Index, kind port.DeviceType, drv driver.Rotation, reversed bool) angular {
	cfg := SensorConfig{Reversed: reversed}
	return angular{
		brain: b,
		index: i,
		kind:  kind,
		drv:   drv,
		tx:    newTransaction(b, i, kind, cfg, sensorConfigurator{drv}),
	}
}

func (a *angular) command(ctx context.Context, op string, fn func(context.Context, *port.Claim) error) error {
	_, err := withConfiguration(ctx, a.tx, op, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, do(ctx, a.brain, a.index, a.kind, fn)
	})
	return err
}

func (a *angular) read(ctx context.Context, op string, fn func(context.Context, *port.Claim) (int32, error)) (int32, error) {
	v, err := withConfiguration(ctx, a.tx, op, func(ctx context.Context) (int32, error) {
		return call(ctx, a.brain, a.index, a.kind, fn)
	})
	if err != nil {
		return ErrInt32, err
	}
	return v, nil
}

// Reset resets the sensor's state, including its position, to zero.
func (a *angular) Reset(ctx context.Context) error {
	return a.command(ctx, "reset", func(ctx context.Context, c *port.Claim) error {
		return a.drv.Reset(ctx, c)
	})
}

// SetDataRate sets the reporting interval in ms.
func (a *angular) SetDataRate(ctx context.Context, ms uint32) error {
	return a.command(ctx, "set data rate", func(ctx context.Context, c *port.Claim) error {
		return a.drv.SetDataRate(ctx, c, ms)
	})
}

// SetPosition sets the current position in centidegrees.
func (a *angular) SetPosition(ctx context.Context, centidegrees uint32) error {
	return a.command(ctx, "set position", func(ctx context.Context, c *port.Claim) error {
		return a.drv.SetPosition(ctx, c, centidegrees)
	})
}

// ResetPosition makes the current position read as zero.
func (a *angular) ResetPosition(ctx context.Context) error {
	return a.command(ctx, "reset position", func(ctx context.Context, c *port.Claim) error {
		return a.drv.ResetPosition(ctx, c)
	})
}

// Position returns the accumulated position in centidegrees.
func (a *angular) Position(ctx context.Context) (int32, error) {
	return a.read(ctx, "position", func(ctx context.Context, c *port.Claim) (int32, error) {
		return a.drv.Position(ctx, c)
	})
}

// Velocity returns the velocity in centidegrees per second.
func (a *angular) Velocity(ctx context.Context) (int32, error) {
	return a.read(ctx, "velocity", func(ctx context.Context, c *port.Claim) (int32, error) {
		return a.drv.Velocity(ctx, c)
	})
}

// Angle returns the angle within one revolution, 0 to 35999 centidegrees.
func (a *angular) Angle(ctx context.Context) (int32, error) {
	return a.read(ctx, "angle", func(ctx context.Context, c *port.Claim) (int32, error) {
		return a.drv.Angle(ctx, c)
	})
}

// SetReversed changes the direction and writes it to the port.
func (a *angular) SetReversed(ctx context.Context, reversed bool) error {
	return a.tx.set(ctx, "set reversed",
		func(c *SensorConfig) { c.Reversed = reversed },
		func(ctx context.Context, c *port.Claim, cfg SensorConfig) error {
			return a.drv.SetReversed(ctx, c, cfg.Reversed)
		})
}

// Reverse flips the direction and writes it to the port.
func (a *angular) Reverse(ctx context.Context) error {
	return a.tx.set(ctx, "reverse",
		func(c *SensorConfig) { c.Reversed = !c.Reversed },
		func(ctx context.Context, c *port.Claim, cfg SensorConfig) error {
			return a.drv.SetReversed(ctx, c, cfg.Reversed)
		})
}

// IsReversed returns the cached direction.
func (a *angular) IsReversed() bool {
	return a.tx.cache.read().Reversed
}

// Port returns the sensor's port.
func (a *angular) Port() port.Index {
	return a.index
}

// Rotation is one software handle on an absolute rotation sensor port.
type Rotation struct {
	angular
}

// NewRotation creates a Rotation on port i and installs its direction on
// the port.
func NewRotation(ctx context.Context, b *Brain, i port.Index, reversed bool) (*Rotation, error) {
	r := &Rotation{newAngular(b, i, port.DeviceRotation, b.rotations, reversed)}
	if err := r.tx.init(ctx); err != nil {
		return nil, fmt.Errorf("new rotation: %w", err)
	}
	return r, nil
}

// Encoder is one software handle on a quadrature encoder port.
type Encoder struct {
	angular
}

// NewEncoder creates an Encoder on port i and installs its direction on
// the port.
func NewEncoder(ctx context.Context, b *Brain, i port.Index, reversed bool) (*Encoder, error) {
	e := &Encoder{newAngular(b, i, port.DeviceEncoder, b.encoders, reversed)}
	if err := e.tx.init(ctx); err != nil {
		return nil, fmt.Errorf("new encoder: %w", err)
	}
	return e, nil
}
