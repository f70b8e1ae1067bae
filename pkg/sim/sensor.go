package sim

import (
	"context"
	"time"

	"github.com/gwillem/smartport/pkg/port"
)

// AngularState is the register file of a simulated rotation sensor or
// encoder. Position and velocity are physical, in centidegrees.
type AngularState struct {
	Reversed bool
	DataRate uint32
	Position int32
	Velocity int32
}

func (a *AngularState) dir() int32 {
	if a.Reversed {
		return -1
	}
	return 1
}

func (a *AngularState) step(dt time.Duration) {
	a.Position += int32(float64(a.Velocity) * dt.Seconds())
}

// Angular returns a copy of the sensor registers on port i.
func (b *Backend) Angular(i port.Index) (AngularState, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !i.Valid() || b.devices[i] == nil || b.devices[i].angular == nil {
		return AngularState{}, false
	}
	return *b.devices[i].angular, true
}

// UpdateAngular lets a test change the sensor registers on port i.
func (b *Backend) UpdateAngular(i port.Index, fn func(*AngularState)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if i.Valid() && b.devices[i] != nil && b.devices[i].angular != nil {
		fn(b.devices[i].angular)
	}
}

func (b *Backend) withAngular(c *port.Claim, op string, fn func(a *AngularState) error) error {
	return b.with(c, op, func(d *device) error {
		if d.angular == nil {
			return port.ErrWrongDeviceType
		}
		return fn(d.angular)
	})
}

// Reset serves rotation sensors, encoders and IMUs.
func (b *Backend) Reset(_ context.Context, c *port.Claim) error {
	return b.with(c, "reset", func(d *device) error {
		switch {
		case d.angular != nil:
			d.angular.Position, d.angular.Velocity = 0, 0
		case d.imu != nil:
			d.imu.reset(b.now().Add(b.calibration))
		default:
			return port.ErrWrongDeviceType
		}
		return nil
	})
}

// SetDataRate serves rotation sensors, encoders and IMUs. Rates are
// rounded down to a multiple of 5 ms, minimum 5 ms.
func (b *Backend) SetDataRate(_ context.Context, c *port.Claim, ms uint32) error {
	ms = max(5, ms/5*5)
	return b.with(c, "set_data_rate", func(d *device) error {
		switch {
		case d.angular != nil:
			d.angular.DataRate = ms
		case d.imu != nil:
			d.imu.DataRate = ms
		default:
			return port.ErrWrongDeviceType
		}
		return nil
	})
}

func (b *Backend) SetPosition(_ context.Context, c *port.Claim, centidegrees uint32) error {
	return b.withAngular(c, "set_position", func(a *AngularState) error {
		a.Position = a.dir() * int32(centidegrees)
		return nil
	})
}

func (b *Backend) ResetPosition(_ context.Context, c *port.Claim) error {
	return b.withAngular(c, "reset_position", func(a *AngularState) error {
		a.Position = 0
		return nil
	})
}

func (b *Backend) Position(_ context.Context, c *port.Claim) (v int32, err error) {
	err = b.withAngular(c, "position", func(a *AngularState) error {
		v = a.dir() * a.Position
		return nil
	})
	return v, err
}

func (b *Backend) Velocity(_ context.Context, c *port.Claim) (v int32, err error) {
	err = b.withAngular(c, "velocity", func(a *AngularState) error {
		v = a.dir() * a.Velocity
		return nil
	})
	return v, err
}

func (b *Backend) Angle(_ context.Context, c *port.Claim) (v int32, err error) {
	err = b.withAngular(c, "angle", func(a *AngularState) error {
		v = (a.dir()*a.Position%36000 + 36000) % 36000
		return nil
	})
	return v, err
}
