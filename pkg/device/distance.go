package device

import (
	"context"

	"github.com/gwillem/smartport/pkg/port"
)

// Distance is a handle on a distance sensor port.
type Distance struct {
	brain *Brain
	index port.Index
}

// NewDistance returns a Distance on port i. It does not touch the port.
func NewDistance(b *Brain, i port.Index) *Distance {
	return &Distance{brain: b, index: i}
}

// Port returns the sensor's port.
func (d *Distance) Port() port.Index {
	return d.index
}

func (d *Distance) readInt(ctx context.Context, fn func(context.Context, *port.Claim) (int32, error)) (int32, error) {
	v, err := call(ctx, d.brain, d.index, port.DeviceDistance, fn)
	if err != nil {
		return ErrInt32, err
	}
	return v, nil
}

// Get returns the distance to the nearest object in mm.
func (d *Distance) Get(ctx context.Context) (int32, error) {
	return d.readInt(ctx, func(ctx context.Context, c *port.Claim) (int32, error) {
		return d.brain.distances.Distance(ctx, c)
	})
}

// Confidence returns the confidence of the reading, 0 to 63.
func (d *Distance) Confidence(ctx context.Context) (int32, error) {
	return d.readInt(ctx, func(ctx context.Context, c *port.Claim) (int32, error) {
		return d.brain.distances.Confidence(ctx, c)
	})
}

// ObjectSize returns the relative size of the object, 0 to 400.
func (d *Distance) ObjectSize(ctx context.Context) (int32, error) {
	return d.readInt(ctx, func(ctx context.Context, c *port.Claim) (int32, error) {
		return d.brain.distances.ObjectSize(ctx, c)
	})
}

// ObjectVelocity returns the object's velocity in m/s.
func (d *Distance) ObjectVelocity(ctx context.Context) (float64, error) {
	v, err := call(ctx, d.brain, d.index, port.DeviceDistance, func(ctx context.Context, c *port.Claim) (float64, error) {
		return d.brain.distances.ObjectVelocity(ctx, c)
	})
	if err != nil {
		return ErrFloat, err
	}
	return v, nil
}
