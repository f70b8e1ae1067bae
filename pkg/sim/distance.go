package sim

import (
	"context"

	"github.com/gwillem/smartport/pkg/port"
)

// DistanceState is the register file of a simulated distance sensor.
type DistanceState struct {
	Millimeters int32
	Confidence  int32
	Size        int32
	Velocity    float64
}

// UpdateDistance lets a test change the sensor registers on port i.
func (b *Backend) UpdateDistance(i port.Index, fn func(*DistanceState)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if i.Valid() && b.devices[i] != nil && b.devices[i].distance != nil {
		fn(b.devices[i].distance)
	}
}

func (b *Backend) withDistance(c *port.Claim, op string, fn func(s *DistanceState)) error {
	return b.with(c, op, func(d *device) error {
		if d.distance == nil {
			return port.ErrWrongDeviceType
		}
		fn(d.distance)
		return nil
	})
}

func (b *Backend) Distance(_ context.Context, c *port.Claim) (v int32, err error) {
	err = b.withDistance(c, "distance", func(s *DistanceState) { v = s.Millimeters })
	return v, err
}

func (b *Backend) Confidence(_ context.Context, c *port.Claim) (v int32, err error) {
	err = b.withDistance(c, "confidence", func(s *DistanceState) { v = s.Confidence })
	return v, err
}

func (b *Backend) ObjectSize(_ context.Context, c *port.Claim) (v int32, err error) {
	err = b.withDistance(c, "object_size", func(s *DistanceState) { v = s.Size })
	return v, err
}

func (b *Backend) ObjectVelocity(_ context.Context, c *port.Claim) (v float64, err error) {
	err = b.withDistance(c, "object_velocity", func(s *DistanceState) { v = s.Velocity })
	return v, err
}
