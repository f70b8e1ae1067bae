package device

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gwillem/smartport/pkg/port"
	"github.com/gwillem/smartport/pkg/sim"
)

func TestDistance(t *testing.T) {
	ctx := context.Background()
	s, b := newSimBrain(t, map[port.Index]port.DeviceType{9: port.DeviceDistance})
	s.UpdateDistance(9, func(d *sim.DistanceState) {
		d.Millimeters = 420
		d.Confidence = 63
		d.Size = 200
		d.Velocity = 0.5
	})
	d := NewDistance(b, 9)

	mm, err := d.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(420), mm)

	conf, err := d.Confidence(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(63), conf)

	size, err := d.ObjectSize(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(200), size)

	vel, err := d.ObjectVelocity(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0.5, vel)
	assert.Equal(t, port.Index(9), d.Port())
}

func TestDistance_Errors(t *testing.T) {
	ctx := context.Background()
	_, b := newSimBrain(t, nil)

	mm, err := NewDistance(b, 9).Get(ctx)
	require.ErrorIs(t, err, port.ErrWrongDeviceType)
	assert.Equal(t, ErrInt32, mm)

	vel, err := NewDistance(b, 0).ObjectVelocity(ctx)
	require.ErrorIs(t, err, port.ErrInvalidPort)
	assert.Equal(t, ErrFloat, vel)
}
