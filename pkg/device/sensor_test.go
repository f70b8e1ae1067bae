package device

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gwillem/smartport/pkg/port"
	"github.com/gwillem/smartport/pkg/sim"
)

func TestRotation_ReversedSharedPort(t *testing.T) {
	ctx := context.Background()
	s, b := newSimBrain(t, map[port.Index]port.DeviceType{4: port.DeviceRotation})
	s.UpdateAngular(4, func(a *sim.AngularState) { a.Position = 9000 })

	fwd, err := NewRotation(ctx, b, 4, false)
	require.NoError(t, err)
	rev, err := NewRotation(ctx, b, 4, true)
	require.NoError(t, err)

	p, err := fwd.Position(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(9000), p)

	p, err = rev.Position(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(-9000), p)

	a, err := rev.Angle(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(27000), a)

	st, _ := s.Angular(4)
	assert.True(t, st.Reversed, "restores leave rev's construction-time direction")
}

func TestAngular_TransactionRestoresPreviousDirection(t *testing.T) {
	type sensor interface {
		Position(ctx context.Context) (int32, error)
	}
	tests := []struct {
		name string
		kind port.DeviceType
		open func(ctx context.Context, b *Brain, reversed bool) (sensor, error)
	}{
		{"rotation", port.DeviceRotation, func(ctx context.Context, b *Brain, reversed bool) (sensor, error) {
			return NewRotation(ctx, b, 4, reversed)
		}},
		{"encoder", port.DeviceEncoder, func(ctx context.Context, b *Brain, reversed bool) (sensor, error) {
			return NewEncoder(ctx, b, 4, reversed)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			s, b := newSimBrain(t, map[port.Index]port.DeviceType{4: tt.kind})
			s.UpdateAngular(4, func(a *sim.AngularState) { a.Position = 9000 })

			fwd, err := tt.open(ctx, b, false)
			require.NoError(t, err)
			_, err = tt.open(ctx, b, true)
			require.NoError(t, err)

			var during sim.AngularState
			s.OnCall(func(c sim.Call) {
				if c.Op == "position" {
					during, _ = s.Angular(4)
				}
			})
			p, err := fwd.Position(ctx)
			require.NoError(t, err)
			assert.Equal(t, int32(9000), p)
			assert.False(t, during.Reversed, "fwd's direction is installed for the call")

			after, _ := s.Angular(4)
			assert.True(t, after.Reversed, "the other object's direction is back on the port")
		})
	}
}

func TestRotation_ReverseToggles(t *testing.T) {
	ctx := context.Background()
	s, b := newSimBrain(t, map[port.Index]port.DeviceType{4: port.DeviceRotation})
	r, err := NewRotation(ctx, b, 4, false)
	require.NoError(t, err)

	require.NoError(t, r.Reverse(ctx))
	assert.True(t, r.IsReversed())
	require.NoError(t, r.Reverse(ctx))
	assert.False(t, r.IsReversed())
	require.NoError(t, r.SetReversed(ctx, true))
	assert.True(t, r.IsReversed())

	st, _ := s.Angular(4)
	assert.True(t, st.Reversed)
}

func TestRotation_Commands(t *testing.T) {
	ctx := context.Background()
	s, b := newSimBrain(t, map[port.Index]port.DeviceType{4: port.DeviceRotation})
	r, err := NewRotation(ctx, b, 4, false)
	require.NoError(t, err)

	require.NoError(t, r.SetPosition(ctx, 4500))
	p, err := r.Position(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(4500), p)

	require.NoError(t, r.ResetPosition(ctx))
	p, err = r.Position(ctx)
	require.NoError(t, err)
	assert.Zero(t, p)

	require.NoError(t, r.SetDataRate(ctx, 12))
	st, _ := s.Angular(4)
	assert.Equal(t, uint32(10), st.DataRate)

	s.UpdateAngular(4, func(a *sim.AngularState) { a.Velocity = 1000 })
	v, err := r.Velocity(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(1000), v)

	s.Step(time.Second)
	p, err = r.Position(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(1000), p)

	require.NoError(t, r.Reset(ctx))
	p, err = r.Position(ctx)
	require.NoError(t, err)
	assert.Zero(t, p)
}

func TestRotation_Errors(t *testing.T) {
	ctx := context.Background()
	s, b := newSimBrain(t, map[port.Index]port.DeviceType{4: port.DeviceRotation})

	_, err := NewRotation(ctx, b, 0, false)
	require.ErrorIs(t, err, port.ErrInvalidPort)
	_, err = NewRotation(ctx, b, 5, false)
	require.ErrorIs(t, err, port.ErrWrongDeviceType)

	r, err := NewRotation(ctx, b, 4, false)
	require.NoError(t, err)
	s.Unplug(4)
	v, err := r.Angle(ctx)
	require.ErrorIs(t, err, port.ErrWrongDeviceType)
	assert.Equal(t, ErrInt32, v)
}

func TestEncoder_UsesEncoderPorts(t *testing.T) {
	ctx := context.Background()
	s, b := newSimBrain(t, map[port.Index]port.DeviceType{
		1: port.DeviceEncoder,
		2: port.DeviceRotation,
	})
	s.UpdateAngular(1, func(a *sim.AngularState) { a.Position = 360 })

	e, err := NewEncoder(ctx, b, 1, true)
	require.NoError(t, err)
	p, err := e.Position(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(-360), p)
	assert.Equal(t, port.Index(1), e.Port())

	_, err = NewEncoder(ctx, b, 2, false)
	require.ErrorIs(t, err, port.ErrWrongDeviceType)
}
