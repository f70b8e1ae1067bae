package sim

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gwillem/smartport/pkg/driver"
	"github.com/gwillem/smartport/pkg/port"
)

func claim(t *testing.T, b *Backend, i port.Index, kind port.DeviceType) *port.Claim {
	t.Helper()
	c, err := port.NewRegistry(b).Claim(context.Background(), i, kind)
	require.NoError(t, err)
	t.Cleanup(c.Return)
	return c
}

func TestBackend_PlugAndDetect(t *testing.T) {
	b := New()
	b.Plug(1, port.DeviceMotor)
	b.Plug(0, port.DeviceMotor)
	b.Plug(22, port.DeviceImu)

	assert.Equal(t, port.DeviceMotor, b.DeviceAt(1))
	assert.Equal(t, port.DeviceNone, b.DeviceAt(0))
	assert.Equal(t, port.DeviceNone, b.DeviceAt(22))

	b.Unplug(1)
	assert.Equal(t, port.DeviceNone, b.DeviceAt(1))
}

func TestBackend_RecordsCalls(t *testing.T) {
	ctx := context.Background()
	b := New()
	b.Plug(2, port.DeviceMotor)
	c := claim(t, b, 2, port.DeviceMotor)

	var hooked []Call
	b.OnCall(func(call Call) { hooked = append(hooked, call) })

	require.NoError(t, b.SetGearing(ctx, c, driver.Gearset6))
	_, err := b.Measure(ctx, c, driver.MotorTemperature)
	require.NoError(t, err)

	want := []Call{{2, "set_gearing"}, {2, "measure_temperature"}}
	assert.Equal(t, want, b.Calls())
	assert.Equal(t, want, hooked)

	b.ResetCalls()
	assert.Empty(t, b.Calls())
}

func TestBackend_StaleClaim(t *testing.T) {
	ctx := context.Background()
	b := New()
	b.Plug(2, port.DeviceMotor)
	c := claim(t, b, 2, port.DeviceMotor)

	b.Plug(2, port.DeviceImu)
	_, err := b.Gearing(ctx, c)
	assert.ErrorIs(t, err, port.ErrWrongDeviceType)
}

func TestBackend_MotorKinematics(t *testing.T) {
	ctx := context.Background()
	b := New()
	b.Plug(1, port.DeviceMotor)
	c := claim(t, b, 1, port.DeviceMotor)

	require.NoError(t, b.MoveVelocity(ctx, c, 60))
	b.Step(time.Second)

	pos, err := b.Measure(ctx, c, driver.MotorPosition)
	require.NoError(t, err)
	assert.InDelta(t, 360, pos, 1e-9)

	ticks, _, err := b.RawPosition(ctx, c)
	require.NoError(t, err)
	assert.Equal(t, int32(1800), ticks)

	flags, err := b.Measure(ctx, c, driver.MotorFlags)
	require.NoError(t, err)
	assert.Zero(t, flags)
}

func TestBackend_WrongFamily(t *testing.T) {
	ctx := context.Background()
	b := New()
	b.Plug(3, port.DeviceDistance)
	c := claim(t, b, 3, port.DeviceDistance)

	_, err := b.Reversed(ctx, c)
	assert.ErrorIs(t, err, port.ErrWrongDeviceType)
	assert.ErrorIs(t, b.Reset(ctx, c), port.ErrWrongDeviceType)
	_, err = b.Heading(ctx, c)
	assert.ErrorIs(t, err, port.ErrWrongDeviceType)
	_, err = b.Position(ctx, c)
	assert.ErrorIs(t, err, port.ErrWrongDeviceType)
}

func TestBackend_MotorRegistersOnOtherFamily(t *testing.T) {
	ctx := context.Background()
	b := New()
	b.Plug(2, port.DeviceImu)
	c := claim(t, b, 2, port.DeviceImu)

	_, err := b.Gearing(ctx, c)
	assert.ErrorIs(t, err, port.ErrWrongDeviceType)
	assert.ErrorIs(t, b.SetGearing(ctx, c, driver.Gearset6), port.ErrWrongDeviceType)
	_, err = b.EncoderUnits(ctx, c)
	assert.ErrorIs(t, err, port.ErrWrongDeviceType)
	_, err = b.Measure(ctx, c, driver.MotorPosition)
	assert.ErrorIs(t, err, port.ErrWrongDeviceType)
}

func TestBackend_UnknownMeasurement(t *testing.T) {
	b := New()
	b.Plug(1, port.DeviceMotor)
	c := claim(t, b, 1, port.DeviceMotor)

	_, err := b.Measure(context.Background(), c, driver.MotorMeasurement(200))
	assert.ErrorIs(t, err, port.ErrUnsupported)
}

func TestBackend_Run(t *testing.T) {
	b := New()
	b.Plug(4, port.DeviceRotation)
	b.UpdateAngular(4, func(a *AngularState) { a.Velocity = 100000 })

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := b.Run(ctx, 5*time.Millisecond)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	a, ok := b.Angular(4)
	require.True(t, ok)
	assert.Positive(t, a.Position)
}
