package driver_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gwillem/smartport/pkg/driver"
	"github.com/gwillem/smartport/pkg/port"
	"github.com/gwillem/smartport/pkg/sim"
)

func TestMux_RoutesByPort(t *testing.T) {
	ctx := context.Background()
	motors := sim.New()
	motors.Plug(1, port.DeviceMotor)
	sensors := sim.New()
	sensors.Plug(1, port.DeviceImu)
	sensors.Plug(2, port.DeviceImu)

	mux := driver.NewMux(motors, sensors)
	assert.Equal(t, port.DeviceMotor, mux.DeviceAt(1), "first backend wins")
	assert.Equal(t, port.DeviceImu, mux.DeviceAt(2))
	assert.Equal(t, port.DeviceNone, mux.DeviceAt(3))

	reg := port.NewRegistry(mux)
	c, err := reg.Claim(ctx, 1, port.DeviceMotor)
	require.NoError(t, err)
	require.NoError(t, mux.SetGearing(ctx, c, driver.Gearset18))
	c.Return()

	st, ok := motors.Motor(1)
	require.True(t, ok)
	assert.Equal(t, driver.Gearset18, st.Gearset)

	c, err = reg.Claim(ctx, 2, port.DeviceImu)
	require.NoError(t, err)
	defer c.Return()
	require.NoError(t, mux.Reset(ctx, c))
	_, err = mux.Heading(ctx, c)
	require.NoError(t, err)
	assert.Equal(t, []sim.Call{{Port: 2, Op: "reset"}, {Port: 2, Op: "heading"}}, sensors.Calls())
	assert.Len(t, motors.Calls(), 1)

	_, err = mux.Gearing(ctx, c)
	assert.ErrorIs(t, err, port.ErrWrongDeviceType)
}

type bareDetector struct{}

func (bareDetector) DeviceAt(port.Index) port.DeviceType { return port.DeviceMotor }

func TestMux_MissingFamily(t *testing.T) {
	mux := driver.NewMux(bareDetector{})
	c, err := port.NewRegistry(mux).Claim(context.Background(), 5, port.DeviceMotor)
	require.NoError(t, err)
	defer c.Return()

	_, err = mux.Measure(context.Background(), c, driver.MotorPosition)
	assert.ErrorIs(t, err, port.ErrWrongDeviceType)
}

func TestMux_ClaimMustMatchFamily(t *testing.T) {
	ctx := context.Background()
	b := sim.New()
	b.Plug(2, port.DeviceImu)
	b.Plug(3, port.DeviceRotation)
	mux := driver.NewMux(b)
	reg := port.NewRegistry(mux)

	c, err := reg.Claim(ctx, 2, port.DeviceImu)
	require.NoError(t, err)
	_, err = mux.Gearing(ctx, c)
	assert.ErrorIs(t, err, port.ErrWrongDeviceType)
	_, err = mux.Position(ctx, c)
	assert.ErrorIs(t, err, port.ErrWrongDeviceType)
	c.Return()

	c, err = reg.Claim(ctx, 3, port.DeviceRotation)
	require.NoError(t, err)
	defer c.Return()
	assert.ErrorIs(t, mux.SetEncoderUnits(ctx, c, driver.UnitsRotations), port.ErrWrongDeviceType)
	_, err = mux.Heading(ctx, c)
	assert.ErrorIs(t, err, port.ErrWrongDeviceType)
	_, err = mux.Reversed(ctx, c)
	assert.NoError(t, err)
	assert.Empty(t, b.Calls()[1:], "rejected calls never reach the backend")
}
