package sts

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/gwillem/smartport/pkg/driver"
	"github.com/gwillem/smartport/pkg/port"
)

type mockServo struct {
	mock.Mock
}

func (m *mockServo) Position(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *mockServo) SetPosition(ctx context.Context, position int) error {
	return m.Called(ctx, position).Error(0)
}

func (m *mockServo) Enable(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockServo) Disable(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func setup(t *testing.T, cal Calibration) (*Backend, *mockServo, *port.Claim) {
	t.Helper()
	s := &mockServo{}
	cal.ID = 1
	b := newBackend(map[port.Index]servo{1: s}, Calibrations{cal}, nil)
	c, err := port.NewRegistry(b).Claim(context.Background(), 1, port.DeviceMotor)
	require.NoError(t, err)
	t.Cleanup(c.Return)
	t.Cleanup(func() { s.AssertExpectations(t) })
	return b, s, c
}

func TestBackend_DeviceAt(t *testing.T) {
	b := newBackend(map[port.Index]servo{1: &mockServo{}, 30: &mockServo{}}, nil, nil)
	assert.Equal(t, port.DeviceMotor, b.DeviceAt(1))
	assert.Equal(t, port.DeviceNone, b.DeviceAt(2))
	assert.Equal(t, port.DeviceNone, b.DeviceAt(0))
	assert.NoError(t, b.Close())
}

func TestBackend_PositionUnits(t *testing.T) {
	ctx := context.Background()
	b, s, c := setup(t, Calibration{HomingOffset: 2048})
	s.On("Position", mock.Anything).Return(3072, nil)

	tests := []struct {
		units    driver.EncoderUnits
		reversed bool
		want     float64
	}{
		{driver.UnitsDegrees, false, 90},
		{driver.UnitsRotations, false, 0.25},
		{driver.UnitsCounts, false, 1024},
		{driver.UnitsDegrees, true, -90},
	}
	for _, tt := range tests {
		require.NoError(t, b.SetEncoderUnits(ctx, c, tt.units))
		require.NoError(t, b.SetReversed(ctx, c, tt.reversed))
		got, err := b.Measure(ctx, c, driver.MotorPosition)
		require.NoError(t, err)
		assert.InDelta(t, tt.want, got, 1e-9, "%v reversed=%v", tt.units, tt.reversed)
	}
}

func TestBackend_MoveAbsoluteEnablesAndClamps(t *testing.T) {
	ctx := context.Background()
	b, s, c := setup(t, Calibration{HomingOffset: 2048, RangeMin: 1000, RangeMax: 3000})
	s.On("Enable", mock.Anything).Return(nil).Once()
	s.On("SetPosition", mock.Anything, 2560).Return(nil).Once()
	s.On("SetPosition", mock.Anything, 3000).Return(nil).Once()

	require.NoError(t, b.MoveAbsolute(ctx, c, 45, 50))
	require.NoError(t, b.MoveAbsolute(ctx, c, 180, 50))

	target, err := b.Measure(ctx, c, driver.MotorTargetPosition)
	require.NoError(t, err)
	assert.InDelta(t, 83.671875, target, 1e-9)

	v, err := b.Measure(ctx, c, driver.MotorTargetVelocity)
	require.NoError(t, err)
	assert.Equal(t, 50.0, v)
}

func TestBackend_MoveRelative(t *testing.T) {
	ctx := context.Background()
	b, s, c := setup(t, Calibration{})
	require.NoError(t, b.SetEncoderUnits(ctx, c, driver.UnitsCounts))
	s.On("Enable", mock.Anything).Return(nil).Once()
	s.On("SetPosition", mock.Anything, 100).Return(nil).Once()
	s.On("SetPosition", mock.Anything, 150).Return(nil).Once()

	require.NoError(t, b.MoveAbsolute(ctx, c, 100, 10))
	require.NoError(t, b.MoveRelative(ctx, c, 50, 10))
}

func TestBackend_Tare(t *testing.T) {
	ctx := context.Background()
	b, s, c := setup(t, Calibration{HomingOffset: 100})
	require.NoError(t, b.SetEncoderUnits(ctx, c, driver.UnitsCounts))
	s.On("Position", mock.Anything).Return(600, nil)

	require.NoError(t, b.TarePosition(ctx, c))
	pos, err := b.Measure(ctx, c, driver.MotorPosition)
	require.NoError(t, err)
	assert.Zero(t, pos)

	require.NoError(t, b.SetZeroPosition(ctx, c, 42))
	pos, err = b.Measure(ctx, c, driver.MotorPosition)
	require.NoError(t, err)
	assert.Equal(t, 42.0, pos)

	flags, err := b.Measure(ctx, c, driver.MotorFlags)
	require.NoError(t, err)
	assert.Equal(t, float64(driver.FlagZeroVelocity), flags)
}

func TestBackend_StopAndRelease(t *testing.T) {
	ctx := context.Background()
	b, s, c := setup(t, Calibration{})

	s.On("Disable", mock.Anything).Return(nil).Twice()
	require.NoError(t, b.MoveVoltage(ctx, c, 0))
	require.NoError(t, b.MoveVelocity(ctx, c, 0))

	require.NoError(t, b.SetBrakeMode(ctx, c, driver.BrakeHold))
	s.On("Position", mock.Anything).Return(1234, nil).Once()
	s.On("Enable", mock.Anything).Return(nil).Once()
	s.On("SetPosition", mock.Anything, 1234).Return(nil).Once()
	require.NoError(t, b.MoveVelocity(ctx, c, 0))

	assert.ErrorIs(t, b.MoveVelocity(ctx, c, 10), port.ErrUnsupported)
	assert.ErrorIs(t, b.MoveVoltage(ctx, c, 6000), port.ErrUnsupported)
}

func TestBackend_VelocityEstimate(t *testing.T) {
	ctx := context.Background()
	b, s, c := setup(t, Calibration{})
	now := time.Unix(0, 0)
	b.now = func() time.Time { return now }

	s.On("Position", mock.Anything).Return(0, nil).Once()
	s.On("Position", mock.Anything).Return(4096, nil).Once()

	_, err := b.Measure(ctx, c, driver.MotorPosition)
	require.NoError(t, err)
	now = now.Add(time.Second)
	_, err = b.Measure(ctx, c, driver.MotorPosition)
	require.NoError(t, err)

	rpm, err := b.Measure(ctx, c, driver.MotorActualVelocity)
	require.NoError(t, err)
	assert.InDelta(t, 60, rpm, 1e-9)

	dir, err := b.Measure(ctx, c, driver.MotorDirection)
	require.NoError(t, err)
	assert.Equal(t, 1.0, dir)
}

func TestBackend_Unsupported(t *testing.T) {
	ctx := context.Background()
	b, _, c := setup(t, Calibration{})

	for _, meas := range []driver.MotorMeasurement{
		driver.MotorTemperature, driver.MotorCurrentDraw, driver.MotorPower,
		driver.MotorTorque, driver.MotorEfficiency,
	} {
		_, err := b.Measure(ctx, c, meas)
		assert.ErrorIs(t, err, port.ErrUnsupported, meas.String())
	}
	_, err := b.PosPID(ctx, c)
	assert.ErrorIs(t, err, port.ErrUnsupported)
	assert.ErrorIs(t, b.SetVelPID(ctx, c, driver.PIDFull{}), port.ErrUnsupported)
}

func TestBackend_ServoError(t *testing.T) {
	ctx := context.Background()
	b, s, c := setup(t, Calibration{})
	boom := errors.New("timeout")
	s.On("Position", mock.Anything).Return(0, boom)

	_, err := b.Measure(ctx, c, driver.MotorPosition)
	assert.ErrorIs(t, err, boom)
	_, _, err = b.RawPosition(ctx, c)
	assert.ErrorIs(t, err, boom)
}

func TestCalibration(t *testing.T) {
	cal := Calibration{RangeMin: 1000, RangeMax: 3000}
	tests := []struct {
		raw  int
		norm float64
	}{
		{1000, -100},
		{3000, 100},
		{2000, 0},
		{1500, -50},
	}
	for _, tt := range tests {
		if got := cal.Normalize(tt.raw); got != tt.norm {
			t.Errorf("Normalize(%d) = %v, want %v", tt.raw, got, tt.norm)
		}
		if got := cal.Denormalize(tt.norm); got != tt.raw {
			t.Errorf("Denormalize(%v) = %d, want %d", tt.norm, got, tt.raw)
		}
	}
	if got := cal.Clamp(500); got != 1000 {
		t.Errorf("Clamp(500) = %d", got)
	}
	if got := (Calibration{}).Clamp(-5); got != -5 {
		t.Errorf("unranged Clamp(-5) = %d", got)
	}
}
