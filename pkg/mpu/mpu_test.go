package mpu

import (
	"context"
	"encoding/binary"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gwillem/smartport/pkg/driver"
	"github.com/gwillem/smartport/pkg/port"
)

type fakeRegs struct {
	mu     sync.Mutex
	regs   map[byte][]byte
	writes []byte
	err    error
}

func newFakeRegs() *fakeRegs {
	return &fakeRegs{regs: make(map[byte][]byte)}
}

func (f *fakeRegs) ReadReg(reg byte, buf []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	copy(buf, f.regs[reg])
	return nil
}

func (f *fakeRegs) WriteReg(reg byte, buf []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = append(f.writes, reg)
	f.regs[reg] = append([]byte(nil), buf...)
	return nil
}

func (f *fakeRegs) Close() error { return nil }

func (f *fakeRegs) setVector(reg byte, x, y, z int16) {
	f.mu.Lock()
	defer f.mu.Unlock()
	buf := make([]byte, 6)
	binary.BigEndian.PutUint16(buf[0:], uint16(x))
	binary.BigEndian.PutUint16(buf[2:], uint16(y))
	binary.BigEndian.PutUint16(buf[4:], uint16(z))
	f.regs[reg] = buf
}

type fixture struct {
	b    *Backend
	regs *fakeRegs
	c    *port.Claim
	now  time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{regs: newFakeRegs(), now: time.Unix(100, 0)}
	b, err := newBackend(f.regs, 8, false, nil)
	require.NoError(t, err)
	b.now = func() time.Time { return f.now }
	f.b = b

	c, err := port.NewRegistry(b).Claim(context.Background(), 8, port.DeviceImu)
	require.NoError(t, err)
	t.Cleanup(c.Return)
	f.c = c
	return f
}

// calibrate feeds a constant gyro offset through the calibration window.
func (f *fixture) calibrate(t *testing.T, biasZ int16) {
	t.Helper()
	f.regs.setVector(RegGyroX, 0, 0, biasZ)
	f.regs.setVector(RegAccelX, 0, 0, 16384)
	for range calibSamples {
		f.now = f.now.Add(10 * time.Millisecond)
		require.NoError(t, f.b.Sample())
	}
}

func TestBackend_Configure(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, []byte{RegPowerMgmt1, RegGyroConf, RegAccelConf, RegConfig, RegSampleRateDiv}, f.regs.writes)
	assert.Equal(t, []byte{gyroRange << 3}, f.regs.regs[RegGyroConf])

	spi, err := newBackend(newFakeRegs(), 8, true, nil)
	require.NoError(t, err)
	assert.Equal(t, byte(RegUserCtl), spi.dev.(*fakeRegs).writes[0])
}

func TestBackend_DeviceAt(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, port.DeviceImu, f.b.DeviceAt(8))
	assert.Equal(t, port.DeviceNone, f.b.DeviceAt(7))
}

func TestBackend_CalibrationStatus(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	s, err := f.b.Status(ctx, f.c)
	require.NoError(t, err)
	assert.Equal(t, driver.ImuStatusCalibrating, s)

	f.calibrate(t, 33)
	s, err = f.b.Status(ctx, f.c)
	require.NoError(t, err)
	assert.Zero(t, s)

	require.NoError(t, f.b.Reset(ctx, f.c))
	s, err = f.b.Status(ctx, f.c)
	require.NoError(t, err)
	assert.Equal(t, driver.ImuStatusCalibrating, s)
}

func TestBackend_HeadingIntegratesGyroMinusBias(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.calibrate(t, 33)

	// 328 LSB above bias is 10 dps.
	f.regs.setVector(RegGyroX, 0, 0, 33+328)
	for range 10 {
		f.now = f.now.Add(100 * time.Millisecond)
		require.NoError(t, f.b.Sample())
	}

	h, err := f.b.Heading(ctx, f.c)
	require.NoError(t, err)
	assert.InDelta(t, 10, h, 1e-6)

	g, err := f.b.GyroRate(ctx, f.c)
	require.NoError(t, err)
	assert.InDelta(t, 10, g.Z, 1e-9)

	require.NoError(t, f.b.SetHeading(ctx, f.c, 270))
	h, err = f.b.Heading(ctx, f.c)
	require.NoError(t, err)
	assert.InDelta(t, 270, h, 1e-6)

	r, err := f.b.Rotation(ctx, f.c)
	require.NoError(t, err)
	assert.InDelta(t, 10, r, 1e-6)
	require.NoError(t, f.b.SetRotation(ctx, f.c, -720))
	r, err = f.b.Rotation(ctx, f.c)
	require.NoError(t, err)
	assert.InDelta(t, -720, r, 1e-6)
}

func TestBackend_TiltFromAccel(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.calibrate(t, 0)

	// Rolled 90 degrees: gravity along +Y.
	f.regs.setVector(RegAccelX, 0, 16384, 0)
	require.NoError(t, f.b.Sample())

	e, err := f.b.Euler(ctx, f.c)
	require.NoError(t, err)
	assert.InDelta(t, 90, e.Roll, 1e-9)
	assert.InDelta(t, 0, e.Pitch, 1e-9)

	a, err := f.b.Accel(ctx, f.c)
	require.NoError(t, err)
	assert.InDelta(t, 1, a.Y, 1e-9)

	require.NoError(t, f.b.SetEuler(ctx, f.c, driver.Euler{}))
	e, err = f.b.Euler(ctx, f.c)
	require.NoError(t, err)
	assert.InDelta(t, 0, e.Roll, 1e-9)

	q, err := f.b.Quaternion(ctx, f.c)
	require.NoError(t, err)
	assert.InDelta(t, 1, q.W*q.W+q.X*q.X+q.Y*q.Y+q.Z*q.Z, 1e-9)
}

func TestBackend_ReadFailureReportsError(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.regs.err = errors.New("nack")

	require.Error(t, f.b.Sample())
	s, err := f.b.Status(ctx, f.c)
	require.NoError(t, err)
	assert.Equal(t, driver.ImuStatusError, s)
}

func TestBackend_DataRate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.b.SetDataRate(ctx, f.c, 23))
	assert.Equal(t, 20*time.Millisecond, f.b.period)
	require.NoError(t, f.b.SetDataRate(ctx, f.c, 1))
	assert.Equal(t, 5*time.Millisecond, f.b.period)
}

func TestBackend_WrongClaim(t *testing.T) {
	f := newFixture(t)
	other := newFakeRegs()
	b2, err := newBackend(other, 3, false, nil)
	require.NoError(t, err)
	c, err := port.NewRegistry(b2).Claim(context.Background(), 3, port.DeviceImu)
	require.NoError(t, err)
	defer c.Return()

	_, err = f.b.Heading(context.Background(), c)
	assert.ErrorIs(t, err, port.ErrWrongDeviceType)
}

func TestBackend_Loop(t *testing.T) {
	f := newFixture(t)
	f.regs.setVector(RegAccelX, 0, 0, 16384)
	f.b.now = time.Now

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, f.b.Loop(ctx), context.DeadlineExceeded)

	f.b.mu.Lock()
	defer f.b.mu.Unlock()
	assert.Less(t, f.b.calibrating, calibSamples)
}
