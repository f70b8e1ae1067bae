// Package mpu serves an InvenSense MPU-6050 class IMU, wired over I2C or
// SPI, as the inertial sensor on one port. Heading is integrated from the
// gyro; pitch and roll come from the accelerometer.
package mpu

import (
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/gwillem/smartport/pkg/driver"
	"github.com/gwillem/smartport/pkg/port"
)

// Registers.
const (
	RegSampleRateDiv = 25
	RegConfig        = 26
	RegGyroConf      = 27
	RegAccelConf     = 28
	RegAccelX        = 59 // 6 bytes
	RegGyroX         = 67 // 6 bytes
	RegUserCtl       = 106
	RegPowerMgmt1    = 107
)

const (
	gyroRange     = 2 // 1000 dps
	gyroLSB       = 32.8
	accelLSB      = 16384.0 // 2 g
	calibSamples  = 200
	minDataRateMs = 5
)

// Bus kinds accepted by Config.
const (
	BusI2C = "i2c"
	BusSPI = "spi"
)

// Config selects the bus the sensor is wired to and the port it serves.
type Config struct {
	// Bus is BusI2C or BusSPI.
	Bus    string
	Name   string
	Addr   uint16
	Port   port.Index
	Logger *slog.Logger
}

// Backend is a driver.Imu for a single sensor.
type Backend struct {
	dev   regPort
	index port.Index
	log   *slog.Logger
	now   func() time.Time

	mu          sync.Mutex
	period      time.Duration
	last        time.Time
	yaw         float64
	gyro        driver.Vector3
	accel       driver.Vector3
	bias        driver.Vector3
	biasSum     driver.Vector3
	calibrating int
	failed      bool
	orientation driver.Orientation
}

var (
	_ driver.Backend = (*Backend)(nil)
	_ driver.Imu     = (*Backend)(nil)
)

// Open opens and configures the sensor, then starts its calibration.
func Open(cfg Config) (*Backend, error) {
	var dev regPort
	var err error
	switch cfg.Bus {
	case BusI2C, "":
		dev, err = openI2C(cfg.Name, cfg.Addr)
	case BusSPI:
		dev, err = openSPI(cfg.Name)
	default:
		return nil, fmt.Errorf("unknown imu bus %q", cfg.Bus)
	}
	if err != nil {
		return nil, err
	}
	b, err := newBackend(dev, cfg.Port, cfg.Bus == BusSPI, cfg.Logger)
	if err != nil {
		dev.Close()
		return nil, err
	}
	return b, nil
}

func newBackend(dev regPort, i port.Index, spi bool, log *slog.Logger) (*Backend, error) {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	b := &Backend{
		dev:    dev,
		index:  i,
		log:    log,
		now:    time.Now,
		period: 10 * time.Millisecond,
	}
	if err := b.configure(spi); err != nil {
		return nil, fmt.Errorf("configure imu: %w", err)
	}
	b.calibrating = calibSamples
	return b, nil
}

func (b *Backend) configure(spi bool) error {
	if spi {
		// Disable the I2C slave interface.
		if err := b.dev.WriteReg(RegUserCtl, []byte{0x10}); err != nil {
			return err
		}
	}
	writes := []struct {
		reg byte
		val byte
	}{
		{RegPowerMgmt1, 0x01}, // wake, PLL on gyro X
		{RegGyroConf, gyroRange << 3},
		{RegAccelConf, 0},
		{RegConfig, 1},
		{RegSampleRateDiv, 9},
	}
	for _, w := range writes {
		if err := b.dev.WriteReg(w.reg, []byte{w.val}); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the bus.
func (b *Backend) Close() error {
	return b.dev.Close()
}

// DeviceAt implements port.Detector.
func (b *Backend) DeviceAt(i port.Index) port.DeviceType {
	if i.Valid() && i == b.index {
		return port.DeviceImu
	}
	return port.DeviceNone
}

func (b *Backend) readVector(reg byte, lsb float64) (driver.Vector3, error) {
	var buf [6]byte
	if err := b.dev.ReadReg(reg, buf[:]); err != nil {
		return driver.Vector3{}, err
	}
	return driver.Vector3{
		X: float64(int16(binary.BigEndian.Uint16(buf[0:]))) / lsb,
		Y: float64(int16(binary.BigEndian.Uint16(buf[2:]))) / lsb,
		Z: float64(int16(binary.BigEndian.Uint16(buf[4:]))) / lsb,
	}, nil
}

// Sample reads the sensor once and integrates the gyro since the last
// sample. While calibrating, samples accumulate into the gyro bias
// instead.
func (b *Backend) Sample() error {
	gyro, err := b.readVector(RegGyroX, gyroLSB)
	if err == nil {
		var accel driver.Vector3
		if accel, err = b.readVector(RegAccelX, accelLSB); err == nil {
			b.update(gyro, accel)
		}
	}
	b.mu.Lock()
	b.failed = err != nil
	b.mu.Unlock()
	return err
}

func (b *Backend) update(gyro, accel driver.Vector3) {
	now := b.now()
	b.mu.Lock()
	defer b.mu.Unlock()

	b.accel = accel
	if b.calibrating > 0 {
		b.biasSum = add(b.biasSum, gyro)
		b.calibrating--
		if b.calibrating == 0 {
			b.bias = scale(b.biasSum, 1.0/calibSamples)
			b.biasSum = driver.Vector3{}
			b.yaw = 0
			b.log.Debug("imu calibrated", slog.Int("port", int(b.index)),
				slog.Float64("bias_z", b.bias.Z))
		}
		b.last = now
		return
	}

	b.gyro = add(gyro, scale(b.bias, -1))
	if !b.last.IsZero() {
		b.yaw += b.gyro.Z * now.Sub(b.last).Seconds()
	}
	b.last = now
}

// Loop samples the sensor at the configured data rate until ctx ends.
func (b *Backend) Loop(ctx context.Context) error {
	for {
		b.mu.Lock()
		period := b.period
		b.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(period):
		}
		if err := b.Sample(); err != nil {
			b.log.Warn("imu sample failed", slog.Int("port", int(b.index)), slog.Any("err", err))
		}
	}
}

func add(a, v driver.Vector3) driver.Vector3 {
	return driver.Vector3{X: a.X + v.X, Y: a.Y + v.Y, Z: a.Z + v.Z}
}

func scale(v driver.Vector3, k float64) driver.Vector3 {
	return driver.Vector3{X: v.X * k, Y: v.Y * k, Z: v.Z * k}
}

// raw returns the untared angles. Callers hold b.mu.
func (b *Backend) raw() driver.Euler {
	a := b.accel
	const deg = 180 / math.Pi
	return driver.Euler{
		Pitch: math.Atan2(-a.X, math.Hypot(a.Y, a.Z)) * deg,
		Roll:  math.Atan2(a.Y, a.Z) * deg,
		Yaw:   b.yaw,
	}
}

func (b *Backend) with(c *port.Claim, fn func()) error {
	if c.Index() != b.index || c.Device() != port.DeviceImu {
		return port.ErrWrongDeviceType
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	fn()
	return nil
}

// Reset restarts gyro bias calibration and clears every tare.
func (b *Backend) Reset(_ context.Context, c *port.Claim) error {
	return b.with(c, func() {
		b.calibrating = calibSamples
		b.biasSum = driver.Vector3{}
		b.orientation.Reset()
	})
}

// SetDataRate sets the sampling period used by Loop, rounded down to a
// multiple of 5 ms.
func (b *Backend) SetDataRate(_ context.Context, c *port.Claim, ms uint32) error {
	return b.with(c, func() {
		ms = max(minDataRateMs, ms/minDataRateMs*minDataRateMs)
		b.period = time.Duration(ms) * time.Millisecond
	})
}

func (b *Backend) Status(_ context.Context, c *port.Claim) (s driver.ImuStatus, err error) {
	err = b.with(c, func() {
		switch {
		case b.failed:
			s = driver.ImuStatusError
		case b.calibrating > 0:
			s = driver.ImuStatusCalibrating
		}
	})
	return s, err
}

func (b *Backend) Rotation(_ context.Context, c *port.Claim) (v float64, err error) {
	err = b.with(c, func() { v = b.orientation.Rotation(b.yaw) })
	return v, err
}

func (b *Backend) Heading(_ context.Context, c *port.Claim) (v float64, err error) {
	err = b.with(c, func() { v = b.orientation.Heading(b.yaw) })
	return v, err
}

func (b *Backend) Quaternion(_ context.Context, c *port.Claim) (q driver.Quaternion, err error) {
	err = b.with(c, func() { q = driver.QuaternionFromEuler(b.raw()) })
	return q, err
}

func (b *Backend) Euler(_ context.Context, c *port.Claim) (e driver.Euler, err error) {
	err = b.with(c, func() { e = b.orientation.Euler(b.raw()) })
	return e, err
}

func (b *Backend) GyroRate(_ context.Context, c *port.Claim) (v driver.Vector3, err error) {
	err = b.with(c, func() { v = b.gyro })
	return v, err
}

func (b *Backend) Accel(_ context.Context, c *port.Claim) (v driver.Vector3, err error) {
	err = b.with(c, func() { v = b.accel })
	return v, err
}

func (b *Backend) SetRotation(_ context.Context, c *port.Claim, target float64) error {
	return b.with(c, func() { b.orientation.SetRotation(b.yaw, target) })
}

func (b *Backend) SetHeading(_ context.Context, c *port.Claim, target float64) error {
	return b.with(c, func() { b.orientation.SetHeading(b.yaw, target) })
}

func (b *Backend) SetEuler(_ context.Context, c *port.Claim, target driver.Euler) error {
	return b.with(c, func() { b.orientation.SetEuler(b.raw(), target) })
}
