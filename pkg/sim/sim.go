// Package sim is an in-memory controller backend. It keeps register state
// for every port, records each driver call, and can advance a simple
// kinematic model so telemetry moves.
package sim

import (
	"context"
	"sync"
	"time"

	"github.com/gwillem/smartport/pkg/driver"
	"github.com/gwillem/smartport/pkg/port"
)

// Call is one recorded driver call.
type Call struct {
	Port port.Index
	Op   string
}

// Backend simulates the devices wired to a controller.
type Backend struct {
	mu      sync.Mutex
	devices [port.MaxIndex + 1]*device
	calls   []Call
	hook    func(Call)
	start   time.Time
	now     func() time.Time

	calibration time.Duration
}

type device struct {
	kind     port.DeviceType
	motor    *MotorState
	angular  *AngularState
	imu      *ImuState
	distance *DistanceState
}

// Option configures a Backend.
type Option func(*Backend)

// WithCalibrationTime sets how long an IMU reports calibrating after a
// reset. The default is two seconds.
func WithCalibrationTime(d time.Duration) Option {
	return func(b *Backend) { b.calibration = d }
}

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(b *Backend) { b.now = now }
}

// New returns a backend with nothing plugged in.
func New(opts ...Option) *Backend {
	b := &Backend{
		now:         time.Now,
		calibration: 2 * time.Second,
	}
	for _, opt := range opts {
		opt(b)
	}
	b.start = b.now()
	return b
}

var (
	_ driver.Backend  = (*Backend)(nil)
	_ driver.Motor    = (*Backend)(nil)
	_ driver.Rotation = (*Backend)(nil)
	_ driver.Encoder  = (*Backend)(nil)
	_ driver.Imu      = (*Backend)(nil)
	_ driver.Distance = (*Backend)(nil)
)

// Plug wires a fresh device of type kind to port i, replacing whatever
// was there. Out of range ports are ignored.
func (b *Backend) Plug(i port.Index, kind port.DeviceType) {
	if !i.Valid() {
		return
	}
	d := &device{kind: kind}
	switch kind {
	case port.DeviceMotor:
		d.motor = newMotorState()
	case port.DeviceRotation, port.DeviceEncoder:
		d.angular = &AngularState{DataRate: 10}
	case port.DeviceImu:
		d.imu = &ImuState{DataRate: 10}
	case port.DeviceDistance:
		d.distance = &DistanceState{}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.devices[i] = d
}

// Unplug removes the device on port i.
func (b *Backend) Unplug(i port.Index) {
	if !i.Valid() {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.devices[i] = nil
}

// DeviceAt implements port.Detector.
func (b *Backend) DeviceAt(i port.Index) port.DeviceType {
	if !i.Valid() {
		return port.DeviceNone
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if d := b.devices[i]; d != nil {
		return d.kind
	}
	return port.DeviceNone
}

// OnCall registers fn to run after every driver call is recorded. It runs
// without the backend lock held, so it may plug or unplug devices.
func (b *Backend) OnCall(fn func(Call)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.hook = fn
}

// Calls returns the driver calls recorded so far.
func (b *Backend) Calls() []Call {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Call(nil), b.calls...)
}

// ResetCalls clears the call log.
func (b *Backend) ResetCalls() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = nil
}

// with records op against the claimed port and runs fn on its device
// under the backend lock. It fails if the port no longer holds a device of
// the claimed type.
func (b *Backend) with(c *port.Claim, op string, fn func(d *device) error) error {
	call := Call{Port: c.Index(), Op: op}
	b.mu.Lock()
	b.calls = append(b.calls, call)
	hook := b.hook
	d := b.devices[c.Index()]
	var err error
	if d == nil || d.kind != c.Device() {
		err = port.ErrWrongDeviceType
	} else {
		err = fn(d)
	}
	b.mu.Unlock()

	if hook != nil {
		hook(call)
	}
	return err
}

// Step advances every device by dt: motors and sensors integrate their
// velocities, IMUs integrate their gyro rate.
func (b *Backend) Step(dt time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, d := range b.devices {
		if d == nil {
			continue
		}
		switch {
		case d.motor != nil:
			d.motor.step(dt)
		case d.angular != nil:
			d.angular.step(dt)
		case d.imu != nil:
			d.imu.step(dt)
		}
	}
}

// Run calls Step every period until ctx ends.
func (b *Backend) Run(ctx context.Context, period time.Duration) error {
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			b.Step(period)
		}
	}
}

func (b *Backend) millis() uint32 {
	return uint32(b.now().Sub(b.start).Milliseconds())
}
