// Package device provides the user-facing motor, sensor and IMU objects.
//
// Several objects may share one physical port. Motor, Rotation and Encoder
// each cache the configuration they want active and install it on the port
// for the duration of every hardware call, restoring the port's previous
// configuration afterwards. Imu and Distance forward directly.
//
// Methods that return a value also return an error. On failure the value
// is the family sentinel (ErrInt32, ErrUint32 or ErrFloat) and the error
// wraps one of the port package errors, which in turn wrap an errno.
package device

import (
	"context"
	"log/slog"
	"math"

	"github.com/gwillem/smartport/pkg/driver"
	"github.com/gwillem/smartport/pkg/port"
)

// Sentinel values returned alongside a non-nil error.
const (
	ErrInt32  int32  = math.MaxInt32
	ErrUint32 uint32 = math.MaxUint32
)

// ErrFloat is the sentinel for float results.
var ErrFloat = math.Inf(1)

// Brain owns the port registry of one controller and the backend that
// implements its devices.
type Brain struct {
	ports   *port.Registry
	backend driver.Backend
	log     *slog.Logger

	motors    driver.Motor
	rotations driver.Rotation
	encoders  driver.Encoder
	imus      driver.Imu
	distances driver.Distance
}

// Option configures a Brain.
type Option func(*Brain)

// WithLogger sets the logger used for transaction failures and
// deprecation warnings.
func WithLogger(l *slog.Logger) Option {
	return func(b *Brain) {
		b.log = l
	}
}

// NewBrain creates a Brain over backend. Device families the backend
// does not implement are reported as absent from every port.
func NewBrain(backend driver.Backend, opts ...Option) *Brain {
	b := &Brain{
		backend: backend,
		log:     slog.New(slog.DiscardHandler),
	}
	b.motors, _ = backend.(driver.Motor)
	b.rotations, _ = backend.(driver.Rotation)
	b.encoders, _ = backend.(driver.Encoder)
	b.imus, _ = backend.(driver.Imu)
	b.distances, _ = backend.(driver.Distance)
	for _, opt := range opts {
		opt(b)
	}
	b.ports = port.NewRegistry(b)
	return b
}

// DeviceAt reports the device family wired to port i, as far as this
// Brain's backend can drive it.
func (b *Brain) DeviceAt(i port.Index) port.DeviceType {
	d := b.backend.DeviceAt(i)
	if !b.supports(d) {
		return port.DeviceNone
	}
	return d
}

// Ports lists every valid port with the device wired to it.
func (b *Brain) Ports() map[port.Index]port.DeviceType {
	out := make(map[port.Index]port.DeviceType)
	for i := port.MinIndex; i <= port.MaxIndex; i++ {
		if d := b.DeviceAt(i); d != port.DeviceNone {
			out[i] = d
		}
	}
	return out
}

func (b *Brain) supports(d port.DeviceType) bool {
	switch d {
	case port.DeviceMotor:
		return b.motors != nil
	case port.DeviceRotation:
		return b.rotations != nil
	case port.DeviceEncoder:
		return b.encoders != nil
	case port.DeviceImu:
		return b.imus != nil
	case port.DeviceDistance:
		return b.distances != nil
	}
	return false
}

// call claims port i as kind, runs fn, and returns the port.
func call[T any](ctx context.Context, b *Brain, i port.Index, kind port.DeviceType, fn func(context.Context, *port.Claim) (T, error)) (T, error) {
	c, err := b.ports.Claim(ctx, i, kind)
	if err != nil {
		var zero T
		return zero, err
	}
	defer c.Return()
	return fn(ctx, c)
}

// do is call for operations without a result.
func do(ctx context.Context, b *Brain, i port.Index, kind port.DeviceType, fn func(context.Context, *port.Claim) error) error {
	_, err := call(ctx, b, i, kind, func(ctx context.Context, c *port.Claim) (struct{}, error) {
		return struct{}{}, fn(ctx, c)
	})
	return err
}
