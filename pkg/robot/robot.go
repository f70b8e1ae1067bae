package robot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/gwillem/smartport/pkg/device"
	"github.com/gwillem/smartport/pkg/driver"
	"github.com/gwillem/smartport/pkg/mpu"
	"github.com/gwillem/smartport/pkg/port"
	"github.com/gwillem/smartport/pkg/sim"
	"github.com/gwillem/smartport/pkg/sts"
)

// simStep is the integration period of the simulated backend.
const simStep = 10 * time.Millisecond

// Robot is a Brain plus a named handle for every configured device.
type Robot struct {
	Brain *device.Brain
	Sim   *sim.Backend

	Motors    map[string]*device.Motor
	Rotations map[string]*device.Rotation
	Encoders  map[string]*device.Encoder
	Imus      map[string]*device.Imu
	Distances map[string]*device.Distance

	cfg     Config
	log     *slog.Logger
	closers []io.Closer
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Build opens the configured backends and creates every device handle.
// Background loops run until Close.
func Build(ctx context.Context, cfg Config, log *slog.Logger) (*Robot, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	r := &Robot{
		cfg:       cfg,
		log:       log,
		cancel:    cancel,
		Motors:    make(map[string]*device.Motor),
		Rotations: make(map[string]*device.Rotation),
		Encoders:  make(map[string]*device.Encoder),
		Imus:      make(map[string]*device.Imu),
		Distances: make(map[string]*device.Distance),
	}

	backends, err := r.open(ctx, loopCtx)
	if err != nil {
		r.Close()
		return nil, err
	}
	r.Brain = device.NewBrain(driver.NewMux(backends...), device.WithLogger(log))

	if err := r.attach(ctx); err != nil {
		r.Close()
		return nil, err
	}
	return r, nil
}

func (r *Robot) open(ctx, loopCtx context.Context) ([]driver.Backend, error) {
	var backends []driver.Backend
	if r.cfg.Servo != nil && !r.cfg.Simulate {
		b, err := sts.Open(ctx, sts.Config{
			Port:         r.cfg.Servo.Port,
			BaudRate:     r.cfg.Servo.BaudRate,
			Calibrations: r.cfg.Servo.Calibration,
			Logger:       r.log,
		})
		if err != nil {
			return nil, err
		}
		r.closers = append(r.closers, b)
		backends = append(backends, b)
	}
	if r.cfg.Imu != nil && !r.cfg.Simulate {
		b, err := mpu.Open(mpu.Config{
			Bus:    r.cfg.Imu.Bus,
			Name:   r.cfg.Imu.Name,
			Addr:   r.cfg.Imu.Addr,
			Port:   r.cfg.Imu.Port,
			Logger: r.log,
		})
		if err != nil {
			return nil, err
		}
		r.closers = append(r.closers, b)
		backends = append(backends, b)
		r.run(func() error { return b.Loop(loopCtx) })
	}
	if r.cfg.Simulate {
		r.Sim = sim.New()
		for _, d := range r.cfg.Devices {
			kind, _ := port.ParseDeviceType(d.Kind)
			r.Sim.Plug(d.Port, kind)
		}
		backends = append(backends, r.Sim)
		r.run(func() error { return r.Sim.Run(loopCtx, simStep) })
	}
	return backends, nil
}

func (r *Robot) run(loop func() error) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := loop(); err != nil && !errors.Is(err, context.Canceled) {
			r.log.Error("background loop stopped", slog.Any("err", err))
		}
	}()
}

func (r *Robot) attach(ctx context.Context) error {
	for _, d := range r.cfg.Devices {
		kind, _ := port.ParseDeviceType(d.Kind)
		var err error
		switch kind {
		case port.DeviceMotor:
			var m *device.Motor
			if m, err = device.NewMotor(ctx, r.Brain, d.Port, motorOptions(d)...); err == nil {
				r.Motors[d.Name] = m
			}
		case port.DeviceRotation:
			var s *device.Rotation
			if s, err = device.NewRotation(ctx, r.Brain, d.Port, d.Reversed); err == nil {
				r.Rotations[d.Name] = s
			}
		case port.DeviceEncoder:
			var e *device.Encoder
			if e, err = device.NewEncoder(ctx, r.Brain, d.Port, d.Reversed); err == nil {
				r.Encoders[d.Name] = e
			}
		case port.DeviceImu:
			r.Imus[d.Name] = device.NewImu(r.Brain, d.Port)
		case port.DeviceDistance:
			r.Distances[d.Name] = device.NewDistance(r.Brain, d.Port)
		}
		if err != nil {
			return fmt.Errorf("device %q: %w", d.Name, err)
		}
		r.log.Debug("device attached", slog.String("name", d.Name),
			slog.String("kind", kind.String()), slog.Int("port", int(d.Port)))
	}
	return nil
}

func motorOptions(d DeviceConfig) []device.MotorOption {
	// Validate has already accepted both.
	g, _ := driver.ParseGearset(d.Gearset)
	u, _ := driver.ParseEncoderUnits(d.Units)
	return []device.MotorOption{
		device.WithGearset(g),
		device.WithReversed(d.Reversed),
		device.WithUnits(u),
	}
}

// Close stops background loops and releases every backend.
func (r *Robot) Close() error {
	r.cancel()
	r.wg.Wait()
	var errs []error
	for _, c := range r.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// Positions reads the position of every motor in its own units.
// Motors that fail to read are left out and their errors joined.
func (r *Robot) Positions(ctx context.Context) (map[string]float64, error) {
	positions := make(map[string]float64, len(r.Motors))
	var errs []error
	for name, m := range r.Motors {
		p, err := m.Position(ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		positions[name] = p
	}
	return positions, errors.Join(errs...)
}

// MoveAll sends each named motor to an absolute position.
func (r *Robot) MoveAll(ctx context.Context, targets map[string]float64, rpm int32) error {
	var errs []error
	for name, pos := range targets {
		m, ok := r.Motors[name]
		if !ok {
			errs = append(errs, fmt.Errorf("unknown motor %q", name))
			continue
		}
		if err := m.MoveAbsolute(ctx, pos, rpm); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}
