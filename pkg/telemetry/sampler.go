package telemetry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gwillem/smartport/pkg/port"
	"github.com/gwillem/smartport/pkg/robot"
)

// Recorder receives every sample a Sampler takes.
type Recorder interface {
	Record(Sample) error
}

// Sampler polls a robot's devices.
type Sampler struct {
	robot    *robot.Robot
	hz       int
	session  string
	recorder Recorder

	mu      sync.RWMutex
	running bool
	seq     uint64
	stateCh chan Sample
	logCh   chan string
	now     func() time.Time
}

// Config holds configuration for the sampler.
type Config struct {
	Hz       int
	Recorder Recorder
}

// NewSampler creates a sampler over r. Each sampler is its own session.
func NewSampler(r *robot.Robot, cfg Config) *Sampler {
	if cfg.Hz <= 0 {
		cfg.Hz = 20
	}
	return &Sampler{
		robot:    r,
		hz:       cfg.Hz,
		session:  uuid.NewString(),
		recorder: cfg.Recorder,
		stateCh:  make(chan Sample, 1),
		logCh:    make(chan string, 10),
		now:      time.Now,
	}
}

// Session returns the session ID stamped on every sample.
func (s *Sampler) Session() string {
	return s.session
}

// States returns a channel that receives the latest sample.
func (s *Sampler) States() <-chan Sample {
	return s.stateCh
}

// Logs returns a channel that receives log messages.
func (s *Sampler) Logs() <-chan string {
	return s.logCh
}

// Hz returns the sampling frequency.
func (s *Sampler) Hz() int {
	return s.hz
}

func (s *Sampler) log(format string, args ...any) {
	msg := fmt.Sprintf("[%s] %s", s.now().Format("15:04:05"), fmt.Sprintf(format, args...))
	select {
	case s.logCh <- msg:
	default:
		// Drop if channel full
	}
}

// Start runs the sampling loop until ctx ends.
func (s *Sampler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("already running")
	}
	s.running = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	s.log("Sampling %d devices at %d Hz, session %s", len(s.robot.Devices()), s.hz, s.session)

	ticker := time.NewTicker(time.Second / time.Duration(s.hz))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log("Sampling stopped")
			return ctx.Err()
		case <-ticker.C:
			s.Step(ctx)
		}
	}
}

// Step takes and publishes one sample.
func (s *Sampler) Step(ctx context.Context) Sample {
	sample := s.take(ctx)
	if s.recorder != nil {
		if err := s.recorder.Record(sample); err != nil {
			s.log("Record error: %v", err)
		}
	}
	s.sendState(sample)
	return sample
}

func (s *Sampler) take(ctx context.Context) Sample {
	s.mu.Lock()
	s.seq++
	seq := s.seq
	s.mu.Unlock()

	sample := Sample{Session: s.session, Seq: seq, Timestamp: s.now()}
	fail := func(name string, err error) {
		sample.Errors = append(sample.Errors, fmt.Sprintf("%s: %v", name, err))
	}

	r := s.robot
	for _, d := range r.Devices() {
		switch d.Kind {
		case port.DeviceMotor:
			m := r.Motors[d.Name]
			var reading MotorReading
			var err error
			if reading.Position, err = m.Position(ctx); err != nil {
				fail(d.Name, err)
				continue
			}
			vel, err := m.ActualVelocity(ctx)
			reading.Velocity = optional(vel, err, d.Name+" velocity", fail)
			cur, err := m.CurrentDraw(ctx)
			reading.Current = optional(cur, err, d.Name+" current", fail)
			volt, err := m.Voltage(ctx)
			reading.Voltage = optional(volt, err, d.Name+" voltage", fail)
			temp, err := m.Temperature(ctx)
			reading.Temperature = optional(temp, err, d.Name+" temperature", fail)
			if sample.Motors == nil {
				sample.Motors = make(map[string]MotorReading)
			}
			sample.Motors[d.Name] = reading
		case port.DeviceRotation, port.DeviceEncoder:
			reading, err := readAngle(ctx, r, d)
			if err != nil {
				fail(d.Name, err)
				continue
			}
			if sample.Angles == nil {
				sample.Angles = make(map[string]AngleReading)
			}
			sample.Angles[d.Name] = reading
		case port.DeviceImu:
			imu := r.Imus[d.Name]
			h, err := imu.Heading(ctx)
			if err != nil {
				fail(d.Name, err)
				continue
			}
			e, err := imu.Euler(ctx)
			if err != nil {
				fail(d.Name, err)
				continue
			}
			if sample.Imus == nil {
				sample.Imus = make(map[string]ImuReading)
			}
			sample.Imus[d.Name] = ImuReading{Heading: h, Pitch: e.Pitch, Roll: e.Roll, Yaw: e.Yaw}
		case port.DeviceDistance:
			dist := r.Distances[d.Name]
			mm, err := dist.Get(ctx)
			if err != nil {
				fail(d.Name, err)
				continue
			}
			conf, err := dist.Confidence(ctx)
			confidence := optional(conf, err, d.Name+" confidence", fail)
			if sample.Distances == nil {
				sample.Distances = make(map[string]DistanceReading)
			}
			sample.Distances[d.Name] = DistanceReading{Millimeters: mm, Confidence: confidence}
		}
	}
	return sample
}

// optional returns v, or zero when its read failed so the error sentinel
// never reaches a sample. Unsupported fields are skipped quietly, any other
// failure is reported through fail.
func optional[T any](v T, err error, name string, fail func(string, error)) T {
	var zero T
	switch {
	case err == nil:
		return v
	case errors.Is(err, port.ErrUnsupported):
		return zero
	default:
		fail(name, err)
		return zero
	}
}

type angleSensor interface {
	Position(ctx context.Context) (int32, error)
	Velocity(ctx context.Context) (int32, error)
}

func readAngle(ctx context.Context, r *robot.Robot, d robot.DeviceInfo) (AngleReading, error) {
	var sensor angleSensor
	if d.Kind == port.DeviceRotation {
		sensor = r.Rotations[d.Name]
	} else {
		sensor = r.Encoders[d.Name]
	}
	pos, err := sensor.Position(ctx)
	if err != nil {
		return AngleReading{}, err
	}
	vel, err := sensor.Velocity(ctx)
	if err != nil {
		return AngleReading{}, err
	}
	return AngleReading{Position: pos, Velocity: vel}, nil
}

func (s *Sampler) sendState(sample Sample) {
	select {
	case s.stateCh <- sample:
	default:
		// Drop old state if channel full, replace with new
		select {
		case <-s.stateCh:
		default:
		}
		s.stateCh <- sample
	}
}
