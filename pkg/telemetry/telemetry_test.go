package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gwillem/smartport/pkg/port"
	"github.com/gwillem/smartport/pkg/robot"
	"github.com/gwillem/smartport/pkg/sim"
)

func newRobot(t *testing.T) *robot.Robot {
	t.Helper()
	r, err := robot.Build(context.Background(), robot.Config{
		Simulate: true,
		Devices: []robot.DeviceConfig{
			{Name: "left", Kind: "motor", Port: 1},
			{Name: "lift", Kind: "rotation", Port: 5},
			{Name: "gyro", Kind: "imu", Port: 8},
			{Name: "front", Kind: "distance", Port: 9},
		},
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r
}

type memRecorder struct {
	samples []Sample
	err     error
}

func (m *memRecorder) Record(s Sample) error {
	m.samples = append(m.samples, s)
	return m.err
}

func TestSampler_Step(t *testing.T) {
	ctx := context.Background()
	r := newRobot(t)
	r.Sim.UpdateDistance(9, func(d *sim.DistanceState) { d.Millimeters = 321 })
	require.NoError(t, r.Motors["left"].MoveAbsolute(ctx, 45, 100))

	rec := &memRecorder{}
	s := NewSampler(r, Config{Recorder: rec})
	_, err := uuid.Parse(s.Session())
	require.NoError(t, err)
	assert.Equal(t, 20, s.Hz())

	got := s.Step(ctx)
	assert.Equal(t, uint64(1), got.Seq)
	assert.Equal(t, s.Session(), got.Session)
	assert.Empty(t, got.Errors)
	assert.InDelta(t, 45, got.Motors["left"].Position, 1e-9)
	assert.Equal(t, 25.0, got.Motors["left"].Temperature)
	assert.Contains(t, got.Angles, "lift")
	assert.Contains(t, got.Imus, "gyro")
	assert.Equal(t, int32(321), got.Distances["front"].Millimeters)

	require.Len(t, rec.samples, 1)
	assert.Equal(t, got, <-s.States())

	s.Step(ctx)
	s.Step(ctx)
	latest := <-s.States()
	assert.Equal(t, uint64(3), latest.Seq, "only the newest state is kept")
}

func TestSampler_ErrorsAreCollected(t *testing.T) {
	ctx := context.Background()
	r := newRobot(t)
	r.Sim.Unplug(9)

	rec := &memRecorder{err: errors.New("disk full")}
	s := NewSampler(r, Config{Recorder: rec})
	got := s.Step(ctx)

	require.Len(t, got.Errors, 1)
	assert.Contains(t, got.Errors[0], "front")
	assert.NotContains(t, got.Distances, "front")
	assert.Contains(t, <-s.Logs(), "disk full")
}

func TestSampler_FailedFieldIsNotASentinel(t *testing.T) {
	ctx := context.Background()
	r := newRobot(t)
	r.Sim.OnCall(func(c sim.Call) {
		if c.Op == "measure_actual_velocity" {
			r.Sim.Unplug(1)
		}
	})

	got := NewSampler(r, Config{}).Step(ctx)

	require.Contains(t, got.Motors, "left")
	assert.Equal(t, MotorReading{}, got.Motors["left"], "failed fields stay zero")
	require.NotEmpty(t, got.Errors)
	assert.Contains(t, got.Errors[0], "left velocity")
	for _, e := range got.Errors {
		assert.Contains(t, e, "left")
	}
}

func TestOptional(t *testing.T) {
	var failed []string
	fail := func(name string, err error) { failed = append(failed, name) }

	assert.Equal(t, 12.5, optional(12.5, nil, "a", fail))
	assert.Equal(t, int32(0), optional(int32(math.MaxInt32), fmt.Errorf("current: %w", port.ErrUnsupported), "b", fail))
	assert.Equal(t, 0.0, optional(math.Inf(1), port.ErrWrongDeviceType, "c", fail))
	assert.Equal(t, []string{"c"}, failed, "unsupported fields are not errors")
}

func TestSampler_Start(t *testing.T) {
	r := newRobot(t)
	s := NewSampler(r, Config{Hz: 200})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	select {
	case got := <-s.States():
		assert.NotZero(t, got.Seq)
	case <-time.After(time.Second):
		t.Fatal("no sample published")
	}
	assert.ErrorIs(t, <-done, context.DeadlineExceeded)
}

func TestRecording_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.cbor")
	rec, err := NewFileRecorder(path)
	require.NoError(t, err)

	base := time.Unix(1700000000, 0).UTC()
	for i := range 3 {
		require.NoError(t, rec.Record(Sample{
			Session:   "a",
			Seq:       uint64(i + 1),
			Timestamp: base.Add(time.Duration(i) * time.Second),
			Motors:    map[string]MotorReading{"left": {Position: float64(i)}},
		}))
	}
	require.NoError(t, rec.Record(Sample{Session: "b", Seq: 1, Timestamp: base}))
	require.NoError(t, rec.Close())
	require.NoError(t, rec.Close())
	require.NoError(t, rec.Record(Sample{Session: "c"}), "records after close are dropped")

	rd, err := NewReader(path)
	require.NoError(t, err)
	defer rd.Close()
	var all []Sample
	for {
		s, err := rd.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		all = append(all, s)
	}
	require.Len(t, all, 4)
	assert.True(t, all[2].Timestamp.Equal(base.Add(2*time.Second)))
	assert.Equal(t, 2.0, all[2].Motors["left"].Position)

	start := base.Add(time.Second)
	fr, err := NewFilteredReader(path, Filter{Session: "a", TimeStart: &start, Device: "left"})
	require.NoError(t, err)
	defer fr.Close()
	first, err := fr.Next()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), first.Seq)
	second, err := fr.Next()
	require.NoError(t, err)
	assert.Equal(t, uint64(3), second.Seq)
	_, err = fr.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestEncodeDecodeSample(t *testing.T) {
	want := Sample{
		Session:   "x",
		Seq:       7,
		Timestamp: time.Unix(1, 500).UTC(),
		Imus:      map[string]ImuReading{"gyro": {Heading: 90}},
		Errors:    []string{"m: boom"},
	}
	data, err := EncodeSample(want)
	require.NoError(t, err)
	got, err := DecodeSample(data)
	require.NoError(t, err)
	assert.True(t, want.Timestamp.Equal(got.Timestamp))
	got.Timestamp = want.Timestamp
	assert.Equal(t, want, got)
}
