package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gwillem/smartport/pkg/port"
	"github.com/gwillem/smartport/pkg/robot"
	"github.com/gwillem/smartport/pkg/telemetry"
)

func TestParseTargets(t *testing.T) {
	got, err := parseTargets([]string{"arm=90", "claw=-12.5"})
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"arm": 90, "claw": -12.5}, got)

	for _, bad := range []string{"arm", "=5", "arm=fast"} {
		_, err := parseTargets([]string{bad})
		assert.Error(t, err, bad)
	}
}

func TestParsePort(t *testing.T) {
	tests := []struct {
		in      string
		want    port.Index
		wantErr bool
	}{
		{"1", 1, false},
		{" 21 ", 21, false},
		{"0", 0, true},
		{"22", 0, true},
		{"a", 0, true},
	}
	for _, tt := range tests {
		got, err := parsePort(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parsePort(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("parsePort(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestValidators(t *testing.T) {
	taken := []robot.DeviceConfig{{Name: "arm", Port: 3}}

	assert.NoError(t, validateName(taken)("claw"))
	assert.Error(t, validateName(taken)(" arm "))
	assert.Error(t, validateName(taken)(""))

	assert.NoError(t, validatePort(taken)("4"))
	assert.Error(t, validatePort(taken)("3"))
}

func TestParseTime(t *testing.T) {
	got, err := parseTime("")
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = parseTime("2026-01-02T03:04:05Z")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), *got)

	_, err = parseTime("yesterday")
	assert.Error(t, err)
}

func TestChartValues(t *testing.T) {
	s := telemetry.Sample{
		Motors:    map[string]telemetry.MotorReading{"arm": {Position: 45}},
		Angles:    map[string]telemetry.AngleReading{"wheel": {Position: 9050}},
		Imus:      map[string]telemetry.ImuReading{"imu": {Heading: 270}},
		Distances: map[string]telemetry.DistanceReading{"front": {Millimeters: 120}},
	}
	assert.Equal(t, map[string]float64{"arm": 45, "wheel": 90.5, "imu": 270, "front": 12}, chartValues(s))
}

func TestReading(t *testing.T) {
	s := telemetry.Sample{
		Motors: map[string]telemetry.MotorReading{"arm": {Position: 45, Velocity: 10}},
	}
	assert.Equal(t, "45.0 (10 rpm)", reading(s, robot.DeviceInfo{Name: "arm"}))
	assert.Equal(t, "-", reading(s, robot.DeviceInfo{Name: "gone"}))
}
