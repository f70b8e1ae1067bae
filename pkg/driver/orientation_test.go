package driver

import (
	"math"
	"testing"
)

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestOrientation_Heading(t *testing.T) {
	tests := []struct {
		name   string
		raw    float64
		target float64
		now    float64
		want   float64
	}{
		{"tare", 45, 0, 45, 0},
		{"wraps up", 45, 0, 30, 345},
		{"wraps down", 10, 350, 30, 10},
		{"clamps high", 0, 400, 0, 0},
		{"clamps low", 0, -20, 5, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var o Orientation
			o.SetHeading(tt.raw, tt.target)
			if got := o.Heading(tt.now); !near(got, tt.want) {
				t.Errorf("Heading(%v) = %v, want %v", tt.now, got, tt.want)
			}
		})
	}
}

func TestOrientation_RotationIsUnbounded(t *testing.T) {
	var o Orientation
	o.SetRotation(100, 0)
	if got := o.Rotation(820); !near(got, 720) {
		t.Errorf("Rotation = %v, want 720", got)
	}
}

func TestOrientation_Euler(t *testing.T) {
	var o Orientation
	raw := Euler{Pitch: 10, Roll: -20, Yaw: 170}
	o.SetEuler(raw, Euler{Pitch: 0, Roll: 0, Yaw: 0})

	got := o.Euler(Euler{Pitch: 10, Roll: -20, Yaw: -170})
	want := Euler{Pitch: 0, Roll: 0, Yaw: 20}
	if !near(got.Pitch, want.Pitch) || !near(got.Roll, want.Roll) || !near(got.Yaw, want.Yaw) {
		t.Errorf("Euler = %+v, want %+v", got, want)
	}

	o.SetEuler(raw, Euler{Yaw: 500})
	if got := o.Euler(raw); !near(got.Yaw, -180) {
		t.Errorf("clamped yaw = %v, want -180", got.Yaw)
	}

	o.Reset()
	if got := o.Euler(raw); got != raw {
		t.Errorf("after reset = %+v, want %+v", got, raw)
	}
}

func TestQuaternionFromEuler(t *testing.T) {
	q := QuaternionFromEuler(Euler{Yaw: 90})
	if !near(q.W, math.Sqrt2/2) || !near(q.Z, math.Sqrt2/2) || !near(q.X, 0) || !near(q.Y, 0) {
		t.Errorf("yaw 90 = %+v", q)
	}
	n := q.W*q.W + q.X*q.X + q.Y*q.Y + q.Z*q.Z
	if !near(n, 1) {
		t.Errorf("norm = %v", n)
	}
}
