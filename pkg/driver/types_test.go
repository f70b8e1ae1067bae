package driver

import (
	"math"
	"testing"
)

func TestGearset(t *testing.T) {
	tests := []struct {
		in    string
		want  Gearset
		rpm   int32
		ticks float64
	}{
		{"36", Gearset36, 100, 1800},
		{"red", Gearset36, 100, 1800},
		{"18", Gearset18, 200, 900},
		{"green", Gearset18, 200, 900},
		{"06", Gearset6, 600, 300},
		{"Blue", Gearset6, 600, 300},
	}
	for _, tt := range tests {
		g, err := ParseGearset(tt.in)
		if err != nil {
			t.Fatalf("ParseGearset(%q): %v", tt.in, err)
		}
		if g != tt.want || g.MaxRPM() != tt.rpm || g.TicksPerRev() != tt.ticks {
			t.Errorf("ParseGearset(%q) = %v (%d rpm, %v ticks)", tt.in, g, g.MaxRPM(), g.TicksPerRev())
		}
	}
	if _, err := ParseGearset("12"); err == nil {
		t.Error("ParseGearset(12) succeeded")
	}
}

func TestEncoderUnits_Conversion(t *testing.T) {
	tests := []struct {
		units EncoderUnits
		gear  Gearset
		ticks float64
		want  float64
	}{
		{UnitsDegrees, Gearset36, 1800, 360},
		{UnitsDegrees, Gearset18, 450, 180},
		{UnitsRotations, Gearset6, 600, 2},
		{UnitsCounts, Gearset36, 123, 123},
	}
	for _, tt := range tests {
		got := tt.units.FromTicks(tt.ticks, tt.gear)
		if math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("%v.FromTicks(%v, %v) = %v, want %v", tt.units, tt.ticks, tt.gear, got, tt.want)
		}
		back := tt.units.ToTicks(got, tt.gear)
		if math.Abs(back-tt.ticks) > 1e-9 {
			t.Errorf("%v.ToTicks(%v, %v) = %v, want %v", tt.units, got, tt.gear, back, tt.ticks)
		}
	}
}

func TestParseEncoderUnits(t *testing.T) {
	for _, u := range []EncoderUnits{UnitsDegrees, UnitsRotations, UnitsCounts} {
		got, err := ParseEncoderUnits(u.String())
		if err != nil || got != u {
			t.Errorf("ParseEncoderUnits(%q) = %v, %v", u.String(), got, err)
		}
	}
	if _, err := ParseEncoderUnits("radians"); err == nil {
		t.Error("ParseEncoderUnits(radians) succeeded")
	}
}

func TestMotorMeasurement_String(t *testing.T) {
	if got := MotorActualVelocity.String(); got != "actual_velocity" {
		t.Errorf("String() = %q", got)
	}
	if got := MotorOverTemp.String(); got != "over_temp" {
		t.Errorf("String() = %q", got)
	}
}
