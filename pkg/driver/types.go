package driver

import (
	"fmt"
	"strings"
)

// Gearset is a motor's internal gear cartridge.
type Gearset uint8

const (
	Gearset36 Gearset = iota // 36:1, 100 RPM
	Gearset18                // 18:1, 200 RPM
	Gearset6                 // 6:1, 600 RPM
)

// MaxRPM returns the output shaft speed limit for the cartridge.
func (g Gearset) MaxRPM() int32 {
	switch g {
	case Gearset18:
		return 200
	case Gearset6:
		return 600
	default:
		return 100
	}
}

// TicksPerRev returns the encoder ticks per output shaft revolution.
func (g Gearset) TicksPerRev() float64 {
	switch g {
	case Gearset18:
		return 900
	case Gearset6:
		return 300
	default:
		return 1800
	}
}

func (g Gearset) String() string {
	switch g {
	case Gearset36:
		return "36"
	case Gearset18:
		return "18"
	case Gearset6:
		return "6"
	}
	return fmt.Sprintf("gearset(%d)", uint8(g))
}

// ParseGearset accepts "36", "18", "6" or "06", and the cartridge colors.
func ParseGearset(s string) (Gearset, error) {
	switch strings.ToLower(s) {
	case "36", "red", "":
		return Gearset36, nil
	case "18", "green":
		return Gearset18, nil
	case "6", "06", "blue":
		return Gearset6, nil
	}
	return 0, fmt.Errorf("unknown gearset %q", s)
}

// EncoderUnits selects the unit system for motor positions.
type EncoderUnits uint8

const (
	UnitsDegrees EncoderUnits = iota
	UnitsRotations
	UnitsCounts
)

// FromTicks converts raw encoder ticks into u for cartridge g.
func (u EncoderUnits) FromTicks(ticks float64, g Gearset) float64 {
	switch u {
	case UnitsRotations:
		return ticks / g.TicksPerRev()
	case UnitsCounts:
		return ticks
	default:
		return ticks / g.TicksPerRev() * 360
	}
}

// ToTicks converts a position in u into raw encoder ticks for cartridge g.
func (u EncoderUnits) ToTicks(v float64, g Gearset) float64 {
	switch u {
	case UnitsRotations:
		return v * g.TicksPerRev()
	case UnitsCounts:
		return v
	default:
		return v / 360 * g.TicksPerRev()
	}
}

func (u EncoderUnits) String() string {
	switch u {
	case UnitsDegrees:
		return "degrees"
	case UnitsRotations:
		return "rotations"
	case UnitsCounts:
		return "counts"
	}
	return fmt.Sprintf("units(%d)", uint8(u))
}

// ParseEncoderUnits accepts "degrees", "rotations" or "counts".
func ParseEncoderUnits(s string) (EncoderUnits, error) {
	switch strings.ToLower(s) {
	case "degrees", "deg", "":
		return UnitsDegrees, nil
	case "rotations", "rot":
		return UnitsRotations, nil
	case "counts", "ticks":
		return UnitsCounts, nil
	}
	return 0, fmt.Errorf("unknown encoder units %q", s)
}

// BrakeMode is the behavior of a motor when commanded to stop.
type BrakeMode uint8

const (
	BrakeCoast BrakeMode = iota
	BrakeBrake
	BrakeHold

	BrakeInvalid BrakeMode = 0xFF
)

func (b BrakeMode) String() string {
	switch b {
	case BrakeCoast:
		return "coast"
	case BrakeBrake:
		return "brake"
	case BrakeHold:
		return "hold"
	}
	return fmt.Sprintf("brake(%d)", uint8(b))
}

// Fault bits reported by a motor.
const (
	FaultOverTemp       uint32 = 0x01
	FaultDriverFault    uint32 = 0x02
	FaultOverCurrent    uint32 = 0x04
	FaultDriverOverCurr uint32 = 0x08
)

// Flag bits reported by a motor.
const (
	FlagBusy         uint32 = 0x01
	FlagZeroVelocity uint32 = 0x02
	FlagZeroPosition uint32 = 0x04
)

// PID holds the fixed-point gains of a motor control loop.
type PID struct {
	KF, KP, KI, KD uint8
}

// PIDFull holds every tunable of a motor control loop.
type PIDFull struct {
	KF, KP, KI, KD uint8
	Filter         uint8
	Limit          uint16
	Threshold      uint8
	LoopSpeed      uint8
}

// Vector3 is a reading along three axes.
type Vector3 struct {
	X, Y, Z float64
}

// Quaternion is an orientation as a unit quaternion.
type Quaternion struct {
	X, Y, Z, W float64
}

// Euler is an orientation in degrees.
type Euler struct {
	Pitch, Roll, Yaw float64
}

// ImuStatus is the IMU status bitmask.
type ImuStatus uint32

const (
	ImuStatusCalibrating ImuStatus = 0x01
	ImuStatusError       ImuStatus = 0xFF
)
