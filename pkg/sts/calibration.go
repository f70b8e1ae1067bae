package sts

// TicksPerRev is the resolution of an STS servo's magnetic encoder.
const TicksPerRev = 4096

// Calibration holds the travel limits of a single servo.
type Calibration struct {
	ID           int `json:"id" yaml:"id"`
	DriveMode    int `json:"drive_mode" yaml:"drive_mode"`
	HomingOffset int `json:"homing_offset" yaml:"homing_offset"`
	RangeMin     int `json:"range_min" yaml:"range_min"`
	RangeMax     int `json:"range_max" yaml:"range_max"`
}

// Ranged reports whether travel limits are set.
func (c Calibration) Ranged() bool {
	return c.RangeMax > c.RangeMin
}

// Clamp limits a raw target to the calibrated range.
func (c Calibration) Clamp(raw int) int {
	if !c.Ranged() {
		return raw
	}
	return max(c.RangeMin, min(c.RangeMax, raw))
}

// Normalize converts a raw servo position to a value in [-100, 100].
func (c Calibration) Normalize(raw int) float64 {
	rangeSize := float64(c.RangeMax - c.RangeMin)
	if rangeSize == 0 {
		return 0
	}
	return (float64(raw-c.RangeMin)/rangeSize)*200 - 100
}

// Denormalize converts a value in [-100, 100] to a raw servo position.
func (c Calibration) Denormalize(norm float64) int {
	rangeSize := float64(c.RangeMax - c.RangeMin)
	return int((norm+100)/200*rangeSize) + c.RangeMin
}

// Calibrations is a set of calibrations keyed by servo ID.
type Calibrations []Calibration

// ByID returns the calibration for servo id.
func (cs Calibrations) ByID(id int) (Calibration, bool) {
	for _, c := range cs {
		if c.ID == id {
			return c, true
		}
	}
	return Calibration{}, false
}
