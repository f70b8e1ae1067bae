package driver

import (
	"math"
	"sync"
)

// Heading is reported in [0, HeadingMax).
const HeadingMax = 360.0

// EulerMax bounds each Euler angle to [-EulerMax, EulerMax].
const EulerMax = 180.0

// Orientation applies user tares to the raw angles an IMU backend
// produces. Backends embed one per IMU port.
type Orientation struct {
	mu       sync.Mutex
	rotation float64
	heading  float64
	euler    Euler
}

// Rotation returns the tared, unbounded rotation for raw.
func (o *Orientation) Rotation(raw float64) float64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return raw + o.rotation
}

// Heading returns the tared heading for raw, wrapped into [0, 360).
func (o *Orientation) Heading(raw float64) float64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return wrap(raw+o.heading, 0, HeadingMax)
}

// Euler returns the tared angles for raw, each wrapped into [-180, 180).
func (o *Orientation) Euler(raw Euler) Euler {
	o.mu.Lock()
	defer o.mu.Unlock()
	return Euler{
		Pitch: wrap(raw.Pitch+o.euler.Pitch, -EulerMax, EulerMax),
		Roll:  wrap(raw.Roll+o.euler.Roll, -EulerMax, EulerMax),
		Yaw:   wrap(raw.Yaw+o.euler.Yaw, -EulerMax, EulerMax),
	}
}

// SetRotation makes the current raw rotation read as target.
func (o *Orientation) SetRotation(raw, target float64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.rotation = target - raw
}

// SetHeading makes the current raw heading read as target, clamped to
// [0, 360].
func (o *Orientation) SetHeading(raw, target float64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.heading = clamp(target, 0, HeadingMax) - raw
}

// SetEuler makes the current raw angles read as target, each clamped to
// [-180, 180].
func (o *Orientation) SetEuler(raw, target Euler) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.euler = Euler{
		Pitch: clamp(target.Pitch, -EulerMax, EulerMax) - raw.Pitch,
		Roll:  clamp(target.Roll, -EulerMax, EulerMax) - raw.Roll,
		Yaw:   clamp(target.Yaw, -EulerMax, EulerMax) - raw.Yaw,
	}
}

// Reset clears every tare.
func (o *Orientation) Reset() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.rotation, o.heading, o.euler = 0, 0, Euler{}
}

// QuaternionFromEuler converts angles in degrees (ZYX order) to a unit
// quaternion.
func QuaternionFromEuler(e Euler) Quaternion {
	const rad = math.Pi / 180
	cy, sy := math.Cos(e.Yaw*rad/2), math.Sin(e.Yaw*rad/2)
	cp, sp := math.Cos(e.Pitch*rad/2), math.Sin(e.Pitch*rad/2)
	cr, sr := math.Cos(e.Roll*rad/2), math.Sin(e.Roll*rad/2)
	return Quaternion{
		W: cr*cp*cy + sr*sp*sy,
		X: sr*cp*cy - cr*sp*sy,
		Y: cr*sp*cy + sr*cp*sy,
		Z: cr*cp*sy - sr*sp*cy,
	}
}

func wrap(v, lo, hi float64) float64 {
	span := hi - lo
	v = math.Mod(v-lo, span)
	if v < 0 {
		v += span
	}
	return v + lo
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
