// Package port provides the registry of numbered smart ports and the
// claim/return discipline that guards access to each port's registers.
package port

import "fmt"

// Index identifies a numbered physical port on the controller.
type Index uint8

// Valid port range.
const (
	MinIndex Index = 1
	MaxIndex Index = 21
)

// Valid reports whether i lies within the controller's port range.
func (i Index) Valid() bool {
	return i >= MinIndex && i <= MaxIndex
}

func (i Index) String() string {
	return fmt.Sprintf("port %d", uint8(i))
}

// DeviceType is the family of device wired to a port.
type DeviceType uint8

const (
	DeviceNone DeviceType = iota
	DeviceMotor
	DeviceRotation
	DeviceEncoder
	DeviceImu
	DeviceDistance
)

var deviceNames = map[DeviceType]string{
	DeviceNone:     "none",
	DeviceMotor:    "motor",
	DeviceRotation: "rotation",
	DeviceEncoder:  "encoder",
	DeviceImu:      "imu",
	DeviceDistance: "distance",
}

func (d DeviceType) String() string {
	if name, ok := deviceNames[d]; ok {
		return name
	}
	return fmt.Sprintf("device(%d)", uint8(d))
}

// ParseDeviceType returns the device type with the given name.
func ParseDeviceType(name string) (DeviceType, error) {
	for d, n := range deviceNames {
		if n == name {
			return d, nil
		}
	}
	return DeviceNone, fmt.Errorf("unknown device type %q", name)
}
