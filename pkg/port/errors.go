package port

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// Errors reported by port claims and device operations. Each wraps the
// errno value a caller would branch on, so both errors.Is(err, ErrInvalidPort)
// and errors.Is(err, unix.ENXIO) hold.
var (
	// ErrInvalidPort means the port index is outside MinIndex..MaxIndex.
	ErrInvalidPort = fmt.Errorf("port out of range: %w", unix.ENXIO)

	// ErrWrongDeviceType means the port is valid but the device wired to it
	// is not of the requested family.
	ErrWrongDeviceType = fmt.Errorf("port cannot be configured as this device: %w", unix.ENODEV)

	// ErrPortUnavailable means the port could not be claimed.
	ErrPortUnavailable = fmt.Errorf("port unavailable: %w", unix.EACCES)

	// ErrUnsupported means the operation is not implemented for the device.
	ErrUnsupported = fmt.Errorf("operation not supported: %w", unix.ENOSYS)
)

// Errno extracts the errno code carried by err, or 0 if there is none.
func Errno(err error) unix.Errno {
	var errno unix.Errno
	if errors.As(err, &errno) {
		return errno
	}
	return 0
}
