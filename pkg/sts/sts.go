// Package sts drives Feetech STS serial bus servos as smart motors. Servo
// ID n is served on port n.
package sts

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/hipsterbrown/feetech-servo/feetech"
	"go.bug.st/serial"

	"github.com/gwillem/smartport/pkg/driver"
	"github.com/gwillem/smartport/pkg/port"
)

// DefaultBaudRate is the factory baud rate of STS servos.
const DefaultBaudRate = 1_000_000

// Config selects the serial bus and the servos' travel limits.
type Config struct {
	Port         string
	BaudRate     int
	Timeout      time.Duration
	Calibrations Calibrations
	Logger       *slog.Logger
}

// servo is the subset of the feetech servo API the backend drives.
type servo interface {
	Position(ctx context.Context) (int, error)
	SetPosition(ctx context.Context, position int) error
	Enable(ctx context.Context) error
	Disable(ctx context.Context) error
}

// Backend serves the servos found on one bus.
type Backend struct {
	mu     sync.Mutex
	bus    *feetech.Bus
	motors [port.MaxIndex + 1]*motor
	log    *slog.Logger
	start  time.Time
	now    func() time.Time
}

var (
	_ driver.Backend = (*Backend)(nil)
	_ driver.Motor   = (*Backend)(nil)
)

// Open opens the bus and scans it for servos on every valid port ID.
func Open(ctx context.Context, cfg Config) (*Backend, error) {
	if cfg.BaudRate == 0 {
		cfg.BaudRate = DefaultBaudRate
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 100 * time.Millisecond
	}
	bus, err := feetech.NewBus(feetech.BusConfig{
		Port:     cfg.Port,
		BaudRate: cfg.BaudRate,
		Protocol: feetech.ProtocolSTS,
		Timeout:  cfg.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("open bus %s: %w", cfg.Port, err)
	}

	found, err := bus.Scan(ctx, int(port.MinIndex), int(port.MaxIndex))
	if err != nil {
		bus.Close()
		return nil, fmt.Errorf("scan %s: %w", cfg.Port, err)
	}

	servos := make(map[port.Index]servo, len(found))
	for _, s := range found {
		servos[port.Index(s.ID)] = feetech.NewServo(bus, s.ID, s.Model)
	}
	b := newBackend(servos, cfg.Calibrations, cfg.Logger)
	b.bus = bus
	b.log.Info("servo bus opened", slog.String("port", cfg.Port), slog.Int("servos", len(found)))
	return b, nil
}

func newBackend(servos map[port.Index]servo, cals Calibrations, log *slog.Logger) *Backend {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	b := &Backend{log: log, now: time.Now}
	b.start = b.now()
	for i, s := range servos {
		if !i.Valid() {
			continue
		}
		cal, _ := cals.ByID(int(i))
		b.motors[i] = newMotor(s, cal)
	}
	return b
}

// Close releases the bus.
func (b *Backend) Close() error {
	if b.bus == nil {
		return nil
	}
	return b.bus.Close()
}

// DeviceAt implements port.Detector.
func (b *Backend) DeviceAt(i port.Index) port.DeviceType {
	if !i.Valid() {
		return port.DeviceNone
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.motors[i] == nil {
		return port.DeviceNone
	}
	return port.DeviceMotor
}

func (b *Backend) motor(c *port.Claim) (*motor, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	m := b.motors[c.Index()]
	if m == nil || c.Device() != port.DeviceMotor {
		return nil, port.ErrWrongDeviceType
	}
	return m, nil
}

// SerialPorts lists serial devices that may carry a servo bus.
func SerialPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("list serial ports: %w", err)
	}
	out := ports[:0]
	for _, p := range ports {
		// Skip Bluetooth ports on macOS
		if strings.Contains(p, "Bluetooth") {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

// Probe opens each serial port briefly and returns those with at least
// one servo in the valid port range.
func Probe(ctx context.Context, ports []string) map[string][]feetech.FoundServo {
	found := make(map[string][]feetech.FoundServo)
	for _, p := range ports {
		bus, err := feetech.NewBus(feetech.BusConfig{
			Port:     p,
			BaudRate: DefaultBaudRate,
			Protocol: feetech.ProtocolSTS,
			Timeout:  100 * time.Millisecond,
		})
		if err != nil {
			continue
		}
		scanCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		servos, err := bus.Scan(scanCtx, int(port.MinIndex), int(port.MaxIndex))
		cancel()
		bus.Close()
		if err == nil && len(servos) > 0 {
			found[p] = servos
		}
	}
	return found
}
