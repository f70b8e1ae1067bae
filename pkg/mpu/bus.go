package mpu

import (
	"fmt"

	"periph.io/x/periph/conn/i2c"
	"periph.io/x/periph/conn/i2c/i2creg"
	"periph.io/x/periph/conn/physic"
	"periph.io/x/periph/conn/spi"
	"periph.io/x/periph/conn/spi/spireg"
	"periph.io/x/periph/host"
)

// DefaultAddr is the I2C address with AD0 low.
const DefaultAddr = 0x68

type regPort interface {
	// ReadReg reads len(buf) bytes starting at reg.
	ReadReg(reg byte, buf []byte) error
	WriteReg(reg byte, buf []byte) error
	Close() error
}

// openI2C opens the sensor on an I2C bus by periph registry name; ""
// picks the first bus.
func openI2C(bus string, addr uint16) (regPort, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("init host: %w", err)
	}
	b, err := i2creg.Open(bus)
	if err != nil {
		return nil, fmt.Errorf("open i2c %q: %w", bus, err)
	}
	if addr == 0 {
		addr = DefaultAddr
	}
	return &i2cAdapter{bus: b, dev: &i2c.Dev{Bus: b, Addr: addr}}, nil
}

type i2cAdapter struct {
	bus i2c.BusCloser
	dev *i2c.Dev
}

func (a *i2cAdapter) ReadReg(reg byte, buf []byte) error {
	return a.dev.Tx([]byte{reg}, buf)
}

func (a *i2cAdapter) WriteReg(reg byte, buf []byte) error {
	return a.dev.Tx(append([]byte{reg}, buf...), nil)
}

func (a *i2cAdapter) Close() error {
	return a.bus.Close()
}

// openSPI opens the sensor on an SPI port by periph registry name.
func openSPI(name string) (regPort, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("init host: %w", err)
	}
	p, err := spireg.Open(name)
	if err != nil {
		return nil, fmt.Errorf("open spi %q: %w", name, err)
	}
	c, err := p.Connect(physic.MegaHertz, spi.Mode3, 8)
	if err != nil {
		p.Close()
		return nil, fmt.Errorf("connect spi %q: %w", name, err)
	}
	return &spiAdapter{port: p, c: c}, nil
}

const (
	spiWrite = 0x00
	spiRead  = 0x80
)

type spiAdapter struct {
	port spi.PortCloser
	c    spi.Conn

	r, w []byte
}

func (s *spiAdapter) ReadReg(reg byte, buf []byte) error {
	n := 1 + len(buf)
	s.ensureBuf(n)
	s.w[0] = spiRead | reg
	if err := s.c.Tx(s.w[:n], s.r[:n]); err != nil {
		return err
	}
	// The first byte clocks in while the address goes out.
	copy(buf, s.r[1:n])
	return nil
}

func (s *spiAdapter) WriteReg(reg byte, buf []byte) error {
	n := 1 + len(buf)
	s.ensureBuf(n)
	s.w[0] = spiWrite | reg
	copy(s.w[1:], buf)
	return s.c.Tx(s.w[:n], s.r[:n])
}

func (s *spiAdapter) Close() error {
	return s.port.Close()
}

func (s *spiAdapter) ensureBuf(n int) {
	if len(s.r) < n {
		s.w = make([]byte, n)
		s.r = make([]byte, n)
		return
	}
	clear(s.w[:n])
	clear(s.r[:n])
}
