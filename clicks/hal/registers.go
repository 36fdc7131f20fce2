// Package hal holds the bus contracts every Click driver is written against.
//
// The board package supplies the buses (tinygo.org/x/drivers I2C and SPI,
// a serial port, GPIO functions); drivers only ever see the small interfaces
// defined here. Register access is a strategy: the same driver runs over I2C
// or SPI by being handed a different Registers implementation.
//
// NOTE: drivers.I2C.Tx MUST perform a write followed by a repeated-start read
// when both w and r are provided, without releasing the bus.
package hal

import (
	"errors"

	"tinygo.org/x/drivers"
)

// Registers reads and writes a device register file.
type Registers interface {
	ReadRegs(reg uint16, buf []byte) error
	WriteRegs(reg uint16, data []byte) error
}

// ErrTooLong is returned when a single write exceeds the strategy's buffer.
var ErrTooLong = errors.New("hal: transfer too long")

const maxWrite = 32

// I2C addresses registers with one or two address bytes on an I2C device.
type I2C struct {
	bus  drivers.I2C
	addr uint16
	wide bool

	w [2 + maxWrite]byte
}

// NewI2C returns a strategy for devices with 8-bit register addresses.
func NewI2C(bus drivers.I2C, addr uint16) *I2C {
	return &I2C{bus: bus, addr: addr}
}

// NewI2C16 returns a strategy for devices with 16-bit big-endian register
// addresses.
func NewI2C16(bus drivers.I2C, addr uint16) *I2C {
	return &I2C{bus: bus, addr: addr, wide: true}
}

// Address returns the 7-bit device address in use.
func (d *I2C) Address() uint16 { return d.addr }

// SetAddress retargets the strategy, e.g. after the device was re-addressed.
func (d *I2C) SetAddress(addr uint16) { d.addr = addr }

func (d *I2C) header(reg uint16) int {
	if d.wide {
		d.w[0] = byte(reg >> 8)
		d.w[1] = byte(reg)
		return 2
	}
	d.w[0] = byte(reg)
	return 1
}

func (d *I2C) ReadRegs(reg uint16, buf []byte) error {
	n := d.header(reg)
	return d.bus.Tx(d.addr, d.w[:n], buf)
}

func (d *I2C) WriteRegs(reg uint16, data []byte) error {
	if len(data) > maxWrite {
		return ErrTooLong
	}
	n := d.header(reg)
	n += copy(d.w[n:], data)
	return d.bus.Tx(d.addr, d.w[:n], nil)
}

// SPIConfig describes how a register address byte is formed on SPI.
type SPIConfig struct {
	// ReadFlag is OR-ed into the address byte for reads (commonly 0x80).
	ReadFlag byte
	// WriteFlag is OR-ed into the address byte for writes (commonly 0x00).
	WriteFlag byte
	// AutoIncrement is OR-ed in for multi-byte transfers on chips that need an
	// explicit increment bit (e.g. 0x40). Zero when the chip increments itself.
	AutoIncrement byte
}

// SPI addresses registers over a 4-wire SPI bus with an explicit chip select.
type SPI struct {
	bus drivers.SPI
	cs  PinOut
	cfg SPIConfig

	w [1 + maxWrite]byte
	r [1 + maxWrite]byte
}

// NewSPI returns an SPI register strategy. cs is driven low for the duration
// of each transaction; pass NoPinOut when the bus handles chip select.
func NewSPI(bus drivers.SPI, cs PinOut, cfg SPIConfig) *SPI {
	if cs == nil {
		cs = NoPinOut
	}
	cs(true)
	return &SPI{bus: bus, cs: cs, cfg: cfg}
}

func (d *SPI) addr(reg uint16, flag byte, n int) byte {
	a := byte(reg) | flag
	if n > 1 {
		a |= d.cfg.AutoIncrement
	}
	return a
}

func (d *SPI) ReadRegs(reg uint16, buf []byte) error {
	if len(buf) > maxWrite {
		return ErrTooLong
	}
	n := 1 + len(buf)
	d.w[0] = d.addr(reg, d.cfg.ReadFlag, len(buf))
	for i := 1; i < n; i++ {
		d.w[i] = 0
	}
	d.cs(false)
	err := d.bus.Tx(d.w[:n], d.r[:n])
	d.cs(true)
	if err != nil {
		return err
	}
	copy(buf, d.r[1:n])
	return nil
}

func (d *SPI) WriteRegs(reg uint16, data []byte) error {
	if len(data) > maxWrite {
		return ErrTooLong
	}
	d.w[0] = d.addr(reg, d.cfg.WriteFlag, len(data))
	n := 1 + copy(d.w[1:], data)
	d.cs(false)
	err := d.bus.Tx(d.w[:n], nil)
	d.cs(true)
	return err
}

// Register helpers shared by all drivers.

func ReadReg(r Registers, reg uint16) (byte, error) {
	var b [1]byte
	err := r.ReadRegs(reg, b[:])
	return b[0], err
}

func WriteReg(r Registers, reg uint16, v byte) error {
	return r.WriteRegs(reg, []byte{v})
}

// UpdateReg performs a read-modify-write of the bits selected by mask.
func UpdateReg(r Registers, reg uint16, mask, value byte) error {
	cur, err := ReadReg(r, reg)
	if err != nil {
		return err
	}
	next := (cur &^ mask) | (value & mask)
	if next == cur {
		return nil
	}
	return WriteReg(r, reg, next)
}

// ReadU16LE reads a little-endian word (LOW then HIGH).
func ReadU16LE(r Registers, reg uint16) (uint16, error) {
	var b [2]byte
	if err := r.ReadRegs(reg, b[:]); err != nil {
		return 0, err
	}
	return uint16(b[0]) | uint16(b[1])<<8, nil
}

func ReadS16LE(r Registers, reg uint16) (int16, error) {
	u, err := ReadU16LE(r, reg)
	return int16(u), err
}

// ReadU16BE reads a big-endian word (HIGH then LOW).
func ReadU16BE(r Registers, reg uint16) (uint16, error) {
	var b [2]byte
	if err := r.ReadRegs(reg, b[:]); err != nil {
		return 0, err
	}
	return uint16(b[0])<<8 | uint16(b[1]), nil
}

func WriteU16LE(r Registers, reg uint16, v uint16) error {
	return r.WriteRegs(reg, []byte{byte(v), byte(v >> 8)})
}

func WriteU16BE(r Registers, reg uint16, v uint16) error {
	return r.WriteRegs(reg, []byte{byte(v >> 8), byte(v)})
}

// Vector3 decodes three consecutive little-endian int16 samples (X, Y, Z).
func Vector3(b []byte) (x, y, z int16) {
	_ = b[5]
	x = int16(uint16(b[0]) | uint16(b[1])<<8)
	y = int16(uint16(b[2]) | uint16(b[3])<<8)
	z = int16(uint16(b[4]) | uint16(b[5])<<8)
	return
}
