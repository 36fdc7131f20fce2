// Package haltest provides in-memory stand-ins for the buses in package hal:
// register-file devices behind fake I2C and SPI buses, a scripted serial
// port and recording pins. Driver tests script chip behaviour through hooks.
package haltest

import (
	"errors"
	"sync"

	"tinygo.org/x/drivers"
)

// Compile-time checks.
var (
	_ drivers.I2C = (*I2C)(nil)
	_ drivers.SPI = (*SPI)(nil)
)

// ErrNoDevice is returned for transactions to an address nobody answers.
var ErrNoDevice = errors.New("haltest: no device at address")

// Access records one register byte access.
type Access struct {
	Write bool
	Reg   uint16
	Val   byte
}

// Mem is the raw register storage handed to hooks.
type Mem map[uint16]byte

// Regs models a device register file with auto-incrementing addresses.
type Regs struct {
	mu sync.Mutex

	Addr uint16
	// Wide selects 16-bit register addresses (I2C only).
	Wide bool
	// Fail, when set, is returned by every transaction.
	Fail error

	// ReadHook may supply the value for a register read. ok=false falls
	// back to the stored value. Hooks run under the device lock and must
	// use m rather than Set/Get.
	ReadHook func(m Mem, reg uint16) (v byte, ok bool)
	// WriteHook sees every written byte; returning false skips the store.
	WriteHook func(m Mem, reg uint16, v byte) bool

	mem   Mem
	fixed map[uint16]bool
	queue map[uint16][]byte
	log   []Access
}

// NewRegs returns an empty register file answering at addr.
func NewRegs(addr uint16) *Regs {
	return &Regs{
		Addr:  addr,
		mem:   Mem{},
		fixed: map[uint16]bool{},
		queue: map[uint16][]byte{},
	}
}

// Set stores consecutive values starting at reg.
func (r *Regs) Set(reg uint16, vals ...byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, v := range vals {
		r.mem[reg+uint16(i)] = v
	}
}

// Get returns the stored value of reg.
func (r *Regs) Get(reg uint16) byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mem[reg]
}

// Fixed marks reg as a FIFO port: multi-byte reads do not advance past it
// and values come from Queue before the stored value.
func (r *Regs) Fixed(reg uint16) {
	r.mu.Lock()
	r.fixed[reg] = true
	r.mu.Unlock()
}

// Queue appends bytes to be returned by successive reads of a Fixed reg.
func (r *Regs) Queue(reg uint16, vals ...byte) {
	r.mu.Lock()
	r.queue[reg] = append(r.queue[reg], vals...)
	r.mu.Unlock()
}

// Written returns every value written to reg, oldest first.
func (r *Regs) Written(reg uint16) []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []byte
	for _, a := range r.log {
		if a.Write && a.Reg == reg {
			out = append(out, a.Val)
		}
	}
	return out
}

// Log returns a copy of all accesses.
func (r *Regs) Log() []Access {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Access(nil), r.log...)
}

// ResetLog forgets recorded accesses.
func (r *Regs) ResetLog() {
	r.mu.Lock()
	r.log = r.log[:0]
	r.mu.Unlock()
}

func (r *Regs) read(reg uint16, buf []byte) {
	for i := range buf {
		v, ok := byte(0), false
		if q := r.queue[reg]; r.fixed[reg] && len(q) > 0 {
			v, ok = q[0], true
			r.queue[reg] = q[1:]
		}
		if !ok && r.ReadHook != nil {
			v, ok = r.ReadHook(r.mem, reg)
		}
		if !ok {
			v = r.mem[reg]
		}
		buf[i] = v
		r.log = append(r.log, Access{Reg: reg, Val: v})
		if !r.fixed[reg] {
			reg++
		}
	}
}

func (r *Regs) write(reg uint16, data []byte) {
	for _, v := range data {
		r.log = append(r.log, Access{Write: true, Reg: reg, Val: v})
		if r.WriteHook == nil || r.WriteHook(r.mem, reg, v) {
			r.mem[reg] = v
		}
		if !r.fixed[reg] {
			reg++
		}
	}
}

// I2C is a fake bus hosting any number of register-file devices.
type I2C struct {
	devs map[uint16]*Regs
	// Txs counts transactions.
	Txs int
}

// NewI2C returns a bus with the given devices attached.
func NewI2C(devs ...*Regs) *I2C {
	b := &I2C{devs: map[uint16]*Regs{}}
	for _, d := range devs {
		b.devs[d.Addr] = d
	}
	return b
}

// Attach adds or moves a device.
func (b *I2C) Attach(d *Regs) { b.devs[d.Addr] = d }

func (b *I2C) Tx(addr uint16, w, r []byte) error {
	b.Txs++
	d := b.devs[addr]
	if d == nil {
		return ErrNoDevice
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.Fail != nil {
		return d.Fail
	}
	hdr := 1
	if d.Wide {
		hdr = 2
	}
	if len(w) < hdr {
		// Bare read without a register pointer: read from 0.
		d.read(0, r)
		return nil
	}
	reg := uint16(w[0])
	if d.Wide {
		reg = reg<<8 | uint16(w[1])
	}
	if len(w) > hdr {
		d.write(reg, w[hdr:])
	}
	if len(r) > 0 {
		d.read(reg, r)
	}
	return nil
}

// SPI is a fake SPI bus with one register-file device behind it. The first
// byte of every transaction is the address byte.
type SPI struct {
	Dev *Regs
	// ReadFlag marks a read in the address byte; AddrMask selects the
	// register bits.
	ReadFlag byte
	AddrMask byte
}

// NewSPI returns a fake SPI device using bit 7 as the read flag.
func NewSPI(dev *Regs) *SPI {
	return &SPI{Dev: dev, ReadFlag: 0x80, AddrMask: 0x7F}
}

func (s *SPI) Tx(w, r []byte) error {
	d := s.Dev
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.Fail != nil {
		return d.Fail
	}
	if len(w) == 0 {
		return nil
	}
	reg := uint16(w[0] & s.AddrMask)
	if w[0]&s.ReadFlag != 0 {
		if len(r) > 1 {
			d.read(reg, r[1:])
		}
		return nil
	}
	d.write(reg, w[1:])
	return nil
}

func (s *SPI) Transfer(b byte) (byte, error) {
	var r [1]byte
	err := s.Tx([]byte{b}, r[:])
	return r[0], err
}
