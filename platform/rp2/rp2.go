//go:build rp2040

package rp2

import (
	"context"
	"fmt"
	"machine"
	"sync"
	"time"

	uartx "github.com/jangala-dev/tinygo-uartx/uartx"
	"tinygo.org/x/drivers"

	"clickboards/clicks/hal"
	"clickboards/errcode"
	"clickboards/x/mathx"
)

// I2CTimeout bounds queueing and completion of each I2C transaction.
const I2CTimeout = 250 * time.Millisecond

// Platform hands out the controllers named in its Plan. Each controller and
// pin is configured once; SPI and UART settings are fixed by the first user.
type Platform struct {
	plan Plan

	mu   sync.Mutex
	i2c  map[string]*hal.SharedI2C
	spi  map[string]*machine.SPI
	uart map[string]*serialPort
	pins map[int]string // GPIO -> "out", "in" or a bus id
}

func New(plan Plan) *Platform {
	p := &Platform{
		plan: plan,
		i2c:  map[string]*hal.SharedI2C{},
		spi:  map[string]*machine.SPI{},
		uart: map[string]*serialPort{},
		pins: map[int]string{},
	}
	for _, b := range plan.I2C {
		p.claim(b.SDA, b.ID)
		p.claim(b.SCL, b.ID)
	}
	for _, b := range plan.SPI {
		p.claim(b.SCK, b.ID)
		p.claim(b.SDO, b.ID)
		p.claim(b.SDI, b.ID)
	}
	for _, b := range plan.UART {
		p.claim(b.TX, b.ID)
		p.claim(b.RX, b.ID)
	}
	return p
}

func (p *Platform) claim(n int, owner string) { p.pins[n] = owner }

func conflict(what string) error {
	return &errcode.E{C: errcode.Busy, Op: "rp2", Msg: what}
}

func (p *Platform) OpenI2C(name string) (drivers.I2C, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if s, ok := p.i2c[name]; ok {
		return s.Client(I2CTimeout), nil
	}
	pl, ok := p.plan.i2c(name)
	if !ok {
		return nil, &errcode.E{C: errcode.InvalidParams, Op: "rp2", Msg: fmt.Sprintf("no i2c %q", name)}
	}
	var hw *machine.I2C
	switch name {
	case "i2c0":
		hw = machine.I2C0
	case "i2c1":
		hw = machine.I2C1
	default:
		return nil, &errcode.E{C: errcode.InvalidParams, Op: "rp2", Msg: fmt.Sprintf("no i2c %q", name)}
	}
	sda, scl := machine.Pin(pl.SDA), machine.Pin(pl.SCL)
	sda.Configure(machine.PinConfig{Mode: machine.PinI2C})
	scl.Configure(machine.PinConfig{Mode: machine.PinI2C})
	if err := hw.Configure(machine.I2CConfig{SDA: sda, SCL: scl, Frequency: pl.Hz}); err != nil {
		return nil, err
	}
	s := hal.NewSharedI2C(hw, 16)
	p.i2c[name] = s
	println("[rp2] i2c", name, "sda", pl.SDA, "scl", pl.SCL)
	return s.Client(I2CTimeout), nil
}

func (p *Platform) OpenSPI(name string, hz int64, mode int) (drivers.SPI, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if s, ok := p.spi[name]; ok {
		return s, nil
	}
	pl, ok := p.plan.spi(name)
	if !ok || !mathx.Between(mode, 0, 3) {
		return nil, &errcode.E{C: errcode.InvalidParams, Op: "rp2", Msg: fmt.Sprintf("spi %q mode %d", name, mode)}
	}
	var hw *machine.SPI
	switch name {
	case "spi0":
		hw = machine.SPI0
	case "spi1":
		hw = machine.SPI1
	default:
		return nil, &errcode.E{C: errcode.InvalidParams, Op: "rp2", Msg: fmt.Sprintf("no spi %q", name)}
	}
	err := hw.Configure(machine.SPIConfig{
		Frequency: uint32(hz),
		SCK:       machine.Pin(pl.SCK),
		SDO:       machine.Pin(pl.SDO),
		SDI:       machine.Pin(pl.SDI),
		Mode:      uint8(mode),
	})
	if err != nil {
		return nil, err
	}
	p.spi[name] = hw
	println("[rp2] spi", name, "hz", int(hz), "mode", mode)
	return hw, nil
}

func (p *Platform) OpenSerial(name string, baud int) (hal.Port, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if s, ok := p.uart[name]; ok {
		if s.baud != baud {
			return nil, conflict(fmt.Sprintf("%s already at %d baud", name, s.baud))
		}
		return s, nil
	}
	pl, ok := p.plan.uart(name)
	if !ok {
		return nil, &errcode.E{C: errcode.InvalidParams, Op: "rp2", Msg: fmt.Sprintf("no uart %q", name)}
	}
	var hw *uartx.UART
	switch name {
	case "uart0":
		hw = uartx.UART0
	case "uart1":
		hw = uartx.UART1
	default:
		return nil, &errcode.E{C: errcode.InvalidParams, Op: "rp2", Msg: fmt.Sprintf("no uart %q", name)}
	}
	err := hw.Configure(uartx.UARTConfig{
		BaudRate: uint32(baud),
		TX:       machine.Pin(pl.TX),
		RX:       machine.Pin(pl.RX),
	})
	if err != nil {
		return nil, err
	}
	s := &serialPort{u: hw, baud: baud}
	p.uart[name] = s
	println("[rp2] uart", name, "baud", baud)
	return s, nil
}

func (p *Platform) gpio(name, use string) (machine.Pin, error) {
	n, err := ParsePin(name, p.plan.pins())
	if err != nil {
		return 0, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if owner, taken := p.pins[n]; taken {
		return 0, conflict(fmt.Sprintf("GP%d in use by %s", n, owner))
	}
	p.claim(n, use)
	return machine.Pin(n), nil
}

// PinOut configures an output driven low.
func (p *Platform) PinOut(name string) (hal.PinOut, error) {
	pin, err := p.gpio(name, "out")
	if err != nil {
		return nil, err
	}
	pin.Configure(machine.PinConfig{Mode: machine.PinOutput})
	pin.Low()
	return pin.Set, nil
}

// PinIn configures an input with the pull-up enabled; click status and
// interrupt lines are open drain.
func (p *Platform) PinIn(name string) (hal.PinIn, error) {
	pin, err := p.gpio(name, "in")
	if err != nil {
		return nil, err
	}
	pin.Configure(machine.PinConfig{Mode: machine.PinInputPullup})
	return pin.Get, nil
}

// Close stops the I2C workers.
func (p *Platform) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for id, s := range p.i2c {
		s.Stop()
		delete(p.i2c, id)
	}
	return nil
}

// serialPort adapts uartx to hal.Port.
type serialPort struct {
	u    *uartx.UART
	baud int
}

func (s *serialPort) Write(b []byte) (int, error) { return s.u.Write(b) }

func (s *serialPort) RecvSomeContext(ctx context.Context, buf []byte) (int, error) {
	return s.u.RecvSomeContext(ctx, buf)
}
