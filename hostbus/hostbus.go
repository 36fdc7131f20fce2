//go:build !rp2040 && !rp2350

// Package hostbus opens the buses and pins of a Linux host (Raspberry Pi,
// BeagleBone, USB bridges) and adapts them to the contracts the click
// drivers consume: drivers.I2C, drivers.SPI, hal.PinOut/PinIn and hal.Port.
package hostbus

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"go.bug.st/serial"
	"go.uber.org/zap"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
	"tinygo.org/x/drivers"

	"clickboards/clicks/hal"
	"clickboards/errcode"
)

// ReadSlice bounds each blocking serial read so RecvSomeContext can notice
// a cancelled context.
const ReadSlice = 20 * time.Millisecond

// Host owns everything opened through it.
type Host struct {
	log *zap.SugaredLogger

	once    sync.Once
	initErr error

	mu      sync.Mutex
	i2c     map[string]i2c.BusCloser
	closers []io.Closer
}

// New returns a Host logging to l; nil discards logs.
func New(l *zap.Logger) *Host {
	if l == nil {
		l = zap.NewNop()
	}
	return &Host{log: l.Sugar().Named("hostbus"), i2c: map[string]i2c.BusCloser{}}
}

// Init loads the periph host drivers. It runs once; later calls return the
// first result.
func (h *Host) Init() error {
	h.once.Do(func() {
		state, err := host.Init()
		if err != nil {
			h.initErr = errcode.Wrap(errcode.NotReady, "hostbus", err)
			return
		}
		for _, d := range state.Loaded {
			h.log.Debugw("driver loaded", "driver", d.String())
		}
		for _, f := range state.Failed {
			h.log.Debugw("driver failed", "driver", f.D.String(), "err", f.Err)
		}
	})
	return h.initErr
}

func (h *Host) track(c io.Closer) {
	h.mu.Lock()
	h.closers = append(h.closers, c)
	h.mu.Unlock()
}

// OpenI2C opens an I2C bus by periph name ("1", "/dev/i2c-1", "I2C1").
// Several clicks on one bus share the same handle.
func (h *Host) OpenI2C(name string) (drivers.I2C, error) {
	if err := h.Init(); err != nil {
		return nil, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if b, ok := h.i2c[name]; ok {
		return b, nil
	}
	b, err := i2creg.Open(name)
	if err != nil {
		return nil, fmt.Errorf("hostbus: open i2c %q: %w", name, err)
	}
	h.i2c[name] = b
	h.closers = append(h.closers, b)
	h.log.Infow("opened", "bus", "i2c", "id", name)
	return b, nil
}

// OpenSPI opens an SPI port ("/dev/spidev0.0", "SPI0.0") at hz in the given
// mode (0..3) with 8-bit words.
func (h *Host) OpenSPI(name string, hz int64, mode int) (drivers.SPI, error) {
	if err := h.Init(); err != nil {
		return nil, err
	}
	if mode < 0 || mode > 3 {
		return nil, &errcode.E{C: errcode.InvalidParams, Op: "hostbus", Msg: fmt.Sprintf("spi mode %d", mode)}
	}
	p, err := spireg.Open(name)
	if err != nil {
		return nil, fmt.Errorf("hostbus: open spi %q: %w", name, err)
	}
	c, err := p.Connect(physic.Frequency(hz)*physic.Hertz, spi.Mode(mode), 8)
	if err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("hostbus: connect spi %q: %w", name, err)
	}
	h.track(p)
	h.log.Infow("opened", "bus", "spi", "id", name, "hz", hz, "mode", mode)
	return SPIConn{c}, nil
}

// SPIConn adapts a periph spi.Conn to drivers.SPI.
type SPIConn struct{ spi.Conn }

func (s SPIConn) Tx(w, r []byte) error { return s.Conn.Tx(w, r) }

func (s SPIConn) Transfer(b byte) (byte, error) {
	var w, r [1]byte
	w[0] = b
	err := s.Conn.Tx(w[:], r[:])
	return r[0], err
}

func (h *Host) pin(name string) (gpio.PinIO, error) {
	if err := h.Init(); err != nil {
		return nil, err
	}
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("hostbus: pin %q: %w", name, hal.ErrNoPin)
	}
	return p, nil
}

// PinOut returns an output driven low initially.
func (h *Host) PinOut(name string) (hal.PinOut, error) {
	p, err := h.pin(name)
	if err != nil {
		return nil, err
	}
	if err := p.Out(gpio.Low); err != nil {
		return nil, err
	}
	h.log.Debugw("pin", "name", name, "dir", "out")
	return PinOut(p), nil
}

// PinIn returns an input with the pull left as configured.
func (h *Host) PinIn(name string) (hal.PinIn, error) {
	p, err := h.pin(name)
	if err != nil {
		return nil, err
	}
	if err := p.In(gpio.PullNoChange, gpio.NoEdge); err != nil {
		return nil, err
	}
	h.log.Debugw("pin", "name", name, "dir", "in")
	return PinIn(p), nil
}

// PinOut adapts a periph output. Errors from Out are dropped; the hal pin
// contract has no error path.
func PinOut(p gpio.PinOut) hal.PinOut {
	return func(level bool) { _ = p.Out(gpio.Level(level)) }
}

// PinIn adapts a periph input.
func PinIn(p gpio.PinIn) hal.PinIn {
	return func() bool { return bool(p.Read()) }
}

// OpenSerial opens a serial device at baud, 8N1.
func (h *Host) OpenSerial(name string, baud int) (hal.Port, error) {
	p, err := serial.Open(name, &serial.Mode{BaudRate: baud, DataBits: 8, Parity: serial.NoParity, StopBits: serial.OneStopBit})
	if err != nil {
		return nil, fmt.Errorf("hostbus: open serial %q: %w", name, err)
	}
	if err := p.SetReadTimeout(ReadSlice); err != nil {
		_ = p.Close()
		return nil, err
	}
	h.track(p)
	h.log.Infow("opened", "bus", "uart", "id", name, "baud", baud)
	return NewPort(p), nil
}

// Port adapts a byte stream whose reads return (0, nil) on a short timeout
// to hal.Port.
type Port struct {
	rw io.ReadWriter
}

func NewPort(rw io.ReadWriter) *Port { return &Port{rw: rw} }

func (p *Port) Write(b []byte) (int, error) { return p.rw.Write(b) }

func (p *Port) RecvSomeContext(ctx context.Context, buf []byte) (int, error) {
	for {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		n, err := p.rw.Read(buf)
		if n > 0 || err != nil {
			return n, err
		}
	}
}

// Close closes everything opened, newest first.
func (h *Host) Close() error {
	h.mu.Lock()
	cs := h.closers
	h.closers = nil
	h.i2c = map[string]i2c.BusCloser{}
	h.mu.Unlock()
	var err error
	for i := len(cs) - 1; i >= 0; i-- {
		err = errcode.Append(err, cs[i].Close())
	}
	return err
}
