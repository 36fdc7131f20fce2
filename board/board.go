// Package board turns config.Click entries into live click drivers on
// whatever buses the platform provides, and gives tooling one uniform way to
// probe them and read them out.
package board

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"tinygo.org/x/drivers"

	"clickboards/clicks/hal"
	"clickboards/config"
	"clickboards/errcode"
)

// Buses is what a platform offers. hostbus.Host and rp2.Platform both
// satisfy it. Bus and pin names are platform specific.
type Buses interface {
	OpenI2C(name string) (drivers.I2C, error)
	OpenSPI(name string, hz int64, mode int) (drivers.SPI, error)
	OpenSerial(name string, baud int) (hal.Port, error)
	PinOut(name string) (hal.PinOut, error)
	PinIn(name string) (hal.PinIn, error)
}

// Emit receives one named reading. Values are integers in the unit named
// by the key suffix, strings, or booleans.
type Emit func(key string, value any)

// Device is one configured click.
type Device interface {
	ID() string
	Type() string
	// Probe checks the part and writes its default configuration. Every
	// step is attempted and the errors are returned together.
	Probe(ctx context.Context) error
	// Read takes one set of readings.
	Read(ctx context.Context, emit Emit) error
}

// Commander is implemented by clicks that accept raw command lines.
type Commander interface {
	Command(ctx context.Context, line string) ([]string, error)
}

// BuilderInput is what a builder gets to work with.
type BuilderInput struct {
	Click *config.Click
	Buses Buses
}

type Builder interface {
	Build(in BuilderInput) (Device, error)
}

// BuilderFunc adapts a function to Builder.
type BuilderFunc func(in BuilderInput) (Device, error)

func (f BuilderFunc) Build(in BuilderInput) (Device, error) { return f(in) }

var (
	regMu    sync.RWMutex
	builders = map[string]Builder{}
)

// RegisterBuilder installs the builder for a click type. Registering a type
// twice panics.
func RegisterBuilder(typ string, b Builder) {
	regMu.Lock()
	defer regMu.Unlock()
	if _, exists := builders[typ]; exists {
		panic(fmt.Sprintf("duplicate click builder: %s", typ))
	}
	builders[typ] = b
}

func lookupBuilder(typ string) (Builder, bool) {
	regMu.RLock()
	defer regMu.RUnlock()
	b, ok := builders[typ]
	return b, ok
}

// Types lists the registered click types.
func Types() []string {
	regMu.RLock()
	defer regMu.RUnlock()
	out := make([]string, 0, len(builders))
	for t := range builders {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Open builds the driver for c. No bus traffic happens beyond what opening
// the bus and pins requires.
func Open(buses Buses, c *config.Click) (Device, error) {
	b, ok := lookupBuilder(c.Type)
	if !ok {
		return nil, &errcode.E{C: errcode.Unsupported, Op: "board", Msg: fmt.Sprintf("click %q: no builder for type %q", c.ID, c.Type)}
	}
	d, err := b.Build(BuilderInput{Click: c, Buses: buses})
	if err != nil {
		return nil, fmt.Errorf("click %q: %w", c.ID, err)
	}
	return d, nil
}

// OpenAll opens every click on b. Clicks that fail are skipped and their
// errors returned together.
func OpenAll(buses Buses, b *config.Board) ([]Device, error) {
	var (
		out []Device
		err error
	)
	for i := range b.Clicks {
		d, e := Open(buses, &b.Clicks[i])
		if e != nil {
			err = errcode.Append(err, e)
			continue
		}
		out = append(out, d)
	}
	return out, err
}

// base carries the identity every device shares.
type base struct {
	id, typ string
}

func (b base) ID() string   { return b.id }
func (b base) Type() string { return b.typ }

func newBase(c *config.Click) base { return base{id: c.ID, typ: c.Type} }

// pinOut opens the named pin if the click wires it. An unwired pin yields
// nil, which drivers treat as absent.
func pinOut(in BuilderInput, name string) (hal.PinOut, error) {
	n, ok := in.Click.Pin(name)
	if !ok {
		return nil, nil
	}
	p, err := in.Buses.PinOut(n)
	if err != nil {
		return nil, fmt.Errorf("pin %s: %w", name, err)
	}
	return p, nil
}

func pinIn(in BuilderInput, name string) (hal.PinIn, error) {
	n, ok := in.Click.Pin(name)
	if !ok {
		return nil, nil
	}
	p, err := in.Buses.PinIn(n)
	if err != nil {
		return nil, fmt.Errorf("pin %s: %w", name, err)
	}
	return p, nil
}

func openI2C(in BuilderInput) (drivers.I2C, uint16, error) {
	bus, err := in.Buses.OpenI2C(in.Click.BusRef.ID)
	if err != nil {
		return nil, 0, err
	}
	return bus, uint16(in.Click.Int("address", 0)), nil
}

// openSPI opens the SPI bus with the click's hz and mode params, falling
// back to the part's own defaults, and its optional "cs" pin.
func openSPI(in BuilderInput, hz int64, mode int) (drivers.SPI, hal.PinOut, error) {
	hz = int64(in.Click.Int("hz", int(hz)))
	mode = in.Click.Int("mode", mode)
	bus, err := in.Buses.OpenSPI(in.Click.BusRef.ID, hz, mode)
	if err != nil {
		return nil, nil, err
	}
	cs, err := pinOut(in, "cs")
	if err != nil {
		return nil, nil, err
	}
	return bus, cs, nil
}

func openSerial(in BuilderInput, baud int) (hal.Port, error) {
	return in.Buses.OpenSerial(in.Click.BusRef.ID, in.Click.Int("baud", baud))
}
