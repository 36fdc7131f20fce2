// Package rp2 provides the buses and pins of an RP2040 board to the click
// drivers. Controllers are wired to pins by a Plan and configured on first
// use.
package rp2

import (
	"fmt"
	"strconv"
	"strings"

	"clickboards/errcode"
)

type I2CPlan struct {
	ID  string // "i2c0" or "i2c1"
	SDA int    // GPIO number
	SCL int
	Hz  uint32
}

type SPIPlan struct {
	ID  string // "spi0" or "spi1"
	SCK int
	SDO int // MOSI
	SDI int // MISO
}

type UARTPlan struct {
	ID string // "uart0" or "uart1"
	TX int
	RX int
}

// Plan wires controllers to pins.
type Plan struct {
	I2C  []I2CPlan
	SPI  []SPIPlan
	UART []UARTPlan
	// Pins is the number of usable GPIOs; 0 means 30.
	Pins int
}

// PicoMikroBUS is the Pico click shield: two mikroBUS sockets sharing
// I2C1 and SPI0, one UART each.
var PicoMikroBUS = Plan{
	I2C: []I2CPlan{
		{ID: "i2c1", SDA: 6, SCL: 7, Hz: 400_000},
	},
	SPI: []SPIPlan{
		{ID: "spi0", SCK: 18, SDO: 19, SDI: 16},
	},
	UART: []UARTPlan{
		{ID: "uart0", TX: 0, RX: 1},
		{ID: "uart1", TX: 8, RX: 9},
	},
}

func (p Plan) pins() int {
	if p.Pins <= 0 {
		return 30
	}
	return p.Pins
}

func (p Plan) i2c(id string) (I2CPlan, bool) {
	for _, x := range p.I2C {
		if x.ID == id {
			return x, true
		}
	}
	return I2CPlan{}, false
}

func (p Plan) spi(id string) (SPIPlan, bool) {
	for _, x := range p.SPI {
		if x.ID == id {
			return x, true
		}
	}
	return SPIPlan{}, false
}

func (p Plan) uart(id string) (UARTPlan, bool) {
	for _, x := range p.UART {
		if x.ID == id {
			return x, true
		}
	}
	return UARTPlan{}, false
}

// ParsePin accepts "GP5", "GPIO5" or "5".
func ParsePin(name string, max int) (int, error) {
	s := strings.ToUpper(strings.TrimSpace(name))
	s = strings.TrimPrefix(s, "GPIO")
	s = strings.TrimPrefix(s, "GP")
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 || n >= max {
		return 0, &errcode.E{C: errcode.InvalidParams, Op: "rp2", Msg: fmt.Sprintf("pin %q", name)}
	}
	return n, nil
}
