package config

import "sort"

// Built-in board descriptions, selectable by name when no file is given.

const boardPiMikroBUS = `{
  "clicks": [
    {"id": "imu",     "type": "imu6",        "bus_ref": {"type": "i2c",  "id": "/dev/i2c-1"}, "params": {"address": "0x6B"}},
    {"id": "charger", "type": "charger",     "bus_ref": {"type": "i2c",  "id": "/dev/i2c-1"}},
    {"id": "tof",     "type": "lightranger", "bus_ref": {"type": "i2c",  "id": "/dev/i2c-1"}, "pins": {"enable": "GPIO5"}},
    {"id": "lte",     "type": "ltecat16",    "bus_ref": {"type": "uart", "id": "/dev/ttyS0"},
     "params": {"baud": 115200, "command_timeout": "5s"},
     "pins": {"pwrkey": "GPIO6", "rst": "GPIO13", "status": "GPIO26"}}
  ]
}`

const boardPiSensors = `{
  "clicks": [
    {"id": "hr",    "type": "heartrate",  "bus_ref": {"type": "i2c", "id": "/dev/i2c-1"}},
    {"id": "steps", "type": "pedometer3", "bus_ref": {"type": "spi", "id": "/dev/spidev0.0"}, "params": {"hz": 1000000}},
    {"id": "phone", "type": "dtmf",       "bus_ref": {"type": "spi", "id": "/dev/spidev0.1"},
     "pins": {"hook": "GPIO22", "ring": "GPIO27"}},
    {"id": "radio", "type": "enocean5",   "bus_ref": {"type": "uart", "id": "/dev/ttyUSB0"},
     "params": {"baud": 57600}, "pins": {"rst": "GPIO23"}},
    {"id": "motor", "type": "stepper5",   "bus_ref": {"type": "uart", "id": "/dev/ttyUSB1"},
     "params": {"baud": 115200, "echo": true},
     "pins": {"en": "GPIO16", "dir": "GPIO20", "step": "GPIO21"}}
  ]
}`

// Bus and pin names follow platform/rp2: controllers by id, pins as GPn.
const boardPicoMikroBUS = `{
  "clicks": [
    {"id": "imu",   "type": "imu6",        "bus_ref": {"type": "i2c",  "id": "i2c1"}, "params": {"address": "0x6B"}},
    {"id": "hr",    "type": "heartrate",   "bus_ref": {"type": "i2c",  "id": "i2c1"}},
    {"id": "tof",   "type": "lightranger", "bus_ref": {"type": "i2c",  "id": "i2c1"}, "pins": {"enable": "GP20"}},
    {"id": "steps", "type": "pedometer3",  "bus_ref": {"type": "spi",  "id": "spi0"}, "params": {"hz": 1000000}, "pins": {"cs": "GP17"}},
    {"id": "lte",   "type": "ltecat16",    "bus_ref": {"type": "uart", "id": "uart0"},
     "pins": {"pwrkey": "GP14", "rst": "GP15", "status": "GP21"}},
    {"id": "motor", "type": "stepper5",    "bus_ref": {"type": "uart", "id": "uart1"},
     "params": {"echo": true}, "pins": {"en": "GP10", "dir": "GP11", "step": "GP12"}}
  ]
}`

var embeddedBoards = map[string]string{
	"pi-mikrobus":   boardPiMikroBUS,
	"pi-sensors":    boardPiSensors,
	"pico-mikrobus": boardPicoMikroBUS,
}

// EmbeddedLookup resolves a built-in board by name. It may be replaced to
// serve boards from elsewhere.
var EmbeddedLookup = func(name string) ([]byte, bool) {
	s, ok := embeddedBoards[name]
	return []byte(s), ok
}

// Embedded parses a built-in board.
func Embedded(name string) (*Board, error) {
	b, ok := EmbeddedLookup(name)
	if !ok {
		return nil, invalid(nil, "no built-in board %q", name)
	}
	return Parse(b)
}

// EmbeddedNames lists the built-in boards.
func EmbeddedNames() []string {
	out := make([]string, 0, len(embeddedBoards))
	for n := range embeddedBoards {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
