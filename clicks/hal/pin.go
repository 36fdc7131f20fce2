package hal

import (
	"errors"
	"time"
)

// PinOut drives a digital output. true is electrically high.
type PinOut func(level bool)

// PinIn samples a digital input. true is electrically high.
type PinIn func() bool

// ErrNoPin is returned by operations that need a pin the board did not wire.
var ErrNoPin = errors.New("hal: pin not connected")

// NoPinOut and NoPinIn stand in for unconnected pins.
func NoPinOut(bool) {}
func NoPinIn() bool { return false }

// Pulse drives p to level for d, then back.
func Pulse(p PinOut, level bool, d time.Duration) {
	p(level)
	time.Sleep(d)
	p(!level)
}

// OrNoOut substitutes NoPinOut for a nil pin.
func OrNoOut(p PinOut) PinOut {
	if p == nil {
		return NoPinOut
	}
	return p
}

// OrNoIn substitutes NoPinIn for a nil pin.
func OrNoIn(p PinIn) PinIn {
	if p == nil {
		return NoPinIn
	}
	return p
}
