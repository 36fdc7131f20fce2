// Package config describes which click boards sit on which buses.
//
// A board file is JSON:
//
//	{"clicks": [
//	  {"id": "imu", "type": "imu6", "bus_ref": {"type": "i2c", "id": "i2c1"},
//	   "params": {"address": 107}, "pins": {"int": "GPIO17"}}
//	]}
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"time"

	"clickboards/errcode"
)

const (
	BusI2C  = "i2c"
	BusSPI  = "spi"
	BusUART = "uart"
)

// Board is a complete board description.
type Board struct {
	Clicks []Click `json:"clicks"`
}

// Click describes one click board instance.
type Click struct {
	ID     string            `json:"id"`
	Type   string            `json:"type"`
	BusRef BusRef            `json:"bus_ref"`
	Params map[string]any    `json:"params,omitempty"`
	Pins   map[string]string `json:"pins,omitempty"`
}

// BusRef identifies a bus instance by class and host name (e.g. "i2c",
// "/dev/i2c-1" or "i2c0").
type BusRef struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// busClasses lists the bus classes each click type can be wired to.
var busClasses = map[string][]string{
	"imu6":        {BusI2C, BusSPI},
	"charger":     {BusI2C},
	"ltecat16":    {BusUART},
	"heartrate":   {BusI2C},
	"lightranger": {BusI2C},
	"stepper5":    {BusUART},
	"dtmf":        {BusSPI},
	"enocean5":    {BusUART},
	"pedometer3":  {BusI2C, BusSPI},
}

// Types returns the known click types, sorted.
func Types() []string {
	out := make([]string, 0, len(busClasses))
	for t := range busClasses {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// BusClasses returns the bus classes a click type supports.
func BusClasses(typ string) []string { return busClasses[typ] }

// Parse decodes and validates a board file. Unknown fields are rejected.
func Parse(b []byte) (*Board, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	dec.UseNumber()
	var board Board
	if err := dec.Decode(&board); err != nil {
		return nil, errcode.Wrap(errcode.InvalidParams, "config", err)
	}
	if err := board.Validate(); err != nil {
		return nil, err
	}
	return &board, nil
}

// Load reads and parses a board file.
func Load(path string) (*Board, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(b)
}

func invalid(c *Click, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	if c != nil {
		msg = fmt.Sprintf("click %q: %s", c.ID, msg)
	}
	return &errcode.E{C: errcode.InvalidParams, Op: "config", Msg: msg}
}

// Validate checks ids are present and unique, types are known and each bus
// class suits its click type. All problems are reported together.
func (b *Board) Validate() error {
	var err error
	seen := make(map[string]bool, len(b.Clicks))
	for i := range b.Clicks {
		c := &b.Clicks[i]
		if c.ID == "" {
			err = errcode.Append(err, invalid(nil, "click %d has no id", i))
			continue
		}
		if seen[c.ID] {
			err = errcode.Append(err, invalid(c, "duplicate id"))
		}
		seen[c.ID] = true
		classes, ok := busClasses[c.Type]
		if !ok {
			err = errcode.Append(err, invalid(c, "unknown type %q", c.Type))
			continue
		}
		if c.BusRef.ID == "" {
			err = errcode.Append(err, invalid(c, "bus_ref.id is empty"))
		}
		if !contains(classes, c.BusRef.Type) {
			err = errcode.Append(err, invalid(c, "%s cannot use bus type %q (want %v)", c.Type, c.BusRef.Type, classes))
		}
	}
	return err
}

func contains(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}

// Lookup returns the click with the given id.
func (b *Board) Lookup(id string) (*Click, bool) {
	for i := range b.Clicks {
		if b.Clicks[i].ID == id {
			return &b.Clicks[i], true
		}
	}
	return nil, false
}

// Int returns an integer parameter, or def when absent or not a whole
// number.
func (c *Click) Int(name string, def int) int {
	switch v := c.Params[name].(type) {
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return int(n)
		}
	case float64:
		if v == float64(int(v)) {
			return int(v)
		}
	case int:
		return v
	case string:
		// "0x6B" style addresses.
		if n, err := strconv.ParseInt(v, 0, 64); err == nil {
			return int(n)
		}
	}
	return def
}

// String returns a string parameter, or def.
func (c *Click) String(name, def string) string {
	if v, ok := c.Params[name].(string); ok {
		return v
	}
	return def
}

// Bool returns a boolean parameter, or def.
func (c *Click) Bool(name string, def bool) bool {
	if v, ok := c.Params[name].(bool); ok {
		return v
	}
	return def
}

// Duration accepts a Go duration string ("250ms") or a number of
// milliseconds.
func (c *Click) Duration(name string, def time.Duration) time.Duration {
	switch v := c.Params[name].(type) {
	case string:
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	case json.Number, float64, int:
		if ms := c.Int(name, -1); ms >= 0 {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return def
}

// Pin returns the host pin name wired to a click pin (e.g. "rst", "int").
func (c *Click) Pin(name string) (string, bool) {
	p, ok := c.Pins[name]
	return p, ok && p != ""
}
