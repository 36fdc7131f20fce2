// Package pedometer3 drives the Kionix KX126 accelerometer with built-in
// pedometer on Pedometer 3 Click boards, over I2C or SPI.
//
// Acceleration is reported in µg; steps come from the on-chip counter.
package pedometer3

import (
	"errors"
	"time"

	"tinygo.org/x/drivers"

	"clickboards/clicks/hal"
	"clickboards/errcode"
)

var (
	ErrWrongDevice = &errcode.E{C: errcode.WrongDevice, Op: "pedometer3", Msg: "unexpected WHO_AM_I"}
	ErrSelfCheck   = &errcode.E{C: errcode.WrongDevice, Op: "pedometer3", Msg: "COTR self check failed"}
	ErrTimeout     = &errcode.E{C: errcode.Timeout, Op: "pedometer3", Msg: "software reset did not complete"}
	ErrBadSetting  = errors.New("pedometer3: unsupported range or rate")
)

// Range is the accelerometer full scale in g.
type Range uint8

const (
	Range2G Range = 2
	Range4G Range = 4
	Range8G Range = 8
)

// ODR is the OSA output data rate code.
type ODR uint8

const (
	ODR12Hz5 ODR = iota
	ODR25Hz
	ODR50Hz
	ODR100Hz
	ODR200Hz
	ODR400Hz
	ODR800Hz
	ODR1600Hz
	ODR0Hz781
	ODR1Hz563
	ODR3Hz125
	ODR6Hz25
	ODR3200Hz
	ODR6400Hz
	ODR12800Hz
	ODR25600Hz
)

type Config struct {
	ResetTimeout time.Duration // 50 ms
}

// Vector is a three-axis reading in µg.
type Vector struct{ X, Y, Z int32 }

// RawVector is a three-axis reading in LSB.
type RawVector struct{ X, Y, Z int16 }

// Interrupts are the latched interrupt sources.
type Interrupts struct {
	StepIncrement bool
	StepOverflow  bool
	StepWatermark bool
	Tap           bool
	DoubleTap     bool
}

// Device is a KX126.
type Device struct {
	regs    hal.Registers
	cfg     Config
	lsbPerG int32
	rng     Range
	buf     [6]byte
}

func New(regs hal.Registers, cfg Config) *Device {
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 50 * time.Millisecond
	}
	return &Device{regs: regs, cfg: cfg, lsbPerG: 16384, rng: Range2G}
}

// NewI2C is New over I2C at addr (AddressHigh when zero).
func NewI2C(bus drivers.I2C, addr uint16, cfg Config) *Device {
	if addr == 0 {
		addr = AddressHigh
	}
	return New(hal.NewI2C(bus, addr), cfg)
}

// NewSPI is New over 4-wire SPI with bit 7 as the read flag.
func NewSPI(bus drivers.SPI, cs hal.PinOut, cfg Config) *Device {
	return New(hal.NewSPI(bus, cs, hal.SPIConfig{ReadFlag: 0x80}), cfg)
}

// Configure probes the chip, checks COTR, soft-resets it and leaves it in
// standby.
func (d *Device) Configure() error {
	id, err := hal.ReadReg(d.regs, regWhoAmI)
	if err != nil {
		return err
	}
	if id != whoAmIValue {
		return ErrWrongDevice
	}
	cotr, err := hal.ReadReg(d.regs, regCOTR)
	if err != nil {
		return err
	}
	if cotr != cotrValue {
		return ErrSelfCheck
	}
	if err := hal.WriteReg(d.regs, regCntl2, cntl2SRST); err != nil {
		return err
	}
	// The part may not answer while it reboots.
	deadline := time.Now().Add(d.cfg.ResetTimeout)
	for {
		v, err := hal.ReadReg(d.regs, regCntl2)
		if err == nil && v&cntl2SRST == 0 {
			break
		}
		if time.Now().After(deadline) {
			if err != nil {
				return errcode.Combine(ErrTimeout, err)
			}
			return ErrTimeout
		}
		time.Sleep(time.Millisecond)
	}
	d.lsbPerG, d.rng = 16384, Range2G
	return hal.WriteReg(d.regs, regCntl1, 0)
}

// DefaultConfig sets up step counting: ±2 g high resolution at 100 Hz, the
// pedometer tuning table and step interrupts routed to INT1. Every write is
// attempted.
func (d *Device) DefaultConfig() error {
	var err error
	err = errcode.Append(err, hal.WriteReg(d.regs, regCntl1, 0))
	err = errcode.Append(err, hal.WriteReg(d.regs, regODCntl, byte(ODR100Hz)))
	err = errcode.Append(err, d.regs.WriteRegs(regPedCntl1, pedTable[:]))
	err = errcode.Append(err, hal.WriteReg(d.regs, regINC1, inc1IEN1|inc1IEA1))
	err = errcode.Append(err, hal.WriteReg(d.regs, regINC7, inc7StepInc|inc7StepOvf|inc7StepWM))
	err = errcode.Append(err, hal.WriteReg(d.regs, regCntl1, cntl1PC1|cntl1RES|cntl1PDE))
	if err == nil {
		d.lsbPerG, d.rng = 16384, Range2G
	}
	return err
}

// standby runs fn with PC1 cleared. fn may edit the CNTL1 value, which is
// written back with the original operating state.
func (d *Device) standby(fn func(cntl1 *byte) error) error {
	cur, err := hal.ReadReg(d.regs, regCntl1)
	if err != nil {
		return err
	}
	run := cur & cntl1PC1
	next := cur &^ cntl1PC1
	if run != 0 {
		if err := hal.WriteReg(d.regs, regCntl1, next); err != nil {
			return err
		}
	}
	err = fn(&next)
	if next|run != cur {
		err = errcode.Append(err, hal.WriteReg(d.regs, regCntl1, next|run))
	}
	return err
}

// SetRange selects the full scale.
func (d *Device) SetRange(r Range) error {
	var gsel byte
	var lsb int32
	switch r {
	case Range2G:
		gsel, lsb = 0, 16384
	case Range4G:
		gsel, lsb = 1, 8192
	case Range8G:
		gsel, lsb = 2, 4096
	default:
		return ErrBadSetting
	}
	err := d.standby(func(c *byte) error {
		*c = *c&^cntl1GSelMask | gsel<<cntl1GSelShift | cntl1RES
		return nil
	})
	if err != nil {
		return err
	}
	d.lsbPerG, d.rng = lsb, r
	return nil
}

// Range returns the active full scale.
func (d *Device) Range() Range { return d.rng }

// SetODR selects the output data rate. The pedometer needs 100 Hz.
func (d *Device) SetODR(o ODR) error {
	if o > ODR25600Hz {
		return ErrBadSetting
	}
	return d.standby(func(*byte) error {
		return hal.UpdateReg(d.regs, regODCntl, odcntlOSAMask, byte(o))
	})
}

// RawAccel returns the output registers.
func (d *Device) RawAccel() (RawVector, error) {
	if err := d.regs.ReadRegs(regXOutL, d.buf[:]); err != nil {
		return RawVector{}, err
	}
	x, y, z := hal.Vector3(d.buf[:])
	return RawVector{x, y, z}, nil
}

// Accel returns acceleration in µg.
func (d *Device) Accel() (Vector, error) {
	r, err := d.RawAccel()
	if err != nil {
		return Vector{}, err
	}
	s := int64(d.lsbPerG)
	conv := func(v int16) int32 { return int32(int64(v) * 1000000 / s) }
	return Vector{conv(r.X), conv(r.Y), conv(r.Z)}, nil
}

// StepCount returns the pedometer step counter.
func (d *Device) StepCount() (uint16, error) { return hal.ReadU16LE(d.regs, regPedStpL) }

// SetStepWatermark sets the step count that raises the watermark interrupt.
func (d *Device) SetStepWatermark(n uint16) error { return hal.WriteU16LE(d.regs, regPedStpWM, n) }

// InterruptSource reads INS2 and INS3 without releasing them.
func (d *Device) InterruptSource() (Interrupts, error) {
	var b [2]byte
	if err := d.regs.ReadRegs(regINS2, b[:]); err != nil {
		return Interrupts{}, err
	}
	tap := b[0] & ins2TapMask
	return Interrupts{
		StepIncrement: b[1]&ins3StepInc != 0,
		StepOverflow:  b[0]&ins2StepOvf != 0,
		StepWatermark: b[0]&ins2StepWM != 0,
		Tap:           tap == ins2SingleTap,
		DoubleTap:     tap == ins2DoubleTap,
	}, nil
}

// ClearInterrupts releases latched interrupts by reading INT_REL.
func (d *Device) ClearInterrupts() error {
	_, err := hal.ReadReg(d.regs, regIntRel)
	return err
}
