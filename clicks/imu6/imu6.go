// Package imu6 drives the LSM6DSL 6-axis IMU found on 6DOF IMU Click boards.
//
// The chip is reachable over I2C or SPI; both are handled by passing the
// matching hal.Registers strategy (see NewI2C and NewSPI). Readings are
// integer fixed point:
//
//	Accel()       µg per axis
//	Gyro()        milli-degrees per second per axis
//	Temperature() tenths of °C
package imu6

import (
	"errors"
	"time"

	"tinygo.org/x/drivers"

	"clickboards/clicks/hal"
	"clickboards/errcode"
	"clickboards/x/mathx"
)

var (
	ErrWrongDevice = &errcode.E{C: errcode.WrongDevice, Op: "imu6", Msg: "unexpected WHO_AM_I"}
	ErrTimeout     = &errcode.E{C: errcode.Timeout, Op: "imu6", Msg: "software reset did not complete"}
	ErrBadSetting  = errors.New("imu6: unsupported range or rate")
)

// AccelRange is the accelerometer full scale in g.
type AccelRange uint8

const (
	Accel2G  AccelRange = 2
	Accel4G  AccelRange = 4
	Accel8G  AccelRange = 8
	Accel16G AccelRange = 16
)

// GyroRange is the gyroscope full scale in degrees per second.
type GyroRange uint16

const (
	Gyro125DPS  GyroRange = 125
	Gyro250DPS  GyroRange = 250
	Gyro500DPS  GyroRange = 500
	Gyro1000DPS GyroRange = 1000
	Gyro2000DPS GyroRange = 2000
)

// Rate is an output data rate code (ODR_XL / ODR_G field value).
type Rate uint8

const (
	RateOff Rate = iota
	Rate12Hz5
	Rate26Hz
	Rate52Hz
	Rate104Hz
	Rate208Hz
	Rate416Hz
	Rate833Hz
	Rate1660Hz
	Rate3330Hz
	Rate6660Hz
)

// Config holds the measurement setup. Zero fields take DefaultConfig values,
// so a zero rate means 104 Hz; power a sensor down with SetAccel or SetGyro
// and RateOff.
type Config struct {
	AccelRange AccelRange
	AccelRate  Rate
	GyroRange  GyroRange
	GyroRate   Rate
	// ResetTimeout bounds the wait for SW_RESET to self-clear. Default 50 ms.
	ResetTimeout time.Duration
}

// DefaultConfig returns ±2 g and 250 dps, both at 104 Hz.
func DefaultConfig() Config {
	return Config{
		AccelRange:   Accel2G,
		AccelRate:    Rate104Hz,
		GyroRange:    Gyro250DPS,
		GyroRate:     Rate104Hz,
		ResetTimeout: 50 * time.Millisecond,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.AccelRange == 0 {
		c.AccelRange = d.AccelRange
	}
	if c.AccelRate == RateOff {
		c.AccelRate = d.AccelRate
	}
	if c.GyroRate == RateOff {
		c.GyroRate = d.GyroRate
	}
	if c.GyroRange == 0 {
		c.GyroRange = d.GyroRange
	}
	if c.ResetTimeout <= 0 {
		c.ResetTimeout = d.ResetTimeout
	}
	return c
}

// Vector is a three-axis reading.
type Vector struct{ X, Y, Z int32 }

// RawVector is a three-axis reading in LSB.
type RawVector struct{ X, Y, Z int16 }

// DataReady mirrors STATUS_REG.
type DataReady struct{ Accel, Gyro, Temp bool }

// Device is an LSM6DSL instance.
type Device struct {
	regs hal.Registers
	cfg  Config

	accelUG  int32 // µg per LSB
	gyroUDPS int32 // µdps per LSB

	buf [6]byte
}

// New wraps an already-selected register strategy. No bus traffic happens.
func New(regs hal.Registers, cfg Config) *Device {
	d := &Device{regs: regs, cfg: cfg.withDefaults()}
	d.accelUG, _ = accelSensitivity(d.cfg.AccelRange)
	d.gyroUDPS, _ = gyroSensitivity(d.cfg.GyroRange)
	return d
}

// NewI2C is New over I2C at addr (AddressLow when zero).
func NewI2C(bus drivers.I2C, addr uint16, cfg Config) *Device {
	if addr == 0 {
		addr = AddressLow
	}
	return New(hal.NewI2C(bus, addr), cfg)
}

// NewSPI is New over 4-wire SPI; bit 7 of the address byte selects a read.
func NewSPI(bus drivers.SPI, cs hal.PinOut, cfg Config) *Device {
	return New(hal.NewSPI(bus, cs, hal.SPIConfig{ReadFlag: 0x80}), cfg)
}

// Configure probes the chip, performs a software reset, enables block data
// update with address auto-increment and applies the configured ranges.
func (d *Device) Configure() error {
	id, err := hal.ReadReg(d.regs, regWhoAmI)
	if err != nil {
		return err
	}
	if id != whoAmIValue {
		return ErrWrongDevice
	}
	if err := hal.WriteReg(d.regs, regCtrl3C, ctrl3SWReset); err != nil {
		return err
	}
	deadline := time.Now().Add(d.cfg.ResetTimeout)
	for {
		v, err := hal.ReadReg(d.regs, regCtrl3C)
		if err != nil {
			return err
		}
		if v&ctrl3SWReset == 0 {
			break
		}
		if time.Now().After(deadline) {
			return ErrTimeout
		}
		time.Sleep(time.Millisecond)
	}
	if err := hal.UpdateReg(d.regs, regCtrl3C, ctrl3BDU|ctrl3IfInc, ctrl3BDU|ctrl3IfInc); err != nil {
		return err
	}
	return d.apply(d.cfg)
}

// DefaultConfig writes the DefaultConfig register set.
func (d *Device) DefaultConfig() error {
	c := DefaultConfig()
	c.ResetTimeout = d.cfg.ResetTimeout
	return d.apply(c)
}

func (d *Device) apply(c Config) error {
	var err error
	err = errcode.Append(err, d.SetAccel(c.AccelRange, c.AccelRate))
	err = errcode.Append(err, d.SetGyro(c.GyroRange, c.GyroRate))
	return err
}

// ReadRegister and WriteRegister give raw access to the register file.
func (d *Device) ReadRegister(reg byte) (byte, error) { return hal.ReadReg(d.regs, uint16(reg)) }
func (d *Device) WriteRegister(reg, v byte) error  { return hal.WriteReg(d.regs, uint16(reg), v) }

func accelSensitivity(r AccelRange) (int32, byte) {
	switch r {
	case Accel2G:
		return 61, 0b00
	case Accel4G:
		return 122, 0b10
	case Accel8G:
		return 244, 0b11
	case Accel16G:
		return 488, 0b01
	}
	return 0, 0
}

// gyroSensitivity returns µdps/LSB and the FS_G|FS_125 field (bits 3:1).
func gyroSensitivity(r GyroRange) (int32, byte) {
	switch r {
	case Gyro125DPS:
		return 4375, 0b001
	case Gyro250DPS:
		return 8750, 0b000
	case Gyro500DPS:
		return 17500, 0b010
	case Gyro1000DPS:
		return 35000, 0b100
	case Gyro2000DPS:
		return 70000, 0b110
	}
	return 0, 0
}

// SetAccel programs CTRL1_XL and updates the accelerometer sensitivity.
func (d *Device) SetAccel(r AccelRange, odr Rate) error {
	sens, fs := accelSensitivity(r)
	if sens == 0 || odr > Rate6660Hz {
		return ErrBadSetting
	}
	if err := hal.UpdateReg(d.regs, regCtrl1XL, odrMask|fsXLMask, byte(odr)<<4|fs<<2); err != nil {
		return err
	}
	d.cfg.AccelRange, d.cfg.AccelRate = r, odr
	d.accelUG = sens
	return nil
}

// SetGyro programs CTRL2_G and updates the gyroscope sensitivity.
func (d *Device) SetGyro(r GyroRange, odr Rate) error {
	sens, fs := gyroSensitivity(r)
	if sens == 0 || odr > Rate6660Hz {
		return ErrBadSetting
	}
	if err := hal.UpdateReg(d.regs, regCtrl2G, odrMask|fsGMask, byte(odr)<<4|fs<<1); err != nil {
		return err
	}
	d.cfg.GyroRange, d.cfg.GyroRate = r, odr
	d.gyroUDPS = sens
	return nil
}

// Sensitivity returns the active scale factors (µg/LSB, µdps/LSB).
func (d *Device) Sensitivity() (accelUG, gyroUDPS int32) { return d.accelUG, d.gyroUDPS }

// Status reads STATUS_REG.
func (d *Device) Status() (DataReady, error) {
	v, err := hal.ReadReg(d.regs, regStatus)
	if err != nil {
		return DataReady{}, err
	}
	return DataReady{
		Accel: v&statusXLDA != 0,
		Gyro:  v&statusGDA != 0,
		Temp:  v&statusTDA != 0,
	}, nil
}

func (d *Device) readVector(reg uint16) (RawVector, error) {
	if err := d.regs.ReadRegs(reg, d.buf[:]); err != nil {
		return RawVector{}, err
	}
	x, y, z := hal.Vector3(d.buf[:])
	return RawVector{x, y, z}, nil
}

// RawAccel returns the accelerometer output registers.
func (d *Device) RawAccel() (RawVector, error) { return d.readVector(regOutXLXL) }

// RawGyro returns the gyroscope output registers.
func (d *Device) RawGyro() (RawVector, error) { return d.readVector(regOutXLG) }

// Accel returns acceleration in µg.
func (d *Device) Accel() (Vector, error) {
	r, err := d.RawAccel()
	if err != nil {
		return Vector{}, err
	}
	s := d.accelUG
	return Vector{int32(r.X) * s, int32(r.Y) * s, int32(r.Z) * s}, nil
}

// Gyro returns angular rate in milli-degrees per second.
func (d *Device) Gyro() (Vector, error) {
	r, err := d.RawGyro()
	if err != nil {
		return Vector{}, err
	}
	s := int64(d.gyroUDPS)
	conv := func(v int16) int32 { return int32(int64(v) * s / 1000) }
	return Vector{conv(r.X), conv(r.Y), conv(r.Z)}, nil
}

// Temperature returns the die temperature in tenths of °C (25 °C + raw/256).
func (d *Device) Temperature() (int32, error) {
	raw, err := hal.ReadS16LE(d.regs, regOutTempL)
	if err != nil {
		return 0, err
	}
	return 250 + mathx.RoundDiv(int32(raw)*10, 256), nil
}
