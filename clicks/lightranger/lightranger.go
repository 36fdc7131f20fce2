// Package lightranger drives the VL6180X time-of-flight ranging and ambient
// light sensor on LightRanger Click boards.
//
// The VL6180X uses 16-bit register addresses. Range results are in mm,
// ambient light in milli-lux.
package lightranger

import (
	"context"
	"errors"
	"time"

	"tinygo.org/x/drivers"

	"clickboards/clicks/hal"
	"clickboards/errcode"
)

var (
	ErrWrongDevice = &errcode.E{C: errcode.WrongDevice, Op: "lightranger", Msg: "model ID is not VL6180X"}
	ErrTimeout     = &errcode.E{C: errcode.Timeout, Op: "lightranger", Msg: "measurement did not complete"}
	ErrBadSetting  = errors.New("lightranger: unsupported setting")
)

// RangeError reports a non-zero RESULT__RANGE_STATUS error code.
type RangeError struct {
	Code uint8
}

var rangeErrorNames = [16]string{
	"no error",
	"VCSEL continuity test",
	"VCSEL watchdog test",
	"VCSEL watchdog",
	"PLL1 lock",
	"PLL2 lock",
	"early convergence estimate",
	"max convergence",
	"no target ignore",
	"not used",
	"not used",
	"max signal to noise ratio",
	"raw ranging algo underflow",
	"raw ranging algo overflow",
	"ranging algo underflow",
	"ranging algo overflow",
}

func (e *RangeError) Error() string {
	return "lightranger: range error: " + rangeErrorNames[e.Code&0x0F]
}

// ErrCode classifies the failure for errcode.Of.
func (e *RangeError) ErrCode() errcode.Code {
	switch e.Code {
	case 6, 7, 8, 11:
		return errcode.NotReady // no usable target in view
	}
	return errcode.Error
}

// ALSGain is the ambient light analogue gain, SYSALS__ANALOGUE_GAIN[2:0].
type ALSGain uint8

const (
	Gain20 ALSGain = iota
	Gain10
	Gain5
	Gain2_5
	Gain1_67
	Gain1_25
	Gain1
	Gain40
)

// gain in hundredths.
var alsGainX100 = [8]int64{2000, 1000, 500, 250, 167, 125, 100, 4000}

// Config holds timing bounds. Zero fields take defaults.
type Config struct {
	Address uint16
	// Timeout bounds each measurement in addition to ctx. Default 100 ms for
	// ranging; ambient light adds the integration period.
	Timeout time.Duration
	// ALSIntegration is the ambient light integration time. Default 100 ms.
	ALSIntegration time.Duration
}

// Device is a VL6180X.
type Device struct {
	regs *hal.I2C
	cfg  Config
}

func New(bus drivers.I2C, cfg Config) *Device {
	if cfg.Address == 0 {
		cfg.Address = Address
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 100 * time.Millisecond
	}
	if cfg.ALSIntegration <= 0 {
		cfg.ALSIntegration = 100 * time.Millisecond
	}
	return &Device{regs: hal.NewI2C16(bus, cfg.Address), cfg: cfg}
}

// Configure checks the model ID and, on a freshly powered chip, loads the
// private and recommended settings before clearing SYSTEM__FRESH_OUT_OF_RESET.
func (d *Device) Configure() error {
	id, err := hal.ReadReg(d.regs, regModelID)
	if err != nil {
		return err
	}
	if id != modelID {
		return ErrWrongDevice
	}
	fresh, err := hal.ReadReg(d.regs, regFreshOutOfReset)
	if err != nil {
		return err
	}
	if fresh&0x01 == 0 {
		return nil
	}
	if err := d.DefaultConfig(); err != nil {
		return err
	}
	return hal.WriteReg(d.regs, regFreshOutOfReset, 0x00)
}

// DefaultConfig writes the private tuning table and the recommended public
// settings. Every write is attempted.
func (d *Device) DefaultConfig() error {
	var err error
	for _, rv := range privateInit {
		err = errcode.Append(err, hal.WriteReg(d.regs, rv.reg, rv.val))
	}
	for _, rv := range publicInit {
		err = errcode.Append(err, hal.WriteReg(d.regs, rv.reg, rv.val))
	}
	return err
}

func (d *Device) ReadRegister(reg uint16) (byte, error) { return hal.ReadReg(d.regs, reg) }
func (d *Device) WriteRegister(reg uint16, v byte) error { return hal.WriteReg(d.regs, reg, v) }

// Address returns the I2C address in use.
func (d *Device) Address() uint16 { return d.regs.Address() }

// SetAddress moves the device to a new 7-bit address. The change is lost at
// power-down.
func (d *Device) SetAddress(addr uint16) error {
	if addr == 0 || addr > 0x7F {
		return ErrBadSetting
	}
	if err := hal.WriteReg(d.regs, regSlaveAddress, byte(addr)); err != nil {
		return err
	}
	d.regs.SetAddress(addr)
	return nil
}

// SetRangeOffset writes the part-to-part range offset in mm.
func (d *Device) SetRangeOffset(mm int8) error {
	return hal.WriteReg(d.regs, regRangeOffset, byte(mm))
}

// wait polls RESULT__INTERRUPT_STATUS_GPIO until mask/want match.
func (d *Device) wait(ctx context.Context, mask, want byte, limit time.Duration) error {
	deadline := time.Now().Add(limit)
	for {
		v, err := hal.ReadReg(d.regs, regInterruptStatus)
		if err != nil {
			return err
		}
		if v&mask == want {
			return nil
		}
		if time.Now().After(deadline) {
			return ErrTimeout
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Millisecond):
		}
	}
}

// readRange reads the result, clears the interrupt and checks the status.
func (d *Device) readRange() (uint8, error) {
	mm, err := hal.ReadReg(d.regs, regRangeValue)
	if err != nil {
		return 0, err
	}
	st, err := hal.ReadReg(d.regs, regRangeStatus)
	if err != nil {
		return 0, err
	}
	if err := hal.WriteReg(d.regs, regInterruptClear, clearAll); err != nil {
		return 0, err
	}
	if code := st >> 4; code != 0 {
		return mm, &RangeError{Code: code}
	}
	return mm, nil
}

// Range performs a single-shot measurement and returns the distance in mm.
func (d *Device) Range(ctx context.Context) (uint8, error) {
	if err := hal.WriteReg(d.regs, regRangeStart, startSingle); err != nil {
		return 0, err
	}
	if err := d.wait(ctx, 0x07, rangeReady, d.cfg.Timeout); err != nil {
		return 0, err
	}
	return d.readRange()
}

// StartContinuous starts back-to-back ranging every period (10..2550 ms).
func (d *Device) StartContinuous(period time.Duration) error {
	code := int64(period/(10*time.Millisecond)) - 1
	code = max(0, min(code, 254))
	var err error
	err = errcode.Append(err, hal.WriteReg(d.regs, regRangeInterMeasure, byte(code)))
	err = errcode.Append(err, hal.WriteReg(d.regs, regRangeStart, startContinuous))
	return err
}

// StopContinuous stops continuous ranging after the current measurement.
func (d *Device) StopContinuous() error {
	if err := hal.WriteReg(d.regs, regRangeStart, startSingle); err != nil {
		return err
	}
	return hal.WriteReg(d.regs, regInterruptClear, clearAll)
}

// ReadContinuous waits for the next continuous-mode result.
func (d *Device) ReadContinuous(ctx context.Context) (uint8, error) {
	limit := d.cfg.Timeout
	if v, err := hal.ReadReg(d.regs, regRangeInterMeasure); err == nil {
		limit += time.Duration(v+1) * 10 * time.Millisecond
	}
	if err := d.wait(ctx, 0x07, rangeReady, limit); err != nil {
		return 0, err
	}
	return d.readRange()
}

// AmbientLight runs a single ALS measurement at the given gain and returns
// milli-lux: 0.32 lux/count scaled by gain and integration time.
func (d *Device) AmbientLight(ctx context.Context, gain ALSGain) (int32, error) {
	if gain > Gain40 {
		return 0, ErrBadSetting
	}
	ms := int64(d.cfg.ALSIntegration / time.Millisecond)
	ms = max(1, min(ms, 512))
	var err error
	err = errcode.Append(err, hal.WriteReg(d.regs, regALSGain, 0x40|byte(gain)))
	err = errcode.Append(err, hal.WriteU16BE(d.regs, regALSIntegration, uint16(ms-1)))
	if err != nil {
		return 0, err
	}
	if err := hal.WriteReg(d.regs, regALSStart, startSingle); err != nil {
		return 0, err
	}
	limit := d.cfg.Timeout + time.Duration(ms)*time.Millisecond
	if err := d.wait(ctx, 0x38, alsReady, limit); err != nil {
		return 0, err
	}
	count, err := hal.ReadU16BE(d.regs, regALSValue)
	if err != nil {
		return 0, err
	}
	if err := hal.WriteReg(d.regs, regInterruptClear, clearAll); err != nil {
		return 0, err
	}
	// lux = 0.32 * count / gain * 100 / ms
	milli := 320 * int64(count) * 100 * 100 / (alsGainX100[gain] * ms)
	return int32(milli), nil
}
