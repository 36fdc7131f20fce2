// Package heartrate drives the MAX30102 pulse oximeter and heart-rate sensor
// found on Heart Rate Click boards.
//
// The sensor samples into a 32-entry FIFO. Each sample holds one 18-bit
// reading per active LED (red, then IR in SpO2 mode), left-justified: at
// pulse widths below 411 µs the low bits are zero and are shifted out here.
package heartrate

import (
	"errors"
	"time"

	"tinygo.org/x/drivers"

	"clickboards/clicks/hal"
	"clickboards/errcode"
)

var (
	ErrWrongDevice = &errcode.E{C: errcode.WrongDevice, Op: "heartrate", Msg: "part ID is not MAX30102"}
	ErrTimeout     = &errcode.E{C: errcode.Timeout, Op: "heartrate", Msg: "device did not complete"}
	ErrBadSetting  = errors.New("heartrate: unsupported setting")
)

// Mode selects which LEDs are sampled.
type Mode uint8

const (
	ModeHR       Mode = 0b010 // red only
	ModeSpO2     Mode = 0b011 // red and IR
	ModeMultiLED Mode = 0b111 // per-slot
)

// SampleRate is the SPO2_SR field.
type SampleRate uint8

const (
	Rate50 SampleRate = iota
	Rate100
	Rate200
	Rate400
	Rate800
	Rate1000
	Rate1600
	Rate3200
)

// PulseWidth is the LED_PW field; it also sets ADC resolution.
type PulseWidth uint8

const (
	PW69us  PulseWidth = iota // 15 bit
	PW118us                   // 16 bit
	PW215us                   // 17 bit
	PW411us                   // 18 bit
)

// ADCRange is the SPO2_ADC_RGE full scale in nA.
type ADCRange uint8

const (
	Range2048nA ADCRange = iota
	Range4096nA
	Range8192nA
	Range16384nA
)

// Averaging is the SMP_AVE field.
type Averaging uint8

const (
	Avg1 Averaging = iota
	Avg2
	Avg4
	Avg8
	Avg16
	Avg32
)

// LED selects a drive-current register.
type LED uint8

const (
	LEDRed LED = iota
	LEDIR
)

// Slot sources for multi-LED mode.
const (
	SlotOff byte = 0
	SlotRed byte = 1
	SlotIR  byte = 2
)

// Config holds timing bounds. Zero fields take defaults.
type Config struct {
	Address      uint16
	ResetTimeout time.Duration // 50 ms
	TempTimeout  time.Duration // 100 ms
}

// Sample is one FIFO entry. IR is zero in HR mode.
type Sample struct {
	Red uint32
	IR  uint32
}

// Interrupts mirrors INT_STATUS_1/2 and INT_ENABLE_1/2.
type Interrupts struct {
	AlmostFull  bool
	NewData     bool
	ALCOverflow bool
	PowerReady  bool // status only
	TempReady   bool
}

// Device is a MAX30102 on an I2C bus.
type Device struct {
	regs hal.Registers
	cfg  Config

	mode  Mode
	pw    PulseWidth
	slots byte // active LED count in multi-LED mode

	buf [fifoDepth * 2 * bytesPerLED]byte
}

func New(bus drivers.I2C, cfg Config) *Device {
	if cfg.Address == 0 {
		cfg.Address = Address
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 50 * time.Millisecond
	}
	if cfg.TempTimeout <= 0 {
		cfg.TempTimeout = 100 * time.Millisecond
	}
	return &Device{regs: hal.NewI2C(bus, cfg.Address), cfg: cfg, mode: ModeHR, pw: PW411us, slots: 2}
}

// Configure probes the part ID, resets the chip and empties the FIFO.
func (d *Device) Configure() error {
	id, err := hal.ReadReg(d.regs, regPartID)
	if err != nil {
		return err
	}
	if id != partID {
		return ErrWrongDevice
	}
	if err := d.Reset(); err != nil {
		return err
	}
	return d.ClearFIFO()
}

// Revision returns REV_ID.
func (d *Device) Revision() (byte, error) { return hal.ReadReg(d.regs, regRevID) }

// Reset performs a power-on reset and waits for RESET to self-clear.
func (d *Device) Reset() error {
	if err := hal.WriteReg(d.regs, regModeCfg, modeReset); err != nil {
		return err
	}
	deadline := time.Now().Add(d.cfg.ResetTimeout)
	for {
		v, err := hal.ReadReg(d.regs, regModeCfg)
		if err != nil {
			return err
		}
		if v&modeReset == 0 {
			d.mode, d.pw = ModeHR, PW69us
			return nil
		}
		if time.Now().After(deadline) {
			return ErrTimeout
		}
		time.Sleep(time.Millisecond)
	}
}

// DefaultConfig sets up SpO2 sampling: 4-sample averaging with FIFO
// rollover, almost-full at 17 unread samples, 4096 nA range, 100 sps,
// 411 µs pulses and 7 mA on both LEDs.
func (d *Device) DefaultConfig() error {
	var err error
	err = errcode.Append(err, d.SetFIFO(Avg4, true, 17))
	err = errcode.Append(err, d.SetMode(ModeSpO2))
	err = errcode.Append(err, d.SetADCRange(Range4096nA))
	err = errcode.Append(err, d.SetSampleRate(Rate100))
	err = errcode.Append(err, d.SetPulseWidth(PW411us))
	err = errcode.Append(err, d.SetLEDCurrent(LEDRed, 7000))
	err = errcode.Append(err, d.SetLEDCurrent(LEDIR, 7000))
	return err
}

func (d *Device) ReadRegister(reg byte) (byte, error) { return hal.ReadReg(d.regs, uint16(reg)) }
func (d *Device) WriteRegister(reg, v byte) error  { return hal.WriteReg(d.regs, uint16(reg), v) }

// ---------------- Setup ----------------

// SetMode selects HR, SpO2 or multi-LED sampling.
func (d *Device) SetMode(m Mode) error {
	switch m {
	case ModeHR, ModeSpO2, ModeMultiLED:
	default:
		return ErrBadSetting
	}
	if err := hal.UpdateReg(d.regs, regModeCfg, modeMask, byte(m)); err != nil {
		return err
	}
	d.mode = m
	return nil
}

// Shutdown enters (true) or leaves power-save mode. Registers are retained.
func (d *Device) Shutdown(on bool) error {
	v := byte(0)
	if on {
		v = modeShutdown
	}
	return hal.UpdateReg(d.regs, regModeCfg, modeShutdown, v)
}

func (d *Device) SetSampleRate(r SampleRate) error {
	if r > Rate3200 {
		return ErrBadSetting
	}
	return hal.UpdateReg(d.regs, regSpO2Cfg, rateMask, byte(r)<<2)
}

func (d *Device) SetPulseWidth(pw PulseWidth) error {
	if pw > PW411us {
		return ErrBadSetting
	}
	if err := hal.UpdateReg(d.regs, regSpO2Cfg, pwMask, byte(pw)); err != nil {
		return err
	}
	d.pw = pw
	return nil
}

func (d *Device) SetADCRange(r ADCRange) error {
	if r > Range16384nA {
		return ErrBadSetting
	}
	return hal.UpdateReg(d.regs, regSpO2Cfg, adcRangeMask, byte(r)<<5)
}

// SetFIFO programs averaging, rollover and the almost-full threshold given
// as the number of unread samples (17..32) that raises A_FULL.
func (d *Device) SetFIFO(avg Averaging, rollover bool, almostFull int) error {
	if avg > Avg32 {
		return ErrBadSetting
	}
	if almostFull < fifoDepth-fifoAFullMask {
		almostFull = fifoDepth - fifoAFullMask
	}
	if almostFull > fifoDepth {
		almostFull = fifoDepth
	}
	v := byte(avg)<<5 | byte(fifoDepth-almostFull)
	if rollover {
		v |= fifoRollover
	}
	return hal.WriteReg(d.regs, regFIFOCfg, v)
}

// SetLEDCurrent sets the drive current in µA, 200 µA steps, clamped to
// 0..51 mA.
func (d *Device) SetLEDCurrent(led LED, uA int32) error {
	reg := uint16(regLed1PA)
	switch led {
	case LEDRed:
	case LEDIR:
		reg = regLed2PA
	default:
		return ErrBadSetting
	}
	return hal.WriteReg(d.regs, reg, byte(fieldLEDCurrent.Code(uA)))
}

// SetSlots assigns LED sources to the four multi-LED time slots. Sampling
// stops at the first SlotOff. A Sample holds two channels, so at most two
// slots may be active.
func (d *Device) SetSlots(s1, s2, s3, s4 byte) error {
	n := byte(0)
	for _, s := range [...]byte{s1, s2, s3, s4} {
		if s > SlotIR {
			return ErrBadSetting
		}
		if s == SlotOff {
			break
		}
		n++
	}
	if n > 2 {
		return ErrBadSetting
	}
	if err := d.regs.WriteRegs(regSlots21, []byte{s2<<4 | s1, s4<<4 | s3}); err != nil {
		return err
	}
	d.slots = n
	return nil
}

// ---------------- FIFO ----------------

func (d *Device) leds() int {
	switch d.mode {
	case ModeHR:
		return 1
	case ModeMultiLED:
		return int(d.slots)
	}
	return 2
}

// Available returns the number of unread samples. An overflowed FIFO is
// reported as full.
func (d *Device) Available() (int, error) {
	var p [3]byte
	if err := d.regs.ReadRegs(regFIFOWrPtr, p[:]); err != nil {
		return 0, err
	}
	if p[1] != 0 {
		return fifoDepth, nil
	}
	return int((p[0] - p[2]) & fifoPtrMask), nil
}

// ReadFIFO reads up to len(dst) samples and returns how many were stored.
func (d *Device) ReadFIFO(dst []Sample) (int, error) {
	n, err := d.Available()
	if err != nil || n == 0 {
		return 0, err
	}
	n = min(n, len(dst))
	leds := d.leds()
	if leds == 0 {
		return 0, nil
	}
	raw := d.buf[:n*leds*bytesPerLED]
	if err := d.regs.ReadRegs(regFIFOData, raw); err != nil {
		return 0, err
	}
	shift := 3 - uint(d.pw)
	for i := 0; i < n; i++ {
		b := raw[i*leds*bytesPerLED:]
		dst[i] = Sample{Red: decodeSample(b, shift)}
		if leds > 1 {
			dst[i].IR = decodeSample(b[bytesPerLED:], shift)
		}
	}
	return n, nil
}

func decodeSample(b []byte, shift uint) uint32 {
	v := (uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2])) & sampleMask
	return v >> shift
}

// ClearFIFO resets the read and write pointers and the overflow counter.
func (d *Device) ClearFIFO() error {
	return d.regs.WriteRegs(regFIFOWrPtr, []byte{0, 0, 0})
}

// ---------------- Temperature and interrupts ----------------

// Temperature runs a die temperature conversion and returns milli-°C.
func (d *Device) Temperature() (int32, error) {
	if err := hal.WriteReg(d.regs, regTempCfg, tempEnable); err != nil {
		return 0, err
	}
	deadline := time.Now().Add(d.cfg.TempTimeout)
	for {
		st, err := hal.ReadReg(d.regs, regIntStat2)
		if err != nil {
			return 0, err
		}
		if st&intTempReady != 0 {
			break
		}
		if time.Now().After(deadline) {
			return 0, ErrTimeout
		}
		time.Sleep(time.Millisecond)
	}
	var t [2]byte
	if err := d.regs.ReadRegs(regTempInt, t[:]); err != nil {
		return 0, err
	}
	return int32(int8(t[0]))*1000 + int32(t[1]&0x0F)*625/10, nil
}

// InterruptStatus reads and clears both status registers.
func (d *Device) InterruptStatus() (Interrupts, error) {
	var s [2]byte
	if err := d.regs.ReadRegs(regIntStat1, s[:]); err != nil {
		return Interrupts{}, err
	}
	return Interrupts{
		AlmostFull:  s[0]&intAlmostFull != 0,
		NewData:     s[0]&intNewData != 0,
		ALCOverflow: s[0]&intALCOverflow != 0,
		PowerReady:  s[0]&intPowerReady != 0,
		TempReady:   s[1]&intTempReady != 0,
	}, nil
}

// EnableInterrupts writes INT_ENABLE_1/2. PowerReady is ignored.
func (d *Device) EnableInterrupts(i Interrupts) error {
	var e1, e2 byte
	if i.AlmostFull {
		e1 |= intAlmostFull
	}
	if i.NewData {
		e1 |= intNewData
	}
	if i.ALCOverflow {
		e1 |= intALCOverflow
	}
	if i.TempReady {
		e2 |= intTempReady
	}
	return d.regs.WriteRegs(regIntEna1, []byte{e1, e2})
}
