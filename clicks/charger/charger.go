// Package charger drives the BQ25895 single-cell switch-mode battery charger
// used on Charger Click boards.
//
// Design notes (datasheet references):
//   - I2C, 400 kHz, byte registers, address 0x6A.
//   - Setpoints are linear codes; out-of-range requests are clamped.
//   - The ADC must be started (one-shot or continuous) before the telemetry
//     registers REG0E..REG12 hold meaningful values.
//   - REG0C latches faults; the first read returns and clears the latch.
package charger

import (
	"time"

	"tinygo.org/x/drivers"

	"clickboards/clicks/hal"
	"clickboards/errcode"
)

var (
	ErrWrongDevice = &errcode.E{C: errcode.WrongDevice, Op: "charger", Msg: "part number is not BQ25895"}
	ErrADCTimeout  = &errcode.E{C: errcode.Timeout, Op: "charger", Msg: "ADC conversion did not finish"}
)

// Watchdog is the I2C watchdog period.
type Watchdog uint8

const (
	WatchdogOff Watchdog = iota
	Watchdog40s
	Watchdog80s
	Watchdog160s
)

// Config holds charge setpoints in integer units. Zero fields are left at the
// values written by DefaultConfig.
type Config struct {
	Address          uint16
	InputLimit_mA    int32
	ChargeCurrent_mA int32
	ChargeVoltage_mV int32
	MinSystem_mV     int32
	Watchdog         Watchdog
}

// DefaultConfig returns conservative single-cell Li-ion settings.
func DefaultConfig() Config {
	return Config{
		Address:          Address,
		InputLimit_mA:    1500,
		ChargeCurrent_mA: 1024,
		ChargeVoltage_mV: 4208,
		MinSystem_mV:     3500,
		Watchdog:         WatchdogOff,
	}
}

// Device represents a BQ25895 on an I2C bus.
type Device struct {
	regs hal.Registers
	cfg  Config
}

// New constructs a Device. The bus must already be configured.
func New(bus drivers.I2C, cfg Config) *Device {
	if cfg.Address == 0 {
		cfg.Address = Address
	}
	return &Device{regs: hal.NewI2C(bus, cfg.Address), cfg: cfg}
}

// Configure checks the part number and applies any non-zero setpoints.
func (d *Device) Configure() error {
	v, err := hal.ReadReg(d.regs, reg14)
	if err != nil {
		return err
	}
	if (v>>3)&0x07 != partNumber {
		return ErrWrongDevice
	}
	return d.apply(d.cfg)
}

// DefaultConfig writes DefaultConfig setpoints, disables the watchdog, starts
// continuous ADC conversion and enables charging. Every write is attempted.
func (d *Device) DefaultConfig() error {
	var err error
	err = errcode.Append(err, d.apply(DefaultConfig()))
	err = errcode.Append(err, d.StartADC(true))
	err = errcode.Append(err, d.EnableCharging(true))
	return err
}

func (d *Device) apply(c Config) error {
	var err error
	if c.InputLimit_mA != 0 {
		err = errcode.Append(err, d.SetInputCurrentLimit(c.InputLimit_mA))
	}
	if c.ChargeCurrent_mA != 0 {
		err = errcode.Append(err, d.SetChargeCurrent(c.ChargeCurrent_mA))
	}
	if c.ChargeVoltage_mV != 0 {
		err = errcode.Append(err, d.SetChargeVoltage(c.ChargeVoltage_mV))
	}
	if c.MinSystem_mV != 0 {
		err = errcode.Append(err, d.SetMinSystemVoltage(c.MinSystem_mV))
	}
	err = errcode.Append(err, d.SetWatchdog(c.Watchdog))
	return err
}

func (d *Device) ReadRegister(reg byte) (byte, error) { return hal.ReadReg(d.regs, uint16(reg)) }
func (d *Device) WriteRegister(reg, v byte) error  { return hal.WriteReg(d.regs, uint16(reg), v) }

// ---------------- Setpoints ----------------

// SetInputCurrentLimit programs IINLIM (100..3250 mA, 50 mA steps).
func (d *Device) SetInputCurrentLimit(mA int32) error {
	return hal.UpdateReg(d.regs, reg00, iinlimMask, byte(fieldIINLIM.Code(mA)))
}

// InputCurrentLimit reads back IINLIM in mA.
func (d *Device) InputCurrentLimit() (int32, error) {
	v, err := hal.ReadReg(d.regs, reg00)
	return fieldIINLIM.Value(uint32(v & iinlimMask)), err
}

// SetChargeCurrent programs ICHG (0..5056 mA, 64 mA steps). 0 disables charge.
func (d *Device) SetChargeCurrent(mA int32) error {
	return hal.UpdateReg(d.regs, reg04, ichgMask, byte(fieldICHG.Code(mA)))
}

func (d *Device) ChargeCurrentSetting() (int32, error) {
	v, err := hal.ReadReg(d.regs, reg04)
	return fieldICHG.Value(uint32(v & ichgMask)), err
}

// SetChargeVoltage programs VREG (3840..4608 mV, 16 mV steps).
func (d *Device) SetChargeVoltage(mV int32) error {
	return hal.UpdateReg(d.regs, reg06, vregMask, byte(fieldVREG.Code(mV))<<2)
}

func (d *Device) ChargeVoltageSetting() (int32, error) {
	v, err := hal.ReadReg(d.regs, reg06)
	return fieldVREG.Value(uint32(v&vregMask) >> 2), err
}

// SetMinSystemVoltage programs SYS_MIN (3000..3700 mV, 100 mV steps).
func (d *Device) SetMinSystemVoltage(mV int32) error {
	return hal.UpdateReg(d.regs, reg03, sysMinMask, byte(fieldSYSMIN.Code(mV))<<1)
}

// EnableCharging sets or clears CHG_CONFIG.
func (d *Device) EnableCharging(on bool) error {
	return hal.UpdateReg(d.regs, reg03, chgConfigBit, flag(on, chgConfigBit))
}

// EnableHiZ disconnects (true) or reconnects the input.
func (d *Device) EnableHiZ(on bool) error {
	return hal.UpdateReg(d.regs, reg00, hizBit, flag(on, hizBit))
}

// EnableTermination sets EN_TERM.
func (d *Device) EnableTermination(on bool) error {
	return hal.UpdateReg(d.regs, reg07, enTermBit, flag(on, enTermBit))
}

func (d *Device) SetWatchdog(w Watchdog) error {
	return hal.UpdateReg(d.regs, reg07, watchdogMsk, byte(w&0x03)<<4)
}

// ResetWatchdog kicks the I2C watchdog timer. WD_RST self-clears.
func (d *Device) ResetWatchdog() error {
	v, err := hal.ReadReg(d.regs, reg03)
	if err != nil {
		return err
	}
	return hal.WriteReg(d.regs, reg03, v|wdRstBit)
}

// Reset returns all registers to their power-on defaults.
func (d *Device) Reset() error {
	return hal.WriteReg(d.regs, reg14, regRstBit)
}

func flag(on bool, bit byte) byte {
	if on {
		return bit
	}
	return 0
}

// ---------------- ADC ----------------

// StartADC starts a one-shot conversion, or continuous 1 s conversions.
func (d *Device) StartADC(continuous bool) error {
	if continuous {
		return hal.UpdateReg(d.regs, reg02, convRateBit|convStartBit, convRateBit|convStartBit)
	}
	return hal.UpdateReg(d.regs, reg02, convRateBit|convStartBit, convStartBit)
}

// ADCBusy reports a one-shot conversion still in progress.
func (d *Device) ADCBusy() (bool, error) {
	v, err := hal.ReadReg(d.regs, reg02)
	if err != nil {
		return false, err
	}
	return v&convStartBit != 0 && v&convRateBit == 0, nil
}

// ConvertOnce starts a one-shot conversion and waits for it to complete.
func (d *Device) ConvertOnce(timeout time.Duration) error {
	if err := d.StartADC(false); err != nil {
		return err
	}
	deadline := time.Now().Add(timeout)
	for {
		busy, err := d.ADCBusy()
		if err != nil {
			return err
		}
		if !busy {
			return nil
		}
		if time.Now().After(deadline) {
			return ErrADCTimeout
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// ---------------- Status ----------------

// VbusSource is the detected input type (VBUS_STAT).
type VbusSource uint8

const (
	VbusNone    VbusSource = 0b000
	VbusSDP     VbusSource = 0b001
	VbusAdapter VbusSource = 0b010
	VbusOTG     VbusSource = 0b111
)

func (s VbusSource) String() string {
	switch s {
	case VbusNone:
		return "none"
	case VbusSDP:
		return "usb_sdp"
	case VbusAdapter:
		return "adapter"
	case VbusOTG:
		return "otg"
	default:
		return "unknown"
	}
}

// ChargePhase is CHRG_STAT.
type ChargePhase uint8

const (
	NotCharging ChargePhase = iota
	PreCharge
	FastCharge
	ChargeDone
)

func (p ChargePhase) String() string {
	return [...]string{"not_charging", "pre_charge", "fast_charge", "done"}[p&0x03]
}

// Status is the decoded REG0B.
type Status struct {
	Source         VbusSource
	Phase          ChargePhase
	PowerGood      bool
	USBInputSDP    bool
	VSYSRegulation bool
}

func (d *Device) Status() (Status, error) {
	v, err := hal.ReadReg(d.regs, reg0B)
	if err != nil {
		return Status{}, err
	}
	return Status{
		Source:         VbusSource(v >> 5),
		Phase:          ChargePhase((v >> 3) & 0x03),
		PowerGood:      v&(1<<2) != 0,
		USBInputSDP:    v&(1<<1) != 0,
		VSYSRegulation: v&1 != 0,
	}, nil
}

// ChargeFault is CHRG_FAULT.
type ChargeFault uint8

const (
	ChargeFaultNone ChargeFault = iota
	ChargeFaultInput
	ChargeFaultThermal
	ChargeFaultSafetyTimer
)

// NTC fault codes (NTC_FAULT, buck mode).
const (
	NTCNormal = 0b000
	NTCWarm   = 0b010
	NTCCool   = 0b011
	NTCCold   = 0b101
	NTCHot    = 0b110
)

// Faults is the decoded REG0C.
type Faults struct {
	Watchdog bool
	Boost    bool
	Charge   ChargeFault
	Battery  bool
	NTC      uint8
}

// Any reports whether any fault bit is set.
func (f Faults) Any() bool {
	return f.Watchdog || f.Boost || f.Charge != ChargeFaultNone || f.Battery || f.NTC != NTCNormal
}

func decodeFaults(v byte) Faults {
	return Faults{
		Watchdog: v&(1<<7) != 0,
		Boost:    v&(1<<6) != 0,
		Charge:   ChargeFault((v >> 4) & 0x03),
		Battery:  v&(1<<3) != 0,
		NTC:      v & 0x07,
	}
}

// Faults reads REG0C twice: the latched faults since the previous read, then
// the faults present now.
func (d *Device) Faults() (latched, now Faults, err error) {
	v1, err := hal.ReadReg(d.regs, reg0C)
	if err != nil {
		return Faults{}, Faults{}, err
	}
	v2, err := hal.ReadReg(d.regs, reg0C)
	if err != nil {
		return decodeFaults(v1), Faults{}, err
	}
	return decodeFaults(v1), decodeFaults(v2), nil
}

// ---------------- Telemetry (integer units) ----------------

func (d *Device) readADC(reg uint16) (byte, error) { return hal.ReadReg(d.regs, reg) }

// BatteryMilliV returns BATV (2304 mV + 20 mV/LSB).
func (d *Device) BatteryMilliV() (int32, error) {
	v, err := d.readADC(reg0E)
	if err != nil {
		return 0, err
	}
	return fieldBATV.Value(uint32(v & adcMask)), nil
}

// ThermalRegulation reports THERM_STAT.
func (d *Device) ThermalRegulation() (bool, error) {
	v, err := d.readADC(reg0E)
	return v&thermBit != 0, err
}

// SystemMilliV returns SYSV (2304 mV + 20 mV/LSB).
func (d *Device) SystemMilliV() (int32, error) {
	v, err := d.readADC(reg0F)
	if err != nil {
		return 0, err
	}
	return fieldSYSV.Value(uint32(v & adcMask)), nil
}

// VbusMilliV returns VBUSV (2600 mV + 100 mV/LSB), or 0 without a good input.
func (d *Device) VbusMilliV() (int32, error) {
	v, err := d.readADC(reg11)
	if err != nil {
		return 0, err
	}
	if v&vbusGoodBit == 0 {
		return 0, nil
	}
	return fieldVBUSV.Value(uint32(v & adcMask)), nil
}

// ChargeCurrentMilliA returns ICHGR (50 mA/LSB).
func (d *Device) ChargeCurrentMilliA() (int32, error) {
	v, err := d.readADC(reg12)
	if err != nil {
		return 0, err
	}
	return fieldICHGR.Value(uint32(v & adcMask)), nil
}

// TSMilliPercent returns the TS pin voltage as thousandths of a percent of
// REGN (21% + 0.465%/LSB).
func (d *Device) TSMilliPercent() (int32, error) {
	v, err := d.readADC(reg10)
	if err != nil {
		return 0, err
	}
	return fieldTSPCT.Value(uint32(v & adcMask)), nil
}

// Telemetry is a snapshot of all ADC readings.
type Telemetry struct {
	Battery_mV int32
	System_mV  int32
	Vbus_mV    int32
	Charge_mA  int32
	TS_mPct    int32
}

// ReadTelemetry gathers every ADC field. A failed field is left zero and
// the errors are returned together.
func (d *Device) ReadTelemetry() (Telemetry, error) {
	var t Telemetry
	var err, e error
	t.Battery_mV, e = d.BatteryMilliV()
	err = errcode.Append(err, e)
	t.System_mV, e = d.SystemMilliV()
	err = errcode.Append(err, e)
	t.Vbus_mV, e = d.VbusMilliV()
	err = errcode.Append(err, e)
	t.Charge_mA, e = d.ChargeCurrentMilliA()
	err = errcode.Append(err, e)
	t.TS_mPct, e = d.TSMilliPercent()
	err = errcode.Append(err, e)
	return t, err
}
