// Package dtmf drives the CMX865A telephone signalling modem on DTMF Click
// boards: DTMF dialling and detection, V.23 / Bell 202 FSK and the line
// hook relay.
//
// The CMX865A is addressed over C-BUS, a SPI variant where each transaction
// is an address byte followed by zero, one or two data bytes (MSB first).
// Whether an address is read or written is fixed by the chip, so the plain
// SPI register strategy with no read flag serves.
package dtmf

import (
	"context"
	"errors"
	"time"

	"tinygo.org/x/drivers"

	"clickboards/clicks/hal"
	"clickboards/errcode"
)

var (
	ErrInvalidDigit = errors.New("dtmf: invalid dial digit")
	ErrBadMode      = errors.New("dtmf: unsupported mode")
	ErrTimeout      = &errcode.E{C: errcode.Timeout, Op: "dtmf", Msg: "modem not ready"}
)

// Mode selects the signalling used by SendFSK/ReceiveFSK and Detect.
type Mode uint8

const (
	ModeDTMF Mode = iota
	ModeV23
	ModeBell202
)

// Config holds pins and timings. Zero durations take the noted defaults.
type Config struct {
	CS   hal.PinOut // C-BUS chip select, active low
	Hook hal.PinOut // relay, high = off hook
	Ring hal.PinIn  // ring indicator, active low

	ToneOn  time.Duration // 100 ms
	ToneOff time.Duration // 100 ms
	Pause   time.Duration // 1 s per ',' in a dial string
	Settle  time.Duration // 20 ms after power-up
	// Level is the transmit attenuation in 1.5 dB steps (0..7).
	Level uint8
}

// Status is the decoded status register.
type Status struct {
	IRQ        bool
	TxReady    bool
	TxUnderrun bool
	RxReady    bool
	RxOverrun  bool
	RxFraming  bool
	DTMF       bool
	Code       uint8
}

// Device is a CMX865A.
type Device struct {
	regs hal.Registers
	cfg  Config
	mode Mode
	ring hal.PinIn
}

func New(bus drivers.SPI, cfg Config) *Device {
	def := func(d *time.Duration, v time.Duration) {
		if *d <= 0 {
			*d = v
		}
	}
	def(&cfg.ToneOn, 100*time.Millisecond)
	def(&cfg.ToneOff, 100*time.Millisecond)
	def(&cfg.Pause, time.Second)
	def(&cfg.Settle, 20*time.Millisecond)
	cfg.Hook = hal.OrNoOut(cfg.Hook)
	if cfg.Level > 7 {
		cfg.Level = 7
	}
	return &Device{
		regs: hal.NewSPI(bus, cfg.CS, hal.SPIConfig{}),
		cfg:  cfg,
		ring: cfg.Ring,
	}
}

func (d *Device) write16(reg uint16, v uint16) error { return hal.WriteU16BE(d.regs, reg, v) }

// Init resets the chip and powers it up, holding the internal reset until
// the oscillator has settled.
func (d *Device) Init() error {
	if err := d.regs.WriteRegs(regReset, nil); err != nil {
		return err
	}
	if err := d.write16(regGenCtrl, gcPowerUp|gcReset); err != nil {
		return err
	}
	time.Sleep(d.cfg.Settle)
	return d.write16(regGenCtrl, gcPowerUp)
}

// DefaultConfig enables the IRQ output for receive and DTMF events, turns
// on DTMF detection and leaves the transmitter idle. Every write is
// attempted.
func (d *Device) DefaultConfig() error {
	var err error
	err = errcode.Append(err, d.write16(regGenCtrl, gcPowerUp|gcIRQEnable|gcMaskRxReady|gcMaskDTMF))
	err = errcode.Append(err, d.write16(regRxMode, rxDTMF))
	err = errcode.Append(err, d.write16(regTxMode, txDisabled|d.level()))
	if err == nil {
		d.mode = ModeDTMF
	}
	return err
}

func (d *Device) level() uint16 { return uint16(d.cfg.Level) << levelShift & levelMask }

// Program writes the programming register (tone and filter coefficients).
func (d *Device) Program(v uint16) error { return d.write16(regProgram, v) }

// Status reads the status register. Reading clears the IRQ flag.
func (d *Device) Status() (Status, error) {
	var b [2]byte
	if err := d.regs.ReadRegs(regStatus, b[:]); err != nil {
		return Status{}, err
	}
	v := uint16(b[0])<<8 | uint16(b[1])
	return Status{
		IRQ:        v&stIRQ != 0,
		TxReady:    v&stTxReady != 0,
		TxUnderrun: v&stTxUnderrun != 0,
		RxReady:    v&stRxReady != 0,
		RxOverrun:  v&stRxOverrun != 0,
		RxFraming:  v&stRxFraming != 0,
		DTMF:       v&stDTMF != 0,
		Code:       uint8(v & stCodeMask),
	}, nil
}

// ---------------- Line ----------------

func (d *Device) OffHook() { d.cfg.Hook(true) }
func (d *Device) OnHook()  { d.cfg.Hook(false) }

// Ringing reports the ring indicator. Without an RI pin it reports false.
func (d *Device) Ringing() bool {
	if d.ring == nil {
		return false
	}
	return !d.ring()
}

// ---------------- DTMF ----------------

// digitCode maps a dial character to its 4-bit DTMF code.
func digitCode(c byte) (uint8, bool) {
	switch {
	case c >= '1' && c <= '9':
		return c - '0', true
	case c == '0':
		return 10, true
	case c == '*':
		return 11, true
	case c == '#':
		return 12, true
	case c >= 'A' && c <= 'C':
		return 13 + c - 'A', true
	case c >= 'a' && c <= 'c':
		return 13 + c - 'a', true
	case c == 'D' || c == 'd':
		return 0, true
	}
	return 0, false
}

const codeDigits = "D1234567890*#ABC"

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Dial transmits digits as DTMF tones. ',' inserts a pause. The whole string
// is validated before any tone is sent.
func (d *Device) Dial(ctx context.Context, digits string) error {
	for i := 0; i < len(digits); i++ {
		if _, ok := digitCode(digits[i]); !ok && digits[i] != ',' {
			return ErrInvalidDigit
		}
	}
	off := uint16(txDisabled) | d.level()
	for i := 0; i < len(digits); i++ {
		if digits[i] == ',' {
			if err := sleepCtx(ctx, d.cfg.Pause); err != nil {
				return err
			}
			continue
		}
		code, _ := digitCode(digits[i])
		if err := d.write16(regTxMode, txDTMF|d.level()|txDTMFSelect|uint16(code)); err != nil {
			return err
		}
		errOn := sleepCtx(ctx, d.cfg.ToneOn)
		if err := d.write16(regTxMode, off); err != nil {
			return err
		}
		if errOn != nil {
			return errOn
		}
		if err := sleepCtx(ctx, d.cfg.ToneOff); err != nil {
			return err
		}
	}
	return nil
}

// Detect reports a received DTMF digit, if the detector has one.
func (d *Device) Detect() (digit rune, ok bool, err error) {
	st, err := d.Status()
	if err != nil || !st.DTMF {
		return 0, false, err
	}
	return rune(codeDigits[st.Code&0x0F]), true, nil
}

// ---------------- FSK ----------------

// SetMode configures transmitter and receiver for DTMF or an FSK standard.
func (d *Device) SetMode(m Mode) error {
	var tx, rx uint16
	switch m {
	case ModeDTMF:
		tx, rx = txDisabled, rxDTMF
	case ModeV23:
		tx, rx = txV23|txDataFormat, rxV23|rxDataFormat
	case ModeBell202:
		tx, rx = txBell202|txDataFormat, rxBell202|rxDataFormat
	default:
		return ErrBadMode
	}
	var err error
	err = errcode.Append(err, d.write16(regTxMode, tx|d.level()))
	err = errcode.Append(err, d.write16(regRxMode, rx))
	if err == nil {
		d.mode = m
	}
	return err
}

// Mode returns the last mode set.
func (d *Device) Mode() Mode { return d.mode }

func (d *Device) waitStatus(ctx context.Context, bit func(Status) bool) (Status, error) {
	for {
		st, err := d.Status()
		if err != nil {
			return st, err
		}
		if bit(st) {
			return st, nil
		}
		if err := sleepCtx(ctx, time.Millisecond); err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return st, ErrTimeout
			}
			return st, err
		}
	}
}

// SendFSK transmits data one byte at a time as the transmit buffer empties.
func (d *Device) SendFSK(ctx context.Context, data []byte) error {
	if d.mode == ModeDTMF {
		return ErrBadMode
	}
	for _, b := range data {
		if _, err := d.waitStatus(ctx, func(s Status) bool { return s.TxReady }); err != nil {
			return err
		}
		if err := hal.WriteReg(d.regs, regTxData, b); err != nil {
			return err
		}
	}
	return nil
}

// ReceiveFSK waits for the next received byte.
func (d *Device) ReceiveFSK(ctx context.Context) (byte, error) {
	if d.mode == ModeDTMF {
		return 0, ErrBadMode
	}
	if _, err := d.waitStatus(ctx, func(s Status) bool { return s.RxReady }); err != nil {
		return 0, err
	}
	return hal.ReadReg(d.regs, regRxData)
}
