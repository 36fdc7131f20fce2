// Package stepper5 drives the TMC2208 stepper motor driver on Stepper 5
// Click boards.
//
// Configuration and diagnostics go over the single-wire UART interface using
// 8-byte write and 4-byte read-request datagrams; motion uses the STEP, DIR
// and EN pins (or VACTUAL for internal step generation).
package stepper5

import (
	"context"
	"errors"
	"time"

	"clickboards/clicks/hal"
	"clickboards/errcode"
	"clickboards/x/mathx"
)

var (
	ErrWrongDevice       = &errcode.E{C: errcode.WrongDevice, Op: "stepper5", Msg: "IOIN version is not TMC2208"}
	ErrTimeout           = &errcode.E{C: errcode.Timeout, Op: "stepper5", Msg: "no reply datagram"}
	ErrCRC               = &errcode.E{C: errcode.CRC, Op: "stepper5", Msg: "reply CRC mismatch"}
	ErrBadReply          = &errcode.E{C: errcode.Protocol, Op: "stepper5", Msg: "malformed reply datagram"}
	ErrWriteNotAcked     = &errcode.E{C: errcode.Protocol, Op: "stepper5", Msg: "IFCNT did not advance after write"}
	ErrInvalidMicrosteps = errors.New("stepper5: microsteps must be a power of two from 1 to 256")
)

// Config holds pins and UART options. Nil pins are treated as unconnected.
type Config struct {
	Enable hal.PinOut // EN, active low
	Dir    hal.PinOut
	Step   hal.PinOut

	// Echo discards transmitted bytes that the single-wire bus reflects
	// back onto RX.
	Echo bool
	// VerifyWrites checks every register write against IFCNT.
	VerifyWrites bool

	ReplyTimeout time.Duration // 50 ms
	StepPulse    time.Duration // 2 µs
}

// Device is a TMC2208.
type Device struct {
	s   *hal.Stream
	cfg Config

	tx [8]byte
	rx [8]byte
}

func New(port hal.Port, cfg Config) *Device {
	cfg.Enable = hal.OrNoOut(cfg.Enable)
	cfg.Dir = hal.OrNoOut(cfg.Dir)
	cfg.Step = hal.OrNoOut(cfg.Step)
	if cfg.ReplyTimeout <= 0 {
		cfg.ReplyTimeout = 50 * time.Millisecond
	}
	if cfg.StepPulse <= 0 {
		cfg.StepPulse = 2 * time.Microsecond
	}
	cfg.Enable(true) // outputs off until Enable
	cfg.Step(false)
	return &Device{s: hal.NewStream(port, 16), cfg: cfg}
}

// ---------------- UART datagrams ----------------

func (d *Device) send(ctx context.Context, b []byte) error {
	if _, err := d.s.Write(b); err != nil {
		return err
	}
	if !d.cfg.Echo {
		return nil
	}
	echo := d.rx[:len(b)]
	return d.s.ReadFull(ctx, echo)
}

func (d *Device) timeout(parent context.Context, err error) error {
	if parent.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}
	return err
}

// ReadRegister reads a 32-bit register.
func (d *Device) ReadRegister(parent context.Context, reg uint8) (uint32, error) {
	ctx, cancel := context.WithTimeout(parent, d.cfg.ReplyTimeout)
	defer cancel()

	d.s.Discard()
	d.tx[0], d.tx[1], d.tx[2] = syncByte, nodeAddr, reg&0x7F
	d.tx[3] = crc8(d.tx[:3])
	if err := d.send(ctx, d.tx[:4]); err != nil {
		return 0, d.timeout(parent, err)
	}
	// Hunt for the sync byte, then read the rest of the reply.
	for {
		b, err := d.s.ReadByteContext(ctx)
		if err != nil {
			return 0, d.timeout(parent, err)
		}
		if b == syncByte {
			break
		}
	}
	d.rx[0] = syncByte
	if err := d.s.ReadFull(ctx, d.rx[1:8]); err != nil {
		return 0, d.timeout(parent, err)
	}
	if crc8(d.rx[:7]) != d.rx[7] {
		return 0, ErrCRC
	}
	if d.rx[1] != masterAddr || d.rx[2] != reg&0x7F {
		return 0, ErrBadReply
	}
	return uint32(d.rx[3])<<24 | uint32(d.rx[4])<<16 | uint32(d.rx[5])<<8 | uint32(d.rx[6]), nil
}

// WriteRegister writes a 32-bit register. With VerifyWrites the interface
// counter is read before and after.
func (d *Device) WriteRegister(ctx context.Context, reg uint8, v uint32) error {
	var before uint32
	if d.cfg.VerifyWrites {
		var err error
		if before, err = d.ReadRegister(ctx, RegIFCNT); err != nil {
			return err
		}
	}
	d.tx[0], d.tx[1], d.tx[2] = syncByte, nodeAddr, reg|writeBit
	d.tx[3], d.tx[4], d.tx[5], d.tx[6] = byte(v>>24), byte(v>>16), byte(v>>8), byte(v)
	d.tx[7] = crc8(d.tx[:7])
	wctx, cancel := context.WithTimeout(ctx, d.cfg.ReplyTimeout)
	err := d.send(wctx, d.tx[:8])
	cancel()
	if err != nil {
		return d.timeout(ctx, err)
	}
	if !d.cfg.VerifyWrites {
		return nil
	}
	after, err := d.ReadRegister(ctx, RegIFCNT)
	if err != nil {
		return err
	}
	if byte(after) != byte(before+1) {
		return ErrWriteNotAcked
	}
	return nil
}

func (d *Device) update(ctx context.Context, reg uint8, mask, value uint32) error {
	cur, err := d.ReadRegister(ctx, reg)
	if err != nil {
		return err
	}
	next := cur&^mask | value&mask
	if next == cur {
		return nil
	}
	return d.WriteRegister(ctx, reg, next)
}

// ---------------- Setup ----------------

// Init checks the IOIN version field.
func (d *Device) Init(ctx context.Context) error {
	v, err := d.ReadRegister(ctx, RegIOIN)
	if err != nil {
		return err
	}
	if v>>24 != version {
		return ErrWrongDevice
	}
	return nil
}

// DefaultConfig selects UART control of microstepping and standstill
// current, sets run/hold currents, standstill power-down delay and a
// 16-microstep chopper configuration. Every write is attempted.
func (d *Device) DefaultConfig(ctx context.Context) error {
	var err error
	err = errcode.Append(err, d.WriteRegister(ctx, RegGCONF, gconfPDNDisable|gconfMstepRegSel|gconfMultistepFilt))
	err = errcode.Append(err, d.SetCurrent(ctx, 16, 8, 1))
	err = errcode.Append(err, d.WriteRegister(ctx, RegTPOWERDOWN, 20))
	err = errcode.Append(err, d.WriteRegister(ctx, RegCHOPCONF, chopDefault&^chopMresMask|4<<chopMresShift))
	return err
}

// SetMicrosteps sets the MRES field. n is 1, 2, 4, ..., 256.
func (d *Device) SetMicrosteps(ctx context.Context, n int) error {
	mres := -1
	for i := 0; i <= 8; i++ {
		if 256>>i == n {
			mres = i
		}
	}
	if mres < 0 {
		return ErrInvalidMicrosteps
	}
	return d.update(ctx, RegCHOPCONF, chopMresMask, uint32(mres)<<chopMresShift)
}

// Microsteps reads back the MRES field as microsteps per full step.
func (d *Device) Microsteps(ctx context.Context) (int, error) {
	v, err := d.ReadRegister(ctx, RegCHOPCONF)
	if err != nil {
		return 0, err
	}
	mres := (v & chopMresMask) >> chopMresShift
	if mres > 8 {
		mres = 8
	}
	return 256 >> mres, nil
}

// SetCurrent sets IRUN and IHOLD (0..31, clamped) and IHOLDDELAY (0..15).
func (d *Device) SetCurrent(ctx context.Context, run, hold, delay int) error {
	run = mathx.Clamp(run, 0, 31)
	hold = mathx.Clamp(hold, 0, 31)
	delay = mathx.Clamp(delay, 0, 15)
	return d.WriteRegister(ctx, RegIHOLDIRUN, uint32(hold)|uint32(run)<<8|uint32(delay)<<16)
}

// SetVelocity moves the motor using the internal pulse generator. v is in
// microsteps per t (≈0.715 Hz at 12 MHz), clamped to 24-bit signed; 0
// returns control to the STEP input.
func (d *Device) SetVelocity(ctx context.Context, v int32) error {
	v = mathx.Clamp(v, -vactualMax, vactualMax)
	return d.WriteRegister(ctx, RegVACTUAL, uint32(v)&0xFFFFFF)
}

// SetStealthChop selects StealthChop (true) or SpreadCycle.
func (d *Device) SetStealthChop(ctx context.Context, on bool) error {
	var v uint32
	if !on {
		v = gconfSpreadCycle
	}
	return d.update(ctx, RegGCONF, gconfSpreadCycle, v)
}

// SetInverted reverses the motor direction in GCONF.shaft.
func (d *Device) SetInverted(ctx context.Context, inv bool) error {
	var v uint32
	if inv {
		v = gconfShaft
	}
	return d.update(ctx, RegGCONF, gconfShaft, v)
}

// ---------------- Status ----------------

// DriverStatus is the decoded DRV_STATUS register.
type DriverStatus struct {
	OverTempWarning bool // otpw
	OverTemp        bool // ot
	ShortToGroundA  bool // s2ga
	ShortToGroundB  bool // s2gb
	ShortLowSideA   bool // s2vsa
	ShortLowSideB   bool // s2vsb
	OpenLoadA       bool // ola
	OpenLoadB       bool // olb
	Temp120         bool // t120
	Temp143         bool
	Temp150         bool
	Temp157         bool
	CurrentScale    uint8 // cs_actual
	StealthChop     bool
	Standstill      bool // stst
}

func decodeDrvStatus(v uint32) DriverStatus {
	bit := func(n uint) bool { return v&(1<<n) != 0 }
	return DriverStatus{
		OverTempWarning: bit(0),
		OverTemp:        bit(1),
		ShortToGroundA:  bit(2),
		ShortToGroundB:  bit(3),
		ShortLowSideA:   bit(4),
		ShortLowSideB:   bit(5),
		OpenLoadA:       bit(6),
		OpenLoadB:       bit(7),
		Temp120:         bit(8),
		Temp143:         bit(9),
		Temp150:         bit(10),
		Temp157:         bit(11),
		CurrentScale:    uint8(v>>16) & 0x1F,
		StealthChop:     bit(30),
		Standstill:      bit(31),
	}
}

func (d *Device) DriverStatus(ctx context.Context) (DriverStatus, error) {
	v, err := d.ReadRegister(ctx, RegDRVSTATUS)
	if err != nil {
		return DriverStatus{}, err
	}
	return decodeDrvStatus(v), nil
}

// GlobalStatus is GSTAT.
type GlobalStatus struct {
	Reset            bool
	DriverError      bool
	ChargePumpUnderV bool
}

func (d *Device) GlobalStatus(ctx context.Context) (GlobalStatus, error) {
	v, err := d.ReadRegister(ctx, RegGSTAT)
	if err != nil {
		return GlobalStatus{}, err
	}
	return GlobalStatus{
		Reset:            v&gstatReset != 0,
		DriverError:      v&gstatDrvErr != 0,
		ChargePumpUnderV: v&gstatUVCP != 0,
	}, nil
}

// ClearGlobalStatus clears all GSTAT flags (write 1 to clear).
func (d *Device) ClearGlobalStatus(ctx context.Context) error {
	return d.WriteRegister(ctx, RegGSTAT, gstatReset|gstatDrvErr|gstatUVCP)
}

// ---------------- Pins ----------------

// Enable switches the motor outputs on (EN low) or off.
func (d *Device) Enable(on bool) { d.cfg.Enable(!on) }

// SetDirection drives DIR.
func (d *Device) SetDirection(cw bool) { d.cfg.Dir(cw) }

// Step issues n STEP pulses, one per interval, in the direction last set.
// A negative n drives DIR counter-clockwise first and issues |n| pulses. It
// returns the number of pulses issued (never negative) and ctx's error if
// cancelled early.
func (d *Device) Step(ctx context.Context, n int, interval time.Duration) (int, error) {
	if n < 0 {
		d.SetDirection(false)
		n = mathx.Abs(n)
	}
	low := interval - d.cfg.StepPulse
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return i, err
		}
		d.cfg.Step(true)
		time.Sleep(d.cfg.StepPulse)
		d.cfg.Step(false)
		if low > 0 && i < n-1 {
			time.Sleep(low)
		}
	}
	return n, nil
}
