package board

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"clickboards/clicks/enocean5"
	"clickboards/clicks/ltecat16"
	"clickboards/clicks/stepper5"
	"clickboards/errcode"
)

func init() {
	RegisterBuilder("ltecat16", BuilderFunc(buildLTECat1))
	RegisterBuilder("stepper5", BuilderFunc(buildStepper5))
	RegisterBuilder("enocean5", BuilderFunc(buildEnOcean5))
}

// ---------------- ltecat16 ----------------

// maxURCs bounds the unsolicited lines held between reads.
const maxURCs = 32

type lteDevice struct {
	base
	drv *ltecat16.Device

	mu   sync.Mutex
	urcs []string
}

func buildLTECat1(in BuilderInput) (Device, error) {
	port, err := openSerial(in, 115200)
	if err != nil {
		return nil, err
	}
	c := in.Click
	d := &lteDevice{base: newBase(c)}
	cfg := ltecat16.Config{
		CommandTimeout: c.Duration("command_timeout", 0),
		OnURC:          d.urc,
	}
	if cfg.PowerKey, err = pinOut(in, "pwrkey"); err != nil {
		return nil, err
	}
	if cfg.Reset, err = pinOut(in, "rst"); err != nil {
		return nil, err
	}
	if cfg.Status, err = pinIn(in, "status"); err != nil {
		return nil, err
	}
	d.drv = ltecat16.New(port, cfg)
	return d, nil
}

func (d *lteDevice) urc(line string) {
	d.mu.Lock()
	if len(d.urcs) < maxURCs {
		d.urcs = append(d.urcs, line)
	}
	d.mu.Unlock()
}

func (d *lteDevice) takeURCs() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	u := d.urcs
	d.urcs = nil
	return u
}

// Probe powers the module on if a STATUS pin says it is off, then
// synchronises and applies the driver defaults.
func (d *lteDevice) Probe(ctx context.Context) error {
	if !d.drv.PoweredOn() {
		if err := d.drv.PowerOn(ctx); err != nil {
			return err
		}
	}
	return d.drv.DefaultConfig(ctx)
}

func (d *lteDevice) Read(ctx context.Context, emit Emit) error {
	var err error
	if s, e := d.drv.SignalQuality(ctx); e == nil {
		emit("rssi", s.RSSI)
		if s.Known() {
			emit("signal_dbm", s.DBm)
		}
	} else {
		err = errcode.Append(err, e)
	}
	if r, e := d.drv.Registration(ctx); e == nil {
		emit("registration", r.String())
	} else {
		err = errcode.Append(err, e)
	}
	if op, e := d.drv.Operator(ctx); e == nil {
		emit("operator", op)
	} else {
		err = errcode.Append(err, e)
	}
	for _, u := range d.takeURCs() {
		emit("urc", u)
	}
	return err
}

// Command runs one AT command. A leading "AT" is optional.
func (d *lteDevice) Command(ctx context.Context, line string) ([]string, error) {
	line = strings.TrimSpace(line)
	if len(line) >= 2 && strings.EqualFold(line[:2], "AT") {
		line = line[2:]
	}
	r, err := d.drv.Command(ctx, line)
	if err != nil {
		return nil, err
	}
	return r.Lines, nil
}

// ---------------- stepper5 ----------------

type stepperDevice struct {
	base
	drv        *stepper5.Device
	microsteps int
}

func buildStepper5(in BuilderInput) (Device, error) {
	port, err := openSerial(in, 115200)
	if err != nil {
		return nil, err
	}
	c := in.Click
	cfg := stepper5.Config{
		Echo:         c.Bool("echo", false),
		VerifyWrites: c.Bool("verify_writes", false),
		ReplyTimeout: c.Duration("reply_timeout", 0),
	}
	if cfg.Enable, err = pinOut(in, "en"); err != nil {
		return nil, err
	}
	if cfg.Dir, err = pinOut(in, "dir"); err != nil {
		return nil, err
	}
	if cfg.Step, err = pinOut(in, "step"); err != nil {
		return nil, err
	}
	return &stepperDevice{
		base:       newBase(c),
		drv:        stepper5.New(port, cfg),
		microsteps: c.Int("microsteps", 0),
	}, nil
}

func (d *stepperDevice) Probe(ctx context.Context) error {
	if err := d.drv.Init(ctx); err != nil {
		return err
	}
	err := d.drv.DefaultConfig(ctx)
	if d.microsteps != 0 {
		err = errcode.Append(err, d.drv.SetMicrosteps(ctx, d.microsteps))
	}
	return err
}

func (d *stepperDevice) Read(ctx context.Context, emit Emit) error {
	var err error
	if s, e := d.drv.DriverStatus(ctx); e == nil {
		emit("over_temp_warning", s.OverTempWarning)
		emit("over_temp", s.OverTemp)
		emit("short", s.ShortToGroundA || s.ShortToGroundB || s.ShortLowSideA || s.ShortLowSideB)
		emit("open_load", s.OpenLoadA || s.OpenLoadB)
		emit("current_scale", s.CurrentScale)
		emit("stealthchop", s.StealthChop)
		emit("standstill", s.Standstill)
	} else {
		err = errcode.Append(err, e)
	}
	if n, e := d.drv.Microsteps(ctx); e == nil {
		emit("microsteps", n)
	} else {
		err = errcode.Append(err, e)
	}
	return err
}

// ---------------- enocean5 ----------------

// maxTelegrams bounds the radio telegrams held between reads.
const maxTelegrams = 64

type enoceanDevice struct {
	base
	drv    *enocean5.Device
	listen time.Duration

	mu    sync.Mutex
	heard []enocean5.Packet
}

func buildEnOcean5(in BuilderInput) (Device, error) {
	port, err := openSerial(in, 57600)
	if err != nil {
		return nil, err
	}
	c := in.Click
	d := &enoceanDevice{base: newBase(c), listen: c.Duration("listen", time.Second)}
	cfg := enocean5.Config{
		ResponseTimeout: c.Duration("response_timeout", 0),
		OnPacket:        d.keep,
	}
	if cfg.Reset, err = pinOut(in, "rst"); err != nil {
		return nil, err
	}
	d.drv = enocean5.New(port, cfg)
	return d, nil
}

// keep holds packets that arrive while a command waits for its response.
func (d *enoceanDevice) keep(p enocean5.Packet) {
	d.mu.Lock()
	if len(d.heard) < maxTelegrams {
		d.heard = append(d.heard, p)
	}
	d.mu.Unlock()
}

func (d *enoceanDevice) take() []enocean5.Packet {
	d.mu.Lock()
	defer d.mu.Unlock()
	p := d.heard
	d.heard = nil
	return p
}

// Probe resets the module and checks that it answers CO_RD_VERSION.
func (d *enoceanDevice) Probe(ctx context.Context) error {
	if err := d.drv.Reset(ctx); err != nil {
		return err
	}
	_, err := d.drv.ReadVersion(ctx)
	return err
}

// Read reports the firmware version, then every packet heard during the
// listen window.
func (d *enoceanDevice) Read(ctx context.Context, emit Emit) error {
	v, err := d.drv.ReadVersion(ctx)
	if err == nil {
		emit("app_version", v.AppString())
		emit("chip_id", fmt.Sprintf("%08x", v.ChipID))
		emit("description", v.Description)
	}
	lctx, cancel := context.WithTimeout(ctx, d.listen)
	defer cancel()
	for {
		p, e := d.drv.Receive(lctx)
		if errors.Is(e, enocean5.ErrDataCRC) {
			continue
		}
		if e != nil {
			if !errors.Is(e, context.DeadlineExceeded) || ctx.Err() != nil {
				err = errcode.Append(err, e)
			}
			break
		}
		d.keep(p)
	}
	for _, p := range d.take() {
		emitPacket(emit, p)
	}
	return err
}

func emitPacket(emit Emit, p enocean5.Packet) {
	switch p.Type {
	case enocean5.TypeRadioERP1:
		t, err := enocean5.ParseTelegram(p)
		if err != nil {
			emit("bad_telegram", err.Error())
			return
		}
		emit("telegram", telegramString(t))
	case enocean5.TypeEvent:
		if ev, err := enocean5.ParseEvent(p); err == nil {
			emit("event", ev.Code.String())
		}
	default:
		emit("packet", p.Type.String())
	}
}

// telegramString renders "<rorg> <sender> <data>[ <dBm>dBm]" in hex.
func telegramString(t enocean5.Telegram) string {
	s := fmt.Sprintf("%02x %08x %x", t.RORG, t.SenderID, t.Data)
	if t.DBm != 0 {
		s += fmt.Sprintf(" %ddBm", t.DBm)
	}
	return s
}
