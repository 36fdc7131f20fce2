// Package ltecat16 drives LTE Cat.1 Click boards: an LTE modem controlled
// with AT commands over a UART, plus PWRKEY/RESET/STATUS lines.
//
// Design notes:
//   - One command in flight at a time. Command writes "AT<cmd>\r" and
//     collects lines until a final result code.
//   - Lines that are not part of the running command's answer (network
//     registration changes, new-SMS indications, RING, ...) are passed to
//     Config.OnURC as they arrive.
//   - SMS is sent and read in PDU mode (see pdu.go).
package ltecat16

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"clickboards/clicks/hal"
	"clickboards/errcode"
	"clickboards/x/conv"
	"clickboards/x/mathx"
)

var (
	ErrTimeout     = &errcode.E{C: errcode.Timeout, Op: "ltecat16", Msg: "no final result from modem"}
	ErrNoResponse  = &errcode.E{C: errcode.NotReady, Op: "ltecat16", Msg: "modem does not answer AT"}
	ErrPowerStatus = &errcode.E{C: errcode.Timeout, Op: "ltecat16", Msg: "STATUS did not change after PWRKEY"}
	ErrUnexpected  = &errcode.E{C: errcode.Protocol, Op: "ltecat16", Msg: "unexpected response"}
	ErrInvalidArg  = errors.New("ltecat16: invalid argument")
)

// Config holds the UART-side wiring and timings. Zero durations take the
// defaults noted per field.
type Config struct {
	PowerKey hal.PinOut // PWRKEY, driven high to press
	Reset    hal.PinOut // RESET, driven high to assert
	Status   hal.PinIn  // STATUS, high while the module is on

	CommandTimeout time.Duration // 5 s
	SMSTimeout     time.Duration // 60 s, AT+CMGS
	PowerOnPulse   time.Duration // 500 ms
	PowerOffPulse  time.Duration // 800 ms
	ResetPulse     time.Duration // 150 ms
	BootTimeout    time.Duration // 10 s, STATUS change after PWRKEY
	SyncAttempts   int           // 10, "AT" probes in Sync
	MaxLine        int           // 512

	// OnURC receives unsolicited lines. It runs on the caller's goroutine
	// and must not issue commands.
	OnURC func(line string)
}

func (c Config) withDefaults() Config {
	def := func(d *time.Duration, v time.Duration) {
		if *d <= 0 {
			*d = v
		}
	}
	def(&c.CommandTimeout, 5*time.Second)
	def(&c.SMSTimeout, 60*time.Second)
	def(&c.PowerOnPulse, 500*time.Millisecond)
	def(&c.PowerOffPulse, 800*time.Millisecond)
	def(&c.ResetPulse, 150*time.Millisecond)
	def(&c.BootTimeout, 10*time.Second)
	if c.SyncAttempts <= 0 {
		c.SyncAttempts = 10
	}
	if c.MaxLine <= 0 {
		c.MaxLine = 512
	}
	c.PowerKey = hal.OrNoOut(c.PowerKey)
	c.Reset = hal.OrNoOut(c.Reset)
	return c
}

// Device is an LTE Cat.1 modem.
type Device struct {
	s   *hal.Stream
	cfg Config
	wb  []byte
}

// New wraps port. No bytes are sent until the first call.
func New(port hal.Port, cfg Config) *Device {
	cfg = cfg.withDefaults()
	cfg.PowerKey(false)
	cfg.Reset(false)
	return &Device{s: hal.NewStream(port, cfg.MaxLine), cfg: cfg, wb: make([]byte, 0, 64)}
}

// ---------------- Power ----------------

// PoweredOn reports the STATUS line. Without a STATUS pin it reports true.
func (d *Device) PoweredOn() bool {
	if d.cfg.Status == nil {
		return true
	}
	return d.cfg.Status()
}

func (d *Device) waitStatus(ctx context.Context, on bool) error {
	if d.cfg.Status == nil {
		return nil
	}
	deadline := time.Now().Add(d.cfg.BootTimeout)
	for d.cfg.Status() != on {
		if time.Now().After(deadline) {
			return ErrPowerStatus
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(20 * time.Millisecond):
		}
	}
	return nil
}

// PowerOn presses PWRKEY unless STATUS already shows the module on, then
// waits for STATUS to go high.
func (d *Device) PowerOn(ctx context.Context) error {
	if d.cfg.Status != nil && d.cfg.Status() {
		return nil
	}
	hal.Pulse(d.cfg.PowerKey, true, d.cfg.PowerOnPulse)
	d.s.Discard()
	return d.waitStatus(ctx, true)
}

// PowerOff presses PWRKEY for the power-down duration and waits for STATUS
// to drop.
func (d *Device) PowerOff(ctx context.Context) error {
	if d.cfg.Status != nil && !d.cfg.Status() {
		return nil
	}
	hal.Pulse(d.cfg.PowerKey, true, d.cfg.PowerOffPulse)
	return d.waitStatus(ctx, false)
}

// HardReset pulses the RESET line.
func (d *Device) HardReset() {
	hal.Pulse(d.cfg.Reset, true, d.cfg.ResetPulse)
	d.s.Discard()
}

// ---------------- Command engine ----------------

// Command runs "AT"+cmd with the default command timeout.
func (d *Device) Command(ctx context.Context, cmd string) (*Response, error) {
	return d.exec(ctx, cmd, nil, d.cfg.CommandTimeout)
}

// Set runs "AT<cmd>=<args>" with args joined by commas.
func (d *Device) Set(ctx context.Context, cmd string, args ...string) (*Response, error) {
	return d.Command(ctx, cmd+"="+strings.Join(args, ","))
}

// exec runs one command. When body is non-nil the engine waits for the "> "
// prompt, then sends body followed by Ctrl-Z.
func (d *Device) exec(parent context.Context, cmd string, body []byte, timeout time.Duration) (*Response, error) {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	d.wb = append(append(append(d.wb[:0], "AT"...), cmd...), '\r')
	if _, err := d.s.Write(d.wb); err != nil {
		return nil, err
	}

	echo := "AT" + cmd
	expect := responsePrefix(cmd)
	resp := &Response{}
	waitPrompt := body != nil
	for {
		var (
			raw      []byte
			prompted bool
			err      error
		)
		if waitPrompt {
			raw, prompted, err = d.s.ReadLinePrompt(ctx, "> ")
		} else {
			raw, err = d.s.ReadLine(ctx)
		}
		if err != nil {
			if errors.Is(err, hal.ErrLineTooLong) {
				continue
			}
			if parent.Err() == nil && ctx.Err() != nil {
				return nil, ErrTimeout
			}
			return nil, err
		}
		if prompted {
			waitPrompt = false
			d.wb = append(append(d.wb[:0], body...), 0x1A)
			if _, err := d.s.Write(d.wb); err != nil {
				return nil, err
			}
			continue
		}
		line := strings.TrimSpace(string(raw))
		if line == "" || line == echo {
			continue
		}
		if r, detail, ok := finalResult(line); ok {
			if r == ResultOK {
				return resp, nil
			}
			return resp, newCommandError(cmd, r, detail)
		}
		if isURC(line, expect) {
			d.urc(line)
			continue
		}
		resp.Lines = append(resp.Lines, line)
	}
}

func (d *Device) urc(line string) {
	if d.cfg.OnURC != nil {
		d.cfg.OnURC(line)
	}
}

// Listen delivers unsolicited lines to OnURC until ctx is done.
func (d *Device) Listen(ctx context.Context) error {
	for {
		raw, err := d.s.ReadLine(ctx)
		if err != nil {
			if errors.Is(err, hal.ErrLineTooLong) {
				continue
			}
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if line := strings.TrimSpace(string(raw)); line != "" {
			d.urc(line)
		}
	}
}

// Sync probes with "AT" until the modem answers OK, for at most
// SyncAttempts tries of 500 ms each. Autobaud modules need this after boot.
func (d *Device) Sync(ctx context.Context) error {
	for i := 0; i < d.cfg.SyncAttempts; i++ {
		_, err := d.exec(ctx, "", nil, 500*time.Millisecond)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return ErrNoResponse
}

// DefaultConfig synchronises and puts the modem in the mode the rest of the
// driver expects: echo off, numeric +CME errors, SMS PDU mode. Every step
// is attempted.
func (d *Device) DefaultConfig(ctx context.Context) error {
	var err error
	err = errcode.Append(err, d.Sync(ctx))
	for _, c := range [...]string{"E0", "+CMEE=1", "+CMGF=0"} {
		_, e := d.Command(ctx, c)
		err = errcode.Append(err, e)
	}
	return err
}

// ---------------- Queries ----------------

// Signal is the AT+CSQ report.
type Signal struct {
	RSSI int // 0..31, 99 unknown
	BER  int // 0..7, 99 unknown
	DBm  int // 0 when unknown
}

// Known reports whether the modem has a signal estimate.
func (s Signal) Known() bool { return s.RSSI != 99 }

func (d *Device) SignalQuality(ctx context.Context) (Signal, error) {
	r, err := d.Command(ctx, "+CSQ")
	if err != nil {
		return Signal{}, err
	}
	f := r.Fields("+CSQ")
	if len(f) < 2 {
		return Signal{}, ErrUnexpected
	}
	rssi, ok1 := conv.Atoi(f[0])
	ber, ok2 := conv.Atoi(f[1])
	if !ok1 || !ok2 {
		return Signal{}, ErrUnexpected
	}
	s := Signal{RSSI: rssi, BER: ber}
	if rssi != 99 {
		s.DBm = -113 + 2*rssi
	}
	return s, nil
}

// RegStatus is the <stat> of +CREG/+CEREG.
type RegStatus int

const (
	RegNotSearching RegStatus = iota
	RegHome
	RegSearching
	RegDenied
	RegUnknown
	RegRoaming
)

func (s RegStatus) String() string {
	switch s {
	case RegNotSearching:
		return "not_searching"
	case RegHome:
		return "home"
	case RegSearching:
		return "searching"
	case RegDenied:
		return "denied"
	case RegRoaming:
		return "roaming"
	}
	return "unknown"
}

// Registered reports home or roaming registration.
func (s RegStatus) Registered() bool { return s == RegHome || s == RegRoaming }

func (d *Device) regQuery(ctx context.Context, cmd string) (RegStatus, error) {
	r, err := d.Command(ctx, cmd+"?")
	if err != nil {
		return RegUnknown, err
	}
	f := r.Fields(cmd)
	if len(f) < 2 {
		return RegUnknown, ErrUnexpected
	}
	n, ok := conv.Atoi(f[1])
	if !ok {
		return RegUnknown, ErrUnexpected
	}
	return RegStatus(n), nil
}

// Registration reports EPS registration, falling back to circuit-switched
// +CREG when +CEREG fails or shows no registration.
func (d *Device) Registration(ctx context.Context) (RegStatus, error) {
	st, err := d.regQuery(ctx, "+CEREG")
	if err == nil && st.Registered() {
		return st, nil
	}
	cs, err2 := d.regQuery(ctx, "+CREG")
	if err2 != nil {
		if err == nil {
			return st, nil
		}
		return RegUnknown, errcode.Combine(err, err2)
	}
	return cs, nil
}

// Operator returns the registered operator name, or "" when none.
func (d *Device) Operator(ctx context.Context) (string, error) {
	r, err := d.Command(ctx, "+COPS?")
	if err != nil {
		return "", err
	}
	f := r.Fields("+COPS")
	if len(f) < 3 {
		return "", nil
	}
	return f[2], nil
}

// IMEI returns the product serial number (AT+CGSN).
func (d *Device) IMEI(ctx context.Context) (string, error) {
	r, err := d.Command(ctx, "+CGSN")
	if err != nil {
		return "", err
	}
	for _, l := range r.Lines {
		if v, ok := strings.CutPrefix(l, "+CGSN:"); ok {
			l = strings.Trim(strings.TrimSpace(v), `"`)
		}
		if isDigits(l) {
			return l, nil
		}
	}
	return "", ErrUnexpected
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func quote(s string) string { return `"` + s + `"` }

// SetAPN defines PDP context cid (AT+CGDCONT). pdpType is "IP", "IPV6" or
// "IPV4V6".
func (d *Device) SetAPN(ctx context.Context, cid int, pdpType, apn string) error {
	if !mathx.Between(cid, 1, 15) || pdpType == "" {
		return ErrInvalidArg
	}
	_, err := d.Set(ctx, "+CGDCONT", strconv.Itoa(cid), quote(pdpType), quote(apn))
	return err
}

// Attach attaches to or detaches from the packet domain.
func (d *Device) Attach(ctx context.Context, on bool) error {
	v := "0"
	if on {
		v = "1"
	}
	_, err := d.Set(ctx, "+CGATT", v)
	return err
}

// Dial starts a voice call.
func (d *Device) Dial(ctx context.Context, number string) error {
	if number == "" || strings.ContainsAny(number, ";\r\n") {
		return ErrInvalidArg
	}
	_, err := d.Command(ctx, "D"+number+";")
	return err
}

// HangUp ends the active call.
func (d *Device) HangUp(ctx context.Context) error {
	_, err := d.Command(ctx, "H")
	return err
}

// ---------------- SMS ----------------

// SendSMS sends text to the given number and returns the message reference.
// smsc may be empty to use the SIM's service centre.
func (d *Device) SendSMS(ctx context.Context, smsc, to, text string) (int, error) {
	p, err := EncodeSubmit(Submit{SMSC: smsc, To: to, Text: text})
	if err != nil {
		return 0, err
	}
	r, err := d.exec(ctx, "+CMGS="+strconv.Itoa(p.TPDULen), []byte(p.Hex), d.cfg.SMSTimeout)
	if err != nil {
		return 0, err
	}
	v, ok := r.Value("+CMGS")
	if !ok {
		return 0, ErrUnexpected
	}
	mr, ok := conv.Atoi(v)
	if !ok {
		return 0, ErrUnexpected
	}
	return mr, nil
}

// ReadSMS reads and decodes the message stored at index.
func (d *Device) ReadSMS(ctx context.Context, index int) (Deliver, error) {
	r, err := d.Command(ctx, "+CMGR="+strconv.Itoa(index))
	if err != nil {
		return Deliver{}, err
	}
	for i, l := range r.Lines {
		if strings.HasPrefix(l, "+CMGR:") && i+1 < len(r.Lines) {
			return DecodeDeliver(r.Lines[i+1])
		}
	}
	return Deliver{}, ErrUnexpected
}

// DeleteSMS removes the message stored at index.
func (d *Device) DeleteSMS(ctx context.Context, index int) error {
	_, err := d.Set(ctx, "+CMGD", strconv.Itoa(index))
	return err
}

// NewMessageIndex parses a "+CMTI: <mem>,<index>" URC.
func NewMessageIndex(line string) (int, bool) {
	v, ok := strings.CutPrefix(line, "+CMTI:")
	if !ok {
		return 0, false
	}
	f := Fields(v)
	if len(f) < 2 {
		return 0, false
	}
	return conv.Atoi(f[1])
}
