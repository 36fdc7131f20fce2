// Package enocean5 drives the TCM 310 EnOcean transceiver on EnOcean 5
// Click boards through the ESP3 serial protocol (57600 8N1).
package enocean5

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"time"

	"clickboards/clicks/hal"
	"clickboards/errcode"
)

var (
	ErrTimeout    = &errcode.E{C: errcode.Timeout, Op: "enocean5", Msg: "no response"}
	ErrInvalidArg = &errcode.E{C: errcode.InvalidParams, Op: "enocean5", Msg: "invalid argument"}
)

// Common command codes.
const (
	CmdWriteSleep    = 0x01
	CmdWriteReset    = 0x02
	CmdReadVersion   = 0x03
	CmdReadSysLog    = 0x04
	CmdWriteBIST     = 0x06
	CmdWriteIDBase   = 0x07
	CmdReadIDBase    = 0x08
	CmdWriteRepeater = 0x09
	CmdReadRepeater  = 0x0A
)

// ReturnCode is the first data byte of a RESPONSE packet.
type ReturnCode uint8

const (
	RetOK              ReturnCode = 0
	RetError           ReturnCode = 1
	RetNotSupported    ReturnCode = 2
	RetWrongParam      ReturnCode = 3
	RetOperationDenied ReturnCode = 4
	RetLockSet         ReturnCode = 5
	RetBufferTooSmall  ReturnCode = 6
	RetNoFreeBuffer    ReturnCode = 7
)

var retNames = [...]string{
	"OK", "ERROR", "NOT_SUPPORTED", "WRONG_PARAM",
	"OPERATION_DENIED", "LOCK_SET", "BUFFER_TOO_SMALL", "NO_FREE_BUFFER",
}

func (r ReturnCode) String() string {
	if int(r) < len(retNames) {
		return retNames[r]
	}
	return fmt.Sprintf("RET_%d", uint8(r))
}

// ReturnCodeError reports a command the module answered with a non-OK code.
type ReturnCodeError struct {
	Command byte
	Code    ReturnCode
}

func (e *ReturnCodeError) Error() string {
	return fmt.Sprintf("enocean5: command %#02x: %s", e.Command, e.Code)
}

func (e *ReturnCodeError) ErrCode() errcode.Code {
	switch e.Code {
	case RetNotSupported:
		return errcode.Unsupported
	case RetWrongParam:
		return errcode.InvalidParams
	case RetOperationDenied, RetLockSet, RetNoFreeBuffer:
		return errcode.Busy
	}
	return errcode.Error
}

// Response is a RESPONSE packet with the return code split off.
type Response struct {
	Code     ReturnCode
	Data     []byte
	Optional []byte
}

// Config holds the reset pin, timeouts and the handler for packets that
// arrive while a command is waiting for its response.
type Config struct {
	Reset           hal.PinOut    // active low
	ResetPulse      time.Duration // 10 ms
	ResponseTimeout time.Duration // 500 ms
	OnPacket        func(Packet)
}

// Device is an ESP3 transceiver on a serial port.
type Device struct {
	s   *hal.Stream
	dec Decoder
	cfg Config
	tx  []byte
}

func New(port hal.Port, cfg Config) *Device {
	cfg.Reset = hal.OrNoOut(cfg.Reset)
	if cfg.ResetPulse <= 0 {
		cfg.ResetPulse = 10 * time.Millisecond
	}
	if cfg.ResponseTimeout <= 0 {
		cfg.ResponseTimeout = 500 * time.Millisecond
	}
	cfg.Reset(true)
	return &Device{s: hal.NewStream(port, 16), cfg: cfg}
}

// Reset pulses the reset line and drops anything already received. The
// module announces itself afterwards with a CO_READY event.
func (d *Device) Reset(ctx context.Context) error {
	d.cfg.Reset(false)
	t := time.NewTimer(d.cfg.ResetPulse)
	defer t.Stop()
	select {
	case <-ctx.Done():
		d.cfg.Reset(true)
		return ctx.Err()
	case <-t.C:
	}
	d.cfg.Reset(true)
	d.s.Discard()
	d.dec.Reset()
	return nil
}

// Send frames and writes one packet.
func (d *Device) Send(ctx context.Context, p Packet) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b, err := appendPacket(d.tx[:0], p)
	if err != nil {
		return err
	}
	d.tx = b
	_, err = d.s.Write(b)
	return err
}

// Receive returns the next packet with valid checksums. Frames with a bad
// data checksum are reported as ErrDataCRC.
func (d *Device) Receive(ctx context.Context) (Packet, error) {
	for {
		b, err := d.s.ReadByteContext(ctx)
		if err != nil {
			return Packet{}, err
		}
		p, ok, err := d.dec.Feed(b)
		if err != nil {
			return Packet{}, err
		}
		if ok {
			return p, nil
		}
	}
}

// Command sends a COMMON_COMMAND and waits for its RESPONSE. Other packets
// received meanwhile go to OnPacket. A non-OK return code is returned as
// *ReturnCodeError alongside the response.
func (d *Device) Command(ctx context.Context, code byte, args ...byte) (Response, error) {
	data := make([]byte, 0, 1+len(args))
	data = append(append(data, code), args...)
	if err := d.Send(ctx, Packet{Type: TypeCommonCommand, Data: data}); err != nil {
		return Response{}, err
	}
	return d.awaitResponse(ctx, code)
}

func (d *Device) awaitResponse(parent context.Context, code byte) (Response, error) {
	ctx, cancel := context.WithTimeout(parent, d.cfg.ResponseTimeout)
	defer cancel()
	for {
		p, err := d.Receive(ctx)
		switch {
		case errors.Is(err, context.DeadlineExceeded) && parent.Err() == nil:
			return Response{}, ErrTimeout
		case errors.Is(err, ErrDataCRC):
			continue
		case err != nil:
			return Response{}, err
		}
		if p.Type != TypeResponse {
			if d.cfg.OnPacket != nil {
				d.cfg.OnPacket(p)
			}
			continue
		}
		if len(p.Data) == 0 {
			return Response{}, ErrBadPacket
		}
		r := Response{Code: ReturnCode(p.Data[0]), Data: p.Data[1:], Optional: p.Optional}
		if r.Code != RetOK {
			return r, &ReturnCodeError{Command: code, Code: r.Code}
		}
		return r, nil
	}
}

// Version is the CO_RD_VERSION reply.
type Version struct {
	App         [4]byte
	API         [4]byte
	ChipID      uint32
	ChipVersion uint32
	Description string
}

func (v Version) AppString() string {
	return fmt.Sprintf("%d.%d.%d.%d", v.App[0], v.App[1], v.App[2], v.App[3])
}

func (d *Device) ReadVersion(ctx context.Context) (Version, error) {
	r, err := d.Command(ctx, CmdReadVersion)
	if err != nil {
		return Version{}, err
	}
	if len(r.Data) < 16 {
		return Version{}, ErrBadPacket
	}
	var v Version
	copy(v.App[:], r.Data[0:4])
	copy(v.API[:], r.Data[4:8])
	v.ChipID = binary.BigEndian.Uint32(r.Data[8:12])
	v.ChipVersion = binary.BigEndian.Uint32(r.Data[12:16])
	if len(r.Data) > 16 {
		v.Description = strings.TrimRight(string(r.Data[16:]), "\x00 ")
	}
	return v, nil
}

// ReadIDBase returns the first ID of the module's 128-ID sender range and,
// when reported, the number of base ID changes left.
func (d *Device) ReadIDBase(ctx context.Context) (base uint32, remaining int, err error) {
	r, err := d.Command(ctx, CmdReadIDBase)
	if err != nil {
		return 0, 0, err
	}
	if len(r.Data) < 4 {
		return 0, 0, ErrBadPacket
	}
	remaining = -1
	if len(r.Optional) > 0 {
		remaining = int(r.Optional[0])
	}
	return binary.BigEndian.Uint32(r.Data), remaining, nil
}

// WriteIDBase changes the base ID. It must be 128-aligned within
// 0xFF800000..0xFFFFFF80; the module allows only a few changes in its life.
func (d *Device) WriteIDBase(ctx context.Context, base uint32) error {
	if base < 0xFF800000 || base&0x7F != 0 {
		return ErrInvalidArg
	}
	_, err := d.Command(ctx, CmdWriteIDBase, byte(base>>24), byte(base>>16), byte(base>>8), byte(base))
	return err
}

// SoftReset restarts the module firmware.
func (d *Device) SoftReset(ctx context.Context) error {
	_, err := d.Command(ctx, CmdWriteReset)
	return err
}

// SetRepeater sets the repeater level: 0 off, 1 or 2 hops.
func (d *Device) SetRepeater(ctx context.Context, level int) error {
	var enable byte
	switch level {
	case 0:
	case 1, 2:
		enable = 1
	default:
		return ErrInvalidArg
	}
	_, err := d.Command(ctx, CmdWriteRepeater, enable, byte(level))
	return err
}
