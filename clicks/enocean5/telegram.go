package enocean5

import (
	"context"
	"encoding/binary"
	"fmt"
)

// RORG values.
const (
	RORGRPS = 0xF6
	RORG1BS = 0xD5
	RORG4BS = 0xA5
	RORGVLD = 0xD2
)

// Broadcast is the destination of unaddressed telegrams.
const Broadcast = 0xFFFFFFFF

// Telegram is an ERP1 radio telegram.
type Telegram struct {
	RORG        byte
	Data        []byte
	SenderID    uint32
	Status      byte
	Destination uint32 // 0 sends to Broadcast
	// Received only.
	SubTelegrams uint8
	DBm          int // negative; 0 when not reported
	Security     uint8
}

func payloadOK(rorg byte, n int) bool {
	switch rorg {
	case RORGRPS, RORG1BS:
		return n == 1
	case RORG4BS:
		return n == 4
	}
	return n >= 1 && n <= 14 // VLD and others
}

// SendTelegram transmits t as a RADIO_ERP1 packet.
func (d *Device) SendTelegram(ctx context.Context, t Telegram) error {
	if !payloadOK(t.RORG, len(t.Data)) {
		return ErrInvalidArg
	}
	dest := t.Destination
	if dest == 0 {
		dest = Broadcast
	}
	data := make([]byte, 0, 1+len(t.Data)+5)
	data = append(data, t.RORG)
	data = append(data, t.Data...)
	data = binary.BigEndian.AppendUint32(data, t.SenderID)
	data = append(data, t.Status)
	opt := []byte{3, 0, 0, 0, 0, 0xFF, 0}
	binary.BigEndian.PutUint32(opt[1:5], dest)
	return d.Send(ctx, Packet{Type: TypeRadioERP1, Data: data, Optional: opt})
}

// ParseTelegram decodes a RADIO_ERP1 packet.
func ParseTelegram(p Packet) (Telegram, error) {
	if p.Type != TypeRadioERP1 || len(p.Data) < 7 {
		return Telegram{}, ErrBadPacket
	}
	n := len(p.Data)
	t := Telegram{
		RORG:     p.Data[0],
		Data:     append([]byte(nil), p.Data[1:n-5]...),
		SenderID: binary.BigEndian.Uint32(p.Data[n-5 : n-1]),
		Status:   p.Data[n-1],
	}
	if o := p.Optional; len(o) >= 7 {
		t.SubTelegrams = o[0]
		t.Destination = binary.BigEndian.Uint32(o[1:5])
		t.DBm = -int(o[5])
		t.Security = o[6]
	}
	return t, nil
}

// EventCode is the first data byte of an EVENT packet.
type EventCode uint8

const (
	EventSAReclaimFailed EventCode = 1
	EventSAConfirmLearn  EventCode = 2
	EventSALearnAck      EventCode = 3
	EventReady           EventCode = 4
	EventSecureDevices   EventCode = 5
	EventDutyCycleLimit  EventCode = 6
	EventTransmitFailed  EventCode = 7
)

func (e EventCode) String() string {
	switch e {
	case EventSAReclaimFailed:
		return "SA_RECLAIM_NOT_SUCCESSFUL"
	case EventSAConfirmLearn:
		return "SA_CONFIRM_LEARN"
	case EventSALearnAck:
		return "SA_LEARN_ACK"
	case EventReady:
		return "CO_READY"
	case EventSecureDevices:
		return "CO_EVENT_SECUREDEVICES"
	case EventDutyCycleLimit:
		return "CO_DUTYCYCLE_LIMIT"
	case EventTransmitFailed:
		return "CO_TRANSMIT_FAILED"
	}
	return fmt.Sprintf("EVENT_%d", uint8(e))
}

// WakeUpCause is reported by CO_READY.
type WakeUpCause uint8

const (
	WakeVoltageDrop WakeUpCause = iota
	WakeResetPin
	WakeWatchdog
	WakeFlywheel
	WakeParityError
	WakeHWParityError
	WakeMemoryError
	WakePin0
	WakePin1
	WakeUnknown
)

var wakeNames = [...]string{
	"voltage supply drop", "reset pin", "watchdog", "flywheel",
	"parity error", "hw parity error", "memory error",
	"wake-up pin 0", "wake-up pin 1", "unknown",
}

func (w WakeUpCause) String() string {
	if int(w) < len(wakeNames) {
		return wakeNames[w]
	}
	return wakeNames[WakeUnknown]
}

// Event is a decoded EVENT packet. Data holds the bytes after the code.
type Event struct {
	Code   EventCode
	WakeUp WakeUpCause // CO_READY only
	Data   []byte
}

func ParseEvent(p Packet) (Event, error) {
	if p.Type != TypeEvent || len(p.Data) == 0 {
		return Event{}, ErrBadPacket
	}
	e := Event{Code: EventCode(p.Data[0]), Data: append([]byte(nil), p.Data[1:]...)}
	if e.Code == EventReady {
		e.WakeUp = WakeUnknown
		if len(e.Data) > 0 {
			e.WakeUp = WakeUpCause(e.Data[0])
		}
	}
	return e, nil
}
