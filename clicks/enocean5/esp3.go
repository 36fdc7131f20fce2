package enocean5

import (
	"errors"

	"clickboards/errcode"
)

// PacketType is the ESP3 packet type byte.
type PacketType uint8

const (
	TypeRadioERP1        PacketType = 0x01
	TypeResponse         PacketType = 0x02
	TypeRadioSubTel      PacketType = 0x03
	TypeEvent            PacketType = 0x04
	TypeCommonCommand    PacketType = 0x05
	TypeSmartAckCommand  PacketType = 0x06
	TypeRemoteManCommand PacketType = 0x07
	TypeRadioMessage     PacketType = 0x09
	TypeRadioERP2        PacketType = 0x0A
)

func (t PacketType) String() string {
	switch t {
	case TypeRadioERP1:
		return "RADIO_ERP1"
	case TypeResponse:
		return "RESPONSE"
	case TypeRadioSubTel:
		return "RADIO_SUB_TEL"
	case TypeEvent:
		return "EVENT"
	case TypeCommonCommand:
		return "COMMON_COMMAND"
	case TypeSmartAckCommand:
		return "SMART_ACK_COMMAND"
	case TypeRemoteManCommand:
		return "REMOTE_MAN_COMMAND"
	case TypeRadioMessage:
		return "RADIO_MESSAGE"
	case TypeRadioERP2:
		return "RADIO_ERP2"
	}
	return "UNKNOWN"
}

const (
	syncByte  = 0x55
	headerLen = 4 // dataLen(2) optLen(1) type(1)

	maxData     = 0xFFFF
	maxOptional = 0xFF
)

var (
	ErrPacketTooLarge = &errcode.E{C: errcode.InvalidParams, Op: "enocean5", Msg: "packet too large"}
	ErrDataCRC        = &errcode.E{C: errcode.CRC, Op: "enocean5", Msg: "data CRC mismatch"}
	ErrBadPacket      = errors.New("enocean5: malformed packet")
)

// Packet is one ESP3 frame without sync byte and checksums.
type Packet struct {
	Type     PacketType
	Data     []byte
	Optional []byte
}

var crcTable = func() (t [256]byte) {
	for i := range t {
		c := byte(i)
		for j := 0; j < 8; j++ {
			if c&0x80 != 0 {
				c = c<<1 ^ 0x07
			} else {
				c <<= 1
			}
		}
		t[i] = c
	}
	return t
}()

func crc8(crc byte, b []byte) byte {
	for _, c := range b {
		crc = crcTable[crc^c]
	}
	return crc
}

// EncodePacket frames p for transmission.
func EncodePacket(p Packet) ([]byte, error) {
	return appendPacket(nil, p)
}

func appendPacket(dst []byte, p Packet) ([]byte, error) {
	if len(p.Data) > maxData || len(p.Optional) > maxOptional {
		return dst, ErrPacketTooLarge
	}
	n := len(p.Data)
	hdr := [headerLen]byte{byte(n >> 8), byte(n), byte(len(p.Optional)), byte(p.Type)}
	dst = append(dst, syncByte)
	dst = append(dst, hdr[:]...)
	dst = append(dst, crc8(0, hdr[:]))
	dst = append(dst, p.Data...)
	dst = append(dst, p.Optional...)
	return append(dst, crc8(crc8(0, p.Data), p.Optional)), nil
}

// Decoder reassembles packets from a byte stream. A header whose CRC fails
// is dropped and the search for a sync byte restarts just after the one that
// began it, so a stray 0x55 cannot swallow a real frame.
type Decoder struct {
	// MaxLen bounds data plus optional length of accepted packets. Zero
	// means 1024.
	MaxLen int

	hdr  [1 + headerLen + 1]byte
	nh   int
	body []byte
	need int
}

// Reset drops any partial frame.
func (d *Decoder) Reset() {
	d.nh = 0
	d.body = d.body[:0]
	d.need = 0
}

func (d *Decoder) maxLen() int {
	if d.MaxLen > 0 {
		return d.MaxLen
	}
	return 1024
}

// Feed consumes one byte. It returns ok with a complete packet, or an error
// for a frame whose header was valid but whose data was not. The returned
// slices are owned by the caller.
func (d *Decoder) Feed(b byte) (p Packet, ok bool, err error) {
	if d.need > 0 {
		d.body = append(d.body, b)
		if len(d.body) < d.need {
			return p, false, nil
		}
		return d.finish()
	}

	if d.nh == 0 && b != syncByte {
		return p, false, nil
	}
	d.hdr[d.nh] = b
	d.nh++
	if d.nh < len(d.hdr) {
		return p, false, nil
	}

	h := d.hdr[1 : 1+headerLen]
	if crc8(0, h) != d.hdr[1+headerLen] {
		d.resync()
		return p, false, nil
	}
	dataLen := int(h[0])<<8 | int(h[1])
	total := dataLen + int(h[2])
	if total > d.maxLen() {
		d.Reset()
		return p, false, ErrPacketTooLarge
	}
	d.nh = 0
	d.body = d.body[:0]
	d.need = total + 1
	return p, false, nil
}

// resync rescans the rejected header bytes for the next sync byte.
func (d *Decoder) resync() {
	rest := d.hdr[1:d.nh]
	d.nh = 0
	for i, c := range rest {
		if c == syncByte {
			d.nh = copy(d.hdr[:], rest[i:])
			return
		}
	}
}

func (d *Decoder) finish() (Packet, bool, error) {
	h := d.hdr[1 : 1+headerLen]
	dataLen := int(h[0])<<8 | int(h[1])
	body := d.body[:d.need-1]
	sum := d.body[d.need-1]
	d.need = 0
	if crc8(0, body) != sum {
		return Packet{}, false, ErrDataCRC
	}
	p := Packet{
		Type: PacketType(h[3]),
		Data: append([]byte(nil), body[:dataLen]...),
	}
	if len(body) > dataLen {
		p.Optional = append([]byte(nil), body[dataLen:]...)
	}
	return p, true, nil
}
