package ltecat16

import (
	"errors"
	"strings"
	"time"
	"unicode/utf16"

	"clickboards/x/conv"
)

// SMS PDU mode (3GPP TS 23.040 / 23.038).

var (
	ErrMessageTooLong = errors.New("ltecat16: message too long for a single SMS")
	ErrBadAddress     = errors.New("ltecat16: invalid phone number")
	ErrBadPDU         = errors.New("ltecat16: malformed PDU")
	ErrNotDeliver     = errors.New("ltecat16: PDU is not an SMS-DELIVER")
)

const (
	maxSeptets  = 160
	maxUCS2     = 70
	gsmEscape   = 0x1B
	toaIntl     = 0x91
	toaUnknown  = 0x81
	toaAlphaNum = 0x50

	dcsGSM7 = 0x00
	dcsUCS2 = 0x08

	mtiSubmit    = 0x01
	vpfRelative  = 0x10
	srrBit       = 0x20
	udhiBit      = 0x40
	defaultValid = 4 * 24 * time.Hour
)

// GSM 03.38 default alphabet, indexed by septet value.
var gsmBasic = []rune("@£$¥èéùìòÇ\nØø\rÅåΔ_ΦΓΛΩΠΨΣΘΞ\x1bÆæßÉ !\"#¤%&'()*+,-./0123456789:;<=>?" +
	"¡ABCDEFGHIJKLMNOPQRSTUVWXYZÄÖÑÜ§¿abcdefghijklmnopqrstuvwxyzäöñüà")

// Extension table, reached through the escape septet.
var gsmExt = map[byte]rune{
	0x0A: '\f', 0x14: '^', 0x28: '{', 0x29: '}', 0x2F: '\\',
	0x3C: '[', 0x3D: '~', 0x3E: ']', 0x40: '|', 0x65: '€',
}

var (
	gsmBasicRev = map[rune]byte{}
	gsmExtRev   = map[rune]byte{}
)

func init() {
	for i, r := range gsmBasic {
		if i != gsmEscape {
			gsmBasicRev[r] = byte(i)
		}
	}
	for k, r := range gsmExt {
		gsmExtRev[r] = k
	}
}

// gsmSeptets maps text onto default-alphabet septets. ok is false when a
// character has no GSM representation.
func gsmSeptets(text string) (out []byte, ok bool) {
	for _, r := range text {
		if s, found := gsmBasicRev[r]; found {
			out = append(out, s)
			continue
		}
		if s, found := gsmExtRev[r]; found {
			out = append(out, gsmEscape, s)
			continue
		}
		return nil, false
	}
	return out, true
}

func gsmText(septets []byte) string {
	var b strings.Builder
	for i := 0; i < len(septets); i++ {
		s := septets[i] & 0x7F
		if s == gsmEscape && i+1 < len(septets) {
			i++
			if r, ok := gsmExt[septets[i]]; ok {
				b.WriteRune(r)
			} else {
				b.WriteRune(' ')
			}
			continue
		}
		b.WriteRune(gsmBasic[s])
	}
	return b.String()
}

// packSeptets packs 7-bit values LSB first into octets.
func packSeptets(septets []byte) []byte {
	out := make([]byte, (len(septets)*7+7)/8)
	for i, s := range septets {
		pos := i * 7
		idx, shift := pos/8, uint(pos%8)
		out[idx] |= (s & 0x7F) << shift
		if shift > 1 {
			out[idx+1] |= (s & 0x7F) >> (8 - shift)
		}
	}
	return out
}

// unpackSeptets extracts n septets from packed octets.
func unpackSeptets(octets []byte, n int) ([]byte, error) {
	if (n*7+7)/8 > len(octets) {
		return nil, ErrBadPDU
	}
	out := make([]byte, n)
	for i := range out {
		pos := i * 7
		idx, shift := pos/8, uint(pos%8)
		v := octets[idx] >> shift
		if shift > 1 {
			v |= octets[idx+1] << (8 - shift)
		}
		out[i] = v & 0x7F
	}
	return out, nil
}

// encodeAddress returns the digit count, type of address and semi-octets.
func encodeAddress(number string) (digits int, toa byte, octets []byte, err error) {
	toa = toaUnknown
	if strings.HasPrefix(number, "+") {
		toa = toaIntl
		number = number[1:]
	}
	if number == "" {
		return 0, 0, nil, ErrBadAddress
	}
	for i := 0; i < len(number); i += 2 {
		lo, ok := semiOctet(number[i])
		if !ok {
			return 0, 0, nil, ErrBadAddress
		}
		hi := byte(0x0F)
		if i+1 < len(number) {
			if hi, ok = semiOctet(number[i+1]); !ok {
				return 0, 0, nil, ErrBadAddress
			}
		}
		octets = append(octets, hi<<4|lo)
	}
	return len(number), toa, octets, nil
}

func semiOctet(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c == '*':
		return 0x0A, true
	case c == '#':
		return 0x0B, true
	}
	return 0, false
}

func decodeSemiOctets(octets []byte, digits int) string {
	const chars = "0123456789*#abcF"
	b := make([]byte, 0, digits)
	for _, o := range octets {
		for _, n := range [2]byte{o & 0x0F, o >> 4} {
			if len(b) < digits && n != 0x0F {
				b = append(b, chars[n])
			}
		}
	}
	return string(b)
}

// encodeValidity maps a duration onto the relative TP-VP octet.
func encodeValidity(d time.Duration) byte {
	if d <= 0 {
		d = defaultValid
	}
	m := int(d / time.Minute)
	switch {
	case m <= 12*60:
		if m < 5 {
			m = 5
		}
		return byte(m/5 - 1)
	case m <= 24*60:
		return byte(143 + (m-12*60)/30)
	case m <= 30*24*60:
		return byte(166 + m/(24*60))
	default:
		w := m / (7 * 24 * 60)
		if w > 63 {
			w = 63
		}
		return byte(192 + w)
	}
}

// Submit is an outgoing SMS.
type Submit struct {
	SMSC         string // empty uses the SMSC stored in the SIM
	To           string
	Text         string
	Validity     time.Duration // default 4 days
	StatusReport bool
	MessageRef   byte
	ForceUCS2    bool
}

// PDU is an encoded SMS ready for AT+CMGS. TPDULen excludes the SMSC field.
type PDU struct {
	Hex     string
	TPDULen int
}

// EncodeSubmit builds an SMS-SUBMIT PDU. Text that fits the GSM default
// alphabet is packed as septets, anything else is sent as UCS-2.
func EncodeSubmit(m Submit) (PDU, error) {
	var smsc []byte
	if m.SMSC == "" {
		smsc = []byte{0x00}
	} else {
		_, toa, oct, err := encodeAddress(m.SMSC)
		if err != nil {
			return PDU{}, err
		}
		smsc = append([]byte{byte(1 + len(oct)), toa}, oct...)
	}

	digits, toa, da, err := encodeAddress(m.To)
	if err != nil {
		return PDU{}, err
	}

	var (
		dcs byte
		udl int
		ud  []byte
	)
	septets, gsm := gsmSeptets(m.Text)
	if gsm && !m.ForceUCS2 {
		if len(septets) > maxSeptets {
			return PDU{}, ErrMessageTooLong
		}
		dcs, udl, ud = dcsGSM7, len(septets), packSeptets(septets)
	} else {
		units := utf16.Encode([]rune(m.Text))
		if len(units) > maxUCS2 {
			return PDU{}, ErrMessageTooLong
		}
		ud = make([]byte, 0, 2*len(units))
		for _, u := range units {
			ud = append(ud, byte(u>>8), byte(u))
		}
		dcs, udl = dcsUCS2, len(ud)
	}

	first := byte(mtiSubmit | vpfRelative)
	if m.StatusReport {
		first |= srrBit
	}
	tpdu := make([]byte, 0, 16+len(da)+len(ud))
	tpdu = append(tpdu, first, m.MessageRef, byte(digits), toa)
	tpdu = append(tpdu, da...)
	tpdu = append(tpdu, 0x00, dcs, encodeValidity(m.Validity), byte(udl))
	tpdu = append(tpdu, ud...)

	out := conv.AppendHex(make([]byte, 0, 2*(len(smsc)+len(tpdu))), smsc)
	out = conv.AppendHex(out, tpdu)
	return PDU{Hex: string(out), TPDULen: len(tpdu)}, nil
}

// Deliver is a decoded incoming SMS.
type Deliver struct {
	SMSC      string
	From      string
	Timestamp time.Time
	PID       byte
	DCS       byte
	Text      string
	// Data holds the user data of 8-bit messages; Text is empty then.
	Data []byte
	// Header is the user data header, without its length octet.
	Header []byte
}

type pduReader struct {
	b   []byte
	off int
	err error
}

func (r *pduReader) u8() byte {
	if r.err != nil || r.off >= len(r.b) {
		r.err = ErrBadPDU
		return 0
	}
	v := r.b[r.off]
	r.off++
	return v
}

func (r *pduReader) next(n int) []byte {
	if r.err != nil || n < 0 || r.off+n > len(r.b) {
		r.err = ErrBadPDU
		return nil
	}
	v := r.b[r.off : r.off+n]
	r.off += n
	return v
}

func decodeAddress(toa byte, oct []byte, digits int) string {
	if toa&0x70 == toaAlphaNum {
		s, err := unpackSeptets(oct, digits*4/7)
		if err != nil {
			return ""
		}
		return gsmText(s)
	}
	num := decodeSemiOctets(oct, digits)
	if toa == toaIntl {
		return "+" + num
	}
	return num
}

func bcd(b byte) int { return int(b&0x0F)*10 + int(b>>4) }

func decodeTimestamp(b []byte) time.Time {
	q := int(b[6]&0x07)*10 + int(b[6]>>4)
	if b[6]&0x08 != 0 {
		q = -q
	}
	loc := time.FixedZone("", q*15*60)
	return time.Date(2000+bcd(b[0]), time.Month(bcd(b[1])), bcd(b[2]), bcd(b[3]), bcd(b[4]), bcd(b[5]), 0, loc)
}

type alphabet uint8

const (
	alpha7bit alphabet = iota
	alpha8bit
	alphaUCS2
)

func dcsAlphabet(dcs byte) alphabet {
	switch {
	case dcs&0xC0 == 0x00 || dcs&0xC0 == 0x40:
		switch (dcs >> 2) & 0x03 {
		case 1:
			return alpha8bit
		case 2:
			return alphaUCS2
		}
	case dcs&0xF0 == 0xE0:
		return alphaUCS2
	case dcs&0xF0 == 0xF0:
		if dcs&0x04 != 0 {
			return alpha8bit
		}
	}
	return alpha7bit
}

// DecodeDeliver parses an SMS-DELIVER PDU as returned by AT+CMGR in PDU mode.
func DecodeDeliver(hex string) (Deliver, error) {
	raw, err := conv.AppendUnhex(nil, strings.TrimSpace(hex))
	if err != nil {
		return Deliver{}, ErrBadPDU
	}
	r := &pduReader{b: raw}
	var d Deliver

	if n := int(r.u8()); n > 0 {
		smsc := r.next(n)
		if r.err == nil {
			d.SMSC = decodeAddress(smsc[0], smsc[1:], 2*(n-1))
		}
	}
	first := r.u8()
	if r.err == nil && first&0x03 != 0x00 {
		return Deliver{}, ErrNotDeliver
	}
	digits := int(r.u8())
	toa := r.u8()
	oa := r.next((digits + 1) / 2)
	d.PID = r.u8()
	d.DCS = r.u8()
	ts := r.next(7)
	udl := int(r.u8())
	ud := r.next(len(raw) - r.off)
	if r.err != nil {
		return Deliver{}, r.err
	}
	d.From = decodeAddress(toa, oa, digits)
	d.Timestamp = decodeTimestamp(ts)

	hdrOctets := 0
	if first&udhiBit != 0 {
		if len(ud) == 0 || int(ud[0])+1 > len(ud) {
			return Deliver{}, ErrBadPDU
		}
		hdrOctets = int(ud[0]) + 1
		d.Header = append([]byte(nil), ud[1:hdrOctets]...)
	}

	switch dcsAlphabet(d.DCS) {
	case alpha7bit:
		septets, err := unpackSeptets(ud, udl)
		if err != nil {
			return Deliver{}, err
		}
		skip := (hdrOctets*8 + 6) / 7
		if skip > len(septets) {
			return Deliver{}, ErrBadPDU
		}
		d.Text = gsmText(septets[skip:])
	case alphaUCS2:
		if udl > len(ud) || hdrOctets > udl {
			return Deliver{}, ErrBadPDU
		}
		body := ud[hdrOctets:udl]
		units := make([]uint16, 0, len(body)/2)
		for i := 0; i+1 < len(body); i += 2 {
			units = append(units, uint16(body[i])<<8|uint16(body[i+1]))
		}
		d.Text = string(utf16.Decode(units))
	default:
		if udl > len(ud) || hdrOctets > udl {
			return Deliver{}, ErrBadPDU
		}
		d.Data = append([]byte(nil), ud[hdrOctets:udl]...)
	}
	return d, nil
}
