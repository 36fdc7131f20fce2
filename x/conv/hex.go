package conv

import "errors"

// ErrHex reports a non-hex character or an odd digit count.
var ErrHex = errors.New("conv: invalid hex")

const hexDigits = "0123456789ABCDEF"

// AppendHex appends src as uppercase hex digits, two per byte.
func AppendHex(dst, src []byte) []byte {
	for _, b := range src {
		dst = AppendHexByte(dst, b)
	}
	return dst
}

// AppendHexByte appends one byte as two uppercase hex digits.
func AppendHexByte(dst []byte, b byte) []byte {
	return append(dst, hexDigits[b>>4], hexDigits[b&0x0F])
}

// Nibble returns the value of one hex digit (either case).
func Nibble(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	}
	return 0, false
}

// AppendUnhex decodes hex text and appends the bytes to dst.
func AppendUnhex(dst []byte, src string) ([]byte, error) {
	if len(src)%2 != 0 {
		return dst, ErrHex
	}
	for i := 0; i < len(src); i += 2 {
		hi, ok1 := Nibble(src[i])
		lo, ok2 := Nibble(src[i+1])
		if !ok1 || !ok2 {
			return dst, ErrHex
		}
		dst = append(dst, hi<<4|lo)
	}
	return dst, nil
}
