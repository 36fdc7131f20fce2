package conv

// AppendInt appends the base-10 representation of n.
// No fmt/strconv dependency so it stays cheap on MCU builds.
func AppendInt(dst []byte, n int64) []byte {
	if n < 0 {
		dst = append(dst, '-')
		return AppendUint(dst, uint64(-n))
	}
	return AppendUint(dst, uint64(n))
}

// AppendUint appends the base-10 representation of n.
func AppendUint(dst []byte, n uint64) []byte {
	var buf [20]byte
	i := len(buf)
	if n == 0 {
		i--
		buf[i] = '0'
	}
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return append(dst, buf[i:]...)
}

// Atoi parses an optionally signed decimal integer, ignoring surrounding
// spaces. ok is false for empty input, stray characters or int32 overflow.
func Atoi(s string) (n int, ok bool) {
	i, j := 0, len(s)
	for i < j && s[i] == ' ' {
		i++
	}
	for j > i && s[j-1] == ' ' {
		j--
	}
	if i == j {
		return 0, false
	}
	neg := false
	switch s[i] {
	case '-':
		neg = true
		i++
	case '+':
		i++
	}
	if i == j {
		return 0, false
	}
	var v int64
	for ; i < j; i++ {
		c := s[i]
		if c < '0' || c > '9' {
			return 0, false
		}
		v = v*10 + int64(c-'0')
		if v > 1<<31 {
			return 0, false
		}
	}
	if neg {
		v = -v
	}
	if v > 1<<31-1 || v < -(1<<31) {
		return 0, false
	}
	return int(v), true
}
