package mathx

import "golang.org/x/exp/constraints"

// RoundDiv returns a/b rounded half away from zero. b must be positive.
func RoundDiv[T constraints.Signed](a, b T) T {
	if b == 0 {
		return 0
	}
	if a < 0 {
		return (a - b/2) / b
	}
	return (a + b/2) / b
}

// Linear describes a register field whose physical value is
//
//	value = Offset + code*Step
//
// with code limited to [0, Max].
type Linear struct {
	Offset int32
	Step   int32
	Max    uint32
}

// Code quantises v onto the field, rounding to the nearest step and clamping
// to the representable range.
func (l Linear) Code(v int32) uint32 {
	if l.Step <= 0 {
		return 0
	}
	num := int64(v) - int64(l.Offset)
	if num <= 0 {
		return 0
	}
	code := (num + int64(l.Step)/2) / int64(l.Step)
	if code > int64(l.Max) {
		return l.Max
	}
	return uint32(code)
}

// Value converts a raw code back to physical units.
func (l Linear) Value(code uint32) int32 {
	if code > l.Max {
		code = l.Max
	}
	return l.Offset + int32(code)*l.Step
}

// Min and MaxValue bound the representable physical range.
func (l Linear) Min() int32      { return l.Offset }
func (l Linear) MaxValue() int32 { return l.Value(l.Max) }
