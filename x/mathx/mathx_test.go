package mathx

import "testing"

func TestClamp(t *testing.T) {
	if Clamp(5, 0, 3) != 3 || Clamp(-1, 0, 3) != 0 || Clamp(2, 3, 0) != 2 {
		t.Fatal("Clamp wrong")
	}
	if !Between(uint8(4), 5, 1) || Between(7, 1, 5) {
		t.Fatal("Between wrong")
	}
	if Abs(int16(-7)) != 7 {
		t.Fatal("Abs wrong")
	}
}

func TestRoundDiv(t *testing.T) {
	cases := []struct{ a, b, want int64 }{
		{10, 4, 3}, {9, 4, 2}, {-10, 4, -3}, {-9, 4, -2}, {0, 5, 0}, {7, 0, 0},
	}
	for _, c := range cases {
		if got := RoundDiv(c.a, c.b); got != c.want {
			t.Fatalf("RoundDiv(%d,%d) = %d, want %d", c.a, c.b, got, c.want)
		}
	}
}

func TestLinear(t *testing.T) {
	// 100 mA + 50 mA*code, 6-bit field.
	l := Linear{Offset: 100, Step: 50, Max: 63}
	cases := []struct {
		in   int32
		want uint32
	}{
		{0, 0}, {100, 0}, {124, 0}, {125, 1}, {500, 8}, {3250, 63}, {9999, 63},
	}
	for _, c := range cases {
		if got := l.Code(c.in); got != c.want {
			t.Fatalf("Code(%d) = %d, want %d", c.in, got, c.want)
		}
	}
	if l.Value(8) != 500 || l.Value(200) != 3250 || l.MaxValue() != 3250 || l.Min() != 100 {
		t.Fatal("Value wrong")
	}
}
