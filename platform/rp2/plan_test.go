package rp2

import (
	"testing"

	"clickboards/errcode"
)

func TestParsePin(t *testing.T) {
	cases := []struct {
		in   string
		want int
		ok   bool
	}{
		{"GP5", 5, true},
		{"gpio17", 17, true},
		{" 29 ", 29, true},
		{"GP30", 0, false},
		{"-1", 0, false},
		{"LED", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		got, err := ParsePin(tc.in, 30)
		if tc.ok != (err == nil) || got != tc.want {
			t.Errorf("ParsePin(%q) = %d, %v", tc.in, got, err)
		}
		if err != nil && errcode.Of(err) != errcode.InvalidParams {
			t.Errorf("ParsePin(%q) code %v", tc.in, errcode.Of(err))
		}
	}
}

func TestPlanLookup(t *testing.T) {
	p := PicoMikroBUS
	if b, ok := p.i2c("i2c1"); !ok || b.SDA != 6 || b.Hz != 400_000 {
		t.Fatalf("i2c1 = %+v, %v", b, ok)
	}
	if _, ok := p.i2c("i2c0"); ok {
		t.Fatal("i2c0 is not wired on the shield")
	}
	if _, ok := p.spi("spi0"); !ok {
		t.Fatal("spi0 missing")
	}
	if u, ok := p.uart("uart1"); !ok || u.TX != 8 {
		t.Fatalf("uart1 = %+v, %v", u, ok)
	}
	if p.pins() != 30 {
		t.Fatalf("pins = %d", p.pins())
	}
}

// The shield's click pins must not collide with the bus pins.
func TestPicoBoardPinsFree(t *testing.T) {
	used := map[int]bool{}
	p := PicoMikroBUS
	for _, b := range p.I2C {
		used[b.SDA], used[b.SCL] = true, true
	}
	for _, b := range p.SPI {
		used[b.SCK], used[b.SDO], used[b.SDI] = true, true, true
	}
	for _, b := range p.UART {
		used[b.TX], used[b.RX] = true, true
	}
	for _, name := range []string{"GP20", "GP17", "GP14", "GP15", "GP21", "GP10", "GP11", "GP12"} {
		n, err := ParsePin(name, p.pins())
		if err != nil {
			t.Fatal(err)
		}
		if used[n] {
			t.Errorf("%s is a bus pin", name)
		}
	}
}
