package imu6

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"clickboards/clicks/hal/haltest"
	"clickboards/errcode"
)

// newFakeIMU returns a register file that behaves like an LSM6DSL whose
// software reset completes immediately.
func newFakeIMU() *haltest.Regs {
	dev := haltest.NewRegs(AddressLow)
	dev.Set(regWhoAmI, whoAmIValue)
	dev.WriteHook = func(m haltest.Mem, reg uint16, v byte) bool {
		if reg == regCtrl3C && v&ctrl3SWReset != 0 {
			m[regCtrl3C] = 0x04 // reset value: IF_INC only
			return false
		}
		return true
	}
	return dev
}

func TestConfigureI2C(t *testing.T) {
	dev := newFakeIMU()
	d := NewI2C(haltest.NewI2C(dev), 0, Config{})
	if err := d.Configure(); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	if got := dev.Get(regCtrl3C); got != ctrl3BDU|ctrl3IfInc {
		t.Fatalf("CTRL3_C = %#x", got)
	}
	if got := dev.Get(regCtrl1XL); got != 0x40 {
		t.Fatalf("CTRL1_XL = %#x, want 0x40", got)
	}
	if got := dev.Get(regCtrl2G); got != 0x40 {
		t.Fatalf("CTRL2_G = %#x, want 0x40", got)
	}
}

func TestZeroRateMeansDefault(t *testing.T) {
	dev := newFakeIMU()
	d := NewI2C(haltest.NewI2C(dev), 0, Config{GyroRange: Gyro2000DPS})
	if err := d.Configure(); err != nil {
		t.Fatal(err)
	}
	if got := dev.Get(regCtrl2G) & odrMask; got != byte(Rate104Hz)<<4 {
		t.Fatalf("CTRL2_G ODR = %#x", got)
	}
	if err := d.SetAccel(Accel2G, RateOff); err != nil {
		t.Fatal(err)
	}
	if got := dev.Get(regCtrl1XL) & odrMask; got != 0 {
		t.Fatalf("accelerometer still running: CTRL1_XL = %#x", dev.Get(regCtrl1XL))
	}
}

func TestConfigureSPI(t *testing.T) {
	dev := newFakeIMU()
	var cs haltest.Pin
	d := NewSPI(haltest.NewSPI(dev), cs.Out(), Config{AccelRange: Accel16G, AccelRate: Rate833Hz})
	if err := d.Configure(); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	if got := dev.Get(regCtrl1XL); got != 0x74 {
		t.Fatalf("CTRL1_XL = %#x, want 0x74", got)
	}
	if !cs.Level() {
		t.Fatal("chip select left asserted")
	}
}

func TestConfigureWrongDevice(t *testing.T) {
	dev := newFakeIMU()
	dev.Set(regWhoAmI, 0x69)
	d := NewI2C(haltest.NewI2C(dev), 0, Config{})
	err := d.Configure()
	if !errors.Is(err, ErrWrongDevice) || errcode.Of(err) != errcode.WrongDevice {
		t.Fatalf("want ErrWrongDevice, got %v", err)
	}
}

func TestConfigureResetTimeout(t *testing.T) {
	dev := haltest.NewRegs(AddressLow)
	dev.Set(regWhoAmI, whoAmIValue)
	d := NewI2C(haltest.NewI2C(dev), 0, Config{ResetTimeout: 3 * time.Millisecond})
	if err := d.Configure(); !errors.Is(err, ErrTimeout) {
		t.Fatalf("want ErrTimeout, got %v", err)
	}
}

func TestAccelScaling(t *testing.T) {
	dev := newFakeIMU()
	d := NewI2C(haltest.NewI2C(dev), 0, Config{})
	if err := d.SetAccel(Accel4G, Rate104Hz); err != nil {
		t.Fatal(err)
	}
	dev.Set(regOutXLXL, 0x12, 0x34, 0xFF, 0xFF, 0x00, 0x00)
	got, err := d.Accel()
	if err != nil {
		t.Fatal(err)
	}
	want := Vector{X: 0x3412 * 122, Y: -122, Z: 0}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("Accel mismatch (-want +got):\n%s", diff)
	}
}

func TestGyroScaling(t *testing.T) {
	cases := []struct {
		r    GyroRange
		raw  int16
		want int32
	}{
		{Gyro2000DPS, 1000, 70000},
		{Gyro250DPS, 1000, 8750},
		{Gyro125DPS, -1, -4},
		{Gyro500DPS, -32768, -573440},
	}
	for _, c := range cases {
		dev := newFakeIMU()
		d := NewI2C(haltest.NewI2C(dev), 0, Config{})
		if err := d.SetGyro(c.r, Rate208Hz); err != nil {
			t.Fatal(err)
		}
		u := uint16(c.raw)
		dev.Set(regOutXLG, byte(u), byte(u>>8), 0, 0, 0, 0)
		v, err := d.Gyro()
		if err != nil {
			t.Fatal(err)
		}
		if v.X != c.want {
			t.Fatalf("range %d raw %d: got %d mdps, want %d", c.r, c.raw, v.X, c.want)
		}
	}
}

func TestGyroRangeBits(t *testing.T) {
	dev := newFakeIMU()
	d := NewI2C(haltest.NewI2C(dev), 0, Config{})
	if err := d.SetGyro(Gyro125DPS, Rate52Hz); err != nil {
		t.Fatal(err)
	}
	if got := dev.Get(regCtrl2G); got != 0x32 {
		t.Fatalf("CTRL2_G = %#x, want 0x32", got)
	}
	if err := d.SetGyro(GyroRange(300), Rate52Hz); !errors.Is(err, ErrBadSetting) {
		t.Fatalf("want ErrBadSetting, got %v", err)
	}
}

func TestTemperatureAndStatus(t *testing.T) {
	dev := newFakeIMU()
	d := NewI2C(haltest.NewI2C(dev), 0, Config{})
	cases := map[uint16]int32{0x0000: 250, 0x0100: 260, 0xFE00: 230, 0x0014: 251, 0xFFEC: 249}
	for raw, want := range cases {
		dev.Set(regOutTempL, byte(raw), byte(raw>>8))
		got, err := d.Temperature()
		if err != nil || got != want {
			t.Fatalf("raw %#04x: got %d, %v; want %d", raw, got, err, want)
		}
	}
	dev.Set(regStatus, statusXLDA|statusTDA)
	st, err := d.Status()
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(DataReady{Accel: true, Temp: true}, st); diff != "" {
		t.Fatalf("Status mismatch:\n%s", diff)
	}
}

func TestDefaultConfigAccumulatesErrors(t *testing.T) {
	dev := newFakeIMU()
	dev.Fail = errors.New("nack")
	d := NewI2C(haltest.NewI2C(dev), 0, Config{})
	err := d.DefaultConfig()
	if n := len(errcode.Errors(err)); n != 2 {
		t.Fatalf("want both writes attempted and reported, got %d errors: %v", n, err)
	}
}
