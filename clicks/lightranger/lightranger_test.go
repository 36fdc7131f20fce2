package lightranger

import (
	"context"
	"errors"
	"testing"
	"time"

	"clickboards/clicks/hal/haltest"
	"clickboards/errcode"
)

func newFakeVL() *haltest.Regs {
	dev := haltest.NewRegs(Address)
	dev.Wide = true
	dev.Set(regModelID, modelID)
	dev.Set(regFreshOutOfReset, 0x01)
	return dev
}

func TestConfigureFreshDevice(t *testing.T) {
	dev := newFakeVL()
	d := New(haltest.NewI2C(dev), Config{})
	if err := d.Configure(); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	if dev.Get(0x0207) != 0x01 || dev.Get(0x0097) != 0xFD {
		t.Fatal("private settings not loaded")
	}
	if len(dev.Written(0x0030)) != 1 {
		t.Fatal("last private setting not written")
	}
	if dev.Get(regALSGain) != 0x46 || dev.Get(regInterruptConfig) != 0x24 {
		t.Fatal("public settings not loaded")
	}
	if dev.Get(regFreshOutOfReset) != 0 {
		t.Fatal("fresh-out-of-reset flag not cleared")
	}
}

func TestConfigureSkipsInitWhenNotFresh(t *testing.T) {
	dev := newFakeVL()
	dev.Set(regFreshOutOfReset, 0)
	d := New(haltest.NewI2C(dev), Config{})
	if err := d.Configure(); err != nil {
		t.Fatal(err)
	}
	for _, a := range dev.Log() {
		if a.Write {
			t.Fatalf("unexpected write %+v", a)
		}
	}
}

func TestConfigureWrongDevice(t *testing.T) {
	dev := newFakeVL()
	dev.Set(regModelID, 0xB3)
	d := New(haltest.NewI2C(dev), Config{})
	if err := d.Configure(); !errors.Is(err, ErrWrongDevice) {
		t.Fatalf("want ErrWrongDevice, got %v", err)
	}
}

func TestRangeSingleShot(t *testing.T) {
	dev := newFakeVL()
	dev.Set(regInterruptStatus, rangeReady)
	dev.Set(regRangeValue, 123)
	d := New(haltest.NewI2C(dev), Config{})
	mm, err := d.Range(context.Background())
	if err != nil || mm != 123 {
		t.Fatalf("got %d, %v", mm, err)
	}
	if w := dev.Written(regRangeStart); len(w) != 1 || w[0] != startSingle {
		t.Fatalf("SYSRANGE__START writes = %x", w)
	}
	if w := dev.Written(regInterruptClear); len(w) != 1 || w[0] != 0x07 {
		t.Fatalf("interrupt clear writes = %x", w)
	}
}

func TestRangeStatusError(t *testing.T) {
	dev := newFakeVL()
	dev.Set(regInterruptStatus, rangeReady)
	dev.Set(regRangeStatus, 0xB0)
	d := New(haltest.NewI2C(dev), Config{})
	_, err := d.Range(context.Background())
	var re *RangeError
	if !errors.As(err, &re) || re.Code != 11 {
		t.Fatalf("want RangeError 11, got %v", err)
	}
	if err.Error() != "lightranger: range error: max signal to noise ratio" {
		t.Fatalf("message %q", err.Error())
	}
	if errcode.Of(err) != errcode.NotReady {
		t.Fatalf("code %v", errcode.Of(err))
	}
}

func TestRangeTimeoutAndCancel(t *testing.T) {
	dev := newFakeVL()
	d := New(haltest.NewI2C(dev), Config{Timeout: 3 * time.Millisecond})
	if _, err := d.Range(context.Background()); !errors.Is(err, ErrTimeout) {
		t.Fatalf("want ErrTimeout, got %v", err)
	}

	d = New(haltest.NewI2C(dev), Config{Timeout: time.Second})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := d.Range(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}
}

func TestContinuous(t *testing.T) {
	dev := newFakeVL()
	d := New(haltest.NewI2C(dev), Config{})
	cases := map[time.Duration]byte{
		100 * time.Millisecond: 9,
		5 * time.Millisecond:   0,
		10 * time.Second:       254,
	}
	for p, want := range cases {
		if err := d.StartContinuous(p); err != nil {
			t.Fatal(err)
		}
		if got := dev.Get(regRangeInterMeasure); got != want {
			t.Fatalf("%v: period code %d, want %d", p, got, want)
		}
		if got := dev.Get(regRangeStart); got != startContinuous {
			t.Fatalf("start = %#x", got)
		}
	}
	dev.Set(regInterruptStatus, rangeReady)
	dev.Set(regRangeValue, 42)
	if mm, err := d.ReadContinuous(context.Background()); err != nil || mm != 42 {
		t.Fatalf("ReadContinuous = %d, %v", mm, err)
	}
	if err := d.StopContinuous(); err != nil {
		t.Fatal(err)
	}
	if got := dev.Get(regRangeStart); got != startSingle {
		t.Fatalf("stop wrote %#x", got)
	}
}

func TestAmbientLight(t *testing.T) {
	cases := []struct {
		gain ALSGain
		want int32
	}{
		{Gain1, 320000},
		{Gain10, 32000},
		{Gain40, 8000},
	}
	for _, c := range cases {
		dev := newFakeVL()
		dev.Set(regInterruptStatus, alsReady)
		dev.Set(regALSValue, 0x03, 0xE8)
		d := New(haltest.NewI2C(dev), Config{})
		got, err := d.AmbientLight(context.Background(), c.gain)
		if err != nil || got != c.want {
			t.Fatalf("gain %d: got %d, %v; want %d", c.gain, got, err, c.want)
		}
		if dev.Get(regALSGain) != 0x40|byte(c.gain) {
			t.Fatalf("gain reg %#x", dev.Get(regALSGain))
		}
		if dev.Get(regALSIntegration) != 0 || dev.Get(regALSIntegration+1) != 0x63 {
			t.Fatal("integration period not 100 ms")
		}
	}
}

func TestSetAddressAndOffset(t *testing.T) {
	dev := newFakeVL()
	bus := haltest.NewI2C(dev)
	d := New(bus, Config{})
	if err := d.SetAddress(0x30); err != nil {
		t.Fatal(err)
	}
	if dev.Get(regSlaveAddress) != 0x30 || d.Address() != 0x30 {
		t.Fatal("address not changed")
	}
	dev.Addr = 0x30
	bus.Attach(dev)
	if id, err := d.ReadRegister(regModelID); err != nil || id != modelID {
		t.Fatalf("read at new address: %#x, %v", id, err)
	}
	if err := d.SetAddress(0x80); !errors.Is(err, ErrBadSetting) {
		t.Fatalf("want ErrBadSetting, got %v", err)
	}
	if err := d.SetRangeOffset(-3); err != nil {
		t.Fatal(err)
	}
	if dev.Get(regRangeOffset) != 0xFD {
		t.Fatalf("offset %#x", dev.Get(regRangeOffset))
	}
}
