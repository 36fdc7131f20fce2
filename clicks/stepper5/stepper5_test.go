package stepper5

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"clickboards/clicks/hal/haltest"
)

// fakeTMC answers UART datagrams like a TMC2208 register file.
type fakeTMC struct {
	regs     map[uint8]uint32
	echo     bool
	badCRC   bool
	dropWrts bool
}

func newFakeTMC() *fakeTMC {
	return &fakeTMC{regs: map[uint8]uint32{RegIOIN: 0x20000000}}
}

func (f *fakeTMC) handle(w []byte) []byte {
	var out []byte
	if f.echo {
		out = append(out, w...)
	}
	switch {
	case len(w) == 4 && crc8(w[:3]) == w[3]:
		reg := w[2]
		v := f.regs[reg]
		r := []byte{syncByte, masterAddr, reg, byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v), 0}
		r[7] = crc8(r[:7])
		if f.badCRC {
			r[7] ^= 0x01
		}
		out = append(out, r...)
	case len(w) == 8 && crc8(w[:7]) == w[7] && !f.dropWrts:
		f.regs[w[2]&0x7F] = uint32(w[3])<<24 | uint32(w[4])<<16 | uint32(w[5])<<8 | uint32(w[6])
		f.regs[RegIFCNT] = (f.regs[RegIFCNT] + 1) & 0xFF
	}
	return out
}

func newDevice(f *fakeTMC, cfg Config) *Device {
	p := haltest.NewPort()
	p.OnWrite = f.handle
	cfg.Echo = f.echo
	return New(p, cfg)
}

func TestCRC8(t *testing.T) {
	cases := []struct {
		in   []byte
		want byte
	}{
		{[]byte{0x05, 0x00, 0x00}, 0x48},
		{[]byte{0x05, 0x00, 0x06}, 0x6F},
		{[]byte{0x05, 0x00, 0x80, 0x00, 0x00, 0x01, 0xC0}, 0xF6},
	}
	for _, c := range cases {
		if got := crc8(c.in); got != c.want {
			t.Fatalf("crc8(% x) = %#x, want %#x", c.in, got, c.want)
		}
	}
}

func TestInit(t *testing.T) {
	f := newFakeTMC()
	d := newDevice(f, Config{})
	if err := d.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}
	f.regs[RegIOIN] = 0x21000000
	if err := d.Init(context.Background()); !errors.Is(err, ErrWrongDevice) {
		t.Fatalf("want ErrWrongDevice, got %v", err)
	}
}

func TestDefaultConfig(t *testing.T) {
	for _, echo := range []bool{false, true} {
		f := newFakeTMC()
		f.echo = echo
		d := newDevice(f, Config{VerifyWrites: true})
		if err := d.DefaultConfig(context.Background()); err != nil {
			t.Fatalf("echo=%v: %v", echo, err)
		}
		want := map[uint8]uint32{
			RegIOIN:       0x20000000,
			RegGCONF:      0x1C0,
			RegIHOLDIRUN:  0x11008,
			RegTPOWERDOWN: 20,
			RegCHOPCONF:   0x14000053,
			RegIFCNT:      4,
		}
		if diff := cmp.Diff(want, f.regs); diff != "" {
			t.Fatalf("echo=%v registers (-want +got):\n%s", echo, diff)
		}
	}
}

func TestWriteNotAcked(t *testing.T) {
	f := newFakeTMC()
	f.dropWrts = true
	d := newDevice(f, Config{VerifyWrites: true})
	if err := d.WriteRegister(context.Background(), RegTPOWERDOWN, 1); !errors.Is(err, ErrWriteNotAcked) {
		t.Fatalf("want ErrWriteNotAcked, got %v", err)
	}
}

func TestReadErrors(t *testing.T) {
	f := newFakeTMC()
	f.badCRC = true
	d := newDevice(f, Config{})
	if _, err := d.ReadRegister(context.Background(), RegGSTAT); !errors.Is(err, ErrCRC) {
		t.Fatalf("want ErrCRC, got %v", err)
	}

	d = New(haltest.NewPort(), Config{ReplyTimeout: 10 * time.Millisecond})
	if _, err := d.ReadRegister(context.Background(), RegGSTAT); !errors.Is(err, ErrTimeout) {
		t.Fatalf("want ErrTimeout, got %v", err)
	}
}

func TestMicrosteps(t *testing.T) {
	f := newFakeTMC()
	f.regs[RegCHOPCONF] = chopDefault
	d := newDevice(f, Config{})
	ctx := context.Background()
	for _, n := range []int{16, 256, 1, 2} {
		if err := d.SetMicrosteps(ctx, n); err != nil {
			t.Fatal(err)
		}
		got, err := d.Microsteps(ctx)
		if err != nil || got != n {
			t.Fatalf("microsteps %d: got %d, %v", n, got, err)
		}
		if f.regs[RegCHOPCONF]&^chopMresMask != chopDefault {
			t.Fatalf("other CHOPCONF bits changed: %#x", f.regs[RegCHOPCONF])
		}
	}
	for _, n := range []int{0, 3, 512} {
		if err := d.SetMicrosteps(ctx, n); !errors.Is(err, ErrInvalidMicrosteps) {
			t.Fatalf("%d: want ErrInvalidMicrosteps, got %v", n, err)
		}
	}
}

func TestCurrentAndVelocity(t *testing.T) {
	f := newFakeTMC()
	d := newDevice(f, Config{})
	ctx := context.Background()
	if err := d.SetCurrent(ctx, 40, -1, 3); err != nil {
		t.Fatal(err)
	}
	if got := f.regs[RegIHOLDIRUN]; got != 0x31F00 {
		t.Fatalf("IHOLD_IRUN = %#x", got)
	}
	cases := map[int32]uint32{-1: 0xFFFFFF, 1 << 24: 0x7FFFFF, -(1 << 24): 0x800001, 1000: 1000}
	for v, want := range cases {
		if err := d.SetVelocity(ctx, v); err != nil {
			t.Fatal(err)
		}
		if got := f.regs[RegVACTUAL]; got != want {
			t.Fatalf("VACTUAL(%d) = %#x, want %#x", v, got, want)
		}
	}
}

func TestStealthChop(t *testing.T) {
	f := newFakeTMC()
	f.regs[RegGCONF] = gconfPDNDisable
	d := newDevice(f, Config{})
	ctx := context.Background()
	if err := d.SetStealthChop(ctx, false); err != nil {
		t.Fatal(err)
	}
	if f.regs[RegGCONF] != gconfPDNDisable|gconfSpreadCycle {
		t.Fatalf("GCONF = %#x", f.regs[RegGCONF])
	}
	if err := d.SetStealthChop(ctx, true); err != nil {
		t.Fatal(err)
	}
	if err := d.SetInverted(ctx, true); err != nil {
		t.Fatal(err)
	}
	if f.regs[RegGCONF] != gconfPDNDisable|gconfShaft {
		t.Fatalf("GCONF = %#x", f.regs[RegGCONF])
	}
}

func TestStatus(t *testing.T) {
	f := newFakeTMC()
	f.regs[RegDRVSTATUS] = 0x80140003
	f.regs[RegGSTAT] = gstatReset | gstatUVCP
	d := newDevice(f, Config{})
	ctx := context.Background()

	ds, err := d.DriverStatus(ctx)
	if err != nil {
		t.Fatal(err)
	}
	want := DriverStatus{OverTempWarning: true, OverTemp: true, CurrentScale: 0x14, Standstill: true}
	if diff := cmp.Diff(want, ds); diff != "" {
		t.Fatalf("DriverStatus (-want +got):\n%s", diff)
	}
	gs, err := d.GlobalStatus(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(GlobalStatus{Reset: true, ChargePumpUnderV: true}, gs); diff != "" {
		t.Fatal(diff)
	}
	if err := d.ClearGlobalStatus(ctx); err != nil {
		t.Fatal(err)
	}
}

func TestPins(t *testing.T) {
	var en, dir, step haltest.Pin
	d := New(haltest.NewPort(), Config{Enable: en.Out(), Dir: dir.Out(), Step: step.Out(), StepPulse: time.Microsecond})
	if !en.Level() {
		t.Fatal("outputs must start disabled (EN high)")
	}
	d.Enable(true)
	d.SetDirection(true)
	if en.Level() || !dir.Level() {
		t.Fatal("EN should be low and DIR high")
	}
	n, err := d.Step(context.Background(), 3, 10*time.Microsecond)
	if err != nil || n != 3 || step.Rising() != 3 {
		t.Fatalf("n=%d err=%v rising=%d", n, err, step.Rising())
	}
	if step.Level() {
		t.Fatal("STEP left high")
	}

	n, err = d.Step(context.Background(), -2, 10*time.Microsecond)
	if err != nil || n != 2 || step.Rising() != 5 {
		t.Fatalf("reverse: n=%d err=%v rising=%d", n, err, step.Rising())
	}
	if dir.Level() {
		t.Fatal("negative count should drive DIR low")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if n, err := d.Step(ctx, 5, time.Millisecond); n != 0 || !errors.Is(err, context.Canceled) {
		t.Fatalf("cancelled: n=%d err=%v", n, err)
	}
}
