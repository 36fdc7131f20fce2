package hal_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"clickboards/clicks/hal"
	"clickboards/clicks/hal/haltest"
	"clickboards/errcode"
)

func TestSharedI2CSerialises(t *testing.T) {
	a := haltest.NewRegs(0x10)
	b := haltest.NewRegs(0x20)
	s := hal.NewSharedI2C(haltest.NewI2C(a, b), 4)
	defer s.Stop()

	var wg sync.WaitGroup
	for i, dev := range []*haltest.Regs{a, b} {
		wg.Add(1)
		go func(i int, addr uint16) {
			defer wg.Done()
			r := hal.NewI2C(s.Client(time.Second), addr)
			for n := 0; n < 50; n++ {
				if err := hal.WriteReg(r, uint16(i), byte(n)); err != nil {
					t.Error(err)
					return
				}
			}
		}(i, dev.Addr)
	}
	wg.Wait()
	if a.Get(0) != 49 || b.Get(1) != 49 {
		t.Fatalf("last writes: %d %d", a.Get(0), b.Get(1))
	}
}

// stuckBus blocks every transaction until released.
type stuckBus struct{ release chan struct{} }

func (s stuckBus) Tx(uint16, []byte, []byte) error {
	<-s.release
	return nil
}

func TestSharedI2CTimeouts(t *testing.T) {
	bus := stuckBus{release: make(chan struct{})}
	s := hal.NewSharedI2C(bus, 1)
	defer s.Stop()
	defer close(bus.release)
	c := s.Client(10 * time.Millisecond)

	// First call occupies the worker and times out waiting for completion.
	if err := c.Tx(1, []byte{0}, nil); !errors.Is(err, errcode.Timeout) {
		t.Fatalf("want timeout, got %v", err)
	}
	// Second fills the one-slot queue; the third cannot be queued.
	if err := c.Tx(1, []byte{0}, nil); !errors.Is(err, errcode.Timeout) {
		t.Fatalf("want timeout, got %v", err)
	}
	if err := c.Tx(1, []byte{0}, nil); !errors.Is(err, errcode.Busy) {
		t.Fatalf("want busy, got %v", err)
	}
}

// slowBus fills r once gate is closed and records the first written byte.
type slowBus struct {
	gate chan struct{}
	seen []byte
}

func (b *slowBus) Tx(_ uint16, w, r []byte) error {
	<-b.gate
	if len(w) > 0 {
		b.seen = append(b.seen, w[0])
	}
	for i := range r {
		r[i] = 0xEE
	}
	return nil
}

func TestSharedI2CTimedOutCallLeavesBuffersAlone(t *testing.T) {
	bus := &slowBus{gate: make(chan struct{})}
	s := hal.NewSharedI2C(bus, 2)
	defer s.Stop()

	w := []byte{0x01}
	r := make([]byte, 2)
	if err := s.Client(10*time.Millisecond).Tx(1, w, r); !errors.Is(err, errcode.Timeout) {
		t.Fatalf("want timeout, got %v", err)
	}
	w[0] = 0x99
	close(bus.gate)

	// Queued behind the abandoned call, so it completes after it.
	r2 := make([]byte, 2)
	if err := s.Client(time.Second).Tx(1, []byte{0x02}, r2); err != nil {
		t.Fatal(err)
	}
	if r[0] != 0 || r[1] != 0 {
		t.Fatalf("abandoned read buffer written: % X", r)
	}
	if r2[0] != 0xEE || r2[1] != 0xEE {
		t.Fatalf("read = % X", r2)
	}
	for _, b := range bus.seen {
		if b == 0x99 {
			t.Fatalf("bus saw a write changed after Tx returned: % X", bus.seen)
		}
	}
	if n := len(bus.seen); n == 0 || bus.seen[n-1] != 0x02 {
		t.Fatalf("bus saw % X", bus.seen)
	}
}
