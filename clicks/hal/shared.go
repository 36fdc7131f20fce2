package hal

import (
	"sync"
	"time"

	"tinygo.org/x/drivers"

	"clickboards/errcode"
)

var _ drivers.I2C = (*I2CClient)(nil)

// i2cCall is one queued transaction. The worker never touches w or r of a
// call its client has abandoned; it works on its own buffers and copies the
// reply back under mu.
type i2cCall struct {
	addr uint16
	w, r []byte
	done chan error // buffered(1)

	mu        sync.Mutex
	abandoned bool
}

// SharedI2C serialises transactions from several drivers onto one bus
// through a single worker goroutine.
type SharedI2C struct {
	bus  drivers.I2C
	reqs chan *i2cCall
	quit chan struct{}

	wbuf, rbuf []byte // worker only
}

// NewSharedI2C starts the worker. queue bounds pending transactions.
func NewSharedI2C(bus drivers.I2C, queue int) *SharedI2C {
	if queue <= 0 {
		queue = 16
	}
	s := &SharedI2C{
		bus:  bus,
		reqs: make(chan *i2cCall, queue),
		quit: make(chan struct{}),
	}
	go s.loop()
	return s
}

func (s *SharedI2C) loop() {
	for {
		select {
		case c := <-s.reqs:
			s.run(c)
		case <-s.quit:
			return
		}
	}
}

func (s *SharedI2C) run(c *i2cCall) {
	c.mu.Lock()
	if c.abandoned {
		c.mu.Unlock()
		return
	}
	var w, r []byte
	if len(c.w) > 0 {
		s.wbuf = append(s.wbuf[:0], c.w...)
		w = s.wbuf
	}
	if n := len(c.r); n > 0 {
		if cap(s.rbuf) < n {
			s.rbuf = make([]byte, n)
		}
		r = s.rbuf[:n]
	}
	c.mu.Unlock()

	err := s.bus.Tx(c.addr, w, r)

	c.mu.Lock()
	if !c.abandoned {
		if err == nil {
			copy(c.r, r)
		}
		c.done <- err
	}
	c.mu.Unlock()
}

// Stop ends the worker. Clients must not be used afterwards.
func (s *SharedI2C) Stop() { close(s.quit) }

// Client returns a drivers.I2C view. A positive timeout bounds both
// queueing (errcode.Busy) and completion (errcode.Timeout).
func (s *SharedI2C) Client(timeout time.Duration) *I2CClient {
	return &I2CClient{s: s, timeout: timeout}
}

// I2CClient is one driver's handle on a SharedI2C.
type I2CClient struct {
	s       *SharedI2C
	timeout time.Duration
}

func (c *I2CClient) Tx(addr uint16, w, r []byte) error {
	call := &i2cCall{addr: addr, w: w, r: r, done: make(chan error, 1)}

	if c.timeout <= 0 {
		c.s.reqs <- call
		return <-call.done
	}

	t := time.NewTimer(c.timeout)
	defer t.Stop()
	select {
	case c.s.reqs <- call:
	case <-t.C:
		return errcode.Busy
	}
	t.Reset(c.timeout)
	select {
	case err := <-call.done:
		return err
	case <-t.C:
	}
	call.mu.Lock()
	defer call.mu.Unlock()
	select {
	case err := <-call.done:
		return err
	default:
		call.abandoned = true
		return errcode.Timeout
	}
}
