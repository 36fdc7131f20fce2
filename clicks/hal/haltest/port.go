package haltest

import (
	"context"
	"sync"

	"clickboards/clicks/hal"
)

var _ hal.Port = (*Port)(nil)

// Port is a scripted serial port. Bytes fed with Feed are delivered to the
// driver; OnWrite can answer each write by returning bytes to feed.
type Port struct {
	mu      sync.Mutex
	rx      []byte
	written []byte
	writes  [][]byte
	signal  chan struct{}

	// OnWrite is called outside the lock with a copy of each write.
	OnWrite func(p []byte) []byte
}

func NewPort() *Port {
	return &Port{signal: make(chan struct{}, 1)}
}

// Feed queues bytes for the driver to read.
func (p *Port) Feed(b ...byte) {
	if len(b) == 0 {
		return
	}
	p.mu.Lock()
	p.rx = append(p.rx, b...)
	p.mu.Unlock()
	select {
	case p.signal <- struct{}{}:
	default:
	}
}

func (p *Port) FeedString(s string) { p.Feed([]byte(s)...) }

// Written returns everything the driver wrote.
func (p *Port) Written() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]byte(nil), p.written...)
}

// Writes returns each Write call separately.
func (p *Port) Writes() [][]byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([][]byte, len(p.writes))
	copy(out, p.writes)
	return out
}

func (p *Port) Write(b []byte) (int, error) {
	c := append([]byte(nil), b...)
	p.mu.Lock()
	p.written = append(p.written, c...)
	p.writes = append(p.writes, c)
	hook := p.OnWrite
	p.mu.Unlock()
	if hook != nil {
		p.Feed(hook(c)...)
	}
	return len(b), nil
}

func (p *Port) RecvSomeContext(ctx context.Context, buf []byte) (int, error) {
	for {
		p.mu.Lock()
		if len(p.rx) > 0 {
			n := copy(buf, p.rx)
			p.rx = p.rx[n:]
			more := len(p.rx) > 0
			p.mu.Unlock()
			if more {
				select {
				case p.signal <- struct{}{}:
				default:
				}
			}
			return n, nil
		}
		p.mu.Unlock()
		select {
		case <-p.signal:
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
}

// Pin records levels driven on an output and serves a level to inputs.
type Pin struct {
	mu      sync.Mutex
	level   bool
	history []bool
}

// Out returns a hal.PinOut bound to p.
func (p *Pin) Out() hal.PinOut {
	return func(level bool) {
		p.mu.Lock()
		p.level = level
		p.history = append(p.history, level)
		p.mu.Unlock()
	}
}

// In returns a hal.PinIn bound to p.
func (p *Pin) In() hal.PinIn {
	return func() bool {
		p.mu.Lock()
		defer p.mu.Unlock()
		return p.level
	}
}

// Set forces the level seen by inputs without recording history.
func (p *Pin) Set(level bool) {
	p.mu.Lock()
	p.level = level
	p.mu.Unlock()
}

func (p *Pin) Level() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.level
}

// History returns every level driven, oldest first.
func (p *Pin) History() []bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]bool(nil), p.history...)
}

// Rising counts low-to-high transitions in the history.
func (p *Pin) Rising() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	prev := false
	for i, l := range p.history {
		if l && (i == 0 || !prev) {
			n++
		}
		prev = l
	}
	return n
}
