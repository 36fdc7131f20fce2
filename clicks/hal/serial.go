package hal

import (
	"context"
	"errors"
)

// Port is a byte-stream serial port (UART). RecvSomeContext blocks until at
// least one byte is available or ctx is done.
type Port interface {
	Write(p []byte) (int, error)
	RecvSomeContext(ctx context.Context, buf []byte) (int, error)
}

// ErrLineTooLong is returned when a line exceeds the stream's line limit.
// The oversized line is dropped.
var ErrLineTooLong = errors.New("hal: line too long")

// Stream adds buffered byte, block and line reads on top of a Port.
type Stream struct {
	port    Port
	buf     [64]byte
	r, n    int
	line    []byte
	maxLine int
}

// NewStream wraps p. maxLine bounds ReadLine; it is clamped to 16..1024.
func NewStream(p Port, maxLine int) *Stream {
	if maxLine < 16 {
		maxLine = 16
	}
	if maxLine > 1024 {
		maxLine = 1024
	}
	return &Stream{port: p, maxLine: maxLine, line: make([]byte, 0, maxLine)}
}

// Port returns the underlying port.
func (s *Stream) Port() Port { return s.port }

func (s *Stream) Write(p []byte) (int, error) { return s.port.Write(p) }

func (s *Stream) WriteString(str string) (int, error) { return s.port.Write([]byte(str)) }

// Pending reports bytes received but not yet consumed.
func (s *Stream) Pending() int { return s.n - s.r }

// Discard drops buffered bytes and any partial line.
func (s *Stream) Discard() {
	s.r, s.n = 0, 0
	s.line = s.line[:0]
}

func (s *Stream) fill(ctx context.Context) error {
	if s.r < s.n {
		return nil
	}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := s.port.RecvSomeContext(ctx, s.buf[:])
		if n > 0 {
			s.r, s.n = 0, n
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// ReadByteContext returns the next received byte.
func (s *Stream) ReadByteContext(ctx context.Context) (byte, error) {
	if err := s.fill(ctx); err != nil {
		return 0, err
	}
	b := s.buf[s.r]
	s.r++
	return b, nil
}

// ReadFull fills p completely.
func (s *Stream) ReadFull(ctx context.Context, p []byte) error {
	for i := 0; i < len(p); {
		if err := s.fill(ctx); err != nil {
			return err
		}
		c := copy(p[i:], s.buf[s.r:s.n])
		s.r += c
		i += c
	}
	return nil
}

// ReadLine returns the next non-empty line. CR is ignored and LF terminates
// a line. The returned slice is only valid until the next read.
func (s *Stream) ReadLine(ctx context.Context) ([]byte, error) {
	line, _, err := s.ReadLinePrompt(ctx, "")
	return line, err
}

// ReadLinePrompt is ReadLine that also returns early, with prompted set,
// when the pending partial line equals prompt (e.g. "> " from a modem
// waiting for message text).
func (s *Stream) ReadLinePrompt(ctx context.Context, prompt string) (line []byte, prompted bool, err error) {
	tooLong := false
	for {
		b, err := s.ReadByteContext(ctx)
		if err != nil {
			return nil, false, err
		}
		switch b {
		case '\r':
			continue
		case '\n':
			if tooLong {
				s.line = s.line[:0]
				return nil, false, ErrLineTooLong
			}
			if len(s.line) == 0 {
				continue
			}
			out := s.line
			s.line = s.line[:0]
			return out, false, nil
		}
		if tooLong {
			continue
		}
		if len(s.line) >= s.maxLine {
			tooLong = true
			continue
		}
		s.line = append(s.line, b)
		if prompt != "" && string(s.line) == prompt {
			s.line = s.line[:0]
			return nil, true, nil
		}
	}
}
