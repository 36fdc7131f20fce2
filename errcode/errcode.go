// Package errcode gives driver failures a small set of stable identifiers.
//
// Drivers return plain errors; tooling that needs a status (a CLI exit code,
// a log field, the classic 0/-1 err_t) asks errcode.Of or errcode.Status.
package errcode

import (
	"errors"

	"go.uber.org/multierr"
)

// Code is a stable error identifier.
// It is a string newtype, comparable, allocation-free, and implements error.
type Code string

func (c Code) Error() string { return string(c) }

// Canonical codes (short, stable).
const (
	OK            Code = "ok"
	Timeout       Code = "timeout"
	NotReady      Code = "not_ready"
	InvalidParams Code = "invalid_params"
	WrongDevice   Code = "wrong_device"
	CRC           Code = "crc"
	Protocol      Code = "protocol"
	Unsupported   Code = "unsupported"
	Busy          Code = "busy"

	Error Code = "error" // generic fallback
)

// E keeps context and a cause alongside a Code.
type E struct {
	C   Code
	Op  string
	Msg string
	Err error
}

func (e *E) Error() string {
	s := string(e.C)
	if e.Op != "" {
		s = e.Op + ": " + s
	}
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}
func (e *E) Unwrap() error { return e.Err }
func (e *E) Code() Code    { return e.C }

// Wrap returns nil when err is nil.
func Wrap(c Code, op string, err error) error {
	if err == nil {
		return nil
	}
	return &E{C: c, Op: op, Err: err}
}

// Of extracts a Code from an error chain, defaulting to Error.
func Of(err error) Code {
	if err == nil {
		return OK
	}
	type coder interface{ Code() Code }
	// Error types whose Code field is taken (e.g. a protocol error number)
	// expose ErrCode instead.
	type errCoder interface{ ErrCode() Code }
	for e := err; e != nil; e = errors.Unwrap(e) {
		switch x := e.(type) {
		case Code:
			return x
		case coder:
			return x.Code()
		case errCoder:
			return x.ErrCode()
		}
	}
	// Combined errors: the first coded member wins.
	for _, e := range multierr.Errors(err) {
		if e == err {
			continue
		}
		if c := Of(e); c != Error {
			return c
		}
	}
	return Error
}

// Status maps err to the 0 (OK) / -1 (ERROR) convention of C board packages.
func Status(err error) int {
	if err == nil {
		return 0
	}
	return -1
}

// Append accumulates err into acc. Register sequences use it so that every
// write is attempted and all failures are reported together.
func Append(acc, err error) error { return multierr.Append(acc, err) }

// Combine merges errs, skipping nils.
func Combine(errs ...error) error { return multierr.Combine(errs...) }

// Errors lists the individual members of an accumulated error.
func Errors(err error) []error { return multierr.Errors(err) }
