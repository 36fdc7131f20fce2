package ltecat16

import (
	"strconv"
	"strings"

	"clickboards/errcode"
	"clickboards/x/conv"
)

// Result is the final result code terminating an AT command.
type Result string

const (
	ResultOK         Result = "OK"
	ResultError      Result = "ERROR"
	ResultCME        Result = "+CME ERROR"
	ResultCMS        Result = "+CMS ERROR"
	ResultNoCarrier  Result = "NO CARRIER"
	ResultBusy       Result = "BUSY"
	ResultNoAnswer   Result = "NO ANSWER"
	ResultNoDialtone Result = "NO DIALTONE"
)

// finalResult classifies line. detail is the text after "+CME ERROR: ".
func finalResult(line string) (r Result, detail string, ok bool) {
	switch Result(line) {
	case ResultOK, ResultError, ResultNoCarrier, ResultBusy, ResultNoAnswer, ResultNoDialtone:
		return Result(line), "", true
	}
	for _, r := range [...]Result{ResultCME, ResultCMS} {
		if p := string(r) + ":"; strings.HasPrefix(line, p) {
			return r, strings.TrimSpace(line[len(p):]), true
		}
	}
	return "", "", false
}

// CommandError is a command that finished with anything but OK.
type CommandError struct {
	Command string
	Result  Result
	// Code is the numeric +CME/+CMS error, or -1 when the modem reported
	// verbose text (see Text).
	Code int
	Text string
}

func (e *CommandError) Error() string {
	s := "ltecat16: AT" + e.Command + ": " + string(e.Result)
	switch {
	case e.Code >= 0 && (e.Result == ResultCME || e.Result == ResultCMS):
		s += " " + strconv.Itoa(e.Code)
	case e.Text != "":
		s += " " + e.Text
	}
	return s
}

// ErrCode classifies the failure for errcode.Of.
func (e *CommandError) ErrCode() errcode.Code {
	switch e.Result {
	case ResultBusy:
		return errcode.Busy
	case ResultCME:
		if e.Code == 4 {
			return errcode.Unsupported
		}
	}
	return errcode.Error
}

func newCommandError(cmd string, r Result, detail string) *CommandError {
	e := &CommandError{Command: cmd, Result: r, Code: -1}
	if detail == "" {
		return e
	}
	if n, ok := conv.Atoi(detail); ok {
		e.Code = n
	} else {
		e.Text = detail
	}
	return e
}

// Response holds the information lines of a successful command, without
// echo, URCs or the final result.
type Response struct {
	Lines []string
}

// Value returns the payload of the first line starting with prefix + ":".
func (r *Response) Value(prefix string) (string, bool) {
	p := prefix + ":"
	for _, l := range r.Lines {
		if strings.HasPrefix(l, p) {
			return strings.TrimSpace(l[len(p):]), true
		}
	}
	return "", false
}

// Fields returns the comma-separated fields of the first prefix line.
func (r *Response) Fields(prefix string) []string {
	v, ok := r.Value(prefix)
	if !ok {
		return nil
	}
	return Fields(v)
}

// Fields splits an AT payload on commas outside double quotes and strips the
// quotes.
func Fields(s string) []string {
	var (
		out    []string
		b      strings.Builder
		quoted bool
	)
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '"':
			quoted = !quoted
		case c == ',' && !quoted:
			out = append(out, strings.TrimSpace(b.String()))
			b.Reset()
		default:
			b.WriteByte(c)
		}
	}
	return append(out, strings.TrimSpace(b.String()))
}

// Unsolicited result codes the modem may emit at any time.
var urcPrefixes = [...]string{
	"+CREG:", "+CEREG:", "+CGREG:", "+CMTI:", "+CMT:", "+CDS:", "+CBM:",
	"+CRING:", "+CLIP:", "+CUSD:", "+CPIN:", "+CFUN:", "+QIND:", "+QIURC:",
	"+QUSIM:", "+QSTAT:", "RING", "RDY", "POWERED DOWN", "NORMAL POWER DOWN",
}

// isURC reports whether line is unsolicited while waiting for a response
// whose information lines start with expect.
func isURC(line, expect string) bool {
	if expect != "" && strings.HasPrefix(line, expect) {
		return false
	}
	for _, p := range urcPrefixes {
		if strings.HasPrefix(line, p) {
			return true
		}
	}
	return false
}

// responsePrefix derives the information-line prefix of an extended command:
// "+CEREG?" and "+CEREG=2" both answer with "+CEREG:".
func responsePrefix(cmd string) string {
	if !strings.HasPrefix(cmd, "+") {
		return ""
	}
	if i := strings.IndexAny(cmd, "=?"); i > 0 {
		cmd = cmd[:i]
	}
	return cmd + ":"
}
