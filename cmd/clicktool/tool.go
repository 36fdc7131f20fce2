//go:build !rp2040 && !rp2350

package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/google/shlex"
	"go.uber.org/zap"

	"clickboards/board"
	"clickboards/config"
	"clickboards/errcode"
)

const defaultInterval = time.Second

// tool holds one board's opened clicks. Drivers are built on first use so a
// broken click does not stop the others from being used.
type tool struct {
	log   *zap.SugaredLogger
	buses board.Buses
	board *config.Board
	out   io.Writer

	devs map[string]board.Device
}

func newTool(log *zap.Logger, buses board.Buses, b *config.Board, out io.Writer) *tool {
	return &tool{
		log:   log.Sugar(),
		buses: buses,
		board: b,
		out:   out,
		devs:  map[string]board.Device{},
	}
}

func (t *tool) device(id string) (board.Device, error) {
	if d, ok := t.devs[id]; ok {
		return d, nil
	}
	c, ok := t.board.Lookup(id)
	if !ok {
		return nil, &errcode.E{C: errcode.InvalidParams, Op: "clicktool", Msg: fmt.Sprintf("no click %q", id)}
	}
	d, err := board.Open(t.buses, c)
	if err != nil {
		return nil, err
	}
	t.log.Debugw("opened", "click", id, "type", c.Type, "bus", c.BusRef.Type, "id", c.BusRef.ID)
	t.devs[id] = d
	return d, nil
}

func (t *tool) list() {
	for _, c := range t.board.Clicks {
		fmt.Fprintf(t.out, "%-10s %-12s %s:%s\n", c.ID, c.Type, c.BusRef.Type, c.BusRef.ID)
	}
}

func (t *tool) probe(ctx context.Context, id string) error {
	d, err := t.device(id)
	if err != nil {
		return err
	}
	start := time.Now()
	err = d.Probe(ctx)
	if err != nil {
		t.log.Warnw("probe failed", "click", id, "code", errcode.Of(err), "err", err)
		fmt.Fprintf(t.out, "%s: %s\n", id, errcode.Of(err))
		return err
	}
	t.log.Infow("probed", "click", id, "type", d.Type(), "took", time.Since(start))
	fmt.Fprintf(t.out, "%s: ok\n", id)
	return nil
}

// read prints count readings, interval apart. Failed readings are printed
// with their error code and do not stop the loop.
func (t *tool) read(ctx context.Context, id string, count int, interval time.Duration) error {
	d, err := t.device(id)
	if err != nil {
		return err
	}
	if count <= 0 {
		count = 1
	}
	var errs error
	for i := 0; i < count; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return errcode.Append(errs, ctx.Err())
			case <-time.After(interval):
			}
		}
		var line strings.Builder
		line.WriteString(id)
		err := d.Read(ctx, func(key string, v any) {
			fmt.Fprintf(&line, " %s=%s", key, formatValue(v))
		})
		if err != nil {
			fmt.Fprintf(&line, " error=%s", errcode.Of(err))
			t.log.Debugw("read failed", "click", id, "err", err)
			errs = errcode.Append(errs, err)
		}
		fmt.Fprintln(t.out, line.String())
	}
	return errs
}

func formatValue(v any) string {
	switch x := v.(type) {
	case string:
		if x == "" || strings.ContainsAny(x, " \t\"") {
			return strconv.Quote(x)
		}
		return x
	default:
		return fmt.Sprint(x)
	}
}

// command sends a raw line to a click that takes commands.
func (t *tool) command(ctx context.Context, id, line string) error {
	d, err := t.device(id)
	if err != nil {
		return err
	}
	c, ok := d.(board.Commander)
	if !ok {
		return &errcode.E{C: errcode.Unsupported, Op: "clicktool", Msg: fmt.Sprintf("%s (%s) takes no commands", id, d.Type())}
	}
	lines, err := c.Command(ctx, line)
	for _, l := range lines {
		fmt.Fprintln(t.out, l)
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(t.out, "OK")
	return nil
}

// modem returns the first ltecat16 click.
func (t *tool) modem() (string, bool) {
	for _, c := range t.board.Clicks {
		if c.Type == "ltecat16" {
			return c.ID, true
		}
	}
	return "", false
}

const consoleHelp = `commands:
  list
  probe <id>
  read <id> [count [interval]]
  send <id> <line>
  at <command>          AT command to the first ltecat16 click
  help
  quit`

// console runs commands read line by line from in until EOF or "quit".
// Errors are reported and the console carries on.
func (t *tool) console(ctx context.Context, in io.Reader, prompt bool) error {
	sc := bufio.NewScanner(in)
	for {
		if prompt {
			fmt.Fprint(t.out, "> ")
		}
		if !sc.Scan() {
			return sc.Err()
		}
		args, err := shlex.Split(sc.Text())
		if err != nil {
			fmt.Fprintf(t.out, "error: %v\n", err)
			continue
		}
		if len(args) == 0 {
			continue
		}
		if args[0] == "quit" || args[0] == "exit" {
			return nil
		}
		if err := t.exec(ctx, sc.Text(), args); err != nil {
			t.log.Debugw("console command failed", "cmd", args[0], "err", err)
			fmt.Fprintf(t.out, "error: %v\n", err)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func usage(format string, args ...any) error {
	return &errcode.E{C: errcode.InvalidParams, Op: "clicktool", Msg: fmt.Sprintf(format, args...)}
}

// rest returns line after its first n words, untouched by shell quoting.
func rest(line string, n int) string {
	line = strings.TrimSpace(line)
	for i := 0; i < n; i++ {
		j := strings.IndexAny(line, " \t")
		if j < 0 {
			return ""
		}
		line = strings.TrimSpace(line[j:])
	}
	return line
}

// exec runs one console command. AT and raw command lines are passed on as
// typed so that quotes reach the device.
func (t *tool) exec(ctx context.Context, line string, args []string) error {
	switch args[0] {
	case "help":
		fmt.Fprintln(t.out, consoleHelp)
		return nil
	case "list":
		t.list()
		return nil
	case "probe":
		if len(args) != 2 {
			return usage("probe <id>")
		}
		return t.probe(ctx, args[1])
	case "read":
		if len(args) < 2 || len(args) > 4 {
			return usage("read <id> [count [interval]]")
		}
		count, interval := 1, defaultInterval
		if len(args) > 2 {
			n, err := strconv.Atoi(args[2])
			if err != nil {
				return usage("count %q", args[2])
			}
			count = n
		}
		if len(args) > 3 {
			d, err := time.ParseDuration(args[3])
			if err != nil {
				return usage("interval %q", args[3])
			}
			interval = d
		}
		return t.read(ctx, args[1], count, interval)
	case "send":
		if len(args) < 3 {
			return usage("send <id> <line>")
		}
		return t.command(ctx, args[1], rest(line, 2))
	case "at":
		if len(args) < 2 {
			return usage("at <command>")
		}
		id, ok := t.modem()
		if !ok {
			return usage("no ltecat16 click on this board")
		}
		return t.command(ctx, id, rest(line, 1))
	}
	return usage("unknown command %q; try help", args[0])
}
