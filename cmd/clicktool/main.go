//go:build !rp2040 && !rp2350

// Command clicktool drives the click boards described by a board file from a
// Linux host.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"clickboards/board"
	"clickboards/config"
	"clickboards/errcode"
	"clickboards/hostbus"
)

var _ board.Buses = (*hostbus.Host)(nil)

const (
	flagConfig   = "config"
	flagBoard    = "board"
	flagDebug    = "debug"
	flagCount    = "count"
	flagInterval = "interval"
)

func main() {
	var (
		logger *zap.Logger
		host   *hostbus.Host
		tl     *tool
	)

	app := &cli.App{
		Name:  "clicktool",
		Usage: "probe and read click boards on a Linux host",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    flagConfig,
				Aliases: []string{"c"},
				Usage:   "board description file (JSON)",
				EnvVars: []string{"CLICKTOOL_CONFIG"},
			},
			&cli.StringFlag{
				Name:  flagBoard,
				Usage: "built-in board when no file is given: " + strings.Join(config.EmbeddedNames(), ", "),
				Value: "pi-mikrobus",
			},
			&cli.BoolFlag{
				Name:  flagDebug,
				Usage: "development logging at debug level",
			},
		},
		Before: func(c *cli.Context) error {
			var err error
			if c.Bool(flagDebug) {
				logger, err = zap.NewDevelopment()
			} else {
				logger, err = zap.NewProduction()
			}
			if err != nil {
				return err
			}
			b, err := loadBoard(c)
			if err != nil {
				return err
			}
			host = hostbus.New(logger)
			tl = newTool(logger, host, b, c.App.Writer)
			return nil
		},
		After: func(c *cli.Context) error {
			if host != nil {
				if err := host.Close(); err != nil {
					logger.Sugar().Warnw("close", "err", err)
				}
			}
			if logger != nil {
				_ = logger.Sync()
			}
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "list the clicks on the board",
				Action: func(c *cli.Context) error {
					tl.list()
					return nil
				},
			},
			{
				Name:      "probe",
				Usage:     "check and configure clicks (all when no id is given)",
				ArgsUsage: "[id...]",
				Action: func(c *cli.Context) error {
					return eachClick(c, tl, func(id string) error { return tl.probe(c.Context, id) })
				},
			},
			{
				Name:      "read",
				Usage:     "take readings",
				ArgsUsage: "<id>",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: flagCount, Aliases: []string{"n"}, Value: 1, Usage: "number of readings"},
					&cli.DurationFlag{Name: flagInterval, Aliases: []string{"i"}, Value: defaultInterval, Usage: "time between readings"},
				},
				Action: func(c *cli.Context) error {
					if c.NArg() != 1 {
						return cli.Exit("read takes exactly one click id", 2)
					}
					return tl.read(c.Context, c.Args().First(), c.Int(flagCount), c.Duration(flagInterval))
				},
			},
			{
				Name:  "console",
				Usage: "interactive command console on stdin",
				Action: func(c *cli.Context) error {
					fi, err := os.Stdin.Stat()
					prompt := err == nil && fi.Mode()&os.ModeCharDevice != 0
					return tl.console(c.Context, os.Stdin, prompt)
				},
			},
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := app.RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "clicktool:", err)
		os.Exit(1)
	}
}

func loadBoard(c *cli.Context) (*config.Board, error) {
	if path := c.String(flagConfig); path != "" {
		return config.Load(path)
	}
	return config.Embedded(c.String(flagBoard))
}

// eachClick runs fn for every id given, or every click on the board, and
// returns the errors together.
func eachClick(c *cli.Context, tl *tool, fn func(id string) error) error {
	ids := c.Args().Slice()
	if len(ids) == 0 {
		for _, cl := range tl.board.Clicks {
			ids = append(ids, cl.ID)
		}
	}
	var errs []error
	for _, id := range ids {
		errs = append(errs, fn(id))
	}
	return errcode.Combine(errs...)
}
