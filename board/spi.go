package board

import (
	"context"
	"strings"

	"clickboards/clicks/dtmf"
	"clickboards/errcode"
	"clickboards/x/mathx"
)

func init() {
	RegisterBuilder("dtmf", BuilderFunc(buildDTMF))
}

type dtmfDevice struct {
	base
	drv *dtmf.Device
}

func buildDTMF(in BuilderInput) (Device, error) {
	bus, cs, err := openSPI(in, 1000000, 3)
	if err != nil {
		return nil, err
	}
	c := in.Click
	cfg := dtmf.Config{
		CS:      cs,
		ToneOn:  c.Duration("tone_on", 0),
		ToneOff: c.Duration("tone_off", 0),
		Level:   uint8(mathx.Clamp(c.Int("level", 0), 0, 7)),
	}
	if cfg.Hook, err = pinOut(in, "hook"); err != nil {
		return nil, err
	}
	if cfg.Ring, err = pinIn(in, "ring"); err != nil {
		return nil, err
	}
	return &dtmfDevice{base: newBase(c), drv: dtmf.New(bus, cfg)}, nil
}

func (d *dtmfDevice) Probe(context.Context) error {
	if err := d.drv.Init(); err != nil {
		return err
	}
	return d.drv.DefaultConfig()
}

// Read reports the ring line and any digit the detector holds.
func (d *dtmfDevice) Read(_ context.Context, emit Emit) error {
	emit("ringing", d.drv.Ringing())
	digit, ok, err := d.drv.Detect()
	if err != nil {
		return err
	}
	if ok {
		emit("digit", string(digit))
	}
	return nil
}

// Command takes "dial <digits>", "offhook" or "onhook".
func (d *dtmfDevice) Command(ctx context.Context, line string) ([]string, error) {
	f := strings.Fields(line)
	switch {
	case len(f) == 2 && f[0] == "dial":
		d.drv.OffHook()
		return nil, d.drv.Dial(ctx, f[1])
	case len(f) == 1 && f[0] == "offhook":
		d.drv.OffHook()
		return nil, nil
	case len(f) == 1 && f[0] == "onhook":
		d.drv.OnHook()
		return nil, nil
	}
	return nil, &errcode.E{C: errcode.InvalidParams, Op: "dtmf", Msg: "want dial <digits>, offhook or onhook"}
}
