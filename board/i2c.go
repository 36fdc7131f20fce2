package board

import (
	"context"

	"clickboards/clicks/charger"
	"clickboards/clicks/heartrate"
	"clickboards/clicks/imu6"
	"clickboards/clicks/lightranger"
	"clickboards/clicks/pedometer3"
	"clickboards/config"
	"clickboards/errcode"
	"clickboards/x/mathx"
)

func init() {
	RegisterBuilder("imu6", BuilderFunc(buildIMU6))
	RegisterBuilder("charger", BuilderFunc(buildCharger))
	RegisterBuilder("heartrate", BuilderFunc(buildHeartRate))
	RegisterBuilder("lightranger", BuilderFunc(buildLightRanger))
	RegisterBuilder("pedometer3", BuilderFunc(buildPedometer3))
}

// ---------------- imu6 ----------------

type imu6Device struct {
	base
	drv *imu6.Device
}

func buildIMU6(in BuilderInput) (Device, error) {
	d := &imu6Device{base: newBase(in.Click)}
	switch in.Click.BusRef.Type {
	case config.BusSPI:
		bus, cs, err := openSPI(in, 5000000, 3)
		if err != nil {
			return nil, err
		}
		d.drv = imu6.NewSPI(bus, cs, imu6.Config{})
	default:
		bus, addr, err := openI2C(in)
		if err != nil {
			return nil, err
		}
		d.drv = imu6.NewI2C(bus, addr, imu6.Config{})
	}
	return d, nil
}

func (d *imu6Device) Probe(context.Context) error {
	if err := d.drv.Configure(); err != nil {
		return err
	}
	return d.drv.DefaultConfig()
}

func (d *imu6Device) Read(_ context.Context, emit Emit) error {
	var err error
	if a, e := d.drv.Accel(); e == nil {
		emitVector(emit, "accel", "ug", a.X, a.Y, a.Z)
	} else {
		err = errcode.Append(err, e)
	}
	if g, e := d.drv.Gyro(); e == nil {
		emitVector(emit, "gyro", "mdps", g.X, g.Y, g.Z)
	} else {
		err = errcode.Append(err, e)
	}
	if t, e := d.drv.Temperature(); e == nil {
		emit("temp_dc", t)
	} else {
		err = errcode.Append(err, e)
	}
	return err
}

func emitVector(emit Emit, name, unit string, x, y, z int32) {
	emit(name+"_x_"+unit, x)
	emit(name+"_y_"+unit, y)
	emit(name+"_z_"+unit, z)
}

// ---------------- charger ----------------

type chargerDevice struct {
	base
	drv *charger.Device
}

func buildCharger(in BuilderInput) (Device, error) {
	bus, addr, err := openI2C(in)
	if err != nil {
		return nil, err
	}
	c := in.Click
	cfg := charger.DefaultConfig()
	if addr != 0 {
		cfg.Address = addr
	}
	cfg.InputLimit_mA = int32(c.Int("input_limit_ma", int(cfg.InputLimit_mA)))
	cfg.ChargeCurrent_mA = int32(c.Int("charge_current_ma", int(cfg.ChargeCurrent_mA)))
	cfg.ChargeVoltage_mV = int32(c.Int("charge_voltage_mv", int(cfg.ChargeVoltage_mV)))
	cfg.MinSystem_mV = int32(c.Int("min_system_mv", int(cfg.MinSystem_mV)))
	return &chargerDevice{base: newBase(c), drv: charger.New(bus, cfg)}, nil
}

// Probe applies the board's setpoints, which start from the driver
// defaults, then starts the ADC and enables charging.
func (d *chargerDevice) Probe(context.Context) error {
	if err := d.drv.Configure(); err != nil {
		return err
	}
	var err error
	err = errcode.Append(err, d.drv.StartADC(true))
	err = errcode.Append(err, d.drv.EnableCharging(true))
	return err
}

func (d *chargerDevice) Read(_ context.Context, emit Emit) error {
	var err error
	if s, e := d.drv.Status(); e == nil {
		emit("source", s.Source.String())
		emit("phase", s.Phase.String())
		emit("power_good", s.PowerGood)
	} else {
		err = errcode.Append(err, e)
	}
	t, e := d.drv.ReadTelemetry()
	err = errcode.Append(err, e)
	emit("battery_mv", t.Battery_mV)
	emit("system_mv", t.System_mV)
	emit("vbus_mv", t.Vbus_mV)
	emit("charge_ma", t.Charge_mA)
	emit("ts_mpct", t.TS_mPct)
	if _, now, e := d.drv.Faults(); e == nil {
		emit("fault", now.Any())
	} else {
		err = errcode.Append(err, e)
	}
	return err
}

// ---------------- heartrate ----------------

type heartRateDevice struct {
	base
	drv *heartrate.Device
	buf []heartrate.Sample
}

func buildHeartRate(in BuilderInput) (Device, error) {
	bus, addr, err := openI2C(in)
	if err != nil {
		return nil, err
	}
	n := mathx.Clamp(in.Click.Int("samples", 8), 1, 32)
	return &heartRateDevice{
		base: newBase(in.Click),
		drv:  heartrate.New(bus, heartrate.Config{Address: addr}),
		buf:  make([]heartrate.Sample, n),
	}, nil
}

func (d *heartRateDevice) Probe(context.Context) error {
	if err := d.drv.Configure(); err != nil {
		return err
	}
	return d.drv.DefaultConfig()
}

func (d *heartRateDevice) Read(_ context.Context, emit Emit) error {
	n, err := d.drv.ReadFIFO(d.buf)
	emit("samples", n)
	if n > 0 {
		var red, ir uint64
		for _, s := range d.buf[:n] {
			red += uint64(s.Red)
			ir += uint64(s.IR)
		}
		emit("red_avg", uint32(red/uint64(n)))
		emit("ir_avg", uint32(ir/uint64(n)))
	}
	if t, e := d.drv.Temperature(); e == nil {
		emit("temp_mc", t)
	} else {
		err = errcode.Append(err, e)
	}
	return err
}

// ---------------- lightranger ----------------

type lightRangerDevice struct {
	base
	drv  *lightranger.Device
	gain lightranger.ALSGain
}

func buildLightRanger(in BuilderInput) (Device, error) {
	bus, addr, err := openI2C(in)
	if err != nil {
		return nil, err
	}
	// GPIO0/CE holds the part in reset while low.
	en, err := pinOut(in, "enable")
	if err != nil {
		return nil, err
	}
	if en != nil {
		en(true)
	}
	c := in.Click
	cfg := lightranger.Config{
		Address: addr,
		Timeout: c.Duration("timeout", 0),
	}
	return &lightRangerDevice{
		base: newBase(c),
		drv:  lightranger.New(bus, cfg),
		gain: lightranger.ALSGain(mathx.Clamp(c.Int("als_gain", int(lightranger.Gain1)), 0, 7)),
	}, nil
}

func (d *lightRangerDevice) Probe(context.Context) error {
	if err := d.drv.Configure(); err != nil {
		return err
	}
	return d.drv.DefaultConfig()
}

func (d *lightRangerDevice) Read(ctx context.Context, emit Emit) error {
	var err error
	if mm, e := d.drv.Range(ctx); e == nil {
		emit("range_mm", mm)
	} else {
		err = errcode.Append(err, e)
	}
	if lux, e := d.drv.AmbientLight(ctx, d.gain); e == nil {
		emit("light_mlux", lux)
	} else {
		err = errcode.Append(err, e)
	}
	return err
}

// ---------------- pedometer3 ----------------

type pedometer3Device struct {
	base
	drv *pedometer3.Device
}

func buildPedometer3(in BuilderInput) (Device, error) {
	d := &pedometer3Device{base: newBase(in.Click)}
	switch in.Click.BusRef.Type {
	case config.BusSPI:
		bus, cs, err := openSPI(in, 1000000, 0)
		if err != nil {
			return nil, err
		}
		d.drv = pedometer3.NewSPI(bus, cs, pedometer3.Config{})
	default:
		bus, addr, err := openI2C(in)
		if err != nil {
			return nil, err
		}
		d.drv = pedometer3.NewI2C(bus, addr, pedometer3.Config{})
	}
	return d, nil
}

func (d *pedometer3Device) Probe(context.Context) error {
	if err := d.drv.Configure(); err != nil {
		return err
	}
	return d.drv.DefaultConfig()
}

func (d *pedometer3Device) Read(_ context.Context, emit Emit) error {
	var err error
	if a, e := d.drv.Accel(); e == nil {
		emitVector(emit, "accel", "ug", a.X, a.Y, a.Z)
	} else {
		err = errcode.Append(err, e)
	}
	if n, e := d.drv.StepCount(); e == nil {
		emit("steps", n)
	} else {
		err = errcode.Append(err, e)
	}
	return err
}
