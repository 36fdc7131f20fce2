package ltecat16

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"clickboards/clicks/hal/haltest"
	"clickboards/errcode"
)

// scripted returns a port answering each written command from script. The
// modem echoes commands, as it does out of reset.
func scripted(script map[string]string) *haltest.Port {
	p := haltest.NewPort()
	p.OnWrite = func(w []byte) []byte {
		cmd := string(w)
		reply, ok := script[cmd]
		if !ok {
			return nil
		}
		if len(cmd) > 0 && cmd[len(cmd)-1] == '\r' {
			return []byte(cmd + "\r\n" + reply)
		}
		return []byte(reply)
	}
	return p
}

func testConfig() Config {
	return Config{CommandTimeout: 200 * time.Millisecond, SMSTimeout: 200 * time.Millisecond}
}

func TestSignalQuality(t *testing.T) {
	port := scripted(map[string]string{
		"AT+CSQ\r": "+CSQ: 20,99\r\n\r\nOK\r\n",
	})
	d := New(port, testConfig())
	got, err := d.SignalQuality(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(Signal{RSSI: 20, BER: 99, DBm: -73}, got); diff != "" {
		t.Fatalf("Signal mismatch:\n%s", diff)
	}
	if !got.Known() {
		t.Fatal("signal should be known")
	}
}

func TestURCRoutedDuringCommand(t *testing.T) {
	port := scripted(map[string]string{
		"AT+CEREG?\r": "+CMTI: \"SM\",3\r\n+CEREG: 0,5\r\n\r\nOK\r\n",
	})
	var urcs []string
	cfg := testConfig()
	cfg.OnURC = func(l string) { urcs = append(urcs, l) }
	d := New(port, cfg)

	st, err := d.Registration(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if st != RegRoaming || !st.Registered() {
		t.Fatalf("status = %v", st)
	}
	if diff := cmp.Diff([]string{`+CMTI: "SM",3`}, urcs); diff != "" {
		t.Fatalf("URCs mismatch:\n%s", diff)
	}
	if idx, ok := NewMessageIndex(urcs[0]); !ok || idx != 3 {
		t.Fatalf("NewMessageIndex = %d, %v", idx, ok)
	}
}

func TestRegistrationFallsBackToCREG(t *testing.T) {
	port := scripted(map[string]string{
		"AT+CEREG?\r": "+CEREG: 0,2\r\n\r\nOK\r\n",
		"AT+CREG?\r":  "+CREG: 0,1\r\n\r\nOK\r\n",
	})
	d := New(port, testConfig())
	st, err := d.Registration(context.Background())
	if err != nil || st != RegHome {
		t.Fatalf("got %v, %v; want home", st, err)
	}
}

func TestCommandErrors(t *testing.T) {
	port := scripted(map[string]string{
		"AT+CPIN?\r": "+CME ERROR: 10\r\n",
		"AT+COPS?\r": "+CME ERROR: SIM not inserted\r\n",
		"ATD123;\r":  "BUSY\r\n",
	})
	d := New(port, testConfig())
	ctx := context.Background()

	_, err := d.Command(ctx, "+CPIN?")
	var ce *CommandError
	if !errors.As(err, &ce) || ce.Result != ResultCME || ce.Code != 10 {
		t.Fatalf("got %v", err)
	}
	if ce.Error() != "ltecat16: AT+CPIN?: +CME ERROR 10" {
		t.Fatalf("message %q", ce.Error())
	}

	_, err = d.Operator(ctx)
	if !errors.As(err, &ce) || ce.Code != -1 || ce.Text != "SIM not inserted" {
		t.Fatalf("got %#v", err)
	}

	err = d.Dial(ctx, "123")
	if errcode.Of(err) != errcode.Busy {
		t.Fatalf("BUSY classified as %v", errcode.Of(err))
	}
}

func TestCommandTimeout(t *testing.T) {
	d := New(haltest.NewPort(), Config{CommandTimeout: 20 * time.Millisecond})
	if _, err := d.Command(context.Background(), "+CSQ"); !errors.Is(err, ErrTimeout) {
		t.Fatalf("want ErrTimeout, got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := d.Command(ctx, "+CSQ"); !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}
}

func TestQueries(t *testing.T) {
	port := scripted(map[string]string{
		"AT+COPS?\r": "+COPS: 0,0,\"Telia, SE\",7\r\n\r\nOK\r\n",
		"AT+CGSN\r":  "867698041234567\r\n\r\nOK\r\n",
	})
	d := New(port, testConfig())
	ctx := context.Background()
	op, err := d.Operator(ctx)
	if err != nil || op != "Telia, SE" {
		t.Fatalf("Operator = %q, %v", op, err)
	}
	imei, err := d.IMEI(ctx)
	if err != nil || imei != "867698041234567" {
		t.Fatalf("IMEI = %q, %v", imei, err)
	}
}

func TestSetAPNAndAttach(t *testing.T) {
	port := scripted(map[string]string{
		"AT+CGDCONT=1,\"IP\",\"internet\"\r": "OK\r\n",
		"AT+CGATT=1\r":                       "OK\r\n",
	})
	d := New(port, testConfig())
	ctx := context.Background()
	if err := d.SetAPN(ctx, 1, "IP", "internet"); err != nil {
		t.Fatal(err)
	}
	if err := d.Attach(ctx, true); err != nil {
		t.Fatal(err)
	}
	if err := d.SetAPN(ctx, 0, "IP", "x"); !errors.Is(err, ErrInvalidArg) {
		t.Fatalf("cid 0: %v", err)
	}
	if err := d.SetAPN(ctx, 16, "IP", "x"); !errors.Is(err, ErrInvalidArg) {
		t.Fatalf("cid 16: %v", err)
	}
}

func TestDefaultConfig(t *testing.T) {
	port := scripted(map[string]string{
		"AT\r":        "OK\r\n",
		"ATE0\r":      "OK\r\n",
		"AT+CMEE=1\r": "ERROR\r\n",
		"AT+CMGF=0\r": "OK\r\n",
	})
	d := New(port, testConfig())
	err := d.DefaultConfig(context.Background())
	errs := errcode.Errors(err)
	if len(errs) != 1 {
		t.Fatalf("want one failure, got %v", err)
	}
	var ce *CommandError
	if !errors.As(errs[0], &ce) || ce.Command != "+CMEE=1" {
		t.Fatalf("got %v", errs[0])
	}
	var sent []string
	for _, w := range port.Writes() {
		sent = append(sent, string(w))
	}
	want := []string{"AT\r", "ATE0\r", "AT+CMEE=1\r", "AT+CMGF=0\r"}
	if diff := cmp.Diff(want, sent); diff != "" {
		t.Fatalf("commands mismatch:\n%s", diff)
	}
}

func TestSendSMS(t *testing.T) {
	const pdu = "0011000B916407281553F80000AA0AE8329BFD4697D9EC37"
	port := scripted(map[string]string{
		"AT+CMGS=23\r": "> ",
		pdu + "\x1a":   "\r\n+CMGS: 42\r\n\r\nOK\r\n",
	})
	d := New(port, testConfig())
	mr, err := d.SendSMS(context.Background(), "", "+46708251358", "hellohello")
	if err != nil {
		t.Fatal(err)
	}
	if mr != 42 {
		t.Fatalf("message reference = %d", mr)
	}
	w := port.Writes()
	if len(w) != 2 || string(w[1]) != pdu+"\x1a" {
		t.Fatalf("writes = %q", w)
	}
}

func TestReadSMS(t *testing.T) {
	const pdu = "07911326040000F0040B916407281553F8000062017121436580" + "0AE8329BFD4697D9EC37"
	port := scripted(map[string]string{
		"AT+CMGR=3\r": "+CMGR: 0,,27\r\n" + pdu + "\r\n\r\nOK\r\n",
	})
	d := New(port, testConfig())
	m, err := d.ReadSMS(context.Background(), 3)
	if err != nil {
		t.Fatal(err)
	}
	if m.From != "+46708251358" || m.Text != "hellohello" || m.SMSC != "+31624000000" {
		t.Fatalf("got %+v", m)
	}
}

func TestPowerOn(t *testing.T) {
	var status haltest.Pin
	cfg := testConfig()
	cfg.PowerOnPulse = time.Millisecond
	cfg.BootTimeout = 50 * time.Millisecond
	cfg.Status = status.In()
	cfg.PowerKey = func(level bool) {
		if level {
			status.Set(true)
		}
	}
	d := New(haltest.NewPort(), cfg)
	if err := d.PowerOn(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !d.PoweredOn() {
		t.Fatal("STATUS low after PowerOn")
	}
}

func TestPowerOnTimeout(t *testing.T) {
	var status, key haltest.Pin
	cfg := testConfig()
	cfg.PowerOnPulse = time.Millisecond
	cfg.BootTimeout = 30 * time.Millisecond
	cfg.Status = status.In()
	cfg.PowerKey = key.Out()
	d := New(haltest.NewPort(), cfg)
	if err := d.PowerOn(context.Background()); !errors.Is(err, ErrPowerStatus) {
		t.Fatalf("want ErrPowerStatus, got %v", err)
	}
	if diff := cmp.Diff([]bool{false, true, false}, key.History()); diff != "" {
		t.Fatalf("PWRKEY history:\n%s", diff)
	}
}

func TestListen(t *testing.T) {
	port := haltest.NewPort()
	got := make(chan string, 4)
	cfg := testConfig()
	cfg.OnURC = func(l string) { got <- l }
	d := New(port, cfg)
	port.FeedString("\r\nRING\r\n\r\n+CMTI: \"ME\",7\r\n")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := d.Listen(ctx); err != nil {
		t.Fatal(err)
	}
	close(got)
	var lines []string
	for l := range got {
		lines = append(lines, l)
	}
	if diff := cmp.Diff([]string{"RING", `+CMTI: "ME",7`}, lines); diff != "" {
		t.Fatalf("URCs:\n%s", diff)
	}
}

func TestFields(t *testing.T) {
	got := Fields(` 0, "a,b" ,3,`)
	if diff := cmp.Diff([]string{"0", "a,b", "3", ""}, got); diff != "" {
		t.Fatal(diff)
	}
}
