package enocean5

import (
	"context"
	"encoding/hex"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"clickboards/clicks/hal/haltest"
	"clickboards/errcode"
)

const (
	frameOK      = "5500010002650000"
	frameReady   = "5500020004ca040153"
	frameVersion = "55002100022600020b0100020603000186a5f245020100474154455741594354524c00000000007c"
)

// module answers known request frames with canned reply frames.
func module(t *testing.T, replies map[string]string) (*haltest.Port, *Device, *[]Packet) {
	t.Helper()
	p := haltest.NewPort()
	p.OnWrite = func(w []byte) []byte {
		r, ok := replies[hex.EncodeToString(w)]
		if !ok {
			return nil
		}
		b, err := hex.DecodeString(r)
		if err != nil {
			t.Errorf("bad reply %q", r)
		}
		return b
	}
	var other []Packet
	d := New(p, Config{
		ResponseTimeout: 20 * time.Millisecond,
		OnPacket:        func(p Packet) { other = append(other, p) },
	})
	return p, d, &other
}

func TestReadVersion(t *testing.T) {
	_, d, other := module(t, map[string]string{
		"5500010005700309": frameReady + frameVersion,
	})
	v, err := d.ReadVersion(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	want := Version{
		App:         [4]byte{2, 11, 1, 0},
		API:         [4]byte{2, 6, 3, 0},
		ChipID:      0x0186A5F2,
		ChipVersion: 0x45020100,
		Description: "GATEWAYCTRL",
	}
	if diff := cmp.Diff(want, v); diff != "" {
		t.Fatalf("(-want +got):\n%s", diff)
	}
	if v.AppString() != "2.11.1.0" {
		t.Fatalf("AppString = %q", v.AppString())
	}
	if len(*other) != 1 || (*other)[0].Type != TypeEvent {
		t.Fatalf("interleaved packets = %v", *other)
	}
	ev, err := ParseEvent((*other)[0])
	if err != nil || ev.Code != EventReady || ev.WakeUp != WakeResetPin {
		t.Fatalf("event %+v %v", ev, err)
	}
}

func TestReturnCodeError(t *testing.T) {
	_, d, _ := module(t, map[string]string{
		"550001000570020e": "550001000265020e",
	})
	err := d.SoftReset(context.Background())
	var rce *ReturnCodeError
	if !errors.As(err, &rce) || rce.Code != RetNotSupported || rce.Command != CmdWriteReset {
		t.Fatalf("err = %v", err)
	}
	if errcode.Of(err) != errcode.Unsupported {
		t.Fatalf("code = %v", errcode.Of(err))
	}
	if rce.Error() != "enocean5: command 0x02: NOT_SUPPORTED" {
		t.Fatalf("message %q", rce.Error())
	}
}

func TestCommandTimeout(t *testing.T) {
	_, d, _ := module(t, nil)
	if _, err := d.Command(context.Background(), CmdReadVersion); !errors.Is(err, ErrTimeout) {
		t.Fatalf("want ErrTimeout, got %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := d.Command(ctx, CmdReadVersion); !errors.Is(err, context.Canceled) {
		t.Fatalf("want Canceled, got %v", err)
	}
}

func TestIDBase(t *testing.T) {
	p, d, _ := module(t, map[string]string{
		"5500010005700838":         "5500050102db00ff9a12000ab1",
		"5500050005db07ff800000f3": frameOK,
	})
	ctx := context.Background()
	base, left, err := d.ReadIDBase(ctx)
	if err != nil || base != 0xFF9A1200 || left != 10 {
		t.Fatalf("ReadIDBase = %#x, %d, %v", base, left, err)
	}
	for _, bad := range []uint32{0x12345600, 0xFF800001, 0x7F800000} {
		if err := d.WriteIDBase(ctx, bad); !errors.Is(err, ErrInvalidArg) {
			t.Fatalf("%#x: %v", bad, err)
		}
	}
	if err := d.WriteIDBase(ctx, 0xFF800000); err != nil {
		t.Fatal(err)
	}
	if n := len(p.Writes()); n != 2 {
		t.Fatalf("%d frames written", n)
	}
}

func TestSetRepeater(t *testing.T) {
	p, d, _ := module(t, map[string]string{"5500030005a609010221": frameOK})
	ctx := context.Background()
	if err := d.SetRepeater(ctx, 3); !errors.Is(err, ErrInvalidArg) {
		t.Fatalf("level 3: %v", err)
	}
	if err := d.SetRepeater(ctx, 2); err != nil {
		t.Fatal(err)
	}
	if got := hex.EncodeToString(p.Written()); got != "5500030005a609010221" {
		t.Fatalf("written %s", got)
	}
}

func TestSendTelegram(t *testing.T) {
	p, d, _ := module(t, nil)
	ctx := context.Background()
	err := d.SendTelegram(ctx, Telegram{RORG: RORG4BS, Data: []byte{0x00, 0x11, 0x22, 0x08}, SenderID: 0xFF9A1201})
	if err != nil {
		t.Fatal(err)
	}
	if got := hex.EncodeToString(p.Written()); got != "55000a0701eba500112208ff9a12010003ffffffffff0088" {
		t.Fatalf("written %s", got)
	}
	if err := d.SendTelegram(ctx, Telegram{RORG: RORGRPS, Data: []byte{1, 2}}); !errors.Is(err, ErrInvalidArg) {
		t.Fatalf("RPS with 2 bytes: %v", err)
	}
}

func TestReceiveTelegram(t *testing.T) {
	p, d, _ := module(t, nil)
	b, _ := hex.DecodeString("55000707017af630002e5a1b3001ffffffff2d0015")
	p.Feed(b...)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	pkt, err := d.Receive(ctx)
	if err != nil {
		t.Fatal(err)
	}
	tg, err := ParseTelegram(pkt)
	if err != nil {
		t.Fatal(err)
	}
	want := Telegram{
		RORG:         RORGRPS,
		Data:         []byte{0x30},
		SenderID:     0x002E5A1B,
		Status:       0x30,
		Destination:  Broadcast,
		SubTelegrams: 1,
		DBm:          -45,
	}
	if diff := cmp.Diff(want, tg); diff != "" {
		t.Fatalf("(-want +got):\n%s", diff)
	}
	if _, err := ParseTelegram(Packet{Type: TypeEvent, Data: b}); !errors.Is(err, ErrBadPacket) {
		t.Fatalf("event as telegram: %v", err)
	}
}

func TestResetDiscardsInput(t *testing.T) {
	var rst haltest.Pin
	p := haltest.NewPort()
	d := New(p, Config{Reset: rst.Out(), ResetPulse: time.Millisecond})
	p.Feed(0x55, 0x00, 0x01)
	if _, err := d.s.ReadByteContext(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := d.Reset(context.Background()); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]bool{true, false, true}, rst.History()); diff != "" {
		t.Fatalf("reset pin (-want +got):\n%s", diff)
	}
	if d.s.Pending() != 0 {
		t.Fatal("buffered input survived reset")
	}
}

func TestEventNames(t *testing.T) {
	if EventDutyCycleLimit.String() != "CO_DUTYCYCLE_LIMIT" || EventCode(99).String() != "EVENT_99" {
		t.Fatal("event names")
	}
	if WakeUpCause(42).String() != "unknown" || TypeRadioERP2.String() != "RADIO_ERP2" {
		t.Fatal("names")
	}
}
