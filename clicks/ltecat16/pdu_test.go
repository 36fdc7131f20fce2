package ltecat16

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestEncodeSubmit(t *testing.T) {
	cases := []struct {
		name string
		in   Submit
		want PDU
	}{
		{
			name: "gsm7 international",
			in:   Submit{To: "+46708251358", Text: "hellohello"},
			want: PDU{Hex: "0011000B916407281553F80000AA0AE8329BFD4697D9EC37", TPDULen: 23},
		},
		{
			name: "ucs2 fallback",
			in:   Submit{To: "12345", Text: "☺"},
			want: PDU{Hex: "00110005812143F50008AA02263A", TPDULen: 13},
		},
		{
			name: "explicit smsc and status report",
			in:   Submit{SMSC: "+31624000000", To: "12345", Text: "A", StatusReport: true, Validity: time.Hour},
			want: PDU{Hex: "07911326040000F031000581" + "2143F500000B0141", TPDULen: 12},
		},
	}
	for _, c := range cases {
		got, err := EncodeSubmit(c.in)
		if err != nil {
			t.Fatalf("%s: %v", c.name, err)
		}
		if diff := cmp.Diff(c.want, got); diff != "" {
			t.Fatalf("%s (-want +got):\n%s", c.name, diff)
		}
	}
}

func TestEncodeSubmitLimits(t *testing.T) {
	if _, err := EncodeSubmit(Submit{To: "1", Text: strings.Repeat("a", 160)}); err != nil {
		t.Fatalf("160 septets: %v", err)
	}
	if _, err := EncodeSubmit(Submit{To: "1", Text: strings.Repeat("a", 159) + "€"}); !errors.Is(err, ErrMessageTooLong) {
		t.Fatalf("escape counts two septets: %v", err)
	}
	if _, err := EncodeSubmit(Submit{To: "1", Text: strings.Repeat("☺", 71)}); !errors.Is(err, ErrMessageTooLong) {
		t.Fatalf("71 UCS-2: %v", err)
	}
	for _, to := range []string{"", "+", "12a4"} {
		if _, err := EncodeSubmit(Submit{To: to, Text: "x"}); !errors.Is(err, ErrBadAddress) {
			t.Fatalf("To %q: %v", to, err)
		}
	}
}

func TestSeptetRoundTrip(t *testing.T) {
	text := "a{b}€ [x] Øl"
	s, ok := gsmSeptets(text)
	if !ok {
		t.Fatal("text should be GSM encodable")
	}
	packed := packSeptets(s)
	back, err := unpackSeptets(packed, len(s))
	if err != nil {
		t.Fatal(err)
	}
	if got := gsmText(back); got != text {
		t.Fatalf("got %q", got)
	}
	if _, ok := gsmSeptets("日本"); ok {
		t.Fatal("CJK must not be GSM encodable")
	}
}

func TestEncodeValidity(t *testing.T) {
	cases := map[time.Duration]byte{
		0:                   0xAA,
		time.Hour:           11,
		24 * time.Hour:      167,
		4 * 24 * time.Hour:  170,
		70 * 24 * time.Hour: 202,
		time.Minute:         0,
	}
	for d, want := range cases {
		if got := encodeValidity(d); got != want {
			t.Fatalf("%v: got %d, want %d", d, got, want)
		}
	}
}

func TestDecodeDeliver(t *testing.T) {
	const pdu = "07911326040000F0040B916407281553F8000062017121436580" + "0AE8329BFD4697D9EC37"
	got, err := DecodeDeliver(pdu)
	if err != nil {
		t.Fatal(err)
	}
	want := Deliver{
		SMSC:      "+31624000000",
		From:      "+46708251358",
		Timestamp: time.Date(2026, 10, 17, 12, 34, 56, 0, time.FixedZone("", 2*3600)),
		Text:      "hellohello",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("Deliver mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeDeliverUCS2WithHeader(t *testing.T) {
	// No SMSC, UDHI set, alphanumeric sender "Info", UCS-2 body "Hi" after a
	// concatenation header.
	const pdu = "00" + "44" + "085049B7F90D" + "00" + "08" + "62017121436500" +
		"0A" + "0500030A0201" + "00480069"
	got, err := DecodeDeliver(pdu)
	if err != nil {
		t.Fatal(err)
	}
	if got.From != "Info" || got.Text != "Hi" {
		t.Fatalf("got from %q text %q", got.From, got.Text)
	}
	if diff := cmp.Diff([]byte{0x00, 0x03, 0x0A, 0x02, 0x01}, got.Header); diff != "" {
		t.Fatalf("header:\n%s", diff)
	}
}

func TestDecodeDeliverErrors(t *testing.T) {
	if _, err := DecodeDeliver("0011000B91"); !errors.Is(err, ErrNotDeliver) {
		t.Fatalf("SUBMIT: %v", err)
	}
	if _, err := DecodeDeliver("00040B9164"); !errors.Is(err, ErrBadPDU) {
		t.Fatalf("truncated: %v", err)
	}
	if _, err := DecodeDeliver("zz"); !errors.Is(err, ErrBadPDU) {
		t.Fatalf("not hex: %v", err)
	}
}
