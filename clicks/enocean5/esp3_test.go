package enocean5

import (
	"encoding/hex"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func unhex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func decodeAll(d *Decoder, in []byte) (pkts []Packet, errs []error) {
	for _, b := range in {
		p, ok, err := d.Feed(b)
		if err != nil {
			errs = append(errs, err)
		}
		if ok {
			pkts = append(pkts, p)
		}
	}
	return pkts, errs
}

func TestEncodePacket(t *testing.T) {
	cases := []struct {
		p    Packet
		want string
	}{
		{Packet{Type: TypeCommonCommand, Data: []byte{CmdReadVersion}}, "5500010005700309"},
		{Packet{Type: TypeResponse, Data: []byte{0x00}}, "5500010002650000"},
		{Packet{Type: TypeEvent, Data: []byte{0x04, 0x01}}, "5500020004ca040153"},
		{
			Packet{Type: TypeRadioERP1, Data: unhex(t, "f630002e5a1b30"), Optional: unhex(t, "01ffffffff2d00")},
			"55000707017af630002e5a1b3001ffffffff2d0015",
		},
	}
	for _, c := range cases {
		got, err := EncodePacket(c.p)
		if err != nil {
			t.Fatal(err)
		}
		if hex.EncodeToString(got) != c.want {
			t.Fatalf("%v: got %x, want %s", c.p.Type, got, c.want)
		}
	}

	if _, err := EncodePacket(Packet{Optional: make([]byte, 256)}); !errors.Is(err, ErrPacketTooLarge) {
		t.Fatalf("optional 256: %v", err)
	}
	if _, err := EncodePacket(Packet{Data: make([]byte, 1<<16)}); !errors.Is(err, ErrPacketTooLarge) {
		t.Fatalf("data 65536: %v", err)
	}
}

func TestDecoderRoundTrip(t *testing.T) {
	in := Packet{Type: TypeRadioERP1, Data: unhex(t, "a500112208ff9a120100"), Optional: unhex(t, "03ffffffffff00")}
	b, err := EncodePacket(in)
	if err != nil {
		t.Fatal(err)
	}
	var d Decoder
	pkts, errs := decodeAll(&d, append([]byte{0x00, 0x13}, b...))
	if len(errs) != 0 {
		t.Fatal(errs)
	}
	if diff := cmp.Diff([]Packet{in}, pkts); diff != "" {
		t.Fatalf("(-want +got):\n%s", diff)
	}
}

func TestDecoderResyncsAfterFalseSync(t *testing.T) {
	// A stray 0x55 directly before a real frame forms a header with a bad
	// CRC; the real frame must still be found.
	in := append([]byte{0x00, 0x55}, unhex(t, "5500010005700309")...)
	var d Decoder
	pkts, errs := decodeAll(&d, in)
	if len(errs) != 0 {
		t.Fatal(errs)
	}
	want := []Packet{{Type: TypeCommonCommand, Data: []byte{0x03}}}
	if diff := cmp.Diff(want, pkts); diff != "" {
		t.Fatalf("(-want +got):\n%s", diff)
	}
}

func TestDecoderDataCRC(t *testing.T) {
	in := append(unhex(t, "5500010005700308"), unhex(t, "5500010002650000")...)
	var d Decoder
	pkts, errs := decodeAll(&d, in)
	if len(errs) != 1 || !errors.Is(errs[0], ErrDataCRC) {
		t.Fatalf("errs = %v", errs)
	}
	if len(pkts) != 1 || pkts[0].Type != TypeResponse {
		t.Fatalf("pkts = %v", pkts)
	}
}

func TestDecoderMaxLen(t *testing.T) {
	d := Decoder{MaxLen: 4}
	b, _ := EncodePacket(Packet{Type: TypeRadioERP1, Data: make([]byte, 5)})
	_, errs := decodeAll(&d, b)
	if len(errs) != 1 || !errors.Is(errs[0], ErrPacketTooLarge) {
		t.Fatalf("errs = %v", errs)
	}
}
