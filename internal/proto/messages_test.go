package proto_test

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/kushgupta-hiver/lanconnect4/internal/proto"
)

func TestAdvert_RoundTrip(t *testing.T) {
	tests := []proto.Advert{
		{Port: 40123, LobbyName: "My Lobby!", HostName: "Dillon", Rows: 6, Columns: 7, ConnectN: 4},
		{Port: 1, LobbyName: "", HostName: "", Rows: 10, Columns: 10, ConnectN: 5},
		{Port: 65535, LobbyName: strings.Repeat("L", 64), HostName: strings.Repeat("h", 64), Rows: 1, Columns: 1, ConnectN: 1},
		{Port: 2000, LobbyName: "café ☕", HostName: "Zoë", Rows: 6, Columns: 7, ConnectN: 4},
	}
	for _, in := range tests {
		t.Run(in.LobbyName, func(t *testing.T) {
			data, err := in.MarshalBinary()
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}
			if len(data) != proto.AdvertSize {
				t.Fatalf("expected %d bytes, got %d", proto.AdvertSize, len(data))
			}
			out, err := proto.UnmarshalAdvert(data)
			if err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if out != in {
				t.Fatalf("round trip mismatch:\n in  %+v\n out %+v", in, out)
			}
		})
	}
}

func TestAdvert_Layout(t *testing.T) {
	a := proto.Advert{Port: 0x1234, LobbyName: "ab", HostName: "c", Rows: 6, Columns: 7, ConnectN: 4}
	data, err := a.MarshalBinary()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if data[0] != 0x12 || data[1] != 0x34 {
		t.Fatalf("port not big-endian: % x", data[:2])
	}
	if string(data[2:4]) != "ab" || data[4] != 0 || data[65] != 0 {
		t.Fatalf("lobby name not zero padded")
	}
	if data[66] != 'c' || data[67] != 0 {
		t.Fatalf("host name not at offset 66")
	}
	tail := data[130:]
	want := []byte{0, 0, 0, 6, 0, 0, 0, 7, 0, 0, 0, 4}
	if !bytes.Equal(tail, want) {
		t.Fatalf("expected tail % x, got % x", want, tail)
	}
}

func TestAdvert_NameTooLong(t *testing.T) {
	a := proto.Advert{Port: 1, LobbyName: strings.Repeat("x", 65)}
	if _, err := a.MarshalBinary(); !errors.Is(err, proto.ErrNameTooLong) {
		t.Fatalf("expected ErrNameTooLong, got %v", err)
	}
	// 22 three-byte runes = 66 bytes.
	a = proto.Advert{Port: 1, HostName: strings.Repeat("☕", 22)}
	if _, err := a.MarshalBinary(); !errors.Is(err, proto.ErrNameTooLong) {
		t.Fatalf("expected ErrNameTooLong for multibyte host name, got %v", err)
	}
}

func TestAdvert_InvalidEncoding(t *testing.T) {
	a := proto.Advert{Port: 1, LobbyName: "bad\xffname"}
	if _, err := a.MarshalBinary(); !errors.Is(err, proto.ErrNameEncoding) {
		t.Fatalf("expected ErrNameEncoding, got %v", err)
	}
}

func TestAdvert_LenientDecode(t *testing.T) {
	good := proto.Advert{Port: 9, LobbyName: "lobby", HostName: "host", Rows: 6, Columns: 7, ConnectN: 4}
	data, _ := good.MarshalBinary()
	// Corrupt a byte inside the lobby name field.
	data[2+2] = 0xff

	out, err := proto.UnmarshalAdvert(data)
	if err != nil {
		t.Fatalf("expected lenient decode, got %v", err)
	}
	if out.LobbyName != "loby" {
		t.Fatalf("expected undecodable byte dropped, got %q", out.LobbyName)
	}
	if out.HostName != "host" || out.Rows != 6 {
		t.Fatalf("other fields damaged: %+v", out)
	}
}

func TestAdvert_ReplacementCharacterRoundTrips(t *testing.T) {
	in := proto.Advert{Port: 9, LobbyName: "a\uFFFDb", HostName: "\uFFFD", Rows: 6, Columns: 7, ConnectN: 4}
	data, err := in.MarshalBinary()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	out, err := proto.UnmarshalAdvert(data)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.LobbyName != in.LobbyName || out.HostName != in.HostName {
		t.Fatalf("names changed: %q/%q, want %q/%q", out.LobbyName, out.HostName, in.LobbyName, in.HostName)
	}
}

func TestNameCodec_DropsOnlyIllFormedBytes(t *testing.T) {
	tests := []struct {
		name  string
		field string
		want  string
	}{
		{"stray continuation", "a\x80b", "ab"},
		{"truncated sequence at end", "ab\xe2\x82\x00\x00", "ab"},
		{"real replacement kept", "x\xef\xbf\xbdy", "x\uFFFDy"},
		{"both", "\xff\xef\xbf\xbd\xff", "\uFFFD"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := proto.LobbyNames.Decode([]byte(tt.field)); got != tt.want {
				t.Fatalf("Decode(%q) = %q, want %q", tt.field, got, tt.want)
			}
		})
	}
}

func TestAdvert_Short(t *testing.T) {
	if _, err := proto.UnmarshalAdvert(make([]byte, proto.AdvertSize-1)); !errors.Is(err, proto.ErrShortAdvert) {
		t.Fatalf("expected ErrShortAdvert, got %v", err)
	}
}

func TestClosedNotice(t *testing.T) {
	if !proto.IsClosedNotice(proto.ClosedNotice()) {
		t.Fatalf("closed notice not recognised")
	}
	a := proto.Advert{Port: 5}
	data, _ := a.MarshalBinary()
	if proto.IsClosedNotice(data) {
		t.Fatalf("advert mistaken for closed notice")
	}
	if proto.IsClosedNotice([]byte{0}) || proto.IsClosedNotice([]byte{0, 1}) {
		t.Fatalf("non-sentinel bytes accepted")
	}
}

func TestMove_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	for _, c := range []uint32{0, 6, 1 << 31} {
		if err := proto.WriteMove(&buf, c); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if buf.Len() != 3*proto.MoveSize {
		t.Fatalf("expected %d bytes, got %d", 3*proto.MoveSize, buf.Len())
	}
	if !bytes.Equal(buf.Bytes()[:4], []byte{0, 0, 0, 0}) || !bytes.Equal(buf.Bytes()[4:8], []byte{0, 0, 0, 6}) {
		t.Fatalf("unexpected encoding % x", buf.Bytes())
	}
	for _, want := range []uint32{0, 6, 1 << 31} {
		got, err := proto.ReadMove(&buf)
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if got != want {
			t.Fatalf("expected %d, got %d", want, got)
		}
	}
}

func TestMove_PartialIsError(t *testing.T) {
	_, err := proto.ReadMove(bytes.NewReader([]byte{0, 0}))
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("expected ErrUnexpectedEOF, got %v", err)
	}
}

func TestHandshake_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := proto.WriteHandshake(&buf, "joiner"); err != nil {
		t.Fatalf("write: %v", err)
	}
	if buf.Len() != proto.HandshakeSize {
		t.Fatalf("expected %d bytes, got %d", proto.HandshakeSize, buf.Len())
	}
	name, err := proto.ReadHandshake(&buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if name != "joiner" {
		t.Fatalf("expected joiner, got %q", name)
	}

	if err := proto.WriteHandshake(&buf, strings.Repeat("n", 33)); !errors.Is(err, proto.ErrNameTooLong) {
		t.Fatalf("expected ErrNameTooLong, got %v", err)
	}
}

func TestNameCodec_ASCII(t *testing.T) {
	c := proto.NameCodec{Width: 8, Charset: proto.ASCII}
	if _, err := c.Encode("héllo"); !errors.Is(err, proto.ErrNameEncoding) {
		t.Fatalf("expected ErrNameEncoding, got %v", err)
	}
	if err := c.Validate("a\x00b"); !errors.Is(err, proto.ErrNameEncoding) {
		t.Fatalf("expected NUL rejected, got %v", err)
	}
	if got := c.Decode([]byte("h\xc3\xa9llo\x00\x00\x00")); got != "hllo" {
		t.Fatalf("expected non-ASCII dropped, got %q", got)
	}
}
