// Package proto holds the fixed-layout binary messages exchanged between
// peers. All integers are big-endian.
package proto

import (
	"encoding"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const (
	MoveSize      = 4
	HandshakeSize = 32
	LobbyNameSize = 64
	HostNameSize  = 64

	// port + lobby name + host name + rows + columns + connect-n
	AdvertSize = 2 + LobbyNameSize + HostNameSize + 4 + 4 + 4

	ClosedNoticeSize = 2
)

var (
	ErrShortAdvert  = errors.New("advert too short")
	ErrShortMessage = errors.New("message too short")
)

// ---- Stream: joiner -> host, once ----

func WriteHandshake(w io.Writer, username string) error {
	field, err := Usernames.Encode(username)
	if err != nil {
		return fmt.Errorf("encode username: %w", err)
	}
	if _, err := w.Write(field); err != nil {
		return fmt.Errorf("write handshake: %w", err)
	}
	return nil
}

func ReadHandshake(r io.Reader) (string, error) {
	field := make([]byte, HandshakeSize)
	if _, err := io.ReadFull(r, field); err != nil {
		return "", fmt.Errorf("read handshake: %w", err)
	}
	return Usernames.Decode(field), nil
}

// ---- Stream: both directions, one per turn ----

func EncodeMove(column uint32) []byte {
	return binary.BigEndian.AppendUint32(make([]byte, 0, MoveSize), column)
}

func DecodeMove(data []byte) (uint32, error) {
	if len(data) < MoveSize {
		return 0, ErrShortMessage
	}
	return binary.BigEndian.Uint32(data[:MoveSize]), nil
}

func WriteMove(w io.Writer, column uint32) error {
	if _, err := w.Write(EncodeMove(column)); err != nil {
		return fmt.Errorf("write move: %w", err)
	}
	return nil
}

func ReadMove(r io.Reader) (uint32, error) {
	var buf [MoveSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, fmt.Errorf("read move: %w", err)
	}
	return DecodeMove(buf[:])
}

// ---- Multicast: host -> group ----

// Advert describes a joinable lobby. The sender address is not part of
// the record; receivers take it from the datagram source.
type Advert struct {
	Port      uint16
	LobbyName string
	HostName  string
	Rows      uint32
	Columns   uint32
	ConnectN  uint32
}

var (
	_ encoding.BinaryMarshaler   = (*Advert)(nil)
	_ encoding.BinaryUnmarshaler = (*Advert)(nil)
)

func (a *Advert) MarshalBinary() ([]byte, error) {
	lobby, err := LobbyNames.Encode(a.LobbyName)
	if err != nil {
		return nil, fmt.Errorf("encode lobby name: %w", err)
	}
	host, err := HostNames.Encode(a.HostName)
	if err != nil {
		return nil, fmt.Errorf("encode host name: %w", err)
	}

	data := make([]byte, 0, AdvertSize)
	data = binary.BigEndian.AppendUint16(data, a.Port)
	data = append(data, lobby...)
	data = append(data, host...)
	data = binary.BigEndian.AppendUint32(data, a.Rows)
	data = binary.BigEndian.AppendUint32(data, a.Columns)
	data = binary.BigEndian.AppendUint32(data, a.ConnectN)
	return data, nil
}

// UnmarshalBinary needs a full record; names decode leniently.
// Bytes past AdvertSize are ignored.
func (a *Advert) UnmarshalBinary(data []byte) error {
	if len(data) < AdvertSize {
		return fmt.Errorf("%w: %d bytes", ErrShortAdvert, len(data))
	}
	off := 0
	a.Port = binary.BigEndian.Uint16(data[off:])
	off += 2
	a.LobbyName = LobbyNames.Decode(data[off : off+LobbyNameSize])
	off += LobbyNameSize
	a.HostName = HostNames.Decode(data[off : off+HostNameSize])
	off += HostNameSize
	a.Rows = binary.BigEndian.Uint32(data[off:])
	a.Columns = binary.BigEndian.Uint32(data[off+4:])
	a.ConnectN = binary.BigEndian.Uint32(data[off+8:])
	return nil
}

func UnmarshalAdvert(data []byte) (Advert, error) {
	var a Advert
	err := a.UnmarshalBinary(data)
	return a, err
}

// ClosedNotice is sent once by a host whose lobby is going away. Its
// leading bytes read as port 0, which no listening lobby can have.
func ClosedNotice() []byte {
	return make([]byte, ClosedNoticeSize)
}

func IsClosedNotice(data []byte) bool {
	return len(data) >= ClosedNoticeSize && len(data) < AdvertSize &&
		binary.BigEndian.Uint16(data) == 0
}
