package proto

import (
	"bytes"
	"errors"
	"fmt"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
)

var (
	ErrNameTooLong  = errors.New("name does not fit its field")
	ErrNameEncoding = errors.New("name is not representable")
)

type Charset int

const (
	UTF8 Charset = iota
	ASCII
)

func (c Charset) String() string {
	if c == ASCII {
		return "ASCII"
	}
	return "UTF-8"
}

// NameCodec maps display names to fixed-width, zero-padded fields.
// Encode is strict, Decode is lenient.
type NameCodec struct {
	Width   int
	Charset Charset
}

var (
	LobbyNames = NameCodec{Width: LobbyNameSize, Charset: UTF8}
	HostNames  = NameCodec{Width: HostNameSize, Charset: UTF8}
	Usernames  = NameCodec{Width: HandshakeSize, Charset: UTF8}
)

// Validate reports why name cannot be encoded, or nil.
func (c NameCodec) Validate(name string) error {
	if len(name) > c.Width {
		return fmt.Errorf("%w: %d bytes, limit %d", ErrNameTooLong, len(name), c.Width)
	}
	if !utf8.ValidString(name) {
		return fmt.Errorf("%w: invalid %s", ErrNameEncoding, c.Charset)
	}
	for i, r := range name {
		if r == 0 {
			return fmt.Errorf("%w: NUL at byte %d", ErrNameEncoding, i)
		}
		if c.Charset == ASCII && r >= utf8.RuneSelf {
			return fmt.Errorf("%w: %q is not %s", ErrNameEncoding, r, c.Charset)
		}
	}
	return nil
}

func (c NameCodec) Encode(name string) ([]byte, error) {
	if err := c.Validate(name); err != nil {
		return nil, err
	}
	field := make([]byte, c.Width)
	copy(field, name)
	return field, nil
}

// Decode strips trailing zero padding and drops bytes that do not
// decode under the charset. A well-formed U+FFFD is kept. It never fails.
func (c NameCodec) Decode(field []byte) string {
	field = dropIllFormed(bytes.TrimRight(field, "\x00"))
	s, _, err := transform.Bytes(runes.Remove(runes.Predicate(c.undecodable)), field)
	if err != nil {
		return ""
	}
	return string(s)
}

func (c NameCodec) undecodable(r rune) bool {
	return c.Charset == ASCII && r >= utf8.RuneSelf
}

// dropIllFormed removes every byte that does not start a valid UTF-8
// sequence, the way a decoder that ignores errors would.
func dropIllFormed(b []byte) []byte {
	if utf8.Valid(b) {
		return b
	}
	out := make([]byte, 0, len(b))
	for len(b) > 0 {
		r, size := utf8.DecodeRune(b)
		if r != utf8.RuneError || size > 1 {
			out = append(out, b[:size]...)
		}
		b = b[size:]
	}
	return out
}
