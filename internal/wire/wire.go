package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrTruncated is returned when a payload ends before a field does.
	ErrTruncated = errors.New("wire: truncated payload")
	// ErrTrailingData is returned by End when bytes remain after the
	// last expected field.
	ErrTrailingData = errors.New("wire: trailing data after payload")
)

// Builder appends wire fields to a payload.
type Builder struct {
	buf []byte
}

// NewBuilder returns a Builder pre-sized for a payload of around n bytes.
func NewBuilder(n int) *Builder {
	return &Builder{buf: make([]byte, 0, n)}
}

// Bytes returns the encoded payload.
func (b *Builder) Bytes() []byte { return b.buf }

// Byte appends a single octet.
func (b *Builder) Byte(v byte) {
	b.buf = append(b.buf, v)
}

// Bool appends a boolean octet.
func (b *Builder) Bool(v bool) {
	if v {
		b.buf = append(b.buf, 1)
		return
	}
	b.buf = append(b.buf, 0)
}

// Uint32 appends a big-endian uint32.
func (b *Builder) Uint32(v uint32) {
	b.buf = binary.BigEndian.AppendUint32(b.buf, v)
}

// Raw appends p without a length prefix.
func (b *Builder) Raw(p []byte) {
	b.buf = append(b.buf, p...)
}

// String appends p with a uint32 length prefix.
func (b *Builder) String(p []byte) {
	b.Uint32(uint32(len(p)))
	b.buf = append(b.buf, p...)
}

// Mpint appends v as a canonical multiple-precision integer: leading
// zero octets stripped, one 0x00 prepended if the remaining leading
// octet has its high bit set. An all-zero v encodes as a zero-length
// string.
func (b *Builder) Mpint(v []byte) {
	for len(v) > 0 && v[0] == 0 {
		v = v[1:]
	}
	if len(v) == 0 {
		b.Uint32(0)
		return
	}
	if v[0]&0x80 != 0 {
		b.Uint32(uint32(len(v) + 1))
		b.buf = append(b.buf, 0)
		b.buf = append(b.buf, v...)
		return
	}
	b.String(v)
}

// NameList appends names as a comma-separated name-list string.
func (b *Builder) NameList(names []string) {
	b.String([]byte(strings.Join(names, ",")))
}

// Mpint returns the full wire encoding of v, length prefix included.
// Key derivation hashes the secret in exactly this form.
func Mpint(v []byte) []byte {
	b := NewBuilder(len(v) + 5)
	b.Mpint(v)
	return b.Bytes()
}

// Reader consumes wire fields from a payload.
type Reader struct {
	rest []byte
}

// NewReader returns a Reader over payload.
func NewReader(payload []byte) *Reader {
	return &Reader{rest: payload}
}

// Byte consumes a single octet.
func (r *Reader) Byte() (byte, error) {
	if len(r.rest) < 1 {
		return 0, ErrTruncated
	}
	v := r.rest[0]
	r.rest = r.rest[1:]
	return v, nil
}

// Bool consumes a boolean octet.
func (r *Reader) Bool() (bool, error) {
	v, err := r.Byte()
	return v != 0, err
}

// Uint32 consumes a big-endian uint32.
func (r *Reader) Uint32() (uint32, error) {
	if len(r.rest) < 4 {
		return 0, ErrTruncated
	}
	v := binary.BigEndian.Uint32(r.rest)
	r.rest = r.rest[4:]
	return v, nil
}

// String consumes a uint32-prefixed string and returns its body.
func (r *Reader) String() ([]byte, error) {
	n, err := r.Uint32()
	if err != nil {
		return nil, err
	}
	if uint64(n) > uint64(len(r.rest)) {
		return nil, fmt.Errorf("%w: string of %d bytes with %d remaining", ErrTruncated, n, len(r.rest))
	}
	v := r.rest[:n]
	r.rest = r.rest[n:]
	return v, nil
}

// NameList consumes a name-list string and splits it on commas.
func (r *Reader) NameList() ([]string, error) {
	v, err := r.String()
	if err != nil {
		return nil, err
	}
	if len(v) == 0 {
		return nil, nil
	}
	return strings.Split(string(v), ","), nil
}

// Raw consumes the next n bytes without a length prefix.
func (r *Reader) Raw(n int) ([]byte, error) {
	if n < 0 || n > len(r.rest) {
		return nil, ErrTruncated
	}
	v := r.rest[:n]
	r.rest = r.rest[n:]
	return v, nil
}

// End returns ErrTrailingData unless the payload was consumed exactly.
func (r *Reader) End() error {
	if len(r.rest) != 0 {
		return fmt.Errorf("%w: %d bytes", ErrTrailingData, len(r.rest))
	}
	return nil
}
