package erd

import (
	"encoding/hex"
	"fmt"
	"unicode/utf8"
)

// Codec limits.
const (
	// maxIntegerBytes is the widest field that decodes to an integer.
	maxIntegerBytes = 8

	// bitsPerByte is used when converting byte spans to bit widths.
	bitsPerByte = 8
)

// Span locates one field inside an ERD value.
//
// Offset and Size are in bytes. When BitSize is non-zero the field is a bit
// window inside the Size-byte slice, with BitOffset counted from the most
// significant bit of that slice.
type Span struct {
	Offset    int
	Size      int
	BitOffset int
	BitSize   int
}

// HasBits reports whether the span is a bit window.
func (s Span) HasBits() bool {
	return s.BitSize > 0
}

// Width returns the field width in bits.
func (s Span) Width() int {
	if s.HasBits() {
		return s.BitSize
	}
	return s.Size * bitsPerByte
}

// shift is the distance from the window's least significant bit to bit 0 of the slice.
func (s Span) shift() int {
	return s.Size*bitsPerByte - s.BitOffset - s.BitSize
}

// Mask returns the bit window positioned inside the slice. Zero for whole-byte spans.
func (s Span) Mask() uint64 {
	if !s.HasBits() {
		return 0
	}
	return lowBits(s.BitSize) << s.shift()
}

// check validates the span against a buffer of length n.
func (s Span) check(n int) error {
	if s.Offset < 0 || s.Size <= 0 || s.Offset+s.Size > n {
		return fmt.Errorf("%w: bytes [%d,%d) of %d", ErrFieldOutOfRange, s.Offset, s.Offset+s.Size, n)
	}
	if s.HasBits() {
		if s.Size > maxIntegerBytes {
			return fmt.Errorf("%w: bit window in %d-byte field", ErrFieldOutOfRange, s.Size)
		}
		if s.BitOffset < 0 || s.BitOffset+s.BitSize > s.Size*bitsPerByte {
			return fmt.Errorf("%w: bits [%d,%d) of %d", ErrFieldOutOfRange,
				s.BitOffset, s.BitOffset+s.BitSize, s.Size*bitsPerByte)
		}
	}
	return nil
}

// ExtractBytes returns a copy of the field's byte slice. Bit windows are not
// applied; use ExtractUint for those.
func ExtractBytes(buf []byte, s Span) ([]byte, error) {
	if err := s.check(len(buf)); err != nil {
		return nil, err
	}
	out := make([]byte, s.Size)
	copy(out, buf[s.Offset:s.Offset+s.Size])
	return out, nil
}

// ExtractUint decodes the field as a big-endian unsigned integer, masking
// and normalising bit windows to a zero-based value.
func ExtractUint(buf []byte, s Span) (uint64, error) {
	if err := s.check(len(buf)); err != nil {
		return 0, err
	}
	if s.Size > maxIntegerBytes {
		return 0, fmt.Errorf("%w: %d-byte field is not an integer", ErrFieldOutOfRange, s.Size)
	}

	v := DecodeUint(buf[s.Offset : s.Offset+s.Size])
	if s.HasBits() {
		v = (v & s.Mask()) >> s.shift()
	}
	return v, nil
}

// ExtractInt decodes the field as a two's complement integer of the field's width.
func ExtractInt(buf []byte, s Span) (int64, error) {
	v, err := ExtractUint(buf, s)
	if err != nil {
		return 0, err
	}
	return signExtend(v, s.Width()), nil
}

// InjectBytes returns a copy of buf with the field's bytes replaced by field.
func InjectBytes(buf []byte, s Span, field []byte) ([]byte, error) {
	if err := s.check(len(buf)); err != nil {
		return nil, err
	}
	if len(field) != s.Size {
		return nil, fmt.Errorf("%w: %d bytes into %d-byte field", ErrValueOutOfRange, len(field), s.Size)
	}
	out := make([]byte, len(buf))
	copy(out, buf)
	copy(out[s.Offset:], field)
	return out, nil
}

// InjectUint returns a copy of buf with v written into the field. Bit windows
// keep every bit outside the window.
func InjectUint(buf []byte, s Span, v uint64) ([]byte, error) {
	if err := s.check(len(buf)); err != nil {
		return nil, err
	}
	if s.Size > maxIntegerBytes {
		return nil, fmt.Errorf("%w: %d-byte field is not an integer", ErrFieldOutOfRange, s.Size)
	}
	if s.Width() < 64 && v > lowBits(s.Width()) {
		return nil, fmt.Errorf("%w: %d in %d bits", ErrValueOutOfRange, v, s.Width())
	}

	raw := v
	if s.HasBits() {
		current := DecodeUint(buf[s.Offset : s.Offset+s.Size])
		raw = (current &^ s.Mask()) | (v << s.shift())
	}
	return InjectBytes(buf, s, EncodeUint(raw, s.Size))
}

// InjectInt returns a copy of buf with the two's complement encoding of v
// written into the field.
func InjectInt(buf []byte, s Span, v int64) ([]byte, error) {
	width := s.Width()
	if width < 64 {
		lo, hi := -(int64(1) << (width - 1)), int64(1)<<(width-1)-1
		if v < lo || v > hi {
			return nil, fmt.Errorf("%w: %d in %d signed bits", ErrValueOutOfRange, v, width)
		}
		return InjectUint(buf, s, uint64(v)&lowBits(width))
	}
	return InjectUint(buf, s, uint64(v))
}

// DecodeUint interprets b as a big-endian unsigned integer. Only the last
// eight bytes contribute.
func DecodeUint(b []byte) uint64 {
	var v uint64
	for _, c := range b {
		v = v<<bitsPerByte | uint64(c)
	}
	return v
}

// EncodeUint encodes v as a big-endian buffer of exactly size bytes.
func EncodeUint(v uint64, size int) []byte {
	out := make([]byte, size)
	for i := size - 1; i >= 0; i-- {
		out[i] = byte(v)
		v >>= bitsPerByte
	}
	return out
}

// DecodeString decodes a string field as UTF-8, dropping trailing NUL padding.
func DecodeString(b []byte) (string, error) {
	end := len(b)
	for end > 0 && b[end-1] == 0 {
		end--
	}
	if !utf8.Valid(b[:end]) {
		return "", fmt.Errorf("%w: invalid utf-8", ErrValueOutOfRange)
	}
	return string(b[:end]), nil
}

// EncodeString encodes s as a NUL-padded field of size bytes.
func EncodeString(s string, size int) ([]byte, error) {
	if len(s) > size {
		return nil, fmt.Errorf("%w: %d bytes of text into %d", ErrValueOutOfRange, len(s), size)
	}
	out := make([]byte, size)
	copy(out, s)
	return out, nil
}

// EncodeHex formats raw bytes as lowercase hex text.
func EncodeHex(b []byte) string {
	return hex.EncodeToString(b)
}

// DecodeHex parses hex text, ignoring spaces, into a buffer.
func DecodeHex(s string) ([]byte, error) {
	clean := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] != ' ' {
			clean = append(clean, s[i])
		}
	}
	b, err := hex.DecodeString(string(clean))
	if err != nil {
		return nil, fmt.Errorf("decoding hex value: %w", err)
	}
	return b, nil
}

func lowBits(n int) uint64 {
	if n >= 64 {
		return ^uint64(0)
	}
	return uint64(1)<<n - 1
}

func signExtend(v uint64, width int) int64 {
	if width >= 64 {
		return int64(v)
	}
	shift := 64 - width
	return int64(v<<shift) >> shift
}
