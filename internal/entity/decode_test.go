package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/geappliances-bridge/internal/erd"
	"github.com/nerrad567/geappliances-bridge/internal/schema"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name  string
		cfg   schema.Config
		value []byte
		want  any
	}{
		{
			name:  "bool bit",
			cfg:   schema.Config{Decoding: schema.DecodeBool, Span: erd.Span{Size: 1, BitOffset: 1, BitSize: 1}},
			value: []byte{0x40},
			want:  true,
		},
		{
			name:  "unsigned second byte",
			cfg:   schema.Config{Decoding: schema.DecodeUnsigned, Span: erd.Span{Offset: 1, Size: 1}, Scale: 1},
			value: []byte{0xFF, 0x64},
			want:  100.0,
		},
		{
			name:  "signed scaled",
			cfg:   schema.Config{Decoding: schema.DecodeSigned, Span: erd.Span{Size: 2}, Scale: 10},
			value: []byte{0xFF, 0x9C},
			want:  -10.0,
		},
		{
			name:  "enum",
			cfg:   schema.Config{Decoding: schema.DecodeEnum, Span: erd.Span{Size: 1}, Options: map[int]string{0: "Off", 1: "Eco"}},
			value: []byte{0x01},
			want:  "Eco",
		},
		{
			name:  "string",
			cfg:   schema.Config{Decoding: schema.DecodeString, Span: erd.Span{Size: 4}},
			value: []byte{'G', 'E', 0, 0},
			want:  "GE",
		},
		{
			name:  "hex",
			cfg:   schema.Config{Decoding: schema.DecodeHex, Span: erd.Span{Offset: 1, Size: 2}},
			value: []byte{0x00, 0xAB, 0xCD},
			want:  "abcd",
		},
		{
			name:  "clock",
			cfg:   schema.Config{Decoding: schema.DecodeClock, Span: erd.Span{Size: 3}},
			value: []byte{23, 5, 9},
			want:  "23:05:09",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode(tt.cfg, tt.value)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecode_Errors(t *testing.T) {
	_, err := Decode(schema.Config{Decoding: schema.DecodeEnum, Span: erd.Span{Size: 1}, Options: map[int]string{0: "Off"}}, []byte{7})
	assert.ErrorIs(t, err, ErrInvalidValue)

	_, err = Decode(schema.Config{Decoding: schema.DecodeUnsigned, Span: erd.Span{Offset: 2, Size: 1}}, []byte{1})
	assert.ErrorIs(t, err, erd.ErrFieldOutOfRange)
}

func TestEncodeNumber(t *testing.T) {
	cfg := schema.Config{Decoding: schema.DecodeUnsigned, Span: erd.Span{Offset: 1, Size: 1}, Scale: 1}
	got, err := encodeNumber(cfg, []byte{0xFF, 0x00}, 100)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xFF, 0x64}, got)

	scaled := schema.Config{Decoding: schema.DecodeSigned, Span: erd.Span{Size: 2}, Scale: 10}
	got, err = encodeNumber(scaled, []byte{0, 0}, -1.5)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xFF, 0xF1}, got)

	_, err = encodeNumber(cfg, []byte{0, 0}, -1)
	assert.ErrorIs(t, err, ErrOutOfRange)
}
