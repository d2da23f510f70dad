package script

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodeLiteral(t *testing.T, src string) []byte {
	t.Helper()
	v := mustParse(t, src)
	p, ok := v.(Plain)
	require.True(t, ok, "literal %q is not plain", src)
	return EncodePlain(p.Value)
}

func TestEncodePlain_Bool(t *testing.T) {
	assert.Equal(t, []byte{1}, encodeLiteral(t, "true"))
	assert.Equal(t, []byte{0}, encodeLiteral(t, "false"))
}

func TestEncodePlain_Numbers(t *testing.T) {
	tests := []struct {
		src  string
		want []byte
	}{
		{"7u8", []byte{7}},
		{"258u16", []byte{2, 1}},
		{"1u32", []byte{1, 0, 0, 0}},
		{"1", []byte{1, 0, 0, 0, 0, 0, 0, 0}},
		{"0x0102u16", []byte{2, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			assert.Equal(t, tt.want, encodeLiteral(t, tt.src))
		})
	}
}

func TestEncodePlain_NumberWidths(t *testing.T) {
	for _, tt := range []struct {
		src string
		len int
	}{
		{"1u8", 1}, {"1u16", 2}, {"1u32", 4}, {"1u64", 8}, {"1u128", 16}, {"1u256", 32},
	} {
		assert.Len(t, encodeLiteral(t, tt.src), tt.len, "literal %q", tt.src)
	}
}

func TestEncodePlain_U128LittleEndian(t *testing.T) {
	enc := EncodePlain(NumberValue{Bits: 128, Val: uint256.NewInt(0x0102)})
	require.Len(t, enc, 16)
	assert.Equal(t, byte(0x02), enc[0])
	assert.Equal(t, byte(0x01), enc[1])
	assert.Equal(t, byte(0x00), enc[15])
}

func TestEncodePlain_Address(t *testing.T) {
	enc := encodeLiteral(t, "@0x2")
	require.Len(t, enc, 32)
	assert.Equal(t, byte(0x02), enc[31])
}

func TestEncodePlain_Bytes(t *testing.T) {
	assert.Equal(t, []byte{5, 'h', 'e', 'l', 'l', 'o'}, encodeLiteral(t, `"hello"`))
	assert.Equal(t, []byte{2, 0x00, 0xff}, encodeLiteral(t, `x"00ff"`))
	assert.Equal(t, []byte{0}, encodeLiteral(t, `""`))
}

func TestEncodePlain_Vector(t *testing.T) {
	assert.Equal(t, []byte{3, 1, 2, 3}, encodeLiteral(t, "[1u8, 2u8, 3u8]"))
	assert.Equal(t, []byte{0}, encodeLiteral(t, "[]"))
}

func TestEncodePlain_Struct(t *testing.T) {
	// struct fields concatenate with no header
	assert.Equal(t, []byte{7, 1}, encodeLiteral(t, "{7u8, true}"))
}

func TestEncodePlain_Nested(t *testing.T) {
	// vector of structs: length prefix, then each struct's fields
	assert.Equal(t, []byte{2, 1, 0, 2, 0}, encodeLiteral(t, "[{1u8, false}, {2u8, false}]"))
}

func TestEncodePlain_StructurallyEqualValuesEncodeIdentically(t *testing.T) {
	assert.Equal(t, encodeLiteral(t, "0x2au8"), encodeLiteral(t, "42u8"))
	assert.Equal(t, encodeLiteral(t, "[1u8,2u8,]"), encodeLiteral(t, "[1u8, 2u8]"))
}

func TestAppendULEB128(t *testing.T) {
	tests := []struct {
		v    uint64
		want []byte
	}{
		{0, []byte{0}},
		{127, []byte{0x7f}},
		{128, []byte{0x80, 0x01}},
		{300, []byte{0xac, 0x02}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, appendULEB128(nil, tt.v))
	}
}
