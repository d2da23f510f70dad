package script

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/chainscript/internal/chain"
)

func mustParse(t *testing.T, src string) Value {
	t.Helper()
	v, err := ParseLiteral(src)
	require.NoError(t, err, "literal %q", src)
	return v
}

func TestParseLiteral_Numbers(t *testing.T) {
	tests := []struct {
		src  string
		bits int
		val  uint64
	}{
		{"0", 64, 0},
		{"42", 64, 42},
		{"42u8", 8, 42},
		{"1_000u16", 16, 1000},
		{"7u32", 32, 7},
		{"42u64", 64, 42},
		{"42u128", 128, 42},
		{"42u256", 256, 42},
		{"0x2a", 64, 42},
		{"0xffu8", 8, 255},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			v := mustParse(t, tt.src)
			n, ok := v.(Plain).Value.(NumberValue)
			require.True(t, ok)
			assert.Equal(t, tt.bits, n.Bits)
			assert.Equal(t, tt.val, n.Val.Uint64())
		})
	}
}

func TestParseLiteral_NumberOverflowsWidth(t *testing.T) {
	for _, src := range []string{"256u8", "65536u16", "0x1_0000_0000u32"} {
		_, err := ParseLiteral(src)
		require.Error(t, err, "literal %q", src)
		assert.True(t, IsParseError(err))
	}
}

func TestParseLiteral_Bools(t *testing.T) {
	assert.Equal(t, Plain{Value: BoolValue(true)}, mustParse(t, "true"))
	assert.Equal(t, Plain{Value: BoolValue(false)}, mustParse(t, "false"))
}

func TestParseLiteral_Address(t *testing.T) {
	v := mustParse(t, "@0x2")
	a, ok := v.(Plain).Value.(AddressValue)
	require.True(t, ok)
	assert.Equal(t, byte(0x02), a[31])
}

func TestParseLiteral_Strings(t *testing.T) {
	v := mustParse(t, `"hello"`)
	assert.Equal(t, Plain{Value: BytesValue("hello")}, v)

	v = mustParse(t, `x"00ff"`)
	assert.Equal(t, Plain{Value: BytesValue{0x00, 0xff}}, v)
}

func TestParseLiteral_Vector(t *testing.T) {
	v := mustParse(t, "[1u8, 2u8, 3u8]")
	vec, ok := v.(Plain).Value.(VectorValue)
	require.True(t, ok)
	require.Len(t, vec, 3)
	assert.Equal(t, uint64(2), vec[1].(NumberValue).Val.Uint64())

	// trailing comma is accepted
	v = mustParse(t, "[1u8, 2u8,]")
	assert.Len(t, v.(Plain).Value.(VectorValue), 2)

	// empty vector is plain
	v = mustParse(t, "[]")
	assert.Len(t, v.(Plain).Value.(VectorValue), 0)
}

func TestParseLiteral_VectorKeyword(t *testing.T) {
	v := mustParse(t, "vector[true, false]")
	vec, ok := v.(Plain).Value.(VectorValue)
	require.True(t, ok)
	assert.Len(t, vec, 2)
}

func TestParseLiteral_Struct(t *testing.T) {
	v := mustParse(t, `{1u8, true, "x"}`)
	s, ok := v.(Plain).Value.(StructValue)
	require.True(t, ok)
	assert.Len(t, s, 3)
}

func TestParseLiteral_StructRejectsObjectRef(t *testing.T) {
	_, err := ParseLiteral("{object(1,0)}")
	require.Error(t, err)
	assert.True(t, IsInvariant(err))
}

func TestParseLiteral_EnumeratedObjectRef(t *testing.T) {
	v := mustParse(t, "object(1,2)")
	ref, ok := v.(ObjectRefValue)
	require.True(t, ok)
	assert.Equal(t, EnumeratedHandle(1, 2), ref.Handle)
	assert.Nil(t, ref.Version)
}

func TestParseLiteral_KnownObjectRef(t *testing.T) {
	v := mustParse(t, "object(0x6)")
	ref, ok := v.(ObjectRefValue)
	require.True(t, ok)
	require.Equal(t, HandleKnown, ref.Handle.Kind)
	assert.Equal(t, byte(0x06), ref.Handle.Address[31])
}

// The comma is the sole disambiguator: a lone literal is always a known
// handle, even when it would fit 64 bits.
func TestParseLiteral_HandleDualEncoding(t *testing.T) {
	v := mustParse(t, "object(5)")
	ref := v.(ObjectRefValue)
	assert.Equal(t, HandleKnown, ref.Handle.Kind)
	assert.Equal(t, byte(0x05), ref.Handle.Address[31])

	v = mustParse(t, "object(5,0)")
	ref = v.(ObjectRefValue)
	assert.Equal(t, HandleEnumerated, ref.Handle.Kind)
	assert.Equal(t, uint64(5), ref.Handle.I)
}

func TestParseLiteral_EnumeratedHandleTooLarge(t *testing.T) {
	// 2^64 does not fit the enumerated command index
	_, err := ParseLiteral("object(18446744073709551616,0)")
	require.Error(t, err)
	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, ErrCodeHandleTooLarge, perr.Code)
	assert.Contains(t, perr.Message, "object ID too large")
}

func TestParseLiteral_KnownHandleAboveU64(t *testing.T) {
	// the same magnitude without the comma is a legal known handle
	v := mustParse(t, "object(18446744073709551616)")
	ref := v.(ObjectRefValue)
	assert.Equal(t, HandleKnown, ref.Handle.Kind)
	assert.Equal(t, byte(0x01), ref.Handle.Address[23])
}

func TestParseLiteral_VersionPin(t *testing.T) {
	v := mustParse(t, "object(1,0)@3")
	ref := v.(ObjectRefValue)
	require.NotNil(t, ref.Version)
	assert.Equal(t, chain.Version(3), *ref.Version)
}

func TestParseLiteral_Receiving(t *testing.T) {
	v := mustParse(t, "receiving(2,1)")
	recv, ok := v.(ReceivingValue)
	require.True(t, ok)
	assert.Equal(t, EnumeratedHandle(2, 1), recv.Handle)

	v = mustParse(t, "receiving(0x42)@7")
	recv = v.(ReceivingValue)
	assert.Equal(t, HandleKnown, recv.Handle.Kind)
	require.NotNil(t, recv.Version)
	assert.Equal(t, chain.Version(7), *recv.Version)
}

func TestParseLiteral_Digest(t *testing.T) {
	v := mustParse(t, "digest(counter)")
	d, ok := v.(DigestValue)
	require.True(t, ok)
	assert.Equal(t, "counter", d.Name)
}

func TestParseLiteral_ObjectVector(t *testing.T) {
	v := mustParse(t, "[object(1,0), object(1,1)]")
	vec, ok := v.(ObjectVecValue)
	require.True(t, ok)
	require.Len(t, vec.Elems, 2)
	assert.Equal(t, EnumeratedHandle(1, 1), vec.Elems[1].Handle)
}

func TestParseLiteral_MixedVectorRejected(t *testing.T) {
	_, err := ParseLiteral("[object(1,0), 2u8]")
	require.Error(t, err)
	assert.True(t, IsInvariant(err))

	_, err = ParseLiteral("[2u8, object(1,0)]")
	require.Error(t, err)
	assert.True(t, IsInvariant(err))
}

func TestParseLiteral_TrailingInput(t *testing.T) {
	_, err := ParseLiteral("1u8 2u8")
	require.Error(t, err)
	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, ErrCodeUnexpectedToken, perr.Code)
}

func TestParseLiteral_Errors(t *testing.T) {
	for _, src := range []string{"", "bogus", "object(", "object(1,0", "@", "object(1,0)@", "{1u8"} {
		_, err := ParseLiteral(src)
		assert.Error(t, err, "literal %q", src)
	}
}

func TestParseHandle(t *testing.T) {
	h, err := ParseHandle("3,1")
	require.NoError(t, err)
	assert.Equal(t, EnumeratedHandle(3, 1), h)

	h, err = ParseHandle(" 3 , 1 ")
	require.NoError(t, err)
	assert.Equal(t, EnumeratedHandle(3, 1), h)

	h, err = ParseHandle("0x6")
	require.NoError(t, err)
	require.Equal(t, HandleKnown, h.Kind)
	assert.Equal(t, byte(0x06), h.Address[31])

	_, err = ParseHandle("nope")
	assert.Error(t, err)
}

func TestHandleString(t *testing.T) {
	assert.Equal(t, "2,0", EnumeratedHandle(2, 0).String())

	a, err := chain.AddressFromHex("0x6")
	require.NoError(t, err)
	assert.Equal(t, "0x6", KnownHandle(a).String())
}

func TestUint256FromText_LeadingZeros(t *testing.T) {
	u, err := uint256FromText("0x000042")
	require.NoError(t, err)
	assert.Equal(t, uint64(0x42), u.Uint64())

	u, err = uint256FromText("0x0000")
	require.NoError(t, err)
	assert.True(t, u.IsZero())
}

func TestParseLiteral_MaxU256(t *testing.T) {
	v := mustParse(t, "0x"+strings.Repeat("f", 64)+"u256")
	n := v.(Plain).Value.(NumberValue)
	assert.Equal(t, 256, n.Bits)
	assert.Equal(t, 256, n.Val.BitLen())
}
