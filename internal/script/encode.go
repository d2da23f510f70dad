package script

// Canonical byte encoding for plain values. Pure transaction inputs carry
// these bytes; two structurally equal values always encode identically.
//
// Layout: bools are one byte; uN integers are N/8 little-endian bytes;
// addresses are their 32 raw bytes; byte strings and vectors are a ULEB128
// length followed by their elements; structs are their fields concatenated
// with no header.

// EncodePlain serializes a plain value to its canonical bytes.
func EncodePlain(v PlainValue) []byte {
	return appendPlain(nil, v)
}

func appendPlain(buf []byte, v PlainValue) []byte {
	switch val := v.(type) {
	case BoolValue:
		if val {
			return append(buf, 1)
		}
		return append(buf, 0)
	case NumberValue:
		be := val.Val.Bytes32()
		// reverse into little-endian, keep the low Bits/8 bytes
		n := val.Bits / 8
		for i := 0; i < n; i++ {
			buf = append(buf, be[31-i])
		}
		return buf
	case AddressValue:
		return append(buf, val[:]...)
	case BytesValue:
		buf = appendULEB128(buf, uint64(len(val)))
		return append(buf, val...)
	case VectorValue:
		buf = appendULEB128(buf, uint64(len(val)))
		for _, e := range val {
			buf = appendPlain(buf, e)
		}
		return buf
	case StructValue:
		for _, f := range val {
			buf = appendPlain(buf, f)
		}
		return buf
	default:
		// the union is sealed; a new variant here is a programming error
		panic("script: unknown plain value variant")
	}
}

func appendULEB128(buf []byte, v uint64) []byte {
	for v >= 0x80 {
		buf = append(buf, byte(v)|0x80)
		v >>= 7
	}
	return append(buf, byte(v))
}
