package script

import (
	"fmt"
	"strings"

	"github.com/holiman/uint256"

	"github.com/roach88/chainscript/internal/chain"
)

// HandleKind discriminates Handle.
type HandleKind int

const (
	// HandleKnown binds a handle to a fixed, externally known address.
	HandleKnown HandleKind = iota
	// HandleEnumerated names the J-th object created by the I-th command.
	HandleEnumerated
)

// Handle is a script-local symbolic name for an object. A known handle
// carries raw address bytes; an enumerated handle carries the (i, j)
// creation coordinates assigned as the script runs.
type Handle struct {
	Kind    HandleKind
	Address chain.Address
	I, J    uint64
}

// KnownHandle builds a handle bound to a fixed address.
func KnownHandle(a chain.Address) Handle {
	return Handle{Kind: HandleKnown, Address: a}
}

// EnumeratedHandle builds a handle for the j-th object created by command i.
func EnumeratedHandle(i, j uint64) Handle {
	return Handle{Kind: HandleEnumerated, I: i, J: j}
}

func (h Handle) String() string {
	if h.Kind == HandleEnumerated {
		return fmt.Sprintf("%d,%d", h.I, h.J)
	}
	return h.Address.Short()
}

// PlainValue is a sealed union over the base value grammar: the values that
// carry no object references and serialize to pure transaction inputs.
// Only BoolValue, NumberValue, AddressValue, BytesValue, VectorValue, and
// StructValue implement it.
type PlainValue interface {
	plainValue()
}

// BoolValue is a boolean literal.
type BoolValue bool

func (BoolValue) plainValue() {}

// NumberValue is an unsigned integer literal of a fixed bit width
// (8, 16, 32, 64, 128, or 256). Val always fits the width.
type NumberValue struct {
	Bits int
	Val  *uint256.Int
}

func (NumberValue) plainValue() {}

// AddressValue is an address literal (@0x...).
type AddressValue chain.Address

func (AddressValue) plainValue() {}

// BytesValue is a byte-string literal (x"..." or "...").
type BytesValue []byte

func (BytesValue) plainValue() {}

// VectorValue is a vector of plain values.
type VectorValue []PlainValue

func (VectorValue) plainValue() {}

// StructValue is a positional struct of plain values.
type StructValue []PlainValue

func (StructValue) plainValue() {}

// Value is the sealed union over symbolic script values. Only Plain,
// ObjectRefValue, ObjectVecValue, ReceivingValue, and DigestValue implement
// it. Values are produced once per parsed statement and consumed
// immediately during resolution; they are never stored.
type Value interface {
	symbolicValue()
}

// Plain wraps a base-grammar value.
type Plain struct {
	Value PlainValue
}

func (Plain) symbolicValue() {}

// ObjectRefValue names an object by handle, optionally pinned to a version.
type ObjectRefValue struct {
	Handle  Handle
	Version *chain.Version // nil means latest
}

func (ObjectRefValue) symbolicValue() {}

// ObjectVecValue is an ordered sequence of object references, legal only on
// the builder-argument path, never as a single transaction input.
type ObjectVecValue struct {
	Elems []ObjectRefValue
}

func (ObjectVecValue) symbolicValue() {}

// ReceivingValue names an object consumed via the receive transfer mode.
type ReceivingValue struct {
	Handle  Handle
	Version *chain.Version
}

func (ReceivingValue) symbolicValue() {}

// DigestValue names a staged, not-yet-published package whose content
// digest becomes a pure input.
type DigestValue struct {
	Name string
}

func (DigestValue) symbolicValue() {}

// KindName names a value's variant for diagnostics.
func KindName(v Value) string {
	switch v.(type) {
	case Plain:
		return "plain value"
	case ObjectRefValue:
		return "object reference"
	case ObjectVecValue:
		return "object vector"
	case ReceivingValue:
		return "receiving reference"
	case DigestValue:
		return "package digest"
	default:
		return fmt.Sprintf("%T", v)
	}
}

// asPlain narrows a value to its plain variant. Any reference variant here
// means a reference was used where the base grammar only admits plain
// values; that is a bug in composite assembly, not a script error.
func asPlain(v Value) (PlainValue, error) {
	if p, ok := v.(Plain); ok {
		return p.Value, nil
	}
	return nil, &InvariantError{
		Message: "reference value nested where only plain values are legal",
		Got:     KindName(v),
		Want:    "plain value",
	}
}

// asObjectRef narrows a value to its object-reference variant, with the
// same fatal-on-mismatch policy as asPlain.
func asObjectRef(v Value) (ObjectRefValue, error) {
	if r, ok := v.(ObjectRefValue); ok {
		return r, nil
	}
	return ObjectRefValue{}, &InvariantError{
		Message: "non-reference value in object vector",
		Got:     KindName(v),
		Want:    "object reference",
	}
}

func (v ObjectRefValue) String() string {
	var sb strings.Builder
	sb.WriteString("object(")
	sb.WriteString(v.Handle.String())
	sb.WriteString(")")
	if v.Version != nil {
		fmt.Fprintf(&sb, "@%d", *v.Version)
	}
	return sb.String()
}
