package chain

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// AddressLen is the byte length of addresses and object IDs.
const AddressLen = 32

// Address is a 32-byte account address.
type Address [AddressLen]byte

// ObjectID is a 32-byte object identity. It shares the address shape but is
// a distinct type so object and account identities cannot be confused.
type ObjectID [AddressLen]byte

// Version is a monotonically increasing object version (a lamport sequence
// number, not a wall-clock value).
type Version uint64

// AddressFromBytes builds an Address from exactly AddressLen bytes.
func AddressFromBytes(b []byte) (Address, error) {
	var a Address
	if len(b) != AddressLen {
		return a, fmt.Errorf("address must be %d bytes, got %d", AddressLen, len(b))
	}
	copy(a[:], b)
	return a, nil
}

// AddressFromHex parses a 0x-prefixed or bare hex address. Short input is
// left-padded with zero bytes, matching how address literals are written in
// scripts ("0x2" names the address ending in 0x02).
func AddressFromHex(s string) (Address, error) {
	var a Address
	s = strings.TrimPrefix(s, "0x")
	if len(s) == 0 || len(s) > AddressLen*2 {
		return a, fmt.Errorf("invalid address literal %q", s)
	}
	if len(s)%2 == 1 {
		s = "0" + s
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return a, fmt.Errorf("invalid address literal %q: %w", s, err)
	}
	copy(a[AddressLen-len(b):], b)
	return a, nil
}

func (a Address) String() string {
	return "0x" + hex.EncodeToString(a[:])
}

// Bytes returns the address as a fresh 32-byte slice.
func (a Address) Bytes() []byte {
	b := make([]byte, AddressLen)
	copy(b, a[:])
	return b
}

// Short returns the address with leading zero bytes elided, for log output.
func (a Address) Short() string {
	trimmed := strings.TrimLeft(hex.EncodeToString(a[:]), "0")
	if trimmed == "" {
		trimmed = "0"
	}
	return "0x" + trimmed
}

// ObjectID conversions mirror the address ones; object IDs are assigned by
// execution, never parsed from scripts directly.

func (id ObjectID) String() string {
	return Address(id).String()
}

// Short returns the object ID with leading zero bytes elided.
func (id ObjectID) Short() string {
	return Address(id).Short()
}

// AsAddress reinterprets the object ID as an address. Used when an object
// (e.g. a package) is referred to by address in a script.
func (id ObjectID) AsAddress() Address {
	return Address(id)
}

// ObjectIDFromAddress reinterprets an address as an object ID.
func ObjectIDFromAddress(a Address) ObjectID {
	return ObjectID(a)
}
