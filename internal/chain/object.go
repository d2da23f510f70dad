package chain

import "fmt"

// OwnerKind enumerates the ownership modes an object may have. The mode
// determines which transaction-input shape is legal for the object.
type OwnerKind int

const (
	// OwnerAddress marks an object owned by a single account address.
	OwnerAddress OwnerKind = iota
	// OwnerObject marks an object owned by another object (a child).
	OwnerObject
	// OwnerShared marks a consensus-sequenced object usable by anyone.
	OwnerShared
	// OwnerImmutable marks a frozen object (packages, frozen values).
	OwnerImmutable
)

func (k OwnerKind) String() string {
	switch k {
	case OwnerAddress:
		return "address-owner"
	case OwnerObject:
		return "object-owner"
	case OwnerShared:
		return "shared"
	case OwnerImmutable:
		return "immutable"
	default:
		return fmt.Sprintf("owner-kind(%d)", int(k))
	}
}

// Owner describes who controls an object.
//
// For OwnerAddress and OwnerObject the Address field holds the owning
// address (object owners are stored by their address shape). For
// OwnerShared the InitialShared field holds the version at which the
// object first became shared; shared transaction inputs commit to that
// version, not the current one.
type Owner struct {
	Kind          OwnerKind
	Address       Address
	InitialShared Version
}

// OwnedBy constructs a single-address owner.
func OwnedBy(a Address) Owner {
	return Owner{Kind: OwnerAddress, Address: a}
}

// ChildOf constructs an object-owned owner.
func ChildOf(parent ObjectID) Owner {
	return Owner{Kind: OwnerObject, Address: parent.AsAddress()}
}

// SharedAt constructs a shared owner with the given initial shared version.
func SharedAt(initial Version) Owner {
	return Owner{Kind: OwnerShared, InitialShared: initial}
}

// Immutable constructs an immutable owner.
func Immutable() Owner {
	return Owner{Kind: OwnerImmutable}
}

// Object is one version of an on-chain object.
type Object struct {
	ID       ObjectID
	Version  Version
	Owner    Owner
	Contents []byte
	// TypeTag is a free-form type label ("coin", "package", "clock", ...).
	// Execution branches on it; the resolver does not.
	TypeTag string
}

// Digest returns the content digest of this object version.
func (o *Object) Digest() Digest {
	payload := make([]byte, 0, len(o.Contents)+AddressLen+8)
	payload = append(payload, o.ID[:]...)
	payload = appendUint64(payload, uint64(o.Version))
	payload = append(payload, o.Contents...)
	return ComputeDigest(DigestDomainObject, payload)
}

// Ref returns the exact (id, version, digest) reference for this object
// version. Transaction inputs commit to refs, never to "latest".
func (o *Object) Ref() ObjectRef {
	return ObjectRef{ID: o.ID, Version: o.Version, Digest: o.Digest()}
}

// IsShared reports whether the object is in shared ownership.
func (o *Object) IsShared() bool {
	return o.Owner.Kind == OwnerShared
}

// ObjectRef pins an object to one exact version plus its content digest.
type ObjectRef struct {
	ID      ObjectID
	Version Version
	Digest  Digest
}

func (r ObjectRef) String() string {
	return fmt.Sprintf("%s@%d", r.ID.Short(), r.Version)
}

func appendUint64(b []byte, v uint64) []byte {
	return append(b,
		byte(v), byte(v>>8), byte(v>>16), byte(v>>24),
		byte(v>>32), byte(v>>40), byte(v>>48), byte(v>>56))
}
