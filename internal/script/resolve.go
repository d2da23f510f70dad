package script

import (
	"github.com/roach88/chainscript/internal/chain"
	"github.com/roach88/chainscript/internal/txbuilder"
)

// State is the scenario-state collaborator the resolver reads. It owns the
// handle table and the staged-package table and fronts object storage; the
// resolver never caches any of it, so every resolution sees fresh state.
type State interface {
	// ResolveHandle maps a script-local handle to a real object identity.
	ResolveHandle(h Handle) (chain.ObjectID, bool)

	// StagedPackageDigest returns the content digest of a package staged
	// under name but not yet published.
	StagedPackageDigest(name string) (chain.Digest, bool)

	// GetObject returns the latest known version of an object, or nil if
	// the object is unknown.
	GetObject(id chain.ObjectID) (*chain.Object, error)

	// GetObjectAt returns one exact historical version, or nil if that
	// version does not exist. It never falls back to latest.
	GetObjectAt(id chain.ObjectID, v chain.Version) (*chain.Object, error)
}

// resolveObject turns a handle (plus optional version pin) into a concrete
// object, reading scenario state fresh.
func resolveObject(handle Handle, version *chain.Version, st State) (*chain.Object, error) {
	id, ok := st.ResolveHandle(handle)
	if !ok {
		return nil, &ResolveError{
			Code:    ErrCodeUnknownObject,
			Message: "unknown object",
			Handle:  handle.String(),
		}
	}
	var (
		obj *chain.Object
		err error
	)
	if version != nil {
		obj, err = st.GetObjectAt(id, *version)
	} else {
		obj, err = st.GetObject(id)
	}
	if err != nil || obj == nil {
		return nil, &ResolveError{
			Code:    ErrCodeObjectLoad,
			Message: "could not load object argument",
			Object:  id.String(),
		}
	}
	return obj, nil
}

// objectArg resolves an ordinary object reference into an object input,
// branching on the object's current ownership mode. Shared objects always
// request mutable access; everything else pins the exact reference.
func objectArg(handle Handle, version *chain.Version, st State) (chain.ObjectArg, error) {
	obj, err := resolveObject(handle, version, st)
	if err != nil {
		return nil, err
	}
	if obj.Owner.Kind == chain.OwnerShared {
		return chain.SharedObject{
			ID:            obj.ID,
			InitialShared: obj.Owner.InitialShared,
			Mutable:       true,
		}, nil
	}
	return chain.ImmOrOwnedObject{Ref: obj.Ref()}, nil
}

// receivingArg resolves a receiving reference. The result is a receiving
// input regardless of the object's ownership mode; the ownership branch in
// objectArg applies only to ordinary references.
func receivingArg(handle Handle, version *chain.Version, st State) (chain.ObjectArg, error) {
	obj, err := resolveObject(handle, version, st)
	if err != nil {
		return nil, err
	}
	return chain.ReceivingObject{Ref: obj.Ref()}, nil
}

// ToCallArg resolves a symbolic value into a single transaction input.
// Object vectors are never a valid single input; they must go through
// ToArgument.
func ToCallArg(v Value, st State) (chain.CallArg, error) {
	switch val := v.(type) {
	case Plain:
		return chain.Pure{Data: EncodePlain(val.Value)}, nil
	case ObjectRefValue:
		arg, err := objectArg(val.Handle, val.Version, st)
		if err != nil {
			return nil, err
		}
		return chain.ObjectInput{Arg: arg}, nil
	case ReceivingValue:
		arg, err := receivingArg(val.Handle, val.Version, st)
		if err != nil {
			return nil, err
		}
		return chain.ObjectInput{Arg: arg}, nil
	case ObjectVecValue:
		return nil, &ResolveError{
			Code:    ErrCodeVectorAsInput,
			Message: "object vector is not supported as a single input",
		}
	case DigestValue:
		digest, ok := st.StagedPackageDigest(val.Name)
		if !ok {
			return nil, &ResolveError{
				Code:    ErrCodeUnboundPackage,
				Message: "unbound staged package",
				Package: val.Name,
			}
		}
		return chain.Pure{Data: digest.Bytes()}, nil
	default:
		return nil, &InvariantError{
			Message: "unknown symbolic value variant",
			Got:     KindName(v),
			Want:    "a sealed variant",
		}
	}
}

// ToArgument resolves a symbolic value into a transaction-builder argument.
// Object vectors resolve every element (failing the whole operation on the
// first element that fails, before registering anything) and become a
// builder-level object vector; every other variant goes through ToCallArg
// and is registered as a plain input.
func ToArgument(v Value, b *txbuilder.Builder, st State) (chain.Argument, error) {
	if vec, ok := v.(ObjectVecValue); ok {
		args := make([]chain.ObjectArg, len(vec.Elems))
		for i, elem := range vec.Elems {
			arg, err := objectArg(elem.Handle, elem.Version, st)
			if err != nil {
				return chain.Argument{}, err
			}
			args[i] = arg
		}
		return b.MakeObjVec(args)
	}
	callArg, err := ToCallArg(v, st)
	if err != nil {
		return chain.Argument{}, err
	}
	return b.Input(callArg)
}
