package script

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/chainscript/internal/chain"
	"github.com/roach88/chainscript/internal/txbuilder"
)

// fakeState is an in-memory State for resolver tests. Objects are stored
// per version; handles map to IDs explicitly.
type fakeState struct {
	handles map[Handle]chain.ObjectID
	objects map[chain.ObjectID]map[chain.Version]*chain.Object
	latest  map[chain.ObjectID]chain.Version
	staged  map[string]chain.Digest
}

func newFakeState() *fakeState {
	return &fakeState{
		handles: make(map[Handle]chain.ObjectID),
		objects: make(map[chain.ObjectID]map[chain.Version]*chain.Object),
		latest:  make(map[chain.ObjectID]chain.Version),
		staged:  make(map[string]chain.Digest),
	}
}

func (s *fakeState) add(h Handle, obj *chain.Object) {
	s.handles[h] = obj.ID
	if s.objects[obj.ID] == nil {
		s.objects[obj.ID] = make(map[chain.Version]*chain.Object)
	}
	s.objects[obj.ID][obj.Version] = obj
	if obj.Version > s.latest[obj.ID] {
		s.latest[obj.ID] = obj.Version
	}
}

func (s *fakeState) ResolveHandle(h Handle) (chain.ObjectID, bool) {
	if h.Kind == HandleKnown {
		return chain.ObjectIDFromAddress(h.Address), true
	}
	id, ok := s.handles[h]
	return id, ok
}

func (s *fakeState) StagedPackageDigest(name string) (chain.Digest, bool) {
	d, ok := s.staged[name]
	return d, ok
}

func (s *fakeState) GetObject(id chain.ObjectID) (*chain.Object, error) {
	v, ok := s.latest[id]
	if !ok {
		return nil, nil
	}
	return s.objects[id][v], nil
}

func (s *fakeState) GetObjectAt(id chain.ObjectID, v chain.Version) (*chain.Object, error) {
	versions, ok := s.objects[id]
	if !ok {
		return nil, nil
	}
	return versions[v], nil
}

func testObjectID(b byte) chain.ObjectID {
	var id chain.ObjectID
	id[31] = b
	return id
}

func ownedObject(id byte, version chain.Version) *chain.Object {
	var owner chain.Address
	owner[31] = 0xaa
	return &chain.Object{
		ID:       testObjectID(id),
		Version:  version,
		Owner:    chain.OwnedBy(owner),
		Contents: []byte{id},
		TypeTag:  "coin",
	}
}

func sharedObject(id byte, version, initial chain.Version) *chain.Object {
	return &chain.Object{
		ID:      testObjectID(id),
		Version: version,
		Owner:   chain.SharedAt(initial),
		TypeTag: "counter",
	}
}

func TestToCallArg_PlainBecomesPure(t *testing.T) {
	st := newFakeState()
	arg, err := ToCallArg(mustParse(t, "42u8"), st)
	require.NoError(t, err)
	assert.Equal(t, chain.Pure{Data: []byte{42}}, arg)
}

func TestToCallArg_OwnedObjectPinsExactRef(t *testing.T) {
	st := newFakeState()
	obj := ownedObject(0x11, 3)
	st.add(EnumeratedHandle(1, 0), obj)

	arg, err := ToCallArg(mustParse(t, "object(1,0)"), st)
	require.NoError(t, err)
	input, ok := arg.(chain.ObjectInput)
	require.True(t, ok)
	owned, ok := input.Arg.(chain.ImmOrOwnedObject)
	require.True(t, ok)
	assert.Equal(t, obj.Ref(), owned.Ref)
}

func TestToCallArg_ImmutableObjectIsImmOrOwned(t *testing.T) {
	st := newFakeState()
	obj := ownedObject(0x12, 1)
	obj.Owner = chain.Immutable()
	st.add(EnumeratedHandle(1, 0), obj)

	arg, err := ToCallArg(mustParse(t, "object(1,0)"), st)
	require.NoError(t, err)
	_, ok := arg.(chain.ObjectInput).Arg.(chain.ImmOrOwnedObject)
	assert.True(t, ok)
}

func TestToCallArg_SharedObjectAlwaysMutable(t *testing.T) {
	st := newFakeState()
	st.add(EnumeratedHandle(1, 0), sharedObject(0x13, 5, 2))

	arg, err := ToCallArg(mustParse(t, "object(1,0)"), st)
	require.NoError(t, err)
	shared, ok := arg.(chain.ObjectInput).Arg.(chain.SharedObject)
	require.True(t, ok)
	assert.True(t, shared.Mutable)
	assert.Equal(t, chain.Version(2), shared.InitialShared)
	assert.Equal(t, testObjectID(0x13), shared.ID)
}

func TestToCallArg_VersionPinUsesExactVersion(t *testing.T) {
	st := newFakeState()
	st.add(EnumeratedHandle(1, 0), ownedObject(0x14, 2))
	st.add(EnumeratedHandle(1, 0), ownedObject(0x14, 5))

	arg, err := ToCallArg(mustParse(t, "object(1,0)@2"), st)
	require.NoError(t, err)
	owned := arg.(chain.ObjectInput).Arg.(chain.ImmOrOwnedObject)
	assert.Equal(t, chain.Version(2), owned.Ref.Version)
}

// A pinned version that does not exist fails outright; it never falls back
// to the latest version.
func TestToCallArg_VersionPinNoFallback(t *testing.T) {
	st := newFakeState()
	st.add(EnumeratedHandle(1, 0), ownedObject(0x15, 5))

	_, err := ToCallArg(mustParse(t, "object(1,0)@3"), st)
	require.Error(t, err)
	var rerr *ResolveError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, ErrCodeObjectLoad, rerr.Code)
	// the error names the real object ID, not the handle
	assert.Equal(t, testObjectID(0x15).String(), rerr.Object)
}

func TestToCallArg_UnknownHandleNamesHandle(t *testing.T) {
	st := newFakeState()
	_, err := ToCallArg(mustParse(t, "object(9,9)"), st)
	require.Error(t, err)
	var rerr *ResolveError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, ErrCodeUnknownObject, rerr.Code)
	assert.Equal(t, "9,9", rerr.Handle)
	assert.True(t, IsUnknownObject(err))
}

// Receiving wraps the exact reference no matter how the object is owned.
func TestToCallArg_ReceivingIgnoresOwnership(t *testing.T) {
	st := newFakeState()
	st.add(EnumeratedHandle(1, 0), ownedObject(0x16, 4))
	st.add(EnumeratedHandle(2, 0), sharedObject(0x17, 6, 1))

	for _, src := range []string{"receiving(1,0)", "receiving(2,0)"} {
		arg, err := ToCallArg(mustParse(t, src), st)
		require.NoError(t, err, "literal %q", src)
		_, ok := arg.(chain.ObjectInput).Arg.(chain.ReceivingObject)
		assert.True(t, ok, "literal %q", src)
	}
}

func TestToCallArg_ObjectVectorRejected(t *testing.T) {
	st := newFakeState()
	st.add(EnumeratedHandle(1, 0), ownedObject(0x18, 1))

	_, err := ToCallArg(mustParse(t, "[object(1,0)]"), st)
	require.Error(t, err)
	var rerr *ResolveError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, ErrCodeVectorAsInput, rerr.Code)
}

func TestToCallArg_StagedDigest(t *testing.T) {
	st := newFakeState()
	d := chain.ComputeDigest(chain.DigestDomainPackage, []byte("modules"))
	st.staged["counter"] = d

	arg, err := ToCallArg(mustParse(t, "digest(counter)"), st)
	require.NoError(t, err)
	assert.Equal(t, chain.Pure{Data: d.Bytes()}, arg)
}

func TestToCallArg_UnboundPackage(t *testing.T) {
	st := newFakeState()
	_, err := ToCallArg(mustParse(t, "digest(missing)"), st)
	require.Error(t, err)
	var rerr *ResolveError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, ErrCodeUnboundPackage, rerr.Code)
	assert.Equal(t, "missing", rerr.Package)
	assert.True(t, IsUnboundPackage(err))
}

func TestToArgument_ObjectVectorLowersToMakeVec(t *testing.T) {
	st := newFakeState()
	st.add(EnumeratedHandle(1, 0), ownedObject(0x21, 1))
	st.add(EnumeratedHandle(1, 1), ownedObject(0x22, 1))

	b := txbuilder.New()
	arg, err := ToArgument(mustParse(t, "[object(1,0), object(1,1)]"), b, st)
	require.NoError(t, err)
	assert.Equal(t, chain.ArgResult, arg.Kind)

	kind := b.Finish()
	require.Len(t, kind.Inputs, 2)
	require.Len(t, kind.Commands, 1)
	_, ok := kind.Commands[0].(chain.MakeVecCommand)
	assert.True(t, ok)
}

// When any element fails, the whole vector fails and nothing is registered
// with the builder.
func TestToArgument_ObjectVectorFailsAtomically(t *testing.T) {
	st := newFakeState()
	st.add(EnumeratedHandle(1, 0), ownedObject(0x23, 1))

	b := txbuilder.New()
	_, err := ToArgument(mustParse(t, "[object(1,0), object(9,9)]"), b, st)
	require.Error(t, err)
	assert.True(t, IsUnknownObject(err))

	kind := b.Finish()
	assert.Empty(t, kind.Inputs)
	assert.Empty(t, kind.Commands)
}

func TestToArgument_PlainRegistersInput(t *testing.T) {
	st := newFakeState()
	b := txbuilder.New()
	arg, err := ToArgument(mustParse(t, "7u8"), b, st)
	require.NoError(t, err)
	assert.Equal(t, chain.InputArg(0), arg)
	assert.Len(t, b.Finish().Inputs, 1)
}

func TestErrorPredicates(t *testing.T) {
	assert.False(t, IsUnknownObject(errors.New("plain")))
	assert.False(t, IsParseError(errors.New("plain")))
	assert.False(t, IsUnboundPackage(nil))
}
