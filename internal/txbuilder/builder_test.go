package txbuilder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/chainscript/internal/chain"
)

func testID(b byte) chain.ObjectID {
	var id chain.ObjectID
	id[31] = b
	return id
}

func ownedRef(b byte, v chain.Version) chain.ObjectRef {
	return chain.ObjectRef{ID: testID(b), Version: v}
}

func TestPure_DeduplicatesIdenticalBytes(t *testing.T) {
	b := New()
	a1, err := b.Pure([]byte{1, 2, 3})
	require.NoError(t, err)
	a2, err := b.Pure([]byte{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, a1, a2)

	a3, err := b.Pure([]byte{9})
	require.NoError(t, err)
	assert.NotEqual(t, a1, a3)

	assert.Len(t, b.Finish().Inputs, 2)
}

func TestObject_DeduplicatesByID(t *testing.T) {
	b := New()
	arg := chain.ImmOrOwnedObject{Ref: ownedRef(0x01, 2)}
	a1, err := b.Object(arg)
	require.NoError(t, err)
	a2, err := b.Object(arg)
	require.NoError(t, err)
	assert.Equal(t, a1, a2)
	assert.Len(t, b.Finish().Inputs, 1)
}

func TestObject_SharedMutabilityUpgrades(t *testing.T) {
	b := New()
	readOnly := chain.SharedObject{ID: testID(0x02), InitialShared: 1, Mutable: false}
	mutable := chain.SharedObject{ID: testID(0x02), InitialShared: 1, Mutable: true}

	_, err := b.Object(readOnly)
	require.NoError(t, err)
	_, err = b.Object(mutable)
	require.NoError(t, err)

	kind := b.Finish()
	require.Len(t, kind.Inputs, 1)
	merged := kind.Inputs[0].(chain.ObjectInput).Arg.(chain.SharedObject)
	assert.True(t, merged.Mutable)

	// and the upgrade sticks for a later read-only mention
	b2 := New()
	_, err = b2.Object(mutable)
	require.NoError(t, err)
	_, err = b2.Object(readOnly)
	require.NoError(t, err)
	merged = b2.Finish().Inputs[0].(chain.ObjectInput).Arg.(chain.SharedObject)
	assert.True(t, merged.Mutable)
}

func TestObject_MismatchedInitialSharedVersion(t *testing.T) {
	b := New()
	_, err := b.Object(chain.SharedObject{ID: testID(0x03), InitialShared: 1})
	require.NoError(t, err)
	_, err = b.Object(chain.SharedObject{ID: testID(0x03), InitialShared: 2})
	assert.Error(t, err)
}

func TestObject_MismatchedShapes(t *testing.T) {
	b := New()
	_, err := b.Object(chain.ImmOrOwnedObject{Ref: ownedRef(0x04, 1)})
	require.NoError(t, err)
	_, err = b.Object(chain.SharedObject{ID: testID(0x04), InitialShared: 1})
	assert.Error(t, err)

	b2 := New()
	_, err = b2.Object(chain.ImmOrOwnedObject{Ref: ownedRef(0x05, 1)})
	require.NoError(t, err)
	_, err = b2.Object(chain.ImmOrOwnedObject{Ref: ownedRef(0x05, 2)})
	assert.Error(t, err)
}

func TestObject_ReceivingAndOwnedAreDistinctShapes(t *testing.T) {
	b := New()
	_, err := b.Object(chain.ImmOrOwnedObject{Ref: ownedRef(0x06, 1)})
	require.NoError(t, err)
	_, err = b.Object(chain.ReceivingObject{Ref: ownedRef(0x06, 1)})
	assert.Error(t, err)
}

func TestInput_DispatchesByShape(t *testing.T) {
	b := New()
	a1, err := b.Input(chain.Pure{Data: []byte{1}})
	require.NoError(t, err)
	assert.Equal(t, chain.InputArg(0), a1)

	a2, err := b.Input(chain.ObjectInput{Arg: chain.ImmOrOwnedObject{Ref: ownedRef(0x07, 1)}})
	require.NoError(t, err)
	assert.Equal(t, chain.InputArg(1), a2)
}

func TestMakeObjVec(t *testing.T) {
	b := New()
	arg, err := b.MakeObjVec([]chain.ObjectArg{
		chain.ImmOrOwnedObject{Ref: ownedRef(0x08, 1)},
		chain.ImmOrOwnedObject{Ref: ownedRef(0x09, 1)},
	})
	require.NoError(t, err)
	assert.Equal(t, chain.ResultArg(0), arg)

	kind := b.Finish()
	assert.Len(t, kind.Inputs, 2)
	require.Len(t, kind.Commands, 1)
	vec := kind.Commands[0].(chain.MakeVecCommand)
	assert.Equal(t, []chain.Argument{chain.InputArg(0), chain.InputArg(1)}, vec.Elems)
}

func TestCommand_ResultsNumberInOrder(t *testing.T) {
	b := New()
	r0, err := b.Command(chain.MergeCommand{})
	require.NoError(t, err)
	r1, err := b.Command(chain.MergeCommand{})
	require.NoError(t, err)
	assert.Equal(t, chain.ResultArg(0), r0)
	assert.Equal(t, chain.ResultArg(1), r1)
}

func TestFinish_ProducesProgrammableKind(t *testing.T) {
	b := New()
	_, err := b.Pure([]byte{1})
	require.NoError(t, err)
	kind := b.Finish()
	assert.Equal(t, chain.KindProgrammable, kind.Tag)
	assert.Len(t, kind.Inputs, 1)
}
