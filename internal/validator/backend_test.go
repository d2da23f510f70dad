package validator_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/chainscript/internal/adapter"
	"github.com/roach88/chainscript/internal/chain"
	"github.com/roach88/chainscript/internal/ledger"
	"github.com/roach88/chainscript/internal/testutil"
	"github.com/roach88/chainscript/internal/txbuilder"
	"github.com/roach88/chainscript/internal/validator"
)

// seedCoin commits the same coin object on both nodes, the way genesis
// would, so the replay pipeline sees identical state.
func seedCoin(b *validator.Backend, id byte, owner chain.Address, value uint64) *chain.Object {
	var oid chain.ObjectID
	oid[31] = id
	coin := &chain.Object{
		ID:      oid,
		Version: 1,
		Owner:   chain.OwnedBy(owner),
		Contents: []byte{
			byte(value), byte(value >> 8), byte(value >> 16), byte(value >> 24),
			byte(value >> 32), byte(value >> 40), byte(value >> 48), byte(value >> 56),
		},
		TypeTag: "coin",
	}
	b.Validator().Ledger().SeedObject(coin)
	b.Fullnode().Ledger().SeedObject(coin)
	return coin
}

func transferKind(t *testing.T, coin *chain.Object, recipient chain.Address) chain.TransactionKind {
	t.Helper()
	tb := txbuilder.New()
	coinArg, err := tb.Object(chain.ImmOrOwnedObject{Ref: coin.Ref()})
	require.NoError(t, err)
	recArg, err := tb.Pure(recipient.Bytes())
	require.NoError(t, err)
	_, err = tb.Command(chain.TransferCommand{Objects: []chain.Argument{coinArg}, Recipient: recArg})
	require.NoError(t, err)
	return tb.Finish()
}

func TestBackend_UnsupportedOperations(t *testing.T) {
	b := testutil.NewValidator(t)

	_, ckptErr := b.CreateCheckpoint()
	_, clockErr := b.AdvanceClock(time.Second)
	epochErr := b.AdvanceEpoch()
	_, fundsErr := b.RequestFunds(testutil.Account("alice"), 100)

	for _, err := range []error{ckptErr, clockErr, epochErr, fundsErr} {
		require.Error(t, err)
		assert.True(t, adapter.IsUnsupported(err))
		assert.Contains(t, err.Error(), validator.Mode)
	}
}

func TestBackend_FastPathTransfer(t *testing.T) {
	b := testutil.NewValidator(t)
	alice, bob := testutil.Account("alice"), testutil.Account("bob")
	coin := seedCoin(b, 0x11, alice, 500)

	effects, execErr, err := b.ExecuteTransaction(&chain.Transaction{
		Sender: alice, GasBudget: 10_000, GasPrice: 1,
		Kind: transferKind(t, coin, bob),
	})
	require.NoError(t, err)
	require.Nil(t, execErr)
	assert.Equal(t, chain.StatusSuccess, effects.Status)

	moved, err := b.GetObject(coin.ID)
	require.NoError(t, err)
	assert.Equal(t, bob, moved.Owner.Address)
	assert.Equal(t, coin.Version+1, moved.Version)
}

// A shared-object input routes through the consensus path; the outcome
// must still match the fast path's shape, and the fullnode must replay
// to identical effects.
func TestBackend_ConsensusPathSharedObject(t *testing.T) {
	b := testutil.NewValidator(t)
	alice := testutil.Account("alice")

	tb := txbuilder.New()
	clockArg, err := tb.Object(chain.SharedObject{
		ID: ledger.ClockObjectID, InitialShared: 1, Mutable: true,
	})
	require.NoError(t, err)
	_, err = tb.Command(chain.CallCommand{
		Module: "clock", Function: "read", Args: []chain.Argument{clockArg},
	})
	require.NoError(t, err)
	kind := tb.Finish()
	require.True(t, kind.ContainsSharedObject())

	effects, execErr, err := b.ExecuteTransaction(&chain.Transaction{
		Sender: alice, GasBudget: 10_000, GasPrice: 1, Kind: kind,
	})
	require.NoError(t, err)
	require.Nil(t, execErr)
	assert.Equal(t, chain.StatusSuccess, effects.Status)
}

func TestBackend_ReplayMatchesOnAbort(t *testing.T) {
	b := testutil.NewValidator(t)
	alice := testutil.Account("alice")
	coin := seedCoin(b, 0x22, alice, 10)

	tb := txbuilder.New()
	coinArg, err := tb.Object(chain.ImmOrOwnedObject{Ref: coin.Ref()})
	require.NoError(t, err)
	amt, err := tb.Pure([]byte{255, 0, 0, 0, 0, 0, 0, 0})
	require.NoError(t, err)
	_, err = tb.Command(chain.SplitCommand{Coin: coinArg, Amounts: []chain.Argument{amt}})
	require.NoError(t, err)

	effects, execErr, err := b.ExecuteTransaction(&chain.Transaction{
		Sender: alice, GasBudget: 10_000, GasPrice: 1, Kind: tb.Finish(),
	})
	require.NoError(t, err)
	require.NotNil(t, execErr)
	assert.Equal(t, "INSUFFICIENT_BALANCE", execErr.Code)
	assert.Equal(t, chain.StatusFailure, effects.Status)

	// Both nodes committed the same failed transaction.
	v, err := b.Validator().GetObject(coin.ID)
	require.NoError(t, err)
	f, err := b.Fullnode().GetObject(coin.ID)
	require.NoError(t, err)
	assert.Equal(t, v.Version, f.Version)
	assert.Equal(t, chain.Version(1), v.Version)
}

func TestBackend_EventsServedByFullnode(t *testing.T) {
	b := testutil.NewValidator(t)
	alice, bob := testutil.Account("alice"), testutil.Account("bob")
	coin := seedCoin(b, 0x33, alice, 500)

	effects, execErr, err := b.ExecuteTransaction(&chain.Transaction{
		Sender: alice, GasBudget: 10_000, GasPrice: 1,
		Kind: transferKind(t, coin, bob),
	})
	require.NoError(t, err)
	require.Nil(t, execErr)

	events, err := b.QueryEventsAsc(effects.TransactionDigest, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "transfer", events[0].Type)
}

func TestBackend_QueryUnknownDigestIsEmpty(t *testing.T) {
	b := testutil.NewValidator(t)
	unknown := chain.ComputeDigest(chain.DigestDomainTransaction, []byte("missing"))
	events, err := b.QueryEventsAsc(unknown, 10)
	require.NoError(t, err)
	assert.NotNil(t, events)
	assert.Empty(t, events)
}

func TestBackend_DevInspect(t *testing.T) {
	b := testutil.NewValidator(t)
	alice := testutil.Account("alice")
	coin := seedCoin(b, 0x44, alice, 500)

	res, err := b.DevInspect(alice, transferKind(t, coin, testutil.Account("bob")), nil)
	require.NoError(t, err)
	require.Nil(t, res.Error)
	assert.Equal(t, chain.StatusSuccess, res.Effects.Status)

	// Speculative only: the coin is untouched on both nodes.
	obj, err := b.GetObject(coin.ID)
	require.NoError(t, err)
	assert.Equal(t, alice, obj.Owner.Address)
}

// A rejected submission consumes nothing on either node, so the pipeline
// keeps working afterwards.
func TestBackend_RecoversAfterRejectedSubmission(t *testing.T) {
	b := testutil.NewValidator(t)
	alice, bob := testutil.Account("alice"), testutil.Account("bob")
	coin := seedCoin(b, 0x55, alice, 500)

	stale := *coin
	stale.Version = 99
	_, _, err := b.ExecuteTransaction(&chain.Transaction{
		Sender: alice, GasBudget: 10_000, GasPrice: 1,
		Kind: transferKind(t, &stale, bob),
	})
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "fork")

	effects, execErr, err := b.ExecuteTransaction(&chain.Transaction{
		Sender: alice, GasBudget: 10_000, GasPrice: 1,
		Kind: transferKind(t, coin, bob),
	})
	require.NoError(t, err)
	require.Nil(t, execErr)
	assert.Equal(t, chain.StatusSuccess, effects.Status)

	moved, err := b.GetObject(coin.ID)
	require.NoError(t, err)
	assert.Equal(t, bob, moved.Owner.Address)
}

// Replay verification compares full effects, so a state divergence between
// the nodes surfaces as a fork even though the transaction digests match.
func TestBackend_DetectsReplayDivergence(t *testing.T) {
	b := testutil.NewValidator(t)
	alice, bob := testutil.Account("alice"), testutil.Account("bob")

	var id chain.ObjectID
	id[31] = 0x66
	shared := func(contents []byte) *chain.Object {
		return &chain.Object{
			ID:       id,
			Version:  1,
			Owner:    chain.SharedAt(1),
			Contents: contents,
			TypeTag:  "counter",
		}
	}
	b.Validator().Ledger().SeedObject(shared([]byte{1}))
	b.Fullnode().Ledger().SeedObject(shared([]byte{2}))

	tb := txbuilder.New()
	arg, err := tb.Object(chain.SharedObject{ID: id, InitialShared: 1, Mutable: true})
	require.NoError(t, err)
	rec, err := tb.Pure(bob.Bytes())
	require.NoError(t, err)
	_, err = tb.Command(chain.TransferCommand{Objects: []chain.Argument{arg}, Recipient: rec})
	require.NoError(t, err)

	_, _, err = b.ExecuteTransaction(&chain.Transaction{
		Sender: alice, GasBudget: 10_000, GasPrice: 1, Kind: tb.Finish(),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fork")
}
