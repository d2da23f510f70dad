package chain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func sampleEffects() TransactionEffects {
	ref := func(b byte, v Version) ObjectRef {
		var id ObjectID
		id[31] = b
		return ObjectRef{ID: id, Version: v, Digest: ComputeDigest(DigestDomainObject, []byte{b})}
	}
	return TransactionEffects{
		TransactionDigest: ComputeDigest(DigestDomainTransaction, []byte("tx")),
		Status:            StatusSuccess,
		ExecutedEpoch:     3,
		TimestampMs:       1000,
		GasUsed:           1100,
		Created:           []ObjectRef{ref(1, 1)},
		Mutated:           []ObjectRef{ref(2, 5)},
		EventsDigest:      ComputeDigest(DigestDomainEvents, []byte("ev")),
	}
}

func TestEffectsDigest(t *testing.T) {
	a, b := sampleEffects(), sampleEffects()
	assert.Equal(t, a.Digest(), b.Digest())

	gas := sampleEffects()
	gas.GasUsed++
	assert.NotEqual(t, a.Digest(), gas.Digest())

	status := sampleEffects()
	status.Status = StatusFailure
	assert.NotEqual(t, a.Digest(), status.Digest())

	// A divergent resulting object state changes only the ref's content
	// digest; the digest must still move.
	mutated := sampleEffects()
	mutated.Mutated[0].Digest[0] ^= 1
	assert.NotEqual(t, a.Digest(), mutated.Digest())

	events := sampleEffects()
	events.EventsDigest = Digest{}
	assert.NotEqual(t, a.Digest(), events.Digest())

	// Moving a ref between change sets is a different outcome.
	moved := sampleEffects()
	moved.Created, moved.Mutated = moved.Mutated, moved.Created
	assert.NotEqual(t, a.Digest(), moved.Digest())
}

func TestTransactionDigest_CommitsToCommands(t *testing.T) {
	var sender Address
	sender[31] = 0xa1
	mk := func(commands ...Command) *Transaction {
		return &Transaction{
			Sender:    sender,
			GasBudget: 10_000,
			GasPrice:  1,
			Kind:      ProgrammableKind(nil, commands),
		}
	}

	call := func(fn string) Command {
		return CallCommand{Module: "m", Function: fn, Args: []Argument{InputArg(0)}}
	}
	assert.Equal(t, mk(call("f")).Digest(), mk(call("f")).Digest())
	assert.NotEqual(t, mk(call("f")).Digest(), mk(call("g")).Digest())

	pub := func(module byte) Command {
		return PublishCommand{Modules: [][]byte{{module}}}
	}
	assert.NotEqual(t, mk(pub(1)).Digest(), mk(pub(2)).Digest())

	xfer := func(rec Argument) Command {
		return TransferCommand{Objects: []Argument{InputArg(0)}, Recipient: rec}
	}
	assert.NotEqual(t, mk(xfer(InputArg(1))).Digest(), mk(xfer(ResultArg(1))).Digest())

	// Same command count, different variants.
	assert.NotEqual(t,
		mk(MakeVecCommand{Elems: []Argument{InputArg(0)}}).Digest(),
		mk(SplitCommand{Coin: InputArg(0)}).Digest())
}
