package chain

import (
	"bytes"
	"fmt"
)

// ObjectArg is a sealed union over the three object-input shapes a
// transaction may carry. Only ImmOrOwnedObject, SharedObject, and
// ReceivingObject implement it.
type ObjectArg interface {
	objectArg()
	// ObjectID returns the identity the input refers to.
	ObjectID() ObjectID
}

// ImmOrOwnedObject pins an owned or immutable object to an exact reference.
type ImmOrOwnedObject struct {
	Ref ObjectRef
}

func (ImmOrOwnedObject) objectArg() {}

func (a ImmOrOwnedObject) ObjectID() ObjectID { return a.Ref.ID }

// SharedObject names a shared object by its initial shared version. Mutable
// requests write access; consensus sequences the transaction either way.
type SharedObject struct {
	ID            ObjectID
	InitialShared Version
	Mutable       bool
}

func (SharedObject) objectArg() {}

func (a SharedObject) ObjectID() ObjectID { return a.ID }

// ReceivingObject pins an object consumed via the receive transfer mode.
type ReceivingObject struct {
	Ref ObjectRef
}

func (ReceivingObject) objectArg() {}

func (a ReceivingObject) ObjectID() ObjectID { return a.Ref.ID }

// CallArg is a sealed union over transaction inputs: pure data or an object.
type CallArg interface {
	callArg()
}

// Pure is a canonically serialized plain value.
type Pure struct {
	Data []byte
}

func (Pure) callArg() {}

// ObjectInput wraps an ObjectArg as a transaction input.
type ObjectInput struct {
	Arg ObjectArg
}

func (ObjectInput) callArg() {}

// ArgumentKind discriminates Argument.
type ArgumentKind int

const (
	// ArgInput refers to a transaction input by index.
	ArgInput ArgumentKind = iota
	// ArgResult refers to the whole result of a prior command.
	ArgResult
	// ArgNestedResult refers to one element of a prior command's result.
	ArgNestedResult
	// ArgGasCoin refers to the gas coin.
	ArgGasCoin
)

// Argument references a value inside a programmable transaction: an input,
// a prior command's result, or the gas coin.
type Argument struct {
	Kind    ArgumentKind
	Index   uint16 // input index or command index
	Element uint16 // element index for ArgNestedResult
}

// InputArg builds an input-index argument.
func InputArg(i uint16) Argument {
	return Argument{Kind: ArgInput, Index: i}
}

// ResultArg builds a whole-result argument for command i.
func ResultArg(i uint16) Argument {
	return Argument{Kind: ArgResult, Index: i}
}

// NestedResultArg builds an argument for element j of command i's result.
func NestedResultArg(i, j uint16) Argument {
	return Argument{Kind: ArgNestedResult, Index: i, Element: j}
}

// GasCoinArg builds the gas-coin argument.
func GasCoinArg() Argument {
	return Argument{Kind: ArgGasCoin}
}

func (a Argument) String() string {
	switch a.Kind {
	case ArgInput:
		return fmt.Sprintf("Input(%d)", a.Index)
	case ArgResult:
		return fmt.Sprintf("Result(%d)", a.Index)
	case ArgNestedResult:
		return fmt.Sprintf("NestedResult(%d,%d)", a.Index, a.Element)
	case ArgGasCoin:
		return "GasCoin"
	default:
		return fmt.Sprintf("Argument(%d)", int(a.Kind))
	}
}

// Command is a sealed union over programmable-transaction commands.
type Command interface {
	command()
}

// TransferCommand transfers objects to a recipient address argument.
type TransferCommand struct {
	Objects   []Argument
	Recipient Argument
}

func (TransferCommand) command() {}

// SplitCommand splits amounts off a coin, producing one new coin per amount.
type SplitCommand struct {
	Coin    Argument
	Amounts []Argument
}

func (SplitCommand) command() {}

// MergeCommand merges source coins into a destination coin.
type MergeCommand struct {
	Destination Argument
	Sources     []Argument
}

func (MergeCommand) command() {}

// PublishCommand publishes a package from raw module bytes. The new package
// object is immutable.
type PublishCommand struct {
	Modules [][]byte
}

func (PublishCommand) command() {}

// MakeVecCommand collects arguments into a vector result. The builder's
// object-vector path lowers into this.
type MakeVecCommand struct {
	Elems []Argument
}

func (MakeVecCommand) command() {}

// CallCommand invokes a function in a published package. Execution treats
// unknown functions as no-ops that consume their arguments; scripted tests
// use it to exercise input resolution.
type CallCommand struct {
	Package  ObjectID
	Module   string
	Function string
	Args     []Argument
}

func (CallCommand) command() {}

// TransactionKindTag discriminates TransactionKind between user-programmable
// transactions and the system transactions backends inject themselves.
type TransactionKindTag int

const (
	// KindProgrammable is a user transaction: inputs plus commands.
	KindProgrammable TransactionKindTag = iota
	// KindClockUpdate advances the logical clock (system).
	KindClockUpdate
	// KindEpochChange closes an epoch (system).
	KindEpochChange
	// KindFaucet credits an address from the faucet (system).
	KindFaucet
)

// TransactionKind is the executable payload of a transaction, without
// sender or gas data. Dev-inspect executes a bare kind.
type TransactionKind struct {
	Tag      TransactionKindTag
	Inputs   []CallArg
	Commands []Command

	// System payloads.
	ClockDeltaNs uint64
	Faucet       struct {
		Recipient Address
		Amount    uint64
	}
}

// ProgrammableKind builds a programmable kind from inputs and commands.
func ProgrammableKind(inputs []CallArg, commands []Command) TransactionKind {
	return TransactionKind{Tag: KindProgrammable, Inputs: inputs, Commands: commands}
}

// ContainsSharedObject reports whether any input is a shared-object input.
// The validator backend routes on this: shared inputs take the consensus
// path, owned-only transactions take the fast path.
func (k *TransactionKind) ContainsSharedObject() bool {
	for _, in := range k.Inputs {
		obj, ok := in.(ObjectInput)
		if !ok {
			continue
		}
		if _, shared := obj.Arg.(SharedObject); shared {
			return true
		}
	}
	return false
}

// Transaction is a fully-formed, signable transaction.
type Transaction struct {
	Sender    Address
	GasBudget uint64
	GasPrice  uint64
	Kind      TransactionKind
}

// Digest returns the transaction's content digest. Two transactions with
// identical sender, gas, and kind bytes share a digest.
func (t *Transaction) Digest() Digest {
	var buf bytes.Buffer
	buf.Write(t.Sender[:])
	buf.Write(appendUint64(nil, t.GasBudget))
	buf.Write(appendUint64(nil, t.GasPrice))
	buf.Write(appendUint64(nil, uint64(t.Tag())))
	for _, in := range t.Kind.Inputs {
		switch arg := in.(type) {
		case Pure:
			buf.WriteByte(0)
			buf.Write(appendUint64(nil, uint64(len(arg.Data))))
			buf.Write(arg.Data)
		case ObjectInput:
			buf.WriteByte(1)
			encodeObjectArg(&buf, arg.Arg)
		}
	}
	buf.Write(appendUint64(nil, uint64(len(t.Kind.Commands))))
	for _, cmd := range t.Kind.Commands {
		encodeCommand(&buf, cmd)
	}
	buf.Write(appendUint64(nil, t.Kind.ClockDeltaNs))
	buf.Write(t.Kind.Faucet.Recipient[:])
	buf.Write(appendUint64(nil, t.Kind.Faucet.Amount))
	return ComputeDigest(DigestDomainTransaction, buf.Bytes())
}

// Tag returns the kind tag.
func (t *Transaction) Tag() TransactionKindTag {
	return t.Kind.Tag
}

func encodeObjectArg(buf *bytes.Buffer, arg ObjectArg) {
	switch a := arg.(type) {
	case ImmOrOwnedObject:
		buf.WriteByte(0)
		encodeRef(buf, a.Ref)
	case SharedObject:
		buf.WriteByte(1)
		buf.Write(a.ID[:])
		buf.Write(appendUint64(nil, uint64(a.InitialShared)))
		if a.Mutable {
			buf.WriteByte(1)
		} else {
			buf.WriteByte(0)
		}
	case ReceivingObject:
		buf.WriteByte(2)
		encodeRef(buf, a.Ref)
	}
}

func encodeRef(buf *bytes.Buffer, r ObjectRef) {
	buf.Write(r.ID[:])
	buf.Write(appendUint64(nil, uint64(r.Version)))
	buf.Write(r.Digest[:])
}

func encodeCommand(buf *bytes.Buffer, cmd Command) {
	switch c := cmd.(type) {
	case TransferCommand:
		buf.WriteByte(0)
		encodeArgs(buf, c.Objects)
		encodeArg(buf, c.Recipient)
	case SplitCommand:
		buf.WriteByte(1)
		encodeArg(buf, c.Coin)
		encodeArgs(buf, c.Amounts)
	case MergeCommand:
		buf.WriteByte(2)
		encodeArg(buf, c.Destination)
		encodeArgs(buf, c.Sources)
	case PublishCommand:
		buf.WriteByte(3)
		buf.Write(appendUint64(nil, uint64(len(c.Modules))))
		for _, m := range c.Modules {
			buf.Write(appendUint64(nil, uint64(len(m))))
			buf.Write(m)
		}
	case MakeVecCommand:
		buf.WriteByte(4)
		encodeArgs(buf, c.Elems)
	case CallCommand:
		buf.WriteByte(5)
		buf.Write(c.Package[:])
		buf.Write(appendUint64(nil, uint64(len(c.Module))))
		buf.WriteString(c.Module)
		buf.Write(appendUint64(nil, uint64(len(c.Function))))
		buf.WriteString(c.Function)
		encodeArgs(buf, c.Args)
	}
}

func encodeArg(buf *bytes.Buffer, a Argument) {
	buf.Write(appendUint64(nil, uint64(a.Kind)))
	buf.Write(appendUint64(nil, uint64(a.Index)))
	buf.Write(appendUint64(nil, uint64(a.Element)))
}

func encodeArgs(buf *bytes.Buffer, args []Argument) {
	buf.Write(appendUint64(nil, uint64(len(args))))
	for _, a := range args {
		encodeArg(buf, a)
	}
}
