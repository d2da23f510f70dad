package ledger

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/roach88/chainscript/internal/chain"
)

// execValue is one runtime value flowing between commands: pure bytes, an
// object, or an object vector.
type execValue struct {
	bytes []byte
	obj   *chain.Object
	vec   []*chain.Object
}

// execState stages the working set of one transaction. Nothing touches the
// ledger until the transaction commits; an execution abort commits the
// transaction with failure status and no object changes.
type execState struct {
	l        *Ledger
	txDigest chain.Digest
	sender   chain.Address
	lamport  chain.Version

	inputs  []execValue
	results [][]execValue

	created map[chain.ObjectID]*chain.Object
	mutated map[chain.ObjectID]*chain.Object
	deleted map[chain.ObjectID]*chain.Object

	createdCounter uint64
	events         []chain.Event
}

// Execute runs a transaction to completion and commits it. The returned
// ExecError, when non-nil, reports an abort during execution: the
// transaction is still committed, with effects reflecting the abort. The
// error return reports submission failures (unavailable input versions,
// malformed kinds); those commit nothing.
func (l *Ledger) Execute(txn *chain.Transaction) (*chain.TransactionEffects, []chain.Event, *chain.ExecError, error) {
	base := txn.Digest()
	txDigest := chain.ComputeDigest(chain.DigestDomainTransaction,
		append(base.Bytes(), encodeUint64(l.txCounter)...))

	effects := &chain.TransactionEffects{
		TransactionDigest: txDigest,
		Status:            chain.StatusSuccess,
		ExecutedEpoch:     l.epoch,
		TimestampMs:       l.tsMs,
	}

	switch txn.Kind.Tag {
	case chain.KindClockUpdate:
		l.tsMs += txn.Kind.ClockDeltaNs / 1_000_000
		clock := l.store.getLatest(ClockObjectID)
		if clock == nil {
			return nil, nil, nil, fmt.Errorf("clock object missing")
		}
		next := &chain.Object{
			ID:       clock.ID,
			Version:  clock.Version + 1,
			Owner:    clock.Owner,
			Contents: encodeUint64(l.tsMs),
			TypeTag:  clock.TypeTag,
		}
		l.store.put(next)
		effects.TimestampMs = l.tsMs
		effects.Mutated = []chain.ObjectRef{next.Ref()}
		effects.GasUsed = systemGas
		l.commit(txDigest, nil)
		return effects, nil, nil, nil

	case chain.KindEpochChange:
		l.epoch++
		effects.ExecutedEpoch = l.epoch
		effects.GasUsed = systemGas
		l.commit(txDigest, nil)
		return effects, nil, nil, nil

	case chain.KindFaucet:
		recipient := txn.Kind.Faucet.Recipient
		amount := txn.Kind.Faucet.Amount
		id := l.deriveObjectID(txDigest, 0)
		coin := newCoin(id, recipient, amount)
		l.store.put(coin)
		l.balances[recipient] += amount
		effects.Created = []chain.ObjectRef{coin.Ref()}
		effects.GasUsed = systemGas
		ev := chain.Event{
			TxDigest: txDigest,
			Seq:      0,
			Sender:   recipient,
			Type:     "faucet",
			Payload:  encodeUint64(amount),
		}
		effects.EventsDigest = chain.EventsDigest([]chain.Event{ev})
		l.commit(txDigest, []chain.Event{ev})
		return effects, []chain.Event{ev}, nil, nil

	case chain.KindProgrammable:
		return l.executeProgrammable(txn, txDigest, effects)

	default:
		return nil, nil, nil, fmt.Errorf("unknown transaction kind %d", txn.Kind.Tag)
	}
}

const (
	baseGas    = 1000
	commandGas = 100
	systemGas  = 10
)

func (l *Ledger) executeProgrammable(
	txn *chain.Transaction,
	txDigest chain.Digest,
	effects *chain.TransactionEffects,
) (*chain.TransactionEffects, []chain.Event, *chain.ExecError, error) {
	st := &execState{
		l:        l,
		txDigest: txDigest,
		sender:   txn.Sender,
		created:  make(map[chain.ObjectID]*chain.Object),
		mutated:  make(map[chain.ObjectID]*chain.Object),
		deleted:  make(map[chain.ObjectID]*chain.Object),
	}

	// Input loading happens before commit: an unavailable version is a
	// submission failure, not an execution error.
	if err := st.loadInputs(txn.Kind.Inputs); err != nil {
		return nil, nil, nil, err
	}

	effects.GasUsed = baseGas + commandGas*uint64(len(txn.Kind.Commands))

	for i, cmd := range txn.Kind.Commands {
		if execErr := st.runCommand(i, cmd); execErr != nil {
			// Aborted execution still commits, with failure status and
			// no object changes or events.
			effects.Status = chain.StatusFailure
			l.commit(txDigest, nil)
			return effects, nil, execErr, nil
		}
	}

	for _, obj := range st.created {
		l.store.put(obj)
		effects.Created = append(effects.Created, obj.Ref())
	}
	for _, obj := range st.mutated {
		l.store.put(obj)
		effects.Mutated = append(effects.Mutated, obj.Ref())
	}
	for id, obj := range st.deleted {
		l.store.remove(id)
		effects.Deleted = append(effects.Deleted, obj.Ref())
	}
	sortRefs(effects.Created)
	sortRefs(effects.Mutated)
	sortRefs(effects.Deleted)

	effects.EventsDigest = chain.EventsDigest(st.events)
	l.commit(txDigest, st.events)
	return effects, st.events, nil, nil
}

// commit records a committed transaction. The sequence counter advances
// here, not at submission: a rejected submission must not perturb the
// digests of later transactions, or replicas that never saw the rejection
// would diverge.
func (l *Ledger) commit(txDigest chain.Digest, events []chain.Event) {
	l.txCounter++
	l.pending = append(l.pending, txDigest)
	if len(events) > 0 {
		l.events[txDigest] = events
	}
}

// loadInputs resolves call arguments against the store and computes the
// lamport version every object written by this transaction will carry.
func (st *execState) loadInputs(inputs []chain.CallArg) error {
	st.lamport = 1
	st.inputs = make([]execValue, len(inputs))
	for i, in := range inputs {
		switch arg := in.(type) {
		case chain.Pure:
			st.inputs[i] = execValue{bytes: arg.Data}
		case chain.ObjectInput:
			obj, err := st.loadObjectArg(arg.Arg)
			if err != nil {
				return fmt.Errorf("input %d: %w", i, err)
			}
			if obj.Version >= st.lamport {
				st.lamport = obj.Version + 1
			}
			st.inputs[i] = execValue{obj: obj}
		default:
			return fmt.Errorf("input %d: unknown call argument type %T", i, in)
		}
	}
	return nil
}

func (st *execState) loadObjectArg(arg chain.ObjectArg) (*chain.Object, error) {
	switch a := arg.(type) {
	case chain.ImmOrOwnedObject:
		obj := st.l.store.getLatest(a.Ref.ID)
		if obj == nil {
			return nil, fmt.Errorf("object %s does not exist", a.Ref.ID.Short())
		}
		if obj.Version != a.Ref.Version {
			return nil, fmt.Errorf("object %s not available at version %d (latest %d)",
				a.Ref.ID.Short(), a.Ref.Version, obj.Version)
		}
		if obj.IsShared() {
			return nil, fmt.Errorf("object %s is shared but was passed as owned", a.Ref.ID.Short())
		}
		return obj, nil
	case chain.SharedObject:
		obj := st.l.store.getLatest(a.ID)
		if obj == nil {
			return nil, fmt.Errorf("shared object %s does not exist", a.ID.Short())
		}
		if !obj.IsShared() {
			return nil, fmt.Errorf("object %s is not shared", a.ID.Short())
		}
		if obj.Owner.InitialShared != a.InitialShared {
			return nil, fmt.Errorf("shared object %s initial version mismatch", a.ID.Short())
		}
		return obj, nil
	case chain.ReceivingObject:
		obj := st.l.store.getLatest(a.Ref.ID)
		if obj == nil {
			return nil, fmt.Errorf("receiving object %s does not exist", a.Ref.ID.Short())
		}
		if obj.Version != a.Ref.Version {
			return nil, fmt.Errorf("receiving object %s not available at version %d",
				a.Ref.ID.Short(), a.Ref.Version)
		}
		return obj, nil
	default:
		return nil, fmt.Errorf("unknown object argument type %T", arg)
	}
}

func (st *execState) runCommand(idx int, cmd chain.Command) *chain.ExecError {
	switch c := cmd.(type) {
	case chain.TransferCommand:
		return st.runTransfer(idx, c)
	case chain.SplitCommand:
		return st.runSplit(idx, c)
	case chain.MergeCommand:
		return st.runMerge(idx, c)
	case chain.PublishCommand:
		return st.runPublish(idx, c)
	case chain.MakeVecCommand:
		return st.runMakeVec(idx, c)
	case chain.CallCommand:
		return st.runCall(idx, c)
	default:
		return &chain.ExecError{Command: idx, Code: "UNKNOWN_COMMAND",
			Message: fmt.Sprintf("unknown command type %T", cmd)}
	}
}

func (st *execState) runTransfer(idx int, c chain.TransferCommand) *chain.ExecError {
	recipientBytes, execErr := st.argBytes(idx, c.Recipient)
	if execErr != nil {
		return execErr
	}
	recipient, err := chain.AddressFromBytes(recipientBytes)
	if err != nil {
		return &chain.ExecError{Command: idx, Code: "TYPE_MISMATCH",
			Message: "transfer recipient is not an address"}
	}
	for _, objArg := range c.Objects {
		obj, execErr := st.argObject(idx, objArg)
		if execErr != nil {
			return execErr
		}
		next := st.rewriteObject(obj, chain.OwnedBy(recipient), obj.Contents)
		st.stageMutation(obj, next)
	}
	st.emit("transfer", recipientBytes)
	st.results = append(st.results, nil)
	return nil
}

func (st *execState) runSplit(idx int, c chain.SplitCommand) *chain.ExecError {
	coin, execErr := st.argObject(idx, c.Coin)
	if execErr != nil {
		return execErr
	}
	if coin.TypeTag != "coin" {
		return &chain.ExecError{Command: idx, Code: "TYPE_MISMATCH",
			Message: fmt.Sprintf("cannot split a %q object", coin.TypeTag)}
	}
	balance := CoinValue(coin)
	var outs []execValue
	for _, amountArg := range c.Amounts {
		raw, execErr := st.argBytes(idx, amountArg)
		if execErr != nil {
			return execErr
		}
		if len(raw) != 8 {
			return &chain.ExecError{Command: idx, Code: "TYPE_MISMATCH",
				Message: "split amount is not a u64"}
		}
		amount := decodeUint64(raw)
		if amount > balance {
			return &chain.ExecError{Command: idx, Code: "INSUFFICIENT_BALANCE",
				Message: fmt.Sprintf("split of %d exceeds balance %d", amount, balance)}
		}
		balance -= amount
		id := st.freshObjectID()
		out := &chain.Object{
			ID:       id,
			Version:  st.lamport,
			Owner:    chain.OwnedBy(st.sender),
			Contents: encodeUint64(amount),
			TypeTag:  "coin",
		}
		st.created[id] = out
		outs = append(outs, execValue{obj: out})
	}
	next := st.rewriteObject(coin, coin.Owner, encodeUint64(balance))
	st.stageMutation(coin, next)
	st.emit("split", encodeUint64(uint64(len(c.Amounts))))
	st.results = append(st.results, outs)
	return nil
}

func (st *execState) runMerge(idx int, c chain.MergeCommand) *chain.ExecError {
	dest, execErr := st.argObject(idx, c.Destination)
	if execErr != nil {
		return execErr
	}
	total := CoinValue(dest)
	for _, srcArg := range c.Sources {
		src, execErr := st.argObject(idx, srcArg)
		if execErr != nil {
			return execErr
		}
		total += CoinValue(src)
		st.deleted[src.ID] = src
	}
	next := st.rewriteObject(dest, dest.Owner, encodeUint64(total))
	st.stageMutation(dest, next)
	st.emit("merge", encodeUint64(total))
	st.results = append(st.results, nil)
	return nil
}

func (st *execState) runPublish(idx int, c chain.PublishCommand) *chain.ExecError {
	if len(c.Modules) == 0 {
		return &chain.ExecError{Command: idx, Code: "EMPTY_PACKAGE",
			Message: "publish requires at least one module"}
	}
	var contents []byte
	for _, m := range c.Modules {
		contents = appendULEB(contents, uint64(len(m)))
		contents = append(contents, m...)
	}
	id := st.freshObjectID()
	pkg := &chain.Object{
		ID:       id,
		Version:  1, // packages are born at version 1 and never move
		Owner:    chain.Immutable(),
		Contents: contents,
		TypeTag:  "package",
	}
	st.created[id] = pkg
	st.emit("publish", id[:])
	st.results = append(st.results, []execValue{{obj: pkg}})
	return nil
}

func (st *execState) runMakeVec(idx int, c chain.MakeVecCommand) *chain.ExecError {
	vec := make([]*chain.Object, len(c.Elems))
	for i, arg := range c.Elems {
		obj, execErr := st.argObject(idx, arg)
		if execErr != nil {
			return execErr
		}
		vec[i] = obj
	}
	st.results = append(st.results, []execValue{{vec: vec}})
	return nil
}

// runCall resolves a call's arguments and emits a call event. Unknown
// functions execute as no-ops; scripted tests use them to exercise the
// input-resolution path without a full VM.
func (st *execState) runCall(idx int, c chain.CallCommand) *chain.ExecError {
	for _, arg := range c.Args {
		if _, execErr := st.argValue(idx, arg); execErr != nil {
			return execErr
		}
	}
	st.emit("call", []byte(c.Module+"::"+c.Function))
	st.results = append(st.results, nil)
	return nil
}

func (st *execState) argValue(idx int, arg chain.Argument) (execValue, *chain.ExecError) {
	switch arg.Kind {
	case chain.ArgInput:
		if int(arg.Index) >= len(st.inputs) {
			return execValue{}, &chain.ExecError{Command: idx, Code: "BAD_ARGUMENT",
				Message: fmt.Sprintf("input index %d out of range", arg.Index)}
		}
		return st.inputs[arg.Index], nil
	case chain.ArgResult:
		if int(arg.Index) >= len(st.results) || len(st.results[arg.Index]) != 1 {
			return execValue{}, &chain.ExecError{Command: idx, Code: "BAD_ARGUMENT",
				Message: fmt.Sprintf("result %d is not a single value", arg.Index)}
		}
		return st.results[arg.Index][0], nil
	case chain.ArgNestedResult:
		if int(arg.Index) >= len(st.results) || int(arg.Element) >= len(st.results[arg.Index]) {
			return execValue{}, &chain.ExecError{Command: idx, Code: "BAD_ARGUMENT",
				Message: fmt.Sprintf("nested result (%d,%d) out of range", arg.Index, arg.Element)}
		}
		return st.results[arg.Index][arg.Element], nil
	case chain.ArgGasCoin:
		return execValue{}, &chain.ExecError{Command: idx, Code: "BAD_ARGUMENT",
			Message: "gas coin argument is not modeled"}
	default:
		return execValue{}, &chain.ExecError{Command: idx, Code: "BAD_ARGUMENT",
			Message: fmt.Sprintf("unknown argument kind %d", arg.Kind)}
	}
}

func (st *execState) argObject(idx int, arg chain.Argument) (*chain.Object, *chain.ExecError) {
	v, execErr := st.argValue(idx, arg)
	if execErr != nil {
		return nil, execErr
	}
	if v.obj == nil {
		return nil, &chain.ExecError{Command: idx, Code: "TYPE_MISMATCH",
			Message: fmt.Sprintf("argument %s is not an object", arg)}
	}
	// staged writes supersede the version the argument was bound to
	if next, ok := st.mutated[v.obj.ID]; ok {
		return next, nil
	}
	if next, ok := st.created[v.obj.ID]; ok {
		return next, nil
	}
	return v.obj, nil
}

func (st *execState) argBytes(idx int, arg chain.Argument) ([]byte, *chain.ExecError) {
	v, execErr := st.argValue(idx, arg)
	if execErr != nil {
		return nil, execErr
	}
	if v.bytes == nil {
		return nil, &chain.ExecError{Command: idx, Code: "TYPE_MISMATCH",
			Message: fmt.Sprintf("argument %s is not a pure value", arg)}
	}
	return v.bytes, nil
}

// rewriteObject produces the post-transaction version of an object.
func (st *execState) rewriteObject(obj *chain.Object, owner chain.Owner, contents []byte) *chain.Object {
	return &chain.Object{
		ID:       obj.ID,
		Version:  st.lamport,
		Owner:    owner,
		Contents: contents,
		TypeTag:  obj.TypeTag,
	}
}

func (st *execState) stageMutation(old, next *chain.Object) {
	if _, isNew := st.created[old.ID]; isNew {
		st.created[old.ID] = next
		return
	}
	st.mutated[old.ID] = next
}

func (st *execState) freshObjectID() chain.ObjectID {
	id := st.l.deriveObjectID(st.txDigest, st.createdCounter)
	st.createdCounter++
	return id
}

func (st *execState) emit(eventType string, payload []byte) {
	st.events = append(st.events, chain.Event{
		TxDigest: st.txDigest,
		Seq:      uint64(len(st.events)),
		Sender:   st.sender,
		Type:     eventType,
		Payload:  payload,
	})
}

func appendULEB(buf []byte, v uint64) []byte {
	for v >= 0x80 {
		buf = append(buf, byte(v)|0x80)
		v >>= 7
	}
	return append(buf, byte(v))
}

// sortRefs gives effects a deterministic order regardless of staging-map
// iteration order.
func sortRefs(refs []chain.ObjectRef) {
	sort.Slice(refs, func(i, j int) bool {
		if c := bytes.Compare(refs[i].ID[:], refs[j].ID[:]); c != 0 {
			return c < 0
		}
		return refs[i].Version < refs[j].Version
	})
}
