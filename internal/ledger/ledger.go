// Package ledger implements the deterministic single-process ledger state
// machine shared by both execution backends: a versioned object store,
// balances, a logical clock, epochs, an event log, checkpoint building,
// and the transaction executor.
//
// A Ledger is single-writer: the owning backend serializes all calls. All
// randomness is drawn from a seeded source, so two ledgers constructed
// from the same genesis and fed the same transactions produce identical
// digests, object IDs, and checkpoints.
package ledger

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/chainscript/internal/chain"
)

// ClockObjectID is the well-known shared clock object, created at genesis.
var ClockObjectID = chain.ObjectID{31: 0x06}

// Genesis configures a fresh ledger.
type Genesis struct {
	// Accounts are funded at genesis: each receives one coin object of
	// InitialFunding.
	Accounts        []chain.Address
	InitialFunding  uint64
	ProtocolVersion uint64
	// StartTimestampMs seeds the logical clock.
	StartTimestampMs uint64
}

// Ledger is the deterministic chain state machine.
type Ledger struct {
	store    *objectStore
	epoch    uint64
	tsMs     uint64
	protocol uint64

	balances map[chain.Address]uint64

	// events holds every emitted event, keyed by transaction digest, in
	// emission order. Epoch transitions never touch it.
	events map[chain.Digest][]chain.Event

	// pending accumulates committed transaction digests for the next
	// checkpoint.
	pending     []chain.Digest
	prevCkpt    *chain.VerifiedCheckpoint
	nextCkptSeq uint64

	// txCounter sequences committed transactions into their digests. It
	// advances only in commit, never on a rejected submission.
	txCounter uint64

	log *slog.Logger
}

// New creates a ledger from genesis: the shared clock object exists, and
// every genesis account holds one funded coin.
func New(g Genesis, log *slog.Logger) *Ledger {
	if log == nil {
		log = slog.Default()
	}
	l := &Ledger{
		store:    newObjectStore(),
		tsMs:     g.StartTimestampMs,
		protocol: g.ProtocolVersion,
		balances: make(map[chain.Address]uint64),
		events:   make(map[chain.Digest][]chain.Event),
		log:      log,
	}
	clock := &chain.Object{
		ID:       ClockObjectID,
		Version:  1,
		Owner:    chain.SharedAt(1),
		Contents: encodeUint64(g.StartTimestampMs),
		TypeTag:  "clock",
	}
	l.store.put(clock)
	for i, account := range g.Accounts {
		if g.InitialFunding == 0 {
			break
		}
		id := l.deriveObjectID(chain.ComputeDigest("genesis", account[:]), uint64(i))
		l.store.put(newCoin(id, account, g.InitialFunding))
		l.balances[account] += g.InitialFunding
	}
	return l
}

// Epoch returns the current epoch.
func (l *Ledger) Epoch() uint64 { return l.epoch }

// TimestampMs returns the logical clock in milliseconds.
func (l *Ledger) TimestampMs() uint64 { return l.tsMs }

// GetObject returns the latest live version of an object, or nil.
func (l *Ledger) GetObject(id chain.ObjectID) (*chain.Object, error) {
	return l.store.getLatest(id), nil
}

// GetObjectAt returns one exact object version, or nil. Never falls back
// to latest on a miss.
func (l *Ledger) GetObjectAt(id chain.ObjectID, v chain.Version) (*chain.Object, error) {
	return l.store.getAt(id, v), nil
}

// SeedObject commits an object version directly, bypassing execution. Used
// for genesis-style seeding in scenarios and tests.
func (l *Ledger) SeedObject(obj *chain.Object) {
	l.store.put(obj)
}

// Events returns the events of a transaction in emission order, or nil.
func (l *Ledger) Events(txDigest chain.Digest) []chain.Event {
	return l.events[txDigest]
}

// CreateCheckpoint force-closes the current checkpoint over every
// transaction committed since the previous one, links it into the digest
// chain, and returns it verified.
func (l *Ledger) CreateCheckpoint() (*chain.VerifiedCheckpoint, error) {
	ckpt := chain.Checkpoint{
		SequenceNumber: l.nextCkptSeq,
		Epoch:          l.epoch,
		TimestampMs:    l.tsMs,
		Transactions:   append([]chain.Digest(nil), l.pending...),
	}
	if l.prevCkpt != nil {
		ckpt.PreviousDigest = l.prevCkpt.Digest()
	}
	verified, err := chain.VerifyCheckpoint(ckpt, l.prevCkpt)
	if err != nil {
		return nil, fmt.Errorf("checkpoint %d failed verification: %w", ckpt.SequenceNumber, err)
	}
	l.prevCkpt = &verified
	l.nextCkptSeq++
	l.pending = nil
	l.log.Debug("checkpoint created",
		"seq", verified.SequenceNumber, "epoch", verified.Epoch,
		"transactions", len(verified.Transactions))
	return &verified, nil
}

// LatestCheckpoint returns the most recent verified checkpoint, or nil.
func (l *Ledger) LatestCheckpoint() *chain.VerifiedCheckpoint {
	return l.prevCkpt
}

// AdvanceClock executes the clock-advancing system transaction and returns
// its effects.
func (l *Ledger) AdvanceClock(duration time.Duration) (*chain.TransactionEffects, error) {
	txn := &chain.Transaction{
		Kind: chain.TransactionKind{
			Tag:          chain.KindClockUpdate,
			ClockDeltaNs: uint64(duration.Nanoseconds()),
		},
	}
	effects, _, execErr, err := l.Execute(txn)
	if err != nil {
		return nil, err
	}
	if execErr != nil {
		return nil, fmt.Errorf("clock update aborted: %w", execErr)
	}
	return effects, nil
}

// AdvanceEpoch closes the current epoch: it executes the epoch-change
// system transaction and seals the epoch with a checkpoint, which is
// returned. Historical events and checkpoints are preserved.
func (l *Ledger) AdvanceEpoch() (*chain.VerifiedCheckpoint, error) {
	txn := &chain.Transaction{
		Kind: chain.TransactionKind{Tag: chain.KindEpochChange},
	}
	if _, _, execErr, err := l.Execute(txn); err != nil {
		return nil, err
	} else if execErr != nil {
		return nil, fmt.Errorf("epoch change aborted: %w", execErr)
	}
	return l.CreateCheckpoint()
}

// RequestFunds executes a faucet system transaction crediting recipient.
func (l *Ledger) RequestFunds(recipient chain.Address, amount uint64) (*chain.TransactionEffects, error) {
	txn := &chain.Transaction{
		Kind: chain.TransactionKind{Tag: chain.KindFaucet},
	}
	txn.Kind.Faucet.Recipient = recipient
	txn.Kind.Faucet.Amount = amount
	effects, _, execErr, err := l.Execute(txn)
	if err != nil {
		return nil, err
	}
	if execErr != nil {
		return nil, fmt.Errorf("faucet transaction aborted: %w", execErr)
	}
	return effects, nil
}

// DevInspect executes a transaction kind against a snapshot of the ledger
// and discards the snapshot: the caller observes simulated effects and
// events, and the ledger itself never changes.
func (l *Ledger) DevInspect(sender chain.Address, kind chain.TransactionKind, gasPrice *uint64) (*chain.DevInspectResults, error) {
	price := uint64(1)
	if gasPrice != nil {
		price = *gasPrice
	}
	txn := &chain.Transaction{
		Sender:    sender,
		GasBudget: devInspectGasBudget,
		GasPrice:  price,
		Kind:      kind,
	}
	snap := l.Snapshot()
	effects, events, execErr, err := snap.Execute(txn)
	if err != nil {
		return nil, err
	}
	return &chain.DevInspectResults{
		Effects: *effects,
		Events:  events,
		Error:   execErr,
	}, nil
}

// devInspectGasBudget is the synthetic budget speculative execution runs
// under; nothing is charged.
const devInspectGasBudget = 1_000_000

// Snapshot deep-copies the ledger for speculative execution. The snapshot
// shares committed object values (immutable) but no mutable bookkeeping.
func (l *Ledger) Snapshot() *Ledger {
	c := &Ledger{
		store:       l.store.clone(),
		epoch:       l.epoch,
		tsMs:        l.tsMs,
		protocol:    l.protocol,
		balances:    make(map[chain.Address]uint64, len(l.balances)),
		events:      make(map[chain.Digest][]chain.Event, len(l.events)),
		pending:     append([]chain.Digest(nil), l.pending...),
		prevCkpt:    l.prevCkpt,
		nextCkptSeq: l.nextCkptSeq,
		txCounter:   l.txCounter,
		log:         l.log,
	}
	for a, b := range l.balances {
		c.balances[a] = b
	}
	for d, evs := range l.events {
		c.events[d] = append([]chain.Event(nil), evs...)
	}
	return c
}

// deriveObjectID derives a fresh object identity from the creating
// transaction's digest and a creation counter. Deterministic by
// construction.
func (l *Ledger) deriveObjectID(txDigest chain.Digest, counter uint64) chain.ObjectID {
	payload := append(txDigest.Bytes(), encodeUint64(counter)...)
	d := chain.ComputeDigest("object-id", payload)
	return chain.ObjectID(d)
}

func newCoin(id chain.ObjectID, owner chain.Address, amount uint64) *chain.Object {
	return &chain.Object{
		ID:       id,
		Version:  1,
		Owner:    chain.OwnedBy(owner),
		Contents: encodeUint64(amount),
		TypeTag:  "coin",
	}
}

// CoinValue reads a coin object's balance.
func CoinValue(obj *chain.Object) uint64 {
	if len(obj.Contents) < 8 {
		return 0
	}
	return decodeUint64(obj.Contents)
}

func encodeUint64(v uint64) []byte {
	return []byte{
		byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24),
		byte(v >> 32), byte(v >> 40), byte(v >> 48), byte(v >> 56),
	}
}

func decodeUint64(b []byte) uint64 {
	return uint64(b[0]) | uint64(b[1])<<8 | uint64(b[2])<<16 | uint64(b[3])<<24 |
		uint64(b[4])<<32 | uint64(b[5])<<40 | uint64(b[6])<<48 | uint64(b[7])<<56
}
