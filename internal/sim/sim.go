// Package sim implements the simulator execution backend: a deterministic
// single-process chain where every adapter capability is natively
// supported, because the backend directly owns the simulated ledger.
package sim

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/chainscript/internal/adapter"
	"github.com/roach88/chainscript/internal/chain"
	"github.com/roach88/chainscript/internal/eventstore"
	"github.com/roach88/chainscript/internal/ledger"
)

// Backend is the simulator. It satisfies adapter.Backend with no
// unsupported capabilities.
type Backend struct {
	ledger *ledger.Ledger
	events *eventstore.Store
	log    *slog.Logger
}

var _ adapter.Backend = (*Backend)(nil)

// New creates a simulator over a fresh ledger and an in-memory event
// index. Each scenario gets its own backend.
func New(genesis ledger.Genesis, log *slog.Logger) (*Backend, error) {
	if log == nil {
		log = slog.Default()
	}
	events, err := eventstore.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("open event index: %w", err)
	}
	return &Backend{
		ledger: ledger.New(genesis, log),
		events: events,
		log:    log,
	}, nil
}

// Close releases the event index.
func (b *Backend) Close() error {
	return b.events.Close()
}

// Ledger exposes the underlying ledger for test seeding.
func (b *Backend) Ledger() *ledger.Ledger {
	return b.ledger
}

// ExecuteTransaction commits a transaction against the local ledger. A
// non-nil ExecError means the transaction committed with an abort.
func (b *Backend) ExecuteTransaction(txn *chain.Transaction) (*chain.TransactionEffects, *chain.ExecError, error) {
	effects, events, execErr, err := b.ledger.Execute(txn)
	if err != nil {
		return nil, nil, err
	}
	if err := b.events.Append(events); err != nil {
		return nil, nil, fmt.Errorf("index events: %w", err)
	}
	b.log.Debug("transaction executed",
		"digest", effects.TransactionDigest.String(),
		"status", effects.Status.String(),
		"events", len(events))
	return effects, execErr, nil
}

// CreateCheckpoint force-closes and records the current checkpoint.
func (b *Backend) CreateCheckpoint() (*chain.VerifiedCheckpoint, error) {
	ckpt, err := b.ledger.CreateCheckpoint()
	if err != nil {
		return nil, err
	}
	if err := b.events.RecordCheckpoint(ckpt); err != nil {
		return nil, err
	}
	return ckpt, nil
}

// LatestCheckpoint returns the most recent checkpoint, or nil before the
// first one closes.
func (b *Backend) LatestCheckpoint() *chain.VerifiedCheckpoint {
	return b.ledger.LatestCheckpoint()
}

// AdvanceClock moves simulated time forward.
func (b *Backend) AdvanceClock(duration time.Duration) (*chain.TransactionEffects, error) {
	return b.ledger.AdvanceClock(duration)
}

// AdvanceEpoch closes the epoch. The sealing checkpoint is recorded;
// historical events stay queryable.
func (b *Backend) AdvanceEpoch() error {
	ckpt, err := b.ledger.AdvanceEpoch()
	if err != nil {
		return err
	}
	return b.events.RecordCheckpoint(ckpt)
}

// RequestFunds credits an address from the faucet.
func (b *Backend) RequestFunds(recipient chain.Address, amount uint64) (*chain.TransactionEffects, error) {
	effects, err := b.ledger.RequestFunds(recipient, amount)
	if err != nil {
		return nil, err
	}
	if err := b.events.Append(b.ledger.Events(effects.TransactionDigest)); err != nil {
		return nil, fmt.Errorf("index faucet events: %w", err)
	}
	return effects, nil
}

// DevInspect executes a kind against a discarded ledger snapshot.
func (b *Backend) DevInspect(sender chain.Address, kind chain.TransactionKind, gasPrice *uint64) (*chain.DevInspectResults, error) {
	return b.ledger.DevInspect(sender, kind, gasPrice)
}

// QueryEventsAsc reads the local event index, oldest first. Unknown
// digests yield an empty slice.
func (b *Backend) QueryEventsAsc(txDigest chain.Digest, limit int) ([]chain.Event, error) {
	return b.events.QueryByTxAsc(txDigest, limit)
}

// GetObject returns the latest live version of an object.
func (b *Backend) GetObject(id chain.ObjectID) (*chain.Object, error) {
	return b.ledger.GetObject(id)
}

// GetObjectAt returns one exact object version.
func (b *Backend) GetObjectAt(id chain.ObjectID, v chain.Version) (*chain.Object, error) {
	return b.ledger.GetObjectAt(id, v)
}
