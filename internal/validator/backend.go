// Package validator implements the validator+fullnode execution backend:
// a two-node authority pipeline where the validator orders and executes
// transactions and the fullnode replays them and serves event queries.
//
// This backend deliberately does not support checkpoint creation, clock
// advance, epoch advance, or funds requests; those fail fast with the
// adapter's unsupported signal so a scenario driver can branch on it.
package validator

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/chainscript/internal/adapter"
	"github.com/roach88/chainscript/internal/authority"
	"github.com/roach88/chainscript/internal/chain"
	"github.com/roach88/chainscript/internal/ledger"
)

// Mode is the name this backend reports in unsupported errors.
const Mode = "validator"

// Backend is the validator+fullnode pipeline.
type Backend struct {
	validator *authority.Node
	fullnode  *authority.Node

	// consensusSeq counts shared-object transactions sequenced through
	// the consensus path.
	consensusSeq uint64

	log *slog.Logger
}

var _ adapter.Backend = (*Backend)(nil)

// New creates both nodes from the same genesis, so replayed execution on
// the fullnode stays byte-identical with the validator.
func New(genesis ledger.Genesis, log *slog.Logger) (*Backend, error) {
	if log == nil {
		log = slog.Default()
	}
	v, err := authority.NewNode("validator", genesis, false, log)
	if err != nil {
		return nil, err
	}
	f, err := authority.NewNode("fullnode", genesis, true, log)
	if err != nil {
		v.Close()
		return nil, err
	}
	return &Backend{validator: v, fullnode: f, log: log}, nil
}

// Close releases both nodes.
func (b *Backend) Close() error {
	verr := b.validator.Close()
	ferr := b.fullnode.Close()
	if verr != nil {
		return verr
	}
	return ferr
}

// Validator exposes the validator node for test seeding. Seeded state
// must be mirrored on the fullnode to keep the pipeline consistent.
func (b *Backend) Validator() *authority.Node { return b.validator }

// Fullnode exposes the fullnode.
func (b *Backend) Fullnode() *authority.Node { return b.fullnode }

// ExecuteTransaction routes a transaction through the pipeline. Owned-only
// transactions take the fast path; transactions touching a shared object
// are sequenced through the consensus path first. Either way the fullnode
// replays the certified transaction, and a divergence between the two
// nodes' effects is a backend error.
func (b *Backend) ExecuteTransaction(txn *chain.Transaction) (*chain.TransactionEffects, *chain.ExecError, error) {
	withShared := txn.Kind.ContainsSharedObject()
	if withShared {
		b.consensusSeq++
		b.log.Debug("consensus path", "seq", b.consensusSeq)
	} else {
		b.log.Debug("fast path")
	}

	effects, execErr, err := b.validator.ExecuteCertified(txn)
	if err != nil {
		return nil, nil, err
	}
	replayed, _, err := b.fullnode.ExecuteCertified(txn)
	if err != nil {
		return nil, nil, fmt.Errorf("fullnode replay: %w", err)
	}
	if replayed.Digest() != effects.Digest() {
		return nil, nil, fmt.Errorf(
			"fork: validator and fullnode diverged on %s", effects.TransactionDigest)
	}
	return effects, execErr, nil
}

// DevInspect runs speculative execution on the fullnode.
func (b *Backend) DevInspect(sender chain.Address, kind chain.TransactionKind, gasPrice *uint64) (*chain.DevInspectResults, error) {
	return b.fullnode.DevInspect(sender, kind, gasPrice)
}

// QueryEventsAsc serves event queries from the fullnode's index. Query
// failures degrade to an empty result rather than failing the scenario.
func (b *Backend) QueryEventsAsc(txDigest chain.Digest, limit int) ([]chain.Event, error) {
	events, err := b.fullnode.QueryEventsAsc(txDigest, limit)
	if err != nil {
		b.log.Debug("event query failed, returning empty", "error", err)
		return []chain.Event{}, nil
	}
	return events, nil
}

// CreateCheckpoint is not supported in validator mode.
func (b *Backend) CreateCheckpoint() (*chain.VerifiedCheckpoint, error) {
	return nil, adapter.Unsupported("create-checkpoint", Mode)
}

// AdvanceClock is not supported in validator mode.
func (b *Backend) AdvanceClock(time.Duration) (*chain.TransactionEffects, error) {
	return nil, adapter.Unsupported("advance-clock", Mode)
}

// AdvanceEpoch is not supported in validator mode.
func (b *Backend) AdvanceEpoch() error {
	return adapter.Unsupported("advance-epoch", Mode)
}

// RequestFunds is not supported in validator mode.
func (b *Backend) RequestFunds(chain.Address, uint64) (*chain.TransactionEffects, error) {
	return nil, adapter.Unsupported("request-funds", Mode)
}

// GetObject reads from the validator's store.
func (b *Backend) GetObject(id chain.ObjectID) (*chain.Object, error) {
	return b.validator.GetObject(id)
}

// GetObjectAt reads one exact version from the validator's store.
func (b *Backend) GetObjectAt(id chain.ObjectID, v chain.Version) (*chain.Object, error) {
	return b.validator.GetObjectAt(id, v)
}
