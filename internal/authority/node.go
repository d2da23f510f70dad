// Package authority implements a single authority node: a ledger plus an
// optional event index, executing certified transactions. The validator
// backend composes two of these — a validator that orders and executes,
// and a fullnode that replays certified transactions and serves reads.
package authority

import (
	"fmt"
	"log/slog"

	"github.com/roach88/chainscript/internal/chain"
	"github.com/roach88/chainscript/internal/eventstore"
	"github.com/roach88/chainscript/internal/ledger"
)

// Node is one authority. Nodes built from the same genesis and fed the
// same transaction stream stay byte-identical; the validator backend
// relies on that to detect divergence between its two nodes.
type Node struct {
	name   string
	ledger *ledger.Ledger
	events *eventstore.Store // nil when the node keeps no event index
	log    *slog.Logger
}

// NewNode creates an authority from genesis. withEventIndex attaches an
// in-memory event index; only fullnodes serve event queries.
func NewNode(name string, genesis ledger.Genesis, withEventIndex bool, log *slog.Logger) (*Node, error) {
	if log == nil {
		log = slog.Default()
	}
	n := &Node{
		name:   name,
		ledger: ledger.New(genesis, log),
		log:    log,
	}
	if withEventIndex {
		events, err := eventstore.Open(":memory:")
		if err != nil {
			return nil, fmt.Errorf("%s: open event index: %w", name, err)
		}
		n.events = events
	}
	return n, nil
}

// Close releases the event index, if any.
func (n *Node) Close() error {
	if n.events == nil {
		return nil
	}
	return n.events.Close()
}

// Name returns the node's role name.
func (n *Node) Name() string { return n.name }

// Ledger exposes the node's ledger for seeding in tests.
func (n *Node) Ledger() *ledger.Ledger { return n.ledger }

// ExecuteCertified applies a certified transaction to the node's ledger
// and indexes its events if the node keeps an index. The ExecError, when
// non-nil, accompanies committed effects.
func (n *Node) ExecuteCertified(txn *chain.Transaction) (*chain.TransactionEffects, *chain.ExecError, error) {
	effects, events, execErr, err := n.ledger.Execute(txn)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", n.name, err)
	}
	if n.events != nil {
		if err := n.events.Append(events); err != nil {
			return nil, nil, fmt.Errorf("%s: index events: %w", n.name, err)
		}
	}
	return effects, execErr, nil
}

// DevInspect speculatively executes a kind against the node's state.
func (n *Node) DevInspect(sender chain.Address, kind chain.TransactionKind, gasPrice *uint64) (*chain.DevInspectResults, error) {
	return n.ledger.DevInspect(sender, kind, gasPrice)
}

// QueryEventsAsc serves an event query from the node's index. Nodes
// without an index report that as an error; the unknown-digest case is an
// empty result, not an error.
func (n *Node) QueryEventsAsc(txDigest chain.Digest, limit int) ([]chain.Event, error) {
	if n.events == nil {
		return nil, fmt.Errorf("%s keeps no event index", n.name)
	}
	return n.events.QueryByTxAsc(txDigest, limit)
}

// GetObject returns the latest live version of an object.
func (n *Node) GetObject(id chain.ObjectID) (*chain.Object, error) {
	return n.ledger.GetObject(id)
}

// GetObjectAt returns one exact object version.
func (n *Node) GetObjectAt(id chain.ObjectID, v chain.Version) (*chain.Object, error) {
	return n.ledger.GetObjectAt(id, v)
}
