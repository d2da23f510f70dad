// Package adapter defines the execution-backend capability contract every
// backend must satisfy, and the branded "unsupported" failure mode callers
// branch on.
//
// A backend is bound to exactly one scenario for the scenario's lifetime,
// and commands execute strictly one at a time, so implementations may
// assume single-threaded use. Every operation is synchronous to
// completion; there is no cancellation at this layer.
package adapter

import (
	"errors"
	"fmt"
	"time"

	"github.com/roach88/chainscript/internal/chain"
)

// Adapter is the capability set a scenario drives its chain through. All
// chain mutation flows through these operations; the scenario layer never
// touches backend state directly.
//
// Backends that cannot support a capability still implement the method and
// return an *UnsupportedError, so callers link against the full surface
// and only fail at call time.
type Adapter interface {
	// ExecuteTransaction submits a fully-formed transaction. A non-nil
	// ExecError means the transaction was still committed, with effects
	// reflecting partial or aborted execution; it is never conflated with
	// the error return, which reports a failure to submit or commit.
	ExecuteTransaction(txn *chain.Transaction) (*chain.TransactionEffects, *chain.ExecError, error)

	// CreateCheckpoint force-closes the current checkpoint and returns it
	// verified.
	CreateCheckpoint() (*chain.VerifiedCheckpoint, error)

	// AdvanceClock moves logical time forward and returns the effects of
	// the clock-advancing system transaction.
	AdvanceClock(duration time.Duration) (*chain.TransactionEffects, error)

	// AdvanceEpoch forces an epoch transition.
	AdvanceEpoch() error

	// RequestFunds credits an address via a faucet system transaction and
	// returns its effects.
	RequestFunds(recipient chain.Address, amount uint64) (*chain.TransactionEffects, error)

	// DevInspect executes a transaction kind speculatively, without
	// committing anything.
	DevInspect(sender chain.Address, kind chain.TransactionKind, gasPrice *uint64) (*chain.DevInspectResults, error)

	// QueryEventsAsc returns up to limit events for a transaction digest,
	// oldest first. An unknown digest yields an empty slice, not an error.
	QueryEventsAsc(txDigest chain.Digest, limit int) ([]chain.Event, error)
}

// ObjectStore is the read surface scenario state fronts: latest-version
// and exact-version object reads. Both backends provide it alongside the
// capability set; an exact-version miss is a miss, never a fallback.
type ObjectStore interface {
	GetObject(id chain.ObjectID) (*chain.Object, error)
	GetObjectAt(id chain.ObjectID, v chain.Version) (*chain.Object, error)
}

// Backend is the full surface a scenario binds to: the capability set
// plus object reads.
type Backend interface {
	Adapter
	ObjectStore
}

// UnsupportedError marks a capability a backend deliberately does not
// provide. It is an expected failure mode, distinct from backend errors: a
// driver may skip or assert on it, and it is never retried.
type UnsupportedError struct {
	Op   string // the capability, e.g. "create-checkpoint"
	Mode string // the backend mode, e.g. "validator"
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("%s not supported in %s mode", e.Op, e.Mode)
}

// Unsupported constructs an UnsupportedError.
func Unsupported(op, mode string) *UnsupportedError {
	return &UnsupportedError{Op: op, Mode: mode}
}

// IsUnsupported reports whether err marks an unsupported capability,
// unwrapping as needed.
func IsUnsupported(err error) bool {
	var ue *UnsupportedError
	return errors.As(err, &ue)
}
