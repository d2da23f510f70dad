package chain

import "fmt"

// ExecutionStatus reports how a committed transaction finished.
type ExecutionStatus int

const (
	// StatusSuccess means every command executed.
	StatusSuccess ExecutionStatus = iota
	// StatusFailure means execution aborted; the transaction is still
	// committed (gas charged, version bumps applied) with partial effects.
	StatusFailure
)

func (s ExecutionStatus) String() string {
	if s == StatusSuccess {
		return "success"
	}
	return "failure"
}

// ExecError describes an error raised during execution of a committed
// transaction. It is not a submission failure: effects exist alongside it.
type ExecError struct {
	// Command is the index of the failing command, or -1 when the failure
	// is not attributable to one command.
	Command int
	Code    string
	Message string
}

func (e *ExecError) Error() string {
	if e.Command >= 0 {
		return fmt.Sprintf("%s in command %d: %s", e.Code, e.Command, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// TransactionEffects is the committed outcome of one transaction.
type TransactionEffects struct {
	TransactionDigest Digest
	Status            ExecutionStatus
	ExecutedEpoch     uint64
	TimestampMs       uint64
	GasUsed           uint64

	Created []ObjectRef
	Mutated []ObjectRef
	Deleted []ObjectRef

	// EventsDigest commits to the ordered events emitted by the
	// transaction; zero when no events were emitted.
	EventsDigest Digest

	// Dependencies are the digests of transactions whose outputs this
	// transaction consumed.
	Dependencies []Digest
}

// Digest commits to everything replicas must agree on after executing a
// transaction: status, gas, epoch, timestamp, every object change with
// its resulting version and content digest, and the emitted events.
// Replay verification compares these, not the transaction digests, which
// are identical by construction on replicas fed the same stream.
func (e *TransactionEffects) Digest() Digest {
	payload := make([]byte, 0, 256)
	payload = append(payload, e.TransactionDigest[:]...)
	payload = appendUint64(payload, uint64(e.Status))
	payload = appendUint64(payload, e.ExecutedEpoch)
	payload = appendUint64(payload, e.TimestampMs)
	payload = appendUint64(payload, e.GasUsed)
	for _, refs := range [][]ObjectRef{e.Created, e.Mutated, e.Deleted} {
		payload = appendUint64(payload, uint64(len(refs)))
		for _, r := range refs {
			payload = append(payload, r.ID[:]...)
			payload = appendUint64(payload, uint64(r.Version))
			payload = append(payload, r.Digest[:]...)
		}
	}
	payload = append(payload, e.EventsDigest[:]...)
	return ComputeDigest(DigestDomainEffects, payload)
}

// Event is one event emitted during transaction execution. Seq orders
// events within their transaction, starting at 0.
type Event struct {
	TxDigest Digest
	Seq      uint64
	Sender   Address
	Type     string
	Payload  []byte
}

// EventsDigest commits to an ordered event list.
func EventsDigest(events []Event) Digest {
	if len(events) == 0 {
		return Digest{}
	}
	payload := make([]byte, 0, len(events)*64)
	for _, ev := range events {
		payload = append(payload, ev.TxDigest[:]...)
		payload = appendUint64(payload, ev.Seq)
		payload = append(payload, ev.Sender[:]...)
		payload = appendUint64(payload, uint64(len(ev.Type)))
		payload = append(payload, ev.Type...)
		payload = appendUint64(payload, uint64(len(ev.Payload)))
		payload = append(payload, ev.Payload...)
	}
	return ComputeDigest(DigestDomainEvents, payload)
}

// DevInspectResults is the outcome of speculative, non-committing
// execution of a transaction kind.
type DevInspectResults struct {
	Effects TransactionEffects
	Events  []Event
	// Error carries the execution error, if execution aborted. The
	// speculative effects are still populated.
	Error *ExecError
	// Results holds the raw return values per command, where execution
	// produced any.
	Results [][][]byte
}
