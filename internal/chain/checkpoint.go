package chain

import "fmt"

// Checkpoint is a closed batch of committed transactions. Checkpoints form
// a hash chain via PreviousDigest.
type Checkpoint struct {
	SequenceNumber uint64
	Epoch          uint64
	TimestampMs    uint64
	Transactions   []Digest
	PreviousDigest Digest // zero for the genesis checkpoint
}

// ContentDigest commits to the checkpoint's position, epoch, transaction
// list, and predecessor.
func (c *Checkpoint) ContentDigest() Digest {
	payload := appendUint64(nil, c.SequenceNumber)
	payload = appendUint64(payload, c.Epoch)
	payload = appendUint64(payload, c.TimestampMs)
	payload = appendUint64(payload, uint64(len(c.Transactions)))
	for _, d := range c.Transactions {
		payload = append(payload, d[:]...)
	}
	payload = append(payload, c.PreviousDigest[:]...)
	return ComputeDigest(DigestDomainCheckpoint, payload)
}

// VerifiedCheckpoint is a checkpoint whose digest chain was checked against
// its predecessor. Construct it with VerifyCheckpoint; the zero value is
// not verified.
type VerifiedCheckpoint struct {
	Checkpoint
	digest Digest
}

// Digest returns the verified content digest.
func (v *VerifiedCheckpoint) Digest() Digest {
	return v.digest
}

// VerifyCheckpoint checks c against the previous verified checkpoint (nil
// for genesis) and returns the verified wrapper.
func VerifyCheckpoint(c Checkpoint, prev *VerifiedCheckpoint) (VerifiedCheckpoint, error) {
	if prev == nil {
		if c.SequenceNumber != 0 {
			return VerifiedCheckpoint{}, fmt.Errorf("checkpoint %d has no predecessor", c.SequenceNumber)
		}
		if !c.PreviousDigest.IsZero() {
			return VerifiedCheckpoint{}, fmt.Errorf("genesis checkpoint carries a previous digest")
		}
	} else {
		if c.SequenceNumber != prev.SequenceNumber+1 {
			return VerifiedCheckpoint{}, fmt.Errorf(
				"checkpoint sequence gap: %d follows %d", c.SequenceNumber, prev.SequenceNumber)
		}
		if c.PreviousDigest != prev.Digest() {
			return VerifiedCheckpoint{}, fmt.Errorf(
				"checkpoint %d previous digest mismatch", c.SequenceNumber)
		}
		if c.Epoch < prev.Epoch {
			return VerifiedCheckpoint{}, fmt.Errorf(
				"checkpoint %d epoch %d regresses from %d", c.SequenceNumber, c.Epoch, prev.Epoch)
		}
	}
	return VerifiedCheckpoint{Checkpoint: c, digest: c.ContentDigest()}, nil
}
