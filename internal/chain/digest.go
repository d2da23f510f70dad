package chain

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// DigestLen is the byte length of all content digests.
const DigestLen = 32

// Digest is a blake2b-256 content digest. The same type digests object
// contents, transactions, staged packages, and checkpoint contents; the
// domain tag passed to ComputeDigest keeps the hash spaces separate.
type Digest [DigestLen]byte

// Domain tags for digest computation. A digest over one domain can never
// collide with a digest over another.
const (
	DigestDomainObject      = "object"
	DigestDomainTransaction = "txn"
	DigestDomainPackage     = "package"
	DigestDomainCheckpoint  = "checkpoint"
	DigestDomainEvents      = "events"
	DigestDomainEffects     = "effects"
)

// ComputeDigest hashes data under a domain tag.
func ComputeDigest(domain string, data []byte) Digest {
	var buf bytes.Buffer
	var lenPrefix [4]byte
	binary.LittleEndian.PutUint32(lenPrefix[:], uint32(len(domain)))
	buf.Write(lenPrefix[:])
	buf.WriteString(domain)
	buf.Write(data)
	return Digest(blake2b.Sum256(buf.Bytes()))
}

func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// Bytes returns the digest as a fresh slice.
func (d Digest) Bytes() []byte {
	out := make([]byte, DigestLen)
	copy(out, d[:])
	return out
}

// IsZero reports whether the digest is the all-zero value.
func (d Digest) IsZero() bool {
	return d == Digest{}
}

// DigestFromBytes builds a Digest from exactly DigestLen bytes.
func DigestFromBytes(b []byte) (Digest, error) {
	var d Digest
	if len(b) != DigestLen {
		return d, fmt.Errorf("digest must be %d bytes, got %d", DigestLen, len(b))
	}
	copy(d[:], b)
	return d, nil
}
