package hashchain

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// Genesis is the sentinel previous-digest for the first entry of a chain.
const Genesis = "GENESIS"

// NonceSize is the length in bytes of the per-entry random nonce. The nonce
// prevents payload-guessing against low-entropy entries.
const NonceSize = 16

// Entry is the minimal view of a chained record that verification needs.
type Entry interface {
	// CanonicalPayload returns an order-stable serialization of the fields
	// covered by the digest. It must not include the hash or nonce.
	CanonicalPayload() string
	EntryNonce() string
	PreviousDigest() string
	Digest() string
}

// NewNonce returns a fresh random nonce, hex-encoded.
func NewNonce() (string, error) {
	buf := make([]byte, NonceSize)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// ComputeDigest hashes a canonical payload together with the previous digest
// and the entry nonce. It is a pure function: the same inputs always produce
// the same digest.
func ComputeDigest(canonicalPayload, previousDigest, nonce string) string {
	input := strings.Join([]string{previousDigest, nonce, canonicalPayload}, "|")
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])
}

// BrokenChainError reports the first entry whose linkage or digest does not
// verify. It is never repaired automatically.
type BrokenChainError struct {
	Index  int
	Reason string
}

func (e *BrokenChainError) Error() string {
	return fmt.Sprintf("hash chain broken at entry %d: %s", e.Index, e.Reason)
}

// Verify walks a chain once. For every entry it recomputes the digest from
// the stored fields, and for every entry after the first it checks that
// PreviousDigest matches the prior entry's digest. The first entry must link
// to Genesis. Returns nil for an empty or intact chain.
func Verify(entries []Entry) error {
	for i, e := range entries {
		want := Genesis
		if i > 0 {
			want = entries[i-1].Digest()
		}
		if e.PreviousDigest() != want {
			return &BrokenChainError{Index: i, Reason: "previous digest does not match prior entry"}
		}
		if ComputeDigest(e.CanonicalPayload(), e.PreviousDigest(), e.EntryNonce()) != e.Digest() {
			return &BrokenChainError{Index: i, Reason: "stored digest does not match recomputation"}
		}
	}
	return nil
}
