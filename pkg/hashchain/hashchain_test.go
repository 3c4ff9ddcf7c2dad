package hashchain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEntry struct {
	payload string
	nonce   string
	prev    string
	digest  string
}

func (e *fakeEntry) CanonicalPayload() string { return e.payload }
func (e *fakeEntry) EntryNonce() string       { return e.nonce }
func (e *fakeEntry) PreviousDigest() string   { return e.prev }
func (e *fakeEntry) Digest() string           { return e.digest }

func buildChain(t *testing.T, payloads ...string) []Entry {
	t.Helper()
	entries := make([]Entry, 0, len(payloads))
	prev := Genesis
	for _, payload := range payloads {
		nonce, err := NewNonce()
		require.NoError(t, err)
		e := &fakeEntry{payload: payload, nonce: nonce, prev: prev}
		e.digest = ComputeDigest(e.payload, e.prev, e.nonce)
		entries = append(entries, e)
		prev = e.digest
	}
	return entries
}

func TestNewNonce(t *testing.T) {
	a, err := NewNonce()
	require.NoError(t, err)
	assert.Len(t, a, NonceSize*2)

	b, err := NewNonce()
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestComputeDigestIsDeterministic(t *testing.T) {
	d1 := ComputeDigest("payload", Genesis, "nonce")
	d2 := ComputeDigest("payload", Genesis, "nonce")
	assert.Equal(t, d1, d2)
	assert.Len(t, d1, 64)

	assert.NotEqual(t, d1, ComputeDigest("payload2", Genesis, "nonce"))
	assert.NotEqual(t, d1, ComputeDigest("payload", "other", "nonce"))
	assert.NotEqual(t, d1, ComputeDigest("payload", Genesis, "nonce2"))
}

func TestVerifyEmptyChain(t *testing.T) {
	assert.NoError(t, Verify(nil))
}

func TestVerifyIntactChain(t *testing.T) {
	entries := buildChain(t, "deposit 100", "withdrawal 40", "deposit 7")
	assert.NoError(t, Verify(entries))
}

func TestVerifyDetectsTamperedPayload(t *testing.T) {
	entries := buildChain(t, "deposit 100", "withdrawal 40", "deposit 7")
	entries[1].(*fakeEntry).payload = "withdrawal 4000"

	err := Verify(entries)
	require.Error(t, err)

	var broken *BrokenChainError
	require.ErrorAs(t, err, &broken)
	assert.Equal(t, 1, broken.Index)
	assert.Contains(t, broken.Reason, "digest")
}

func TestVerifyDetectsBrokenLinkage(t *testing.T) {
	entries := buildChain(t, "a", "b", "c")
	entries[2].(*fakeEntry).prev = "0000"

	var broken *BrokenChainError
	require.ErrorAs(t, Verify(entries), &broken)
	assert.Equal(t, 2, broken.Index)
}

func TestVerifyRequiresGenesisFirst(t *testing.T) {
	entries := buildChain(t, "a")
	entries[0].(*fakeEntry).prev = "not-genesis"
	entries[0].(*fakeEntry).digest = ComputeDigest("a", "not-genesis", entries[0].EntryNonce())

	var broken *BrokenChainError
	require.ErrorAs(t, Verify(entries), &broken)
	assert.Equal(t, 0, broken.Index)
}
