package merkle

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootEmptyIsSHA256OfEmpty(t *testing.T) {
	root := Root(nil)
	want := sha256.Sum256(nil)
	assert.Equal(t, hex.EncodeToString(want[:]), hex.EncodeToString(root))
}

func sha256Bytes(s string) []byte {
	h := sha256.Sum256([]byte(s))
	return h[:]
}

func marshalForTest(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func TestInclusionProofRoundTrip(t *testing.T) {
	leaves := make([][]byte, 0)
	for _, s := range []string{"A", "B", "C", "D", "E"} {
		leaves = append(leaves, LeafHash([]byte(s)))
	}
	root := Root(leaves)

	for i := range leaves {
		steps, err := GenerateInclusionProof(leaves, i)
		require.NoError(t, err)
		ok := VerifyInclusionProof(leaves[i], steps, root)
		assert.True(t, ok, "leaf %d should verify", i)
	}
}

func TestInclusionProofTamperFails(t *testing.T) {
	leaves := [][]byte{LeafHash([]byte("A")), LeafHash([]byte("B")), LeafHash([]byte("C"))}
	root := Root(leaves)
	steps, err := GenerateInclusionProof(leaves, 1)
	require.NoError(t, err)

	tampered := make([]byte, len(leaves[1]))
	copy(tampered, leaves[1])
	tampered[0] ^= 0xff
	assert.False(t, VerifyInclusionProof(tampered, steps, root))
}

func TestSCITTTwoStatementTreeHash(t *testing.T) {
	// S5: register "A" then "B"; treeHash after B equals
	// node_hash(leaf_hash(sha256("A")), leaf_hash(sha256("B"))).
	aHash := sha256Bytes("A")
	bHash := sha256Bytes("B")
	want := NodeHash(LeafHash(aHash), LeafHash(bHash))
	got := Root([][]byte{LeafHash(aHash), LeafHash(bHash)})
	assert.Equal(t, want, got)
}

func TestChainAppendAndVerify(t *testing.T) {
	sink := NewMemorySink()
	chain, err := NewChain(sink)
	require.NoError(t, err)
	fixedNow := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	chain.WithClock(func() time.Time { return fixedNow })

	_, err = chain.Append("ingest", map[string]interface{}{"a": 1})
	require.NoError(t, err)
	_, err = chain.Append("score", map[string]interface{}{"b": 2})
	require.NoError(t, err)
	_, err = chain.Append("issue", map[string]interface{}{"c": 3})
	require.NoError(t, err)

	result, err := VerifyChain(sink)
	require.NoError(t, err)
	assert.True(t, result.Valid)
	assert.Equal(t, 3, result.RecordCount)
	assert.Nil(t, result.BrokenAt)
}

func TestChainBreakDetected(t *testing.T) {
	// S4: append three records, rewrite record #2's data without
	// recomputing its hash; verify_chain -> {valid:false, recordCount:3,
	// brokenAt:2}.
	sink := NewMemorySink()
	chain, err := NewChain(sink)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := chain.Append("op", map[string]interface{}{"i": i})
		require.NoError(t, err)
	}

	lines, err := sink.ReadAllLines()
	require.NoError(t, err)
	require.Len(t, lines, 3)

	var rec EvidenceRecord
	require.NoError(t, unmarshalRecord(lines[1], &rec))
	rec.Data = map[string]interface{}{"tampered": true}
	tamperedSink := NewMemorySink()
	for i, l := range lines {
		if i == 1 {
			b, _ := marshalForTest(rec)
			require.NoError(t, tamperedSink.AppendLine(b))
			continue
		}
		require.NoError(t, tamperedSink.AppendLine(l))
	}

	result, err := VerifyChain(tamperedSink)
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.Equal(t, 3, result.RecordCount)
	require.NotNil(t, result.BrokenAt)
	assert.Equal(t, 2, *result.BrokenAt)
}

func TestEvidenceReceiptTamperFails(t *testing.T) {
	sink := NewMemorySink()
	chain, err := NewChain(sink)
	require.NoError(t, err)
	for i := 0; i < 4; i++ {
		_, err := chain.Append("op", map[string]interface{}{"i": i})
		require.NoError(t, err)
	}

	receipt, err := BuildEvidenceReceipt(sink, 2, nil)
	require.NoError(t, err)
	assert.True(t, VerifyEvidenceReceipt(receipt, ""))

	tampered := *receipt
	tampered.RecordHash = tampered.RecordHash[:len(tampered.RecordHash)-1] + "0"
	assert.False(t, VerifyEvidenceReceipt(&tampered, ""))
}
