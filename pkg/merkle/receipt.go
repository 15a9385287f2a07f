package merkle

import (
	"encoding/hex"
	"encoding/json"
)

// EvidenceReceiptVersion is the fixed version tag of an evidence receipt.
const EvidenceReceiptVersion = "CorsairEvidenceReceipt v1.0"

// ChainDescriptor describes the hash-linked evidence chain a receipt is
// drawn from.
type ChainDescriptor struct {
	ChainType        string `json:"chainType"`
	Algorithm        string `json:"algorithm"`
	Canonicalization string `json:"canonicalization"`
	RecordCount      int    `json:"recordCount"`
	ChainVerified    bool   `json:"chainVerified"`
	ChainDigest      string `json:"chainDigest"`
}

// EvidenceReceiptProofStep is the JSON-friendly form of a ProofStep.
type EvidenceReceiptProofStep struct {
	Hash      string    `json:"hash"`
	Direction Direction `json:"direction"`
}

// EvidenceReceipt is the receipt emitted for a chosen evidence-chain record
// index (spec.md §4.3).
type EvidenceReceipt struct {
	Version   string                     `json:"version"`
	RecordHash string                    `json:"recordHash"`
	Chain     ChainDescriptor            `json:"chain"`
	Proof     []EvidenceReceiptProofStep `json:"proof"`
	Meta      map[string]interface{}     `json:"meta,omitempty"`
}

// BuildEvidenceReceipt emits the receipt for the record at index recordIdx
// within sink's chain.
func BuildEvidenceReceipt(sink Sink, recordIdx int, meta map[string]interface{}) (*EvidenceReceipt, error) {
	lines, err := sink.ReadAllLines()
	if err != nil {
		return nil, err
	}

	verifyResult, err := VerifyChain(sink)
	if err != nil {
		return nil, err
	}

	leaves := make([][]byte, len(lines))
	var recs []EvidenceRecord
	for i, line := range lines {
		var rec EvidenceRecord
		if err := unmarshalRecord(line, &rec); err != nil {
			return nil, err
		}
		recs = append(recs, rec)
		leaves[i] = LeafHash([]byte(rec.Hash))
	}
	if recordIdx < 0 || recordIdx >= len(recs) {
		return nil, errIndexOutOfRange
	}

	steps, err := GenerateInclusionProof(leaves, recordIdx)
	if err != nil {
		return nil, err
	}
	digest, _, err := ChainDigest(sink)
	if err != nil {
		return nil, err
	}

	jsonSteps := make([]EvidenceReceiptProofStep, len(steps))
	for i, s := range steps {
		jsonSteps[i] = EvidenceReceiptProofStep{Hash: hex.EncodeToString(s.Hash), Direction: s.Direction}
	}

	return &EvidenceReceipt{
		Version:    EvidenceReceiptVersion,
		RecordHash: recs[recordIdx].Hash,
		Chain: ChainDescriptor{
			ChainType:        "hash-linked",
			Algorithm:        "sha256",
			Canonicalization: "sorted-json-v1",
			RecordCount:      verifyResult.RecordCount,
			ChainVerified:    verifyResult.Valid,
			ChainDigest:      hex.EncodeToString(digest),
		},
		Proof: jsonSteps,
		Meta:  meta,
	}, nil
}

// VerifyEvidenceReceipt checks algorithm tags, the chainVerified flag, an
// optional expected chain digest, and the inclusion proof itself. Flipping
// any bit in proof, recordHash, or chainDigest makes this return false
// (spec.md §8 property 9).
func VerifyEvidenceReceipt(r *EvidenceReceipt, expectedChainDigest string) bool {
	if r == nil {
		return false
	}
	if r.Chain.Algorithm != "sha256" || r.Chain.Canonicalization != "sorted-json-v1" {
		return false
	}
	if !r.Chain.ChainVerified {
		return false
	}
	if expectedChainDigest != "" && expectedChainDigest != r.Chain.ChainDigest {
		return false
	}

	leafHash := LeafHash([]byte(r.RecordHash))
	root, err := hex.DecodeString(r.Chain.ChainDigest)
	// ChainDigest on the descriptor is the whole-chain digest (root over
	// leaf_hash(record.hash)), which is exactly the value the inclusion
	// proof must resolve to, since the leaves proved over are also
	// leaf_hash(record.hash) values.
	if err != nil {
		return false
	}

	steps := make([]ProofStep, len(r.Proof))
	for i, s := range r.Proof {
		h, err := hex.DecodeString(s.Hash)
		if err != nil {
			return false
		}
		steps[i] = ProofStep{Hash: h, Direction: s.Direction}
	}

	return VerifyInclusionProof(leafHash, steps, root)
}

func unmarshalRecord(line []byte, rec *EvidenceRecord) error {
	return json.Unmarshal(line, rec)
}
