package cpoe

import (
	"crypto/ed25519"
	"crypto/sha256"
	"fmt"

	"github.com/corsair-parley/parley/pkg/codec"
	"github.com/corsair-parley/parley/pkg/cryptocore"
	"github.com/corsair-parley/parley/pkg/merkle"
)

// ProcessStep is one pipeline step eligible for a COSE_Sign1 receipt
// (spec.md §4.5 process-provenance chain): an in-toto/SLSA-shaped
// description of what ran, over what inputs, producing what outputs.
type ProcessStep struct {
	Name             string   `json:"name"`
	ToolAttestation  string   `json:"toolAttestation"`
	InputHashes      []string `json:"inputHashes"`
	OutputHashes     []string `json:"outputHashes"`
	Reproducible     bool     `json:"reproducible"`
}

// ProcessReceipt is a signed process-provenance step, chained to its
// predecessor by the SHA-256 of its own CBOR bytes.
type ProcessReceipt struct {
	Step         ProcessStep
	Envelope     []byte // COSE_Sign1 CBOR bytes
	ReceiptHash  []byte // SHA-256 of Envelope
	PreviousHash []byte
}

// BuildProcessChain signs each step in order with priv, chaining receipts
// via SHA-256 of each envelope's CBOR bytes, and returns the chain plus
// the Merkle root digest over all receipt hashes.
func BuildProcessChain(priv ed25519.PrivateKey, steps []ProcessStep) ([]ProcessReceipt, []byte, error) {
	receipts := make([]ProcessReceipt, 0, len(steps))
	leaves := make([][]byte, 0, len(steps))
	var prevHash []byte

	for _, step := range steps {
		canon, err := codec.CanonicalJSON(step)
		if err != nil {
			return nil, nil, fmt.Errorf("cpoe: canonicalize process step: %w", err)
		}
		envelope, err := cryptocore.CoseSign1(canon, priv, codec.CBORMap{{Key: "step", Value: step.Name}})
		if err != nil {
			return nil, nil, fmt.Errorf("cpoe: sign process step: %w", err)
		}
		h := sha256.Sum256(envelope)
		receipt := ProcessReceipt{Step: step, Envelope: envelope, ReceiptHash: h[:], PreviousHash: prevHash}
		receipts = append(receipts, receipt)
		leaves = append(leaves, merkle.LeafHash(h[:]))
		cp := make([]byte, len(h))
		copy(cp, h[:])
		prevHash = cp
	}

	return receipts, merkle.Root(leaves), nil
}

// DescribeProcessProvenance summarizes a process chain for embedding in a
// credential subject as processProvenance.
func DescribeProcessProvenance(chainDigestHex string, receipts []ProcessReceipt) ProcessProvenanceDescriptor {
	reproducible, attested := 0, 0
	for _, r := range receipts {
		if r.Step.Reproducible {
			reproducible++
		} else {
			attested++
		}
	}
	return ProcessProvenanceDescriptor{
		ChainDigest:       chainDigestHex,
		ReproducibleSteps: reproducible,
		AttestedSteps:     attested,
	}
}
