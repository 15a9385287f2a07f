package merkle

import (
	"bufio"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/corsair-parley/parley/pkg/codec"
)

// EvidenceRecord is a single append-only JSONL row of an evidence chain
// (spec.md §3).
type EvidenceRecord struct {
	Sequence     uint64      `json:"sequence"`
	Timestamp    string      `json:"timestamp"`
	Operation    string      `json:"operation"`
	Data         interface{} `json:"data"`
	PreviousHash *string     `json:"previousHash"`
	Hash         string      `json:"hash"`
}

// recordForHashing mirrors EvidenceRecord minus Hash; it is what gets
// canonically serialized and SHA-256'd to produce Hash.
type recordForHashing struct {
	Sequence     uint64      `json:"sequence"`
	Timestamp    string      `json:"timestamp"`
	Operation    string      `json:"operation"`
	Data         interface{} `json:"data"`
	PreviousHash *string     `json:"previousHash"`
}

func computeHash(r EvidenceRecord) (string, error) {
	b, err := codec.CanonicalJSON(recordForHashing{
		Sequence:     r.Sequence,
		Timestamp:    r.Timestamp,
		Operation:    r.Operation,
		Data:         r.Data,
		PreviousHash: r.PreviousHash,
	})
	if err != nil {
		return "", err
	}
	h := sha256.Sum256(b)
	return hex.EncodeToString(h[:]), nil
}

// Sink is the injectable append-only collaborator an evidence Chain writes
// through (spec.md §9 "file-system globals ↔ injected collaborators").
// Implementations must guarantee that AppendLine calls are durable and
// ordered relative to each other from this process; cross-process
// serialization is the caller's responsibility (spec.md §5).
type Sink interface {
	AppendLine(line []byte) error
	ReadAllLines() ([][]byte, error)
}

// FileSink is a Sink backed by a local append-only file.
type FileSink struct {
	path string
	mu   sync.Mutex
}

// NewFileSink opens (creating if necessary) an append-only JSONL file at path.
func NewFileSink(path string) (*FileSink, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("merkle: open sink: %w", err)
	}
	_ = f.Close()
	return &FileSink{path: path}, nil
}

func (s *FileSink) AppendLine(line []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("merkle: append: %w", err)
	}
	defer func() { _ = f.Close() }()
	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("merkle: write: %w", err)
	}
	return nil
}

func (s *FileSink) ReadAllLines() ([][]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("merkle: open for read: %w", err)
	}
	defer func() { _ = f.Close() }()

	var lines [][]byte
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		cp := make([]byte, len(line))
		copy(cp, line)
		lines = append(lines, cp)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("merkle: scan: %w", err)
	}
	return lines, nil
}

// MemorySink is an in-memory Sink for tests and ephemeral use.
type MemorySink struct {
	mu    sync.Mutex
	lines [][]byte
}

// NewMemorySink creates an empty in-memory sink.
func NewMemorySink() *MemorySink { return &MemorySink{} }

func (s *MemorySink) AppendLine(line []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(line))
	copy(cp, line)
	s.lines = append(s.lines, cp)
	return nil
}

func (s *MemorySink) ReadAllLines() ([][]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]byte, len(s.lines))
	copy(out, s.lines)
	return out, nil
}

// Chain wraps a Sink with the single-writer evidence-chain invariants of
// spec.md §4.3: a strictly increasing sequence, and each record's
// previousHash equal to the previous record's hash.
type Chain struct {
	mu         sync.Mutex
	sink       Sink
	sequence   uint64
	lastHash   *string
	nowFunc    func() time.Time
	haveHashed bool
}

// NewChain constructs a Chain over sink, recovering (sequence, lastHash)
// from any records already present.
func NewChain(sink Sink) (*Chain, error) {
	c := &Chain{sink: sink, nowFunc: time.Now}
	lines, err := sink.ReadAllLines()
	if err != nil {
		return nil, err
	}
	for _, line := range lines {
		var rec EvidenceRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, fmt.Errorf("merkle: recover chain state: %w", err)
		}
		c.sequence = rec.Sequence
		h := rec.Hash
		c.lastHash = &h
		c.haveHashed = true
	}
	return c, nil
}

// WithClock overrides the time source, for deterministic tests.
func (c *Chain) WithClock(now func() time.Time) *Chain {
	c.nowFunc = now
	return c
}

// Append builds, hashes, and durably writes one EvidenceRecord, updating
// in-memory (sequence, lastHash) atomically relative to other Append calls
// on this Chain (spec.md §5: appends within one chain file are strictly
// serialized).
func (c *Chain) Append(operation string, data interface{}) (*EvidenceRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	nextSeq := c.sequence + 1
	if !c.haveHashed {
		nextSeq = 1
	}

	rec := EvidenceRecord{
		Sequence:     nextSeq,
		Timestamp:    c.nowFunc().UTC().Format(time.RFC3339Nano),
		Operation:    operation,
		Data:         data,
		PreviousHash: c.lastHash,
	}
	hash, err := computeHash(rec)
	if err != nil {
		return nil, fmt.Errorf("merkle: hash record: %w", err)
	}
	rec.Hash = hash

	line, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("merkle: marshal record: %w", err)
	}
	if err := c.sink.AppendLine(line); err != nil {
		return nil, err
	}

	c.sequence = nextSeq
	h := hash
	c.lastHash = &h
	c.haveHashed = true

	return &rec, nil
}

// VerifyChainResult is the result of VerifyChain (spec.md §7, §8 property 1).
type VerifyChainResult struct {
	Valid       bool
	RecordCount int
	BrokenAt    *int // 1-indexed row at which the chain breaks, nil if valid
}

// VerifyChain rereads sink and checks every invariant: each record's hash
// equals SHA-256(canonicalJSON(record minus hash)); previousHash[0] is nil;
// previousHash[i] equals hash[i-1] for i>0.
func VerifyChain(sink Sink) (VerifyChainResult, error) {
	lines, err := sink.ReadAllLines()
	if err != nil {
		return VerifyChainResult{}, err
	}

	result := VerifyChainResult{Valid: true, RecordCount: len(lines)}
	var prevHash *string

	for i, line := range lines {
		rowNum := i + 1
		var rec EvidenceRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			result.Valid = false
			result.BrokenAt = &rowNum
			return result, nil
		}

		wantHash, err := computeHash(rec)
		if err != nil || wantHash != rec.Hash {
			result.Valid = false
			result.BrokenAt = &rowNum
			return result, nil
		}

		if i == 0 {
			if rec.PreviousHash != nil {
				result.Valid = false
				result.BrokenAt = &rowNum
				return result, nil
			}
		} else {
			if rec.PreviousHash == nil || prevHash == nil || *rec.PreviousHash != *prevHash {
				result.Valid = false
				result.BrokenAt = &rowNum
				return result, nil
			}
		}

		h := rec.Hash
		prevHash = &h
	}

	return result, nil
}

// ChainDigest computes the identity of a chain: the Merkle root over
// leaf_hash(record.hash) for every record in sink, per spec.md §4.3.
func ChainDigest(sink Sink) ([]byte, int, error) {
	lines, err := sink.ReadAllLines()
	if err != nil {
		return nil, 0, err
	}
	leaves := make([][]byte, 0, len(lines))
	for _, line := range lines {
		var rec EvidenceRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, 0, fmt.Errorf("merkle: chain digest: %w", err)
		}
		leaves = append(leaves, LeafHash([]byte(rec.Hash)))
	}
	return Root(leaves), len(leaves), nil
}

// SummaryDigest merkle-roots a set of per-chain digests, sorted
// lexicographically, used when multiple chains are summarized together
// (spec.md §4.3).
func SummaryDigest(digests [][]byte) []byte {
	sorted := make([][]byte, len(digests))
	copy(sorted, digests)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && bytes.Compare(sorted[j-1], sorted[j]) > 0; j-- {
			sorted[j-1], sorted[j] = sorted[j], sorted[j-1]
		}
	}
	leaves := make([][]byte, len(sorted))
	for i, d := range sorted {
		leaves[i] = LeafHash(d)
	}
	return Root(leaves)
}
