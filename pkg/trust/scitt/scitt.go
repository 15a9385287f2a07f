// Package scitt implements the SCITT transparency registry: an
// append-only, Merkle-hash-chained log of signed statements with
// COSE_Sign1 receipts (spec.md §4.6.4).
package scitt

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/corsair-parley/parley/pkg/codec"
	"github.com/corsair-parley/parley/pkg/cryptocore"
	"github.com/corsair-parley/parley/pkg/merkle"
)

// Entry is one registered statement, per spec.md §3.
type Entry struct {
	EntryID          string    `json:"entryId"`
	Statement        *string   `json:"statement"` // nil in proof-only mode
	StatementHash    string    `json:"statementHash"`
	TreeSize         int       `json:"treeSize"`
	TreeHash         string    `json:"treeHash"`
	ParentHash       string    `json:"parentHash"`
	RegistrationTime string    `json:"registrationTime"`
}

// ReceiptPayload is the JSON object wrapped in a COSE_Sign1 envelope at
// registration.
type ReceiptPayload struct {
	LogID            string `json:"logId"`
	EntryID          string `json:"entryId"`
	TreeSize         int    `json:"treeSize"`
	TreeHash         string `json:"treeHash"`
	StatementHash    string `json:"statementHash"`
	RegistrationTime string `json:"registrationTime"`
}

// Registration is the result of Register: the entry plus its signed
// receipt envelope.
type Registration struct {
	Entry        Entry
	ReceiptCBOR  []byte
}

// RegisterOptions controls Register's proof-only mode (spec.md §9 open
// question (a)): proof-only entries omit the statement text and are not
// filterable by issuer or framework, but remain filterable by entryId.
type RegisterOptions struct {
	ProofOnly bool
}

// Registry is a single SCITT transparency log. It serializes registration
// on an internal mutex, satisfying the single-writer tree-size invariant
// of spec.md §5.
type Registry struct {
	mu       sync.Mutex
	logID    string
	signPriv ed25519.PrivateKey
	entries  []Entry
	receipts map[string][]byte // entryId -> COSE_Sign1 CBOR
	nowFunc  func() time.Time
}

// NewRegistry constructs an empty in-memory-backed registry, signing
// receipts under signPriv. Durable deployments wrap a Registry with their
// own entry/receipt persistence at the call site; the registry core owns
// no process-wide state, per spec.md §9.
func NewRegistry(logID string, signPriv ed25519.PrivateKey) *Registry {
	return &Registry{
		logID:    logID,
		signPriv: signPriv,
		receipts: make(map[string][]byte),
		nowFunc:  time.Now,
	}
}

// WithClock overrides the time source, for deterministic tests.
func (r *Registry) WithClock(now func() time.Time) *Registry {
	r.nowFunc = now
	return r
}

// Snapshot is the JSON-serializable state of a Registry, used by
// long-lived callers (e.g. the CLI) to persist the log across process
// restarts without a full database-backed store.
type Snapshot struct {
	LogID    string            `json:"logId"`
	Entries  []Entry           `json:"entries"`
	Receipts map[string][]byte `json:"receipts"`
}

// Snapshot captures the registry's current state.
func (r *Registry) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	receipts := make(map[string][]byte, len(r.receipts))
	for k, v := range r.receipts {
		receipts[k] = append([]byte(nil), v...)
	}
	return Snapshot{
		LogID:    r.logID,
		Entries:  append([]Entry(nil), r.entries...),
		Receipts: receipts,
	}
}

// LoadRegistry reconstructs a Registry from a previously captured
// Snapshot, signing future receipts under signPriv.
func LoadRegistry(signPriv ed25519.PrivateKey, snap Snapshot) *Registry {
	r := NewRegistry(snap.LogID, signPriv)
	r.entries = append([]Entry(nil), snap.Entries...)
	for k, v := range snap.Receipts {
		r.receipts[k] = v
	}
	return r
}

// Register computes statementHash, the new tree root over all hashes
// including the new one, and stores a COSE_Sign1-wrapped receipt, per
// spec.md §4.6.4.
func (r *Registry) Register(statement string, opts RegisterOptions) (*Registration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	h := sha256.Sum256([]byte(statement))
	statementHash := hex.EncodeToString(h[:])

	leaves := make([][]byte, 0, len(r.entries)+1)
	for _, e := range r.entries {
		lh, err := hex.DecodeString(e.StatementHash)
		if err != nil {
			return nil, fmt.Errorf("scitt: corrupt entry %s: %w", e.EntryID, err)
		}
		leaves = append(leaves, merkle.LeafHash(lh))
	}
	leaves = append(leaves, merkle.LeafHash(h[:]))
	treeHash := merkle.Root(leaves)

	parentHash := ""
	if len(r.entries) > 0 {
		parentHash = r.entries[len(r.entries)-1].TreeHash
	}

	var stmt *string
	if !opts.ProofOnly {
		s := statement
		stmt = &s
	}

	entry := Entry{
		EntryID:          uuid.NewString(),
		Statement:        stmt,
		StatementHash:    statementHash,
		TreeSize:         len(r.entries) + 1,
		TreeHash:         hex.EncodeToString(treeHash),
		ParentHash:       parentHash,
		RegistrationTime: r.nowFunc().UTC().Format(time.RFC3339Nano),
	}

	receiptPayload := ReceiptPayload{
		LogID:            r.logID,
		EntryID:          entry.EntryID,
		TreeSize:         entry.TreeSize,
		TreeHash:         entry.TreeHash,
		StatementHash:    entry.StatementHash,
		RegistrationTime: entry.RegistrationTime,
	}
	canon, err := codec.CanonicalJSON(receiptPayload)
	if err != nil {
		return nil, fmt.Errorf("scitt: canonicalize receipt: %w", err)
	}

	receiptCBOR, err := cryptocore.CoseSign1(canon, r.signPriv, codec.CBORMap{
		{Key: "logId", Value: r.logID},
	})
	if err != nil {
		return nil, fmt.Errorf("scitt: sign receipt: %w", err)
	}

	r.entries = append(r.entries, entry)
	r.receipts[entry.EntryID] = receiptCBOR

	return &Registration{Entry: entry, ReceiptCBOR: receiptCBOR}, nil
}

// GetReceipt returns the stored COSE_Sign1 receipt bytes for entryId, or
// nil if unknown.
func (r *Registry) GetReceipt(entryID string) []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.receipts[entryID]
}

// VerifyReceipt re-runs cose_verify1 over the stored receipt for entryId
// under logPublicKey.
func (r *Registry) VerifyReceipt(entryID string, logPublicKey ed25519.PublicKey) bool {
	receipt := r.GetReceipt(entryID)
	if receipt == nil {
		return false
	}
	verified, _ := cryptocore.CoseVerify1(receipt, logPublicKey)
	return verified
}

// ListFilter narrows ListEntries.
type ListFilter struct {
	Limit     int
	Offset    int
	Issuer    string
	Framework string
}

// ListedEntry is one row of ListEntries' output: the raw entry plus any
// JWT claims decoded from its statement (payload only, no signature
// check), defaulted to "unknown" for proof-only entries.
type ListedEntry struct {
	Entry  Entry
	Issuer string
}

// ListEntries returns entries newest-first, filtered by issuer/framework
// when the caller supplies them. Proof-only entries bypass those filters
// entirely since they have no decodable statement (spec.md §9 open
// question (a)).
func (r *Registry) ListEntries(filter ListFilter) []ListedEntry {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]ListedEntry, 0, len(r.entries))
	for i := len(r.entries) - 1; i >= 0; i-- {
		e := r.entries[i]
		if e.Statement == nil {
			out = append(out, ListedEntry{Entry: e, Issuer: "unknown"})
			continue
		}
		issuer, frameworks := decodeStatementClaims(*e.Statement)
		if filter.Issuer != "" && issuer != filter.Issuer {
			continue
		}
		if filter.Framework != "" && !containsFold(frameworks, filter.Framework) {
			continue
		}
		out = append(out, ListedEntry{Entry: e, Issuer: issuer})
	}

	if filter.Offset > 0 && filter.Offset < len(out) {
		out = out[filter.Offset:]
	} else if filter.Offset >= len(out) {
		out = nil
	}
	if filter.Limit > 0 && filter.Limit < len(out) {
		out = out[:filter.Limit]
	}
	return out
}

func decodeStatementClaims(jwt string) (issuer string, frameworks []string) {
	parts := strings.Split(jwt, ".")
	if len(parts) != 3 {
		return "unknown", nil
	}
	raw, err := codec.Base64URLDecode(parts[1])
	if err != nil {
		return "unknown", nil
	}
	var payload map[string]interface{}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return "unknown", nil
	}
	iss, _ := payload["iss"].(string)
	if iss == "" {
		iss = "unknown"
	}
	vc, _ := payload["vc"].(map[string]interface{})
	subject, _ := vc["credentialSubject"].(map[string]interface{})
	scope, _ := subject["scope"].(map[string]interface{})
	if list, ok := scope["frameworksCovered"].([]interface{}); ok {
		for _, v := range list {
			if s, ok := v.(string); ok {
				frameworks = append(frameworks, s)
			}
		}
	}
	return iss, frameworks
}

func containsFold(haystack []string, needle string) bool {
	for _, h := range haystack {
		if strings.EqualFold(h, needle) {
			return true
		}
	}
	return false
}

// IssuerProfile aggregates one issuer's historical registrations, per
// spec.md §4.6.4.
type IssuerProfile struct {
	DID                 string
	TotalCount          int
	Frameworks          []string
	AverageOverallScore float64
	ProvenanceHistogram map[string]int
	LastRegistration    string
	RecentEntries       []ListedEntry
}

// GetIssuerProfile aggregates every non-proof-only entry issued by did.
// before, when non-nil, pages through full history past the 20-most-recent
// cap of spec.md §4.6.4: only entries registered strictly before that time
// are considered, mirroring the teacher's TimelineQuery After/Before
// cursor idiom.
func (r *Registry) GetIssuerProfile(did string, before *time.Time) IssuerProfile {
	entries := r.ListEntries(ListFilter{Issuer: did})
	if before != nil {
		cursor := before.UTC().Format(time.RFC3339Nano)
		filtered := entries[:0:0]
		for _, le := range entries {
			if le.Entry.RegistrationTime < cursor {
				filtered = append(filtered, le)
			}
		}
		entries = filtered
	}

	frameworkSet := make(map[string]bool)
	scoreSum := 0.0
	scored := 0
	// Provenance histogram is best-effort: the credential subject carries
	// no raw control-level provenance field, only the normalized
	// assurance enrichment, so buckets stay zero until a richer statement
	// shape is registered.
	provenance := map[string]int{"self": 0, "tool": 0, "auditor": 0}

	for _, le := range entries {
		if le.Entry.Statement == nil {
			continue
		}
		parts := strings.Split(*le.Entry.Statement, ".")
		if len(parts) != 3 {
			continue
		}
		raw, err := codec.Base64URLDecode(parts[1])
		if err != nil {
			continue
		}
		var payload map[string]interface{}
		if err := json.Unmarshal(raw, &payload); err != nil {
			continue
		}
		vc, _ := payload["vc"].(map[string]interface{})
		subject, _ := vc["credentialSubject"].(map[string]interface{})
		if scope, ok := subject["scope"].(map[string]interface{}); ok {
			if fw, ok := scope["frameworksCovered"].([]interface{}); ok {
				for _, v := range fw {
					if s, ok := v.(string); ok {
						frameworkSet[s] = true
					}
				}
			}
		}
		if summary, ok := subject["summary"].(map[string]interface{}); ok {
			if score, ok := summary["overallScore"].(float64); ok {
				scoreSum += score
				scored++
			}
		}
	}

	var frameworks []string
	for f := range frameworkSet {
		frameworks = append(frameworks, f)
	}
	sort.Strings(frameworks)

	avg := 0.0
	if scored > 0 {
		avg = scoreSum / float64(scored)
	}

	last := ""
	if len(entries) > 0 {
		last = entries[0].Entry.RegistrationTime
	}

	recent := entries
	if len(recent) > 20 {
		recent = recent[:20]
	}

	return IssuerProfile{
		DID:                 did,
		TotalCount:          len(entries),
		Frameworks:          frameworks,
		AverageOverallScore: avg,
		ProvenanceHistogram: provenance,
		LastRegistration:    last,
		RecentEntries:       recent,
	}
}
