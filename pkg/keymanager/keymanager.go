// Package keymanager holds Ed25519 key material behind a narrow interface
// with three concrete backends (filesystem, Postgres with AES-256-GCM
// encryption at rest, and in-memory), mirroring the teacher's KeyRing
// collaborator-injection pattern in pkg/crypto/keyring.go but adding the
// pending/active/retired lifecycle spec.md §5 requires.
package keymanager

import (
	"crypto/ed25519"
	"fmt"
	"sort"
	"sync"
	"time"
)

// KeyState is a key's position in its lifecycle.
type KeyState string

const (
	StatePending KeyState = "pending"
	StateActive  KeyState = "active"
	StateRetired KeyState = "retired"
)

// KeyRecord is one managed keypair plus its lifecycle metadata. The
// private key is held only inside the manager's boundary; callers reach
// it solely through Sign.
type KeyRecord struct {
	KeyID     string
	PublicKey ed25519.PublicKey
	State     KeyState
	CreatedAt time.Time
	ActivatedAt *time.Time
	RetiredAt   *time.Time
}

// KeyManager is the narrow boundary through which every signing operation
// in Parley passes. Implementations must never log, serialize, or
// otherwise let a private key escape except via Sign (spec.md §5).
type KeyManager interface {
	GenerateKey() (keyID string, pub ed25519.PublicKey, err error)
	Activate(keyID string) error
	Retire(keyID string) error
	Sign(keyID string, data []byte) ([]byte, error)
	PublicKey(keyID string) (ed25519.PublicKey, error)
	ActiveKeyID() (string, error)
	// Trusted returns every key whose state is active or retired:
	// retired keys remain trusted for verification until explicitly
	// expunged (spec.md §5).
	Trusted() ([]KeyRecord, error)
	Expunge(keyID string) error
}

var (
	ErrKeyNotFound  = fmt.Errorf("keymanager: key not found")
	ErrNoActiveKey  = fmt.Errorf("keymanager: no active key")
	ErrWrongState   = fmt.Errorf("keymanager: operation invalid for current key state")
)

// MemoryKeyManager is an in-memory KeyManager for tests and ephemeral
// processes (spec.md §9 injected-collaborator design note).
type MemoryKeyManager struct {
	mu      sync.RWMutex
	records map[string]*memoryEntry
	nowFunc func() time.Time
	seq     int
}

type memoryEntry struct {
	record KeyRecord
	priv   ed25519.PrivateKey
}

// NewMemoryKeyManager constructs an empty in-memory key manager.
func NewMemoryKeyManager() *MemoryKeyManager {
	return &MemoryKeyManager{records: make(map[string]*memoryEntry), nowFunc: time.Now}
}

// WithClock overrides the time source, for deterministic tests.
func (m *MemoryKeyManager) WithClock(now func() time.Time) *MemoryKeyManager {
	m.nowFunc = now
	return m
}

func (m *MemoryKeyManager) GenerateKey() (string, ed25519.PublicKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		return "", nil, fmt.Errorf("keymanager: generate: %w", err)
	}
	m.seq++
	keyID := fmt.Sprintf("key-%d", m.seq)
	m.records[keyID] = &memoryEntry{
		record: KeyRecord{KeyID: keyID, PublicKey: pub, State: StatePending, CreatedAt: m.nowFunc()},
		priv:   priv,
	}
	return keyID, pub, nil
}

func (m *MemoryKeyManager) Activate(keyID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.records[keyID]
	if !ok {
		return ErrKeyNotFound
	}
	if e.record.State != StatePending {
		return ErrWrongState
	}
	now := m.nowFunc()
	e.record.State = StateActive
	e.record.ActivatedAt = &now
	return nil
}

func (m *MemoryKeyManager) Retire(keyID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.records[keyID]
	if !ok {
		return ErrKeyNotFound
	}
	if e.record.State != StateActive {
		return ErrWrongState
	}
	now := m.nowFunc()
	e.record.State = StateRetired
	e.record.RetiredAt = &now
	return nil
}

func (m *MemoryKeyManager) Sign(keyID string, data []byte) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.records[keyID]
	if !ok {
		return nil, ErrKeyNotFound
	}
	if e.record.State == StatePending {
		return nil, ErrWrongState
	}
	return ed25519.Sign(e.priv, data), nil
}

func (m *MemoryKeyManager) PublicKey(keyID string) (ed25519.PublicKey, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.records[keyID]
	if !ok {
		return nil, ErrKeyNotFound
	}
	return e.record.PublicKey, nil
}

func (m *MemoryKeyManager) ActiveKeyID() (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var ids []string
	for id, e := range m.records {
		if e.record.State == StateActive {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return "", ErrNoActiveKey
	}
	sort.Strings(ids)
	return ids[len(ids)-1], nil
}

func (m *MemoryKeyManager) Trusted() ([]KeyRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []KeyRecord
	for _, e := range m.records {
		if e.record.State == StateActive || e.record.State == StateRetired {
			out = append(out, e.record)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].KeyID < out[j].KeyID })
	return out, nil
}

func (m *MemoryKeyManager) Expunge(keyID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[keyID]; !ok {
		return ErrKeyNotFound
	}
	delete(m.records, keyID)
	return nil
}
