package keymanager

import (
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/corsair-parley/parley/pkg/cryptocore"
)

// FilesystemKeyManager persists key material as PEM files plus a JSON
// index under a base directory. Private keys are written with 0600
// permissions and never appear in any returned value except through Sign.
type FilesystemKeyManager struct {
	mu      sync.Mutex
	baseDir string
	index   map[string]KeyRecord
	nowFunc func() time.Time
}

type persistedIndex struct {
	Keys map[string]KeyRecord `json:"keys"`
}

// NewFilesystemKeyManager opens (creating if necessary) a key store at
// baseDir.
func NewFilesystemKeyManager(baseDir string) (*FilesystemKeyManager, error) {
	if err := os.MkdirAll(baseDir, 0o700); err != nil {
		return nil, fmt.Errorf("keymanager: mkdir: %w", err)
	}
	m := &FilesystemKeyManager{baseDir: baseDir, index: make(map[string]KeyRecord), nowFunc: time.Now}
	if err := m.loadIndex(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *FilesystemKeyManager) indexPath() string { return filepath.Join(m.baseDir, "index.json") }
func (m *FilesystemKeyManager) privPath(keyID string) string {
	return filepath.Join(m.baseDir, keyID+".priv.pem")
}

func (m *FilesystemKeyManager) loadIndex() error {
	b, err := os.ReadFile(m.indexPath())
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("keymanager: read index: %w", err)
	}
	var p persistedIndex
	if err := json.Unmarshal(b, &p); err != nil {
		return fmt.Errorf("keymanager: parse index: %w", err)
	}
	m.index = p.Keys
	if m.index == nil {
		m.index = make(map[string]KeyRecord)
	}
	return nil
}

func (m *FilesystemKeyManager) saveIndexLocked() error {
	b, err := json.MarshalIndent(persistedIndex{Keys: m.index}, "", "  ")
	if err != nil {
		return fmt.Errorf("keymanager: marshal index: %w", err)
	}
	return os.WriteFile(m.indexPath(), b, 0o600)
}

func (m *FilesystemKeyManager) GenerateKey() (string, ed25519.PublicKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	pub, priv, err := cryptocore.GenerateEd25519Keypair()
	if err != nil {
		return "", nil, err
	}
	keyID := fmt.Sprintf("key-%d", len(m.index)+1)
	for {
		if _, exists := m.index[keyID]; !exists {
			break
		}
		keyID = keyID + "x"
	}

	pemBytes, err := cryptocore.EncodePrivateKeyPEM(priv)
	if err != nil {
		return "", nil, err
	}
	if err := os.WriteFile(m.privPath(keyID), pemBytes, 0o600); err != nil {
		return "", nil, fmt.Errorf("keymanager: write private key: %w", err)
	}

	m.index[keyID] = KeyRecord{KeyID: keyID, PublicKey: pub, State: StatePending, CreatedAt: m.nowFunc()}
	if err := m.saveIndexLocked(); err != nil {
		return "", nil, err
	}
	return keyID, pub, nil
}

func (m *FilesystemKeyManager) Activate(keyID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.index[keyID]
	if !ok {
		return ErrKeyNotFound
	}
	if rec.State != StatePending {
		return ErrWrongState
	}
	now := m.nowFunc()
	rec.State = StateActive
	rec.ActivatedAt = &now
	m.index[keyID] = rec
	return m.saveIndexLocked()
}

func (m *FilesystemKeyManager) Retire(keyID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.index[keyID]
	if !ok {
		return ErrKeyNotFound
	}
	if rec.State != StateActive {
		return ErrWrongState
	}
	now := m.nowFunc()
	rec.State = StateRetired
	rec.RetiredAt = &now
	m.index[keyID] = rec
	return m.saveIndexLocked()
}

func (m *FilesystemKeyManager) Sign(keyID string, data []byte) ([]byte, error) {
	m.mu.Lock()
	rec, ok := m.index[keyID]
	m.mu.Unlock()
	if !ok {
		return nil, ErrKeyNotFound
	}
	if rec.State == StatePending {
		return nil, ErrWrongState
	}
	pemBytes, err := os.ReadFile(m.privPath(keyID))
	if err != nil {
		return nil, fmt.Errorf("keymanager: read private key: %w", err)
	}
	priv, err := cryptocore.DecodePrivateKeyPEM(pemBytes)
	if err != nil {
		return nil, err
	}
	return cryptocore.Sign(priv, data), nil
}

func (m *FilesystemKeyManager) PublicKey(keyID string) (ed25519.PublicKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.index[keyID]
	if !ok {
		return nil, ErrKeyNotFound
	}
	return rec.PublicKey, nil
}

func (m *FilesystemKeyManager) ActiveKeyID() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for id, rec := range m.index {
		if rec.State == StateActive {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return "", ErrNoActiveKey
	}
	sort.Strings(ids)
	return ids[len(ids)-1], nil
}

func (m *FilesystemKeyManager) Trusted() ([]KeyRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []KeyRecord
	for _, rec := range m.index {
		if rec.State == StateActive || rec.State == StateRetired {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].KeyID < out[j].KeyID })
	return out, nil
}

func (m *FilesystemKeyManager) Expunge(keyID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.index[keyID]; !ok {
		return ErrKeyNotFound
	}
	delete(m.index, keyID)
	_ = os.Remove(m.privPath(keyID))
	return m.saveIndexLocked()
}
