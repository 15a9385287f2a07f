package keymanager

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/ed25519"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	_ "github.com/lib/pq"
)

// PostgresKeyManager persists key material in a Postgres table, with
// private keys encrypted at rest under AES-256-GCM. The stored blob layout
// is IV (12 bytes) || authTag (16 bytes, appended by Seal) || ciphertext,
// matching spec.md §5.
type PostgresKeyManager struct {
	db      *sql.DB
	encKey  []byte
	mu      sync.Mutex
	nowFunc func() time.Time
}

// NewPostgresKeyManager wraps an open *sql.DB. encKey must be exactly 32
// bytes (AES-256). The caller is responsible for having run the
// `parley_keys` migration (id, public_key, encrypted_private_key, state,
// created_at, activated_at, retired_at).
func NewPostgresKeyManager(db *sql.DB, encKey []byte) (*PostgresKeyManager, error) {
	if len(encKey) != 32 {
		return nil, errors.New("keymanager: encryption key must be 32 bytes for AES-256")
	}
	return &PostgresKeyManager{db: db, encKey: encKey, nowFunc: time.Now}, nil
}

func (m *PostgresKeyManager) seal(plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(m.encKey)
	if err != nil {
		return nil, fmt.Errorf("keymanager: cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("keymanager: gcm: %w", err)
	}
	nonce := make([]byte, gcm.NonceSize()) // 12 bytes
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("keymanager: nonce: %w", err)
	}
	// Seal appends the 16-byte auth tag to the ciphertext; prefixing the
	// nonce gives IV(12) || ciphertext+tag(n+16).
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func (m *PostgresKeyManager) open(blob []byte) ([]byte, error) {
	block, err := aes.NewCipher(m.encKey)
	if err != nil {
		return nil, fmt.Errorf("keymanager: cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("keymanager: gcm: %w", err)
	}
	if len(blob) < gcm.NonceSize() {
		return nil, errors.New("keymanager: ciphertext too short")
	}
	nonce, ct := blob[:gcm.NonceSize()], blob[gcm.NonceSize():]
	return gcm.Open(nil, nonce, ct, nil)
}

func (m *PostgresKeyManager) GenerateKey() (string, ed25519.PublicKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		return "", nil, fmt.Errorf("keymanager: generate: %w", err)
	}
	blob, err := m.seal(priv)
	if err != nil {
		return "", nil, err
	}

	ctx := context.Background()
	var keyID string
	now := m.nowFunc()
	err = m.db.QueryRowContext(ctx,
		`INSERT INTO parley_keys (public_key, encrypted_private_key, state, created_at)
		 VALUES ($1, $2, $3, $4) RETURNING id`,
		[]byte(pub), blob, StatePending, now,
	).Scan(&keyID)
	if err != nil {
		return "", nil, fmt.Errorf("keymanager: insert: %w", err)
	}
	return keyID, pub, nil
}

func (m *PostgresKeyManager) Activate(keyID string) error {
	ctx := context.Background()
	res, err := m.db.ExecContext(ctx,
		`UPDATE parley_keys SET state=$1, activated_at=$2 WHERE id=$3 AND state=$4`,
		StateActive, m.nowFunc(), keyID, StatePending,
	)
	return checkSingleRowUpdated(res, err)
}

func (m *PostgresKeyManager) Retire(keyID string) error {
	ctx := context.Background()
	res, err := m.db.ExecContext(ctx,
		`UPDATE parley_keys SET state=$1, retired_at=$2 WHERE id=$3 AND state=$4`,
		StateRetired, m.nowFunc(), keyID, StateActive,
	)
	return checkSingleRowUpdated(res, err)
}

func checkSingleRowUpdated(res sql.Result, err error) error {
	if err != nil {
		return fmt.Errorf("keymanager: update: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("keymanager: rows affected: %w", err)
	}
	if n == 0 {
		return ErrWrongState
	}
	return nil
}

func (m *PostgresKeyManager) Sign(keyID string, data []byte) ([]byte, error) {
	ctx := context.Background()
	var blob []byte
	var state KeyState
	err := m.db.QueryRowContext(ctx,
		`SELECT encrypted_private_key, state FROM parley_keys WHERE id=$1`, keyID,
	).Scan(&blob, &state)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("keymanager: select: %w", err)
	}
	if state == StatePending {
		return nil, ErrWrongState
	}
	priv, err := m.open(blob)
	if err != nil {
		return nil, fmt.Errorf("keymanager: decrypt private key: %w", err)
	}
	return ed25519.Sign(ed25519.PrivateKey(priv), data), nil
}

func (m *PostgresKeyManager) PublicKey(keyID string) (ed25519.PublicKey, error) {
	ctx := context.Background()
	var pub []byte
	err := m.db.QueryRowContext(ctx, `SELECT public_key FROM parley_keys WHERE id=$1`, keyID).Scan(&pub)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("keymanager: select: %w", err)
	}
	return ed25519.PublicKey(pub), nil
}

func (m *PostgresKeyManager) ActiveKeyID() (string, error) {
	ctx := context.Background()
	rows, err := m.db.QueryContext(ctx, `SELECT id FROM parley_keys WHERE state=$1 ORDER BY id`, StateActive)
	if err != nil {
		return "", fmt.Errorf("keymanager: query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return "", fmt.Errorf("keymanager: scan: %w", err)
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return "", ErrNoActiveKey
	}
	sort.Strings(ids)
	return ids[len(ids)-1], nil
}

func (m *PostgresKeyManager) Trusted() ([]KeyRecord, error) {
	ctx := context.Background()
	rows, err := m.db.QueryContext(ctx,
		`SELECT id, public_key, state, created_at, activated_at, retired_at
		 FROM parley_keys WHERE state=$1 OR state=$2 ORDER BY id`,
		StateActive, StateRetired,
	)
	if err != nil {
		return nil, fmt.Errorf("keymanager: query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []KeyRecord
	for rows.Next() {
		var rec KeyRecord
		var pub []byte
		var activatedAt, retiredAt sql.NullTime
		if err := rows.Scan(&rec.KeyID, &pub, &rec.State, &rec.CreatedAt, &activatedAt, &retiredAt); err != nil {
			return nil, fmt.Errorf("keymanager: scan: %w", err)
		}
		rec.PublicKey = ed25519.PublicKey(pub)
		if activatedAt.Valid {
			rec.ActivatedAt = &activatedAt.Time
		}
		if retiredAt.Valid {
			rec.RetiredAt = &retiredAt.Time
		}
		out = append(out, rec)
	}
	return out, nil
}

func (m *PostgresKeyManager) Expunge(keyID string) error {
	ctx := context.Background()
	res, err := m.db.ExecContext(ctx, `DELETE FROM parley_keys WHERE id=$1`, keyID)
	if err != nil {
		return fmt.Errorf("keymanager: delete: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("keymanager: rows affected: %w", err)
	}
	if n == 0 {
		return ErrKeyNotFound
	}
	return nil
}
