package keymanager

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryKeyManagerLifecycle(t *testing.T) {
	m := NewMemoryKeyManager()
	keyID, pub, err := m.GenerateKey()
	require.NoError(t, err)
	require.NotEmpty(t, keyID)
	require.Len(t, pub, 32)

	_, err = m.ActiveKeyID()
	assert.ErrorIs(t, err, ErrNoActiveKey)

	_, err = m.Sign(keyID, []byte("x"))
	assert.ErrorIs(t, err, ErrWrongState)

	require.NoError(t, m.Activate(keyID))
	active, err := m.ActiveKeyID()
	require.NoError(t, err)
	assert.Equal(t, keyID, active)

	sig, err := m.Sign(keyID, []byte("hello"))
	require.NoError(t, err)
	assert.NotEmpty(t, sig)

	require.NoError(t, m.Retire(keyID))
	trusted, err := m.Trusted()
	require.NoError(t, err)
	require.Len(t, trusted, 1)
	assert.Equal(t, StateRetired, trusted[0].State)

	// retired keys remain trusted for verification
	sig2, err := m.Sign(keyID, []byte("hello"))
	require.NoError(t, err)
	assert.NotNil(t, sig2)

	require.NoError(t, m.Expunge(keyID))
	trusted, err = m.Trusted()
	require.NoError(t, err)
	assert.Empty(t, trusted)

	_, err = m.PublicKey(keyID)
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestFilesystemKeyManagerPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	m, err := NewFilesystemKeyManager(dir)
	require.NoError(t, err)

	keyID, pub, err := m.GenerateKey()
	require.NoError(t, err)
	require.NoError(t, m.Activate(keyID))

	reopened, err := NewFilesystemKeyManager(dir)
	require.NoError(t, err)
	active, err := reopened.ActiveKeyID()
	require.NoError(t, err)
	assert.Equal(t, keyID, active)

	gotPub, err := reopened.PublicKey(keyID)
	require.NoError(t, err)
	assert.Equal(t, pub, gotPub)

	sig, err := reopened.Sign(keyID, []byte("evidence"))
	require.NoError(t, err)
	assert.NotEmpty(t, sig)

	_, err = os.Stat(dir)
	require.NoError(t, err)
}

func TestFilesystemKeyManagerRejectsWrongStateTransitions(t *testing.T) {
	dir := t.TempDir()
	m, err := NewFilesystemKeyManager(dir)
	require.NoError(t, err)

	keyID, _, err := m.GenerateKey()
	require.NoError(t, err)

	assert.ErrorIs(t, m.Retire(keyID), ErrWrongState)
	require.NoError(t, m.Activate(keyID))
	assert.ErrorIs(t, m.Activate(keyID), ErrWrongState)
}
