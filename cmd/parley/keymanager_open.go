package main

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/corsair-parley/parley/pkg/keymanager"
)

// openKeyManager builds the configured KeyManager backend, matching
// pkg/config.Config.KeyManagerKind's three recognized values.
func openKeyManager(kind, keyStorePath, databaseURL, encKeyB64 string) (keymanager.KeyManager, error) {
	switch kind {
	case "memory":
		return keymanager.NewMemoryKeyManager(), nil
	case "filesystem", "":
		return keymanager.NewFilesystemKeyManager(keyStorePath)
	case "postgres":
		db, err := sql.Open("postgres", databaseURL)
		if err != nil {
			return nil, fmt.Errorf("parley: open postgres: %w", err)
		}
		encKey, err := decodeEncryptionKey(encKeyB64)
		if err != nil {
			return nil, err
		}
		return keymanager.NewPostgresKeyManager(db, encKey)
	default:
		return nil, fmt.Errorf("parley: unknown key manager kind %q", kind)
	}
}
