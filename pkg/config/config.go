// Package config loads Parley's flat environment-variable configuration
// and wires up structured logging, mirroring the teacher's Config.Load
// convention.
package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"
)

// Config holds process configuration for the parley binary.
type Config struct {
	LogLevel   string
	DatabaseURL string

	IssuerDID      string
	KeyManagerKind string // filesystem | postgres | memory
	KeyStorePath   string
	KMSEncryptionKey string // base64 32-byte key, required when KeyManagerKind=postgres

	EvidenceChainPath string

	SCITTLogID    string
	SCITTBaseURL  string

	CPOEExpiryDays int
	DIDFetchTimeout time.Duration

	RootTrustDID string
}

// Load loads configuration from environment variables, applying the same
// defaults-then-override shape as the rest of the stack.
func Load() *Config {
	logLevel := os.Getenv("PARLEY_LOG_LEVEL")
	if logLevel == "" {
		logLevel = "INFO"
	}

	dbURL := os.Getenv("PARLEY_DATABASE_URL")
	if dbURL == "" {
		dbURL = "postgres://parley@localhost:5432/parley?sslmode=disable"
	}

	keyManagerKind := os.Getenv("PARLEY_KEYMANAGER")
	if keyManagerKind == "" {
		keyManagerKind = "filesystem"
	}

	keyStorePath := os.Getenv("PARLEY_KEYSTORE_PATH")
	if keyStorePath == "" {
		keyStorePath = "./parley-keystore"
	}

	evidenceChainPath := os.Getenv("PARLEY_EVIDENCE_CHAIN_PATH")
	if evidenceChainPath == "" {
		evidenceChainPath = "./parley-evidence.jsonl"
	}

	scittLogID := os.Getenv("PARLEY_SCITT_LOG_ID")
	if scittLogID == "" {
		scittLogID = "parley-scitt-default"
	}

	expiryDays := 7
	if v := os.Getenv("PARLEY_CPOE_EXPIRY_DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			expiryDays = n
		}
	}

	fetchTimeout := 5 * time.Second
	if v := os.Getenv("PARLEY_DID_FETCH_TIMEOUT_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			fetchTimeout = time.Duration(n) * time.Millisecond
		}
	}

	rootTrustDID := os.Getenv("PARLEY_ROOT_TRUST_DID")
	if rootTrustDID == "" {
		rootTrustDID = "did:web:grcorsair.com"
	}

	return &Config{
		LogLevel:          logLevel,
		DatabaseURL:       dbURL,
		IssuerDID:         os.Getenv("PARLEY_ISSUER_DID"),
		KeyManagerKind:    keyManagerKind,
		KeyStorePath:      keyStorePath,
		KMSEncryptionKey:  os.Getenv("PARLEY_KMS_ENCRYPTION_KEY"),
		EvidenceChainPath: evidenceChainPath,
		SCITTLogID:        scittLogID,
		SCITTBaseURL:      os.Getenv("PARLEY_SCITT_BASE_URL"),
		CPOEExpiryDays:    expiryDays,
		DIDFetchTimeout:   fetchTimeout,
		RootTrustDID:      rootTrustDID,
	}
}

// NewLogger builds the process-wide slog.Logger at the configured level,
// writing structured text to stderr.
func NewLogger(c *Config) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	return slog.New(handler)
}
