// Package cryptocore implements the Ed25519/SHA-256/COSE_Sign1 primitives
// described in spec.md §4.2. No bespoke cryptography is assembled beyond
// these published standards (spec.md §1 Non-goals).
package cryptocore

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"
	"fmt"
)

// GenerateEd25519Keypair creates a fresh Ed25519 keypair and returns it as
// PKCS8/PEM-encoded private key and PKIX/PEM-encoded public key, matching
// the PEM-in/PEM-out boundary spec.md §4.2 specifies.
func GenerateEd25519Keypair() (pubPEM, privPEM []byte, err error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("cryptocore: key generation failed: %w", err)
	}
	pubPEM, err = EncodePublicKeyPEM(pub)
	if err != nil {
		return nil, nil, err
	}
	privPEM, err = EncodePrivateKeyPEM(priv)
	if err != nil {
		return nil, nil, err
	}
	return pubPEM, privPEM, nil
}

// EncodePrivateKeyPEM wraps an Ed25519 private key in a PKCS8 PEM block.
func EncodePrivateKeyPEM(priv ed25519.PrivateKey) ([]byte, error) {
	der, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return nil, fmt.Errorf("cryptocore: marshal private key: %w", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}), nil
}

// EncodePublicKeyPEM wraps an Ed25519 public key in a PKIX PEM block.
func EncodePublicKeyPEM(pub ed25519.PublicKey) ([]byte, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return nil, fmt.Errorf("cryptocore: marshal public key: %w", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}), nil
}

// DecodePrivateKeyPEM recovers an Ed25519 private key from a PKCS8 PEM block.
func DecodePrivateKeyPEM(pemBytes []byte) (ed25519.PrivateKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, fmt.Errorf("cryptocore: no PEM block found")
	}
	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("cryptocore: parse private key: %w", err)
	}
	priv, ok := key.(ed25519.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("cryptocore: PEM block does not contain an Ed25519 private key")
	}
	return priv, nil
}

// DecodePublicKeyPEM recovers an Ed25519 public key from a PKIX PEM block.
func DecodePublicKeyPEM(pemBytes []byte) (ed25519.PublicKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, fmt.Errorf("cryptocore: no PEM block found")
	}
	key, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("cryptocore: parse public key: %w", err)
	}
	pub, ok := key.(ed25519.PublicKey)
	if !ok {
		return nil, fmt.Errorf("cryptocore: PEM block does not contain an Ed25519 public key")
	}
	return pub, nil
}

// Sign returns the 64-byte Ed25519 signature of data under priv.
func Sign(priv ed25519.PrivateKey, data []byte) []byte {
	return ed25519.Sign(priv, data)
}

// Verify reports whether sig is a valid Ed25519 signature of data under pub.
// It never panics: a malformed key or signature simply yields false.
func Verify(pub ed25519.PublicKey, data, sig []byte) bool {
	if len(pub) != ed25519.PublicKeySize || len(sig) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(pub, data, sig)
}

// SHA256 returns the 32-byte SHA-256 digest of data.
func SHA256(data []byte) [32]byte {
	return sha256.Sum256(data)
}
