package main

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/corsair-parley/parley/pkg/trust"
)

func decodeEncryptionKey(b64 string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, fmt.Errorf("parley: decode encryption key: %w", err)
	}
	return key, nil
}

func readInput(path string) ([]byte, error) {
	if path == "" || path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

func decodeTrustedKeys(csv string) ([]ed25519.PublicKey, error) {
	var keys []ed25519.PublicKey
	for _, raw := range strings.Split(csv, ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		b, err := base64.StdEncoding.DecodeString(raw)
		if err != nil {
			return nil, fmt.Errorf("parley: decode trusted key: %w", err)
		}
		if len(b) != ed25519.PublicKeySize {
			return nil, fmt.Errorf("parley: trusted key has wrong length %d", len(b))
		}
		keys = append(keys, ed25519.PublicKey(b))
	}
	return keys, nil
}

func runVerifyCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("verify", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		credentialPath string
		trustedKeysCSV string
		viaDID         bool
		didTimeoutMS   int
		jsonOutput     bool
	)
	cmd.StringVar(&credentialPath, "credential", "-", "Path to the credential file ('-' for stdin)")
	cmd.StringVar(&trustedKeysCSV, "trusted-keys", "", "Comma-separated base64-encoded Ed25519 public keys")
	cmd.BoolVar(&viaDID, "via-did", false, "Resolve the signer's key fresh from its did:web document instead of --trusted-keys")
	cmd.IntVar(&didTimeoutMS, "did-timeout-ms", 5000, "Timeout for DID resolution, in milliseconds (with --via-did)")
	cmd.BoolVar(&jsonOutput, "json", false, "Emit the verification result as JSON")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if !viaDID && trustedKeysCSV == "" {
		fmt.Fprintln(stderr, "Error: one of --trusted-keys or --via-did is required")
		cmd.Usage()
		return 2
	}

	raw, err := readInput(credentialPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error reading credential: %v\n", err)
		return 1
	}

	now := time.Now()
	var result trust.VerificationResult
	if viaDID {
		resolver := trust.NewResolver(time.Duration(didTimeoutMS) * time.Millisecond)
		ctx, cancel := context.WithTimeout(context.Background(), time.Duration(didTimeoutMS)*time.Millisecond)
		defer cancel()
		result = trust.VerifyViaDID(ctx, resolver, strings.TrimSpace(string(raw)), now)
	} else {
		keys, err := decodeTrustedKeys(trustedKeysCSV)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 2
		}
		result = trust.VerifyAny(raw, keys, now)
	}

	printVerificationResult(stdout, result, jsonOutput)
	if !result.Valid {
		slog.Warn("credential verification failed", "reason", result.Reason, "issuer", result.Issuer)
		return 1
	}
	slog.Info("credential verified", "issuer", result.Issuer, "tier", result.IssuerTier)
	return 0
}

func printVerificationResult(w io.Writer, result trust.VerificationResult, jsonOutput bool) {
	if jsonOutput {
		data, _ := json.MarshalIndent(map[string]interface{}{
			"valid":      result.Valid,
			"reason":     result.Reason,
			"issuerTier": result.IssuerTier,
			"issuer":     result.Issuer,
		}, "", "  ")
		fmt.Fprintln(w, string(data))
		return
	}
	if result.Valid {
		fmt.Fprintf(w, "VALID issuer=%s tier=%s\n", result.Issuer, result.IssuerTier)
		return
	}
	fmt.Fprintf(w, "INVALID reason=%s tier=%s\n", result.Reason, result.IssuerTier)
}
