package main

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/corsair-parley/parley/pkg/trust/scitt"
)

func runSCITTCmd(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, "Usage: parley scitt <register|receipt|verify-receipt|list|profile> [flags]")
		return 2
	}
	switch args[0] {
	case "register":
		return runSCITTRegisterCmd(args[1:], stdout, stderr)
	case "receipt":
		return runSCITTReceiptCmd(args[1:], stdout, stderr)
	case "verify-receipt":
		return runSCITTVerifyReceiptCmd(args[1:], stdout, stderr)
	case "list":
		return runSCITTListCmd(args[1:], stdout, stderr)
	case "profile":
		return runSCITTProfileCmd(args[1:], stdout, stderr)
	case "--help", "-h":
		fmt.Fprintln(stdout, "Usage: parley scitt <register|receipt|verify-receipt|list|profile> [flags]")
		return 0
	default:
		fmt.Fprintf(stderr, "Unknown scitt subcommand: %s\n", args[0])
		return 2
	}
}

// loadRegistry opens the registry persisted at storePath (a JSON-encoded
// scitt.Snapshot), or starts a fresh one if the file doesn't exist yet.
// The CLI is the registry's only long-lived caller across invocations, so
// the store file stands in for the durable backing a server deployment
// would give the registry instead.
func loadSCITTRegistry(storePath, logID string, signPriv ed25519.PrivateKey) (*scitt.Registry, error) {
	raw, err := os.ReadFile(storePath)
	if err != nil {
		if os.IsNotExist(err) {
			return scitt.NewRegistry(logID, signPriv), nil
		}
		return nil, fmt.Errorf("parley: read scitt store %s: %w", storePath, err)
	}
	var snap scitt.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("parley: parse scitt store %s: %w", storePath, err)
	}
	return scitt.LoadRegistry(signPriv, snap), nil
}

func saveSCITTRegistry(storePath string, reg *scitt.Registry) error {
	data, err := json.MarshalIndent(reg.Snapshot(), "", "  ")
	if err != nil {
		return fmt.Errorf("parley: marshal scitt store: %w", err)
	}
	return os.WriteFile(storePath, data, 0o644)
}

func decodeSigningKey(b64 string) (ed25519.PrivateKey, error) {
	b, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, fmt.Errorf("parley: decode signing key: %w", err)
	}
	if len(b) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("parley: signing key has wrong length %d", len(b))
	}
	return ed25519.PrivateKey(b), nil
}

func runSCITTRegisterCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("scitt register", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		storePath    string
		logID        string
		signKeyB64   string
		statementPath string
		proofOnly    bool
		jsonOutput   bool
	)
	cmd.StringVar(&storePath, "store", "./parley-scitt.json", "Path to the registry's persisted state")
	cmd.StringVar(&logID, "log-id", "parley-transparency-log", "Log identifier stamped into receipts")
	cmd.StringVar(&signKeyB64, "sign-key", "", "Base64-encoded Ed25519 private key the log signs receipts with (REQUIRED)")
	cmd.StringVar(&statementPath, "statement", "-", "Path to the signed statement (a CPOE JWT) to register ('-' for stdin)")
	cmd.BoolVar(&proofOnly, "proof-only", false, "Register a hash-only proof, omitting the statement text")
	cmd.BoolVar(&jsonOutput, "json", false, "Emit the registration as JSON")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if signKeyB64 == "" {
		fmt.Fprintln(stderr, "Error: --sign-key is required")
		cmd.Usage()
		return 2
	}

	signPriv, err := decodeSigningKey(signKeyB64)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	reg, err := loadSCITTRegistry(storePath, logID, signPriv)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	raw, err := readInput(statementPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error reading statement: %v\n", err)
		return 1
	}

	reg2, err := reg.Register(strings.TrimSpace(string(raw)), scitt.RegisterOptions{ProofOnly: proofOnly})
	if err != nil {
		fmt.Fprintf(stderr, "Error registering statement: %v\n", err)
		return 1
	}
	if err := saveSCITTRegistry(storePath, reg); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	if jsonOutput {
		data, _ := json.MarshalIndent(map[string]interface{}{
			"entryId":   reg2.Entry.EntryID,
			"treeSize":  reg2.Entry.TreeSize,
			"treeHash":  reg2.Entry.TreeHash,
			"receipt":   base64.StdEncoding.EncodeToString(reg2.ReceiptCBOR),
		}, "", "  ")
		fmt.Fprintln(stdout, string(data))
	} else {
		fmt.Fprintf(stdout, "entryId=%s treeSize=%d treeHash=%s\n", reg2.Entry.EntryID, reg2.Entry.TreeSize, reg2.Entry.TreeHash)
	}
	return 0
}

func runSCITTReceiptCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("scitt receipt", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		storePath  string
		logID      string
		signKeyB64 string
		entryID    string
	)
	cmd.StringVar(&storePath, "store", "./parley-scitt.json", "Path to the registry's persisted state")
	cmd.StringVar(&logID, "log-id", "parley-transparency-log", "Log identifier (must match the store)")
	cmd.StringVar(&signKeyB64, "sign-key", "", "Base64-encoded Ed25519 private key (REQUIRED, for loading the store)")
	cmd.StringVar(&entryID, "entry-id", "", "Entry id to fetch the receipt for (REQUIRED)")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if signKeyB64 == "" || entryID == "" {
		fmt.Fprintln(stderr, "Error: --sign-key and --entry-id are required")
		cmd.Usage()
		return 2
	}

	signPriv, err := decodeSigningKey(signKeyB64)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	reg, err := loadSCITTRegistry(storePath, logID, signPriv)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	receipt := reg.GetReceipt(entryID)
	if receipt == nil {
		fmt.Fprintf(stderr, "Error: unknown entry id %s\n", entryID)
		return 1
	}
	fmt.Fprintln(stdout, base64.StdEncoding.EncodeToString(receipt))
	return 0
}

func runSCITTVerifyReceiptCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("scitt verify-receipt", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		storePath  string
		logID      string
		signKeyB64 string
		entryID    string
		logPubB64  string
	)
	cmd.StringVar(&storePath, "store", "./parley-scitt.json", "Path to the registry's persisted state")
	cmd.StringVar(&logID, "log-id", "parley-transparency-log", "Log identifier (must match the store)")
	cmd.StringVar(&signKeyB64, "sign-key", "", "Base64-encoded Ed25519 private key (REQUIRED, for loading the store)")
	cmd.StringVar(&entryID, "entry-id", "", "Entry id to verify (REQUIRED)")
	cmd.StringVar(&logPubB64, "log-pub", "", "Base64-encoded Ed25519 log public key (REQUIRED)")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if signKeyB64 == "" || entryID == "" || logPubB64 == "" {
		fmt.Fprintln(stderr, "Error: --sign-key, --entry-id, and --log-pub are required")
		cmd.Usage()
		return 2
	}

	signPriv, err := decodeSigningKey(signKeyB64)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	logPub, err := decodePublicKey(logPubB64)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	reg, err := loadSCITTRegistry(storePath, logID, signPriv)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	if reg.VerifyReceipt(entryID, logPub) {
		fmt.Fprintln(stdout, "VALID")
		return 0
	}
	fmt.Fprintln(stdout, "INVALID")
	return 1
}

func runSCITTListCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("scitt list", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		storePath  string
		logID      string
		signKeyB64 string
		limit      int
		offset     int
		issuer     string
		framework  string
		jsonOutput bool
	)
	cmd.StringVar(&storePath, "store", "./parley-scitt.json", "Path to the registry's persisted state")
	cmd.StringVar(&logID, "log-id", "parley-transparency-log", "Log identifier (must match the store)")
	cmd.StringVar(&signKeyB64, "sign-key", "", "Base64-encoded Ed25519 private key (REQUIRED, for loading the store)")
	cmd.IntVar(&limit, "limit", 20, "Maximum entries to return")
	cmd.IntVar(&offset, "offset", 0, "Entries to skip, newest-first")
	cmd.StringVar(&issuer, "issuer", "", "Filter by issuer DID")
	cmd.StringVar(&framework, "framework", "", "Filter by framework")
	cmd.BoolVar(&jsonOutput, "json", false, "Emit entries as JSON")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if signKeyB64 == "" {
		fmt.Fprintln(stderr, "Error: --sign-key is required")
		cmd.Usage()
		return 2
	}

	signPriv, err := decodeSigningKey(signKeyB64)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	reg, err := loadSCITTRegistry(storePath, logID, signPriv)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	entries := reg.ListEntries(scitt.ListFilter{Limit: limit, Offset: offset, Issuer: issuer, Framework: framework})
	if jsonOutput {
		data, _ := json.MarshalIndent(entries, "", "  ")
		fmt.Fprintln(stdout, string(data))
	} else {
		for _, e := range entries {
			fmt.Fprintf(stdout, "%s issuer=%s treeSize=%d registered=%s\n", e.Entry.EntryID, e.Issuer, e.Entry.TreeSize, e.Entry.RegistrationTime)
		}
	}
	return 0
}

func runSCITTProfileCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("scitt profile", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		storePath  string
		logID      string
		signKeyB64 string
		did        string
		beforeStr  string
		jsonOutput bool
	)
	cmd.StringVar(&storePath, "store", "./parley-scitt.json", "Path to the registry's persisted state")
	cmd.StringVar(&logID, "log-id", "parley-transparency-log", "Log identifier (must match the store)")
	cmd.StringVar(&signKeyB64, "sign-key", "", "Base64-encoded Ed25519 private key (REQUIRED, for loading the store)")
	cmd.StringVar(&did, "did", "", "Issuer DID to aggregate (REQUIRED)")
	cmd.StringVar(&beforeStr, "before", "", "RFC3339 cursor: only consider registrations strictly before this time")
	cmd.BoolVar(&jsonOutput, "json", false, "Emit the profile as JSON")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if signKeyB64 == "" || did == "" {
		fmt.Fprintln(stderr, "Error: --sign-key and --did are required")
		cmd.Usage()
		return 2
	}

	signPriv, err := decodeSigningKey(signKeyB64)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	reg, err := loadSCITTRegistry(storePath, logID, signPriv)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	var before *time.Time
	if beforeStr != "" {
		t, err := time.Parse(time.RFC3339, beforeStr)
		if err != nil {
			fmt.Fprintf(stderr, "Error: invalid --before: %v\n", err)
			return 2
		}
		before = &t
	}

	profile := reg.GetIssuerProfile(did, before)
	if jsonOutput {
		data, _ := json.MarshalIndent(profile, "", "  ")
		fmt.Fprintln(stdout, string(data))
	} else {
		fmt.Fprintf(stdout, "did=%s total=%d avgScore=%.2f lastRegistration=%s frameworks=%s\n",
			profile.DID, profile.TotalCount, profile.AverageOverallScore, profile.LastRegistration, strings.Join(profile.Frameworks, ","))
	}
	return 0
}
