package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/corsair-parley/parley/pkg/config"
)

func main() {
	os.Exit(Run(os.Args, os.Stdout, os.Stderr))
}

// Run is the testable entrypoint: a hand-rolled subcommand dispatcher
// over os.Args, matching the teacher's cmd/helm/main.go shape.
func Run(args []string, stdout, stderr io.Writer) int {
	slog.SetDefault(config.NewLogger(config.Load()))

	if len(args) < 2 {
		printUsage(stdout)
		return 2
	}

	switch args[1] {
	case "verify":
		return runVerifyCmd(args[2:], stdout, stderr)
	case "issue":
		return runIssueCmd(args[2:], stdout, stderr)
	case "chain":
		return runChainCmd(args[2:], stdout, stderr)
	case "trust-txt":
		return runTrustTxtCmd(args[2:], stdout, stderr)
	case "scitt":
		return runSCITTCmd(args[2:], stdout, stderr)
	case "help", "--help", "-h":
		printUsage(stdout)
		return 0
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n", args[1])
		printUsage(stderr)
		return 2
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "parley — compliance attestation and proof pipeline CLI")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "USAGE:")
	fmt.Fprintln(w, "  parley <command> [flags]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "COMMANDS:")
	fmt.Fprintln(w, "  verify     Verify a CPOE credential (JWT-VC or legacy v1 envelope)")
	fmt.Fprintln(w, "  issue      Normalize evidence, score it, and issue a CPOE credential")
	fmt.Fprintln(w, "  chain      Verify a root -> org-key-attestation -> CPOE trust chain")
	fmt.Fprintln(w, "  trust-txt  Generate, validate, or discover a trust.txt document")
	fmt.Fprintln(w, "  scitt      Register statements in and query a SCITT transparency log")
	fmt.Fprintln(w, "  help       Show this help")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Run 'parley <command> --help' for command-specific flags.")
}
