package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/corsair-parley/parley/pkg/trusttxt"
)

func runTrustTxtCmd(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, "Usage: parley trust-txt <generate|validate|discover> [flags]")
		return 2
	}
	switch args[0] {
	case "generate":
		return runTrustTxtGenerateCmd(args[1:], stdout, stderr)
	case "validate":
		return runTrustTxtValidateCmd(args[1:], stdout, stderr)
	case "discover":
		return runTrustTxtDiscoverCmd(args[1:], stdout, stderr)
	case "--help", "-h":
		fmt.Fprintln(stdout, "Usage: parley trust-txt <generate|validate|discover> [flags]")
		return 0
	default:
		fmt.Fprintf(stderr, "Unknown trust-txt subcommand: %s\n", args[0])
		return 2
	}
}

// cpoeManifest is the shape of a --cpoes batch-generation manifest file,
// letting callers describe a directory of already-issued credentials
// without repeating --cpoe-url once per file.
type cpoeManifest struct {
	Did        string   `yaml:"did"`
	Catalog    string   `yaml:"catalog"`
	Frameworks []string `yaml:"frameworks"`
	Contact    string   `yaml:"contact"`
}

func loadCPOEManifest(dir string) (*cpoeManifest, []string, error) {
	manifestPath := filepath.Join(dir, "manifest.yaml")
	raw, err := os.ReadFile(manifestPath)
	if err != nil {
		return nil, nil, fmt.Errorf("parley: read manifest %s: %w", manifestPath, err)
	}
	var manifest cpoeManifest
	if err := yaml.Unmarshal(raw, &manifest); err != nil {
		return nil, nil, fmt.Errorf("parley: parse manifest %s: %w", manifestPath, err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("parley: read cpoes dir %s: %w", dir, err)
	}
	var urls []string
	for _, e := range entries {
		if e.IsDir() || e.Name() == "manifest.yaml" {
			continue
		}
		if strings.HasSuffix(e.Name(), ".jwt") || strings.HasSuffix(e.Name(), ".json") {
			urls = append(urls, filepath.Join(dir, e.Name()))
		}
	}
	return &manifest, urls, nil
}

func runTrustTxtGenerateCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("trust-txt generate", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		did           string
		cpoeURLs      stringSliceFlag
		catalog       string
		frameworksCSV string
		contact       string
		cpoesDir      string
		baseURL       string
		outPath       string
	)
	cmd.StringVar(&did, "did", "", "Organization DID (REQUIRED unless --cpoes supplies one)")
	cmd.Var(&cpoeURLs, "cpoe-url", "CPOE credential URL or path (repeatable)")
	cmd.StringVar(&catalog, "catalog", "", "Compliance catalog URL or path")
	cmd.StringVar(&frameworksCSV, "frameworks", "", "Comma-separated frameworks covered")
	cmd.StringVar(&contact, "contact", "", "Contact URL or mailto:")
	cmd.StringVar(&cpoesDir, "cpoes", "", "Directory of a manifest.yaml plus issued credential files, used instead of --did/--cpoe-url/--frameworks")
	cmd.StringVar(&baseURL, "base-url", "", "Base URL used to rewrite local CPOE/catalog paths to absolute URLs")
	cmd.StringVar(&outPath, "output", "-", "Output path ('-' for stdout)")

	if err := cmd.Parse(args); err != nil {
		return 2
	}

	opts := trusttxt.GenerateOptions{
		DID:        did,
		CPOEURLs:   []string(cpoeURLs),
		Catalog:    catalog,
		Frameworks: splitCSV(frameworksCSV),
		Contact:    contact,
		BaseURL:    baseURL,
	}

	if cpoesDir != "" {
		manifest, urls, err := loadCPOEManifest(cpoesDir)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		if opts.DID == "" {
			opts.DID = manifest.Did
		}
		if opts.Catalog == "" {
			opts.Catalog = manifest.Catalog
		}
		if len(opts.Frameworks) == 0 {
			opts.Frameworks = manifest.Frameworks
		}
		if opts.Contact == "" {
			opts.Contact = manifest.Contact
		}
		opts.CPOEURLs = append(opts.CPOEURLs, urls...)
	}

	if opts.DID == "" {
		fmt.Fprintln(stderr, "Error: --did is required (directly or via --cpoes manifest.yaml)")
		cmd.Usage()
		return 2
	}

	doc := trusttxt.Generate(opts)
	if err := writeOutput(stdout, outPath, []byte(doc)); err != nil {
		fmt.Fprintf(stderr, "Error writing output: %v\n", err)
		return 1
	}
	return 0
}

func runTrustTxtValidateCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("trust-txt validate", flag.ContinueOnError)
	cmd.SetOutput(stderr)
	var jsonOutput bool
	cmd.BoolVar(&jsonOutput, "json", false, "Emit validation errors as JSON")
	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if cmd.NArg() == 0 {
		fmt.Fprintln(stderr, "Usage: parley trust-txt validate <file>")
		return 2
	}

	raw, err := readInput(cmd.Arg(0))
	if err != nil {
		fmt.Fprintf(stderr, "Error reading %s: %v\n", cmd.Arg(0), err)
		return 1
	}

	errs := trusttxt.Validate(strings.NewReader(string(raw)))
	if jsonOutput {
		messages := make([]string, len(errs))
		for i, e := range errs {
			messages[i] = e.Error()
		}
		data, _ := json.MarshalIndent(map[string]interface{}{"valid": len(errs) == 0, "errors": messages}, "", "  ")
		fmt.Fprintln(stdout, string(data))
	} else if len(errs) == 0 {
		fmt.Fprintln(stdout, "VALID")
	} else {
		for _, e := range errs {
			fmt.Fprintln(stdout, e.Error())
		}
	}
	if len(errs) > 0 {
		return 1
	}
	return 0
}

func runTrustTxtDiscoverCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("trust-txt discover", flag.ContinueOnError)
	cmd.SetOutput(stderr)
	var timeoutMS int
	var jsonOutput bool
	cmd.IntVar(&timeoutMS, "timeout-ms", 5000, "Fetch timeout in milliseconds")
	cmd.BoolVar(&jsonOutput, "json", false, "Emit the discovered document as JSON")
	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if cmd.NArg() == 0 {
		fmt.Fprintln(stderr, "Usage: parley trust-txt discover <host>")
		return 2
	}

	discoverer := trusttxt.NewDiscoverer(time.Duration(timeoutMS) * time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeoutMS)*time.Millisecond)
	defer cancel()

	doc, err := discoverer.Discover(ctx, cmd.Arg(0))
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	if jsonOutput {
		data, _ := json.MarshalIndent(doc, "", "  ")
		fmt.Fprintln(stdout, string(data))
	} else {
		fmt.Fprintf(stdout, "DID: %s\n", doc.DID)
		for _, c := range doc.CPOEs {
			fmt.Fprintf(stdout, "CPOE: %s\n", c)
		}
		if doc.Catalog != "" {
			fmt.Fprintf(stdout, "CATALOG: %s\n", doc.Catalog)
		}
		if len(doc.Frameworks) > 0 {
			fmt.Fprintf(stdout, "Frameworks: %s\n", strings.Join(doc.Frameworks, ", "))
		}
		if doc.Contact != "" {
			fmt.Fprintf(stdout, "Contact: %s\n", doc.Contact)
		}
	}
	return 0
}

// stringSliceFlag accumulates repeated -flag=value occurrences into a slice,
// the standard flag.Value pattern for repeatable string flags.
type stringSliceFlag []string

func (s *stringSliceFlag) String() string {
	if s == nil {
		return ""
	}
	return strings.Join(*s, ",")
}

func (s *stringSliceFlag) Set(value string) error {
	*s = append(*s, value)
	return nil
}
