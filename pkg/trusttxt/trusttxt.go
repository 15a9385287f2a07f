// Package trusttxt parses, validates, and generates trust.txt documents:
// the line-oriented discovery file an organization publishes at
// https://<host>/.well-known/trust.txt pointing verifiers at its DID,
// CPOE credentials, and compliance catalog.
package trusttxt

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strings"
)

// knownDirectives are the only directive names validate accepts.
var knownDirectives = map[string]bool{
	"DID":        true,
	"CPOE":       true,
	"CATALOG":    true,
	"Frameworks": true,
	"Contact":    true,
}

// Document is a parsed trust.txt file.
type Document struct {
	DID        string
	CPOEs      []string
	Catalog    string
	Frameworks []string
	Contact    string
}

// Directive is one raw line of a trust.txt file, preserved for validation
// error reporting and round-tripping unknown-but-present directives.
type Directive struct {
	Line  int
	Name  string
	Value string
}

// ParseError reports a malformed or unknown directive at a specific line.
type ParseError struct {
	Line   int
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("trust.txt:%d: %s", e.Line, e.Reason)
}

// Parse reads a trust.txt document, collecting every recognized directive.
// Unknown directives are silently skipped by Parse; use Validate to reject
// them.
func Parse(r io.Reader) (*Document, error) {
	directives, err := scanDirectives(r)
	if err != nil {
		return nil, err
	}
	doc := &Document{}
	for _, d := range directives {
		switch d.Name {
		case "DID":
			doc.DID = d.Value
		case "CPOE":
			doc.CPOEs = append(doc.CPOEs, d.Value)
		case "CATALOG":
			doc.Catalog = d.Value
		case "Frameworks":
			for _, f := range strings.Split(d.Value, ",") {
				f = strings.TrimSpace(f)
				if f != "" {
					doc.Frameworks = append(doc.Frameworks, f)
				}
			}
		case "Contact":
			doc.Contact = d.Value
		}
	}
	return doc, nil
}

func scanDirectives(r io.Reader) ([]Directive, error) {
	var out []Directive
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		idx := strings.Index(line, ":")
		if idx < 0 {
			return nil, &ParseError{Line: lineNo, Reason: "missing ':' separator"}
		}
		name := strings.TrimSpace(line[:idx])
		value := strings.TrimSpace(line[idx+1:])
		out = append(out, Directive{Line: lineNo, Name: name, Value: value})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("trusttxt: scan: %w", err)
	}
	return out, nil
}

// Validate re-scans raw for unknown directives and structural errors,
// returning every violation found rather than stopping at the first.
func Validate(r io.Reader) []error {
	directives, err := scanDirectives(r)
	if err != nil {
		return []error{err}
	}
	var errs []error
	sawDID := false
	for _, d := range directives {
		if !knownDirectives[d.Name] {
			errs = append(errs, &ParseError{Line: d.Line, Reason: fmt.Sprintf("unknown directive %q", d.Name)})
			continue
		}
		if d.Name == "DID" {
			sawDID = true
			if !strings.HasPrefix(d.Value, "did:web:") {
				errs = append(errs, &ParseError{Line: d.Line, Reason: "DID value must be a did:web identifier"})
			}
		}
	}
	if !sawDID {
		errs = append(errs, fmt.Errorf("trusttxt: missing required DID directive"))
	}
	return errs
}

// GenerateOptions controls trust.txt generation.
type GenerateOptions struct {
	DID        string
	CPOEURLs   []string
	Catalog    string
	Frameworks []string
	Contact    string
	BaseURL    string // rewrites local CPOE file paths to absolute URLs
}

// Generate renders a trust.txt document from opts. Local (non-URL) CPOE
// paths are rewritten against BaseURL when supplied, per spec.md §6.
func Generate(opts GenerateOptions) string {
	var b strings.Builder
	if opts.DID != "" {
		fmt.Fprintf(&b, "DID: %s\n", opts.DID)
	}
	for _, u := range opts.CPOEURLs {
		fmt.Fprintf(&b, "CPOE: %s\n", rewriteLocalPath(u, opts.BaseURL))
	}
	if opts.Catalog != "" {
		fmt.Fprintf(&b, "CATALOG: %s\n", rewriteLocalPath(opts.Catalog, opts.BaseURL))
	}
	if len(opts.Frameworks) > 0 {
		frameworks := append([]string(nil), opts.Frameworks...)
		sort.Strings(frameworks)
		fmt.Fprintf(&b, "Frameworks: %s\n", strings.Join(frameworks, ", "))
	}
	if opts.Contact != "" {
		fmt.Fprintf(&b, "Contact: %s\n", opts.Contact)
	}
	return b.String()
}

func rewriteLocalPath(path, baseURL string) string {
	if baseURL == "" || strings.Contains(path, "://") {
		return path
	}
	base := strings.TrimRight(baseURL, "/")
	rel := strings.TrimLeft(path, "/")
	return base + "/" + rel
}
