package trusttxt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleDoc = `# acme.com trust.txt

DID: did:web:acme.com
CPOE: https://acme.com/compliance/soc2-2026-q1.jwt
CATALOG: https://acme.com/compliance/catalog.json
Frameworks: SOC2, ISO27001
Contact: compliance@acme.com
`

func TestParseCollectsDirectivesIgnoringCommentsAndBlankLines(t *testing.T) {
	doc, err := Parse(strings.NewReader(sampleDoc))
	require.NoError(t, err)
	assert.Equal(t, "did:web:acme.com", doc.DID)
	assert.Equal(t, []string{"https://acme.com/compliance/soc2-2026-q1.jwt"}, doc.CPOEs)
	assert.Equal(t, "https://acme.com/compliance/catalog.json", doc.Catalog)
	assert.Equal(t, []string{"SOC2", "ISO27001"}, doc.Frameworks)
	assert.Equal(t, "compliance@acme.com", doc.Contact)
}

func TestParseMultipleCPOEDirectives(t *testing.T) {
	src := "DID: did:web:acme.com\nCPOE: https://acme.com/a.jwt\nCPOE: https://acme.com/b.jwt\n"
	doc, err := Parse(strings.NewReader(src))
	require.NoError(t, err)
	assert.Equal(t, []string{"https://acme.com/a.jwt", "https://acme.com/b.jwt"}, doc.CPOEs)
}

func TestParseRejectsLineWithoutColon(t *testing.T) {
	_, err := Parse(strings.NewReader("DID did:web:acme.com\n"))
	require.Error(t, err)
	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 1, pe.Line)
}

func TestValidateRejectsUnknownDirective(t *testing.T) {
	src := "DID: did:web:acme.com\nBogus: nonsense\n"
	errs := Validate(strings.NewReader(src))
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "unknown directive")
}

func TestValidateRequiresDID(t *testing.T) {
	errs := Validate(strings.NewReader("Contact: foo@bar.com\n"))
	require.NotEmpty(t, errs)
}

func TestValidateRejectsNonDidWebDID(t *testing.T) {
	errs := Validate(strings.NewReader("DID: not-a-did\n"))
	require.NotEmpty(t, errs)
}

func TestGenerateRewritesLocalPathsAgainstBaseURL(t *testing.T) {
	out := Generate(GenerateOptions{
		DID:        "did:web:acme.com",
		CPOEURLs:   []string{"/compliance/soc2.jwt"},
		Frameworks: []string{"ISO27001", "SOC2"},
		BaseURL:    "https://acme.com",
	})
	assert.Contains(t, out, "DID: did:web:acme.com")
	assert.Contains(t, out, "CPOE: https://acme.com/compliance/soc2.jwt")
	assert.Contains(t, out, "Frameworks: ISO27001, SOC2")
}

func TestGenerateLeavesAbsoluteURLsUnchanged(t *testing.T) {
	out := Generate(GenerateOptions{
		DID:      "did:web:acme.com",
		CPOEURLs: []string{"https://cdn.acme.com/soc2.jwt"},
		BaseURL:  "https://acme.com",
	})
	assert.Contains(t, out, "CPOE: https://cdn.acme.com/soc2.jwt")
}

func TestGenerateRoundTripsThroughParse(t *testing.T) {
	out := Generate(GenerateOptions{
		DID:        "did:web:acme.com",
		CPOEURLs:   []string{"https://acme.com/a.jwt"},
		Catalog:    "https://acme.com/catalog.json",
		Frameworks: []string{"SOC2"},
		Contact:    "security@acme.com",
	})
	doc, err := Parse(strings.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, "did:web:acme.com", doc.DID)
	assert.Equal(t, "security@acme.com", doc.Contact)
}
