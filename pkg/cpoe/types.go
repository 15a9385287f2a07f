// Package cpoe builds and signs Corsair Proof-of-Operational-Effectiveness
// credentials: JWT-VC issuance (and the legacy v1 JSON envelope), recursive
// subject sanitization, and the optional process-provenance receipt chain
// (spec.md §4.5).
package cpoe

import "github.com/corsair-parley/parley/pkg/assurance"

// Scope describes what the credential attests over.
type Scope struct {
	Human             string   `json:"human,omitempty"`
	Providers         []string `json:"providers,omitempty"`
	ResourceCount     int      `json:"resourceCount,omitempty"`
	FrameworksCovered []string `json:"frameworksCovered,omitempty"`
}

// Provenance describes the origin of the underlying evidence.
type Provenance struct {
	Source               string             `json:"source"`
	SourceIdentity        string            `json:"sourceIdentity"`
	SourceDocumentHash     string           `json:"sourceDocumentHash,omitempty"`
	Date                   string           `json:"date"`
	EvidenceTypeDistribution map[string]float64 `json:"evidenceTypeDistribution,omitempty"`
}

// Summary is the control pass/fail rollup embedded in every CPOE.
type Summary struct {
	ControlsTested  int `json:"controlsTested"`
	ControlsPassed  int `json:"controlsPassed"`
	ControlsFailed  int `json:"controlsFailed"`
	OverallScore    int `json:"overallScore"`
}

// EvidenceChainDescriptor links a CPOE to the evidence-chain record it was
// derived from.
type EvidenceChainDescriptor struct {
	HashChainRoot string `json:"hashChainRoot"`
	RecordCount   int    `json:"recordCount"`
	ChainVerified bool   `json:"chainVerified"`
}

// FrameworkBreakdown is a per-framework pass/fail tally.
type FrameworkBreakdown struct {
	Framework string `json:"framework"`
	Tested    int    `json:"tested"`
	Passed    int    `json:"passed"`
}

// AssuranceEnrichment carries the optional L0-L4 breakdown, dimension
// vector, evidence type list, and rule trace.
type AssuranceEnrichment struct {
	DeclaredLevel int                    `json:"declaredLevel"`
	Breakdown     map[string]int         `json:"breakdown,omitempty"`
	Dimensions    assurance.Dimensions    `json:"dimensions"`
	EvidenceTypes []string               `json:"evidenceTypes,omitempty"`
	ObservationPeriod string             `json:"observationPeriod,omitempty"`
	RuleTrace     []string               `json:"ruleTrace,omitempty"`
	Safeguards    []string               `json:"safeguards,omitempty"`
}

// ProcessProvenanceDescriptor links a CPOE to its in-toto/SLSA-shaped
// receipt chain (spec.md §4.5).
type ProcessProvenanceDescriptor struct {
	ChainDigest        string `json:"chainDigest"`
	ReproducibleSteps  int    `json:"reproducibleSteps"`
	AttestedSteps      int    `json:"attestedSteps"`
}

// CredentialSubject is the open, extensible credentialSubject of a CPOE
// (spec.md §9: extension fields are preserved opaquely).
type CredentialSubject struct {
	Scope              Scope                        `json:"scope"`
	Provenance         Provenance                   `json:"provenance"`
	Summary            Summary                       `json:"summary"`
	EvidenceChain       *EvidenceChainDescriptor     `json:"evidenceChain,omitempty"`
	FrameworkBreakdown  []FrameworkBreakdown         `json:"frameworkBreakdown,omitempty"`
	ThreatModelSummary  string                       `json:"threatModelSummary,omitempty"`
	Assurance           *AssuranceEnrichment         `json:"assurance,omitempty"`
	ProcessProvenance   *ProcessProvenanceDescriptor `json:"processProvenance,omitempty"`
	Extensions          map[string]interface{}       `json:"-"`
}

// VC is the verifiable-credential envelope nested under the JWT payload's
// "vc" claim.
type VC struct {
	Context           []string           `json:"@context"`
	Type              []string           `json:"type"`
	Issuer            string             `json:"issuer"`
	ValidFrom         string             `json:"validFrom"`
	ValidUntil        string             `json:"validUntil"`
	CredentialSubject CredentialSubject  `json:"credentialSubject"`
}

// Payload is the JWT payload of a CPOE, registered claims plus the vc and
// parley version claims (spec.md §3).
type Payload struct {
	Iss    string `json:"iss"`
	Sub    string `json:"sub"`
	Iat    int64  `json:"iat"`
	Exp    int64  `json:"exp"`
	Jti    string `json:"jti"`
	VC     VC     `json:"vc"`
	Parley string `json:"parley"`
}

const (
	ContextVCv2        = "https://www.w3.org/ns/credentials/v2"
	ContextCorsair     = "https://grcorsair.com/ns/credentials/v1"
	TypeVerifiableCredential = "VerifiableCredential"
	TypeCorsairCPOE    = "CorsairCPOE"
	ParleyVersion      = "2.1"
)
