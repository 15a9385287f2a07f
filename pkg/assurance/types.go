// Package assurance implements the normalization and assurance-ladder
// scoring engine described in spec.md §4.4: eight ingested-document
// dialects are mapped to canonical control evidence, scored across seven
// dimensions, rolled up into an L0-L4 declared level, and gated against
// deterministic anti-gaming safeguards.
package assurance

import "time"

// ControlStatus is the status an IngestedControl was found in by its
// source tool or assessor.
type ControlStatus string

const (
	StatusEffective  ControlStatus = "effective"
	StatusIneffective ControlStatus = "ineffective"
	StatusNotTested  ControlStatus = "not-tested"
)

// Severity is the raw, tool-reported severity of a control.
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
	SeverityLow      Severity = "LOW"
)

// DocumentSource is one of the eight (plus manual/json) ingestion dialects
// spec.md §3 names.
type DocumentSource string

const (
	SourceSOC2          DocumentSource = "soc2"
	SourceISO27001      DocumentSource = "iso27001"
	SourceProwler       DocumentSource = "prowler"
	SourceSecurityHub   DocumentSource = "securityhub"
	SourcePentest       DocumentSource = "pentest"
	SourceManual        DocumentSource = "manual"
	SourceJSON          DocumentSource = "json"
	SourceCISOAssistant DocumentSource = "ciso-assistant"
)

// FrameworkMapping links a control to a specific framework's control ID.
type FrameworkMapping struct {
	Framework string `json:"framework"`
	ControlID string `json:"controlId"`
}

// IngestedControl is a single control extracted from a source document
// (spec.md §3).
type IngestedControl struct {
	ID                string             `json:"id"`
	Description       string             `json:"description"`
	Status            ControlStatus      `json:"status"`
	Severity          *Severity          `json:"severity,omitempty"`
	Evidence          string             `json:"evidence,omitempty"`
	FrameworkMappings []FrameworkMapping `json:"frameworkMappings,omitempty"`
	AssuranceLevel    *int               `json:"assuranceLevel,omitempty"` // 0-4, per-control override
}

// AssessmentContext carries optional scoring context for a document.
type AssessmentContext struct {
	TechStack            []string `json:"techStack,omitempty"`
	CompensatingControls []string `json:"compensatingControls,omitempty"`
	ScopeGaps            []string `json:"scopeGaps,omitempty"`
	ScopeCoverage        string   `json:"scopeCoverage,omitempty"`
}

// IngestedDocument is the canonical "ingested document" structure every
// external parser emits (spec.md §1, §3).
type IngestedDocument struct {
	Source             DocumentSource      `json:"source"`
	Title              string              `json:"title"`
	Issuer             string              `json:"issuer"`
	Date               string              `json:"date"` // ISO-8601
	Scope              string              `json:"scope"`
	Auditor            string              `json:"auditor,omitempty"`
	ReportType         string              `json:"reportType,omitempty"`
	RawHash            string              `json:"rawHash,omitempty"` // SHA-256 of raw source text
	Controls           []IngestedControl   `json:"controls"`
	ToolAssuranceLevel int                 `json:"toolAssuranceLevel"` // 0, 1, or 2
	AssessmentContext  *AssessmentContext  `json:"assessmentContext,omitempty"`
	AssessorNotes      string              `json:"assessorNotes,omitempty"`
	ExternalMethodology *float64           `json:"externalMethodologyScore,omitempty"` // [0,1] override
	ExternalBias        *float64           `json:"externalBiasScore,omitempty"`        // [0,1] override, consistency
}

// NormalizedStatus is the canonical control status the scorer consumes.
type NormalizedStatus string

const (
	NPass  NormalizedStatus = "pass"
	NFail  NormalizedStatus = "fail"
	NSkip  NormalizedStatus = "skip"
	NError NormalizedStatus = "error"
)

// NormalizedSeverity is the canonical lower-case severity.
type NormalizedSeverity string

const (
	NSevCritical NormalizedSeverity = "critical"
	NSevHigh     NormalizedSeverity = "high"
	NSevMedium   NormalizedSeverity = "medium"
	NSevLow      NormalizedSeverity = "low"
	NSevInfo     NormalizedSeverity = "info"
)

// Provenance is the origin authority of a control's assurance claim.
type Provenance string

const (
	ProvenanceSelf    Provenance = "self"
	ProvenanceTool    Provenance = "tool"
	ProvenanceAuditor Provenance = "auditor"
)

// SourceRecord is the raw-tool record a CanonicalControlEvidence was
// derived from.
type SourceRecord struct {
	Tool      string `json:"tool"`
	RawID     string `json:"rawId"`
	RawStatus string `json:"rawStatus"`
	Timestamp string `json:"timestamp,omitempty"`
}

// EvidenceSummary carries the free-text evidence plus its content hash.
type EvidenceSummary struct {
	Text string `json:"text,omitempty"`
	Hash string `json:"hash,omitempty"`
}

// AssuranceRecord is a control's per-control assurance claim.
type AssuranceRecord struct {
	Level      int        `json:"level"`
	Provenance Provenance `json:"provenance"`
}

// CanonicalControlEvidence is the normalized form consumed by the scorer
// (spec.md §3).
type CanonicalControlEvidence struct {
	ID            string             `json:"id"`
	Status        NormalizedStatus   `json:"status"`
	Severity      NormalizedSeverity `json:"severity"`
	Source        SourceRecord       `json:"source"`
	FrameworkRefs []FrameworkMapping `json:"frameworkRefs"`
	Evidence      EvidenceSummary    `json:"evidence"`
	Assurance     AssuranceRecord    `json:"assurance"`
	EvidenceType  string             `json:"evidenceType"`
}

// NormalizedMetadata is the document-level metadata carried alongside
// normalized controls.
type NormalizedMetadata struct {
	Source             DocumentSource
	Title              string
	Issuer             string
	Date               string
	ParsedDate         time.Time
	HasValidDate       bool
	Scope              string
	Auditor            string
	ReportType         string
	ToolAssuranceLevel int
	AssessmentContext  *AssessmentContext
	AssessorNotes      string
	ExternalMethodology *float64
	ExternalBias        *float64
}

// NormalizedEvidence is the output of Normalize: a document's controls in
// canonical form plus its metadata.
type NormalizedEvidence struct {
	Controls []CanonicalControlEvidence
	Metadata NormalizedMetadata
}

// AssuranceLevel names for the L0-L4 ladder (spec.md §3).
const (
	L0Documented  = 0 // documented
	L1Configured  = 1 // configured
	L2Demonstrated = 2 // demonstrated
	L3Observed    = 3 // observed
	L4Attested    = 4 // attested
)
