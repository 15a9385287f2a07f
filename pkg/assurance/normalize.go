package assurance

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// Normalize maps an IngestedDocument to its canonical NormalizedEvidence
// form, per spec.md §4.4.1.
func Normalize(doc IngestedDocument) NormalizedEvidence {
	controls := make([]CanonicalControlEvidence, 0, len(doc.Controls))
	for _, c := range doc.Controls {
		controls = append(controls, normalizeControl(c, doc))
	}

	parsed, ok := parseDate(doc.Date)

	return NormalizedEvidence{
		Controls: controls,
		Metadata: NormalizedMetadata{
			Source:              doc.Source,
			Title:               doc.Title,
			Issuer:               doc.Issuer,
			Date:                 doc.Date,
			ParsedDate:           parsed,
			HasValidDate:         ok,
			Scope:                doc.Scope,
			Auditor:              doc.Auditor,
			ReportType:           doc.ReportType,
			ToolAssuranceLevel:   doc.ToolAssuranceLevel,
			AssessmentContext:    doc.AssessmentContext,
			AssessorNotes:        doc.AssessorNotes,
			ExternalMethodology:  doc.ExternalMethodology,
			ExternalBias:         doc.ExternalBias,
		},
	}
}

func parseDate(s string) (time.Time, bool) {
	if strings.TrimSpace(s) == "" {
		return time.Time{}, false
	}
	layouts := []string{time.RFC3339, "2006-01-02T15:04:05Z07:00", "2006-01-02"}
	for _, l := range layouts {
		if t, err := time.Parse(l, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func normalizeStatus(s ControlStatus) NormalizedStatus {
	switch s {
	case StatusEffective:
		return NPass
	case StatusIneffective:
		return NFail
	case StatusNotTested:
		return NSkip
	default:
		return NSkip
	}
}

func normalizeSeverity(s *Severity) NormalizedSeverity {
	if s == nil {
		return NSevInfo
	}
	switch strings.ToUpper(string(*s)) {
	case string(SeverityCritical):
		return NSevCritical
	case string(SeverityHigh):
		return NSevHigh
	case string(SeverityMedium):
		return NSevMedium
	case string(SeverityLow):
		return NSevLow
	default:
		return NSevInfo
	}
}

// evidenceType maps (source, toolAssuranceLevel) to a canonical evidence
// type label, per the fixed table in spec.md §4.4.1.
func evidenceType(source DocumentSource, toolLevel int) string {
	switch source {
	case SourceProwler, SourceSecurityHub:
		return "scan"
	case SourceCISOAssistant:
		if toolLevel >= 2 {
			return "attestation"
		}
		return "scan"
	case SourceSOC2, SourceISO27001:
		return "attestation"
	case SourcePentest:
		return "test"
	case SourceManual:
		return "document"
	case SourceJSON:
		if toolLevel >= 1 {
			return "config"
		}
		return "document"
	default:
		return "document"
	}
}

func provenanceForSource(source DocumentSource, toolLevel int) Provenance {
	switch source {
	case SourceSOC2, SourceISO27001:
		return ProvenanceAuditor
	case SourceManual:
		return ProvenanceSelf
	default:
		if toolLevel == 0 {
			return ProvenanceSelf
		}
		return ProvenanceTool
	}
}

func normalizeControl(c IngestedControl, doc IngestedDocument) CanonicalControlEvidence {
	status := normalizeStatus(c.Status)
	severity := normalizeSeverity(c.Severity)

	refs := dedupeFrameworkMappings(c.FrameworkMappings)

	var evHash string
	if strings.TrimSpace(c.Evidence) != "" {
		h := sha256.Sum256([]byte(c.Evidence))
		evHash = hex.EncodeToString(h[:])
	}

	level := Level(c, doc.Source, doc)
	provenance := provenanceForSource(doc.Source, doc.ToolAssuranceLevel)
	if c.AssuranceLevel != nil {
		level = *c.AssuranceLevel
	}

	return CanonicalControlEvidence{
		ID:       c.ID,
		Status:   status,
		Severity: severity,
		Source: SourceRecord{
			Tool:      string(doc.Source),
			RawID:     c.ID,
			RawStatus: string(c.Status),
		},
		FrameworkRefs: refs,
		Evidence: EvidenceSummary{
			Text: c.Evidence,
			Hash: evHash,
		},
		Assurance: AssuranceRecord{
			Level:      level,
			Provenance: provenance,
		},
		EvidenceType: evidenceType(doc.Source, doc.ToolAssuranceLevel),
	}
}

func dedupeFrameworkMappings(in []FrameworkMapping) []FrameworkMapping {
	seen := make(map[string]bool, len(in))
	out := make([]FrameworkMapping, 0, len(in))
	for _, m := range in {
		key := m.Framework + "\x00" + m.ControlID
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, m)
	}
	return out
}

// Level computes the per-control assurance level per spec.md §4.4.2.
func Level(c IngestedControl, source DocumentSource, doc IngestedDocument) int {
	if c.Status != StatusEffective {
		return 0
	}
	if strings.TrimSpace(c.Evidence) == "" {
		return 0
	}
	switch source {
	case SourcePentest:
		return 2
	case SourceProwler, SourceSecurityHub:
		return 1
	case SourceSOC2, SourceISO27001:
		return 1
	case SourceManual:
		return 0
	case SourceJSON:
		return 0
	case SourceCISOAssistant:
		if doc.ToolAssuranceLevel < 2 {
			return doc.ToolAssuranceLevel
		}
		return 2
	default:
		return 0
	}
}
