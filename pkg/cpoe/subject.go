package cpoe

import (
	"github.com/google/uuid"

	"github.com/corsair-parley/parley/pkg/assurance"
)

// BuildCredentialSubject assembles a CredentialSubject from normalized
// controls and an assurance assessment, per spec.md §3. Caller supplies
// scope and provenance identity fields that are not derivable from the
// controls themselves.
func BuildCredentialSubject(controls []assurance.CanonicalControlEvidence, meta assurance.NormalizedMetadata, assessment assurance.AssessmentResult, scope Scope, sourceIdentity, sourceDocumentHash string) CredentialSubject {
	tested, passed, failed := 0, 0, 0
	typeDist := make(map[string]int)
	for _, c := range controls {
		if c.Status != assurance.NSkip {
			tested++
		}
		switch c.Status {
		case assurance.NPass:
			passed++
		case assurance.NFail:
			failed++
		}
		typeDist[c.EvidenceType]++
	}
	overall := overallScore(tested, passed)

	evidenceTypeDist := make(map[string]float64, len(typeDist))
	if tested > 0 {
		for k, v := range typeDist {
			evidenceTypeDist[k] = float64(v) / float64(len(controls))
		}
	}

	breakdown := make(map[string]int, len(assessment.Rollup.Breakdown))
	for level, count := range assessment.Rollup.Breakdown {
		breakdown[levelLabel(level)] = count
	}

	var evidenceTypes []string
	seen := make(map[string]bool)
	for t := range typeDist {
		if !seen[t] {
			seen[t] = true
			evidenceTypes = append(evidenceTypes, t)
		}
	}

	return CredentialSubject{
		Scope: scope,
		Provenance: Provenance{
			Source:                   string(meta.Source),
			SourceIdentity:           sourceIdentity,
			SourceDocumentHash:       sourceDocumentHash,
			Date:                     meta.Date,
			EvidenceTypeDistribution: evidenceTypeDist,
		},
		Summary: Summary{
			ControlsTested: tested,
			ControlsPassed: passed,
			ControlsFailed: failed,
			OverallScore:   overall,
		},
		Assurance: &AssuranceEnrichment{
			DeclaredLevel: assessment.Effective,
			Breakdown:     breakdown,
			Dimensions:    assessment.Dimensions,
			EvidenceTypes: evidenceTypes,
			RuleTrace:     assessment.Trace.Lines,
			Safeguards:    assessment.Safeguards,
		},
	}
}

func overallScore(tested, passed int) int {
	if tested == 0 {
		return 0
	}
	return int((float64(passed) / float64(tested) * 100) + 0.5)
}

func levelLabel(level int) string {
	switch level {
	case assurance.L0Documented:
		return "L0"
	case assurance.L1Configured:
		return "L1"
	case assurance.L2Demonstrated:
		return "L2"
	case assurance.L3Observed:
		return "L3"
	case assurance.L4Attested:
		return "L4"
	default:
		return "L0"
	}
}

// NewMarqueID generates a MARQUE identifier of the form "marque-<uuid>".
func NewMarqueID() string {
	return "marque-" + uuid.NewString()
}
