package assurance

import "strings"

const (
	SafeguardSamplingOpacity   = "sampling-opacity"
	SafeguardFreshnessDecay    = "freshness-decay"
	SafeguardIndependenceCheck = "independence-check"
	SafeguardSeverityAsymmetry = "severity-asymmetry"
	SafeguardAllPassBias       = "all-pass-bias"
)

const freshnessDecayThresholdDays = 180

var reperformanceTerms = []string{"reperformance", "reperformed"}
var inquiryTerms = []string{"inquiry", "interview"}

// ApplySafeguards runs the independent anti-gaming checks of spec.md
// §4.4.6 against a declared level and returns the possibly-lowered
// effective level, the safeguards that fired, and human-readable
// explanations in firing order.
func ApplySafeguards(declared int, controls []CanonicalControlEvidence, meta NormalizedMetadata, provenance Provenance, ageDays int) (int, []string, []string) {
	effective := declared
	var applied []string
	var explanations []string

	cap := func(level int, name, reason string) {
		applied = append(applied, name)
		explanations = append(explanations, reason)
		if level < effective {
			effective = level
		}
	}

	if len(controls) == 0 {
		cap(0, SafeguardSamplingOpacity, "sampling-opacity: no controls present, capped at L0")
	} else {
		for _, c := range controls {
			if strings.TrimSpace(c.Evidence.Text) == "" {
				cap(1, SafeguardSamplingOpacity, "sampling-opacity: control "+c.ID+" has no evidence, capped at L1")
				break
			}
		}
	}

	if meta.HasValidDate && ageDays > freshnessDecayThresholdDays {
		cap(1, SafeguardFreshnessDecay, "freshness-decay: metadata date exceeds 180 days, capped at L1")
	}

	if provenance == ProvenanceSelf && declared >= L3Observed {
		cap(2, SafeguardIndependenceCheck, "independence-check: self-provenance with declared >= L3, capped at L2")
	}

	if hasSeverityAsymmetry(controls, meta) {
		cap(1, SafeguardSeverityAsymmetry, "severity-asymmetry: critical controls rely on inquiry while lower-severity controls rely on reperformance, capped at L1")
	}

	if allPassUniform(controls) {
		applied = append(applied, SafeguardAllPassBias)
		explanations = append(explanations, "all-pass-bias: 10+ controls, all effective, uniform methodology (flagged, not capped)")
	}

	if effective > declared {
		effective = declared
	}
	return effective, applied, explanations
}

func hasSeverityAsymmetry(controls []CanonicalControlEvidence, meta NormalizedMetadata) bool {
	notes := strings.ToLower(meta.AssessorNotes)
	usesReperformance := containsAny(notes, reperformanceTerms)
	usesInquiry := containsAny(notes, inquiryTerms)
	if !usesReperformance || !usesInquiry {
		return false
	}
	hasCritical := false
	hasLowerSeverity := false
	for _, c := range controls {
		if c.Severity == NSevCritical {
			hasCritical = true
		} else {
			hasLowerSeverity = true
		}
	}
	return hasCritical && hasLowerSeverity
}

func containsAny(s string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}

func allPassUniform(controls []CanonicalControlEvidence) bool {
	if len(controls) < 10 {
		return false
	}
	methodology := ""
	for i, c := range controls {
		if c.Status != NPass {
			return false
		}
		if i == 0 {
			methodology = c.Source.Tool
		} else if c.Source.Tool != methodology {
			return false
		}
	}
	return true
}
