package assurance

import (
	"fmt"
	"time"
)

// RuleTrace is the ordered, human-readable record of every rule
// application that produced a document's final assurance level, per
// spec.md §4.4.8.
type RuleTrace struct {
	Lines []string
}

func (t *RuleTrace) add(format string, args ...interface{}) {
	t.Lines = append(t.Lines, fmt.Sprintf(format, args...))
}

func freshnessLabel(ageDays int, valid bool) string {
	if !valid {
		return "unknown"
	}
	switch {
	case ageDays <= freshBucketDays:
		return "fresh"
	case ageDays <= agingBucketDays:
		return "aging"
	default:
		return "stale"
	}
}

func sourceCeiling(source DocumentSource) int {
	switch source {
	case SourceManual, SourceJSON:
		return 0
	case SourceProwler, SourceSecurityHub, SourceSOC2, SourceISO27001:
		return 1
	case SourcePentest, SourceCISOAssistant:
		return 2
	default:
		return 0
	}
}

// AssessmentResult is the full output of Assess: the declared level, the
// dimension-gated effective level, any safeguards that fired, the rule
// trace, and the DORA-style metrics bundle.
type AssessmentResult struct {
	Rollup       DocumentRollup
	Dimensions   Dimensions
	GatedLevel   int
	Effective    int
	Safeguards   []string
	Explanations []string
	Trace        RuleTrace
	Dora         DoraMetrics
}

// Assess runs the full §4.4 pipeline over one document's already-normalized
// controls: rollup, dimension scoring, dimension gating, behavioural
// safeguards, and DORA metrics, accumulating a rule trace throughout.
func Assess(controls []CanonicalControlEvidence, meta NormalizedMetadata, excludedIDs map[string]bool, now time.Time) AssessmentResult {
	var trace RuleTrace

	rollup := RollupDocument(controls, meta.Source, excludedIDs)
	trace.add("source ceiling for %s: L%d", meta.Source, sourceCeiling(meta.Source))
	trace.add("declared level from weakest-link over %d controls: L%d", len(controls), rollup.Declared)

	ageDays := 0
	if meta.HasValidDate {
		ageDays = int(now.Sub(meta.ParsedDate).Hours() / 24)
		if ageDays < 0 {
			ageDays = 0
		}
	}
	trace.add("freshness %s (%d days)", freshnessLabel(ageDays, meta.HasValidDate), ageDays)

	dims := ComputeDimensions(controls, meta, now)
	gated := ApplyDimensionGating(rollup.Declared, dims)
	if gated < rollup.Declared {
		trace.add("dimension gating lowered L%d to L%d", rollup.Declared, gated)
	} else {
		trace.add("dimension gating passed at L%d", gated)
	}

	provenance := ProvenanceTool
	if len(controls) > 0 {
		provenance = controls[0].Assurance.Provenance
	}
	effective, applied, explanations := ApplySafeguards(gated, controls, meta, provenance, ageDays)
	for _, e := range explanations {
		trace.add("%s", e)
	}
	if effective < gated {
		trace.add("safeguards lowered L%d to L%d", gated, effective)
	}

	dora := computeDoraMetrics(controls, dims)
	if dora.PairingDivergence {
		trace.add("dora pairing-divergence: freshness-reproducibility gap exceeds 40 points")
	}

	return AssessmentResult{
		Rollup:       rollup,
		Dimensions:   dims,
		GatedLevel:   gated,
		Effective:    effective,
		Safeguards:   applied,
		Explanations: explanations,
		Trace:        trace,
		Dora:         dora,
	}
}
