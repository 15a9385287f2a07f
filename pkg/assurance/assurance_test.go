package assurance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s Severity) *Severity { return &s }

func TestNormalizeStatusAndSeverity(t *testing.T) {
	doc := IngestedDocument{
		Source:             SourceProwler,
		ToolAssuranceLevel: 1,
		Controls: []IngestedControl{
			{ID: "c1", Status: StatusEffective, Severity: strPtr(SeverityCritical), Evidence: "log line 2026-01-01 ok"},
			{ID: "c2", Status: StatusIneffective, Evidence: ""},
			{ID: "c3", Status: StatusNotTested},
		},
	}
	out := Normalize(doc)
	require.Len(t, out.Controls, 3)
	assert.Equal(t, NPass, out.Controls[0].Status)
	assert.Equal(t, NSevCritical, out.Controls[0].Severity)
	assert.Equal(t, NFail, out.Controls[1].Status)
	assert.Equal(t, NSevInfo, out.Controls[1].Severity)
	assert.Equal(t, NSkip, out.Controls[2].Status)
	assert.Equal(t, "scan", out.Controls[0].EvidenceType)
	assert.Equal(t, ProvenanceTool, out.Controls[0].Assurance.Provenance)
}

func TestFrameworkMappingDedup(t *testing.T) {
	doc := IngestedDocument{
		Source: SourceManual,
		Controls: []IngestedControl{
			{
				ID:     "c1",
				Status: StatusEffective,
				Evidence: "reviewed manually",
				FrameworkMappings: []FrameworkMapping{
					{Framework: "SOC2", ControlID: "CC6.1"},
					{Framework: "SOC2", ControlID: "CC6.1"},
					{Framework: "ISO27001", ControlID: "A.9.1"},
				},
			},
		},
	}
	out := Normalize(doc)
	assert.Len(t, out.Controls[0].FrameworkRefs, 2)
}

func TestLevelRules(t *testing.T) {
	manualDoc := IngestedDocument{Source: SourceManual}
	c := IngestedControl{Status: StatusEffective, Evidence: "x"}
	assert.Equal(t, 0, Level(c, SourceManual, manualDoc))

	pentestDoc := IngestedDocument{Source: SourcePentest}
	assert.Equal(t, 2, Level(c, SourcePentest, pentestDoc))

	notEffective := IngestedControl{Status: StatusIneffective, Evidence: "x"}
	assert.Equal(t, 0, Level(notEffective, SourcePentest, pentestDoc))

	noEvidence := IngestedControl{Status: StatusEffective, Evidence: "   "}
	assert.Equal(t, 0, Level(noEvidence, SourcePentest, pentestDoc))

	cisoLow := IngestedDocument{Source: SourceCISOAssistant, ToolAssuranceLevel: 1}
	assert.Equal(t, 1, Level(c, SourceCISOAssistant, cisoLow))

	cisoHigh := IngestedDocument{Source: SourceCISOAssistant, ToolAssuranceLevel: 3}
	assert.Equal(t, 2, Level(c, SourceCISOAssistant, cisoHigh))
}

func TestRollupWeakestLink(t *testing.T) {
	controls := []CanonicalControlEvidence{
		{ID: "a", Assurance: AssuranceRecord{Level: 2}},
		{ID: "b", Assurance: AssuranceRecord{Level: 1}},
		{ID: "c", Assurance: AssuranceRecord{Level: 1}},
	}
	rollup := RollupDocument(controls, SourceProwler, nil)
	assert.Equal(t, 1, rollup.Declared)
	assert.True(t, rollup.Verified)
	assert.Equal(t, "automated-config-check", rollup.Method)
}

func TestRollupEmptyIsZero(t *testing.T) {
	rollup := RollupDocument(nil, SourceManual, nil)
	assert.Equal(t, 0, rollup.Declared)
}

func TestRollupExcludedControls(t *testing.T) {
	controls := []CanonicalControlEvidence{
		{ID: "a", Assurance: AssuranceRecord{Level: 2}},
		{ID: "out-of-scope", Assurance: AssuranceRecord{Level: 0}},
	}
	rollup := RollupDocument(controls, SourceSOC2, map[string]bool{"out-of-scope": true})
	assert.Equal(t, 2, rollup.Declared)
}

func TestDimensionGatingMonotone(t *testing.T) {
	strong := Dimensions{Capability: 90, Coverage: 90, Reliability: 90, Methodology: 90, Freshness: 90, Independence: 90, Consistency: 90}
	weak := Dimensions{Capability: 10, Coverage: 10, Reliability: 10, Methodology: 10, Freshness: 10, Independence: 10, Consistency: 10}

	gatedStrong := ApplyDimensionGating(4, strong)
	gatedWeak := ApplyDimensionGating(4, weak)
	assert.GreaterOrEqual(t, gatedStrong, gatedWeak)
	assert.Equal(t, 4, gatedStrong)
	assert.Equal(t, 0, gatedWeak)
}

func TestDimensionGatingNeverExceedsDeclared(t *testing.T) {
	strong := Dimensions{Capability: 100, Coverage: 100, Reliability: 100, Methodology: 100, Freshness: 100, Independence: 100, Consistency: 100}
	gated := ApplyDimensionGating(1, strong)
	assert.LessOrEqual(t, gated, 1)
}

func TestSafeguardSamplingOpacityEmptyEvidence(t *testing.T) {
	controls := []CanonicalControlEvidence{
		{ID: "a", Evidence: EvidenceSummary{Text: ""}},
	}
	meta := NormalizedMetadata{}
	effective, applied, _ := ApplySafeguards(3, controls, meta, ProvenanceTool, 10)
	assert.Equal(t, 1, effective)
	assert.Contains(t, applied, SafeguardSamplingOpacity)
}

func TestSafeguardIndependenceCheck(t *testing.T) {
	controls := []CanonicalControlEvidence{{ID: "a", Evidence: EvidenceSummary{Text: "reviewed"}}}
	effective, applied, _ := ApplySafeguards(3, controls, NormalizedMetadata{}, ProvenanceSelf, 10)
	assert.Equal(t, 2, effective)
	assert.Contains(t, applied, SafeguardIndependenceCheck)
}

func TestSafeguardFreshnessDecay(t *testing.T) {
	controls := []CanonicalControlEvidence{{ID: "a", Evidence: EvidenceSummary{Text: "reviewed"}}}
	meta := NormalizedMetadata{HasValidDate: true}
	effective, applied, _ := ApplySafeguards(3, controls, meta, ProvenanceTool, 200)
	assert.Equal(t, 1, effective)
	assert.Contains(t, applied, SafeguardFreshnessDecay)
}

func TestSafeguardAllPassBiasFlagOnlyNoCap(t *testing.T) {
	var controls []CanonicalControlEvidence
	for i := 0; i < 10; i++ {
		controls = append(controls, CanonicalControlEvidence{
			ID:     "c",
			Status: NPass,
			Evidence: EvidenceSummary{Text: "reviewed"},
			Source: SourceRecord{Tool: "prowler"},
		})
	}
	effective, applied, _ := ApplySafeguards(2, controls, NormalizedMetadata{}, ProvenanceTool, 10)
	assert.Equal(t, 2, effective)
	assert.Contains(t, applied, SafeguardAllPassBias)
}

func TestComputeDoraMetricsPairingDivergence(t *testing.T) {
	controls := []CanonicalControlEvidence{
		{Evidence: EvidenceSummary{Text: "boilerplate no exceptions noted"}},
	}
	dims := Dimensions{Freshness: 95, Independence: 80}
	dora := computeDoraMetrics(controls, dims)
	assert.True(t, dora.PairingDivergence)
}

func TestAssessEndToEnd(t *testing.T) {
	doc := IngestedDocument{
		Source:  SourceSOC2,
		Date:    "2026-01-01T00:00:00Z",
		Auditor: "Acme Auditors",
		Controls: []IngestedControl{
			{ID: "c1", Status: StatusEffective, Evidence: "reperformed sample of 25 transactions, no exceptions", FrameworkMappings: []FrameworkMapping{{Framework: "SOC2", ControlID: "CC6.1"}}},
			{ID: "c2", Status: StatusEffective, Evidence: "reperformed sample of 25 transactions, no exceptions", FrameworkMappings: []FrameworkMapping{{Framework: "SOC2", ControlID: "CC7.2"}}},
		},
	}
	norm := Normalize(doc)
	result := Assess(norm.Controls, norm.Metadata, nil, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, 1, result.Rollup.Declared)
	assert.NotEmpty(t, result.Trace.Lines)
	assert.LessOrEqual(t, result.Effective, result.GatedLevel)
}
