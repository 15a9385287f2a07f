package assurance

import (
	"strings"
	"time"
)

// Dimensions holds the seven [0,100] scores of spec.md §4.4.4.
type Dimensions struct {
	Capability   int
	Coverage     int
	Reliability  int
	Methodology  int
	Freshness    int
	Independence int
	Consistency  int
}

func clampScore(f float64) int {
	if f < 0 {
		return 0
	}
	if f > 100 {
		return 100
	}
	return int(f + 0.5)
}

const (
	freshBucketDays = 90
	agingBucketDays = 365
)

func freshnessBucketScore(days int, valid bool) float64 {
	if !valid {
		return 0.0
	}
	switch {
	case days <= freshBucketDays:
		return 1.0
	case days <= agingBucketDays:
		return 0.5
	default:
		return 0.0
	}
}

var methodologyBySource = map[DocumentSource]float64{
	SourcePentest:       75,
	SourceProwler:       60,
	SourceSecurityHub:   60,
	SourceSOC2:          50,
	SourceISO27001:      50,
	SourceManual:        15,
	SourceJSON:          15,
	SourceCISOAssistant: 50,
}

var independenceBySource = map[DocumentSource]float64{
	SourceSOC2:          85,
	SourceISO27001:      85,
	SourcePentest:       75,
	SourceProwler:       50,
	SourceSecurityHub:   50,
	SourceManual:        15,
	SourceJSON:          15,
	SourceCISOAssistant: 50,
}

var reperformanceKeywords = []string{"reperformance", "reperformed", "sampl"}

// ComputeDimensions derives the seven dimension scores from normalized
// controls and document metadata, per spec.md §4.4.4.
func ComputeDimensions(controls []CanonicalControlEvidence, meta NormalizedMetadata, now time.Time) Dimensions {
	n := len(controls)

	var passed, withEvidence, tested, frameworkMapped, effective int
	for _, c := range controls {
		if c.Status == NPass {
			passed++
		}
		if strings.TrimSpace(c.Evidence.Text) != "" {
			withEvidence++
		}
		if c.Status != NSkip {
			tested++
		}
		if len(c.FrameworkRefs) > 0 {
			frameworkMapped++
		}
		if c.Assurance.Level > 0 {
			effective++
		}
	}

	frac := func(x int) float64 {
		if n == 0 {
			return 0
		}
		return float64(x) / float64(n)
	}

	capability := 70*frac(passed) + 30*frac(withEvidence)
	if meta.AssessmentContext != nil {
		bonus := 5 * len(meta.AssessmentContext.TechStack)
		if bonus > 20 {
			bonus = 20
		}
		capability += float64(bonus)
	}

	coverage := 70*frac(tested) + 30*frac(frameworkMapped)
	if meta.AssessmentContext != nil {
		gapPenalty := len(meta.AssessmentContext.ScopeGaps)
		if gapPenalty > 20 {
			gapPenalty = 20
		}
		coverage -= float64(gapPenalty)
	}

	ageDays := 0
	if meta.HasValidDate {
		ageDays = int(now.Sub(meta.ParsedDate).Hours() / 24)
		if ageDays < 0 {
			ageDays = 0
		}
	}
	reliability := 60*frac(effective) + 40*freshnessBucketScore(ageDays, meta.HasValidDate)

	methodology := methodologyBySource[meta.Source]
	if meta.ExternalMethodology != nil {
		v := *meta.ExternalMethodology
		if v < 0 {
			v = 0
		}
		if v > 1 {
			v = 1
		}
		methodology = v * 100
	}
	notesLower := strings.ToLower(meta.AssessorNotes)
	for _, kw := range reperformanceKeywords {
		if strings.Contains(notesLower, kw) {
			methodology += 20
			break
		}
	}

	freshness := 0.0
	if meta.HasValidDate {
		freshness = 100 - float64(ageDays)*100/365
	}

	independence := independenceBySource[meta.Source]

	consistency := 60*frac(withEvidence) + 25
	if passed > 0 && passed < n {
		consistency += 15 // mixed-result transparency bonus
	}
	if meta.ExternalBias != nil {
		v := *meta.ExternalBias
		if v < 0 {
			v = 0
		}
		if v > 1 {
			v = 1
		}
		consistency = v * 100
	}

	return Dimensions{
		Capability:   clampScore(capability),
		Coverage:     clampScore(coverage),
		Reliability:  clampScore(reliability),
		Methodology:  clampScore(methodology),
		Freshness:    clampScore(freshness),
		Independence: clampScore(independence),
		Consistency:  clampScore(consistency),
	}
}
