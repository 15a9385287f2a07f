package assurance

// DocumentRollup is the declared-level summary of a document's controls,
// per spec.md §4.4.3.
type DocumentRollup struct {
	Breakdown map[int]int
	Declared  int
	Verified  bool
	Method    string
}

func methodForSource(source DocumentSource) string {
	switch source {
	case SourceSOC2, SourceISO27001:
		return "self-assessed"
	case SourceProwler, SourceSecurityHub:
		return "automated-config-check"
	case SourcePentest, SourceCISOAssistant:
		return "ai-evidence-review"
	case SourceManual:
		return "self-assessed"
	default:
		return "self-assessed"
	}
}

// RollupDocument aggregates normalized controls into a DocumentRollup.
// excludedIDs names controls to exclude from the declared-level computation
// (e.g. controls explicitly marked out-of-scope).
func RollupDocument(controls []CanonicalControlEvidence, source DocumentSource, excludedIDs map[string]bool) DocumentRollup {
	breakdown := make(map[int]int)
	declared := 0
	first := true
	verified := true

	var included []CanonicalControlEvidence
	for _, c := range controls {
		if excludedIDs != nil && excludedIDs[c.ID] {
			continue
		}
		included = append(included, c)
		breakdown[c.Assurance.Level]++
	}

	for _, c := range included {
		if first || c.Assurance.Level < declared {
			declared = c.Assurance.Level
			first = false
		}
	}
	if first {
		declared = 0
	}

	for _, c := range included {
		if c.Assurance.Level < declared {
			verified = false
			break
		}
	}

	return DocumentRollup{
		Breakdown: breakdown,
		Declared:  declared,
		Verified:  verified,
		Method:    methodForSource(source),
	}
}
