package assurance

// dimensionThresholds are the minimum per-dimension scores required to
// sustain declared level k, per spec.md §4.4.5. L0 carries no thresholds.
var dimensionThresholds = map[int]Dimensions{
	1: {Capability: 40, Coverage: 30, Reliability: 30, Methodology: 15, Freshness: 20, Independence: 15, Consistency: 30},
	2: {Capability: 55, Coverage: 45, Reliability: 45, Methodology: 40, Freshness: 40, Independence: 40, Consistency: 45},
	3: {Capability: 70, Coverage: 60, Reliability: 60, Methodology: 55, Freshness: 55, Independence: 60, Consistency: 60},
	4: {Capability: 85, Coverage: 75, Reliability: 75, Methodology: 70, Freshness: 70, Independence: 75, Consistency: 75},
}

func meetsThreshold(dims Dimensions, k int) bool {
	t, ok := dimensionThresholds[k]
	if !ok {
		return true // L0
	}
	return dims.Capability >= t.Capability &&
		dims.Coverage >= t.Coverage &&
		dims.Reliability >= t.Reliability &&
		dims.Methodology >= t.Methodology &&
		dims.Freshness >= t.Freshness &&
		dims.Independence >= t.Independence &&
		dims.Consistency >= t.Consistency
}

// ApplyDimensionGating lowers declared to the highest k <= declared for
// which every dimension clears the table for k, per spec.md §4.4.5.
func ApplyDimensionGating(declared int, dims Dimensions) int {
	for k := declared; k >= 0; k-- {
		if meetsThreshold(dims, k) {
			return k
		}
	}
	return 0
}
