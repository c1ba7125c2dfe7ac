package asc

// DefaultThreshold is the minimal longest-state duration, in seconds, for a PASS.
const DefaultThreshold = 3.8

// Verdict is the duration check outcome of one field.
type Verdict string

const (
	VerdictPass     Verdict = "PASS"
	VerdictFail     Verdict = "FAIL"
	VerdictNoChange Verdict = "NO_CHANGE"
)

// Classification is the verdict of one field together with the duration it was based on.
type Classification struct {
	MaxDuration float64 `json:"max_duration"`
	Verdict     Verdict `json:"verdict"`
}

// Classify grades a field by its longest interval. Intervals that are all zero-length
// carry no measurable state and classify like an unchanged field.
func Classify(intervals []Interval, threshold float64) Classification {
	var mx float64
	for _, iv := range intervals {
		if iv.Duration > mx {
			mx = iv.Duration
		}
	}
	switch {
	case mx > threshold:
		return Classification{MaxDuration: mx, Verdict: VerdictPass}
	case mx > 0:
		return Classification{MaxDuration: mx, Verdict: VerdictFail}
	default:
		return Classification{MaxDuration: mx, Verdict: VerdictNoChange}
	}
}
