package asc

// Interval is a span during which a field held one value, bounded by two change points.
type Interval struct {
	Field    string  `json:"field"`
	Value    uint64  `json:"value"`
	Start    float64 `json:"start"`
	Duration float64 `json:"duration"`
}

// ExtractIntervals walks the samples and emits one interval per pair of consecutive
// change points of the field. The first sample always opens an interval. The interval
// still open after the last sample has no end and is not emitted.
func ExtractIntervals(samples []Sample, field string) []Interval {
	var (
		out     []Interval
		pending *Interval
		prev    uint64
	)
	for _, s := range samples {
		v, ok := s.Fields[field]
		if !ok {
			continue
		}
		if pending != nil && v == prev {
			continue
		}
		if pending != nil {
			pending.Duration = s.Timestamp - pending.Start
			out = append(out, *pending)
		}
		pending = &Interval{Field: field, Value: v, Start: s.Timestamp}
		prev = v
	}
	return out
}

// TotalDuration sums the interval durations.
func TotalDuration(intervals []Interval) float64 {
	var sum float64
	for _, iv := range intervals {
		sum += iv.Duration
	}
	return sum
}
