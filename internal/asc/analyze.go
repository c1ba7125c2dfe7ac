package asc

import (
	"io"
)

// Options controls a trace analysis run.
type Options struct {
	Layout    Layout
	Threshold float64
	// Workers bounds the number of files analysed at once; <= 0 means one per file.
	Workers int
	// Progress, if set, is called once per finished file from the worker goroutine.
	Progress func(Result)
}

// DefaultOptions returns the shipped layout and threshold.
func DefaultOptions() Options {
	return Options{
		Layout:    DefaultLayout(),
		Threshold: DefaultThreshold,
	}
}

// FieldReport is the analysis of one field of one file.
type FieldReport struct {
	Field          string         `json:"field"`
	Intervals      []Interval     `json:"intervals"`
	Classification Classification `json:"classification"`
	TotalDuration  float64        `json:"total_duration"`
}

// Changed reports whether the field has at least one bounded interval.
func (fr FieldReport) Changed() bool {
	return len(fr.Intervals) > 0
}

// FileReport is the analysis of one trace file.
type FileReport struct {
	Name    string        `json:"name"`
	Samples []Sample      `json:"-"`
	Skipped int           `json:"skipped_lines"`
	Fields  []FieldReport `json:"fields"`
}

// Field returns the report of the named field.
func (r FileReport) Field(name string) (FieldReport, bool) {
	for _, f := range r.Fields {
		if f.Field == name {
			return f, true
		}
	}
	return FieldReport{}, false
}

// AnalyzeFile decodes one trace and derives intervals, verdict and total duration
// for every field of the layout.
func AnalyzeFile(name string, r io.Reader, opts Options) (FileReport, error) {
	samples, skipped, err := Decode(r, opts.Layout)
	if err != nil {
		return FileReport{}, err
	}
	return AnalyzeSamples(name, samples, skipped, opts), nil
}

// AnalyzeSamples is AnalyzeFile over already decoded samples.
func AnalyzeSamples(name string, samples []Sample, skipped int, opts Options) FileReport {
	report := FileReport{
		Name:    name,
		Samples: samples,
		Skipped: skipped,
		Fields:  make([]FieldReport, 0, len(opts.Layout.Fields)),
	}
	for _, field := range opts.Layout.FieldNames() {
		intervals := ExtractIntervals(samples, field)
		report.Fields = append(report.Fields, FieldReport{
			Field:          field,
			Intervals:      intervals,
			Classification: Classify(intervals, opts.Threshold),
			TotalDuration:  TotalDuration(intervals),
		})
	}
	return report
}
