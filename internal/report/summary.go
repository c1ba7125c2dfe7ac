package report

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/celerix-dev/labcheck/internal/asc"
	"github.com/fatih/color"
)

var (
	passColor = color.New(color.FgGreen, color.Bold)
	failColor = color.New(color.FgRed, color.Bold)
	errColor  = color.New(color.FgRed)
)

// WriteSummary writes the total duration, longest state and verdict of every field of
// every file. Failed files get a single error line.
func WriteSummary(w io.Writer, results []asc.Result) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, res := range results {
		if res.Err != nil {
			fmt.Fprintf(tw, "%s\t%s\n", res.Name, errColor.Sprintf("error: %v", res.Err))
			continue
		}
		fmt.Fprintf(tw, "%s\t(skipped lines: %d)\n", res.Name, res.Report.Skipped)
		fmt.Fprintf(tw, "  FIELD\tTOTAL\tMAX\tVERDICT\n")
		for _, f := range res.Report.Fields {
			fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\n",
				f.Field, totalText(f), maxText(f), verdictText(f.Classification.Verdict))
		}
	}
	return tw.Flush()
}

func totalText(f asc.FieldReport) string {
	if !f.Changed() {
		return "no change"
	}
	return fmt.Sprintf("%.2fs", f.TotalDuration)
}

func maxText(f asc.FieldReport) string {
	if !f.Changed() {
		return "-"
	}
	return fmt.Sprintf("%.2fs", f.Classification.MaxDuration)
}

func verdictText(v asc.Verdict) string {
	switch v {
	case asc.VerdictPass:
		return passColor.Sprint(string(v))
	case asc.VerdictFail:
		return failColor.Sprint(string(v))
	default:
		return ""
	}
}
