// Package report renders trace analysis results as per-field charts and text summaries.
package report

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"strings"

	"github.com/celerix-dev/labcheck/internal/asc"
	"golang.org/x/image/colornames"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

const (
	chartWidth  = 800
	chartHeight = 600
)

var palette = []color.Color{
	colornames.Royalblue,
	colornames.Darkorange,
	colornames.Seagreen,
	colornames.Crimson,
	colornames.Darkmagenta,
	colornames.Darkcyan,
}

// FileStem returns the base file name without its extension.
func FileStem(name string) string {
	base := filepath.Base(name)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// RenderCharts writes one PNG per field of the report to dir/<file stem>/<field>.png
// and returns the written paths.
func RenderCharts(dir string, rep asc.FileReport) ([]string, error) {
	target := filepath.Join(dir, FileStem(rep.Name))
	if err := os.MkdirAll(target, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create report directory: %w", err)
	}
	var paths []string
	for i, field := range rep.Fields {
		path := filepath.Join(target, filepath.Base(field.Field)+".png")
		p, err := fieldPlot(rep, field, palette[i%len(palette)])
		if err != nil {
			return paths, fmt.Errorf("failed to plot %s: %w", field.Field, err)
		}
		if err := p.Save(vg.Points(chartWidth), vg.Points(chartHeight), path); err != nil {
			return paths, fmt.Errorf("failed to save chart %s: %w", path, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func fieldPlot(rep asc.FileReport, field asc.FieldReport, lineColor color.Color) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s Data for %s", field.Field, rep.Name)
	p.X.Label.Text = "Timestamp"
	p.Y.Label.Text = "Value"
	p.BackgroundColor = colornames.Snow

	if len(rep.Samples) == 0 {
		return p, nil
	}

	series := make(plotter.XYs, len(rep.Samples))
	var xMax, yMax float64
	for i, s := range rep.Samples {
		series[i].X = s.Timestamp
		series[i].Y = float64(s.Fields[field.Field])
		xMax = max(xMax, series[i].X)
		yMax = max(yMax, series[i].Y)
	}
	line, err := plotter.NewLine(series)
	if err != nil {
		return nil, err
	}
	line.Color = lineColor
	line.StepStyle = plotter.PostStep
	p.Add(line)

	if len(field.Intervals) > 0 {
		points := make(plotter.XYs, len(field.Intervals))
		texts := make([]string, len(field.Intervals))
		for i, iv := range field.Intervals {
			points[i].X = iv.Start
			points[i].Y = float64(iv.Value)
			texts[i] = fmt.Sprintf("Duration: %.2fs", iv.Duration)
		}
		labels, err := plotter.NewLabels(plotter.XYLabels{XYs: points, Labels: texts})
		if err != nil {
			return nil, err
		}
		p.Add(labels)
	}

	badge, badgeColor := badgeFor(field.Classification.Verdict)
	if badge != "" {
		p.Y.Max = yMax + 1
		mark, err := plotter.NewLabels(plotter.XYLabels{
			XYs:    plotter.XYs{{X: xMax, Y: yMax + 1}},
			Labels: []string{badge},
		})
		if err != nil {
			return nil, err
		}
		for i := range mark.TextStyle {
			mark.TextStyle[i].Color = badgeColor
			mark.TextStyle[i].Font.Size = vg.Points(20)
			mark.TextStyle[i].XAlign = draw.XRight
			mark.TextStyle[i].YAlign = draw.YTop
		}
		p.Add(mark)
	}
	return p, nil
}

func badgeFor(v asc.Verdict) (string, color.Color) {
	switch v {
	case asc.VerdictPass:
		return "PASS", colornames.Green
	case asc.VerdictFail:
		return "FAIL", colornames.Red
	default:
		return "", nil
	}
}
