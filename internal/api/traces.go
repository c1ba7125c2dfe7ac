package api

import (
	"io"
	"net/http"
	"path/filepath"

	"github.com/celerix-dev/labcheck/internal/asc"
	"github.com/celerix-dev/labcheck/internal/report"
	"github.com/gin-gonic/gin"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog/log"
)

type fileView struct {
	Name    string            `json:"name"`
	Error   string            `json:"error,omitempty"`
	Skipped int               `json:"skipped_lines"`
	Fields  []asc.FieldReport `json:"fields,omitempty"`
	Charts  []string          `json:"charts,omitempty"`
}

type analysisView struct {
	RunID string     `json:"run_id"`
	Files []fileView `json:"files"`
}

// AnalyzeTraces runs the trace analysis over the uploaded "files" parts. One broken file
// does not fail the request; its entry carries the error instead.
func (h *Handler) AnalyzeTraces(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	uploads := form.File["files"]
	if len(uploads) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no files uploaded"})
		return
	}

	inputs := make([]asc.Input, len(uploads))
	for i, fh := range uploads {
		inputs[i] = asc.Input{
			Name: fh.Filename,
			Open: func() (io.ReadCloser, error) { return fh.Open() },
		}
	}

	runID := ulid.Make().String()
	results := asc.AnalyzeAll(c.Request.Context(), inputs, h.Trace)

	out := analysisView{RunID: runID, Files: make([]fileView, len(results))}
	var failed int
	for i, res := range results {
		fv := fileView{Name: res.Name}
		if res.Err != nil {
			fv.Error = res.Err.Error()
			failed++
			out.Files[i] = fv
			continue
		}
		fv.Skipped = res.Report.Skipped
		fv.Fields = res.Report.Fields
		if h.ReportDir != "" {
			charts, err := report.RenderCharts(filepath.Join(h.ReportDir, runID), res.Report)
			if err != nil {
				log.Error().Err(err).Str("runId", runID).Str("file", res.Name).Msg("failed to render charts")
			}
			fv.Charts = charts
		}
		out.Files[i] = fv
	}

	log.Info().
		Str("runId", runID).
		Int("files", len(results)).
		Int("failed", failed).
		Msg("trace analysis finished")
	c.JSON(http.StatusOK, out)
}
