// Package api exposes the exam, the training records and trace analysis over HTTP.
package api

import (
	"errors"
	"net/http"

	"github.com/celerix-dev/labcheck/internal/asc"
	"github.com/celerix-dev/labcheck/internal/engine"
	"github.com/celerix-dev/labcheck/internal/roster"
	"github.com/celerix-dev/labcheck/internal/training"
	"github.com/celerix-dev/labcheck/pkg/schema"
	"github.com/gin-gonic/gin"
)

type Handler struct {
	Tracker *training.Tracker
	// Roster is optional; without it warnings carry no e-mails.
	Roster *roster.Roster
	Trace  asc.Options
	// ReportDir receives rendered charts when set.
	ReportDir string
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, training.ErrInvalidSubmission), errors.Is(err, training.ErrUnknownSubject):
		return http.StatusBadRequest
	case errors.Is(err, engine.ErrRecordNotFound):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func fail(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{"error": err.Error()})
}

func (h *Handler) Ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) GetQuestions(c *gin.Context) {
	c.JSON(http.StatusOK, h.Tracker.Bank().Public())
}

func (h *Handler) Submit(c *gin.Context) {
	var sub training.Submission
	if err := c.ShouldBindJSON(&sub); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	out, err := h.Tracker.Submit(c.Request.Context(), sub)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) GetRecords(c *gin.Context) {
	records, err := h.Tracker.Records()
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, records)
}

func (h *Handler) GetRecord(c *gin.Context) {
	rec, err := h.Tracker.Record(c.Param("subject"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (h *Handler) GetWarnings(c *gin.Context) {
	records, err := h.Tracker.Warnings()
	if err != nil {
		fail(c, err)
		return
	}
	emails := []string{}
	if h.Roster != nil {
		names := make([]string, len(records))
		for i, r := range records {
			names[i] = r.Subject
		}
		emails = append(emails, h.Roster.Emails(names)...)
	}
	c.JSON(http.StatusOK, warningView{Records: records, Emails: emails})
}

func (h *Handler) GetRoster(c *gin.Context) {
	if h.Roster == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": roster.ErrRosterMissing.Error()})
		return
	}
	users := h.Roster.Users()
	out := make([]gin.H, len(users))
	for i, u := range users {
		out[i] = gin.H{"name": u.Name, "department": u.Department, "label": u.Label()}
	}
	c.JSON(http.StatusOK, out)
}

type warningView struct {
	Records []schema.TrainingRecord `json:"records"`
	Emails  []string                `json:"emails"`
}
