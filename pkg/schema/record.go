// Package schema defines the data structures shared between the labcheck daemon,
// its storage backends and the client SDK.
package schema

import "time"

const (
	// MaxValidityDays is the ceiling of a validity window.
	MaxValidityDays = 365
	// WarningThresholdDays is the remaining-days level below which a record is in WARNING.
	WarningThresholdDays = 30
)

// Status is the derived state of a training record.
type Status string

const (
	StatusNormal  Status = "Normal"
	StatusWarning Status = "Warning"
)

// StatusFor derives the status from the remaining validity days.
func StatusFor(remainingDays int) Status {
	if remainingDays < WarningThresholdDays {
		return StatusWarning
	}
	return StatusNormal
}

// TrainingRecord is the stored validity state of one subject.
//
// LastEvaluatedAt is the anchor of the decay clock. A submission by the subject moves it
// to the submission instant; a submission by anyone else advances it by the whole days
// that were just deducted from RemainingDays.
type TrainingRecord struct {
	Subject         string    `json:"name"`
	Department      string    `json:"department"`
	LastScore       int       `json:"score"`
	LastEvaluatedAt time.Time `json:"time"`
	RemainingDays   int       `json:"valid_days"`
	Status          Status    `json:"status"`
}

// WithStatus returns the record with Status recomputed from RemainingDays.
func (r TrainingRecord) WithStatus() TrainingRecord {
	r.Status = StatusFor(r.RemainingDays)
	return r
}

// LapseNotice is emitted when a record moves from NORMAL to WARNING.
type LapseNotice struct {
	ID            string    `json:"id"`
	Subject       string    `json:"subject"`
	Department    string    `json:"department"`
	Email         string    `json:"email,omitempty"`
	RemainingDays int       `json:"remaining_days"`
	At            time.Time `json:"at"`
}

// Verdict is the outcome of a graded exam.
type Verdict string

const (
	VerdictPass Verdict = "PASS"
	VerdictFail Verdict = "FAIL"
)

// Submission is one completed exam. Answers are keyed by question id.
type Submission struct {
	Subject    string            `json:"subject"`
	Department string            `json:"department,omitempty"`
	Answers    map[string]string `json:"answers"`
}

// Outcome is the result of a submission. Lapsed lists the records that moved from
// NORMAL to WARNING during the write.
type Outcome struct {
	Score   int            `json:"score"`
	Total   int            `json:"total"`
	Verdict Verdict        `json:"verdict"`
	Record  TrainingRecord `json:"record"`
	Lapsed  []LapseNotice  `json:"lapsed,omitempty"`
}
