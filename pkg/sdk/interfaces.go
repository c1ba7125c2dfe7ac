package sdk

import (
	"context"
	"errors"

	"github.com/celerix-dev/labcheck/pkg/schema"
)

// ErrRecordNotFound is returned when the daemon has no record for the subject.
var ErrRecordNotFound = errors.New("record not found")

// --- Functional Interfaces (Interface Segregation) ---

// RecordReader defines the read views of the training records.
type RecordReader interface {
	Records() ([]schema.TrainingRecord, error)
	Record(subject string) (schema.TrainingRecord, error)
	Warnings() ([]schema.TrainingRecord, error)
}

// Submitter applies exam submissions.
type Submitter interface {
	Submit(ctx context.Context, sub schema.Submission) (schema.Outcome, error)
}

// --- Composite Interfaces ---

// TrainingService is the primary interface for working with training records.
// The embedded tracker and the remote network client both implement it.
type TrainingService interface {
	RecordReader
	Submitter
}
