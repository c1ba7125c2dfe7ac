// Package engine persists training records behind a single RecordStore contract.
package engine

import (
	"errors"
	"fmt"

	"github.com/celerix-dev/labcheck/pkg/schema"
)

var (
	// ErrRecordNotFound is returned when a subject has no stored record.
	ErrRecordNotFound = errors.New("record not found")
	// ErrStoreUnavailable wraps I/O failures of the backing medium.
	ErrStoreUnavailable = errors.New("record store unavailable")
)

// Backend types accepted by Open.
const (
	TypeXLSX   = "xlsx"
	TypeSQLite = "sqlite"
	TypeMemory = "memory"
)

// RecordStore is the persistence contract of the validity tracker.
// Both the embedded backends and MemStore implement it.
type RecordStore interface {
	// LoadAll returns every stored record in storage order.
	LoadAll() ([]schema.TrainingRecord, error)
	// SaveAll durably replaces the full record set.
	SaveAll(records []schema.TrainingRecord) error
	// Close releases the backing medium.
	Close() error
}

// Conf selects and locates the backend.
type Conf struct {
	Type string `json:"type"`
	Path string `json:"path"`
}

// Find returns the record of subject or ErrRecordNotFound.
func Find(records []schema.TrainingRecord, subject string) (schema.TrainingRecord, error) {
	for _, r := range records {
		if r.Subject == subject {
			return r, nil
		}
	}
	return schema.TrainingRecord{}, ErrRecordNotFound
}

// checkRecords rejects sets a backend could not store unambiguously.
func checkRecords(records []schema.TrainingRecord) error {
	seen := make(map[string]struct{}, len(records))
	for _, r := range records {
		if r.Subject == "" {
			return errors.New("record subject cannot be empty")
		}
		if _, ok := seen[r.Subject]; ok {
			return fmt.Errorf("duplicate record for subject %q", r.Subject)
		}
		seen[r.Subject] = struct{}{}
	}
	return nil
}

func unavailable(msg string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStoreUnavailable, msg, err)
}
